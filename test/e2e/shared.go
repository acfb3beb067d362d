//go:build e2e && linux

package e2e

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/posixmq/pkg/mq"
)

func getEnvStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if out, err := strconv.Atoi(v); err == nil && out != 0 {
			return out
		}
	}
	return def
}

// uniqueQueue returns a fresh queue name and unlinks it when the test ends.
func uniqueQueue(t *testing.T, prefix string) string {
	t.Helper()
	name := fmt.Sprintf("/%s-%s", prefix, uuid.NewString()[:8])
	t.Cleanup(func() {
		q, err := mq.Open(name)
		if err != nil {
			return
		}
		_ = q.Delete()
		_ = q.Close()
	})
	return name
}

// drainQueue receives every message currently queued on name.
func drainQueue(t *testing.T, name string) []mq.Message {
	t.Helper()
	q, err := mq.Open(name)
	require.NoError(t, err)
	defer q.Close()

	attrs, err := q.Stat()
	require.NoError(t, err)

	msgs := make([]mq.Message, 0, attrs.CurrentCount)
	for range attrs.CurrentCount {
		msg, err := q.Receive()
		require.NoError(t, err)
		msgs = append(msgs, msg)
	}
	return msgs
}

// requireMetric polls url until the summed samples of metric equal want.
func requireMetric(t *testing.T, ctx context.Context, url, metric string, want float64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		got, ok := readMetric(ctx, url, metric)
		if ok && got == want {
			return
		}
		if time.Now().After(deadline) {
			require.Equal(t, want, got, "metric %s at %s", metric, url)
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func readMetric(ctx context.Context, url, metric string) (float64, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, false
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, false
	}

	var total float64
	var found bool
	for _, line := range strings.Split(string(body), "\n") {
		if !strings.HasPrefix(line, metric) {
			continue
		}
		rest := line[len(metric):]
		if rest == "" || (rest[0] != ' ' && rest[0] != '{') {
			continue
		}
		fields := strings.Fields(line)
		v, err := strconv.ParseFloat(fields[len(fields)-1], 64)
		if err != nil {
			continue
		}
		total += v
		found = true
	}
	return total, found
}
