//go:build e2e && linux

package e2e

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/ava-labs/posixmq/pkg/consumer"
	"github.com/ava-labs/posixmq/pkg/metrics"
	"github.com/ava-labs/posixmq/pkg/mq"
	"github.com/ava-labs/posixmq/pkg/queue"
	"github.com/ava-labs/posixmq/pkg/utils"
)

// TestE2EConsumerWithDLQ publishes to a kernel queue, consumes it with a
// processor rejecting some payloads, and checks the dead letter queue and the
// exported metrics.
func TestE2EConsumerWithDLQ(t *testing.T) {
	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Second)
	defer cancel()

	messages := getEnvInt("E2E_MESSAGES", 8)
	metricsAddr := getEnvStr("E2E_METRICS_ADDR", "127.0.0.1:19290")

	log, err := utils.NewSugaredLogger(true)
	require.NoError(t, err)

	source := uniqueQueue(t, "e2e-src")
	dlq := uniqueQueue(t, "e2e-dlq")

	// Keep the total under the default kernel queue depth.
	publisher := queue.NewMQPublisher(log)
	for i := range messages {
		require.NoError(t, publisher.Publish(ctx, queue.Msg{
			Queue:    source,
			Value:    fmt.Appendf(nil, "msg-%d", i),
			Priority: uint(i % 3),
		}))
	}
	publisher.Close(ctx)

	var (
		mu        sync.Mutex
		processed []string
	)
	proc := consumer.ProcessorFunc(func(_ context.Context, msg mq.Message) error {
		payload := string(msg.Payload())
		mu.Lock()
		processed = append(processed, payload)
		mu.Unlock()
		if strings.HasSuffix(payload, "-0") || strings.HasSuffix(payload, "-5") {
			return errors.New("rejected")
		}
		return nil
	})

	registry := prometheus.NewRegistry()
	m, err := metrics.NewWithLabels(registry, metrics.Labels{Environment: "e2e"})
	require.NoError(t, err)

	timeout := 5 * time.Second
	cons, err := consumer.New(log, consumer.Config{
		Queue:            source,
		DLQQueue:         dlq,
		Concurrency:      4,
		RetryInterrupted: true,
		ShutdownTimeout:  &timeout,
	}, proc, m)
	require.NoError(t, err)

	server := metrics.NewServer(metricsAddr, registry, cons.Healthy)
	serverErrCh := server.Start()
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	})

	consumeCtx, stop := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(consumeCtx)
	g.Go(func() error {
		return cons.Start(gctx)
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case err := <-serverErrCh:
			return err
		}
	})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(processed) == messages
	}, 10*time.Second, 50*time.Millisecond)

	url := fmt.Sprintf("http://%s/metrics", metricsAddr)
	requireMetric(t, ctx, url, "posixmq_consumer_messages_processed_total", float64(messages))
	requireMetric(t, ctx, url, "posixmq_consumer_dlq_published_total", 2)

	stop()
	require.NoError(t, g.Wait())

	var dead []string
	for _, msg := range drainQueue(t, dlq) {
		dead = append(dead, string(msg.Payload()))
	}
	require.ElementsMatch(t, []string{"msg-0", "msg-5"}, dead)

	// Release the receive loop still blocked on the source queue.
	q, err := mq.Open(source)
	require.NoError(t, err)
	require.NoError(t, q.Send(mq.NewMessage([]byte("wake"), 0)))
	require.NoError(t, q.Close())
	require.Eventually(t, func() bool { return cons.Healthy() != nil }, 5*time.Second, 10*time.Millisecond)
}
