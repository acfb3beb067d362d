package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ava-labs/posixmq/pkg/consumer"
	"github.com/ava-labs/posixmq/pkg/metrics"
	"github.com/ava-labs/posixmq/pkg/mq"
	"github.com/ava-labs/posixmq/pkg/utils"
)

const metricsShutdownTimeout = 5 * time.Second

// record is the JSON line printed for each consumed message
type record struct {
	Queue      string    `json:"queue"`
	Priority   uint      `json:"priority"`
	Size       int       `json:"size"`
	Encoding   string    `json:"encoding"`
	Payload    string    `json:"payload"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// printer is a consumer.Processor writing one JSON line per message.
type printer struct {
	mu       sync.Mutex
	enc      *json.Encoder
	queue    string
	encoding string
	now      func() time.Time
}

func newPrinter(w io.Writer, queue, encoding string) *printer {
	return &printer{
		enc:      json.NewEncoder(w),
		queue:    queue,
		encoding: encoding,
		now:      time.Now,
	}
}

func (p *printer) Process(_ context.Context, msg mq.Message) error {
	payload, err := utils.EncodePayload(msg.Payload(), p.encoding)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enc.Encode(record{
		Queue:      p.queue,
		Priority:   msg.Priority(),
		Size:       msg.Len(),
		Encoding:   p.encoding,
		Payload:    payload,
		ReceivedAt: p.now().UTC(),
	})
}

func (cmd *commands) consume(c *cli.Context) error {
	cfg, sugar, opts, err := cmd.setup(c)
	if err != nil {
		return err
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	sugar.Infow("config",
		"verbose", cfg.Verbose,
		"queue", cfg.Consumer.Queue,
		"dlq", cfg.Consumer.DLQQueue,
		"concurrency", cfg.Consumer.Concurrency,
		"retryInterrupted", cfg.Consumer.RetryInterrupted,
		"shutdownTimeout", *cfg.Consumer.ShutdownTimeout,
		"encoding", cfg.Encoding,
		"metricsHost", cfg.MetricsHost,
		"metricsPort", cfg.MetricsPort,
		"environment", cfg.Environment,
	)

	// Initialize Prometheus metrics with labels for multi-instance filtering
	registry := prometheus.NewRegistry()
	m, err := metrics.NewWithLabels(registry, metrics.Labels{
		Environment: cfg.Environment,
		Host:        cfg.Host,
	})
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cons, err := consumer.New(sugar, cfg.Consumer, newPrinter(c.App.Writer, cfg.Consumer.Queue, cfg.Encoding), m, opts...)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	var metricsErrCh <-chan error
	if cfg.MetricsPort != 0 {
		metricsServer := metrics.NewServer(cfg.MetricsAddr(), registry, cons.Healthy)
		metricsErrCh = metricsServer.Start()
		if cfg.MetricsHost == "" {
			sugar.Infof("metrics server listening on http://0.0.0.0:%d/metrics", cfg.MetricsPort)
		} else {
			sugar.Infof("metrics server listening on http://%s/metrics", cfg.MetricsAddr())
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				sugar.Warnw("failed to shut down metrics server", "error", err)
			}
		}()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return cons.Start(gctx)
	})
	if metricsErrCh != nil {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return nil
			case err := <-metricsErrCh:
				if err != nil {
					return fmt.Errorf("metrics server failed: %w", err)
				}
				return nil
			}
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("consumer failed: %w", err)
	}
	sugar.Info("consumer stopped")
	return nil
}
