// Package consumer runs a Processor over the messages of a POSIX message
// queue, with bounded concurrency and an optional dead letter queue.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/semaphore"

	"github.com/ava-labs/posixmq/pkg/metrics"
	"github.com/ava-labs/posixmq/pkg/mq"
	"github.com/ava-labs/posixmq/pkg/queue"
	"github.com/ava-labs/posixmq/pkg/utils"
)

const dlqCloseTimeout = 5 * time.Second

// ErrStopped is reported by Healthy once the receive loop has exited.
var ErrStopped = errors.New("consumer stopped receiving")

// Consumer receives messages from one queue and hands them to a Processor.
//
// A processing slot is reserved before each receive, so messages stay in the
// queue while every processor is busy. Receives block in the kernel and
// cannot be canceled: when Start returns, the receive loop may still be
// waiting for a message. One that arrives afterwards is sent back to the queue
// with its original priority and the loop exits. Requeued messages go to the
// back of their priority class.
type Consumer struct {
	cfg       Config
	processor Processor
	log       *zap.SugaredLogger
	metrics   *metrics.Metrics

	// queue is owned by the receive loop, which also uses it to requeue.
	queue *mq.Queue

	dlq      queue.QueuePublisher
	sem      *semaphore.Weighted
	inFlight sync.WaitGroup
	stopped  atomic.Bool
}

// New opens cfg.Queue, creating it if needed, and prepares a consumer. The mq
// options apply to the consumed queue and to the dead letter queue.
func New(
	log *zap.SugaredLogger,
	cfg Config,
	processor Processor,
	m *metrics.Metrics,
	opts ...mq.Option,
) (*Consumer, error) {
	cfg = cfg.WithDefaults()
	if cfg.DLQQueue != "" && cfg.DLQQueue == cfg.Queue {
		return nil, fmt.Errorf("dlq queue %s must differ from the consumed queue", cfg.DLQQueue)
	}

	opts = append([]mq.Option{mq.WithLogger(log), mq.WithMetrics(m)}, opts...)

	q, err := mq.OpenOrCreate(cfg.Queue, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue: %w", err)
	}

	c := &Consumer{
		cfg:       cfg,
		processor: processor,
		log:       log,
		metrics:   m,
		queue:     q,
		sem:       semaphore.NewWeighted(cfg.Concurrency),
	}
	if cfg.DLQQueue != "" {
		c.dlq = queue.NewMQPublisher(log, opts...)
	}
	return c, nil
}

// Healthy returns ErrStopped once the receive loop has exited.
func (c *Consumer) Healthy() error {
	if c.stopped.Load() {
		return ErrStopped
	}
	return nil
}

// Start consumes messages until ctx is done or a receive fails.
//
// Interrupted receives are retried when Config.RetryInterrupted is set; any
// other receive failure stops the consumer and is returned. On shutdown Start
// waits up to Config.ShutdownTimeout for in-flight messages, then cancels
// their context and returns. Start never blocks on the queue itself.
// Start must be called at most once.
func (c *Consumer) Start(ctx context.Context) error {
	procCtx, procCancel := context.WithCancel(context.WithoutCancel(ctx))
	defer procCancel()

	msgs := make(chan mq.Message)
	errCh := make(chan error, 1)
	go c.receive(ctx, msgs, errCh)

	c.log.Infow("consumer started",
		"queue", c.cfg.Queue,
		"dlq", c.cfg.DLQQueue,
		"concurrency", c.cfg.Concurrency,
	)

	var err error
	run := true
	for run {
		select {
		case <-ctx.Done():
			c.log.Info("context done, shutting down consumer...")
			run = false
		case err = <-errCh:
			c.log.Errorw("receive failed, shutting down consumer", "error", err)
			run = false
		case msg := <-msgs:
			c.dispatch(procCtx, msg)
		}
	}

	c.drain()
	procCancel()

	if c.dlq != nil {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dlqCloseTimeout)
		c.dlq.Close(closeCtx)
		cancel()
	}

	c.log.Info("consumer shutdown complete")
	return err
}

// receive runs the blocking receive loop and owns the queue handle. Every
// message it passes on holds a semaphore slot.
func (c *Consumer) receive(ctx context.Context, msgs chan<- mq.Message, errCh chan<- error) {
	defer func() {
		c.stopped.Store(true)
		if err := c.queue.Close(); err != nil {
			c.log.Warnw("failed to close queue", "error", err)
		}
	}()

	for {
		// Acquire semaphore (blocks if max concurrency reached)
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return
		}
		if ctx.Err() != nil {
			c.sem.Release(1)
			return
		}

		msg, err := c.receiveOne(ctx)
		if err != nil {
			c.sem.Release(1)
			if ctx.Err() == nil {
				errCh <- err
			}
			return
		}

		if ctx.Err() != nil {
			c.sem.Release(1)
			c.requeue(msg)
			return
		}
		select {
		case msgs <- msg:
		case <-ctx.Done():
			c.sem.Release(1)
			c.requeue(msg)
			return
		}
	}
}

// receiveOne receives a message, retrying interrupted calls when configured.
func (c *Consumer) receiveOne(ctx context.Context) (mq.Message, error) {
	for {
		msg, err := c.queue.Receive()
		if err == nil {
			return msg, nil
		}
		if errors.Is(err, mq.QueueCallInterrupted) && c.cfg.RetryInterrupted && ctx.Err() == nil {
			c.metrics.IncInterruptRetried()
			c.log.Debugw("receive interrupted, retrying", "queue", c.cfg.Queue)
			continue
		}
		return mq.Message{}, err
	}
}

// dispatch processes msg in a goroutine. The caller has acquired the
// message's semaphore slot.
func (c *Consumer) dispatch(procCtx context.Context, msg mq.Message) {
	c.inFlight.Add(1)
	c.metrics.IncMessagesInFlight()
	go func() {
		defer c.inFlight.Done()
		defer c.sem.Release(1)
		defer c.metrics.DecMessagesInFlight()

		if utils.LevelEnabled(c.log, zapcore.DebugLevel) {
			payload, _ := utils.EncodePayload(msg.Payload(), utils.EncodingHex)
			c.log.Debugw("processing message",
				"queue", c.cfg.Queue,
				"priority", msg.Priority(),
				"payload", payload,
			)
		}

		start := time.Now()
		err := c.processor.Process(procCtx, msg)
		c.metrics.RecordMessageProcessed(err, time.Since(start).Seconds())
		if err != nil {
			c.handleFailure(procCtx, msg, err)
		}
	}()
}

func (c *Consumer) handleFailure(ctx context.Context, msg mq.Message, procErr error) {
	if c.dlq == nil {
		c.log.Errorw("failed to process message",
			"queue", c.cfg.Queue,
			"size", msg.Len(),
			"priority", msg.Priority(),
			"error", procErr,
		)
		return
	}

	err := c.dlq.Publish(ctx, queue.Msg{
		Queue:    c.cfg.DLQQueue,
		Value:    msg.Payload(),
		Priority: msg.Priority(),
	})
	c.metrics.RecordDLQPublish(err)
	if err != nil {
		c.log.Errorw("failed to publish to DLQ",
			"dlq", c.cfg.DLQQueue,
			"processError", procErr,
			"error", err,
		)
		return
	}

	c.log.Infow("published message to DLQ",
		"queue", c.cfg.Queue,
		"dlq", c.cfg.DLQQueue,
		"priority", msg.Priority(),
		"error", procErr,
	)
}

// drain waits for in-flight messages, bounded by the shutdown timeout.
func (c *Consumer) drain() {
	done := make(chan struct{})
	go func() {
		c.inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(*c.cfg.ShutdownTimeout):
		c.log.Warnw("timed out waiting for in-flight messages", "timeout", *c.cfg.ShutdownTimeout)
	}
}

// requeue sends msg back to the consumed queue. It blocks while the queue is
// full and must only be called by the receive loop.
func (c *Consumer) requeue(msg mq.Message) {
	if err := c.queue.Send(msg); err != nil {
		c.log.Errorw("failed to requeue message",
			"queue", c.cfg.Queue,
			"size", msg.Len(),
			"priority", msg.Priority(),
			"error", err,
		)
		return
	}
	c.metrics.IncRequeued()
	c.log.Infow("requeued message received during shutdown", "queue", c.cfg.Queue, "priority", msg.Priority())
}
