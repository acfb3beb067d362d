package queue

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/ava-labs/posixmq/pkg/mq"
)

// MQPublisher publishes to POSIX message queues.
//
// Destination queues are opened on first use with mq.OpenOrCreate and kept
// open until Close. Publish blocks while the destination queue is full; the
// context is only checked before the send starts, since a blocked send can
// only be interrupted by a signal.
type MQPublisher struct {
	log  *zap.SugaredLogger
	opts []mq.Option

	mu      sync.Mutex
	handles map[string]*publisherHandle
	closed  bool
	once    sync.Once
}

// publisherHandle serializes use of a queue handle, which is not safe for
// concurrent use.
type publisherHandle struct {
	mu     sync.Mutex
	q      *mq.Queue
	closed bool
}

var _ QueuePublisher = (*MQPublisher)(nil)

// NewMQPublisher creates a publisher. The mq options apply to every queue it
// opens.
func NewMQPublisher(log *zap.SugaredLogger, opts ...mq.Option) *MQPublisher {
	return &MQPublisher{
		log:     log,
		opts:    append([]mq.Option{mq.WithLogger(log)}, opts...),
		handles: make(map[string]*publisherHandle),
	}
}

// Publish sends msg to msg.Queue, creating the queue if needed.
//
// Publish returns ctx.Err() without sending if the context is already done,
// ErrPublisherClosed after Close, and otherwise the *mq.ValidationError or
// *mq.ForeignError reported by the queue.
func (p *MQPublisher) Publish(ctx context.Context, msg Msg) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h, err := p.handle(msg.Queue)
	if err != nil {
		return err
	}
	return p.send(ctx, h, msg)
}

// send publishes msg on h. Close may have run since h was looked up.
func (p *MQPublisher) send(ctx context.Context, h *publisherHandle, msg Msg) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrPublisherClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := h.q.Send(mq.NewMessage(msg.Value, msg.Priority)); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", msg.Queue, err)
	}

	p.log.Debugw("published message",
		"queue", msg.Queue,
		"size", len(msg.Value),
		"priority", msg.Priority,
	)
	return nil
}

func (p *MQPublisher) handle(name string) (*publisherHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPublisherClosed
	}
	if h, ok := p.handles[name]; ok {
		return h, nil
	}

	q, err := mq.OpenOrCreate(name, p.opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue %s: %w", name, err)
	}
	h := &publisherHandle{q: q}
	p.handles[name] = h
	return h, nil
}

// Close closes every queue the publisher opened. The queues themselves, and
// any messages in them, are left in place.
//
// Close waits for in-flight sends to finish. If the context is canceled
// first, Close returns and the remaining handles are closed in the
// background once their sends complete.
//
// Close must be called at least once. Calling Close multiple times does nothing.
func (p *MQPublisher) Close(ctx context.Context) {
	p.once.Do(func() {
		p.log.Info("closing mq publisher")

		p.mu.Lock()
		p.closed = true
		handles := p.handles
		p.handles = nil
		p.mu.Unlock()

		done := make(chan struct{})
		go func() {
			defer close(done)
			for name, h := range handles {
				h.mu.Lock()
				h.closed = true
				if err := h.q.Close(); err != nil {
					p.log.Warnw("failed to close queue", "queue", name, "error", err)
				}
				h.mu.Unlock()
			}
		}()

		select {
		case <-done:
			p.log.Info("mq publisher closed")
		case <-ctx.Done():
			p.log.Warn("context done, leaving in-flight sends to finish in background")
		}
	})
}
