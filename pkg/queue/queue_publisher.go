package queue

import (
	"context"
	"errors"
)

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("publisher closed")

// Msg represents a queue message.
//
// Queue is the destination queue name, e.g. "/jobs".
// Value contains the message payload.
// Priority orders delivery; higher values are received first.
type Msg struct {
	Queue    string
	Value    []byte
	Priority uint
}

type QueuePublisher interface {
	// Publish publishes a message to the underlying queue.
	//
	// Implementations may block until the message is accepted or fail early
	// depending on the underlying system.
	Publish(ctx context.Context, message Msg) error

	// Close stops the publisher and releases all resources.
	//
	// Close MUST be called exactly once. Implementations may block while
	// in-flight messages complete. Canceling the context stops the wait.
	Close(ctx context.Context)
}
