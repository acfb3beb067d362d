package consumer

import (
	"context"

	"github.com/ava-labs/posixmq/pkg/mq"
)

// Processor handles one received message. A returned error sends the message
// to the dead letter queue when one is configured.
type Processor interface {
	Process(ctx context.Context, msg mq.Message) error
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, msg mq.Message) error

func (f ProcessorFunc) Process(ctx context.Context, msg mq.Message) error {
	return f(ctx, msg)
}
