package testutils

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/ava-labs/posixmq/pkg/mq"
)

// MockProcessor is a mock implementation of consumer.Processor for testing
type MockProcessor struct {
	mock.Mock
}

// Process mocks the Process method
func (m *MockProcessor) Process(ctx context.Context, msg mq.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}
