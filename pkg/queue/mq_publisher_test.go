package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/ava-labs/posixmq/pkg/mq"
	"github.com/ava-labs/posixmq/pkg/mq/memmq"
)

func newTestPublisher(t *testing.T, k *memmq.Kernel) *MQPublisher {
	t.Helper()
	p := NewMQPublisher(zap.NewNop().Sugar(), mq.WithAdapter(k))
	t.Cleanup(func() { p.Close(context.Background()) })
	return p
}

func TestMQPublisher_Publish(t *testing.T) {
	k := memmq.New()
	p := newTestPublisher(t, k)

	require.NoError(t, p.Publish(t.Context(), Msg{Queue: "/dlq", Value: []byte("first"), Priority: 1}))
	require.NoError(t, p.Publish(t.Context(), Msg{Queue: "/dlq", Value: []byte("second"), Priority: 4}))
	require.True(t, k.Exists("/dlq"))

	// The handle is reused across publishes.
	require.Equal(t, 1, k.Calls(memmq.CallOpen))

	q, err := mq.Open("/dlq", mq.WithAdapter(k))
	require.NoError(t, err)
	defer q.Close()

	msg, err := q.Receive()
	require.NoError(t, err)
	require.Equal(t, []byte("second"), msg.Payload())
	require.Equal(t, uint(4), msg.Priority())

	msg, err = q.Receive()
	require.NoError(t, err)
	require.Equal(t, []byte("first"), msg.Payload())
}

func TestMQPublisher_MultipleQueues(t *testing.T) {
	k := memmq.New()
	p := newTestPublisher(t, k)

	require.NoError(t, p.Publish(t.Context(), Msg{Queue: "/a", Value: []byte("x")}))
	require.NoError(t, p.Publish(t.Context(), Msg{Queue: "/b", Value: []byte("y")}))
	require.True(t, k.Exists("/a"))
	require.True(t, k.Exists("/b"))

	p.Close(t.Context())
	require.Equal(t, 2, k.Calls(memmq.CallClose))
	// The queues outlive the publisher.
	require.True(t, k.Exists("/a"))
}

func TestMQPublisher_ContextCanceled(t *testing.T) {
	k := memmq.New()
	p := newTestPublisher(t, k)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := p.Publish(ctx, Msg{Queue: "/never", Value: []byte("x")})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, k.Calls(memmq.CallOpen))
	require.Zero(t, k.Calls(memmq.CallSend))
}

func TestMQPublisher_Errors(t *testing.T) {
	k := memmq.New(memmq.WithDefaultLimits(10, 4))
	p := newTestPublisher(t, k)

	err := p.Publish(t.Context(), Msg{Queue: "bad-name", Value: []byte("x")})
	require.True(t, mq.IsValidation(err))

	err = p.Publish(t.Context(), Msg{Queue: "/small", Value: []byte("too long")})
	require.True(t, mq.IsValidation(err))

	k.Fail(memmq.CallOpen, unix.EACCES)
	err = p.Publish(t.Context(), Msg{Queue: "/locked", Value: []byte("x")})
	require.ErrorIs(t, err, mq.PermissionDenied)
}

func TestMQPublisher_PublishAfterClose(t *testing.T) {
	k := memmq.New()
	p := NewMQPublisher(zap.NewNop().Sugar(), mq.WithAdapter(k))

	p.Close(t.Context())
	p.Close(t.Context())

	err := p.Publish(t.Context(), Msg{Queue: "/late", Value: []byte("x")})
	require.ErrorIs(t, err, ErrPublisherClosed)
	require.False(t, k.Exists("/late"))
}

func TestMQPublisher_CloseWinsOverLookedUpHandle(t *testing.T) {
	k := memmq.New()
	p := NewMQPublisher(zap.NewNop().Sugar(), mq.WithAdapter(k))

	h, err := p.handle("/dlq")
	require.NoError(t, err)
	p.Close(t.Context())

	err = p.send(t.Context(), h, Msg{Queue: "/dlq", Value: []byte("x")})
	require.ErrorIs(t, err, ErrPublisherClosed)
	require.Equal(t, 0, k.Calls(memmq.CallSend))
}
