package mq

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/ava-labs/posixmq/pkg/metrics"
)

// Operation names used in errors, logs and metrics.
const (
	OpCreate       = "create"
	OpOpen         = "open"
	OpOpenOrCreate = "open_or_create"
	OpSend         = "send"
	OpReceive      = "receive"
	OpDelete       = "delete"
	OpClose        = "close"
	OpStat         = "stat"
)

// defaultMode grants read/write to the owner and nothing to anyone else.
const defaultMode os.FileMode = 0o600

// Queue is a handle owning one open session against a named queue.
//
// The attributes are read once when the queue is opened and are not
// refreshed; use Stat for a live reading.
type Queue struct {
	name       string
	descriptor Descriptor
	attrs      Attributes
	closed     bool

	adapter Adapter
	log     *zap.SugaredLogger
	metrics *metrics.Metrics
}

// Create creates a new queue and opens it for reading and writing. It fails
// with QueueAlreadyExists if the name is already bound.
//
// The queue is readable and writable by the owner only; on Linux the mode can
// be changed afterwards through /dev/mqueue. The queue limits are the kernel
// defaults and cannot be chosen here.
func Create(name string, opts ...Option) (*Queue, error) {
	return openQueue(OpCreate, name, unix.O_RDWR|unix.O_CREAT|unix.O_EXCL, opts)
}

// Open opens an existing queue for reading and writing. It fails with
// QueueNotFound if no queue is bound to name.
func Open(name string, opts ...Option) (*Queue, error) {
	return openQueue(OpOpen, name, unix.O_RDWR, opts)
}

// OpenOrCreate opens the queue bound to name, creating it with owner-only
// permissions and the kernel default limits if it does not exist. The kernel
// makes the create-or-attach decision atomically, so concurrent callers all
// end up on the same queue.
func OpenOrCreate(name string, opts ...Option) (*Queue, error) {
	return openQueue(OpOpenOrCreate, name, unix.O_RDWR|unix.O_CREAT, opts)
}

func openQueue(op, name string, flags int, opts []Option) (*Queue, error) {
	o := buildOptions(opts)
	q := &Queue{
		name:       name,
		descriptor: -1,
		adapter:    o.adapter,
		log:        o.log,
		metrics:    o.metrics,
	}

	start := time.Now()
	if err := q.open(op, flags); err != nil {
		return nil, q.observe(op, start, err)
	}
	q.observe(op, start, nil) //nolint:errcheck // nil error
	q.metrics.IncOpenQueues()

	q.log.Debugw("queue opened",
		"op", op,
		"name", q.name,
		"descriptor", q.descriptor,
		"maxPending", q.attrs.MaxPending,
		"maxMessageSize", q.attrs.MaxMessageSize,
		"currentCount", q.attrs.CurrentCount,
	)
	return q, nil
}

func (q *Queue) open(op string, flags int) error {
	if err := ValidateName(q.name); err != nil {
		return err
	}

	var (
		d   Descriptor
		err error
	)
	if flags&unix.O_CREAT != 0 {
		d, err = q.adapter.OpenCreate(q.name, flags, defaultMode, nil)
	} else {
		d, err = q.adapter.Open(q.name, flags)
	}
	if err != nil {
		return foreignError(op, q.name, err)
	}

	attrs, err := q.adapter.GetAttributes(d)
	if err != nil {
		if closeErr := q.adapter.Close(d); closeErr != nil {
			q.log.Warnw("failed to release descriptor after attribute read failed",
				"name", q.name,
				"descriptor", d,
				"error", closeErr,
			)
		}
		return foreignError(op, q.name, err)
	}

	q.descriptor = d
	q.attrs = attrs
	return nil
}

// Name returns the queue name.
func (q *Queue) Name() string {
	return q.name
}

// Attributes returns the attributes captured when the queue was opened.
func (q *Queue) Attributes() Attributes {
	return q.attrs
}

// Send enqueues msg. A payload longer than the queue's maximum message size
// is rejected with a *ValidationError without contacting the kernel.
//
// Send blocks while the queue is full, until space is available or the call
// is interrupted by a signal (QueueCallInterrupted).
func (q *Queue) Send(msg Message) error {
	start := time.Now()
	return q.observe(OpSend, start, q.send(msg))
}

func (q *Queue) send(msg Message) error {
	if q.closed {
		return q.closedError(OpSend)
	}

	size := msg.Len()
	if int64(size) > q.attrs.MaxMessageSize {
		return &ValidationError{
			Reason: fmt.Sprintf("Message size (%d) exceeds maximum for queue '%s' (%d)", size, q.name, q.attrs.MaxMessageSize),
		}
	}

	q.metrics.IncBlocked(OpSend)
	err := q.adapter.Send(q.descriptor, msg.payload, msg.priority)
	q.metrics.DecBlocked(OpSend)
	if err != nil {
		return foreignError(OpSend, q.name, err)
	}

	q.metrics.ObservePayload(metrics.DirectionSent, size)
	return nil
}

// Receive dequeues the oldest message of the highest priority present.
// The returned message carries the priority the kernel delivered it with.
//
// Receive blocks while the queue is empty, until a message arrives or the
// call is interrupted by a signal (QueueCallInterrupted).
func (q *Queue) Receive() (Message, error) {
	start := time.Now()
	msg, err := q.receive()
	return msg, q.observe(OpReceive, start, err)
}

func (q *Queue) receive() (Message, error) {
	if q.closed {
		return Message{}, q.closedError(OpReceive)
	}

	buf := make([]byte, q.attrs.MaxMessageSize)

	q.metrics.IncBlocked(OpReceive)
	n, priority, err := q.adapter.Receive(q.descriptor, buf)
	q.metrics.DecBlocked(OpReceive)
	if err != nil {
		return Message{}, foreignError(OpReceive, q.name, err)
	}

	q.metrics.ObservePayload(metrics.DirectionReceived, n)
	return Message{payload: buf[:n:n], priority: priority}, nil
}

// Stat reads the current attributes from the kernel. The snapshot returned by
// Attributes is left untouched.
func (q *Queue) Stat() (Attributes, error) {
	start := time.Now()
	if q.closed {
		return Attributes{}, q.observe(OpStat, start, q.closedError(OpStat))
	}

	attrs, err := q.adapter.GetAttributes(q.descriptor)
	if err != nil {
		return Attributes{}, q.observe(OpStat, start, foreignError(OpStat, q.name, err))
	}
	q.observe(OpStat, start, nil) //nolint:errcheck // nil error
	return attrs, nil
}

// Delete removes the queue name from the kernel namespace. Descriptors that
// are already open, including this handle's, stay usable; new opens of the
// name fail until it is created again.
//
// Delete does not close the handle. Calling it twice is an error: the second
// call fails with QueueNotFound unless the name was recreated meanwhile.
func (q *Queue) Delete() error {
	start := time.Now()
	if err := q.adapter.Unlink(q.name); err != nil {
		return q.observe(OpDelete, start, foreignError(OpDelete, q.name, err))
	}
	q.observe(OpDelete, start, nil) //nolint:errcheck // nil error
	q.log.Debugw("queue deleted", "name", q.name)
	return nil
}

// Close releases the handle's descriptor. The queue and its messages remain
// in the kernel until deleted.
//
// Close must not run concurrently with Send or Receive on the same handle.
// Calling it twice is an error: the second call, like any other call after
// Close, fails with InvalidQueueDescriptor without reaching the kernel.
func (q *Queue) Close() error {
	start := time.Now()
	if q.closed {
		return q.observe(OpClose, start, q.closedError(OpClose))
	}

	// The descriptor is gone even when close reports an error.
	q.closed = true
	q.metrics.DecOpenQueues()

	if err := q.adapter.Close(q.descriptor); err != nil {
		return q.observe(OpClose, start, foreignError(OpClose, q.name, err))
	}
	q.observe(OpClose, start, nil) //nolint:errcheck // nil error
	q.log.Debugw("queue closed", "name", q.name, "descriptor", q.descriptor)
	return nil
}

func (q *Queue) closedError(op string) error {
	return &ForeignError{
		Category: InvalidQueueDescriptor,
		Op:       op,
		Name:     q.name,
	}
}

// observe records the outcome of op and returns err unchanged.
func (q *Queue) observe(op string, start time.Time, err error) error {
	q.metrics.RecordOperation(op, err, time.Since(start).Seconds())

	var fe *ForeignError
	switch {
	case err == nil:
	case errors.As(err, &fe):
		q.metrics.IncForeignError(op, fe.Category.String())
		if fe.Category == UnknownForeignError {
			q.log.Warnw("unmapped queue failure, please report",
				"op", op,
				"name", q.name,
				"cause", fe.Cause,
			)
		}
	case IsValidation(err):
		q.metrics.IncValidationError(op)
	}
	return err
}
