package mq

import (
	"os"
	"sync"
)

// Descriptor identifies one open session against a named queue.
type Descriptor int

// Attributes describes a queue's limits and, at the time it was read, the
// number of messages it held.
type Attributes struct {
	// MaxPending is the maximum number of messages the queue may hold.
	MaxPending int64
	// MaxMessageSize is the maximum payload length in bytes.
	MaxMessageSize int64
	// CurrentCount is a snapshot of the number of queued messages.
	CurrentCount int64
}

// Adapter is the kernel capability consumed by Queue. Every method reports
// failure with the raw code the kernel returned, as a unix.Errno.
//
// Flags are unix open flags (unix.O_RDWR, unix.O_CREAT, unix.O_EXCL, ...).
type Adapter interface {
	// Open opens an existing queue.
	Open(name string, flags int) (Descriptor, error)
	// OpenCreate opens a queue, creating it with mode and attr when flags
	// contain O_CREAT. A nil attr selects the kernel defaults.
	OpenCreate(name string, flags int, mode os.FileMode, attr *Attributes) (Descriptor, error)
	// Close releases a descriptor.
	Close(d Descriptor) error
	// Unlink removes a queue name from the namespace.
	Unlink(name string) error
	// Send enqueues payload with priority, blocking while the queue is full.
	Send(d Descriptor, payload []byte, priority uint) error
	// Receive dequeues the oldest highest-priority message into buf, blocking
	// while the queue is empty. It returns the payload length and priority.
	Receive(d Descriptor, buf []byte) (int, uint, error)
	// GetAttributes reads the queue attributes.
	GetAttributes(d Descriptor) (Attributes, error)
}

var kernel = sync.OnceValue(newKernelAdapter)

// Kernel returns the process-wide adapter backed by the operating system.
// It is created on first use and shared by every Queue that does not supply
// its own adapter.
func Kernel() Adapter {
	return kernel()
}
