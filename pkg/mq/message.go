package mq

import "bytes"

// Message is an immutable queue message: an opaque payload and a priority.
//
// Higher priorities are delivered first; messages of equal priority are
// delivered in the order they were sent. The valid priority range is defined
// by the kernel (0 to sysconf(_SC_MQ_PRIO_MAX)-1, 32767 on Linux).
type Message struct {
	payload  []byte
	priority uint
}

// NewMessage creates a message holding a copy of payload.
func NewMessage(payload []byte, priority uint) Message {
	return Message{
		payload:  bytes.Clone(payload),
		priority: priority,
	}
}

// Payload returns a copy of the message payload.
func (m Message) Payload() []byte {
	return bytes.Clone(m.payload)
}

// Priority returns the message priority.
func (m Message) Priority() uint {
	return m.priority
}

// Len returns the payload length in bytes.
func (m Message) Len() int {
	return len(m.payload)
}
