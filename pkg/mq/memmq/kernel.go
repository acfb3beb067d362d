// Package memmq provides an in-process mq.Adapter that behaves like the Linux
// message queue implementation: a flat namespace, priority ordering, blocking
// send and receive, and errno failures. It is meant for tests and for running
// the queue tooling on platforms without kernel message queues.
package memmq

import (
	"os"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/ava-labs/posixmq/pkg/mq"
)

// Linux defaults for queues created without explicit attributes.
const (
	DefaultMaxPending     = 10
	DefaultMaxMessageSize = 8192
	// MaxPriority is the exclusive upper bound on message priorities.
	MaxPriority = 32768

	defaultDescriptorLimit = 1024
	maxNameLength          = 255
)

// Adapter calls, as counted by Calls and targeted by Fail.
const (
	CallOpen          = "open"
	CallClose         = "close"
	CallUnlink        = "unlink"
	CallSend          = "send"
	CallReceive       = "receive"
	CallGetAttributes = "getattr"
)

type queue struct {
	name           string
	mode           os.FileMode
	maxPending     int64
	maxMessageSize int64
	messages       *priorityQueue
	seq            uint64
}

type session struct {
	queue *queue
	flags int
}

// Kernel is an in-memory message queue namespace. The zero value is not
// usable; create one with New. A Kernel is safe for concurrent use.
type Kernel struct {
	mu   sync.Mutex
	cond *sync.Cond

	queues      map[string]*queue
	sessions    map[mq.Descriptor]*session
	nextFD      mq.Descriptor
	interrupts  uint64
	blocked     int
	calls       map[string]int
	failures    map[string][]unix.Errno
	maxPending  int64
	maxMsgSize  int64
	maxSessions int
}

// Option configures a Kernel.
type Option func(*Kernel)

// WithDefaultLimits sets the limits applied to queues created without
// explicit attributes.
func WithDefaultLimits(maxPending, maxMessageSize int64) Option {
	return func(k *Kernel) {
		k.maxPending = maxPending
		k.maxMsgSize = maxMessageSize
	}
}

// WithDescriptorLimit caps the number of simultaneously open descriptors.
// Opens beyond the cap fail with EMFILE.
func WithDescriptorLimit(n int) Option {
	return func(k *Kernel) {
		k.maxSessions = n
	}
}

// New creates an empty namespace.
func New(opts ...Option) *Kernel {
	k := &Kernel{
		queues:      make(map[string]*queue),
		sessions:    make(map[mq.Descriptor]*session),
		nextFD:      3,
		calls:       make(map[string]int),
		failures:    make(map[string][]unix.Errno),
		maxPending:  DefaultMaxPending,
		maxMsgSize:  DefaultMaxMessageSize,
		maxSessions: defaultDescriptorLimit,
	}
	k.cond = sync.NewCond(&k.mu)
	for _, opt := range opts {
		opt(k)
	}
	return k
}

var _ mq.Adapter = (*Kernel)(nil)

// Fail makes the next call of kind op fail with errno. Multiple failures for
// the same op are consumed in order.
func (k *Kernel) Fail(op string, errno unix.Errno) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.failures[op] = append(k.failures[op], errno)
}

// Interrupt wakes every blocked Send and Receive with EINTR, as a signal
// delivered to the waiting threads would.
func (k *Kernel) Interrupt() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.interrupts++
	k.cond.Broadcast()
}

// Calls returns how many times op has been invoked, including calls that
// failed.
func (k *Kernel) Calls(op string) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.calls[op]
}

// Blocked returns the number of Send and Receive calls currently waiting.
func (k *Kernel) Blocked() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.blocked
}

// Exists reports whether name is bound in the namespace.
func (k *Kernel) Exists(name string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.queues[strings.TrimPrefix(name, "/")]
	return ok
}

// enter records a call and returns an injected failure, if any. k.mu must be
// held.
func (k *Kernel) enter(op string) error {
	k.calls[op]++
	pending := k.failures[op]
	if len(pending) == 0 {
		return nil
	}
	k.failures[op] = pending[1:]
	return pending[0]
}

func kernelName(name string) (string, error) {
	name = strings.TrimPrefix(name, "/")
	switch {
	case name == "" || strings.Contains(name, "/"):
		return "", unix.EINVAL
	case len(name) > maxNameLength:
		return "", unix.ENAMETOOLONG
	}
	return name, nil
}

func (k *Kernel) Open(name string, flags int) (mq.Descriptor, error) {
	return k.OpenCreate(name, flags&^unix.O_CREAT, 0, nil)
}

func (k *Kernel) OpenCreate(name string, flags int, mode os.FileMode, attr *mq.Attributes) (mq.Descriptor, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.enter(CallOpen); err != nil {
		return -1, err
	}
	key, err := kernelName(name)
	if err != nil {
		return -1, err
	}
	if len(k.sessions) >= k.maxSessions {
		return -1, unix.EMFILE
	}

	q, ok := k.queues[key]
	switch {
	case ok && flags&unix.O_CREAT != 0 && flags&unix.O_EXCL != 0:
		return -1, unix.EEXIST
	case !ok && flags&unix.O_CREAT == 0:
		return -1, unix.ENOENT
	case !ok:
		q = &queue{
			name:           key,
			mode:           mode.Perm(),
			maxPending:     k.maxPending,
			maxMessageSize: k.maxMsgSize,
			messages:       newPriorityQueue(),
		}
		if attr != nil {
			if attr.MaxPending <= 0 || attr.MaxMessageSize <= 0 {
				return -1, unix.EINVAL
			}
			q.maxPending = attr.MaxPending
			q.maxMessageSize = attr.MaxMessageSize
		}
		k.queues[key] = q
	}

	d := k.nextFD
	k.nextFD++
	k.sessions[d] = &session{queue: q, flags: flags}
	return d, nil
}

func (k *Kernel) Close(d mq.Descriptor) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.enter(CallClose); err != nil {
		return err
	}
	if _, ok := k.sessions[d]; !ok {
		return unix.EBADF
	}
	delete(k.sessions, d)
	return nil
}

// Unlink removes name from the namespace. Open descriptors keep the queue
// alive and usable.
func (k *Kernel) Unlink(name string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.enter(CallUnlink); err != nil {
		return err
	}
	key, err := kernelName(name)
	if err != nil {
		return err
	}
	if _, ok := k.queues[key]; !ok {
		return unix.ENOENT
	}
	delete(k.queues, key)
	return nil
}

func (k *Kernel) Send(d mq.Descriptor, payload []byte, priority uint) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.enter(CallSend); err != nil {
		return err
	}
	s, ok := k.sessions[d]
	if !ok || s.flags&unix.O_ACCMODE == unix.O_RDONLY {
		return unix.EBADF
	}
	if priority >= MaxPriority {
		return unix.EINVAL
	}
	if int64(len(payload)) > s.queue.maxMessageSize {
		return unix.EMSGSIZE
	}

	if err := k.wait(d, func(q *queue) bool {
		return int64(q.messages.len()) < q.maxPending
	}); err != nil {
		return err
	}

	q := s.queue
	q.seq++
	q.messages.push(&entry{
		payload:  append([]byte(nil), payload...),
		priority: priority,
		seq:      q.seq,
	})
	k.cond.Broadcast()
	return nil
}

func (k *Kernel) Receive(d mq.Descriptor, buf []byte) (int, uint, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.enter(CallReceive); err != nil {
		return 0, 0, err
	}
	s, ok := k.sessions[d]
	if !ok || s.flags&unix.O_ACCMODE == unix.O_WRONLY {
		return 0, 0, unix.EBADF
	}
	if int64(len(buf)) < s.queue.maxMessageSize {
		return 0, 0, unix.EMSGSIZE
	}

	if err := k.wait(d, func(q *queue) bool {
		return q.messages.len() > 0
	}); err != nil {
		return 0, 0, err
	}

	e := s.queue.messages.pop()
	k.cond.Broadcast()
	return copy(buf, e.payload), e.priority, nil
}

// wait blocks until ready holds for the queue behind d. It fails with EINTR
// when Interrupt is called, and with EBADF when d is closed meanwhile. k.mu
// must be held.
func (k *Kernel) wait(d mq.Descriptor, ready func(*queue) bool) error {
	generation := k.interrupts
	for {
		s, ok := k.sessions[d]
		if !ok {
			return unix.EBADF
		}
		if ready(s.queue) {
			return nil
		}

		k.blocked++
		k.cond.Wait()
		k.blocked--

		if k.interrupts != generation {
			return unix.EINTR
		}
	}
}

func (k *Kernel) GetAttributes(d mq.Descriptor) (mq.Attributes, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.enter(CallGetAttributes); err != nil {
		return mq.Attributes{}, err
	}
	s, ok := k.sessions[d]
	if !ok {
		return mq.Attributes{}, unix.EBADF
	}
	return mq.Attributes{
		MaxPending:     s.queue.maxPending,
		MaxMessageSize: s.queue.maxMessageSize,
		CurrentCount:   int64(s.queue.messages.len()),
	}, nil
}
