package mq

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Category classifies a failure reported by the kernel. The set is closed:
// codes without a mapping become UnknownForeignError instead of being folded
// into a neighbouring category.
//
// Category implements error so it can be used as an errors.Is target.
type Category int

const (
	// UnknownForeignError is the catch-all for raw codes without a mapping.
	// Seeing it means the taxonomy has a gap worth reporting.
	UnknownForeignError Category = iota
	QueueNotFound
	QueueCallInterrupted
	InvalidQueueDescriptor
	InsufficientMemory
	PermissionDenied
	QueueAlreadyExists
	SystemFileDescriptorLimitReached
	ProcessFileDescriptorLimitReached
	InsufficientSpace
)

var categoryNames = map[Category]string{
	UnknownForeignError:               "UnknownForeignError",
	QueueNotFound:                     "QueueNotFound",
	QueueCallInterrupted:              "QueueCallInterrupted",
	InvalidQueueDescriptor:            "InvalidQueueDescriptor",
	InsufficientMemory:                "InsufficientMemory",
	PermissionDenied:                  "PermissionDenied",
	QueueAlreadyExists:                "QueueAlreadyExists",
	SystemFileDescriptorLimitReached:  "SystemFileDescriptorLimitReached",
	ProcessFileDescriptorLimitReached: "ProcessFileDescriptorLimitReached",
	InsufficientSpace:                 "InsufficientSpace",
}

var categoryDescriptions = map[Category]string{
	UnknownForeignError:               "unknown foreign error occurred: please report a bug",
	QueueNotFound:                     "the specified queue could not be found",
	QueueCallInterrupted:              "queue method interrupted by signal",
	InvalidQueueDescriptor:            "the internal queue descriptor was invalid",
	InsufficientMemory:                "insufficient memory to call queue method",
	PermissionDenied:                  "permission to the specified queue was denied",
	QueueAlreadyExists:                "the specified queue already exists",
	SystemFileDescriptorLimitReached:  "maximum number of system file descriptors reached",
	ProcessFileDescriptorLimitReached: "maximum number of process file descriptors reached",
	InsufficientSpace:                 "insufficient space to call queue method",
}

var errnoCategories = map[unix.Errno]Category{
	unix.ENOENT: QueueNotFound,
	unix.EINTR:  QueueCallInterrupted,
	unix.EBADF:  InvalidQueueDescriptor,
	unix.ENOMEM: InsufficientMemory,
	unix.EACCES: PermissionDenied,
	unix.EEXIST: QueueAlreadyExists,
	unix.ENFILE: SystemFileDescriptorLimitReached,
	unix.EMFILE: ProcessFileDescriptorLimitReached,
	unix.ENOSPC: InsufficientSpace,
}

// Categories returns every category in declaration order.
func Categories() []Category {
	return []Category{
		UnknownForeignError,
		QueueNotFound,
		QueueCallInterrupted,
		InvalidQueueDescriptor,
		InsufficientMemory,
		PermissionDenied,
		QueueAlreadyExists,
		SystemFileDescriptorLimitReached,
		ProcessFileDescriptorLimitReached,
		InsufficientSpace,
	}
}

// String returns the category name, e.g. "QueueNotFound".
func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// Description returns a human-readable explanation of the category.
func (c Category) Description() string {
	if desc, ok := categoryDescriptions[c]; ok {
		return desc
	}
	return categoryDescriptions[UnknownForeignError]
}

func (c Category) Error() string {
	return c.Description()
}

// Retryable reports whether a call failing with this category may succeed
// when repeated unchanged. Only interrupted calls qualify.
func (c Category) Retryable() bool {
	return c == QueueCallInterrupted
}

// Translate maps a raw failure reported by an Adapter to its category.
// Errors that do not wrap a unix.Errno, and errno values without a mapping,
// translate to UnknownForeignError.
func Translate(err error) Category {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return UnknownForeignError
	}
	if c, ok := errnoCategories[errno]; ok {
		return c
	}
	return UnknownForeignError
}

// ForeignError is returned when the kernel rejects a queue operation.
type ForeignError struct {
	Category Category
	// Op is the queue operation that failed, e.g. "open" or "send".
	Op string
	// Name is the queue name the operation targeted.
	Name string
	// Cause is the raw failure reported by the adapter. It is nil when the
	// handle rejected the call itself, e.g. after Close.
	Cause error
}

func (e *ForeignError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("mq %s %s: %s (%v)", e.Op, e.Name, e.Category.Description(), e.Cause)
	}
	return fmt.Sprintf("mq %s %s: %s", e.Op, e.Name, e.Category.Description())
}

// Is matches a Category target against the error's category.
func (e *ForeignError) Is(target error) bool {
	c, ok := target.(Category)
	return ok && c == e.Category
}

// Unwrap exposes the raw adapter failure, typically a unix.Errno.
func (e *ForeignError) Unwrap() error {
	return e.Cause
}

// ValidationError is returned for failures detected before any kernel call,
// such as malformed queue names or payloads larger than the queue allows.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// CategoryOf returns the category of a *ForeignError in err's chain. The
// boolean is false when err carries no foreign cause.
func CategoryOf(err error) (Category, bool) {
	var fe *ForeignError
	if errors.As(err, &fe) {
		return fe.Category, true
	}
	return 0, false
}

// IsValidation reports whether err is a local validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func foreignError(op, name string, cause error) *ForeignError {
	return &ForeignError{
		Category: Translate(cause),
		Op:       op,
		Name:     name,
		Cause:    cause,
	}
}
