// Package mq provides a managed handle over POSIX named message queues
// (mq_overview(7)) for local inter-process communication.
//
// A Queue owns exactly one open session (descriptor) against a named queue.
// Queues are obtained with Create, Open or OpenOrCreate and released with
// Close. Delete removes the name from the kernel namespace but leaves already
// open descriptors usable; the kernel frees the queue once every descriptor is
// closed.
//
// Queue names start with a single '/' followed by 1 to 254 characters that do
// not contain another '/'. Names are validated locally before the kernel is
// consulted.
//
// Send and Receive block the calling goroutine while the queue is full or
// empty respectively. The only way to interrupt a blocked call is signal
// delivery, which surfaces as QueueCallInterrupted; the handle never retries on
// its own.
//
// Failures reported by the kernel are returned as *ForeignError carrying one
// Category of a closed taxonomy, so callers can write
//
//	if errors.Is(err, mq.QueueNotFound) { ... }
//
// Local failures (malformed names, oversized payloads) are returned as
// *ValidationError and never reach the kernel.
//
// Queues are created with owner-only read/write permission and the kernel's
// default limits (see /proc/sys/fs/mqueue). Choosing the maximum number of
// pending messages or the maximum message size at creation time is not
// supported.
//
// All kernel access goes through the Adapter interface. Kernel returns the
// process-wide Linux implementation; package memmq provides an in-memory
// simulation for tests.
//
// A Queue is not safe for concurrent use. Open one handle per goroutine
// instead; independent handles on the same name are arbitrated by the kernel.
package mq
