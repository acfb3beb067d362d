// Package queue provides abstractions and implementations for publishing
// messages to named queues.
//
// The package defines a common publisher interface with explicit lifecycle
// management. MQPublisher implements it on top of POSIX message queues.
//
// All QueuePublisher implementations require Close to be called exactly once
// to release resources.
package queue
