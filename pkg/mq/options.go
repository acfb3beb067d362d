package mq

import (
	"go.uber.org/zap"

	"github.com/ava-labs/posixmq/pkg/metrics"
)

type options struct {
	adapter Adapter
	log     *zap.SugaredLogger
	metrics *metrics.Metrics
}

// Option configures how a Queue is opened and instrumented.
type Option func(*options)

// WithAdapter replaces the kernel adapter, e.g. with a memmq.Kernel in tests.
func WithAdapter(a Adapter) Option {
	return func(o *options) {
		o.adapter = a
	}
}

// WithLogger sets the logger used for lifecycle events and unmapped kernel
// failures. The default discards everything.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithMetrics records queue operations on m. A nil m disables metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.adapter == nil {
		o.adapter = Kernel()
	}
	if o.log == nil {
		o.log = zap.NewNop().Sugar()
	}
	return o
}
