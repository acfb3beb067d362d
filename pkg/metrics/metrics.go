package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	Namespace = "posixmq"

	// Status label values for success/error metrics
	StatusSuccess = "success"
	StatusError   = "error"

	// Direction label values for payload metrics
	DirectionSent     = "sent"
	DirectionReceived = "received"

	Consumer = "consumer"
)

// Labels holds constant labels applied to all metrics.
// These are useful for distinguishing metrics from several processes sharing a host or dashboard.
type Labels struct {
	Environment string // Deployment environment (e.g., "production", "staging", "development")
	Host        string // Host the queues live on; POSIX queues are host-local
}

// toPrometheusLabels converts Labels to prometheus.Labels map.
// Only non-empty labels are included to avoid empty label values.
func (l Labels) toPrometheusLabels() prometheus.Labels {
	labels := prometheus.Labels{}
	if l.Environment != "" {
		labels["environment"] = l.Environment
	}
	if l.Host != "" {
		labels["host"] = l.Host
	}
	return labels
}

type Metrics struct {
	// Queue handle operations
	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	foreignErrors     *prometheus.CounterVec
	validationErrors  *prometheus.CounterVec
	payloadBytes      *prometheus.HistogramVec
	blockedCalls      *prometheus.GaugeVec
	openQueues        prometheus.Gauge

	// Consumer message processing metrics
	messagesProcessed  *prometheus.CounterVec // by status
	processingDuration prometheus.Histogram
	messagesInFlight   prometheus.Gauge
	interruptsRetried  prometheus.Counter
	dlqPublished       *prometheus.CounterVec // by status
	requeued           prometheus.Counter
}

// New creates a new Metrics instance and registers all metrics with the provided registerer.
// Returns an error if any metric registration fails.
// For metrics with constant labels, use NewWithLabels instead.
func New(reg prometheus.Registerer) (*Metrics, error) {
	return NewWithLabels(reg, Labels{})
}

// NewWithLabels creates a new Metrics instance with constant labels applied to all metrics.
func NewWithLabels(reg prometheus.Registerer, labels Labels) (*Metrics, error) {
	promLabels := labels.toPrometheusLabels()
	if len(promLabels) > 0 {
		reg = prometheus.WrapRegistererWith(promLabels, reg)
	}

	return newMetrics(reg)
}

func newMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Total queue operations by operation and status",
		}, []string{"op", "status"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Queue operation duration in seconds, including time spent blocked in the kernel",
			// Sends and receives may block for as long as the queue stays full or empty,
			// so the buckets reach well past typical syscall latencies.
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5, 30, 120},
		}, []string{"op"}),
		foreignErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "foreign_errors_total",
			Help:      "Total failures reported by the kernel by operation and category",
		}, []string{"op", "category"}),
		validationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "validation_errors_total",
			Help:      "Total operations rejected locally before reaching the kernel",
		}, []string{"op"}),
		payloadBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "payload_bytes",
			Help:      "Payload size of sent and received messages",
			Buckets:   prometheus.ExponentialBuckets(16, 4, 8),
		}, []string{"direction"}),
		blockedCalls: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "blocked_calls",
			Help:      "Number of send/receive calls currently inside the kernel",
		}, []string{"op"}),
		openQueues: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "open_queues",
			Help:      "Number of queue handles currently open",
		}),

		messagesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Consumer,
			Name:      "messages_processed_total",
			Help:      "Total number of messages processed by status",
		}, []string{"status"}),
		processingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Consumer,
			Name:      "processing_duration_seconds",
			Help:      "Time spent in the processor for a single message",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		messagesInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Consumer,
			Name:      "messages_in_flight",
			Help:      "Number of messages currently being processed",
		}),
		interruptsRetried: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Consumer,
			Name:      "interrupts_retried_total",
			Help:      "Total number of interrupted receives that were retried",
		}),
		dlqPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Consumer,
			Name:      "dlq_published_total",
			Help:      "Total number of messages published to the dead letter queue by status",
		}, []string{"status"}),
		requeued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Consumer,
			Name:      "requeued_total",
			Help:      "Total number of messages sent back to the queue during shutdown",
		}),
	}

	err := errors.Join(
		reg.Register(m.operations),
		reg.Register(m.operationDuration),
		reg.Register(m.foreignErrors),
		reg.Register(m.validationErrors),
		reg.Register(m.payloadBytes),
		reg.Register(m.blockedCalls),
		reg.Register(m.openQueues),
		reg.Register(m.messagesProcessed),
		reg.Register(m.processingDuration),
		reg.Register(m.messagesInFlight),
		reg.Register(m.interruptsRetried),
		reg.Register(m.dlqPublished),
		reg.Register(m.requeued),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordOperation records a queue operation outcome with its duration.
// Pass nil error for successful operations, non-nil for failures.
func (m *Metrics) RecordOperation(op string, err error, durationSeconds float64) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.operations.WithLabelValues(op, status).Inc()
	m.operationDuration.WithLabelValues(op).Observe(durationSeconds)
}

// IncForeignError increments the kernel failure counter for an operation and category.
func (m *Metrics) IncForeignError(op, category string) {
	if m == nil {
		return
	}
	m.foreignErrors.WithLabelValues(op, category).Inc()
}

// IncValidationError increments the local validation failure counter.
func (m *Metrics) IncValidationError(op string) {
	if m == nil {
		return
	}
	m.validationErrors.WithLabelValues(op).Inc()
}

// ObservePayload records the size of a sent or received payload.
func (m *Metrics) ObservePayload(direction string, size int) {
	if m == nil {
		return
	}
	m.payloadBytes.WithLabelValues(direction).Observe(float64(size))
}

// IncBlocked increments the gauge of calls inside the kernel for op.
func (m *Metrics) IncBlocked(op string) {
	if m == nil {
		return
	}
	m.blockedCalls.WithLabelValues(op).Inc()
}

// DecBlocked decrements the gauge of calls inside the kernel for op.
func (m *Metrics) DecBlocked(op string) {
	if m == nil {
		return
	}
	m.blockedCalls.WithLabelValues(op).Dec()
}

// IncOpenQueues increments the open handle gauge.
func (m *Metrics) IncOpenQueues() {
	if m == nil {
		return
	}
	m.openQueues.Inc()
}

// DecOpenQueues decrements the open handle gauge.
func (m *Metrics) DecOpenQueues() {
	if m == nil {
		return
	}
	m.openQueues.Dec()
}

// RecordMessageProcessed records a message processing outcome with duration.
// Pass nil error for successful processing, non-nil for failures.
func (m *Metrics) RecordMessageProcessed(err error, durationSeconds float64) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.messagesProcessed.WithLabelValues(status).Inc()
	m.processingDuration.Observe(durationSeconds)
}

// IncMessagesInFlight increments the in-flight message processing gauge.
func (m *Metrics) IncMessagesInFlight() {
	if m == nil {
		return
	}
	m.messagesInFlight.Inc()
}

// DecMessagesInFlight decrements the in-flight message processing gauge.
func (m *Metrics) DecMessagesInFlight() {
	if m == nil {
		return
	}
	m.messagesInFlight.Dec()
}

// IncInterruptRetried counts a receive retried after signal interruption.
func (m *Metrics) IncInterruptRetried() {
	if m == nil {
		return
	}
	m.interruptsRetried.Inc()
}

// RecordDLQPublish records a dead letter queue publish attempt.
func (m *Metrics) RecordDLQPublish(err error) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.dlqPublished.WithLabelValues(status).Inc()
}

// IncRequeued counts a message sent back to its queue during shutdown.
func (m *Metrics) IncRequeued() {
	if m == nil {
		return
	}
	m.requeued.Inc()
}
