package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestLabels_toPrometheusLabels(t *testing.T) {
	tests := []struct {
		name     string
		labels   Labels
		expected prometheus.Labels
	}{
		{
			name:     "empty labels",
			labels:   Labels{},
			expected: prometheus.Labels{},
		},
		{
			name: "all labels set",
			labels: Labels{
				Environment: "production",
				Host:        "worker-1",
			},
			expected: prometheus.Labels{
				"environment": "production",
				"host":        "worker-1",
			},
		},
		{
			name: "host only",
			labels: Labels{
				Host: "worker-2",
			},
			expected: prometheus.Labels{
				"host": "worker-2",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.labels.toPrometheusLabels()
			require.Equal(t, tt.expected, result)
		})
	}
}

func TestNew(t *testing.T) {
	reg := prometheus.NewRegistry()

	m, err := New(reg)
	require.NoError(t, err)
	require.NotNil(t, m)

	// Gauges without labels are always exported
	metricFamilies, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, metricFamilies)
}

func TestNewWithLabels(t *testing.T) {
	reg := prometheus.NewRegistry()

	m, err := NewWithLabels(reg, Labels{Environment: "test", Host: "box"})
	require.NoError(t, err)
	require.NotNil(t, m)

	m.IncOpenQueues()

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range metricFamilies {
		if mf.GetName() != "posixmq_open_queues" {
			continue
		}
		found = true
		require.NotEmpty(t, mf.GetMetric())

		labelMap := make(map[string]string)
		for _, label := range mf.GetMetric()[0].GetLabel() {
			labelMap[label.GetName()] = label.GetValue()
		}
		require.Equal(t, "test", labelMap["environment"])
		require.Equal(t, "box", labelMap["host"])
	}
	require.True(t, found, "open_queues gauge not found")
}

func TestNew_RegistrationError(t *testing.T) {
	reg := prometheus.NewRegistry()

	_, err := New(reg)
	require.NoError(t, err)

	// Second registration should fail (duplicate metrics)
	m, err := New(reg)
	require.Nil(t, m, "expected nil metrics on duplicate registration")

	var alreadyRegistered prometheus.AlreadyRegisteredError
	require.ErrorAs(t, err, &alreadyRegistered)
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics

	require.NotPanics(t, func() {
		m.RecordOperation("send", nil, 0.1)
		m.IncForeignError("open", "QueueNotFound")
		m.IncValidationError("send")
		m.ObservePayload(DirectionSent, 10)
		m.IncBlocked("receive")
		m.DecBlocked("receive")
		m.IncOpenQueues()
		m.DecOpenQueues()
		m.RecordMessageProcessed(nil, 0.1)
		m.IncMessagesInFlight()
		m.DecMessagesInFlight()
		m.IncInterruptRetried()
		m.RecordDLQPublish(nil)
		m.IncRequeued()
	})
}

func TestMetrics_RecordOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.RecordOperation("send", nil, 0.001)
	m.RecordOperation("send", nil, 0.002)
	m.RecordOperation("send", errors.New("boom"), 0.5)

	require.Equal(t, float64(2), testutil.ToFloat64(m.operations.WithLabelValues("send", StatusSuccess)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.operations.WithLabelValues("send", StatusError)))

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range metricFamilies {
		if mf.GetName() == "posixmq_operation_duration_seconds" {
			found = true
			require.Equal(t, uint64(3), mf.GetMetric()[0].GetHistogram().GetSampleCount())
		}
	}
	require.True(t, found, "duration histogram not found")
}

func TestMetrics_Errors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.IncForeignError("open", "QueueNotFound")
	m.IncForeignError("open", "QueueNotFound")
	m.IncForeignError("create", "QueueAlreadyExists")
	m.IncValidationError("send")

	require.Equal(t, float64(2), testutil.ToFloat64(m.foreignErrors.WithLabelValues("open", "QueueNotFound")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.foreignErrors.WithLabelValues("create", "QueueAlreadyExists")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.validationErrors.WithLabelValues("send")))
}

func TestMetrics_Gauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.IncBlocked("receive")
	m.IncBlocked("receive")
	m.DecBlocked("receive")
	require.Equal(t, float64(1), testutil.ToFloat64(m.blockedCalls.WithLabelValues("receive")))

	m.IncOpenQueues()
	m.IncOpenQueues()
	m.DecOpenQueues()
	require.Equal(t, float64(1), testutil.ToFloat64(m.openQueues))

	m.IncMessagesInFlight()
	require.Equal(t, float64(1), testutil.ToFloat64(m.messagesInFlight))
	m.DecMessagesInFlight()
	require.Equal(t, float64(0), testutil.ToFloat64(m.messagesInFlight))
}

func TestMetrics_Consumer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.RecordMessageProcessed(nil, 0.01)
	m.RecordMessageProcessed(errors.New("bad payload"), 0.02)
	m.IncInterruptRetried()
	m.RecordDLQPublish(nil)
	m.RecordDLQPublish(errors.New("queue full"))
	m.IncRequeued()

	require.Equal(t, float64(1), testutil.ToFloat64(m.messagesProcessed.WithLabelValues(StatusSuccess)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.messagesProcessed.WithLabelValues(StatusError)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.interruptsRetried))
	require.Equal(t, float64(1), testutil.ToFloat64(m.dlqPublished.WithLabelValues(StatusSuccess)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.dlqPublished.WithLabelValues(StatusError)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.requeued))
}

func TestMetrics_ObservePayload(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.ObservePayload(DirectionSent, 5)
	m.ObservePayload(DirectionSent, 500)
	m.ObservePayload(DirectionReceived, 5)

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)

	counts := map[string]uint64{}
	for _, mf := range metricFamilies {
		if mf.GetName() != "posixmq_payload_bytes" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "direction" {
					counts[label.GetValue()] = metric.GetHistogram().GetSampleCount()
				}
			}
		}
	}
	require.Equal(t, uint64(2), counts[DirectionSent])
	require.Equal(t, uint64(1), counts[DirectionReceived])
}

func TestNamespace(t *testing.T) {
	require.Equal(t, "posixmq", Namespace)
}
