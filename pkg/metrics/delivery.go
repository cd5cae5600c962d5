package metrics

import "github.com/prometheus/client_golang/prometheus"

// DeliveryJobMetrics counts job transitions and notification failures.
type DeliveryJobMetrics struct {
	transitions    *prometheus.CounterVec
	rejected       *prometheus.CounterVec
	notifyFailures *prometheus.CounterVec
}

// NewDeliveryJobMetrics registers the delivery job metrics. A nil registerer yields a no-op recorder.
func NewDeliveryJobMetrics(reg prometheus.Registerer) *DeliveryJobMetrics {
	if reg == nil {
		return &DeliveryJobMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "delivery_job",
		Name:      "transitions_total",
		Help:      "Committed delivery job transitions.",
	}, []string{"from", "to"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "delivery_job",
		Name:      "rejected_transitions_total",
		Help:      "Transition requests refused, by error code.",
	}, []string{"code"})
	notifyFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "delivery_job",
		Name:      "notification_failures_total",
		Help:      "Best-effort notifications that could not be delivered.",
	}, []string{"kind"})
	reg.MustRegister(transitions, rejected, notifyFailures)
	return &DeliveryJobMetrics{transitions: transitions, rejected: rejected, notifyFailures: notifyFailures}
}

func (m *DeliveryJobMetrics) IncTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(labelOrUnknown(from), labelOrUnknown(to)).Inc()
}

func (m *DeliveryJobMetrics) IncRejected(code string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(labelOrUnknown(code)).Inc()
}

func (m *DeliveryJobMetrics) IncNotificationFailure(kind string) {
	if m == nil || m.notifyFailures == nil {
		return
	}
	m.notifyFailures.WithLabelValues(labelOrUnknown(kind)).Inc()
}
