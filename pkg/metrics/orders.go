package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics records webhook intake and order lifecycle activity.
type OrderMetrics struct {
	webhooks      *prometheus.CounterVec
	webhookTiming *prometheus.HistogramVec
	transitions   *prometheus.CounterVec
	submissions   *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

// NewOrderMetrics registers the order metrics on the provided registerer.
// A nil registerer yields a recorder whose methods are no-ops.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Webhook deliveries by source and outcome.",
	}, []string{"source", "outcome"})
	webhookTiming := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_duration_seconds",
		Help:    "Time spent handling webhook deliveries.",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_transitions_total",
		Help: "Order status changes written to the store.",
	}, []string{"from", "to"})
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_submissions_total",
		Help: "Fulfillment submission attempts by outcome.",
	}, []string{"outcome"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_notifications_total",
		Help: "Customer notifications by kind and outcome.",
	}, []string{"kind", "outcome"})
	reg.MustRegister(webhooks, webhookTiming, transitions, submissions, notifications)
	return &OrderMetrics{
		webhooks:      webhooks,
		webhookTiming: webhookTiming,
		transitions:   transitions,
		submissions:   submissions,
		notifications: notifications,
	}
}

// ObserveWebhook counts one delivery and its handling time.
func (m *OrderMetrics) ObserveWebhook(source, outcome string, duration time.Duration) {
	if m == nil || m.webhooks == nil {
		return
	}
	source = normalizeLabel(source)
	m.webhooks.WithLabelValues(source, normalizeLabel(outcome)).Inc()
	m.webhookTiming.WithLabelValues(source).Observe(duration.Seconds())
}

// IncTransition counts a persisted status change.
func (m *OrderMetrics) IncTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// IncSubmission counts a fulfillment submission attempt.
func (m *OrderMetrics) IncSubmission(outcome string) {
	if m == nil || m.submissions == nil {
		return
	}
	m.submissions.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncNotification counts a notification attempt.
func (m *OrderMetrics) IncNotification(kind, outcome string) {
	if m == nil || m.notifications == nil {
		return
	}
	m.notifications.WithLabelValues(normalizeLabel(kind), normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
