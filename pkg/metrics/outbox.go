package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outbox delivery results.
const (
	OutboxPublished    = "published"
	OutboxRetried      = "retried"
	OutboxDeadLettered = "dead_lettered"
)

// OutboxMetrics counts what the publisher did with each drained row.
type OutboxMetrics struct {
	results *prometheus.CounterVec
	batches prometheus.Counter
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_total",
			Help:      "Outbox rows handled by the publisher, by event type and result.",
		}, []string{"event_type", "result"}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "batches_total",
			Help:      "Non-empty batches claimed by the publisher.",
		}),
	}
	reg.MustRegister(m.results, m.batches)
	return m
}

func (m *OutboxMetrics) ObserveResult(eventType, result string) {
	if m == nil || m.results == nil {
		return
	}
	m.results.WithLabelValues(eventType, result).Inc()
}

func (m *OutboxMetrics) IncBatch() {
	if m == nil || m.batches == nil {
		return
	}
	m.batches.Inc()
}
