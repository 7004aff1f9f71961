package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the outbox relay.
type Metrics struct {
	Published prometheus.Counter
	Failures  prometheus.Counter
}

// NewMetrics creates a new Metrics instance with relay metrics registered.
func NewMetrics() *Metrics {
	return &Metrics{
		Published: promauto.NewCounter(prometheus.CounterOpts{
			Name: "linkage_audit_relay_published_total",
			Help: "Total number of audit events relayed from the outbox to Kafka",
		}),
		Failures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "linkage_audit_relay_failures_total",
			Help: "Total number of failed relay passes",
		}),
	}
}

// AddPublished adds n to the published counter.
func (m *Metrics) AddPublished(n int) {
	m.Published.Add(float64(n))
}

// IncFailures increments the failure counter.
func (m *Metrics) IncFailures() {
	m.Failures.Inc()
}
