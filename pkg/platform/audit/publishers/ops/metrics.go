package ops

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for ops audit tracking. Every stage of
// the pipeline that can drop an event has its own counter so an operator
// can tell sampling from backpressure.
type Metrics struct {
	Tracked               prometheus.Counter
	Sampled               prometheus.Counter
	CircuitBreakerDropped prometheus.Counter
	QueueFullDropped      prometheus.Counter
	PersistFailures       prometheus.Counter
	CircuitBreakerState   prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with ops audit metrics registered.
func NewMetrics() *Metrics {
	return &Metrics{
		Tracked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "linkage_audit_ops_tracked_total",
			Help: "Total number of operational audit events persisted to the store",
		}),
		Sampled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "linkage_audit_ops_sampled_total",
			Help: "Total number of operational audit events skipped by the sampler",
		}),
		CircuitBreakerDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "linkage_audit_ops_circuit_breaker_dropped_total",
			Help: "Total number of operational audit events dropped while the store breaker was open",
		}),
		QueueFullDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "linkage_audit_ops_queue_full_dropped_total",
			Help: "Total number of operational audit events dropped because the persist queue was full",
		}),
		PersistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "linkage_audit_ops_persist_failures_total",
			Help: "Total number of operational audit store writes that failed",
		}),
		CircuitBreakerState: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "linkage_audit_ops_circuit_breaker_state",
			Help: "Store circuit breaker state (0 closed, 1 open)",
		}),
	}
}

// IncTracked increments the tracked counter.
func (m *Metrics) IncTracked() {
	m.Tracked.Inc()
}

// IncSampled increments the sampled counter.
func (m *Metrics) IncSampled() {
	m.Sampled.Inc()
}

// IncCircuitBreakerDropped increments the breaker-dropped counter.
func (m *Metrics) IncCircuitBreakerDropped() {
	m.CircuitBreakerDropped.Inc()
}

// IncQueueFullDropped increments the queue-full counter.
func (m *Metrics) IncQueueFullDropped() {
	m.QueueFullDropped.Inc()
}

// IncPersistFailures increments the persist failures counter.
func (m *Metrics) IncPersistFailures() {
	m.PersistFailures.Inc()
}

// SetCircuitBreakerState sets the breaker state gauge.
func (m *Metrics) SetCircuitBreakerState(open bool) {
	if open {
		m.CircuitBreakerState.Set(1)
	} else {
		m.CircuitBreakerState.Set(0)
	}
}
