package security

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for security audit publishing.
type Metrics struct {
	Enqueued        prometheus.Counter
	Dropped         prometheus.Counter
	PersistFailures prometheus.Counter
	BufferLen       prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with security audit metrics registered.
func NewMetrics() *Metrics {
	return &Metrics{
		Enqueued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "linkage_audit_security_enqueued_total",
			Help: "Total number of security audit events accepted into the buffer",
		}),
		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "linkage_audit_security_dropped_total",
			Help: "Total number of security audit events evicted under buffer pressure",
		}),
		PersistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "linkage_audit_security_persist_failures_total",
			Help: "Total number of security audit event persistence failures",
		}),
		BufferLen: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "linkage_audit_security_buffer_len",
			Help: "Current number of security audit events waiting to be flushed",
		}),
	}
}

// IncEnqueued increments the enqueued counter.
func (m *Metrics) IncEnqueued() {
	m.Enqueued.Inc()
}

// IncDropped increments the dropped counter.
func (m *Metrics) IncDropped() {
	m.Dropped.Inc()
}

// IncPersistFailures increments the persist failures counter.
func (m *Metrics) IncPersistFailures() {
	m.PersistFailures.Inc()
}

// SetBufferLen sets the buffer length gauge.
func (m *Metrics) SetBufferLen(n int) {
	m.BufferLen.Set(float64(n))
}
