// Package metrics provides observability for the ratelimit module.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks budget checks and the health of the primary store.
type Metrics struct {
	// Budget checks by class and outcome
	Checks *prometheus.CounterVec

	// Checks answered by the in-memory fallback store
	DegradedChecks prometheus.Counter

	// Primary store circuit state (0 closed, 1 open)
	BreakerOpen prometheus.Gauge

	// Admin budget resets
	Resets prometheus.Counter
}

// New creates a Metrics instance with all ratelimit metrics registered.
func New() *Metrics {
	return &Metrics{
		Checks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "linkage_ratelimit_checks_total",
			Help: "Budget checks by class and outcome",
		}, []string{"class", "outcome"}), // outcome: "allowed", "denied", "bypassed"

		DegradedChecks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "linkage_ratelimit_degraded_checks_total",
			Help: "Budget checks answered by the in-memory fallback store",
		}),

		BreakerOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "linkage_ratelimit_breaker_open",
			Help: "Whether the primary store circuit is open (1) or closed (0)",
		}),

		Resets: promauto.NewCounter(prometheus.CounterOpts{
			Name: "linkage_ratelimit_resets_total",
			Help: "Admin budget resets",
		}),
	}
}

// RecordCheck records one budget check outcome.
func (m *Metrics) RecordCheck(class, outcome string) {
	if m != nil {
		m.Checks.WithLabelValues(class, outcome).Inc()
	}
}

// RecordDegraded records a check served by the fallback store.
func (m *Metrics) RecordDegraded() {
	if m != nil {
		m.DegradedChecks.Inc()
	}
}

// SetBreakerOpen records the primary store circuit state.
func (m *Metrics) SetBreakerOpen(open bool) {
	if m != nil {
		if open {
			m.BreakerOpen.Set(1)
		} else {
			m.BreakerOpen.Set(0)
		}
	}
}

// RecordReset records an admin budget reset.
func (m *Metrics) RecordReset() {
	if m != nil {
		m.Resets.Inc()
	}
}
