package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the match module.
type Metrics struct {
	// Full detection run latency
	DetectLatency prometheus.Histogram

	// Candidate counts by pipeline stage
	Candidates *prometheus.CounterVec

	// Candidates removed by the blocking pre-filter
	Blocked prometheus.Counter

	// Candidates dropped for cause, by stage
	Dropped *prometheus.CounterVec

	// Factor budget exhaustions by factor name
	FactorTimeouts *prometheus.CounterVec

	// Factor failures by factor name
	FactorErrors *prometheus.CounterVec

	// Runs interrupted by the overall budget
	PartialResults prometheus.Counter

	// Decision outcomes by decision and profile
	DecisionOutcome *prometheus.CounterVec

	// Threshold update attempts by result
	ThresholdUpdates *prometheus.CounterVec
}

// New creates a Metrics instance with all match module metrics registered.
func New() *Metrics {
	return &Metrics{
		DetectLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "linkage_match_detect_duration_seconds",
			Help:    "Duration of full detection runs including blocking and scoring",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),

		Candidates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "linkage_match_candidates_total",
			Help: "Candidates seen by pipeline stage",
		}, []string{"stage"}), // stage: "pooled", "admitted", "evaluated"

		Blocked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "linkage_match_blocked_total",
			Help: "Candidates removed by the blocking pre-filter",
		}),

		Dropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "linkage_match_dropped_total",
			Help: "Candidates dropped for cause by stage",
		}, []string{"stage"}), // stage: "blocking", "scoring"

		FactorTimeouts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "linkage_match_factor_timeouts_total",
			Help: "Factor evaluations that exceeded their budget",
		}, []string{"factor"}),

		FactorErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "linkage_match_factor_errors_total",
			Help: "Factor evaluations that failed",
		}, []string{"factor"}),

		PartialResults: promauto.NewCounter(prometheus.CounterOpts{
			Name: "linkage_match_partial_results_total",
			Help: "Detection runs interrupted by the overall budget",
		}),

		DecisionOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "linkage_match_decisions_total",
			Help: "Classification outcomes by decision and profile",
		}, []string{"decision", "profile"}),

		ThresholdUpdates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "linkage_match_threshold_updates_total",
			Help: "Threshold update attempts by result",
		}, []string{"result"}), // result: "applied", "rejected"
	}
}

// ObserveDetectLatency records the duration of a detection run.
func (m *Metrics) ObserveDetectLatency(d time.Duration) {
	if m != nil {
		m.DetectLatency.Observe(d.Seconds())
	}
}

// AddCandidates records stage counts for one run.
func (m *Metrics) AddCandidates(pooled, admitted, evaluated int) {
	if m != nil {
		m.Candidates.WithLabelValues("pooled").Add(float64(pooled))
		m.Candidates.WithLabelValues("admitted").Add(float64(admitted))
		m.Candidates.WithLabelValues("evaluated").Add(float64(evaluated))
	}
}

// IncrementBlocked records a candidate removed by the pre-filter.
func (m *Metrics) IncrementBlocked() {
	if m != nil {
		m.Blocked.Inc()
	}
}

// IncrementDropped records a candidate dropped for cause.
func (m *Metrics) IncrementDropped(stage string) {
	if m != nil {
		m.Dropped.WithLabelValues(stage).Inc()
	}
}

// IncrementFactorTimeout records a factor budget exhaustion.
func (m *Metrics) IncrementFactorTimeout(factor string) {
	if m != nil {
		m.FactorTimeouts.WithLabelValues(factor).Inc()
	}
}

// IncrementFactorError records a factor failure.
func (m *Metrics) IncrementFactorError(factor string) {
	if m != nil {
		m.FactorErrors.WithLabelValues(factor).Inc()
	}
}

// IncrementPartial records a run cut short by the overall budget.
func (m *Metrics) IncrementPartial() {
	if m != nil {
		m.PartialResults.Inc()
	}
}

// IncrementDecision records a classification outcome.
func (m *Metrics) IncrementDecision(decision, profile string) {
	if m != nil {
		m.DecisionOutcome.WithLabelValues(decision, profile).Inc()
	}
}

// IncrementThresholdUpdate records a threshold update attempt.
func (m *Metrics) IncrementThresholdUpdate(result string) {
	if m != nil {
		m.ThresholdUpdates.WithLabelValues(result).Inc()
	}
}
