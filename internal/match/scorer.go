package match

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// WeightTolerance is the permitted absolute drift of the factor weight sum
// from 1.0. It absorbs float representation error, nothing more.
const WeightTolerance = 1e-6

// DefaultFactorTimeout bounds a single factor evaluation. Factors are local
// comparisons and should finish in microseconds; the budget exists so a
// misbehaving factor degrades one dimension instead of stalling the run.
const DefaultFactorTimeout = 50 * time.Millisecond

// Scorer computes weighted multi-factor confidence for anchor/candidate
// pairs. Construction validates the factor set; a Scorer that exists is
// always safe to use.
type Scorer struct {
	factors       []Factor
	factorTimeout time.Duration
	logger        *slog.Logger
}

// ScorerOption configures optional scorer behavior.
type ScorerOption func(*Scorer)

// WithFactorTimeout overrides the per-factor evaluation budget.
func WithFactorTimeout(d time.Duration) ScorerOption {
	return func(s *Scorer) {
		if d > 0 {
			s.factorTimeout = d
		}
	}
}

// WithScorerLogger attaches a logger for degradation warnings.
func WithScorerLogger(logger *slog.Logger) ScorerOption {
	return func(s *Scorer) { s.logger = logger }
}

// NewScorer validates the factor set and builds a Scorer.
//
// Errors: returns *ConfigurationError when the set is empty, a factor is
// unnamed, misses its score function, repeats a name, carries a non-positive
// weight, or the weights do not sum to 1.0 within WeightTolerance.
func NewScorer(factors []Factor, opts ...ScorerOption) (*Scorer, error) {
	if len(factors) == 0 {
		return nil, &ConfigurationError{Component: "scorer", Reason: "at least one factor is required"}
	}

	seen := make(map[string]bool, len(factors))
	sum := 0.0
	for _, f := range factors {
		if f.Name == "" {
			return nil, &ConfigurationError{Component: "scorer", Reason: "factor name cannot be empty"}
		}
		if f.Score == nil {
			return nil, &ConfigurationError{Component: "scorer", Reason: fmt.Sprintf("factor %q has no score function", f.Name)}
		}
		if seen[f.Name] {
			return nil, &ConfigurationError{Component: "scorer", Reason: fmt.Sprintf("duplicate factor %q", f.Name)}
		}
		seen[f.Name] = true
		if f.Weight <= 0 {
			return nil, &ConfigurationError{Component: "scorer", Reason: fmt.Sprintf("factor %q weight must be positive, got %v", f.Name, f.Weight)}
		}
		sum += f.Weight
	}
	if diff := sum - 1.0; diff > WeightTolerance || diff < -WeightTolerance {
		return nil, &ConfigurationError{Component: "scorer", Reason: fmt.Sprintf("factor weights must sum to 1.0, got %v", sum)}
	}

	s := &Scorer{
		factors:       append([]Factor(nil), factors...),
		factorTimeout: DefaultFactorTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Factors returns the validated factor set in registration order.
func (s *Scorer) Factors() []Factor {
	return append([]Factor(nil), s.factors...)
}

// Score evaluates every factor for the pair and returns the weighted
// confidence with a per-factor breakdown.
//
// Degradation rules:
//   - a factor exceeding its budget contributes 0.0 and is recorded as
//     timed_out with a warning; scoring continues
//   - raw scores outside [0,1] are clamped and flagged
//   - a factor returning an error aborts this candidate only; the partial
//     breakdown rides along in the returned Score for failure metadata
//
// A cancelled parent context aborts the candidate with the context error;
// the in-flight factor call may still complete but no new one is started.
func (s *Scorer) Score(ctx context.Context, anchor, candidate Entity) (Score, error) {
	outcomes := make([]FactorOutcome, 0, len(s.factors))
	confidence := 0.0

	for _, f := range s.factors {
		if err := ctx.Err(); err != nil {
			return Score{Factors: outcomes}, err
		}

		outcome, err := s.scoreFactor(ctx, f, anchor, candidate)
		if err != nil {
			// Parent context ended mid-factor; the candidate is unprocessed.
			return Score{Factors: outcomes}, err
		}
		outcomes = append(outcomes, outcome)

		if outcome.Status == FactorErrored {
			if s.logger != nil {
				s.logger.WarnContext(ctx, "factor evaluation failed",
					"factor", f.Name,
					"candidate_id", candidate.ID(),
					"warning", outcome.Warning,
				)
			}
			return Score{Factors: outcomes}, fmt.Errorf("factor %q: %s", f.Name, outcome.Warning)
		}
		confidence += f.Weight * outcome.Score
	}

	return Score{Confidence: clamp01(confidence), Factors: outcomes}, nil
}

// scoreFactor runs one factor under its budget. The returned error is
// non-nil only when the parent context ended; factor-level failures are
// reported through the outcome status.
func (s *Scorer) scoreFactor(ctx context.Context, f Factor, anchor, candidate Entity) (FactorOutcome, error) {
	outcome := FactorOutcome{Name: f.Name, Weight: f.Weight}

	fctx, cancel := context.WithTimeout(ctx, s.factorTimeout)
	defer cancel()

	type factorResult struct {
		score float64
		err   error
	}
	resultCh := make(chan factorResult, 1)
	go func() {
		score, err := f.Score(fctx, anchor, candidate)
		resultCh <- factorResult{score: score, err: err}
	}()

	select {
	case r := <-resultCh:
		if r.err != nil {
			if err := ctx.Err(); err != nil {
				// Parent ended mid-factor; the candidate is unprocessed.
				return outcome, err
			}
			if fctx.Err() != nil {
				// The factor surfaced its own deadline; same as a timeout.
				outcome.Status = FactorTimedOut
				outcome.Warning = "evaluation exceeded factor budget"
				return outcome, nil
			}
			outcome.Status = FactorErrored
			outcome.Warning = r.err.Error()
			return outcome, nil
		}
		outcome.Status = FactorOK
		outcome.Score = clamp01(r.score)
		if r.score != outcome.Score {
			outcome.Warning = fmt.Sprintf("raw score %v clamped to %v", r.score, outcome.Score)
		}
		return outcome, nil

	case <-fctx.Done():
		if err := ctx.Err(); err != nil {
			return outcome, err
		}
		if s.logger != nil {
			s.logger.WarnContext(ctx, "factor evaluation timed out",
				"factor", f.Name,
				"candidate_id", candidate.ID(),
				"budget", s.factorTimeout,
			)
		}
		outcome.Status = FactorTimedOut
		outcome.Warning = "evaluation exceeded factor budget"
		return outcome, nil
	}
}

// clamp01 bounds v to [0,1]. Factor implementations and float accumulation
// may drift slightly outside the range.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
