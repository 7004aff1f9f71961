package match

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"linkage/internal/match/metrics"
)

// DefaultWorkers bounds concurrent candidate scoring per detection run.
const DefaultWorkers = 8

// DefaultDetectTimeout bounds a detection run when the request does not
// carry its own budget.
const DefaultDetectTimeout = 2 * time.Second

const tracerName = "linkage/internal/match"

// Detector orchestrates a detection run: blocking, bounded-concurrency
// scoring, and deterministic ranking. One Detector serves one profile and is
// safe for concurrent use.
type Detector struct {
	scorer         *Scorer
	blocker        *Blocker
	workers        int
	defaultTimeout time.Duration
	logger         *slog.Logger
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

// DetectorOption configures optional detector behavior.
type DetectorOption func(*Detector)

// WithBlocker installs a candidate pre-filter.
func WithBlocker(b *Blocker) DetectorOption {
	return func(d *Detector) { d.blocker = b }
}

// WithWorkers overrides the scoring concurrency bound.
func WithWorkers(n int) DetectorOption {
	return func(d *Detector) { d.workers = n }
}

// WithDefaultTimeout overrides the fallback run budget.
func WithDefaultTimeout(t time.Duration) DetectorOption {
	return func(d *Detector) {
		if t > 0 {
			d.defaultTimeout = t
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) DetectorOption {
	return func(d *Detector) { d.logger = logger }
}

// WithMetrics attaches detection metrics.
func WithMetrics(m *metrics.Metrics) DetectorOption {
	return func(d *Detector) { d.metrics = m }
}

// NewDetector builds a Detector around a validated scorer.
func NewDetector(scorer *Scorer, opts ...DetectorOption) (*Detector, error) {
	if scorer == nil {
		return nil, &ConfigurationError{Component: "detector", Reason: "scorer is required"}
	}
	d := &Detector{
		scorer:         scorer,
		workers:        DefaultWorkers,
		defaultTimeout: DefaultDetectTimeout,
		tracer:         otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.workers <= 0 {
		return nil, &ConfigurationError{Component: "detector", Reason: fmt.Sprintf("workers must be positive, got %d", d.workers)}
	}
	return d, nil
}

// survivor is a candidate admitted by blocking, awaiting scoring.
type survivor struct {
	entity   Entity
	position int
}

// scoringOutcome is the per-survivor scoring result, merged deterministically
// after all workers finish.
type scoringOutcome struct {
	score       *Score
	dropReason  string
	interrupted bool
}

// Detect runs the full pipeline for one anchor against a candidate pool.
//
// Failure containment: a candidate that cannot be blocked or scored is
// dropped with metadata and the run continues. Reaching the overall budget
// returns everything evaluated so far with Partial set; it is never an
// error. DetectionError is reserved for requests the engine cannot process
// at all.
func (d *Detector) Detect(ctx context.Context, req DetectRequest) (*Result, error) {
	if req.Anchor == nil {
		return nil, &DetectionError{Reason: "anchor is required"}
	}
	if req.Anchor.ID() == "" {
		return nil, &DetectionError{Reason: "anchor has no identifier"}
	}
	if req.MinConfidence < 0 || req.MinConfidence > 1 {
		return nil, &DetectionError{Reason: fmt.Sprintf("min confidence %v outside [0,1]", req.MinConfidence)}
	}
	for i, candidate := range req.Pool {
		if candidate == nil {
			return nil, &DetectionError{Reason: fmt.Sprintf("pool candidate at position %d is nil", i)}
		}
		if candidate.ID() == "" {
			return nil, &DetectionError{Reason: fmt.Sprintf("pool candidate at position %d has no identifier", i)}
		}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = d.defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ctx, span := d.tracer.Start(ctx, "match.Detect", trace.WithAttributes(
		attribute.Int("pool_size", len(req.Pool)),
		attribute.Float64("min_confidence", req.MinConfidence),
	))
	defer span.End()

	start := time.Now()
	result := &Result{}

	survivors := d.block(ctx, req, result)
	outcomes := d.scoreAll(ctx, req.Anchor, survivors)
	d.assemble(req, survivors, outcomes, result)

	if ctx.Err() != nil {
		result.Partial = true
	}

	elapsed := time.Since(start)
	d.metrics.ObserveDetectLatency(elapsed)
	d.metrics.AddCandidates(len(req.Pool), len(survivors), result.Evaluated)
	if result.Partial {
		d.metrics.IncrementPartial()
	}

	span.SetAttributes(
		attribute.Int("survivors", len(survivors)),
		attribute.Int("suggestions", len(result.Suggestions)),
		attribute.Int("dropped", len(result.Dropped)),
		attribute.Bool("partial", result.Partial),
	)

	if d.logger != nil {
		d.logger.DebugContext(ctx, "detection completed",
			"anchor_id", req.Anchor.ID(),
			"pool_size", len(req.Pool),
			"survivors", len(survivors),
			"suggestions", len(result.Suggestions),
			"dropped", len(result.Dropped),
			"partial", result.Partial,
			"duration_ms", elapsed.Milliseconds(),
		)
	}

	return result, nil
}

// block applies self-match exclusion and the blocking chain. Predicate
// failures drop the candidate; they never abort the run.
func (d *Detector) block(ctx context.Context, req DetectRequest, result *Result) []survivor {
	survivors := make([]survivor, 0, len(req.Pool))
	anchorID := req.Anchor.ID()

	for i, candidate := range req.Pool {
		if ctx.Err() != nil {
			// Remaining candidates are unprocessed; Partial covers them.
			break
		}
		if candidate.ID() == anchorID {
			// A record never links to itself.
			continue
		}
		admitted, err := d.blocker.Admit(req.Anchor, candidate)
		if err != nil {
			result.Dropped = append(result.Dropped, DroppedCandidate{
				CandidateID:  candidate.ID(),
				PoolPosition: i,
				Stage:        DropStageBlocking,
				Reason:       err.Error(),
			})
			d.metrics.IncrementDropped(string(DropStageBlocking))
			continue
		}
		if !admitted {
			d.metrics.IncrementBlocked()
			continue
		}
		survivors = append(survivors, survivor{entity: candidate, position: i})
	}
	return survivors
}

// scoreAll fans survivors out to a bounded worker pool. Workers never return
// errors: results are collected by index so assembly stays deterministic
// regardless of completion order.
func (d *Detector) scoreAll(ctx context.Context, anchor Entity, survivors []survivor) []scoringOutcome {
	outcomes := make([]scoringOutcome, len(survivors))

	g := &errgroup.Group{}
	g.SetLimit(d.workers)

	for i, sv := range survivors {
		if ctx.Err() != nil {
			// No new work after cancellation; queued candidates stay
			// unprocessed and the interrupted marker keeps them out of
			// the dropped list.
			for j := i; j < len(survivors); j++ {
				outcomes[j].interrupted = true
			}
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				outcomes[i].interrupted = true
				return nil
			}
			score, err := d.scorer.Score(ctx, anchor, sv.entity)
			switch {
			case err != nil && ctx.Err() != nil:
				outcomes[i].interrupted = true
			case err != nil:
				outcomes[i].dropReason = err.Error()
				d.metrics.IncrementDropped(string(DropStageScoring))
			default:
				outcomes[i].score = &score
			}
			d.observeFactorOutcomes(score.Factors)
			return nil
		})
	}

	_ = g.Wait()
	return outcomes
}

// assemble merges scoring outcomes in pool order, applies the confidence
// floor, and ranks the suggestions.
func (d *Detector) assemble(req DetectRequest, survivors []survivor, outcomes []scoringOutcome, result *Result) {
	for i, outcome := range outcomes {
		sv := survivors[i]
		switch {
		case outcome.interrupted:
			result.Partial = true
		case outcome.dropReason != "":
			result.Dropped = append(result.Dropped, DroppedCandidate{
				CandidateID:  sv.entity.ID(),
				PoolPosition: sv.position,
				Stage:        DropStageScoring,
				Reason:       outcome.dropReason,
			})
		case outcome.score != nil:
			result.Evaluated++
			if outcome.score.Confidence >= req.MinConfidence {
				result.Suggestions = append(result.Suggestions, Suggestion{
					CandidateID:  sv.entity.ID(),
					PoolPosition: sv.position,
					Confidence:   outcome.score.Confidence,
					Factors:      outcome.score.Factors,
				})
			}
		}
	}

	sort.Slice(result.Suggestions, func(a, b int) bool {
		sa, sb := result.Suggestions[a], result.Suggestions[b]
		if sa.Confidence != sb.Confidence {
			return sa.Confidence > sb.Confidence
		}
		if sa.PoolPosition != sb.PoolPosition {
			return sa.PoolPosition < sb.PoolPosition
		}
		return sa.CandidateID < sb.CandidateID
	})
}

func (d *Detector) observeFactorOutcomes(outcomes []FactorOutcome) {
	for _, o := range outcomes {
		switch o.Status {
		case FactorTimedOut:
			d.metrics.IncrementFactorTimeout(o.Name)
		case FactorErrored:
			d.metrics.IncrementFactorError(o.Name)
		}
	}
}
