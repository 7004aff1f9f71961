// Package match implements the record linkage engine core: candidate
// blocking, multi-factor confidence scoring, and detection orchestration.
//
// The engine is deterministic and persistence-free. Given the same anchor,
// pool, and configuration it produces byte-identical results, which keeps
// detection runs reproducible for audit review.
package match

import (
	"context"
	"time"
)

// Entity is the capability surface the engine needs from a record. Callers
// own the concrete representation; the engine only reads identity and
// normalized field values.
type Entity interface {
	// ID returns the caller-assigned identifier. It must be non-empty and
	// stable for the duration of a detection run.
	ID() string
	// Field returns the named field value and whether it is present.
	Field(name string) (any, bool)
}

// Record is the canonical map-backed Entity used by transports, profiles,
// and tests.
type Record struct {
	id     string
	fields map[string]any
}

// NewRecord builds a Record. The fields map is not copied; callers must not
// mutate it after handing it to the engine.
func NewRecord(id string, fields map[string]any) Record {
	return Record{id: id, fields: fields}
}

// ID implements Entity.
func (r Record) ID() string { return r.id }

// Field implements Entity.
func (r Record) Field(name string) (any, bool) {
	v, ok := r.fields[name]
	return v, ok
}

// ScoreFunc scores the similarity of one candidate to the anchor along a
// single dimension. Implementations return a value in [0,1]; out-of-range
// values are clamped by the scorer. The context carries the per-factor
// deadline and must be honored by implementations that block.
type ScoreFunc func(ctx context.Context, anchor, candidate Entity) (float64, error)

// Factor is one weighted dimension of similarity.
type Factor struct {
	Name   string
	Weight float64
	Score  ScoreFunc
}

// FactorStatus tags how a factor evaluation ended.
type FactorStatus string

const (
	// FactorOK means the factor produced a usable score.
	FactorOK FactorStatus = "ok"
	// FactorTimedOut means the factor exceeded its budget and contributed 0.
	FactorTimedOut FactorStatus = "timed_out"
	// FactorErrored means the factor failed; the candidate is dropped.
	FactorErrored FactorStatus = "errored"
)

// FactorOutcome is the per-factor entry in a score breakdown.
type FactorOutcome struct {
	Name    string       `json:"name"`
	Weight  float64      `json:"weight"`
	Score   float64      `json:"score"`
	Status  FactorStatus `json:"status"`
	Warning string       `json:"warning,omitempty"`
}

// Contribution returns this factor's share of the final confidence.
func (o FactorOutcome) Contribution() float64 {
	return o.Weight * o.Score
}

// Score is the result of scoring one candidate against the anchor.
type Score struct {
	// Confidence is the weighted sum of factor scores, in [0,1].
	Confidence float64
	// Factors holds the per-factor breakdown in registration order.
	Factors []FactorOutcome
}

// Warnings collects the non-fatal degradations recorded during scoring.
func (s Score) Warnings() []string {
	var warnings []string
	for _, f := range s.Factors {
		if f.Warning != "" {
			warnings = append(warnings, f.Name+": "+f.Warning)
		}
	}
	return warnings
}

// Suggestion is one ranked linkage candidate.
type Suggestion struct {
	CandidateID  string
	PoolPosition int
	Confidence   float64
	Factors      []FactorOutcome
}

// DropStage names the phase in which a candidate was abandoned.
type DropStage string

const (
	DropStageBlocking DropStage = "blocking"
	DropStageScoring  DropStage = "scoring"
)

// DroppedCandidate records a candidate abandoned for cause. Candidates left
// unprocessed by an overall timeout are not listed here; the Partial flag
// covers them.
type DroppedCandidate struct {
	CandidateID  string
	PoolPosition int
	Stage        DropStage
	Reason       string
}

// DetectRequest is the input to a detection run.
type DetectRequest struct {
	// Anchor is the record to find links for. Required.
	Anchor Entity
	// Pool holds the candidates to evaluate. Position is significant: it is
	// the tie-break after confidence.
	Pool []Entity
	// MinConfidence is the inclusion floor for suggestions, in [0,1].
	MinConfidence float64
	// Timeout bounds the whole run. Zero means the detector default.
	Timeout time.Duration
}

// Result is the outcome of a detection run.
type Result struct {
	// Suggestions is ordered by confidence descending, then pool position
	// ascending, then candidate ID ascending.
	Suggestions []Suggestion
	// Dropped lists candidates abandoned for cause during this run.
	Dropped []DroppedCandidate
	// Partial is true when the overall timeout or a caller cancellation
	// interrupted the run. The returned suggestions are still valid; some
	// candidates were simply never evaluated.
	Partial bool
	// Evaluated counts candidates fully scored before the run ended.
	Evaluated int
}
