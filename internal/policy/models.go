// Package policy owns confidence classification: threshold sets, decision
// bands, and safe runtime re-tuning.
//
// Reads are lock-free so classification can sit on the hot path of every
// detection run; writes are serialized and atomic so a reader can never
// observe a half-applied threshold set.
package policy

import (
	"fmt"
	"math"
	"time"
)

// Decision is the classification band for a confidence value.
type Decision string

const (
	// DecisionAutoLink marks confidence high enough to link without review.
	DecisionAutoLink Decision = "auto_link"
	// DecisionAutoSuggest marks confidence worth surfacing for one-click
	// confirmation.
	DecisionAutoSuggest Decision = "auto_suggest"
	// DecisionManualReview marks confidence that needs a human judgment.
	DecisionManualReview Decision = "manual_review"
	// DecisionNoMatch marks confidence too low to surface at all.
	DecisionNoMatch Decision = "no_match"
)

// ThresholdSet holds the three band boundaries.
//
// Invariants:
//   - 0 <= Manual < AutoSuggest < AutoLink <= 1, strictly between bands
//   - a set is validated as a whole; there is no partial application
//
// The strict ordering is what makes the four bands well-defined: allowing
// equality would collapse a band to zero width and make classification
// ambiguous at the boundary.
type ThresholdSet struct {
	// AutoLink is the floor for linking without review.
	AutoLink float64 `json:"auto_link"`
	// AutoSuggest is the floor for surfacing a suggestion.
	AutoSuggest float64 `json:"auto_suggest"`
	// Manual is the floor for queueing manual review.
	Manual float64 `json:"manual"`
}

// Validate checks the ordering invariant. The returned error names the
// violated constraint so operators can see exactly what to fix.
func (t ThresholdSet) Validate() error {
	// NaN compares false against everything and would slip through the
	// ordering checks below. TOML profiles can carry nan literals.
	if math.IsNaN(t.Manual) || math.IsNaN(t.AutoSuggest) || math.IsNaN(t.AutoLink) {
		return &InvalidThresholdError{
			Constraint: "thresholds are numbers",
			Reason:     "NaN is not a threshold",
		}
	}
	if t.Manual < 0 {
		return &InvalidThresholdError{
			Constraint: "0 <= manual",
			Reason:     fmt.Sprintf("manual is %v", t.Manual),
		}
	}
	if t.Manual >= t.AutoSuggest {
		return &InvalidThresholdError{
			Constraint: "manual < auto_suggest",
			Reason:     fmt.Sprintf("manual %v, auto_suggest %v", t.Manual, t.AutoSuggest),
		}
	}
	if t.AutoSuggest >= t.AutoLink {
		return &InvalidThresholdError{
			Constraint: "auto_suggest < auto_link",
			Reason:     fmt.Sprintf("auto_suggest %v, auto_link %v", t.AutoSuggest, t.AutoLink),
		}
	}
	if t.AutoLink > 1 {
		return &InvalidThresholdError{
			Constraint: "auto_link <= 1",
			Reason:     fmt.Sprintf("auto_link is %v", t.AutoLink),
		}
	}
	return nil
}

// Classify maps a confidence value to its decision band. Pure and O(1).
func (t ThresholdSet) Classify(confidence float64) Decision {
	switch {
	case confidence >= t.AutoLink:
		return DecisionAutoLink
	case confidence >= t.AutoSuggest:
		return DecisionAutoSuggest
	case confidence >= t.Manual:
		return DecisionManualReview
	default:
		return DecisionNoMatch
	}
}

// ThresholdFor returns the boundary that produced a decision. This is what
// explanations cite as threshold_used.
func (t ThresholdSet) ThresholdFor(decision Decision) (name string, value float64) {
	switch decision {
	case DecisionAutoLink:
		return "auto_link", t.AutoLink
	case DecisionAutoSuggest:
		return "auto_suggest", t.AutoSuggest
	case DecisionManualReview:
		return "manual", t.Manual
	default:
		return "manual", t.Manual
	}
}

// Snapshot is one immutable generation of the active configuration. Readers
// hold a snapshot for the duration of a request so every value they derive
// (decision, explanation, response) comes from the same generation.
type Snapshot struct {
	Thresholds ThresholdSet
	Version    uint64
	UpdatedAt  time.Time
	UpdatedBy  string
}

// UpdateRequest is a partial threshold update. Nil fields keep their current
// values; the merged set is validated as a whole before anything becomes
// visible.
type UpdateRequest struct {
	AutoLink    *float64
	AutoSuggest *float64
	Manual      *float64
	ChangedBy   string
	Reason      string
}

// ChangeLogEntry records one applied threshold update.
type ChangeLogEntry struct {
	Version   uint64       `json:"version"`
	Previous  ThresholdSet `json:"previous"`
	Current   ThresholdSet `json:"current"`
	ChangedBy string       `json:"changed_by"`
	Reason    string       `json:"reason,omitempty"`
	ChangedAt time.Time    `json:"changed_at"`
}

// InvalidThresholdError reports a threshold set that violates the ordering
// invariant. When returned from Update, the active set is untouched.
type InvalidThresholdError struct {
	// Constraint is the violated rule, e.g. "auto_suggest < auto_link".
	Constraint string
	Reason     string
}

func (e *InvalidThresholdError) Error() string {
	return fmt.Sprintf("invalid thresholds: %s violated (%s)", e.Constraint, e.Reason)
}
