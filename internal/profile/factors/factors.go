// Package factors is the library of scoring factor kinds a profile can
// compose. Each kind is a pure builder: given a spec it returns the weighted
// scoring function and, when the kind has a hard support bound, the blocking
// predicate that tests it.
//
// Support bounds drive recall-safe blocking. A predicate built here admits
// every pair the factor could score above zero; rejecting a candidate
// therefore caps its best possible confidence at 1 minus the factor weight.
// Whether that cap justifies blocking is the profile's call, not this
// package's.
package factors

import (
	"fmt"

	"linkage/internal/match"
)

// Factor kinds.
const (
	KindAmountProximity  = "amount_proximity"
	KindDateProximity    = "date_proximity"
	KindOppositeSign     = "opposite_sign"
	KindExactField       = "exact_field"
	KindNameSimilarity   = "name_similarity"
	KindNumericProximity = "numeric_proximity"
)

// Spec is one factor entry in a profile document.
type Spec struct {
	// Kind selects the builder. Required.
	Kind string `toml:"kind" json:"kind"`
	// Field names the entity field both records are compared on. Required.
	Field string `toml:"field" json:"field"`
	// Name labels the factor in breakdowns and metrics. Defaults to Kind.
	Name string `toml:"name" json:"name,omitempty"`
	// Weight is this factor's share of the confidence. Required, positive.
	Weight float64 `toml:"weight" json:"weight"`
	// Blocking requests a pre-filter on this factor's support bound. The
	// profile enables it only when the recall bound holds.
	Blocking bool `toml:"blocking" json:"blocking,omitempty"`

	// Cutoff parameterizes proximity kinds: the relative delta (amount), the
	// absolute delta (numeric), or the minimum similarity ratio (name) at
	// which the score reaches zero.
	Cutoff float64 `toml:"cutoff" json:"cutoff,omitempty"`
	// WindowDays is the date_proximity decay window.
	WindowDays int `toml:"window_days" json:"window_days,omitempty"`
	// Fold makes exact_field comparison case-insensitive.
	Fold bool `toml:"fold" json:"fold,omitempty"`
}

// Label returns the factor's display name, falling back to its kind.
func (s Spec) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Kind
}

// Built is the output of a factor builder.
type Built struct {
	Factor match.Factor
	// Predicate tests the factor's hard support bound. Nil when the kind has
	// no zero-score region to test (an unbounded similarity, for example).
	Predicate *match.Predicate
}

// Kinds lists the supported factor kinds.
func Kinds() []string {
	return []string{
		KindAmountProximity,
		KindDateProximity,
		KindOppositeSign,
		KindExactField,
		KindNameSimilarity,
		KindNumericProximity,
	}
}

// Build constructs the scoring factor for a validated spec.
func Build(s Spec) (Built, error) {
	switch s.Kind {
	case KindAmountProximity:
		return buildAmountProximity(s)
	case KindDateProximity:
		return buildDateProximity(s)
	case KindOppositeSign:
		return buildOppositeSign(s)
	case KindExactField:
		return buildExactField(s)
	case KindNameSimilarity:
		return buildNameSimilarity(s)
	case KindNumericProximity:
		return buildNumericProximity(s)
	default:
		return Built{}, fmt.Errorf("unknown factor kind %q", s.Kind)
	}
}

// Validate checks the spec parameters for its kind. Weight and name
// uniqueness are profile-level concerns and are not checked here.
func (s Spec) Validate() error {
	if s.Field == "" {
		return fmt.Errorf("factor %q: field is required", s.Label())
	}
	switch s.Kind {
	case KindAmountProximity, KindNumericProximity:
		if s.Cutoff <= 0 {
			return fmt.Errorf("factor %q: cutoff must be positive", s.Label())
		}
	case KindDateProximity:
		if s.WindowDays <= 0 {
			return fmt.Errorf("factor %q: window_days must be positive", s.Label())
		}
	case KindNameSimilarity:
		if s.Cutoff < 0 || s.Cutoff >= 1 {
			return fmt.Errorf("factor %q: cutoff must be in [0,1)", s.Label())
		}
	case KindOppositeSign, KindExactField:
		// No parameters beyond the field.
	default:
		return fmt.Errorf("unknown factor kind %q", s.Kind)
	}
	return nil
}

// HasSupportBound reports whether this kind can back a blocking predicate.
func (s Spec) HasSupportBound() bool {
	switch s.Kind {
	case KindNameSimilarity:
		// Only a positive cutoff creates a zero-score region.
		return s.Cutoff > 0
	case KindAmountProximity, KindDateProximity, KindOppositeSign,
		KindExactField, KindNumericProximity:
		return true
	default:
		return false
	}
}
