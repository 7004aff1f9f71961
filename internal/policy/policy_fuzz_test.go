//go:build go1.18

package policy

import (
	"math"
	"testing"
)

// FuzzThresholdSetValidate verifies that validation never panics and that
// every accepted set satisfies the strict band ordering, so Classify is
// well-defined at the boundaries.
func FuzzThresholdSetValidate(f *testing.F) {
	f.Add(0.95, 0.70, 0.50)
	f.Add(0.0, 0.0, 0.0)
	f.Add(1.0, 0.99, 0.98)
	f.Add(0.5, 0.7, 0.9)
	f.Add(-0.1, 0.5, 0.2)
	f.Add(1.5, 0.7, 0.5)
	f.Add(math.NaN(), 0.7, 0.5)
	f.Add(0.95, math.Inf(1), 0.5)

	f.Fuzz(func(t *testing.T, autoLink, autoSuggest, manual float64) {
		set := ThresholdSet{AutoLink: autoLink, AutoSuggest: autoSuggest, Manual: manual}
		if err := set.Validate(); err != nil {
			return
		}

		// Accepted sets satisfy 0 <= manual < auto_suggest < auto_link <= 1.
		if !(set.Manual >= 0 && set.Manual < set.AutoSuggest && set.AutoSuggest < set.AutoLink && set.AutoLink <= 1) {
			t.Errorf("Validate accepted out-of-order set %+v", set)
		}

		// Boundary values land in their own band.
		if got := set.Classify(set.AutoLink); got != DecisionAutoLink {
			t.Errorf("Classify(auto_link) = %s", got)
		}
		if got := set.Classify(set.AutoSuggest); got != DecisionAutoSuggest {
			t.Errorf("Classify(auto_suggest) = %s", got)
		}
		if got := set.Classify(set.Manual); got != DecisionManualReview {
			t.Errorf("Classify(manual) = %s", got)
		}
	})
}

// FuzzClassifyIsTotal verifies classification always lands in one of the four
// bands for arbitrary confidence values, including NaN and infinities.
func FuzzClassifyIsTotal(f *testing.F) {
	f.Add(0.9571)
	f.Add(0.0)
	f.Add(1.0)
	f.Add(-1.0)
	f.Add(math.NaN())
	f.Add(math.Inf(1))

	set := ThresholdSet{AutoLink: 0.95, AutoSuggest: 0.70, Manual: 0.50}
	f.Fuzz(func(t *testing.T, confidence float64) {
		switch set.Classify(confidence) {
		case DecisionAutoLink, DecisionAutoSuggest, DecisionManualReview, DecisionNoMatch:
		default:
			t.Errorf("Classify(%v) returned an unknown decision", confidence)
		}
	})
}
