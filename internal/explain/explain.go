// Package explain renders human-readable rationales for link decisions.
//
// Everything in this package is a pure function of its inputs: the factor
// breakdown produced by scoring and the threshold set the decision was
// classified against. Explanations are built after the fact and never
// influence the decision itself.
package explain

import (
	"fmt"

	"linkage/internal/match"
	"linkage/internal/policy"
)

// Explanation describes why a confidence score landed in its decision band
// and what an operator is expected to do with it.
type Explanation struct {
	Decision          policy.Decision       `json:"decision"`
	Confidence        float64               `json:"confidence"`
	ThresholdUsed     string                `json:"threshold_used"`
	ThresholdValue    float64               `json:"threshold_value"`
	Rationale         string                `json:"rationale"`
	TopFactor         string                `json:"top_factor,omitempty"`
	TopContribution   float64               `json:"top_contribution,omitempty"`
	RecommendedAction string                `json:"recommended_action"`
	Factors           []match.FactorOutcome `json:"factors,omitempty"`
}

// recommendedActions maps each decision band to its fixed operator guidance.
// The wording is part of the API surface; downstream queues key off it.
var recommendedActions = map[policy.Decision]string{
	policy.DecisionAutoLink:     "create the link automatically",
	policy.DecisionAutoSuggest:  "queue the suggestion for reviewer confirmation",
	policy.DecisionManualReview: "route to manual review",
	policy.DecisionNoMatch:      "take no action",
}

// Explain builds the rationale for a scored candidate. The threshold cited is
// the floor of the band the confidence landed in, except for no_match which
// is explained against the manual floor it failed to reach.
func Explain(score match.Score, decision policy.Decision, set policy.ThresholdSet) Explanation {
	name, value := set.ThresholdFor(decision)

	exp := Explanation{
		Decision:          decision,
		Confidence:        score.Confidence,
		ThresholdUsed:     name,
		ThresholdValue:    value,
		RecommendedAction: recommendedActions[decision],
		Factors:           score.Factors,
	}

	if factor, contribution, ok := topContributor(score.Factors); ok {
		exp.TopFactor = factor
		exp.TopContribution = contribution
		exp.Rationale = fmt.Sprintf("%s; strongest signal was %s contributing %.4f",
			bandClause(score.Confidence, decision, name, value), factor, contribution)
		return exp
	}

	exp.Rationale = bandClause(score.Confidence, decision, name, value)
	return exp
}

// ExplainClassification builds a rationale when only a bare confidence is
// available, with no factor breakdown to cite.
func ExplainClassification(confidence float64, decision policy.Decision, set policy.ThresholdSet) Explanation {
	return Explain(match.Score{Confidence: confidence}, decision, set)
}

func bandClause(confidence float64, decision policy.Decision, threshold string, value float64) string {
	if decision == policy.DecisionNoMatch {
		return fmt.Sprintf("confidence %.4f falls below the %s threshold of %.4f", confidence, threshold, value)
	}
	return fmt.Sprintf("confidence %.4f meets the %s threshold of %.4f", confidence, threshold, value)
}

// topContributor returns the factor with the largest weighted contribution.
// Ties keep the earliest factor so explanations stay deterministic for a
// given profile ordering. Timed-out and errored factors contribute zero and
// are only cited when every factor is zero.
func topContributor(factors []match.FactorOutcome) (string, float64, bool) {
	if len(factors) == 0 {
		return "", 0, false
	}
	best := 0
	for i := 1; i < len(factors); i++ {
		if factors[i].Contribution() > factors[best].Contribution() {
			best = i
		}
	}
	return factors[best].Name, factors[best].Contribution(), true
}
