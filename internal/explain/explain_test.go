package explain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkage/internal/match"
	"linkage/internal/policy"
)

func thresholds() policy.ThresholdSet {
	return policy.ThresholdSet{AutoLink: 0.95, AutoSuggest: 0.70, Manual: 0.50}
}

func TestExplain_CitesBandFloorAndTopFactor(t *testing.T) {
	score := match.Score{
		Confidence: 0.957,
		Factors: []match.FactorOutcome{
			{Name: "amount_proximity", Weight: 0.4, Score: 1.0, Status: match.FactorOK},
			{Name: "date_proximity", Weight: 0.3, Score: 0.857, Status: match.FactorOK},
			{Name: "opposite_sign", Weight: 0.2, Score: 1.0, Status: match.FactorOK},
			{Name: "account_match", Weight: 0.1, Score: 1.0, Status: match.FactorOK},
		},
	}

	exp := Explain(score, policy.DecisionAutoLink, thresholds())

	assert.Equal(t, policy.DecisionAutoLink, exp.Decision)
	assert.Equal(t, "auto_link", exp.ThresholdUsed)
	assert.Equal(t, 0.95, exp.ThresholdValue)
	assert.Equal(t, "amount_proximity", exp.TopFactor, "0.4*1.0 beats every other contribution")
	assert.InDelta(t, 0.4, exp.TopContribution, 1e-9)
	assert.Contains(t, exp.Rationale, "auto_link")
	assert.Contains(t, exp.Rationale, "0.9500")
	assert.Contains(t, exp.Rationale, "amount_proximity")
	assert.Equal(t, "create the link automatically", exp.RecommendedAction)
}

func TestExplain_NoMatchCitesFailedFloor(t *testing.T) {
	exp := ExplainClassification(0.42, policy.DecisionNoMatch, thresholds())

	assert.Equal(t, "manual", exp.ThresholdUsed)
	assert.Equal(t, 0.50, exp.ThresholdValue)
	assert.Contains(t, exp.Rationale, "falls below")
	assert.Empty(t, exp.TopFactor)
	assert.Equal(t, "take no action", exp.RecommendedAction)
}

func TestExplain_RecommendedActionPerBand(t *testing.T) {
	tests := []struct {
		decision policy.Decision
		want     string
	}{
		{policy.DecisionAutoLink, "create the link automatically"},
		{policy.DecisionAutoSuggest, "queue the suggestion for reviewer confirmation"},
		{policy.DecisionManualReview, "route to manual review"},
		{policy.DecisionNoMatch, "take no action"},
	}

	for _, tt := range tests {
		t.Run(string(tt.decision), func(t *testing.T) {
			exp := ExplainClassification(0.5, tt.decision, thresholds())
			assert.Equal(t, tt.want, exp.RecommendedAction)
		})
	}
}

func TestExplain_TieKeepsEarliestFactor(t *testing.T) {
	score := match.Score{
		Confidence: 0.5,
		Factors: []match.FactorOutcome{
			{Name: "first", Weight: 0.5, Score: 0.5, Status: match.FactorOK},
			{Name: "second", Weight: 0.5, Score: 0.5, Status: match.FactorOK},
		},
	}

	exp := Explain(score, policy.DecisionManualReview, thresholds())
	assert.Equal(t, "first", exp.TopFactor)
}

func TestExplain_TimedOutFactorsLoseToLiveOnes(t *testing.T) {
	score := match.Score{
		Confidence: 0.24,
		Factors: []match.FactorOutcome{
			{Name: "heavy", Weight: 0.6, Score: 0, Status: match.FactorTimedOut, Warning: "evaluation exceeded factor budget"},
			{Name: "light", Weight: 0.4, Score: 0.6, Status: match.FactorOK},
		},
	}

	exp := Explain(score, policy.DecisionNoMatch, thresholds())
	assert.Equal(t, "light", exp.TopFactor, "a timed-out factor contributes zero")
	require.Len(t, exp.Factors, 2)
	assert.Equal(t, match.FactorTimedOut, exp.Factors[0].Status)
}
