package match

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedFactor always returns the given score.
func fixedFactor(name string, weight, score float64) Factor {
	return Factor{
		Name:   name,
		Weight: weight,
		Score: func(ctx context.Context, anchor, candidate Entity) (float64, error) {
			return score, nil
		},
	}
}

// slowFactor blocks for d or until the context ends.
func slowFactor(name string, weight float64, d time.Duration) Factor {
	return Factor{
		Name:   name,
		Weight: weight,
		Score: func(ctx context.Context, anchor, candidate Entity) (float64, error) {
			select {
			case <-time.After(d):
				return 1.0, nil
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		},
	}
}

func failingFactor(name string, weight float64, err error) Factor {
	return Factor{
		Name:   name,
		Weight: weight,
		Score: func(ctx context.Context, anchor, candidate Entity) (float64, error) {
			return 0, err
		},
	}
}

func testPair() (Entity, Entity) {
	anchor := NewRecord("txn-001", map[string]any{"amount": "125.00"})
	candidate := NewRecord("txn-002", map[string]any{"amount": "-125.00"})
	return anchor, candidate
}

func TestNewScorer_Validation(t *testing.T) {
	valid := func(ctx context.Context, anchor, candidate Entity) (float64, error) { return 1, nil }

	tests := []struct {
		name       string
		factors    []Factor
		wantReason string
	}{
		{
			"empty factor set",
			nil,
			"at least one factor is required",
		},
		{
			"unnamed factor",
			[]Factor{{Name: "", Weight: 1.0, Score: valid}},
			"factor name cannot be empty",
		},
		{
			"missing score function",
			[]Factor{{Name: "amount", Weight: 1.0}},
			`factor "amount" has no score function`,
		},
		{
			"duplicate name",
			[]Factor{
				{Name: "amount", Weight: 0.5, Score: valid},
				{Name: "amount", Weight: 0.5, Score: valid},
			},
			`duplicate factor "amount"`,
		},
		{
			"zero weight",
			[]Factor{
				{Name: "amount", Weight: 0, Score: valid},
				{Name: "date", Weight: 1.0, Score: valid},
			},
			`factor "amount" weight must be positive`,
		},
		{
			"negative weight",
			[]Factor{
				{Name: "amount", Weight: -0.2, Score: valid},
				{Name: "date", Weight: 1.2, Score: valid},
			},
			`factor "amount" weight must be positive`,
		},
		{
			"weights sum below one",
			[]Factor{
				{Name: "amount", Weight: 0.4, Score: valid},
				{Name: "date", Weight: 0.4, Score: valid},
			},
			"factor weights must sum to 1.0",
		},
		{
			"weights sum above one",
			[]Factor{
				{Name: "amount", Weight: 0.7, Score: valid},
				{Name: "date", Weight: 0.7, Score: valid},
			},
			"factor weights must sum to 1.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewScorer(tt.factors)
			require.Error(t, err)

			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, "scorer", cfgErr.Component)
			assert.Contains(t, cfgErr.Reason, tt.wantReason)
		})
	}
}

func TestNewScorer_WeightToleranceBoundary(t *testing.T) {
	valid := func(ctx context.Context, anchor, candidate Entity) (float64, error) { return 1, nil }

	// Representation drift inside the tolerance is accepted.
	_, err := NewScorer([]Factor{
		{Name: "a", Weight: 0.3333333, Score: valid},
		{Name: "b", Weight: 0.3333333, Score: valid},
		{Name: "c", Weight: 0.3333334, Score: valid},
	})
	assert.NoError(t, err)

	// Real configuration mistakes are not.
	_, err = NewScorer([]Factor{
		{Name: "a", Weight: 0.5, Score: valid},
		{Name: "b", Weight: 0.50001, Score: valid},
	})
	assert.Error(t, err)
}

func TestScore_WeightedSum(t *testing.T) {
	scorer, err := NewScorer([]Factor{
		fixedFactor("amount_proximity", 0.4, 1.0),
		fixedFactor("date_proximity", 0.3, 0.857),
		fixedFactor("opposite_sign", 0.2, 1.0),
		fixedFactor("account_match", 0.1, 1.0),
	})
	require.NoError(t, err)

	anchor, candidate := testPair()
	score, err := scorer.Score(context.Background(), anchor, candidate)
	require.NoError(t, err)

	// 0.4*1.0 + 0.3*0.857 + 0.2*1.0 + 0.1*1.0 = 0.9571
	assert.InDelta(t, 0.9571, score.Confidence, 1e-9)

	require.Len(t, score.Factors, 4)
	assert.Equal(t, "amount_proximity", score.Factors[0].Name, "breakdown keeps registration order")
	for _, f := range score.Factors {
		assert.Equal(t, FactorOK, f.Status)
		assert.Empty(t, f.Warning)
	}
	assert.Empty(t, score.Warnings())
}

func TestScore_Deterministic(t *testing.T) {
	scorer, err := NewScorer([]Factor{
		fixedFactor("amount_proximity", 0.6, 0.73),
		fixedFactor("date_proximity", 0.4, 0.21),
	})
	require.NoError(t, err)

	anchor, candidate := testPair()
	first, err := scorer.Score(context.Background(), anchor, candidate)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		again, err := scorer.Score(context.Background(), anchor, candidate)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestScore_ClampsOutOfRangeFactor(t *testing.T) {
	tests := []struct {
		name      string
		raw       float64
		wantScore float64
	}{
		{"above one", 1.5, 1.0},
		{"below zero", -0.25, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scorer, err := NewScorer([]Factor{
				fixedFactor("wild", 0.5, tt.raw),
				fixedFactor("tame", 0.5, 0.5),
			})
			require.NoError(t, err)

			anchor, candidate := testPair()
			score, err := scorer.Score(context.Background(), anchor, candidate)
			require.NoError(t, err)

			assert.Equal(t, tt.wantScore, score.Factors[0].Score)
			assert.Equal(t, FactorOK, score.Factors[0].Status)
			assert.Contains(t, score.Factors[0].Warning, "clamped")
			assert.InDelta(t, 0.5*tt.wantScore+0.25, score.Confidence, 1e-9)
		})
	}
}

func TestScore_FactorTimeoutContributesZero(t *testing.T) {
	scorer, err := NewScorer([]Factor{
		slowFactor("stalled", 0.6, time.Second),
		fixedFactor("quick", 0.4, 1.0),
	}, WithFactorTimeout(5*time.Millisecond))
	require.NoError(t, err)

	anchor, candidate := testPair()
	score, err := scorer.Score(context.Background(), anchor, candidate)
	require.NoError(t, err, "a factor timeout degrades the score, it does not fail the candidate")

	require.Len(t, score.Factors, 2)
	stalled := score.Factors[0]
	assert.Equal(t, FactorTimedOut, stalled.Status)
	assert.Equal(t, 0.0, stalled.Score)
	assert.Contains(t, stalled.Warning, "exceeded factor budget")

	// Only the quick factor contributes.
	assert.InDelta(t, 0.4, score.Confidence, 1e-9)
	assert.Len(t, score.Warnings(), 1)
}

func TestScore_FactorErrorAbortsCandidate(t *testing.T) {
	boom := errors.New("field amount is not numeric")
	scorer, err := NewScorer([]Factor{
		fixedFactor("fine", 0.5, 1.0),
		failingFactor("broken", 0.5, boom),
	})
	require.NoError(t, err)

	anchor, candidate := testPair()
	score, err := scorer.Score(context.Background(), anchor, candidate)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `factor "broken"`)
	assert.Contains(t, err.Error(), "field amount is not numeric")

	// The partial breakdown survives for failure metadata.
	require.Len(t, score.Factors, 2)
	assert.Equal(t, FactorOK, score.Factors[0].Status)
	assert.Equal(t, FactorErrored, score.Factors[1].Status)
}

func TestScore_ParentCancellationAbortsWithContextError(t *testing.T) {
	scorer, err := NewScorer([]Factor{fixedFactor("only", 1.0, 1.0)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	anchor, candidate := testPair()
	_, err = scorer.Score(ctx, anchor, candidate)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFactors_ReturnsCopy(t *testing.T) {
	scorer, err := NewScorer([]Factor{
		fixedFactor("a", 0.5, 1.0),
		fixedFactor("b", 0.5, 1.0),
	})
	require.NoError(t, err)

	got := scorer.Factors()
	got[0].Name = "mutated"

	assert.Equal(t, "a", scorer.Factors()[0].Name)
}
