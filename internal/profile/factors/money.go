package factors

import (
	"context"

	"github.com/shopspring/decimal"

	"linkage/internal/match"
)

// buildAmountProximity compares monetary magnitudes. The relative delta
// between the absolute amounts maps linearly onto [1,0] across the cutoff:
// identical magnitudes score 1, a delta at or beyond cutoff scores 0. Signs
// are ignored here so a debit can match its credit; pair it with
// opposite_sign when direction matters.
func buildAmountProximity(s Spec) (Built, error) {
	field := s.Field
	cutoff := decimal.NewFromFloat(s.Cutoff)

	within := func(anchor, candidate match.Entity) (decimal.Decimal, bool, error) {
		a, err := fieldDecimal(anchor, field)
		if err != nil {
			return decimal.Zero, false, err
		}
		b, err := fieldDecimal(candidate, field)
		if err != nil {
			return decimal.Zero, false, err
		}
		rel := relativeDelta(a.Abs(), b.Abs())
		return rel, rel.LessThanOrEqual(cutoff), nil
	}

	return Built{
		Factor: match.Factor{
			Name:   s.Label(),
			Weight: s.Weight,
			Score: func(ctx context.Context, anchor, candidate match.Entity) (float64, error) {
				rel, ok, err := within(anchor, candidate)
				if err != nil {
					return 0, err
				}
				if !ok {
					return 0, nil
				}
				frac, _ := rel.Div(cutoff).Float64()
				return 1 - frac, nil
			},
		},
		Predicate: &match.Predicate{
			Name: s.Label(),
			Admit: func(anchor, candidate match.Entity) (bool, error) {
				_, ok, err := within(anchor, candidate)
				return ok, err
			},
		},
	}, nil
}

// relativeDelta returns |a-b| / max(|a|,|b|). Two zero amounts are identical
// by definition.
func relativeDelta(a, b decimal.Decimal) decimal.Decimal {
	base := a
	if b.GreaterThan(base) {
		base = b
	}
	if base.IsZero() {
		return decimal.Zero
	}
	return a.Sub(b).Abs().Div(base)
}

// buildOppositeSign scores 1 when the two signed amounts point in opposite
// directions and 0 otherwise. Zero amounts have no direction and never
// complement anything.
func buildOppositeSign(s Spec) (Built, error) {
	field := s.Field

	opposite := func(anchor, candidate match.Entity) (bool, error) {
		a, err := fieldDecimal(anchor, field)
		if err != nil {
			return false, err
		}
		b, err := fieldDecimal(candidate, field)
		if err != nil {
			return false, err
		}
		return a.Sign()*b.Sign() == -1, nil
	}

	return Built{
		Factor: match.Factor{
			Name:   s.Label(),
			Weight: s.Weight,
			Score: func(ctx context.Context, anchor, candidate match.Entity) (float64, error) {
				ok, err := opposite(anchor, candidate)
				if err != nil {
					return 0, err
				}
				if ok {
					return 1, nil
				}
				return 0, nil
			},
		},
		Predicate: &match.Predicate{Name: s.Label(), Admit: opposite},
	}, nil
}
