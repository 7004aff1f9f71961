package factors

import (
	"context"
	"math"

	"linkage/internal/match"
)

// buildNumericProximity maps the absolute delta between two floats linearly
// onto [1,0] across the cutoff. Use amount_proximity for money; this kind is
// for dimensionless quantities where an absolute tolerance makes sense.
func buildNumericProximity(s Spec) (Built, error) {
	field := s.Field
	cutoff := s.Cutoff

	delta := func(anchor, candidate match.Entity) (float64, error) {
		a, err := fieldFloat(anchor, field)
		if err != nil {
			return 0, err
		}
		b, err := fieldFloat(candidate, field)
		if err != nil {
			return 0, err
		}
		return math.Abs(a - b), nil
	}

	return Built{
		Factor: match.Factor{
			Name:   s.Label(),
			Weight: s.Weight,
			Score: func(ctx context.Context, anchor, candidate match.Entity) (float64, error) {
				d, err := delta(anchor, candidate)
				if err != nil {
					return 0, err
				}
				if d >= cutoff {
					return 0, nil
				}
				return 1 - d/cutoff, nil
			},
		},
		Predicate: &match.Predicate{
			Name: s.Label(),
			Admit: func(anchor, candidate match.Entity) (bool, error) {
				d, err := delta(anchor, candidate)
				if err != nil {
					return false, err
				}
				return d < cutoff, nil
			},
		},
	}, nil
}
