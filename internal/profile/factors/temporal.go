package factors

import (
	"context"
	"math"

	"linkage/internal/match"
)

const hoursPerDay = 24.0

// buildDateProximity maps the day distance between two dates linearly onto
// [1,0] across the window: same day scores 1, a gap of window_days or more
// scores 0. Distance is fractional, so timestamped fields decay smoothly
// rather than in day steps.
func buildDateProximity(s Spec) (Built, error) {
	field := s.Field
	window := float64(s.WindowDays)

	gapDays := func(anchor, candidate match.Entity) (float64, error) {
		a, err := fieldTime(anchor, field)
		if err != nil {
			return 0, err
		}
		b, err := fieldTime(candidate, field)
		if err != nil {
			return 0, err
		}
		return math.Abs(a.Sub(b).Hours()) / hoursPerDay, nil
	}

	return Built{
		Factor: match.Factor{
			Name:   s.Label(),
			Weight: s.Weight,
			Score: func(ctx context.Context, anchor, candidate match.Entity) (float64, error) {
				gap, err := gapDays(anchor, candidate)
				if err != nil {
					return 0, err
				}
				if gap >= window {
					return 0, nil
				}
				return 1 - gap/window, nil
			},
		},
		Predicate: &match.Predicate{
			Name: s.Label(),
			Admit: func(anchor, candidate match.Entity) (bool, error) {
				gap, err := gapDays(anchor, candidate)
				if err != nil {
					return false, err
				}
				return gap < window, nil
			},
		},
	}, nil
}
