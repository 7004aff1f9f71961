package factors

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"linkage/internal/match"
)

// buildExactField scores 1 on normalized equality and 0 otherwise. Values are
// trimmed before comparison; Fold additionally ignores case.
func buildExactField(s Spec) (Built, error) {
	field := s.Field
	fold := s.Fold

	equal := func(anchor, candidate match.Entity) (bool, error) {
		a, err := fieldString(anchor, field)
		if err != nil {
			return false, err
		}
		b, err := fieldString(candidate, field)
		if err != nil {
			return false, err
		}
		a, b = strings.TrimSpace(a), strings.TrimSpace(b)
		if fold {
			return strings.EqualFold(a, b), nil
		}
		return a == b, nil
	}

	return Built{
		Factor: match.Factor{
			Name:   s.Label(),
			Weight: s.Weight,
			Score: func(ctx context.Context, anchor, candidate match.Entity) (float64, error) {
				ok, err := equal(anchor, candidate)
				if err != nil {
					return 0, err
				}
				if ok {
					return 1, nil
				}
				return 0, nil
			},
		},
		Predicate: &match.Predicate{Name: s.Label(), Admit: equal},
	}, nil
}

// buildNameSimilarity scores the normalized Levenshtein ratio of two text
// fields: 1 - distance/longer. A positive cutoff floors the ratio, creating
// the zero-score region a blocking predicate needs; the predicate itself only
// tests the cheap length bound (distance is at least the length difference)
// so blocking never pays for an edit-distance computation.
func buildNameSimilarity(s Spec) (Built, error) {
	field := s.Field
	cutoff := s.Cutoff

	built := Built{
		Factor: match.Factor{
			Name:   s.Label(),
			Weight: s.Weight,
			Score: func(ctx context.Context, anchor, candidate match.Entity) (float64, error) {
				a, err := fieldString(anchor, field)
				if err != nil {
					return 0, err
				}
				b, err := fieldString(candidate, field)
				if err != nil {
					return 0, err
				}
				ratio := similarityRatio(normalizeText(a), normalizeText(b))
				if ratio < cutoff {
					return 0, nil
				}
				return ratio, nil
			},
		},
	}

	if cutoff > 0 {
		built.Predicate = &match.Predicate{
			Name: s.Label(),
			Admit: func(anchor, candidate match.Entity) (bool, error) {
				a, err := fieldString(anchor, field)
				if err != nil {
					return false, err
				}
				b, err := fieldString(candidate, field)
				if err != nil {
					return false, err
				}
				return lengthBoundRatio(normalizeText(a), normalizeText(b)) >= cutoff, nil
			},
		}
	}

	return built, nil
}

// normalizeText lowercases and collapses runs of whitespace.
func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// similarityRatio returns 1 - levenshtein(a,b)/max(len(a),len(b)) over runes.
// Two empty strings are identical.
func similarityRatio(a, b string) float64 {
	longer := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longer {
		longer = n
	}
	if longer == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longer)
}

// lengthBoundRatio is the upper bound on similarityRatio obtainable from
// lengths alone: edit distance is at least the rune-count difference.
func lengthBoundRatio(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longer, diff := la, la-lb
	if lb > la {
		longer, diff = lb, lb-la
	}
	if longer == 0 {
		return 1
	}
	return 1 - float64(diff)/float64(longer)
}
