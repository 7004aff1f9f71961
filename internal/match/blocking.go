package match

import "fmt"

// Predicate decides whether a candidate could plausibly reach the suggestion
// floor against the anchor. Predicates must be recall-preserving: reject a
// candidate only when it could not clear the floor even with every other
// factor at its maximum. A predicate that cannot evaluate a pair returns an
// error; it must never guess.
type Predicate struct {
	Name  string
	Admit func(anchor, candidate Entity) (bool, error)
}

// Blocker runs the predicate chain ahead of scoring to keep expensive factor
// evaluation off candidates that cannot matter.
type Blocker struct {
	predicates []Predicate
}

// NewBlocker builds a Blocker. An empty chain admits everything.
func NewBlocker(predicates ...Predicate) *Blocker {
	return &Blocker{predicates: predicates}
}

// Admit reports whether the candidate survives the chain. A predicate error
// is wrapped in a DetectionError naming the candidate; the caller decides
// whether that aborts the run or just this candidate.
func (b *Blocker) Admit(anchor, candidate Entity) (bool, error) {
	if b == nil {
		return true, nil
	}
	for _, p := range b.predicates {
		ok, err := p.Admit(anchor, candidate)
		if err != nil {
			return false, &DetectionError{
				CandidateID: candidate.ID(),
				Reason:      fmt.Sprintf("blocking predicate %q: %v", p.Name, err),
			}
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Size returns the number of predicates in the chain.
func (b *Blocker) Size() int {
	if b == nil {
		return 0
	}
	return len(b.predicates)
}
