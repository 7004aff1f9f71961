package policy

import (
	"sync"
	"sync/atomic"
	"time"
)

// changeLogCapacity bounds the in-memory recent-changes ring. Durable change
// history belongs to the audit sink; this ring only serves the read API.
const changeLogCapacity = 64

// Policy holds the active threshold set for one (tenant, profile) scope.
//
// Concurrency model:
//   - Classify and Current read the active snapshot through an atomic
//     pointer: no locks, no contention with writers
//   - Update serializes writers with a mutex, builds the merged set off to
//     the side, validates it as a whole, and only then swaps the pointer
//
// A failed update is invisible to readers: the swap happens after
// validation or not at all.
type Policy struct {
	active atomic.Pointer[Snapshot]

	mu      sync.Mutex // serializes Update
	changes []ChangeLogEntry
}

// New builds a Policy with a validated initial set. Construction failures
// are configuration errors; the caller should refuse to start.
func New(initial ThresholdSet, now time.Time) (*Policy, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	p := &Policy{}
	p.active.Store(&Snapshot{
		Thresholds: initial,
		Version:    1,
		UpdatedAt:  now,
	})
	return p, nil
}

// Current returns the active snapshot. Callers evaluating several values in
// one request should hold the snapshot rather than calling Classify
// repeatedly, so a concurrent update cannot split their view.
func (p *Policy) Current() Snapshot {
	return *p.active.Load()
}

// Classify maps a confidence value to its decision band using the active
// snapshot. Lock-free.
func (p *Policy) Classify(confidence float64) Decision {
	return p.active.Load().Thresholds.Classify(confidence)
}

// Update merges the partial request over the active set, validates the
// merged whole, and atomically publishes it. On validation failure the
// active set is untouched and no change is logged.
func (p *Policy) Update(req UpdateRequest, now time.Time) (ChangeLogEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	current := p.active.Load()
	merged := current.Thresholds
	if req.AutoLink != nil {
		merged.AutoLink = *req.AutoLink
	}
	if req.AutoSuggest != nil {
		merged.AutoSuggest = *req.AutoSuggest
	}
	if req.Manual != nil {
		merged.Manual = *req.Manual
	}

	if err := merged.Validate(); err != nil {
		return ChangeLogEntry{}, err
	}

	next := &Snapshot{
		Thresholds: merged,
		Version:    current.Version + 1,
		UpdatedAt:  now,
		UpdatedBy:  req.ChangedBy,
	}
	entry := ChangeLogEntry{
		Version:   next.Version,
		Previous:  current.Thresholds,
		Current:   merged,
		ChangedBy: req.ChangedBy,
		Reason:    req.Reason,
		ChangedAt: now,
	}

	p.active.Store(next)
	p.appendChange(entry)
	return entry, nil
}

// appendChange records an applied update in the bounded ring.
// Must be called while holding p.mu.
func (p *Policy) appendChange(entry ChangeLogEntry) {
	p.changes = append(p.changes, entry)
	if len(p.changes) > changeLogCapacity {
		p.changes = p.changes[len(p.changes)-changeLogCapacity:]
	}
}

// RecentChanges returns the retained change log, oldest first.
func (p *Policy) RecentChanges() []ChangeLogEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ChangeLogEntry(nil), p.changes...)
}
