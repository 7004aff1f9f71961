package policy

import (
	"sync"
	"time"

	id "linkage/pkg/domain"
)

// Key scopes a threshold set. Every (tenant, profile) pair tunes
// independently; a bank's transaction thresholds never bleed into another
// tenant's, nor into the same tenant's claims profile.
type Key struct {
	Tenant  id.TenantID
	Profile id.ProfileID
}

// Registry lazily materializes one Policy per scope, seeded from the
// profile's default thresholds on first touch.
type Registry struct {
	mu       sync.RWMutex
	policies map[Key]*Policy
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{policies: make(map[Key]*Policy)}
}

// Get returns the policy for a scope if it has been materialized.
func (r *Registry) Get(key Key) (*Policy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.policies[key]
	return p, ok
}

// GetOrCreate returns the policy for a scope, creating it from the given
// defaults on first touch. Creation races resolve to a single winner; the
// defaults must already be valid.
func (r *Registry) GetOrCreate(key Key, defaults ThresholdSet, now time.Time) (*Policy, error) {
	r.mu.RLock()
	p, ok := r.policies[key]
	r.mu.RUnlock()
	if ok {
		return p, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.policies[key]; ok {
		return p, nil
	}
	p, err := New(defaults, now)
	if err != nil {
		return nil, err
	}
	r.policies[key] = p
	return p, nil
}

// Len reports the number of materialized scopes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.policies)
}
