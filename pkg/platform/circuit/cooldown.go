package circuit

import (
	"sync"
	"time"
)

// DefaultCooldown is how long a CooldownBreaker stays open before probing.
const DefaultCooldown = time.Minute

const (
	cooldownClosed = iota
	cooldownOpen
	cooldownHalfOpen
)

// CooldownBreaker guards a backend that has no fallback: while it is open,
// callers drop work instead of rerouting it. The breaker opens after a run
// of consecutive failures, rejects calls for a fixed cooldown, then admits
// probes again. A success closes it; a failed probe reopens it for another
// cooldown.
type CooldownBreaker struct {
	failureThreshold int
	cooldown         time.Duration

	mu        sync.Mutex
	state     int
	failures  int
	openUntil time.Time
}

// NewCooldown creates a closed cooldown breaker. Non-positive arguments take
// the package defaults.
func NewCooldown(failureThreshold int, cooldown time.Duration) *CooldownBreaker {
	if failureThreshold <= 0 {
		failureThreshold = DefaultFailureThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &CooldownBreaker{
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
	}
}

// Allow reports whether a call may proceed. The first call after the
// cooldown expires moves the breaker to half-open and is admitted as a
// probe.
func (b *CooldownBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != cooldownOpen {
		return true
	}
	if time.Now().Before(b.openUntil) {
		return false
	}
	b.state = cooldownHalfOpen
	return true
}

// RecordSuccess notes a successful call, closing the breaker and clearing
// the failure run.
func (b *CooldownBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = cooldownClosed
	b.failures = 0
}

// RecordFailure notes a failed call. A run of failures reaching the
// threshold opens the breaker; any failure while half-open reopens it
// immediately.
func (b *CooldownBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == cooldownHalfOpen {
		b.trip()
		return
	}
	b.failures++
	if b.failures >= b.failureThreshold {
		b.trip()
	}
}

// IsOpen reports whether the breaker is currently rejecting calls.
func (b *CooldownBreaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == cooldownOpen && time.Now().Before(b.openUntil)
}

// Reset forces the breaker closed and clears the failure run.
func (b *CooldownBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = cooldownClosed
	b.failures = 0
}

func (b *CooldownBreaker) trip() {
	b.state = cooldownOpen
	b.failures = 0
	b.openUntil = time.Now().Add(b.cooldown)
}
