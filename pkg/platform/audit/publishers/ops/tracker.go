// Package ops provides a sampled, fire-and-forget audit tracker for
// operational events.
//
// Tracker never blocks the request path and never fails the caller. Events
// pass a sampler, then a circuit breaker guarding the store, then a bounded
// queue drained by a background worker. Anything that cannot be accepted is
// dropped and counted.
//
// Use for: detection_completed, candidate_scoring_failed, profile_registered.
package ops

import (
	"context"
	"log/slog"
	"sync"
	"time"

	audit "linkage/pkg/platform/audit"
	"linkage/pkg/platform/circuit"
)

const (
	// DefaultSampleRate keeps every event unless an action is tuned down.
	DefaultSampleRate = 1.0
	// DefaultQueueSize bounds the pending event queue.
	DefaultQueueSize = 1000
	// appendTimeout bounds a single store write so a stalled store trips
	// the breaker instead of backing up the queue forever.
	appendTimeout = 5 * time.Second
)

// Tracker records operational audit events with minimal caller overhead.
type Tracker struct {
	store   audit.Store
	sampler *Sampler
	breaker *circuit.CooldownBreaker
	logger  *slog.Logger
	metrics *Metrics

	events chan audit.OpsEvent
	wg     sync.WaitGroup
	once   sync.Once
}

// TrackerOption configures the Tracker.
type TrackerOption func(*Tracker)

// WithLogger sets a logger for persistence error reporting.
func WithLogger(logger *slog.Logger) TrackerOption {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) TrackerOption {
	return func(t *Tracker) {
		t.metrics = m
	}
}

// WithSampler replaces the default keep-everything sampler.
func WithSampler(s *Sampler) TrackerOption {
	return func(t *Tracker) {
		if s != nil {
			t.sampler = s
		}
	}
}

// WithCircuitBreaker replaces the default breaker.
func WithCircuitBreaker(cb *circuit.CooldownBreaker) TrackerOption {
	return func(t *Tracker) {
		if cb != nil {
			t.breaker = cb
		}
	}
}

// WithQueueSize sets the pending event queue capacity.
func WithQueueSize(n int) TrackerOption {
	return func(t *Tracker) {
		if n > 0 {
			t.events = make(chan audit.OpsEvent, n)
		}
	}
}

// NewTracker creates an ops tracker and starts its background worker.
func NewTracker(store audit.Store, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		store:   store,
		sampler: NewSampler(DefaultSampleRate),
		breaker: circuit.NewCooldown(0, 0),
		events:  make(chan audit.OpsEvent, DefaultQueueSize),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.wg.Add(1)
	go t.worker()
	return t
}

// Track records an operational event. It never blocks: sampled-out events,
// breaker-rejected events, and queue overflow are all silent drops from the
// caller's point of view.
func (t *Tracker) Track(event audit.OpsEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if !t.sampler.ShouldSample(event.Action) {
		if t.metrics != nil {
			t.metrics.IncSampled()
		}
		return
	}

	if !t.breaker.Allow() {
		if t.metrics != nil {
			t.metrics.IncCircuitBreakerDropped()
		}
		return
	}

	select {
	case t.events <- event:
	default:
		if t.metrics != nil {
			t.metrics.IncQueueFullDropped()
		}
	}
}

// Close stops the worker after draining queued events. Safe to call
// multiple times.
func (t *Tracker) Close() error {
	t.once.Do(func() {
		close(t.events)
		t.wg.Wait()
	})
	return nil
}

func (t *Tracker) worker() {
	defer t.wg.Done()

	for event := range t.events {
		t.persist(event)
	}
}

func (t *Tracker) persist(event audit.OpsEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()

	if err := t.store.Append(ctx, event.ToEvent()); err != nil {
		t.breaker.RecordFailure()
		if t.metrics != nil {
			t.metrics.IncPersistFailures()
			t.metrics.SetCircuitBreakerState(t.breaker.IsOpen())
		}
		if t.logger != nil {
			t.logger.Error("ops audit persist failed",
				"action", event.Action,
				"error", err,
			)
		}
		return
	}

	t.breaker.RecordSuccess()
	if t.metrics != nil {
		t.metrics.IncTracked()
		t.metrics.SetCircuitBreakerState(false)
	}
}
