// Package compliance provides a fail-closed audit publisher for regulatory
// events.
//
// Emit blocks until the event reaches the store and returns an error when it
// does not; the calling operation must treat that error as its own failure.
// Use it for threshold_updated and anything else a regulator may ask to
// replay.
package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	audit "linkage/pkg/platform/audit"
)

// Publisher writes compliance events synchronously to the audit store.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// New creates a compliance publisher. The store must be outbox-backed for
// guaranteed delivery.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit synchronously writes a compliance event. A persistence error fails
// the caller: compliance events are never best-effort.
func (p *Publisher) Emit(ctx context.Context, event audit.ComplianceEvent) error {
	if err := validate(event); err != nil {
		return err
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	start := time.Now()
	if err := p.store.Append(ctx, event.ToEvent()); err != nil {
		if p.metrics != nil {
			p.metrics.IncPersistFailures()
		}
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "compliance audit persist failed, caller must abort",
				"action", event.Action,
				"tenant_id", event.TenantID,
				"error", err,
			)
		}
		return fmt.Errorf("compliance audit persistence failed: %w", err)
	}

	if p.metrics != nil {
		p.metrics.ObservePersistDuration(time.Since(start).Seconds())
		p.metrics.IncEventsEmitted()
	}
	return nil
}

func validate(event audit.ComplianceEvent) error {
	switch {
	case event.TenantID.IsNil():
		return fmt.Errorf("compliance event requires TenantID")
	case event.Action == "":
		return fmt.Errorf("compliance event requires Action")
	case event.ActorID == "":
		return fmt.Errorf("compliance event requires ActorID")
	}
	return nil
}

// Close is a no-op for the synchronous compliance publisher.
func (p *Publisher) Close() error {
	return nil
}
