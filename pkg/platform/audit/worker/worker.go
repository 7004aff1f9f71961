// Package worker runs the outbox relay. It moves committed audit events
// from the outbox table to their Kafka topics, then deletes the rows. Rows
// are claimed with FOR UPDATE SKIP LOCKED so multiple replicas can relay
// concurrently; the consumer dedupes on the record key for the rare double
// send around a crash.
package worker

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"linkage/internal/platform/kafka"
	"linkage/internal/platform/kafka/producer"
	audit "linkage/pkg/platform/audit"

	"github.com/google/uuid"
)

const (
	// DefaultInterval is how often the relay polls the outbox.
	DefaultInterval = 1 * time.Second
	// DefaultBatchSize caps rows claimed per poll.
	DefaultBatchSize = 100
)

// Producer publishes relayed messages. The kafka producer satisfies it.
type Producer interface {
	Produce(ctx context.Context, msgs ...producer.Message) error
}

// Relay polls the outbox and publishes pending audit events.
type Relay struct {
	db       *sql.DB
	producer Producer
	logger   *slog.Logger
	metrics  *Metrics

	interval  time.Duration
	batchSize int
}

// Option configures the Relay.
type Option func(*Relay)

// WithInterval sets the outbox poll interval.
func WithInterval(interval time.Duration) Option {
	return func(r *Relay) {
		if interval > 0 {
			r.interval = interval
		}
	}
}

// WithBatchSize sets how many rows one poll claims.
func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

// NewRelay creates an outbox relay.
func NewRelay(db *sql.DB, prod Producer, logger *slog.Logger, opts ...Option) *Relay {
	r := &Relay{
		db:        db,
		producer:  prod,
		logger:    logger,
		interval:  DefaultInterval,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until the context ends. Relay errors are logged and retried on
// the next tick; they never stop the loop.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.drainBacklog(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.drainBacklog(ctx)
		}
	}
}

// drainBacklog relays full batches until the outbox has fewer rows than one
// batch, so a backlog clears faster than one batch per tick.
func (r *Relay) drainBacklog(ctx context.Context) {
	for {
		n, err := r.relayOnce(ctx)
		if err != nil {
			if ctx.Err() == nil {
				r.logger.Error("outbox relay pass failed", "error", err)
				if r.metrics != nil {
					r.metrics.IncFailures()
				}
			}
			return
		}
		if n > 0 {
			r.logger.Debug("relayed audit events", "count", n)
			if r.metrics != nil {
				r.metrics.AddPublished(n)
			}
		}
		if n < r.batchSize {
			return
		}
	}
}

type outboxEntry struct {
	id        uuid.UUID
	eventType string
	payload   []byte
}

// relayOnce claims one batch of outbox rows, publishes them, and deletes
// them in the same transaction. A publish failure rolls the claim back so
// the rows are retried on the next pass.
func (r *Relay) relayOnce(ctx context.Context) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin relay tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	rows, err := tx.QueryContext(ctx, `
		SELECT id, event_type, payload
		FROM outbox
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("claim outbox rows: %w", err)
	}

	var entries []outboxEntry
	for rows.Next() {
		var entry outboxEntry
		if err := rows.Scan(&entry.id, &entry.eventType, &entry.payload); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan outbox row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("iterate outbox rows: %w", err)
	}
	rows.Close()

	if len(entries) == 0 {
		return 0, nil
	}

	msgs := make([]producer.Message, len(entries))
	for i, entry := range entries {
		category := audit.AuditEvent(entry.eventType).Category()
		msgs[i] = producer.Message{
			Topic: kafka.TopicForCategory(string(category)),
			Key:   []byte(entry.id.String()),
			Value: entry.payload,
		}
	}

	if err := r.producer.Produce(ctx, msgs...); err != nil {
		return 0, fmt.Errorf("publish outbox batch: %w", err)
	}

	for _, entry := range entries {
		if _, err := tx.ExecContext(ctx, `DELETE FROM outbox WHERE id = $1`, entry.id); err != nil {
			return 0, fmt.Errorf("delete outbox row %s: %w", entry.id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit relay tx: %w", err)
	}
	return len(entries), nil
}
