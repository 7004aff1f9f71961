package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	id "linkage/pkg/domain"
	audit "linkage/pkg/platform/audit"
	txcontext "linkage/pkg/platform/tx"

	"github.com/google/uuid"
)

// Store implements audit.Store using the transactional outbox pattern.
// Events are written to the outbox table inside the caller's transaction and
// published to Kafka by the relay. Kafka is the source of truth for audit
// events; the audit_events table is a queryable materialization.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// OutboxPayload is the JSON structure published to Kafka. Field names match
// audit.Event so the consumer deserializes without a mapping layer.
type OutboxPayload struct {
	ID           string `json:"ID"`
	Category     string `json:"Category"`
	Timestamp    string `json:"Timestamp"`
	TenantID     string `json:"TenantID,omitempty"`
	ProfileID    string `json:"ProfileID,omitempty"`
	DetectionID  string `json:"DetectionID,omitempty"`
	Subject      string `json:"Subject"`
	Action       string `json:"Action"`
	Decision     string `json:"Decision,omitempty"`
	Reason       string `json:"Reason,omitempty"`
	RequestID    string `json:"RequestID,omitempty"`
	IP           string `json:"IP,omitempty"`
	ActorID      string `json:"ActorID,omitempty"`
	AnchorIDHash string `json:"AnchorIDHash,omitempty"`
}

// Append writes an audit event to the outbox table for Kafka publishing.
// When the context carries a transaction the write joins it, so a threshold
// update and its audit row commit or roll back together.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()

	// Always derive category from action - eventCategories is the source of truth.
	category := audit.AuditEvent(event.Action).Category()

	payload := OutboxPayload{
		ID:           eventID.String(),
		Category:     string(category),
		Timestamp:    event.Timestamp.Format(time.RFC3339Nano),
		ProfileID:    event.ProfileID,
		DetectionID:  event.DetectionID,
		Subject:      event.Subject,
		Action:       event.Action,
		Decision:     event.Decision,
		Reason:       event.Reason,
		RequestID:    event.RequestID,
		IP:           event.IP,
		ActorID:      event.ActorID,
		AnchorIDHash: event.AnchorIDHash,
	}
	if !event.TenantID.IsNil() {
		payload.TenantID = event.TenantID.String()
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	// Aggregate on the tenant when one is known so per-tenant ordering
	// survives partitioning; fall back to the event itself.
	aggregateType := "audit"
	aggregateID := eventID.String()
	if !event.TenantID.IsNil() {
		aggregateType = "tenant"
		aggregateID = event.TenantID.String()
	}

	// The outbox row id doubles as the Kafka record key, which is what the
	// consumer dedupes on. It must match the payload ID.
	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = txcontext.ExecerFrom(ctx, s.db).ExecContext(ctx, query,
		eventID,
		aggregateType,
		aggregateID,
		event.Action,
		payloadBytes,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// AppendWithID inserts an audit event into the audit_events table with a
// specific ID. Used by the Kafka consumer to materialize events for
// querying. Idempotent: duplicate inserts are ignored via ON CONFLICT DO
// NOTHING, so redelivered messages are harmless.
func (s *Store) AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error {
	query := `
		INSERT INTO audit_events (
			id, category, timestamp, tenant_id, profile_id, detection_id,
			subject, action, decision, reason, request_id, ip, actor_id,
			anchor_id_hash
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING
	`

	var tenantID *uuid.UUID
	if !event.TenantID.IsNil() {
		tid := uuid.UUID(event.TenantID)
		tenantID = &tid
	}

	_, err := s.db.ExecContext(ctx, query,
		eventID,
		string(event.Category),
		event.Timestamp,
		tenantID,
		event.ProfileID,
		event.DetectionID,
		event.Subject,
		event.Action,
		event.Decision,
		event.Reason,
		event.RequestID,
		event.IP,
		event.ActorID,
		event.AnchorIDHash,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByTenant returns events for a specific tenant, newest first.
func (s *Store) ListByTenant(ctx context.Context, tenantID id.TenantID) ([]audit.Event, error) {
	query := `
		SELECT category, timestamp, tenant_id, profile_id, detection_id,
			   subject, action, decision, reason, request_id, ip, actor_id,
			   anchor_id_hash
		FROM audit_events
		WHERE tenant_id = $1
		ORDER BY timestamp DESC
	`

	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(tenantID))
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

// ListAll returns all audit events, newest first.
func (s *Store) ListAll(ctx context.Context) ([]audit.Event, error) {
	query := `
		SELECT category, timestamp, tenant_id, profile_id, detection_id,
			   subject, action, decision, reason, request_id, ip, actor_id,
			   anchor_id_hash
		FROM audit_events
		ORDER BY timestamp DESC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

// ListRecent returns the N most recent events.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	query := `
		SELECT category, timestamp, tenant_id, profile_id, detection_id,
			   subject, action, decision, reason, request_id, ip, actor_id,
			   anchor_id_hash
		FROM audit_events
		ORDER BY timestamp DESC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

// scanEvents scans multiple rows into an audit.Event slice.
func (s *Store) scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event

	for rows.Next() {
		var (
			category         string
			event            audit.Event
			tenantIDNullable *uuid.UUID
		)

		err := rows.Scan(
			&category,
			&event.Timestamp,
			&tenantIDNullable,
			&event.ProfileID,
			&event.DetectionID,
			&event.Subject,
			&event.Action,
			&event.Decision,
			&event.Reason,
			&event.RequestID,
			&event.IP,
			&event.ActorID,
			&event.AnchorIDHash,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}

		event.Category = audit.EventCategory(category)
		if tenantIDNullable != nil {
			event.TenantID = id.TenantID(*tenantIDNullable)
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}

	return events, nil
}
