package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"linkage/internal/platform/kafka/consumer"
	id "linkage/pkg/domain"
	audit "linkage/pkg/platform/audit"

	"github.com/google/uuid"
)

// EventStore materializes relayed audit events into the queryable
// audit_events table. The postgres store implements it; inserts must be
// idempotent on the event ID because topics are consumed at-least-once.
type EventStore interface {
	AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error
}

// ComplianceHandler processes compliance audit events from Kafka.
// These carry threshold changes, so handling is strict: a store failure
// blocks the commit and forces redelivery.
type ComplianceHandler struct {
	store  EventStore
	logger *slog.Logger
}

// NewComplianceHandler creates a compliance event handler.
func NewComplianceHandler(store EventStore, logger *slog.Logger) *ComplianceHandler {
	return &ComplianceHandler{
		store:  store,
		logger: logger,
	}
}

// compliancePayload matches the outbox JSON for compliance events.
type compliancePayload struct {
	Timestamp string `json:"Timestamp"`
	TenantID  string `json:"TenantID"`
	ProfileID string `json:"ProfileID"`
	Subject   string `json:"Subject"`
	Action    string `json:"Action"`
	Decision  string `json:"Decision"`
	Reason    string `json:"Reason"`
	RequestID string `json:"RequestID"`
	ActorID   string `json:"ActorID"`
}

// Handle processes a compliance audit event.
func (h *ComplianceHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	eventID, err := uuid.Parse(string(msg.Key))
	if err != nil {
		h.logger.Error("CRITICAL: failed to parse compliance event ID",
			"key", string(msg.Key),
			"error", err,
		)
		// Return nil to commit - malformed messages should not block
		return nil
	}

	var payload compliancePayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		h.logger.Error("CRITICAL: failed to unmarshal compliance payload",
			"event_id", eventID,
			"error", err,
		)
		return nil
	}

	// Strict validation for compliance events
	if payload.TenantID == "" {
		h.logger.Error("CRITICAL: compliance event missing TenantID",
			"event_id", eventID,
			"action", payload.Action,
		)
		return nil
	}

	event := audit.Event{
		Category:  audit.CategoryCompliance,
		Timestamp: parseEventTimestamp(payload.Timestamp),
		ProfileID: payload.ProfileID,
		Subject:   payload.Subject,
		Action:    payload.Action,
		Decision:  payload.Decision,
		Reason:    payload.Reason,
		RequestID: payload.RequestID,
		ActorID:   payload.ActorID,
	}
	if tid, err := uuid.Parse(payload.TenantID); err == nil {
		event.TenantID = id.TenantID(tid)
	}

	if err := h.store.AppendWithID(ctx, eventID, event); err != nil {
		h.logger.Error("failed to store compliance event",
			"event_id", eventID,
			"action", event.Action,
			"error", err,
		)
		return fmt.Errorf("store compliance event: %w", err)
	}

	h.logger.Debug("stored compliance event",
		"event_id", eventID,
		"action", event.Action,
		"tenant_id", event.TenantID,
	)

	return nil
}

// parseEventTimestamp reads the relay timestamp, falling back to now so a
// mangled field never blocks materialization.
func parseEventTimestamp(raw string) time.Time {
	if raw != "" {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			return ts
		}
	}
	return time.Now()
}
