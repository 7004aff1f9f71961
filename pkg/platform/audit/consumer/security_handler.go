package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"linkage/internal/platform/kafka/consumer"
	id "linkage/pkg/domain"
	audit "linkage/pkg/platform/audit"

	"github.com/google/uuid"
)

// SecurityHandler processes security audit events from Kafka.
// Materialized rows feed SIEM exports, so store failures force redelivery,
// but malformed messages are skipped with a warning.
type SecurityHandler struct {
	store  EventStore
	logger *slog.Logger
}

// NewSecurityHandler creates a security event handler.
func NewSecurityHandler(store EventStore, logger *slog.Logger) *SecurityHandler {
	return &SecurityHandler{
		store:  store,
		logger: logger,
	}
}

// securityPayload matches the outbox JSON for security events. TenantID is
// optional: auth failures happen before a tenant is known, while rejected
// threshold updates and detections carry one.
type securityPayload struct {
	Timestamp string `json:"Timestamp"`
	TenantID  string `json:"TenantID"`
	ProfileID string `json:"ProfileID"`
	Subject   string `json:"Subject"`
	Action    string `json:"Action"`
	Decision  string `json:"Decision"`
	Reason    string `json:"Reason"`
	RequestID string `json:"RequestID"`
	IP        string `json:"IP"`
	ActorID   string `json:"ActorID"`
}

// Handle processes a security audit event.
func (h *SecurityHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	eventID, err := uuid.Parse(string(msg.Key))
	if err != nil {
		h.logger.Warn("failed to parse security event ID",
			"key", string(msg.Key),
			"error", err,
		)
		return nil
	}

	var payload securityPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		h.logger.Warn("failed to unmarshal security payload",
			"event_id", eventID,
			"error", err,
		)
		return nil
	}

	event := audit.Event{
		Category:  audit.CategorySecurity,
		Timestamp: parseEventTimestamp(payload.Timestamp),
		ProfileID: payload.ProfileID,
		Subject:   payload.Subject,
		Action:    payload.Action,
		Decision:  payload.Decision,
		Reason:    payload.Reason,
		RequestID: payload.RequestID,
		IP:        payload.IP,
		ActorID:   payload.ActorID,
	}
	if payload.TenantID != "" {
		if tid, err := uuid.Parse(payload.TenantID); err == nil {
			event.TenantID = id.TenantID(tid)
		}
	}

	if err := h.store.AppendWithID(ctx, eventID, event); err != nil {
		h.logger.Error("failed to store security event",
			"event_id", eventID,
			"action", event.Action,
			"error", err,
		)
		return fmt.Errorf("store security event: %w", err)
	}

	h.logger.Debug("stored security event",
		"event_id", eventID,
		"action", event.Action,
	)

	return nil
}
