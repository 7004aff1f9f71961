package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	"linkage/internal/platform/kafka/consumer"
	id "linkage/pkg/domain"
	audit "linkage/pkg/platform/audit"

	"github.com/google/uuid"
)

// OpsHandler processes operational audit events from Kafka.
// Everything here is best-effort: failures are logged at debug and the
// message commits regardless.
type OpsHandler struct {
	store  EventStore
	logger *slog.Logger
}

// NewOpsHandler creates an ops event handler.
func NewOpsHandler(store EventStore, logger *slog.Logger) *OpsHandler {
	return &OpsHandler{
		store:  store,
		logger: logger,
	}
}

// opsPayload matches the outbox JSON for ops events.
type opsPayload struct {
	Timestamp    string `json:"Timestamp"`
	TenantID     string `json:"TenantID"`
	ProfileID    string `json:"ProfileID"`
	DetectionID  string `json:"DetectionID"`
	Subject      string `json:"Subject"`
	Action       string `json:"Action"`
	Reason       string `json:"Reason"`
	RequestID    string `json:"RequestID"`
	AnchorIDHash string `json:"AnchorIDHash"`
}

// Handle processes an operational audit event.
func (h *OpsHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	eventID, err := uuid.Parse(string(msg.Key))
	if err != nil {
		// Ops events are best-effort - log and continue
		h.logger.Debug("failed to parse ops event ID",
			"key", string(msg.Key),
			"error", err,
		)
		return nil
	}

	var payload opsPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		h.logger.Debug("failed to unmarshal ops payload",
			"event_id", eventID,
			"error", err,
		)
		return nil
	}

	event := audit.Event{
		Category:     audit.CategoryOperations,
		Timestamp:    parseEventTimestamp(payload.Timestamp),
		ProfileID:    payload.ProfileID,
		DetectionID:  payload.DetectionID,
		Subject:      payload.Subject,
		Action:       payload.Action,
		Reason:       payload.Reason,
		RequestID:    payload.RequestID,
		AnchorIDHash: payload.AnchorIDHash,
	}
	if payload.TenantID != "" {
		if tid, err := uuid.Parse(payload.TenantID); err == nil {
			event.TenantID = id.TenantID(tid)
		}
	}

	// Store ops event - errors are logged but don't prevent commit
	if err := h.store.AppendWithID(ctx, eventID, event); err != nil {
		h.logger.Debug("failed to store ops event",
			"event_id", eventID,
			"action", event.Action,
			"error", err,
		)
		// Return nil to commit - ops events are best-effort
		return nil
	}

	return nil
}
