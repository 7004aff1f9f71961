package audit

import (
	"context"
	"time"

	id "linkage/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance.
	// These require tamper-proof storage and long retention.
	// Examples: threshold changes, the decision boundaries they move.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring and forensics.
	// These feed into SIEM systems and alerting pipelines.
	// Examples: auth failures, rejected mutations, malformed detection requests.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and operational visibility.
	// These can be sampled or aggregated with shorter retention.
	// Examples: completed detection runs, per-candidate degradations.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category    EventCategory
	Timestamp   time.Time
	TenantID    id.TenantID
	ProfileID   string
	DetectionID string
	Subject     string
	Action      string
	Decision    string
	Reason      string
	RequestID   string
	// IP is the client address on security events; empty elsewhere.
	IP string
	// ActorID names the operator behind the action when one is
	// authenticated. A string to support non-operator actors (relay jobs,
	// CLI runs).
	ActorID string
	// AnchorIDHash is a SHA-256 hash of the anchor record identifier. Kept
	// for traceability without persisting raw record ids, which may embed
	// account numbers or claim references.
	AnchorIDHash string
}

// Store is the persistence surface publishers write through. The postgres
// implementation appends to the transactional outbox; the memory one backs
// tests.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByTenant(ctx context.Context, tenantID id.TenantID) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

type AuditEvent string

const (
	// Threshold events
	EventThresholdUpdated        AuditEvent = "threshold_updated"
	EventThresholdUpdateRejected AuditEvent = "threshold_update_rejected"

	// Detection events
	EventDetectionCompleted     AuditEvent = "detection_completed"
	EventDetectionRejected      AuditEvent = "detection_rejected"
	EventCandidateScoringFailed AuditEvent = "candidate_scoring_failed"

	// Profile events
	EventProfileRegistered AuditEvent = "profile_registered"

	// Access events
	EventAuthFailed        AuditEvent = "auth_failed"
	EventRateLimitExceeded AuditEvent = "rate_limit_exceeded"
)

// eventCategories maps each audit event to its category.
// Compliance: regulatory significance, long retention required.
// Security: security monitoring, SIEM integration, alerting.
// Operations: debugging, operational visibility, can be sampled.
var eventCategories = map[AuditEvent]EventCategory{
	// Compliance events - threshold moves change what links automatically
	EventThresholdUpdated: CategoryCompliance,

	// Security events - feed into SIEM and alerting
	EventThresholdUpdateRejected: CategorySecurity,
	EventDetectionRejected:       CategorySecurity,
	EventAuthFailed:              CategorySecurity,
	EventRateLimitExceeded:       CategorySecurity,

	// Operations events - routine activity, can be sampled
	EventDetectionCompleted:     CategoryOperations,
	EventCandidateScoringFailed: CategoryOperations,
	EventProfileRegistered:      CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// -----------------------------------------------------------------------------
// Right-sized event types for tri-publisher architecture
// -----------------------------------------------------------------------------

// ComplianceEvent captures regulatory-significant actions requiring
// guaranteed persistence. Threshold changes move decision boundaries, so the
// record must hold who moved them, from what, to what, and why.
// Use with the compliance publisher for fail-closed semantics.
type ComplianceEvent struct {
	Timestamp time.Time   // When the event occurred (set automatically if zero)
	TenantID  id.TenantID // The tenant whose policy is affected (required)
	ProfileID string      // The profile scope of the change
	Subject   string      // Human-readable subject (e.g., "thresholds v3 -> v4")
	Action    string      // The action taken (e.g., "threshold_updated")
	Decision  string      // Outcome (e.g., "applied")
	Reason    string      // Operator-supplied reason for the change
	RequestID string      // Correlation ID for request tracing
	ActorID   string      // Operator who performed the action
}

// Category returns CategoryCompliance (always).
func (e ComplianceEvent) Category() EventCategory { return CategoryCompliance }

// ToEvent converts to the transport-agnostic Event type stores accept.
func (e ComplianceEvent) ToEvent() Event {
	return Event{
		Category:  CategoryCompliance,
		Timestamp: e.Timestamp,
		TenantID:  e.TenantID,
		ProfileID: e.ProfileID,
		Subject:   e.Subject,
		Action:    e.Action,
		Decision:  e.Decision,
		Reason:    e.Reason,
		RequestID: e.RequestID,
		ActorID:   e.ActorID,
	}
}

// SecurityEvent captures security-relevant actions for SIEM and alerting.
// Events are processed asynchronously with buffering and retry.
// Use with the security publisher for non-blocking emission.
type SecurityEvent struct {
	Timestamp time.Time // When the event occurred (set automatically if zero)
	Subject   string    // Entity involved (tenant id, operator id, IP)
	Action    string    // Security action (e.g., "detection_rejected")
	Reason    string    // Why this happened (e.g., "malformed pool")
	IP        string    // Client IP address (critical for forensics)
	RequestID string    // Correlation ID
	ActorID   string    // Actor if different from subject
	Severity  Severity  // "info", "warning", "critical" for SIEM routing
}

// Severity levels for security events.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Category returns CategorySecurity (always).
func (e SecurityEvent) Category() EventCategory { return CategorySecurity }

// ToEvent converts to the transport-agnostic Event type stores accept.
func (e SecurityEvent) ToEvent() Event {
	return Event{
		Category:  CategorySecurity,
		Timestamp: e.Timestamp,
		Subject:   e.Subject,
		Action:    e.Action,
		Reason:    e.Reason,
		RequestID: e.RequestID,
		IP:        e.IP,
		ActorID:   e.ActorID,
	}
}

// OpsEvent captures operational events with minimal overhead.
// Events are fire-and-forget with optional sampling.
// Use with the ops tracker for non-blocking, sampled emission.
type OpsEvent struct {
	Timestamp    time.Time   // When the event occurred (set automatically if zero)
	TenantID     id.TenantID // Tenant running the detection
	ProfileID    string      // Profile the run used
	DetectionID  string      // Detection run correlation id
	Subject      string      // Entity involved
	Action       string      // Operational action (e.g., "detection_completed")
	Reason       string      // Degradation detail for failure events
	RequestID    string      // Correlation ID
	AnchorIDHash string      // Hashed anchor identifier
}

// Category returns CategoryOperations (always).
func (e OpsEvent) Category() EventCategory { return CategoryOperations }

// ToEvent converts to the transport-agnostic Event type stores accept.
func (e OpsEvent) ToEvent() Event {
	return Event{
		Category:     CategoryOperations,
		Timestamp:    e.Timestamp,
		TenantID:     e.TenantID,
		ProfileID:    e.ProfileID,
		DetectionID:  e.DetectionID,
		Subject:      e.Subject,
		Action:       e.Action,
		Reason:       e.Reason,
		RequestID:    e.RequestID,
		AnchorIDHash: e.AnchorIDHash,
	}
}
