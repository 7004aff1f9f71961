package handler

import (
	"strings"
	"time"

	"linkage/internal/detection/service"
	"linkage/internal/match"
	"linkage/internal/policy"
	id "linkage/pkg/domain"
	dErrors "linkage/pkg/domain-errors"
)

// RecordPayload is the wire form of one entity record.
type RecordPayload struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// Entity converts the payload to the engine's record type.
func (p RecordPayload) Entity() match.Entity {
	return match.NewRecord(p.ID, p.Fields)
}

// DetectRequest is the HTTP request body for POST /v1/detect.
type DetectRequest struct {
	TenantID      string          `json:"tenant_id"`
	Profile       string          `json:"profile"`
	Anchor        RecordPayload   `json:"anchor"`
	Pool          []RecordPayload `json:"pool"`
	MinConfidence *float64        `json:"min_confidence,omitempty"`
	TimeoutMS     int             `json:"timeout_ms,omitempty"`

	// Parsed values (populated by Validate)
	parsedTenantID  id.TenantID
	parsedProfileID id.ProfileID
}

// Validate parses the identifiers at the trust boundary. Anchor and pool
// semantics are left to the engine, which rejects malformed runs with a
// uniform error and audit trail.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *DetectRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	tenantID, err := id.ParseTenantID(r.TenantID)
	if err != nil {
		return err
	}
	r.parsedTenantID = tenantID

	profileID, err := id.ParseProfileID(r.Profile)
	if err != nil {
		return err
	}
	r.parsedProfileID = profileID

	if r.TimeoutMS < 0 {
		return dErrors.New(dErrors.CodeValidation, "timeout_ms must not be negative")
	}
	return nil
}

// Command converts the validated request to the service command.
func (r *DetectRequest) Command() service.DetectCommand {
	pool := make([]match.Entity, 0, len(r.Pool))
	for _, p := range r.Pool {
		pool = append(pool, p.Entity())
	}
	return service.DetectCommand{
		TenantID:      r.parsedTenantID,
		ProfileID:     r.parsedProfileID,
		Anchor:        r.Anchor.Entity(),
		Pool:          pool,
		MinConfidence: r.MinConfidence,
		Timeout:       time.Duration(r.TimeoutMS) * time.Millisecond,
	}
}

// ClassifyRequest is the HTTP request body for POST /v1/classify.
type ClassifyRequest struct {
	TenantID   string  `json:"tenant_id"`
	Profile    string  `json:"profile"`
	Confidence float64 `json:"confidence"`

	parsedTenantID  id.TenantID
	parsedProfileID id.ProfileID
}

// Validate parses the identifiers. The confidence range is enforced by the
// service.
func (r *ClassifyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	tenantID, err := id.ParseTenantID(r.TenantID)
	if err != nil {
		return err
	}
	r.parsedTenantID = tenantID

	profileID, err := id.ParseProfileID(r.Profile)
	if err != nil {
		return err
	}
	r.parsedProfileID = profileID
	return nil
}

// Command converts the validated request to the service command.
func (r *ClassifyRequest) Command() service.ClassifyCommand {
	return service.ClassifyCommand{
		TenantID:   r.parsedTenantID,
		ProfileID:  r.parsedProfileID,
		Confidence: r.Confidence,
	}
}

// ThresholdsPayload is an inline threshold set in a request body.
type ThresholdsPayload struct {
	AutoLink    float64 `json:"auto_link"`
	AutoSuggest float64 `json:"auto_suggest"`
	Manual      float64 `json:"manual"`
}

// Set converts to the policy value type.
func (p ThresholdsPayload) Set() policy.ThresholdSet {
	return policy.ThresholdSet{AutoLink: p.AutoLink, AutoSuggest: p.AutoSuggest, Manual: p.Manual}
}

// ExplainRequest is the HTTP request body for POST /v1/explain. The
// threshold set comes either inline or from a (tenant, profile) scope.
type ExplainRequest struct {
	TenantID   string                `json:"tenant_id,omitempty"`
	Profile    string                `json:"profile,omitempty"`
	Thresholds *ThresholdsPayload    `json:"thresholds,omitempty"`
	Confidence float64               `json:"confidence"`
	Factors    []match.FactorOutcome `json:"factors,omitempty"`

	parsedTenantID  id.TenantID
	parsedProfileID id.ProfileID
}

// Validate parses the scope when no inline set is given and defaults factor
// statuses so a bare breakdown explains cleanly.
func (r *ExplainRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Thresholds == nil {
		if r.TenantID == "" && r.Profile == "" {
			return dErrors.New(dErrors.CodeValidation, "either thresholds or tenant_id and profile are required")
		}
		tenantID, err := id.ParseTenantID(r.TenantID)
		if err != nil {
			return err
		}
		r.parsedTenantID = tenantID

		profileID, err := id.ParseProfileID(r.Profile)
		if err != nil {
			return err
		}
		r.parsedProfileID = profileID
	}
	for i := range r.Factors {
		if r.Factors[i].Status == "" {
			r.Factors[i].Status = match.FactorOK
		}
	}
	return nil
}

// Command converts the validated request to the service command.
func (r *ExplainRequest) Command() service.ExplainCommand {
	cmd := service.ExplainCommand{
		TenantID:   r.parsedTenantID,
		ProfileID:  r.parsedProfileID,
		Confidence: r.Confidence,
		Factors:    r.Factors,
	}
	if r.Thresholds != nil {
		set := r.Thresholds.Set()
		cmd.Thresholds = &set
	}
	return cmd
}

// UpdateThresholdsRequest is the HTTP request body for
// PUT /v1/tenants/{tenant}/profiles/{profile}/thresholds. The scope comes
// from the URL; nil fields keep their current values.
type UpdateThresholdsRequest struct {
	AutoLink    *float64 `json:"auto_link,omitempty"`
	AutoSuggest *float64 `json:"auto_suggest,omitempty"`
	Manual      *float64 `json:"manual,omitempty"`
	Reason      string   `json:"reason"`
}

// Validate requires a reason; the change log and the compliance record both
// carry it.
func (r *UpdateThresholdsRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Reason = strings.TrimSpace(r.Reason)
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	return nil
}

// Command converts the validated request to the service command for the
// given URL scope.
func (r *UpdateThresholdsRequest) Command(tenantID id.TenantID, profileID id.ProfileID) service.UpdateThresholdsCommand {
	return service.UpdateThresholdsCommand{
		TenantID:    tenantID,
		ProfileID:   profileID,
		AutoLink:    r.AutoLink,
		AutoSuggest: r.AutoSuggest,
		Manual:      r.Manual,
		Reason:      r.Reason,
	}
}
