// Package domain provides typed identifiers and domain primitives shared
// across the service.
//
// IDs are distinct named types over uuid.UUID so the compiler rejects
// cross-type assignment (a TenantID can never be passed where an OperatorID
// is expected). Construct IDs from external input via the Parse functions;
// direct conversion bypasses validation and is reserved for trusted code
// paths such as tests and store scans.
package domain

import (
	"github.com/google/uuid"

	dErrors "linkage/pkg/domain-errors"
)

// TenantID identifies the tenant that owns records, profiles, and threshold
// sets. All engine operations are scoped by tenant.
type TenantID uuid.UUID

// OperatorID identifies a human or system operator acting on configuration,
// e.g. threshold updates. Recorded as changed_by in the change log.
type OperatorID uuid.UUID

// DetectionID identifies a single detection run. Generated server-side and
// carried through logs, audit events, and responses for correlation.
type DetectionID uuid.UUID

// parseUUID enforces the shared parsing invariant: valid, non-empty, non-nil.
func parseUUID(raw string, field string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" cannot be empty")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is not a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" cannot be the nil UUID")
	}
	return parsed, nil
}

// ParseTenantID constructs a TenantID from external input.
func ParseTenantID(raw string) (TenantID, error) {
	parsed, err := parseUUID(raw, "tenant_id")
	if err != nil {
		return TenantID{}, err
	}
	return TenantID(parsed), nil
}

// ParseOperatorID constructs an OperatorID from external input.
func ParseOperatorID(raw string) (OperatorID, error) {
	parsed, err := parseUUID(raw, "operator_id")
	if err != nil {
		return OperatorID{}, err
	}
	return OperatorID(parsed), nil
}

// ParseDetectionID constructs a DetectionID from external input.
func ParseDetectionID(raw string) (DetectionID, error) {
	parsed, err := parseUUID(raw, "detection_id")
	if err != nil {
		return DetectionID{}, err
	}
	return DetectionID(parsed), nil
}

// NewDetectionID generates a fresh detection run identifier.
func NewDetectionID() DetectionID {
	return DetectionID(uuid.New())
}

func (id TenantID) String() string { return uuid.UUID(id).String() }
func (id TenantID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id OperatorID) String() string { return uuid.UUID(id).String() }
func (id OperatorID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id DetectionID) String() string { return uuid.UUID(id).String() }
func (id DetectionID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
