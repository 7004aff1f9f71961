package service

import (
	"context"
	"errors"

	"linkage/internal/policy"
	id "linkage/pkg/domain"
	dErrors "linkage/pkg/domain-errors"
	"linkage/pkg/requestcontext"
)

// ThresholdsView is the read surface for one scope's active configuration.
type ThresholdsView struct {
	Snapshot      policy.Snapshot
	RecentChanges []policy.ChangeLogEntry
}

// Thresholds returns a scope's active snapshot and retained change history,
// materializing the policy from profile defaults on first touch.
func (s *Service) Thresholds(ctx context.Context, tenantID id.TenantID, profileID id.ProfileID) (*ThresholdsView, error) {
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "tenant_id is required")
	}
	engine, err := s.engineFor(profileID)
	if err != nil {
		return nil, err
	}
	pol, err := s.policyFor(ctx, policy.Key{Tenant: tenantID, Profile: profileID}, engine)
	if err != nil {
		return nil, err
	}
	return &ThresholdsView{
		Snapshot:      pol.Current(),
		RecentChanges: pol.RecentChanges(),
	}, nil
}

// UpdateThresholdsCommand is a partial threshold update for one scope. Nil
// fields keep their current values.
type UpdateThresholdsCommand struct {
	TenantID    id.TenantID
	ProfileID   id.ProfileID
	AutoLink    *float64
	AutoSuggest *float64
	Manual      *float64
	Reason      string
}

// UpdateThresholds merges the partial update over the scope's active set,
// validates the merged whole, and publishes it atomically. The acting
// operator comes from the request context; unauthenticated calls are
// rejected before the policy is touched.
//
// A rejected update leaves the active set untouched and returns CodeConflict
// naming the violated constraint.
func (s *Service) UpdateThresholds(ctx context.Context, cmd UpdateThresholdsCommand) (*policy.ChangeLogEntry, error) {
	actor := requestcontext.OperatorID(ctx)
	if actor.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "operator identity is required")
	}
	if cmd.TenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "tenant_id is required")
	}
	if cmd.AutoLink == nil && cmd.AutoSuggest == nil && cmd.Manual == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one threshold must be provided")
	}

	engine, err := s.engineFor(cmd.ProfileID)
	if err != nil {
		return nil, err
	}
	key := policy.Key{Tenant: cmd.TenantID, Profile: cmd.ProfileID}
	pol, err := s.policyFor(ctx, key, engine)
	if err != nil {
		return nil, err
	}

	entry, err := pol.Update(policy.UpdateRequest{
		AutoLink:    cmd.AutoLink,
		AutoSuggest: cmd.AutoSuggest,
		Manual:      cmd.Manual,
		ChangedBy:   actor.String(),
		Reason:      cmd.Reason,
	}, requestcontext.Now(ctx))
	if err != nil {
		var invalid *policy.InvalidThresholdError
		if errors.As(err, &invalid) {
			s.metrics.IncrementThresholdUpdate("rejected")
			s.auditThresholdRejected(ctx, key, actor, invalid)
			return nil, dErrors.New(dErrors.CodeConflict, invalid.Error())
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "threshold update failed")
	}

	s.metrics.IncrementThresholdUpdate("applied")
	if s.logger != nil {
		s.logger.InfoContext(ctx, "thresholds updated",
			"tenant_id", cmd.TenantID,
			"profile", cmd.ProfileID,
			"version", entry.Version,
			"changed_by", entry.ChangedBy,
		)
	}
	s.auditThresholdUpdated(ctx, key, actor, entry)

	return &entry, nil
}
