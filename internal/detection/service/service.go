// Package service orchestrates detection runs and threshold administration
// over the match engine, the profile registry, and per-tenant policies.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"linkage/internal/match/metrics"
	"linkage/internal/policy"
	"linkage/internal/profile"
	id "linkage/pkg/domain"
	dErrors "linkage/pkg/domain-errors"
	"linkage/pkg/platform/audit"
	"linkage/pkg/requestcontext"
)

// CompliancePublisher persists regulatory events. Emission is synchronous
// and reports failure; the service decides what a failure means for the
// triggering call.
type CompliancePublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

// SecurityPublisher enqueues security events. Emission never blocks.
type SecurityPublisher interface {
	Emit(event audit.SecurityEvent)
}

// OpsTracker records operational events, possibly sampled. Fire-and-forget.
type OpsTracker interface {
	Track(event audit.OpsEvent)
}

// Service exposes the engine's operations: detect, classify, explain,
// profile introspection, and threshold administration.
type Service struct {
	profiles   *profile.Registry
	policies   *policy.Registry
	logger     *slog.Logger
	metrics    *metrics.Metrics
	compliance CompliancePublisher
	security   SecurityPublisher
	ops        OpsTracker
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithCompliancePublisher(p CompliancePublisher) Option {
	return func(s *Service) {
		s.compliance = p
	}
}

func WithSecurityPublisher(p SecurityPublisher) Option {
	return func(s *Service) {
		s.security = p
	}
}

func WithOpsTracker(t OpsTracker) Option {
	return func(s *Service) {
		s.ops = t
	}
}

// New constructs a Service.
func New(profiles *profile.Registry, policies *policy.Registry, opts ...Option) (*Service, error) {
	if profiles == nil {
		return nil, errors.New("profile registry is required")
	}
	if policies == nil {
		return nil, errors.New("policy registry is required")
	}
	s := &Service{profiles: profiles, policies: policies}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// engineFor resolves a profile slug to its compiled engine.
func (s *Service) engineFor(profileID id.ProfileID) (*profile.Engine, error) {
	engine, ok := s.profiles.Get(profileID.String())
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "profile not found")
	}
	return engine, nil
}

// policyFor materializes the threshold policy for a scope, seeding it from
// the profile defaults on first touch.
func (s *Service) policyFor(ctx context.Context, key policy.Key, engine *profile.Engine) (*policy.Policy, error) {
	pol, err := s.policies.GetOrCreate(key, engine.DefaultThresholds(), requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to materialize threshold policy")
	}
	return pol, nil
}

// auditThresholdUpdated emits the compliance record for an applied update.
// The update is already visible; an audit failure never fails the call that
// triggered it.
func (s *Service) auditThresholdUpdated(ctx context.Context, key policy.Key, actor id.OperatorID, entry policy.ChangeLogEntry) {
	if s.compliance == nil {
		return
	}
	err := s.compliance.Emit(ctx, audit.ComplianceEvent{
		TenantID:  key.Tenant,
		ProfileID: key.Profile.String(),
		Subject:   fmt.Sprintf("thresholds v%d -> v%d", entry.Version-1, entry.Version),
		Action:    string(audit.EventThresholdUpdated),
		Decision:  "applied",
		Reason:    entry.Reason,
		RequestID: requestcontext.RequestID(ctx),
		ActorID:   actor.String(),
	})
	if err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "threshold change audit failed",
			"tenant_id", key.Tenant,
			"profile", key.Profile,
			"version", entry.Version,
			"error", err,
		)
	}
}

// auditThresholdRejected emits the security record for a rejected update.
func (s *Service) auditThresholdRejected(ctx context.Context, key policy.Key, actor id.OperatorID, invalid *policy.InvalidThresholdError) {
	if s.security == nil {
		return
	}
	s.security.Emit(audit.SecurityEvent{
		Subject:   key.Tenant.String(),
		Action:    string(audit.EventThresholdUpdateRejected),
		Reason:    invalid.Error(),
		IP:        requestcontext.ClientIP(ctx),
		RequestID: requestcontext.RequestID(ctx),
		ActorID:   actor.String(),
		Severity:  audit.SeverityWarning,
	})
}

// auditDetectionRejected emits the security record for a request the engine
// refused to process.
func (s *Service) auditDetectionRejected(ctx context.Context, tenantID id.TenantID, reason string) {
	if s.security == nil {
		return
	}
	s.security.Emit(audit.SecurityEvent{
		Subject:   tenantID.String(),
		Action:    string(audit.EventDetectionRejected),
		Reason:    reason,
		IP:        requestcontext.ClientIP(ctx),
		RequestID: requestcontext.RequestID(ctx),
		Severity:  audit.SeverityWarning,
	})
}

// auditDetectionCompleted records the run summary and one degradation event
// per dropped candidate. Candidate ids are hashed before they leave the
// engine.
func (s *Service) auditDetectionCompleted(ctx context.Context, cmd DetectCommand, outcome *DetectOutcome) {
	if s.ops == nil {
		return
	}
	requestID := requestcontext.RequestID(ctx)
	anchorHash := audit.HashRecordID(cmd.Anchor.ID())

	s.ops.Track(audit.OpsEvent{
		TenantID:     cmd.TenantID,
		ProfileID:    cmd.ProfileID.String(),
		DetectionID:  outcome.DetectionID.String(),
		Action:       string(audit.EventDetectionCompleted),
		Reason:       fmt.Sprintf("evaluated=%d suggestions=%d dropped=%d partial=%t", outcome.Evaluated, len(outcome.Suggestions), len(outcome.Dropped), outcome.Partial),
		RequestID:    requestID,
		AnchorIDHash: anchorHash,
	})

	for _, dropped := range outcome.Dropped {
		s.ops.Track(audit.OpsEvent{
			TenantID:     cmd.TenantID,
			ProfileID:    cmd.ProfileID.String(),
			DetectionID:  outcome.DetectionID.String(),
			Subject:      audit.HashRecordID(dropped.CandidateID),
			Action:       string(audit.EventCandidateScoringFailed),
			Reason:       fmt.Sprintf("%s: %s", dropped.Stage, dropped.Reason),
			RequestID:    requestID,
			AnchorIDHash: anchorHash,
		})
	}
}
