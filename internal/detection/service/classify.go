package service

import (
	"context"

	"linkage/internal/explain"
	"linkage/internal/match"
	"linkage/internal/policy"
	id "linkage/pkg/domain"
	dErrors "linkage/pkg/domain-errors"
)

// ClassifyCommand asks which band a confidence value falls in for a scope.
type ClassifyCommand struct {
	TenantID   id.TenantID
	ProfileID  id.ProfileID
	Confidence float64
}

// ClassifyOutcome carries the decision with the snapshot it came from.
type ClassifyOutcome struct {
	Decision    policy.Decision
	Explanation explain.Explanation
	Thresholds  policy.Snapshot
}

// Classify maps a bare confidence value to its decision band under the
// scope's active thresholds.
func (s *Service) Classify(ctx context.Context, cmd ClassifyCommand) (*ClassifyOutcome, error) {
	if cmd.TenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "tenant_id is required")
	}
	if cmd.Confidence < 0 || cmd.Confidence > 1 {
		return nil, dErrors.New(dErrors.CodeValidation, "confidence must be in [0, 1]")
	}

	engine, err := s.engineFor(cmd.ProfileID)
	if err != nil {
		return nil, err
	}
	pol, err := s.policyFor(ctx, policy.Key{Tenant: cmd.TenantID, Profile: cmd.ProfileID}, engine)
	if err != nil {
		return nil, err
	}

	snapshot := pol.Current()
	decision := snapshot.Thresholds.Classify(cmd.Confidence)
	s.metrics.IncrementDecision(string(decision), cmd.ProfileID.String())

	return &ClassifyOutcome{
		Decision:    decision,
		Explanation: explain.ExplainClassification(cmd.Confidence, decision, snapshot.Thresholds),
		Thresholds:  snapshot,
	}, nil
}

// ExplainCommand asks for the rationale behind a confidence value. The
// threshold set comes either inline or from a (tenant, profile) scope;
// an inline set wins when both are present.
type ExplainCommand struct {
	TenantID   id.TenantID
	ProfileID  id.ProfileID
	Thresholds *policy.ThresholdSet
	Confidence float64
	// Factors optionally carries the scoring breakdown so the rationale can
	// cite the strongest contributor.
	Factors []match.FactorOutcome
}

// Explain rebuilds the rationale for a confidence value after the fact.
// Pure apart from the scope lookup: nothing is recorded or counted.
func (s *Service) Explain(ctx context.Context, cmd ExplainCommand) (*explain.Explanation, error) {
	if cmd.Confidence < 0 || cmd.Confidence > 1 {
		return nil, dErrors.New(dErrors.CodeValidation, "confidence must be in [0, 1]")
	}

	var set policy.ThresholdSet
	switch {
	case cmd.Thresholds != nil:
		if err := cmd.Thresholds.Validate(); err != nil {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		set = *cmd.Thresholds
	case !cmd.TenantID.IsNil() && !cmd.ProfileID.IsNil():
		engine, err := s.engineFor(cmd.ProfileID)
		if err != nil {
			return nil, err
		}
		pol, err := s.policyFor(ctx, policy.Key{Tenant: cmd.TenantID, Profile: cmd.ProfileID}, engine)
		if err != nil {
			return nil, err
		}
		set = pol.Current().Thresholds
	default:
		return nil, dErrors.New(dErrors.CodeValidation, "either thresholds or tenant_id and profile are required")
	}

	decision := set.Classify(cmd.Confidence)
	rationale := explain.Explain(
		match.Score{Confidence: cmd.Confidence, Factors: cmd.Factors},
		decision,
		set,
	)
	return &rationale, nil
}
