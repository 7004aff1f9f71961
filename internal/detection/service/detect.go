package service

import (
	"context"
	"errors"
	"time"

	"linkage/internal/explain"
	"linkage/internal/match"
	"linkage/internal/policy"
	id "linkage/pkg/domain"
	dErrors "linkage/pkg/domain-errors"
)

// DetectCommand is one detection request, already parsed and typed.
type DetectCommand struct {
	TenantID  id.TenantID
	ProfileID id.ProfileID
	Anchor    match.Entity
	Pool      []match.Entity
	// MinConfidence overrides the profile's suggestion floor when set.
	MinConfidence *float64
	// Timeout overrides the detector's run budget when positive.
	Timeout time.Duration
}

// RankedSuggestion is one suggestion with its decision band and rationale
// attached. All three derive from the same threshold snapshot.
type RankedSuggestion struct {
	match.Suggestion
	Decision    policy.Decision
	Explanation explain.Explanation
}

// DetectOutcome is the full result of a detection run.
type DetectOutcome struct {
	DetectionID id.DetectionID
	ProfileID   id.ProfileID
	Thresholds  policy.Snapshot
	Suggestions []RankedSuggestion
	Dropped     []match.DroppedCandidate
	Evaluated   int
	Partial     bool
}

// Detect runs blocking, scoring, and ranking for one anchor, then classifies
// and explains every suggestion against the scope's active thresholds.
//
// Failure containment mirrors the engine's: per-candidate failures surface
// as Dropped metadata, a budget overrun surfaces as Partial. Only requests
// the engine cannot process at all become errors.
func (s *Service) Detect(ctx context.Context, cmd DetectCommand) (*DetectOutcome, error) {
	if cmd.TenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "tenant_id is required")
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

	minConfidence := engine.MinSuggest()
	if cmd.MinConfidence != nil {
		minConfidence = *cmd.MinConfidence
	}

	result, err := engine.Detector.Detect(ctx, match.DetectRequest{
		Anchor:        cmd.Anchor,
		Pool:          cmd.Pool,
		MinConfidence: minConfidence,
		Timeout:       cmd.Timeout,
	})
	if err != nil {
		var detErr *match.DetectionError
		if errors.As(err, &detErr) {
			s.auditDetectionRejected(ctx, cmd.TenantID, detErr.Error())
			return nil, dErrors.New(dErrors.CodeInvalidInput, detErr.Error())
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "detection failed")
	}

	// One snapshot per run so every suggestion is classified and explained
	// against the same threshold generation.
	snapshot := pol.Current()

	outcome := &DetectOutcome{
		DetectionID: id.NewDetectionID(),
		ProfileID:   cmd.ProfileID,
		Thresholds:  snapshot,
		Suggestions: make([]RankedSuggestion, 0, len(result.Suggestions)),
		Dropped:     result.Dropped,
		Evaluated:   result.Evaluated,
		Partial:     result.Partial,
	}
	for _, suggestion := range result.Suggestions {
		decision := snapshot.Thresholds.Classify(suggestion.Confidence)
		rationale := explain.Explain(
			match.Score{Confidence: suggestion.Confidence, Factors: suggestion.Factors},
			decision,
			snapshot.Thresholds,
		)
		outcome.Suggestions = append(outcome.Suggestions, RankedSuggestion{
			Suggestion:  suggestion,
			Decision:    decision,
			Explanation: rationale,
		})
		s.metrics.IncrementDecision(string(decision), cmd.ProfileID.String())
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "detection completed",
			"detection_id", outcome.DetectionID,
			"tenant_id", cmd.TenantID,
			"profile", cmd.ProfileID,
			"pool", len(cmd.Pool),
			"suggestions", len(outcome.Suggestions),
			"dropped", len(outcome.Dropped),
			"partial", outcome.Partial,
		)
	}
	s.auditDetectionCompleted(ctx, cmd, outcome)

	return outcome, nil
}
