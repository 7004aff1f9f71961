package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/mock/gomock"

	"linkage/internal/match"
	"linkage/internal/policy"
	id "linkage/pkg/domain"
	dErrors "linkage/pkg/domain-errors"
	"linkage/pkg/platform/audit"
)

func float64Ptr(v float64) *float64 { return &v }

// =============================================================================
// Classify Tests
// =============================================================================

func (s *ServiceSuite) TestClassify_Bands() {
	tests := []struct {
		name       string
		confidence float64
		want       policy.Decision
	}{
		{"above auto_link", 0.96, policy.DecisionAutoLink},
		{"between suggest and link", 0.82, policy.DecisionAutoSuggest},
		{"between manual and suggest", 0.55, policy.DecisionManualReview},
		{"below manual", 0.30, policy.DecisionNoMatch},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			outcome, err := s.service.Classify(context.Background(), ClassifyCommand{
				TenantID:   s.tenantID,
				ProfileID:  s.profileID,
				Confidence: tt.confidence,
			})
			s.Require().NoError(err)
			s.Equal(tt.want, outcome.Decision)
			s.Equal(tt.want, outcome.Explanation.Decision)
			s.InDelta(tt.confidence, outcome.Explanation.Confidence, 1e-9)
		})
	}
}

func (s *ServiceSuite) TestClassify_BoundaryFallsUpward() {
	tests := []struct {
		confidence float64
		want       policy.Decision
	}{
		{0.95, policy.DecisionAutoLink},
		{0.70, policy.DecisionAutoSuggest},
		{0.50, policy.DecisionManualReview},
	}

	for _, tt := range tests {
		outcome, err := s.service.Classify(context.Background(), ClassifyCommand{
			TenantID:   s.tenantID,
			ProfileID:  s.profileID,
			Confidence: tt.confidence,
		})
		s.Require().NoError(err)
		s.Equal(tt.want, outcome.Decision)
	}
}

func (s *ServiceSuite) TestClassify_Validation() {
	s.Run("confidence above one", func() {
		_, err := s.service.Classify(context.Background(), ClassifyCommand{
			TenantID: s.tenantID, ProfileID: s.profileID, Confidence: 1.5,
		})
		s.requireCode(err, dErrors.CodeValidation)
	})

	s.Run("confidence below zero", func() {
		_, err := s.service.Classify(context.Background(), ClassifyCommand{
			TenantID: s.tenantID, ProfileID: s.profileID, Confidence: -0.1,
		})
		s.requireCode(err, dErrors.CodeValidation)
	})

	s.Run("missing tenant", func() {
		_, err := s.service.Classify(context.Background(), ClassifyCommand{
			ProfileID: s.profileID, Confidence: 0.5,
		})
		s.requireCode(err, dErrors.CodeValidation)
	})
}

// =============================================================================
// Explain Tests
// =============================================================================

func (s *ServiceSuite) TestExplain_InlineThresholds() {
	rationale, err := s.service.Explain(context.Background(), ExplainCommand{
		Thresholds: &policy.ThresholdSet{AutoLink: 0.9, AutoSuggest: 0.6, Manual: 0.3},
		Confidence: 0.75,
	})
	s.Require().NoError(err)

	s.Equal(policy.DecisionAutoSuggest, rationale.Decision)
	s.Equal("auto_suggest", rationale.ThresholdUsed)
	s.InDelta(0.6, rationale.ThresholdValue, 1e-9)
	s.Contains(rationale.Rationale, "meets the auto_suggest threshold")
	s.Equal("queue the suggestion for reviewer confirmation", rationale.RecommendedAction)
}

func (s *ServiceSuite) TestExplain_WithFactorBreakdown() {
	rationale, err := s.service.Explain(context.Background(), ExplainCommand{
		Thresholds: &policy.ThresholdSet{AutoLink: 0.95, AutoSuggest: 0.7, Manual: 0.5},
		Confidence: 0.9571,
		Factors: []match.FactorOutcome{
			{Name: "amount", Weight: 0.4, Score: 1.0, Status: match.FactorOK},
			{Name: "date", Weight: 0.3, Score: 0.857, Status: match.FactorOK},
			{Name: "sign", Weight: 0.2, Score: 1.0, Status: match.FactorOK},
			{Name: "account", Weight: 0.1, Score: 1.0, Status: match.FactorOK},
		},
	})
	s.Require().NoError(err)

	s.Equal(policy.DecisionAutoLink, rationale.Decision)
	s.Equal("amount", rationale.TopFactor)
	s.InDelta(0.4, rationale.TopContribution, 1e-9)
	s.Contains(rationale.Rationale, "strongest signal was amount")
}

func (s *ServiceSuite) TestExplain_ScopeLookup() {
	rationale, err := s.service.Explain(context.Background(), ExplainCommand{
		TenantID:   s.tenantID,
		ProfileID:  s.profileID,
		Confidence: 0.96,
	})
	s.Require().NoError(err)
	s.Equal(policy.DecisionAutoLink, rationale.Decision)
	s.InDelta(0.95, rationale.ThresholdValue, 1e-9)
}

func (s *ServiceSuite) TestExplain_Validation() {
	s.Run("invalid inline thresholds", func() {
		_, err := s.service.Explain(context.Background(), ExplainCommand{
			Thresholds: &policy.ThresholdSet{AutoLink: 0.5, AutoSuggest: 0.7, Manual: 0.3},
			Confidence: 0.8,
		})
		s.requireCode(err, dErrors.CodeValidation)
	})

	s.Run("no thresholds and no scope", func() {
		_, err := s.service.Explain(context.Background(), ExplainCommand{Confidence: 0.8})
		s.requireCode(err, dErrors.CodeValidation)
	})

	s.Run("confidence out of range", func() {
		_, err := s.service.Explain(context.Background(), ExplainCommand{
			Thresholds: &policy.ThresholdSet{AutoLink: 0.9, AutoSuggest: 0.6, Manual: 0.3},
			Confidence: 1.2,
		})
		s.requireCode(err, dErrors.CodeValidation)
	})
}

// =============================================================================
// Threshold Read Tests
// =============================================================================

func (s *ServiceSuite) TestThresholds_SeedsFromProfileDefaults() {
	view, err := s.service.Thresholds(context.Background(), s.tenantID, s.profileID)
	s.Require().NoError(err)

	s.Equal(uint64(1), view.Snapshot.Version)
	s.Equal(policy.ThresholdSet{AutoLink: 0.95, AutoSuggest: 0.70, Manual: 0.50}, view.Snapshot.Thresholds)
	s.Empty(view.RecentChanges)
}

func (s *ServiceSuite) TestThresholds_UnknownProfile() {
	unknown, err := id.ParseProfileID("no-such-profile")
	s.Require().NoError(err)

	_, err = s.service.Thresholds(context.Background(), s.tenantID, unknown)
	s.requireCode(err, dErrors.CodeNotFound)
}

// =============================================================================
// Threshold Update Tests
// =============================================================================

func (s *ServiceSuite) TestUpdateThresholds_AppliesAndAudits() {
	var captured audit.ComplianceEvent
	s.mockCompliance.EXPECT().Emit(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, event audit.ComplianceEvent) error {
			captured = event
			return nil
		})

	entry, err := s.service.UpdateThresholds(s.operatorCtx(), UpdateThresholdsCommand{
		TenantID:  s.tenantID,
		ProfileID: s.profileID,
		AutoLink:  float64Ptr(0.97),
		Reason:    "quarterly calibration",
	})
	s.Require().NoError(err)

	s.Equal(uint64(2), entry.Version)
	s.Equal(policy.ThresholdSet{AutoLink: 0.95, AutoSuggest: 0.70, Manual: 0.50}, entry.Previous)
	s.Equal(policy.ThresholdSet{AutoLink: 0.97, AutoSuggest: 0.70, Manual: 0.50}, entry.Current)
	s.Equal(s.actorID.String(), entry.ChangedBy)
	s.Equal("quarterly calibration", entry.Reason)
	s.Equal(time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC), entry.ChangedAt)

	s.Equal(string(audit.EventThresholdUpdated), captured.Action)
	s.Equal(s.tenantID, captured.TenantID)
	s.Equal(testProfileID, captured.ProfileID)
	s.Equal("applied", captured.Decision)
	s.Equal(s.actorID.String(), captured.ActorID)
	s.Contains(captured.Subject, "v1 -> v2")

	view, err := s.service.Thresholds(context.Background(), s.tenantID, s.profileID)
	s.Require().NoError(err)
	s.Equal(uint64(2), view.Snapshot.Version)
	s.Require().Len(view.RecentChanges, 1)
	s.Equal(entry.Version, view.RecentChanges[0].Version)
}

func (s *ServiceSuite) TestUpdateThresholds_RejectsInvalidSet() {
	var captured audit.SecurityEvent
	s.mockSecurity.EXPECT().Emit(gomock.Any()).
		Do(func(event audit.SecurityEvent) { captured = event })

	// auto_link 0.50 would land below the active auto_suggest of 0.70.
	_, err := s.service.UpdateThresholds(s.operatorCtx(), UpdateThresholdsCommand{
		TenantID:  s.tenantID,
		ProfileID: s.profileID,
		AutoLink:  float64Ptr(0.50),
		Reason:    "tighten",
	})
	s.requireCode(err, dErrors.CodeConflict)

	var de *dErrors.Error
	s.Require().True(errors.As(err, &de))
	s.Contains(de.Message(), "auto_suggest < auto_link")

	s.Equal(string(audit.EventThresholdUpdateRejected), captured.Action)
	s.Equal(audit.SeverityWarning, captured.Severity)
	s.Equal(s.actorID.String(), captured.ActorID)

	// The active set is untouched.
	view, err := s.service.Thresholds(context.Background(), s.tenantID, s.profileID)
	s.Require().NoError(err)
	s.Equal(uint64(1), view.Snapshot.Version)
	s.Equal(policy.ThresholdSet{AutoLink: 0.95, AutoSuggest: 0.70, Manual: 0.50}, view.Snapshot.Thresholds)
	s.Empty(view.RecentChanges)
}

func (s *ServiceSuite) TestUpdateThresholds_AuditFailureDoesNotFailUpdate() {
	s.mockCompliance.EXPECT().Emit(gomock.Any(), gomock.Any()).
		Return(errors.New("outbox unavailable"))

	entry, err := s.service.UpdateThresholds(s.operatorCtx(), UpdateThresholdsCommand{
		TenantID:  s.tenantID,
		ProfileID: s.profileID,
		Manual:    float64Ptr(0.45),
		Reason:    "widen review band",
	})
	s.Require().NoError(err)
	s.Equal(uint64(2), entry.Version)

	view, err := s.service.Thresholds(context.Background(), s.tenantID, s.profileID)
	s.Require().NoError(err)
	s.InDelta(0.45, view.Snapshot.Thresholds.Manual, 1e-9)
}

func (s *ServiceSuite) TestUpdateThresholds_RequiresOperator() {
	_, err := s.service.UpdateThresholds(context.Background(), UpdateThresholdsCommand{
		TenantID:  s.tenantID,
		ProfileID: s.profileID,
		AutoLink:  float64Ptr(0.97),
	})
	s.requireCode(err, dErrors.CodeUnauthorized)
}

func (s *ServiceSuite) TestUpdateThresholds_RequiresAField() {
	_, err := s.service.UpdateThresholds(s.operatorCtx(), UpdateThresholdsCommand{
		TenantID:  s.tenantID,
		ProfileID: s.profileID,
		Reason:    "noop",
	})
	s.requireCode(err, dErrors.CodeValidation)
}

func (s *ServiceSuite) TestUpdateThresholds_UnknownProfile() {
	unknown, err := id.ParseProfileID("no-such-profile")
	s.Require().NoError(err)

	_, err = s.service.UpdateThresholds(s.operatorCtx(), UpdateThresholdsCommand{
		TenantID:  s.tenantID,
		ProfileID: unknown,
		AutoLink:  float64Ptr(0.97),
	})
	s.requireCode(err, dErrors.CodeNotFound)
}
