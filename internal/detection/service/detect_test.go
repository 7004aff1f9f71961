package service

import (
	"context"

	"go.uber.org/mock/gomock"

	"linkage/internal/match"
	"linkage/internal/policy"
	id "linkage/pkg/domain"
	dErrors "linkage/pkg/domain-errors"
	"linkage/pkg/platform/audit"
)

func record(recordID, account, reference string) match.Entity {
	return match.NewRecord(recordID, map[string]any{
		"account":   account,
		"reference": reference,
	})
}

// detectCommand builds the canonical three-candidate run: an exact match
// (confidence 1.0), an account-only match (0.6), and a miss (0.0).
func (s *ServiceSuite) detectCommand() DetectCommand {
	return DetectCommand{
		TenantID:  s.tenantID,
		ProfileID: s.profileID,
		Anchor:    record("txn-anchor", "ACC-77", "ref-2041"),
		Pool: []match.Entity{
			record("txn-miss", "ACC-99", "ref-0000"),
			record("txn-exact", "ACC-77", "ref-2041"),
			record("txn-partial", "ACC-77", "ref-9999"),
		},
	}
}

func (s *ServiceSuite) TestDetect_RanksClassifiesAndExplains() {
	s.mockOps.EXPECT().Track(gomock.Any()).AnyTimes()

	outcome, err := s.service.Detect(context.Background(), s.detectCommand())
	s.Require().NoError(err)

	s.False(outcome.DetectionID.IsNil())
	s.Equal(s.profileID, outcome.ProfileID)
	s.Equal(uint64(1), outcome.Thresholds.Version)
	s.False(outcome.Partial)
	s.Equal(3, outcome.Evaluated)
	s.Empty(outcome.Dropped)

	s.Require().Len(outcome.Suggestions, 2)

	top := outcome.Suggestions[0]
	s.Equal("txn-exact", top.CandidateID)
	s.Equal(1, top.PoolPosition)
	s.InDelta(1.0, top.Confidence, 1e-9)
	s.Equal(policy.DecisionAutoLink, top.Decision)
	s.Equal("auto_link", top.Explanation.ThresholdUsed)
	s.InDelta(0.95, top.Explanation.ThresholdValue, 1e-9)
	s.Equal("create the link automatically", top.Explanation.RecommendedAction)
	s.Len(top.Explanation.Factors, 2)

	second := outcome.Suggestions[1]
	s.Equal("txn-partial", second.CandidateID)
	s.InDelta(0.6, second.Confidence, 1e-9)
	s.Equal(policy.DecisionManualReview, second.Decision)
	s.Equal("manual", second.Explanation.ThresholdUsed)
	s.Equal("route to manual review", second.Explanation.RecommendedAction)
	s.Contains(second.Explanation.Rationale, "strongest signal was account")
}

func (s *ServiceSuite) TestDetect_SelfMatchExcluded() {
	s.mockOps.EXPECT().Track(gomock.Any()).AnyTimes()

	anchor := record("txn-anchor", "ACC-77", "ref-2041")
	cmd := DetectCommand{
		TenantID:  s.tenantID,
		ProfileID: s.profileID,
		Anchor:    anchor,
		Pool: []match.Entity{
			anchor,
			record("txn-exact", "ACC-77", "ref-2041"),
		},
	}

	outcome, err := s.service.Detect(context.Background(), cmd)
	s.Require().NoError(err)

	s.Require().Len(outcome.Suggestions, 1)
	s.Equal("txn-exact", outcome.Suggestions[0].CandidateID)
}

func (s *ServiceSuite) TestDetect_MinConfidenceOverride() {
	s.mockOps.EXPECT().Track(gomock.Any()).AnyTimes()

	floor := 0.99
	cmd := s.detectCommand()
	cmd.MinConfidence = &floor

	outcome, err := s.service.Detect(context.Background(), cmd)
	s.Require().NoError(err)

	s.Require().Len(outcome.Suggestions, 1)
	s.Equal("txn-exact", outcome.Suggestions[0].CandidateID)
	s.Equal(3, outcome.Evaluated)
}

func (s *ServiceSuite) TestDetect_EmitsRunSummaryAndDegradations() {
	// The broken candidate has no account field, so that factor errors and
	// the candidate is dropped at scoring.
	broken := match.NewRecord("txn-broken", map[string]any{"reference": "ref-2041"})
	cmd := s.detectCommand()
	cmd.Pool = append(cmd.Pool, broken)

	var tracked []audit.OpsEvent
	s.mockOps.EXPECT().Track(gomock.Any()).
		Do(func(event audit.OpsEvent) { tracked = append(tracked, event) }).
		Times(2)

	outcome, err := s.service.Detect(context.Background(), cmd)
	s.Require().NoError(err)

	s.Require().Len(outcome.Dropped, 1)
	s.Equal("txn-broken", outcome.Dropped[0].CandidateID)
	s.Equal(match.DropStageScoring, outcome.Dropped[0].Stage)

	s.Require().Len(tracked, 2)

	summary := tracked[0]
	s.Equal(string(audit.EventDetectionCompleted), summary.Action)
	s.Equal(s.tenantID, summary.TenantID)
	s.Equal(testProfileID, summary.ProfileID)
	s.Equal(outcome.DetectionID.String(), summary.DetectionID)
	s.Equal(audit.HashRecordID("txn-anchor"), summary.AnchorIDHash)
	s.Contains(summary.Reason, "dropped=1")

	degradation := tracked[1]
	s.Equal(string(audit.EventCandidateScoringFailed), degradation.Action)
	s.Equal(audit.HashRecordID("txn-broken"), degradation.Subject)
	s.Equal(outcome.DetectionID.String(), degradation.DetectionID)
	s.Contains(degradation.Reason, "scoring")
}

func (s *ServiceSuite) TestDetect_RejectedRequestEmitsSecurityEvent() {
	var captured audit.SecurityEvent
	s.mockSecurity.EXPECT().Emit(gomock.Any()).
		Do(func(event audit.SecurityEvent) { captured = event })

	cmd := s.detectCommand()
	cmd.Anchor = nil

	_, err := s.service.Detect(context.Background(), cmd)
	s.requireCode(err, dErrors.CodeInvalidInput)

	s.Equal(string(audit.EventDetectionRejected), captured.Action)
	s.Equal(s.tenantID.String(), captured.Subject)
	s.Equal(audit.SeverityWarning, captured.Severity)
	s.Contains(captured.Reason, "anchor is required")
}

func (s *ServiceSuite) TestDetect_UnknownProfile() {
	cmd := s.detectCommand()
	var err error
	cmd.ProfileID, err = id.ParseProfileID("no-such-profile")
	s.Require().NoError(err)

	_, err = s.service.Detect(context.Background(), cmd)
	s.requireCode(err, dErrors.CodeNotFound)
}

func (s *ServiceSuite) TestDetect_MissingTenant() {
	cmd := s.detectCommand()
	cmd.TenantID = id.TenantID{}

	_, err := s.service.Detect(context.Background(), cmd)
	s.requireCode(err, dErrors.CodeValidation)
}

func (s *ServiceSuite) TestDetect_UsesUpdatedThresholds() {
	s.mockOps.EXPECT().Track(gomock.Any()).AnyTimes()
	s.mockCompliance.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

	// Drop the auto-link floor below the partial candidate's 0.6.
	autoLink, autoSuggest := 0.58, 0.55
	_, err := s.service.UpdateThresholds(s.operatorCtx(), UpdateThresholdsCommand{
		TenantID:    s.tenantID,
		ProfileID:   s.profileID,
		AutoLink:    &autoLink,
		AutoSuggest: &autoSuggest,
		Reason:      "loosen for backfill",
	})
	s.Require().NoError(err)

	outcome, err := s.service.Detect(context.Background(), s.detectCommand())
	s.Require().NoError(err)

	s.Equal(uint64(2), outcome.Thresholds.Version)
	s.Require().Len(outcome.Suggestions, 2)
	s.Equal(policy.DecisionAutoLink, outcome.Suggestions[0].Decision)
	s.Equal(policy.DecisionAutoLink, outcome.Suggestions[1].Decision)
}
