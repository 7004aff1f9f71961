package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks CompliancePublisher,SecurityPublisher,OpsTracker

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"linkage/internal/detection/service/mocks"
	"linkage/internal/policy"
	"linkage/internal/profile"
	"linkage/internal/profile/factors"
	id "linkage/pkg/domain"
	dErrors "linkage/pkg/domain-errors"
	"linkage/pkg/requestcontext"
)

// =============================================================================
// Detection Service Test Suite
// =============================================================================
// Justification for unit tests: the service is the seam between transport and
// engine. Tests verify constructor invariants, scope resolution, decision
// classification against live thresholds, audit emission, and the rule that
// audit failures never fail the triggering call.

const testProfileID = "wire-transfers"

// testProfile pairs two exact-match factors so confidences land on 1.0, 0.6,
// 0.4, or 0.0 exactly and every decision band is reachable.
func testProfile() *profile.Profile {
	return &profile.Profile{
		Meta: profile.Meta{
			ID:         testProfileID,
			Name:       "Wire transfers",
			EntityKind: "transaction",
			MinSuggest: 0.5,
		},
		Thresholds: profile.Thresholds{AutoLink: 0.95, AutoSuggest: 0.70, Manual: 0.50},
		Factors: []factors.Spec{
			{Kind: factors.KindExactField, Field: "account", Name: "account", Weight: 0.6},
			{Kind: factors.KindExactField, Field: "reference", Name: "reference", Weight: 0.4},
		},
	}
}

type ServiceSuite struct {
	suite.Suite
	ctrl           *gomock.Controller
	mockCompliance *mocks.MockCompliancePublisher
	mockSecurity   *mocks.MockSecurityPublisher
	mockOps        *mocks.MockOpsTracker
	profiles       *profile.Registry
	policies       *policy.Registry
	service        *Service

	tenantID  id.TenantID
	actorID   id.OperatorID
	profileID id.ProfileID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockCompliance = mocks.NewMockCompliancePublisher(s.ctrl)
	s.mockSecurity = mocks.NewMockSecurityPublisher(s.ctrl)
	s.mockOps = mocks.NewMockOpsTracker(s.ctrl)

	s.profiles = profile.NewRegistry()
	s.Require().NoError(s.profiles.Register(testProfile()))
	s.policies = policy.NewRegistry()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var err error
	s.service, err = New(
		s.profiles,
		s.policies,
		WithLogger(logger),
		WithCompliancePublisher(s.mockCompliance),
		WithSecurityPublisher(s.mockSecurity),
		WithOpsTracker(s.mockOps),
	)
	s.Require().NoError(err)

	var parseErr error
	s.tenantID, parseErr = id.ParseTenantID("8c2f7a54-1f4e-4a84-9631-2b8a4f5d9e01")
	s.Require().NoError(parseErr)
	s.actorID, parseErr = id.ParseOperatorID("4b9e2d10-7c3a-4f5b-8d26-9e1f0a3c6b72")
	s.Require().NoError(parseErr)
	s.profileID, parseErr = id.ParseProfileID(testProfileID)
	s.Require().NoError(parseErr)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

// operatorCtx returns a context carrying the suite's operator identity and a
// fixed request time, matching what the auth middleware injects.
func (s *ServiceSuite) operatorCtx() context.Context {
	ctx := requestcontext.WithOperatorID(context.Background(), s.actorID)
	return requestcontext.WithTime(ctx, time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC))
}

// requireCode asserts err carries the given domain error code.
func (s *ServiceSuite) requireCode(err error, code dErrors.Code) {
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, code), "want code %s, got %v", code, err)
}

// =============================================================================
// Constructor Tests (Invariant Enforcement)
// =============================================================================

func (s *ServiceSuite) TestNew() {
	s.Run("nil profile registry returns error", func() {
		_, err := New(nil, s.policies)
		s.Error(err)
		s.Contains(err.Error(), "profile registry is required")
	})

	s.Run("nil policy registry returns error", func() {
		_, err := New(s.profiles, nil)
		s.Error(err)
		s.Contains(err.Error(), "policy registry is required")
	})

	s.Run("valid registries return configured service", func() {
		svc, err := New(s.profiles, s.policies)
		s.NoError(err)
		s.NotNil(svc)
	})

	s.Run("with options applies options", func() {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		svc, err := New(
			s.profiles,
			s.policies,
			WithLogger(logger),
			WithCompliancePublisher(s.mockCompliance),
			WithSecurityPublisher(s.mockSecurity),
			WithOpsTracker(s.mockOps),
		)
		s.NoError(err)
		s.Equal(logger, svc.logger)
		s.Equal(s.mockCompliance, svc.compliance)
		s.Equal(s.mockSecurity, svc.security)
		s.Equal(s.mockOps, svc.ops)
	})
}

// =============================================================================
// Profile Introspection Tests
// =============================================================================

func (s *ServiceSuite) TestProfiles() {
	descriptors := s.service.Profiles()
	s.Require().Len(descriptors, 1)

	d := descriptors[0]
	s.Equal(testProfileID, d.ID)
	s.Equal("Wire transfers", d.Name)
	s.Equal("transaction", d.EntityKind)
	s.InDelta(0.5, d.MinSuggest, 1e-9)
	s.Equal(0.95, d.Defaults.AutoLink)
	s.Require().Len(d.Factors, 2)
	s.Equal("exact_field", d.Factors[0].Kind)
	s.Equal("account", d.Factors[0].Field)
	s.Equal(0.6, d.Factors[0].Weight)
}

func (s *ServiceSuite) TestProfile() {
	s.Run("known profile returns descriptor", func() {
		profileID, err := id.ParseProfileID(testProfileID)
		s.Require().NoError(err)

		d, err := s.service.Profile(profileID)
		s.Require().NoError(err)
		s.Equal(testProfileID, d.ID)
		s.Equal(0.70, d.Defaults.AutoSuggest)
	})

	s.Run("unknown profile returns not found", func() {
		profileID, err := id.ParseProfileID("no-such-profile")
		s.Require().NoError(err)

		_, err = s.service.Profile(profileID)
		s.requireCode(err, dErrors.CodeNotFound)
	})
}
