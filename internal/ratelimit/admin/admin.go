// Package admin exposes budget inspection and reset operations.
package admin

import (
	"context"
	"errors"
	"log/slog"

	"linkage/internal/ratelimit/config"
	"linkage/internal/ratelimit/metrics"
	"linkage/internal/ratelimit/models"
	"linkage/internal/ratelimit/observability"
	"linkage/internal/ratelimit/service"
	dErrors "linkage/pkg/domain-errors"
)

// Service manages budget windows on behalf of operators.
type Service struct {
	buckets  service.BucketStore
	cfg      *config.Config
	logger   *slog.Logger
	security observability.SecurityPublisher
	metrics  *metrics.Metrics
}

// Option configures the service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithConfig replaces the default budget table.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithSecurityPublisher wires admin actions into the security audit trail.
func WithSecurityPublisher(pub observability.SecurityPublisher) Option {
	return func(s *Service) { s.security = pub }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New creates an admin service over the given bucket store.
func New(buckets service.BucketStore, opts ...Option) (*Service, error) {
	if buckets == nil {
		return nil, errors.New("bucket store is required")
	}

	svc := &Service{
		buckets: buckets,
		cfg:     config.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Usage reports the current window for one budget key.
func (s *Service) Usage(ctx context.Context, class models.Class, scope models.Scope, identifier string) (*models.UsageSnapshot, error) {
	if err := validateKey(class, scope, identifier); err != nil {
		return nil, err
	}

	key := models.NewKey(class, scope, identifier)
	used, err := s.buckets.GetCurrentCount(ctx, key.String())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read budget usage")
	}

	limit, _ := s.cfg.LimitFor(class)
	return &models.UsageSnapshot{
		Class:      class,
		Scope:      scope,
		Identifier: identifier,
		Used:       used,
		Budget:     limit.Budget,
		Remaining:  max(0, limit.Budget-used),
		WindowSecs: int(limit.Window.Seconds()),
	}, nil
}

// ResetBudget clears the current window for one budget key. The action is
// recorded on the security audit trail because it widens what a caller can do.
func (s *Service) ResetBudget(ctx context.Context, class models.Class, scope models.Scope, identifier string) error {
	if err := validateKey(class, scope, identifier); err != nil {
		return err
	}

	key := models.NewKey(class, scope, identifier)
	if err := s.buckets.Reset(ctx, key.String()); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset budget")
	}

	s.metrics.RecordReset()
	observability.LogAudit(ctx, s.logger, s.security, "rate_limit_reset",
		"identifier", identifier,
		"class", string(class),
		"scope", string(scope),
		"reason", "admin budget reset",
	)
	return nil
}

func validateKey(class models.Class, scope models.Scope, identifier string) error {
	if !class.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid rate limit class: must be 'detect', 'read' or 'write'")
	}
	if !scope.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid rate limit scope: must be 'tenant' or 'ip'")
	}
	if identifier == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "identifier cannot be empty")
	}
	return nil
}
