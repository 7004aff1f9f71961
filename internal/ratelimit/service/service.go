// Package service enforces sliding window budgets for the detection API.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"linkage/internal/ratelimit/config"
	"linkage/internal/ratelimit/metrics"
	"linkage/internal/ratelimit/models"
	"linkage/internal/ratelimit/observability"
	dErrors "linkage/pkg/domain-errors"
	"linkage/pkg/platform/audit"
	"linkage/pkg/requestcontext"
)

// BucketStore manages sliding window budget counters.
type BucketStore interface {
	// Allow checks if a single unit is available and consumes it if so.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error)

	// AllowN checks if 'cost' units are available and consumes them if so.
	AllowN(ctx context.Context, key string, cost, limit int, window time.Duration) (*models.Result, error)

	// Reset clears the window for a key.
	Reset(ctx context.Context, key string) error

	// GetCurrentCount returns the consumed units in the current window.
	GetCurrentCount(ctx context.Context, key string) (int, error)
}

// Service checks detection, read, and write budgets against a bucket store.
type Service struct {
	buckets  BucketStore
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

// WithSecurityPublisher wires budget violations into the security audit trail.
func WithSecurityPublisher(pub observability.SecurityPublisher) Option {
	return func(s *Service) { s.security = pub }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New creates a budget service backed by the given store.
func New(buckets BucketStore, opts ...Option) (*Service, error) {
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

// CheckDetect consumes 'cost' units from the tenant's detection budget.
// Cost is the candidate pool size, so large runs drain the budget faster.
// When the tenant is unknown the client IP carries the budget instead.
func (s *Service) CheckDetect(ctx context.Context, tenantID, ip string, cost int) (*models.Result, error) {
	if cost < 1 {
		cost = 1
	}

	if s.cfg.IsBypassed(tenantID) {
		return s.bypass(ctx, models.ClassDetect, tenantID)
	}

	scope, identifier := models.ScopeTenant, tenantID
	if identifier == "" {
		scope, identifier = models.ScopeIP, ip
	}
	return s.check(ctx, models.ClassDetect, scope, identifier, cost)
}

// CheckRead consumes one unit from the caller's read budget.
func (s *Service) CheckRead(ctx context.Context, ip string) (*models.Result, error) {
	return s.check(ctx, models.ClassRead, models.ScopeIP, ip, 1)
}

// CheckWrite consumes one unit from the caller's write budget.
func (s *Service) CheckWrite(ctx context.Context, ip string) (*models.Result, error) {
	return s.check(ctx, models.ClassWrite, models.ScopeIP, ip, 1)
}

func (s *Service) check(ctx context.Context, class models.Class, scope models.Scope, identifier string, cost int) (*models.Result, error) {
	limit, ok := s.cfg.LimitFor(class)
	if !ok {
		// Default-deny: a class without a configured budget is closed, not open.
		observability.LogAudit(ctx, s.logger, s.security, "rate_limit_config_missing",
			"identifier", identifier,
			"class", string(class),
		)
		return &models.Result{
			Allowed:    false,
			Limit:      0,
			Remaining:  0,
			ResetAt:    requestcontext.Now(ctx),
			RetryAfter: 60,
		}, nil
	}

	key := models.NewKey(class, scope, identifier)
	result, err := s.buckets.AllowN(ctx, key.String(), cost, limit.Budget, limit.Window)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check budget")
	}

	if !result.Allowed {
		s.metrics.RecordCheck(string(class), "denied")
		observability.LogAudit(ctx, s.logger, s.security, string(audit.EventRateLimitExceeded),
			"identifier", identifier,
			"class", string(class),
			"reason", string(class)+" budget exhausted",
			"cost", cost,
			"budget", limit.Budget,
			"window_seconds", int(limit.Window.Seconds()),
		)
		return result, nil
	}

	s.metrics.RecordCheck(string(class), "allowed")
	return result, nil
}

func (s *Service) bypass(ctx context.Context, class models.Class, tenantID string) (*models.Result, error) {
	limit, _ := s.cfg.LimitFor(class)
	s.metrics.RecordCheck(string(class), "bypassed")
	if s.logger != nil {
		s.logger.InfoContext(ctx, "budget bypassed",
			"tenant_id", tenantID,
			"class", string(class),
		)
	}
	return &models.Result{
		Allowed:   true,
		Bypassed:  true,
		Limit:     limit.Budget,
		Remaining: limit.Budget,
		ResetAt:   requestcontext.Now(ctx).Add(limit.Window),
	}, nil
}
