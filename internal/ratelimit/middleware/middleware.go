// Package middleware enforces request budgets at the HTTP boundary.
package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"linkage/internal/ratelimit/metrics"
	"linkage/internal/ratelimit/models"
	"linkage/pkg/platform/circuit"
	"linkage/pkg/platform/httputil"
	"linkage/pkg/requestcontext"
)

// Limiter answers budget checks. The primary implementation is backed by
// Redis; the fallback keeps budgets in process memory.
type Limiter interface {
	CheckDetect(ctx context.Context, tenantID, ip string, cost int) (*models.Result, error)
	CheckRead(ctx context.Context, ip string) (*models.Result, error)
	CheckWrite(ctx context.Context, ip string) (*models.Result, error)
}

// Middleware wraps handlers with budget checks. When the primary limiter
// fails repeatedly the circuit opens and the fallback limiter answers until
// the primary recovers; individual failures before the circuit opens fail
// open so a store hiccup never blocks traffic.
type Middleware struct {
	primary  Limiter
	fallback Limiter
	breaker  *circuit.Breaker
	logger   *slog.Logger
	metrics  *metrics.Metrics
	disabled bool
}

// Option configures the middleware.
type Option func(*Middleware)

// WithFallback sets the in-memory limiter used while the circuit is open.
func WithFallback(fallback Limiter) Option {
	return func(m *Middleware) { m.fallback = fallback }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Middleware) { m.metrics = mx }
}

// WithDisabled disables budgeting entirely (for tests and demo mode).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) { m.disabled = disabled }
}

// New creates budget middleware around the primary limiter.
func New(primary Limiter, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		primary: primary,
		breaker: circuit.New("ratelimit"),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("request budgets disabled")
	}
	return m
}

// DetectBudget budgets detection runs. The cost of a run is its candidate
// pool size, read from the request body without consuming it.
func (m *Middleware) DetectBudget() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			tenantID, cost := detectScope(r)
			ip := requestcontext.ClientIP(ctx)

			result, degraded := m.check(ctx, func(l Limiter) (*models.Result, error) {
				return l.CheckDetect(ctx, tenantID, ip, cost)
			})
			if result == nil {
				next.ServeHTTP(w, r)
				return
			}

			addBudgetHeaders(w, result, degraded)
			if !result.Allowed {
				writeBudgetExceeded(w, result, "detection budget exhausted for this window")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Limit budgets read or write requests keyed by client IP.
func (m *Middleware) Limit(class models.Class) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)

			result, degraded := m.check(ctx, func(l Limiter) (*models.Result, error) {
				if class == models.ClassWrite {
					return l.CheckWrite(ctx, ip)
				}
				return l.CheckRead(ctx, ip)
			})
			if result == nil {
				next.ServeHTTP(w, r)
				return
			}

			addBudgetHeaders(w, result, degraded)
			if !result.Allowed {
				writeBudgetExceeded(w, result, "too many requests from this address")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// check runs the budget call against the primary limiter and reports the
// outcome to the breaker. While the circuit is open the fallback limiter is
// authoritative and the primary is probed on every request so the circuit
// can close again. A nil result means fail open for this request.
func (m *Middleware) check(ctx context.Context, call func(Limiter) (*models.Result, error)) (*models.Result, bool) {
	result, err := call(m.primary)
	if err == nil {
		usePrimary, change := m.breaker.RecordSuccess()
		if change.Closed {
			m.logger.InfoContext(ctx, "budget store recovered, circuit closed")
			m.metrics.SetBreakerOpen(false)
		}
		if usePrimary {
			return result, false
		}
	} else {
		useFallback, change := m.breaker.RecordFailure()
		if change.Opened {
			m.logger.ErrorContext(ctx, "budget store failing, circuit opened", "error", err)
			m.metrics.SetBreakerOpen(true)
		}
		if !useFallback {
			m.logger.WarnContext(ctx, "budget check failed", "error", err)
			return nil, false
		}
	}

	if m.fallback == nil {
		return nil, true
	}
	fallbackResult, err := call(m.fallback)
	if err != nil {
		m.logger.ErrorContext(ctx, "fallback budget check failed", "error", err)
		return nil, true
	}
	m.metrics.RecordDegraded()
	return fallbackResult, true
}

// detectScope peeks at the request body for the tenant and pool size without
// consuming it. Malformed bodies cost one unit and fail validation downstream.
func detectScope(r *http.Request) (tenantID string, cost int) {
	cost = 1
	if r.Body == nil || r.ContentLength == 0 {
		return "", cost
	}

	bodyBytes, err := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	if err != nil || len(bodyBytes) == 0 {
		return "", cost
	}

	var payload struct {
		TenantID string            `json:"tenant_id"`
		Pool     []json.RawMessage `json:"pool"`
	}
	if jsonErr := json.Unmarshal(bodyBytes, &payload); jsonErr != nil {
		return "", cost
	}
	if len(payload.Pool) > cost {
		cost = len(payload.Pool)
	}
	return payload.TenantID, cost
}

func addBudgetHeaders(w http.ResponseWriter, result *models.Result, degraded bool) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
	if degraded {
		w.Header().Set("X-RateLimit-Status", "degraded")
	}
}

func writeBudgetExceeded(w http.ResponseWriter, result *models.Result, message string) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.BudgetExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    message,
		RetryAfter: result.RetryAfter,
		ResetAt:    result.ResetAt,
	})
}
