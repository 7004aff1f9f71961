package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkage/internal/ratelimit/config"
	"linkage/internal/ratelimit/models"
	"linkage/internal/ratelimit/service"
	"linkage/internal/ratelimit/store/bucket"
	"linkage/pkg/requestcontext"
)

// stubLimiter answers every check with a fixed result or error and records
// the arguments it was called with.
type stubLimiter struct {
	result *models.Result
	err    error

	detectTenant string
	detectIP     string
	detectCost   int
	readCalls    int
	writeCalls   int
}

func (l *stubLimiter) CheckDetect(_ context.Context, tenantID, ip string, cost int) (*models.Result, error) {
	l.detectTenant, l.detectIP, l.detectCost = tenantID, ip, cost
	return l.result, l.err
}

func (l *stubLimiter) CheckRead(context.Context, string) (*models.Result, error) {
	l.readCalls++
	return l.result, l.err
}

func (l *stubLimiter) CheckWrite(context.Context, string) (*models.Result, error) {
	l.writeCalls++
	return l.result, l.err
}

func allowedResult(limit, remaining int) *models.Result {
	return &models.Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   time.Now().Add(time.Minute),
	}
}

func deniedResult(retryAfter int) *models.Result {
	return &models.Result{
		Allowed:    false,
		Limit:      10,
		Remaining:  0,
		ResetAt:    time.Now().Add(time.Minute),
		RetryAfter: retryAfter,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func performDetect(t *testing.T, mw func(http.Handler) http.Handler, body string, next http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	if next == nil {
		next = func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/detect", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(requestcontext.WithClientMetadata(req.Context(), "203.0.113.7", "test-agent"))

	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)
	return rec
}

func TestDetectBudget_AllowsAndSetsHeaders(t *testing.T) {
	limiter := &stubLimiter{result: allowedResult(100, 97)}
	m := New(limiter, discardLogger())

	rec := performDetect(t, m.DetectBudget(), `{"tenant_id":"t-1","pool":[{},{},{}]}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "100", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "97", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
	assert.Empty(t, rec.Header().Get("X-RateLimit-Status"))

	assert.Equal(t, "t-1", limiter.detectTenant)
	assert.Equal(t, "203.0.113.7", limiter.detectIP)
	assert.Equal(t, 3, limiter.detectCost)
}

func TestDetectBudget_DeniesWith429(t *testing.T) {
	limiter := &stubLimiter{result: deniedResult(42)}
	m := New(limiter, discardLogger())

	nextCalled := false
	rec := performDetect(t, m.DetectBudget(), `{"tenant_id":"t-1","pool":[{}]}`, func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
	})

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "42", rec.Header().Get("Retry-After"))
	assert.False(t, nextCalled)

	var body models.BudgetExceededResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "rate_limit_exceeded", body.Error)
	assert.Equal(t, 42, body.RetryAfter)
}

func TestDetectBudget_PreservesRequestBody(t *testing.T) {
	limiter := &stubLimiter{result: allowedResult(100, 99)}
	m := New(limiter, discardLogger())

	payload := `{"tenant_id":"t-1","pool":[{"id":"a"},{"id":"b"}]}`
	var seen string
	rec := performDetect(t, m.DetectBudget(), payload, func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		seen = string(raw)
		w.WriteHeader(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, payload, seen)
	assert.Equal(t, 2, limiter.detectCost)
}

func TestDetectBudget_MalformedBodyCostsOne(t *testing.T) {
	limiter := &stubLimiter{result: allowedResult(100, 99)}
	m := New(limiter, discardLogger())

	rec := performDetect(t, m.DetectBudget(), `{"tenant_id":`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "", limiter.detectTenant)
	assert.Equal(t, 1, limiter.detectCost)
}

func TestDetectBudget_FailsOpenOnSingleError(t *testing.T) {
	limiter := &stubLimiter{err: errors.New("store down")}
	m := New(limiter, discardLogger())

	rec := performDetect(t, m.DetectBudget(), `{"tenant_id":"t-1","pool":[{}]}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestDetectBudget_FallbackAfterCircuitOpens(t *testing.T) {
	primary := &stubLimiter{err: errors.New("store down")}

	fallback, err := service.New(bucket.New(),
		service.WithLogger(discardLogger()),
		service.WithConfig(&config.Config{
			Detect: config.Limit{Budget: 2, Window: time.Minute},
			Read:   config.Limit{Budget: 2, Window: time.Minute},
			Write:  config.Limit{Budget: 2, Window: time.Minute},
		}),
	)
	require.NoError(t, err)

	m := New(primary, discardLogger(), WithFallback(fallback))

	// Failures before the threshold fail open without consulting the fallback.
	for range 4 {
		rec := performDetect(t, m.DetectBudget(), `{"tenant_id":"t-1","pool":[{}]}`, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Empty(t, rec.Header().Get("X-RateLimit-Status"))
	}

	// The fifth failure opens the circuit; the fallback becomes authoritative.
	rec := performDetect(t, m.DetectBudget(), `{"tenant_id":"t-1","pool":[{}]}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "degraded", rec.Header().Get("X-RateLimit-Status"))

	rec = performDetect(t, m.DetectBudget(), `{"tenant_id":"t-1","pool":[{}]}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Budget of 2 is now spent; the in-memory window denies the third run.
	rec = performDetect(t, m.DetectBudget(), `{"tenant_id":"t-1","pool":[{}]}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "degraded", rec.Header().Get("X-RateLimit-Status"))
}

func TestLimit_RoutesClassToLimiter(t *testing.T) {
	limiter := &stubLimiter{result: allowedResult(10, 9)}
	m := New(limiter, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/v1/profiles", nil)
	req = req.WithContext(requestcontext.WithClientMetadata(req.Context(), "203.0.113.7", "test-agent"))
	rec := httptest.NewRecorder()
	m.Limit(models.ClassRead)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)

	assert.Equal(t, 1, limiter.readCalls)
	assert.Equal(t, 0, limiter.writeCalls)

	req = httptest.NewRequest(http.MethodPut, "/v1/thresholds", nil)
	req = req.WithContext(requestcontext.WithClientMetadata(req.Context(), "203.0.113.7", "test-agent"))
	rec = httptest.NewRecorder()
	m.Limit(models.ClassWrite)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)

	assert.Equal(t, 1, limiter.writeCalls)
}

func TestMiddleware_Disabled(t *testing.T) {
	limiter := &stubLimiter{result: deniedResult(60)}
	m := New(limiter, discardLogger(), WithDisabled(true))

	rec := performDetect(t, m.DetectBudget(), `{"tenant_id":"t-1","pool":[{}]}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, limiter.detectCost)
}
