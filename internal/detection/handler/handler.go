// Package handler exposes the detection API over HTTP: detection runs,
// confidence classification, decision explanations, profile discovery, and
// per-tenant threshold administration.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"linkage/internal/detection/service"
	"linkage/internal/explain"
	"linkage/internal/policy"
	id "linkage/pkg/domain"
	dErrors "linkage/pkg/domain-errors"
	"linkage/pkg/platform/httputil"
	"linkage/pkg/requestcontext"
)

// Service is the detection application surface the handler depends on.
type Service interface {
	Detect(ctx context.Context, cmd service.DetectCommand) (*service.DetectOutcome, error)
	Classify(ctx context.Context, cmd service.ClassifyCommand) (*service.ClassifyOutcome, error)
	Explain(ctx context.Context, cmd service.ExplainCommand) (*explain.Explanation, error)
	Thresholds(ctx context.Context, tenantID id.TenantID, profileID id.ProfileID) (*service.ThresholdsView, error)
	UpdateThresholds(ctx context.Context, cmd service.UpdateThresholdsCommand) (*policy.ChangeLogEntry, error)
	Profiles() []service.ProfileDescriptor
	Profile(profileID id.ProfileID) (*service.ProfileDescriptor, error)
}

// Handler serves the detection API endpoints.
type Handler struct {
	service      Service
	logger       *slog.Logger
	operatorAuth func(http.Handler) http.Handler
	detectBudget func(http.Handler) http.Handler
	readBudget   func(http.Handler) http.Handler
	writeBudget  func(http.Handler) http.Handler
}

// Option configures optional handler behavior.
type Option func(*Handler)

// WithOperatorAuth guards threshold mutation with the given middleware.
// Without it the route is mounted bare; the service still refuses changes
// that carry no operator identity.
func WithOperatorAuth(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) { h.operatorAuth = mw }
}

// WithDetectBudget applies the given budget middleware to the detect route.
func WithDetectBudget(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) { h.detectBudget = mw }
}

// WithReadBudget applies the given budget middleware to the read-only routes.
func WithReadBudget(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) { h.readBudget = mw }
}

// WithWriteBudget applies the given budget middleware to the mutating routes.
func WithWriteBudget(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) { h.writeBudget = mw }
}

// New creates a detection API handler.
func New(svc Service, logger *slog.Logger, opts ...Option) *Handler {
	passthrough := func(next http.Handler) http.Handler { return next }
	h := &Handler{
		service:      svc,
		logger:       logger,
		operatorAuth: passthrough,
		detectBudget: passthrough,
		readBudget:   passthrough,
		writeBudget:  passthrough,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the detection API routes on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.With(h.detectBudget).Post("/detect", h.HandleDetect)

		r.Group(func(r chi.Router) {
			r.Use(h.readBudget)
			r.Post("/classify", h.HandleClassify)
			r.Post("/explain", h.HandleExplain)
			r.Get("/profiles", h.HandleListProfiles)
			r.Get("/profiles/{profile}", h.HandleGetProfile)
			r.Get("/tenants/{tenant}/profiles/{profile}/thresholds", h.HandleGetThresholds)
		})

		r.With(h.writeBudget, h.operatorAuth).
			Put("/tenants/{tenant}/profiles/{profile}/thresholds", h.HandleUpdateThresholds)
	})
}

// HandleDetect runs link detection for an anchor against a candidate pool.
// POST /v1/detect
func (h *Handler) HandleDetect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[DetectRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	outcome, err := h.service.Detect(ctx, req.Command())
	if err != nil {
		h.logger.ErrorContext(ctx, "detection failed",
			"request_id", requestID,
			"tenant_id", req.TenantID,
			"profile", req.Profile,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "detection completed",
		"request_id", requestID,
		"detection_id", outcome.DetectionID.String(),
		"profile", req.Profile,
		"pool", len(req.Pool),
		"suggestions", len(outcome.Suggestions),
		"partial", outcome.Partial,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromDetectOutcome(outcome))
}

// HandleClassify maps a confidence value to its decision band under the
// tenant's active thresholds.
// POST /v1/classify
func (h *Handler) HandleClassify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ClassifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	outcome, err := h.service.Classify(ctx, req.Command())
	if err != nil {
		h.logger.ErrorContext(ctx, "classification failed",
			"request_id", requestID,
			"tenant_id", req.TenantID,
			"profile", req.Profile,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromClassifyOutcome(outcome))
}

// HandleExplain produces a decision explanation for a confidence value and
// optional factor breakdown, against inline thresholds or a tenant scope.
// POST /v1/explain
func (h *Handler) HandleExplain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ExplainRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	explanation, err := h.service.Explain(ctx, req.Command())
	if err != nil {
		h.logger.ErrorContext(ctx, "explanation failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, explanation)
}

// HandleListProfiles lists the registered detection profiles.
// GET /v1/profiles
func (h *Handler) HandleListProfiles(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, FromDescriptors(h.service.Profiles()))
}

// HandleGetProfile describes one detection profile.
// GET /v1/profiles/{profile}
func (h *Handler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	profileID, err := id.ParseProfileID(chi.URLParam(r, "profile"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	descriptor, err := h.service.Profile(profileID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromDescriptor(*descriptor))
}

// HandleGetThresholds returns the active thresholds and recent changes for a
// tenant and profile.
// GET /v1/tenants/{tenant}/profiles/{profile}/thresholds
func (h *Handler) HandleGetThresholds(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID, profileID, ok := h.scopeParams(w, r)
	if !ok {
		return
	}

	view, err := h.service.Thresholds(ctx, tenantID, profileID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromThresholdsView(tenantID, profileID, view))
}

// HandleUpdateThresholds applies a threshold change for a tenant and profile.
// PUT /v1/tenants/{tenant}/profiles/{profile}/thresholds
func (h *Handler) HandleUpdateThresholds(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	actorID := requestcontext.OperatorID(ctx)
	if actorID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	tenantID, profileID, ok := h.scopeParams(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[UpdateThresholdsRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	entry, err := h.service.UpdateThresholds(ctx, req.Command(tenantID, profileID))
	if err != nil {
		h.logger.ErrorContext(ctx, "threshold update failed",
			"request_id", requestID,
			"tenant_id", tenantID.String(),
			"profile", profileID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "thresholds updated",
		"request_id", requestID,
		"tenant_id", tenantID.String(),
		"profile", profileID.String(),
		"version", entry.Version,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromChangeLogEntry(tenantID, profileID, entry))
}

// scopeParams parses the tenant and profile URL parameters, writing the error
// response itself on failure.
func (h *Handler) scopeParams(w http.ResponseWriter, r *http.Request) (id.TenantID, id.ProfileID, bool) {
	tenantID, err := id.ParseTenantID(chi.URLParam(r, "tenant"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.TenantID{}, "", false
	}

	profileID, err := id.ParseProfileID(chi.URLParam(r, "profile"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.TenantID{}, "", false
	}

	return tenantID, profileID, true
}
