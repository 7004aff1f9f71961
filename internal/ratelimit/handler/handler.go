// Package handler exposes the budget admin API over HTTP.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"linkage/internal/ratelimit/admin"
	"linkage/internal/ratelimit/models"
	"linkage/pkg/platform/httputil"
	"linkage/pkg/requestcontext"
)

// Handler serves budget inspection and reset endpoints. Mount it behind the
// admin token middleware; it performs no authentication of its own.
type Handler struct {
	admin  *admin.Service
	logger *slog.Logger
}

// New creates a budget admin handler.
func New(adminSvc *admin.Service, logger *slog.Logger) *Handler {
	return &Handler{admin: adminSvc, logger: logger}
}

// RegisterAdmin mounts the admin routes on the router.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Route("/rate-limit/{class}/{scope}/{identifier}", func(r chi.Router) {
		r.Get("/", h.HandleGetUsage)
		r.Delete("/", h.HandleResetBudget)
	})
}

// HandleGetUsage returns the current window for one budget key.
func (h *Handler) HandleGetUsage(w http.ResponseWriter, r *http.Request) {
	class, scope, identifier, ok := budgetParams(w, r)
	if !ok {
		return
	}

	snapshot, err := h.admin.Usage(r.Context(), class, scope, identifier)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snapshot)
}

// HandleResetBudget clears the current window for one budget key.
func (h *Handler) HandleResetBudget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	class, scope, identifier, ok := budgetParams(w, r)
	if !ok {
		return
	}

	if err := h.admin.ResetBudget(ctx, class, scope, identifier); err != nil {
		h.logger.ErrorContext(ctx, "budget reset failed",
			"request_id", requestcontext.RequestID(ctx),
			"class", string(class),
			"identifier", identifier,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &models.ResetResponse{
		Class:      class,
		Scope:      scope,
		Identifier: identifier,
		Reset:      true,
	})
}

func budgetParams(w http.ResponseWriter, r *http.Request) (models.Class, models.Scope, string, bool) {
	class, err := models.ParseClass(chi.URLParam(r, "class"))
	if err != nil {
		httputil.WriteError(w, err)
		return "", "", "", false
	}
	scope, err := models.ParseScope(chi.URLParam(r, "scope"))
	if err != nil {
		httputil.WriteError(w, err)
		return "", "", "", false
	}
	identifier := chi.URLParam(r, "identifier")
	return class, scope, identifier, true
}
