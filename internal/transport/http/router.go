// Package httptransport assembles the service's HTTP surface: the request
// context middleware chain, the detection API, budget administration, health
// probes, and the Prometheus scrape endpoint.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	detecthandler "linkage/internal/detection/handler"
	platformmetrics "linkage/internal/platform/metrics"
	budgethandler "linkage/internal/ratelimit/handler"
	"linkage/pkg/platform/httputil"
	adminmw "linkage/pkg/platform/middleware/admin"
	"linkage/pkg/platform/middleware/metadata"
	"linkage/pkg/platform/middleware/requestid"
	"linkage/pkg/platform/middleware/requesttime"
)

// Check probes one backing dependency for the readiness endpoint.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// RouterConfig carries the handlers and middleware the router mounts.
type RouterConfig struct {
	Detection   *detecthandler.Handler
	BudgetAdmin *budgethandler.Handler
	Metrics     *platformmetrics.Metrics
	AdminToken  string
	Readiness   []Check
	Logger      *slog.Logger
}

// NewRouter wires the full HTTP surface. Budget middleware is attached to the
// detection routes by the detection handler itself; admin routes sit behind
// the admin token check.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(requestid.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", handleHealthz)
	r.Get("/readyz", handleReadyz(cfg.Readiness))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	cfg.Detection.Register(r)

	if cfg.BudgetAdmin != nil {
		r.Route("/admin", func(r chi.Router) {
			r.Use(adminmw.RequireAdminToken(cfg.AdminToken, cfg.Logger))
			cfg.BudgetAdmin.RegisterAdmin(r)
		})
	}

	return r
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz runs every registered probe and reports per-dependency status.
// Any failing probe turns the response into a 503 so load balancers stop
// routing to this instance.
func handleReadyz(checks []Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for _, check := range checks {
			if err := check.Probe(r.Context()); err != nil {
				status = http.StatusServiceUnavailable
				results[check.Name] = err.Error()
				continue
			}
			results[check.Name] = "ok"
		}
		httputil.WriteJSON(w, status, results)
	}
}
