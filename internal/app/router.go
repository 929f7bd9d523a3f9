package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	closeouthttp "github.com/odyssey-erp/cashrecon/internal/closeout/http"
	drawerhttp "github.com/odyssey-erp/cashrecon/internal/drawer/http"
	evidencehttp "github.com/odyssey-erp/cashrecon/internal/evidence/http"
	"github.com/odyssey-erp/cashrecon/internal/observability"
	"github.com/odyssey-erp/cashrecon/internal/rbac"
	rolloverhttp "github.com/odyssey-erp/cashrecon/internal/rollover/http"
	"github.com/odyssey-erp/cashrecon/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	RBACMiddleware  rbac.Middleware
	DrawerHandler   *drawerhttp.Handler
	RolloverHandler *rolloverhttp.Handler
	CloseoutHandler *closeouthttp.Handler
	EvidenceHandler *evidencehttp.Handler
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with service defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		params.JobHandler.MountRoutes(r)
	}

	r.Group(func(r chi.Router) {
		r.Use(params.RBACMiddleware.Identify)
		if params.DrawerHandler != nil {
			params.DrawerHandler.MountRoutes(r)
		}
		if params.RolloverHandler != nil {
			params.RolloverHandler.MountRoutes(r)
		}
		if params.CloseoutHandler != nil {
			params.CloseoutHandler.MountRoutes(r)
		}
		if params.EvidenceHandler != nil {
			params.EvidenceHandler.MountRoutes(r)
		}
	})

	return r
}
