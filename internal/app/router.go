package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-aid/meridian-aid/internal/audit"
	"github.com/meridian-aid/meridian-aid/internal/auth"
	"github.com/meridian-aid/meridian-aid/internal/beneficiaries"
	"github.com/meridian-aid/meridian-aid/internal/deliveries"
	"github.com/meridian-aid/meridian-aid/internal/forms"
	"github.com/meridian-aid/meridian-aid/internal/observability"
	"github.com/meridian-aid/meridian-aid/internal/projects"
	syncpkg "github.com/meridian-aid/meridian-aid/internal/sync"
	"github.com/meridian-aid/meridian-aid/internal/users"
	"github.com/meridian-aid/meridian-aid/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	Auth *auth.Handler

	Projects      *projects.Handler
	Beneficiaries *beneficiaries.Handler
	Deliveries    *deliveries.Handler
	Forms         *forms.Handler
	Sync          *syncpkg.Handler
	Users         *users.Handler
	Audit         *audit.Handler
	Jobs          *jobs.Handler

	AuthMiddleware func(http.Handler) http.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with Meridian defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Auth:    params.AuthMiddleware,
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

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", params.Auth.MountRoutes)
		if params.Projects != nil {
			r.Route("/projects", params.Projects.MountRoutes)
		}
		if params.Beneficiaries != nil {
			r.Route("/beneficiaries", params.Beneficiaries.MountRoutes)
		}
		if params.Deliveries != nil {
			r.Route("/deliveries", params.Deliveries.MountRoutes)
		}
		if params.Forms != nil {
			r.Route("/forms", params.Forms.MountRoutes)
		}
		if params.Sync != nil {
			r.Route("/sync", params.Sync.MountRoutes)
		}
		if params.Users != nil {
			r.Route("/users", params.Users.MountRoutes)
		}
		if params.Audit != nil {
			r.Route("/audit", params.Audit.MountRoutes)
		}
		if params.Jobs != nil {
			r.Route("/jobs", params.Jobs.MountRoutes)
		}
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
