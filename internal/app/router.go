package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/castellan-io/castellan/internal/activity"
	"github.com/castellan-io/castellan/internal/auth"
	"github.com/castellan-io/castellan/internal/observability"
	"github.com/castellan-io/castellan/internal/posts"
	"github.com/castellan-io/castellan/internal/rbac"
	"github.com/castellan-io/castellan/internal/roles"
	"github.com/castellan-io/castellan/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	TokenManager       *auth.TokenManager
	AuthHandler        *auth.Handler
	UsersHandler       *users.Handler
	RolesHandler       *roles.Handler
	PostsHandler       *posts.Handler
	ActivityHandler    *activity.Handler
	PermissionsHandler *rbac.PermissionsHandler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
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

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", params.AuthHandler.MountRoutes)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(params.TokenManager))
			r.Route("/users", params.UsersHandler.MountRoutes)
			r.Route("/roles", params.RolesHandler.MountRoutes)
			r.Route("/posts", params.PostsHandler.MountRoutes)
			r.Route("/activity", params.ActivityHandler.MountRoutes)
			if params.PermissionsHandler != nil {
				r.Route("/permissions", params.PermissionsHandler.MountRoutes)
			}
		})
	})

	return r
}
