package rbac

import (
	"log/slog"
	"net/http"

	"github.com/castellan-io/castellan/internal/platform/httpx"
	"github.com/castellan-io/castellan/internal/shared"
)

// Middleware wires the coarse permission gate into HTTP routes.
type Middleware struct {
	Catalog *Catalog
	Logger  *slog.Logger
}

// Require ensures the current principal holds every listed permission before
// the handler runs. Per-resource checks remain with the services.
func (m Middleware) Require(perms ...Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(perms) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			principal, ok := shared.PrincipalFromContext(r.Context())
			if !ok {
				httpx.Error(w, shared.Unauthorized("authentication required"))
				return
			}
			granted, err := m.Catalog.PermissionsOf(r.Context(), principal.Role)
			if err != nil {
				if shared.KindOf(err) == shared.KindNotFound {
					httpx.Error(w, shared.Forbidden("role not found"))
					return
				}
				if m.Logger != nil {
					m.Logger.Error("resolve permissions", slog.String("role", principal.Role), slog.Any("error", err))
				}
				httpx.Error(w, shared.Internal(err))
				return
			}
			if err := Require(granted, perms...); err != nil {
				httpx.Error(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
