package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/castellan-io/castellan/internal/platform/httpx"
)

// PermissionsHandler exposes the known permission enumeration, useful for
// role-management UIs.
type PermissionsHandler struct {
	rbac Middleware
}

// NewPermissionsHandler builds a PermissionsHandler.
func NewPermissionsHandler(rbac Middleware) *PermissionsHandler {
	return &PermissionsHandler{rbac: rbac}
}

// MountRoutes registers the permissions listing route.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(PermManageRoles))
		r.Get("/", h.list)
	})
}

func (h *PermissionsHandler) list(w http.ResponseWriter, r *http.Request) {
	perms := AllPermissions()
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	httpx.Success(w, http.StatusOK, "permissions retrieved", out)
}
