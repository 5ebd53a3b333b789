package activity

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/castellan-io/castellan/internal/platform/httpx"
	"github.com/castellan-io/castellan/internal/rbac"
	"github.com/castellan-io/castellan/internal/shared"
)

// Handler exposes the read-only activity trail.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers activity routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.PermViewActivity))
		r.Get("/", h.list)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	entries, err := h.service.List(r.Context(), principal, limit, offset)
	if err != nil {
		h.logger.Error("list activity", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}
	httpx.Success(w, http.StatusOK, "activity retrieved", entries)
}
