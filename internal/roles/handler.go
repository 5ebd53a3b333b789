package roles

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/castellan-io/castellan/internal/platform/httpx"
	"github.com/castellan-io/castellan/internal/rbac"
	"github.com/castellan-io/castellan/internal/shared"
)

// Handler manages role management endpoints. All routes sit behind the
// route-wide MANAGE_ROLES gate.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	rbac     rbac.Middleware
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validate: validator.New()}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.PermManageRoles))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}
	httpx.Success(w, http.StatusOK, "roles retrieved", out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	role, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.Success(w, http.StatusOK, "role retrieved", role)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	var req CreateRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, shared.BadRequest("invalid request body"))
		return
	}
	if errs := validationErrors(h.validate.Struct(req)); errs != nil {
		httpx.ValidationError(w, errs)
		return
	}
	role, err := h.service.Create(r.Context(), principal, req)
	if err != nil {
		h.logger.Error("create role", slog.Any("error", err))
		httpx.Error(w, err)
		return
	}
	httpx.Success(w, http.StatusCreated, "role created", role)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	id, err := parseID(r)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	var req UpdateRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, shared.BadRequest("invalid request body"))
		return
	}
	if errs := validationErrors(h.validate.Struct(req)); errs != nil {
		httpx.ValidationError(w, errs)
		return
	}
	role, err := h.service.Update(r.Context(), principal, id, req)
	if err != nil {
		h.logger.Error("update role", slog.Any("error", err), slog.Int64("id", id))
		httpx.Error(w, err)
		return
	}
	httpx.Success(w, http.StatusOK, "role updated", role)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	id, err := parseID(r)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), principal, id); err != nil {
		h.logger.Error("delete role", slog.Any("error", err), slog.Int64("id", id))
		httpx.Error(w, err)
		return
	}
	httpx.Success(w, http.StatusOK, "role deleted", nil)
}

func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.BadRequest("invalid id")
	}
	return id, nil
}

func validationErrors(err error) map[string]string {
	if err == nil {
		return nil
	}
	out := make(map[string]string)
	if fieldErrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range fieldErrs {
			out[fe.Field()] = fe.Tag()
		}
	} else {
		out["general"] = err.Error()
	}
	return out
}
