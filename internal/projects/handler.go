package projects

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-aid/meridian-aid/internal/platform/httpx"
	"github.com/meridian-aid/meridian-aid/internal/rbac"
	"github.com/meridian-aid/meridian-aid/internal/scope"
	"github.com/meridian-aid/meridian-aid/internal/shared"
)

// Handler manages hierarchy endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	authz    *scope.Authorizer
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authz *scope.Authorizer, rbac rbac.Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		authz:    authz,
		validate: validator.New(),
		rbac:     rbac,
	}
}

// MountRoutes registers hierarchy routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAuthenticated)
		r.Get("/", h.listProjects)
		r.Get("/{id}", h.getProject)
		r.Get("/subprojects", h.listSubprojects)
		r.Get("/activities", h.listActivities)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.RoleSuperAdmin, rbac.RoleSystemAdmin))
		r.Post("/", h.createProject)
		r.Post("/subprojects", h.createSubproject)
		r.Post("/activities", h.createActivity)
		r.Post("/{id}/assignments", h.assignProject)
		r.Delete("/{id}/assignments/{userID}", h.unassignProject)
		r.Post("/subprojects/{id}/assignments", h.assignSubproject)
		r.Delete("/subprojects/{id}/assignments/{userID}", h.unassignSubproject)
	})
}

func (h *Handler) listProjects(w http.ResponseWriter, r *http.Request) {
	p := shared.PrincipalFromContext(r.Context())
	f, _, err := h.authz.ScopeFor(r.Context(), p.ID)
	if err != nil {
		h.logger.Error("compute scope", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.ListProjects(r.Context(), f)
	if err != nil {
		h.logger.Error("list projects", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"projects": items})
}

func (h *Handler) getProject(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid project id")
		return
	}
	p := shared.PrincipalFromContext(r.Context())
	f, _, err := h.authz.ScopeFor(r.Context(), p.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	project, err := h.service.GetProject(r.Context(), id, f)
	if errors.Is(err, ErrNotFound) {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	if err != nil {
		h.logger.Error("get project", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, project)
}

func (h *Handler) createProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	project, err := h.service.CreateProject(r.Context(), req)
	if err != nil {
		h.logger.Error("create project", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, project)
}

func (h *Handler) listSubprojects(w http.ResponseWriter, r *http.Request) {
	p := shared.PrincipalFromContext(r.Context())
	f, _, err := h.authz.ScopeFor(r.Context(), p.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var projectID *uuid.UUID
	if raw := r.URL.Query().Get("projectId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid projectId")
			return
		}
		projectID = &id
	}
	items, err := h.service.ListSubprojects(r.Context(), f, projectID)
	if err != nil {
		h.logger.Error("list subprojects", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"subprojects": items})
}

func (h *Handler) createSubproject(w http.ResponseWriter, r *http.Request) {
	var req CreateSubprojectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sub, err := h.service.CreateSubproject(r.Context(), req)
	if errors.Is(err, ErrNotFound) {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	if err != nil {
		h.logger.Error("create subproject", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sub)
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	p := shared.PrincipalFromContext(r.Context())
	f, _, err := h.authz.ScopeFor(r.Context(), p.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var subprojectID *uuid.UUID
	if raw := r.URL.Query().Get("subprojectId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid subprojectId")
			return
		}
		subprojectID = &id
	}
	items, err := h.service.ListActivities(r.Context(), f, subprojectID)
	if err != nil {
		h.logger.Error("list activities", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"activities": items})
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	var req CreateActivityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	act, err := h.service.CreateActivity(r.Context(), req)
	if err != nil {
		h.logger.Error("create activity", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, act)
}

func (h *Handler) assignProject(w http.ResponseWriter, r *http.Request) {
	h.assign(w, r, h.service.AssignProject)
}

func (h *Handler) unassignProject(w http.ResponseWriter, r *http.Request) {
	h.unassign(w, r, h.service.UnassignProject)
}

func (h *Handler) assignSubproject(w http.ResponseWriter, r *http.Request) {
	h.assign(w, r, h.service.AssignSubproject)
}

func (h *Handler) unassignSubproject(w http.ResponseWriter, r *http.Request) {
	h.unassign(w, r, h.service.UnassignSubproject)
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, userID, entityID uuid.UUID) error) {
	entityID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	var req AssignmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := fn(r.Context(), req.UserID, entityID); err != nil {
		h.logger.Error("assign", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}

func (h *Handler) unassign(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, userID, entityID uuid.UUID) error) {
	entityID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	if err := fn(r.Context(), userID, entityID); err != nil {
		h.logger.Error("unassign", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}
