package forms

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-aid/meridian-aid/internal/platform/httpx"
	"github.com/meridian-aid/meridian-aid/internal/rbac"
	"github.com/meridian-aid/meridian-aid/internal/scope"
	"github.com/meridian-aid/meridian-aid/internal/shared"
)

// Handler manages form endpoints.
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

// MountRoutes registers form routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAuthenticated)
		r.Get("/templates", h.listTemplates)
		r.Get("/templates/{id}", h.getTemplate)
		r.Get("/responses", h.listResponses)
		r.Get("/responses/{id}", h.getResponse)
		r.Post("/responses", h.submit)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.RoleSuperAdmin, rbac.RoleSystemAdmin))
		r.Post("/templates", h.createTemplate)
	})
}

func (h *Handler) listTemplates(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListTemplates(r.Context())
	if err != nil {
		h.logger.Error("list templates", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"templates": items})
}

func (h *Handler) getTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid template id")
		return
	}
	t, err := h.service.GetTemplate(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) createTemplate(w http.ResponseWriter, r *http.Request) {
	var req CreateTemplateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	t, err := h.service.CreateTemplate(r.Context(), req)
	if err != nil {
		h.logger.Error("create template", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, t)
}

func (h *Handler) listResponses(w http.ResponseWriter, r *http.Request) {
	p := shared.PrincipalFromContext(r.Context())
	f, _, err := h.authz.ScopeFor(r.Context(), p.ID)
	if err != nil {
		h.logger.Error("compute scope", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	req, err := parseListResponsesRequest(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	res, err := h.service.ListResponses(r.Context(), req, f)
	if err != nil {
		h.logger.Error("list responses", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"responses":  res.Items,
		"pagination": res.Pagination,
	})
}

func (h *Handler) getResponse(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid response id")
		return
	}
	p := shared.PrincipalFromContext(r.Context())
	f, _, err := h.authz.ScopeFor(r.Context(), p.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	resp, err := h.service.GetResponse(r.Context(), id, f)
	if errors.Is(err, ErrNotFound) {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	if err != nil {
		h.logger.Error("get response", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	p := shared.PrincipalFromContext(r.Context())
	resp, err := h.service.Submit(r.Context(), req, p.ID)
	if errors.Is(err, ErrNotFound) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown template")
		return
	}
	if err != nil {
		h.logger.Error("submit response", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, resp)
}

func parseListResponsesRequest(r *http.Request) (ListResponsesRequest, error) {
	q := r.URL.Query()
	var req ListResponsesRequest

	parseUUID := func(name string) (*uuid.UUID, error) {
		raw := q.Get(name)
		if raw == "" {
			return nil, nil
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, errors.New("invalid " + name)
		}
		return &id, nil
	}
	var err error
	if req.TemplateID, err = parseUUID("templateId"); err != nil {
		return req, err
	}
	if req.EntityID, err = parseUUID("entityId"); err != nil {
		return req, err
	}
	if req.StaffUserID, err = parseUUID("staffUserId"); err != nil {
		return req, err
	}
	if raw := q.Get("entityIds"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := uuid.Parse(strings.TrimSpace(part))
			if err != nil {
				return req, errors.New("invalid entityIds")
			}
			req.EntityIDs = append(req.EntityIDs, id)
		}
	}
	if raw := q.Get("page"); raw != "" {
		req.Page, _ = strconv.Atoi(raw)
	}
	if raw := q.Get("perPage"); raw != "" {
		req.PerPage, _ = strconv.Atoi(raw)
	}
	return req, nil
}
