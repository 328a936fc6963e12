package deliveries

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-aid/meridian-aid/internal/platform/httpx"
	"github.com/meridian-aid/meridian-aid/internal/rbac"
	"github.com/meridian-aid/meridian-aid/internal/scope"
	"github.com/meridian-aid/meridian-aid/internal/shared"
)

// Handler manages delivery endpoints.
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

// MountRoutes registers delivery routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAuthenticated)
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/metrics/summary", h.summary)
		r.Post("/", h.create)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	p := shared.PrincipalFromContext(r.Context())
	f, _, err := h.authz.ScopeFor(r.Context(), p.ID)
	if err != nil {
		h.logger.Error("compute scope", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	req, err := parseListRequest(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	res, err := h.service.List(r.Context(), req, f)
	if err != nil {
		h.logger.Error("list deliveries", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"deliveries": res.Items,
		"pagination": res.Pagination,
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid delivery id")
		return
	}
	p := shared.PrincipalFromContext(r.Context())
	f, _, err := h.authz.ScopeFor(r.Context(), p.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	d, err := h.service.GetScoped(r.Context(), id, f)
	if errors.Is(err, ErrNotFound) {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	if err != nil {
		h.logger.Error("get delivery", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	p := shared.PrincipalFromContext(r.Context())
	f, _, err := h.authz.ScopeFor(r.Context(), p.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	req, err := parseListRequest(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	s, err := h.service.Summary(r.Context(), req, f, p.ID)
	if err != nil {
		h.logger.Error("delivery summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	p := shared.PrincipalFromContext(r.Context())
	d, err := h.service.Create(r.Context(), req, p.ID)
	if err != nil {
		h.logger.Error("create delivery", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, d)
}

func parseListRequest(r *http.Request) (ListRequest, error) {
	q := r.URL.Query()
	var req ListRequest

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
	parseTime := func(name string) (*time.Time, error) {
		raw := q.Get(name)
		if raw == "" {
			return nil, nil
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			t, err = time.Parse("2006-01-02", raw)
		}
		if err != nil {
			return nil, errors.New("invalid " + name)
		}
		return &t, nil
	}

	var err error
	if req.ServiceID, err = parseUUID("serviceId"); err != nil {
		return req, err
	}
	if req.BeneficiaryID, err = parseUUID("beneficiaryId"); err != nil {
		return req, err
	}
	if req.EntityID, err = parseUUID("entityId"); err != nil {
		return req, err
	}
	if req.StaffUserID, err = parseUUID("staffUserId"); err != nil {
		return req, err
	}
	if req.From, err = parseTime("from"); err != nil {
		return req, err
	}
	if req.To, err = parseTime("to"); err != nil {
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
