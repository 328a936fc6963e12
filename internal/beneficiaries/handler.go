package beneficiaries

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

// Handler manages beneficiary endpoints.
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

// MountRoutes registers beneficiary routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAuthenticated)
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Post("/", h.create)
		r.Patch("/{id}", h.update)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	p := shared.PrincipalFromContext(r.Context())
	f, roles, err := h.authz.ScopeFor(r.Context(), p.ID)
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

	res, err := h.service.List(r.Context(), req, f, roles, p.ID)
	if err != nil {
		h.logger.Error("list beneficiaries", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if res.Decrypted {
		httpx.NoStore(w)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"beneficiaries": res.Items,
		"pagination":    res.Pagination,
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid beneficiary id")
		return
	}
	p := shared.PrincipalFromContext(r.Context())
	f, roles, err := h.authz.ScopeFor(r.Context(), p.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	v, decrypted, err := h.service.Get(r.Context(), id, f, roles, p.ID)
	if errors.Is(err, ErrNotFound) {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	if err != nil {
		h.logger.Error("get beneficiary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if decrypted {
		httpx.NoStore(w)
	}
	httpx.JSON(w, http.StatusOK, v)
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
	v, err := h.service.Create(r.Context(), req, p.ID)
	if errors.Is(err, ErrInvalidEntityType) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err != nil {
		h.logger.Error("create beneficiary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, v)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid beneficiary id")
		return
	}
	var req UpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if req.Status != nil && !req.Status.IsValid() {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid status")
		return
	}
	p := shared.PrincipalFromContext(r.Context())
	f, _, err := h.authz.ScopeFor(r.Context(), p.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	v, err := h.service.Update(r.Context(), id, req, f)
	if errors.Is(err, ErrNotFound) {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	if err != nil {
		h.logger.Error("update beneficiary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func parseListRequest(r *http.Request) (ListRequest, error) {
	q := r.URL.Query()
	var req ListRequest

	if raw := q.Get("entityId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return req, errors.New("invalid entityId")
		}
		req.EntityID = &id
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
	if raw := q.Get("staffUserId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return req, errors.New("invalid staffUserId")
		}
		req.StaffUserID = &id
	}
	if raw := q.Get("status"); raw != "" {
		st := BeneficiaryStatus(raw)
		if !st.IsValid() {
			return req, errors.New("invalid status")
		}
		req.Status = &st
	}
	if raw := q.Get("page"); raw != "" {
		req.Page, _ = strconv.Atoi(raw)
	}
	if raw := q.Get("perPage"); raw != "" {
		req.PerPage, _ = strconv.Atoi(raw)
	}
	return req, nil
}
