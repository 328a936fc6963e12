package sync

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meridian-aid/meridian-aid/internal/platform/httpx"
	"github.com/meridian-aid/meridian-aid/internal/rbac"
	"github.com/meridian-aid/meridian-aid/internal/scope"
	"github.com/meridian-aid/meridian-aid/internal/shared"
)

// SnapshotJobs enqueues snapshot exports and reports their state.
type SnapshotJobs interface {
	EnqueueSnapshot(ctx context.Context, principalID uuid.UUID, req PullRequest) (string, error)
	SnapshotState(ctx context.Context, taskID string) (string, error)
}

// Handler manages sync endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	jobs    SnapshotJobs
	authz   *scope.Authorizer
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, jobs SnapshotJobs, authz *scope.Authorizer, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, jobs: jobs, authz: authz, rbac: rbac}
}

// MountRoutes registers sync routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAuthenticated)
		r.Get("/pull", h.pull)
		r.Post("/snapshot", h.enqueueSnapshot)
		r.Get("/snapshot/{taskID}", h.snapshotState)
	})
}

func (h *Handler) pull(w http.ResponseWriter, r *http.Request) {
	req, err := parsePullRequest(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	p := shared.PrincipalFromContext(r.Context())
	f, roles, err := h.authz.ScopeFor(r.Context(), p.ID)
	if err != nil {
		h.logger.Error("compute scope", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	cs, decrypted, err := h.service.Pull(r.Context(), req, f, roles, p.ID)
	if errors.Is(err, ErrProjectNotVisible) {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	if err != nil {
		h.logger.Error("sync pull", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if decrypted {
		httpx.NoStore(w)
	}
	httpx.JSON(w, http.StatusOK, cs)
}

func (h *Handler) enqueueSnapshot(w http.ResponseWriter, r *http.Request) {
	req, err := parsePullRequest(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	p := shared.PrincipalFromContext(r.Context())
	taskID, err := h.jobs.EnqueueSnapshot(r.Context(), p.ID, req)
	if err != nil {
		h.logger.Error("enqueue snapshot", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{"task_id": taskID})
}

func (h *Handler) snapshotState(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	state, err := h.jobs.SnapshotState(r.Context(), taskID)
	if errors.Is(err, shared.ErrNotFound) {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	if err != nil {
		h.logger.Error("snapshot state", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"task_id": taskID, "state": state})
}

func parsePullRequest(r *http.Request) (PullRequest, error) {
	q := r.URL.Query()
	var req PullRequest
	if raw := q.Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return req, errors.New("invalid since")
		}
		req.Since = &t
	}
	if raw := q.Get("projectId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return req, errors.New("invalid projectId")
		}
		req.ProjectID = &id
	}
	return req, nil
}
