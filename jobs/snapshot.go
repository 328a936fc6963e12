package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/meridian-aid/meridian-aid/internal/scope"
	syncpkg "github.com/meridian-aid/meridian-aid/internal/sync"
)

// NewSnapshotHandler returns the worker-side handler for TaskSyncSnapshot.
// The principal's scope is recomputed here, not trusted from the payload.
func NewSnapshotHandler(exporter *syncpkg.Exporter, authz *scope.Authorizer, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SnapshotPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		f, _, err := authz.ScopeFor(ctx, payload.PrincipalID)
		if err != nil {
			return err
		}
		req := syncpkg.PullRequest{Since: payload.Since, ProjectID: payload.ProjectID}
		path, err := exporter.Export(ctx, req, f, payload.PrincipalID)
		if err != nil {
			logger.Error("snapshot export failed",
				slog.String("principal_id", payload.PrincipalID.String()),
				slog.Any("error", err))
			return err
		}
		logger.Info("snapshot exported",
			slog.String("principal_id", payload.PrincipalID.String()),
			slog.String("path", path))
		return nil
	}
}
