package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/meridian-aid/meridian-aid/internal/deliveries"
	"github.com/meridian-aid/meridian-aid/internal/scope"
)

// NewKPIWarmupHandler returns the worker-side handler for TaskKPIWarmup.
// It computes the unfiltered delivery summary for the principal so the
// first dashboard request after a cache bump hits a warm entry.
func NewKPIWarmupHandler(svc *deliveries.Service, authz *scope.Authorizer, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload KPIWarmupPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		f, _, err := authz.ScopeFor(ctx, payload.PrincipalID)
		if err != nil {
			return err
		}
		if _, err := svc.Summary(ctx, deliveries.ListRequest{}, f, payload.PrincipalID); err != nil {
			logger.Warn("kpi warmup failed",
				slog.String("principal_id", payload.PrincipalID.String()),
				slog.Any("error", err))
			return err
		}
		return nil
	}
}
