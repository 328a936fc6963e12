package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSyncSnapshot builds an offline SQLite snapshot scoped to a principal.
	TaskSyncSnapshot = "sync:snapshot"
	// TaskKPIWarmup precomputes delivery KPI summaries into the cache.
	TaskKPIWarmup = "kpi:warmup"
)

// SnapshotPayload carries everything the worker needs to rebuild the
// requesting principal's scope and export a snapshot. The scope itself is
// never serialized; the worker recomputes it from the principal ID so a
// stale payload cannot widen access.
type SnapshotPayload struct {
	PrincipalID uuid.UUID  `json:"principal_id"`
	Since       *time.Time `json:"since,omitempty"`
	ProjectID   *uuid.UUID `json:"project_id,omitempty"`
}

// NewSnapshotTask constructs an Asynq task for snapshot export.
func NewSnapshotTask(payload SnapshotPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	// Retention keeps completed tasks visible to the status endpoint.
	return asynq.NewTask(TaskSyncSnapshot, data,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Retention(24*time.Hour)), nil
}

// KPIWarmupPayload identifies the principal whose KPI cache entry to warm.
type KPIWarmupPayload struct {
	PrincipalID uuid.UUID `json:"principal_id"`
}

// NewKPIWarmupTask constructs an Asynq task for KPI cache warmup.
func NewKPIWarmupTask(payload KPIWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskKPIWarmup, data, asynq.MaxRetry(1), asynq.Timeout(time.Minute)), nil
}
