package audit

import (
	"time"

	"github.com/google/uuid"
)

// TimelineRow is one audit event as presented on the timeline.
type TimelineRow struct {
	At       time.Time      `json:"at"`
	ActorID  uuid.UUID      `json:"actor_id"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// TimelineFilters narrows the timeline query.
type TimelineFilters struct {
	From     *time.Time
	To       *time.Time
	ActorID  *uuid.UUID
	Entity   string
	Action   string
	Page     int
	PageSize int
}

// PagingInfo reports the window position; HasNext comes from fetching
// one row beyond the page.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result bundles timeline rows with paging information.
type Result struct {
	Rows   []TimelineRow `json:"rows"`
	Paging PagingInfo    `json:"paging"`
}
