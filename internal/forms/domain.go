package forms

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-aid/meridian-aid/internal/scope"
)

// Template is a versioned form definition. The schema blob is stored
// opaque; validating submissions against it is the intake client's job.
type Template struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	Name      string          `json:"name" db:"name"`
	Version   int             `json:"version" db:"version"`
	Schema    json.RawMessage `json:"schema" db:"schema"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// Response is one submitted form instance tied to a hierarchy entity.
type Response struct {
	ID          uuid.UUID        `json:"id" db:"id"`
	TemplateID  uuid.UUID        `json:"template_id" db:"template_id"`
	EntityID    uuid.UUID        `json:"entity_id" db:"entity_id"`
	EntityType  scope.EntityType `json:"entity_type" db:"entity_type"`
	SubmittedBy uuid.UUID        `json:"submitted_by" db:"submitted_by"`
	Payload     map[string]any   `json:"payload" db:"payload"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at" db:"updated_at"`
}

// CreateTemplateRequest registers a new template version.
type CreateTemplateRequest struct {
	Name    string          `json:"name" validate:"required,max=200"`
	Version int             `json:"version" validate:"gte=1"`
	Schema  json.RawMessage `json:"schema" validate:"required"`
}

// SubmitRequest records a form response.
type SubmitRequest struct {
	TemplateID uuid.UUID        `json:"template_id" validate:"required"`
	EntityID   uuid.UUID        `json:"entity_id" validate:"required"`
	EntityType scope.EntityType `json:"entity_type" validate:"required"`
	Payload    map[string]any   `json:"payload" validate:"required"`
}

// ListResponsesRequest carries caller-supplied filters for response listings.
type ListResponsesRequest struct {
	TemplateID  *uuid.UUID
	EntityID    *uuid.UUID
	EntityIDs   []uuid.UUID
	StaffUserID *uuid.UUID
	Page        int
	PerPage     int
}
