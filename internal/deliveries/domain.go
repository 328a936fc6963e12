package deliveries

import (
	"time"

	"github.com/google/uuid"

	"github.com/meridian-aid/meridian-aid/internal/scope"
)

// Delivery is one recorded service delivery to a beneficiary.
type Delivery struct {
	ID            uuid.UUID        `json:"id" db:"id"`
	ServiceID     uuid.UUID        `json:"service_id" db:"service_id"`
	BeneficiaryID uuid.UUID        `json:"beneficiary_id" db:"beneficiary_id"`
	EntityID      uuid.UUID        `json:"entity_id" db:"entity_id"`
	EntityType    scope.EntityType `json:"entity_type" db:"entity_type"`
	StaffUserID   uuid.UUID        `json:"staff_user_id" db:"staff_user_id"`
	DeliveredAt   time.Time        `json:"delivered_at" db:"delivered_at"`
	Quantity      float64          `json:"quantity" db:"quantity"`
	Notes         *string          `json:"notes,omitempty" db:"notes"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at" db:"updated_at"`
}

// CreateRequest records a delivery.
type CreateRequest struct {
	ServiceID     uuid.UUID        `json:"service_id" validate:"required"`
	BeneficiaryID uuid.UUID        `json:"beneficiary_id" validate:"required"`
	EntityID      uuid.UUID        `json:"entity_id" validate:"required"`
	EntityType    scope.EntityType `json:"entity_type" validate:"required"`
	DeliveredAt   time.Time        `json:"delivered_at" validate:"required"`
	Quantity      float64          `json:"quantity" validate:"gt=0"`
	Notes         *string          `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// ListRequest carries caller-supplied listing filters.
type ListRequest struct {
	ServiceID     *uuid.UUID
	BeneficiaryID *uuid.UUID
	From          *time.Time
	To            *time.Time
	EntityID      *uuid.UUID
	EntityIDs     []uuid.UUID
	StaffUserID   *uuid.UUID
	Page          int
	PerPage       int
}

// ServiceCount is a per-service aggregate.
type ServiceCount struct {
	ServiceID uuid.UUID `json:"service_id"`
	Count     int64     `json:"count"`
	Quantity  float64   `json:"quantity"`
}

// EntityCount is a per-entity aggregate.
type EntityCount struct {
	EntityID   uuid.UUID        `json:"entity_id"`
	EntityType scope.EntityType `json:"entity_type"`
	Count      int64            `json:"count"`
}

// DayCount is a per-day aggregate keyed by delivery date.
type DayCount struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

// Summary is the KPI response for the caller's scope.
type Summary struct {
	Total     int64          `json:"total"`
	ByService []ServiceCount `json:"by_service"`
	ByEntity  []EntityCount  `json:"by_entity"`
	ByDay     []DayCount     `json:"by_day"`
}
