package projects

import (
	"time"

	"github.com/google/uuid"
)

// ProjectStatus represents the lifecycle of a project.
type ProjectStatus string

const (
	StatusPlanned ProjectStatus = "PLANNED"
	StatusActive  ProjectStatus = "ACTIVE"
	StatusClosed  ProjectStatus = "CLOSED"
)

// IsValid checks if the status is valid.
func (s ProjectStatus) IsValid() bool {
	switch s {
	case StatusPlanned, StatusActive, StatusClosed:
		return true
	default:
		return false
	}
}

// Project is the root of the containment hierarchy.
type Project struct {
	ID        uuid.UUID     `json:"id" db:"id"`
	Code      string        `json:"code" db:"code"`
	Name      string        `json:"name" db:"name"`
	Status    ProjectStatus `json:"status" db:"status"`
	Donor     *string       `json:"donor,omitempty" db:"donor"`
	StartDate *time.Time    `json:"start_date,omitempty" db:"start_date"`
	EndDate   *time.Time    `json:"end_date,omitempty" db:"end_date"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
}

// Subproject sits under a project.
type Subproject struct {
	ID        uuid.UUID     `json:"id" db:"id"`
	ProjectID uuid.UUID     `json:"project_id" db:"project_id"`
	Code      string        `json:"code" db:"code"`
	Name      string        `json:"name" db:"name"`
	Status    ProjectStatus `json:"status" db:"status"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
}

// Activity sits under a subproject and is the finest scoping level.
type Activity struct {
	ID           uuid.UUID     `json:"id" db:"id"`
	SubprojectID uuid.UUID     `json:"subproject_id" db:"subproject_id"`
	Name         string        `json:"name" db:"name"`
	Status       ProjectStatus `json:"status" db:"status"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" db:"updated_at"`
}

// CreateProjectRequest creates a project.
type CreateProjectRequest struct {
	Code      string     `json:"code" validate:"required,max=50"`
	Name      string     `json:"name" validate:"required,max=200"`
	Donor     *string    `json:"donor,omitempty" validate:"omitempty,max=200"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// CreateSubprojectRequest creates a subproject under a project.
type CreateSubprojectRequest struct {
	ProjectID uuid.UUID `json:"project_id" validate:"required"`
	Code      string    `json:"code" validate:"required,max=50"`
	Name      string    `json:"name" validate:"required,max=200"`
}

// CreateActivityRequest creates an activity under a subproject.
type CreateActivityRequest struct {
	SubprojectID uuid.UUID `json:"subproject_id" validate:"required"`
	Name         string    `json:"name" validate:"required,max=200"`
}

// AssignmentRequest grants a user membership of a project or subproject.
type AssignmentRequest struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
}
