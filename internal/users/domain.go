package users

import (
	"time"

	"github.com/google/uuid"
)

// User represents a staff account with its resolved role names.
type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Name      string    `json:"name" db:"name"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// RoleChangeRequest grants or revokes one role by name.
type RoleChangeRequest struct {
	Role string `json:"role" validate:"required"`
}
