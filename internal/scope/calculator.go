package scope

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/meridian-aid/meridian-aid/internal/rbac"
)

// AssignmentStore loads the project/subproject assignments backing
// manager-tier scopes.
type AssignmentStore interface {
	ProjectIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	SubprojectIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// Calculator derives an EntityFilter from a principal's resolved roles.
type Calculator struct {
	assignments AssignmentStore
}

// NewCalculator constructs a Calculator.
func NewCalculator(assignments AssignmentStore) *Calculator {
	return &Calculator{assignments: assignments}
}

// ComputeScope evaluates role tiers in fixed order, first match wins.
// Tiers are not additive: an admin who also holds a manager role gets
// admin behaviour. Assignment-lookup errors are surfaced to the caller
// so it can distinguish "we don't know" from "you have none".
func (c *Calculator) ComputeScope(ctx context.Context, principalID uuid.UUID, roles []string) (EntityFilter, error) {
	switch {
	case rbac.IsAdminTier(roles):
		return Unrestricted(), nil
	case rbac.HasRole(roles, rbac.RoleFieldOperator):
		return BySelfStaff(principalID), nil
	case rbac.HasRole(roles, rbac.RoleProgramManager):
		ids, err := c.assignments.ProjectIDsForUser(ctx, principalID)
		if err != nil {
			return EntityFilter{}, fmt.Errorf("scope: load project assignments: %w", err)
		}
		return ByEntityIDs(ids), nil
	case rbac.HasRole(roles, rbac.RoleSubProjectManager):
		ids, err := c.assignments.SubprojectIDsForUser(ctx, principalID)
		if err != nil {
			return EntityFilter{}, fmt.Errorf("scope: load subproject assignments: %w", err)
		}
		return ByEntityIDs(ids), nil
	default:
		return NoAccess(), nil
	}
}

// IsPrivileged reports whether the role set belongs to the admin tier.
// Kept separate from ComputeScope because the PII gate evaluates it
// independently of entity scoping.
func IsPrivileged(roles []string) bool {
	return rbac.IsAdminTier(roles)
}
