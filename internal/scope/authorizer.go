package scope

import (
	"context"

	"github.com/google/uuid"
)

// RoleResolver yields the resolved role names for a principal.
type RoleResolver interface {
	ResolveRoles(ctx context.Context, principalID uuid.UUID) []string
}

// Authorizer bundles role resolution and scope calculation for HTTP
// handlers. Scope is computed fresh per request.
type Authorizer struct {
	roles RoleResolver
	calc  *Calculator
}

// NewAuthorizer constructs an Authorizer.
func NewAuthorizer(roles RoleResolver, calc *Calculator) *Authorizer {
	return &Authorizer{roles: roles, calc: calc}
}

// ScopeFor resolves roles and derives the entity filter for a principal.
func (a *Authorizer) ScopeFor(ctx context.Context, principalID uuid.UUID) (EntityFilter, []string, error) {
	roles := a.roles.ResolveRoles(ctx, principalID)
	f, err := a.calc.ComputeScope(ctx, principalID, roles)
	if err != nil {
		return EntityFilter{}, nil, err
	}
	return f, roles, nil
}
