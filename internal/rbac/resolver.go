package rbac

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/meridian-aid/meridian-aid/internal/shared"
)

// RoleStore loads role names for a user.
type RoleStore interface {
	RoleNamesForUser(ctx context.Context, userID uuid.UUID) ([]string, error)
}

// Resolver maps a principal to its role names. The authenticated
// principal attached to the request context already carries its roles;
// the store lookup only runs when that cache is absent or empty.
type Resolver struct {
	store  RoleStore
	logger *slog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(store RoleStore, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// ResolveRoles returns the role names for principalID. Lookup failures
// degrade to an empty set: the caller ends up with no access, never with
// elevated access.
func (r *Resolver) ResolveRoles(ctx context.Context, principalID uuid.UUID) []string {
	if p := shared.PrincipalFromContext(ctx); p != nil && p.ID == principalID && len(p.Roles) > 0 {
		return p.Roles
	}
	if r.store == nil {
		return nil
	}
	names, err := r.store.RoleNamesForUser(ctx, principalID)
	if err != nil {
		if r.logger != nil {
			r.logger.Error("resolve roles", slog.String("user_id", principalID.String()), slog.Any("error", err))
		}
		return nil
	}
	return names
}
