package shared

import (
	"context"

	"github.com/google/uuid"
)

// Principal describes the authenticated actor attached to a request.
// Roles are resolved once during authentication and cached here; the
// rbac resolver reads this cache before falling back to the store.
type Principal struct {
	ID    uuid.UUID
	Email string
	Roles []string
}

// HasRole reports whether the principal carries the given role name.
func (p *Principal) HasRole(name string) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if r == name {
			return true
		}
	}
	return false
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}
