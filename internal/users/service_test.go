package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-aid/meridian-aid/internal/rbac"
	"github.com/meridian-aid/meridian-aid/internal/shared"
)

type stubStore struct {
	users   map[uuid.UUID]*User
	granted []string
	revoked []string
}

func (s *stubStore) List(_ context.Context) ([]User, error) {
	var out []User
	for _, u := range s.users {
		out = append(out, *u)
	}
	return out, nil
}

func (s *stubStore) Get(_ context.Context, id uuid.UUID) (*User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, ErrNotFound
}

func (s *stubStore) GrantRole(_ context.Context, _ uuid.UUID, role string) error {
	s.granted = append(s.granted, role)
	return nil
}

func (s *stubStore) RevokeRole(_ context.Context, _ uuid.UUID, role string) error {
	s.revoked = append(s.revoked, role)
	return nil
}

type stubAuditor struct{ logs []shared.AuditLog }

func (s *stubAuditor) Record(_ context.Context, log shared.AuditLog) error {
	s.logs = append(s.logs, log)
	return nil
}

func TestGrantRole(t *testing.T) {
	admin, target := uuid.New(), uuid.New()
	store := &stubStore{users: map[uuid.UUID]*User{target: {ID: target, Email: "pm@example.org"}}}
	audit := &stubAuditor{}
	svc := NewService(store, audit, nil)

	require.NoError(t, svc.GrantRole(context.Background(), admin, target, rbac.RoleProgramManager))
	assert.Equal(t, []string{rbac.RoleProgramManager}, store.granted)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, shared.AuditActionRoleGrant, audit.logs[0].Action)
	assert.Equal(t, admin, audit.logs[0].ActorID)
	assert.Equal(t, target.String(), audit.logs[0].EntityID)
}

func TestGrantRoleRejectsUnknownName(t *testing.T) {
	target := uuid.New()
	store := &stubStore{users: map[uuid.UUID]*User{target: {ID: target}}}
	svc := NewService(store, &stubAuditor{}, nil)

	err := svc.GrantRole(context.Background(), uuid.New(), target, "ROOT")
	assert.ErrorIs(t, err, ErrUnknownRole)
	assert.Empty(t, store.granted)
}

func TestGrantRoleMissingUser(t *testing.T) {
	store := &stubStore{users: map[uuid.UUID]*User{}}
	svc := NewService(store, &stubAuditor{}, nil)

	err := svc.GrantRole(context.Background(), uuid.New(), uuid.New(), rbac.RoleFieldOperator)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRevokeRole(t *testing.T) {
	admin, target := uuid.New(), uuid.New()
	store := &stubStore{users: map[uuid.UUID]*User{target: {ID: target}}}
	audit := &stubAuditor{}
	svc := NewService(store, audit, nil)

	require.NoError(t, svc.RevokeRole(context.Background(), admin, target, rbac.RoleSubProjectManager))
	assert.Equal(t, []string{rbac.RoleSubProjectManager}, store.revoked)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, shared.AuditActionRoleRevoke, audit.logs[0].Action)
}
