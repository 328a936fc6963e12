package scope

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-aid/meridian-aid/internal/rbac"
)

type stubAssignments struct {
	projects    []uuid.UUID
	subprojects []uuid.UUID
	projectErr  error
	subErr      error
}

func (s *stubAssignments) ProjectIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return s.projects, s.projectErr
}

func (s *stubAssignments) SubprojectIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return s.subprojects, s.subErr
}

func TestComputeScopeAdminDominates(t *testing.T) {
	calc := NewCalculator(&stubAssignments{projects: []uuid.UUID{uuid.New()}})
	principal := uuid.New()

	for _, roles := range [][]string{
		{rbac.RoleSuperAdmin},
		{rbac.RoleSystemAdmin},
		{rbac.RoleProgramManager, rbac.RoleSuperAdmin},
		{rbac.RoleFieldOperator, rbac.RoleSystemAdmin, rbac.RoleSubProjectManager},
	} {
		f, err := calc.ComputeScope(context.Background(), principal, roles)
		require.NoError(t, err)
		assert.Equal(t, FilterUnrestricted, f.Kind(), "roles %v", roles)
	}
}

func TestComputeScopeFieldOperator(t *testing.T) {
	calc := NewCalculator(&stubAssignments{})
	principal := uuid.New()

	f, err := calc.ComputeScope(context.Background(), principal, []string{rbac.RoleFieldOperator, rbac.RoleProgramManager})
	require.NoError(t, err)
	require.Equal(t, FilterBySelfStaff, f.Kind())
	assert.Equal(t, principal, f.StaffID())
}

func TestComputeScopeProgramManager(t *testing.T) {
	p1, p2 := uuid.New(), uuid.New()
	calc := NewCalculator(&stubAssignments{projects: []uuid.UUID{p1, p2}})

	f, err := calc.ComputeScope(context.Background(), uuid.New(), []string{rbac.RoleProgramManager})
	require.NoError(t, err)
	require.Equal(t, FilterByEntityIDs, f.Kind())
	assert.ElementsMatch(t, []uuid.UUID{p1, p2}, f.IDs())
}

func TestComputeScopeProgramManagerNoAssignments(t *testing.T) {
	calc := NewCalculator(&stubAssignments{})

	f, err := calc.ComputeScope(context.Background(), uuid.New(), []string{rbac.RoleProgramManager})
	require.NoError(t, err)
	require.Equal(t, FilterByEntityIDs, f.Kind())
	assert.Empty(t, f.IDs(), "zero assignments must yield an empty id set, not unrestricted")
}

func TestComputeScopeSubProjectManager(t *testing.T) {
	s1 := uuid.New()
	calc := NewCalculator(&stubAssignments{subprojects: []uuid.UUID{s1}})

	f, err := calc.ComputeScope(context.Background(), uuid.New(), []string{rbac.RoleSubProjectManager})
	require.NoError(t, err)
	require.Equal(t, FilterByEntityIDs, f.Kind())
	assert.Equal(t, []uuid.UUID{s1}, f.IDs())
}

func TestComputeScopeUnknownRole(t *testing.T) {
	calc := NewCalculator(&stubAssignments{})

	f, err := calc.ComputeScope(context.Background(), uuid.New(), []string{"AUDIT_CLERK"})
	require.NoError(t, err)
	require.Equal(t, FilterByEntityIDs, f.Kind())
	assert.Empty(t, f.IDs())

	f, err = calc.ComputeScope(context.Background(), uuid.New(), nil)
	require.NoError(t, err)
	assert.Equal(t, FilterByEntityIDs, f.Kind())
}

func TestComputeScopeLookupErrorSurfaces(t *testing.T) {
	boom := errors.New("connection reset")
	calc := NewCalculator(&stubAssignments{projectErr: boom})

	_, err := calc.ComputeScope(context.Background(), uuid.New(), []string{rbac.RoleProgramManager})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	calc = NewCalculator(&stubAssignments{subErr: boom})
	_, err = calc.ComputeScope(context.Background(), uuid.New(), []string{rbac.RoleSubProjectManager})
	assert.ErrorIs(t, err, boom)
}

func TestIsPrivileged(t *testing.T) {
	assert.True(t, IsPrivileged([]string{rbac.RoleSuperAdmin}))
	assert.True(t, IsPrivileged([]string{rbac.RoleSystemAdmin}))
	assert.True(t, IsPrivileged([]string{rbac.RoleProgramManager, rbac.RoleSuperAdmin}))
	assert.False(t, IsPrivileged([]string{rbac.RoleProgramManager}))
	assert.False(t, IsPrivileged(nil))
}
