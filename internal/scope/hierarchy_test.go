package scope

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-aid/meridian-aid/internal/shared"
)

type stubHierarchy struct {
	subToProject map[uuid.UUID]uuid.UUID
	actToSub     map[uuid.UUID]uuid.UUID

	singleSubCalls int
	singleActCalls int
	bulkSubCalls   int
	bulkActCalls   int
}

func (s *stubHierarchy) ProjectIDForSubproject(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	s.singleSubCalls++
	if p, ok := s.subToProject[id]; ok {
		return p, nil
	}
	return uuid.Nil, shared.ErrNotFound
}

func (s *stubHierarchy) SubprojectIDForActivity(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	s.singleActCalls++
	if sub, ok := s.actToSub[id]; ok {
		return sub, nil
	}
	return uuid.Nil, shared.ErrNotFound
}

func (s *stubHierarchy) ProjectIDsForSubprojects(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	s.bulkSubCalls++
	out := make(map[uuid.UUID]uuid.UUID)
	for _, id := range ids {
		if p, ok := s.subToProject[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *stubHierarchy) SubprojectIDsForActivities(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	s.bulkActCalls++
	out := make(map[uuid.UUID]uuid.UUID)
	for _, id := range ids {
		if sub, ok := s.actToSub[id]; ok {
			out[id] = sub
		}
	}
	return out, nil
}

func newStubHierarchy() (*stubHierarchy, uuid.UUID, uuid.UUID, uuid.UUID) {
	project := uuid.New()
	sub := uuid.New()
	act := uuid.New()
	store := &stubHierarchy{
		subToProject: map[uuid.UUID]uuid.UUID{sub: project},
		actToSub:     map[uuid.UUID]uuid.UUID{act: sub},
	}
	return store, project, sub, act
}

func TestOwningProject(t *testing.T) {
	store, project, sub, act := newStubHierarchy()
	h := NewHierarchyResolver(store)
	ctx := context.Background()

	got, err := h.OwningProject(ctx, project, EntityProject)
	require.NoError(t, err)
	assert.Equal(t, project, got)

	got, err = h.OwningProject(ctx, sub, EntitySubproject)
	require.NoError(t, err)
	assert.Equal(t, project, got)

	got, err = h.OwningProject(ctx, act, EntityActivity)
	require.NoError(t, err)
	assert.Equal(t, project, got)

	_, err = h.OwningProject(ctx, uuid.New(), EntitySubproject)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = h.OwningProject(ctx, uuid.New(), EntityType("form"))
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestOwningProjectMemoises(t *testing.T) {
	store, _, sub, _ := newStubHierarchy()
	h := NewHierarchyResolver(store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := h.OwningProject(ctx, sub, EntitySubproject)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, store.singleSubCalls)
}

func TestIsInScopeProjectScope(t *testing.T) {
	store, project, sub, act := newStubHierarchy()
	h := NewHierarchyResolver(store)
	ctx := context.Background()
	f := ByEntityIDs([]uuid.UUID{project})

	ok, err := h.IsInScope(ctx, project, EntityProject, f)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.IsInScope(ctx, sub, EntitySubproject, f)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.IsInScope(ctx, act, EntityActivity, f)
	require.NoError(t, err)
	assert.True(t, ok)

	// Activity whose chain is missing a hop resolves to exclusion.
	ok, err = h.IsInScope(ctx, uuid.New(), EntityActivity, f)
	require.NoError(t, err)
	assert.False(t, ok)

	// Unknown entity types never match.
	ok, err = h.IsInScope(ctx, project, EntityType("warehouse"), f)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsInScopeSubprojectScope(t *testing.T) {
	store, project, sub, act := newStubHierarchy()
	h := NewHierarchyResolver(store)
	ctx := context.Background()
	f := ByEntityIDs([]uuid.UUID{sub})

	ok, err := h.IsInScope(ctx, act, EntityActivity, f)
	require.NoError(t, err)
	assert.True(t, ok)

	// A project-level row is not attributable to a single subproject.
	ok, err = h.IsInScope(ctx, project, EntityProject, f)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsInScopeUnrestrictedAndSelf(t *testing.T) {
	store, _, _, _ := newStubHierarchy()
	h := NewHierarchyResolver(store)
	ctx := context.Background()

	ok, err := h.IsInScope(ctx, uuid.New(), EntityActivity, Unrestricted())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.IsInScope(ctx, uuid.New(), EntityActivity, BySelfStaff(uuid.New()))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFilterInScopeBatch(t *testing.T) {
	project := uuid.New()
	s1, s2, s3 := uuid.New(), uuid.New(), uuid.New()
	a1, a2 := uuid.New(), uuid.New()
	store := &stubHierarchy{
		subToProject: map[uuid.UUID]uuid.UUID{s1: project, s2: project, s3: project},
		actToSub:     map[uuid.UUID]uuid.UUID{a1: s3, a2: s1},
	}
	h := NewHierarchyResolver(store)
	ctx := context.Background()

	// Sub-project manager assigned to S1 and S2; A1 hangs off S3.
	f := ByEntityIDs([]uuid.UUID{s1, s2})
	refs := []Ref{
		{ID: a1, Type: EntityActivity},
		{ID: a2, Type: EntityActivity},
		{ID: s2, Type: EntitySubproject},
		{ID: project, Type: EntityProject},
		{ID: uuid.New(), Type: EntityType("site")},
	}

	got, err := h.FilterInScope(ctx, refs, f)
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true, true, false, false}, got)

	// One bulk activity lookup, plus at most one bulk subproject lookup
	// per stage -- never a query per row.
	assert.Equal(t, 1, store.bulkActCalls)
	assert.LessOrEqual(t, store.bulkSubCalls, 2)
	assert.Zero(t, store.singleActCalls)
	assert.Zero(t, store.singleSubCalls)
}

func TestFilterInScopeUnrestricted(t *testing.T) {
	store, _, _, act := newStubHierarchy()
	h := NewHierarchyResolver(store)

	got, err := h.FilterInScope(context.Background(), []Ref{{ID: act, Type: EntityActivity}}, Unrestricted())
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, got)
	assert.Zero(t, store.bulkActCalls)
}

func TestFilterInScopeEmptySet(t *testing.T) {
	store, _, _, act := newStubHierarchy()
	h := NewHierarchyResolver(store)

	got, err := h.FilterInScope(context.Background(), []Ref{{ID: act, Type: EntityActivity}}, NoAccess())
	require.NoError(t, err)
	assert.Equal(t, []bool{false}, got)
}
