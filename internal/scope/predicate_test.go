package scope

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCols = Columns{EntityID: "d.entity_id", StaffUserID: "d.staff_user_id"}

func TestBuildPredicateExplicitEntityWinsOverScope(t *testing.T) {
	scoped := uuid.New()
	requested := uuid.New()

	p := BuildPredicate(testCols, RequestFilters{EntityID: &requested}, ByEntityIDs([]uuid.UUID{scoped}))
	sql, args := p.SQL(1)
	assert.Equal(t, "d.entity_id = $1", sql)
	require.Len(t, args, 1)
	assert.Equal(t, requested, args[0])
}

func TestBuildPredicateExplicitListWins(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New()}

	p := BuildPredicate(testCols, RequestFilters{EntityIDs: ids}, Unrestricted())
	sql, args := p.SQL(1)
	assert.Equal(t, "d.entity_id = ANY($1)", sql)
	require.Len(t, args, 1)
	assert.Equal(t, ids, args[0])
}

func TestBuildPredicateUnrestricted(t *testing.T) {
	p := BuildPredicate(testCols, RequestFilters{}, Unrestricted())
	assert.True(t, p.Empty())

	where, args := p.Where(1)
	assert.Empty(t, where)
	assert.Empty(t, args)
}

func TestBuildPredicateScopedIDs(t *testing.T) {
	ids := []uuid.UUID{uuid.New()}
	p := BuildPredicate(testCols, RequestFilters{}, ByEntityIDs(ids))
	sql, args := p.SQL(1)
	assert.Equal(t, "d.entity_id = ANY($1)", sql)
	assert.Equal(t, ids, args[0])
}

func TestBuildPredicateEmptyScopeMatchesNothing(t *testing.T) {
	// An empty id set must still render the clause; ANY over an empty
	// array matches zero rows, omitting it would match every row.
	p := BuildPredicate(testCols, RequestFilters{}, NoAccess())
	require.False(t, p.Empty())
	sql, args := p.SQL(1)
	assert.Equal(t, "d.entity_id = ANY($1)", sql)
	assert.Equal(t, []uuid.UUID{}, args[0])
}

func TestBuildPredicateSelfStaffDefault(t *testing.T) {
	self := uuid.New()
	p := BuildPredicate(testCols, RequestFilters{}, BySelfStaff(self))
	sql, args := p.SQL(1)
	assert.Equal(t, "d.staff_user_id = $1", sql)
	assert.Equal(t, self, args[0])
}

func TestBuildPredicateSelfStaffOverride(t *testing.T) {
	self := uuid.New()
	other := uuid.New()
	p := BuildPredicate(testCols, RequestFilters{StaffUserID: &other}, BySelfStaff(self))
	sql, args := p.SQL(1)
	assert.Equal(t, "d.staff_user_id = $1", sql)
	require.Len(t, args, 1)
	assert.Equal(t, other, args[0], "request-supplied staff id must win over the self filter")
}

func TestBuildPredicateSelfStaffSurvivesEntityOverride(t *testing.T) {
	self := uuid.New()
	entity := uuid.New()
	p := BuildPredicate(testCols, RequestFilters{EntityID: &entity}, BySelfStaff(self))
	sql, args := p.SQL(1)
	assert.Equal(t, "d.entity_id = $1 AND d.staff_user_id = $2", sql)
	assert.Equal(t, []any{entity, self}, args)
}

func TestPredicateComposesOrthogonalFilters(t *testing.T) {
	ids := []uuid.UUID{uuid.New()}
	p := BuildPredicate(testCols, RequestFilters{}, ByEntityIDs(ids))
	p.And("d.service_id = ?", uuid.New())
	p.And("d.delivered_at >= ?", "2025-01-01")

	sql, args := p.SQL(3)
	assert.Equal(t, "d.entity_id = ANY($3) AND d.service_id = $4 AND d.delivered_at >= $5", sql)
	assert.Len(t, args, 3)
}

func TestPredicateWhere(t *testing.T) {
	p := NewPredicate()
	p.And("b.status = ?", "active")
	where, args := p.Where(1)
	assert.Equal(t, " WHERE b.status = $1", where)
	assert.Equal(t, []any{"active"}, args)
}

func TestPredicateAndArgMismatchPanics(t *testing.T) {
	p := NewPredicate()
	assert.Panics(t, func() { p.And("a = ? AND b = ?", 1) })
}
