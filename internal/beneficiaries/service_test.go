package beneficiaries

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-aid/meridian-aid/internal/pii"
	"github.com/meridian-aid/meridian-aid/internal/rbac"
	"github.com/meridian-aid/meridian-aid/internal/scope"
	"github.com/meridian-aid/meridian-aid/internal/shared"
)

const testKeyHex = "6368616e676520746869732070617373776f726420746f206120736563726574"

type stubStore struct {
	rows     []Beneficiary
	lastPred *scope.Predicate
}

func (s *stubStore) Create(_ context.Context, req CreateRequest, createdBy uuid.UUID) (*Beneficiary, error) {
	b := Beneficiary{
		ID:           uuid.New(),
		Pseudonym:    req.Pseudonym,
		Status:       StatusActive,
		EntityID:     req.EntityID,
		EntityType:   req.EntityType,
		CreatedBy:    createdBy,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
		FirstNameEnc: req.FirstNameEnc,
		LastNameEnc:  req.LastNameEnc,
	}
	s.rows = append(s.rows, b)
	return &b, nil
}

func (s *stubStore) Get(_ context.Context, id uuid.UUID) (*Beneficiary, error) {
	for i := range s.rows {
		if s.rows[i].ID == id {
			return &s.rows[i], nil
		}
	}
	return nil, ErrNotFound
}

func (s *stubStore) Update(_ context.Context, id uuid.UUID, req UpdateRequest) (*Beneficiary, error) {
	for i := range s.rows {
		if s.rows[i].ID == id {
			if req.Status != nil {
				s.rows[i].Status = *req.Status
			}
			return &s.rows[i], nil
		}
	}
	return nil, ErrNotFound
}

func (s *stubStore) List(_ context.Context, pred *scope.Predicate, _ *time.Time) ([]Beneficiary, error) {
	s.lastPred = pred
	out := make([]Beneficiary, len(s.rows))
	copy(out, s.rows)
	return out, nil
}

type stubHierarchy struct {
	subToProject map[uuid.UUID]uuid.UUID
	actToSub     map[uuid.UUID]uuid.UUID
	bulkCalls    int
}

func (s *stubHierarchy) ProjectIDForSubproject(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	p, ok := s.subToProject[id]
	if !ok {
		return uuid.Nil, shared.ErrNotFound
	}
	return p, nil
}

func (s *stubHierarchy) SubprojectIDForActivity(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	sub, ok := s.actToSub[id]
	if !ok {
		return uuid.Nil, shared.ErrNotFound
	}
	return sub, nil
}

func (s *stubHierarchy) ProjectIDsForSubprojects(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	s.bulkCalls++
	out := make(map[uuid.UUID]uuid.UUID)
	for _, id := range ids {
		if p, ok := s.subToProject[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *stubHierarchy) SubprojectIDsForActivities(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	s.bulkCalls++
	out := make(map[uuid.UUID]uuid.UUID)
	for _, id := range ids {
		if sub, ok := s.actToSub[id]; ok {
			out[id] = sub
		}
	}
	return out, nil
}

type stubAuditor struct {
	logs []shared.AuditLog
}

func (s *stubAuditor) Record(_ context.Context, log shared.AuditLog) error {
	s.logs = append(s.logs, log)
	return nil
}

func testService(t *testing.T, store *stubStore, hier *stubHierarchy) (*Service, *stubAuditor, *pii.Cipher) {
	t.Helper()
	cipher, err := pii.NewCipher(testKeyHex)
	require.NoError(t, err)
	audit := &stubAuditor{}
	if hier == nil {
		hier = &stubHierarchy{}
	}
	return NewService(store, pii.NewGate(cipher), hier, audit, nil), audit, cipher
}

func record(entityID uuid.UUID, entityType scope.EntityType, createdBy uuid.UUID) Beneficiary {
	return Beneficiary{
		ID:         uuid.New(),
		Pseudonym:  "BEN-" + entityID.String()[:8],
		Status:     StatusActive,
		EntityID:   entityID,
		EntityType: entityType,
		CreatedBy:  createdBy,
	}
}

func TestListSubprojectScopePostFilter(t *testing.T) {
	project := uuid.New()
	s1, s2, s3 := uuid.New(), uuid.New(), uuid.New()
	actInS2, actInS3 := uuid.New(), uuid.New()
	staff := uuid.New()

	hier := &stubHierarchy{
		subToProject: map[uuid.UUID]uuid.UUID{s1: project, s2: project, s3: project},
		actToSub:     map[uuid.UUID]uuid.UUID{actInS2: s2, actInS3: s3},
	}
	store := &stubStore{rows: []Beneficiary{
		record(s1, scope.EntitySubproject, staff),
		record(actInS2, scope.EntityActivity, staff),
		record(actInS3, scope.EntityActivity, staff),
		record(project, scope.EntityProject, staff),
	}}
	svc, audit, _ := testService(t, store, hier)

	f := scope.ByEntityIDs([]uuid.UUID{s1, s2})
	res, err := svc.List(context.Background(), ListRequest{}, f, []string{rbac.RoleSubProjectManager}, staff)
	require.NoError(t, err)

	require.Len(t, res.Items, 2)
	seen := map[uuid.UUID]bool{}
	for _, v := range res.Items {
		seen[v.EntityID] = true
	}
	assert.True(t, seen[s1])
	assert.True(t, seen[actInS2])
	assert.False(t, seen[actInS3], "activity under an unassigned subproject must be excluded")
	assert.False(t, seen[project], "project-level record is outside a subproject scope")

	assert.False(t, res.Decrypted)
	assert.Empty(t, audit.logs, "no plaintext emitted means no audit entry")
	// one bulk lookup per hierarchy level, not one per row
	assert.LessOrEqual(t, hier.bulkCalls, 3)
}

func TestListAdminDecryptsAndAudits(t *testing.T) {
	staff := uuid.New()
	store := &stubStore{}
	svc, audit, cipher := testService(t, store, nil)

	env, err := cipher.Seal("Amina")
	require.NoError(t, err)
	b := record(uuid.New(), scope.EntityProject, staff)
	b.FirstNameEnc = env
	store.rows = []Beneficiary{b}

	res, err := svc.List(context.Background(), ListRequest{}, scope.Unrestricted(), []string{rbac.RoleSuperAdmin}, staff)
	require.NoError(t, err)

	require.Len(t, res.Items, 1)
	assert.True(t, res.Decrypted)
	require.NotNil(t, res.Items[0].PII)
	require.NotNil(t, res.Items[0].PII["firstName"])
	assert.Equal(t, "Amina", *res.Items[0].PII["firstName"])

	require.Len(t, audit.logs, 1)
	assert.Equal(t, shared.AuditActionPIIListRead, audit.logs[0].Action)
	assert.Equal(t, staff, audit.logs[0].ActorID)
}

func TestListNonAdminGetsEnvelopesOnly(t *testing.T) {
	staff := uuid.New()
	store := &stubStore{}
	svc, _, cipher := testService(t, store, nil)

	env, err := cipher.Seal("Amina")
	require.NoError(t, err)
	b := record(uuid.New(), scope.EntityProject, staff)
	b.FirstNameEnc = env
	store.rows = []Beneficiary{b}

	res, err := svc.List(context.Background(), ListRequest{}, scope.Unrestricted(), []string{rbac.RoleProgramManager}, staff)
	require.NoError(t, err)

	require.Len(t, res.Items, 1)
	assert.Nil(t, res.Items[0].PII)
	assert.Contains(t, res.Items[0].PIIEnc, "firstName")
	assert.NotNil(t, res.Items[0].PIIEnc["firstName"])
}

func TestListSelfStaffPredicate(t *testing.T) {
	staff := uuid.New()
	store := &stubStore{}
	svc, _, _ := testService(t, store, nil)

	_, err := svc.List(context.Background(), ListRequest{}, scope.BySelfStaff(staff), []string{rbac.RoleFieldOperator}, staff)
	require.NoError(t, err)

	where, args := store.lastPred.Where(1)
	assert.Contains(t, where, "created_by = $1")
	require.Len(t, args, 1)
	assert.Equal(t, staff, args[0])
}

func TestListStaffOverrideWinsForOperator(t *testing.T) {
	staff, other := uuid.New(), uuid.New()
	store := &stubStore{}
	svc, _, _ := testService(t, store, nil)

	req := ListRequest{StaffUserID: &other}
	_, err := svc.List(context.Background(), req, scope.BySelfStaff(staff), []string{rbac.RoleFieldOperator}, staff)
	require.NoError(t, err)

	_, args := store.lastPred.Where(1)
	require.Len(t, args, 1)
	assert.Equal(t, other, args[0])
}

func TestGetOutOfScopeIsNotFound(t *testing.T) {
	project, otherProject := uuid.New(), uuid.New()
	staff := uuid.New()
	b := record(otherProject, scope.EntityProject, staff)
	store := &stubStore{rows: []Beneficiary{b}}
	svc, audit, _ := testService(t, store, &stubHierarchy{})

	_, _, err := svc.Get(context.Background(), b.ID, scope.ByEntityIDs([]uuid.UUID{project}), []string{rbac.RoleProgramManager}, staff)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, audit.logs)
}

func TestGetSelfStaffForeignRecordIsNotFound(t *testing.T) {
	staff, other := uuid.New(), uuid.New()
	b := record(uuid.New(), scope.EntityProject, other)
	store := &stubStore{rows: []Beneficiary{b}}
	svc, _, _ := testService(t, store, nil)

	_, _, err := svc.Get(context.Background(), b.ID, scope.BySelfStaff(staff), []string{rbac.RoleFieldOperator}, staff)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetAdminDecryptsAndAudits(t *testing.T) {
	staff := uuid.New()
	store := &stubStore{}
	svc, audit, cipher := testService(t, store, nil)

	env, err := cipher.Seal("Okonkwo")
	require.NoError(t, err)
	b := record(uuid.New(), scope.EntityProject, staff)
	b.LastNameEnc = env
	store.rows = []Beneficiary{b}

	v, decrypted, err := svc.Get(context.Background(), b.ID, scope.Unrestricted(), []string{rbac.RoleSystemAdmin}, staff)
	require.NoError(t, err)
	assert.True(t, decrypted)
	require.NotNil(t, v.PII)
	require.NotNil(t, v.PII["lastName"])
	assert.Equal(t, "Okonkwo", *v.PII["lastName"])
	// absent envelope still appears as an explicit null plaintext
	require.Contains(t, v.PII, "firstName")
	assert.Nil(t, v.PII["firstName"])

	require.Len(t, audit.logs, 1)
	assert.Equal(t, shared.AuditActionPIIRead, audit.logs[0].Action)
	assert.Equal(t, b.ID.String(), audit.logs[0].EntityID)
}

func TestCreateRejectsUnknownEntityType(t *testing.T) {
	store := &stubStore{}
	svc, _, _ := testService(t, store, nil)

	_, err := svc.Create(context.Background(), CreateRequest{
		Pseudonym:  "BEN-1",
		EntityID:   uuid.New(),
		EntityType: scope.EntityType("region"),
	}, uuid.New())
	assert.ErrorIs(t, err, ErrInvalidEntityType)
}

func TestListPagination(t *testing.T) {
	staff := uuid.New()
	store := &stubStore{}
	for i := 0; i < 5; i++ {
		store.rows = append(store.rows, record(uuid.New(), scope.EntityProject, staff))
	}
	svc, _, _ := testService(t, store, nil)

	res, err := svc.List(context.Background(), ListRequest{Page: 2, PerPage: 2}, scope.Unrestricted(), []string{rbac.RoleProgramManager}, staff)
	require.NoError(t, err)
	assert.Len(t, res.Items, 2)
	assert.Equal(t, 5, res.Pagination.Total)
	assert.Equal(t, 3, res.Pagination.TotalPages)
}
