package sync

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-aid/meridian-aid/internal/beneficiaries"
	"github.com/meridian-aid/meridian-aid/internal/deliveries"
	"github.com/meridian-aid/meridian-aid/internal/forms"
	"github.com/meridian-aid/meridian-aid/internal/pii"
	"github.com/meridian-aid/meridian-aid/internal/projects"
	"github.com/meridian-aid/meridian-aid/internal/rbac"
	"github.com/meridian-aid/meridian-aid/internal/scope"
	"github.com/meridian-aid/meridian-aid/internal/shared"
)

const testKeyHex = "6368616e676520746869732070617373776f726420746f206120736563726574"

type stubSources struct {
	projects    []projects.Project
	subprojects []projects.Subproject
	activities  []projects.Activity
	templates   []forms.Template
	bens        []beneficiaries.Beneficiary
	dels        []deliveries.Delivery

	lastBenPred *scope.Predicate
}

func (s *stubSources) ListProjects(_ context.Context, f scope.EntityFilter) ([]projects.Project, error) {
	if f.Kind() != scope.FilterByEntityIDs {
		return s.projects, nil
	}
	var out []projects.Project
	for _, p := range s.projects {
		if f.Contains(p.ID) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubSources) ListSubprojects(_ context.Context, f scope.EntityFilter, projectID *uuid.UUID) ([]projects.Subproject, error) {
	var out []projects.Subproject
	for _, sp := range s.subprojects {
		if projectID != nil && sp.ProjectID != *projectID {
			continue
		}
		if f.Kind() == scope.FilterByEntityIDs && !f.Contains(sp.ID) && !f.Contains(sp.ProjectID) {
			continue
		}
		out = append(out, sp)
	}
	return out, nil
}

func (s *stubSources) ListActivities(_ context.Context, f scope.EntityFilter, _ *uuid.UUID) ([]projects.Activity, error) {
	var out []projects.Activity
	for _, a := range s.activities {
		if f.Kind() == scope.FilterByEntityIDs && !f.Contains(a.ID) && !f.Contains(a.SubprojectID) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *stubSources) ListTemplates(_ context.Context, _ *time.Time) ([]forms.Template, error) {
	return s.templates, nil
}

func (s *stubSources) List(_ context.Context, pred *scope.Predicate, _ *time.Time) ([]beneficiaries.Beneficiary, error) {
	s.lastBenPred = pred
	return s.bens, nil
}

type delSource struct{ rows []deliveries.Delivery }

func (d *delSource) List(_ context.Context, _ *scope.Predicate, _ *time.Time) ([]deliveries.Delivery, error) {
	return d.rows, nil
}

type stubHierarchy struct {
	subToProject map[uuid.UUID]uuid.UUID
	actToSub     map[uuid.UUID]uuid.UUID
}

func (s *stubHierarchy) ProjectIDForSubproject(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	if p, ok := s.subToProject[id]; ok {
		return p, nil
	}
	return uuid.Nil, shared.ErrNotFound
}

func (s *stubHierarchy) SubprojectIDForActivity(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	if sub, ok := s.actToSub[id]; ok {
		return sub, nil
	}
	return uuid.Nil, shared.ErrNotFound
}

func (s *stubHierarchy) ProjectIDsForSubprojects(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	out := make(map[uuid.UUID]uuid.UUID)
	for _, id := range ids {
		if p, ok := s.subToProject[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *stubHierarchy) SubprojectIDsForActivities(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	out := make(map[uuid.UUID]uuid.UUID)
	for _, id := range ids {
		if sub, ok := s.actToSub[id]; ok {
			out[id] = sub
		}
	}
	return out, nil
}

type stubAuditor struct{ logs []shared.AuditLog }

func (s *stubAuditor) Record(_ context.Context, log shared.AuditLog) error {
	s.logs = append(s.logs, log)
	return nil
}

func testService(t *testing.T, src *stubSources, dels *delSource, hier *stubHierarchy) (*Service, *stubAuditor, *pii.Cipher) {
	t.Helper()
	cipher, err := pii.NewCipher(testKeyHex)
	require.NoError(t, err)
	if hier == nil {
		hier = &stubHierarchy{}
	}
	audit := &stubAuditor{}
	svc := NewService(src, src, dels, src, hier, pii.NewGate(cipher), audit, nil)
	return svc, audit, cipher
}

func fixture() (*stubSources, *delSource, *stubHierarchy, uuid.UUID, uuid.UUID, uuid.UUID) {
	project := uuid.New()
	s1, s2 := uuid.New(), uuid.New()
	staff := uuid.New()
	src := &stubSources{
		projects: []projects.Project{{ID: project, Code: "P-001"}},
		subprojects: []projects.Subproject{
			{ID: s1, ProjectID: project, Code: "S-001"},
			{ID: s2, ProjectID: project, Code: "S-002"},
		},
		templates: []forms.Template{{ID: uuid.New(), Name: "intake", Version: 1, Schema: json.RawMessage(`{}`)}},
		bens: []beneficiaries.Beneficiary{
			{ID: uuid.New(), EntityID: s1, EntityType: scope.EntitySubproject, CreatedBy: staff},
			{ID: uuid.New(), EntityID: s2, EntityType: scope.EntitySubproject, CreatedBy: staff},
		},
	}
	dels := &delSource{rows: []deliveries.Delivery{
		{ID: uuid.New(), EntityID: s1, EntityType: scope.EntitySubproject, StaffUserID: staff},
	}}
	hier := &stubHierarchy{subToProject: map[uuid.UUID]uuid.UUID{s1: project, s2: project}}
	return src, dels, hier, project, s1, s2
}

func TestPullManagerScope(t *testing.T) {
	src, dels, hier, _, s1, s2 := fixture()
	svc, audit, _ := testService(t, src, dels, hier)

	cs, decrypted, err := svc.Pull(context.Background(), PullRequest{}, scope.ByEntityIDs([]uuid.UUID{s1}), []string{rbac.RoleSubProjectManager}, uuid.New())
	require.NoError(t, err)

	assert.False(t, decrypted)
	require.Len(t, cs.Beneficiaries, 1)
	assert.Equal(t, s1, cs.Beneficiaries[0].EntityID)
	assert.Nil(t, cs.Beneficiaries[0].PII)
	for _, sp := range cs.Subprojects {
		assert.NotEqual(t, s2, sp.ID)
	}
	require.Len(t, audit.logs, 1)
	assert.Equal(t, shared.AuditActionSyncPull, audit.logs[0].Action)
	assert.Equal(t, false, audit.logs[0].Meta["decrypted"])
}

func TestPullAdminDecrypts(t *testing.T) {
	src, dels, hier, _, _, _ := fixture()
	svc, audit, cipher := testService(t, src, dels, hier)

	env, err := cipher.Seal("Amina")
	require.NoError(t, err)
	src.bens[0].FirstNameEnc = env

	cs, decrypted, err := svc.Pull(context.Background(), PullRequest{}, scope.Unrestricted(), []string{rbac.RoleSuperAdmin}, uuid.New())
	require.NoError(t, err)

	assert.True(t, decrypted)
	require.Len(t, cs.Beneficiaries, 2)
	require.NotNil(t, cs.Beneficiaries[0].PII)
	assert.Equal(t, "Amina", *cs.Beneficiaries[0].PII["firstName"])
	assert.Equal(t, true, audit.logs[0].Meta["decrypted"])
}

func TestPullFieldOperatorUsesSelfPredicate(t *testing.T) {
	src, dels, hier, _, _, _ := fixture()
	svc, _, _ := testService(t, src, dels, hier)
	staff := uuid.New()

	_, decrypted, err := svc.Pull(context.Background(), PullRequest{}, scope.BySelfStaff(staff), []string{rbac.RoleFieldOperator}, staff)
	require.NoError(t, err)
	assert.False(t, decrypted)

	where, args := src.lastBenPred.Where(1)
	assert.Contains(t, where, "created_by = $1")
	require.Len(t, args, 1)
	assert.Equal(t, staff, args[0])
}

func TestPullNarrowedToProject(t *testing.T) {
	src, dels, hier, project, s1, _ := fixture()
	svc, _, _ := testService(t, src, dels, hier)

	// subproject manager asking for their project keeps only their subs
	cs, _, err := svc.Pull(context.Background(), PullRequest{ProjectID: &project}, scope.ByEntityIDs([]uuid.UUID{s1}), []string{rbac.RoleSubProjectManager}, uuid.New())
	require.NoError(t, err)
	require.Len(t, cs.Subprojects, 1)
	assert.Equal(t, s1, cs.Subprojects[0].ID)
	require.Len(t, cs.Beneficiaries, 1)
	assert.Equal(t, s1, cs.Beneficiaries[0].EntityID)

	// a foreign project is indistinguishable from a missing one
	foreign := uuid.New()
	_, _, err = svc.Pull(context.Background(), PullRequest{ProjectID: &foreign}, scope.ByEntityIDs([]uuid.UUID{s1}), []string{rbac.RoleSubProjectManager}, uuid.New())
	assert.ErrorIs(t, err, ErrProjectNotVisible)
}

func TestPullSinceFiltersHierarchy(t *testing.T) {
	src, dels, hier, _, _, _ := fixture()
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	src.projects[0].UpdatedAt = old
	src.subprojects[0].UpdatedAt = recent
	src.subprojects[1].UpdatedAt = old
	svc, _, _ := testService(t, src, dels, hier)

	since := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	cs, _, err := svc.Pull(context.Background(), PullRequest{Since: &since}, scope.Unrestricted(), []string{rbac.RoleSuperAdmin}, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, cs.Projects)
	require.Len(t, cs.Subprojects, 1)
	assert.Equal(t, recent, cs.Subprojects[0].UpdatedAt)
}
