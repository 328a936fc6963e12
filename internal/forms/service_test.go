package forms

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-aid/meridian-aid/internal/scope"
	"github.com/meridian-aid/meridian-aid/internal/shared"
)

type stubStore struct {
	templates []Template
	responses []Response
}

func (s *stubStore) CreateTemplate(_ context.Context, req CreateTemplateRequest) (*Template, error) {
	t := Template{ID: uuid.New(), Name: req.Name, Version: req.Version, Schema: req.Schema}
	s.templates = append(s.templates, t)
	return &t, nil
}

func (s *stubStore) GetTemplate(_ context.Context, id uuid.UUID) (*Template, error) {
	for i := range s.templates {
		if s.templates[i].ID == id {
			return &s.templates[i], nil
		}
	}
	return nil, ErrNotFound
}

func (s *stubStore) ListTemplates(_ context.Context, _ *time.Time) ([]Template, error) {
	return s.templates, nil
}

func (s *stubStore) CreateResponse(_ context.Context, req SubmitRequest, submittedBy uuid.UUID) (*Response, error) {
	resp := Response{
		ID:          uuid.New(),
		TemplateID:  req.TemplateID,
		EntityID:    req.EntityID,
		EntityType:  req.EntityType,
		SubmittedBy: submittedBy,
		Payload:     req.Payload,
	}
	s.responses = append(s.responses, resp)
	return &resp, nil
}

func (s *stubStore) GetResponse(_ context.Context, id uuid.UUID) (*Response, error) {
	for i := range s.responses {
		if s.responses[i].ID == id {
			return &s.responses[i], nil
		}
	}
	return nil, ErrNotFound
}

func (s *stubStore) ListResponses(_ context.Context, _ *scope.Predicate, _ *time.Time) ([]Response, error) {
	out := make([]Response, len(s.responses))
	copy(out, s.responses)
	return out, nil
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

func TestNormalizeKeys(t *testing.T) {
	// U+FB01 LATIN SMALL LIGATURE FI folds to "fi" under NFKC
	in := map[string]any{
		"ﬁeldName": "x",
		"nested": map[string]any{
			"①count": 1, // circled digit one folds to "1"
		},
		"plain": true,
	}
	out := NormalizeKeys(in)

	assert.Contains(t, out, "fieldName")
	assert.NotContains(t, out, "ﬁeldName")
	nested, ok := out["nested"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, nested, "1count")
	assert.Equal(t, true, out["plain"])
	assert.Nil(t, NormalizeKeys(nil))
}

func TestSubmitNormalizesAndChecksTemplate(t *testing.T) {
	store := &stubStore{}
	svc := NewService(store, &stubHierarchy{})

	tpl, err := svc.CreateTemplate(context.Background(), CreateTemplateRequest{
		Name: "intake", Version: 1, Schema: json.RawMessage(`{}`),
	})
	require.NoError(t, err)

	resp, err := svc.Submit(context.Background(), SubmitRequest{
		TemplateID: tpl.ID,
		EntityID:   uuid.New(),
		EntityType: scope.EntityActivity,
		Payload:    map[string]any{"ﬁrst": "a"},
	}, uuid.New())
	require.NoError(t, err)
	assert.Contains(t, resp.Payload, "first")

	_, err = svc.Submit(context.Background(), SubmitRequest{
		TemplateID: uuid.New(),
		EntityID:   uuid.New(),
		EntityType: scope.EntityActivity,
		Payload:    map[string]any{},
	}, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListResponsesManagerScope(t *testing.T) {
	project := uuid.New()
	s1, s2 := uuid.New(), uuid.New()
	staff := uuid.New()
	hier := &stubHierarchy{subToProject: map[uuid.UUID]uuid.UUID{s1: project, s2: project}}
	store := &stubStore{responses: []Response{
		{ID: uuid.New(), EntityID: s1, EntityType: scope.EntitySubproject, SubmittedBy: staff},
		{ID: uuid.New(), EntityID: s2, EntityType: scope.EntitySubproject, SubmittedBy: staff},
	}}
	svc := NewService(store, hier)

	res, err := svc.ListResponses(context.Background(), ListResponsesRequest{}, scope.ByEntityIDs([]uuid.UUID{s1}))
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, s1, res.Items[0].EntityID)
}

func TestGetResponseSelfStaff(t *testing.T) {
	staff, other := uuid.New(), uuid.New()
	resp := Response{ID: uuid.New(), EntityID: uuid.New(), EntityType: scope.EntityProject, SubmittedBy: other}
	store := &stubStore{responses: []Response{resp}}
	svc := NewService(store, &stubHierarchy{})

	_, err := svc.GetResponse(context.Background(), resp.ID, scope.BySelfStaff(staff))
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := svc.GetResponse(context.Background(), resp.ID, scope.BySelfStaff(other))
	require.NoError(t, err)
	assert.Equal(t, resp.ID, got.ID)
}
