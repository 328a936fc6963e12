package forms

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/meridian-aid/meridian-aid/internal/scope"
	"github.com/meridian-aid/meridian-aid/internal/shared"
)

// Store is the subset of Repository the service depends on.
type Store interface {
	CreateTemplate(ctx context.Context, req CreateTemplateRequest) (*Template, error)
	GetTemplate(ctx context.Context, id uuid.UUID) (*Template, error)
	ListTemplates(ctx context.Context, since *time.Time) ([]Template, error)
	CreateResponse(ctx context.Context, req SubmitRequest, submittedBy uuid.UUID) (*Response, error)
	GetResponse(ctx context.Context, id uuid.UUID) (*Response, error)
	ListResponses(ctx context.Context, pred *scope.Predicate, since *time.Time) ([]Response, error)
}

// Service provides business logic for form templates and responses.
type Service struct {
	repo Store
	hier scope.HierarchyStore
}

// NewService constructs a forms service.
func NewService(repo Store, hier scope.HierarchyStore) *Service {
	return &Service{repo: repo, hier: hier}
}

var listColumns = scope.Columns{EntityID: "entity_id", StaffUserID: "submitted_by"}

// NormalizeKeys rewrites payload field keys to NFKC so that visually
// identical keys typed on different devices collate to one field.
// Nested objects are normalized recursively.
func NormalizeKeys(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		if nested, ok := v.(map[string]any); ok {
			v = NormalizeKeys(nested)
		}
		out[norm.NFKC.String(k)] = v
	}
	return out
}

// CreateTemplate registers a template version.
func (s *Service) CreateTemplate(ctx context.Context, req CreateTemplateRequest) (*Template, error) {
	return s.repo.CreateTemplate(ctx, req)
}

// GetTemplate fetches a template.
func (s *Service) GetTemplate(ctx context.Context, id uuid.UUID) (*Template, error) {
	return s.repo.GetTemplate(ctx, id)
}

// ListTemplates lists all templates. Templates carry no entity binding,
// so no scope applies.
func (s *Service) ListTemplates(ctx context.Context) ([]Template, error) {
	return s.repo.ListTemplates(ctx, nil)
}

// Submit records a response with normalized payload keys.
func (s *Service) Submit(ctx context.Context, req SubmitRequest, submittedBy uuid.UUID) (*Response, error) {
	if !req.EntityType.IsValid() {
		return nil, fmt.Errorf("forms: invalid entity type %q", req.EntityType)
	}
	if _, err := s.repo.GetTemplate(ctx, req.TemplateID); err != nil {
		return nil, err
	}
	req.Payload = NormalizeKeys(req.Payload)
	return s.repo.CreateResponse(ctx, req, submittedBy)
}

// ListResponsesResult carries one page of responses.
type ListResponsesResult struct {
	Items      []Response
	Pagination shared.Pagination
}

// ListResponses returns scope-visible responses.
func (s *Service) ListResponses(ctx context.Context, req ListResponsesRequest, f scope.EntityFilter) (ListResponsesResult, error) {
	reqFilters := scope.RequestFilters{
		EntityID:    req.EntityID,
		EntityIDs:   req.EntityIDs,
		StaffUserID: req.StaffUserID,
	}
	pred := scope.BuildPredicate(listColumns, reqFilters, scope.SQLScope(reqFilters, f))
	if req.TemplateID != nil {
		pred.And("template_id = ?", *req.TemplateID)
	}
	rows, err := s.repo.ListResponses(ctx, pred, nil)
	if err != nil {
		return ListResponsesResult{}, fmt.Errorf("forms: list responses: %w", err)
	}
	if scope.NeedsPostFilter(reqFilters, f) {
		resolver := scope.NewHierarchyResolver(s.hier)
		refs := make([]scope.Ref, len(rows))
		for i, resp := range rows {
			refs[i] = scope.Ref{ID: resp.EntityID, Type: resp.EntityType}
		}
		keep, err := resolver.FilterInScope(ctx, refs, f)
		if err != nil {
			return ListResponsesResult{}, fmt.Errorf("forms: scope filter: %w", err)
		}
		filtered := rows[:0]
		for i, ok := range keep {
			if ok {
				filtered = append(filtered, rows[i])
			}
		}
		rows = filtered
	}
	pg := shared.NewPagination(req.Page, req.PerPage, len(rows))
	start := pg.Offset()
	if start > len(rows) {
		start = len(rows)
	}
	end := start + pg.PerPage
	if end > len(rows) {
		end = len(rows)
	}
	return ListResponsesResult{Items: rows[start:end], Pagination: pg}, nil
}

// GetResponse returns one response when it is inside the caller's scope.
func (s *Service) GetResponse(ctx context.Context, id uuid.UUID, f scope.EntityFilter) (*Response, error) {
	resp, err := s.repo.GetResponse(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.Kind() == scope.FilterBySelfStaff && resp.SubmittedBy != f.StaffID() {
		return nil, ErrNotFound
	}
	resolver := scope.NewHierarchyResolver(s.hier)
	ok, err := resolver.IsInScope(ctx, resp.EntityID, resp.EntityType, f)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return resp, nil
}
