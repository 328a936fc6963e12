package beneficiaries

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-aid/meridian-aid/internal/pii"
	"github.com/meridian-aid/meridian-aid/internal/scope"
	"github.com/meridian-aid/meridian-aid/internal/shared"
)

// ErrInvalidEntityType indicates the request named an unknown hierarchy level.
var ErrInvalidEntityType = errors.New("beneficiaries: invalid entity type")

// Auditor records PII access events.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Store is the subset of Repository the service depends on.
type Store interface {
	Create(ctx context.Context, req CreateRequest, createdBy uuid.UUID) (*Beneficiary, error)
	Get(ctx context.Context, id uuid.UUID) (*Beneficiary, error)
	Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*Beneficiary, error)
	List(ctx context.Context, pred *scope.Predicate, since *time.Time) ([]Beneficiary, error)
}

// Service provides business logic for beneficiary records.
type Service struct {
	repo   Store
	gate   pii.Gate
	hier   scope.HierarchyStore
	audit  Auditor
	logger *slog.Logger
}

// NewService constructs a beneficiaries service.
func NewService(repo Store, gate pii.Gate, hier scope.HierarchyStore, audit Auditor, logger *slog.Logger) *Service {
	return &Service{repo: repo, gate: gate, hier: hier, audit: audit, logger: logger}
}

var listColumns = scope.Columns{EntityID: "entity_id", StaffUserID: "created_by"}

// ListResult carries shaped records plus whether plaintext was emitted,
// so the handler can set the no-store caching directive.
type ListResult struct {
	Items      []View
	Pagination shared.Pagination
	Decrypted  bool
}

// List returns scope-visible beneficiaries. Id-set scopes are enforced
// post-hoc through hierarchy resolution since rows reference entities at
// any level; explicit request filters override scope per the predicate
// contract.
func (s *Service) List(ctx context.Context, req ListRequest, f scope.EntityFilter, roles []string, principalID uuid.UUID) (ListResult, error) {
	reqFilters := scope.RequestFilters{
		EntityID:    req.EntityID,
		EntityIDs:   req.EntityIDs,
		StaffUserID: req.StaffUserID,
	}
	pred := scope.BuildPredicate(listColumns, reqFilters, scope.SQLScope(reqFilters, f))
	if req.Status != nil {
		pred.And("status = ?", *req.Status)
	}

	rows, err := s.repo.List(ctx, pred, nil)
	if err != nil {
		return ListResult{}, fmt.Errorf("beneficiaries: list: %w", err)
	}

	if scope.NeedsPostFilter(reqFilters, f) {
		resolver := scope.NewHierarchyResolver(s.hier)
		refs := make([]scope.Ref, len(rows))
		for i, b := range rows {
			refs[i] = scope.Ref{ID: b.EntityID, Type: b.EntityType}
		}
		keep, err := resolver.FilterInScope(ctx, refs, f)
		if err != nil {
			return ListResult{}, fmt.Errorf("beneficiaries: scope filter: %w", err)
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
	page := rows[start:end]

	canDecrypt := s.gate.CanDecrypt(roles)
	items := make([]View, 0, len(page))
	for i := range page {
		v, err := s.shape(&page[i], canDecrypt)
		if err != nil {
			return ListResult{}, err
		}
		items = append(items, *v)
	}

	if canDecrypt && len(items) > 0 {
		s.auditListRead(ctx, principalID, len(items), pg)
	}
	return ListResult{Items: items, Pagination: pg, Decrypted: canDecrypt}, nil
}

// Get returns one beneficiary when it is inside the caller's scope.
// Out-of-scope records surface as not-found, never as forbidden, so the
// response does not confirm the record exists.
func (s *Service) Get(ctx context.Context, id uuid.UUID, f scope.EntityFilter, roles []string, principalID uuid.UUID) (*View, bool, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if f.Kind() == scope.FilterBySelfStaff && b.CreatedBy != f.StaffID() {
		return nil, false, ErrNotFound
	}
	resolver := scope.NewHierarchyResolver(s.hier)
	ok, err := resolver.IsInScope(ctx, b.EntityID, b.EntityType, f)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, ErrNotFound
	}

	canDecrypt := s.gate.CanDecrypt(roles)
	v, err := s.shape(b, canDecrypt)
	if err != nil {
		return nil, false, err
	}
	if canDecrypt {
		s.auditRecordRead(ctx, principalID, b.ID)
	}
	return v, canDecrypt, nil
}

// Create registers a beneficiary with pre-encrypted envelopes.
func (s *Service) Create(ctx context.Context, req CreateRequest, createdBy uuid.UUID) (*View, error) {
	if !req.EntityType.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEntityType, req.EntityType)
	}
	b, err := s.repo.Create(ctx, req, createdBy)
	if err != nil {
		return nil, err
	}
	return s.shape(b, false)
}

// Update patches a record's status or envelopes.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest, f scope.EntityFilter) (*View, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.Kind() == scope.FilterBySelfStaff && b.CreatedBy != f.StaffID() {
		return nil, ErrNotFound
	}
	resolver := scope.NewHierarchyResolver(s.hier)
	ok, err := resolver.IsInScope(ctx, b.EntityID, b.EntityType, f)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	updated, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}
	return s.shape(updated, false)
}

func (s *Service) shape(b *Beneficiary, canDecrypt bool) (*View, error) {
	enc, plain, err := s.gate.Shape(b.EncFields(), canDecrypt)
	if err != nil {
		return nil, fmt.Errorf("beneficiaries: shape %s: %w", b.ID, err)
	}
	return &View{
		ID:         b.ID,
		Pseudonym:  b.Pseudonym,
		Status:     b.Status,
		EntityID:   b.EntityID,
		EntityType: b.EntityType,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
		PIIEnc:     enc,
		PII:        plain,
	}, nil
}

func (s *Service) auditRecordRead(ctx context.Context, principalID, recordID uuid.UUID) {
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  principalID,
		Action:   shared.AuditActionPIIRead,
		Entity:   "beneficiary",
		EntityID: recordID.String(),
		Meta:     map[string]any{"decrypted": true},
	})
	if err != nil && s.logger != nil {
		s.logger.Error("audit pii read", slog.Any("error", err))
	}
}

func (s *Service) auditListRead(ctx context.Context, principalID uuid.UUID, count int, pg shared.Pagination) {
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  principalID,
		Action:   shared.AuditActionPIIListRead,
		Entity:   "beneficiary",
		EntityID: "list",
		Meta:     map[string]any{"count": count, "page": pg.Page, "per_page": pg.PerPage},
	})
	if err != nil && s.logger != nil {
		s.logger.Error("audit pii list read", slog.Any("error", err))
	}
}
