package deliveries

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/meridian-aid/meridian-aid/internal/scope"
	"github.com/meridian-aid/meridian-aid/internal/shared"
)

// Store is the subset of Repository the service depends on.
type Store interface {
	Create(ctx context.Context, req CreateRequest, staffUserID uuid.UUID) (*Delivery, error)
	Get(ctx context.Context, id uuid.UUID) (*Delivery, error)
	List(ctx context.Context, pred *scope.Predicate, since *time.Time) ([]Delivery, error)
	Summarize(ctx context.Context, pred *scope.Predicate) (*Summary, error)
}

// Service provides business logic for service deliveries.
type Service struct {
	repo    Store
	hier    scope.HierarchyStore
	cache   *Cache
	logger  *slog.Logger
	kpiOnce singleflight.Group
}

// NewService constructs a deliveries service.
func NewService(repo Store, hier scope.HierarchyStore, cache *Cache, logger *slog.Logger) *Service {
	return &Service{repo: repo, hier: hier, cache: cache, logger: logger}
}

var listColumns = scope.Columns{EntityID: "entity_id", StaffUserID: "staff_user_id"}

// ListResult carries one page of deliveries.
type ListResult struct {
	Items      []Delivery
	Pagination shared.Pagination
}

func buildPredicate(req ListRequest, f scope.EntityFilter) (*scope.Predicate, scope.RequestFilters) {
	reqFilters := scope.RequestFilters{
		EntityID:    req.EntityID,
		EntityIDs:   req.EntityIDs,
		StaffUserID: req.StaffUserID,
	}
	pred := scope.BuildPredicate(listColumns, reqFilters, scope.SQLScope(reqFilters, f))
	if req.ServiceID != nil {
		pred.And("service_id = ?", *req.ServiceID)
	}
	if req.BeneficiaryID != nil {
		pred.And("beneficiary_id = ?", *req.BeneficiaryID)
	}
	if req.From != nil {
		pred.And("delivered_at >= ?", *req.From)
	}
	if req.To != nil {
		pred.And("delivered_at < ?", *req.To)
	}
	return pred, reqFilters
}

// List returns scope-visible deliveries with the full filter set.
func (s *Service) List(ctx context.Context, req ListRequest, f scope.EntityFilter) (ListResult, error) {
	pred, reqFilters := buildPredicate(req, f)
	rows, err := s.repo.List(ctx, pred, nil)
	if err != nil {
		return ListResult{}, fmt.Errorf("deliveries: list: %w", err)
	}
	if scope.NeedsPostFilter(reqFilters, f) {
		rows, err = s.postFilter(ctx, rows, f)
		if err != nil {
			return ListResult{}, err
		}
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
	return ListResult{Items: rows[start:end], Pagination: pg}, nil
}

func (s *Service) postFilter(ctx context.Context, rows []Delivery, f scope.EntityFilter) ([]Delivery, error) {
	resolver := scope.NewHierarchyResolver(s.hier)
	refs := make([]scope.Ref, len(rows))
	for i, d := range rows {
		refs[i] = scope.Ref{ID: d.EntityID, Type: d.EntityType}
	}
	keep, err := resolver.FilterInScope(ctx, refs, f)
	if err != nil {
		return nil, fmt.Errorf("deliveries: scope filter: %w", err)
	}
	filtered := rows[:0]
	for i, ok := range keep {
		if ok {
			filtered = append(filtered, rows[i])
		}
	}
	return filtered, nil
}

// GetScoped returns one delivery when it is inside the caller's scope.
// Out-of-scope records surface as not-found.
func (s *Service) GetScoped(ctx context.Context, id uuid.UUID, f scope.EntityFilter) (*Delivery, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.Kind() == scope.FilterBySelfStaff && d.StaffUserID != f.StaffID() {
		return nil, ErrNotFound
	}
	resolver := scope.NewHierarchyResolver(s.hier)
	ok, err := resolver.IsInScope(ctx, d.EntityID, d.EntityType, f)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}

// Create records a delivery attributed to the calling staff user.
func (s *Service) Create(ctx context.Context, req CreateRequest, staffUserID uuid.UUID) (*Delivery, error) {
	if !req.EntityType.IsValid() {
		return nil, fmt.Errorf("deliveries: invalid entity type %q", req.EntityType)
	}
	d, err := s.repo.Create(ctx, req, staffUserID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Bump(ctx); err != nil && s.logger != nil {
		s.logger.Warn("bump kpi cache", slog.Any("error", err))
	}
	return d, nil
}

// Summary returns KPI aggregates for the caller's scope, cached in
// redis and deduplicated with singleflight so concurrent dashboard
// loads share one computation.
func (s *Service) Summary(ctx context.Context, req ListRequest, f scope.EntityFilter, principalID uuid.UUID) (*Summary, error) {
	key, err := s.cache.BuildKey(ctx, "deliveries", "kpi", principalID.String(), fingerprint(req))
	if err != nil {
		return nil, err
	}
	var out Summary
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (interface{}, error) {
		v, err, _ := s.kpiOnce.Do(key, func() (interface{}, error) {
			return s.computeSummary(ctx, req, f)
		})
		return v, err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) computeSummary(ctx context.Context, req ListRequest, f scope.EntityFilter) (*Summary, error) {
	pred, reqFilters := buildPredicate(req, f)
	if !scope.NeedsPostFilter(reqFilters, f) {
		return s.repo.Summarize(ctx, pred)
	}
	// Manager scopes need hierarchy resolution per row, so the
	// aggregation happens here over the scoped rows.
	rows, err := s.repo.List(ctx, pred, nil)
	if err != nil {
		return nil, err
	}
	rows, err = s.postFilter(ctx, rows, f)
	if err != nil {
		return nil, err
	}
	return aggregate(rows), nil
}

func aggregate(rows []Delivery) *Summary {
	s := &Summary{
		Total:     int64(len(rows)),
		ByService: []ServiceCount{},
		ByEntity:  []EntityCount{},
		ByDay:     []DayCount{},
	}
	byService := map[uuid.UUID]*ServiceCount{}
	type entityKey struct {
		id uuid.UUID
		tp scope.EntityType
	}
	byEntity := map[entityKey]*EntityCount{}
	byDay := map[string]int64{}
	for _, d := range rows {
		sc, ok := byService[d.ServiceID]
		if !ok {
			sc = &ServiceCount{ServiceID: d.ServiceID}
			byService[d.ServiceID] = sc
		}
		sc.Count++
		sc.Quantity += d.Quantity

		ek := entityKey{d.EntityID, d.EntityType}
		ec, ok := byEntity[ek]
		if !ok {
			ec = &EntityCount{EntityID: d.EntityID, EntityType: d.EntityType}
			byEntity[ek] = ec
		}
		ec.Count++

		byDay[d.DeliveredAt.Format("2006-01-02")]++
	}
	for _, sc := range byService {
		s.ByService = append(s.ByService, *sc)
	}
	sort.Slice(s.ByService, func(i, j int) bool {
		if s.ByService[i].Count != s.ByService[j].Count {
			return s.ByService[i].Count > s.ByService[j].Count
		}
		return s.ByService[i].ServiceID.String() < s.ByService[j].ServiceID.String()
	})
	for _, ec := range byEntity {
		s.ByEntity = append(s.ByEntity, *ec)
	}
	sort.Slice(s.ByEntity, func(i, j int) bool {
		if s.ByEntity[i].Count != s.ByEntity[j].Count {
			return s.ByEntity[i].Count > s.ByEntity[j].Count
		}
		return s.ByEntity[i].EntityID.String() < s.ByEntity[j].EntityID.String()
	})
	for day, n := range byDay {
		s.ByDay = append(s.ByDay, DayCount{Day: day, Count: n})
	}
	sort.Slice(s.ByDay, func(i, j int) bool { return s.ByDay[i].Day < s.ByDay[j].Day })
	return s
}

func fingerprint(req ListRequest) string {
	part := func(p *uuid.UUID) string {
		if p == nil {
			return "-"
		}
		return p.String()
	}
	tm := func(t *time.Time) string {
		if t == nil {
			return "-"
		}
		return t.UTC().Format(time.RFC3339)
	}
	ids := "-"
	if len(req.EntityIDs) > 0 {
		sorted := make([]string, len(req.EntityIDs))
		for i, id := range req.EntityIDs {
			sorted[i] = id.String()
		}
		sort.Strings(sorted)
		ids = fmt.Sprint(sorted)
	}
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s",
		part(req.ServiceID), part(req.BeneficiaryID), tm(req.From), tm(req.To),
		part(req.EntityID), ids, part(req.StaffUserID))
}
