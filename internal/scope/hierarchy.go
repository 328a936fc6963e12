package scope

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-aid/meridian-aid/internal/shared"
)

// HierarchyStore walks the containment chain in storage. Missing rows
// are reported as shared.ErrNotFound; the bulk variants simply omit the
// id from the result map.
type HierarchyStore interface {
	ProjectIDForSubproject(ctx context.Context, subprojectID uuid.UUID) (uuid.UUID, error)
	SubprojectIDForActivity(ctx context.Context, activityID uuid.UUID) (uuid.UUID, error)
	ProjectIDsForSubprojects(ctx context.Context, subprojectIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error)
	SubprojectIDsForActivities(ctx context.Context, activityIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error)
}

// Ref is an (entityId, entityType) pair carried by delivery and form
// response rows.
type Ref struct {
	ID   uuid.UUID
	Type EntityType
}

// HierarchyResolver resolves owning projects for entities at any level.
// It memoises hops, so a resolver instance must live at most for one
// request; never share one across requests.
type HierarchyResolver struct {
	store        HierarchyStore
	subToProject map[uuid.UUID]uuid.UUID
	actToSub     map[uuid.UUID]uuid.UUID
}

// NewHierarchyResolver constructs a request-scoped resolver.
func NewHierarchyResolver(store HierarchyStore) *HierarchyResolver {
	return &HierarchyResolver{
		store:        store,
		subToProject: make(map[uuid.UUID]uuid.UUID),
		actToSub:     make(map[uuid.UUID]uuid.UUID),
	}
}

// OwningProject returns the project owning the entity: zero hops for a
// project, one for a subproject, two for an activity. A missing hop
// yields shared.ErrNotFound.
func (h *HierarchyResolver) OwningProject(ctx context.Context, entityID uuid.UUID, entityType EntityType) (uuid.UUID, error) {
	switch entityType {
	case EntityProject:
		return entityID, nil
	case EntitySubproject:
		return h.projectOf(ctx, entityID)
	case EntityActivity:
		sub, err := h.subprojectOf(ctx, entityID)
		if err != nil {
			return uuid.Nil, err
		}
		return h.projectOf(ctx, sub)
	default:
		return uuid.Nil, fmt.Errorf("scope: unknown entity type %q: %w", entityType, shared.ErrNotFound)
	}
}

// IsInScope tests scope membership for a single entity. Membership is
// evaluated against the resolved chain: the entity id itself, its
// subproject and its project. Unknown entity types and missing hops
// never match.
func (h *HierarchyResolver) IsInScope(ctx context.Context, entityID uuid.UUID, entityType EntityType, f EntityFilter) (bool, error) {
	switch f.Kind() {
	case FilterUnrestricted, FilterBySelfStaff:
		// No entity-dimension restriction.
		return true, nil
	case FilterByEntityIDs:
	default:
		return false, fmt.Errorf("scope: unknown filter kind %d", f.Kind())
	}
	if !entityType.IsValid() {
		return false, nil
	}
	if f.Contains(entityID) {
		return true, nil
	}
	switch entityType {
	case EntityProject:
		return false, nil
	case EntitySubproject:
		project, err := h.projectOf(ctx, entityID)
		if errors.Is(err, shared.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return f.Contains(project), nil
	case EntityActivity:
		sub, err := h.subprojectOf(ctx, entityID)
		if errors.Is(err, shared.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if f.Contains(sub) {
			return true, nil
		}
		project, err := h.projectOf(ctx, sub)
		if errors.Is(err, shared.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return f.Contains(project), nil
	}
	return false, nil
}

// FilterInScope evaluates membership for many refs with at most one bulk
// lookup per hierarchy level, instead of per-row queries. The result is
// index-aligned with refs.
func (h *HierarchyResolver) FilterInScope(ctx context.Context, refs []Ref, f EntityFilter) ([]bool, error) {
	out := make([]bool, len(refs))
	switch f.Kind() {
	case FilterUnrestricted, FilterBySelfStaff:
		for i := range out {
			out[i] = true
		}
		return out, nil
	case FilterByEntityIDs:
	default:
		return nil, fmt.Errorf("scope: unknown filter kind %d", f.Kind())
	}

	if err := h.warm(ctx, refs); err != nil {
		return nil, err
	}

	for i, ref := range refs {
		if !ref.Type.IsValid() {
			continue
		}
		if f.Contains(ref.ID) {
			out[i] = true
			continue
		}
		switch ref.Type {
		case EntitySubproject:
			if project, ok := h.subToProject[ref.ID]; ok && f.Contains(project) {
				out[i] = true
			}
		case EntityActivity:
			sub, ok := h.actToSub[ref.ID]
			if !ok {
				continue
			}
			if f.Contains(sub) {
				out[i] = true
				continue
			}
			if project, ok := h.subToProject[sub]; ok && f.Contains(project) {
				out[i] = true
			}
		}
	}
	return out, nil
}

// warm loads the hops needed by refs into the memo. The activity and
// subproject lookups of the first stage are independent, so they run
// concurrently; the activity-parent subprojects need a second stage.
func (h *HierarchyResolver) warm(ctx context.Context, refs []Ref) error {
	var actIDs, subIDs []uuid.UUID
	seenAct := map[uuid.UUID]struct{}{}
	seenSub := map[uuid.UUID]struct{}{}
	for _, ref := range refs {
		switch ref.Type {
		case EntityActivity:
			if _, done := h.actToSub[ref.ID]; done {
				continue
			}
			if _, dup := seenAct[ref.ID]; !dup {
				seenAct[ref.ID] = struct{}{}
				actIDs = append(actIDs, ref.ID)
			}
		case EntitySubproject:
			if _, done := h.subToProject[ref.ID]; done {
				continue
			}
			if _, dup := seenSub[ref.ID]; !dup {
				seenSub[ref.ID] = struct{}{}
				subIDs = append(subIDs, ref.ID)
			}
		}
	}

	var actMap, subMap map[uuid.UUID]uuid.UUID
	g, gctx := errgroup.WithContext(ctx)
	if len(actIDs) > 0 {
		g.Go(func() error {
			m, err := h.store.SubprojectIDsForActivities(gctx, actIDs)
			if err != nil {
				return fmt.Errorf("scope: resolve activities: %w", err)
			}
			actMap = m
			return nil
		})
	}
	if len(subIDs) > 0 {
		g.Go(func() error {
			m, err := h.store.ProjectIDsForSubprojects(gctx, subIDs)
			if err != nil {
				return fmt.Errorf("scope: resolve subprojects: %w", err)
			}
			subMap = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for k, v := range actMap {
		h.actToSub[k] = v
	}
	for k, v := range subMap {
		h.subToProject[k] = v
	}

	var parentSubs []uuid.UUID
	seenParent := map[uuid.UUID]struct{}{}
	for _, sub := range h.actToSub {
		if _, done := h.subToProject[sub]; done {
			continue
		}
		if _, dup := seenParent[sub]; !dup {
			seenParent[sub] = struct{}{}
			parentSubs = append(parentSubs, sub)
		}
	}
	if len(parentSubs) > 0 {
		m, err := h.store.ProjectIDsForSubprojects(ctx, parentSubs)
		if err != nil {
			return fmt.Errorf("scope: resolve activity parents: %w", err)
		}
		for k, v := range m {
			h.subToProject[k] = v
		}
	}
	return nil
}

func (h *HierarchyResolver) projectOf(ctx context.Context, subprojectID uuid.UUID) (uuid.UUID, error) {
	if project, ok := h.subToProject[subprojectID]; ok {
		return project, nil
	}
	project, err := h.store.ProjectIDForSubproject(ctx, subprojectID)
	if err != nil {
		return uuid.Nil, err
	}
	h.subToProject[subprojectID] = project
	return project, nil
}

func (h *HierarchyResolver) subprojectOf(ctx context.Context, activityID uuid.UUID) (uuid.UUID, error) {
	if sub, ok := h.actToSub[activityID]; ok {
		return sub, nil
	}
	sub, err := h.store.SubprojectIDForActivity(ctx, activityID)
	if err != nil {
		return uuid.Nil, err
	}
	h.actToSub[activityID] = sub
	return sub, nil
}
