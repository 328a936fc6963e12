package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-aid/meridian-aid/internal/beneficiaries"
	"github.com/meridian-aid/meridian-aid/internal/deliveries"
	"github.com/meridian-aid/meridian-aid/internal/forms"
	"github.com/meridian-aid/meridian-aid/internal/pii"
	"github.com/meridian-aid/meridian-aid/internal/projects"
	"github.com/meridian-aid/meridian-aid/internal/scope"
	"github.com/meridian-aid/meridian-aid/internal/shared"
)

// ErrProjectNotVisible signals an entity-scoped pull for a project
// outside the caller's scope.
var ErrProjectNotVisible = errors.New("sync: project not visible")

// HierarchySource lists scope-visible hierarchy entities.
type HierarchySource interface {
	ListProjects(ctx context.Context, f scope.EntityFilter) ([]projects.Project, error)
	ListSubprojects(ctx context.Context, f scope.EntityFilter, projectID *uuid.UUID) ([]projects.Subproject, error)
	ListActivities(ctx context.Context, f scope.EntityFilter, subprojectID *uuid.UUID) ([]projects.Activity, error)
}

// BeneficiarySource lists beneficiary rows by predicate.
type BeneficiarySource interface {
	List(ctx context.Context, pred *scope.Predicate, since *time.Time) ([]beneficiaries.Beneficiary, error)
}

// DeliverySource lists delivery rows by predicate.
type DeliverySource interface {
	List(ctx context.Context, pred *scope.Predicate, since *time.Time) ([]deliveries.Delivery, error)
}

// TemplateSource lists form templates.
type TemplateSource interface {
	ListTemplates(ctx context.Context, since *time.Time) ([]forms.Template, error)
}

// Auditor records sync pull events.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service assembles scoped changesets for offline devices.
type Service struct {
	hierSrc HierarchySource
	benSrc  BeneficiarySource
	delSrc  DeliverySource
	tplSrc  TemplateSource
	hier    scope.HierarchyStore
	gate    pii.Gate
	audit   Auditor
	logger  *slog.Logger
}

// NewService constructs a sync service.
func NewService(hierSrc HierarchySource, benSrc BeneficiarySource, delSrc DeliverySource, tplSrc TemplateSource, hier scope.HierarchyStore, gate pii.Gate, audit Auditor, logger *slog.Logger) *Service {
	return &Service{
		hierSrc: hierSrc,
		benSrc:  benSrc,
		delSrc:  delSrc,
		tplSrc:  tplSrc,
		hier:    hier,
		gate:    gate,
		audit:   audit,
		logger:  logger,
	}
}

var (
	benColumns = scope.Columns{EntityID: "entity_id", StaffUserID: "created_by"}
	delColumns = scope.Columns{EntityID: "entity_id", StaffUserID: "staff_user_id"}
)

// Pull assembles the changeset for the caller's scope. The PII gate is
// the same strict one the online API applies; offline devices never
// receive plaintext they could not read online.
func (s *Service) Pull(ctx context.Context, req PullRequest, f scope.EntityFilter, roles []string, principalID uuid.UUID) (*Changeset, bool, error) {
	hierF := f
	var limit *scope.EntityFilter
	if req.ProjectID != nil {
		narrowed, err := s.narrowToProject(ctx, *req.ProjectID, f)
		if err != nil {
			return nil, false, err
		}
		hierF = narrowed
		limit = &narrowed
	}

	cs := &Changeset{GeneratedAt: time.Now().UTC(), Since: req.Since}

	var err error
	if cs.Projects, err = s.hierSrc.ListProjects(ctx, hierF); err != nil {
		return nil, false, fmt.Errorf("sync: projects: %w", err)
	}
	if cs.Subprojects, err = s.hierSrc.ListSubprojects(ctx, hierF, req.ProjectID); err != nil {
		return nil, false, fmt.Errorf("sync: subprojects: %w", err)
	}
	if cs.Activities, err = s.hierSrc.ListActivities(ctx, hierF, nil); err != nil {
		return nil, false, fmt.Errorf("sync: activities: %w", err)
	}
	if req.Since != nil {
		cs.Projects = changedProjects(cs.Projects, *req.Since)
		cs.Subprojects = changedSubprojects(cs.Subprojects, *req.Since)
		cs.Activities = changedActivities(cs.Activities, *req.Since)
	}

	if cs.Templates, err = s.tplSrc.ListTemplates(ctx, req.Since); err != nil {
		return nil, false, fmt.Errorf("sync: templates: %w", err)
	}

	canDecrypt := s.gate.CanDecrypt(roles)
	if cs.Beneficiaries, err = s.pullBeneficiaries(ctx, req.Since, f, limit, canDecrypt); err != nil {
		return nil, false, err
	}
	if cs.Deliveries, err = s.pullDeliveries(ctx, req.Since, f, limit); err != nil {
		return nil, false, err
	}

	s.recordPull(ctx, principalID, cs, canDecrypt)
	return cs, canDecrypt, nil
}

// narrowToProject intersects the scope with a single project. A manager
// scope keeps only the assignment ids owned by that project, so an
// entity-scoped pull can never widen visibility.
func (s *Service) narrowToProject(ctx context.Context, projectID uuid.UUID, f scope.EntityFilter) (scope.EntityFilter, error) {
	switch f.Kind() {
	case scope.FilterUnrestricted, scope.FilterBySelfStaff:
		return scope.ByEntityIDs([]uuid.UUID{projectID}), nil
	case scope.FilterByEntityIDs:
		resolver := scope.NewHierarchyResolver(s.hier)
		var kept []uuid.UUID
		for _, id := range f.IDs() {
			if id == projectID {
				kept = append(kept, id)
				continue
			}
			owner, err := resolver.OwningProject(ctx, id, scope.EntitySubproject)
			if errors.Is(err, shared.ErrNotFound) {
				continue
			}
			if err != nil {
				return scope.EntityFilter{}, fmt.Errorf("sync: narrow scope: %w", err)
			}
			if owner == projectID {
				kept = append(kept, id)
			}
		}
		if len(kept) == 0 {
			return scope.EntityFilter{}, ErrProjectNotVisible
		}
		return scope.ByEntityIDs(kept), nil
	default:
		return scope.EntityFilter{}, ErrProjectNotVisible
	}
}

func (s *Service) pullBeneficiaries(ctx context.Context, since *time.Time, f scope.EntityFilter, limit *scope.EntityFilter, canDecrypt bool) ([]beneficiaries.View, error) {
	pred := scope.BuildPredicate(benColumns, scope.RequestFilters{}, scope.SQLScope(scope.RequestFilters{}, f))
	rows, err := s.benSrc.List(ctx, pred, since)
	if err != nil {
		return nil, fmt.Errorf("sync: beneficiaries: %w", err)
	}
	refs := make([]scope.Ref, len(rows))
	for i, b := range rows {
		refs[i] = scope.Ref{ID: b.EntityID, Type: b.EntityType}
	}
	keep, err := s.inScope(ctx, refs, f, limit)
	if err != nil {
		return nil, fmt.Errorf("sync: beneficiaries scope: %w", err)
	}
	out := make([]beneficiaries.View, 0, len(rows))
	for i := range rows {
		if !keep[i] {
			continue
		}
		b := &rows[i]
		enc, plain, err := s.gate.Shape(b.EncFields(), canDecrypt)
		if err != nil {
			return nil, fmt.Errorf("sync: shape %s: %w", b.ID, err)
		}
		out = append(out, beneficiaries.View{
			ID:         b.ID,
			Pseudonym:  b.Pseudonym,
			Status:     b.Status,
			EntityID:   b.EntityID,
			EntityType: b.EntityType,
			CreatedAt:  b.CreatedAt,
			UpdatedAt:  b.UpdatedAt,
			PIIEnc:     enc,
			PII:        plain,
		})
	}
	return out, nil
}

func (s *Service) pullDeliveries(ctx context.Context, since *time.Time, f scope.EntityFilter, limit *scope.EntityFilter) ([]deliveries.Delivery, error) {
	pred := scope.BuildPredicate(delColumns, scope.RequestFilters{}, scope.SQLScope(scope.RequestFilters{}, f))
	rows, err := s.delSrc.List(ctx, pred, since)
	if err != nil {
		return nil, fmt.Errorf("sync: deliveries: %w", err)
	}
	refs := make([]scope.Ref, len(rows))
	for i, d := range rows {
		refs[i] = scope.Ref{ID: d.EntityID, Type: d.EntityType}
	}
	keep, err := s.inScope(ctx, refs, f, limit)
	if err != nil {
		return nil, fmt.Errorf("sync: deliveries scope: %w", err)
	}
	out := rows[:0]
	for i, ok := range keep {
		if ok {
			out = append(out, rows[i])
		}
	}
	return out, nil
}

// inScope combines the role scope with the optional project limit.
func (s *Service) inScope(ctx context.Context, refs []scope.Ref, f scope.EntityFilter, limit *scope.EntityFilter) ([]bool, error) {
	keep := make([]bool, len(refs))
	for i := range keep {
		keep[i] = true
	}
	resolver := scope.NewHierarchyResolver(s.hier)
	if f.Kind() == scope.FilterByEntityIDs {
		inF, err := resolver.FilterInScope(ctx, refs, f)
		if err != nil {
			return nil, err
		}
		for i := range keep {
			keep[i] = keep[i] && inF[i]
		}
	}
	if limit != nil {
		inLimit, err := resolver.FilterInScope(ctx, refs, *limit)
		if err != nil {
			return nil, err
		}
		for i := range keep {
			keep[i] = keep[i] && inLimit[i]
		}
	}
	return keep, nil
}

func (s *Service) recordPull(ctx context.Context, principalID uuid.UUID, cs *Changeset, decrypted bool) {
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  principalID,
		Action:   shared.AuditActionSyncPull,
		Entity:   "changeset",
		EntityID: "pull",
		Meta: map[string]any{
			"projects":      len(cs.Projects),
			"beneficiaries": len(cs.Beneficiaries),
			"deliveries":    len(cs.Deliveries),
			"decrypted":     decrypted,
		},
	})
	if err != nil && s.logger != nil {
		s.logger.Error("audit sync pull", slog.Any("error", err))
	}
}

func changedProjects(in []projects.Project, since time.Time) []projects.Project {
	out := in[:0]
	for _, p := range in {
		if !p.UpdatedAt.Before(since) {
			out = append(out, p)
		}
	}
	return out
}

func changedSubprojects(in []projects.Subproject, since time.Time) []projects.Subproject {
	out := in[:0]
	for _, sp := range in {
		if !sp.UpdatedAt.Before(since) {
			out = append(out, sp)
		}
	}
	return out
}

func changedActivities(in []projects.Activity, since time.Time) []projects.Activity {
	out := in[:0]
	for _, a := range in {
		if !a.UpdatedAt.Before(since) {
			out = append(out, a)
		}
	}
	return out
}
