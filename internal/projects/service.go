package projects

import (
	"context"

	"github.com/google/uuid"

	"github.com/meridian-aid/meridian-aid/internal/scope"
)

// Service provides business logic for the containment hierarchy.
type Service struct {
	repo *Repository
}

// NewService constructs a projects service.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// CreateProject inserts a project.
func (s *Service) CreateProject(ctx context.Context, req CreateProjectRequest) (*Project, error) {
	return s.repo.CreateProject(ctx, req)
}

// GetProject returns a project when it is inside the caller's scope.
func (s *Service) GetProject(ctx context.Context, id uuid.UUID, f scope.EntityFilter) (*Project, error) {
	resolver := scope.NewHierarchyResolver(s.repo)
	ok, err := resolver.IsInScope(ctx, id, scope.EntityProject, f)
	if err != nil {
		return nil, err
	}
	if !ok && !projectReachable(ctx, s.repo, id, f) {
		return nil, ErrNotFound
	}
	return s.repo.GetProject(ctx, id)
}

// projectReachable covers the subproject-manager case: the project id is
// not in the scope set, but one of its subprojects is.
func projectReachable(ctx context.Context, repo *Repository, projectID uuid.UUID, f scope.EntityFilter) bool {
	if f.Kind() != scope.FilterByEntityIDs {
		return false
	}
	parents, err := repo.ProjectIDsForSubprojects(ctx, f.IDs())
	if err != nil {
		return false
	}
	for _, p := range parents {
		if p == projectID {
			return true
		}
	}
	return false
}

// ListProjects returns scope-visible projects.
func (s *Service) ListProjects(ctx context.Context, f scope.EntityFilter) ([]Project, error) {
	return s.repo.ListProjects(ctx, f)
}

// CreateSubproject inserts a subproject.
func (s *Service) CreateSubproject(ctx context.Context, req CreateSubprojectRequest) (*Subproject, error) {
	if _, err := s.repo.GetProject(ctx, req.ProjectID); err != nil {
		return nil, err
	}
	return s.repo.CreateSubproject(ctx, req)
}

// ListSubprojects returns scope-visible subprojects.
func (s *Service) ListSubprojects(ctx context.Context, f scope.EntityFilter, projectID *uuid.UUID) ([]Subproject, error) {
	return s.repo.ListSubprojects(ctx, f, projectID)
}

// CreateActivity inserts an activity.
func (s *Service) CreateActivity(ctx context.Context, req CreateActivityRequest) (*Activity, error) {
	return s.repo.CreateActivity(ctx, req)
}

// ListActivities returns scope-visible activities.
func (s *Service) ListActivities(ctx context.Context, f scope.EntityFilter, subprojectID *uuid.UUID) ([]Activity, error) {
	return s.repo.ListActivities(ctx, f, subprojectID)
}

// AssignProject grants a user membership of a project.
func (s *Service) AssignProject(ctx context.Context, userID, projectID uuid.UUID) error {
	return s.repo.AssignUserToProject(ctx, userID, projectID)
}

// UnassignProject removes a user's project membership.
func (s *Service) UnassignProject(ctx context.Context, userID, projectID uuid.UUID) error {
	return s.repo.UnassignUserFromProject(ctx, userID, projectID)
}

// AssignSubproject grants a user membership of a subproject.
func (s *Service) AssignSubproject(ctx context.Context, userID, subprojectID uuid.UUID) error {
	return s.repo.AssignUserToSubproject(ctx, userID, subprojectID)
}

// UnassignSubproject removes a user's subproject membership.
func (s *Service) UnassignSubproject(ctx context.Context, userID, subprojectID uuid.UUID) error {
	return s.repo.UnassignUserFromSubproject(ctx, userID, subprojectID)
}
