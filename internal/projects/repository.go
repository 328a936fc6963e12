package projects

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-aid/meridian-aid/internal/scope"
	"github.com/meridian-aid/meridian-aid/internal/shared"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("projects: not found")

// Repository provides PostgreSQL backed persistence for the containment
// hierarchy. It also implements scope.HierarchyStore.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateProject inserts a new project.
func (r *Repository) CreateProject(ctx context.Context, req CreateProjectRequest) (*Project, error) {
	var p Project
	err := r.pool.QueryRow(ctx, `
		INSERT INTO projects (id, code, name, status, donor, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, code, name, status, donor, start_date, end_date, created_at, updated_at`,
		uuid.New(), req.Code, req.Name, StatusPlanned, req.Donor, req.StartDate, req.EndDate,
	).Scan(&p.ID, &p.Code, &p.Name, &p.Status, &p.Donor, &p.StartDate, &p.EndDate, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("projects: create: %w", err)
	}
	return &p, nil
}

// GetProject fetches one project by id.
func (r *Repository) GetProject(ctx context.Context, id uuid.UUID) (*Project, error) {
	var p Project
	err := r.pool.QueryRow(ctx, `
		SELECT id, code, name, status, donor, start_date, end_date, created_at, updated_at
		FROM projects WHERE id = $1`, id,
	).Scan(&p.ID, &p.Code, &p.Name, &p.Status, &p.Donor, &p.StartDate, &p.EndDate, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProjects returns the projects visible under the scope filter. A
// manager scope may hold project or subproject ids; a project is visible
// when it is in the set or owns a subproject in the set.
func (r *Repository) ListProjects(ctx context.Context, f scope.EntityFilter) ([]Project, error) {
	query := `
		SELECT id, code, name, status, donor, start_date, end_date, created_at, updated_at
		FROM projects`
	var args []any
	switch f.Kind() {
	case scope.FilterUnrestricted, scope.FilterBySelfStaff:
		// catalog unrestricted; the self filter binds staff rows only
	case scope.FilterByEntityIDs:
		query += ` WHERE id = ANY($1) OR id IN (SELECT project_id FROM subprojects WHERE id = ANY($1))`
		args = append(args, f.IDs())
	default:
		return nil, fmt.Errorf("projects: unknown filter kind %d", f.Kind())
	}
	query += ` ORDER BY code`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.Status, &p.Donor, &p.StartDate, &p.EndDate, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreateSubproject inserts a subproject under an existing project.
func (r *Repository) CreateSubproject(ctx context.Context, req CreateSubprojectRequest) (*Subproject, error) {
	var s Subproject
	err := r.pool.QueryRow(ctx, `
		INSERT INTO subprojects (id, project_id, code, name, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, project_id, code, name, status, created_at, updated_at`,
		uuid.New(), req.ProjectID, req.Code, req.Name, StatusPlanned,
	).Scan(&s.ID, &s.ProjectID, &s.Code, &s.Name, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("projects: create subproject: %w", err)
	}
	return &s, nil
}

// ListSubprojects returns subprojects visible under the scope filter,
// optionally restricted to one project.
func (r *Repository) ListSubprojects(ctx context.Context, f scope.EntityFilter, projectID *uuid.UUID) ([]Subproject, error) {
	query := `
		SELECT id, project_id, code, name, status, created_at, updated_at
		FROM subprojects`
	var conds []string
	var args []any
	pos := 1
	switch f.Kind() {
	case scope.FilterUnrestricted, scope.FilterBySelfStaff:
	case scope.FilterByEntityIDs:
		conds = append(conds, fmt.Sprintf("(id = ANY($%d) OR project_id = ANY($%d))", pos, pos))
		args = append(args, f.IDs())
		pos++
	default:
		return nil, fmt.Errorf("projects: unknown filter kind %d", f.Kind())
	}
	if projectID != nil {
		conds = append(conds, fmt.Sprintf("project_id = $%d", pos))
		args = append(args, *projectID)
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += ` ORDER BY code`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Subproject
	for rows.Next() {
		var s Subproject
		if err := rows.Scan(&s.ID, &s.ProjectID, &s.Code, &s.Name, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CreateActivity inserts an activity under an existing subproject.
func (r *Repository) CreateActivity(ctx context.Context, req CreateActivityRequest) (*Activity, error) {
	var a Activity
	err := r.pool.QueryRow(ctx, `
		INSERT INTO activities (id, subproject_id, name, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, subproject_id, name, status, created_at, updated_at`,
		uuid.New(), req.SubprojectID, req.Name, StatusPlanned,
	).Scan(&a.ID, &a.SubprojectID, &a.Name, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("projects: create activity: %w", err)
	}
	return &a, nil
}

// ListActivities returns activities visible under the scope filter,
// optionally restricted to one subproject.
func (r *Repository) ListActivities(ctx context.Context, f scope.EntityFilter, subprojectID *uuid.UUID) ([]Activity, error) {
	query := `
		SELECT a.id, a.subproject_id, a.name, a.status, a.created_at, a.updated_at
		FROM activities a`
	var conds []string
	var args []any
	pos := 1
	switch f.Kind() {
	case scope.FilterUnrestricted, scope.FilterBySelfStaff:
	case scope.FilterByEntityIDs:
		conds = append(conds, fmt.Sprintf(`(a.id = ANY($%d) OR a.subproject_id = ANY($%d) OR a.subproject_id IN (SELECT id FROM subprojects WHERE project_id = ANY($%d)))`, pos, pos, pos))
		args = append(args, f.IDs())
		pos++
	default:
		return nil, fmt.Errorf("projects: unknown filter kind %d", f.Kind())
	}
	if subprojectID != nil {
		conds = append(conds, fmt.Sprintf("a.subproject_id = $%d", pos))
		args = append(args, *subprojectID)
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += ` ORDER BY a.name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.ID, &a.SubprojectID, &a.Name, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AssignUserToProject records a project assignment.
func (r *Repository) AssignUserToProject(ctx context.Context, userID, projectID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO project_assignments (user_id, project_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, userID, projectID)
	return err
}

// UnassignUserFromProject removes a project assignment.
func (r *Repository) UnassignUserFromProject(ctx context.Context, userID, projectID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM project_assignments WHERE user_id = $1 AND project_id = $2`, userID, projectID)
	return err
}

// AssignUserToSubproject records a subproject assignment.
func (r *Repository) AssignUserToSubproject(ctx context.Context, userID, subprojectID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO subproject_assignments (user_id, subproject_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, userID, subprojectID)
	return err
}

// UnassignUserFromSubproject removes a subproject assignment.
func (r *Repository) UnassignUserFromSubproject(ctx context.Context, userID, subprojectID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM subproject_assignments WHERE user_id = $1 AND subproject_id = $2`, userID, subprojectID)
	return err
}

// ProjectIDForSubproject implements scope.HierarchyStore.
func (r *Repository) ProjectIDForSubproject(ctx context.Context, subprojectID uuid.UUID) (uuid.UUID, error) {
	var projectID uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT project_id FROM subprojects WHERE id = $1`, subprojectID).Scan(&projectID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, shared.ErrNotFound
	}
	if err != nil {
		return uuid.Nil, err
	}
	return projectID, nil
}

// SubprojectIDForActivity implements scope.HierarchyStore.
func (r *Repository) SubprojectIDForActivity(ctx context.Context, activityID uuid.UUID) (uuid.UUID, error) {
	var subprojectID uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT subproject_id FROM activities WHERE id = $1`, activityID).Scan(&subprojectID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, shared.ErrNotFound
	}
	if err != nil {
		return uuid.Nil, err
	}
	return subprojectID, nil
}

// ProjectIDsForSubprojects implements scope.HierarchyStore. Missing ids
// are omitted from the result.
func (r *Repository) ProjectIDsForSubprojects(ctx context.Context, subprojectIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, project_id FROM subprojects WHERE id = ANY($1)`, subprojectIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uuid.UUID]uuid.UUID, len(subprojectIDs))
	for rows.Next() {
		var id, projectID uuid.UUID
		if err := rows.Scan(&id, &projectID); err != nil {
			return nil, err
		}
		out[id] = projectID
	}
	return out, rows.Err()
}

// SubprojectIDsForActivities implements scope.HierarchyStore.
func (r *Repository) SubprojectIDsForActivities(ctx context.Context, activityIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, subproject_id FROM activities WHERE id = ANY($1)`, activityIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uuid.UUID]uuid.UUID, len(activityIDs))
	for rows.Next() {
		var id, subprojectID uuid.UUID
		if err := rows.Scan(&id, &subprojectID); err != nil {
			return nil, err
		}
		out[id] = subprojectID
	}
	return out, rows.Err()
}
