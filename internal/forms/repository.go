package forms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-aid/meridian-aid/internal/scope"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("forms: not found")

// Repository provides PostgreSQL backed persistence for form templates
// and responses.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateTemplate inserts a template version.
func (r *Repository) CreateTemplate(ctx context.Context, req CreateTemplateRequest) (*Template, error) {
	var t Template
	err := r.pool.QueryRow(ctx, `INSERT INTO form_templates (id, name, version, schema, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, NOW(), NOW())
		RETURNING id, name, version, schema, created_at, updated_at`,
		req.Name, req.Version, []byte(req.Schema),
	).Scan(&t.ID, &t.Name, &t.Version, &t.Schema, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("forms: create template: %w", err)
	}
	return &t, nil
}

// GetTemplate fetches a template by id.
func (r *Repository) GetTemplate(ctx context.Context, id uuid.UUID) (*Template, error) {
	var t Template
	err := r.pool.QueryRow(ctx, `SELECT id, name, version, schema, created_at, updated_at FROM form_templates WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.Version, &t.Schema, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTemplates returns all templates, name then version order.
func (r *Repository) ListTemplates(ctx context.Context, since *time.Time) ([]Template, error) {
	query := `SELECT id, name, version, schema, created_at, updated_at FROM form_templates`
	var args []any
	if since != nil {
		query += ` WHERE updated_at >= $1`
		args = append(args, *since)
	}
	query += ` ORDER BY name, version`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Template
	for rows.Next() {
		var t Template
		if err := rows.Scan(&t.ID, &t.Name, &t.Version, &t.Schema, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const responseColumns = `id, template_id, entity_id, entity_type, submitted_by, payload, created_at, updated_at`

func scanResponse(row pgx.Row) (*Response, error) {
	var resp Response
	err := row.Scan(
		&resp.ID, &resp.TemplateID, &resp.EntityID, &resp.EntityType,
		&resp.SubmittedBy, &resp.Payload, &resp.CreatedAt, &resp.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateResponse inserts a submitted response. Payload keys are assumed
// normalized by the service.
func (r *Repository) CreateResponse(ctx context.Context, req SubmitRequest, submittedBy uuid.UUID) (*Response, error) {
	resp, err := scanResponse(r.pool.QueryRow(ctx, `INSERT INTO form_responses (id, template_id, entity_id, entity_type, submitted_by, payload, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING `+responseColumns,
		req.TemplateID, req.EntityID, req.EntityType, submittedBy, req.Payload,
	))
	if err != nil {
		return nil, fmt.Errorf("forms: create response: %w", err)
	}
	return resp, nil
}

// GetResponse fetches a response by id.
func (r *Repository) GetResponse(ctx context.Context, id uuid.UUID) (*Response, error) {
	return scanResponse(r.pool.QueryRow(ctx, `SELECT `+responseColumns+` FROM form_responses WHERE id = $1`, id))
}

// ListResponses returns responses matching the predicate, newest first.
func (r *Repository) ListResponses(ctx context.Context, pred *scope.Predicate, since *time.Time) ([]Response, error) {
	query := `SELECT ` + responseColumns + ` FROM form_responses`
	if since != nil {
		pred.And("updated_at >= ?", *since)
	}
	where, args := pred.Where(1)
	query += where + ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Response
	for rows.Next() {
		resp, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *resp)
	}
	return out, rows.Err()
}
