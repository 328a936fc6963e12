package deliveries

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
var ErrNotFound = errors.New("deliveries: not found")

const selectColumns = `id, service_id, beneficiary_id, entity_id, entity_type, staff_user_id, delivered_at, quantity, notes, created_at, updated_at`

// Repository provides PostgreSQL backed persistence for deliveries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanDelivery(row pgx.Row) (*Delivery, error) {
	var d Delivery
	err := row.Scan(
		&d.ID, &d.ServiceID, &d.BeneficiaryID, &d.EntityID, &d.EntityType,
		&d.StaffUserID, &d.DeliveredAt, &d.Quantity, &d.Notes, &d.CreatedAt, &d.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Create inserts a delivery row.
func (r *Repository) Create(ctx context.Context, req CreateRequest, staffUserID uuid.UUID) (*Delivery, error) {
	query := `INSERT INTO deliveries (id, service_id, beneficiary_id, entity_id, entity_type, staff_user_id, delivered_at, quantity, notes, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING ` + selectColumns
	d, err := scanDelivery(r.pool.QueryRow(ctx, query,
		req.ServiceID, req.BeneficiaryID, req.EntityID, req.EntityType,
		staffUserID, req.DeliveredAt, req.Quantity, req.Notes,
	))
	if err != nil {
		return nil, fmt.Errorf("deliveries: create: %w", err)
	}
	return d, nil
}

// Get fetches a delivery by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Delivery, error) {
	return scanDelivery(r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM deliveries WHERE id = $1`, id))
}

// List returns deliveries matching the predicate, newest first.
func (r *Repository) List(ctx context.Context, pred *scope.Predicate, since *time.Time) ([]Delivery, error) {
	query := `SELECT ` + selectColumns + ` FROM deliveries`
	if since != nil {
		pred.And("updated_at >= ?", *since)
	}
	where, args := pred.Where(1)
	query += where + ` ORDER BY delivered_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// Summarize aggregates deliveries matching the predicate in SQL. Only
// valid when the predicate already encodes the full visibility rule.
func (r *Repository) Summarize(ctx context.Context, pred *scope.Predicate) (*Summary, error) {
	where, args := pred.Where(1)
	s := &Summary{
		ByService: []ServiceCount{},
		ByEntity:  []EntityCount{},
		ByDay:     []DayCount{},
	}

	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM deliveries`+where, args...).Scan(&s.Total)
	if err != nil {
		return nil, fmt.Errorf("deliveries: summarize total: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT service_id, COUNT(*), COALESCE(SUM(quantity), 0) FROM deliveries`+where+` GROUP BY service_id ORDER BY COUNT(*) DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("deliveries: summarize by service: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sc ServiceCount
		if err := rows.Scan(&sc.ServiceID, &sc.Count, &sc.Quantity); err != nil {
			return nil, err
		}
		s.ByService = append(s.ByService, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.pool.Query(ctx, `SELECT entity_id, entity_type, COUNT(*) FROM deliveries`+where+` GROUP BY entity_id, entity_type ORDER BY COUNT(*) DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("deliveries: summarize by entity: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ec EntityCount
		if err := rows.Scan(&ec.EntityID, &ec.EntityType, &ec.Count); err != nil {
			return nil, err
		}
		s.ByEntity = append(s.ByEntity, ec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.pool.Query(ctx, `SELECT TO_CHAR(delivered_at, 'YYYY-MM-DD'), COUNT(*) FROM deliveries`+where+` GROUP BY 1 ORDER BY 1`, args...)
	if err != nil {
		return nil, fmt.Errorf("deliveries: summarize by day: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var dc DayCount
		if err := rows.Scan(&dc.Day, &dc.Count); err != nil {
			return nil, err
		}
		s.ByDay = append(s.ByDay, dc)
	}
	return s, rows.Err()
}
