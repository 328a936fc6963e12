package beneficiaries

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
var ErrNotFound = errors.New("beneficiaries: not found")

const selectColumns = `
	id, pseudonym, status, entity_id, entity_type, created_by, created_at, updated_at,
	first_name_enc, last_name_enc, dob_enc, national_id_enc, phone_enc, email_enc, address_enc`

// Repository provides PostgreSQL backed persistence for beneficiaries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanBeneficiary(row pgx.Row) (*Beneficiary, error) {
	var b Beneficiary
	err := row.Scan(
		&b.ID, &b.Pseudonym, &b.Status, &b.EntityID, &b.EntityType, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt,
		&b.FirstNameEnc, &b.LastNameEnc, &b.DobEnc, &b.NationalIDEnc, &b.PhoneEnc, &b.EmailEnc, &b.AddressEnc,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Create inserts a beneficiary record.
func (r *Repository) Create(ctx context.Context, req CreateRequest, createdBy uuid.UUID) (*Beneficiary, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO beneficiaries (
			id, pseudonym, status, entity_id, entity_type, created_by,
			first_name_enc, last_name_enc, dob_enc, national_id_enc, phone_enc, email_enc, address_enc
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+selectColumns,
		uuid.New(), req.Pseudonym, StatusActive, req.EntityID, req.EntityType, createdBy,
		req.FirstNameEnc, req.LastNameEnc, req.DobEnc, req.NationalIDEnc, req.PhoneEnc, req.EmailEnc, req.AddressEnc,
	)
	b, err := scanBeneficiary(row)
	if err != nil {
		return nil, fmt.Errorf("beneficiaries: create: %w", err)
	}
	return b, nil
}

// Get fetches one beneficiary by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Beneficiary, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM beneficiaries WHERE id = $1`, id)
	return scanBeneficiary(row)
}

// Update patches envelopes or status on an existing record.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*Beneficiary, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{}
	pos := 1
	add := func(col string, v any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, pos))
		args = append(args, v)
		pos++
	}
	if req.Status != nil {
		add("status", *req.Status)
	}
	if req.FirstNameEnc != nil {
		add("first_name_enc", req.FirstNameEnc)
	}
	if req.LastNameEnc != nil {
		add("last_name_enc", req.LastNameEnc)
	}
	if req.DobEnc != nil {
		add("dob_enc", req.DobEnc)
	}
	if req.NationalIDEnc != nil {
		add("national_id_enc", req.NationalIDEnc)
	}
	if req.PhoneEnc != nil {
		add("phone_enc", req.PhoneEnc)
	}
	if req.EmailEnc != nil {
		add("email_enc", req.EmailEnc)
	}
	if req.AddressEnc != nil {
		add("address_enc", req.AddressEnc)
	}

	query := "UPDATE beneficiaries SET "
	for i, s := range sets {
		if i > 0 {
			query += ", "
		}
		query += s
	}
	query += fmt.Sprintf(" WHERE id = $%d RETURNING ", pos) + selectColumns
	args = append(args, id)

	b, err := scanBeneficiary(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	return b, nil
}

// List returns beneficiaries matching the predicate, newest first.
func (r *Repository) List(ctx context.Context, pred *scope.Predicate, since *time.Time) ([]Beneficiary, error) {
	query := `SELECT ` + selectColumns + ` FROM beneficiaries`
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
	var out []Beneficiary
	for rows.Next() {
		b, err := scanBeneficiary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}
