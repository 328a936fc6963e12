package sync

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/meridian-aid/meridian-aid/internal/scope"
)

// Exporter renders a scoped changeset into a standalone SQLite file for
// fully-offline field devices. Snapshots always carry ciphertext
// envelopes, never plaintext; a file on a device cannot be un-shared.
type Exporter struct {
	svc *Service
	dir string
}

// NewExporter constructs an exporter writing snapshots under dir.
func NewExporter(svc *Service, dir string) *Exporter {
	return &Exporter{svc: svc, dir: dir}
}

var snapshotSchema = []string{
	`CREATE TABLE projects (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);`,
	`CREATE TABLE subprojects (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		FOREIGN KEY(project_id) REFERENCES projects(id)
	);`,
	`CREATE TABLE activities (
		id TEXT PRIMARY KEY,
		subproject_id TEXT NOT NULL,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);`,
	`CREATE TABLE form_templates (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		version INTEGER NOT NULL,
		schema TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);`,
	`CREATE TABLE beneficiaries (
		id TEXT PRIMARY KEY,
		pseudonym TEXT NOT NULL,
		status TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		pii_enc TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);`,
	`CREATE TABLE deliveries (
		id TEXT PRIMARY KEY,
		service_id TEXT NOT NULL,
		beneficiary_id TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		staff_user_id TEXT NOT NULL,
		delivered_at TEXT NOT NULL,
		quantity REAL NOT NULL,
		updated_at TEXT NOT NULL
	);`,
	`CREATE TABLE snapshot_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`,
}

// Export pulls the caller's changeset and writes it to a new SQLite
// file, returning the file path. Roles are deliberately not forwarded
// to the PII gate.
func (e *Exporter) Export(ctx context.Context, req PullRequest, f scope.EntityFilter, principalID uuid.UUID) (string, error) {
	cs, _, err := e.svc.Pull(ctx, req, f, nil, principalID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("sync: snapshot dir: %w", err)
	}
	path := filepath.Join(e.dir, fmt.Sprintf("snapshot-%s.db", uuid.New()))
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return "", fmt.Errorf("sync: open snapshot: %w", err)
	}
	defer db.Close()

	if err := e.write(ctx, db, cs, principalID); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

func (e *Exporter) write(ctx context.Context, db *sql.DB, cs *Changeset, principalID uuid.UUID) error {
	for _, stmt := range snapshotSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sync: snapshot schema: %w", err)
		}
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range cs.Projects {
		if _, err := tx.ExecContext(ctx, `INSERT INTO projects (id, code, name, status, updated_at) VALUES (?, ?, ?, ?, ?)`,
			p.ID.String(), p.Code, p.Name, string(p.Status), p.UpdatedAt.Format(time.RFC3339)); err != nil {
			return fmt.Errorf("sync: snapshot projects: %w", err)
		}
	}
	for _, sp := range cs.Subprojects {
		if _, err := tx.ExecContext(ctx, `INSERT INTO subprojects (id, project_id, code, name, status, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			sp.ID.String(), sp.ProjectID.String(), sp.Code, sp.Name, string(sp.Status), sp.UpdatedAt.Format(time.RFC3339)); err != nil {
			return fmt.Errorf("sync: snapshot subprojects: %w", err)
		}
	}
	for _, a := range cs.Activities {
		if _, err := tx.ExecContext(ctx, `INSERT INTO activities (id, subproject_id, name, status, updated_at) VALUES (?, ?, ?, ?, ?)`,
			a.ID.String(), a.SubprojectID.String(), a.Name, string(a.Status), a.UpdatedAt.Format(time.RFC3339)); err != nil {
			return fmt.Errorf("sync: snapshot activities: %w", err)
		}
	}
	for _, t := range cs.Templates {
		if _, err := tx.ExecContext(ctx, `INSERT INTO form_templates (id, name, version, schema, updated_at) VALUES (?, ?, ?, ?, ?)`,
			t.ID.String(), t.Name, t.Version, string(t.Schema), t.UpdatedAt.Format(time.RFC3339)); err != nil {
			return fmt.Errorf("sync: snapshot templates: %w", err)
		}
	}
	for _, b := range cs.Beneficiaries {
		encJSON, err := json.Marshal(b.PIIEnc)
		if err != nil {
			return fmt.Errorf("sync: snapshot envelopes: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO beneficiaries (id, pseudonym, status, entity_id, entity_type, pii_enc, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			b.ID.String(), b.Pseudonym, string(b.Status), b.EntityID.String(), string(b.EntityType), string(encJSON), b.UpdatedAt.Format(time.RFC3339)); err != nil {
			return fmt.Errorf("sync: snapshot beneficiaries: %w", err)
		}
	}
	for _, d := range cs.Deliveries {
		if _, err := tx.ExecContext(ctx, `INSERT INTO deliveries (id, service_id, beneficiary_id, entity_id, entity_type, staff_user_id, delivered_at, quantity, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID.String(), d.ServiceID.String(), d.BeneficiaryID.String(), d.EntityID.String(), string(d.EntityType),
			d.StaffUserID.String(), d.DeliveredAt.Format(time.RFC3339), d.Quantity, d.UpdatedAt.Format(time.RFC3339)); err != nil {
			return fmt.Errorf("sync: snapshot deliveries: %w", err)
		}
	}
	meta := map[string]string{
		"generated_at": cs.GeneratedAt.Format(time.RFC3339),
		"principal_id": principalID.String(),
	}
	if cs.Since != nil {
		meta["since"] = cs.Since.Format(time.RFC3339)
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO snapshot_meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("sync: snapshot meta: %w", err)
		}
	}
	return tx.Commit()
}
