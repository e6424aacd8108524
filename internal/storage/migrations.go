// Package storage is the local notification archive: a SQLite database with
// full-text search, app exclusions and retention pruning.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

type migration struct {
	Version int
	Name    string
	Apply   func(tx *sql.Tx) error
}

// schema lists every archive migration in version order.
var schema = []migration{
	{Version: 1, Name: "initial_schema", Apply: migrateV001},
	{Version: 2, Name: "capture_state", Apply: migrateV002},
}

// connection settings applied before any migration runs
var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA foreign_keys = ON",
}

// MigrationRunner brings an archive database up to the latest schema.
type MigrationRunner struct {
	db    *sql.DB
	steps []migration
}

func NewMigrationRunner(db *sql.DB) *MigrationRunner {
	return &MigrationRunner{db: db, steps: schema}
}

// Run applies every step not yet recorded in schema_migrations. Each step
// runs in its own transaction together with its bookkeeping row, so a
// failed step leaves earlier ones applied and itself absent.
func (r *MigrationRunner) Run(ctx context.Context) error {
	for _, p := range pragmas {
		if _, err := r.db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	if _, err := r.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		name       TEXT NOT NULL,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	pending, err := r.pending(ctx)
	if err != nil {
		return err
	}
	for _, m := range pending {
		if err := r.apply(ctx, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// Pending returns the versions not yet applied, oldest first.
func (r *MigrationRunner) Pending(ctx context.Context) ([]int, error) {
	steps, err := r.pending(ctx)
	if err != nil {
		return nil, err
	}
	versions := make([]int, len(steps))
	for i, m := range steps {
		versions[i] = m.Version
	}
	return versions, nil
}

func (r *MigrationRunner) pending(ctx context.Context) ([]migration, error) {
	done, err := r.applied(ctx)
	if err != nil {
		return nil, err
	}
	var out []migration
	for _, m := range r.steps {
		if !done[m.Version] {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (r *MigrationRunner) applied(ctx context.Context) (map[int]bool, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("read applied migrations: %w", err)
	}
	defer rows.Close()

	done := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		done[v] = true
	}
	return done, rows.Err()
}

func (r *MigrationRunner) apply(ctx context.Context, m migration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := m.Apply(tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.Version, m.Name,
	); err != nil {
		return fmt.Errorf("record: %w", err)
	}
	return tx.Commit()
}

// Version returns the highest applied migration, or 0 on a fresh database.
func (r *MigrationRunner) Version(ctx context.Context) (int, error) {
	var v sql.NullInt64
	if err := r.db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return int(v.Int64), nil
}

// Latest returns the newest registered migration version.
func (r *MigrationRunner) Latest() int {
	latest := 0
	for _, m := range r.steps {
		latest = max(latest, m.Version)
	}
	return latest
}
