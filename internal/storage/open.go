package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Open opens (creating if needed) the archive at path, runs migrations and
// returns a ready store with its database handle.
func Open(path string) (*SQLiteStore, *sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	store, err := FromDB(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return store, db, nil
}

// FromDB migrates an open database and wraps it in a store.
func FromDB(db *sql.DB) (*SQLiteStore, error) {
	if err := NewMigrationRunner(db).Run(context.Background()); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	store, err := NewSQLiteStore(db)
	if err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}
	return store, nil
}
