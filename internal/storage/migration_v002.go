package storage

import "database/sql"

// migrateV002 adds a small key/value table for run bookkeeping, such as
// when the last watch session started and what it delivered.
func migrateV002(tx *sql.Tx) error {
	_, err := tx.Exec(`CREATE TABLE IF NOT EXISTS capture_state (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	return err
}
