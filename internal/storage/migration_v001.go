package storage

import "database/sql"

// migrateV001 creates the archive schema: tables, indexes and default
// exclusion rules. Every statement uses IF NOT EXISTS for idempotency.
func migrateV001(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS notifications (
			id           TEXT PRIMARY KEY,
			app_id       TEXT NOT NULL DEFAULT '',
			title        TEXT NOT NULL DEFAULT '',
			subtitle     TEXT NOT NULL DEFAULT '',
			body         TEXT NOT NULL DEFAULT '',
			delivered_at TEXT NOT NULL,
			source       TEXT NOT NULL DEFAULT 'history',
			has_image    BOOLEAN NOT NULL DEFAULT 0,
			captured_at  TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS images (
			notification_id TEXT PRIMARY KEY REFERENCES notifications(id) ON DELETE CASCADE,
			data            BLOB NOT NULL,
			byte_size       INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS exclusions (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			rule_type  TEXT NOT NULL CHECK (rule_type IN ('app', 'regex')),
			rule_value TEXT NOT NULL,
			reason     TEXT NOT NULL DEFAULT '',
			is_default BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(rule_type, rule_value)
		)`,

		`CREATE TABLE IF NOT EXISTS audit_log (
			id     INTEGER PRIMARY KEY AUTOINCREMENT,
			action TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			ts     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_notifications_delivered ON notifications(delivered_at)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_app       ON notifications(app_id)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_source    ON notifications(source)`,
		`CREATE INDEX IF NOT EXISTS idx_exclusions_rule         ON exclusions(rule_type, rule_value)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_ts            ON audit_log(ts)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	return seedDefaultExclusions(tx)
}

// seedDefaultExclusions inserts the built-in rules. Uses INSERT OR IGNORE
// so re-running is safe.
func seedDefaultExclusions(tx *sql.Tx) error {
	defaults := []Exclusion{
		{RuleType: "app", RuleValue: "com.1password.1password", Reason: "Password manager - credential privacy"},
		{RuleType: "app", RuleValue: "com.agilebits.onepassword7", Reason: "Password manager - credential privacy"},
		{RuleType: "app", RuleValue: "com.bitwarden.desktop", Reason: "Password manager - credential privacy"},
		{RuleType: "app", RuleValue: "com.lastpass.LastPass", Reason: "Password manager - credential privacy"},
		{RuleType: "app", RuleValue: "com.apple.Passwords", Reason: "Password manager - credential privacy"},
		{RuleType: "app", RuleValue: "com.yubico.yubioath", Reason: "Authenticator - one-time codes"},
		{RuleType: "regex", RuleValue: `(?i)\.authenticator$`, Reason: "Authenticator - one-time codes"},
	}

	const insertSQL = `INSERT OR IGNORE INTO exclusions (rule_type, rule_value, reason, is_default) VALUES (?, ?, ?, 1)`

	for _, r := range defaults {
		if _, err := tx.Exec(insertSQL, r.RuleType, r.RuleValue, r.Reason); err != nil {
			return err
		}
	}
	return nil
}
