package storage

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func migrated(t *testing.T) *sql.DB {
	t.Helper()
	db := openTestDB(t)
	require.NoError(t, NewMigrationRunner(db).Run(context.Background()))
	return db
}

func exists(t *testing.T, db *sql.DB, kind, name string) bool {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = ? AND name = ?", kind, name,
	).Scan(&n))
	return n == 1
}

func TestMigrationRunner_CreatesArchiveSchema(t *testing.T) {
	db := migrated(t)

	for _, table := range []string{"notifications", "images", "exclusions", "audit_log", "capture_state", "schema_migrations"} {
		assert.True(t, exists(t, db, "table", table), "table %s", table)
	}
	for _, idx := range []string{
		"idx_notifications_delivered",
		"idx_notifications_app",
		"idx_notifications_source",
		"idx_exclusions_rule",
		"idx_audit_log_ts",
	} {
		assert.True(t, exists(t, db, "index", idx), "index %s", idx)
	}
}

func TestMigrationRunner_SeedsDefaultExclusions(t *testing.T) {
	db := migrated(t)

	counts := map[string]int{}
	rows, err := db.Query("SELECT rule_type, COUNT(*) FROM exclusions WHERE is_default = 1 GROUP BY rule_type")
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var kind string
		var n int
		require.NoError(t, rows.Scan(&kind, &n))
		counts[kind] = n
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, map[string]int{"app": 6, "regex": 1}, counts)
}

func TestMigrationRunner_RerunIsNoop(t *testing.T) {
	db := migrated(t)
	require.NoError(t, NewMigrationRunner(db).Run(context.Background()))

	var recorded, defaults int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&recorded))
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM exclusions WHERE is_default = 1").Scan(&defaults))
	assert.Equal(t, 2, recorded)
	assert.Equal(t, 7, defaults)
}

func TestMigrationRunner_VersionAndPending(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	runner := NewMigrationRunner(db)
	require.NoError(t, runner.Run(ctx))

	v, err := runner.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, runner.Latest(), v)

	pending, err := runner.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	var name string
	require.NoError(t, db.QueryRow("SELECT name FROM schema_migrations WHERE version = 2").Scan(&name))
	assert.Equal(t, "capture_state", name)
}

func TestMigrationRunner_FailedStepRollsBack(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	runner := NewMigrationRunner(db)
	runner.steps = []migration{
		schema[0],
		{Version: 2, Name: "broken", Apply: func(tx *sql.Tx) error {
			if _, err := tx.Exec("CREATE TABLE half_done (id INTEGER)"); err != nil {
				return err
			}
			return errors.New("boom")
		}},
	}

	err := runner.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration 2 (broken)")

	v, err := runner.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.False(t, exists(t, db, "table", "half_done"))

	pending, err := runner.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, pending)
}

func TestMigrationRunner_JournalMode(t *testing.T) {
	db := migrated(t)

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	// in-memory databases cannot use WAL
	assert.Contains(t, []string{"wal", "memory"}, mode)
}

func TestMigrationRunner_ForeignKeys(t *testing.T) {
	db := migrated(t)

	_, err := db.Exec("INSERT INTO images (notification_id, data) VALUES ('nonexistent', x'00')")
	assert.Error(t, err, "orphan image rows are rejected")
}
