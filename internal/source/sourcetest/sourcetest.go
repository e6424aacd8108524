// Package sourcetest creates throwaway history databases with the same
// schema the OS uses, for tests.
package sourcetest

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

var referenceDate = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

// HistoryDB is a writable history database on disk.
type HistoryDB struct {
	Path string

	t    testing.TB
	db   *sql.DB
	apps map[string]int64
}

// New creates db2/db under a temp dir with the record and app tables.
func New(t testing.TB) *HistoryDB {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "db2")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE app (
			app_id     INTEGER PRIMARY KEY,
			identifier VARCHAR
		);
		CREATE TABLE record (
			rec_id         INTEGER PRIMARY KEY,
			app_id         INTEGER,
			uuid           BLOB,
			data           BLOB,
			request_date   REAL,
			request_last_date REAL,
			delivered_date REAL,
			presented      BOOL,
			style          INTEGER,
			snooze_fire_date REAL
		);`)
	require.NoError(t, err)

	return &HistoryDB{Path: path, t: t, db: db, apps: map[string]int64{}}
}

// Insert adds a record and returns its canonical id.
func (h *HistoryDB) Insert(app string, data []byte, delivered time.Time) string {
	h.t.Helper()
	id := uuid.New()
	raw, err := id.MarshalBinary()
	require.NoError(h.t, err)

	_, err = h.db.Exec(
		"INSERT INTO record (app_id, uuid, data, delivered_date) VALUES (?, ?, ?, ?)",
		h.appID(app), raw, data, delivered.Sub(referenceDate).Seconds(),
	)
	require.NoError(h.t, err)
	return id.String()
}

// Exec runs an arbitrary statement against the database.
func (h *HistoryDB) Exec(query string, args ...any) {
	h.t.Helper()
	_, err := h.db.Exec(query, args...)
	require.NoError(h.t, err)
}

func (h *HistoryDB) appID(identifier string) int64 {
	if id, ok := h.apps[identifier]; ok {
		return id
	}
	res, err := h.db.Exec("INSERT INTO app (identifier) VALUES (?)", identifier)
	require.NoError(h.t, err)
	id, err := res.LastInsertId()
	require.NoError(h.t, err)
	h.apps[identifier] = id
	return id
}
