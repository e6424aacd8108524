package source

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/runnerr0/afterglow/internal/errors"
	"github.com/runnerr0/afterglow/internal/source/sourcetest"
)

func TestLocator_FirstValidCandidateWins(t *testing.T) {
	h := sourcetest.New(t)
	missing := filepath.Join(t.TempDir(), "nope", "db")

	loc := NewLocator([]string{missing, h.Path})
	path, err := loc.Path(context.Background())
	require.NoError(t, err)
	assert.Equal(t, h.Path, path)
}

func TestLocator_RejectsDatabaseWithoutRecordTable(t *testing.T) {
	other := filepath.Join(t.TempDir(), "other.db")
	db, err := sql.Open("sqlite3", other)
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE something (id INTEGER)")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	loc := NewLocator([]string{other})
	_, err = loc.Path(context.Background())
	require.Error(t, err)
	assert.True(t, cerrors.Is(err, cerrors.ErrStoreUnavailable))
}

func TestLocator_GlobCandidate(t *testing.T) {
	h := sourcetest.New(t)
	pattern := filepath.Join(filepath.Dir(filepath.Dir(h.Path)), "*", "db")

	loc := NewLocator([]string{pattern})
	path, err := loc.Path(context.Background())
	require.NoError(t, err)
	assert.Equal(t, h.Path, path)
}

func TestLocator_CachesPath(t *testing.T) {
	h := sourcetest.New(t)
	loc := NewLocator([]string{h.Path})

	first, err := loc.Path(context.Background())
	require.NoError(t, err)

	loc.candidates = nil
	second, err := loc.Path(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	loc.Reset()
	_, err = loc.Path(context.Background())
	assert.Error(t, err)
}

func TestLocator_NoCandidates(t *testing.T) {
	_, err := NewLocator(nil).Path(context.Background())
	require.Error(t, err)
	assert.True(t, cerrors.Is(err, cerrors.ErrStoreUnavailable))
}

func TestStore_RecentIDsNewestFirst(t *testing.T) {
	h := sourcetest.New(t)
	now := time.Now()
	old := h.Insert("com.example.a", []byte("x"), now.Add(-time.Hour))
	recent := h.Insert("com.example.b", []byte("y"), now.Add(-time.Minute))
	h.Exec("INSERT INTO record (app_id, uuid, data, delivered_date) VALUES (1, X'00', NULL, 0)")

	s := NewStore(NewLocator([]string{h.Path}))
	ids, err := s.RecentIDs(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{recent, old}, ids)
}

func TestStore_RecentIDsLimit(t *testing.T) {
	h := sourcetest.New(t)
	now := time.Now()
	for i := 0; i < 5; i++ {
		h.Insert("com.example.a", []byte("x"), now.Add(time.Duration(i)*time.Second))
	}

	s := NewStore(NewLocator([]string{h.Path}))
	ids, err := s.RecentIDs(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, ids, 3)
}

func TestStore_RowsJoinApp(t *testing.T) {
	h := sourcetest.New(t)
	delivered := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	id := h.Insert("com.apple.mail", []byte("payload"), delivered)

	s := NewStore(NewLocator([]string{h.Path}))
	rows, err := s.Rows(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, id, rows[0].ID)
	assert.Equal(t, "com.apple.mail", rows[0].AppID)
	assert.Equal(t, []byte("payload"), rows[0].Data)
	assert.WithinDuration(t, delivered, rows[0].Delivered, time.Millisecond)
}

func TestStore_UnreadablePathIsStoreUnavailable(t *testing.T) {
	h := sourcetest.New(t)
	s := NewStore(NewLocator([]string{h.Path}))
	_, err := s.RecentIDs(context.Background(), 1)
	require.NoError(t, err)

	require.NoError(t, os.Remove(h.Path))
	_, err = s.RecentIDs(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, cerrors.Is(err, cerrors.ErrStoreUnavailable))
}

func TestStore_BrokenSchemaIsQueryFailure(t *testing.T) {
	h := sourcetest.New(t)
	s := NewStore(NewLocator([]string{h.Path}))
	_, err := s.Path(context.Background())
	require.NoError(t, err)

	h.Exec("DROP TABLE app")
	_, err = s.Rows(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, cerrors.Is(err, cerrors.ErrQueryFailure))
}

func TestDeliveredTime_RoundTrip(t *testing.T) {
	ts := time.Date(2023, 11, 2, 8, 30, 15, 250_000_000, time.UTC)
	got := DeliveredTime(SecondsSinceReference(ts))
	assert.WithinDuration(t, ts, got, time.Microsecond)
	assert.Equal(t, referenceDate, DeliveredTime(0))
}

func TestFormatID(t *testing.T) {
	raw := []byte{0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0, 0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0}
	assert.Equal(t, "12345678-9abc-def0-1234-56789abcdef0", formatID(raw))
	assert.Equal(t, "short", formatID([]byte("short")))
	assert.Equal(t, "abc", formatID("abc"))
	assert.Equal(t, "42", formatID(int64(42)))
	assert.Equal(t, "", formatID(nil))
}
