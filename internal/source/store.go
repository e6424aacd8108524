package source

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	cerrors "github.com/runnerr0/afterglow/internal/errors"
)

// referenceDate is the epoch of delivered_date.
var referenceDate = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

const (
	idsQuery = `
		SELECT uuid FROM record
		WHERE data IS NOT NULL
		ORDER BY delivered_date DESC
		LIMIT ?`

	rowsQuery = `
		SELECT r.uuid, COALESCE(a.identifier, ''), r.data, r.delivered_date
		FROM record r
		LEFT JOIN app a ON a.app_id = r.app_id
		WHERE r.data IS NOT NULL
		ORDER BY r.delivered_date DESC
		LIMIT ?`
)

// Row is one record of the history database.
type Row struct {
	ID        string
	AppID     string
	Data      []byte
	Delivered time.Time
}

// Store runs the two history queries. The database is opened and closed
// around every query.
type Store struct {
	loc *Locator
}

// NewStore creates a Store that resolves its path through loc.
func NewStore(loc *Locator) *Store {
	return &Store{loc: loc}
}

// Path returns the resolved database path.
func (s *Store) Path(ctx context.Context) (string, error) {
	return s.loc.Path(ctx)
}

// Relocate drops the cached path so the next query probes the candidates
// again.
func (s *Store) Relocate() {
	s.loc.Reset()
}

// RecentIDs returns up to limit record identifiers, newest first.
func (s *Store) RecentIDs(ctx context.Context, limit int) ([]string, error) {
	var ids []string
	err := s.query(ctx, "ids", idsQuery, limit, func(rows *sql.Rows) error {
		var raw any
		if err := rows.Scan(&raw); err != nil {
			return err
		}
		ids = append(ids, formatID(raw))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Rows returns up to limit full records, newest first.
func (s *Store) Rows(ctx context.Context, limit int) ([]Row, error) {
	var out []Row
	err := s.query(ctx, "rows", rowsQuery, limit, func(rows *sql.Rows) error {
		var (
			raw       any
			r         Row
			delivered sql.NullFloat64
		)
		if err := rows.Scan(&raw, &r.AppID, &r.Data, &delivered); err != nil {
			return err
		}
		r.ID = formatID(raw)
		if delivered.Valid {
			r.Delivered = DeliveredTime(delivered.Float64)
		}
		out = append(out, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) query(ctx context.Context, op, q string, limit int, scan func(*sql.Rows) error) error {
	path, err := s.loc.Path(ctx)
	if err != nil {
		return err
	}
	if err := Readable(path); err != nil {
		return cerrors.NewStoreUnavailable(op, err)
	}

	db, err := openReadOnly(path)
	if err != nil {
		return cerrors.NewQueryFailure(op, err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, q, limit)
	if err != nil {
		return cerrors.NewQueryFailure(op, err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return cerrors.NewQueryFailure(op, fmt.Errorf("scan: %w", err))
		}
	}
	if err := rows.Err(); err != nil {
		return cerrors.NewQueryFailure(op, err)
	}
	return nil
}

// DeliveredTime converts a delivered_date value to wall time.
func DeliveredTime(seconds float64) time.Time {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return time.Time{}
	}
	whole, frac := math.Modf(seconds)
	return referenceDate.Add(time.Duration(whole)*time.Second + time.Duration(frac*float64(time.Second)))
}

// SecondsSinceReference is the inverse of DeliveredTime.
func SecondsSinceReference(t time.Time) float64 {
	return t.Sub(referenceDate).Seconds()
}

// formatID renders a uuid column. 16-byte blobs become canonical UUID text.
func formatID(raw any) string {
	switch v := raw.(type) {
	case []byte:
		if len(v) == 16 {
			if id, err := uuid.FromBytes(v); err == nil {
				return id.String()
			}
		}
		return string(v)
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
