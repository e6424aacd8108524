package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/runnerr0/afterglow/internal/notification"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the archive operations.
type Store interface {
	SaveAll(ctx context.Context, items []notification.Notification) error
	GetNotification(ctx context.Context, id string) (*Record, error)
	GetImage(ctx context.Context, id string) (*Image, error)
	SearchNotifications(ctx context.Context, query SearchQuery) ([]Record, error)
	DeleteNotification(ctx context.Context, id string) error
	AddExclusion(ctx context.Context, rule Exclusion) error
	Exclusions(ctx context.Context) ([]Exclusion, error)
	CountExpired(ctx context.Context, olderThan time.Time) (int64, error)
	PruneExpired(ctx context.Context, olderThan time.Time) (int64, error)
	PurgeAll(ctx context.Context) error
	GetStats(ctx context.Context) (*Stats, error)
	SetState(ctx context.Context, key, value string) error
	GetState(ctx context.Context, key string) (string, bool, error)
	Close() error
}

// timeLayout keeps timestamps fixed-width so text comparison orders them.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB

	// Prepared statements
	insertNotification *sql.Stmt
	insertImage        *sql.Stmt
	insertFTS          *sql.Stmt
	getNotification    *sql.Stmt
	getImage           *sql.Stmt
	deleteNotification *sql.Stmt

	// Exclusion rules, loaded at init and extended by AddExclusion
	mu              sync.RWMutex
	appExclusions   map[string]struct{}
	regexExclusions []*regexp.Regexp
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a SQLiteStore from an already-opened and migrated database.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db, appExclusions: make(map[string]struct{})}

	if err := s.initFTS(); err != nil {
		return nil, fmt.Errorf("init FTS: %w", err)
	}

	if err := s.prepareStatements(); err != nil {
		return nil, fmt.Errorf("prepare statements: %w", err)
	}

	if err := s.loadExclusions(); err != nil {
		return nil, fmt.Errorf("load exclusions: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.insertNotification, err = s.db.Prepare(`
		INSERT OR IGNORE INTO notifications
			(id, app_id, title, subtitle, body, delivered_at, source, has_image, captured_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}

	s.insertImage, err = s.db.Prepare(`
		INSERT OR REPLACE INTO images (notification_id, data, byte_size) VALUES (?, ?, ?)
	`)
	if err != nil {
		return err
	}

	s.insertFTS, err = s.db.Prepare(`
		INSERT INTO notifications_fts (notification_id, title, subtitle, body) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}

	s.getNotification, err = s.db.Prepare(`
		SELECT id, app_id, title, subtitle, body, delivered_at, source, has_image, captured_at
		FROM notifications WHERE id = ?
	`)
	if err != nil {
		return err
	}

	s.getImage, err = s.db.Prepare(`SELECT notification_id, data FROM images WHERE notification_id = ?`)
	if err != nil {
		return err
	}

	s.deleteNotification, err = s.db.Prepare(`DELETE FROM notifications WHERE id = ?`)
	if err != nil {
		return err
	}

	return nil
}

// initFTS creates the FTS4 table for full-text search if it doesn't exist.
func (s *SQLiteStore) initFTS() error {
	_, err := s.db.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS notifications_fts USING fts4(
			notification_id,
			title,
			subtitle,
			body,
			notindexed=notification_id
		)
	`)
	return err
}

// loadExclusions loads app and regex exclusion rules from the database.
func (s *SQLiteStore) loadExclusions() error {
	rules, err := s.Exclusions(context.Background())
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rules {
		s.addRuleLocked(r)
	}
	return nil
}

func (s *SQLiteStore) addRuleLocked(r Exclusion) {
	switch r.RuleType {
	case "app":
		s.appExclusions[r.RuleValue] = struct{}{}
	case "regex":
		re, err := regexp.Compile(r.RuleValue)
		if err != nil {
			return // skip invalid regex
		}
		s.regexExclusions = append(s.regexExclusions, re)
	}
}

// IsExcluded reports whether notifications from appID are kept out of the
// archive.
func (s *SQLiteStore) IsExcluded(appID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.appExclusions[appID]; ok {
		return true
	}
	for _, re := range s.regexExclusions {
		if re.MatchString(appID) {
			return true
		}
	}
	return false
}

// AddExclusion stores a rule and applies it to subsequent saves. Adding an
// existing rule is a no-op.
func (s *SQLiteStore) AddExclusion(ctx context.Context, rule Exclusion) error {
	if rule.RuleType == "regex" {
		if _, err := regexp.Compile(rule.RuleValue); err != nil {
			return fmt.Errorf("invalid exclusion pattern %q: %w", rule.RuleValue, err)
		}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO exclusions (rule_type, rule_value, reason, is_default) VALUES (?, ?, ?, ?)`,
		rule.RuleType, rule.RuleValue, rule.Reason, rule.IsDefault,
	)
	if err != nil {
		return fmt.Errorf("insert exclusion: %w", err)
	}
	s.mu.Lock()
	s.addRuleLocked(rule)
	s.mu.Unlock()
	return nil
}

// Exclusions lists all stored rules.
func (s *SQLiteStore) Exclusions(ctx context.Context) ([]Exclusion, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT rule_type, rule_value, reason, is_default FROM exclusions ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query exclusions: %w", err)
	}
	defer rows.Close()

	var out []Exclusion
	for rows.Next() {
		var r Exclusion
		if err := rows.Scan(&r.RuleType, &r.RuleValue, &r.Reason, &r.IsDefault); err != nil {
			return nil, fmt.Errorf("scan exclusion: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ftsQuery converts a user search string into an FTS4 query: every word
// becomes a quoted prefix term, joined with OR.
func ftsQuery(input string) string {
	words := strings.Fields(strings.ReplaceAll(input, `"`, " "))
	if len(words) == 0 {
		return ""
	}
	parts := make([]string, 0, len(words))
	for _, w := range words {
		parts = append(parts, `"`+w+`*"`)
	}
	return strings.Join(parts, " OR ")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTimestamp tries several common SQLite timestamp formats.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		timeLayout,
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp: %s", s)
}

// SaveAll archives items in one transaction. Items without an ID and items
// from excluded apps are skipped silently. Already-archived IDs are ignored,
// so resubmitting a batch is harmless.
func (s *SQLiteStore) SaveAll(ctx context.Context, items []notification.Notification) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	insert := tx.StmtContext(ctx, s.insertNotification)
	insertFTS := tx.StmtContext(ctx, s.insertFTS)
	insertImage := tx.StmtContext(ctx, s.insertImage)
	captured := formatTime(time.Now())

	for _, n := range items {
		if n.ID == "" || s.IsExcluded(n.AppID) {
			continue
		}
		delivered := n.Timestamp
		if delivered.IsZero() {
			delivered = time.Now()
		}
		source := string(n.Source)
		if source == "" {
			source = string(notification.SourceHistory)
		}

		res, err := insert.ExecContext(ctx,
			n.ID, n.AppID, n.Title, n.Subtitle, n.Body,
			formatTime(delivered), source, len(n.Image) > 0, captured,
		)
		if err != nil {
			return fmt.Errorf("insert notification %s: %w", n.ID, err)
		}
		added, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if added == 0 {
			continue
		}

		if _, err := insertFTS.ExecContext(ctx, n.ID, n.Title, n.Subtitle, n.Body); err != nil {
			return fmt.Errorf("insert FTS: %w", err)
		}
		if len(n.Image) > 0 {
			if _, err := insertImage.ExecContext(ctx, n.ID, n.Image, len(n.Image)); err != nil {
				return fmt.Errorf("insert image: %w", err)
			}
		}
	}

	return tx.Commit()
}

// GetNotification retrieves a single record by ID.
func (s *SQLiteStore) GetNotification(ctx context.Context, id string) (*Record, error) {
	r, err := scanRecord(s.getNotification.QueryRowContext(ctx, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("notification %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return &r, nil
}

// GetImage retrieves the stored attachment of a record.
func (s *SQLiteStore) GetImage(ctx context.Context, id string) (*Image, error) {
	var img Image
	err := s.getImage.QueryRowContext(ctx, id).Scan(&img.NotificationID, &img.Data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("image for notification %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get image: %w", err)
	}
	return &img, nil
}

// SearchNotifications queries the archive with optional filters, newest first.
func (s *SQLiteStore) SearchNotifications(ctx context.Context, q SearchQuery) ([]Record, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}

	var (
		clauses []string
		args    []any
		from    = "FROM notifications n"
	)

	// If there's a text query, go through the FTS index
	if match := ftsQuery(q.Query); match != "" {
		from = "FROM notifications_fts f JOIN notifications n ON n.id = f.notification_id"
		clauses = append(clauses, "notifications_fts MATCH ?")
		args = append(args, match)
	}

	if len(q.Apps) > 0 {
		marks := strings.TrimSuffix(strings.Repeat("?,", len(q.Apps)), ",")
		clauses = append(clauses, "n.app_id IN ("+marks+")")
		for _, a := range q.Apps {
			args = append(args, a)
		}
	}
	if q.Source != "" {
		clauses = append(clauses, "n.source = ?")
		args = append(args, q.Source)
	}
	if !q.Since.IsZero() {
		clauses = append(clauses, "n.delivered_at >= ?")
		args = append(args, formatTime(q.Since))
	}
	if !q.Until.IsZero() {
		clauses = append(clauses, "n.delivered_at <= ?")
		args = append(args, formatTime(q.Until))
	}

	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	query := `SELECT n.id, n.app_id, n.title, n.subtitle, n.body, n.delivered_at,
		n.source, n.has_image, n.captured_at ` + from + where +
		" ORDER BY n.delivered_at DESC LIMIT ? OFFSET ?"
	args = append(args, q.Limit, q.Offset)

	return s.scanRecords(ctx, query, args...)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		r                   Record
		delivered, captured string
	)
	if err := row.Scan(
		&r.ID, &r.AppID, &r.Title, &r.Subtitle, &r.Body,
		&delivered, &r.Source, &r.HasImage, &captured,
	); err != nil {
		return Record{}, err
	}
	r.Delivered, _ = parseTimestamp(delivered)
	r.CapturedAt, _ = parseTimestamp(captured)
	return r, nil
}

// scanRecords executes a query and scans results into records.
func (s *SQLiteStore) scanRecords(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// DeleteNotification removes a record. Its image is cascade-deleted by the schema.
func (s *SQLiteStore) DeleteNotification(ctx context.Context, id string) error {
	// Also clean up FTS
	if _, err := s.db.ExecContext(ctx, "DELETE FROM notifications_fts WHERE notification_id = ?", id); err != nil {
		return fmt.Errorf("delete FTS entry: %w", err)
	}

	res, err := s.deleteNotification.ExecContext(ctx, id)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	return s.audit(ctx, "delete", id)
}

// CountExpired returns how many records were delivered before olderThan.
func (s *SQLiteStore) CountExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notifications WHERE delivered_at < ?", formatTime(olderThan),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count expired: %w", err)
	}
	return n, nil
}

// PruneExpired deletes records delivered before olderThan.
func (s *SQLiteStore) PruneExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	ts := formatTime(olderThan)

	// Clean FTS entries first
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM notifications_fts WHERE notification_id IN (
			SELECT id FROM notifications WHERE delivered_at < ?
		)`, ts,
	)
	if err != nil {
		return 0, fmt.Errorf("prune FTS: %w", err)
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM notifications WHERE delivered_at < ?", ts)
	if err != nil {
		return 0, fmt.Errorf("prune notifications: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		if err := s.audit(ctx, "prune", fmt.Sprintf("%d older than %s", n, ts)); err != nil {
			return n, err
		}
	}
	return n, nil
}

// PurgeAll deletes every record and image. Exclusion rules are kept.
func (s *SQLiteStore) PurgeAll(ctx context.Context) error {
	stmts := []string{
		"DELETE FROM notifications_fts",
		"DELETE FROM images",
		"DELETE FROM notifications",
		"DELETE FROM capture_state",
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("purge (%s): %w", stmt, err)
		}
	}
	return s.audit(ctx, "purge", "all notifications")
}

// GetStats returns aggregate statistics about the archive.
func (s *SQLiteStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM notifications").Scan(&stats.TotalNotifications)
	if err != nil {
		return nil, fmt.Errorf("count notifications: %w", err)
	}

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM images").Scan(&stats.TotalImages)
	if err != nil {
		return nil, fmt.Errorf("count images: %w", err)
	}

	// Oldest and newest (handle empty DB)
	if stats.TotalNotifications > 0 {
		var oldest, newest string
		err = s.db.QueryRowContext(ctx,
			"SELECT MIN(delivered_at), MAX(delivered_at) FROM notifications",
		).Scan(&oldest, &newest)
		if err != nil {
			return nil, fmt.Errorf("notification time range: %w", err)
		}
		stats.Oldest, _ = parseTimestamp(oldest)
		stats.Newest, _ = parseTimestamp(newest)
	}

	var pages, pageSize int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pages); err == nil {
		if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err == nil {
			stats.DatabaseSizeBytes = pages * pageSize
		}
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT app_id, COUNT(*) AS cnt FROM notifications GROUP BY app_id ORDER BY cnt DESC, app_id LIMIT 10",
	)
	if err != nil {
		return nil, fmt.Errorf("top apps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ac AppCount
		if err := rows.Scan(&ac.AppID, &ac.Count); err != nil {
			return nil, err
		}
		stats.TopApps = append(stats.TopApps, ac)
	}

	return stats, rows.Err()
}

// SetState stores a capture-state value.
func (s *SQLiteStore) SetState(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO capture_state (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set state %s: %w", key, err)
	}
	return nil
}

// GetState reads a capture-state value.
func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM capture_state WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get state %s: %w", key, err)
	}
	return v, true, nil
}

func (s *SQLiteStore) audit(ctx context.Context, action, detail string) error {
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO audit_log (action, detail) VALUES (?, ?)", action, detail,
	); err != nil {
		return fmt.Errorf("audit %s: %w", action, err)
	}
	return nil
}

// Close releases all prepared statements. The underlying *sql.DB is NOT
// closed; that is the caller's responsibility.
func (s *SQLiteStore) Close() error {
	stmts := []*sql.Stmt{
		s.insertNotification, s.insertImage, s.insertFTS,
		s.getNotification, s.getImage, s.deleteNotification,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}
	return nil
}
