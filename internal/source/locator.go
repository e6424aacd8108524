// Package source reads the OS notification history database. The database
// is owned by the OS: it is only ever opened read-only, one connection per
// query.
package source

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	cerrors "github.com/runnerr0/afterglow/internal/errors"
)

// DefaultCandidates lists known history database locations, newest OS
// layout first. Entries may start with ~ and may contain glob patterns.
func DefaultCandidates() []string {
	return []string{
		"~/Library/Group Containers/group.com.apple.usernoted/db2/db",
		"/private/var/folders/*/*/0/com.apple.notificationcenter/db2/db",
		"/private/var/folders/*/*/0/com.apple.notificationcenter/db/db",
	}
}

// Locator finds the history database and caches the first valid path for
// the life of the process.
type Locator struct {
	candidates []string

	mu     sync.Mutex
	cached string
}

// NewLocator creates a Locator over the given candidate patterns.
func NewLocator(candidates []string) *Locator {
	return &Locator{candidates: candidates}
}

// Path returns the cached database path, probing the candidates on first
// use. A StoreUnavailable error is returned when none validates.
func (l *Locator) Path(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cached != "" {
		return l.cached, nil
	}

	var lastErr error
	for _, pattern := range l.candidates {
		paths, err := expandCandidate(pattern)
		if err != nil {
			lastErr = err
			continue
		}
		for _, p := range paths {
			if err := validate(ctx, p); err != nil {
				lastErr = err
				continue
			}
			l.cached = p
			return p, nil
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no candidate path exists")
	}
	return "", cerrors.NewStoreUnavailable("locate", lastErr)
}

// Reset forgets the cached path so the next call probes again.
func (l *Locator) Reset() {
	l.mu.Lock()
	l.cached = ""
	l.mu.Unlock()
}

func expandCandidate(pattern string) ([]string, error) {
	if strings.HasPrefix(pattern, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		pattern = filepath.Join(home, pattern[1:])
	}
	if !strings.ContainsAny(pattern, "*?[") {
		return []string{pattern}, nil
	}
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	return matches, nil
}

// validate checks that path is a readable SQLite file with a record table.
func validate(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}

	db, err := openReadOnly(path)
	if err != nil {
		return err
	}
	defer db.Close()

	var name string
	err = db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'record'",
	).Scan(&name)
	if err != nil {
		return fmt.Errorf("%s has no record table: %w", path, err)
	}
	return nil
}

// openReadOnly opens path through a read-only URI so the OS-owned file is
// never written.
func openReadOnly(path string) (*sql.DB, error) {
	u := url.URL{Scheme: "file", Path: path, RawQuery: "mode=ro"}
	db, err := sql.Open("sqlite3", u.String())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// Readable reports whether the current process can open path for reading.
func Readable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}
