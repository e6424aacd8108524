package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/runnerr0/afterglow/internal/config"
	"github.com/runnerr0/afterglow/internal/logging"
	"github.com/runnerr0/afterglow/internal/storage"
)

// loadConfig reads --config when given, otherwise the default config file,
// creating it on first run. A broken default file falls back to defaults.
func loadConfig(globals *GlobalFlags) (*config.Config, error) {
	if globals != nil && globals.Config != "" {
		cfg, err := config.Load(globals.Config)
		if err != nil {
			return nil, err
		}
		return cfg, nil
	}
	cfg, err := config.LoadOrCreate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v; using defaults\n", err)
		return config.DefaultConfig(), nil
	}
	return cfg, nil
}

// resolveDBPath determines the archive database path.
// Priority: --db-path flag > config file > default config.
func resolveDBPath(globals *GlobalFlags, cfg *config.Config) (string, error) {
	if globals != nil && globals.DBPath != "" {
		return config.ExpandPath(globals.DBPath)
	}
	return cfg.DBPath()
}

// openStore opens the archive named by the flags and config, with
// migrations applied.
func openStore(globals *GlobalFlags, cfg *config.Config) (*storage.SQLiteStore, string, error) {
	dbPath, err := resolveDBPath(globals, cfg)
	if err != nil {
		return nil, "", err
	}
	store, _, err := storage.Open(dbPath)
	if err != nil {
		return nil, "", err
	}
	return store, dbPath, nil
}

// newLogger builds the process logger. --verbose forces debug level.
func newLogger(globals *GlobalFlags, cfg *config.Config, levelOverride string) (*logging.Logger, error) {
	lc := logging.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    cfg.Logging.File,
	}
	if levelOverride != "" {
		lc.Level = levelOverride
	}
	if globals != nil && globals.Verbose {
		lc.Level = zerolog.DebugLevel.String()
	}
	if lc.File != "" {
		p, err := config.ExpandPath(lc.File)
		if err != nil {
			return nil, err
		}
		lc.File = p
	}
	return logging.New(lc, os.Stderr)
}

// parseDuration parses a human-friendly duration string like "30d", "7d", "24h", "2w".
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("invalid duration: empty string")
	}

	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]

	n, err := strconv.Atoi(numStr)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	switch suffix {
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 's':
		return time.Duration(n) * time.Second, nil
	default:
		return 0, fmt.Errorf("invalid duration: %q (use d, h, w, m or s suffix)", s)
	}
}

// formatDurationHuman formats a duration into a human-readable string like "30 days".
func formatDurationHuman(d time.Duration) string {
	days := int(d.Hours() / 24)
	if days > 0 {
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
	hours := int(d.Hours())
	if hours > 0 {
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return d.String()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
