package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Default config file path.
const DefaultConfigPath = "~/.config/afterglow/config.yaml"

// Config holds all afterglow configuration.
type Config struct {
	Poller    PollerConfig    `yaml:"poller"`
	Scanner   ScannerConfig   `yaml:"scanner"`
	Source    SourceConfig    `yaml:"source"`
	Storage   StorageConfig   `yaml:"storage"`
	Retention RetentionConfig `yaml:"retention"`
	Display   DisplayConfig   `yaml:"display"`
	Capture   CaptureConfig   `yaml:"capture"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ScheduleConfig holds the adaptive polling intervals of one detector.
type ScheduleConfig struct {
	Idle            Duration   `yaml:"idle"`
	Active          Duration   `yaml:"active"`
	Cooldown        []Duration `yaml:"cooldown"`
	MaxActiveCycles int        `yaml:"max_active_cycles"`
}

type PollerConfig struct {
	Enabled      bool           `yaml:"enabled"`
	Schedule     ScheduleConfig `yaml:"schedule"`
	QueryLimit   int            `yaml:"query_limit"`
	KnownCeiling int            `yaml:"known_ceiling"`
	FetchBuffer  int            `yaml:"fetch_buffer"`
}

type ScannerConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Schedule ScheduleConfig `yaml:"schedule"`
	BundleID string         `yaml:"bundle_id"`
	MaxDepth int            `yaml:"max_depth"`
	SeenTTL  Duration       `yaml:"seen_ttl"`
}

type SourceConfig struct {
	Candidates []string `yaml:"candidates"`
	WatchStore bool     `yaml:"watch_store"`
}

type StorageConfig struct {
	Path       string `yaml:"path"`
	SQLiteFile string `yaml:"sqlite_file"`
}

type RetentionConfig struct {
	Days     int    `yaml:"days"`
	Schedule string `yaml:"schedule"`
}

type DisplayConfig struct {
	Enabled    bool `yaml:"enabled"`
	RatePerSec int  `yaml:"rate_per_sec"`
	Burst      int  `yaml:"burst"`
}

type CaptureConfig struct {
	DenylistApps  []string `yaml:"denylist_apps"`
	DenylistRegex []string `yaml:"denylist_regex"`
	// PromoteScanner makes new history records also promote the banner
	// scanner. Off by default: the poller only promotes itself.
	PromoteScanner bool `yaml:"promote_scanner"`
}

type LoggingConfig struct {
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// Load reads a YAML config file at path and merges it with defaults.
// Returns an error if the file cannot be read or contains invalid YAML.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the settings the capture core depends on.
func (c *Config) Validate() error {
	if err := c.Poller.Schedule.validate("poller"); err != nil {
		return err
	}
	if err := c.Scanner.Schedule.validate("scanner"); err != nil {
		return err
	}
	if c.Poller.QueryLimit < 1 {
		return fmt.Errorf("poller.query_limit must be at least 1")
	}
	if c.Poller.KnownCeiling < c.Poller.QueryLimit {
		return fmt.Errorf("poller.known_ceiling (%d) must not be below poller.query_limit (%d)",
			c.Poller.KnownCeiling, c.Poller.QueryLimit)
	}
	if c.Scanner.MaxDepth < 1 {
		return fmt.Errorf("scanner.max_depth must be at least 1")
	}
	if c.Scanner.SeenTTL <= 0 {
		return fmt.Errorf("scanner.seen_ttl must be positive")
	}
	if c.Retention.Days < 0 {
		return fmt.Errorf("retention.days must not be negative")
	}
	return nil
}

func (s ScheduleConfig) validate(section string) error {
	if s.Idle <= 0 || s.Active <= 0 {
		return fmt.Errorf("%s.schedule: idle and active intervals must be positive", section)
	}
	if s.MaxActiveCycles < 1 {
		return fmt.Errorf("%s.schedule.max_active_cycles must be at least 1", section)
	}
	for i := 1; i < len(s.Cooldown); i++ {
		if s.Cooldown[i] < s.Cooldown[i-1] {
			return fmt.Errorf("%s.schedule.cooldown must be ascending", section)
		}
	}
	return nil
}

// RetentionPeriod returns the retention window, or 0 when pruning is off.
func (c *Config) RetentionPeriod() time.Duration {
	return time.Duration(c.Retention.Days) * 24 * time.Hour
}

// DBPath returns the expanded archive database path.
func (c *Config) DBPath() (string, error) {
	dir, err := ExpandPath(c.Storage.Path)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.Storage.SQLiteFile), nil
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// LoadOrCreate loads the config from the default path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreate() (*Config, error) {
	path, err := ExpandPath(DefaultConfigPath)
	if err != nil {
		return nil, err
	}
	return LoadOrCreateAt(path)
}

// LoadOrCreateAt loads the config from the given path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreateAt(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshaling default config: %w", err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}

		return cfg, nil
	}

	return Load(path)
}
