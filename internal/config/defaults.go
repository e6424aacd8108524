package config

import "time"

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Poller: PollerConfig{
			Enabled: true,
			Schedule: ScheduleConfig{
				Idle:            Duration(5 * time.Second),
				Active:          Duration(time.Second),
				Cooldown:        []Duration{Duration(2 * time.Second), Duration(3 * time.Second)},
				MaxActiveCycles: 10,
			},
			QueryLimit:   500,
			KnownCeiling: 2000,
			FetchBuffer:  10,
		},
		Scanner: ScannerConfig{
			Enabled: true,
			Schedule: ScheduleConfig{
				Idle:            Duration(3 * time.Second),
				Active:          Duration(500 * time.Millisecond),
				Cooldown:        []Duration{Duration(time.Second), Duration(2 * time.Second)},
				MaxActiveCycles: 10,
			},
			BundleID: "com.apple.notificationcenterui",
			MaxDepth: 10,
			SeenTTL:  Duration(10 * time.Second),
		},
		Source: SourceConfig{
			Candidates: []string{
				"~/Library/Group Containers/group.com.apple.usernoted/db2/db",
				"/private/var/folders/*/*/0/com.apple.notificationcenter/db2/db",
				"/private/var/folders/*/*/0/com.apple.notificationcenter/db/db",
			},
			WatchStore: true,
		},
		Storage: StorageConfig{
			Path:       "~/.config/afterglow",
			SQLiteFile: "afterglow.db",
		},
		Retention: RetentionConfig{
			Days:     30,
			Schedule: "@every 24h",
		},
		Display: DisplayConfig{
			Enabled:    true,
			RatePerSec: 2,
			Burst:      5,
		},
		Capture: CaptureConfig{
			DenylistApps:   DefaultDenylistApps(),
			DenylistRegex:  []string{},
			PromoteScanner: false,
		},
		Logging: LoggingConfig{
			Level:   "info",
			File:    "",
			Console: true,
		},
	}
}
