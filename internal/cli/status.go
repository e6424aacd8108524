package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/runnerr0/afterglow/internal/config"
	"github.com/runnerr0/afterglow/internal/permission"
	"github.com/runnerr0/afterglow/internal/storage"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version            string            `json:"version"`
	DatabasePath       string            `json:"database_path"`
	DatabaseSizeBytes  int64             `json:"database_size_bytes"`
	TotalNotifications int64             `json:"total_notifications"`
	TotalImages        int64             `json:"total_images"`
	OldestNotification string            `json:"oldest_notification,omitempty"`
	NewestNotification string            `json:"newest_notification,omitempty"`
	RetentionDays      int               `json:"retention_days"`
	TopApps            []appCountJSON    `json:"top_apps"`
	Permissions        permission.Report `json:"permissions"`
	LastWatchStarted   string            `json:"last_watch_started,omitempty"`
	LastWatchStopped   string            `json:"last_watch_stopped,omitempty"`
	LastWatchDelivered int64             `json:"last_watch_delivered"`
	LastWatchSightings int64             `json:"last_watch_sightings"`
}

type appCountJSON struct {
	App   string `json:"app"`
	Count int64  `json:"count"`
}

// watchState is what the last watch run recorded.
type watchState struct {
	started, stopped     time.Time
	delivered, sightings int64
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.globals)
	if err != nil {
		return err
	}
	store, dbPath, err := openStore(c.globals, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	report := newEnvironment(cfg).perms.Check()
	return c.executeWithStore(store, dbPath, cfg, report)
}

// executeWithStore runs status against a provided store (for testing).
func (c *StatusCommand) executeWithStore(store storage.Store, dbPath string, cfg *config.Config, perms permission.Report) error {
	ctx := context.Background()

	stats, err := store.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}
	if info, err := os.Stat(dbPath); err == nil {
		stats.DatabaseSizeBytes = info.Size()
	}

	ws, err := readWatchState(ctx, store)
	if err != nil {
		return err
	}

	if c.globals != nil && c.globals.JSON {
		return c.printStatusJSON(stats, dbPath, cfg, perms, ws)
	}
	return c.printStatusHuman(stats, dbPath, cfg, perms, ws)
}

func readWatchState(ctx context.Context, store storage.Store) (watchState, error) {
	var ws watchState
	get := func(key string) (string, error) {
		v, _, err := store.GetState(ctx, key)
		return v, err
	}
	for key, dst := range map[string]*time.Time{stateWatchStarted: &ws.started, stateWatchStopped: &ws.stopped} {
		v, err := get(key)
		if err != nil {
			return ws, err
		}
		if v != "" {
			*dst, _ = time.Parse(time.RFC3339, v)
		}
	}
	for key, dst := range map[string]*int64{stateWatchDelivered: &ws.delivered, stateWatchSightings: &ws.sightings} {
		v, err := get(key)
		if err != nil {
			return ws, err
		}
		if v != "" {
			*dst, _ = strconv.ParseInt(v, 10, 64)
		}
	}
	return ws, nil
}

func (c *StatusCommand) printStatusHuman(stats *storage.Stats, dbPath string, cfg *config.Config, perms permission.Report, ws watchState) error {
	fmt.Println("Afterglow Status")
	fmt.Println("================")
	fmt.Printf("Version:        %s\n", c.version)
	fmt.Printf("Full disk:      %s\n", grant(perms.ReadAccess))
	fmt.Printf("Accessibility:  %s\n", grant(perms.AccessibilityAccess))
	fmt.Println()
	fmt.Printf("Archive:        %s (%s)\n", dbPath, humanize.Bytes(uint64(max(stats.DatabaseSizeBytes, 0))))
	fmt.Printf("Notifications:  %s\n", humanize.Comma(stats.TotalNotifications))
	fmt.Printf("Images:         %s\n", humanize.Comma(stats.TotalImages))

	if stats.TotalNotifications > 0 {
		fmt.Printf("Oldest:         %s (%s)\n", stats.Oldest.Local().Format("2006-01-02"), humanize.Time(stats.Oldest))
		fmt.Printf("Newest:         %s (%s)\n", stats.Newest.Local().Format("2006-01-02 15:04"), humanize.Time(stats.Newest))
	}
	fmt.Printf("Retention:      %d days\n", cfg.Retention.Days)

	if len(stats.TopApps) > 0 {
		fmt.Println()
		fmt.Println("Top Apps:")
		for _, a := range stats.TopApps {
			fmt.Printf("  %-36s %s\n", a.AppID, humanize.Comma(a.Count))
		}
	}

	fmt.Println()
	if ws.started.IsZero() {
		fmt.Println("Last watch:     never")
		return nil
	}
	fmt.Printf("Last watch:     started %s\n", humanize.Time(ws.started))
	if !ws.stopped.IsZero() && !ws.stopped.Before(ws.started) {
		fmt.Printf("                stopped %s, %s delivered, %s banners\n",
			humanize.Time(ws.stopped), humanize.Comma(ws.delivered), humanize.Comma(ws.sightings))
	} else {
		fmt.Println("                still running or ended abnormally")
	}
	return nil
}

func (c *StatusCommand) printStatusJSON(stats *storage.Stats, dbPath string, cfg *config.Config, perms permission.Report, ws watchState) error {
	out := statusJSON{
		Version:            c.version,
		DatabasePath:       dbPath,
		DatabaseSizeBytes:  stats.DatabaseSizeBytes,
		TotalNotifications: stats.TotalNotifications,
		TotalImages:        stats.TotalImages,
		RetentionDays:      cfg.Retention.Days,
		TopApps:            make([]appCountJSON, len(stats.TopApps)),
		Permissions:        perms,
		LastWatchDelivered: ws.delivered,
		LastWatchSightings: ws.sightings,
	}

	if stats.TotalNotifications > 0 {
		out.OldestNotification = stats.Oldest.UTC().Format(time.RFC3339)
		out.NewestNotification = stats.Newest.UTC().Format(time.RFC3339)
	}
	if !ws.started.IsZero() {
		out.LastWatchStarted = ws.started.UTC().Format(time.RFC3339)
	}
	if !ws.stopped.IsZero() {
		out.LastWatchStopped = ws.stopped.UTC().Format(time.RFC3339)
	}

	for i, a := range stats.TopApps {
		out.TopApps[i] = appCountJSON{App: a.AppID, Count: a.Count}
	}

	return printJSON(out)
}

func grant(ok bool) string {
	if ok {
		return "granted"
	}
	return "not granted"
}
