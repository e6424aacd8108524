package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/runnerr0/afterglow/internal/capture"
	"github.com/runnerr0/afterglow/internal/config"
	"github.com/runnerr0/afterglow/internal/notification"
	"github.com/runnerr0/afterglow/internal/poller"
	"github.com/runnerr0/afterglow/internal/storage"
)

// Execute implements the go-flags Commander interface for BackfillCommand.
func (c *BackfillCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.globals)
	if err != nil {
		return err
	}
	logger, err := newLogger(c.globals, cfg, "")
	if err != nil {
		return err
	}
	defer logger.Close()

	store, _, err := openStore(c.globals, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	if err := applyDenylist(ctx, store, cfg); err != nil {
		return err
	}

	env := newEnvironment(cfg)
	if !env.perms.HasReadAccess() {
		return fmt.Errorf("notification history is not readable: grant full disk access to this terminal")
	}
	return c.executeWithSource(ctx, cfg, env.history, store, logger.Logger)
}

// executeWithSource reads src once and archives into store (for testing).
func (c *BackfillCommand) executeWithSource(ctx context.Context, cfg *config.Config, src poller.Source, store storage.Store, log zerolog.Logger) error {
	pc := capture.OptionsFromConfig(cfg).Poller
	if c.Limit > 0 {
		pc.QueryLimit = c.Limit
		pc.KnownCeiling = max(pc.KnownCeiling, c.Limit)
	}

	p, err := poller.New(pc, poller.Deps{
		Source:      src,
		Permissions: grantAll{},
		Saver:       store,
		Shower:      notification.ShowerFunc(func(notification.Notification) {}),
	}, log)
	if err != nil {
		return err
	}

	before, err := store.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}
	read, err := p.ColdRead(ctx)
	if err != nil {
		return err
	}
	after, err := store.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}
	added := after.TotalNotifications - before.TotalNotifications

	if c.globals != nil && c.globals.JSON {
		return printJSON(map[string]any{
			"read":  read,
			"added": added,
			"known": p.Known().Len(),
		})
	}
	fmt.Printf("Read %d %s, archived %d new.\n", read, plural(read, "notification", "notifications"), added)
	return nil
}

// grantAll is the permission answer for one-shot reads whose access was
// checked by the caller.
type grantAll struct{}

func (grantAll) HasReadAccess() bool { return true }
