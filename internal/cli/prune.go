package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/runnerr0/afterglow/internal/config"
)

// Execute implements the go-flags Commander interface for PruneCommand.
func (c *PruneCommand) Execute(args []string) error {
	var cfg *config.Config
	if c.store == nil || c.OlderThan == "" {
		var err error
		if cfg, err = loadConfig(c.globals); err != nil {
			return err
		}
	}

	if c.store == nil {
		store, _, err := openStore(c.globals, cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		c.store = store
	}

	keep, err := c.retention(cfg)
	if err != nil {
		return err
	}
	if keep == 0 {
		fmt.Println("Retention is disabled; nothing to prune.")
		return nil
	}

	ctx := context.Background()
	cutoff := time.Now().Add(-keep)

	if c.DryRun {
		n, err := c.store.CountExpired(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("count expired: %w", err)
		}
		if c.globals != nil && c.globals.JSON {
			return printJSON(map[string]any{"dry_run": true, "would_prune": n, "older_than": formatDurationHuman(keep)})
		}
		fmt.Printf("Would prune %d %s older than %s.\n", n, plural(int(n), "notification", "notifications"), formatDurationHuman(keep))
		return nil
	}

	n, err := c.store.PruneExpired(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune: %w", err)
	}
	if c.globals != nil && c.globals.JSON {
		return printJSON(map[string]any{"dry_run": false, "pruned": n, "older_than": formatDurationHuman(keep)})
	}
	fmt.Printf("Pruned %d %s older than %s.\n", n, plural(int(n), "notification", "notifications"), formatDurationHuman(keep))
	return nil
}

// retention returns the --older-than override, else the configured period.
func (c *PruneCommand) retention(cfg *config.Config) (time.Duration, error) {
	if c.OlderThan != "" {
		d, err := parseDuration(c.OlderThan)
		if err != nil {
			return 0, fmt.Errorf("invalid --older-than value %q: %w", c.OlderThan, err)
		}
		if d == 0 {
			return 0, fmt.Errorf("--older-than must be positive")
		}
		return d, nil
	}
	return cfg.RetentionPeriod(), nil
}
