package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/runnerr0/afterglow/internal/capture"
	"github.com/runnerr0/afterglow/internal/config"
	"github.com/runnerr0/afterglow/internal/display"
	"github.com/runnerr0/afterglow/internal/storage"
)

// Capture-state keys written by watch and read by status.
const (
	stateWatchStarted   = "watch.started_at"
	stateWatchStopped   = "watch.stopped_at"
	stateWatchDelivered = "watch.delivered"
	stateWatchSightings = "watch.sightings"
)

type captureService interface {
	Start(ctx context.Context) error
	Stop()
	Reset(ctx context.Context) error
	Status() capture.Status
}

type stateWriter interface {
	SetState(ctx context.Context, key, value string) error
}

// Execute implements the go-flags Commander interface for WatchCommand.
func (c *WatchCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.globals)
	if err != nil {
		return err
	}
	logger, err := newLogger(c.globals, cfg, c.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Close()
	log := logger.Logger

	store, dbPath, err := openStore(c.globals, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := applyDenylist(ctx, store, cfg); err != nil {
		return err
	}

	env := newEnvironment(cfg)
	console := display.NewConsole(os.Stdout, display.Config{
		RatePerSec: cfg.Display.RatePerSec,
		Burst:      cfg.Display.Burst,
		Quiet:      c.Quiet || !cfg.Display.Enabled,
	}, log)

	opts := capture.OptionsFromConfig(cfg)
	if c.NoPoller {
		opts.PollerEnabled = false
	}
	if c.NoScanner {
		opts.ScannerEnabled = false
	}
	svc, err := capture.New(opts, capture.Deps{
		Source:      env.history,
		StorePath:   env.history.Path,
		Tree:        env.tree,
		Permissions: env.perms,
		Archive:     store,
		Shower:      console,
	}, log)
	if err != nil {
		return err
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	log.Info().Str("archive", dbPath).Str("version", c.version).Msg("afterglow starting")
	return c.serve(ctx, svc, store, hup, log)
}

// serve runs svc until ctx is done. A signal on hup forgets known history
// records and re-reads the database.
func (c *WatchCommand) serve(ctx context.Context, svc captureService, state stateWriter, hup <-chan os.Signal, log zerolog.Logger) error {
	if err := svc.Start(ctx); err != nil {
		if !detectorRunning(svc.Status()) {
			return fmt.Errorf("no detector could start: %w", err)
		}
		log.Warn().Err(err).Msg("capture running with one detector")
	}
	writeState(state, log, stateWatchStarted, time.Now().UTC().Format(time.RFC3339))

	for {
		select {
		case <-ctx.Done():
			svc.Stop()
			st := svc.Status()
			var delivered, sightings int64
			if st.Poller != nil {
				delivered = st.Poller.Delivered
			}
			if st.Scanner != nil {
				sightings = st.Scanner.Sightings
			}
			writeState(state, log, stateWatchStopped, time.Now().UTC().Format(time.RFC3339))
			writeState(state, log, stateWatchDelivered, strconv.FormatInt(delivered, 10))
			writeState(state, log, stateWatchSightings, strconv.FormatInt(sightings, 10))
			log.Info().Int64("delivered", delivered).Int64("sightings", sightings).Msg("afterglow stopped")
			return nil
		case <-hup:
			if err := svc.Reset(ctx); err != nil {
				log.Error().Err(err).Msg("reset failed")
				continue
			}
			log.Info().Msg("history re-read")
		}
	}
}

func detectorRunning(st capture.Status) bool {
	return (st.Poller != nil && st.Poller.Running) || (st.Scanner != nil && st.Scanner.Running)
}

func writeState(state stateWriter, log zerolog.Logger, key, value string) {
	if err := state.SetState(context.Background(), key, value); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("could not record capture state")
	}
}

// applyDenylist stores the configured app rules as archive exclusions.
func applyDenylist(ctx context.Context, store storage.Store, cfg *config.Config) error {
	for _, app := range cfg.Capture.DenylistApps {
		if err := store.AddExclusion(ctx, storage.Exclusion{RuleType: "app", RuleValue: app, Reason: "config denylist"}); err != nil {
			return err
		}
	}
	for _, pattern := range cfg.Capture.DenylistRegex {
		if err := store.AddExclusion(ctx, storage.Exclusion{RuleType: "regex", RuleValue: pattern, Reason: "config denylist"}); err != nil {
			return err
		}
	}
	return nil
}
