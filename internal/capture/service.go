package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/runnerr0/afterglow/internal/banner"
	"github.com/runnerr0/afterglow/internal/config"
	"github.com/runnerr0/afterglow/internal/notification"
	"github.com/runnerr0/afterglow/internal/poller"
	"github.com/runnerr0/afterglow/internal/schedule"
)

// Options selects and tunes the parts the service runs.
type Options struct {
	Poller         poller.Config
	Scanner        banner.Config
	PollerEnabled  bool
	ScannerEnabled bool
	PromoteScanner bool

	WatchStore bool
	WatchGap   time.Duration

	RetentionSchedule string
	Retention         time.Duration
}

// OptionsFromConfig maps the user configuration onto service options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Poller: poller.Config{
			Schedule:     scheduleConfig(cfg.Poller.Schedule),
			QueryLimit:   cfg.Poller.QueryLimit,
			KnownCeiling: cfg.Poller.KnownCeiling,
			FetchBuffer:  cfg.Poller.FetchBuffer,
		},
		Scanner: banner.Config{
			Schedule: scheduleConfig(cfg.Scanner.Schedule),
			BundleID: cfg.Scanner.BundleID,
			MaxDepth: cfg.Scanner.MaxDepth,
			SeenTTL:  cfg.Scanner.SeenTTL.D(),
		},
		PollerEnabled:     cfg.Poller.Enabled,
		ScannerEnabled:    cfg.Scanner.Enabled,
		PromoteScanner:    cfg.Capture.PromoteScanner,
		WatchStore:        cfg.Source.WatchStore,
		WatchGap:          cfg.Poller.Schedule.Active.D(),
		RetentionSchedule: cfg.Retention.Schedule,
		Retention:         cfg.RetentionPeriod(),
	}
}

func scheduleConfig(s config.ScheduleConfig) schedule.Config {
	return schedule.Config{
		Idle:            s.Idle.D(),
		Active:          s.Active.D(),
		Cooldown:        config.Durations(s.Cooldown),
		MaxActiveCycles: s.MaxActiveCycles,
	}
}

// Archive is the persistence collaborator: it receives batches and prunes
// old rows.
type Archive interface {
	notification.Saver
	Pruner
}

// Permissions answers both permission questions.
type Permissions interface {
	poller.Permissions
	banner.Permissions
}

// Deps are the service's collaborators. StorePath resolves the history
// database for the watcher; it may be nil when watching is off.
type Deps struct {
	Source      poller.Source
	StorePath   func(ctx context.Context) (string, error)
	Tree        banner.Tree
	Permissions Permissions
	Archive     Archive
	Shower      notification.Shower
}

// Status aggregates the state of every part.
type Status struct {
	Poller     *poller.Status
	Scanner    *banner.Status
	Watching   bool
	Hints      int64
	Promotions int64
	LastPrune  time.Time
	Pruned     int64
}

// Service runs the capture pipeline.
type Service struct {
	opts Options
	log  zerolog.Logger

	poller    *poller.Poller
	scanner   *banner.Scanner
	coord     *Coordinator
	watcher   *StoreWatcher
	retention *Retention

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// New builds the service without starting anything.
func New(opts Options, deps Deps, log zerolog.Logger) (*Service, error) {
	if !opts.PollerEnabled && !opts.ScannerEnabled {
		return nil, fmt.Errorf("capture: at least one detector must be enabled")
	}
	s := &Service{opts: opts, log: log.With().Str("component", "capture").Logger()}

	var pollerP, scannerP Promoter
	if opts.PollerEnabled {
		p, err := poller.New(opts.Poller, poller.Deps{
			Source:      deps.Source,
			Permissions: deps.Permissions,
			Saver:       deps.Archive,
			Shower:      deps.Shower,
		}, log)
		if err != nil {
			return nil, err
		}
		s.poller = p
		pollerP = p
	}
	if opts.ScannerEnabled {
		sc, err := banner.New(opts.Scanner, banner.Deps{
			Tree:        deps.Tree,
			Permissions: deps.Permissions,
			Shower:      deps.Shower,
		}, log)
		if err != nil {
			return nil, err
		}
		s.scanner = sc
		scannerP = sc
	}

	s.coord = NewCoordinator(pollerP, scannerP, opts.PromoteScanner, log)
	if s.poller != nil {
		s.poller.OnActivity(s.coord.HistoryActivity)
	}
	if s.scanner != nil {
		s.scanner.OnActivity(s.coord.BannerActivity)
	}

	if opts.WatchStore && s.poller != nil && deps.StorePath != nil {
		gap := opts.WatchGap
		if gap <= 0 {
			gap = time.Second
		}
		s.watcher = NewStoreWatcher(deps.StorePath, s.coord.StoreChanged, gap, log)
	}

	ret, err := NewRetention(opts.RetentionSchedule, opts.Retention, deps.Archive, log)
	if err != nil {
		return nil, err
	}
	s.retention = ret
	return s, nil
}

// Start starts every part independently. A detector that cannot start
// (usually a missing permission) does not prevent the other from running;
// its error is part of the returned join. Start fails outright only when
// neither detector is running.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	var errs []error
	running := 0
	if s.poller != nil {
		if err := s.poller.Start(ctx); err != nil {
			errs = append(errs, fmt.Errorf("history poller: %w", err))
		} else {
			running++
		}
	}
	if s.scanner != nil {
		if err := s.scanner.Start(ctx); err != nil {
			errs = append(errs, fmt.Errorf("banner scanner: %w", err))
		} else {
			running++
		}
	}
	if running == 0 {
		return errors.Join(errs...)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	if s.watcher != nil && s.poller.Status().Running {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.watcher.Run(runCtx)
		}()
	}
	if err := s.retention.Start(runCtx); err != nil {
		errs = append(errs, err)
	}

	s.started = true
	s.log.Info().Int("detectors", running).Msg("capture started")
	return errors.Join(errs...)
}

// Stop stops every part and waits for in-flight work.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	if s.scanner != nil {
		s.scanner.Stop()
	}
	if s.poller != nil {
		s.poller.Stop()
	}
	s.cancel()
	s.wg.Wait()
	s.retention.Stop()
	if s.poller != nil {
		s.poller.Wait()
	}
	s.started = false
	s.log.Info().Msg("capture stopped")
}

// Reset forgets every known history id and re-seeds from a fresh cold read.
func (s *Service) Reset(ctx context.Context) error {
	if s.poller == nil {
		return fmt.Errorf("history poller is disabled")
	}
	return s.poller.Reset(ctx)
}

// Poller returns the history poller, or nil when disabled.
func (s *Service) Poller() *poller.Poller { return s.poller }

// Scanner returns the banner scanner, or nil when disabled.
func (s *Service) Scanner() *banner.Scanner { return s.scanner }

// Status returns a snapshot of every part.
func (s *Service) Status() Status {
	var st Status
	if s.poller != nil {
		ps := s.poller.Status()
		st.Poller = &ps
	}
	if s.scanner != nil {
		ss := s.scanner.Status()
		st.Scanner = &ss
	}
	if s.watcher != nil {
		st.Watching = s.watcher.Watching()
		st.Hints = s.watcher.Hints()
	}
	st.Promotions = s.coord.Promotions()
	st.LastPrune, st.Pruned, _ = s.retention.Last()
	return st
}
