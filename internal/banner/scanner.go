package banner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	cerrors "github.com/runnerr0/afterglow/internal/errors"
	"github.com/runnerr0/afterglow/internal/notification"
	"github.com/runnerr0/afterglow/internal/schedule"
)

// Permissions reports whether the accessibility tree may be read.
type Permissions interface {
	HasAccessibilityAccess() bool
}

// Config tunes the scanner.
type Config struct {
	Schedule schedule.Config
	BundleID string        // process rendering banners
	MaxDepth int           // text collection depth below a window
	SeenTTL  time.Duration // how long identical text is suppressed
}

// Validate checks the scanner settings and the schedule.
func (c Config) Validate() error {
	if c.BundleID == "" {
		return fmt.Errorf("bundle id is required")
	}
	if c.MaxDepth < 1 {
		return fmt.Errorf("max depth must be at least 1, got %d", c.MaxDepth)
	}
	if c.SeenTTL <= 0 {
		return fmt.Errorf("seen ttl must be positive, got %s", c.SeenTTL)
	}
	return c.Schedule.Validate()
}

// Deps are the scanner's collaborators.
type Deps struct {
	Tree        Tree
	Permissions Permissions
	Shower      notification.Shower
}

// Status is a snapshot for status reporting.
type Status struct {
	Running   bool
	Phase     schedule.Phase
	Observing bool
	Seen      int
	LastScan  time.Time
	LastError string
	ErrorCode cerrors.ErrorCode
	Sightings int64
}

// Scanner polls the renderer's windows for banners.
type Scanner struct {
	cfg   Config
	deps  Deps
	log   zerolog.Logger
	seen  *SeenSet
	sched *schedule.Scheduler

	sightings  atomic.Int64
	onActivity atomic.Pointer[func()]

	mu          sync.Mutex
	proc        Process
	observing   bool // set between Start and Stop
	stopObserve func()
	lastScan    time.Time
	lastErr     error
}

// New creates a stopped scanner.
func New(cfg Config, deps Deps, log zerolog.Logger) (*Scanner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scanner config: %w", err)
	}
	if deps.Tree == nil || deps.Permissions == nil || deps.Shower == nil {
		return nil, fmt.Errorf("scanner: tree, permissions and shower are required")
	}

	s := &Scanner{
		cfg:  cfg,
		deps: deps,
		log:  log.With().Str("component", "scanner").Logger(),
		seen: NewSeenSet(cfg.SeenTTL),
	}
	sched, err := schedule.New("banner", cfg.Schedule, s.ScanOnce, s.log)
	if err != nil {
		return nil, err
	}
	s.sched = sched
	return s, nil
}

// OnActivity registers a hook called for every new banner sighting.
func (s *Scanner) OnActivity(fn func()) {
	s.onActivity.Store(&fn)
}

// Start arms the scanner. Without accessibility access it asks for it and
// returns a permission error without arming. Change observation is best
// effort; polling runs either way.
func (s *Scanner) Start(ctx context.Context) error {
	if !s.deps.Permissions.HasAccessibilityAccess() {
		s.deps.Tree.RequestAccess()
		err := cerrors.NewPermissionDenied("scanner.start", "accessibility")
		s.setErr(err)
		s.log.Warn().Err(err).Msg("accessibility access not granted, scanner not started")
		return err
	}

	s.mu.Lock()
	s.observing = true
	s.mu.Unlock()
	if proc, err := s.process(); err != nil {
		s.log.Warn().Err(err).Str("bundle", s.cfg.BundleID).Msg("renderer process not found, will retry on scan")
	} else if !s.Observing() {
		s.observe(proc)
	}

	s.sched.Start(ctx)
	s.log.Info().Bool("observing", s.Observing()).Msg("scanner started")
	return nil
}

// Stop disarms the scheduler, removes the change observer and clears the
// seen set.
func (s *Scanner) Stop() {
	s.sched.Stop()

	s.mu.Lock()
	stop := s.stopObserve
	s.stopObserve = nil
	s.observing = false
	s.proc = nil
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
	s.seen.Close()
	s.log.Info().Msg("scanner stopped")
}

// ForceActive promotes the scanner's scheduler to its active rate.
func (s *Scanner) ForceActive() {
	s.sched.ForceActive()
}

// Seen returns the dedup set.
func (s *Scanner) Seen() *SeenSet {
	return s.seen
}

// Observing reports whether push change events are registered.
func (s *Scanner) Observing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopObserve != nil
}

// Status returns a snapshot of the scanner.
func (s *Scanner) Status() Status {
	st := s.sched.State()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := Status{
		Running:   s.sched.Running(),
		Phase:     st.Phase,
		Observing: s.stopObserve != nil,
		Seen:      s.seen.Len(),
		LastScan:  s.lastScan,
		Sightings: s.sightings.Load(),
	}
	if s.lastErr != nil {
		out.LastError = s.lastErr.Error()
		out.ErrorCode = cerrors.CodeOf(s.lastErr)
	}
	return out
}

// ScanOnce walks the renderer's windows once and reports whether a banner
// not seen within the TTL was found.
func (s *Scanner) ScanOnce(ctx context.Context) bool {
	proc, err := s.process()
	if err != nil {
		s.setErr(err)
		s.log.Debug().Err(err).Msg("renderer process unavailable")
		return false
	}
	screen, err := s.deps.Tree.Screen()
	if err != nil {
		s.setErr(err)
		s.log.Debug().Err(err).Msg("screen bounds unavailable")
		return false
	}
	windows, err := proc.Windows()
	if err != nil {
		// The process may have restarted; locate it again next time.
		s.forgetProcess()
		s.setErr(err)
		s.log.Debug().Err(err).Msg("window enumeration failed")
		return false
	}
	s.setErr(nil)

	activity := false
	for _, w := range windows {
		if ctx.Err() != nil {
			break
		}
		frame, err := w.Frame()
		if err != nil || !IsBanner(frame, screen) {
			continue
		}
		sight := Derive(collectText(w, 0, s.cfg.MaxDepth, nil))
		if sight.Empty() {
			continue
		}
		if !s.seen.Add(sight.Title, sight.Body) {
			continue
		}
		activity = true
		s.report(sight)
	}
	return activity
}

func (s *Scanner) report(sight Sighting) {
	s.sightings.Add(1)
	s.log.Info().Str("app", sight.App).Str("title", sight.Title).Msg("banner sighted")
	s.deps.Shower.Show(notification.Notification{
		AppID:  sight.App,
		Title:  sight.Title,
		Body:   sight.Body,
		Source: notification.SourceBanner,
	})
	if fn := s.onActivity.Load(); fn != nil && *fn != nil {
		(*fn)()
	}
}

// process returns the cached renderer process, locating it if needed. A
// newly located process gets a change observer while the scanner runs.
func (s *Scanner) process() (Process, error) {
	s.mu.Lock()
	proc := s.proc
	s.mu.Unlock()
	if proc != nil {
		return proc, nil
	}

	proc, err := s.deps.Tree.Process(s.cfg.BundleID)
	if err != nil {
		return nil, fmt.Errorf("locate %s: %w", s.cfg.BundleID, err)
	}
	s.mu.Lock()
	if s.proc != nil {
		proc = s.proc
		s.mu.Unlock()
		return proc, nil
	}
	s.proc = proc
	want := s.observing && s.stopObserve == nil
	s.mu.Unlock()
	if want {
		s.observe(proc)
	}
	return proc, nil
}

func (s *Scanner) forgetProcess() {
	s.mu.Lock()
	stop := s.stopObserve
	s.proc = nil
	s.stopObserve = nil
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// observe registers for change events; each event promotes the scheduler.
func (s *Scanner) observe(proc Process) {
	stop, err := proc.Observe(s.sched.ForceActive)
	if err != nil {
		s.log.Debug().Err(err).Msg("change observation unavailable, polling only")
		return
	}
	s.mu.Lock()
	if !s.observing || s.stopObserve != nil {
		// stopped meanwhile, or another registration won
		s.mu.Unlock()
		stop()
		return
	}
	s.stopObserve = stop
	s.mu.Unlock()
}

func (s *Scanner) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastScan = time.Now()
	s.lastErr = err
}
