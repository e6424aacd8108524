package schedule

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// CheckFunc runs one detection cycle and reports whether it saw activity.
type CheckFunc func(ctx context.Context) bool

// Scheduler drives a Machine with one-shot timers. At most one timer is
// pending at any time and checks never overlap.
type Scheduler struct {
	name  string
	check CheckFunc
	log   zerolog.Logger

	mu      sync.Mutex
	m       *Machine
	ctx     context.Context
	timer   *time.Timer
	gen     uint64
	running bool
	busy    bool

	inflight sync.WaitGroup
}

// New creates a stopped scheduler in the idle phase.
func New(name string, cfg Config, check CheckFunc, log zerolog.Logger) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scheduler %s: %w", name, err)
	}
	if check == nil {
		return nil, fmt.Errorf("scheduler %s: nil check function", name)
	}
	return &Scheduler{
		name:  name,
		check: check,
		log:   log.With().Str("scheduler", name).Logger(),
		m:     NewMachine(cfg),
	}, nil
}

// Start arms the first tick at the current interval. Calling Start on a
// running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.ctx = ctx
	s.armLocked(s.m.State().Interval)
	s.log.Debug().Dur("interval", s.m.State().Interval).Msg("scheduler started")
}

// Stop disarms the pending timer and waits for an in-flight check to
// return. No check starts after Stop returns. Must not be called from
// inside the check function.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	s.inflight.Wait()
	s.log.Debug().Msg("scheduler stopped")
}

// ForceActive promotes the scheduler to the active phase immediately. When
// no check is running the pending timer is replaced by one at the active
// interval; otherwise the running check re-arms on completion. A timer
// already pending in the active phase is kept, so a burst of promotions
// cannot postpone the next check.
func (s *Scheduler) ForceActive() {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.m.State().Phase
	d := s.m.Promote()
	if s.running && !s.busy && (prev != Active || s.timer == nil) {
		s.armLocked(d)
	}
	if prev != Active {
		s.log.Debug().Str("from", prev.String()).Msg("promoted to active")
	}
}

// Tick runs one cycle synchronously and returns the next interval. A
// running scheduler is re-armed at that interval.
func (s *Scheduler) Tick(ctx context.Context) time.Duration {
	activity := s.run(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.m.Step(activity)
	if s.running && !s.busy {
		s.armLocked(d)
	}
	return d
}

// State returns a snapshot of the underlying machine.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.State()
}

// Running reports whether the scheduler is armed.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// armLocked replaces any pending timer. Caller holds s.mu.
func (s *Scheduler) armLocked(d time.Duration) {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timer = time.AfterFunc(d, func() { s.fire(gen) })
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if !s.running || gen != s.gen || s.busy {
		s.mu.Unlock()
		return
	}
	s.busy = true
	s.timer = nil
	ctx := s.ctx
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	activity := s.run(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if !s.running {
		return
	}
	before := s.m.State().Phase
	d := s.m.Step(activity)
	if after := s.m.State().Phase; after != before {
		s.log.Debug().Str("from", before.String()).Str("to", after.String()).Dur("interval", d).Msg("phase change")
	}
	s.armLocked(d)
}

// run invokes the check, converting a panic into a quiet cycle so the
// scheduler keeps ticking.
func (s *Scheduler) run(ctx context.Context) (activity bool) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Str("stack", string(debug.Stack())).Msg("check panicked")
			activity = false
		}
	}()
	if ctx == nil {
		ctx = context.Background()
	}
	return s.check(ctx)
}
