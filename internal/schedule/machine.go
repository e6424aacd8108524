// Package schedule implements the adaptive polling scheduler shared by both
// detectors: a pure state machine that picks the next interval from recent
// activity, and a timer driver around it.
package schedule

import (
	"fmt"
	"time"
)

// Phase is the coarse polling regime.
type Phase int

const (
	Idle Phase = iota
	Active
	Cooldown
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case Cooldown:
		return "cooldown"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Config holds the intervals of one scheduler instance.
type Config struct {
	Idle            time.Duration
	Active          time.Duration
	Cooldown        []time.Duration // ascending
	MaxActiveCycles int
}

// Validate checks that the intervals are usable.
func (c Config) Validate() error {
	if c.Idle <= 0 {
		return fmt.Errorf("idle interval must be positive, got %s", c.Idle)
	}
	if c.Active <= 0 {
		return fmt.Errorf("active interval must be positive, got %s", c.Active)
	}
	if c.MaxActiveCycles < 1 {
		return fmt.Errorf("max active cycles must be at least 1, got %d", c.MaxActiveCycles)
	}
	for i, d := range c.Cooldown {
		if d <= 0 {
			return fmt.Errorf("cooldown interval %d must be positive, got %s", i, d)
		}
		if i > 0 && d < c.Cooldown[i-1] {
			return fmt.Errorf("cooldown intervals must be ascending: %s after %s", d, c.Cooldown[i-1])
		}
	}
	return nil
}

// State is a snapshot of a Machine.
type State struct {
	Phase        Phase
	ActiveCycles int // consecutive quiet cycles while Active
	Step         int // index into Config.Cooldown while in Cooldown
	Interval     time.Duration
}

// Machine is the scheduler state machine. It has no clock and no locking;
// Scheduler serializes access to it.
type Machine struct {
	cfg   Config
	state State
}

// NewMachine returns a machine in the idle phase.
func NewMachine(cfg Config) *Machine {
	return &Machine{
		cfg:   cfg,
		state: State{Phase: Idle, Interval: cfg.Idle},
	}
}

// State returns the current snapshot.
func (m *Machine) State() State { return m.state }

// Step applies the transition for one completed cycle and returns the
// interval until the next one.
func (m *Machine) Step(activity bool) time.Duration {
	if activity {
		return m.Promote()
	}

	switch m.state.Phase {
	case Active:
		m.state.ActiveCycles++
		if m.state.ActiveCycles >= m.cfg.MaxActiveCycles {
			m.enterCooldown()
		}
	case Cooldown:
		m.state.Step++
		if m.state.Step < len(m.cfg.Cooldown) {
			m.state.Interval = m.cfg.Cooldown[m.state.Step]
		} else {
			m.state = State{Phase: Idle, Interval: m.cfg.Idle}
		}
	case Idle:
	}
	return m.state.Interval
}

// Promote moves the machine to Active from any phase and resets the quiet
// cycle counter.
func (m *Machine) Promote() time.Duration {
	m.state = State{Phase: Active, Interval: m.cfg.Active}
	return m.state.Interval
}

func (m *Machine) enterCooldown() {
	if len(m.cfg.Cooldown) == 0 {
		m.state = State{Phase: Idle, Interval: m.cfg.Idle}
		return
	}
	m.state = State{Phase: Cooldown, Step: 0, Interval: m.cfg.Cooldown[0]}
}
