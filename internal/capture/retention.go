package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Pruner deletes archived notifications delivered before a cutoff.
type Pruner interface {
	PruneExpired(ctx context.Context, olderThan time.Time) (int64, error)
}

// Retention runs the archive prune on a cron schedule.
type Retention struct {
	spec   string
	keep   time.Duration
	pruner Pruner
	log    zerolog.Logger
	now    func() time.Time

	mu        sync.Mutex
	c         *cron.Cron
	ctx       context.Context
	lastRun   time.Time
	lastCount int64
	lastErr   error
}

// NewRetention validates spec (standard cron or a descriptor such as
// "@every 24h"). A zero keep disables pruning.
func NewRetention(spec string, keep time.Duration, pruner Pruner, log zerolog.Logger) (*Retention, error) {
	if keep < 0 {
		return nil, fmt.Errorf("retention period must not be negative, got %s", keep)
	}
	if keep > 0 {
		if pruner == nil {
			return nil, fmt.Errorf("retention: pruner is required")
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			return nil, fmt.Errorf("parsing retention schedule %q: %w", spec, err)
		}
	}
	return &Retention{
		spec:   spec,
		keep:   keep,
		pruner: pruner,
		log:    log.With().Str("component", "retention").Logger(),
		now:    time.Now,
	}, nil
}

// Start registers the prune job. It is a no-op when pruning is disabled or
// the job is already running.
func (r *Retention) Start(ctx context.Context) error {
	if r.keep == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c != nil {
		return nil
	}
	c := cron.New(cron.WithLocation(time.Local))
	if _, err := c.AddFunc(r.spec, func() { r.RunOnce(r.context()) }); err != nil {
		return fmt.Errorf("adding retention job: %w", err)
	}
	r.ctx = ctx
	r.c = c
	c.Start()
	r.log.Info().Str("schedule", r.spec).Dur("keep", r.keep).Msg("retention job started")
	return nil
}

// Stop unregisters the job and waits for a running prune to finish.
func (r *Retention) Stop() {
	r.mu.Lock()
	c := r.c
	r.c = nil
	r.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// RunOnce prunes everything delivered before now minus the retention period.
func (r *Retention) RunOnce(ctx context.Context) (int64, error) {
	if r.keep == 0 {
		return 0, nil
	}
	cutoff := r.now().Add(-r.keep)
	n, err := r.pruner.PruneExpired(ctx, cutoff)

	r.mu.Lock()
	r.lastRun = r.now()
	r.lastCount = n
	r.lastErr = err
	r.mu.Unlock()

	if err != nil {
		r.log.Error().Err(err).Msg("prune failed")
		return 0, fmt.Errorf("pruning archive: %w", err)
	}
	if n > 0 {
		r.log.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("pruned archive")
	}
	return n, nil
}

// Last returns the time and result of the most recent prune.
func (r *Retention) Last() (time.Time, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRun, r.lastCount, r.lastErr
}

func (r *Retention) context() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx == nil {
		return context.Background()
	}
	return r.ctx
}
