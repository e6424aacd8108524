// Package poller watches the notification history database for new records
// by diffing record ids against a bounded set of known ids.
package poller

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/runnerr0/afterglow/internal/decode"
	cerrors "github.com/runnerr0/afterglow/internal/errors"
	"github.com/runnerr0/afterglow/internal/notification"
	"github.com/runnerr0/afterglow/internal/schedule"
	"github.com/runnerr0/afterglow/internal/source"
)

// Source is the read side of the history database.
type Source interface {
	RecentIDs(ctx context.Context, limit int) ([]string, error)
	Rows(ctx context.Context, limit int) ([]source.Row, error)
}

// Permissions reports whether the history database may be read.
type Permissions interface {
	HasReadAccess() bool
}

// Config tunes the poller.
type Config struct {
	Schedule     schedule.Config
	QueryLimit   int // ids fetched per cycle
	KnownCeiling int // max size of the known-id set
	FetchBuffer  int // extra rows fetched beyond the number of new ids
}

// Validate checks the poller limits and the schedule.
func (c Config) Validate() error {
	if c.QueryLimit < 1 {
		return fmt.Errorf("query limit must be at least 1, got %d", c.QueryLimit)
	}
	if c.KnownCeiling < c.QueryLimit {
		return fmt.Errorf("known-id ceiling %d is below the query limit %d", c.KnownCeiling, c.QueryLimit)
	}
	if c.FetchBuffer < 0 {
		return fmt.Errorf("fetch buffer must not be negative, got %d", c.FetchBuffer)
	}
	return c.Schedule.Validate()
}

// Deps are the poller's collaborators.
type Deps struct {
	Source      Source
	Permissions Permissions
	Saver       notification.Saver
	Shower      notification.Shower
}

// Status is a snapshot for status reporting.
type Status struct {
	Running   bool
	Phase     schedule.Phase
	Known     int
	LastPoll  time.Time
	LastError string
	ErrorCode cerrors.ErrorCode
	Delivered int64
}

// Poller detects new history records and hands them to the collaborators.
type Poller struct {
	cfg   Config
	deps  Deps
	log   zerolog.Logger
	known *KnownSet
	sched *schedule.Scheduler

	seeded     atomic.Bool
	delivered  atomic.Int64
	onActivity atomic.Pointer[func()]

	// cycle serializes the diff half of a poll with cold reads and resets,
	// so no tick diffs against a set that is cleared but not yet reseeded.
	cycle sync.Mutex

	mu       sync.Mutex
	lastPoll time.Time
	lastErr  error

	work sync.WaitGroup
}

// New creates a stopped poller.
func New(cfg Config, deps Deps, log zerolog.Logger) (*Poller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("poller config: %w", err)
	}
	if deps.Source == nil || deps.Saver == nil || deps.Shower == nil || deps.Permissions == nil {
		return nil, fmt.Errorf("poller: source, permissions, saver and shower are required")
	}

	p := &Poller{
		cfg:   cfg,
		deps:  deps,
		log:   log.With().Str("component", "poller").Logger(),
		known: NewKnownSet(cfg.KnownCeiling),
	}
	sched, err := schedule.New("history", cfg.Schedule, p.PollOnce, p.log)
	if err != nil {
		return nil, err
	}
	p.sched = sched
	return p, nil
}

// OnActivity registers a hook called after new notifications were delivered.
func (p *Poller) OnActivity(fn func()) {
	p.onActivity.Store(&fn)
}

// Start checks read access, seeds the known set from a cold read and arms
// the scheduler at the idle rate. Without read access nothing is armed.
func (p *Poller) Start(ctx context.Context) error {
	if !p.deps.Permissions.HasReadAccess() {
		err := cerrors.NewPermissionDenied("poller.start", "full disk access")
		p.setErr(err)
		p.log.Warn().Err(err).Msg("history database not readable, poller not started")
		return err
	}

	if _, err := p.ColdRead(ctx); err != nil {
		// Ticks retry the cold read until it succeeds.
		p.log.Warn().Err(err).Msg("cold read failed")
	}
	p.sched.Start(ctx)
	p.log.Info().Int("known", p.known.Len()).Msg("poller started")
	return nil
}

// Stop disarms the scheduler. Deliveries already in flight still finish.
func (p *Poller) Stop() {
	p.sched.Stop()
	p.log.Info().Msg("poller stopped")
}

// ForceActive promotes the poller's scheduler to its active rate.
func (p *Poller) ForceActive() {
	p.sched.ForceActive()
}

// Reset forgets every known id and repeats the cold read.
func (p *Poller) Reset(ctx context.Context) error {
	p.cycle.Lock()
	defer p.cycle.Unlock()

	p.seeded.Store(false)
	p.known.Clear()
	if r, ok := p.deps.Source.(interface{ Relocate() }); ok {
		r.Relocate()
	}
	if _, err := p.coldRead(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	p.log.Info().Int("known", p.known.Len()).Msg("known ids reset")
	return nil
}

// Wait blocks until background deliveries have finished.
func (p *Poller) Wait() {
	p.work.Wait()
}

// Known returns the known-id set.
func (p *Poller) Known() *KnownSet {
	return p.known
}

// Status returns a snapshot of the poller.
func (p *Poller) Status() Status {
	st := p.sched.State()
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Status{
		Running:   p.sched.Running(),
		Phase:     st.Phase,
		Known:     p.known.Len(),
		LastPoll:  p.lastPoll,
		Delivered: p.delivered.Load(),
	}
	if p.lastErr != nil {
		s.LastError = p.lastErr.Error()
		s.ErrorCode = cerrors.CodeOf(p.lastErr)
	}
	return s
}

// PollOnce runs one detection cycle and reports whether new ids appeared.
// The known set is updated before the content fetch is dispatched, so the
// next cycle sees the new ids even while this one is still decoding.
func (p *Poller) PollOnce(ctx context.Context) bool {
	p.cycle.Lock()
	defer p.cycle.Unlock()

	if !p.seeded.Load() {
		if _, err := p.coldRead(ctx); err != nil {
			p.log.Debug().Err(err).Msg("cold read retry failed")
		}
		return false
	}

	ids, err := p.deps.Source.RecentIDs(ctx, p.cfg.QueryLimit)
	if err != nil {
		p.setErr(err)
		p.log.Warn().Err(err).Msg("id query failed, skipping cycle")
		return false
	}
	p.setErr(nil)

	fresh := p.known.Diff(ids)
	if len(fresh) == 0 {
		return false
	}
	p.log.Debug().Int("new", len(fresh)).Int("known", p.known.Len()).Msg("new history records")

	bg := context.WithoutCancel(ctx)
	p.work.Add(1)
	go func() {
		defer p.work.Done()
		p.deliver(bg, fresh)
	}()
	return true
}

// deliver fetches, decodes and hands off the records in fresh.
func (p *Poller) deliver(ctx context.Context, fresh []string) {
	rows, err := p.deps.Source.Rows(ctx, len(fresh)+p.cfg.FetchBuffer)
	if err != nil {
		p.setErr(err)
		p.log.Warn().Err(err).Int("new", len(fresh)).Msg("content fetch failed")
		return
	}

	want := make(map[string]struct{}, len(fresh))
	for _, id := range fresh {
		want[id] = struct{}{}
	}
	var filtered []source.Row
	for _, r := range rows {
		if _, ok := want[r.ID]; ok {
			filtered = append(filtered, r)
		}
	}

	items := p.decodeRows(filtered)
	if len(items) == 0 {
		return
	}

	if err := p.deps.Saver.SaveAll(ctx, items); err != nil {
		p.log.Error().Err(err).Int("count", len(items)).Msg("saving notifications failed")
	}
	p.deps.Shower.Show(items[0])
	p.delivered.Add(int64(len(items)))
	p.log.Info().Int("count", len(items)).Str("app", items[0].AppID).Msg("captured notifications")

	if fn := p.onActivity.Load(); fn != nil && *fn != nil {
		(*fn)()
	}
}

// ColdRead seeds the known set with every recent id, including records
// that will decode empty, then saves everything decodable without showing
// it. It returns the number of items handed to the saver.
func (p *Poller) ColdRead(ctx context.Context) (int, error) {
	p.cycle.Lock()
	defer p.cycle.Unlock()
	return p.coldRead(ctx)
}

func (p *Poller) coldRead(ctx context.Context) (int, error) {
	ids, err := p.deps.Source.RecentIDs(ctx, p.cfg.QueryLimit)
	if err != nil {
		p.setErr(err)
		return 0, fmt.Errorf("cold read ids: %w", err)
	}
	p.known.Seed(ids)
	p.seeded.Store(true)
	p.setErr(nil)

	rows, err := p.deps.Source.Rows(ctx, p.cfg.QueryLimit)
	if err != nil {
		p.setErr(err)
		return 0, fmt.Errorf("cold read rows: %w", err)
	}
	items := p.decodeRows(rows)
	if len(items) == 0 {
		return 0, nil
	}
	if err := p.deps.Saver.SaveAll(ctx, items); err != nil {
		return 0, fmt.Errorf("cold read save: %w", err)
	}
	p.log.Info().Int("ids", len(ids)).Int("saved", len(items)).Msg("cold read complete")
	return len(items), nil
}

// decodeRows decodes payloads and drops records with neither title nor
// body. The result is ordered newest first.
func (p *Poller) decodeRows(rows []source.Row) []notification.Notification {
	items := make([]notification.Notification, 0, len(rows))
	for _, r := range rows {
		c := decode.Decode(r.Data)
		if c.Empty() {
			p.log.Debug().Err(cerrors.NewDecodeFailure(r.ID)).Str("app", r.AppID).Msg("dropping record")
			continue
		}
		items = append(items, notification.Notification{
			ID:        r.ID,
			AppID:     r.AppID,
			Title:     c.Title,
			Subtitle:  c.Subtitle,
			Body:      c.Body,
			Timestamp: r.Delivered,
			Image:     c.Image,
			Source:    notification.SourceHistory,
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timestamp.After(items[j].Timestamp)
	})
	return items
}

func (p *Poller) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastPoll = time.Now()
	p.lastErr = err
}
