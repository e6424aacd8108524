package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePruner struct {
	mu      sync.Mutex
	cutoffs []time.Time
	n       int64
	err     error
}

func (f *fakePruner) PruneExpired(_ context.Context, olderThan time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, olderThan)
	return f.n, f.err
}

func (f *fakePruner) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cutoffs)
}

func TestRetention_RunOnceUsesCutoff(t *testing.T) {
	p := &fakePruner{n: 4}
	r, err := NewRetention("@every 24h", 48*time.Hour, p, zerolog.Nop())
	require.NoError(t, err)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	n, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	require.Len(t, p.cutoffs, 1)
	assert.Equal(t, now.Add(-48*time.Hour), p.cutoffs[0])

	last, count, lastErr := r.Last()
	assert.Equal(t, now, last)
	assert.Equal(t, int64(4), count)
	assert.NoError(t, lastErr)
}

func TestRetention_PruneError(t *testing.T) {
	p := &fakePruner{err: errors.New("disk full")}
	r, err := NewRetention("@daily", time.Hour, p, zerolog.Nop())
	require.NoError(t, err)

	_, err = r.RunOnce(context.Background())
	assert.ErrorContains(t, err, "disk full")
	_, _, lastErr := r.Last()
	assert.Error(t, lastErr)
}

func TestRetention_DisabledNeverPrunes(t *testing.T) {
	p := &fakePruner{}
	r, err := NewRetention("not a schedule", 0, p, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, r.Start(context.Background()))
	defer r.Stop()
	n, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, p.calls())
}

func TestRetention_InvalidSchedule(t *testing.T) {
	_, err := NewRetention("every now and then", time.Hour, &fakePruner{}, zerolog.Nop())
	assert.Error(t, err)

	_, err = NewRetention("@daily", -time.Hour, &fakePruner{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestRetention_CronRunsJob(t *testing.T) {
	p := &fakePruner{}
	r, err := NewRetention("@every 1s", time.Hour, p, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, r.Start(context.Background()))
	assert.Eventually(t, func() bool { return p.calls() >= 1 }, 3*time.Second, 20*time.Millisecond)
	r.Stop()
	r.Stop()
}
