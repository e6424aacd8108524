package capture

import (
	"context"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	watchBackoffBase = 500 * time.Millisecond
	watchBackoffMax  = 30 * time.Second
)

// StoreWatcher turns file system writes to the history database into
// change hints. Hints only speed polling up; polling stays the baseline
// when the watcher cannot run.
type StoreWatcher struct {
	resolve  func(ctx context.Context) (string, error)
	onChange func()
	limit    *rate.Limiter
	log      zerolog.Logger

	watching atomic.Bool
	hints    atomic.Int64

	readyOnce sync.Once
	ready     chan struct{}
}

// NewStoreWatcher creates a watcher. resolve returns the database path and
// is retried with backoff until it succeeds. onChange is called at most
// once per minGap.
func NewStoreWatcher(resolve func(ctx context.Context) (string, error), onChange func(), minGap time.Duration, log zerolog.Logger) *StoreWatcher {
	return &StoreWatcher{
		resolve:  resolve,
		onChange: onChange,
		limit:    rate.NewLimiter(rate.Every(minGap), 1),
		log:      log.With().Str("component", "watcher").Logger(),
		ready:    make(chan struct{}),
	}
}

// Ready is closed once the first watch is established.
func (w *StoreWatcher) Ready() <-chan struct{} { return w.ready }

// Watching reports whether a watch is currently established.
func (w *StoreWatcher) Watching() bool { return w.watching.Load() }

// Hints returns how many change hints were forwarded.
func (w *StoreWatcher) Hints() int64 { return w.hints.Load() }

// Run watches until ctx is done. A broken watcher is recreated with a
// jittered exponential backoff.
func (w *StoreWatcher) Run(ctx context.Context) {
	backoff := watchBackoffBase
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	wait := func() bool {
		d := backoff + time.Duration(rng.Int63n(int64(backoff/2)+1))
		if backoff < watchBackoffMax {
			backoff = min(backoff*2, watchBackoffMax)
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(d):
			return true
		}
	}

	for ctx.Err() == nil {
		path, err := w.resolve(ctx)
		if err != nil {
			w.log.Debug().Err(err).Msg("store path not resolved")
			if !wait() {
				return
			}
			continue
		}

		fw, err := fsnotify.NewWatcher()
		if err != nil {
			w.log.Warn().Err(err).Msg("watch init failed")
			if !wait() {
				return
			}
			continue
		}
		dir := filepath.Dir(path)
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			w.log.Warn().Err(err).Str("dir", dir).Msg("watch add failed")
			if !wait() {
				return
			}
			continue
		}

		backoff = watchBackoffBase
		w.watching.Store(true)
		w.readyOnce.Do(func() { close(w.ready) })
		w.log.Debug().Str("dir", dir).Msg("watching store")

		w.loop(ctx, fw, filepath.Base(path))

		w.watching.Store(false)
		_ = fw.Close()
		if ctx.Err() != nil {
			return
		}
		w.log.Warn().Str("dir", dir).Msg("store watcher stopped, restarting")
		if !wait() {
			return
		}
	}
}

// loop returns when ctx is done or the watcher breaks.
func (w *StoreWatcher) loop(ctx context.Context, fw *fsnotify.Watcher, base string) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 || !storeFile(filepath.Base(ev.Name), base) {
				continue
			}
			if w.limit.Allow() {
				w.hints.Add(1)
				w.onChange()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			if err == nil {
				continue
			}
			// Missed events only cost latency; the poll catches up.
			if strings.Contains(strings.ToLower(err.Error()), "overflow") {
				w.log.Debug().Err(err).Msg("watch overflow")
				continue
			}
			w.log.Warn().Err(err).Msg("watch error")
		}
	}
}

// storeFile matches the database file and its write-ahead log.
func storeFile(name, base string) bool {
	return name == base || name == base+"-wal"
}
