// Package capture supervises both detectors and the jobs around them: the
// cross-source coordinator, the history store watcher and the archive
// retention job.
package capture

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Promoter is a detector whose scheduler can be forced into the active phase.
type Promoter interface {
	ForceActive()
}

// Coordinator turns activity seen by one detector into faster polling of
// the other. It holds no state beyond counters.
type Coordinator struct {
	poller  Promoter
	scanner Promoter
	reverse bool
	log     zerolog.Logger

	promotions atomic.Int64
}

// NewCoordinator wires banner activity to the poller. With reverse set, new
// history records also promote the scanner. Either promoter may be nil when
// its detector is disabled.
func NewCoordinator(poller, scanner Promoter, reverse bool, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		poller:  poller,
		scanner: scanner,
		reverse: reverse,
		log:     log.With().Str("component", "coordinator").Logger(),
	}
}

// BannerActivity is the scanner's activity hook. A banner on screen means a
// history record is about to land.
func (c *Coordinator) BannerActivity() {
	c.promote(c.poller, "banner")
}

// HistoryActivity is the poller's activity hook.
func (c *Coordinator) HistoryActivity() {
	if c.reverse {
		c.promote(c.scanner, "history")
	}
}

// StoreChanged is the store watcher's hook.
func (c *Coordinator) StoreChanged() {
	c.promote(c.poller, "store")
}

// Promotions returns how many promotions have been forwarded.
func (c *Coordinator) Promotions() int64 { return c.promotions.Load() }

func (c *Coordinator) promote(target Promoter, cause string) {
	if target == nil {
		return
	}
	target.ForceActive()
	c.promotions.Add(1)
	c.log.Trace().Str("cause", cause).Msg("promoted")
}
