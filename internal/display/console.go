// Package display presents captured notifications on a terminal.
package display

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/runnerr0/afterglow/internal/notification"
)

// Config controls the popup rate.
type Config struct {
	RatePerSec int  // sustained items per second
	Burst      int  // items allowed at once
	Quiet      bool // count items without printing them
}

// Console prints one line per notification. Items over the rate limit are
// dropped, not queued.
type Console struct {
	out     io.Writer
	log     zerolog.Logger
	limiter *rate.Limiter
	quiet   bool
	now     func() time.Time

	mu      sync.Mutex
	shown   atomic.Int64
	dropped atomic.Int64
}

// NewConsole creates a console display writing to out.
func NewConsole(out io.Writer, cfg Config, log zerolog.Logger) *Console {
	rps := max(1, cfg.RatePerSec)
	burst := max(1, cfg.Burst)
	return &Console{
		out:     out,
		log:     log.With().Str("component", "display").Logger(),
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		quiet:   cfg.Quiet,
		now:     time.Now,
	}
}

// Show implements notification.Shower.
func (c *Console) Show(item notification.Notification) {
	if !c.limiter.Allow() {
		c.dropped.Add(1)
		c.log.Debug().Str("app", item.AppID).Str("title", item.Title).Msg("display throttled, item dropped")
		return
	}
	c.shown.Add(1)
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintln(c.out, Format(item, c.now())); err != nil {
		c.log.Warn().Err(err).Msg("display write failed")
	}
}

// Shown returns how many items were displayed.
func (c *Console) Shown() int64 { return c.shown.Load() }

// Dropped returns how many items were throttled.
func (c *Console) Dropped() int64 { return c.dropped.Load() }

// Format renders a notification as a single line. Banner sightings have no
// delivery time, so now is used instead.
func Format(item notification.Notification, now time.Time) string {
	ts := item.Timestamp
	if ts.IsZero() {
		ts = now
	}

	var b strings.Builder
	b.WriteString(ts.Local().Format("15:04:05"))
	b.WriteString(" [")
	b.WriteString(string(item.Source))
	b.WriteString("]")
	if item.AppID != "" {
		b.WriteString(" ")
		b.WriteString(item.AppID)
	}
	if item.Title != "" {
		b.WriteString(" | ")
		b.WriteString(oneLine(item.Title))
	}
	if item.Subtitle != "" {
		b.WriteString(" (")
		b.WriteString(oneLine(item.Subtitle))
		b.WriteString(")")
	}
	if item.Body != "" {
		b.WriteString(": ")
		b.WriteString(oneLine(item.Body))
	}
	if len(item.Image) > 0 {
		b.WriteString(" [image]")
	}
	return b.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
