package capture

import (
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type countingPromoter struct{ n atomic.Int32 }

func (c *countingPromoter) ForceActive() { c.n.Add(1) }

func TestCoordinator_BannerPromotesPoller(t *testing.T) {
	p, s := &countingPromoter{}, &countingPromoter{}
	c := NewCoordinator(p, s, false, zerolog.Nop())

	c.BannerActivity()
	assert.Equal(t, int32(1), p.n.Load())
	assert.Equal(t, int32(0), s.n.Load())
	assert.Equal(t, int64(1), c.Promotions())
}

func TestCoordinator_HistoryPromotesScannerOnlyWhenReversed(t *testing.T) {
	p, s := &countingPromoter{}, &countingPromoter{}

	NewCoordinator(p, s, false, zerolog.Nop()).HistoryActivity()
	assert.Equal(t, int32(0), s.n.Load())

	NewCoordinator(p, s, true, zerolog.Nop()).HistoryActivity()
	assert.Equal(t, int32(1), s.n.Load())
	assert.Equal(t, int32(0), p.n.Load())
}

func TestCoordinator_StoreChangePromotesPoller(t *testing.T) {
	p := &countingPromoter{}
	c := NewCoordinator(p, nil, true, zerolog.Nop())

	c.StoreChanged()
	c.StoreChanged()
	assert.Equal(t, int32(2), p.n.Load())
}

func TestCoordinator_NilTargets(t *testing.T) {
	c := NewCoordinator(nil, nil, true, zerolog.Nop())
	assert.NotPanics(t, func() {
		c.BannerActivity()
		c.HistoryActivity()
		c.StoreChanged()
	})
	assert.Equal(t, int64(0), c.Promotions())
}
