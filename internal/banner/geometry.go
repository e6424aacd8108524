// Package banner detects transient notification banners by walking the
// accessibility tree of the process that renders them.
package banner

// Rect is a rectangle in screen coordinates with the origin at the
// bottom-left corner.
type Rect struct {
	X, Y, W, H float64
}

const (
	maxBannerHeight = 200 // banners are short
	topBand         = 200 // and anchored to the top edge
	rightBand       = 600 // and to the right edge
)

// IsBanner reports whether window looks like a transient banner on screen.
// The full notification panel is too tall and ordinary windows sit away from
// the top-right corner.
func IsBanner(window, screen Rect) bool {
	return window.H < maxBannerHeight &&
		window.Y > screen.H-topBand &&
		window.X > screen.W-rightBand
}

// FromTopLeft converts a frame measured from the top-left corner, as the
// accessibility API reports it, into bottom-left screen coordinates.
func FromTopLeft(x, y, w, h, screenH float64) Rect {
	return Rect{X: x, Y: screenH - y - h, W: w, H: h}
}
