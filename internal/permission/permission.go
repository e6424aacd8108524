// Package permission answers the two access questions the detectors ask
// before they start.
package permission

import (
	"context"
	"time"

	"github.com/runnerr0/afterglow/internal/banner"
	"github.com/runnerr0/afterglow/internal/source"
)

const probeTimeout = 5 * time.Second

// Checker reports read access to the history database and accessibility
// access to the banner renderer.
type Checker struct {
	Locator *source.Locator
	Tree    banner.Tree
}

// NewChecker creates a Checker.
func NewChecker(loc *source.Locator, tree banner.Tree) *Checker {
	return &Checker{Locator: loc, Tree: tree}
}

// HasReadAccess reports whether the history database can be located and
// opened. Without full disk access the OS refuses the open even though the
// file exists.
func (c *Checker) HasReadAccess() bool {
	if c.Locator == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	path, err := c.Locator.Path(ctx)
	if err != nil {
		return false
	}
	return source.Readable(path) == nil
}

// HasAccessibilityAccess reports whether the accessibility tree is readable.
func (c *Checker) HasAccessibilityAccess() bool {
	if c.Tree == nil {
		return false
	}
	return c.Tree.Trusted()
}

// Report is a snapshot of both grants.
type Report struct {
	ReadAccess          bool `json:"read_access"`
	AccessibilityAccess bool `json:"accessibility_access"`
}

// Check evaluates both grants.
func (c *Checker) Check() Report {
	return Report{
		ReadAccess:          c.HasReadAccess(),
		AccessibilityAccess: c.HasAccessibilityAccess(),
	}
}
