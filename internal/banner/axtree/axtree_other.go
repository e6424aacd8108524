//go:build !darwin || !cgo

package axtree

import "github.com/runnerr0/afterglow/internal/banner"

// New returns a tree without access; this build has no native backend.
func New() banner.Tree {
	return banner.Unsupported{}
}
