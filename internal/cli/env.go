package cli

import (
	"github.com/runnerr0/afterglow/internal/banner"
	"github.com/runnerr0/afterglow/internal/banner/axtree"
	"github.com/runnerr0/afterglow/internal/config"
	"github.com/runnerr0/afterglow/internal/permission"
	"github.com/runnerr0/afterglow/internal/source"
)

// accessibilityTree returns the platform accessibility tree. Builds without
// a native backend report no access, which leaves the scanner disabled.
var accessibilityTree = axtree.New

// environment is the read side of the operating system the capture
// commands share.
type environment struct {
	locator *source.Locator
	history *source.Store
	tree    banner.Tree
	perms   *permission.Checker
}

func newEnvironment(cfg *config.Config) environment {
	candidates := cfg.Source.Candidates
	if len(candidates) == 0 {
		candidates = source.DefaultCandidates()
	}
	loc := source.NewLocator(candidates)
	tree := accessibilityTree()
	return environment{
		locator: loc,
		history: source.NewStore(loc),
		tree:    tree,
		perms:   permission.NewChecker(loc, tree),
	}
}
