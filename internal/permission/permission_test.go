package permission

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/runnerr0/afterglow/internal/banner"
	"github.com/runnerr0/afterglow/internal/banner/bannertest"
	"github.com/runnerr0/afterglow/internal/source"
	"github.com/runnerr0/afterglow/internal/source/sourcetest"
)

func TestChecker_ReadAccess(t *testing.T) {
	h := sourcetest.New(t)
	c := NewChecker(source.NewLocator([]string{h.Path}), banner.Unsupported{})
	assert.True(t, c.HasReadAccess())
	assert.False(t, c.HasAccessibilityAccess())
}

func TestChecker_NoStore(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "db2", "db")
	c := NewChecker(source.NewLocator([]string{missing}), nil)
	assert.Equal(t, Report{}, c.Check())
}

func TestChecker_AccessibilityFromTree(t *testing.T) {
	tree := bannertest.New()
	c := NewChecker(nil, tree)
	assert.True(t, c.HasAccessibilityAccess())

	tree.SetTrusted(false)
	assert.False(t, c.HasAccessibilityAccess())
	assert.False(t, c.HasReadAccess())
}
