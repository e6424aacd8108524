package banner_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/afterglow/internal/banner"
	"github.com/runnerr0/afterglow/internal/banner/bannertest"
	cerrors "github.com/runnerr0/afterglow/internal/errors"
	"github.com/runnerr0/afterglow/internal/notification"
	"github.com/runnerr0/afterglow/internal/schedule"
)

var screen = banner.Rect{W: 1920, H: 1080}

func TestIsBanner(t *testing.T) {
	tests := []struct {
		name   string
		window banner.Rect
		want   bool
	}{
		{"top right banner", banner.Rect{X: 1400, Y: 950, W: 300, H: 100}, true},
		{"too low", banner.Rect{X: 1400, Y: 100, W: 300, H: 100}, false},
		{"too tall", banner.Rect{X: 1400, Y: 950, W: 300, H: 900}, false},
		{"too far left", banner.Rect{X: 1200, Y: 950, W: 300, H: 100}, false},
		{"height at limit", banner.Rect{X: 1400, Y: 950, W: 300, H: 200}, false},
		{"y at limit", banner.Rect{X: 1400, Y: 880, W: 300, H: 100}, false},
		{"x at limit", banner.Rect{X: 1320, Y: 950, W: 300, H: 100}, false},
		{"just inside", banner.Rect{X: 1321, Y: 881, W: 300, H: 199}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, banner.IsBanner(tt.window, screen))
		})
	}
}

func TestFromTopLeft(t *testing.T) {
	screen := banner.Rect{W: 1920, H: 1080}

	// a banner 16pt below the top edge of the screen
	r := banner.FromTopLeft(1500, 16, 380, 80, screen.H)
	assert.Equal(t, banner.Rect{X: 1500, Y: 984, W: 380, H: 80}, r)
	assert.True(t, banner.IsBanner(r, screen))

	// the same window near the bottom edge
	low := banner.FromTopLeft(1500, 980, 380, 80, screen.H)
	assert.Equal(t, 20.0, low.Y)
	assert.False(t, banner.IsBanner(low, screen))
}

func TestDerive(t *testing.T) {
	tests := []struct {
		name  string
		texts []string
		want  banner.Sighting
	}{
		{"empty", nil, banner.Sighting{}},
		{"only center label", []string{"Notification Center"}, banner.Sighting{}},
		{"one", []string{"Hello"}, banner.Sighting{Title: "Hello"}},
		{"two", []string{"App", "Hello"}, banner.Sighting{Title: "App", Body: "Hello"}},
		{"three", []string{"Mail", "Bob", "Lunch?"}, banner.Sighting{App: "Mail", Title: "Bob", Body: "Lunch?"}},
		{"remainder joined", []string{"Mail", "Bob", "Lunch?", "At noon"}, banner.Sighting{App: "Mail", Title: "Bob", Body: "Lunch? At noon"}},
		{"label filtered", []string{"Notification Center", "App", "Hello"}, banner.Sighting{Title: "App", Body: "Hello"}},
		{"blanks dropped", []string{" ", "App", "", "Hello"}, banner.Sighting{Title: "App", Body: "Hello"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, banner.Derive(tt.texts))
		})
	}
}

func TestSeenSet_AddAndExpire(t *testing.T) {
	s := banner.NewSeenSet(30 * time.Millisecond)
	defer s.Close()

	assert.True(t, s.Add("App", "Hello"))
	assert.False(t, s.Add("App", "Hello"))
	assert.True(t, s.Add("App", "Other"))
	assert.Equal(t, 2, s.Len())

	assert.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
	assert.True(t, s.Add("App", "Hello"))
}

func TestSeenSet_Close(t *testing.T) {
	s := banner.NewSeenSet(time.Hour)
	s.Add("a", "b")
	s.Close()
	assert.Zero(t, s.Len())
	assert.False(t, s.Contains("a", "b"))
}

type display struct {
	mu    sync.Mutex
	items []notification.Notification
}

func (d *display) Show(n notification.Notification) {
	d.mu.Lock()
	d.items = append(d.items, n)
	d.mu.Unlock()
}

func (d *display) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}

func scannerConfig(ttl time.Duration) banner.Config {
	return banner.Config{
		Schedule: schedule.Config{
			Idle:            time.Hour,
			Active:          time.Hour,
			Cooldown:        []time.Duration{time.Hour},
			MaxActiveCycles: 2,
		},
		BundleID: banner.RendererBundleID,
		MaxDepth: 10,
		SeenTTL:  ttl,
	}
}

func newScanner(t *testing.T, tree *bannertest.Tree, ttl time.Duration) (*banner.Scanner, *display) {
	t.Helper()
	out := &display{}
	s, err := banner.New(scannerConfig(ttl), banner.Deps{Tree: tree, Permissions: tree, Shower: out}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(s.Stop)
	return s, out
}

func bannerFrame() banner.Rect {
	return banner.Rect{X: 1400, Y: 950, W: 300, H: 100}
}

func TestScanner_DedupWithinTTL(t *testing.T) {
	tree := bannertest.New()
	tree.SetWindows(bannertest.Window(bannerFrame(), "App", "Hello"))
	s, out := newScanner(t, tree, 50*time.Millisecond)
	ctx := context.Background()

	require.True(t, s.ScanOnce(ctx))
	require.Equal(t, 1, out.count())
	assert.Equal(t, "App", out.items[0].Title)
	assert.Equal(t, "Hello", out.items[0].Body)
	assert.Equal(t, notification.SourceBanner, out.items[0].Source)
	assert.Empty(t, out.items[0].ID)

	assert.False(t, s.ScanOnce(ctx))
	assert.Equal(t, 1, out.count())

	assert.Eventually(t, func() bool { return s.Seen().Len() == 0 }, time.Second, 5*time.Millisecond)
	assert.True(t, s.ScanOnce(ctx))
	assert.Equal(t, 2, out.count())
}

func TestScanner_IgnoresNonBannerWindows(t *testing.T) {
	tree := bannertest.New()
	panel := bannertest.Window(banner.Rect{X: 1500, Y: 0, W: 400, H: 1080}, "Notification Center", "Old", "Stuff")
	tree.SetWindows(panel)
	s, out := newScanner(t, tree, time.Hour)

	assert.False(t, s.ScanOnce(context.Background()))
	assert.Zero(t, out.count())
}

func TestScanner_UnreadableFrameFailsClosed(t *testing.T) {
	tree := bannertest.New()
	broken := bannertest.Window(bannerFrame(), "Ghost")
	broken.FrameErr = errors.New("attribute unsupported")
	good := bannertest.Window(bannerFrame(), "Real", "One")
	tree.SetWindows(broken, good)
	s, out := newScanner(t, tree, time.Hour)

	assert.True(t, s.ScanOnce(context.Background()))
	require.Equal(t, 1, out.count())
	assert.Equal(t, "Real", out.items[0].Title)
}

// chain hangs a leaf carrying text depth levels below parent.
func chain(parent *bannertest.Node, depth int, text string) {
	cur := parent
	for i := 1; i < depth; i++ {
		next := &bannertest.Node{}
		cur.Kids = append(cur.Kids, next)
		cur = next
	}
	cur.Kids = append(cur.Kids, &bannertest.Node{Value: text})
}

func TestScanner_DepthLimit(t *testing.T) {
	tree := bannertest.New()
	w := &bannertest.Node{Rect: bannerFrame()}
	chain(w, 12, "too deep")
	chain(w, 1, "shallow")
	tree.SetWindows(w)
	s, out := newScanner(t, tree, time.Hour)

	assert.True(t, s.ScanOnce(context.Background()))
	require.Equal(t, 1, out.count())
	assert.Equal(t, "shallow", out.items[0].Title)
	assert.Empty(t, out.items[0].Body)
}

func TestScanner_DepthLimitBoundary(t *testing.T) {
	tree := bannertest.New()
	w := &bannertest.Node{Rect: bannerFrame()}
	// MaxDepth is 10 with the window at level 0, so level 9 is the last read
	chain(w, 9, "edge")
	chain(w, 10, "beyond")
	tree.SetWindows(w)
	s, out := newScanner(t, tree, time.Hour)

	assert.True(t, s.ScanOnce(context.Background()))
	require.Equal(t, 1, out.count())
	assert.Equal(t, "edge", out.items[0].Title)
	assert.Empty(t, out.items[0].Body)
}

func TestScanner_PermissionDenied(t *testing.T) {
	tree := bannertest.New()
	tree.SetTrusted(false)
	s, _ := newScanner(t, tree, time.Hour)

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.True(t, cerrors.Is(err, cerrors.ErrPermissionDenied))
	assert.Equal(t, 1, tree.Requests())
	assert.False(t, s.Status().Running)
}

func TestScanner_StartWithoutObservation(t *testing.T) {
	tree := bannertest.New()
	s, _ := newScanner(t, tree, time.Hour)

	require.NoError(t, s.Start(context.Background()))
	st := s.Status()
	assert.True(t, st.Running)
	assert.False(t, st.Observing)
	assert.Equal(t, schedule.Idle, st.Phase)
}

func TestScanner_ChangeEventPromotes(t *testing.T) {
	tree := bannertest.New()
	tree.SetObservable(true)
	s, _ := newScanner(t, tree, time.Hour)

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.Status().Observing)

	require.True(t, tree.Emit())
	assert.Equal(t, schedule.Active, s.Status().Phase)

	s.Stop()
	assert.False(t, tree.Emit())
}

func TestScanner_ReobservesAfterEnumerationFailure(t *testing.T) {
	tree := bannertest.New()
	tree.SetObservable(true)
	s, _ := newScanner(t, tree, time.Hour)
	ctx := context.Background()

	require.NoError(t, s.Start(ctx))
	require.True(t, s.Status().Observing)
	assert.Equal(t, 1, tree.Observes())

	tree.SetWindowsErr(errors.New("invalid element"))
	assert.False(t, s.ScanOnce(ctx))
	assert.False(t, s.Status().Observing)
	assert.False(t, tree.Emit())

	tree.SetWindowsErr(nil)
	s.ScanOnce(ctx)
	assert.True(t, s.Status().Observing)
	assert.Equal(t, 2, tree.Observes())
	require.True(t, tree.Emit())
	assert.Equal(t, schedule.Active, s.Status().Phase)
}

func TestScanner_NoObserverWhenStopped(t *testing.T) {
	tree := bannertest.New()
	tree.SetObservable(true)
	s, _ := newScanner(t, tree, time.Hour)

	s.ScanOnce(context.Background())
	assert.False(t, s.Status().Observing)
	assert.Zero(t, tree.Observes())
}

func TestScanner_MissingProcessRetried(t *testing.T) {
	tree := bannertest.New()
	tree.SetMissing(true)
	tree.SetWindows(bannertest.Window(bannerFrame(), "Hi"))
	s, out := newScanner(t, tree, time.Hour)

	require.NoError(t, s.Start(context.Background()))
	assert.False(t, s.ScanOnce(context.Background()))
	assert.NotEmpty(t, s.Status().LastError)

	tree.SetMissing(false)
	assert.True(t, s.ScanOnce(context.Background()))
	assert.Equal(t, 1, out.count())
	assert.Empty(t, s.Status().LastError)
}

func TestScanner_ActivityHook(t *testing.T) {
	tree := bannertest.New()
	tree.SetWindows(bannertest.Window(bannerFrame(), "App", "Hello"))
	s, _ := newScanner(t, tree, time.Hour)

	calls := 0
	s.OnActivity(func() { calls++ })
	s.ScanOnce(context.Background())
	s.ScanOnce(context.Background())
	assert.Equal(t, 1, calls)
}

func TestUnsupportedTree(t *testing.T) {
	var tree banner.Unsupported
	assert.False(t, tree.Trusted())
	_, err := tree.Process(banner.RendererBundleID)
	assert.ErrorIs(t, err, banner.ErrUnsupported)
}

func TestConfig_Validate(t *testing.T) {
	cfg := scannerConfig(time.Second)
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.MaxDepth = 0
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.BundleID = ""
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.SeenTTL = 0
	assert.Error(t, bad.Validate())
}
