// Package bannertest provides an in-memory accessibility tree.
package bannertest

import (
	"errors"
	"sync"

	"github.com/runnerr0/afterglow/internal/banner"
)

// Node is a fake accessibility element.
type Node struct {
	Rect     banner.Rect
	Value    string
	Kids     []*Node
	FrameErr error
}

func (n *Node) Frame() (banner.Rect, error) {
	if n.FrameErr != nil {
		return banner.Rect{}, n.FrameErr
	}
	return n.Rect, nil
}

func (n *Node) Text() (string, error) { return n.Value, nil }

func (n *Node) Children() ([]banner.Element, error) {
	out := make([]banner.Element, len(n.Kids))
	for i, k := range n.Kids {
		out[i] = k
	}
	return out, nil
}

// Window builds a window at frame whose leaves carry texts.
func Window(frame banner.Rect, texts ...string) *Node {
	w := &Node{Rect: frame}
	for _, t := range texts {
		w.Kids = append(w.Kids, &Node{Value: t})
	}
	return w
}

// Tree is a fake accessibility tree with a single renderer process.
type Tree struct {
	ScreenRect banner.Rect

	mu         sync.Mutex
	trusted    bool
	requested  int
	windows    []*Node
	missing    bool
	windowsErr error
	observable bool
	observer   func()
	observes   int
}

// New returns a trusted tree with a 1920x1080 screen and no windows.
func New() *Tree {
	return &Tree{ScreenRect: banner.Rect{W: 1920, H: 1080}, trusted: true}
}

// SetTrusted changes the accessibility grant.
func (t *Tree) SetTrusted(v bool) {
	t.mu.Lock()
	t.trusted = v
	t.mu.Unlock()
}

// SetWindows replaces the renderer's windows.
func (t *Tree) SetWindows(w ...*Node) {
	t.mu.Lock()
	t.windows = w
	t.mu.Unlock()
}

// SetMissing makes process lookup fail.
func (t *Tree) SetMissing(v bool) {
	t.mu.Lock()
	t.missing = v
	t.mu.Unlock()
}

// SetWindowsErr makes window enumeration fail with err until cleared.
func (t *Tree) SetWindowsErr(err error) {
	t.mu.Lock()
	t.windowsErr = err
	t.mu.Unlock()
}

// Observes returns how many change observers were registered.
func (t *Tree) Observes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.observes
}

// SetObservable makes Observe succeed.
func (t *Tree) SetObservable(v bool) {
	t.mu.Lock()
	t.observable = v
	t.mu.Unlock()
}

// Requests returns how many times access was requested.
func (t *Tree) Requests() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.requested
}

// Emit fires the registered change observer, if any.
func (t *Tree) Emit() bool {
	t.mu.Lock()
	fn := t.observer
	t.mu.Unlock()
	if fn == nil {
		return false
	}
	fn()
	return true
}

// HasAccessibilityAccess lets the tree double as the permission collaborator.
func (t *Tree) HasAccessibilityAccess() bool { return t.Trusted() }

func (t *Tree) Trusted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.trusted
}

func (t *Tree) RequestAccess() {
	t.mu.Lock()
	t.requested++
	t.mu.Unlock()
}

func (t *Tree) Process(string) (banner.Process, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.missing {
		return nil, errors.New("process not running")
	}
	return process{t}, nil
}

func (t *Tree) Screen() (banner.Rect, error) { return t.ScreenRect, nil }

type process struct{ t *Tree }

func (p process) Windows() ([]banner.Element, error) {
	p.t.mu.Lock()
	defer p.t.mu.Unlock()
	if p.t.windowsErr != nil {
		return nil, p.t.windowsErr
	}
	out := make([]banner.Element, len(p.t.windows))
	for i, w := range p.t.windows {
		out[i] = w
	}
	return out, nil
}

func (p process) Observe(fn func()) (func(), error) {
	p.t.mu.Lock()
	defer p.t.mu.Unlock()
	if !p.t.observable {
		return nil, banner.ErrUnsupported
	}
	p.t.observer = fn
	p.t.observes++
	return func() {
		p.t.mu.Lock()
		p.t.observer = nil
		p.t.mu.Unlock()
	}, nil
}
