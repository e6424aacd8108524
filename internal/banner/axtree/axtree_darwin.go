//go:build darwin && cgo

package axtree

/*
#cgo LDFLAGS: -framework AppKit -framework ApplicationServices
#include <stdlib.h>
#include "axtree_darwin.h"
*/
import "C"

import (
	"fmt"
	"runtime"
	"runtime/cgo"
	"sync"
	"unsafe"

	"github.com/runnerr0/afterglow/internal/banner"
)

// messagingTimeout bounds every call into the renderer, in seconds.
const messagingTimeout = 1.0

// Tree is the live accessibility tree.
type Tree struct {
	loopOnce sync.Once
	loop     C.uintptr_t
}

// New returns the native accessibility tree.
func New() banner.Tree {
	return &Tree{}
}

func (t *Tree) Trusted() bool { return bool(C.ag_trusted()) }

func (t *Tree) RequestAccess() { C.ag_request_access() }

func (t *Tree) Process(bundleID string) (banner.Process, error) {
	cs := C.CString(bundleID)
	defer C.free(unsafe.Pointer(cs))

	pid := C.ag_pid_for_bundle(cs)
	if pid < 0 {
		return nil, fmt.Errorf("%s is not running", bundleID)
	}
	ref := C.ag_app_element(pid, messagingTimeout)
	if ref == 0 {
		return nil, fmt.Errorf("no accessibility element for pid %d", int(pid))
	}
	return &process{tree: t, pid: pid, app: retained(ref)}, nil
}

func (t *Tree) Screen() (banner.Rect, error) {
	var w, h C.double
	C.ag_main_screen(&w, &h)
	if w <= 0 || h <= 0 {
		return banner.Rect{}, fmt.Errorf("main display has no bounds")
	}
	return banner.Rect{W: float64(w), H: float64(h)}, nil
}

// runLoop starts the thread that delivers observer callbacks.
func (t *Tree) runLoop() C.uintptr_t {
	t.loopOnce.Do(func() {
		ready := make(chan C.uintptr_t)
		go func() {
			runtime.LockOSThread()
			ready <- C.ag_runloop()
			C.ag_run()
		}()
		t.loop = <-ready
	})
	return t.loop
}

// ref owns one retained accessibility reference, released when collected.
type ref struct {
	p C.uintptr_t
}

func retained(p C.uintptr_t) *ref {
	r := &ref{p: p}
	runtime.AddCleanup(r, func(p C.uintptr_t) { C.ag_release(p) }, p)
	return r
}

type process struct {
	tree *Tree
	pid  C.int
	app  *ref
}

func (p *process) Windows() ([]banner.Element, error) {
	screen, err := p.tree.Screen()
	if err != nil {
		return nil, err
	}
	return elements(p.app, 0, screen.H)
}

func (p *process) Observe(fn func()) (func(), error) {
	loop := p.tree.runLoop()
	h := cgo.NewHandle(fn)
	var obs C.uintptr_t
	if err := check(int(C.ag_observe(p.pid, p.app.p, C.uintptr_t(h), loop, &obs))); err != nil {
		h.Delete()
		return nil, fmt.Errorf("observe pid %d: %w", int(p.pid), err)
	}
	app := p.app
	var once sync.Once
	return func() {
		once.Do(func() {
			C.ag_unobserve(obs, loop)
			h.Delete()
			runtime.KeepAlive(app)
		})
	}, nil
}

//export agObserverFired
func agObserverFired(h C.uintptr_t) {
	if fn, ok := cgo.Handle(h).Value().(func()); ok {
		fn()
	}
}

type element struct {
	ref     *ref
	screenH float64
}

// elements lists the windows (which 0) or children (which 1) of parent.
func elements(parent *ref, which C.int, screenH float64) ([]banner.Element, error) {
	var list *C.uintptr_t
	var n C.long
	err := check(int(C.ag_elements(parent.p, which, &list, &n)))
	runtime.KeepAlive(parent)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	defer C.free(unsafe.Pointer(list))

	out := make([]banner.Element, 0, int(n))
	for _, p := range unsafe.Slice(list, int(n)) {
		out = append(out, &element{ref: retained(p), screenH: screenH})
	}
	return out, nil
}

func (e *element) Frame() (banner.Rect, error) {
	var x, y, w, h C.double
	err := check(int(C.ag_frame(e.ref.p, &x, &y, &w, &h)))
	runtime.KeepAlive(e.ref)
	if err != nil {
		return banner.Rect{}, err
	}
	return banner.FromTopLeft(float64(x), float64(y), float64(w), float64(h), e.screenH), nil
}

func (e *element) Text() (string, error) {
	var cs *C.char
	err := check(int(C.ag_text(e.ref.p, &cs)))
	runtime.KeepAlive(e.ref)
	if err != nil {
		return "", err
	}
	if cs == nil {
		return "", nil
	}
	defer C.free(unsafe.Pointer(cs))
	return C.GoString(cs), nil
}

func (e *element) Children() ([]banner.Element, error) {
	return elements(e.ref, 1, e.screenH)
}
