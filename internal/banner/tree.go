package banner

import (
	"errors"
	"strings"
)

// RendererBundleID is the process that draws notification banners.
const RendererBundleID = "com.apple.notificationcenterui"

// Tree is the accessibility API as seen by the scanner.
type Tree interface {
	// Trusted reports whether this process may read the tree.
	Trusted() bool
	// RequestAccess asks the user to grant accessibility access.
	RequestAccess()
	// Process finds a running application by bundle identifier.
	Process(bundleID string) (Process, error)
	// Screen returns the bounds of the main screen.
	Screen() (Rect, error)
}

// Process is one application in the accessibility tree.
type Process interface {
	Windows() ([]Element, error)
	// Observe registers fn for tree-change events. The returned function
	// removes the registration. Backends without push events return an error.
	Observe(fn func()) (stop func(), err error)
}

// Element is a node of the accessibility tree.
type Element interface {
	Frame() (Rect, error)
	// Text returns the element's value, or its title when it has no value.
	Text() (string, error)
	Children() ([]Element, error)
}

// ErrUnsupported is returned by trees that cannot reach the OS API.
var ErrUnsupported = errors.New("accessibility tree not supported on this platform")

// Unsupported is a Tree that never has access. It is used where no native
// accessibility backend is compiled in.
type Unsupported struct{}

func (Unsupported) Trusted() bool                   { return false }
func (Unsupported) RequestAccess()                  {}
func (Unsupported) Process(string) (Process, error) { return nil, ErrUnsupported }
func (Unsupported) Screen() (Rect, error)           { return Rect{}, ErrUnsupported }

const centerLabel = "Notification Center"

// Sighting is the text recovered from one banner window.
type Sighting struct {
	App   string
	Title string
	Body  string
}

// Empty reports whether no text was recovered.
func (s Sighting) Empty() bool {
	return s.Title == "" && s.Body == ""
}

// Derive assigns collected banner strings to fields by position, after
// dropping the panel's own label: one string is a title, two are title and
// body, three or more are app, title and body with the rest appended.
func Derive(texts []string) Sighting {
	kept := make([]string, 0, len(texts))
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if t == "" || t == centerLabel {
			continue
		}
		kept = append(kept, t)
	}

	switch len(kept) {
	case 0:
		return Sighting{}
	case 1:
		return Sighting{Title: kept[0]}
	case 2:
		return Sighting{Title: kept[0], Body: kept[1]}
	default:
		return Sighting{App: kept[0], Title: kept[1], Body: strings.Join(kept[2:], " ")}
	}
}

// collectText gathers the text of leaf elements below el, depth first,
// visiting at most maxDepth levels with el at depth 0. Unreadable subtrees
// are skipped.
func collectText(el Element, depth, maxDepth int, out []string) []string {
	if depth >= maxDepth {
		return out
	}
	children, err := el.Children()
	if err != nil {
		return out
	}
	if len(children) == 0 {
		if t, err := el.Text(); err == nil && t != "" {
			out = append(out, t)
		}
		return out
	}
	for _, c := range children {
		out = collectText(c, depth+1, maxDepth, out)
	}
	return out
}
