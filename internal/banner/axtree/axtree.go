// Package axtree reads the macOS accessibility tree for the banner scanner.
// Builds for other platforms, or without cgo, get a tree that never has
// access.
package axtree

import "fmt"

// axError is an AXError result code.
type axError int

const (
	errSuccess               axError = 0
	errFailure               axError = -25200
	errIllegalArgument       axError = -25201
	errInvalidUIElement      axError = -25202
	errInvalidObserver       axError = -25203
	errCannotComplete        axError = -25204
	errAttributeUnsupported  axError = -25205
	errActionUnsupported     axError = -25206
	errNotificationUnsupport axError = -25207
	errNotImplemented        axError = -25208
	errAlreadyRegistered     axError = -25209
	errNotRegistered         axError = -25210
	errAPIDisabled           axError = -25211
	errNoValue               axError = -25212
)

var axErrorNames = map[axError]string{
	errFailure:               "failure",
	errIllegalArgument:       "illegal argument",
	errInvalidUIElement:      "invalid element",
	errInvalidObserver:       "invalid observer",
	errCannotComplete:        "cannot complete",
	errAttributeUnsupported:  "attribute unsupported",
	errActionUnsupported:     "action unsupported",
	errNotificationUnsupport: "notification unsupported",
	errNotImplemented:        "not implemented",
	errAlreadyRegistered:     "notification already registered",
	errNotRegistered:         "notification not registered",
	errAPIDisabled:           "accessibility API disabled",
	errNoValue:               "no value",
}

func (e axError) Error() string {
	if name, ok := axErrorNames[e]; ok {
		return "ax: " + name
	}
	return fmt.Sprintf("ax: error %d", int(e))
}

// check turns a result code into an error, nil on success.
func check(code int) error {
	if axError(code) == errSuccess {
		return nil
	}
	return axError(code)
}
