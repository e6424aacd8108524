package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode classifies a capture failure.
type ErrorCode string

const (
	ErrPermissionDenied ErrorCode = "PERMISSION_DENIED" // fatal to starting a detector
	ErrStoreUnavailable ErrorCode = "STORE_UNAVAILABLE" // cycle skipped, next tick retries
	ErrQueryFailure     ErrorCode = "QUERY_FAILURE"     // cycle skipped, next tick retries
	ErrDecodeFailure    ErrorCode = "DECODE_FAILURE"    // per row, never propagated past the poller
)

// CaptureError is a classified error with the operation that produced it.
type CaptureError struct {
	Code    ErrorCode
	Op      string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *CaptureError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s: %s", e.Code, e.Op, e.Message)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *CaptureError) Unwrap() error { return e.Err }

// NewPermissionDenied reports a missing OS permission.
func NewPermissionDenied(op, permission string) *CaptureError {
	return &CaptureError{
		Code:    ErrPermissionDenied,
		Op:      op,
		Message: fmt.Sprintf("%s permission not granted", permission),
	}
}

// NewStoreUnavailable reports that no readable notification store was found.
func NewStoreUnavailable(op string, err error) *CaptureError {
	return &CaptureError{
		Code:    ErrStoreUnavailable,
		Op:      op,
		Message: "notification store not found or not readable",
		Err:     err,
	}
}

// NewQueryFailure reports an open or query error against the notification store.
func NewQueryFailure(op string, err error) *CaptureError {
	return &CaptureError{
		Code:    ErrQueryFailure,
		Op:      op,
		Message: "query failed",
		Err:     err,
	}
}

// NewDecodeFailure reports a payload that no strategy could decode.
func NewDecodeFailure(id string) *CaptureError {
	return &CaptureError{
		Code:    ErrDecodeFailure,
		Message: fmt.Sprintf("no usable content in record %s", id),
	}
}

// Is checks if err (or anything it wraps) is a CaptureError with the given code.
func Is(err error, code ErrorCode) bool {
	var cErr *CaptureError
	if stderrors.As(err, &cErr) {
		return cErr.Code == code
	}
	return false
}

// CodeOf returns the code of the first CaptureError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var cErr *CaptureError
	if stderrors.As(err, &cErr) {
		return cErr.Code
	}
	return ""
}
