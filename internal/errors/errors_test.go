package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissionDenied(t *testing.T) {
	err := NewPermissionDenied("scanner.start", "accessibility")

	assert.Equal(t, ErrPermissionDenied, err.Code)
	assert.Equal(t, "PERMISSION_DENIED: scanner.start: accessibility permission not granted", err.Error())
}

func TestStoreUnavailable_Unwrap(t *testing.T) {
	cause := stderrors.New("no such file")
	err := NewStoreUnavailable("poller.poll", cause)

	assert.True(t, stderrors.Is(err, cause))
	assert.Contains(t, err.Error(), "no such file")
}

func TestIs_ThroughWrapping(t *testing.T) {
	err := fmt.Errorf("cold read: %w", NewQueryFailure("source.ids", stderrors.New("disk I/O error")))

	assert.True(t, Is(err, ErrQueryFailure))
	assert.False(t, Is(err, ErrStoreUnavailable))
}

func TestIs_PlainError(t *testing.T) {
	assert.False(t, Is(stderrors.New("plain"), ErrQueryFailure))
	assert.False(t, Is(nil, ErrQueryFailure))
}

func TestCodeOf(t *testing.T) {
	require.Equal(t, ErrDecodeFailure, CodeOf(NewDecodeFailure("abc")))
	require.Equal(t, ErrorCode(""), CodeOf(stderrors.New("x")))
}
