package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/afterglow/internal/decode/archivetest"
)

func writePayload(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestDecode_RequiresFile(t *testing.T) {
	cmd := &DecodeCommand{globals: &GlobalFlags{}}
	err := cmd.Execute(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one payload file")
}

func TestDecode_KeyedArchive(t *testing.T) {
	payload, err := archivetest.Notification("Build finished", "All 12 checks passed")
	require.NoError(t, err)
	path := writePayload(t, "payload.bin", payload)

	cmd := &DecodeCommand{globals: &GlobalFlags{}}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.Execute([]string{path}))
	})
	assert.Contains(t, output, "Strategy:  keyed-archive")
	assert.Contains(t, output, "Title:     Build finished")
	assert.Contains(t, output, "Body:      All 12 checks passed")
}

func TestDecode_Unreadable(t *testing.T) {
	path := writePayload(t, "garbage.bin", []byte("just some text"))

	cmd := &DecodeCommand{globals: &GlobalFlags{}}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.Execute([]string{path}))
	})
	assert.Contains(t, output, "no title or body found")
}

func TestDecode_MissingFile(t *testing.T) {
	cmd := &DecodeCommand{globals: &GlobalFlags{}}
	err := cmd.Execute([]string{filepath.Join(t.TempDir(), "nope.bin")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read payload")
}

func TestDecode_JSON(t *testing.T) {
	payload, err := archivetest.Notification("Hi", "There")
	require.NoError(t, err)
	good := writePayload(t, "good.bin", payload)
	raw := writePayload(t, "raw.txt", []byte(`prefix {"alert": {"title": "Plain", "body": "text"}} suffix`))

	cmd := &DecodeCommand{globals: &GlobalFlags{JSON: true}}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.Execute([]string{good, raw}))
	})

	var out []decodeResult
	require.NoError(t, json.Unmarshal([]byte(output), &out))
	require.Len(t, out, 2)
	assert.Equal(t, "keyed-archive", out[0].Strategy)
	assert.Equal(t, "Hi", out[0].Title)
	assert.Equal(t, "raw", out[1].Strategy)
	assert.Equal(t, "Plain", out[1].Title)
	assert.Equal(t, "text", out[1].Body)
}
