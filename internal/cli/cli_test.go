package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionFlag(t *testing.T) {
	var err error
	output := captureOutput(t, func() {
		err = RunWithArgs("0.1.0-test", []string{"--version"})
	})

	assert.NoError(t, err)
	assert.Contains(t, output, "afterglow 0.1.0-test")
}

func TestVersionOutputFormat(t *testing.T) {
	output := captureOutput(t, func() {
		_ = RunWithArgs("1.2.3", []string{"--version"})
	})
	assert.Equal(t, "afterglow 1.2.3", strings.TrimSpace(output))
}

func TestAllSubcommandsExist(t *testing.T) {
	expected := []string{"watch", "status", "search", "open", "decode", "backfill", "prune", "purge"}
	parser, _, _ := buildParser("test")

	for _, name := range expected {
		cmd := parser.Find(name)
		assert.NotNil(t, cmd, "subcommand %q should exist", name)
	}
}

func TestSubcommandsRecognized(t *testing.T) {
	cases := [][]string{
		{"watch"},
		{"status"},
		{"search", "test query"},
		{"open", "--id", "abc"},
		{"decode", "payload.bin"},
		{"backfill"},
		{"prune"},
		{"purge", "--all"},
	}
	for _, args := range cases {
		t.Run(args[0], func(t *testing.T) {
			_, _, err := parseOnly(t, args...)
			assert.NoError(t, err)
		})
	}
}

func TestUnknownSubcommandFails(t *testing.T) {
	_, _, err := parseOnly(t, "nonexistent")
	require.Error(t, err)
}

func TestHelpFlagDoesNotError(t *testing.T) {
	captureOutput(t, func() {
		err := RunWithArgs("test", []string{"--help"})
		assert.NoError(t, err)
	})
}

func TestOpenRequiresID(t *testing.T) {
	err := RunWithArgs("test", []string{"open"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--id is required")
}

func TestPurgeRequiresAll(t *testing.T) {
	err := RunWithArgs("test", []string{"purge"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "purge requires --all flag")
}

func TestDecodeRequiresFile(t *testing.T) {
	err := RunWithArgs("test", []string{"decode"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one payload file")
}

func TestGlobalFlags(t *testing.T) {
	globals, _, err := parseOnly(t, "--json", "--verbose", "--config", "/tmp/test.yaml", "--db-path", "/tmp/a.db", "status")
	require.NoError(t, err)
	assert.True(t, globals.JSON)
	assert.True(t, globals.Verbose)
	assert.Equal(t, "/tmp/test.yaml", globals.Config)
	assert.Equal(t, "/tmp/a.db", globals.DBPath)
}

func TestSearchFlagsDefaults(t *testing.T) {
	_, c, err := parseOnly(t, "search", "my query")
	require.NoError(t, err)

	assert.Equal(t, "30d", c.Search.Since)
	assert.Equal(t, 20, c.Search.Limit)
	assert.Equal(t, 0, c.Search.Offset)
}

func TestSearchAppFlagRepeatable(t *testing.T) {
	_, c, err := parseOnly(t, "search", "--app", "com.a", "--app", "com.b", "--source", "banner", "query")
	require.NoError(t, err)
	assert.Equal(t, []string{"com.a", "com.b"}, c.Search.App)
	assert.Equal(t, "banner", c.Search.Source)
}

func TestWatchFlags(t *testing.T) {
	_, c, err := parseOnly(t, "watch", "--quiet", "--no-scanner", "--log-level", "debug")
	require.NoError(t, err)
	assert.True(t, c.Watch.Quiet)
	assert.True(t, c.Watch.NoScanner)
	assert.False(t, c.Watch.NoPoller)
	assert.Equal(t, "debug", c.Watch.LogLevel)
}

func TestOpenFlags(t *testing.T) {
	_, c, err := parseOnly(t, "open", "--id", "abc", "--format", "json", "--save-image", "/tmp/x.png")
	require.NoError(t, err)
	assert.Equal(t, "abc", c.Open.ID)
	assert.Equal(t, "json", c.Open.Format)
	assert.Equal(t, "/tmp/x.png", c.Open.SaveImage)
}

func TestPruneAndPurgeFlags(t *testing.T) {
	_, c, err := parseOnly(t, "prune", "--dry-run", "--older-than", "7d")
	require.NoError(t, err)
	assert.True(t, c.Prune.DryRun)
	assert.Equal(t, "7d", c.Prune.OlderThan)

	_, c, err = parseOnly(t, "purge", "--all", "--force")
	require.NoError(t, err)
	assert.True(t, c.Purge.All)
	assert.True(t, c.Purge.Force)
}

func TestBackfillLimitDefault(t *testing.T) {
	_, c, err := parseOnly(t, "backfill")
	require.NoError(t, err)
	assert.Equal(t, 500, c.Backfill.Limit)
}
