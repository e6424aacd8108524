package cli

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/afterglow/internal/notification"
	"github.com/runnerr0/afterglow/internal/storage"
)

func setupSearchStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store := openTestStore(t)
	seed(t, store,
		item("id-1", "com.tinyspeck.slackmacgap", "Deploy finished", "Production deploy of api succeeded", time.Hour),
		item("id-2", "com.apple.MobileSMS", "Ana", "Lunch tomorrow?", 48*time.Hour),
		item("id-3", "com.apple.mail", "Invoice 2291", "Your invoice is ready", 2*time.Hour),
		item("id-4", "com.tinyspeck.slackmacgap", "Deploy failed", "Staging deploy rolled back", 72*time.Hour),
		item("id-5", "com.apple.mail", "Old newsletter", "Weekly digest", 60*24*time.Hour),
	)
	return store
}

func TestSearch_KeywordNewestFirst(t *testing.T) {
	store := setupSearchStore(t)
	cmd := &SearchCommand{Since: "30d", Limit: 20, globals: &GlobalFlags{}}

	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithStore(store, []string{"deploy"}))
	})

	assert.Contains(t, output, `Found 2 results for "deploy" (since 30d)`)
	assert.Less(t, strings.Index(output, "Deploy finished"), strings.Index(output, "Deploy failed"))
	assert.Contains(t, output, "com.tinyspeck.slackmacgap")
	assert.Contains(t, output, "id-1")
}

func TestSearch_SinceExcludesOld(t *testing.T) {
	store := setupSearchStore(t)
	cmd := &SearchCommand{Since: "30d", Limit: 20, globals: &GlobalFlags{}}

	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithStore(store, nil))
	})
	assert.Contains(t, output, "Found 4 results")
	assert.NotContains(t, output, "Old newsletter")
}

func TestSearch_AppFilter(t *testing.T) {
	store := setupSearchStore(t)
	cmd := &SearchCommand{Limit: 20, App: []string{"com.apple.mail"}, globals: &GlobalFlags{JSON: true}}

	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithStore(store, nil))
	})

	var out jsonSearchOutput
	require.NoError(t, json.Unmarshal([]byte(output), &out))
	assert.Equal(t, 2, out.Count)
	for _, r := range out.Results {
		assert.Equal(t, "com.apple.mail", r.App)
	}
}

func TestSearch_SourceFilter(t *testing.T) {
	store := setupSearchStore(t)
	seed(t, store, notification.Notification{ID: "b-1", AppID: "com.example", Title: "Banner", Timestamp: time.Now(), Source: notification.SourceBanner})

	cmd := &SearchCommand{Limit: 20, Source: "banner", globals: &GlobalFlags{JSON: true}}
	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithStore(store, nil))
	})

	var out jsonSearchOutput
	require.NoError(t, json.Unmarshal([]byte(output), &out))
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "b-1", out.Results[0].ID)
	assert.Equal(t, "banner", out.Results[0].Source)
}

func TestSearch_InvalidSource(t *testing.T) {
	store := setupSearchStore(t)
	cmd := &SearchCommand{Source: "inbox", globals: &GlobalFlags{}}
	assert.Error(t, cmd.executeWithStore(store, nil))
}

func TestSearch_InvalidSince(t *testing.T) {
	store := setupSearchStore(t)
	cmd := &SearchCommand{Since: "soon", globals: &GlobalFlags{}}
	err := cmd.executeWithStore(store, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--since")
}

func TestSearch_NoResults(t *testing.T) {
	store := setupSearchStore(t)
	cmd := &SearchCommand{Since: "30d", Limit: 20, globals: &GlobalFlags{}}

	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithStore(store, []string{"kubernetes"}))
	})
	assert.Contains(t, output, `No results found for "kubernetes"`)
}

func TestSearch_Pagination(t *testing.T) {
	store := setupSearchStore(t)
	cmd := &SearchCommand{Limit: 2, Offset: 2, globals: &GlobalFlags{JSON: true}}

	output := captureOutput(t, func() {
		require.NoError(t, cmd.executeWithStore(store, nil))
	})

	var out jsonSearchOutput
	require.NoError(t, json.Unmarshal([]byte(output), &out))
	require.Equal(t, 2, out.Count)
	assert.Equal(t, "id-2", out.Results[0].ID)
	assert.Equal(t, "id-4", out.Results[1].ID)
}
