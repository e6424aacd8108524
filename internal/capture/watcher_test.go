package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, resolve func(context.Context) (string, error), onChange func()) *StoreWatcher {
	t.Helper()
	w := NewStoreWatcher(resolve, onChange, time.Millisecond, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return w
}

func storeDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "db"), []byte("x"), 0o644))
	return filepath.Join(dir, "db")
}

func appendTo(t *testing.T, path string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("more")
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func waitReady(t *testing.T, w *StoreWatcher) {
	t.Helper()
	select {
	case <-w.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("watcher never became ready")
	}
}

func TestStoreWatcher_DatabaseWriteIsAHint(t *testing.T) {
	path := storeDir(t)
	var changes atomic.Int32
	w := startWatcher(t, func(context.Context) (string, error) { return path, nil }, func() { changes.Add(1) })
	waitReady(t, w)
	assert.True(t, w.Watching())

	appendTo(t, path)
	assert.Eventually(t, func() bool { return changes.Load() >= 1 }, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, w.Hints(), int64(1))
}

func TestStoreWatcher_WALWriteIsAHint(t *testing.T) {
	path := storeDir(t)
	var changes atomic.Int32
	w := startWatcher(t, func(context.Context) (string, error) { return path, nil }, func() { changes.Add(1) })
	waitReady(t, w)

	appendTo(t, path+"-wal")
	assert.Eventually(t, func() bool { return changes.Load() >= 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestStoreWatcher_IgnoresOtherFiles(t *testing.T) {
	path := storeDir(t)
	var changes atomic.Int32
	w := startWatcher(t, func(context.Context) (string, error) { return path, nil }, func() { changes.Add(1) })
	waitReady(t, w)

	appendTo(t, filepath.Join(filepath.Dir(path), "unrelated.log"))
	assert.Never(t, func() bool { return changes.Load() > 0 }, 150*time.Millisecond, 10*time.Millisecond)
}

func TestStoreWatcher_RetriesResolve(t *testing.T) {
	path := storeDir(t)
	var attempts atomic.Int32
	w := startWatcher(t, func(context.Context) (string, error) {
		if attempts.Add(1) == 1 {
			return "", errors.New("not yet")
		}
		return path, nil
	}, func() {})

	waitReady(t, w)
	assert.GreaterOrEqual(t, attempts.Load(), int32(2))
}

func TestStoreFile(t *testing.T) {
	assert.True(t, storeFile("db", "db"))
	assert.True(t, storeFile("db-wal", "db"))
	assert.False(t, storeFile("db-shm", "db"))
	assert.False(t, storeFile("other", "db"))
}
