package library

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/woxQAQ/rstrlen/internal/config"
	"github.com/woxQAQ/rstrlen/internal/wasm"
	"go.uber.org/zap"
)

func TestManager_Watch(t *testing.T) {
	base := t.TempDir()
	staging := t.TempDir()

	// The watch loop outlives the test body, so it must not log through t.
	logger := zap.NewNop()
	rt, err := wasm.NewRuntime(context.Background(), logger, nil)
	require.NoError(t, err)
	m := NewManager(&config.Config{LibraryPaths: []string{base}, Library: "rstrlen"},
		rt, wasm.NewHostFunctions(logger), logger)
	defer m.Shutdown(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, m.LoadAll(ctx))
	require.NoError(t, m.Watch(ctx))

	// Move a complete library in so the manifest is never seen half written.
	staged := writeWasmLibrary(t, staging, "rstrlen", "rstrlen")
	dir := filepath.Join(base, "rstrlen")
	require.NoError(t, os.Rename(staged, dir))

	require.Eventually(t, func() bool {
		_, err := m.Default()
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	n, err := m.Length(ctx, "rstrlen", "hello")
	require.NoError(t, err)
	require.Equal(t, int64(5), n)

	require.NoError(t, os.RemoveAll(dir))

	require.Eventually(t, func() bool {
		return m.Registry().Count() == 0
	}, 5*time.Second, 20*time.Millisecond)
}

func TestManager_WatchNoPaths(t *testing.T) {
	m, _ := newTestManager(t, &config.Config{
		LibraryPaths: []string{filepath.Join(t.TempDir(), "missing")},
		Library:      "rstrlen",
	})

	err := m.Watch(context.Background())
	var noLibs *NoLibrariesFoundError
	require.ErrorAs(t, err, &noLibs)
}

func TestManager_ShutdownStopsWatch(t *testing.T) {
	base := t.TempDir()
	staging := t.TempDir()

	logger := zap.NewNop()
	rt, err := wasm.NewRuntime(context.Background(), logger, nil)
	require.NoError(t, err)
	m := NewManager(&config.Config{LibraryPaths: []string{base}, Library: "rstrlen"},
		rt, wasm.NewHostFunctions(logger), logger)

	// A context that is never canceled: only Shutdown ends the watch.
	ctx := context.Background()
	require.NoError(t, m.LoadAll(ctx))
	require.NoError(t, m.Watch(ctx))

	m.mu.RLock()
	done := m.watchDone
	m.mu.RUnlock()
	require.NotNil(t, done)

	require.NoError(t, m.Shutdown(ctx))

	select {
	case <-done:
	default:
		t.Fatal("watch loop still running after Shutdown")
	}

	staged := writeWasmLibrary(t, staging, "rstrlen", "rstrlen")
	require.NoError(t, os.Rename(staged, filepath.Join(base, "rstrlen")))

	require.Never(t, func() bool {
		return m.Registry().Count() != 0
	}, 200*time.Millisecond, 20*time.Millisecond)
}

func TestManager_WatchTwice(t *testing.T) {
	base := t.TempDir()

	logger := zap.NewNop()
	rt, err := wasm.NewRuntime(context.Background(), logger, nil)
	require.NoError(t, err)
	m := NewManager(&config.Config{LibraryPaths: []string{base}, Library: "rstrlen"},
		rt, wasm.NewHostFunctions(logger), logger)
	defer m.Shutdown(context.Background())

	ctx := context.Background()
	require.NoError(t, m.LoadAll(ctx))
	require.NoError(t, m.Watch(ctx))

	m.mu.RLock()
	first := m.watchDone
	m.mu.RUnlock()

	require.NoError(t, m.Watch(ctx))

	select {
	case <-first:
	default:
		t.Fatal("first watch loop still running after Watch was called again")
	}
}
