package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch reloads libraries as their directories change under the configured
// search paths. New directories are loaded once their manifest appears,
// rewritten manifests replace the loaded library, and removed directories
// are unloaded. Watching stops when ctx is done or the manager is shut
// down. A second call replaces the running watcher.
func (m *Manager) Watch(ctx context.Context) error {
	m.stopWatching()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	watched := 0
	for _, path := range m.cfg.LibraryPaths {
		if err := w.Add(path); err != nil {
			m.logger.Warn("Cannot watch library path",
				zap.String("path", path),
				zap.Error(err),
			)
			continue
		}
		watched++

		// Existing library directories, so manifest rewrites are seen.
		entries, _ := os.ReadDir(path)
		for _, entry := range entries {
			if entry.IsDir() {
				w.Add(filepath.Join(path, entry.Name()))
			}
		}
	}

	if watched == 0 {
		w.Close()
		return &NoLibrariesFoundError{Paths: m.cfg.LibraryPaths}
	}

	m.logger.Info("Watching library paths", zap.Strings("paths", m.cfg.LibraryPaths))

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	m.mu.Lock()
	m.stopWatch = cancel
	m.watchDone = done
	m.mu.Unlock()

	go m.watchLoop(ctx, w, done)
	return nil
}

// stopWatching cancels the watch loop, if any, and waits for it to exit.
func (m *Manager) stopWatching() {
	m.mu.Lock()
	cancel, done := m.stopWatch, m.watchDone
	m.stopWatch, m.watchDone = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (m *Manager) watchLoop(ctx context.Context, w *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	defer w.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			m.handleEvent(ctx, w, event)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			m.logger.Warn("Library watcher error", zap.Error(err))
		}
	}
}

func (m *Manager) handleEvent(ctx context.Context, w *fsnotify.Watcher, event fsnotify.Event) {
	m.logger.Debug("Library path event",
		zap.String("path", event.Name),
		zap.String("op", event.Op.String()),
	)

	switch {
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		if filepath.Base(event.Name) == ManifestFile {
			m.unload(ctx, filepath.Dir(event.Name))
			return
		}
		m.unload(ctx, event.Name)

	case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
		if filepath.Base(event.Name) == ManifestFile {
			m.tryReload(ctx, filepath.Dir(event.Name))
			return
		}

		info, err := os.Stat(event.Name)
		if err != nil || !info.IsDir() || !event.Has(fsnotify.Create) {
			return
		}
		if err := w.Add(event.Name); err != nil {
			m.logger.Warn("Cannot watch library directory",
				zap.String("dir", event.Name),
				zap.Error(err),
			)
		}
		if _, err := os.Stat(filepath.Join(event.Name, ManifestFile)); err == nil {
			m.tryReload(ctx, event.Name)
		}
	}
}

func (m *Manager) tryReload(ctx context.Context, dir string) {
	if err := m.reload(ctx, dir); err != nil {
		// A manifest is often seen before it is fully written; the
		// following write event retries.
		m.logger.Debug("Library not loadable yet",
			zap.String("dir", dir),
			zap.Error(err),
		)
		return
	}
	m.logger.Info("Library reloaded", zap.String("dir", dir))
}
