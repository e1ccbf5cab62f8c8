package library

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/woxQAQ/rstrlen/internal/config"
	"github.com/woxQAQ/rstrlen/internal/native"
	"github.com/woxQAQ/rstrlen/internal/wasm"
	"go.uber.org/zap"
)

// Manager manages library lifecycle.
type Manager struct {
	cfg      *config.Config
	runtime  *wasm.Runtime
	loader   *Loader
	registry *Registry
	logger   *zap.Logger

	mu     sync.RWMutex
	loaded bool

	// Set while a watch loop runs; see Watch.
	stopWatch context.CancelFunc
	watchDone chan struct{}
}

// NewManager creates a new library manager.
func NewManager(
	cfg *config.Config,
	runtime *wasm.Runtime,
	hostFuncs *wasm.HostFunctionsImpl,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		cfg:      cfg,
		runtime:  runtime,
		loader:   NewLoader(runtime, hostFuncs, logger),
		registry: NewRegistry(logger),
		logger:   logger.With(zap.String("component", "library-manager")),
	}
}

// LoadAll discovers and loads all libraries from configured paths. When no
// directory carries a manifest, the configured library is looked up by its
// logical name instead.
func (m *Manager) LoadAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loaded {
		return fmt.Errorf("libraries already loaded")
	}

	m.logger.Info("Loading libraries",
		zap.Strings("paths", m.cfg.LibraryPaths),
	)

	libs, err := m.loader.DiscoverLibraries(ctx, m.cfg.LibraryPaths)
	if err != nil {
		var noLibs *NoLibrariesFoundError
		if !errors.As(err, &noLibs) {
			return err
		}

		lib, err := m.loadByName(ctx)
		if err != nil {
			m.logger.Warn("No libraries found in configured paths",
				zap.Strings("paths", m.cfg.LibraryPaths),
				zap.String("library", m.cfg.Library),
				zap.Error(err),
			)
			m.loaded = true
			return nil
		}
		libs = []*Library{lib}
	}

	for _, lib := range libs {
		if err := m.registry.Register(lib); err != nil {
			m.logger.Error("Failed to register library",
				zap.String("name", lib.Manifest.Name),
				zap.Error(err),
			)
			lib.Close(ctx)
			continue
		}
	}

	m.loaded = true

	m.logger.Info("Libraries loaded successfully",
		zap.Int("count", m.registry.Count()),
	)

	return nil
}

func (m *Manager) loadByName(ctx context.Context) (*Library, error) {
	if m.cfg.Backend == string(BackendWasm) {
		return m.loader.LoadWasmFile(ctx, m.cfg.Library, m.cfg.LibraryPaths)
	}
	return m.loader.LoadNative(ctx, m.cfg.Library, m.cfg.LibraryPaths)
}

// GetLibrary retrieves a library by name.
func (m *Manager) GetLibrary(name string) (*Library, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lib, ok := m.registry.Get(name)
	if !ok {
		return nil, &LibraryNotFoundError{LibraryName: name}
	}

	return lib, nil
}

// Default returns the configured library.
func (m *Manager) Default() (*Library, error) {
	return m.GetLibrary(m.cfg.Library)
}

// Length measures s with the named library.
func (m *Manager) Length(ctx context.Context, name string, s string) (int64, error) {
	lib, err := m.GetLibrary(name)
	if err != nil {
		return 0, err
	}
	return lib.Length(ctx, s)
}

// reload replaces whatever library was loaded from dir with a fresh load.
// The old library is closed first so a renamed library never collides with
// its own previous registration.
func (m *Manager) reload(ctx context.Context, dir string) error {
	if _, err := ParseManifest(dir); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.registry.LookupByDir(dir); ok {
		m.registry.Unregister(old.Manifest.Name)
		if err := old.Close(ctx); err != nil {
			m.logger.Warn("Failed to close replaced library",
				zap.String("name", old.Manifest.Name),
				zap.Error(err),
			)
		}
	}

	lib, err := m.loader.LoadLibrary(ctx, dir)
	if err != nil {
		return err
	}

	if err := m.registry.Register(lib); err != nil {
		lib.Close(ctx)
		return err
	}
	return nil
}

// unload removes the library loaded from dir, if any.
func (m *Manager) unload(ctx context.Context, dir string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lib, ok := m.registry.LookupByDir(dir)
	if !ok {
		return
	}
	m.registry.Unregister(lib.Manifest.Name)
	if err := lib.Close(ctx); err != nil {
		m.logger.Warn("Failed to close removed library",
			zap.String("name", lib.Manifest.Name),
			zap.Error(err),
		)
	}
}

// Shutdown closes every library and the Wasm runtime.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Shutting down library manager")

	// The watcher must not load libraries into a closing runtime.
	m.stopWatching()

	m.mu.Lock()
	for _, lib := range m.registry.List() {
		m.registry.Unregister(lib.Manifest.Name)
		if err := lib.Close(ctx); err != nil {
			m.logger.Warn("Failed to close library",
				zap.String("name", lib.Manifest.Name),
				zap.Error(err),
			)
		}
	}
	m.mu.Unlock()

	if err := m.runtime.Close(ctx); err != nil {
		m.logger.Error("Failed to shutdown runtime", zap.Error(err))
		return err
	}

	m.logger.Info("Library manager shutdown complete")
	return nil
}

// Registry returns the library registry (for testing/inspection).
func (m *Manager) Registry() *Registry {
	return m.registry
}

// IsLoaded returns whether libraries have been loaded.
func (m *Manager) IsLoaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}

// IsLoadFailure reports whether err is a library that could not be found,
// opened, or bound, as opposed to an error from the function itself.
func IsLoadFailure(err error) bool {
	var (
		loadErr      *LibraryLoadError
		notFound     *LibraryNotFoundError
		nativeLoad   *native.LoadError
		nativeAbsent *native.LibraryNotFoundError
	)
	return errors.As(err, &loadErr) ||
		errors.As(err, &notFound) ||
		errors.As(err, &nativeLoad) ||
		errors.As(err, &nativeAbsent)
}
