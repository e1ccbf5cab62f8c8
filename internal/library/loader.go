package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/woxQAQ/rstrlen/api/abi"
	"github.com/woxQAQ/rstrlen/internal/native"
	"github.com/woxQAQ/rstrlen/internal/wasm"
	"go.uber.org/zap"
)

// Loader handles loading libraries from disk.
type Loader struct {
	runtime      *wasm.Runtime
	moduleLoader *wasm.ModuleLoader
	instanceMgr  *wasm.InstanceManager
	logger       *zap.Logger
}

// NewLoader creates a new library loader.
func NewLoader(runtime *wasm.Runtime, hostFuncs *wasm.HostFunctionsImpl, logger *zap.Logger) *Loader {
	return &Loader{
		runtime:      runtime,
		moduleLoader: wasm.NewModuleLoader(runtime, logger),
		instanceMgr:  wasm.NewInstanceManager(runtime, hostFuncs, logger),
		logger:       logger.With(zap.String("component", "library-loader")),
	}
}

// LoadLibrary loads a single library from a directory holding library.yaml.
func (l *Loader) LoadLibrary(ctx context.Context, dir string) (*Library, error) {
	l.logger.Debug("Loading library", zap.String("dir", dir))

	manifest, err := ParseManifest(dir)
	if err != nil {
		return nil, err
	}

	l.logger.Info("Loading library",
		zap.String("name", manifest.Name),
		zap.String("version", manifest.Version),
		zap.String("backend", string(manifest.Backend)),
	)

	return l.load(ctx, manifest)
}

// LoadNative finds the platform file for a logical library name in dirs and
// loads it without a manifest.
func (l *Loader) LoadNative(ctx context.Context, name string, dirs []string) (*Library, error) {
	path, err := native.Resolve(name, dirs)
	if err != nil {
		return nil, err
	}

	manifest := &Manifest{
		Name:    name,
		Version: "unversioned",
		Backend: BackendNative,
		Symbol:  abi.SymbolStringLength,
		Native:  NativeConfig{Library: name},
		dir:     filepath.Dir(path),
	}
	return l.load(ctx, manifest)
}

// LoadWasmFile finds <name>.wasm in dirs and loads it without a manifest.
func (l *Loader) LoadWasmFile(ctx context.Context, name string, dirs []string) (*Library, error) {
	fileName := name + ".wasm"
	for _, dir := range dirs {
		path := filepath.Join(dir, fileName)
		if _, err := os.Stat(path); err != nil {
			continue
		}

		manifest := &Manifest{
			Name:    name,
			Version: "unversioned",
			Backend: BackendWasm,
			Symbol:  abi.ExportStringLength,
			Wasm:    WasmConfig{File: fileName},
			dir:     dir,
		}
		return l.load(ctx, manifest)
	}

	return nil, &LibraryLoadError{
		LibraryName: name,
		Err:         fmt.Errorf("%s not found in %v", fileName, dirs),
	}
}

func (l *Loader) load(ctx context.Context, manifest *Manifest) (*Library, error) {
	var (
		fn  Func
		err error
	)
	switch manifest.Backend {
	case BackendNative:
		fn, err = l.loadNative(manifest)
	case BackendWasm:
		fn, err = l.loadWasm(ctx, manifest)
	default:
		err = fmt.Errorf("unsupported backend: %s", manifest.Backend)
	}
	if err != nil {
		return nil, &LibraryLoadError{
			LibraryName: manifest.Name,
			Err:         err,
		}
	}

	lib := &Library{
		Manifest: manifest,
		Func:     fn,
		Path:     manifest.BinaryPath(),
		LoadedAt: time.Now(),
	}

	l.logger.Info("Library loaded successfully",
		zap.String("name", manifest.Name),
		zap.String("path", lib.Path),
	)

	return lib, nil
}

func (l *Loader) loadNative(manifest *Manifest) (Func, error) {
	lib, err := native.Open(manifest.BinaryPath())
	if err != nil {
		return nil, err
	}

	fn, err := native.NewStringLength(lib, manifest.Symbol, l.logger)
	if err != nil {
		lib.Close()
		return nil, err
	}
	return fn, nil
}

func (l *Loader) loadWasm(ctx context.Context, manifest *Manifest) (Func, error) {
	compiled, err := l.moduleLoader.Open(ctx, manifest.BinaryPath())
	if err != nil {
		return nil, err
	}

	// Instantiate once so missing exports fail the load, not the first call.
	check, err := l.instanceMgr.Instantiate(ctx, &wasm.InstanceConfig{ModuleName: compiled.Name})
	if err != nil {
		l.moduleLoader.Release(ctx, compiled)
		return nil, err
	}
	check.Close(ctx)

	return &wasmFunc{
		Pool:     wasm.NewPool(l.instanceMgr, compiled.Name, l.runtime.Config().MaxInstances),
		loader:   l.moduleLoader,
		compiled: compiled,
	}, nil
}

// wasmFunc holds its compiled module for as long as the library is loaded.
type wasmFunc struct {
	*wasm.Pool
	loader   *wasm.ModuleLoader
	compiled *wasm.CompiledModule
}

func (f *wasmFunc) Close(ctx context.Context) error {
	if err := f.Pool.Close(ctx); err != nil {
		return err
	}
	return f.loader.Release(ctx, f.compiled)
}

// DiscoverLibraries scans directories for libraries.
func (l *Loader) DiscoverLibraries(ctx context.Context, paths []string) ([]*Library, error) {
	var libs []*Library
	var errs []error

	for _, basePath := range paths {
		l.logger.Debug("Scanning library directory", zap.String("path", basePath))

		entries, err := os.ReadDir(basePath)
		if err != nil {
			if os.IsNotExist(err) {
				l.logger.Warn("Library path does not exist", zap.String("path", basePath))
				continue
			}
			return nil, fmt.Errorf("failed to read directory '%s': %w", basePath, err)
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}

			libDir := filepath.Join(basePath, entry.Name())
			if _, err := os.Stat(filepath.Join(libDir, ManifestFile)); err != nil {
				continue
			}

			lib, err := l.LoadLibrary(ctx, libDir)
			if err != nil {
				l.logger.Error("Failed to load library",
					zap.String("dir", libDir),
					zap.Error(err),
				)
				errs = append(errs, err)
				continue
			}

			libs = append(libs, lib)
		}
	}

	if len(libs) > 0 && len(errs) > 0 {
		l.logger.Warn("Some libraries failed to load",
			zap.Int("loaded", len(libs)),
			zap.Int("failed", len(errs)),
		)
	}

	if len(libs) == 0 {
		return nil, &NoLibrariesFoundError{Paths: paths}
	}

	return libs, nil
}
