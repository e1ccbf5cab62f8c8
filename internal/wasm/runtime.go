package wasm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"
)

// Runtime manages the wazero runtime lifecycle.
// One Runtime serves every Wasm build of the library in the process.
type Runtime struct {
	// wazero runtime (singleton)
	runtime wazero.Runtime

	// Persistent compilation cache, nil when CacheDir is empty
	cache wazero.CompilationCache

	// Compiled modules by path, shared between libraries loaded from the
	// same file
	modMu   sync.Mutex
	modules map[string]*CompiledModule

	// Active module instances (for cleanup on shutdown)
	instances sync.Map // map[string]*Instance

	// Host import module, instantiated on first use
	hostOnce sync.Once
	hostErr  error

	// Configuration
	config *RuntimeConfig

	// Logger
	logger *zap.Logger

	// Shutdown management
	closeOnce sync.Once
	closed    chan struct{}
}

// RuntimeConfig holds runtime configuration.
type RuntimeConfig struct {
	// Memory limits for Wasm modules (in pages, 64KB each)
	// Default: 256 pages = 16MB max memory per module
	MemoryPages uint32

	// Enable debug logging for Wasm execution
	DebugEnabled bool

	// Compilation cache directory (for persistent caching)
	// If empty, uses in-memory caching only
	CacheDir string

	// Maximum number of instances per pool
	MaxInstances int

	// Upper bound on a single guest call. Zero disables the deadline.
	ExecutionTimeout time.Duration
}

// NewRuntime creates and initializes a new wazero runtime with WASI
// preview1 available to guests.
func NewRuntime(ctx context.Context, logger *zap.Logger, config *RuntimeConfig) (*Runtime, error) {
	if config == nil {
		config = DefaultRuntimeConfig()
	}

	rc := wazero.NewRuntimeConfig().
		WithCloseOnContextDone(config.ExecutionTimeout > 0).
		WithDebugInfoEnabled(config.DebugEnabled)
	if config.MemoryPages > 0 {
		rc = rc.WithMemoryLimitPages(config.MemoryPages)
	}

	var cache wazero.CompilationCache
	if config.CacheDir != "" {
		var err error
		cache, err = wazero.NewCompilationCacheWithDir(config.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open compilation cache '%s': %w", config.CacheDir, err)
		}
		rc = rc.WithCompilationCache(cache)
	}

	r := wazero.NewRuntimeWithConfig(ctx, rc)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		r.Close(ctx)
		if cache != nil {
			cache.Close(ctx)
		}
		return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
	}

	runtime := &Runtime{
		runtime: r,
		cache:   cache,
		modules: make(map[string]*CompiledModule),
		config:  config,
		logger:  logger.With(zap.String("component", "wasm-runtime")),
		closed:  make(chan struct{}),
	}

	logger.Info("Wasm runtime initialized",
		zap.Uint32("memory_pages", config.MemoryPages),
		zap.Bool("debug_enabled", config.DebugEnabled),
		zap.String("cache_dir", config.CacheDir),
		zap.Int("max_instances", config.MaxInstances),
		zap.Duration("execution_timeout", config.ExecutionTimeout),
	)

	return runtime, nil
}

// DefaultRuntimeConfig returns sensible defaults.
func DefaultRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		MemoryPages:      256, // 16MB
		DebugEnabled:     false,
		CacheDir:         "",
		MaxInstances:     4,
		ExecutionTimeout: 30 * time.Second,
	}
}

// Config returns the runtime configuration.
func (r *Runtime) Config() *RuntimeConfig {
	return r.config
}

// ensureHostModule instantiates the host import module once.
func (r *Runtime) ensureHostModule(ctx context.Context, hostFuncs *HostFunctionsImpl) error {
	r.hostOnce.Do(func() {
		r.hostErr = hostFuncs.instantiate(ctx, r.runtime)
	})
	return r.hostErr
}

// Close gracefully shuts down the runtime.
// Safe to call multiple times (idempotent).
func (r *Runtime) Close(ctx context.Context) error {
	var err error
	r.closeOnce.Do(func() {
		r.logger.Info("Shutting down Wasm runtime")

		// Close all active instances first
		r.instances.Range(func(key, value interface{}) bool {
			if inst, ok := value.(*Instance); ok {
				if closeErr := inst.module.Close(ctx); closeErr != nil {
					r.logger.Warn("Failed to close instance",
						zap.String("instance_id", key.(string)),
						zap.Error(closeErr),
					)
				}
			}
			r.instances.Delete(key)
			return true
		})

		// Close the runtime (closes compiled modules)
		r.modMu.Lock()
		err = r.runtime.Close(ctx)
		clear(r.modules)
		close(r.closed)
		r.modMu.Unlock()

		if r.cache != nil {
			if cacheErr := r.cache.Close(ctx); cacheErr != nil && err == nil {
				err = cacheErr
			}
		}

		r.logger.Info("Wasm runtime shutdown complete")
	})

	return err
}

// GetCompiledModule returns the module compiled from path, if loaded.
func (r *Runtime) GetCompiledModule(path string) (*CompiledModule, bool) {
	r.modMu.Lock()
	defer r.modMu.Unlock()

	mod, ok := r.modules[path]
	return mod, ok
}

// ModuleCount returns the number of compiled modules in use.
func (r *Runtime) ModuleCount() int {
	r.modMu.Lock()
	defer r.modMu.Unlock()
	return len(r.modules)
}

// GetInstance retrieves an active instance.
func (r *Runtime) GetInstance(instanceID string) (*Instance, bool) {
	if val, ok := r.instances.Load(instanceID); ok {
		inst, ok := val.(*Instance)
		return inst, ok
	}
	return nil, false
}

// StoreInstance stores an active instance.
func (r *Runtime) StoreInstance(instance *Instance) {
	r.instances.Store(instance.ID, instance)
}

// DeleteInstance removes an instance from tracking.
func (r *Runtime) DeleteInstance(instanceID string) {
	r.instances.Delete(instanceID)
}

// InstanceCount returns the number of tracked instances.
func (r *Runtime) InstanceCount() int {
	n := 0
	r.instances.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// IsClosed returns whether the runtime has been closed.
func (r *Runtime) IsClosed() bool {
	select {
	case <-r.closed:
		return true
	default:
		return false
	}
}
