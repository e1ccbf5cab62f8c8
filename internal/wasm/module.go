package wasm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"
)

// CompiledModule is a compiled .wasm file. Every library loaded from the
// same file shares one CompiledModule; it is closed when the last of them
// releases it.
type CompiledModule struct {
	Module wazero.CompiledModule

	// Name is the cleaned absolute path, used as the cache key.
	Name       string
	SizeBytes  int64
	CompiledAt time.Time

	refs int // guarded by Runtime.modMu
}

// ModuleLoader compiles guest files and counts their users.
type ModuleLoader struct {
	runtime *Runtime
	logger  *zap.Logger
}

// NewModuleLoader creates a new module loader.
func NewModuleLoader(runtime *Runtime, logger *zap.Logger) *ModuleLoader {
	return &ModuleLoader{
		runtime: runtime,
		logger:  logger.With(zap.String("component", "wasm-loader")),
	}
}

// Open returns the compiled module for path, compiling it on first use.
// Each successful Open must be paired with a Release.
func (l *ModuleLoader) Open(ctx context.Context, path string) (*CompiledModule, error) {
	key, err := filepath.Abs(path)
	if err != nil {
		key = filepath.Clean(path)
	}

	r := l.runtime
	r.modMu.Lock()
	defer r.modMu.Unlock()

	if r.IsClosed() {
		return nil, errors.New("wasm runtime is closed")
	}

	if m, ok := r.modules[key]; ok {
		m.refs++
		l.logger.Debug("Sharing compiled module",
			zap.String("module", key),
			zap.Int("refs", m.refs),
		)
		return m, nil
	}

	data, err := os.ReadFile(key)
	if err != nil {
		return nil, fmt.Errorf("failed to read module %s: %w", key, err)
	}

	start := time.Now()
	compiled, err := r.runtime.CompileModule(ctx, data)
	if err != nil {
		return nil, &CompilationError{Path: key, Err: err}
	}

	m := &CompiledModule{
		Module:     compiled,
		Name:       key,
		SizeBytes:  int64(len(data)),
		CompiledAt: time.Now(),
		refs:       1,
	}
	r.modules[key] = m

	l.logger.Info("Module compiled",
		zap.String("module", key),
		zap.Int64("size_bytes", m.SizeBytes),
		zap.Duration("duration", time.Since(start)),
	)

	return m, nil
}

// Release drops one reference to m. The compiled code is closed with the
// last reference; instances created from it must be closed by then.
func (l *ModuleLoader) Release(ctx context.Context, m *CompiledModule) error {
	r := l.runtime
	r.modMu.Lock()
	defer r.modMu.Unlock()

	// A closed runtime has already dropped and closed every module.
	if r.modules[m.Name] != m || m.refs == 0 {
		return nil
	}

	m.refs--
	if m.refs > 0 {
		return nil
	}

	delete(r.modules, m.Name)
	l.logger.Debug("Module released", zap.String("module", m.Name))
	return m.Module.Close(ctx)
}
