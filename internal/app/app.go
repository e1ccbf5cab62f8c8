// Package app wires configuration, the Wasm runtime and the library manager
// into a single measuring entrypoint.
package app

import (
	"context"
	"fmt"

	"github.com/woxQAQ/rstrlen/internal/config"
	"github.com/woxQAQ/rstrlen/internal/library"
	"github.com/woxQAQ/rstrlen/internal/wasm"
	"go.uber.org/zap"
)

type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	manager *library.Manager
}

func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	// Initialize Wasm runtime.
	wasmConfig := &wasm.RuntimeConfig{
		MemoryPages:      cfg.Wasm.MemoryPages,
		DebugEnabled:     cfg.Wasm.Debug,
		CacheDir:         cfg.Wasm.CacheDir,
		MaxInstances:     cfg.Wasm.MaxInstances,
		ExecutionTimeout: cfg.Wasm.Timeout(),
	}

	wasmRuntime, err := wasm.NewRuntime(ctx, logger, wasmConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Wasm runtime: %w", err)
	}

	manager := library.NewManager(cfg, wasmRuntime, wasm.NewHostFunctions(logger), logger)
	if err := manager.LoadAll(ctx); err != nil {
		manager.Shutdown(ctx)
		return nil, fmt.Errorf("failed to load libraries: %w", err)
	}

	if cfg.Watch {
		if err := manager.Watch(ctx); err != nil {
			manager.Shutdown(ctx)
			return nil, fmt.Errorf("failed to watch library paths: %w", err)
		}
	}

	logger.Info("rstrlen initialized",
		zap.String("library", cfg.Library),
		zap.String("backend", cfg.Backend),
		zap.Int("libraries", manager.Registry().Count()),
		zap.Bool("watch", cfg.Watch),
	)

	return &App{
		cfg:     cfg,
		logger:  logger,
		manager: manager,
	}, nil
}

// Measure returns the length of s as reported by the configured library.
func (a *App) Measure(ctx context.Context, s string) (int64, error) {
	lib, err := a.manager.Default()
	if err != nil {
		return 0, err
	}
	return lib.Length(ctx, s)
}

func (a *App) Manager() *library.Manager {
	return a.manager
}

// Close gracefully shuts down the libraries and the runtime.
func (a *App) Close(ctx context.Context) error {
	a.logger.Info("Shutting down rstrlen")

	if err := a.manager.Shutdown(ctx); err != nil {
		a.logger.Error("Failed to shutdown library manager", zap.Error(err))
		return err
	}

	a.logger.Info("rstrlen shutdown complete")
	return nil
}
