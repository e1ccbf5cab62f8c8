package wasm

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/woxQAQ/rstrlen/api/abi"
	guest "github.com/woxQAQ/rstrlen/api/wasm"
	"go.uber.org/zap"
)

// HostFunctionsImpl implements host functions for Wasm modules.
type HostFunctionsImpl struct {
	logger *zap.Logger
}

// NewHostFunctions creates a new host functions implementation.
func NewHostFunctions(logger *zap.Logger) *HostFunctionsImpl {
	return &HostFunctionsImpl{
		logger: logger.With(zap.String("component", "wasm-host")),
	}
}

// instantiate registers the host import module in r.
func (h *HostFunctionsImpl) instantiate(ctx context.Context, r wazero.Runtime) error {
	_, err := r.NewHostModuleBuilder(abi.HostModule).
		NewFunctionBuilder().
		WithFunc(h.logMessage).
		WithParameterNames("level", "ptr", "length").
		Export(abi.HostLogMessage).
		Instantiate(ctx)
	if err != nil {
		return fmt.Errorf("failed to register %s.%s: %w", abi.HostModule, abi.HostLogMessage, err)
	}
	return nil
}

// logMessage is called by Wasm modules to log messages.
// Signature: log_message(level, ptr, length)
func (h *HostFunctionsImpl) logMessage(ctx context.Context, mod api.Module, level uint32, ptr uint32, length uint32) {
	msg, ok := NewMemory(mod).ReadBytes(ptr, length)
	if !ok {
		h.logger.Error("Failed to read log message from Wasm memory",
			zap.String("module", mod.Name()),
			zap.Uint32("ptr", ptr),
			zap.Uint32("length", length),
		)
		return
	}

	logger := h.logger.With(zap.String("module", mod.Name()))
	switch guest.LogLevel(level) {
	case guest.LevelDebug:
		logger.Debug(string(msg))
	case guest.LevelInfo:
		logger.Info(string(msg))
	case guest.LevelWarn:
		logger.Warn(string(msg))
	case guest.LevelError:
		logger.Error(string(msg))
	default:
		logger.Info(string(msg))
	}
}
