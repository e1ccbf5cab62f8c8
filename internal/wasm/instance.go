package wasm

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/woxQAQ/rstrlen/api/abi"
	"go.uber.org/zap"
)

// requiredExports must be present for a module to serve length calls.
var requiredExports = []string{
	abi.ExportMalloc,
	abi.ExportFree,
	abi.ExportStringLength,
}

// InstanceManager creates and manages module instances.
type InstanceManager struct {
	runtime   *Runtime
	logger    *zap.Logger
	hostFuncs *HostFunctionsImpl
}

// NewInstanceManager creates a new instance manager.
func NewInstanceManager(runtime *Runtime, hostFuncs *HostFunctionsImpl, logger *zap.Logger) *InstanceManager {
	return &InstanceManager{
		runtime:   runtime,
		hostFuncs: hostFuncs,
		logger:    logger.With(zap.String("component", "wasm-instance")),
	}
}

// InstanceConfig holds configuration for creating instances.
type InstanceConfig struct {
	// Module name to instantiate.
	ModuleName string

	// Instance ID (if empty, generates UUID).
	InstanceID string
}

// Instance represents an instantiated Wasm module.
// Guests are single-threaded, so calls on one Instance are serialized.
type Instance struct {
	// wazero module instance.
	module api.Module

	// Instance metadata.
	ID        string
	Name      string
	CreatedAt int64

	// Exported functions (cached for performance).
	exports map[string]api.Function
	memory  *Memory

	timeout time.Duration
	runtime *Runtime
	logger  *zap.Logger

	mu sync.Mutex
}

// Instantiate creates a new instance from a compiled module.
// Host functions are exported to the Wasm module.
func (m *InstanceManager) Instantiate(ctx context.Context, config *InstanceConfig) (*Instance, error) {
	compiled, ok := m.runtime.GetCompiledModule(config.ModuleName)
	if !ok {
		return nil, &ModuleNotLoadedError{Module: config.ModuleName}
	}

	instanceID := config.InstanceID
	if instanceID == "" {
		instanceID = generateUUID()
	}

	m.logger.Debug("Instantiating Wasm module",
		zap.String("module", config.ModuleName),
		zap.String("instance_id", instanceID),
	)

	if err := m.runtime.ensureHostModule(ctx, m.hostFuncs); err != nil {
		return nil, fmt.Errorf("failed to export host functions: %w", err)
	}

	// Reactor modules are initialised below, not through _start.
	moduleConfig := wazero.NewModuleConfig().
		WithName(instanceID).
		WithStartFunctions().
		WithSysWalltime().
		WithSysNanotime().
		WithRandSource(rand.Reader)

	module, err := m.runtime.runtime.InstantiateModule(ctx, compiled.Module, moduleConfig)
	if err != nil {
		return nil, &InstantiationError{
			Module:     config.ModuleName,
			InstanceID: instanceID,
			Err:        err,
		}
	}

	if initFn := module.ExportedFunction("_initialize"); initFn != nil {
		if _, err := initFn.Call(ctx); err != nil {
			module.Close(ctx)
			return nil, &InstantiationError{
				Module:     config.ModuleName,
				InstanceID: instanceID,
				Err:        fmt.Errorf("_initialize failed: %w", err),
			}
		}
	}

	exports, err := m.cacheExportedFunctions(module, config.ModuleName)
	if err != nil {
		module.Close(ctx)
		return nil, err
	}

	instance := &Instance{
		module:    module,
		ID:        instanceID,
		Name:      config.ModuleName,
		CreatedAt: time.Now().Unix(),
		exports:   exports,
		memory:    NewMemory(module),
		timeout:   m.runtime.config.ExecutionTimeout,
		runtime:   m.runtime,
		logger:    m.logger.With(zap.String("instance_id", instanceID)),
	}

	m.runtime.StoreInstance(instance)

	m.logger.Info("Module instantiated successfully",
		zap.String("module", config.ModuleName),
		zap.String("instance_id", instanceID),
		zap.Int("exported_functions", len(exports)),
	)

	return instance, nil
}

// cacheExportedFunctions looks up the string-length ABI exports once.
func (m *InstanceManager) cacheExportedFunctions(module api.Module, moduleName string) (map[string]api.Function, error) {
	if module.Memory() == nil {
		return nil, &MissingExportError{Module: moduleName, Export: abi.ExportMemory}
	}

	exports := make(map[string]api.Function, len(requiredExports))
	for _, name := range requiredExports {
		fn := module.ExportedFunction(name)
		if fn == nil {
			return nil, &MissingExportError{Module: moduleName, Export: name}
		}
		exports[name] = fn
	}
	return exports, nil
}

// Length copies s into guest memory as a NUL-terminated string and
// measures it with calculate_string_length.
func (i *Instance) Length(ctx context.Context, s string) (int64, error) {
	if strings.IndexByte(s, 0) >= 0 {
		return 0, &abi.InvalidInputError{Symbol: abi.ExportStringLength, Reason: "interior NUL byte"}
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	ctx, cancel := i.callContext(ctx)
	defer cancel()

	ptr, size, err := i.memory.WriteString(ctx, s)
	if err != nil {
		return 0, i.wrapCallError(ctx, err)
	}
	defer func() {
		if err := i.memory.Free(ctx, ptr, size); err != nil {
			i.logger.Warn("Failed to free guest memory", zap.Error(err))
		}
	}()

	return i.call(ctx, ptr)
}

// LengthAt calls calculate_string_length with a raw guest pointer.
// A zero pointer is the guest's NULL.
func (i *Instance) LengthAt(ctx context.Context, ptr uint32) (int64, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	ctx, cancel := i.callContext(ctx)
	defer cancel()

	return i.call(ctx, ptr)
}

func (i *Instance) call(ctx context.Context, ptr uint32) (int64, error) {
	results, err := i.exports[abi.ExportStringLength].Call(ctx, uint64(ptr))
	if err != nil {
		return 0, i.wrapCallError(ctx, err)
	}

	n := int64(results[0])
	if n < 0 {
		return 0, &abi.InvalidInputError{Symbol: abi.ExportStringLength, Reason: "rejected by guest"}
	}
	return n, nil
}

func (i *Instance) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if i.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, i.timeout)
}

func (i *Instance) wrapCallError(ctx context.Context, err error) error {
	if i.timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Limit: i.timeout}
	}
	return fmt.Errorf("%s failed: %w", abi.ExportStringLength, err)
}

// Memory returns the instance's memory helper.
func (i *Instance) Memory() *Memory {
	return i.memory
}

// IsClosed reports whether the underlying module has been closed, either
// explicitly or because a call ran past its deadline.
func (i *Instance) IsClosed() bool {
	return i.module.IsClosed()
}

// Close closes the instance and releases resources.
func (i *Instance) Close(ctx context.Context) error {
	i.runtime.DeleteInstance(i.ID)
	return i.module.Close(ctx)
}

func generateUUID() string {
	return "inst-" + uuid.NewString()
}
