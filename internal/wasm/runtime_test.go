package wasm

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestNewRuntime(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatalf("Failed to create runtime: %v", err)
	}

	if runtime == nil {
		t.Fatal("Runtime is nil")
	}

	// Cleanup
	if err := runtime.Close(context.Background()); err != nil {
		t.Errorf("Failed to close runtime: %v", err)
	}
}

func TestRuntimeCloseIdempotent(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}

	// Close multiple times should not error.
	if err := runtime.Close(ctx); err != nil {
		t.Errorf("First close failed: %v", err)
	}
	if err := runtime.Close(ctx); err != nil {
		t.Errorf("Second close failed: %v", err)
	}
}

func TestDefaultRuntimeConfig(t *testing.T) {
	config := DefaultRuntimeConfig()

	if config.MemoryPages != 256 {
		t.Errorf("Default memory pages = %d, want 256", config.MemoryPages)
	}

	if config.DebugEnabled {
		t.Error("Debug should be disabled by default")
	}

	if config.MaxInstances != 4 {
		t.Errorf("Default max instances = %d, want 4", config.MaxInstances)
	}

	if config.ExecutionTimeout != 30*time.Second {
		t.Errorf("Default execution timeout = %v, want 30s", config.ExecutionTimeout)
	}
}

func TestRuntimeConfiguration(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	config := &RuntimeConfig{
		MemoryPages:  128,
		DebugEnabled: true,
		MaxInstances: 50,
	}

	runtime, err := NewRuntime(ctx, logger, config)
	if err != nil {
		t.Fatalf("Failed to create runtime: %v", err)
	}

	if runtime.config.MemoryPages != 128 {
		t.Errorf("Memory pages not set correctly")
	}

	runtime.Close(ctx)
}

func TestRuntimeContextCancellation(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx, cancel := context.WithCancel(context.Background())

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}

	// Cancel context.
	cancel()

	// Close with cancelled context.
	err = runtime.Close(ctx)
	// wazero should handle cancelled context gracefully
	if err != nil && err != context.Canceled {
		t.Errorf("Unexpected error when closing with cancelled context: %v", err)
	}
}

func TestRuntimeCompilationCacheDir(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	config := DefaultRuntimeConfig()
	config.CacheDir = t.TempDir()

	runtime, err := NewRuntime(ctx, logger, config)
	if err != nil {
		t.Fatalf("Failed to create runtime with cache dir: %v", err)
	}

	if runtime.cache == nil {
		t.Error("Compilation cache should be configured")
	}

	if err := runtime.Close(ctx); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestRuntimeInstanceTracking(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer runtime.Close(ctx)

	inst := &Instance{ID: "test-instance"}
	runtime.StoreInstance(inst)

	retrieved, ok := runtime.GetInstance("test-instance")
	if !ok {
		t.Fatal("Failed to retrieve instance from tracking")
	}

	if retrieved != inst {
		t.Errorf("Retrieved wrong instance")
	}

	if runtime.InstanceCount() != 1 {
		t.Errorf("InstanceCount() = %d, want 1", runtime.InstanceCount())
	}

	runtime.DeleteInstance("test-instance")

	_, ok = runtime.GetInstance("test-instance")
	if ok {
		t.Error("Instance should have been deleted")
	}
}

func TestRuntimeIsClosed(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}

	if runtime.IsClosed() {
		t.Error("Runtime should not be closed initially")
	}

	runtime.Close(ctx)

	if !runtime.IsClosed() {
		t.Error("Runtime should be closed after Close()")
	}
}

func TestCompilationError(t *testing.T) {
	err := &CompilationError{
		Path: "/lib/rstrlen.wasm",
		Err:  &testError{},
	}

	expected := "failed to compile Wasm module '/lib/rstrlen.wasm': test error"
	if err.Error() != expected {
		t.Errorf("Error message = %s, want %s", err.Error(), expected)
	}
}

func TestInstantiationError(t *testing.T) {
	err := &InstantiationError{
		Module:     "test",
		InstanceID: "inst-1",
		Err:        &testError{},
	}

	expected := "failed to instantiate module 'test' (instance: inst-1): test error"
	if err.Error() != expected {
		t.Errorf("Error message = %s, want %s", err.Error(), expected)
	}
}

func TestModuleNotLoadedError(t *testing.T) {
	err := &ModuleNotLoadedError{Module: "test"}

	expected := "module 'test' is not loaded"
	if err.Error() != expected {
		t.Errorf("Error message = %s, want %s", err.Error(), expected)
	}
}

func TestMissingExportError(t *testing.T) {
	err := &MissingExportError{
		Module: "test",
		Export: "calculate_string_length",
	}

	expected := "module 'test' does not export 'calculate_string_length'"
	if err.Error() != expected {
		t.Errorf("Error message = %s, want %s", err.Error(), expected)
	}
}

func TestGuestMemoryError(t *testing.T) {
	err := &GuestMemoryError{Op: "free", Ptr: 1024, Size: 6, Err: &testError{}}

	expected := "guest free failed (ptr=1024, size=6): test error"
	if err.Error() != expected {
		t.Errorf("Error message = %s, want %s", err.Error(), expected)
	}
	if _, ok := err.Unwrap().(*testError); !ok {
		t.Error("GuestMemoryError should unwrap to its cause")
	}
}

func TestTimeoutError(t *testing.T) {
	err := &TimeoutError{Limit: 2 * time.Second}

	expected := "Wasm execution timed out after 2s"
	if err.Error() != expected {
		t.Errorf("Error message = %s, want %s", err.Error(), expected)
	}
}

// testError is a simple error for testing.
type testError struct{}

func (e *testError) Error() string {
	return "test error"
}
