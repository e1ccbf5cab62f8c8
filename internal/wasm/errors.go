package wasm

import (
	"fmt"
	"time"
)

// CompilationError means a .wasm file could not be compiled.
type CompilationError struct {
	Path string
	Err  error
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("failed to compile Wasm module '%s': %v", e.Path, e.Err)
}

func (e *CompilationError) Unwrap() error {
	return e.Err
}

// InstantiationError means a compiled guest failed to start.
type InstantiationError struct {
	Module     string
	InstanceID string
	Err        error
}

func (e *InstantiationError) Error() string {
	return fmt.Sprintf("failed to instantiate module '%s' (instance: %s): %v",
		e.Module, e.InstanceID, e.Err)
}

func (e *InstantiationError) Unwrap() error {
	return e.Err
}

// ModuleNotLoadedError means no library holds a compiled module under that name.
type ModuleNotLoadedError struct {
	Module string
}

func (e *ModuleNotLoadedError) Error() string {
	return fmt.Sprintf("module '%s' is not loaded", e.Module)
}

// MissingExportError means a guest lacks part of the string-length ABI.
type MissingExportError struct {
	Module string
	Export string
}

func (e *MissingExportError) Error() string {
	return fmt.Sprintf("module '%s' does not export '%s'", e.Module, e.Export)
}

// GuestMemoryError is a failed transfer of a string into or out of guest memory.
type GuestMemoryError struct {
	Op   string // malloc, write or free
	Ptr  uint32
	Size uint32
	Err  error
}

func (e *GuestMemoryError) Error() string {
	return fmt.Sprintf("guest %s failed (ptr=%d, size=%d): %v", e.Op, e.Ptr, e.Size, e.Err)
}

func (e *GuestMemoryError) Unwrap() error {
	return e.Err
}

// TimeoutError means a guest call ran past the execution timeout. The
// instance it ran on is closed.
type TimeoutError struct {
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("Wasm execution timed out after %v", e.Limit)
}

// PoolClosedError occurs when a closed pool is used.
type PoolClosedError struct {
	Module string
}

func (e *PoolClosedError) Error() string {
	return fmt.Sprintf("instance pool for module '%s' is closed", e.Module)
}
