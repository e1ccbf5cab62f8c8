package wasm

import (
	"context"
	"errors"

	"github.com/tetratelabs/wazero/api"
	"github.com/woxQAQ/rstrlen/api/abi"
)

// Memory provides safe memory operations for Wasm module interaction.
//
// Reads are bounds-checked against the guest's linear memory. Writes go
// through the guest's own allocator (rstrlen_malloc/rstrlen_free), so the
// host never picks addresses inside guest memory.
type Memory struct {
	module api.Module
	mem    api.Memory
	malloc api.Function
	free   api.Function
}

// NewMemory creates a memory helper.
func NewMemory(module api.Module) *Memory {
	return &Memory{
		module: module,
		mem:    module.Memory(),
		malloc: module.ExportedFunction(abi.ExportMalloc),
		free:   module.ExportedFunction(abi.ExportFree),
	}
}

// ReadBytes returns a view of guest memory, or false when the range is
// out of bounds or the module exports no memory.
func (m *Memory) ReadBytes(ptr uint32, length uint32) ([]byte, bool) {
	if m.mem == nil {
		return nil, false
	}
	return m.mem.Read(ptr, length)
}

// WriteString copies s plus a NUL terminator into guest memory.
// Returns the pointer and the allocation size to pass to Free.
func (m *Memory) WriteString(ctx context.Context, s string) (uint32, uint32, error) {
	data := make([]byte, len(s)+1)
	copy(data, s)
	return m.WriteBytes(ctx, data)
}

// WriteBytes copies data into freshly allocated guest memory.
func (m *Memory) WriteBytes(ctx context.Context, data []byte) (uint32, uint32, error) {
	if m.malloc == nil {
		return 0, 0, &MissingExportError{Module: m.module.Name(), Export: abi.ExportMalloc}
	}
	size := uint32(len(data))
	if size == 0 {
		return 0, 0, nil
	}

	results, err := m.malloc.Call(ctx, uint64(size))
	if err != nil {
		return 0, 0, &GuestMemoryError{Op: "malloc", Size: size, Err: err}
	}
	ptr := uint32(results[0])
	if ptr == 0 {
		return 0, 0, &GuestMemoryError{Op: "malloc", Size: size, Err: errors.New("guest allocator returned null")}
	}

	if !m.mem.Write(ptr, data) {
		m.Free(ctx, ptr, size)
		return 0, 0, &GuestMemoryError{Op: "write", Ptr: ptr, Size: size, Err: errors.New("out of range")}
	}
	return ptr, size, nil
}

// Free releases memory obtained from WriteString or WriteBytes.
func (m *Memory) Free(ctx context.Context, ptr, size uint32) error {
	if ptr == 0 || m.free == nil {
		return nil
	}
	if _, err := m.free.Call(ctx, uint64(ptr), uint64(size)); err != nil {
		return &GuestMemoryError{Op: "free", Ptr: ptr, Size: size, Err: err}
	}
	return nil
}
