//go:build wasip1

package wasm

import "unsafe"

// allocations pins buffers handed to the host until they are freed.
var allocations = make(map[uint32][]byte)

//go:wasmimport host log_message
func logMessage(level, ptr, length uint32)

// Log sends msg to the host logger.
func Log(level LogLevel, msg string) {
	if msg == "" {
		return
	}
	b := []byte(msg)
	logMessage(uint32(level), ptr(b), uint32(len(b)))
}

// Malloc returns a guest buffer of size bytes that stays valid until Free.
// A zero size yields the null pointer.
func Malloc(size uint32) uint32 {
	if size == 0 {
		return 0
	}
	buf := make([]byte, size)
	p := ptr(buf)
	allocations[p] = buf
	return p
}

// Free releases a buffer returned by Malloc.
func Free(p uint32) {
	delete(allocations, p)
}

// CString returns the bytes at p up to, not including, the first NUL.
// The slice aliases guest memory.
func CString(p uint32) []byte {
	base := unsafe.Pointer(uintptr(p))
	n := 0
	for *(*byte)(unsafe.Add(base, n)) != 0 {
		n++
	}
	return unsafe.Slice((*byte)(base), n)
}

func ptr(b []byte) uint32 {
	return uint32(uintptr(unsafe.Pointer(unsafe.SliceData(b))))
}
