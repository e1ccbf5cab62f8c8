//go:build wasip1

// Command rstrlen-wasm is the WebAssembly build of the string-length
// library. It runs as a WASI reactor:
//
//	GOOS=wasip1 GOARCH=wasm go build -buildmode=c-shared -o rstrlen.wasm ./cmd/rstrlen-wasm
package main

import (
	"github.com/woxQAQ/rstrlen/api/abi"
	"github.com/woxQAQ/rstrlen/api/wasm"
	"github.com/woxQAQ/rstrlen/internal/strlen"
)

//go:wasmexport rstrlen_malloc
func malloc(size uint32) uint32 {
	return wasm.Malloc(size)
}

//go:wasmexport rstrlen_free
func free(ptr, size uint32) {
	wasm.Free(ptr)
}

//go:wasmexport calculate_string_length
func calculateStringLength(ptr uint32) int64 {
	if ptr == 0 {
		wasm.Log(wasm.LevelWarn, "calculate_string_length: null pointer")
		return abi.Sentinel
	}

	length := strlen.Length(wasm.CString(ptr))
	if length == abi.Sentinel {
		wasm.Log(wasm.LevelWarn, "calculate_string_length: malformed UTF-8")
	}
	return length
}

func main() {}
