// Command librstrlen is built as a shared library exporting
// calculate_string_length with the C calling convention (also under its
// older name, calculate_string_length_from_rust):
//
//	go build -buildmode=c-shared -o librstrlen.so ./cmd/librstrlen
//
// Use librstrlen.dylib on macOS and rstrlen.dll on Windows.
package main

/*
#include <stdint.h>
#include <string.h>
*/
import "C"

import (
	"unsafe"

	"github.com/woxQAQ/rstrlen/api/abi"
	"github.com/woxQAQ/rstrlen/internal/strlen"
)

//export calculate_string_length
func calculate_string_length(s *C.char) C.int64_t {
	if s == nil {
		return C.int64_t(abi.Sentinel)
	}
	// View the caller's bytes in place; nothing outlives this call.
	n := C.strlen(s)
	b := unsafe.Slice((*byte)(unsafe.Pointer(s)), int(n))
	return C.int64_t(strlen.Length(b))
}

//export calculate_string_length_from_rust
func calculate_string_length_from_rust(s *C.char) C.int64_t {
	return calculate_string_length(s)
}

//export rstrlen_abi_version
func rstrlen_abi_version() C.int32_t {
	return C.int32_t(abi.ABIVersion)
}

func main() {}
