// Package abi defines the boundary contract shared by every build of the
// string-length library and by the hosts that load it.
//
// Text crosses the boundary as UTF-8 bytes followed by a single NUL byte.
// The caller owns that storage for the duration of the call; the callee must
// not keep a reference to it after returning. The result is the number of
// UTF-8 bytes before the terminator, or Sentinel when the input is NULL or
// not valid UTF-8.
package abi

// Native library exports (C calling convention).
const (
	// SymbolStringLength is the exported length function.
	// Signature: int64_t calculate_string_length(const char *s)
	SymbolStringLength = "calculate_string_length"

	// SymbolStringLengthLegacy is the name earlier builds of the library
	// exported the same function under. Native builds keep exporting it so
	// existing callers can bind either name.
	SymbolStringLengthLegacy = "calculate_string_length_from_rust"

	// SymbolABIVersion reports the ABI revision implemented by the library.
	// Signature: int32_t rstrlen_abi_version(void)
	SymbolABIVersion = "rstrlen_abi_version"
)

// Wasm guest exports.
//
// NOTE: pointers and sizes are uint32 because Wasm uses a 32-bit linear
// memory. The length function takes a guest pointer instead of a C string.
const (
	// ExportMalloc allocates guest memory.
	// Signature: rstrlen_malloc(size: i32) -> i32 (pointer)
	ExportMalloc = "rstrlen_malloc"

	// ExportFree releases guest memory returned by ExportMalloc.
	// Signature: rstrlen_free(ptr: i32, size: i32) -> void
	ExportFree = "rstrlen_free"

	// ExportStringLength measures a NUL-terminated string in guest memory.
	// Signature: calculate_string_length(ptr: i32) -> i64
	ExportStringLength = SymbolStringLength

	// ExportMemory is the guest's linear memory.
	ExportMemory = "memory"
)

// Wasm host imports, provided under HostModule.
const (
	HostModule = "host"

	// HostLogMessage lets a guest write to the host log.
	// Signature: log_message(level: i32, ptr: i32, len: i32) -> void
	// level: 0 = debug, 1 = info, 2 = warn, 3 = error
	HostLogMessage = "log_message"
)

const (
	// ABIVersion is the revision of this contract.
	ABIVersion int32 = 1

	// Sentinel is returned in place of a length for invalid input.
	Sentinel int64 = -1

	// DefaultLibraryName is the logical name the library is packaged under.
	DefaultLibraryName = "rstrlen"
)

// FileName maps a logical library name to the file name the platform's
// dynamic loader expects.
func FileName(name, goos string) string {
	switch goos {
	case "windows":
		return name + ".dll"
	case "darwin", "ios":
		return "lib" + name + ".dylib"
	default:
		return "lib" + name + ".so"
	}
}
