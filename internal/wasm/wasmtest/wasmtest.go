// Package wasmtest provides hand-assembled Wasm modules for tests.
package wasmtest

// EmptyModule is a valid Wasm 1.0 module with no sections.
var EmptyModule = []byte{
	0x00, 0x61, 0x73, 0x6d, // Magic number: \0asm
	0x01, 0x00, 0x00, 0x00, // Version: 1
}

// Section IDs.
const (
	secType     = 0x01
	secFunction = 0x03
	secMemory   = 0x05
	secGlobal   = 0x06
	secExport   = 0x07
	secCode     = 0x0a
)

// Value types and export kinds.
const (
	i32 = 0x7f
	i64 = 0x7e

	exportFunc   = 0x00
	exportMemory = 0x02
)

// StringLengthModule returns a module implementing the guest ABI of the
// string-length library:
//
//	(memory (export "memory") 1)
//	(global $heap (mut i32) (i32.const 1024))
//	(func (export "rstrlen_malloc") (param i32) (result i32))   ;; bump allocator
//	(func (export "rstrlen_free") (param i32 i32))              ;; pops the last allocation
//	(func (export "calculate_string_length") (param i32) (result i64))
//
// calculate_string_length returns -1 for a null pointer and otherwise the
// number of bytes before the first NUL. Unlike the real guest it does not
// validate UTF-8.
func StringLengthModule() []byte {
	strlen := body([]byte{0x01, 0x01, i32}, // one i32 local: $cur
		0x20, 0x00, // local.get $ptr
		0x45,       // i32.eqz
		0x04, 0x40, // if
		0x42, 0x7f, //   i64.const -1
		0x0f, //   return
		0x0b, // end
		0x20, 0x00, // local.get $ptr
		0x21, 0x01, // local.set $cur
		0x02, 0x40, // block
		0x03, 0x40, //   loop
		0x20, 0x01, //     local.get $cur
		0x2d, 0x00, 0x00, //     i32.load8_u
		0x45,       //     i32.eqz
		0x0d, 0x01, //     br_if 1
		0x20, 0x01, //     local.get $cur
		0x41, 0x01, //     i32.const 1
		0x6a,       //     i32.add
		0x21, 0x01, //     local.set $cur
		0x0c, 0x00, //     br 0
		0x0b, //   end
		0x0b, // end
		0x20, 0x01, // local.get $cur
		0x20, 0x00, // local.get $ptr
		0x6b, // i32.sub
		0xad, // i64.extend_i32_u
		0x0b, // end
	)
	return stringLengthABI(strlen)
}

// HangingModule has the same exports as StringLengthModule, but its
// calculate_string_length never returns:
//
//	(func (export "calculate_string_length") (param i32) (result i64)
//	  (loop (br 0)) (i64.const 0))
func HangingModule() []byte {
	spin := body(nil,
		0x03, 0x40, // loop
		0x0c, 0x00, //   br 0
		0x0b, // end
		0x42, 0x00, // i64.const 0
		0x0b, // end
	)
	return stringLengthABI(spin)
}

// stringLengthABI assembles the module shared by the test guests around the
// given calculate_string_length body.
func stringLengthABI(strlen []byte) []byte {
	types := vec(
		funcType([]byte{i32}, []byte{i32}),
		funcType([]byte{i32, i32}, nil),
		funcType([]byte{i32}, []byte{i64}),
	)

	funcs := vec([]byte{0x00}, []byte{0x01}, []byte{0x02})

	// One memory, no maximum, one page.
	memory := vec([]byte{0x00, 0x01})

	// Mutable i32 initialised with i32.const 1024.
	globals := vec([]byte{i32, 0x01, 0x41, 0x80, 0x08, 0x0b})

	exports := vec(
		export("memory", exportMemory, 0),
		export("rstrlen_malloc", exportFunc, 0),
		export("rstrlen_free", exportFunc, 1),
		export("calculate_string_length", exportFunc, 2),
	)

	malloc := body(nil,
		0x23, 0x00, // global.get $heap
		0x23, 0x00, // global.get $heap
		0x20, 0x00, // local.get $size
		0x6a,       // i32.add
		0x24, 0x00, // global.set $heap
		0x0b, // end
	)

	free := body(nil,
		0x20, 0x00, // local.get $ptr
		0x20, 0x01, // local.get $size
		0x6a,       // i32.add
		0x23, 0x00, // global.get $heap
		0x46,       // i32.eq
		0x04, 0x40, // if
		0x20, 0x00, //   local.get $ptr
		0x24, 0x00, //   global.set $heap
		0x0b, // end
		0x0b, // end
	)

	code := vec(malloc, free, strlen)

	out := append([]byte{}, EmptyModule...)
	out = append(out, section(secType, types)...)
	out = append(out, section(secFunction, funcs)...)
	out = append(out, section(secMemory, memory)...)
	out = append(out, section(secGlobal, globals)...)
	out = append(out, section(secExport, exports)...)
	out = append(out, section(secCode, code)...)
	return out
}

func section(id byte, content []byte) []byte {
	out := []byte{id}
	out = append(out, uleb(uint32(len(content)))...)
	return append(out, content...)
}

func vec(items ...[]byte) []byte {
	out := uleb(uint32(len(items)))
	for _, item := range items {
		out = append(out, item...)
	}
	return out
}

func funcType(params, results []byte) []byte {
	out := []byte{0x60}
	out = append(out, uleb(uint32(len(params)))...)
	out = append(out, params...)
	out = append(out, uleb(uint32(len(results)))...)
	return append(out, results...)
}

func export(name string, kind byte, index uint32) []byte {
	out := uleb(uint32(len(name)))
	out = append(out, name...)
	out = append(out, kind)
	return append(out, uleb(index)...)
}

// body encodes a function body. locals is the already-encoded local
// declaration vector; nil means no locals.
func body(locals []byte, instrs ...byte) []byte {
	if locals == nil {
		locals = []byte{0x00}
	}
	content := append(append([]byte{}, locals...), instrs...)
	return append(uleb(uint32(len(content))), content...)
}

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}
