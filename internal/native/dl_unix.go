//go:build darwin || freebsd || linux || netbsd

package native

import (
	"runtime"

	"github.com/ebitengine/purego"
)

// A Go runtime inside a shared library cannot be unmapped, so images are
// always opened with RTLD_NODELETE.
func rtldNodelete() int {
	if runtime.GOOS == "darwin" {
		return 0x80
	}
	return 0x1000
}

func openLibrary(path string) (uintptr, error) {
	return purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL|rtldNodelete())
}

func lookupSymbol(handle uintptr, name string) (uintptr, error) {
	return purego.Dlsym(handle, name)
}

func closeLibrary(handle uintptr) error {
	return purego.Dlclose(handle)
}
