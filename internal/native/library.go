// Package native loads shared libraries through the platform's dynamic
// loader and binds their exported C functions to Go func values.
package native

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/ebitengine/purego"
	"github.com/woxQAQ/rstrlen/api/abi"
)

// Library is an open handle to a dynamically loaded library.
type Library struct {
	path string

	mu     sync.RWMutex
	handle uintptr
	closed bool
}

// Resolve returns the path of the first file in dirs named after the
// platform's convention for the logical library name.
func Resolve(name string, dirs []string) (string, error) {
	fileName := abi.FileName(name, runtime.GOOS)

	for _, dir := range dirs {
		path := filepath.Join(dir, fileName)
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		return path, nil
	}

	return "", &LibraryNotFoundError{
		Name:     name,
		FileName: fileName,
		Dirs:     dirs,
	}
}

// Open loads the library at path.
func Open(path string) (*Library, error) {
	handle, err := openLibrary(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return &Library{path: path, handle: handle}, nil
}

// Path returns the file the library was loaded from.
func (l *Library) Path() string {
	return l.path
}

// Lookup returns the address of an exported symbol.
func (l *Library) Lookup(symbol string) (uintptr, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return 0, &LibraryClosedError{Path: l.path}
	}

	addr, err := lookupSymbol(l.handle, symbol)
	if err != nil {
		return 0, &SymbolNotFoundError{Path: l.path, Symbol: symbol, Err: err}
	}
	return addr, nil
}

// Bind resolves symbol and points fptr, a pointer to a func variable, at it.
// The func's signature must match the C prototype of the symbol.
func (l *Library) Bind(fptr any, symbol string) error {
	addr, err := l.Lookup(symbol)
	if err != nil {
		return err
	}
	purego.RegisterFunc(fptr, addr)
	return nil
}

// Close releases the loader handle. Functions bound from the library must
// not be called afterwards.
func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return closeLibrary(l.handle)
}
