package native

import (
	"fmt"
	"strings"
)

// LibraryNotFoundError occurs when no search directory holds the platform
// file for a logical library name.
type LibraryNotFoundError struct {
	Name     string
	FileName string
	Dirs     []string
}

func (e *LibraryNotFoundError) Error() string {
	return fmt.Sprintf("library '%s' (%s) not found in [%s]",
		e.Name, e.FileName, strings.Join(e.Dirs, ", "))
}

// LoadError occurs when the dynamic loader rejects a library file.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load library '%s': %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// SymbolNotFoundError occurs when a library does not export a symbol.
type SymbolNotFoundError struct {
	Path   string
	Symbol string
	Err    error
}

func (e *SymbolNotFoundError) Error() string {
	return fmt.Sprintf("symbol '%s' not found in library '%s': %v", e.Symbol, e.Path, e.Err)
}

func (e *SymbolNotFoundError) Unwrap() error {
	return e.Err
}

// ABIVersionError occurs when a library implements a different ABI revision.
type ABIVersionError struct {
	Path string
	Got  int32
	Want int32
}

func (e *ABIVersionError) Error() string {
	return fmt.Sprintf("library '%s' implements ABI version %d, want %d", e.Path, e.Got, e.Want)
}

// LibraryClosedError occurs when a closed library is used.
type LibraryClosedError struct {
	Path string
}

func (e *LibraryClosedError) Error() string {
	return fmt.Sprintf("library '%s' is closed", e.Path)
}
