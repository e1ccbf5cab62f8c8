// Package library packages builds of the string-length function and makes
// them available by name.
//
// A library lives in its own directory next to a library.yaml manifest that
// names the backend (a native shared library or a Wasm module) and the file
// to load. Libraries without a manifest can still be found by logical name
// using the platform's file naming convention.
package library

import (
	"context"
	"time"
)

// Func is a bound calculate_string_length, whichever backend serves it.
type Func interface {
	// Length returns the number of UTF-8 bytes in s.
	Length(ctx context.Context, s string) (int64, error)

	// Close releases the backend.
	Close(ctx context.Context) error
}

// Library represents a loaded library with its manifest and bound function.
type Library struct {
	// Manifest is the parsed library metadata
	Manifest *Manifest

	// Func is the bound string-length function
	Func Func

	// Path is the binary the function was loaded from
	Path string

	// LoadedAt is the timestamp when the library was loaded
	LoadedAt time.Time
}

// Name returns the library name.
func (l *Library) Name() string {
	return l.Manifest.Name
}

// Version returns the library version.
func (l *Library) Version() string {
	return l.Manifest.Version
}

// Backend returns how the library is executed.
func (l *Library) Backend() Backend {
	return l.Manifest.Backend
}

// Length measures s with the library's function.
func (l *Library) Length(ctx context.Context, s string) (int64, error) {
	return l.Func.Length(ctx, s)
}

// Close releases the library's backend.
func (l *Library) Close(ctx context.Context) error {
	return l.Func.Close(ctx)
}
