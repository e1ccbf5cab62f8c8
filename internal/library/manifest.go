package library

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/woxQAQ/rstrlen/api/abi"
	"gopkg.in/yaml.v3"
)

// ManifestFile is the manifest name looked up in each library directory.
const ManifestFile = "library.yaml"

// Backend selects how a library is executed.
type Backend string

const (
	// BackendNative loads a shared library through the dynamic loader.
	BackendNative Backend = "native"
	// BackendWasm runs a Wasm module inside the wazero runtime.
	BackendWasm Backend = "wasm"
)

// Manifest represents the library.yaml structure.
type Manifest struct {
	Name        string       `yaml:"name"`
	Version     string       `yaml:"version"`
	Backend     Backend      `yaml:"backend"`
	Symbol      string       `yaml:"symbol"`
	Description string       `yaml:"description"`
	Native      NativeConfig `yaml:"native"`
	Wasm        WasmConfig   `yaml:"wasm"`

	// Internal fields
	dir string // Directory containing manifest
}

// NativeConfig holds shared library configuration.
type NativeConfig struct {
	// Library is the logical name, mapped to lib<name>.so, lib<name>.dylib
	// or <name>.dll. Defaults to the manifest name.
	Library string `yaml:"library"`
}

// WasmConfig holds Wasm module configuration.
type WasmConfig struct {
	File string `yaml:"file"`
}

// ParseManifest reads and parses library.yaml from a directory.
func ParseManifest(dir string) (*Manifest, error) {
	manifestPath := filepath.Join(dir, ManifestFile)

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, &ManifestNotFoundError{
			Path: manifestPath,
			Err:  err,
		}
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &ManifestParseError{
			Path: manifestPath,
			Err:  err,
		}
	}

	m.dir = dir
	m.applyDefaults()

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

func (m *Manifest) applyDefaults() {
	if m.Symbol == "" {
		m.Symbol = abi.SymbolStringLength
	}
	if m.Backend == BackendNative && m.Native.Library == "" {
		m.Native.Library = m.Name
	}
}

// Validate checks manifest fields.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return &ManifestValidationError{
			Path:    m.Path(),
			Field:   "name",
			Message: "name is required",
		}
	}

	if m.Version == "" {
		return &ManifestValidationError{
			Path:    m.Path(),
			Field:   "version",
			Message: "version is required",
		}
	}

	switch m.Backend {
	case BackendNative:
		if m.Native.Library == "" {
			return &ManifestValidationError{
				Path:    m.Path(),
				Field:   "native.library",
				Message: "native.library is required",
			}
		}
	case BackendWasm:
		if m.Wasm.File == "" {
			return &ManifestValidationError{
				Path:    m.Path(),
				Field:   "wasm.file",
				Message: "wasm.file is required",
			}
		}
		// The guest ABI has a single length export.
		if m.Symbol != abi.ExportStringLength {
			return &ManifestValidationError{
				Path:    m.Path(),
				Field:   "symbol",
				Message: fmt.Sprintf("wasm libraries must export %s", abi.ExportStringLength),
			}
		}
	case "":
		return &ManifestValidationError{
			Path:    m.Path(),
			Field:   "backend",
			Message: "backend is required",
		}
	default:
		return &ManifestValidationError{
			Path:    m.Path(),
			Field:   "backend",
			Message: fmt.Sprintf("unsupported backend: %s (must be one of: native, wasm)", m.Backend),
		}
	}

	if _, err := os.Stat(m.BinaryPath()); os.IsNotExist(err) {
		return &BinaryNotFoundError{
			ManifestPath: m.Path(),
			File:         m.BinaryFile(),
		}
	}

	return nil
}

// Path returns the manifest file path.
func (m *Manifest) Path() string {
	return filepath.Join(m.dir, ManifestFile)
}

// BinaryFile returns the file name of the library binary for this platform.
func (m *Manifest) BinaryFile() string {
	if m.Backend == BackendWasm {
		return m.Wasm.File
	}
	return abi.FileName(m.Native.Library, runtime.GOOS)
}

// BinaryPath returns the path to the library binary.
func (m *Manifest) BinaryPath() string {
	return filepath.Join(m.dir, m.BinaryFile())
}

// Dir returns the directory containing the manifest.
func (m *Manifest) Dir() string {
	return m.dir
}
