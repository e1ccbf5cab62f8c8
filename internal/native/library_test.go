package native

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woxQAQ/rstrlen/api/abi"
	"go.uber.org/zap"
)

func TestResolve(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()

	fileName := abi.FileName("rstrlen", runtime.GOOS)
	want := filepath.Join(second, fileName)
	require.NoError(t, os.WriteFile(want, []byte("not really a library"), 0o644))

	got, err := Resolve("rstrlen", []string{first, second})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestResolve_FirstMatchWins(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()

	fileName := abi.FileName("rstrlen", runtime.GOOS)
	for _, dir := range []string{first, second} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, fileName), nil, 0o644))
	}

	got, err := Resolve("rstrlen", []string{first, second})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(first, fileName), got)
}

func TestResolve_SkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, abi.FileName("rstrlen", runtime.GOOS)), 0o755))

	_, err := Resolve("rstrlen", []string{dir})
	var notFound *LibraryNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestResolve_NotFound(t *testing.T) {
	dirs := []string{t.TempDir(), "/nonexistent/path"}

	_, err := Resolve("rstrlen", dirs)
	require.Error(t, err)

	var notFound *LibraryNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "rstrlen", notFound.Name)
	assert.Equal(t, abi.FileName("rstrlen", runtime.GOOS), notFound.FileName)
	assert.Equal(t, dirs, notFound.Dirs)
}

func TestOpen_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), abi.FileName("missing", runtime.GOOS))

	_, err := Open(path)
	require.Error(t, err)

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, path, loadErr.Path)
}

func TestOpen_NotALibrary(t *testing.T) {
	path := filepath.Join(t.TempDir(), abi.FileName("garbage", runtime.GOOS))
	require.NoError(t, os.WriteFile(path, []byte("definitely not an ELF, Mach-O or PE image"), 0o644))

	_, err := OpenStringLength(path, zap.NewNop())
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{
			&LibraryNotFoundError{Name: "rstrlen", FileName: "librstrlen.so", Dirs: []string{"a", "b"}},
			"library 'rstrlen' (librstrlen.so) not found in [a, b]",
		},
		{
			&ABIVersionError{Path: "librstrlen.so", Got: 2, Want: 1},
			"library 'librstrlen.so' implements ABI version 2, want 1",
		},
		{
			&LibraryClosedError{Path: "librstrlen.so"},
			"library 'librstrlen.so' is closed",
		},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
	}
}
