//go:build linux || darwin

package native

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woxQAQ/rstrlen/api/abi"
	"go.uber.org/zap/zaptest"
)

// buildSharedLib compiles cmd/librstrlen as a c-shared library into a
// temporary directory.
func buildSharedLib(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping shared library build in short mode")
	}

	goTool, err := exec.LookPath("go")
	if err != nil {
		t.Skipf("go tool not available: %v", err)
	}

	out, err := exec.Command(goTool, "env", "CGO_ENABLED").Output()
	if err != nil || strings.TrimSpace(string(out)) != "1" {
		t.Skip("cgo is required to build a c-shared library")
	}

	outDir := t.TempDir()
	libPath := filepath.Join(outDir, abi.FileName(abi.DefaultLibraryName, runtime.GOOS))

	cmd := exec.Command(goTool, "build", "-buildmode=c-shared", "-o", libPath, "./cmd/librstrlen")
	cmd.Dir = filepath.Join("..", "..")
	cmd.Env = append(os.Environ(), "CGO_ENABLED=1")
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("build librstrlen: %v\n%s", err, output)
	}

	return outDir
}

func TestSharedLibrary(t *testing.T) {
	dir := buildSharedLib(t)
	ctx := context.Background()

	path, err := Resolve(abi.DefaultLibraryName, []string{dir})
	require.NoError(t, err)

	s, err := OpenStringLength(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close(ctx) })

	t.Run("reports ABI version", func(t *testing.T) {
		assert.Equal(t, abi.ABIVersion, s.ABIVersion())
	})

	t.Run("ascii", func(t *testing.T) {
		n, err := s.Length(ctx, "hello")
		require.NoError(t, err)
		assert.Equal(t, int64(5), n)
	})

	t.Run("empty", func(t *testing.T) {
		n, err := s.Length(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})

	t.Run("counts UTF-8 bytes", func(t *testing.T) {
		n, err := s.Length(ctx, "héllo")
		require.NoError(t, err)
		assert.Equal(t, int64(6), n)
	})

	t.Run("null pointer", func(t *testing.T) {
		assert.Equal(t, abi.Sentinel, s.LengthPtr(nil))
	})

	t.Run("malformed UTF-8", func(t *testing.T) {
		_, err := s.Length(ctx, "h\xffllo")
		require.ErrorIs(t, err, abi.ErrInvalidInput)

		buf := []byte("h\xffllo\x00")
		assert.Equal(t, abi.Sentinel, s.LengthPtr(&buf[0]))
	})

	t.Run("deterministic", func(t *testing.T) {
		for i := 0; i < 50; i++ {
			n, err := s.Length(ctx, "héllo")
			require.NoError(t, err)
			require.Equal(t, int64(6), n)
		}
	})

	t.Run("legacy symbol", func(t *testing.T) {
		lib, err := Open(path)
		require.NoError(t, err)

		legacy, err := NewStringLength(lib, abi.SymbolStringLengthLegacy, zaptest.NewLogger(t))
		require.NoError(t, err)
		t.Cleanup(func() { legacy.Close(ctx) })

		n, err := legacy.Length(ctx, "héllo")
		require.NoError(t, err)
		assert.Equal(t, int64(6), n)

		_, err = legacy.Length(ctx, "h\xffllo")
		require.ErrorIs(t, err, abi.ErrInvalidInput)
	})

	t.Run("concurrent callers", func(t *testing.T) {
		var wg sync.WaitGroup
		errs := make(chan error, 32)

		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				text := strings.Repeat("é", i)
				for j := 0; j < 200; j++ {
					n, err := s.Length(ctx, text)
					if err != nil {
						errs <- err
						return
					}
					if n != int64(2*i) {
						errs <- fmt.Errorf("goroutine %d: got %d, want %d", i, n, 2*i)
						return
					}
				}
			}(i)
		}

		wg.Wait()
		close(errs)
		for err := range errs {
			t.Error(err)
		}
	})
}
