//go:build linux || darwin

package native

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func openLibc(t *testing.T) *Library {
	t.Helper()

	path := "libc.so.6"
	if runtime.GOOS == "darwin" {
		path = "/usr/lib/libSystem.B.dylib"
	}

	lib, err := Open(path)
	if err != nil {
		t.Skipf("libc not loadable here: %v", err)
	}
	t.Cleanup(func() { lib.Close() })
	return lib
}

func TestBind_LibcStrlen(t *testing.T) {
	lib := openLibc(t)

	var cStrlen func(*byte) uint64
	require.NoError(t, lib.Bind(&cStrlen, "strlen"))

	buf := []byte("hello\x00")
	assert.Equal(t, uint64(5), cStrlen(&buf[0]))
}

func TestBind_MissingSymbol(t *testing.T) {
	lib := openLibc(t)

	var fn func()
	err := lib.Bind(&fn, "rstrlen_definitely_not_exported")
	require.Error(t, err)

	var symErr *SymbolNotFoundError
	require.ErrorAs(t, err, &symErr)
	assert.Equal(t, "rstrlen_definitely_not_exported", symErr.Symbol)
}

func TestLookup_AfterClose(t *testing.T) {
	lib := openLibc(t)
	require.NoError(t, lib.Close())
	require.NoError(t, lib.Close())

	_, err := lib.Lookup("strlen")
	var closed *LibraryClosedError
	require.ErrorAs(t, err, &closed)
}

// libc's strlen shares the C prototype but exports no ABI version, so it
// binds as an unversioned library.
func TestNewStringLength_Unversioned(t *testing.T) {
	lib := openLibc(t)

	s, err := NewStringLength(lib, "strlen", zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, int32(0), s.ABIVersion())

	n, err := s.Length(context.Background(), "héllo")
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)

	n, err = s.Length(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestStringLength_InteriorNUL(t *testing.T) {
	lib := openLibc(t)

	s, err := NewStringLength(lib, "strlen", zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = s.Length(context.Background(), "hel\x00lo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interior NUL byte")
}

func TestStringLength_CanceledContext(t *testing.T) {
	lib := openLibc(t)

	s, err := NewStringLength(lib, "strlen", zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Length(ctx, "hello")
	require.ErrorIs(t, err, context.Canceled)
}
