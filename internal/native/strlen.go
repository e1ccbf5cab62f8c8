package native

import (
	"context"
	"runtime"
	"strings"

	"github.com/woxQAQ/rstrlen/api/abi"
	"go.uber.org/zap"
)

// StringLength is a bound calculate_string_length export. It is safe for
// concurrent use: the function holds no state and each call gets its own
// buffer.
type StringLength struct {
	lib        *Library
	symbol     string
	abiVersion int32
	fn         func(*byte) int64
	logger     *zap.Logger
}

// OpenStringLength loads the library at path and binds the default symbol.
func OpenStringLength(path string, logger *zap.Logger) (*StringLength, error) {
	lib, err := Open(path)
	if err != nil {
		return nil, err
	}

	s, err := NewStringLength(lib, abi.SymbolStringLength, logger)
	if err != nil {
		lib.Close()
		return nil, err
	}
	return s, nil
}

// NewStringLength binds symbol from an open library. If the library exports
// rstrlen_abi_version, the reported version must equal abi.ABIVersion.
func NewStringLength(lib *Library, symbol string, logger *zap.Logger) (*StringLength, error) {
	logger = logger.With(
		zap.String("component", "native-strlen"),
		zap.String("library", lib.Path()),
	)

	var version int32
	var versionFn func() int32
	if err := lib.Bind(&versionFn, abi.SymbolABIVersion); err == nil {
		version = versionFn()
		if version != abi.ABIVersion {
			return nil, &ABIVersionError{Path: lib.Path(), Got: version, Want: abi.ABIVersion}
		}
	} else {
		logger.Debug("Library does not report an ABI version")
	}

	s := &StringLength{
		lib:        lib,
		symbol:     symbol,
		abiVersion: version,
		logger:     logger,
	}
	if err := lib.Bind(&s.fn, symbol); err != nil {
		return nil, err
	}

	logger.Info("Bound native symbol",
		zap.String("symbol", symbol),
		zap.Int32("abi_version", version),
	)

	return s, nil
}

// Length measures text through the library. Text holding a NUL byte cannot
// be passed as a C string and is rejected before the call.
func (s *StringLength) Length(ctx context.Context, text string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if strings.IndexByte(text, 0) >= 0 {
		return 0, &abi.InvalidInputError{Symbol: s.symbol, Reason: "interior NUL byte"}
	}

	buf := make([]byte, len(text)+1)
	copy(buf, text)

	n := s.fn(&buf[0])
	runtime.KeepAlive(buf)

	if n < 0 {
		s.logger.Debug("Library rejected input", zap.Int64("result", n))
		return 0, &abi.InvalidInputError{Symbol: s.symbol, Reason: "not valid UTF-8"}
	}
	return n, nil
}

// LengthPtr calls the symbol with a raw pointer to a NUL-terminated byte
// sequence. A nil pointer yields abi.Sentinel.
func (s *StringLength) LengthPtr(p *byte) int64 {
	return s.fn(p)
}

// ABIVersion returns the version the library reported, or 0 if it exports
// none.
func (s *StringLength) ABIVersion() int32 {
	return s.abiVersion
}

// Path returns the library file.
func (s *StringLength) Path() string {
	return s.lib.Path()
}

// Close releases the library.
func (s *StringLength) Close(ctx context.Context) error {
	return s.lib.Close()
}
