package wasm

import "testing"

func TestLogLevelValues(t *testing.T) {
	// The host maps these numbers, so they must not move.
	levels := []LogLevel{LevelDebug, LevelInfo, LevelWarn, LevelError}
	for i, level := range levels {
		if level != LogLevel(i) {
			t.Errorf("Level mismatch: got %d, want %d", level, i)
		}
	}
}

func TestLogLevelString(t *testing.T) {
	tests := map[LogLevel]string{
		LevelDebug:  "debug",
		LevelInfo:   "info",
		LevelWarn:   "warn",
		LevelError:  "error",
		LogLevel(9): "unknown",
	}
	for level, want := range tests {
		if got := level.String(); got != want {
			t.Errorf("LogLevel(%d).String() = %q, want %q", level, got, want)
		}
	}
}
