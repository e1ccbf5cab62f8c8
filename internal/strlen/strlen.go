// Package strlen implements the length computation behind every export of
// calculate_string_length.
package strlen

import (
	"unicode/utf16"
	"unicode/utf8"

	"github.com/woxQAQ/rstrlen/api/abi"
)

// Sentinel is the result for input that is not valid UTF-8.
const Sentinel = abi.Sentinel

// Length returns the number of UTF-8 bytes in b, or Sentinel if b is not
// valid UTF-8. It does not retain b.
func Length(b []byte) int64 {
	if !utf8.Valid(b) {
		return Sentinel
	}
	return int64(len(b))
}

// Counts holds the length of a text value in each code unit a caller might
// mean by "length". Only Bytes crosses the boundary.
type Counts struct {
	Bytes      int64
	UTF16Units int64
	Scalars    int64
}

// Measure returns all unit counts for s.
func Measure(s string) (Counts, error) {
	if !utf8.ValidString(s) {
		return Counts{}, &abi.InvalidInputError{Reason: "malformed UTF-8"}
	}

	c := Counts{Bytes: int64(len(s))}
	for _, r := range s {
		c.Scalars++
		c.UTF16Units += int64(utf16.RuneLen(r))
	}
	return c, nil
}
