package abi

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is matched by every error reporting a NULL or malformed
// text value, on either side of the boundary.
var ErrInvalidInput = errors.New("invalid input")

// InvalidInputError occurs when a text value cannot be measured.
type InvalidInputError struct {
	Symbol string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("%s: %v: %s", e.Symbol, ErrInvalidInput, e.Reason)
	}
	return fmt.Sprintf("%v: %s", ErrInvalidInput, e.Reason)
}

func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}
