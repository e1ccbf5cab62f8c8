package protocol

// Result types shared by rstrlen front ends.
// This package defines the machine-readable output of a measurement.

// Measurement is the outcome of measuring one input.
type Measurement struct {
	Input  string `json:"input"`
	Length int64  `json:"length"`
	Units  *Units `json:"units,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Units holds the lengths of an input in units other than UTF-8 bytes.
type Units struct {
	UTF16   int64 `json:"utf16"`
	Scalars int64 `json:"scalars"`
}

// Failed reports whether the input could not be measured.
func (m Measurement) Failed() bool {
	return m.Error != ""
}
