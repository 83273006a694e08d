package audioconv

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFormat indicates a sample rate or channel count that
// cannot be converted.
var ErrUnsupportedFormat = errors.New("audioconv: unsupported format")

// ConversionError reports a failed conversion of a single buffer.
type ConversionError struct {
	From Format
	To   Format

	// Stderr holds diagnostic output of an external converter, if any.
	Stderr string

	Err error
}

func (e *ConversionError) Error() string {
	msg := fmt.Sprintf("audioconv: convert %s -> %s: %v", e.From, e.To, e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ConversionError) Unwrap() error {
	return e.Err
}
