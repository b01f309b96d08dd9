// Package codec converts configuration literals into Go values and back.
//
// Binding uses these codecs for scalar types whose text form needs more than
// strconv: RFC 3339 timestamps and Go durations.
package codec

import (
	"context"
	"fmt"
)

// Codec converts between a wire representation A and a domain value B.
type Codec[A any, B any] interface {
	Decode(ctx context.Context, a A) (B, error)
	Encode(ctx context.Context, b B) (A, error)
}

// FormatError reports a literal that does not match the expected format.
type FormatError struct {
	Format string // e.g. "rfc3339", "duration"
	Input  string
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid %s value %q", e.Format, e.Input)
}

func (e *FormatError) Unwrap() error { return e.Err }
