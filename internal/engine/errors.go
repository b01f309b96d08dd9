package engine

import (
	"errors"
	"fmt"
)

// ErrRootNotMapping is the cause of a ParseError for documents whose root
// value is not a mapping.
var ErrRootNotMapping = errors.New("document root item must be a mapping")

// SyntaxError is a scanner failure at a byte offset.
type SyntaxError struct {
	Msg    string
	Offset int64
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s (offset %d)", e.Msg, e.Offset)
}

// ParseError reports malformed source text. Span is nil when no position is
// known, and a point span when only the start is known. Related optionally
// locates a second place involved in the failure.
type ParseError struct {
	Cause   error
	Span    *Span
	Related *Span
}

func (e *ParseError) Error() string {
	msg := e.Cause.Error()
	var se *SyntaxError
	if errors.As(e.Cause, &se) {
		msg = se.Msg
	}
	if e.Span == nil || !e.Span.Known() {
		return "parse error: " + msg
	}
	if e.Related != nil && e.Related.Known() {
		return fmt.Sprintf("parse error at %s: %s (see %s)", e.Span, msg, e.Related)
	}
	return fmt.Sprintf("parse error at %s: %s", e.Span, msg)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// NewParseError converts a scanner or enforcement failure into a ParseError
// positioned through lines. Errors without an offset get a nil span.
func NewParseError(err error, lines *LineIndex) *ParseError {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe
	}
	out := &ParseError{Cause: err}
	var se *SyntaxError
	var ie *IssueError
	switch {
	case errors.As(err, &se) && lines != nil:
		sp := lines.Point(int(se.Offset))
		out.Span = &sp
	case errors.As(err, &ie) && lines != nil:
		sp := lines.Point(int(ie.Offset))
		out.Span = &sp
		if ie.Related >= 0 {
			rel := lines.Point(int(ie.Related))
			out.Related = &rel
		}
	}
	return out
}
