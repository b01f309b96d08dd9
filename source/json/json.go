// Package json parses JSON into located value trees.
//
// The scanner is a strict RFC 8259 tokenizer that reports the byte range of
// every token; engine.BuildTree turns the tokens into nodes with spans.
package json

import (
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	gojson "github.com/goccy/go-json"

	eng "github.com/reoring/goskema-settings/internal/engine"
)

// Options controls enforcement applied while parsing.
type Options struct {
	OnDuplicate eng.DuplicateStrictness
	MaxDepth    int
	MaxBytes    int64
	// IssueSink receives non-fatal issues such as duplicate keys under DupWarn.
	IssueSink func(eng.SimpleIssue)
}

func (o Options) enforced() bool {
	return o.OnDuplicate != eng.DupIgnore || o.MaxDepth > 0 || o.MaxBytes > 0
}

// Parse parses b into a located tree. Input without any value yields an empty
// mapping. Failures are *engine.ParseError positioned at the offending byte.
func Parse(b []byte, opt Options) (*eng.Node, error) {
	lines := eng.NewLineIndex(b)
	var src eng.TokenSource = NewBytes(b)
	if opt.enforced() {
		src = eng.WrapWithEnforcement(src, eng.EnforceOptions{
			OnDuplicate: opt.OnDuplicate,
			MaxDepth:    opt.MaxDepth,
			MaxBytes:    opt.MaxBytes,
			IssueSink:   opt.IssueSink,
		})
	}
	root, err := eng.BuildTree(src, lines)
	if errors.Is(err, io.EOF) {
		return eng.NewMapping(lines.Span(0, 0)), nil
	}
	if err != nil {
		return nil, eng.NewParseError(err, lines)
	}
	return root, nil
}

type phase int

const (
	objKeyOrClose phase = iota
	objKey
	objValue
	objCommaOrClose
	arrValueOrClose
	arrValue
	arrCommaOrClose
)

type frame struct {
	object bool
	phase  phase
}

type scanner struct {
	data    []byte
	pos     int
	stack   []frame
	started bool
}

// NewBytes wraps a byte slice into an engine.TokenSource for JSON.
func NewBytes(b []byte) eng.TokenSource { return &scanner{data: b} }

// NewReader reads r fully and wraps it into an engine.TokenSource.
func NewReader(r io.Reader) (eng.TokenSource, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return NewBytes(b), nil
}

func (s *scanner) Location() int64 { return int64(s.pos) }

func (s *scanner) errorf(off int, format string, args ...any) error {
	return &eng.SyntaxError{Msg: fmt.Sprintf(format, args...), Offset: int64(off)}
}

func (s *scanner) skipSpace() {
	for s.pos < len(s.data) {
		switch s.data[s.pos] {
		case ' ', '\t', '\n', '\r':
			s.pos++
		default:
			return
		}
	}
}

func (s *scanner) NextToken() (eng.Token, error) {
	for {
		s.skipSpace()
		if len(s.stack) == 0 {
			if s.pos >= len(s.data) {
				return eng.Token{}, io.EOF
			}
			if s.started {
				return eng.Token{}, s.errorf(s.pos, "invalid character %q after top-level value", s.data[s.pos])
			}
			s.started = true
			return s.value()
		}
		if s.pos >= len(s.data) {
			return eng.Token{}, s.errorf(s.pos, "unexpected end of input")
		}
		top := &s.stack[len(s.stack)-1]
		c := s.data[s.pos]
		switch top.phase {
		case objKeyOrClose, objKey:
			if c == '}' && top.phase == objKeyOrClose {
				return s.close(eng.KindEndObject), nil
			}
			if c != '"' {
				if top.phase == objKeyOrClose {
					return eng.Token{}, s.errorf(s.pos, "expected string or '}', found %q", c)
				}
				return eng.Token{}, s.errorf(s.pos, "expected object key, found %q", c)
			}
			return s.key(top)
		case objValue:
			top.phase = objCommaOrClose
			return s.value()
		case objCommaOrClose:
			switch c {
			case ',':
				s.pos++
				top.phase = objKey
				continue
			case '}':
				return s.close(eng.KindEndObject), nil
			}
			return eng.Token{}, s.errorf(s.pos, "expected ',' or '}' after object value, found %q", c)
		case arrValueOrClose, arrValue:
			if c == ']' && top.phase == arrValueOrClose {
				return s.close(eng.KindEndArray), nil
			}
			top.phase = arrCommaOrClose
			return s.value()
		case arrCommaOrClose:
			switch c {
			case ',':
				s.pos++
				top.phase = arrValue
				continue
			case ']':
				return s.close(eng.KindEndArray), nil
			}
			return eng.Token{}, s.errorf(s.pos, "expected ',' or ']' after array element, found %q", c)
		}
	}
}

func (s *scanner) close(kind eng.Kind) eng.Token {
	s.stack = s.stack[:len(s.stack)-1]
	tok := eng.Token{Kind: kind, Offset: int64(s.pos), End: int64(s.pos + 1)}
	s.pos++
	return tok
}

func (s *scanner) key(top *frame) (eng.Token, error) {
	start := s.pos
	str, err := s.str()
	if err != nil {
		return eng.Token{}, err
	}
	end := s.pos
	s.skipSpace()
	if s.pos >= len(s.data) || s.data[s.pos] != ':' {
		return eng.Token{}, s.errorf(s.pos, "expected ':' after object key")
	}
	s.pos++
	top.phase = objValue
	return eng.Token{Kind: eng.KindKey, String: str, Offset: int64(start), End: int64(end)}, nil
}

// value reads one value starting at s.pos. The caller has already moved the
// enclosing frame past the value.
func (s *scanner) value() (eng.Token, error) {
	if s.pos >= len(s.data) {
		return eng.Token{}, s.errorf(s.pos, "unexpected end of input")
	}
	start := s.pos
	switch c := s.data[s.pos]; {
	case c == '{':
		s.pos++
		s.stack = append(s.stack, frame{object: true, phase: objKeyOrClose})
		return eng.Token{Kind: eng.KindBeginObject, Offset: int64(start), End: int64(s.pos)}, nil
	case c == '[':
		s.pos++
		s.stack = append(s.stack, frame{phase: arrValueOrClose})
		return eng.Token{Kind: eng.KindBeginArray, Offset: int64(start), End: int64(s.pos)}, nil
	case c == '"':
		str, err := s.str()
		if err != nil {
			return eng.Token{}, err
		}
		return eng.Token{Kind: eng.KindString, String: str, Offset: int64(start), End: int64(s.pos)}, nil
	case c == '-' || (c >= '0' && c <= '9'):
		if err := s.number(); err != nil {
			return eng.Token{}, err
		}
		return eng.Token{Kind: eng.KindNumber, Number: string(s.data[start:s.pos]), Offset: int64(start), End: int64(s.pos)}, nil
	case c == 't':
		if err := s.literal("true"); err != nil {
			return eng.Token{}, err
		}
		return eng.Token{Kind: eng.KindBool, Bool: true, Offset: int64(start), End: int64(s.pos)}, nil
	case c == 'f':
		if err := s.literal("false"); err != nil {
			return eng.Token{}, err
		}
		return eng.Token{Kind: eng.KindBool, Offset: int64(start), End: int64(s.pos)}, nil
	case c == 'n':
		if err := s.literal("null"); err != nil {
			return eng.Token{}, err
		}
		return eng.Token{Kind: eng.KindNull, Offset: int64(start), End: int64(s.pos)}, nil
	default:
		return eng.Token{}, s.errorf(start, "invalid character %q looking for beginning of value", c)
	}
}

func (s *scanner) literal(lit string) error {
	end := s.pos + len(lit)
	if end > len(s.data) || string(s.data[s.pos:end]) != lit {
		return s.errorf(s.pos, "invalid literal, expected %s", lit)
	}
	s.pos = end
	return nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (s *scanner) digits() int {
	n := 0
	for s.pos < len(s.data) && isDigit(s.data[s.pos]) {
		s.pos++
		n++
	}
	return n
}

func (s *scanner) number() error {
	start := s.pos
	if s.data[s.pos] == '-' {
		s.pos++
	}
	switch {
	case s.pos < len(s.data) && s.data[s.pos] == '0':
		s.pos++
	case s.digits() == 0:
		return s.errorf(start, "invalid number literal")
	}
	if s.pos < len(s.data) && s.data[s.pos] == '.' {
		s.pos++
		if s.digits() == 0 {
			return s.errorf(start, "invalid number literal: missing fraction digits")
		}
	}
	if s.pos < len(s.data) && (s.data[s.pos] == 'e' || s.data[s.pos] == 'E') {
		s.pos++
		if s.pos < len(s.data) && (s.data[s.pos] == '+' || s.data[s.pos] == '-') {
			s.pos++
		}
		if s.digits() == 0 {
			return s.errorf(start, "invalid number literal: missing exponent digits")
		}
	}
	return nil
}

// invalidUTF8 returns the offset of the first invalid sequence in b, or -1.
func invalidUTF8(b []byte) int {
	if utf8.Valid(b) {
		return -1
	}
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return -1
}

func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// str scans the string literal at s.pos and leaves s.pos after the closing
// quote. Escaped strings are decoded by go-json.
func (s *scanner) str() (string, error) {
	start := s.pos
	escaped := false
	i := s.pos + 1
	for i < len(s.data) {
		c := s.data[i]
		switch {
		case c == '"':
			if off := invalidUTF8(s.data[start+1 : i]); off >= 0 {
				return "", s.errorf(start+1+off, "invalid UTF-8 in string")
			}
			s.pos = i + 1
			if !escaped {
				return string(s.data[start+1 : i]), nil
			}
			var out string
			if err := gojson.Unmarshal(s.data[start:s.pos], &out); err != nil {
				return "", s.errorf(start, "invalid string literal: %v", err)
			}
			return out, nil
		case c == '\\':
			escaped = true
			if i+1 >= len(s.data) {
				return "", s.errorf(len(s.data), "unexpected end of input in string")
			}
			switch s.data[i+1] {
			case '"', '\\', '/', 'b', 'f', 'n', 'r', 't':
				i += 2
			case 'u':
				if i+6 > len(s.data) {
					return "", s.errorf(i, "invalid unicode escape")
				}
				for _, h := range s.data[i+2 : i+6] {
					if !isHex(h) {
						return "", s.errorf(i, "invalid unicode escape")
					}
				}
				i += 6
			default:
				return "", s.errorf(i, "invalid escape character %q", s.data[i+1])
			}
		case c < 0x20:
			return "", s.errorf(i, "invalid control character in string")
		default:
			i++
		}
	}
	return "", s.errorf(len(s.data), "unterminated string starting at offset %d", start)
}
