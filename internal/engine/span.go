package engine

import (
	"sort"
	"strconv"
	"unicode/utf8"
)

// Span locates a value inside source text.
//
// Line and Col address the first character, EndLine and EndCol the last one
// (inclusive). Lines and columns are 1-based; columns count characters.
// Offset and EndOffset are 0-based byte offsets forming a half-open range, so
// text[Offset:EndOffset] is the node's source text. Unknown parts are -1.
type Span struct {
	Line      int
	Col       int
	EndLine   int
	EndCol    int
	Offset    int
	EndOffset int
}

// NoSpan is used by decoders that cannot report positions.
var NoSpan = Span{Line: -1, Col: -1, EndLine: -1, EndCol: -1, Offset: -1, EndOffset: -1}

// Known reports whether the span has a start position.
func (s Span) Known() bool { return s.Line > 0 }

// IsPoint reports whether only the start position is known.
func (s Span) IsPoint() bool { return s.Known() && s.EndLine < 0 }

// Encloses reports whether o lies within s (by byte offsets).
func (s Span) Encloses(o Span) bool {
	return s.Offset <= o.Offset && o.EndOffset <= s.EndOffset
}

func (s Span) String() string {
	if !s.Known() {
		return "?"
	}
	start := strconv.Itoa(s.Line)
	if s.Col > 0 {
		start += ":" + strconv.Itoa(s.Col)
	}
	if s.EndLine < 0 {
		return start
	}
	return start + "-" + strconv.Itoa(s.EndLine) + ":" + strconv.Itoa(s.EndCol)
}

// LineIndex translates byte offsets into line/column positions.
type LineIndex struct {
	text   []byte
	starts []int // byte offset of every line start
}

// NewLineIndex indexes text by counting newlines once.
func NewLineIndex(text []byte) *LineIndex {
	starts := []int{0}
	for i, c := range text {
		if c == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{text: text, starts: starts}
}

// Len returns the size of the indexed text in bytes.
func (li *LineIndex) Len() int { return len(li.text) }

// Text returns the indexed text.
func (li *LineIndex) Text() []byte { return li.text }

// Position returns the 1-based line and column of the byte at offset.
func (li *LineIndex) Position(offset int) (line, col int) {
	if offset < 0 {
		return -1, -1
	}
	if offset > len(li.text) {
		offset = len(li.text)
	}
	i := sort.Search(len(li.starts), func(i int) bool { return li.starts[i] > offset }) - 1
	return i + 1, utf8.RuneCount(li.text[li.starts[i]:offset]) + 1
}

// Offset converts a 1-based line and character column into a byte offset.
// Positions past the end of a line are clamped to the line end.
func (li *LineIndex) Offset(line, col int) int {
	if line < 1 {
		return -1
	}
	if line > len(li.starts) {
		return len(li.text)
	}
	off := li.starts[line-1]
	for n := 1; n < col && off < len(li.text) && li.text[off] != '\n'; n++ {
		_, size := utf8.DecodeRune(li.text[off:])
		off += size
	}
	return off
}

// LineStart returns the byte offset where the given 1-based line begins.
func (li *LineIndex) LineStart(line int) int {
	if line < 1 || line > len(li.starts) {
		return -1
	}
	return li.starts[line-1]
}

// LineEnd returns the byte offset of the newline terminating the line that
// contains offset (or the text length for the last line).
func (li *LineIndex) LineEnd(offset int) int {
	for i := offset; i < len(li.text); i++ {
		if li.text[i] == '\n' {
			return i
		}
	}
	return len(li.text)
}

// Span builds a span for the half-open byte range [start, end).
func (li *LineIndex) Span(start, end int) Span {
	line, col := li.Position(start)
	if end <= start {
		return Span{Line: line, Col: col, EndLine: line, EndCol: col, Offset: start, EndOffset: start}
	}
	// the last character may be multi-byte; locate its first byte
	last := end - 1
	for last > start && !utf8.RuneStart(li.text[last]) {
		last--
	}
	endLine, endCol := li.Position(last)
	return Span{Line: line, Col: col, EndLine: endLine, EndCol: endCol, Offset: start, EndOffset: end}
}

// Point builds a span with only a start position at offset.
func (li *LineIndex) Point(offset int) Span {
	line, col := li.Position(offset)
	return Span{Line: line, Col: col, EndLine: -1, EndCol: -1, Offset: offset, EndOffset: -1}
}
