package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// Segment is one step of a Path: a mapping key or a sequence index.
type Segment struct {
	key     string
	index   int
	isIndex bool
}

// Key returns a mapping-key segment.
func Key(name string) Segment { return Segment{key: name} }

// Index returns a sequence-index segment.
func Index(i int) Segment { return Segment{index: i, isIndex: true} }

func (s Segment) IsIndex() bool { return s.isIndex }

// Key returns the mapping key ("" for index segments).
func (s Segment) Key() string { return s.key }

// Index returns the sequence index (-1 for key segments).
func (s Segment) Index() int {
	if !s.isIndex {
		return -1
	}
	return s.index
}

func (s Segment) String() string {
	if s.isIndex {
		return strconv.Itoa(s.index)
	}
	return s.key
}

// Path addresses a value inside a schema or a parsed document.
type Path []Segment

// PathOf builds a Path from strings (keys) and ints (indexes); other values
// are formatted as keys.
func PathOf(parts ...any) Path {
	p := make(Path, 0, len(parts))
	for _, part := range parts {
		switch v := part.(type) {
		case int:
			p = append(p, Index(v))
		case string:
			p = append(p, Key(v))
		case Segment:
			p = append(p, v)
		default:
			p = append(p, Key(fmt.Sprint(v)))
		}
	}
	return p
}

// Equal compares paths segment by segment (case-sensitive).
func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// Append returns a new path; p is never modified.
func (p Path) Append(segs ...Segment) Path {
	out := make(Path, 0, len(p)+len(segs))
	out = append(out, p...)
	return append(out, segs...)
}

// Concat returns p followed by o as a new path.
func (p Path) Concat(o Path) Path { return p.Append(o...) }

// HasPrefix reports whether p starts with prefix.
func (p Path) HasPrefix(prefix Path) bool {
	return len(prefix) <= len(p) && p[:len(prefix)].Equal(prefix)
}

var jsonPointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")

// Pointer renders the path as an RFC 6901 JSON Pointer ("/" for the root).
func (p Path) Pointer() string {
	if len(p) == 0 {
		return "/"
	}
	b := &strings.Builder{}
	for _, s := range p {
		b.WriteByte('/')
		b.WriteString(jsonPointerEscaper.Replace(s.String()))
	}
	return b.String()
}

// String renders the path as "a -> b -> 0".
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.String()
	}
	return strings.Join(parts, " -> ")
}

// MapKey returns a string usable as a map key; distinct paths map to
// distinct keys.
func (p Path) MapKey() string {
	b := &strings.Builder{}
	for _, s := range p {
		if s.isIndex {
			b.WriteByte('#')
			b.WriteString(strconv.Itoa(s.index))
		} else {
			b.WriteByte('.')
			b.WriteString(s.key)
		}
		b.WriteByte(0)
	}
	return b.String()
}

var jsonPointerUnescaper = strings.NewReplacer("~1", "/", "~0", "~")

// SplitPointer splits a JSON Pointer into unescaped reference tokens.
func SplitPointer(ptr string) []string {
	if ptr == "" || ptr == "/" {
		return nil
	}
	ptr = strings.TrimPrefix(ptr, "/")
	parts := strings.Split(ptr, "/")
	for i := range parts {
		parts[i] = jsonPointerUnescaper.Replace(parts[i])
	}
	return parts
}
