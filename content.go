package settings

import (
	"io"
	"os"
)

type contentKind int

const (
	contentNone contentKind = iota
	contentFile
	contentBytes
	contentReader
)

// Content is the configuration text to load: a file, an in-memory buffer,
// a stream, or nothing (environment only).
type Content struct {
	kind   contentKind
	file   string
	data   []byte
	reader io.Reader
}

// FromFile loads the file at path. Its extension selects the decoder.
func FromFile(path string) Content { return Content{kind: contentFile, file: path} }

// FromBytes loads in-memory text; Options.TypeHint selects the decoder.
func FromBytes(b []byte) Content { return Content{kind: contentBytes, data: b} }

// FromString is FromBytes for a string.
func FromString(s string) Content { return FromBytes([]byte(s)) }

// FromReader reads the whole stream. Readers with a Name method (such as
// *os.File) are treated as files for decoder selection and reporting.
func FromReader(r io.Reader) Content {
	c := Content{kind: contentReader, reader: r}
	if n, ok := r.(interface{ Name() string }); ok {
		c.file = n.Name()
	}
	return c
}

// NoContent loads from the environment only.
func NoContent() Content { return Content{} }

// File returns the file name, "" for in-memory content.
func (c Content) File() string { return c.file }

// Empty reports whether there is no text to decode.
func (c Content) Empty() bool { return c.kind == contentNone }

func (c Content) read() ([]byte, error) {
	switch c.kind {
	case contentFile:
		return os.ReadFile(c.file)
	case contentBytes:
		return c.data, nil
	case contentReader:
		if c.reader == nil {
			return nil, nil
		}
		return io.ReadAll(c.reader)
	}
	return nil, nil
}
