package settings

import (
	"fmt"

	eng "github.com/reoring/goskema-settings/internal/engine"
)

// Document is parsed configuration text: the plain values plus the located
// tree they were stripped from.
type Document struct {
	// Values is the span-free mapping handed to binding.
	Values map[string]any
	// File is the path the text was read from, "" for in-memory text.
	File string
	root *Node
}

// NewDocument wraps a parsed tree. The root must be a mapping; an empty
// document is represented by an empty mapping.
func NewDocument(root *Node, file string) (*Document, error) {
	if root == nil {
		root = eng.NewMapping(eng.NoSpan)
	}
	if root.Kind != eng.MappingNode {
		return nil, &ParsingError{Cause: eng.ErrRootNotMapping}
	}
	values, _ := root.Plain().(map[string]any)
	return &Document{Values: values, File: file, root: root}, nil
}

// Root returns the located tree.
func (d *Document) Root() *Node { return d.root }

// Location returns the span of the value at path.
func (d *Document) Location(path Path) (Span, error) {
	if d == nil {
		return NoSpan, &LookupError{Reason: eng.LookupMissing, Path: path}
	}
	n, err := eng.Locate(d.root, path)
	if err != nil {
		return NoSpan, err
	}
	return n.Span, nil
}

// Locate implements Locator. Values decoded without positions are reported
// as not found.
func (d *Document) Locate(path Path) (SourceLoc, error) {
	sp, err := d.Location(path)
	if err != nil {
		return SourceLoc{}, err
	}
	if !sp.Known() {
		return SourceLoc{}, fmt.Errorf("%w: no position recorded for %s", ErrLocationNotFound, path.Pointer())
	}
	return SourceLoc{Span: &sp, File: d.File}, nil
}
