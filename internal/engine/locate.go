package engine

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrLocationNotFound is matched by every LookupError.
var ErrLocationNotFound = errors.New("location not found")

// LookupReason tells why a path could not be resolved.
type LookupReason int

const (
	// LookupMissing: the key or index is absent.
	LookupMissing LookupReason = iota
	// LookupExpectMapping: a key was requested from a non-mapping node.
	LookupExpectMapping
	// LookupExpectList: an index was requested from a non-sequence node.
	LookupExpectList
)

func (r LookupReason) String() string {
	switch r {
	case LookupExpectMapping:
		return "expected mapping"
	case LookupExpectList:
		return "expected list"
	default:
		return "missing"
	}
}

// LookupError reports the path being resolved and the index of the segment
// where resolution failed.
type LookupError struct {
	Reason LookupReason
	Path   Path
	Pos    int
}

func (e *LookupError) Error() string {
	at := Path{}
	if e.Pos < len(e.Path) {
		at = e.Path[:e.Pos+1]
	}
	return fmt.Sprintf("cannot locate %q: %s at %q", e.Path.Pointer(), e.Reason, at.Pointer())
}

func (e *LookupError) Is(target error) bool { return target == ErrLocationNotFound }

// Locate descends from root one segment at a time and returns the node
// addressed by path.
func Locate(root *Node, path Path) (*Node, error) {
	if root == nil {
		return nil, &LookupError{Reason: LookupMissing, Path: path}
	}
	cur := root
	for i, seg := range path {
		if seg.IsIndex() && cur.Kind != SequenceNode {
			return nil, &LookupError{Reason: LookupExpectList, Path: path, Pos: i}
		}
		if !seg.IsIndex() && cur.Kind != MappingNode {
			return nil, &LookupError{Reason: LookupExpectMapping, Path: path, Pos: i}
		}
		next, ok := cur.Child(seg)
		if !ok {
			return nil, &LookupError{Reason: LookupMissing, Path: path, Pos: i}
		}
		cur = next
	}
	return cur, nil
}

// ResolvePointer converts a JSON Pointer into a Path, using the tree to tell
// sequence indexes from mapping keys that look numeric.
func ResolvePointer(root *Node, ptr string) (Path, error) {
	tokens := SplitPointer(ptr)
	p := make(Path, 0, len(tokens))
	cur := root
	for i, tok := range tokens {
		seg := Key(tok)
		if cur != nil && cur.Kind == SequenceNode {
			n, err := strconv.Atoi(tok)
			if err != nil {
				return nil, &LookupError{Reason: LookupExpectMapping, Path: append(p, seg), Pos: i}
			}
			seg = Index(n)
		}
		p = append(p, seg)
		if cur != nil {
			next, ok := cur.Child(seg)
			if !ok {
				return nil, &LookupError{Reason: LookupMissing, Path: p, Pos: i}
			}
			cur = next
		}
	}
	return p, nil
}
