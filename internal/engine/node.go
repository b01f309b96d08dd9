package engine

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Number keeps a numeric literal's text so no precision is lost before the
// value is bound to a concrete Go type.
type Number string

func (n Number) String() string { return string(n) }

// Int64 parses the literal as a base-10 integer.
func (n Number) Int64() (int64, error) { return strconv.ParseInt(string(n), 10, 64) }

// Uint64 parses the literal as a base-10 unsigned integer.
func (n Number) Uint64() (uint64, error) { return strconv.ParseUint(string(n), 10, 64) }

// Float64 parses the literal as a float.
func (n Number) Float64() (float64, error) { return strconv.ParseFloat(string(n), 64) }

// NodeKind enumerates value node kinds.
type NodeKind int

const (
	NullNode NodeKind = iota
	BoolNode
	NumberNode
	StringNode
	SequenceNode
	MappingNode
)

func (k NodeKind) String() string {
	switch k {
	case NullNode:
		return "null"
	case BoolNode:
		return "bool"
	case NumberNode:
		return "number"
	case StringNode:
		return "string"
	case SequenceNode:
		return "sequence"
	case MappingNode:
		return "mapping"
	default:
		return "unknown"
	}
}

// Node is a parsed value together with the span it came from.
type Node struct {
	Kind NodeKind
	Span Span
	// Value holds scalars: nil, bool, Number or string.
	Value any
	// Items holds sequence elements.
	Items []*Node
	// Keys keeps mapping keys in document order; Fields indexes them.
	Keys   []string
	Fields map[string]*Node
}

// NewMapping returns an empty mapping node.
func NewMapping(span Span) *Node {
	return &Node{Kind: MappingNode, Span: span, Fields: map[string]*Node{}}
}

// Set adds or replaces a mapping entry. A replaced key keeps its position.
func (n *Node) Set(key string, child *Node) {
	if n.Fields == nil {
		n.Fields = map[string]*Node{}
	}
	if _, ok := n.Fields[key]; !ok {
		n.Keys = append(n.Keys, key)
	}
	n.Fields[key] = child
}

// Child returns the direct child addressed by seg.
func (n *Node) Child(seg Segment) (*Node, bool) {
	if seg.IsIndex() {
		i := seg.Index()
		if n.Kind != SequenceNode || i < 0 || i >= len(n.Items) {
			return nil, false
		}
		return n.Items[i], true
	}
	if n.Kind != MappingNode {
		return nil, false
	}
	c, ok := n.Fields[seg.Key()]
	return c, ok
}

// Plain returns the value without spans. Containers are freshly allocated on
// every call so callers may modify the result.
func (n *Node) Plain() any {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case MappingNode:
		m := make(map[string]any, len(n.Fields))
		for k, c := range n.Fields {
			m[k] = c.Plain()
		}
		return m
	case SequenceNode:
		arr := make([]any, len(n.Items))
		for i, c := range n.Items {
			arr[i] = c.Plain()
		}
		return arr
	default:
		return n.Value
	}
}

// Walk visits n and all descendants depth-first in document order.
func (n *Node) Walk(fn func(p Path, n *Node)) {
	n.walk(nil, fn)
}

func (n *Node) walk(p Path, fn func(Path, *Node)) {
	fn(p, n)
	switch n.Kind {
	case MappingNode:
		for _, k := range n.Keys {
			n.Fields[k].walk(p.Append(Key(k)), fn)
		}
	case SequenceNode:
		for i, c := range n.Items {
			c.walk(p.Append(Index(i)), fn)
		}
	}
}

// NodeFromPlain wraps a plain decoded value into nodes sharing one span.
// It serves decoders without position information.
func NodeFromPlain(v any, span Span) (*Node, error) {
	switch t := v.(type) {
	case nil:
		return &Node{Kind: NullNode, Span: span}, nil
	case bool:
		return &Node{Kind: BoolNode, Span: span, Value: t}, nil
	case string:
		return &Node{Kind: StringNode, Span: span, Value: t}, nil
	case Number:
		return &Node{Kind: NumberNode, Span: span, Value: t}, nil
	case int:
		return &Node{Kind: NumberNode, Span: span, Value: Number(strconv.Itoa(t))}, nil
	case int64:
		return &Node{Kind: NumberNode, Span: span, Value: Number(strconv.FormatInt(t, 10))}, nil
	case uint64:
		return &Node{Kind: NumberNode, Span: span, Value: Number(strconv.FormatUint(t, 10))}, nil
	case float64:
		return &Node{Kind: NumberNode, Span: span, Value: Number(strconv.FormatFloat(t, 'g', -1, 64))}, nil
	case time.Time:
		return &Node{Kind: StringNode, Span: span, Value: t.Format(time.RFC3339Nano)}, nil
	case fmt.Stringer:
		return &Node{Kind: StringNode, Span: span, Value: t.String()}, nil
	case []any:
		n := &Node{Kind: SequenceNode, Span: span, Items: make([]*Node, 0, len(t))}
		for _, e := range t {
			c, err := NodeFromPlain(e, span)
			if err != nil {
				return nil, err
			}
			n.Items = append(n.Items, c)
		}
		return n, nil
	case map[string]any:
		n := NewMapping(span)
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			c, err := NodeFromPlain(t[k], span)
			if err != nil {
				return nil, err
			}
			n.Set(k, c)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("engine: unsupported value of type %T", v)
	}
}
