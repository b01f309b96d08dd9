package engine

import (
	"errors"
	"io"
)

// Kind represents token kinds from a generic source.
type Kind int

const (
	KindBeginObject Kind = iota
	KindEndObject
	KindBeginArray
	KindEndArray
	KindKey
	KindString
	KindNumber
	KindBool
	KindNull
)

func (k Kind) String() string {
	switch k {
	case KindBeginObject:
		return "'{'"
	case KindEndObject:
		return "'}'"
	case KindBeginArray:
		return "'['"
	case KindEndArray:
		return "']'"
	case KindKey:
		return "object key"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindNull:
		return "null"
	default:
		return "token"
	}
}

// Token is a lexical token with its byte range in the input.
// Offset is the first byte, End is one past the last byte.
type Token struct {
	Kind   Kind
	String string
	Number string
	Bool   bool
	Offset int64
	End    int64
}

// TokenSource is a minimal interface required by the engine.
// NextToken returns io.EOF once the input is exhausted.
type TokenSource interface {
	NextToken() (Token, error)
	Location() int64
}

// BuildTree assembles a located value tree from src. Spans are computed with
// lines, which must index the same input the source reads.
//
// An input without any value yields io.EOF; callers decide whether that is an
// empty document or an error. Trailing tokens after the root value are a
// *SyntaxError. A repeated object key replaces the earlier value.
func BuildTree(src TokenSource, lines *LineIndex) (*Node, error) {
	tok, err := src.NextToken()
	if err != nil {
		return nil, err
	}
	b := &treeBuilder{src: src, lines: lines}
	root, err := b.value(tok)
	if err != nil {
		return nil, err
	}
	extra, err := src.NextToken()
	switch {
	case errors.Is(err, io.EOF):
		return root, nil
	case err != nil:
		return nil, err
	default:
		return nil, &SyntaxError{Msg: "unexpected " + extra.Kind.String() + " after top-level value", Offset: extra.Offset}
	}
}

type treeBuilder struct {
	src   TokenSource
	lines *LineIndex
}

func (b *treeBuilder) span(start, end int64) Span {
	return b.lines.Span(int(start), int(end))
}

func (b *treeBuilder) next() (Token, error) {
	tok, err := b.src.NextToken()
	if errors.Is(err, io.EOF) {
		return Token{}, &SyntaxError{Msg: "unexpected end of input", Offset: b.src.Location()}
	}
	return tok, err
}

func (b *treeBuilder) value(tok Token) (*Node, error) {
	switch tok.Kind {
	case KindBeginObject:
		return b.object(tok)
	case KindBeginArray:
		return b.array(tok)
	case KindString:
		return &Node{Kind: StringNode, Span: b.span(tok.Offset, tok.End), Value: tok.String}, nil
	case KindNumber:
		return &Node{Kind: NumberNode, Span: b.span(tok.Offset, tok.End), Value: Number(tok.Number)}, nil
	case KindBool:
		return &Node{Kind: BoolNode, Span: b.span(tok.Offset, tok.End), Value: tok.Bool}, nil
	case KindNull:
		return &Node{Kind: NullNode, Span: b.span(tok.Offset, tok.End)}, nil
	default:
		return nil, &SyntaxError{Msg: "unexpected " + tok.Kind.String(), Offset: tok.Offset}
	}
}

func (b *treeBuilder) object(open Token) (*Node, error) {
	n := &Node{Kind: MappingNode, Fields: map[string]*Node{}}
	for {
		tok, err := b.next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == KindEndObject {
			n.Span = b.span(open.Offset, tok.End)
			return n, nil
		}
		if tok.Kind != KindKey {
			return nil, &SyntaxError{Msg: "expected object key, got " + tok.Kind.String(), Offset: tok.Offset}
		}
		vt, err := b.next()
		if err != nil {
			return nil, err
		}
		v, err := b.value(vt)
		if err != nil {
			return nil, err
		}
		n.Set(tok.String, v)
	}
}

func (b *treeBuilder) array(open Token) (*Node, error) {
	n := &Node{Kind: SequenceNode, Items: []*Node{}}
	for {
		tok, err := b.next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == KindEndArray {
			n.Span = b.span(open.Offset, tok.End)
			return n, nil
		}
		v, err := b.value(tok)
		if err != nil {
			return nil, err
		}
		n.Items = append(n.Items, v)
	}
}
