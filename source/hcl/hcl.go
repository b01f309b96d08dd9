// Package hcl parses HCL native syntax into located value trees.
//
// Attributes become mapping entries. A block "type" "a" "b" { ... } becomes
// the mapping at type -> a -> b; repeated unlabeled blocks of one type become
// a sequence. Only literal expressions are accepted.
package hcl

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	eng "github.com/reoring/goskema-settings/internal/engine"
)

// Options controls parsing.
type Options struct {
	MaxDepth int
	MaxBytes int64
}

// Parse parses b as an HCL configuration file. filename only labels
// diagnostics.
func Parse(b []byte, filename string, opt Options) (*eng.Node, error) {
	lines := eng.NewLineIndex(b)
	if opt.MaxBytes > 0 && int64(len(b)) > opt.MaxBytes {
		return nil, eng.NewParseError(&eng.IssueError{SimpleIssue: eng.SimpleIssue{
			Code:    eng.CodeTruncated,
			Path:    eng.Path{},
			Message: "input exceeds " + strconv.FormatInt(opt.MaxBytes, 10) + " bytes",
			Offset:  opt.MaxBytes,
			Related: -1,
		}}, lines)
	}
	file, diags := hclsyntax.ParseConfig(b, filename, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, diagError(diags, lines)
	}
	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, &eng.ParseError{Cause: fmt.Errorf("unexpected HCL body type %T", file.Body)}
	}
	c := &converter{lines: lines, opt: opt}
	root, err := c.body(body, eng.Path{}, 1)
	if err != nil {
		return nil, eng.NewParseError(err, lines)
	}
	return root, nil
}

// diagError reports the first error diagnostic with its subject range.
func diagError(diags hcl.Diagnostics, lines *eng.LineIndex) error {
	for _, d := range diags {
		if d.Severity != hcl.DiagError {
			continue
		}
		msg := d.Summary
		if d.Detail != "" {
			msg += "; " + d.Detail
		}
		if d.Subject == nil {
			return &eng.ParseError{Cause: &eng.SyntaxError{Msg: msg, Offset: -1}}
		}
		sp := lines.Span(d.Subject.Start.Byte, d.Subject.End.Byte)
		return &eng.ParseError{Cause: &eng.SyntaxError{Msg: msg, Offset: int64(sp.Offset)}, Span: &sp}
	}
	return &eng.ParseError{Cause: diags}
}

type converter struct {
	lines *eng.LineIndex
	opt   Options
}

func (c *converter) span(r hcl.Range) eng.Span { return c.lines.Span(r.Start.Byte, r.End.Byte) }

func (c *converter) errorAt(r hcl.Range, format string, args ...any) error {
	return &eng.SyntaxError{Msg: fmt.Sprintf(format, args...), Offset: int64(r.Start.Byte)}
}

func (c *converter) checkDepth(r hcl.Range, path eng.Path, depth int) error {
	if c.opt.MaxDepth > 0 && depth > c.opt.MaxDepth {
		return &eng.IssueError{SimpleIssue: eng.SimpleIssue{
			Code:    eng.CodeMaxDepth,
			Path:    path,
			Message: "nesting exceeds max depth " + strconv.Itoa(c.opt.MaxDepth),
			Offset:  int64(r.Start.Byte),
			Related: -1,
		}}
	}
	return nil
}

type bodyItem struct {
	start int
	attr  *hclsyntax.Attribute
	block *hclsyntax.Block
}

func (c *converter) body(b *hclsyntax.Body, path eng.Path, depth int) (*eng.Node, error) {
	if err := c.checkDepth(b.SrcRange, path, depth); err != nil {
		return nil, err
	}
	items := make([]bodyItem, 0, len(b.Attributes)+len(b.Blocks))
	for _, a := range b.Attributes {
		items = append(items, bodyItem{start: a.SrcRange.Start.Byte, attr: a})
	}
	for _, blk := range b.Blocks {
		items = append(items, bodyItem{start: blk.TypeRange.Start.Byte, block: blk})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].start < items[j].start })

	out := eng.NewMapping(c.span(b.SrcRange))
	defs := map[string]definition{}
	for _, it := range items {
		if it.attr != nil {
			if _, dup := defs[it.attr.Name]; dup {
				return nil, c.errorAt(it.attr.NameRange, "%q is defined both as an attribute and as a block", it.attr.Name)
			}
			v, err := c.expr(it.attr.Expr, path.Append(eng.Key(it.attr.Name)), depth+1)
			if err != nil {
				return nil, err
			}
			out.Set(it.attr.Name, v)
			defs[it.attr.Name] = defAttribute
			continue
		}
		if err := c.block(out, it.block, path, depth, defs); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// definition records how a body entry was introduced.
type definition int

const (
	defAttribute definition = iota + 1
	defSingleBlock
	defBlockList
	defLabeledBlock
)

func (c *converter) block(parent *eng.Node, blk *hclsyntax.Block, path eng.Path, depth int, defs map[string]definition) error {
	sp := c.span(blk.Range())
	def := defs[blk.Type]
	conflict := c.errorAt(blk.TypeRange, "block %s conflicts with an earlier definition of %q", blockName(blk), blk.Type)

	if len(blk.Labels) == 0 {
		p := path.Append(eng.Key(blk.Type))
		switch def {
		case 0:
			b, err := c.body(blk.Body, p, depth+1)
			if err != nil {
				return err
			}
			b.Span = sp
			parent.Set(blk.Type, b)
			defs[blk.Type] = defSingleBlock
		case defSingleBlock:
			first := parent.Fields[blk.Type]
			b, err := c.body(blk.Body, p.Append(eng.Index(1)), depth+2)
			if err != nil {
				return err
			}
			b.Span = sp
			seq := &eng.Node{Kind: eng.SequenceNode, Items: []*eng.Node{first, b}}
			seq.Span = c.lines.Span(first.Span.Offset, sp.EndOffset)
			parent.Set(blk.Type, seq)
			defs[blk.Type] = defBlockList
		case defBlockList:
			seq := parent.Fields[blk.Type]
			b, err := c.body(blk.Body, p.Append(eng.Index(len(seq.Items))), depth+2)
			if err != nil {
				return err
			}
			b.Span = sp
			seq.Items = append(seq.Items, b)
			seq.Span = c.lines.Span(seq.Span.Offset, sp.EndOffset)
		default:
			return conflict
		}
		return nil
	}

	if def != 0 && def != defLabeledBlock {
		return conflict
	}
	defs[blk.Type] = defLabeledBlock
	cur := parent
	p := path
	labels := append([]string{blk.Type}, blk.Labels...)
	for _, label := range labels[:len(labels)-1] {
		p = p.Append(eng.Key(label))
		next, ok := cur.Fields[label]
		if !ok {
			next = eng.NewMapping(sp)
			cur.Set(label, next)
		} else {
			next.Span = c.lines.Span(min(next.Span.Offset, sp.Offset), max(next.Span.EndOffset, sp.EndOffset))
		}
		cur = next
	}
	last := labels[len(labels)-1]
	if _, dup := cur.Fields[last]; dup {
		return c.errorAt(blk.TypeRange, "duplicate block %s", blockName(blk))
	}
	b, err := c.body(blk.Body, p.Append(eng.Key(last)), depth+len(labels))
	if err != nil {
		return err
	}
	b.Span = sp
	cur.Set(last, b)
	return nil
}

func blockName(blk *hclsyntax.Block) string {
	s := blk.Type
	for _, l := range blk.Labels {
		s += " " + strconv.Quote(l)
	}
	return s
}

// expr converts a literal expression. Tuple and object constructors are
// walked so that their elements keep their own spans.
func (c *converter) expr(e hclsyntax.Expression, path eng.Path, depth int) (*eng.Node, error) {
	switch x := e.(type) {
	case *hclsyntax.TupleConsExpr:
		if err := c.checkDepth(x.SrcRange, path, depth); err != nil {
			return nil, err
		}
		out := &eng.Node{Kind: eng.SequenceNode, Span: c.span(x.SrcRange), Items: make([]*eng.Node, 0, len(x.Exprs))}
		for i, el := range x.Exprs {
			n, err := c.expr(el, path.Append(eng.Index(i)), depth+1)
			if err != nil {
				return nil, err
			}
			out.Items = append(out.Items, n)
		}
		return out, nil
	case *hclsyntax.ObjectConsExpr:
		if err := c.checkDepth(x.SrcRange, path, depth); err != nil {
			return nil, err
		}
		out := eng.NewMapping(c.span(x.SrcRange))
		for _, item := range x.Items {
			kv, diags := item.KeyExpr.Value(nil)
			if diags.HasErrors() {
				return nil, diagError(diags, c.lines)
			}
			key, err := keyString(kv)
			if err != nil {
				return nil, c.errorAt(item.KeyExpr.Range(), "%v", err)
			}
			n, err := c.expr(item.ValueExpr, path.Append(eng.Key(key)), depth+1)
			if err != nil {
				return nil, err
			}
			out.Set(key, n)
		}
		return out, nil
	}
	v, diags := e.Value(nil)
	if diags.HasErrors() {
		return nil, diagError(diags, c.lines)
	}
	return c.value(v, c.span(e.Range()), e.Range())
}

func keyString(v cty.Value) (string, error) {
	if v.IsNull() || !v.IsKnown() {
		return "", fmt.Errorf("object key must be a known string")
	}
	switch v.Type() {
	case cty.String:
		return v.AsString(), nil
	case cty.Number:
		return v.AsBigFloat().Text('f', -1), nil
	case cty.Bool:
		return strconv.FormatBool(v.True()), nil
	}
	return "", fmt.Errorf("object key must be a string, got %s", v.Type().FriendlyName())
}

// value converts an evaluated cty value; nested elements share sp.
func (c *converter) value(v cty.Value, sp eng.Span, rng hcl.Range) (*eng.Node, error) {
	if !v.IsKnown() {
		return nil, c.errorAt(rng, "value is not known")
	}
	if v.IsNull() {
		return &eng.Node{Kind: eng.NullNode, Span: sp}, nil
	}
	t := v.Type()
	switch {
	case t == cty.String:
		return &eng.Node{Kind: eng.StringNode, Span: sp, Value: v.AsString()}, nil
	case t == cty.Number:
		return &eng.Node{Kind: eng.NumberNode, Span: sp, Value: eng.Number(v.AsBigFloat().Text('g', -1))}, nil
	case t == cty.Bool:
		return &eng.Node{Kind: eng.BoolNode, Span: sp, Value: v.True()}, nil
	case t.IsListType() || t.IsTupleType() || t.IsSetType():
		out := &eng.Node{Kind: eng.SequenceNode, Span: sp, Items: []*eng.Node{}}
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			n, err := c.value(ev, sp, rng)
			if err != nil {
				return nil, err
			}
			out.Items = append(out.Items, n)
		}
		return out, nil
	case t.IsMapType() || t.IsObjectType():
		out := eng.NewMapping(sp)
		for it := v.ElementIterator(); it.Next(); {
			k, ev := it.Element()
			n, err := c.value(ev, sp, rng)
			if err != nil {
				return nil, err
			}
			out.Set(k.AsString(), n)
		}
		return out, nil
	}
	return nil, c.errorAt(rng, "unsupported value of type %s", t.FriendlyName())
}
