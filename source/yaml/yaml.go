// Package yaml parses YAML into located value trees.
//
// gopkg.in/yaml.v3 supplies the node tree and start marks. End positions are
// recovered from the source text according to each node's style.
package yaml

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	eng "github.com/reoring/goskema-settings/internal/engine"
)

// ErrMultipleDocuments is returned for streams holding more than one document.
var ErrMultipleDocuments = errors.New("yaml: expected a single document")

// maxNodes bounds the tree size after alias expansion.
const maxNodes = 1 << 20

// Options controls enforcement applied while parsing.
type Options struct {
	OnDuplicate eng.DuplicateStrictness
	MaxDepth    int
	MaxBytes    int64
	IssueSink   func(eng.SimpleIssue)
}

// Parse parses the first and only document of b into a located tree. An
// empty stream or a null root yields an empty mapping.
func Parse(b []byte, opt Options) (*eng.Node, error) {
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

	dec := yaml.NewDecoder(bytes.NewReader(b))
	var doc yaml.Node
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return eng.NewMapping(lines.Span(0, 0)), nil
		}
		return nil, convertError(err, lines)
	}
	var extra yaml.Node
	if err := dec.Decode(&extra); err == nil {
		sp := lines.Point(lines.Offset(extra.Line, extra.Column))
		return nil, &eng.ParseError{Cause: ErrMultipleDocuments, Span: &sp}
	} else if !errors.Is(err, io.EOF) {
		return nil, convertError(err, lines)
	}

	root := &doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return eng.NewMapping(lines.Span(0, 0)), nil
		}
		root = root.Content[0]
	}
	if root.Kind == yaml.ScalarNode && root.ShortTag() == "!!null" {
		return eng.NewMapping(lines.Span(0, 0)), nil
	}
	bld := &builder{text: b, lines: lines, opt: opt}
	out, err := bld.build(root, eng.Path{}, 1, false)
	if err != nil {
		return nil, eng.NewParseError(err, lines)
	}
	return out, nil
}

var yamlLineRe = regexp.MustCompile(`^yaml: line (\d+): (.*)$`)

// convertError turns yaml.v3 errors into point spans. yaml.v3 reports lines
// only, so the column stays unknown.
func convertError(err error, lines *eng.LineIndex) error {
	m := yamlLineRe.FindStringSubmatch(err.Error())
	if m == nil {
		return &eng.ParseError{Cause: err}
	}
	line, _ := strconv.Atoi(m[1])
	off := lines.LineStart(line)
	sp := eng.Span{Line: line, Col: -1, EndLine: -1, EndCol: -1, Offset: off, EndOffset: -1}
	return &eng.ParseError{Cause: &eng.SyntaxError{Msg: m[2], Offset: int64(off)}, Span: &sp}
}

type builder struct {
	text  []byte
	lines *eng.LineIndex
	opt   Options
	nodes int
}

func (b *builder) errorAt(off int, format string, args ...any) error {
	return &eng.SyntaxError{Msg: fmt.Sprintf(format, args...), Offset: int64(off)}
}

func (b *builder) span(start, end int) eng.Span { return b.lines.Span(start, end) }

func (b *builder) build(n *yaml.Node, path eng.Path, depth int, flow bool) (*eng.Node, error) {
	b.nodes++
	if b.nodes > maxNodes {
		return nil, b.errorAt(b.start(n), "document expands to more than %d nodes", maxNodes)
	}
	switch n.Kind {
	case yaml.MappingNode, yaml.SequenceNode:
		if b.opt.MaxDepth > 0 && depth > b.opt.MaxDepth {
			return nil, &eng.IssueError{SimpleIssue: eng.SimpleIssue{
				Code:    eng.CodeMaxDepth,
				Path:    path,
				Message: "nesting exceeds max depth " + strconv.Itoa(b.opt.MaxDepth),
				Offset:  int64(b.start(n)),
				Related: -1,
			}}
		}
		if n.Kind == yaml.MappingNode {
			return b.mapping(n, path, depth, flow || n.Style&yaml.FlowStyle != 0)
		}
		return b.sequence(n, path, depth, flow || n.Style&yaml.FlowStyle != 0)
	case yaml.AliasNode:
		return b.alias(n, path, depth, flow)
	case yaml.ScalarNode:
		return b.scalar(n, flow)
	default:
		return nil, b.errorAt(b.start(n), "unsupported YAML node")
	}
}

func (b *builder) mapping(n *yaml.Node, path eng.Path, depth int, flow bool) (*eng.Node, error) {
	start := b.start(n)
	out := &eng.Node{Kind: eng.MappingNode, Fields: map[string]*eng.Node{}}
	seen := map[string]int{}
	end := start
	var merges []*eng.Node
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if k.Kind == yaml.ScalarNode && k.ShortTag() == "!!merge" {
			m, err := b.build(v, path, depth, flow)
			if err != nil {
				return nil, err
			}
			merges = append(merges, m)
			end = max(end, m.Span.EndOffset)
			continue
		}
		if k.Kind != yaml.ScalarNode {
			return nil, b.errorAt(b.start(k), "mapping keys must be scalars")
		}
		kstart := b.start(k)
		kend := b.scalarEnd(k, kstart, flow)
		key := k.Value
		if first, dup := seen[key]; dup && b.opt.OnDuplicate != eng.DupIgnore {
			si := eng.SimpleIssue{
				Code:    eng.CodeDuplicateKey,
				Path:    path.Append(eng.Key(key)),
				Message: "key " + strconv.Quote(key) + " duplicated",
				Offset:  int64(kstart),
				Related: int64(first),
			}
			if b.opt.IssueSink != nil {
				b.opt.IssueSink(si)
			}
			if b.opt.OnDuplicate == eng.DupError {
				return nil, &eng.IssueError{SimpleIssue: si}
			}
		} else if !dup {
			seen[key] = kstart
		}
		child, err := b.build(v, path.Append(eng.Key(key)), depth+1, flow)
		if err != nil {
			return nil, err
		}
		out.Set(key, child)
		end = max(end, kend, child.Span.EndOffset)
	}
	// explicit keys win over merged ones; earlier merge sources win over later
	for _, m := range merges {
		var sources []*eng.Node
		switch m.Kind {
		case eng.MappingNode:
			sources = []*eng.Node{m}
		case eng.SequenceNode:
			sources = m.Items
		}
		if len(sources) == 0 && m.Kind != eng.SequenceNode {
			return nil, b.errorAt(m.Span.Offset, "map merge requires a mapping or a sequence of mappings")
		}
		for _, src := range sources {
			if src.Kind != eng.MappingNode {
				return nil, b.errorAt(src.Span.Offset, "map merge requires a mapping or a sequence of mappings")
			}
			for _, key := range src.Keys {
				if _, ok := out.Fields[key]; !ok {
					out.Set(key, src.Fields[key])
				}
			}
		}
	}
	if flow {
		end = b.flowEnd(start)
	}
	out.Span = b.span(start, end)
	return out, nil
}

func (b *builder) sequence(n *yaml.Node, path eng.Path, depth int, flow bool) (*eng.Node, error) {
	start := b.start(n)
	out := &eng.Node{Kind: eng.SequenceNode, Items: make([]*eng.Node, 0, len(n.Content))}
	end := start
	for i, c := range n.Content {
		child, err := b.build(c, path.Append(eng.Index(i)), depth+1, flow)
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, child)
		end = max(end, child.Span.EndOffset)
	}
	if flow {
		end = b.flowEnd(start)
	}
	out.Span = b.span(start, end)
	return out, nil
}

// alias resolves to a copy of the anchored value located at the alias site.
func (b *builder) alias(n *yaml.Node, path eng.Path, depth int, flow bool) (*eng.Node, error) {
	if n.Alias == nil {
		return nil, b.errorAt(b.start(n), "unknown anchor %q", n.Value)
	}
	target, err := b.build(n.Alias, path, depth, flow)
	if err != nil {
		return nil, err
	}
	start := b.start(n)
	end := start + 1
	for end < len(b.text) && !isSpace(b.text[end]) && !isFlowIndicator(b.text[end]) {
		end++
	}
	sp := b.span(start, end)
	target.Walk(func(_ eng.Path, c *eng.Node) { c.Span = sp })
	return target, nil
}

func (b *builder) scalar(n *yaml.Node, flow bool) (*eng.Node, error) {
	start := b.start(n)
	out := &eng.Node{Span: b.span(start, b.scalarEnd(n, start, flow))}
	switch n.ShortTag() {
	case "!!null":
		out.Kind = eng.NullNode
	case "!!bool":
		var v bool
		if err := n.Decode(&v); err != nil {
			return nil, b.errorAt(start, "invalid boolean %q", n.Value)
		}
		out.Kind, out.Value = eng.BoolNode, v
	case "!!int":
		out.Kind, out.Value = eng.NumberNode, intLiteral(n)
	case "!!float":
		out.Kind, out.Value = eng.NumberNode, floatLiteral(n)
	default:
		out.Kind, out.Value = eng.StringNode, n.Value
	}
	return out, nil
}

// intLiteral canonicalises hex, octal and underscore forms to decimal text.
func intLiteral(n *yaml.Node) eng.Number {
	var i int64
	if err := n.Decode(&i); err == nil {
		return eng.Number(strconv.FormatInt(i, 10))
	}
	var u uint64
	if err := n.Decode(&u); err == nil {
		return eng.Number(strconv.FormatUint(u, 10))
	}
	return eng.Number(n.Value)
}

func floatLiteral(n *yaml.Node) eng.Number {
	if _, err := strconv.ParseFloat(n.Value, 64); err == nil {
		return eng.Number(n.Value)
	}
	var f float64
	if err := n.Decode(&f); err == nil {
		return eng.Number(strconv.FormatFloat(f, 'g', -1, 64))
	}
	return eng.Number(n.Value)
}

// start returns the byte offset of n's content, skipping anchors and tags.
func (b *builder) start(n *yaml.Node) int {
	off := b.lines.Offset(n.Line, n.Column)
	if off < 0 {
		return 0
	}
	for off < len(b.text) && (b.text[off] == '&' || b.text[off] == '!') {
		for off < len(b.text) && !isSpace(b.text[off]) {
			off++
		}
		for off < len(b.text) && isSpace(b.text[off]) {
			off++
		}
	}
	return off
}

func (b *builder) scalarEnd(n *yaml.Node, start int, flow bool) int {
	if start >= len(b.text) {
		return start
	}
	c := b.text[start]
	switch {
	case n.Style&yaml.DoubleQuotedStyle != 0 && c == '"':
		return b.doubleQuotedEnd(start)
	case n.Style&yaml.SingleQuotedStyle != 0 && c == '\'':
		return b.singleQuotedEnd(start)
	case n.Style&(yaml.LiteralStyle|yaml.FoldedStyle) != 0 && (c == '|' || c == '>'):
		return b.blockScalarEnd(start)
	case n.Value == "" && n.Kind == yaml.ScalarNode:
		// an omitted value is marked at the following token
		return start
	default:
		return b.plainEnd(start, n.Value, flow)
	}
}

func (b *builder) doubleQuotedEnd(start int) int {
	for i := start + 1; i < len(b.text); i++ {
		switch b.text[i] {
		case '\\':
			i++
		case '"':
			return i + 1
		}
	}
	return len(b.text)
}

func (b *builder) singleQuotedEnd(start int) int {
	for i := start + 1; i < len(b.text); i++ {
		if b.text[i] != '\'' {
			continue
		}
		if i+1 < len(b.text) && b.text[i+1] == '\'' {
			i++
			continue
		}
		return i + 1
	}
	return len(b.text)
}

// blockScalarEnd returns the end of the last content line indented deeper
// than the line holding the '|' or '>' header.
func (b *builder) blockScalarEnd(start int) int {
	end := start
	for end < len(b.text) && !isSpace(b.text[end]) {
		end++
	}
	line, _ := b.lines.Position(start)
	indent := indentation(b.text[b.lines.LineStart(line):])
	next := b.lines.LineEnd(start) + 1
	for next < len(b.text) {
		le := b.lines.LineEnd(next)
		content := bytes.TrimRight(b.text[next:le], " \t\r")
		if len(bytes.TrimLeft(content, " ")) == 0 {
			next = le + 1
			continue
		}
		if indentation(content) <= indent {
			break
		}
		end = next + len(content)
		next = le + 1
	}
	return end
}

// plainEnd follows a plain scalar across continuation lines until the folded
// text matches value.
func (b *builder) plainEnd(start int, value string, flow bool) int {
	end := b.plainLineEnd(start, flow)
	acc := string(b.text[start:end])
	for acc != value && strings.HasPrefix(value, acc+" ") {
		nl := b.lines.LineEnd(end)
		if nl >= len(b.text) {
			break
		}
		s := nl + 1
		for s < len(b.text) && (b.text[s] == ' ' || b.text[s] == '\t') {
			s++
		}
		e := b.plainLineEnd(s, flow)
		if e == s {
			break
		}
		acc += " " + string(b.text[s:e])
		end = e
	}
	return end
}

func (b *builder) plainLineEnd(start int, flow bool) int {
	i := start
loop:
	for ; i < len(b.text); i++ {
		c := b.text[i]
		switch {
		case c == '\n' || c == '\r':
			break loop
		case c == '#' && i > start && (b.text[i-1] == ' ' || b.text[i-1] == '\t'):
			break loop
		case c == ':' && (i+1 >= len(b.text) || isSpace(b.text[i+1]) || (flow && isFlowIndicator(b.text[i+1]))):
			break loop
		case flow && isFlowIndicator(c):
			break loop
		}
	}
	for i > start && (b.text[i-1] == ' ' || b.text[i-1] == '\t') {
		i--
	}
	return i
}

// flowEnd returns the offset after the bracket closing the flow collection
// opened at start.
func (b *builder) flowEnd(start int) int {
	depth := 0
	for i := start; i < len(b.text); i++ {
		switch c := b.text[i]; c {
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		case '"':
			i = b.doubleQuotedEnd(i) - 1
		case '\'':
			i = b.singleQuotedEnd(i) - 1
		case '#':
			if i > start && isSpace(b.text[i-1]) {
				i = b.lines.LineEnd(i) - 1
			}
		}
	}
	return len(b.text)
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }

func isFlowIndicator(c byte) bool {
	return c == ',' || c == '[' || c == ']' || c == '{' || c == '}'
}

func indentation(line []byte) int {
	n := 0
	for n < len(line) && line[n] == ' ' {
		n++
	}
	return n
}
