package yaml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	eng "github.com/reoring/goskema-settings/internal/engine"
)

const sample = `# service settings
name: api   # trailing comment
port: 0x1F90
ratio: 1.5
debug: true
nothing: ~
quoted: "a \"b\" c"
single: 'it''s'
folded: >
  first
  second
literal: |
  line one
  line two

tags: [a, "b", {k: v}]
servers:
  - host: one
    port: 1
  - host: two
    port: 2
long: this value
  continues here
after: x
`

func TestParse_Values(t *testing.T) {
	root, err := Parse([]byte(sample), Options{})
	require.NoError(t, err)
	plain := root.Plain().(map[string]any)
	assert.Equal(t, "api", plain["name"])
	assert.Equal(t, eng.Number("8080"), plain["port"])
	assert.Equal(t, eng.Number("1.5"), plain["ratio"])
	assert.Equal(t, true, plain["debug"])
	assert.Nil(t, plain["nothing"])
	assert.Equal(t, `a "b" c`, plain["quoted"])
	assert.Equal(t, "it's", plain["single"])
	assert.Equal(t, "first second\n", plain["folded"])
	assert.Equal(t, "line one\nline two\n", plain["literal"])
	assert.Equal(t, "this value continues here", plain["long"])
	assert.Equal(t, []any{"a", "b", map[string]any{"k": "v"}}, plain["tags"])
}

func TestParse_SpansSliceBackToLiteral(t *testing.T) {
	root, err := Parse([]byte(sample), Options{})
	require.NoError(t, err)

	cases := map[string]string{
		"/name":           "api",
		"/port":           "0x1F90",
		"/nothing":        "~",
		"/quoted":         `"a \"b\" c"`,
		"/single":         `'it''s'`,
		"/folded":         ">\n  first\n  second",
		"/literal":        "|\n  line one\n  line two",
		"/tags":           `[a, "b", {k: v}]`,
		"/tags/2":         "{k: v}",
		"/tags/1":         `"b"`,
		"/servers/1/host": "two",
		"/servers/1":      "host: two\n    port: 2",
		"/long":           "this value\n  continues here",
	}
	for ptr, want := range cases {
		t.Run(ptr, func(t *testing.T) {
			p, err := eng.ResolvePointer(root, ptr)
			require.NoError(t, err)
			n, err := eng.Locate(root, p)
			require.NoError(t, err)
			assert.Equal(t, want, sample[n.Span.Offset:n.Span.EndOffset])
			assert.True(t, root.Span.Encloses(n.Span))
		})
	}
}

func TestParse_LineAndColumn(t *testing.T) {
	text := "a:\n  b: NOT AN INT\n"
	root, err := Parse([]byte(text), Options{})
	require.NoError(t, err)
	n, err := eng.Locate(root, eng.PathOf("a", "b"))
	require.NoError(t, err)
	assert.Equal(t, eng.Span{Line: 2, Col: 6, EndLine: 2, EndCol: 15, Offset: 8, EndOffset: 18}, n.Span)
}

func TestParse_AliasAndMerge(t *testing.T) {
	text := `base: &base
  host: local
  port: 1
svc:
  <<: *base
  port: 2
copy: *base
`
	root, err := Parse([]byte(text), Options{})
	require.NoError(t, err)
	plain := root.Plain().(map[string]any)
	assert.Equal(t, map[string]any{"host": "local", "port": eng.Number("2")}, plain["svc"])
	assert.Equal(t, map[string]any{"host": "local", "port": eng.Number("1")}, plain["copy"])

	n, err := eng.Locate(root, eng.PathOf("copy", "host"))
	require.NoError(t, err)
	assert.Equal(t, "*base", text[n.Span.Offset:n.Span.EndOffset])

	n, err = eng.Locate(root, eng.PathOf("base", "host"))
	require.NoError(t, err)
	assert.Equal(t, "local", text[n.Span.Offset:n.Span.EndOffset])
}

func TestParse_Empty(t *testing.T) {
	for _, in := range []string{"", "# only a comment\n", "~\n", "---\n"} {
		root, err := Parse([]byte(in), Options{})
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, eng.MappingNode, root.Kind)
		assert.Empty(t, root.Keys)
	}
}

func TestParse_SyntaxErrorIsLinePoint(t *testing.T) {
	_, err := Parse([]byte("a: 1\nb: [1, 2\nc: 3\n"), Options{})
	var pe *eng.ParseError
	require.ErrorAs(t, err, &pe)
	require.NotNil(t, pe.Span)
	assert.True(t, pe.Span.IsPoint())
	assert.Positive(t, pe.Span.Line)
	assert.Equal(t, -1, pe.Span.Col)
}

func TestParse_DuplicateKeys(t *testing.T) {
	text := "a: 1\nb: 2\na: 3\n"

	root, err := Parse([]byte(text), Options{})
	require.NoError(t, err)
	assert.Equal(t, eng.Number("3"), root.Fields["a"].Value)

	_, err = Parse([]byte(text), Options{OnDuplicate: eng.DupError})
	var pe *eng.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 3, pe.Span.Line)
	require.NotNil(t, pe.Related)
	assert.Equal(t, 1, pe.Related.Line)
}

func TestParse_MultipleDocuments(t *testing.T) {
	_, err := Parse([]byte("a: 1\n---\nb: 2\n"), Options{})
	assert.ErrorIs(t, err, ErrMultipleDocuments)
}

func TestParse_MaxDepth(t *testing.T) {
	_, err := Parse([]byte("a:\n  b:\n    c: 1\n"), Options{MaxDepth: 2})
	var ie *eng.IssueError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, eng.CodeMaxDepth, ie.Code)
	assert.Equal(t, "/a/b", ie.Path.Pointer())
}
