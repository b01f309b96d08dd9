package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineIndex_Span(t *testing.T) {
	text := []byte("{\"val\": \"NOT AN INT\"}")
	li := NewLineIndex(text)
	sp := li.Span(8, 20)
	assert.Equal(t, Span{Line: 1, Col: 9, EndLine: 1, EndCol: 20, Offset: 8, EndOffset: 20}, sp)
	assert.Equal(t, `"NOT AN INT"`, string(text[sp.Offset:sp.EndOffset]))
	assert.Equal(t, "1:9-1:20", sp.String())
}

func TestLineIndex_MultiLineAndRunes(t *testing.T) {
	text := []byte("a: 1\nb: \"héllo\"\n")
	li := NewLineIndex(text)

	line, col := li.Position(5)
	assert.Equal(t, 2, line)
	assert.Equal(t, 1, col)

	start := 8
	end := start + len(`"héllo"`)
	sp := li.Span(start, end)
	assert.Equal(t, 2, sp.Line)
	assert.Equal(t, 4, sp.Col)
	assert.Equal(t, 2, sp.EndLine)
	assert.Equal(t, 10, sp.EndCol)

	assert.Equal(t, start, li.Offset(2, 4))
	assert.Equal(t, li.LineEnd(5), li.Offset(2, 99))
	assert.Equal(t, 5, li.LineStart(2))
	assert.Equal(t, -1, li.LineStart(9))
}

func TestSpan_PointAndUnknown(t *testing.T) {
	li := NewLineIndex([]byte("x\ny"))
	p := li.Point(2)
	assert.True(t, p.IsPoint())
	assert.Equal(t, "2:1", p.String())
	assert.Equal(t, "?", NoSpan.String())
	assert.False(t, NoSpan.Known())
}

func TestPath_Rendering(t *testing.T) {
	p := PathOf("servers", 0, "a/b~c")
	assert.Equal(t, "/servers/0/a~1b~0c", p.Pointer())
	assert.Equal(t, "servers -> 0 -> a/b~c", p.String())
	assert.Equal(t, []string{"servers", "0", "a/b~c"}, SplitPointer(p.Pointer()))
	assert.Equal(t, "/", Path{}.Pointer())
	assert.Nil(t, SplitPointer("/"))
}

func TestPath_EqualityAndKeys(t *testing.T) {
	assert.True(t, PathOf("a", 1).Equal(PathOf("a", 1)))
	assert.False(t, PathOf("a", 1).Equal(PathOf("a", "1")))
	assert.False(t, PathOf("A").Equal(PathOf("a")))
	assert.NotEqual(t, PathOf("a", 1).MapKey(), PathOf("a", "1").MapKey())
	assert.True(t, PathOf("a", "b").HasPrefix(PathOf("a")))

	base := PathOf("a")
	child := base.Append(Key("b"))
	require.Len(t, base, 1)
	assert.Equal(t, "/a/b", child.Pointer())
}

func TestLocate(t *testing.T) {
	root := NewMapping(NoSpan)
	list := &Node{Kind: SequenceNode, Items: []*Node{{Kind: StringNode, Value: "x"}}}
	root.Set("list", list)
	root.Set("leaf", &Node{Kind: NumberNode, Value: Number("1")})

	n, err := Locate(root, PathOf("list", 0))
	require.NoError(t, err)
	assert.Equal(t, "x", n.Value)

	cases := []struct {
		path   Path
		reason LookupReason
		pos    int
	}{
		{PathOf("missing"), LookupMissing, 0},
		{PathOf("list", 3), LookupMissing, 1},
		{PathOf("list", "k"), LookupExpectMapping, 1},
		{PathOf("leaf", 0), LookupExpectList, 1},
	}
	for _, tc := range cases {
		t.Run(tc.path.Pointer(), func(t *testing.T) {
			_, err := Locate(root, tc.path)
			require.ErrorIs(t, err, ErrLocationNotFound)
			var le *LookupError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, tc.reason, le.Reason)
			assert.Equal(t, tc.pos, le.Pos)
		})
	}
}

func TestResolvePointer(t *testing.T) {
	root := NewMapping(NoSpan)
	seq := &Node{Kind: SequenceNode, Items: []*Node{NewMapping(NoSpan)}}
	seq.Items[0].Set("0", &Node{Kind: StringNode, Value: "zero"})
	root.Set("items", seq)

	p, err := ResolvePointer(root, "/items/0/0")
	require.NoError(t, err)
	assert.True(t, p.Equal(PathOf("items", 0, "0")))

	_, err = ResolvePointer(root, "/items/x")
	assert.ErrorIs(t, err, ErrLocationNotFound)
}

func TestNodeFromPlainAndPlain(t *testing.T) {
	n, err := NodeFromPlain(map[string]any{"b": []any{int64(1), "x"}, "a": true}, NoSpan)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, n.Keys)
	plain := n.Plain().(map[string]any)
	assert.Equal(t, []any{Number("1"), "x"}, plain["b"])

	plain["a"] = false
	assert.Equal(t, true, n.Plain().(map[string]any)["a"])
}
