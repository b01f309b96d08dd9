// Package toml decodes TOML text into value trees without positions.
//
// It backs inline environment values only; TOML configuration files are not
// supported by the loader.
package toml

import (
	"errors"

	"github.com/pelletier/go-toml/v2"

	eng "github.com/reoring/goskema-settings/internal/engine"
)

// Parse decodes b into a tree whose nodes all carry engine.NoSpan. Syntax
// errors still report the position go-toml gives them.
func Parse(b []byte) (*eng.Node, error) {
	var m map[string]any
	if err := toml.Unmarshal(b, &m); err != nil {
		var de *toml.DecodeError
		if errors.As(err, &de) {
			lines := eng.NewLineIndex(b)
			row, col := de.Position()
			sp := lines.Point(lines.Offset(row, col))
			return nil, &eng.ParseError{Cause: &eng.SyntaxError{Msg: de.Error(), Offset: int64(sp.Offset)}, Span: &sp}
		}
		return nil, &eng.ParseError{Cause: err}
	}
	if m == nil {
		m = map[string]any{}
	}
	root, err := eng.NodeFromPlain(m, eng.NoSpan)
	if err != nil {
		return nil, &eng.ParseError{Cause: err}
	}
	return root, nil
}
