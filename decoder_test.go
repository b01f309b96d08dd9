package settings_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	settings "github.com/reoring/goskema-settings"
)

func TestDecoders_Lookup(t *testing.T) {
	d := settings.NewDecoders()
	for hint, name := range map[string]string{
		"json": "json", ".JSON": "json", "application/json": "json",
		"yml": "yaml", ".yaml": "yaml", "text/x-yaml": "yaml",
		"hcl": "hcl", ".hcl": "hcl",
	} {
		dec, err := d.Lookup(hint)
		require.NoError(t, err, hint)
		assert.Equal(t, name, dec.Name(), hint)
	}

	_, err := d.Lookup(".toml")
	assert.ErrorIs(t, err, settings.ErrDecoderNotImplemented)
	_, err = d.Lookup(".ini", "")
	assert.ErrorIs(t, err, settings.ErrDecoderNotFound)
	_, err = d.Lookup()
	assert.ErrorIs(t, err, settings.ErrDecoderNotFound)

	// the first hint that matches wins
	dec, err := d.Lookup(".conf", "yaml", "json")
	require.NoError(t, err)
	assert.Equal(t, "yaml", dec.Name())
}

func TestDecoders_RegisterReplacesUnimplemented(t *testing.T) {
	d := settings.NewDecoders()
	d.Register(settings.DecoderFunc("toml", func(b []byte, _ settings.DecodeOptions) (*settings.Node, error) {
		return settings.TOMLInline(string(b))
	}), ".toml")

	path := writeFile(t, "conf.toml", "val = 7\n")
	got, err := settings.Load[Val](context.Background(), settings.FromFile(path), settings.Options{Decoders: d})
	require.NoError(t, err)
	assert.Equal(t, 7, got.Val)

	d.MarkUnimplemented("toml", ".toml")
	_, err = settings.Load[Val](context.Background(), settings.FromFile(path), settings.Options{Decoders: d})
	assert.ErrorIs(t, err, settings.ErrDecoderNotImplemented)
}

func TestDecoders_DuplicateKeys(t *testing.T) {
	text := `{"val": 1, "val": 2}`
	got, err := settings.Load[Val](context.Background(), settings.FromString(text), settings.Options{TypeHint: "json"})
	require.NoError(t, err)
	assert.Equal(t, 2, got.Val)

	_, err = settings.Load[Val](context.Background(), settings.FromString(text), settings.Options{
		TypeHint:   "json",
		Strictness: settings.Strictness{OnDuplicateKey: settings.Error},
	})
	var pe *settings.LoadingParseError
	assert.ErrorAs(t, err, &pe)
}

func TestInlineDecoders(t *testing.T) {
	n, err := settings.JSONInline(`{"a": [1, 2]}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": []any{settings.Number("1"), settings.Number("2")}}, n.Plain())

	n, err = settings.YAMLInline("{a: x}")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "x"}, n.Plain())

	_, err = settings.JSONInline(`{"a": `)
	var pe *settings.ParsingError
	assert.ErrorAs(t, err, &pe)
}
