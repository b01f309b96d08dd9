package settings

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	eng "github.com/reoring/goskema-settings/internal/engine"
	hclsrc "github.com/reoring/goskema-settings/source/hcl"
	jsonsrc "github.com/reoring/goskema-settings/source/json"
	tomlsrc "github.com/reoring/goskema-settings/source/toml"
	yamlsrc "github.com/reoring/goskema-settings/source/yaml"
)

// DecodeOptions are passed to a Decoder for every document.
type DecodeOptions struct {
	File       string
	Strictness Strictness
	MaxDepth   int
	MaxBytes   int64
	// Warn receives non-fatal findings such as duplicate keys under Warn.
	Warn func(Issue)
}

func (o DecodeOptions) sink() func(eng.SimpleIssue) {
	if o.Warn == nil {
		return nil
	}
	return func(si eng.SimpleIssue) {
		o.Warn(Issue{Path: si.Path, Code: si.Code, Message: si.Message})
	}
}

// Decoder turns configuration text into a located value tree. Syntax errors
// are returned as *ParsingError.
type Decoder interface {
	Name() string
	Decode(b []byte, opt DecodeOptions) (*Node, error)
}

type decoderFunc struct {
	name string
	fn   func(b []byte, opt DecodeOptions) (*Node, error)
}

func (d decoderFunc) Name() string { return d.name }

func (d decoderFunc) Decode(b []byte, opt DecodeOptions) (*Node, error) { return d.fn(b, opt) }

// DecoderFunc adapts a function to the Decoder interface.
func DecoderFunc(name string, fn func(b []byte, opt DecodeOptions) (*Node, error)) Decoder {
	return decoderFunc{name: name, fn: fn}
}

// JSONDecoder decodes JSON documents with positions.
func JSONDecoder() Decoder {
	return DecoderFunc("json", func(b []byte, opt DecodeOptions) (*Node, error) {
		return jsonsrc.Parse(b, jsonsrc.Options{
			OnDuplicate: opt.Strictness.duplicates(),
			MaxDepth:    opt.MaxDepth,
			MaxBytes:    opt.MaxBytes,
			IssueSink:   opt.sink(),
		})
	})
}

// YAMLDecoder decodes single-document YAML with positions.
func YAMLDecoder() Decoder {
	return DecoderFunc("yaml", func(b []byte, opt DecodeOptions) (*Node, error) {
		return yamlsrc.Parse(b, yamlsrc.Options{
			OnDuplicate: opt.Strictness.duplicates(),
			MaxDepth:    opt.MaxDepth,
			MaxBytes:    opt.MaxBytes,
			IssueSink:   opt.sink(),
		})
	})
}

// HCLDecoder decodes HCL native syntax with positions.
func HCLDecoder() Decoder {
	return DecoderFunc("hcl", func(b []byte, opt DecodeOptions) (*Node, error) {
		return hclsrc.Parse(b, opt.File, hclsrc.Options{MaxDepth: opt.MaxDepth, MaxBytes: opt.MaxBytes})
	})
}

// Decoders maps hints (short names, file extensions and MIME types) to
// decoders. It is safe for concurrent use.
type Decoders struct {
	mu            sync.RWMutex
	byHint        map[string]Decoder
	unimplemented map[string]string
}

// NewDecoders returns a registry with the built-in formats. TOML hints are
// known but have no document decoder.
func NewDecoders() *Decoders {
	d := &Decoders{byHint: map[string]Decoder{}, unimplemented: map[string]string{}}
	d.Register(JSONDecoder(), "json", ".json", "application/json")
	d.Register(YAMLDecoder(), "yaml", "yml", ".yaml", ".yml",
		"text/x-yaml", "application/x-yaml", "text/yaml", "application/yaml")
	d.Register(HCLDecoder(), "hcl", ".hcl", "application/hcl")
	d.MarkUnimplemented("toml", "toml", ".toml", "application/toml")
	return d
}

var defaultDecoders = NewDecoders()

// DefaultDecoders returns the registry used when Options.Decoders is nil.
func DefaultDecoders() *Decoders { return defaultDecoders }

// Register binds dec to every hint. Hints are case-insensitive; later
// registrations replace earlier ones.
func (d *Decoders) Register(dec Decoder, hints ...string) {
	if dec == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, h := range hints {
		h = strings.ToLower(h)
		d.byHint[h] = dec
		delete(d.unimplemented, h)
	}
}

// MarkUnimplemented records hints of a known format that cannot be decoded.
func (d *Decoders) MarkUnimplemented(format string, hints ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, h := range hints {
		h = strings.ToLower(h)
		d.unimplemented[h] = format
		delete(d.byHint, h)
	}
}

// Lookup returns the decoder for the first hint the registry knows. Empty
// hints are skipped.
func (d *Decoders) Lookup(hints ...string) (Decoder, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var tried []string
	for _, h := range hints {
		if h == "" {
			continue
		}
		h = strings.ToLower(h)
		if dec, ok := d.byHint[h]; ok {
			return dec, nil
		}
		if format, ok := d.unimplemented[h]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDecoderNotImplemented, format)
		}
		tried = append(tried, h)
	}
	if len(tried) == 0 {
		return nil, fmt.Errorf("%w: no type hint given", ErrDecoderNotFound)
	}
	return nil, fmt.Errorf("%w for %s", ErrDecoderNotFound, strings.Join(tried, ", "))
}

// resolve applies the lookup order: file extension first, then type hint.
func (d *Decoders) resolve(file, typeHint string) (Decoder, error) {
	return d.Lookup(filepath.Ext(file), typeHint)
}

// InlineDecoder decodes a single environment value into a sub-document.
// The result must be a mapping for the value to be used.
type InlineDecoder func(value string) (*Node, error)

// JSONInline is the default inline decoder.
func JSONInline(value string) (*Node, error) {
	return jsonsrc.Parse([]byte(value), jsonsrc.Options{})
}

// TOMLInline decodes inline values written as TOML. Nodes carry no spans.
func TOMLInline(value string) (*Node, error) {
	return tomlsrc.Parse([]byte(value))
}

// YAMLInline decodes inline values written as YAML flow or block text.
func YAMLInline(value string) (*Node, error) {
	return yamlsrc.Parse([]byte(value), yamlsrc.Options{})
}
