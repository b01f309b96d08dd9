package settings

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/reoring/goskema-settings/jsonschema"
	"github.com/reoring/goskema-settings/schema"
)

// Options configure loading. Functions taking ...Options use the last one.
type Options struct {
	// TypeHint selects the decoder when the file extension does not
	// (content without a file, or an unknown extension): "json", "yaml",
	// "hcl", a file extension or a MIME type.
	TypeHint string

	// LoadEnv merges environment variables over the configuration text.
	LoadEnv bool
	// EnvPrefix is prepended to every flat key, e.g. "APP" for APP_DB_HOST.
	EnvPrefix string
	// EnvSeparator joins flat key parts; "_" when empty.
	EnvSeparator  string
	CaseSensitive bool
	// Environ replaces the process environment when non-nil.
	Environ []EnvVar
	// IgnoreRestoreErrors drops failures of single environment keys instead
	// of reporting them with the validation issues.
	IgnoreRestoreErrors bool
	// InlineDecoder decodes whole nested values given in one variable;
	// JSONInline when nil.
	InlineDecoder InlineDecoder

	Unknown    UnknownPolicy
	Strictness Strictness
	MaxDepth   int
	MaxBytes   int64

	Decoders  *Decoders           // DefaultDecoders() when nil
	Registry  *schema.Registry    // schema.Default() when nil
	Validator *validator.Validate // DefaultValidator() when nil
	Logger    *zerolog.Logger     // disabled when nil
	Metrics   *Metrics
}

func lastOptions(opts []Options) Options {
	var opt Options
	if len(opts) > 0 {
		opt = opts[len(opts)-1]
	}
	if opt.Decoders == nil {
		opt.Decoders = DefaultDecoders()
	}
	if opt.Registry == nil {
		opt.Registry = schema.Default()
	}
	if opt.Validator == nil {
		opt.Validator = DefaultValidator()
	}
	if opt.Logger == nil {
		nop := zerolog.Nop()
		opt.Logger = &nop
	}
	return opt
}

// Loader loads settings of type T. The type description and the flat key
// table are built once by NewLoader; a Loader is safe for concurrent use.
type Loader[T any] struct {
	opt      Options
	typ      *schema.Type
	flat     *FlatMap
	restorer *Restorer
	log      zerolog.Logger
}

// NewLoader describes T, which must be a struct (or pointer to one), and
// prepares its flat key table.
func NewLoader[T any](opts ...Options) (*Loader[T], error) {
	opt := lastOptions(opts)
	typ, err := schema.DescribeOf[T](opt.Registry)
	if err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	if typ.Kind != schema.Object {
		return nil, fmt.Errorf("settings: %s is not a struct type", typ)
	}
	flat, err := BuildFlatMap(typ, FlatOpt{
		Prefix:        opt.EnvPrefix,
		Separator:     opt.EnvSeparator,
		CaseSensitive: opt.CaseSensitive,
	})
	if err != nil {
		return nil, err
	}
	l := &Loader[T]{
		opt:      opt,
		typ:      typ,
		flat:     flat,
		restorer: NewRestorer(flat, opt.InlineDecoder),
		log:      opt.Logger.With().Str("component", "settings").Str("type", typ.String()).Logger(),
	}
	return l, nil
}

// FlatMap returns the flat key table used for environment variables.
func (l *Loader[T]) FlatMap() *FlatMap { return l.flat }

// Type returns the description of T.
func (l *Loader[T]) Type() *schema.Type { return l.typ }

// JSONSchema describes the configuration text accepted for T.
func (l *Loader[T]) JSONSchema() *jsonschema.Schema { return jsonschema.FromType(l.typ) }

// Load decodes c, merges the environment when enabled, binds and validates.
func (l *Loader[T]) Load(ctx context.Context, c Content) (T, error) {
	d, err := l.LoadWithMeta(ctx, c)
	return d.Value, err
}

// LoadWithMeta is Load plus the provenance of every value.
func (l *Loader[T]) LoadWithMeta(ctx context.Context, c Content) (Decoded[T], error) {
	start := time.Now()
	d, err := l.load(ctx, c)
	took := time.Since(start)
	l.opt.Metrics.observeLoad(err, took)
	if err != nil {
		l.log.Debug().Err(err).Str("file", c.File()).Str("result", resultOf(err)).Dur("took", took).Msg("settings load failed")
		return d, err
	}
	l.log.Debug().Str("file", c.File()).Int("values", len(d.Presence)).Dur("took", took).Msg("settings loaded")
	return d, nil
}

func (l *Loader[T]) load(ctx context.Context, c Content) (Decoded[T], error) {
	var zero Decoded[T]
	if err := ctx.Err(); err != nil {
		return zero, &LoadingError{File: c.File(), Err: err}
	}
	doc, err := decodeDocument(c, l.opt, l.log)
	if err != nil {
		return zero, err
	}

	var restored *Restored
	var envValues map[string]any
	var issues Issues
	if l.opt.LoadEnv {
		env := l.opt.Environ
		if env == nil {
			env = OSEnviron()
		}
		var restoreErrs []error
		restored, restoreErrs = l.restorer.Restore(env)
		envValues = restored.Values
		for _, e := range restoreErrs {
			if l.opt.IgnoreRestoreErrors {
				l.log.Debug().Err(e).Msg("ignoring environment restore error")
				continue
			}
			var re *RestoreError
			if errors.As(e, &re) {
				issues = append(issues, re.Issue())
			}
		}
	}
	merged := DeepMerge(doc.Values, envValues)

	var v T
	b := &binder{ctx: ctx, unknown: l.opt.Unknown, check: l.check}
	rv := reflect.ValueOf(&v).Elem()
	if f := b.bind(rv, l.typ, merged, nil); !f.Empty() {
		issues = append(issues, f.Flatten()...)
	} else {
		ptr := rv
		if rv.Kind() != reflect.Pointer {
			ptr = rv.Addr()
		}
		hooks := applyNormalize(ctx, ptr.Interface())
		if len(hooks) == 0 {
			hooks = validateStruct(l.opt.Validator, l.typ, ptr)
		}
		if len(hooks) == 0 {
			hooks = applyRefine(ctx, ptr.Interface())
		}
		issues = append(issues, hooks...)
	}

	if len(issues) > 0 {
		providers := []Locator{doc}
		if restored != nil {
			providers = append(providers, restored)
		}
		return zero, &LoadingValidationError{
			File:   c.File(),
			Env:    l.opt.LoadEnv,
			Issues: WithLocations(issues, providers...),
		}
	}
	return Decoded[T]{Value: v, Presence: buildPresence(doc.Values, envValues, b.defaults)}, nil
}

// check validates a bound union alternative.
func (l *Loader[T]) check(t *schema.Type, v reflect.Value) Issues {
	return validateStruct(l.opt.Validator, t, v)
}

// Load is NewLoader followed by Load.
func Load[T any](ctx context.Context, c Content, opts ...Options) (T, error) {
	l, err := NewLoader[T](opts...)
	if err != nil {
		var zero T
		return zero, &LoadingError{File: c.File(), Msg: "invalid settings type", Err: err}
	}
	return l.Load(ctx, c)
}

// ParseDocument decodes c into a Document without binding it to a type.
func ParseDocument(c Content, opts ...Options) (*Document, error) {
	opt := lastOptions(opts)
	return decodeDocument(c, opt, *opt.Logger)
}

func decodeDocument(c Content, opt Options, log zerolog.Logger) (*Document, error) {
	if c.Empty() {
		return NewDocument(nil, "")
	}
	data, err := c.read()
	if err != nil {
		return nil, &LoadingError{File: c.File(), Err: err}
	}
	dec, err := opt.Decoders.resolve(c.File(), opt.TypeHint)
	if err != nil {
		return nil, &LoadingError{File: c.File(), Err: err}
	}
	root, err := dec.Decode(data, DecodeOptions{
		File:       c.File(),
		Strictness: opt.Strictness,
		MaxDepth:   opt.MaxDepth,
		MaxBytes:   opt.MaxBytes,
		Warn: func(it Issue) {
			log.Warn().Str("file", c.File()).Str("code", it.Code).Str("path", it.Path.Pointer()).Msg(it.Message)
		},
	})
	if err != nil {
		return nil, parseFailure(c.File(), err)
	}
	doc, err := NewDocument(root, c.File())
	if err != nil {
		return nil, parseFailure(c.File(), err)
	}
	log.Debug().Str("file", c.File()).Str("decoder", dec.Name()).Int("bytes", len(data)).Msg("configuration decoded")
	return doc, nil
}

func parseFailure(file string, err error) error {
	var pe *ParsingError
	if !errors.As(err, &pe) {
		pe = &ParsingError{Cause: err}
	}
	return &LoadingParseError{File: file, Err: pe}
}
