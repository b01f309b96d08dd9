package settings

import (
	"context"
	"encoding"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/reoring/goskema-settings/codec"
	eng "github.com/reoring/goskema-settings/internal/engine"
	"github.com/reoring/goskema-settings/schema"
	jsonsrc "github.com/reoring/goskema-settings/source/json"
)

var (
	timeType            = reflect.TypeOf(time.Time{})
	durationType        = reflect.TypeOf(time.Duration(0))
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

// binder converts merged raw values (mappings, lists, strings, Numbers,
// bools, nil) into Go values described by a schema.
type binder struct {
	ctx     context.Context
	unknown UnknownPolicy
	// check validates a freshly bound union alternative; nil skips it.
	check func(t *schema.Type, v reflect.Value) Issues
	// defaults collects the paths where a default literal was applied.
	defaults []Path
}

// bind stores raw into dst. dst must be settable; pointers are allocated as
// needed. Failure paths are relative to dst; at is dst's absolute path.
func (b *binder) bind(dst reflect.Value, t *schema.Type, raw any, at Path) Failure {
	if dst.Kind() == reflect.Pointer {
		if raw == nil {
			dst.SetZero()
			return Failure{}
		}
		p := reflect.New(dst.Type().Elem())
		f := b.bind(p.Elem(), t, raw, at)
		if f.Empty() {
			dst.Set(p)
		}
		return f
	}
	if raw == nil && t.Kind != schema.Object && t.Kind != schema.Scalar {
		dst.SetZero()
		return Failure{}
	}
	switch t.Kind {
	case schema.Object:
		return b.object(dst, t, raw, at)
	case schema.Union:
		return b.union(dst, t, raw, at)
	case schema.List:
		return b.list(dst, t, raw, at)
	case schema.Map:
		return b.mapping(dst, t, raw, at)
	case schema.Any:
		dst.Set(reflect.ValueOf(plainAny(raw)))
		return Failure{}
	default:
		return b.scalar(dst, raw)
	}
}

func (b *binder) object(dst reflect.Value, t *schema.Type, raw any, at Path) Failure {
	m, ok := raw.(map[string]any)
	if !ok {
		return typeIssue("mapping", raw)
	}
	var nested []Failure
	for _, f := range t.Fields {
		fv := fieldByIndex(dst, f.Index)
		fpath := Path{Key(f.Key)}
		v, present := m[f.Key]
		if !present {
			switch {
			case f.HasDefault:
				if fl := b.bind(fv, f.Type, f.Default, at.Concat(fpath)); !fl.Empty() {
					nested = append(nested, Aggregate(fpath, fl))
					continue
				}
				b.defaults = append(b.defaults, at.Concat(fpath))
			case f.Required:
				nested = append(nested, Aggregate(fpath, Leaf(Issue{
					Code:    CodeRequired,
					Message: "field required",
				})))
			}
			continue
		}
		if fl := b.bind(fv, f.Type, v, at.Concat(fpath)); !fl.Empty() {
			nested = append(nested, Aggregate(fpath, fl))
		}
	}
	if b.unknown == UnknownStrict {
		keys := make([]string, 0, len(m))
		for k := range m {
			if _, ok := t.Field(k); !ok {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			nested = append(nested, Aggregate(Path{Key(k)}, Leaf(Issue{
				Code:    CodeUnknownKey,
				Message: "extra fields not permitted",
				Params:  map[string]any{"key": k},
			})))
		}
	}
	return Aggregate(nil, nested...)
}

// fieldByIndex is reflect.Value.FieldByIndex allocating nil embedded
// pointers on the way.
func fieldByIndex(v reflect.Value, index []int) reflect.Value {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v
}

// union tries the alternatives in order. The first one that binds and
// passes validation is stored; otherwise the failure of the alternative
// with the fewest issues is returned.
func (b *binder) union(dst reflect.Value, t *schema.Type, raw any, at Path) Failure {
	var best Failure
	bestCount := -1
	for _, alt := range t.Alternatives {
		mark := len(b.defaults)
		p := reflect.New(alt.Type.GoType)
		f := b.bind(p.Elem(), alt.Type, raw, at)
		if f.Empty() && b.check != nil {
			if iss := b.check(alt.Type, p); len(iss) > 0 {
				leaves := make([]Failure, len(iss))
				for i, it := range iss {
					leaves[i] = Leaf(it)
				}
				f = Aggregate(nil, leaves...)
			}
		}
		if f.Empty() {
			v := p.Elem()
			if alt.Ptr {
				v = p
			}
			dst.Set(v)
			return Failure{}
		}
		b.defaults = b.defaults[:mark]
		if n := len(f.Flatten()); bestCount < 0 || n < bestCount {
			best, bestCount = f, n
		}
	}
	return best
}

func (b *binder) list(dst reflect.Value, t *schema.Type, raw any, at Path) Failure {
	if s, ok := raw.(string); ok {
		if v, ok := decodeContainer(s); ok {
			raw = v
		}
	}
	items, ok := raw.([]any)
	if !ok {
		return typeIssue("list", raw)
	}
	if dst.Kind() == reflect.Array {
		if len(items) != dst.Len() {
			code := CodeTooShort
			if len(items) > dst.Len() {
				code = CodeTooLong
			}
			return Leaf(Issue{
				Code:    code,
				Message: fmt.Sprintf("ensure this value has exactly %d items", dst.Len()),
				Params:  map[string]any{"len": dst.Len(), "got": len(items)},
			})
		}
	} else {
		dst.Set(reflect.MakeSlice(dst.Type(), len(items), len(items)))
	}
	var nested []Failure
	for i, item := range items {
		if fl := b.bind(dst.Index(i), t.Elem, item, at.Append(Index(i))); !fl.Empty() {
			nested = append(nested, Aggregate(Path{Index(i)}, fl))
		}
	}
	return Aggregate(nil, nested...)
}

func (b *binder) mapping(dst reflect.Value, t *schema.Type, raw any, at Path) Failure {
	if s, ok := raw.(string); ok {
		if v, ok := decodeContainer(s); ok {
			raw = v
		}
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return typeIssue("mapping", raw)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := reflect.MakeMapWithSize(dst.Type(), len(m))
	var nested []Failure
	for _, k := range keys {
		ev := reflect.New(dst.Type().Elem()).Elem()
		if fl := b.bind(ev, t.Elem, m[k], at.Append(Key(k))); !fl.Empty() {
			nested = append(nested, Aggregate(Path{Key(k)}, fl))
			continue
		}
		out.SetMapIndex(reflect.ValueOf(k).Convert(dst.Type().Key()), ev)
	}
	dst.Set(out)
	return Aggregate(nil, nested...)
}

// decodeContainer reads a JSON list or mapping written as one string, as
// environment variables carry them.
func decodeContainer(s string) (any, bool) {
	if strings.TrimSpace(s) == "" {
		return nil, false
	}
	n, err := jsonsrc.Parse([]byte(s), jsonsrc.Options{})
	if err != nil || (n.Kind != eng.MappingNode && n.Kind != eng.SequenceNode) {
		return nil, false
	}
	return n.Plain(), true
}

func (b *binder) scalar(dst reflect.Value, raw any) Failure {
	if raw == nil {
		return Leaf(Issue{Code: CodeInvalidType, Message: "none is not an allowed value",
			Params: map[string]any{"got": "null"}})
	}
	typ := dst.Type()
	switch {
	case typ == timeType:
		return b.timeValue(dst, raw)
	case typ == durationType:
		return b.durationValue(dst, raw)
	case reflect.PointerTo(typ).Implements(textUnmarshalerType):
		return textValue(dst, raw)
	}
	switch dst.Kind() {
	case reflect.String:
		switch v := raw.(type) {
		case string:
			dst.SetString(v)
		case Number:
			dst.SetString(string(v))
		default:
			return typeIssue("string", raw)
		}
	case reflect.Bool:
		v, ok := boolValue(raw)
		if !ok {
			return typeIssue("boolean", raw)
		}
		dst.SetBool(v)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		s, ok := numericText(raw)
		if !ok {
			return typeIssue("integer", raw)
		}
		n, err := parseInt(s)
		if errors.Is(err, strconv.ErrRange) || (err == nil && dst.OverflowInt(n)) {
			return overflowIssue(typ, s)
		}
		if err != nil {
			return typeIssue("integer", raw)
		}
		dst.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		s, ok := numericText(raw)
		if !ok {
			return typeIssue("integer", raw)
		}
		if strings.HasPrefix(s, "-") {
			if _, err := parseInt(s); err == nil {
				return overflowIssue(typ, s)
			}
			return typeIssue("integer", raw)
		}
		n, err := strconv.ParseUint(s, 10, 64)
		if errors.Is(err, strconv.ErrRange) || (err == nil && dst.OverflowUint(n)) {
			return overflowIssue(typ, s)
		}
		if err != nil {
			return typeIssue("integer", raw)
		}
		dst.SetUint(n)
	case reflect.Float32, reflect.Float64:
		s, ok := numericText(raw)
		if !ok {
			return typeIssue("float", raw)
		}
		f, err := strconv.ParseFloat(s, typ.Bits())
		if errors.Is(err, strconv.ErrRange) {
			return overflowIssue(typ, s)
		}
		if err != nil {
			return typeIssue("float", raw)
		}
		dst.SetFloat(f)
	case reflect.Slice:
		// []byte
		s, ok := raw.(string)
		if !ok {
			return typeIssue("string", raw)
		}
		dst.Set(reflect.ValueOf([]byte(s)).Convert(typ))
	default:
		return Leaf(Issue{Code: CodeInvalidType, Message: fmt.Sprintf("unsupported type %s", typ)})
	}
	return Failure{}
}

func (b *binder) timeValue(dst reflect.Value, raw any) Failure {
	switch v := raw.(type) {
	case time.Time:
		dst.Set(reflect.ValueOf(v))
		return Failure{}
	case string:
		t, err := codec.TimeRFC3339().Decode(b.ctx, strings.TrimSpace(v))
		if err != nil {
			return Leaf(Issue{Code: CodeInvalidFormat, Message: "invalid datetime format", Hint: "rfc3339", Cause: err})
		}
		dst.Set(reflect.ValueOf(t))
		return Failure{}
	}
	return typeIssue("datetime", raw)
}

// durationValue accepts Go duration literals and plain numbers of seconds.
func (b *binder) durationValue(dst reflect.Value, raw any) Failure {
	switch v := raw.(type) {
	case Number:
		f, err := v.Float64()
		if err != nil || math.Abs(f) > float64(math.MaxInt64)/float64(time.Second) {
			return overflowIssue(dst.Type(), string(v))
		}
		dst.SetInt(int64(f * float64(time.Second)))
		return Failure{}
	case string:
		d, err := codec.Duration().Decode(b.ctx, strings.TrimSpace(v))
		if err != nil {
			return Leaf(Issue{Code: CodeInvalidFormat, Message: "invalid duration format", Hint: "duration", Cause: err})
		}
		dst.SetInt(int64(d))
		return Failure{}
	}
	return typeIssue("duration", raw)
}

func textValue(dst reflect.Value, raw any) Failure {
	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case Number:
		s = string(v)
	default:
		return typeIssue("string", raw)
	}
	p := reflect.New(dst.Type())
	if err := p.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
		return Leaf(Issue{Code: CodeInvalidFormat, Message: err.Error(), Hint: dst.Type().String(), Cause: err})
	}
	dst.Set(p.Elem())
	return Failure{}
}

func numericText(raw any) (string, bool) {
	switch v := raw.(type) {
	case Number:
		return string(v), true
	case string:
		return strings.TrimSpace(v), true
	}
	return "", false
}

// parseInt accepts integral floats such as "1e3" or "5.0".
func parseInt(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err == nil || errors.Is(err, strconv.ErrRange) {
		return n, err
	}
	f, ferr := strconv.ParseFloat(s, 64)
	if (ferr != nil && !errors.Is(ferr, strconv.ErrRange)) || f != math.Trunc(f) {
		return 0, err
	}
	if ferr != nil || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, &strconv.NumError{Func: "ParseInt", Num: s, Err: strconv.ErrRange}
	}
	return int64(f), nil
}

func boolValue(raw any) (bool, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "on", "yes", "y":
			return true, true
		case "0", "f", "false", "off", "no", "n":
			return false, true
		}
	case Number:
		switch v {
		case "0":
			return false, true
		case "1":
			return true, true
		}
	}
	return false, false
}

func rawKind(raw any) string {
	switch raw.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case Number:
		return "number"
	case string:
		return "string"
	case []any:
		return "list"
	case map[string]any:
		return "mapping"
	}
	return fmt.Sprintf("%T", raw)
}

func typeIssue(expected string, raw any) Failure {
	return Leaf(Issue{
		Code:    CodeInvalidType,
		Message: "value is not a valid " + expected,
		Params:  map[string]any{"expected": expected, "got": rawKind(raw)},
	})
}

func overflowIssue(typ reflect.Type, lit string) Failure {
	return Leaf(Issue{
		Code:    CodeOverflow,
		Message: fmt.Sprintf("value %s is out of range for %s", lit, typ),
		Params:  map[string]any{"type": typ.String(), "got": lit},
	})
}

// plainAny converts raw values for interface{} fields: Numbers become int64
// or float64, containers are copied.
func plainAny(raw any) any {
	switch v := raw.(type) {
	case Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return string(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, x := range v {
			out[k] = plainAny(x)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, x := range v {
			out[i] = plainAny(x)
		}
		return out
	}
	return raw
}
