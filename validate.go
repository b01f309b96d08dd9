package settings

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/reoring/goskema-settings/schema"
)

var (
	defaultValidatorOnce sync.Once
	defaultValidator     *validator.Validate
)

// DefaultValidator returns the shared validator used when
// Options.Validator is nil.
func DefaultValidator() *validator.Validate {
	defaultValidatorOnce.Do(func() {
		defaultValidator = validator.New(validator.WithRequiredStructEnabled())
	})
	return defaultValidator
}

// validateStruct runs the `validate` struct tags of v, a struct or pointer
// to a struct described by t. Field errors are mapped back to settings paths.
func validateStruct(v *validator.Validate, t *schema.Type, value reflect.Value) Issues {
	if v == nil || t == nil || t.Kind != schema.Object {
		return nil
	}
	err := v.Struct(value.Interface())
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Issues{{Code: CodeConstraint, Message: err.Error(), Cause: err}}
	}
	out := make(Issues, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, Issue{
			Path:    namespacePath(t, value, fe.StructNamespace()),
			Code:    constraintCode(fe),
			Message: constraintMessage(fe),
			Rule:    fe.Tag(),
			Params:  map[string]any{"tag": fe.Tag(), "param": fe.Param(), "value": fe.Value()},
			Cause:   fe,
		})
	}
	return out
}

func lengthKind(k reflect.Kind) bool {
	switch k {
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map:
		return true
	}
	return false
}

func constraintCode(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if", "required_unless", "required_with", "required_without":
		return CodeRequired
	case "min", "gte", "gt":
		if lengthKind(fe.Kind()) {
			return CodeTooShort
		}
		return CodeTooSmall
	case "max", "lte", "lt":
		if lengthKind(fe.Kind()) {
			return CodeTooLong
		}
		return CodeTooBig
	case "len":
		return CodeTooLong
	case "oneof":
		return CodeInvalidEnum
	case "email", "url", "uri", "hostname", "hostname_port", "ip", "ipv4", "ipv6",
		"cidr", "uuid", "datetime", "fqdn", "file", "dir":
		return CodeInvalidFormat
	case "alpha", "alphanum", "numeric", "hexadecimal", "lowercase", "uppercase",
		"startswith", "endswith", "contains", "excludes":
		return CodePattern
	}
	return CodeConstraint
}

func constraintMessage(fe validator.FieldError) string {
	p := fe.Param()
	switch fe.Tag() {
	case "required":
		return "field required"
	case "min", "gte":
		if lengthKind(fe.Kind()) {
			return "ensure this value has at least " + p + " " + lengthUnit(fe.Kind())
		}
		return "ensure this value is greater than or equal to " + p
	case "gt":
		return "ensure this value is greater than " + p
	case "max", "lte":
		if lengthKind(fe.Kind()) {
			return "ensure this value has at most " + p + " " + lengthUnit(fe.Kind())
		}
		return "ensure this value is less than or equal to " + p
	case "lt":
		return "ensure this value is less than " + p
	case "oneof":
		return "value is not one of: " + p
	}
	if p != "" {
		return fmt.Sprintf("value failed the %q constraint (%s)", fe.Tag(), p)
	}
	return fmt.Sprintf("value failed the %q constraint", fe.Tag())
}

func lengthUnit(k reflect.Kind) string {
	if k == reflect.String {
		return "characters"
	}
	return "items"
}

type nsToken struct {
	text    string
	bracket bool
}

// splitNamespace splits "Config.Items[0].Tags[a.b]" into names and bracket
// parts; bracket contents may hold dots.
func splitNamespace(ns string) []nsToken {
	var out []nsToken
	start := 0
	for i := 0; i < len(ns); i++ {
		switch ns[i] {
		case '.':
			if i > start {
				out = append(out, nsToken{text: ns[start:i]})
			}
			start = i + 1
		case '[':
			if i > start {
				out = append(out, nsToken{text: ns[start:i]})
			}
			end := i + 1
			for end < len(ns) && ns[end] != ']' {
				end++
			}
			out = append(out, nsToken{text: ns[i+1 : min(end, len(ns))], bracket: true})
			i = end
			start = end + 1
		}
	}
	if start < len(ns) {
		out = append(out, nsToken{text: ns[start:]})
	}
	return out
}

// namespacePath maps a validator struct namespace (Go field names) to a
// settings path (external keys). Names of embedded structs are skipped.
// Union members are resolved against the concrete type held in value; an
// invalid value falls back to the first member with the field.
func namespacePath(root *schema.Type, value reflect.Value, ns string) Path {
	var path Path
	cur, v := root, indirect(value)
	for i, tok := range splitNamespace(ns) {
		if i == 0 || cur == nil {
			continue
		}
		if tok.bracket {
			switch cur.Kind {
			case schema.List:
				n, err := strconv.Atoi(tok.text)
				if err != nil {
					return path
				}
				path = append(path, Index(n))
				if v.IsValid() && (v.Kind() == reflect.Slice || v.Kind() == reflect.Array) && n >= 0 && n < v.Len() {
					v = indirect(v.Index(n))
				} else {
					v = reflect.Value{}
				}
			case schema.Map:
				path = append(path, Key(tok.text))
				if v.IsValid() && v.Kind() == reflect.Map {
					v = indirect(v.MapIndex(reflect.ValueOf(tok.text).Convert(v.Type().Key())))
				} else {
					v = reflect.Value{}
				}
			default:
				return path
			}
			cur = cur.Elem
			continue
		}
		ot, f := fieldByGoName(cur, v, tok.text)
		if f == nil {
			continue
		}
		path = append(path, Key(f.Key))
		if v.IsValid() && v.Type() == ot.GoType {
			fv, err := v.FieldByIndexErr(f.Index)
			if err == nil {
				v = indirect(fv)
			} else {
				v = reflect.Value{}
			}
		} else {
			v = reflect.Value{}
		}
		cur = f.Type
	}
	return path
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// fieldByGoName returns the object type and field named name. For unions the
// member matching the concrete type of v is preferred.
func fieldByGoName(t *schema.Type, v reflect.Value, name string) (*schema.Type, *schema.Field) {
	alts := t.ObjectAlternatives()
	if v.IsValid() {
		for _, ot := range alts {
			if ot.GoType == v.Type() {
				alts = []*schema.Type{ot}
				break
			}
		}
	}
	for _, ot := range alts {
		for _, f := range ot.Fields {
			if f.Name == name {
				return ot, f
			}
		}
	}
	return nil, nil
}
