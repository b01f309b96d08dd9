// Package jsonschema exports settings type descriptions as JSON Schema so
// editors can complete and check configuration files.
package jsonschema

import (
	"encoding"
	"reflect"
	"time"

	"github.com/reoring/goskema-settings/schema"
)

// Draft is the dialect written to the root schema.
const Draft = "https://json-schema.org/draft/2020-12/schema"

// Schema is a minimal JSON Schema representation used for export.
type Schema struct {
	Dialect string `json:"$schema,omitempty"`
	Title   string `json:"title,omitempty"`

	// Core
	Type    string `json:"type,omitempty"`
	Format  string `json:"format,omitempty"`
	Default any    `json:"default,omitempty"`

	// Object
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Required             []string           `json:"required,omitempty"`
	AdditionalProperties any                `json:"additionalProperties,omitempty"`

	// Array
	Items    *Schema `json:"items,omitempty"`
	MinItems *int    `json:"minItems,omitempty"`
	MaxItems *int    `json:"maxItems,omitempty"`

	// Union
	OneOf []*Schema `json:"oneOf,omitempty"`
}

var (
	timeType            = reflect.TypeOf(time.Time{})
	durationType        = reflect.TypeOf(time.Duration(0))
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

// FromType converts a described type. Types that refer to themselves are cut
// at the second occurrence with an unconstrained schema.
func FromType(t *schema.Type) *Schema {
	s := convert(t, map[*schema.Type]bool{})
	s.Dialect = Draft
	if t.GoType != nil {
		s.Title = t.GoType.Name()
	}
	return s
}

func convert(t *schema.Type, stack map[*schema.Type]bool) *Schema {
	if t == nil || stack[t] {
		return &Schema{}
	}
	switch t.Kind {
	case schema.Object:
		stack[t] = true
		defer delete(stack, t)
		s := &Schema{Type: "object", Properties: map[string]*Schema{}}
		for _, f := range t.Fields {
			fs := convert(f.Type, stack)
			if f.HasDefault {
				fs.Default = f.Default
			}
			s.Properties[f.Key] = fs
			if f.Required {
				s.Required = append(s.Required, f.Key)
			}
		}
		return s
	case schema.Union:
		s := &Schema{}
		for _, a := range t.Alternatives {
			s.OneOf = append(s.OneOf, convert(a.Type, stack))
		}
		return s
	case schema.List:
		s := &Schema{Type: "array", Items: convert(t.Elem, stack)}
		if t.GoType.Kind() == reflect.Array {
			n := t.GoType.Len()
			s.MinItems, s.MaxItems = &n, &n
		}
		return s
	case schema.Map:
		return &Schema{Type: "object", AdditionalProperties: convert(t.Elem, stack)}
	case schema.Any:
		return &Schema{}
	}
	return scalar(t.GoType)
}

func scalar(rt reflect.Type) *Schema {
	switch {
	case rt == timeType:
		return &Schema{Type: "string", Format: "date-time"}
	case rt == durationType:
		return &Schema{Type: "string", Format: "duration"}
	case reflect.PointerTo(rt).Implements(textUnmarshalerType):
		return &Schema{Type: "string"}
	}
	switch rt.Kind() {
	case reflect.Bool:
		return &Schema{Type: "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Schema{Type: "integer"}
	case reflect.Float32, reflect.Float64:
		return &Schema{Type: "number"}
	}
	return &Schema{Type: "string"}
}
