// Package schema describes Go settings types as a closed set of shapes.
//
// A Registry inspects a type once with reflection and memoizes the result.
// Every described type is one of: Scalar, Object (struct), Union (an
// interface registered with its alternatives), List, Map or Any.
package schema

import (
	"encoding"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"
)

// Kind is the shape of a described type.
type Kind int

const (
	Scalar Kind = iota
	Object
	Union
	List
	Map
	Any
)

func (k Kind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case Object:
		return "object"
	case Union:
		return "union"
	case List:
		return "list"
	case Map:
		return "map"
	case Any:
		return "any"
	default:
		return "unknown"
	}
}

// Type is the description of one Go type. Pointers are transparent: GoType
// is never a pointer type.
type Type struct {
	Kind   Kind
	GoType reflect.Type
	// Object
	Fields []*Field
	byKey  map[string]*Field
	// Union
	Alternatives []*Alternative
	// List and Map
	Elem *Type
}

// Field is one settable struct field, promoted through embedded structs.
type Field struct {
	Name       string // Go field name
	Key        string // external key
	Index      []int  // reflect index path from the enclosing struct
	Type       *Type
	Required   bool
	Default    string
	HasDefault bool
}

// Alternative is one member type of a union. Ptr reports that only the
// pointer type implements the interface.
type Alternative struct {
	Type *Type
	Ptr  bool
}

// Name returns the alternative's Go type name.
func (a *Alternative) Name() string { return a.Type.GoType.Name() }

// Field returns the object field with the given external key.
func (t *Type) Field(key string) (*Field, bool) {
	f, ok := t.byKey[key]
	return f, ok
}

// Complex reports whether the type is an object or a union with at least one
// object alternative.
func (t *Type) Complex() bool {
	switch t.Kind {
	case Object:
		return true
	case Union:
		for _, a := range t.Alternatives {
			if a.Type.Kind == Object {
				return true
			}
		}
	}
	return false
}

// ExclusivelyComplex reports whether every alternative of the type is an
// object, so a plain string can never be a valid value.
func (t *Type) ExclusivelyComplex() bool {
	switch t.Kind {
	case Object:
		return true
	case Union:
		if len(t.Alternatives) == 0 {
			return false
		}
		for _, a := range t.Alternatives {
			if a.Type.Kind != Object {
				return false
			}
		}
		return true
	}
	return false
}

// ObjectAlternatives returns the object-shaped members: the type itself for
// objects, the object alternatives for unions.
func (t *Type) ObjectAlternatives() []*Type {
	switch t.Kind {
	case Object:
		return []*Type{t}
	case Union:
		var out []*Type
		for _, a := range t.Alternatives {
			if a.Type.Kind == Object {
				out = append(out, a.Type)
			}
		}
		return out
	}
	return nil
}

func (t *Type) String() string { return t.GoType.String() }

var (
	timeType            = reflect.TypeOf(time.Time{})
	durationType        = reflect.TypeOf(time.Duration(0))
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

// Registry memoizes type descriptions. It is safe for concurrent use.
type Registry struct {
	mu     sync.Mutex
	types  map[reflect.Type]*Type
	unions map[reflect.Type][]reflect.Type
	// types added by the Describe call in progress
	added []reflect.Type
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: map[reflect.Type]*Type{}, unions: map[reflect.Type][]reflect.Type{}}
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry used when none is configured.
func Default() *Registry { return defaultRegistry }

// RegisterUnion declares the alternatives of interface type I. Each
// alternative is a value of a type that (or whose pointer) implements I.
func RegisterUnion[I any](r *Registry, alternatives ...any) error {
	iface := reflect.TypeOf((*I)(nil)).Elem()
	alts := make([]reflect.Type, 0, len(alternatives))
	for _, a := range alternatives {
		if a == nil {
			return fmt.Errorf("schema: nil alternative for union %s", iface)
		}
		alts = append(alts, reflect.TypeOf(a))
	}
	return r.RegisterUnion(iface, alts...)
}

// RegisterUnion declares the alternatives of an interface type. Cached
// descriptions are dropped so later lookups see the union.
func (r *Registry) RegisterUnion(iface reflect.Type, alts ...reflect.Type) error {
	if iface.Kind() != reflect.Interface {
		return fmt.Errorf("schema: union type %s is not an interface", iface)
	}
	if len(alts) == 0 {
		return fmt.Errorf("schema: union %s has no alternatives", iface)
	}
	for i, a := range alts {
		for a.Kind() == reflect.Pointer {
			a = a.Elem()
		}
		if !a.Implements(iface) && !reflect.PointerTo(a).Implements(iface) {
			return fmt.Errorf("schema: %s does not implement %s", a, iface)
		}
		alts[i] = a
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unions[iface] = alts
	r.types = map[reflect.Type]*Type{}
	return nil
}

// Describe returns the description of t.
func (r *Registry) Describe(t reflect.Type) (*Type, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.added = r.added[:0]
	d, err := r.describe(t)
	if err != nil {
		// descriptions filled during this call may point at the failed one
		for _, a := range r.added {
			delete(r.types, a)
		}
	}
	r.added = r.added[:0]
	return d, err
}

// DescribeOf is Describe for the static type T.
func DescribeOf[T any](r *Registry) (*Type, error) {
	return r.Describe(reflect.TypeOf((*T)(nil)).Elem())
}

func (r *Registry) describe(t reflect.Type) (*Type, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if d, ok := r.types[t]; ok {
		return d, nil
	}
	d := &Type{GoType: t}
	// registered before recursion so self-referencing types terminate
	r.types[t] = d
	r.added = append(r.added, t)
	if err := r.fill(d); err != nil {
		return nil, err
	}
	return d, nil
}

func isScalarType(t reflect.Type) bool {
	if t == timeType || t == durationType {
		return true
	}
	if reflect.PointerTo(t).Implements(textUnmarshalerType) {
		return true
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	case reflect.Slice:
		return t.Elem().Kind() == reflect.Uint8
	}
	return false
}

func (r *Registry) fill(d *Type) error {
	t := d.GoType
	if isScalarType(t) {
		d.Kind = Scalar
		return nil
	}
	switch t.Kind() {
	case reflect.Struct:
		d.Kind = Object
		d.byKey = map[string]*Field{}
		return r.fields(d, t, nil)
	case reflect.Interface:
		alts, ok := r.unions[t]
		if !ok {
			if t.NumMethod() == 0 {
				d.Kind = Any
				return nil
			}
			return fmt.Errorf("schema: interface %s is not registered as a union", t)
		}
		d.Kind = Union
		for _, a := range alts {
			at, err := r.describe(a)
			if err != nil {
				return err
			}
			d.Alternatives = append(d.Alternatives, &Alternative{Type: at, Ptr: !a.Implements(t)})
		}
		return nil
	case reflect.Slice, reflect.Array:
		d.Kind = List
		elem, err := r.describe(t.Elem())
		if err != nil {
			return err
		}
		d.Elem = elem
		return nil
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return fmt.Errorf("schema: map %s must have string keys", t)
		}
		d.Kind = Map
		elem, err := r.describe(t.Elem())
		if err != nil {
			return err
		}
		d.Elem = elem
		return nil
	}
	return fmt.Errorf("schema: unsupported type %s", t)
}

// fields collects the settable fields of struct t, inlining embedded
// structs. index is the reflect index path of t inside d.GoType.
func (r *Registry) fields(d *Type, t reflect.Type, index []int) error {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		key, opts := ResolveKey(sf)
		if key == "-" {
			continue
		}
		idx := append(append([]int{}, index...), i)
		ft := sf.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if sf.Anonymous && !hasExplicitKey(sf) && ft.Kind() == reflect.Struct && !isScalarType(ft) {
			if !sf.IsExported() && sf.Type.Kind() == reflect.Pointer {
				continue
			}
			if err := r.fields(d, ft, idx); err != nil {
				return err
			}
			continue
		}
		if !sf.IsExported() {
			continue
		}
		ftd, err := r.describe(sf.Type)
		if err != nil {
			return fmt.Errorf("field %s.%s: %w", t.Name(), sf.Name, err)
		}
		f := &Field{Name: sf.Name, Key: key, Index: idx, Type: ftd, Required: opts.Has("required")}
		if def, ok := sf.Tag.Lookup("default"); ok {
			f.Default, f.HasDefault = def, true
		}
		if _, dup := d.byKey[key]; dup {
			return fmt.Errorf("schema: %s: key %q is used by more than one field", d.GoType, key)
		}
		d.Fields = append(d.Fields, f)
		d.byKey[key] = f
	}
	return nil
}

// Keys returns the object's field keys sorted.
func (t *Type) Keys() []string {
	keys := make([]string, 0, len(t.byKey))
	for k := range t.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TagOptions are the comma-separated options of a settings tag.
type TagOptions []string

// Has reports whether the option is present.
func (o TagOptions) Has(name string) bool {
	for _, s := range o {
		if strings.TrimSpace(s) == name {
			return true
		}
	}
	return false
}

func hasExplicitKey(sf reflect.StructField) bool {
	for _, tag := range []string{"settings", "json", "yaml"} {
		if v := sf.Tag.Get(tag); v != "" {
			if name, _, _ := strings.Cut(v, ","); name != "" {
				return true
			}
		}
	}
	return false
}

// ResolveKey applies the key resolution rule for a struct field.
// Priority: settings tag name > json tag name > yaml tag name > snake_case of
// the Go name; "-" disables the field. Options are read from the settings tag.
func ResolveKey(sf reflect.StructField) (string, TagOptions) {
	var opts TagOptions
	if st, ok := sf.Tag.Lookup("settings"); ok {
		name, rest, _ := strings.Cut(st, ",")
		if rest != "" {
			opts = strings.Split(rest, ",")
		}
		if name != "" {
			return name, opts
		}
	}
	for _, tag := range []string{"json", "yaml"} {
		if v := sf.Tag.Get(tag); v != "" {
			if name, _, _ := strings.Cut(v, ","); name != "" {
				return name, opts
			}
		}
	}
	return SnakeCase(sf.Name), opts
}
