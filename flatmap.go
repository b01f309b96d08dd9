package settings

import (
	"fmt"
	"sort"

	"golang.org/x/text/cases"

	"github.com/reoring/goskema-settings/schema"
)

// DefaultEnvSeparator joins flat key parts.
const DefaultEnvSeparator = "_"

// FlatOpt configures BuildFlatMap.
type FlatOpt struct {
	Prefix        string
	Separator     string // DefaultEnvSeparator when empty
	CaseSensitive bool
}

// FlatEntry describes one flat key.
//
// Complex is set when the field's type has at least one object shape, so the
// key may carry a whole inline document. ExclusivelyComplex is set when every
// shape is an object, so a value that cannot be decoded inline is an error.
type FlatEntry struct {
	Key                string
	Path               Path
	Complex            bool
	ExclusivelyComplex bool
	Type               *schema.Type
}

// FlatKeyConflictError reports two different settings paths that produce
// the same flat key.
type FlatKeyConflictError struct {
	Key    string
	First  Path
	Second Path
}

func (e *FlatKeyConflictError) Error() string {
	return fmt.Sprintf("settings: flat key %q is produced by both %s and %s", e.Key, e.First, e.Second)
}

// FlatMap is the table from case-normalized flat keys to settings paths. It
// is immutable once built and safe for concurrent use.
type FlatMap struct {
	prefix        string
	sep           string
	caseSensitive bool
	entries       map[string]FlatEntry
}

// BuildFlatMap walks the fields of t depth-first. Every field gets an entry;
// complex fields are expanded once more into each object alternative, so a
// nested value can be given whole or field by field. A type already being
// expanded further up is not expanded again.
func BuildFlatMap(t *schema.Type, opt FlatOpt) (*FlatMap, error) {
	if opt.Separator == "" {
		opt.Separator = DefaultEnvSeparator
	}
	m := &FlatMap{sep: opt.Separator, caseSensitive: opt.CaseSensitive, entries: map[string]FlatEntry{}}
	m.prefix = m.Fold(opt.Prefix)
	if t == nil || t.Kind != schema.Object {
		return nil, fmt.Errorf("settings: flat map needs an object type, got %v", t)
	}
	stack := map[*schema.Type]bool{}
	if err := m.walk(t, m.prefix, nil, stack); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *FlatMap) walk(t *schema.Type, prefix string, path Path, stack map[*schema.Type]bool) error {
	stack[t] = true
	defer delete(stack, t)
	for _, f := range t.Fields {
		key := m.join(prefix, m.Fold(f.Key))
		fpath := path.Append(Key(f.Key))
		entry := FlatEntry{
			Key:                key,
			Path:               fpath,
			Complex:            f.Type.Complex(),
			ExclusivelyComplex: f.Type.ExclusivelyComplex(),
			Type:               f.Type,
		}
		if prev, ok := m.entries[key]; ok && !prev.Path.Equal(fpath) {
			return &FlatKeyConflictError{Key: key, First: prev.Path, Second: fpath}
		}
		// union alternatives sharing a field name: last alternative wins
		m.entries[key] = entry
		if !entry.Complex {
			continue
		}
		for _, alt := range f.Type.ObjectAlternatives() {
			if stack[alt] {
				continue
			}
			if err := m.walk(alt, key, fpath, stack); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *FlatMap) join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + m.sep + key
}

// Fold normalizes a key the way the table does.
func (m *FlatMap) Fold(s string) string {
	if m.caseSensitive {
		return s
	}
	// a Caser keeps state, so one is made per call
	return cases.Fold().String(s)
}

// Prefix returns the normalized prefix.
func (m *FlatMap) Prefix() string { return m.prefix }

// Len returns the number of entries.
func (m *FlatMap) Len() int { return len(m.entries) }

// Lookup returns the entry for a raw (not yet normalized) key.
func (m *FlatMap) Lookup(key string) (FlatEntry, bool) {
	e, ok := m.entries[m.Fold(key)]
	return e, ok
}

// Entries returns all entries sorted by key.
func (m *FlatMap) Entries() []FlatEntry {
	out := make([]FlatEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
