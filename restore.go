package settings

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	eng "github.com/reoring/goskema-settings/internal/engine"
)

// EnvVar is one environment entry. Key keeps its original spelling.
type EnvVar struct {
	Key   string
	Value string
}

// EnvFromMap returns the entries of m sorted by key.
func EnvFromMap(m map[string]string) []EnvVar {
	out := make([]EnvVar, 0, len(m))
	for k, v := range m {
		out = append(out, EnvVar{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// OSEnviron snapshots the process environment in the order the OS reports.
func OSEnviron() []EnvVar {
	env := os.Environ()
	out := make([]EnvVar, 0, len(env))
	for _, kv := range env {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		out = append(out, EnvVar{Key: k, Value: v})
	}
	return out
}

var (
	// ErrCannotParseValue: a value for an object-only field is not an
	// inline document.
	ErrCannotParseValue = errors.New("cannot parse value")
	// ErrAssignBeyondSimpleValue: a key descends into a location that an
	// earlier key already set to a plain value.
	ErrAssignBeyondSimpleValue = errors.New("assign beyond simple value")
)

// RestoreError is a non-fatal failure for a single environment key.
type RestoreError struct {
	Reason error // ErrCannotParseValue or ErrAssignBeyondSimpleValue
	Path   Path
	Key    string
	Cause  error
}

func (e *RestoreError) Error() string {
	msg := fmt.Sprintf("env %q: %s for %s", e.Key, e.Reason, e.Path)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *RestoreError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Cause}
}

// Issue converts the failure into an issue sourced at the variable.
func (e *RestoreError) Issue() Issue {
	it := Issue{Path: e.Path, Cause: e.Cause, Source: &SourceLoc{EnvKey: e.Key}}
	switch {
	case errors.Is(e.Reason, ErrCannotParseValue):
		it.Code = CodeCannotParseValue
		it.Message = "value cannot be decoded as an inline document"
	default:
		it.Code = CodeAssignBeyondSimpleValue
		it.Message = "a parent location already holds a plain value"
	}
	return it
}

type inlineDoc struct {
	key  string
	root *Node
}

// Restored is the nested value built from environment variables, with the
// indexes needed to locate each value again.
type Restored struct {
	Values map[string]any
	// path -> original key of the variable that set it
	envKeys map[string]string
	// path -> inline document decoded from one variable
	inline map[string]inlineDoc
}

// Locate implements Locator. A path set by a variable resolves to that
// variable; a path below an inline document resolves to the variable plus
// the span inside its value. The deepest variable on the path wins, and a
// path below a plain value (a list given as one JSON string) resolves to
// the variable that holds it.
func (r *Restored) Locate(path Path) (SourceLoc, error) {
	if r == nil || len(path) == 0 {
		return SourceLoc{}, &LookupError{Reason: eng.LookupMissing, Path: path}
	}
	if key, ok := r.envKeys[path.MapKey()]; ok {
		return SourceLoc{EnvKey: key}, nil
	}
	for i := len(path) - 1; i >= 1; i-- {
		mk := path[:i].MapKey()
		if doc, ok := r.inline[mk]; ok {
			return doc.locate(path, i)
		}
		if key, ok := r.envKeys[mk]; ok {
			return SourceLoc{EnvKey: key}, nil
		}
	}
	return SourceLoc{}, &LookupError{Reason: eng.LookupMissing, Path: path}
}

// locate finds path[at:] inside the document. When the path runs below a
// scalar of the document, the scalar's span is reported.
func (d inlineDoc) locate(path Path, at int) (SourceLoc, error) {
	rest := path[at:]
	for j := len(rest); j >= 1; j-- {
		n, err := eng.Locate(d.root, rest[:j])
		if err != nil {
			continue
		}
		if j < len(rest) && (n.Kind == eng.MappingNode || n.Kind == eng.SequenceNode) {
			break
		}
		loc := SourceLoc{EnvKey: d.key}
		if n.Span.Known() {
			sp := n.Span
			loc.Span = &sp
		}
		return loc, nil
	}
	return SourceLoc{}, &LookupError{Reason: eng.LookupMissing, Path: path, Pos: at}
}

// Restorer rebuilds nested values from flat keys. It only reads its flat map
// and may be shared.
type Restorer struct {
	flat   *FlatMap
	inline InlineDecoder
}

// NewRestorer returns a Restorer; a nil inline decoder means JSONInline.
func NewRestorer(flat *FlatMap, inline InlineDecoder) *Restorer {
	if inline == nil {
		inline = JSONInline
	}
	return &Restorer{flat: flat, inline: inline}
}

// Restore applies vars in order. Keys outside the prefix or without a table
// entry are skipped. When two keys address the same leaf the later one wins
// without an error, so the result depends on the order of vars. Failures
// for single keys are collected and the key is skipped.
func (r *Restorer) Restore(vars []EnvVar) (*Restored, []error) {
	out := &Restored{Values: map[string]any{}, envKeys: map[string]string{}, inline: map[string]inlineDoc{}}
	var errs []error
	for _, v := range vars {
		key := r.flat.Fold(v.Key)
		if !strings.HasPrefix(key, r.flat.Prefix()) {
			continue
		}
		entry, ok := r.flat.entries[key]
		if !ok {
			continue
		}
		var value any = v.Value
		var doc *Node
		if entry.Complex {
			n, err := r.decodeInline(v.Value)
			switch {
			case err == nil:
				doc, value = n, n.Plain()
			case entry.ExclusivelyComplex:
				errs = append(errs, &RestoreError{Reason: ErrCannotParseValue, Path: entry.Path, Key: v.Key, Cause: err})
				continue
			}
		}
		if err := assign(out.Values, entry.Path, value); err != nil {
			errs = append(errs, &RestoreError{Reason: err, Path: entry.Path, Key: v.Key})
			continue
		}
		mk := entry.Path.MapKey()
		out.forgetBelow(mk)
		out.envKeys[mk] = v.Key
		if doc != nil {
			out.inline[mk] = inlineDoc{key: v.Key, root: doc}
		} else {
			delete(out.inline, mk)
		}
	}
	return out, errs
}

// forgetBelow drops index entries for paths strictly under mk, whose values
// were just replaced.
func (r *Restored) forgetBelow(mk string) {
	for k := range r.envKeys {
		if len(k) > len(mk) && strings.HasPrefix(k, mk) {
			delete(r.envKeys, k)
		}
	}
	for k := range r.inline {
		if len(k) > len(mk) && strings.HasPrefix(k, mk) {
			delete(r.inline, k)
		}
	}
}

func (r *Restorer) decodeInline(value string) (*Node, error) {
	if strings.TrimSpace(value) == "" {
		return nil, errors.New("empty value")
	}
	n, err := r.inline(value)
	if err != nil {
		return nil, err
	}
	if n == nil || n.Kind != eng.MappingNode {
		return nil, &ParsingError{Cause: eng.ErrRootNotMapping}
	}
	return n, nil
}

// assign writes value at path, creating intermediate mappings. A plain value
// on the way is left untouched.
func assign(root map[string]any, path Path, value any) error {
	cur := root
	for _, seg := range path[:len(path)-1] {
		next, ok := cur[seg.Key()]
		if !ok {
			m := map[string]any{}
			cur[seg.Key()] = m
			cur = m
			continue
		}
		m, ok := next.(map[string]any)
		if !ok {
			return ErrAssignBeyondSimpleValue
		}
		cur = m
	}
	cur[path[len(path)-1].Key()] = value
	return nil
}
