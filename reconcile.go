package settings

import (
	"fmt"
	"strconv"
)

// SourceLoc tells where a value came from. An environment location has
// EnvKey set (with the original key spelling) and optionally a Span inside
// the variable's inline value. Otherwise Span locates the value in the
// configuration text named by File ("" for in-memory text).
type SourceLoc struct {
	EnvKey string
	Span   *Span
	File   string
}

// FromEnv reports whether the location is an environment variable.
func (l SourceLoc) FromEnv() bool { return l.EnvKey != "" }

// String describes the location as it appears in rendered reports.
func (l SourceLoc) String() string {
	if l.FromEnv() {
		s := fmt.Sprintf("env %q", l.EnvKey)
		if l.Span != nil && l.Span.Offset >= 0 {
			s += " [" + strconv.Itoa(l.Span.Offset) + ":" + strconv.Itoa(l.Span.EndOffset) + "]"
		}
		return s
	}
	where := "text"
	if l.File != "" {
		where = "file"
	}
	if l.Span == nil || !l.Span.Known() {
		return where
	}
	if l.Span.Col < 0 {
		return fmt.Sprintf("%s at %d line", where, l.Span.Line)
	}
	return fmt.Sprintf("%s at %d line %d column", where, l.Span.Line, l.Span.Col)
}

// Locator resolves a settings path to the place its value came from. Lookups
// that cannot be resolved return an error matching ErrLocationNotFound.
type Locator interface {
	Locate(path Path) (SourceLoc, error)
}

// WithLocations returns a copy of issues with Source filled in. Providers are
// given in the order their values were applied and consulted in reverse, so
// the source that won the merge also wins the attribution. Issues that
// already carry a Source are kept as they are; unresolvable paths stay
// path-only.
func WithLocations(issues Issues, providers ...Locator) Issues {
	if issues == nil {
		return nil
	}
	out := make(Issues, len(issues))
	for i, it := range issues {
		out[i] = it
		if it.Source != nil {
			continue
		}
		for j := len(providers) - 1; j >= 0; j-- {
			if providers[j] == nil {
				continue
			}
			loc, err := providers[j].Locate(it.Path)
			if err != nil {
				continue
			}
			out[i].Source = &loc
			break
		}
	}
	return out
}
