package settings

import (
	eng "github.com/reoring/goskema-settings/internal/engine"
)

// Located values and addressing, shared with the parsers.
type (
	// Span locates a value in source text; see engine.Span for conventions.
	Span = eng.Span
	// Path addresses a value by keys and indexes.
	Path = eng.Path
	// Segment is one key or index of a Path.
	Segment = eng.Segment
	// Node is a parsed value with its span.
	Node = eng.Node
	// NodeKind enumerates Node kinds.
	NodeKind = eng.NodeKind
	// Number keeps a numeric literal's text.
	Number = eng.Number
	// ParsingError reports malformed source text with an optional span.
	ParsingError = eng.ParseError
	// LookupError reports a path that could not be resolved in a document.
	LookupError = eng.LookupError
)

// NoSpan marks values whose decoder cannot report positions.
var NoSpan = eng.NoSpan

// ErrLocationNotFound is matched by every failed location lookup.
var ErrLocationNotFound = eng.ErrLocationNotFound

// Key returns a mapping-key path segment.
func Key(name string) Segment { return eng.Key(name) }

// Index returns a sequence-index path segment.
func Index(i int) Segment { return eng.Index(i) }

// PathOf builds a Path from strings (keys) and ints (indexes).
func PathOf(parts ...any) Path { return eng.PathOf(parts...) }

// UnknownPolicy controls how keys without a matching field are handled.
type UnknownPolicy int

const (
	UnknownIgnore UnknownPolicy = iota // Drop unknown keys silently.
	UnknownStrict                      // Report unknown keys as issues.
)

// Severity expresses the severity level for parser findings.
type Severity int

const (
	Ignore Severity = iota
	Warn
	Error
)

// Strictness configures parser enforcement.
type Strictness struct {
	OnDuplicateKey Severity // Duplicate mapping keys in JSON and YAML.
}

func (s Strictness) duplicates() eng.DuplicateStrictness {
	switch s.OnDuplicateKey {
	case Warn:
		return eng.DupWarn
	case Error:
		return eng.DupError
	default:
		return eng.DupIgnore
	}
}

// ErrRootNotMapping is the cause of a ParsingError for documents whose root
// is not a mapping.
var ErrRootNotMapping = eng.ErrRootNotMapping
