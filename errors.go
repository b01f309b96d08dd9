package settings

import (
	"errors"
	"fmt"
	"strings"
)

// Issue codes (exported consts for IDE completion and type safety by convention)
const (
	CodeInvalidType   = "invalid_type"
	CodeRequired      = "required"
	CodeUnknownKey    = "unknown_key"
	CodeDuplicateKey  = "duplicate_key"
	CodeTooSmall      = "too_small"
	CodeTooBig        = "too_big"
	CodeTooShort      = "too_short"
	CodeTooLong       = "too_long"
	CodePattern       = "pattern"
	CodeInvalidEnum   = "invalid_enum"
	CodeInvalidFormat = "invalid_format"
	CodeUnionNoMatch  = "union_no_match"
	CodeParseError    = "parse_error"
	CodeOverflow      = "overflow"
	CodeTruncated     = "truncated"
	CodeConstraint    = "constraint"
	CodeBusinessRule  = "business_rule"
	// Environment restoration
	CodeCannotParseValue        = "cannot_parse_value"
	CodeAssignBeyondSimpleValue = "assign_beyond_simple_value"
)

// Issue represents a single validation entry.
type Issue struct {
	Path    Path   // Location in the settings value.
	Code    string // One of the codes listed above.
	Message string
	Hint    string // Optional: remediation hints, format names, etc.
	Cause   error  // Optional: underlying error.
	// Params carries structured parameters (e.g., {"min":1, "max":10, "got":42})
	// for i18n and observability.
	Params map[string]any
	// Rule optionally records the rule name that produced this issue.
	Rule string
	// Source is where the offending value came from, when known.
	Source *SourceLoc
}

func (it Issue) Error() string {
	if it.Message == "" {
		return fmt.Sprintf("%s at %s", it.Code, it.Path.Pointer())
	}
	return fmt.Sprintf("%s at %s: %s", it.Code, it.Path.Pointer(), it.Message)
}

func (it Issue) Unwrap() error { return it.Cause }

// Issues is a collection of validation errors that implements error.
type Issues []Issue

// Error summarizes the first few issues.
func (iss Issues) Error() string {
	if len(iss) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	n := len(iss)
	lim := min(n, maxShown)
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		it := iss[i]
		// e.g. invalid_type at /path
		fmt.Fprintf(b, "%s at %s", it.Code, it.Path.Pointer())
	}
	if n > lim {
		fmt.Fprintf(b, "; ... (total %d)", n)
	}
	return b.String()
}

// AppendIssues appends issues to the destination, initializing the slice when
// needed.
func AppendIssues(dst Issues, more ...Issue) Issues {
	if dst == nil {
		dst = Issues{}
	}
	dst = append(dst, more...)
	return dst
}

// AsIssues extracts Issues from an error using errors.As internally.
func AsIssues(err error) (Issues, bool) {
	if err == nil {
		return nil, false
	}
	var iss Issues
	if errors.As(err, &iss) {
		return iss, true
	}
	var it Issue
	if errors.As(err, &it) {
		return Issues{it}, true
	}
	return nil, false
}

// Failure is one node of a validation result tree: either a leaf issue or an
// aggregate grouping nested failures under a common path. Paths are relative
// to the enclosing aggregate.
type Failure struct {
	Path   Path
	Issue  *Issue
	Nested []Failure
}

// Leaf wraps a single issue.
func Leaf(it Issue) Failure { return Failure{Issue: &it} }

// Aggregate groups failures found below path. Empty groups stay empty.
func Aggregate(path Path, nested ...Failure) Failure {
	return Failure{Path: path, Nested: nested}
}

// Empty reports whether the tree holds no issue.
func (f Failure) Empty() bool {
	if f.Issue != nil {
		return false
	}
	for _, n := range f.Nested {
		if !n.Empty() {
			return false
		}
	}
	return true
}

// Flatten returns the leaf issues with their paths made absolute.
func (f Failure) Flatten() Issues {
	var out Issues
	f.flatten(nil, &out)
	return out
}

func (f Failure) flatten(prefix Path, out *Issues) {
	base := prefix.Concat(f.Path)
	if f.Issue != nil {
		it := *f.Issue
		it.Path = base.Concat(it.Path)
		*out = append(*out, it)
	}
	for _, n := range f.Nested {
		n.flatten(base, out)
	}
}

// ErrLoading is matched by every error returned from loading.
var ErrLoading = errors.New("settings: loading failed")

var (
	// ErrDecoderNotFound reports that no decoder matches the file extension
	// or type hint.
	ErrDecoderNotFound = errors.New("no decoder found")
	// ErrDecoderNotImplemented reports a known format without a decoder.
	ErrDecoderNotImplemented = errors.New("decoder not implemented")
)

func describeSource(file string) string {
	if file == "" {
		return "in-memory configuration text"
	}
	return fmt.Sprintf("configuration file at %q", file)
}

// LoadingError reports that settings could not be loaded before validation:
// missing file, unknown format, read failure.
type LoadingError struct {
	File string
	Msg  string
	Err  error
}

func (e *LoadingError) Error() string {
	msg := "settings: cannot load " + describeSource(e.File)
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LoadingError) Unwrap() []error { return []error{ErrLoading, e.Err} }

// LoadingParseError reports malformed configuration text.
type LoadingParseError struct {
	File string
	Err  *ParsingError
}

func (e *LoadingParseError) Error() string {
	return "settings: cannot parse " + describeSource(e.File) + ": " + e.Err.Error()
}

func (e *LoadingParseError) Unwrap() []error { return []error{ErrLoading, e.Err} }

// Span returns the position of the syntax error, or nil.
func (e *LoadingParseError) Span() *Span { return e.Err.Span }

// LoadingValidationError carries every issue found while building the
// settings value, each annotated with the best known source location.
type LoadingValidationError struct {
	File   string
	Env    bool // environment variables took part in loading
	Issues Issues
}

func (e *LoadingValidationError) Error() string {
	return fmt.Sprintf("settings: %d validation errors while loading settings from %s: %s",
		len(e.Issues), e.sourceSummary(), e.Issues.Error())
}

func (e *LoadingValidationError) Unwrap() []error { return []error{ErrLoading, e.Issues} }

func (e *LoadingValidationError) sourceSummary() string {
	s := describeSource(e.File)
	if e.Env {
		s += " and environment variables"
	}
	return s
}
