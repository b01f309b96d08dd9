package engine

import "strconv"

// Enforcement wrapper for TokenSource to apply duplicate key handling,
// max depth checks, and max bytes truncation in a streaming fashion.

// DuplicateStrictness controls duplicate key handling.
type DuplicateStrictness int

const (
	DupIgnore DuplicateStrictness = iota
	DupWarn
	DupError
)

// SimpleIssue is a minimal issue representation used by parsers.
// Offset locates the offending token; Related, when >= 0, locates an earlier
// token involved in the issue (the first occurrence of a duplicate key).
type SimpleIssue struct {
	Code    string
	Path    Path
	Message string
	Offset  int64
	Related int64
}

// Issue codes produced by enforcement.
const (
	CodeDuplicateKey = "duplicate_key"
	CodeMaxDepth     = "max_depth"
	CodeTruncated    = "truncated"
)

// EnforceOptions controls runtime enforcement behavior.
type EnforceOptions struct {
	OnDuplicate DuplicateStrictness
	MaxDepth    int
	MaxBytes    int64
	// IssueSink receives every issue, fatal or not. Warnings are only
	// observable through it.
	IssueSink func(SimpleIssue)
}

// IssueError is a fatal enforcement failure.
type IssueError struct{ SimpleIssue }

func (e *IssueError) Error() string { return e.SimpleIssue.Message }

type containerKind int

const (
	kindObject containerKind = iota
	kindArray
)

type enforceFrame struct {
	kind       containerKind
	path       Path
	keys       map[string]int64 // key -> offset of first occurrence
	pendingKey string
	hasKey     bool
	nextIndex  int
}

// WrapWithEnforcement returns a TokenSource that enforces duplicate key policy,
// maximum nesting depth, and maximum consumed bytes.
func WrapWithEnforcement(inner TokenSource, opt EnforceOptions) TokenSource {
	return &enforcingTokenSource{inner: inner, opt: opt}
}

type enforcingTokenSource struct {
	inner TokenSource
	opt   EnforceOptions
	stack []enforceFrame
}

func (e *enforcingTokenSource) Location() int64 { return e.inner.Location() }

func (e *enforcingTokenSource) NextToken() (Token, error) {
	tok, err := e.inner.NextToken()
	if err != nil {
		return Token{}, err
	}

	if e.opt.MaxBytes > 0 && tok.End > e.opt.MaxBytes {
		return Token{}, e.fail(SimpleIssue{
			Code:    CodeTruncated,
			Path:    e.valuePath(false),
			Message: "input exceeds " + strconv.FormatInt(e.opt.MaxBytes, 10) + " bytes",
			Offset:  tok.Offset,
			Related: -1,
		})
	}

	switch tok.Kind {
	case KindBeginObject, KindBeginArray:
		p := e.valuePath(true)
		f := enforceFrame{kind: kindArray, path: p}
		if tok.Kind == KindBeginObject {
			f.kind = kindObject
			f.keys = map[string]int64{}
		}
		e.stack = append(e.stack, f)
		if e.opt.MaxDepth > 0 && len(e.stack) > e.opt.MaxDepth {
			return Token{}, e.fail(SimpleIssue{
				Code:    CodeMaxDepth,
				Path:    p,
				Message: "nesting exceeds max depth " + strconv.Itoa(e.opt.MaxDepth),
				Offset:  tok.Offset,
				Related: -1,
			})
		}
	case KindEndObject, KindEndArray:
		if n := len(e.stack); n > 0 {
			e.stack = e.stack[:n-1]
		}
	case KindKey:
		if n := len(e.stack); n > 0 && e.stack[n-1].kind == kindObject {
			top := &e.stack[n-1]
			if first, dup := top.keys[tok.String]; dup && e.opt.OnDuplicate != DupIgnore {
				si := SimpleIssue{
					Code:    CodeDuplicateKey,
					Path:    top.path.Append(Key(tok.String)),
					Message: "key " + strconv.Quote(tok.String) + " duplicated",
					Offset:  tok.Offset,
					Related: first,
				}
				if e.opt.OnDuplicate == DupError {
					return Token{}, e.fail(si)
				}
				e.report(si)
			} else if !dup {
				top.keys[tok.String] = tok.Offset
			}
			top.pendingKey = tok.String
			top.hasKey = true
		}
	default:
		e.valuePath(true)
	}
	return tok, nil
}

// valuePath returns the path of the value about to be read. When consume is
// set, the pending key or next index of the enclosing container is used up.
func (e *enforcingTokenSource) valuePath(consume bool) Path {
	n := len(e.stack)
	if n == 0 {
		return Path{}
	}
	top := &e.stack[n-1]
	switch top.kind {
	case kindArray:
		p := top.path.Append(Index(top.nextIndex))
		if consume {
			top.nextIndex++
		}
		return p
	default:
		if !top.hasKey {
			return top.path
		}
		p := top.path.Append(Key(top.pendingKey))
		if consume {
			top.hasKey = false
		}
		return p
	}
}

func (e *enforcingTokenSource) report(si SimpleIssue) {
	if e.opt.IssueSink != nil {
		e.opt.IssueSink(si)
	}
}

func (e *enforcingTokenSource) fail(si SimpleIssue) error {
	e.report(si)
	return &IssueError{si}
}
