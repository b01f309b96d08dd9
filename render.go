package settings

import (
	"errors"
	"fmt"
	"strings"

	"github.com/reoring/goskema-settings/i18n"
)

// RenderOpt tweaks the human-readable report.
type RenderOpt struct {
	// Translate replaces issue messages with the i18n catalog entry for
	// their code.
	Translate bool
}

// Render returns the report for any loading error: validation errors list
// every issue, other errors render as their message.
func Render(err error) string {
	var verr *LoadingValidationError
	if errors.As(err, &verr) {
		return verr.Render()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// Render lists every issue with its path, source and message:
//
//	1 validation errors while loading settings from configuration file at "conf.json":
//	port from file at 3 line 11 column
//	  value is not a valid integer (type=invalid_type)
func (e *LoadingValidationError) Render() string { return e.RenderWith(RenderOpt{}) }

// RenderWith is Render with options.
func (e *LoadingValidationError) RenderWith(opt RenderOpt) string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "%d validation errors while loading settings from %s:", len(e.Issues), e.sourceSummary())
	for _, it := range e.Issues {
		b.WriteByte('\n')
		b.WriteString(renderPath(it.Path))
		if it.Source != nil {
			b.WriteString(" from ")
			b.WriteString(it.Source.String())
		}
		fmt.Fprintf(b, "\n  %s (type=%s)", issueMessage(it, opt), it.Code)
	}
	return b.String()
}

func renderPath(p Path) string {
	if len(p) == 0 {
		return "<root>"
	}
	return p.String()
}

func issueMessage(it Issue, opt RenderOpt) string {
	if opt.Translate || it.Message == "" {
		data := make(map[string]string, len(it.Params))
		for k, v := range it.Params {
			data[k] = fmt.Sprint(v)
		}
		return i18n.T(it.Code, data)
	}
	return it.Message
}
