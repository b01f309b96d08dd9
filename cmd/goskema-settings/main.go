// Command goskema-settings inspects configuration files the way the settings
// loader sees them: syntax errors with positions, the located value tree, and
// the span behind a JSON Pointer.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	settings "github.com/reoring/goskema-settings"
	eng "github.com/reoring/goskema-settings/internal/engine"
)

type globalFlags struct {
	typeHint   string
	jsonOut    bool
	verbose    bool
	duplicates string
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var pe *settings.LoadingParseError
		if errors.As(err, &pe) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "goskema-settings",
		Short:         "Inspect configuration files with source positions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.typeHint, "type", "", "format when the extension does not tell (json, yaml, hcl)")
	root.PersistentFlags().BoolVar(&g.jsonOut, "json", false, "print results as JSON")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "enable debug logs on stderr")
	root.PersistentFlags().StringVar(&g.duplicates, "duplicates", "ignore", "duplicate key handling: ignore, warn or error")

	root.AddCommand(
		newCheckCmd(g, stdout, stderr),
		newLocateCmd(g, stdout, stderr),
		newTreeCmd(g, stdout, stderr),
	)
	return root
}

func (g *globalFlags) options(stderr io.Writer) (settings.Options, error) {
	opt := settings.Options{TypeHint: g.typeHint}
	switch g.duplicates {
	case "", "ignore":
	case "warn":
		opt.Strictness.OnDuplicateKey = settings.Warn
	case "error":
		opt.Strictness.OnDuplicateKey = settings.Error
	default:
		return opt, fmt.Errorf("unknown --duplicates value %q", g.duplicates)
	}
	level := zerolog.WarnLevel
	if g.verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: stderr, NoColor: true}).Level(level).With().Timestamp().Logger()
	opt.Logger = &log
	return opt, nil
}

func (g *globalFlags) parse(path string, stderr io.Writer) (*settings.Document, []byte, error) {
	opt, err := g.options(stderr)
	if err != nil {
		return nil, nil, err
	}
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, &settings.LoadingError{File: path, Err: err}
	}
	doc, err := settings.ParseDocument(settings.FromFile(path), opt)
	if err != nil {
		return nil, nil, err
	}
	return doc, text, nil
}

func newCheckCmd(g *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "check FILE...",
		Short: "Report syntax errors with their positions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var failed error
			for _, path := range args {
				_, text, err := g.parse(path, stderr)
				if err == nil {
					fmt.Fprintf(stdout, "%s: ok\n", path)
					continue
				}
				var pe *settings.LoadingParseError
				if !errors.As(err, &pe) {
					return err
				}
				failed = err
				fmt.Fprintln(stdout, describeParseError(path, text, pe))
			}
			return failed
		},
	}
}

// describeParseError prints "file:line:col: message" followed by the
// offending line and a caret when the position is known.
func describeParseError(path string, text []byte, pe *settings.LoadingParseError) string {
	sp := pe.Span()
	if sp == nil || !sp.Known() {
		return fmt.Sprintf("%s: %s", path, pe.Err)
	}
	b := &strings.Builder{}
	fmt.Fprintf(b, "%s:%d:%d: %s", path, sp.Line, max(sp.Col, 1), pe.Err.Cause)
	lines := strings.Split(string(text), "\n")
	if sp.Line <= len(lines) {
		line := strings.TrimRight(lines[sp.Line-1], "\r")
		fmt.Fprintf(b, "\n  %s\n  %s^", line, strings.Repeat(" ", max(sp.Col-1, 0)))
	}
	return b.String()
}

type located struct {
	Pointer string `json:"pointer"`
	Kind    string `json:"kind"`
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	EndLine int    `json:"end_line"`
	EndCol  int    `json:"end_col"`
	Offset  int    `json:"offset"`
	End     int    `json:"end_offset"`
	Text    string `json:"text,omitempty"`
}

func locatedOf(p settings.Path, n *settings.Node, text []byte) located {
	out := located{
		Pointer: p.Pointer(),
		Kind:    n.Kind.String(),
		Line:    n.Span.Line,
		Col:     n.Span.Col,
		EndLine: n.Span.EndLine,
		EndCol:  n.Span.EndCol,
		Offset:  n.Span.Offset,
		End:     n.Span.EndOffset,
	}
	if n.Span.Offset >= 0 && n.Span.EndOffset >= n.Span.Offset && n.Span.EndOffset <= len(text) {
		out.Text = string(text[n.Span.Offset:n.Span.EndOffset])
	}
	return out
}

func newLocateCmd(g *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "locate FILE POINTER",
		Short: "Print the span and text of the value at a JSON Pointer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, text, err := g.parse(args[0], stderr)
			if err != nil {
				return err
			}
			path, err := eng.ResolvePointer(doc.Root(), args[1])
			if err != nil {
				return err
			}
			n, err := eng.Locate(doc.Root(), path)
			if err != nil {
				return err
			}
			loc := locatedOf(path, n, text)
			if g.jsonOut {
				return json.NewEncoder(stdout).Encode(loc)
			}
			fmt.Fprintf(stdout, "%s\t%s\t%s\n", loc.Pointer, n.Span, loc.Text)
			return nil
		},
	}
}

func newTreeCmd(g *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "tree FILE",
		Short: "List every value of the document with its span",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, text, err := g.parse(args[0], stderr)
			if err != nil {
				return err
			}
			var all []located
			doc.Root().Walk(func(p settings.Path, n *settings.Node) {
				all = append(all, locatedOf(p, n, text))
			})
			sort.SliceStable(all, func(i, j int) bool { return all[i].Offset < all[j].Offset })
			if g.jsonOut {
				enc := json.NewEncoder(stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(all)
			}
			for _, l := range all {
				fmt.Fprintf(stdout, "%-40s %-8s %d:%d\n", l.Pointer, l.Kind, l.Line, l.Col)
			}
			return nil
		},
	}
}
