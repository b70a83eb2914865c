package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

type statusKind int

const (
	statusOK statusKind = iota
	statusWarn
	statusError
)

func (k statusKind) label() string {
	switch k {
	case statusOK:
		return "ok"
	case statusWarn:
		return "warn"
	default:
		return "fail"
	}
}

func (k statusKind) colors() text.Colors {
	switch k {
	case statusOK:
		return text.Colors{text.FgGreen}
	case statusWarn:
		return text.Colors{text.FgYellow}
	default:
		return text.Colors{text.FgRed, text.Bold}
	}
}

// statusWriter prints doctor-style reports: section headings followed by
// aligned "label  [kind] detail" lines. Color is used only on a terminal.
type statusWriter struct {
	out   io.Writer
	color bool
	width int
}

func newStatusWriter(out io.Writer) *statusWriter {
	return &statusWriter{out: out, color: shouldColorize(out), width: 18}
}

func (s *statusWriter) section(title string) {
	title = strings.TrimSpace(title)
	if s.color {
		title = text.Colors{text.FgCyan, text.Bold}.Sprint(title)
	}
	fmt.Fprintln(s.out, title)
}

func (s *statusWriter) line(label string, kind statusKind, detail string) {
	tag := "[" + kind.label() + "]"
	if s.color {
		tag = kind.colors().Sprint(tag)
	}
	row := fmt.Sprintf("  %-*s %s", s.width, label, tag)
	if detail != "" {
		row += " " + detail
	}
	fmt.Fprintln(s.out, row)
}

// detail prints an indented continuation line under the previous status.
func (s *statusWriter) detail(value string) {
	fmt.Fprintf(s.out, "  %*s   %s\n", s.width, "", value)
}

func (s *statusWriter) blank() {
	fmt.Fprintln(s.out)
}

func shouldColorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
