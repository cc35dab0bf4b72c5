// Package console prints operator-facing progress lines with a leading severity glyph.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

const (
	GlyphSuccess = "✓"
	GlyphError   = "✗"
	GlyphInfo    = "→"
	GlyphWarning = "⚠"
)

// Printer writes glyph-prefixed messages to a writer.
type Printer struct {
	out    io.Writer
	green  *color.Color
	red    *color.Color
	yellow *color.Color
	cyan   *color.Color
	gray   *color.Color
	bold   *color.Color
}

// New returns a Printer for w. Colors are disabled when NO_COLOR is set or w is not a terminal.
func New(w io.Writer) *Printer {
	p := &Printer{
		out:    w,
		green:  color.New(color.FgGreen),
		red:    color.New(color.FgRed),
		yellow: color.New(color.FgYellow),
		cyan:   color.New(color.FgCyan),
		gray:   color.New(color.FgHiBlack),
		bold:   color.New(color.Bold),
	}
	if !colorEnabled(w) {
		for _, c := range []*color.Color{p.green, p.red, p.yellow, p.cyan, p.gray, p.bold} {
			c.DisableColor()
		}
	}
	return p
}

// Stdout returns a Printer bound to os.Stdout.
func Stdout() *Printer {
	return New(os.Stdout)
}

// Discard returns a Printer that drops everything.
func Discard() *Printer {
	return New(io.Discard)
}

func colorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Success prints a success message with a checkmark.
func (p *Printer) Success(format string, a ...any) {
	p.line(p.green, GlyphSuccess, format, a...)
}

// Error prints an error message with a cross.
func (p *Printer) Error(format string, a ...any) {
	p.line(p.red, GlyphError, format, a...)
}

// Info prints an informational message with an arrow.
func (p *Printer) Info(format string, a ...any) {
	p.line(p.cyan, GlyphInfo, format, a...)
}

// Warning prints a warning message.
func (p *Printer) Warning(format string, a ...any) {
	p.line(p.yellow, GlyphWarning, format, a...)
}

// Step prints a numbered step header, e.g. "[2/9] Cloud SQL instance".
func (p *Printer) Step(step, total int, message string) {
	_, _ = p.gray.Fprintf(p.out, "[%d/%d] ", step, total)
	_, _ = fmt.Fprintln(p.out, message)
}

// Header prints a bold title followed by a separator line.
func (p *Printer) Header(text string) {
	_, _ = fmt.Fprintln(p.out)
	_, _ = fmt.Fprintln(p.out, p.bold.Sprint(text))
	_, _ = fmt.Fprintln(p.out, p.gray.Sprint(strings.Repeat("━", 50)))
}

// KeyValue prints an indented key/value pair.
func (p *Printer) KeyValue(key, value string) {
	_, _ = fmt.Fprintf(p.out, "  %s: %s\n", p.gray.Sprint(key), value)
}

// Println prints a plain line.
func (p *Printer) Println(a ...any) {
	_, _ = fmt.Fprintln(p.out, a...)
}

// Writer exposes the underlying writer.
func (p *Printer) Writer() io.Writer {
	return p.out
}

func (p *Printer) line(c *color.Color, glyph, format string, a ...any) {
	_, _ = fmt.Fprintf(p.out, "%s %s\n", c.Sprint(glyph), fmt.Sprintf(format, a...))
}
