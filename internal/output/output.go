// Package output prints the short status lines of one-shot commands such as
// config init, clear and serve --stop.
package output

import (
	"fmt"
	"io"

	"github.com/tunebook/tunebook/internal/ui"
)

// Writer prints status lines prefixed by a one-character marker.
type Writer struct {
	out    io.Writer
	styles ui.Styles
}

// New creates a Writer. Color is used unless noColor is set, NO_COLOR is
// present or out is not a terminal.
func New(out io.Writer, noColor bool) *Writer {
	noColor = noColor || ui.DetectNoColor() || !ui.IsTTY(out)
	return &Writer{out: out, styles: ui.GetStyles(noColor)}
}

// Success prints "✓ msg".
func (w *Writer) Success(msg string) {
	w.line(w.styles.Success.Render("✓"), msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints "! msg".
func (w *Writer) Warning(msg string) {
	w.line(w.styles.Warning.Render("!"), msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Field prints an indented "label: value" line.
func (w *Writer) Field(label, value string) {
	_, _ = fmt.Fprintf(w.out, "  %s %s\n", w.styles.Label.Render(label+":"), value)
}

// Hint prints a dimmed, indented line.
func (w *Writer) Hint(msg string) {
	_, _ = fmt.Fprintf(w.out, "  %s\n", w.styles.Dim.Render(msg))
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

func (w *Writer) line(marker, msg string) {
	_, _ = fmt.Fprintf(w.out, "%s %s\n", marker, msg)
}
