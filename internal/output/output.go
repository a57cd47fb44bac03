// Package output provides consistent CLI output formatting with colors.
package output

import (
	"encoding/json"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/Aman-CERP/cantor/internal/ui"
)

const (
	markOpen  = "<mark>"
	markClose = "</mark>"
)

// Writer provides formatted output for CLI.
type Writer struct {
	out      io.Writer
	useColor bool
	styles   ui.Styles
}

// Option configures a Writer.
type Option func(*Writer)

// WithColor turns styling on or off.
func WithColor(enabled bool) Option {
	return func(w *Writer) {
		w.useColor = enabled
		w.styles = ui.GetStyles(!enabled)
	}
}

// New creates a new output Writer. Output is plain unless WithColor is
// given.
func New(out io.Writer, opts ...Option) *Writer {
	w := &Writer{
		out:    out,
		styles: ui.NoColorStyles(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Styles returns the styles in use.
func (w *Writer) Styles() ui.Styles {
	return w.styles
}

// Color reports whether output is styled.
func (w *Writer) Color() bool {
	return w.useColor
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Line prints msg as is.
func (w *Writer) Line(msg string) {
	_, _ = fmt.Fprintln(w.out, msg)
}

// Linef prints a formatted line.
func (w *Writer) Linef(format string, args ...any) {
	w.Line(fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status(w.styles.Success.Render("✓"), msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status(w.styles.Warning.Render("!"), msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status(w.styles.Error.Render("✗"), msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Header prints a bold section header.
func (w *Writer) Header(msg string) {
	w.Line(w.styles.Header.Render(msg))
}

// KeyValue prints an aligned "key: value" line.
func (w *Writer) KeyValue(key string, value any) {
	_, _ = fmt.Fprintf(w.out, "  %s %v\n", w.styles.Label.Render(fmt.Sprintf("%-18s", key+":")), value)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// JSON writes v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Highlight turns <mark>-delimited HTML from the search engine into
// terminal text. Marked runs get the Mark style, or are wrapped in
// [brackets] when color is off. Entities are unescaped.
func (w *Writer) Highlight(marked string) string {
	var sb strings.Builder
	rest := marked
	for {
		open := strings.Index(rest, markOpen)
		if open < 0 {
			sb.WriteString(html.UnescapeString(rest))
			break
		}
		sb.WriteString(html.UnescapeString(rest[:open]))
		rest = rest[open+len(markOpen):]

		end := strings.Index(rest, markClose)
		if end < 0 {
			sb.WriteString(html.UnescapeString(rest))
			break
		}
		sb.WriteString(w.mark(html.UnescapeString(rest[:end])))
		rest = rest[end+len(markClose):]
	}
	return sb.String()
}

func (w *Writer) mark(s string) string {
	if !w.useColor {
		return "[" + s + "]"
	}
	return w.styles.Mark.Render(s)
}
