// Package ui holds terminal styling and detection helpers for the CLI.
package ui

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}

	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}

	return false
}

// DetectNoColor checks if NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// UseColor reports whether output to w should be colored: w is a
// terminal, NO_COLOR is unset and the caller did not opt out.
func UseColor(w io.Writer, noColorFlag bool) bool {
	return !noColorFlag && !DetectNoColor() && IsTTY(w)
}

// HistogramChars are the block characters used by Histogram, from empty
// to full.
var HistogramChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Histogram renders counts as one block character each, scaled to the
// largest count. Zero counts render as the lowest block.
func Histogram(counts []int64) string {
	var maxCount int64
	for _, c := range counts {
		maxCount = max(maxCount, c)
	}

	var sb strings.Builder
	sb.Grow(len(counts) * 3)
	for _, c := range counts {
		idx := 0
		if maxCount > 0 && c > 0 {
			idx = int(float64(c) / float64(maxCount) * float64(len(HistogramChars)-1))
			idx = min(max(idx, 0), len(HistogramChars)-1)
		}
		sb.WriteRune(HistogramChars[idx])
	}
	return sb.String()
}

// Bar renders a horizontal bar of width cells filled in proportion to
// value/total.
func Bar(value, total int64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := 0
	if total > 0 && value > 0 {
		filled = int(float64(value) / float64(total) * float64(width))
		filled = min(max(filled, 1), width)
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
