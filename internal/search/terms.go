package search

import (
	"context"
	"log/slog"
)

// TermCounter counts standard index documents matching an expression.
type TermCounter interface {
	CountMatches(ctx context.Context, match string) (int, error)
}

// TermFilter drops query terms that are too rare in the library to be
// anything but noise (a stray number, a typo the fuzzy index will catch).
type TermFilter struct {
	counter  TermCounter
	minCount int
}

// NewTermFilter returns a filter keeping terms with at least minCount prefix
// matches.
func NewTermFilter(counter TermCounter, minCount int) *TermFilter {
	return &TermFilter{counter: counter, minCount: minCount}
}

// Filter returns the raw terms matching at least minCount documents as a
// prefix. When none survive, every raw term is returned. A term whose
// count fails is kept.
func (f *TermFilter) Filter(ctx context.Context, raw []string) []string {
	if len(raw) == 0 {
		return nil
	}

	valid := make([]string, 0, len(raw))
	for _, t := range raw {
		n, err := f.counter.CountMatches(ctx, quotePrefix(t))
		if err != nil {
			slog.Warn("term_frequency_failed",
				slog.String("term", t),
				slog.String("error", err.Error()))
			valid = append(valid, t)
			continue
		}
		if n >= f.minCount {
			valid = append(valid, t)
		}
	}

	if len(valid) == 0 {
		return raw
	}
	return valid
}
