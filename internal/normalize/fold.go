package normalize

import (
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// FoldedText is text folded rune by rune, with a mapping from every folded
// rune back to the rune it came from. The snippet highlighter matches on
// Folded and wraps the original, accented runes.
type FoldedText struct {
	Original []rune
	Folded   []rune
	// Index[i] is the position in Original that produced Folded[i].
	Index []int
}

// Fold folds s the same way Text does, keeping the rune mapping.
func Fold(s string) FoldedText {
	orig := []rune(s)
	ft := FoldedText{
		Original: orig,
		Folded:   make([]rune, 0, len(orig)),
		Index:    make([]int, 0, len(orig)),
	}

	for i, r := range orig {
		if r < unicode.MaxASCII {
			ft.Folded = append(ft.Folded, unicode.ToLower(r))
			ft.Index = append(ft.Index, i)
			continue
		}
		for _, d := range norm.NFD.String(string(r)) {
			if unicode.Is(unicode.Mn, d) {
				continue
			}
			ft.Folded = append(ft.Folded, unicode.ToLower(d))
			ft.Index = append(ft.Index, i)
		}
	}

	return ft
}

// OriginalSpan maps the folded range [start, end) to the original rune range.
func (ft FoldedText) OriginalSpan(start, end int) (int, int) {
	if start >= end || start < 0 || end > len(ft.Folded) {
		return 0, 0
	}
	return ft.Index[start], ft.Index[end-1] + 1
}

// FoldTerm folds a single query term into runes comparable with Folded.
func FoldTerm(term string) []rune {
	return Fold(term).Folded
}
