package search

import (
	"html"
	"slices"
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"

	"github.com/Aman-CERP/cantor/internal/normalize"
)

const (
	markOpen  = "<mark>"
	markClose = "</mark>"
	ellipsis  = "..."

	// snippetLeadIn is how many runes of context precede the first match.
	snippetLeadIn = 20
	// shortTermRunes is the length under which a term only matches whole
	// words.
	shortTermRunes = 3
	// fuzzyWordMinRunes is the shortest term that gets a fuzzy best word.
	fuzzyWordMinRunes = 5
	// minWordSimilarity is the lowest Levenshtein similarity of a fuzzy
	// best word.
	minWordSimilarity = 0.6
)

// span is a half-open rune range of the original text.
type span struct {
	start, end int
}

func (s span) len() int { return s.end - s.start }

// Highlighter builds a content snippet around the densest cluster of
// query terms.
type Highlighter struct {
	window int
}

// NewHighlighter returns a Highlighter producing snippets of window runes.
func NewHighlighter(window int) *Highlighter {
	if window <= 0 {
		window = DefaultWeights().SnippetWindow
	}
	return &Highlighter{window: window}
}

// Snippet returns an HTML-escaped excerpt of content with every term
// occurrence wrapped in <mark>. Matching ignores case and diacritics; the
// excerpt keeps the original characters.
func (h *Highlighter) Snippet(content string, terms []string) string {
	text := normalize.StripMarkup(content)
	if text == "" {
		return ""
	}

	ft := normalize.Fold(text)
	n := len(ft.Original)
	matches := mergeSpans(findSpans(ft, terms))

	if len(matches) == 0 {
		end := min(h.window, n)
		out := html.EscapeString(string(ft.Original[:end]))
		if end < n {
			out += ellipsis
		}
		return out
	}

	start, end := h.bestWindow(matches, n)
	return render(ft.Original, matches, start, end)
}

// bestWindow returns the window holding the most whole matches. Windows
// start snippetLeadIn runes before a match and are shifted back to fit the
// text; ties keep the earliest.
func (h *Highlighter) bestWindow(matches []span, n int) (int, int) {
	bestStart, bestEnd, bestCount := 0, min(h.window, n), -1

	for _, m := range matches {
		start := max(0, m.start-snippetLeadIn)
		if start+h.window > n {
			start = max(0, n-h.window)
		}
		end := min(n, start+h.window)

		count := 0
		for _, o := range matches {
			if o.start >= start && o.end <= end {
				count++
			}
		}
		if count > bestCount {
			bestStart, bestEnd, bestCount = start, end, count
		}
	}
	return bestStart, bestEnd
}

func render(text []rune, matches []span, start, end int) string {
	var b strings.Builder
	if start > 0 {
		b.WriteString(ellipsis)
	}

	pos := start
	for _, m := range matches {
		if m.start < start || m.end > end {
			continue
		}
		b.WriteString(html.EscapeString(string(text[pos:m.start])))
		b.WriteString(markOpen)
		b.WriteString(html.EscapeString(string(text[m.start:m.end])))
		b.WriteString(markClose)
		pos = m.end
	}
	b.WriteString(html.EscapeString(string(text[pos:end])))

	if end < len(text) {
		b.WriteString(ellipsis)
	}
	return b.String()
}

// findSpans locates every term in the folded text and maps the hits back
// to original rune ranges.
func findSpans(ft normalize.FoldedText, terms []string) []span {
	var spans []span
	words := wordSpans(ft.Folded)

	for _, term := range terms {
		tf := normalize.FoldTerm(term)
		if len(tf) == 0 {
			continue
		}

		hits := exactHits(ft.Folded, tf)
		if len(hits) == 0 && len(tf) >= fuzzyWordMinRunes {
			if w, ok := fuzzyBestWord(ft.Folded, words, tf); ok {
				hits = append(hits, w)
			}
		}

		for _, hit := range hits {
			start, end := ft.OriginalSpan(hit.start, hit.end)
			if end > start {
				spans = append(spans, span{start, end})
			}
		}
	}
	return spans
}

// exactHits returns the non-overlapping occurrences of term in folded.
// Short terms must sit on word boundaries.
func exactHits(folded, term []rune) []span {
	var hits []span
	n, k := len(folded), len(term)

	for i := 0; i+k <= n; {
		if !slices.Equal(folded[i:i+k], term) {
			i++
			continue
		}
		if k < shortTermRunes && !onWordBoundary(folded, i, i+k) {
			i++
			continue
		}
		hits = append(hits, span{i, i + k})
		i += k
	}
	return hits
}

func onWordBoundary(text []rune, start, end int) bool {
	if start > 0 && normalize.IsWordRune(text[start-1]) {
		return false
	}
	if end < len(text) && normalize.IsWordRune(text[end]) {
		return false
	}
	return true
}

// wordSpans splits folded text into maximal runs of word runes.
func wordSpans(text []rune) []span {
	var words []span
	start := -1
	for i, r := range text {
		if normalize.IsWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			words = append(words, span{start, i})
			start = -1
		}
	}
	if start >= 0 {
		words = append(words, span{start, len(text)})
	}
	return words
}

// fuzzyBestWord picks the word most similar to term among those sharing
// one of its middle substrings. The first occurrence of the best word
// wins.
func fuzzyBestWord(text []rune, words []span, term []rune) (span, bool) {
	t := string(term)
	subs := MiddleSubstrings(t)
	if len(subs) == 0 {
		return span{}, false
	}

	var best span
	bestScore := float32(0)
	found := false

	for _, w := range words {
		word := string(text[w.start:w.end])
		if !containsAny(word, subs) {
			continue
		}
		score, err := edlib.StringsSimilarity(word, t, edlib.Levenshtein)
		if err != nil || score < minWordSimilarity {
			continue
		}
		if !found || score > bestScore {
			best, bestScore, found = w, score, true
		}
	}
	return best, found
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// mergeSpans sorts spans and resolves overlaps by keeping the longer one;
// on equal length the earlier span stays.
func mergeSpans(spans []span) []span {
	if len(spans) < 2 {
		return spans
	}

	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].len() > spans[j].len()
	})

	out := []span{spans[0]}
	for _, s := range spans[1:] {
		last := &out[len(out)-1]
		if s.start < last.end {
			if s.len() > last.len() {
				*last = s
			}
			continue
		}
		out = append(out, s)
	}
	return out
}
