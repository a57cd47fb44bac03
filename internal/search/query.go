package search

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// minFuzzyTermRunes is the shortest term the trigram index can match.
	minFuzzyTermRunes = 3
	// maxMiddleSubstrings bounds the fuzzy fragments generated per term.
	maxMiddleSubstrings = 3
	// middleWindow is the length of a fuzzy fragment.
	middleWindow = 5
)

// BuildIndexQuery builds the standard index MATCH expression with the
// default NEAR distance.
func BuildIndexQuery(terms []string) string {
	return BuildIndexQueryNear(terms, DefaultWeights().ProximityWindow)
}

// BuildIndexQueryNear builds the standard index MATCH expression:
//
//	[]        -> ""
//	[t]       -> "t"*
//	[t1..tn]  -> ("t1 .. tn") OR NEAR("t1"* .. "tn"*, near) OR ("t1"* OR .. OR "tn"*)
//
// The tiers are an exact phrase, all terms close together, and any term.
func BuildIndexQueryNear(terms []string, near int) string {
	switch len(terms) {
	case 0:
		return ""
	case 1:
		return quotePrefix(terms[0])
	}

	prefixed := make([]string, len(terms))
	for i, t := range terms {
		prefixed[i] = quotePrefix(t)
	}

	phrase := "(" + quote(strings.Join(terms, " ")) + ")"
	nearClause := fmt.Sprintf("NEAR(%s, %d)", strings.Join(prefixed, " "), near)
	anyClause := "(" + strings.Join(prefixed, " OR ") + ")"

	return phrase + " OR " + nearClause + " OR " + anyClause
}

// BuildFuzzyIndexQuery builds the trigram index MATCH expression. Terms
// shorter than three runes are skipped; longer ones contribute the whole
// term plus their middle substrings, all OR'd together.
func BuildFuzzyIndexQuery(terms []string) string {
	var parts []string
	seen := make(map[string]struct{})

	add := func(s string) {
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		parts = append(parts, quote(s))
	}

	for _, t := range terms {
		n := utf8.RuneCountInString(t)
		if n < minFuzzyTermRunes {
			continue
		}
		add(t)
		for _, sub := range MiddleSubstrings(t) {
			add(sub)
		}
	}

	return strings.Join(parts, " OR ")
}

// MiddleSubstrings returns up to three fragments of term that survive a
// typo at either end: the head without the last rune, the tail without
// the first rune, and the centered window without both ends. Fragments
// are at most five runes; those shorter than four runes are dropped.
func MiddleSubstrings(term string) []string {
	r := []rune(term)
	n := len(r)
	if n < 4 {
		return nil
	}

	inner := r[1 : n-1]
	centerStart := 0
	if len(inner) > middleWindow {
		centerStart = (len(inner) - middleWindow) / 2
	}
	centerEnd := min(centerStart+middleWindow, len(inner))

	candidates := []string{
		string(r[0:min(middleWindow, n-1)]),
		string(r[max(1, n-middleWindow):]),
		string(inner[centerStart:centerEnd]),
	}

	var out []string
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if utf8.RuneCountInString(c) < 4 || c == term {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
		if len(out) == maxMiddleSubstrings {
			break
		}
	}
	return out
}

// quote wraps s as an FTS5 string, doubling embedded quotes.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// quotePrefix is quote with a prefix-match star.
func quotePrefix(s string) string {
	return quote(s) + "*"
}
