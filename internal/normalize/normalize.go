// Package normalize folds song text and queries into the comparable form
// shared by indexing, scoring and highlighting: diacritics removed,
// lowercased, split into word tokens.
package normalize

import (
	"html"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// queryGrammarChars are significant to the FTS5 query grammar.
const queryGrammarChars = "\"'*()^:+-\\"

var (
	blockTagRegex = regexp.MustCompile(`(?i)<\s*/?\s*(br|p|div|li|ul|ol|h[1-6]|tr|td|section|blockquote)\b[^>]*>`)
	anyTagRegex   = regexp.MustCompile(`<[^>]*>`)
)

// Text strips combining diacritical marks (NFD decomposition followed by
// removal of category Mn) and lowercases the result.
// "Sfânt Ești" becomes "sfant esti".
func Text(s string) string {
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// SanitizeQuery replaces FTS query grammar characters with spaces and
// collapses whitespace runs.
func SanitizeQuery(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(queryGrammarChars, r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(cleaned), " ")
}

// Tokenize sanitizes and lowercases s and splits it into word tokens.
// Punctuation acts as a separator, the same way the unicode61 tokenizer
// treats it. Empty input yields nil.
func Tokenize(s string) []string {
	lowered := strings.ToLower(SanitizeQuery(s))
	if lowered == "" {
		return nil
	}
	tokens := strings.FieldsFunc(lowered, func(r rune) bool {
		return !IsWordRune(r)
	})
	if len(tokens) == 0 {
		return nil
	}
	return tokens
}

// Terms is the query pipeline: fold, sanitize, tokenize.
func Terms(query string) []string {
	return Tokenize(Text(query))
}

// Comparable returns the single-spaced, folded token form of s with markup
// removed. Title and content scoring compare against this form.
func Comparable(s string) string {
	return strings.Join(Terms(StripMarkup(s)), " ")
}

// StripMarkup removes HTML tags and entities from slide content.
// Block-level tags become spaces so words on adjacent lines stay apart.
func StripMarkup(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}
	s = blockTagRegex.ReplaceAllString(s, " ")
	s = anyTagRegex.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// IsWordRune reports whether r belongs inside a word token.
func IsWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.Is(unicode.Mn, r)
}
