package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestText_FoldsDiacriticsAndCase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Sfânt Ești", "sfant esti"},
		{"ĂÂÎȘȚ", "aaist"},
		{"Înălțați-L", "inaltati-l"},
		{"Café", "cafe"},
		{"", ""},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.in))
		})
	}
}

func TestText_IsIdempotent(t *testing.T) {
	for _, s := range []string{"Sfânt Ești Doamne", "Ţară ş.a.", "ÎNTR-O ZI"} {
		once := Text(s)
		assert.Equal(t, once, Text(once))
	}
}

func TestSanitizeQuery_ReplacesGrammarCharacters(t *testing.T) {
	assert.Equal(t, "isus hristos", SanitizeQuery(`"isus" (hristos)*`))
	assert.Equal(t, "a b c", SanitizeQuery("a^b:c"))
	assert.Equal(t, "x y", SanitizeQuery(`x+\-y`))
	assert.Equal(t, "", SanitizeQuery(`"*()"`))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"doamne", "ajuta"}, Tokenize("Doamne, ajuta!"))
	assert.Equal(t, []string{"intr", "o", "zi"}, Tokenize("intr-o zi"))
	assert.Nil(t, Tokenize(""))
	assert.Nil(t, Tokenize("  ... !!! "))
}

func TestTerms_FoldsBeforeTokenizing(t *testing.T) {
	assert.Equal(t, []string{"sfant", "esti", "doamne"}, Terms("Sfânt Ești, Doamne"))
	assert.Nil(t, Terms("   "))
}

func TestComparable(t *testing.T) {
	assert.Equal(t, "isus e domn", Comparable("<p>Isus   e</p><p>Domn!</p>"))
	assert.Equal(t, "slava tie", Comparable("Slavă\nȚie"))
}

func TestStripMarkup(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no markup", "a  b\nc", "a b c"},
		{"block tags separate words", "unu<br>doi<br/>trei", "unu doi trei"},
		{"inline tags join", "<b>Do</b>amne", "Doamne"},
		{"entities", "Tom &amp; Jerry&nbsp;show", "Tom & Jerry show"},
		{"paragraphs", "<p>Vers unu</p><p>Vers doi</p>", "Vers unu Vers doi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripMarkup(tt.in))
		})
	}
}

func TestFold_KeepsMappingToOriginal(t *testing.T) {
	ft := Fold("Ești bun")
	require.Equal(t, []rune("esti bun"), ft.Folded)
	require.Len(t, ft.Index, len(ft.Folded))

	start, end := ft.OriginalSpan(0, 4)
	assert.Equal(t, "Ești", string(ft.Original[start:end]))

	start, end = ft.OriginalSpan(5, 8)
	assert.Equal(t, "bun", string(ft.Original[start:end]))
}

func TestFold_MatchesText(t *testing.T) {
	for _, s := range []string{"Sfânt Ești Doamne", "Țară", "abc DEF"} {
		assert.Equal(t, Text(s), string(Fold(s).Folded), s)
	}
}

func TestFoldedText_OriginalSpanOutOfRange(t *testing.T) {
	ft := Fold("abc")
	s, e := ft.OriginalSpan(2, 10)
	assert.Equal(t, 0, s)
	assert.Equal(t, 0, e)
}

func TestIsWordRune(t *testing.T) {
	assert.True(t, IsWordRune('ș'))
	assert.True(t, IsWordRune('7'))
	assert.False(t, IsWordRune('-'))
	assert.False(t, IsWordRune(' '))
}
