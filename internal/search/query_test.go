package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildIndexQuery(t *testing.T) {
	tests := []struct {
		name  string
		terms []string
		want  string
	}{
		{"empty", nil, ""},
		{"single term is a prefix match", []string{"isus"}, `"isus"*`},
		{
			"multiple terms get phrase, near and any tiers",
			[]string{"sfant", "doamne"},
			`("sfant doamne") OR NEAR("sfant"* "doamne"*, 10) OR ("sfant"* OR "doamne"*)`,
		},
		{"embedded quotes are doubled", []string{`a"b`}, `"a""b"*`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildIndexQuery(tt.terms))
		})
	}
}

func TestBuildIndexQueryNear_UsesDistance(t *testing.T) {
	got := BuildIndexQueryNear([]string{"har", "pace", "bucurie"}, 4)
	assert.Equal(t,
		`("har pace bucurie") OR NEAR("har"* "pace"* "bucurie"*, 4) OR ("har"* OR "pace"* OR "bucurie"*)`,
		got)
}

func TestBuildFuzzyIndexQuery(t *testing.T) {
	tests := []struct {
		name  string
		terms []string
		want  string
	}{
		{"empty", nil, ""},
		{"short terms only", []string{"o", "si"}, ""},
		{"three runes is a literal", []string{"de", "har"}, `"har"`},
		{"four runes without fragments", []string{"mare"}, `"mare"`},
		{
			"long term with middle substrings",
			[]string{"cristos"},
			`"cristos" OR "crist" OR "istos" OR "risto"`,
		},
		{
			"duplicates removed across terms",
			[]string{"cristos", "cristos", "hristos"},
			`"cristos" OR "crist" OR "istos" OR "risto" OR "hristos" OR "hrist"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildFuzzyIndexQuery(tt.terms))
		})
	}
}

func TestMiddleSubstrings(t *testing.T) {
	tests := []struct {
		term string
		want []string
	}{
		{"har", nil},
		{"mare", nil},
		{"cristos", []string{"crist", "istos", "risto"}},
		{"doamne", []string{"doamn", "oamne", "oamn"}},
		{"binecuvantare", []string{"binec", "ntare", "cuvan"}},
		{"îndurare", []string{"îndur", "urare", "ndura"}},
	}

	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			assert.Equal(t, tt.want, MiddleSubstrings(tt.term))
		})
	}
}

func TestMiddleSubstrings_BoundedAndShorterThanTerm(t *testing.T) {
	for _, term := range []string{"abcd", "abcde", "abcdef", "preamarit", "halleluia"} {
		subs := MiddleSubstrings(term)
		assert.LessOrEqual(t, len(subs), 3, term)
		for _, s := range subs {
			assert.NotEqual(t, term, s)
			assert.Contains(t, term, s)
			n := len([]rune(s))
			assert.True(t, n >= 4 && n <= 5, "%q from %q", s, term)
		}
	}
}
