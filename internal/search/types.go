// Package search finds and ranks songs for a free-text query.
//
// A query goes through normalization, a term-frequency filter and synonym
// expansion, then runs against two FTS5 indexes: a diacritic-insensitive
// token index and a trigram index that tolerates typos. Candidates from
// both are merged and re-scored on title match, best-phrase content
// proximity and category priority, and returned with a highlighted
// content snippet.
package search

import (
	"context"

	"github.com/Aman-CERP/cantor/internal/store"
)

// MaxResults is the number of results a search returns at most.
const MaxResults = 50

// MaxQueryLength is the longest query searched, in runes. Longer queries
// are truncated.
const MaxQueryLength = 500

// AdditiveBoostStep is the score added per priority level above 1 in
// additive boost mode.
const AdditiveBoostStep = 10.0

// BoostMode selects how category priority is applied to the term score.
type BoostMode string

const (
	BoostMultiplicative BoostMode = "multiplicative"
	BoostAdditive       BoostMode = "additive"
)

// Weights holds the tunable constants of retrieval and scoring.
type Weights struct {
	TitleWeight   float64
	ContentWeight float64

	// MinTermFrequency is the document count below which a query term is
	// treated as noise and dropped (unless every term would be dropped).
	MinTermFrequency int

	// ClusterRadius is how far, in characters, an anchor looks for the
	// other query terms when scoring content.
	ClusterRadius int

	// IdealSpanPerTerm is the per-term span under which a cluster gets the
	// full proximity bonus.
	IdealSpanPerTerm int

	// ProximityWindow is the NEAR distance of the standard index query.
	ProximityWindow int

	StandardCandidateLimit int
	FuzzyCandidateLimit    int

	// SnippetWindow is the snippet length in characters.
	SnippetWindow int

	BoostMode BoostMode
}

// DefaultWeights returns the default tuning.
func DefaultWeights() Weights {
	return Weights{
		TitleWeight:            2,
		ContentWeight:          1,
		MinTermFrequency:       10,
		ClusterRadius:          150,
		IdealSpanPerTerm:       10,
		ProximityWindow:        10,
		StandardCandidateLimit: 500,
		FuzzyCandidateLimit:    200,
		SnippetWindow:          150,
		BoostMode:              BoostMultiplicative,
	}
}

// withDefaults fills zero fields from DefaultWeights.
func (w Weights) withDefaults() Weights {
	d := DefaultWeights()
	if w.TitleWeight <= 0 && w.ContentWeight <= 0 {
		w.TitleWeight, w.ContentWeight = d.TitleWeight, d.ContentWeight
	}
	if w.TitleWeight < 0 {
		w.TitleWeight = 0
	}
	if w.ContentWeight < 0 {
		w.ContentWeight = 0
	}
	if w.MinTermFrequency <= 0 {
		w.MinTermFrequency = d.MinTermFrequency
	}
	if w.ClusterRadius <= 0 {
		w.ClusterRadius = d.ClusterRadius
	}
	if w.IdealSpanPerTerm <= 0 {
		w.IdealSpanPerTerm = d.IdealSpanPerTerm
	}
	if w.ProximityWindow <= 0 {
		w.ProximityWindow = d.ProximityWindow
	}
	if w.StandardCandidateLimit <= 0 {
		w.StandardCandidateLimit = d.StandardCandidateLimit
	}
	if w.FuzzyCandidateLimit <= 0 {
		w.FuzzyCandidateLimit = d.FuzzyCandidateLimit
	}
	if w.SnippetWindow <= 0 {
		w.SnippetWindow = d.SnippetWindow
	}
	if w.BoostMode != BoostAdditive {
		w.BoostMode = BoostMultiplicative
	}
	return w
}

// Options configures a single search.
type Options struct {
	// CategoryID restricts results to one category when set.
	CategoryID *int64
}

// SearchResult is one ranked song.
type SearchResult struct {
	ID                    int64   `json:"id"`
	Title                 string  `json:"title"`
	CategoryID            *int64  `json:"categoryId"`
	CategoryName          *string `json:"categoryName"`
	HighlightedTitle      string  `json:"highlightedTitle"`
	MatchedContentSnippet string  `json:"matchedContentSnippet"`
	PresentationCount     int     `json:"presentationCount"`
}

// RankedResult is a SearchResult with its score breakdown.
type RankedResult struct {
	SearchResult
	TitleScore     float64 `json:"titleScore"`
	ContentScore   float64 `json:"contentScore"`
	TermScore      float64 `json:"termScore"`
	BoostedScore   float64 `json:"boostedScore"`
	Priority       int     `json:"priority"`
	FromFuzzyIndex bool    `json:"fromFuzzyIndex"`
	NativeRank     float64 `json:"nativeRank"`
}

// QueryTerms are the term lists of one query at each pipeline stage.
type QueryTerms struct {
	// Raw is the normalized, tokenized query.
	Raw []string `json:"raw"`
	// Valid is Raw after the term-frequency filter.
	Valid []string `json:"valid"`
	// Expanded is Valid plus synonyms.
	Expanded []string `json:"expanded"`
}

// QueryPlan is what a query turns into before retrieval.
type QueryPlan struct {
	Terms         QueryTerms `json:"terms"`
	StandardQuery string     `json:"standardQuery"`
	FuzzyQuery    string     `json:"fuzzyQuery"`
}

// Candidate is a song returned by one of the indexes.
type Candidate struct {
	store.Match
	// FromFuzzyIndex is set when only the trigram index returned the song.
	FromFuzzyIndex bool
}

// ScoredCandidate is a candidate with its relevance scores.
type ScoredCandidate struct {
	Candidate
	TitleScore   float64
	ContentScore float64
	TermScore    float64
	BoostedScore float64
}

// NativeRank is the FTS5 rank reported by the index that returned the song.
func (s ScoredCandidate) NativeRank() float64 {
	return s.Rank
}

// CandidateSource runs index queries. It is implemented by *store.DB.
type CandidateSource interface {
	MatchStandard(ctx context.Context, match string, opts store.MatchOptions) ([]store.Match, error)
	MatchFuzzy(ctx context.Context, match string, opts store.MatchOptions) ([]store.Match, error)
	CountMatches(ctx context.Context, match string) (int, error)
}

// SettingsReader reads a value from the key-value settings store. A
// missing key is reported with an error wrapping store.ErrNotFound.
type SettingsReader interface {
	GetSetting(ctx context.Context, key string) (string, error)
}

var (
	_ CandidateSource = (*store.DB)(nil)
	_ SettingsReader  = (*store.DB)(nil)
)
