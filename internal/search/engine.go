package search

import (
	"context"
	"errors"
	"html"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	cerrors "github.com/Aman-CERP/cantor/internal/errors"
	"github.com/Aman-CERP/cantor/internal/normalize"
	"github.com/Aman-CERP/cantor/internal/telemetry"
)

// ErrNilDependency is returned when a required collaborator is nil.
var ErrNilDependency = errors.New("required dependency is nil")

// Engine runs the search pipeline. It is safe for concurrent use; the
// synonym cache is its only mutable state.
type Engine struct {
	source      CandidateSource
	weights     Weights
	synonyms    *SynonymCache
	metrics     *telemetry.QueryMetrics
	filter      *TermFilter
	expander    *Expander
	retriever   *Retriever
	scorer      *Scorer
	highlighter *Highlighter
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithWeights overrides the default weights. Zero fields keep their
// defaults.
func WithWeights(w Weights) EngineOption {
	return func(e *Engine) {
		e.weights = w.withDefaults()
	}
}

// WithSynonymCache enables synonym expansion.
func WithSynonymCache(c *SynonymCache) EngineOption {
	return func(e *Engine) {
		e.synonyms = c
	}
}

// WithMetrics records every search in m.
func WithMetrics(m *telemetry.QueryMetrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine creates a search engine over source.
func NewEngine(source CandidateSource, opts ...EngineOption) (*Engine, error) {
	if source == nil {
		return nil, cerrors.New(cerrors.ErrCodeInternal, "candidate source", ErrNilDependency)
	}

	e := &Engine{
		source:  source,
		weights: DefaultWeights(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.filter = NewTermFilter(source, e.weights.MinTermFrequency)
	e.expander = NewExpander(e.synonyms)
	e.retriever = NewRetriever(source, e.weights)
	e.scorer = NewScorer(e.weights)
	e.highlighter = NewHighlighter(e.weights.SnippetWindow)
	return e, nil
}

// Weights returns the weights in effect.
func (e *Engine) Weights() Weights {
	return e.weights
}

// Plan turns query into its term lists and index queries without running
// them.
func (e *Engine) Plan(ctx context.Context, query string) (QueryPlan, error) {
	plan, _ := e.plan(ctx, clampQuery(query))
	return plan, nil
}

func (e *Engine) plan(ctx context.Context, query string) (QueryPlan, map[string][]string) {
	var plan QueryPlan

	plan.Terms.Raw = normalize.Terms(query)
	if len(plan.Terms.Raw) == 0 {
		return plan, nil
	}

	plan.Terms.Valid = e.filter.Filter(ctx, plan.Terms.Raw)
	synonyms := e.expander.Synonyms(ctx)
	plan.Terms.Expanded = Expand(plan.Terms.Valid, synonyms)

	plan.StandardQuery = BuildIndexQueryNear(plan.Terms.Expanded, e.weights.ProximityWindow)
	plan.FuzzyQuery = BuildFuzzyIndexQuery(plan.Terms.Expanded)
	return plan, synonyms
}

// Search returns up to MaxResults songs for query, best first. An empty
// query, or one without searchable terms, gives an empty slice.
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]SearchResult, error) {
	ranked, err := e.SearchRanked(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, len(ranked))
	for i, r := range ranked {
		results[i] = r.SearchResult
	}
	return results, nil
}

// SearchRanked is Search with the score breakdown of every result.
func (e *Engine) SearchRanked(ctx context.Context, query string, opts Options) ([]RankedResult, error) {
	start := time.Now()

	if strings.TrimSpace(query) == "" {
		return []RankedResult{}, nil
	}
	query = clampQuery(query)

	plan, synonyms := e.plan(ctx, query)
	if len(plan.Terms.Valid) == 0 {
		return []RankedResult{}, nil
	}

	slog.Debug("search_started",
		slog.String("query", query),
		slog.Any("terms", plan.Terms.Expanded),
		slog.Bool("filtered", opts.CategoryID != nil))

	candidates, err := e.retriever.Retrieve(ctx, plan.StandardQuery, plan.FuzzyQuery, opts.CategoryID)
	if err != nil {
		slog.Error("search_failed",
			slog.String("query", query),
			slog.String("error", err.Error()))
		return nil, err
	}

	sq := NewScoringQuery(plan.Terms.Valid, synonyms)
	scored := make([]ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, e.scorer.Score(c, sq))
	}
	scored = Rank(scored)

	results := make([]RankedResult, 0, len(scored))
	fuzzyOnly := 0
	for _, sc := range scored {
		if sc.FromFuzzyIndex {
			fuzzyOnly++
		}
		results = append(results, e.project(sc, plan.Terms.Expanded))
	}

	elapsed := time.Since(start)
	e.record(query, len(plan.Terms.Valid), opts, len(results), fuzzyOnly, elapsed)

	slog.Debug("search_complete",
		slog.String("query", query),
		slog.Int("candidates", len(candidates)),
		slog.Int("results", len(results)),
		slog.Int("fuzzy_only", fuzzyOnly),
		slog.Duration("duration", elapsed))

	return results, nil
}

func (e *Engine) project(sc ScoredCandidate, terms []string) RankedResult {
	r := RankedResult{
		SearchResult: SearchResult{
			ID:                    sc.SongID,
			Title:                 sc.Title,
			HighlightedTitle:      sc.HighlightedTitle,
			MatchedContentSnippet: e.highlighter.Snippet(sc.Content, terms),
			PresentationCount:     sc.PresentationCount,
		},
		TitleScore:     sc.TitleScore,
		ContentScore:   sc.ContentScore,
		TermScore:      sc.TermScore,
		BoostedScore:   sc.BoostedScore,
		Priority:       sc.CategoryPriority,
		FromFuzzyIndex: sc.FromFuzzyIndex,
		NativeRank:     sc.NativeRank(),
	}

	if sc.FromFuzzyIndex || r.HighlightedTitle == "" {
		r.HighlightedTitle = html.EscapeString(sc.Title)
	}
	if sc.CategoryID.Valid {
		id := sc.CategoryID.Int64
		r.CategoryID = &id
	}
	if sc.CategoryName.Valid {
		name := sc.CategoryName.String
		r.CategoryName = &name
	}
	return r
}

func (e *Engine) record(query string, terms int, opts Options, results, fuzzyOnly int, latency time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.Record(telemetry.QueryEvent{
		Query:          query,
		QueryType:      telemetry.ClassifyQuery(terms, opts.CategoryID != nil),
		ResultCount:    results,
		FuzzyOnlyCount: fuzzyOnly,
		Latency:        latency,
		Timestamp:      time.Now(),
	})
}

// clampQuery cuts query to MaxQueryLength runes, at the last space within
// the limit when there is one.
func clampQuery(query string) string {
	n := utf8.RuneCountInString(query)
	if n <= MaxQueryLength {
		return query
	}

	cut := string([]rune(query)[:MaxQueryLength])
	if i := strings.LastIndexFunc(cut, unicode.IsSpace); i > 0 {
		cut = cut[:i]
	}
	slog.Debug("query_truncated",
		slog.Int("length", n),
		slog.Int("max", MaxQueryLength))
	return cut
}
