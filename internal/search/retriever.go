package search

import (
	"context"
	"log/slog"

	cerrors "github.com/Aman-CERP/cantor/internal/errors"
	"github.com/Aman-CERP/cantor/internal/store"
)

// Retriever runs the standard and fuzzy index queries and merges their
// candidates.
type Retriever struct {
	source        CandidateSource
	standardLimit int
	fuzzyLimit    int
}

// NewRetriever returns a Retriever over source.
func NewRetriever(source CandidateSource, weights Weights) *Retriever {
	weights = weights.withDefaults()
	return &Retriever{
		source:        source,
		standardLimit: weights.StandardCandidateLimit,
		fuzzyLimit:    weights.FuzzyCandidateLimit,
	}
}

// Retrieve returns the merged candidates of both queries. An empty query
// string skips that index. A malformed standard query yields no standard
// candidates; any fuzzy failure yields no fuzzy candidates. Other standard
// index errors are returned.
func (r *Retriever) Retrieve(ctx context.Context, standardQuery, fuzzyQuery string, categoryID *int64) ([]Candidate, error) {
	var standard, fuzzy []store.Match

	if standardQuery != "" {
		matches, err := r.source.MatchStandard(ctx, standardQuery, store.MatchOptions{
			CategoryID: categoryID,
			Limit:      r.standardLimit,
		})
		switch {
		case err != nil && store.IsQuerySyntaxError(err):
			slog.Warn("standard_query_invalid",
				slog.String("query", standardQuery),
				slog.String("error", err.Error()))
		case err != nil:
			return nil, cerrors.New(cerrors.ErrCodeSearchFailed, "standard index query failed", err)
		default:
			standard = matches
		}
	}

	if fuzzyQuery != "" {
		matches, err := r.source.MatchFuzzy(ctx, fuzzyQuery, store.MatchOptions{
			CategoryID: categoryID,
			Limit:      r.fuzzyLimit,
		})
		if err != nil {
			slog.Warn("fuzzy_query_failed",
				slog.String("query", fuzzyQuery),
				slog.String("error", err.Error()))
		} else {
			fuzzy = matches
		}
	}

	return mergeCandidates(standard, fuzzy), nil
}

// mergeCandidates de-duplicates by song id. Standard entries win and keep
// their order; fuzzy-only entries follow in their own rank order with no
// title highlight.
func mergeCandidates(standard, fuzzy []store.Match) []Candidate {
	out := make([]Candidate, 0, len(standard)+len(fuzzy))
	seen := make(map[int64]struct{}, len(standard)+len(fuzzy))

	for _, m := range standard {
		if _, ok := seen[m.SongID]; ok {
			continue
		}
		seen[m.SongID] = struct{}{}
		out = append(out, Candidate{Match: m})
	}

	for _, m := range fuzzy {
		if _, ok := seen[m.SongID]; ok {
			continue
		}
		seen[m.SongID] = struct{}{}
		m.HighlightedTitle = ""
		out = append(out, Candidate{Match: m, FromFuzzyIndex: true})
	}

	return out
}
