package telemetry

import (
	"context"
	"fmt"
	"time"
)

// StoredSummary is what the metrics store holds for a date range.
type StoredSummary struct {
	From                string                  `json:"from"`
	To                  string                  `json:"to"`
	TotalQueries        int64                   `json:"total_queries"`
	QueryTypeCounts     map[QueryType]int64     `json:"query_type_counts"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	TopTerms            []TermCount             `json:"top_terms"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
}

// Summarize reads the last days days (today included) of flushed
// metrics, with at most limit top terms and zero-result queries.
func Summarize(ctx context.Context, store QueryMetricsStore, now time.Time, days, limit int) (*StoredSummary, error) {
	if days < 1 {
		days = 1
	}
	to := now.Format("2006-01-02")
	from := now.AddDate(0, 0, -(days - 1)).Format("2006-01-02")

	types, err := store.GetQueryTypeCounts(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("query types: %w", err)
	}
	latencies, err := store.GetLatencyCounts(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("latencies: %w", err)
	}
	terms, err := store.GetTopTerms(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("top terms: %w", err)
	}
	zero, err := store.GetZeroResultQueries(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("zero-result queries: %w", err)
	}

	s := &StoredSummary{
		From:                from,
		To:                  to,
		QueryTypeCounts:     types,
		LatencyDistribution: latencies,
		TopTerms:            terms,
		ZeroResultQueries:   zero,
	}
	for _, n := range types {
		s.TotalQueries += n
	}
	return s, nil
}
