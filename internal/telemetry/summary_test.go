package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize_DateWindow(t *testing.T) {
	// Given: counts inside and outside a seven day window
	s := setupMetricsStore(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveQueryTypeCounts(ctx, "2026-10-18", map[QueryType]int64{QueryTypeSingleTerm: 3}))
	require.NoError(t, s.SaveQueryTypeCounts(ctx, "2026-10-12", map[QueryType]int64{QueryTypeMultiTerm: 2}))
	require.NoError(t, s.SaveQueryTypeCounts(ctx, "2026-10-11", map[QueryType]int64{QueryTypeFiltered: 9}))
	require.NoError(t, s.SaveLatencyCounts(ctx, "2026-10-18", map[LatencyBucket]int64{BucketP10: 5}))
	require.NoError(t, s.UpsertTermCounts(ctx, map[string]int64{"isus": 4, "har": 1}))
	require.NoError(t, s.AddZeroResultQuery(ctx, "xyzzy", now))

	// When: summarizing the last seven days
	sum, err := Summarize(ctx, s, now, 7, 10)
	require.NoError(t, err)

	// Then: only the window is counted
	assert.Equal(t, "2026-10-12", sum.From)
	assert.Equal(t, "2026-10-18", sum.To)
	assert.Equal(t, int64(5), sum.TotalQueries)
	assert.Zero(t, sum.QueryTypeCounts[QueryTypeFiltered])
	assert.Equal(t, int64(5), sum.LatencyDistribution[BucketP10])
	require.Len(t, sum.TopTerms, 2)
	assert.Equal(t, "isus", sum.TopTerms[0].Term)
	assert.Equal(t, []string{"xyzzy"}, sum.ZeroResultQueries)
}

func TestSummarize_MinimumOneDay(t *testing.T) {
	s := setupMetricsStore(t)
	now := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)

	sum, err := Summarize(context.Background(), s, now, 0, 5)
	require.NoError(t, err)
	assert.Equal(t, sum.From, sum.To)
	assert.Zero(t, sum.TotalQueries)
}
