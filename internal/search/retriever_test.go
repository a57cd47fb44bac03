package search

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/Aman-CERP/cantor/internal/errors"
	"github.com/Aman-CERP/cantor/internal/store"
)

// fakeSource is a CandidateSource with canned answers.
type fakeSource struct {
	standard    []store.Match
	fuzzy       []store.Match
	standardErr error
	fuzzyErr    error
	counts      map[string]int
	countErr    error

	standardOpts store.MatchOptions
	fuzzyOpts    store.MatchOptions
}

func (f *fakeSource) MatchStandard(_ context.Context, _ string, opts store.MatchOptions) ([]store.Match, error) {
	f.standardOpts = opts
	return f.standard, f.standardErr
}

func (f *fakeSource) MatchFuzzy(_ context.Context, _ string, opts store.MatchOptions) ([]store.Match, error) {
	f.fuzzyOpts = opts
	return f.fuzzy, f.fuzzyErr
}

func (f *fakeSource) CountMatches(_ context.Context, match string) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.counts[match], nil
}

func match(id int64, title, highlighted string, rank float64) store.Match {
	return store.Match{SongID: id, Title: title, HighlightedTitle: highlighted, Rank: rank}
}

func candidateIDs(cs []Candidate) []int64 {
	ids := make([]int64, len(cs))
	for i, c := range cs {
		ids[i] = c.SongID
	}
	return ids
}

func TestRetrieve_MergesStandardFirst(t *testing.T) {
	src := &fakeSource{
		standard: []store.Match{match(3, "C", "<mark>C</mark>", -5), match(1, "A", "<mark>A</mark>", -2)},
		fuzzy:    []store.Match{match(1, "A", "", -9), match(7, "G", "", -4), match(2, "B", "", -1)},
	}
	r := NewRetriever(src, DefaultWeights())

	got, err := r.Retrieve(context.Background(), `"a"*`, `"a"`, nil)
	require.NoError(t, err)

	assert.Equal(t, []int64{3, 1, 7, 2}, candidateIDs(got))
	assert.False(t, got[1].FromFuzzyIndex, "a song in both indexes keeps its standard entry")
	assert.Equal(t, "<mark>A</mark>", got[1].HighlightedTitle)
	assert.True(t, got[2].FromFuzzyIndex)
	assert.Empty(t, got[2].HighlightedTitle)
}

func TestRetrieve_PassesLimitsAndCategory(t *testing.T) {
	src := &fakeSource{}
	w := DefaultWeights()
	w.StandardCandidateLimit = 42
	w.FuzzyCandidateLimit = 7
	r := NewRetriever(src, w)
	cat := int64(5)

	_, err := r.Retrieve(context.Background(), `"a"*`, `"aaa"`, &cat)
	require.NoError(t, err)

	assert.Equal(t, 42, src.standardOpts.Limit)
	assert.Equal(t, 7, src.fuzzyOpts.Limit)
	require.NotNil(t, src.standardOpts.CategoryID)
	assert.Equal(t, int64(5), *src.standardOpts.CategoryID)
	require.NotNil(t, src.fuzzyOpts.CategoryID)
}

func TestRetrieve_FuzzyFailureIsNotAnError(t *testing.T) {
	src := &fakeSource{
		standard: []store.Match{match(1, "A", "A", -1)},
		fuzzyErr: store.ErrFuzzyUnavailable,
	}
	r := NewRetriever(src, DefaultWeights())

	got, err := r.Retrieve(context.Background(), `"a"*`, `"aaa"`, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, candidateIDs(got))
}

func TestRetrieve_StandardSyntaxErrorGivesNoCandidates(t *testing.T) {
	src := &fakeSource{
		standardErr: errors.New(`fts5: syntax error near "NEAR"`),
		fuzzy:       []store.Match{match(4, "D", "", -1)},
	}
	r := NewRetriever(src, DefaultWeights())

	got, err := r.Retrieve(context.Background(), `NEAR(`, `"ddd"`, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, candidateIDs(got))
}

func TestRetrieve_StandardFailurePropagates(t *testing.T) {
	src := &fakeSource{standardErr: sql.ErrConnDone}
	r := NewRetriever(src, DefaultWeights())

	_, err := r.Retrieve(context.Background(), `"a"*`, "", nil)
	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeSearchFailed, cerrors.GetCode(err))
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestRetrieve_EmptyQueriesSkipIndexes(t *testing.T) {
	src := &fakeSource{standardErr: sql.ErrConnDone, fuzzyErr: sql.ErrConnDone}
	r := NewRetriever(src, DefaultWeights())

	got, err := r.Retrieve(context.Background(), "", "", nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTermFilter(t *testing.T) {
	src := &fakeSource{counts: map[string]int{
		`"isus"*`:  25,
		`"47382"*`: 0,
		`"har"*`:   10,
		`"mila"*`:  9,
	}}
	f := NewTermFilter(src, 10)
	ctx := context.Background()

	assert.Equal(t, []string{"isus"}, f.Filter(ctx, []string{"isus", "47382"}))
	assert.Equal(t, []string{"isus", "har"}, f.Filter(ctx, []string{"isus", "mila", "har"}))
	assert.Equal(t, []string{"mila", "47382"}, f.Filter(ctx, []string{"mila", "47382"}), "no survivor keeps all raw terms")
	assert.Nil(t, f.Filter(ctx, nil))
}

func TestTermFilter_CountErrorKeepsTerm(t *testing.T) {
	src := &fakeSource{countErr: errors.New("database is locked")}
	f := NewTermFilter(src, 10)

	assert.Equal(t, []string{"isus", "47382"}, f.Filter(context.Background(), []string{"isus", "47382"}))
}
