package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedIndexed creates songs and writes their documents to both indexes.
func seedIndexed(t *testing.T, db *DB, songs ...NewSong) []int64 {
	t.Helper()
	ctx := context.Background()

	var ids []int64
	for _, ns := range songs {
		s, err := db.CreateSong(ctx, ns)
		require.NoError(t, err)
		ids = append(ids, s.ID)
	}

	err := db.WithTx(ctx, func(q Querier) error {
		docs, err := LoadDocuments(ctx, q, ids)
		if err != nil {
			return err
		}
		return InsertDocuments(ctx, q, docs, db.FuzzyAvailable())
	})
	require.NoError(t, err)
	return ids
}

func TestLoadDocuments_JoinsSlidesInOrder(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	cat, err := db.CreateCategory(ctx, NewCategory{Name: "Laudă", Priority: 3})
	require.NoError(t, err)
	song, err := db.CreateSong(ctx, NewSong{
		Title:      "Sfânt Ești Doamne",
		CategoryID: &cat.ID,
		Slides:     []string{"unu", "doi", "trei"},
	})
	require.NoError(t, err)
	bare, err := db.CreateSong(ctx, NewSong{Title: "Fără strofe"})
	require.NoError(t, err)

	docs, err := LoadDocuments(ctx, db.SQL(), []int64{bare.ID, song.ID, 9999})
	require.NoError(t, err)
	require.Len(t, docs, 2, "missing ids are absent")

	assert.Equal(t, song.ID, docs[0].SongID)
	assert.Equal(t, "unu\ndoi\ntrei", docs[0].Content)
	assert.Equal(t, "Laudă", docs[0].CategoryName.String)
	assert.Equal(t, 3, docs[0].CategoryPriority)

	assert.Equal(t, "", docs[1].Content)
	assert.False(t, docs[1].CategoryName.Valid)
	assert.Equal(t, 1, docs[1].CategoryPriority)

	all, err := LoadDocuments(ctx, db.SQL(), nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestDocument_FuzzyIsNormalized(t *testing.T) {
	fd := Document{SongID: 7, Title: "Sfânt Ești", Content: "<b>Înălțați</b> pe Domnul"}.Fuzzy()
	assert.Equal(t, int64(7), fd.SongID)
	assert.Equal(t, "sfant esti", fd.Title)
	assert.Equal(t, "inaltati pe domnul", fd.Content)
}

func TestMatchStandard_DiacriticInsensitiveWithHighlight(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	ids := seedIndexed(t, db,
		NewSong{Title: "Sfânt Ești Doamne", Slides: []string{"Sfânt, sfânt, sfânt"}},
		NewSong{Title: "Alt cântec", Slides: []string{"nimic"}},
	)

	matches, err := db.MatchStandard(ctx, `"sfant"*`, MatchOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, ids[0], matches[0].SongID)
	assert.Equal(t, "<mark>Sfânt</mark> Ești Doamne", matches[0].HighlightedTitle)
	assert.Equal(t, "Sfânt, sfânt, sfânt", matches[0].Content)
	assert.Equal(t, 1, matches[0].CategoryPriority)
}

func TestMatchStandard_CategoryFilter(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	cat, err := db.CreateCategory(ctx, NewCategory{Name: "Colinde"})
	require.NoError(t, err)
	ids := seedIndexed(t, db,
		NewSong{Title: "Domnul e bun", CategoryID: &cat.ID},
		NewSong{Title: "Domnul e mare"},
	)

	matches, err := db.MatchStandard(ctx, `"domnul"*`, MatchOptions{CategoryID: &cat.ID})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, ids[0], matches[0].SongID)
	assert.True(t, matches[0].CategoryID.Valid)
}

func TestMatchStandard_MarkupIsNotIndexed(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	// Given slides carrying tags, attributes and entities
	raw := `<p><span style="color: red">Aleluia</span>&nbsp;slavă</p>`
	ids := seedIndexed(t, db,
		NewSong{Title: "Aleluia", Slides: []string{raw}},
		NewSong{Title: "Imn", Slides: []string{"Sf&acirc;nt e Domnul"}},
	)

	// When searching for markup words
	for _, q := range []string{`"style"*`, `"span"*`, `"color"*`, `"nbsp"*`, `"acirc"*`} {
		matches, err := db.MatchStandard(ctx, q, MatchOptions{})
		require.NoError(t, err)
		// Then nothing matches
		assert.Empty(t, matches, q)
	}

	// And the text itself is found, with the raw slide as content
	matches, err := db.MatchStandard(ctx, `"aleluia"*`, MatchOptions{})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, raw, matches[0].Content)

	matches, err = db.MatchStandard(ctx, `"sfant"*`, MatchOptions{})
	require.NoError(t, err)
	require.Len(t, matches, 1, "entity-encoded letters decode before indexing")
	assert.Equal(t, ids[1], matches[0].SongID)

	n, err := db.CountMatches(ctx, `"span"*`)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMatchStandard_EscapesHighlightedTitle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	seedIndexed(t, db, NewSong{Title: "Rugăciune & laudă <nou>"})

	matches, err := db.MatchStandard(ctx, `"lauda"*`, MatchOptions{})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Rugăciune &amp; <mark>laudă</mark> &lt;nou&gt;", matches[0].HighlightedTitle)
	assert.Equal(t, "Rugăciune & laudă <nou>", matches[0].Title)
}

func TestMatchFuzzy_ReturnsSlideContent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.True(t, db.FuzzyAvailable())

	ids := seedIndexed(t, db, NewSong{Title: "Slavă", Slides: []string{"Hristos a înviat"}})

	matches, err := db.MatchFuzzy(ctx, `"ristos"`, MatchOptions{Limit: 5})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, ids[0], matches[0].SongID)
	assert.Equal(t, "Hristos a înviat", matches[0].Content)
	assert.Equal(t, "Slavă", matches[0].Title)
	assert.Empty(t, matches[0].HighlightedTitle)
}

func TestCountMatches(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	seedIndexed(t, db,
		NewSong{Title: "Isus unu"},
		NewSong{Title: "Isus doi"},
		NewSong{Title: "Altceva"},
	)

	n, err := db.CountMatches(ctx, `"isus"*`)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDeleteAndClearDocuments(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	ids := seedIndexed(t, db, NewSong{Title: "Unu"}, NewSong{Title: "Doi"}, NewSong{Title: "Trei"})

	require.NoError(t, db.WithTx(ctx, func(q Querier) error {
		return DeleteDocuments(ctx, q, []int64{ids[0], 12345}, true)
	}))
	std, fz, err := db.DocumentCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, std)
	assert.Equal(t, 2, fz)

	require.NoError(t, db.WithTx(ctx, func(q Querier) error {
		return ClearDocuments(ctx, q, true)
	}))
	std, fz, err = db.DocumentCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, std)
	assert.Zero(t, fz)
}

func TestStatus(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedIndexed(t, db, NewSong{Title: "Unu"})

	st, err := db.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Songs)
	assert.Equal(t, 1, st.StandardDocs)
	assert.Equal(t, 1, st.FuzzyDocs)
	assert.Equal(t, CurrentSchemaVersion, st.SchemaVersion)
	assert.True(t, st.StandardHealthy)
	assert.Equal(t, BuildMode, st.BuildMode)
}

func TestChunkIDs(t *testing.T) {
	chunks := chunkIDs([]int64{1, 2, 3, 4, 5}, 2)
	assert.Equal(t, [][]int64{{1, 2}, {3, 4}, {5}}, chunks)
	assert.Nil(t, chunkIDs(nil, 2))
	assert.Equal(t, "?,?,?", placeholders(3))
}
