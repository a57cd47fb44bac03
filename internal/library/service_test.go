package library

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/Aman-CERP/cantor/internal/errors"
	"github.com/Aman-CERP/cantor/internal/index"
	"github.com/Aman-CERP/cantor/internal/search"
	"github.com/Aman-CERP/cantor/internal/store"
)

func newTestService(t *testing.T, opts ...Option) (*Service, *store.DB) {
	t.Helper()

	db, err := store.Open(context.Background(), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewService(db, index.NewWriter(db), opts...), db
}

func newTestEngine(t *testing.T, db *store.DB) *search.Engine {
	t.Helper()
	e, err := search.NewEngine(db)
	require.NoError(t, err)
	return e
}

func searchIDs(t *testing.T, e *search.Engine, query string) []int64 {
	t.Helper()
	results, err := e.Search(context.Background(), query, search.Options{})
	require.NoError(t, err)

	ids := make([]int64, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return ids
}

func TestCreateSong_IsSearchable(t *testing.T) {
	// Given an empty library
	svc, db := newTestService(t)
	ctx := context.Background()

	// When a song is created
	song, err := svc.CreateSong(ctx, store.NewSong{
		Title:  "Hristos a înviat",
		Slides: []string{"Hristos a înviat din morți"},
	})
	require.NoError(t, err)

	// Then it is found right away
	assert.Equal(t, []int64{song.ID}, searchIDs(t, newTestEngine(t, db), "înviat"))
}

func TestCreateSong_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateSong(ctx, store.NewSong{Title: "  "})
	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeInvalidInput, cerrors.GetCode(err))

	missing := int64(99)
	_, err = svc.CreateSong(ctx, store.NewSong{Title: "Har", CategoryID: &missing})
	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeCategoryNotFound, cerrors.GetCode(err))
}

func TestUpdateSong_Reindexes(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	song, err := svc.CreateSong(ctx, store.NewSong{Title: "Har", Slides: []string{"har și pace"}})
	require.NoError(t, err)
	e := newTestEngine(t, db)

	slides := []string{"bucurie în Domnul"}
	require.NoError(t, svc.UpdateSong(ctx, song.ID, store.SongPatch{Slides: &slides}))

	assert.Empty(t, searchIDs(t, e, "pace"))
	assert.Equal(t, []int64{song.ID}, searchIDs(t, e, "bucurie"))
}

func TestUpdateSong_EmptyPatchIsNoop(t *testing.T) {
	svc, _ := newTestService(t)

	assert.NoError(t, svc.UpdateSong(context.Background(), 12345, store.SongPatch{}))
}

func TestUpdateSong_Missing(t *testing.T) {
	svc, _ := newTestService(t)
	title := "Nou"

	err := svc.UpdateSong(context.Background(), 12345, store.SongPatch{Title: &title})
	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeSongNotFound, cerrors.GetCode(err))
}

func TestDeleteSong_RemovesFromIndex(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	song, err := svc.CreateSong(ctx, store.NewSong{Title: "Har", Slides: []string{"har și pace"}})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteSong(ctx, song.ID))

	assert.Empty(t, searchIDs(t, newTestEngine(t, db), "har"))
	standard, fuzzy, err := db.DocumentCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, standard)
	assert.Zero(t, fuzzy)

	err = svc.DeleteSong(ctx, song.ID)
	assert.Equal(t, cerrors.ErrCodeSongNotFound, cerrors.GetCode(err))
}

func TestUpdateCategory_RenameReindexesSongs(t *testing.T) {
	// Given a song in category "Tineret"
	svc, db := newTestService(t)
	ctx := context.Background()
	cat, err := svc.CreateCategory(ctx, store.NewCategory{Name: "Tineret", Priority: 1})
	require.NoError(t, err)
	song, err := svc.CreateSong(ctx, store.NewSong{Title: "Har", CategoryID: &cat.ID, Slides: []string{"har"}})
	require.NoError(t, err)

	// When the category is renamed
	name := "Speranta"
	renamed, err := svc.UpdateCategory(ctx, cat.ID, store.CategoryPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Speranta", renamed.Name)

	// Then the song's document carries the new name
	docs, err := store.LoadDocuments(ctx, db.SQL(), []int64{song.ID})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Speranta", docs[0].CategoryName.String)
	assert.Equal(t, []int64{song.ID}, searchIDs(t, newTestEngine(t, db), "speranta"))
}

func TestUpdateCategory_PriorityAffectsRanking(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	low, err := svc.CreateCategory(ctx, store.NewCategory{Name: "A", Priority: 1})
	require.NoError(t, err)
	high, err := svc.CreateCategory(ctx, store.NewCategory{Name: "B", Priority: 1})
	require.NoError(t, err)
	first, err := svc.CreateSong(ctx, store.NewSong{Title: "Har mare", CategoryID: &low.ID, Slides: []string{"har"}})
	require.NoError(t, err)
	second, err := svc.CreateSong(ctx, store.NewSong{Title: "Har mare", CategoryID: &high.ID, Slides: []string{"har"}})
	require.NoError(t, err)
	e := newTestEngine(t, db)

	assert.Equal(t, []int64{first.ID, second.ID}, searchIDs(t, e, "har mare"))

	priority := 3
	_, err = svc.UpdateCategory(ctx, high.ID, store.CategoryPatch{Priority: &priority})
	require.NoError(t, err)

	assert.Equal(t, []int64{second.ID, first.ID}, searchIDs(t, e, "har mare"))
}

func TestDeleteCategory_OrphansSongs(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	cat, err := svc.CreateCategory(ctx, store.NewCategory{Name: "Tineret"})
	require.NoError(t, err)
	song, err := svc.CreateSong(ctx, store.NewSong{Title: "Har", CategoryID: &cat.ID, Slides: []string{"har"}})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteCategory(ctx, cat.ID))

	got, err := svc.GetSong(ctx, song.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CategoryID)
	assert.Empty(t, searchIDs(t, newTestEngine(t, db), "tineret"))
	assert.Equal(t, []int64{song.ID}, searchIDs(t, newTestEngine(t, db), "har"))

	err = svc.DeleteCategory(ctx, cat.ID)
	assert.Equal(t, cerrors.ErrCodeCategoryNotFound, cerrors.GetCode(err))
}

func TestCreateCategory_RequiresName(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateCategory(context.Background(), store.NewCategory{Name: " "})
	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeInvalidInput, cerrors.GetCode(err))
}

func TestRecordPresentation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	song, err := svc.CreateSong(ctx, store.NewSong{Title: "Har"})
	require.NoError(t, err)

	require.NoError(t, svc.RecordPresentation(ctx, song.ID))
	require.NoError(t, svc.RecordPresentation(ctx, song.ID))

	got, err := svc.GetSong(ctx, song.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.PresentationCount)

	err = svc.RecordPresentation(ctx, 999)
	assert.Equal(t, cerrors.ErrCodeSongNotFound, cerrors.GetCode(err))
}

func TestSynonyms_RoundTripAndCallback(t *testing.T) {
	calls := 0
	svc, _ := newTestService(t, WithSynonymKey("custom.synonyms"), WithSynonymsChanged(func() { calls++ }))
	ctx := context.Background()

	groups, err := svc.Synonyms(ctx)
	require.NoError(t, err)
	assert.Empty(t, groups)

	want := []search.SynonymGroup{{ID: "hristos", Primary: "Hristos", Synonyms: []string{"Cristos"}}}
	require.NoError(t, svc.SetSynonyms(ctx, want))
	assert.Equal(t, 1, calls)

	got, err := svc.Synonyms(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSetSynonyms_RequiresPrimary(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.SetSynonyms(context.Background(), []search.SynonymGroup{{Synonyms: []string{"x"}}})
	require.Error(t, err)
	assert.Equal(t, cerrors.ErrCodeSynonymsInvalid, cerrors.GetCode(err))
}

func TestSynonyms_InvalidateEngineCache(t *testing.T) {
	// Given an engine with a synonym cache wired to the service
	db, err := store.Open(context.Background(), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	cache := search.NewSynonymCache(db)
	svc := NewService(db, index.NewWriter(db), WithSynonymsChanged(cache.Invalidate))
	e, err := search.NewEngine(db, search.WithSynonymCache(cache))
	require.NoError(t, err)
	ctx := context.Background()

	cristos, err := svc.CreateSong(ctx, store.NewSong{Title: "Cristos e Domn", Slides: []string{"Cristos e Domn"}})
	require.NoError(t, err)
	_, err = svc.CreateSong(ctx, store.NewSong{Title: "Pace", Slides: []string{"pace"}})
	require.NoError(t, err)
	assert.Empty(t, searchIDs(t, e, "mesia"))

	// When a synonym group is saved
	require.NoError(t, svc.SetSynonyms(ctx, []search.SynonymGroup{
		{ID: "c", Primary: "Cristos", Synonyms: []string{"Mesia"}},
	}))

	// Then the next search uses it
	assert.Equal(t, []int64{cristos.ID}, searchIDs(t, e, "mesia"))
}
