// Package library is the song and category catalog as seen by the rest of
// the application. Every mutation that changes an indexed field is
// followed by the matching index update, so search always reflects the
// catalog.
package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	cerrors "github.com/Aman-CERP/cantor/internal/errors"
	"github.com/Aman-CERP/cantor/internal/index"
	"github.com/Aman-CERP/cantor/internal/search"
	"github.com/Aman-CERP/cantor/internal/store"
)

// Service wraps the catalog store and the index writer.
type Service struct {
	db         *store.DB
	writer     *index.Writer
	synonymKey string
	onSynonyms func()
}

// Option configures a Service.
type Option func(*Service)

// WithSynonymKey sets the settings key synonyms are stored under.
func WithSynonymKey(key string) Option {
	return func(s *Service) {
		if key != "" {
			s.synonymKey = key
		}
	}
}

// WithSynonymsChanged registers a callback run after synonyms are saved,
// typically a cache invalidation.
func WithSynonymsChanged(fn func()) Option {
	return func(s *Service) {
		s.onSynonyms = fn
	}
}

// NewService returns a Service over db and writer.
func NewService(db *store.DB, writer *index.Writer, opts ...Option) *Service {
	s := &Service{
		db:         db,
		writer:     writer,
		synonymKey: search.DefaultSynonymKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Categories

// CreateCategory adds a category. A new category has no songs, so nothing
// is indexed.
func (s *Service) CreateCategory(ctx context.Context, nc store.NewCategory) (*store.Category, error) {
	nc.Name = strings.TrimSpace(nc.Name)
	if nc.Name == "" {
		return nil, cerrors.ValidationError("category name is required", nil)
	}
	c, err := s.db.CreateCategory(ctx, nc)
	if err != nil {
		return nil, cerrors.StorageError("create category", err)
	}
	return c, nil
}

// GetCategory returns one category.
func (s *Service) GetCategory(ctx context.Context, id int64) (*store.Category, error) {
	c, err := s.db.GetCategory(ctx, id)
	if err != nil {
		return nil, categoryError(id, err)
	}
	return c, nil
}

// ListCategories returns every category.
func (s *Service) ListCategories(ctx context.Context) ([]store.Category, error) {
	cats, err := s.db.ListCategories(ctx)
	if err != nil {
		return nil, cerrors.StorageError("list categories", err)
	}
	return cats, nil
}

// UpdateCategory applies patch. A rename reindexes the category's songs,
// whose documents carry the category name. Priority is read at query time
// and needs no reindex.
func (s *Service) UpdateCategory(ctx context.Context, id int64, patch store.CategoryPatch) (*store.Category, error) {
	before, err := s.db.GetCategory(ctx, id)
	if err != nil {
		return nil, categoryError(id, err)
	}

	after, err := s.db.UpdateCategory(ctx, id, patch)
	if err != nil {
		return nil, categoryError(id, err)
	}

	if after.Name != before.Name {
		stats, err := s.writer.ReindexByCategory(ctx, id)
		if err != nil {
			return after, s.indexFailed("category_renamed", id, err)
		}
		slog.Info("category_reindexed",
			slog.Int64("category_id", id),
			slog.Int("songs", stats.Indexed))
	}
	return after, nil
}

// DeleteCategory removes a category. Its songs become uncategorized and
// are reindexed without the category name.
func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	ids, err := s.db.SongIDsByCategory(ctx, id)
	if err != nil {
		return cerrors.StorageError("list category songs", err)
	}

	if err := s.db.DeleteCategory(ctx, id); err != nil {
		return categoryError(id, err)
	}

	if _, err := s.writer.BatchIndex(ctx, ids); err != nil {
		return s.indexFailed("category_deleted", id, err)
	}
	return nil
}

// Songs

// CreateSong adds a song and indexes it.
func (s *Service) CreateSong(ctx context.Context, ns store.NewSong) (*store.Song, error) {
	if err := validateTitle(ns.Title); err != nil {
		return nil, err
	}
	if ns.CategoryID != nil {
		if _, err := s.db.GetCategory(ctx, *ns.CategoryID); err != nil {
			return nil, categoryError(*ns.CategoryID, err)
		}
	}

	song, err := s.db.CreateSong(ctx, ns)
	if err != nil {
		return nil, cerrors.StorageError("create song", err)
	}

	if err := s.writer.IndexSong(ctx, song.ID); err != nil {
		return song, s.indexFailed("song_created", song.ID, err)
	}
	return song, nil
}

// GetSong returns one song with its slides.
func (s *Service) GetSong(ctx context.Context, id int64) (*store.Song, error) {
	song, err := s.db.GetSong(ctx, id)
	if err != nil {
		return nil, songError(id, err)
	}
	return song, nil
}

// UpdateSong applies patch and reindexes the song. An empty patch is a
// no-op.
func (s *Service) UpdateSong(ctx context.Context, id int64, patch store.SongPatch) error {
	if patch.Empty() {
		return nil
	}
	if patch.Title != nil {
		if err := validateTitle(*patch.Title); err != nil {
			return err
		}
	}
	if patch.CategoryID != nil && !patch.ClearCategory {
		if _, err := s.db.GetCategory(ctx, *patch.CategoryID); err != nil {
			return categoryError(*patch.CategoryID, err)
		}
	}

	if err := s.db.UpdateSong(ctx, id, patch); err != nil {
		return songError(id, err)
	}

	if err := s.writer.IndexSong(ctx, id); err != nil {
		return s.indexFailed("song_updated", id, err)
	}
	return nil
}

// DeleteSong removes a song and its index documents.
func (s *Service) DeleteSong(ctx context.Context, id int64) error {
	if err := s.db.DeleteSong(ctx, id); err != nil {
		return songError(id, err)
	}
	if err := s.writer.RemoveSong(ctx, id); err != nil {
		return s.indexFailed("song_deleted", id, err)
	}
	return nil
}

// RecordPresentation counts one presentation of a song. The count is read
// at query time, so the index is untouched.
func (s *Service) RecordPresentation(ctx context.Context, id int64) error {
	if err := s.db.IncrementPresentationCount(ctx, id); err != nil {
		return songError(id, err)
	}
	return nil
}

// Synonyms

// Synonyms returns the stored synonym groups. A missing setting is an
// empty list.
func (s *Service) Synonyms(ctx context.Context) ([]search.SynonymGroup, error) {
	raw, err := s.db.GetSetting(ctx, s.synonymKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, cerrors.StorageError("read synonyms", err)
	}

	groups, err := search.ParseSynonymGroups(raw)
	if err != nil {
		return nil, cerrors.New(cerrors.ErrCodeSynonymsInvalid, "stored synonym groups are not valid JSON", err)
	}
	return groups, nil
}

// SetSynonyms replaces the stored synonym groups. Every group needs a
// primary term.
func (s *Service) SetSynonyms(ctx context.Context, groups []search.SynonymGroup) error {
	for i, g := range groups {
		if strings.TrimSpace(g.Primary) == "" {
			return cerrors.New(cerrors.ErrCodeSynonymsInvalid, "synonym group has no primary term", nil).
				WithDetail("group", fmt.Sprintf("%d", i+1))
		}
	}
	if groups == nil {
		groups = []search.SynonymGroup{}
	}

	data, err := json.Marshal(groups)
	if err != nil {
		return cerrors.InternalError("encode synonyms", err)
	}
	if err := s.db.SetSetting(ctx, s.synonymKey, string(data)); err != nil {
		return cerrors.StorageError("save synonyms", err)
	}

	slog.Info("synonyms_saved", slog.Int("groups", len(groups)))
	if s.onSynonyms != nil {
		s.onSynonyms()
	}
	return nil
}

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return cerrors.ValidationError("song title is required", nil)
	}
	return nil
}

func (s *Service) indexFailed(event string, id int64, err error) error {
	slog.Error("index_after_mutation_failed",
		slog.String("mutation", event),
		slog.Int64("id", id),
		slog.String("error", err.Error()))
	return err
}

func songError(id int64, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return cerrors.New(cerrors.ErrCodeSongNotFound, fmt.Sprintf("song %d not found", id), err)
	}
	return cerrors.StorageError(fmt.Sprintf("song %d", id), err)
}

func categoryError(id int64, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return cerrors.New(cerrors.ErrCodeCategoryNotFound, fmt.Sprintf("category %d not found", id), err)
	}
	return cerrors.StorageError(fmt.Sprintf("category %d", id), err)
}
