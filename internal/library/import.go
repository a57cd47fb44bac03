package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	cerrors "github.com/Aman-CERP/cantor/internal/errors"
	"github.com/Aman-CERP/cantor/internal/search"
	"github.com/Aman-CERP/cantor/internal/store"
)

// SongBook is the YAML import format.
//
//	categories:
//	  - name: Laudă
//	    priority: 3
//	songs:
//	  - title: Sfânt Ești Doamne
//	    category: Laudă
//	    slides:
//	      - Sfânt ești Doamne...
//	synonyms:
//	  - primary: Hristos
//	    synonyms: [Cristos]
type SongBook struct {
	Categories []CategoryEntry       `yaml:"categories"`
	Songs      []SongEntry           `yaml:"songs"`
	Synonyms   []search.SynonymGroup `yaml:"synonyms"`
}

// CategoryEntry is one category of a SongBook.
type CategoryEntry struct {
	Name     string `yaml:"name"`
	Priority int    `yaml:"priority"`
}

// SongEntry is one song of a SongBook. Category refers to a category by
// name, either from the same book or already in the library.
type SongEntry struct {
	Title    string   `yaml:"title"`
	Category string   `yaml:"category"`
	Slides   []string `yaml:"slides"`
}

// ImportStats summarizes an import.
type ImportStats struct {
	CategoriesCreated int
	CategoriesUpdated int
	SongsCreated      int
	SongsIndexed      int
	SongsSkipped      int
	SynonymGroups     int
	Duration          time.Duration
}

// ParseSongBook decodes a YAML song book. Unknown fields are rejected.
func ParseSongBook(r io.Reader) (*SongBook, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var book SongBook
	if err := dec.Decode(&book); err != nil {
		if errors.Is(err, io.EOF) {
			return &book, nil
		}
		return nil, cerrors.New(cerrors.ErrCodeInvalidInput, "song book is not valid YAML", err)
	}
	return &book, nil
}

// Validate checks the book before anything is written.
func (b *SongBook) Validate() error {
	names := make(map[string]struct{}, len(b.Categories))
	for i, c := range b.Categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return entryError("category", i, "name is required")
		}
		if _, dup := names[name]; dup {
			return entryError("category", i, fmt.Sprintf("duplicate name %q", name))
		}
		names[name] = struct{}{}
	}
	for i, s := range b.Songs {
		if strings.TrimSpace(s.Title) == "" {
			return entryError("song", i, "title is required")
		}
	}
	for i, g := range b.Synonyms {
		if strings.TrimSpace(g.Primary) == "" {
			return entryError("synonym group", i, "primary is required")
		}
	}
	return nil
}

func entryError(kind string, i int, msg string) error {
	return cerrors.ValidationError(fmt.Sprintf("%s %d: %s", kind, i+1, msg), nil).
		WithDetail("entry", fmt.Sprintf("%s[%d]", kind, i))
}

// Import loads a YAML song book into the library. Categories are created
// or, when they exist, get the book's priority. Songs are always created
// and indexed together in one batch at the end. Synonym groups, when
// present, replace the stored ones.
func (s *Service) Import(ctx context.Context, r io.Reader) (ImportStats, error) {
	start := time.Now()
	var stats ImportStats

	book, err := ParseSongBook(r)
	if err != nil {
		return stats, err
	}
	if err := book.Validate(); err != nil {
		return stats, err
	}

	categoryIDs, err := s.importCategories(ctx, book.Categories, &stats)
	if err != nil {
		return stats, err
	}

	ids := make([]int64, 0, len(book.Songs))
	for i, entry := range book.Songs {
		ns := store.NewSong{Title: strings.TrimSpace(entry.Title), Slides: entry.Slides}

		if name := strings.TrimSpace(entry.Category); name != "" {
			id, err := s.resolveCategory(ctx, name, categoryIDs)
			if err != nil {
				return stats, fmt.Errorf("song %d: %w", i+1, err)
			}
			ns.CategoryID = &id
		}

		song, err := s.db.CreateSong(ctx, ns)
		if err != nil {
			return stats, cerrors.StorageError(fmt.Sprintf("create song %q", ns.Title), err)
		}
		ids = append(ids, song.ID)
		stats.SongsCreated++
	}

	batch, err := s.writer.BatchIndex(ctx, ids)
	if err != nil {
		return stats, err
	}
	stats.SongsIndexed = batch.Indexed
	stats.SongsSkipped = batch.Skipped

	if len(book.Synonyms) > 0 {
		if err := s.SetSynonyms(ctx, book.Synonyms); err != nil {
			return stats, err
		}
		stats.SynonymGroups = len(book.Synonyms)
	}

	stats.Duration = time.Since(start)
	slog.Info("import_complete",
		slog.Int("categories_created", stats.CategoriesCreated),
		slog.Int("songs_created", stats.SongsCreated),
		slog.Int("songs_indexed", stats.SongsIndexed),
		slog.Int("songs_skipped", stats.SongsSkipped),
		slog.Duration("duration", stats.Duration))
	return stats, nil
}

// importCategories creates or updates the book's categories and returns
// their ids by name.
func (s *Service) importCategories(ctx context.Context, entries []CategoryEntry, stats *ImportStats) (map[string]int64, error) {
	ids := make(map[string]int64, len(entries))

	for _, entry := range entries {
		name := strings.TrimSpace(entry.Name)

		existing, err := s.db.GetCategoryByName(ctx, name)
		switch {
		case errors.Is(err, store.ErrNotFound):
			c, err := s.db.CreateCategory(ctx, store.NewCategory{Name: name, Priority: entry.Priority})
			if err != nil {
				return nil, cerrors.StorageError(fmt.Sprintf("create category %q", name), err)
			}
			ids[name] = c.ID
			stats.CategoriesCreated++
		case err != nil:
			return nil, cerrors.StorageError(fmt.Sprintf("category %q", name), err)
		default:
			ids[name] = existing.ID
			if entry.Priority > 0 && entry.Priority != existing.Priority {
				priority := entry.Priority
				if _, err := s.db.UpdateCategory(ctx, existing.ID, store.CategoryPatch{Priority: &priority}); err != nil {
					return nil, cerrors.StorageError(fmt.Sprintf("update category %q", name), err)
				}
				stats.CategoriesUpdated++
			}
		}
	}
	return ids, nil
}

// resolveCategory finds a category named by a song entry, first in the
// book, then in the library.
func (s *Service) resolveCategory(ctx context.Context, name string, known map[string]int64) (int64, error) {
	if id, ok := known[name]; ok {
		return id, nil
	}

	c, err := s.db.GetCategoryByName(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return 0, cerrors.New(cerrors.ErrCodeCategoryNotFound, fmt.Sprintf("category %q not found", name), err).
			WithSuggestion("Add the category to the categories list of the song book")
	}
	if err != nil {
		return 0, cerrors.StorageError(fmt.Sprintf("category %q", name), err)
	}
	known[name] = c.ID
	return c.ID, nil
}
