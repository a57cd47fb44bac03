package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Category operations

// CreateCategory inserts a category and returns it.
func (d *DB) CreateCategory(ctx context.Context, nc NewCategory) (*Category, error) {
	priority := nc.Priority
	if priority < 1 {
		priority = 1
	}

	now := time.Now().UTC()
	result, err := d.db.ExecContext(ctx, `
		INSERT INTO categories (name, priority, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, nc.Name, priority, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create category %q: %w", nc.Name, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Category{ID: id, Name: nc.Name, Priority: priority, CreatedAt: now, UpdatedAt: now}, nil
}

// GetCategory returns the category with id, or ErrNotFound.
func (d *DB) GetCategory(ctx context.Context, id int64) (*Category, error) {
	var c Category
	err := d.db.QueryRowContext(ctx, `
		SELECT id, name, priority, created_at, updated_at
		FROM categories WHERE id = ?
	`, id).Scan(&c.ID, &c.Name, &c.Priority, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category %d: %w", id, err)
	}
	return &c, nil
}

// GetCategoryByName returns the category named name, or ErrNotFound.
func (d *DB) GetCategoryByName(ctx context.Context, name string) (*Category, error) {
	var c Category
	err := d.db.QueryRowContext(ctx, `
		SELECT id, name, priority, created_at, updated_at
		FROM categories WHERE name = ?
	`, name).Scan(&c.ID, &c.Name, &c.Priority, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category %q: %w", name, err)
	}
	return &c, nil
}

// ListCategories returns all categories ordered by priority desc, then name.
func (d *DB) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, name, priority, created_at, updated_at
		FROM categories
		ORDER BY priority DESC, name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Priority, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// UpdateCategory applies patch to the category with id.
func (d *DB) UpdateCategory(ctx context.Context, id int64, patch CategoryPatch) (*Category, error) {
	c, err := d.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		c.Name = *patch.Name
	}
	if patch.Priority != nil {
		c.Priority = *patch.Priority
		if c.Priority < 1 {
			c.Priority = 1
		}
	}
	c.UpdatedAt = time.Now().UTC()

	_, err = d.db.ExecContext(ctx, `
		UPDATE categories SET name = ?, priority = ?, updated_at = ? WHERE id = ?
	`, c.Name, c.Priority, c.UpdatedAt, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update category %d: %w", id, err)
	}
	return c, nil
}

// DeleteCategory deletes the category. Its songs become uncategorized.
func (d *DB) DeleteCategory(ctx context.Context, id int64) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category %d: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("category %d: %w", id, ErrNotFound)
	}
	return nil
}

// Song operations

// CreateSong inserts a song with its slides in one transaction.
func (d *DB) CreateSong(ctx context.Context, ns NewSong) (*Song, error) {
	now := time.Now().UTC()
	song := &Song{Title: ns.Title, CategoryID: ns.CategoryID, CreatedAt: now, UpdatedAt: now}

	err := d.WithTx(ctx, func(q Querier) error {
		result, err := q.ExecContext(ctx, `
			INSERT INTO songs (title, category_id, created_at, updated_at)
			VALUES (?, ?, ?, ?)
		`, ns.Title, nullInt64(ns.CategoryID), now, now)
		if err != nil {
			return fmt.Errorf("failed to create song %q: %w", ns.Title, err)
		}

		song.ID, err = result.LastInsertId()
		if err != nil {
			return err
		}

		song.Slides, err = insertSlides(ctx, q, song.ID, ns.Slides)
		return err
	})
	if err != nil {
		return nil, err
	}
	return song, nil
}

// GetSong returns the song with its slides, or ErrNotFound.
func (d *DB) GetSong(ctx context.Context, id int64) (*Song, error) {
	var (
		s          Song
		categoryID sql.NullInt64
	)
	err := d.db.QueryRowContext(ctx, `
		SELECT id, title, category_id, presentation_count, created_at, updated_at
		FROM songs WHERE id = ?
	`, id).Scan(&s.ID, &s.Title, &categoryID, &s.PresentationCount, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("song %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get song %d: %w", id, err)
	}
	if categoryID.Valid {
		s.CategoryID = &categoryID.Int64
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, sort_order, content FROM song_slides
		WHERE song_id = ? ORDER BY sort_order, id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load slides for song %d: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var sl Slide
		if err := rows.Scan(&sl.ID, &sl.SortOrder, &sl.Content); err != nil {
			return nil, fmt.Errorf("failed to scan slide: %w", err)
		}
		s.Slides = append(s.Slides, sl)
	}
	return &s, rows.Err()
}

// UpdateSong applies patch to the song with id in one transaction.
// Replacing slides replaces the whole ordered list.
func (d *DB) UpdateSong(ctx context.Context, id int64, patch SongPatch) error {
	return d.WithTx(ctx, func(q Querier) error {
		var exists int
		err := q.QueryRowContext(ctx, `SELECT 1 FROM songs WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("song %d: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to get song %d: %w", id, err)
		}

		now := time.Now().UTC()
		if patch.Title != nil {
			if _, err := q.ExecContext(ctx,
				`UPDATE songs SET title = ?, updated_at = ? WHERE id = ?`, *patch.Title, now, id); err != nil {
				return fmt.Errorf("failed to update title of song %d: %w", id, err)
			}
		}

		switch {
		case patch.ClearCategory:
			if _, err := q.ExecContext(ctx,
				`UPDATE songs SET category_id = NULL, updated_at = ? WHERE id = ?`, now, id); err != nil {
				return fmt.Errorf("failed to clear category of song %d: %w", id, err)
			}
		case patch.CategoryID != nil:
			if _, err := q.ExecContext(ctx,
				`UPDATE songs SET category_id = ?, updated_at = ? WHERE id = ?`, *patch.CategoryID, now, id); err != nil {
				return fmt.Errorf("failed to update category of song %d: %w", id, err)
			}
		}

		if patch.Slides != nil {
			if _, err := q.ExecContext(ctx, `DELETE FROM song_slides WHERE song_id = ?`, id); err != nil {
				return fmt.Errorf("failed to clear slides of song %d: %w", id, err)
			}
			if _, err := insertSlides(ctx, q, id, *patch.Slides); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteSong deletes the song and its slides.
func (d *DB) DeleteSong(ctx context.Context, id int64) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM songs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete song %d: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("song %d: %w", id, ErrNotFound)
	}
	return nil
}

// IncrementPresentationCount records that the song was shown.
func (d *DB) IncrementPresentationCount(ctx context.Context, id int64) error {
	result, err := d.db.ExecContext(ctx,
		`UPDATE songs SET presentation_count = presentation_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to increment presentation count of song %d: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("song %d: %w", id, ErrNotFound)
	}
	return nil
}

// SongIDsByCategory returns the ids of every song in the category.
func SongIDsByCategory(ctx context.Context, q Querier, categoryID int64) ([]int64, error) {
	return queryIDs(ctx, q, `SELECT id FROM songs WHERE category_id = ? ORDER BY id`, categoryID)
}

// AllSongIDs returns the ids of every song.
func AllSongIDs(ctx context.Context, q Querier) ([]int64, error) {
	return queryIDs(ctx, q, `SELECT id FROM songs ORDER BY id`)
}

// SongCount returns the number of songs.
func SongCount(ctx context.Context, q Querier) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM songs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count songs: %w", err)
	}
	return n, nil
}

// SongIDsByCategory returns the ids of every song in the category.
func (d *DB) SongIDsByCategory(ctx context.Context, categoryID int64) ([]int64, error) {
	return SongIDsByCategory(ctx, d.db, categoryID)
}

// AllSongIDs returns the ids of every song.
func (d *DB) AllSongIDs(ctx context.Context) ([]int64, error) {
	return AllSongIDs(ctx, d.db)
}

func queryIDs(ctx context.Context, q Querier, query string, args ...any) ([]int64, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query song ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan song id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func insertSlides(ctx context.Context, q Querier, songID int64, contents []string) ([]Slide, error) {
	slides := make([]Slide, 0, len(contents))
	for i, content := range contents {
		result, err := q.ExecContext(ctx, `
			INSERT INTO song_slides (song_id, sort_order, content) VALUES (?, ?, ?)
		`, songID, i, content)
		if err != nil {
			return nil, fmt.Errorf("failed to insert slide %d of song %d: %w", i, songID, err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return nil, err
		}
		slides = append(slides, Slide{ID: id, SortOrder: i, Content: content})
	}
	return slides, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
