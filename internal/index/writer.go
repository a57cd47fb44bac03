// Package index keeps the standard and fuzzy search indexes in step with
// the song library.
//
// Every Writer operation runs in a single transaction. Both indexes are
// updated together, so a reader never sees a song in one index and not
// the other. Commits that hit SQLITE_BUSY are replayed with exponential
// backoff.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	cerrors "github.com/Aman-CERP/cantor/internal/errors"
	"github.com/Aman-CERP/cantor/internal/store"
)

// BatchStats summarizes a multi-song index operation.
type BatchStats struct {
	Requested int
	Indexed   int
	// Removed counts ids with no song; their stale documents were deleted.
	Removed  int
	Skipped  int
	Duration time.Duration
}

// insertFunc matches store.InsertDocuments.
type insertFunc func(ctx context.Context, q store.Querier, docs []store.Document, fuzzy bool) error

// Writer maintains the search indexes.
type Writer struct {
	db      *store.DB
	retry   cerrors.RetryConfig
	insert  insertFunc
	chunkSz int
}

// Option configures a Writer.
type Option func(*Writer)

// WithRetryConfig overrides the busy-retry policy.
func WithRetryConfig(cfg cerrors.RetryConfig) Option {
	return func(w *Writer) {
		w.retry = cfg
	}
}

// WithChunkSize overrides the number of rows per multi-row insert.
func WithChunkSize(n int) Option {
	return func(w *Writer) {
		if n > 0 {
			w.chunkSz = n
		}
	}
}

// NewWriter returns a Writer over db.
func NewWriter(db *store.DB, opts ...Option) *Writer {
	w := &Writer{
		db:      db,
		retry:   cerrors.StorageRetryConfig(),
		insert:  store.InsertDocuments,
		chunkSz: store.MaxRowsPerInsert,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// IndexSong regenerates the documents of one song. A song that no longer
// exists is removed from both indexes and nil is returned.
func (w *Writer) IndexSong(ctx context.Context, songID int64) error {
	var missing bool

	err := w.inTx(ctx, func(q store.Querier) error {
		missing = false
		docs, err := store.LoadDocuments(ctx, q, []int64{songID})
		if err != nil {
			return err
		}
		if err := store.DeleteDocuments(ctx, q, []int64{songID}, w.db.FuzzyAvailable()); err != nil {
			return err
		}
		if len(docs) == 0 {
			missing = true
			return nil
		}
		return w.insert(ctx, q, docs, w.db.FuzzyAvailable())
	})
	if err != nil {
		return cerrors.New(cerrors.ErrCodeIndexFailed,
			fmt.Sprintf("failed to index song %d", songID), err)
	}

	if missing {
		slog.Info("index_song_missing", slog.Int64("song_id", songID))
	}
	return nil
}

// BatchIndex regenerates the documents of many songs with one bulk delete,
// one aggregated load and chunked multi-row inserts. A chunk that fails is
// retried row by row; rows that still fail are logged and skipped. The
// resulting index is the same as calling IndexSong for every id.
func (w *Writer) BatchIndex(ctx context.Context, songIDs []int64) (BatchStats, error) {
	ids := dedupe(songIDs)
	if len(ids) == 0 {
		return BatchStats{}, nil
	}

	start := time.Now()
	var stats BatchStats

	err := w.inTx(ctx, func(q store.Querier) error {
		stats = BatchStats{Requested: len(ids)}

		if err := store.DeleteDocuments(ctx, q, ids, w.db.FuzzyAvailable()); err != nil {
			return err
		}
		docs, err := store.LoadDocuments(ctx, q, ids)
		if err != nil {
			return err
		}
		stats.Removed = len(ids) - len(docs)

		return w.insertChunks(ctx, q, docs, &stats, false)
	})
	if err != nil {
		return BatchStats{}, cerrors.New(cerrors.ErrCodeIndexFailed,
			fmt.Sprintf("failed to index %d songs", len(ids)), err)
	}

	stats.Duration = time.Since(start)
	slog.Info("batch_index_complete",
		slog.Int("requested", stats.Requested),
		slog.Int("indexed", stats.Indexed),
		slog.Int("removed", stats.Removed),
		slog.Int("skipped", stats.Skipped),
		slog.Duration("duration", stats.Duration))
	return stats, nil
}

// RemoveSong deletes the song's documents from both indexes. Removing a
// song that is not indexed is not an error.
func (w *Writer) RemoveSong(ctx context.Context, songID int64) error {
	err := w.inTx(ctx, func(q store.Querier) error {
		return store.DeleteDocuments(ctx, q, []int64{songID}, w.db.FuzzyAvailable())
	})
	if err != nil {
		return cerrors.New(cerrors.ErrCodeIndexFailed,
			fmt.Sprintf("failed to remove song %d from index", songID), err)
	}
	return nil
}

// ReindexByCategory re-indexes every song currently in the category.
func (w *Writer) ReindexByCategory(ctx context.Context, categoryID int64) (BatchStats, error) {
	ids, err := w.db.SongIDsByCategory(ctx, categoryID)
	if err != nil {
		return BatchStats{}, cerrors.New(cerrors.ErrCodeIndexFailed,
			fmt.Sprintf("failed to list songs of category %d", categoryID), err)
	}
	return w.BatchIndex(ctx, ids)
}

// RebuildAll clears both indexes and regenerates every document in one
// transaction. Any failure, including a single row, rolls the whole
// rebuild back and the previous index is kept.
func (w *Writer) RebuildAll(ctx context.Context) (BatchStats, error) {
	start := time.Now()
	var stats BatchStats

	slog.Info("index_rebuild_started", slog.Bool("fuzzy", w.db.FuzzyAvailable()))

	err := w.inTx(ctx, func(q store.Querier) error {
		stats = BatchStats{}

		if err := store.ClearDocuments(ctx, q, w.db.FuzzyAvailable()); err != nil {
			return err
		}
		docs, err := store.LoadDocuments(ctx, q, nil)
		if err != nil {
			return err
		}
		stats.Requested = len(docs)

		return w.insertChunks(ctx, q, docs, &stats, true)
	})
	if err != nil {
		slog.Error("index_rebuild_failed", slog.String("error", err.Error()))
		return BatchStats{}, cerrors.New(cerrors.ErrCodeRebuildFailed, "index rebuild failed", err).
			WithSuggestion("The previous index was kept; check the log and retry 'cantor index rebuild'")
	}

	stats.Duration = time.Since(start)
	slog.Info("index_rebuild_complete",
		slog.Int("documents", stats.Indexed),
		slog.Duration("duration", stats.Duration))
	return stats, nil
}

// insertChunks writes docs in chunks, each inside a savepoint. In strict
// mode the first failure aborts; otherwise a failed chunk falls back to
// one row at a time.
func (w *Writer) insertChunks(ctx context.Context, q store.Querier, docs []store.Document, stats *BatchStats, strict bool) error {
	fuzzy := w.db.FuzzyAvailable()

	for start := 0; start < len(docs); start += w.chunkSz {
		chunk := docs[start:min(start+w.chunkSz, len(docs))]

		err := store.Savepoint(ctx, q, "index_chunk", func() error {
			return w.insert(ctx, q, chunk, fuzzy)
		})
		if err == nil {
			stats.Indexed += len(chunk)
			continue
		}
		if strict {
			return err
		}

		slog.Warn("index_chunk_failed",
			slog.Int("rows", len(chunk)),
			slog.String("error", err.Error()))

		for _, doc := range chunk {
			one := []store.Document{doc}
			rowErr := store.Savepoint(ctx, q, "index_row", func() error {
				return w.insert(ctx, q, one, fuzzy)
			})
			if rowErr != nil {
				slog.Warn("index_document_failed",
					slog.Int64("song_id", doc.SongID),
					slog.String("error", rowErr.Error()))
				stats.Skipped++
				continue
			}
			stats.Indexed++
		}
	}
	return nil
}

// inTx runs fn in a transaction, replaying it from scratch while the
// database reports busy.
func (w *Writer) inTx(ctx context.Context, fn func(store.Querier) error) error {
	return cerrors.RetryWhen(ctx, w.retry, cerrors.IsBusy, func() error {
		return w.db.WithTx(ctx, fn)
	})
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
