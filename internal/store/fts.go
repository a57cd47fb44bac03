package store

import (
	"context"
	"fmt"
	"html"
	"strings"
)

// MaxRowsPerInsert bounds multi-row inserts so a statement stays well
// under SQLite's bound-variable limit (four columns per row).
const MaxRowsPerInsert = 200

// maxIDsPerStatement bounds IN (...) lists.
const maxIDsPerStatement = 500

// slideContent rebuilds the raw text of song s from its slides. The
// indexes hold stripped text, so snippets read the slides instead.
const slideContent = `COALESCE((SELECT group_concat(sl.content, char(10) ORDER BY sl.sort_order, sl.id)
		                 FROM song_slides sl WHERE sl.song_id = s.id), '')`

// Highlight markers used inside SQL; the title is escaped before they
// become <mark> tags.
const (
	hlOpen  = "\x02"
	hlClose = "\x03"
)

var highlightTags = strings.NewReplacer(hlOpen, "<mark>", hlClose, "</mark>")

// LoadDocuments builds the searchable documents for ids in one aggregated
// query per chunk. Nil ids loads every song. Ids without a song are absent
// from the result. Documents are ordered by song id.
func LoadDocuments(ctx context.Context, q Querier, ids []int64) ([]Document, error) {
	const base = `
		SELECT s.id, s.title, c.name, COALESCE(c.priority, 1),
		       ` + slideContent + `
		FROM songs s
		LEFT JOIN categories c ON c.id = s.category_id
	`

	if ids == nil {
		return scanDocuments(ctx, q, base+` ORDER BY s.id`)
	}

	var docs []Document
	for _, chunk := range chunkIDs(ids, maxIDsPerStatement) {
		query := base + fmt.Sprintf(` WHERE s.id IN (%s) ORDER BY s.id`, placeholders(len(chunk)))
		part, err := scanDocuments(ctx, q, query, int64Args(chunk)...)
		if err != nil {
			return nil, err
		}
		docs = append(docs, part...)
	}
	return docs, nil
}

func scanDocuments(ctx context.Context, q Querier, query string, args ...any) ([]Document, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.SongID, &doc.Title, &doc.CategoryName,
			&doc.CategoryPriority, &doc.Content); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// InsertDocuments writes docs to the standard index, with markup stripped
// from the content, and, when fuzzy is set, their normalized shadows to the
// trigram index. Each index gets one multi-row INSERT; callers chunk by
// MaxRowsPerInsert.
func InsertDocuments(ctx context.Context, q Querier, docs []Document, fuzzy bool) error {
	if len(docs) == 0 {
		return nil
	}

	rows := make([]string, len(docs))
	args := make([]any, 0, len(docs)*4)
	for i, doc := range docs {
		rows[i] = "(?, ?, ?, ?)"
		args = append(args, doc.SongID, doc.Title, doc.CategoryName, doc.IndexedContent())
	}
	query := fmt.Sprintf(`INSERT INTO %s (rowid, title, category_name, content) VALUES %s`,
		standardTable, strings.Join(rows, ", "))
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert standard documents: %w", err)
	}

	if !fuzzy {
		return nil
	}

	rows = rows[:0]
	args = args[:0]
	for _, doc := range docs {
		fd := doc.Fuzzy()
		rows = append(rows, "(?, ?, ?)")
		args = append(args, fd.SongID, fd.Title, fd.Content)
	}
	query = fmt.Sprintf(`INSERT INTO %s (rowid, title, content) VALUES %s`,
		fuzzyTable, strings.Join(rows, ", "))
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert fuzzy documents: %w", err)
	}
	return nil
}

// DeleteDocuments removes the documents for ids from the standard index
// and, when fuzzy is set, from the trigram index. Missing ids are ignored.
func DeleteDocuments(ctx context.Context, q Querier, ids []int64, fuzzy bool) error {
	tables := []string{standardTable}
	if fuzzy {
		tables = append(tables, fuzzyTable)
	}

	for _, chunk := range chunkIDs(ids, maxIDsPerStatement) {
		args := int64Args(chunk)
		for _, table := range tables {
			query := fmt.Sprintf(`DELETE FROM %s WHERE rowid IN (%s)`, table, placeholders(len(chunk)))
			if _, err := q.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("failed to delete from %s: %w", table, err)
			}
		}
	}
	return nil
}

// ClearDocuments empties the standard index and, when fuzzy is set, the
// trigram index.
func ClearDocuments(ctx context.Context, q Querier, fuzzy bool) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM `+standardTable); err != nil {
		return fmt.Errorf("failed to clear %s: %w", standardTable, err)
	}
	if fuzzy {
		if _, err := q.ExecContext(ctx, `DELETE FROM `+fuzzyTable); err != nil {
			return fmt.Errorf("failed to clear %s: %w", fuzzyTable, err)
		}
	}
	return nil
}

// DocumentCount returns the number of rows in each index. The fuzzy count
// is zero when the trigram table is unavailable.
func (d *DB) DocumentCount(ctx context.Context) (standard, fuzzy int, err error) {
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+standardTable).Scan(&standard); err != nil {
		return 0, 0, fmt.Errorf("failed to count %s: %w", standardTable, err)
	}
	if d.fuzzy {
		if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+fuzzyTable).Scan(&fuzzy); err != nil {
			return 0, 0, fmt.Errorf("failed to count %s: %w", fuzzyTable, err)
		}
	}
	return standard, fuzzy, nil
}

// IndexedSongIDs returns the song ids present in each index. The fuzzy
// list is nil when the trigram table is unavailable.
func (d *DB) IndexedSongIDs(ctx context.Context) (standard, fuzzy []int64, err error) {
	if standard, err = queryIDs(ctx, d.db, `SELECT rowid FROM `+standardTable+` ORDER BY rowid`); err != nil {
		return nil, nil, err
	}
	if d.fuzzy {
		if fuzzy, err = queryIDs(ctx, d.db, `SELECT rowid FROM `+fuzzyTable+` ORDER BY rowid`); err != nil {
			return nil, nil, err
		}
	}
	return standard, fuzzy, nil
}

// Status reports index health for `cantor index status`.
func (d *DB) Status(ctx context.Context) (*IndexStatus, error) {
	st := &IndexStatus{
		FuzzyAvailable: d.fuzzy,
		BuildMode:      BuildMode,
		DatabasePath:   d.path,
	}

	var err error
	if st.Songs, err = SongCount(ctx, d.db); err != nil {
		return nil, err
	}
	if st.StandardDocs, st.FuzzyDocs, err = d.DocumentCount(ctx); err != nil {
		return nil, err
	}

	version, err := SchemaVersion(ctx, d.db)
	if err != nil {
		return nil, err
	}
	st.SchemaVersion = version.String()

	// FTS5 integrity-check fails with SQLITE_CORRUPT_VTAB on a damaged index
	_, err = d.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s(%s) VALUES ('integrity-check')`, standardTable, standardTable))
	st.StandardHealthy = err == nil

	return st, nil
}

// MatchStandard runs match against the standard index, best rank first.
// The title is HTML-escaped and carries <mark> highlights from FTS5
// highlight(). Content is the raw slide text.
func (d *DB) MatchStandard(ctx context.Context, match string, opts MatchOptions) ([]Match, error) {
	filter, args := categoryFilter(opts.CategoryID)
	query := fmt.Sprintf(`
		SELECT m.song_id, s.title, m.hl_title, s.category_id, c.name,
		       COALESCE(c.priority, 1), s.presentation_count, %s, m.rank
		FROM (
			SELECT rowid AS song_id,
			       highlight(songs_fts, 0, char(2), char(3)) AS hl_title,
			       rank
			FROM songs_fts
			WHERE songs_fts MATCH ?%s
			ORDER BY rank
			LIMIT ?
		) m
		JOIN songs s ON s.id = m.song_id
		LEFT JOIN categories c ON c.id = s.category_id
		ORDER BY m.rank, m.song_id
	`, slideContent, filter)

	params := append([]any{match}, args...)
	params = append(params, limitOrDefault(opts.Limit))
	matches, err := d.queryMatches(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	for i := range matches {
		matches[i].HighlightedTitle = highlightTags.Replace(html.EscapeString(matches[i].HighlightedTitle))
	}
	return matches, nil
}

// MatchFuzzy runs match against the trigram index, best rank first.
// Content is the raw slide text. Titles carry no highlight.
func (d *DB) MatchFuzzy(ctx context.Context, match string, opts MatchOptions) ([]Match, error) {
	if !d.fuzzy {
		return nil, ErrFuzzyUnavailable
	}

	filter, args := categoryFilter(opts.CategoryID)
	query := fmt.Sprintf(`
		SELECT m.song_id, s.title, '', s.category_id, c.name,
		       COALESCE(c.priority, 1), s.presentation_count, %s, m.rank
		FROM (
			SELECT rowid AS song_id, rank
			FROM songs_fts_trigram
			WHERE songs_fts_trigram MATCH ?%s
			ORDER BY rank
			LIMIT ?
		) m
		JOIN songs s ON s.id = m.song_id
		LEFT JOIN categories c ON c.id = s.category_id
		ORDER BY m.rank, m.song_id
	`, slideContent, filter)

	params := append([]any{match}, args...)
	params = append(params, limitOrDefault(opts.Limit))
	return d.queryMatches(ctx, query, params...)
}

// CountMatches returns the number of standard-index documents matching.
func (d *DB) CountMatches(ctx context.Context, match string) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM songs_fts WHERE songs_fts MATCH ?`, match).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count matches: %w", err)
	}
	return n, nil
}

func (d *DB) queryMatches(ctx context.Context, query string, args ...any) ([]Match, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.SongID, &m.Title, &m.HighlightedTitle, &m.CategoryID,
			&m.CategoryName, &m.CategoryPriority, &m.PresentationCount, &m.Content, &m.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func categoryFilter(categoryID *int64) (string, []any) {
	if categoryID == nil {
		return "", nil
	}
	return ` AND rowid IN (SELECT id FROM songs WHERE category_id = ?)`, []any{*categoryID}
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return -1 // no limit
	}
	return limit
}

func chunkIDs(ids []int64, size int) [][]int64 {
	var chunks [][]int64
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
