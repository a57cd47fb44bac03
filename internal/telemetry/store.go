package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// MaxZeroResultQueries is how many zero-result queries the store keeps.
const MaxZeroResultQueries = 100

// SQLiteMetricsStore implements QueryMetricsStore on the song database.
// The tables are created by the store migrations.
type SQLiteMetricsStore struct {
	db *sql.DB
}

// NewSQLiteMetricsStore returns a store over db. The connection is shared
// and not closed by the store.
func NewSQLiteMetricsStore(db *sql.DB) (*SQLiteMetricsStore, error) {
	if db == nil {
		return nil, errors.New("database connection is required")
	}
	return &SQLiteMetricsStore{db: db}, nil
}

// SaveQueryTypeCounts adds counts to the given day.
func (s *SQLiteMetricsStore) SaveQueryTypeCounts(ctx context.Context, date string, counts map[QueryType]int64) error {
	if len(counts) == 0 {
		return nil
	}
	rows := make(map[string]int64, len(counts))
	for qt, n := range counts {
		rows[string(qt)] = n
	}
	return s.upsertDaily(ctx, `
		INSERT INTO query_type_stats (date, query_type, count)
		VALUES (?, ?, ?)
		ON CONFLICT(date, query_type) DO UPDATE SET count = count + excluded.count
	`, date, rows)
}

// GetQueryTypeCounts sums counts over an inclusive date range.
func (s *SQLiteMetricsStore) GetQueryTypeCounts(ctx context.Context, from, to string) (map[QueryType]int64, error) {
	sums, err := s.sumDaily(ctx, `
		SELECT query_type, SUM(count)
		FROM query_type_stats
		WHERE date >= ? AND date <= ?
		GROUP BY query_type
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query type counts: %w", err)
	}

	counts := make(map[QueryType]int64, len(sums))
	for k, v := range sums {
		counts[QueryType(k)] = v
	}
	return counts, nil
}

// UpsertTermCounts adds to the all-time term counts.
func (s *SQLiteMetricsStore) UpsertTermCounts(ctx context.Context, terms map[string]int64) error {
	if len(terms) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO query_terms (term, count, last_seen)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(term) DO UPDATE SET
			count = count + excluded.count,
			last_seen = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for term, count := range terms {
		if _, err := stmt.ExecContext(ctx, term, count); err != nil {
			return fmt.Errorf("upsert term count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetTopTerms returns the most searched terms, count descending.
func (s *SQLiteMetricsStore) GetTopTerms(ctx context.Context, limit int) ([]TermCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT term, count
		FROM query_terms
		ORDER BY count DESC, term ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query top terms: %w", err)
	}
	defer rows.Close()

	var terms []TermCount
	for rows.Next() {
		var tc TermCount
		if err := rows.Scan(&tc.Term, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		terms = append(terms, tc)
	}
	return terms, rows.Err()
}

// AddZeroResultQuery appends query and trims the log to the newest
// MaxZeroResultQueries rows.
func (s *SQLiteMetricsStore) AddZeroResultQuery(ctx context.Context, query string, timestamp time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO zero_result_queries (query, timestamp)
		VALUES (?, ?)
	`, query, timestamp.UTC()); err != nil {
		return fmt.Errorf("insert zero-result query: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM zero_result_queries
		WHERE id NOT IN (
			SELECT id FROM zero_result_queries
			ORDER BY id DESC
			LIMIT ?
		)
	`, MaxZeroResultQueries); err != nil {
		return fmt.Errorf("trim zero-result queries: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetZeroResultQueries returns the latest zero-result queries, newest first.
func (s *SQLiteMetricsStore) GetZeroResultQueries(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT query
		FROM zero_result_queries
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query zero-result queries: %w", err)
	}
	defer rows.Close()

	var queries []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

// SaveLatencyCounts adds counts to the given day.
func (s *SQLiteMetricsStore) SaveLatencyCounts(ctx context.Context, date string, counts map[LatencyBucket]int64) error {
	if len(counts) == 0 {
		return nil
	}
	rows := make(map[string]int64, len(counts))
	for b, n := range counts {
		rows[string(b)] = n
	}
	return s.upsertDaily(ctx, `
		INSERT INTO query_latency_stats (date, bucket, count)
		VALUES (?, ?, ?)
		ON CONFLICT(date, bucket) DO UPDATE SET count = count + excluded.count
	`, date, rows)
}

// GetLatencyCounts sums counts over an inclusive date range.
func (s *SQLiteMetricsStore) GetLatencyCounts(ctx context.Context, from, to string) (map[LatencyBucket]int64, error) {
	sums, err := s.sumDaily(ctx, `
		SELECT bucket, SUM(count)
		FROM query_latency_stats
		WHERE date >= ? AND date <= ?
		GROUP BY bucket
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query latency counts: %w", err)
	}

	counts := make(map[LatencyBucket]int64, len(sums))
	for k, v := range sums {
		counts[LatencyBucket(k)] = v
	}
	return counts, nil
}

// upsertDaily runs an (date, key, count) upsert for every row in one
// transaction.
func (s *SQLiteMetricsStore) upsertDaily(ctx context.Context, query, date string, rows map[string]int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for key, count := range rows {
		if _, err := stmt.ExecContext(ctx, date, key, count); err != nil {
			return fmt.Errorf("upsert %s count: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteMetricsStore) sumDaily(ctx context.Context, query, from, to string) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sums := make(map[string]int64)
	for rows.Next() {
		var key string
		var total int64
		if err := rows.Scan(&key, &total); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		sums[key] = total
	}
	return sums, rows.Err()
}

var _ QueryMetricsStore = (*SQLiteMetricsStore)(nil)
