package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Masterminds/semver/v3"
)

const (
	// CurrentSchemaVersion tracks the database schema version
	CurrentSchemaVersion = "1.2.0"

	standardTable = "songs_fts"
	fuzzyTable    = "songs_fts_trigram"
)

// Migration represents a database schema migration.
// An Optional migration may fail without failing Open; it is then
// skipped and not recorded.
type Migration struct {
	Version  string
	Up       string
	Down     string
	Optional bool
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      migrationV1Up,
		Down:    migrationV1Down,
	},
	{
		Version:  "1.1.0",
		Up:       migrationV11Up,
		Down:     migrationV11Down,
		Optional: true,
	},
	{
		Version: "1.2.0",
		Up:      migrationV12Up,
		Down:    migrationV12Down,
	},
}

const migrationV1Up = `
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS categories (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    priority INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS songs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    category_id INTEGER REFERENCES categories(id) ON DELETE SET NULL,
    presentation_count INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_songs_category ON songs(category_id);

CREATE TABLE IF NOT EXISTS song_slides (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    song_id INTEGER NOT NULL REFERENCES songs(id) ON DELETE CASCADE,
    sort_order INTEGER NOT NULL,
    content TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_song_slides_song ON song_slides(song_id, sort_order);

CREATE TABLE IF NOT EXISTS app_settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Standard index: rowid is the song id
CREATE VIRTUAL TABLE IF NOT EXISTS songs_fts USING fts5(
    title,
    category_name,
    content,
    tokenize = 'unicode61 remove_diacritics 2'
);
`

const migrationV1Down = `
DROP TABLE IF EXISTS songs_fts;
DROP TABLE IF EXISTS app_settings;
DROP TABLE IF EXISTS song_slides;
DROP TABLE IF EXISTS songs;
DROP TABLE IF EXISTS categories;
DROP TABLE IF EXISTS schema_version;
`

// Fuzzy index: title and content are stored normalized
const migrationV11Up = `
CREATE VIRTUAL TABLE IF NOT EXISTS songs_fts_trigram USING fts5(
    title,
    content,
    tokenize = 'trigram'
);
`

const migrationV11Down = `
DROP TABLE IF EXISTS songs_fts_trigram;
`

const migrationV12Up = `
-- Query type frequency (aggregated daily)
CREATE TABLE IF NOT EXISTS query_type_stats (
    date TEXT NOT NULL,
    query_type TEXT NOT NULL,
    count INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (date, query_type)
);

CREATE TABLE IF NOT EXISTS query_terms (
    term TEXT PRIMARY KEY,
    count INTEGER NOT NULL DEFAULT 1,
    last_seen TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_query_terms_count ON query_terms(count DESC);

-- Bounded to the most recent 100 rows by the writer
CREATE TABLE IF NOT EXISTS zero_result_queries (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    query TEXT NOT NULL,
    timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS query_latency_stats (
    date TEXT NOT NULL,
    bucket TEXT NOT NULL,
    count INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (date, bucket)
);
`

const migrationV12Down = `
DROP TABLE IF EXISTS query_latency_stats;
DROP TABLE IF EXISTS zero_result_queries;
DROP TABLE IF EXISTS query_terms;
DROP TABLE IF EXISTS query_type_stats;
`

// ApplyMigrations runs all pending migrations, each in its own transaction.
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	currentVersion, err := SchemaVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, migration := range AllMigrations {
		migrationVersion, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}

		if !currentVersion.LessThan(migrationVersion) {
			continue
		}

		err = applyMigration(ctx, db, migration)
		if err != nil && migration.Optional {
			slog.Warn("fuzzy_index_unavailable",
				slog.String("migration", migration.Version),
				slog.String("error", err.Error()))
			continue
		}
		if err != nil {
			return err
		}

		currentVersion = migrationVersion
	}

	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, migration Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration %s: %w", migration.Version, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, migration.Up); err != nil {
		return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
	}

	return tx.Commit()
}

// SchemaVersion returns the highest applied schema version, or 0.0.0 for
// an empty database.
func SchemaVersion(ctx context.Context, q Querier) (*semver.Version, error) {
	zero := semver.MustParse("0.0.0")

	exists, err := tableExists(ctx, q, "schema_version")
	if err != nil {
		return nil, fmt.Errorf("failed to check schema_version table: %w", err)
	}
	if !exists {
		return zero, nil
	}

	rows, err := q.QueryContext(ctx, "SELECT version FROM schema_version")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_version: %w", err)
	}
	defer rows.Close()

	// applied_at has second resolution, so the max is taken by version
	current := zero
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan schema_version: %w", err)
		}
		v, err := semver.NewVersion(s)
		if err != nil {
			return nil, fmt.Errorf("invalid schema version %s: %w", s, err)
		}
		if v.GreaterThan(current) {
			current = v
		}
	}
	return current, rows.Err()
}

// RollbackMigration rolls back the most recent migration
func RollbackMigration(ctx context.Context, db *sql.DB) error {
	current, err := SchemaVersion(ctx, db)
	if err != nil {
		return err
	}

	var migration *Migration
	for i := range AllMigrations {
		v := semver.MustParse(AllMigrations[i].Version)
		if v.Equal(current) {
			migration = &AllMigrations[i]
			break
		}
	}
	if migration == nil {
		return fmt.Errorf("migration %s not found", current)
	}

	if _, err := db.ExecContext(ctx, migration.Down); err != nil {
		return fmt.Errorf("failed to rollback migration %s: %w", migration.Version, err)
	}

	if migration.Version == "1.0.0" {
		// schema_version itself was dropped
		return nil
	}
	if _, err := db.ExecContext(ctx,
		"DELETE FROM schema_version WHERE version = ?", migration.Version); err != nil {
		return fmt.Errorf("failed to remove migration record %s: %w", migration.Version, err)
	}
	return nil
}
