package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	cerrors "github.com/Aman-CERP/cantor/internal/errors"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrFuzzyUnavailable is returned by fuzzy operations when the trigram
	// table could not be created on this SQLite build.
	ErrFuzzyUnavailable = errors.New("fuzzy index unavailable")
)

const defaultCacheMB = 64

// Querier is implemented by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB is an open cantor database.
type DB struct {
	db    *sql.DB
	path  string
	fuzzy bool
}

type options struct {
	cacheMB int
}

// Option configures Open.
type Option func(*options)

// WithCacheMB sets the SQLite page cache size in megabytes.
func WithCacheMB(mb int) Option {
	return func(o *options) {
		if mb > 0 {
			o.cacheMB = mb
		}
	}
}

// Open opens (or creates) the database at path and applies pending
// migrations. An empty path opens a private in-memory database.
func Open(ctx context.Context, path string, opts ...Option) (*DB, error) {
	o := options{cacheMB: defaultCacheMB}
	for _, opt := range opts {
		opt(&o)
	}

	dsn := ":memory:"
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, cerrors.New(cerrors.ErrCodeDatabaseOpen,
				fmt.Sprintf("failed to create directory %s", dir), err)
		}

		if err := validateIntegrity(ctx, path); err != nil {
			slog.Error("database_corrupted",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return nil, cerrors.New(cerrors.ErrCodeCorruptIndex,
				fmt.Sprintf("database at %s failed integrity check", path), err).
				WithSuggestion("Restore the database from a backup, then run 'cantor index rebuild'")
		}
		dsn = path
	}

	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, cerrors.StorageError("failed to open database", err)
	}

	// One connection: a single writer, and :memory: stays one database
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// DSN parameters differ between drivers, so pragmas are set explicitly
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA cache_size = -%d", o.cacheMB*1024),
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, cerrors.StorageError("failed to set pragma", err)
		}
	}

	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, cerrors.New(cerrors.ErrCodeDatabaseOpen, "failed to apply migrations", err)
	}

	fuzzy, err := tableExists(ctx, db, fuzzyTable)
	if err != nil {
		_ = db.Close()
		return nil, cerrors.StorageError("failed to inspect schema", err)
	}

	return &DB{db: db, path: path, fuzzy: fuzzy}, nil
}

// validateIntegrity runs PRAGMA quick_check on an existing file, read-only.
// A missing file is fine; it will be created. A damaged file is left as it
// is: it holds the song library, which cannot be rebuilt from the indexes.
func validateIntegrity(ctx context.Context, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open(DriverName, "file:"+path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA quick_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

func tableExists(ctx context.Context, q Querier, name string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SQL exposes the underlying handle for packages that keep their own
// statements (telemetry).
func (d *DB) SQL() *sql.DB {
	return d.db
}

// Path returns the database file path, empty for in-memory databases.
func (d *DB) Path() string {
	return d.path
}

// FuzzyAvailable reports whether the trigram index exists.
func (d *DB) FuzzyAvailable() bool {
	return d.fuzzy
}

// Close checkpoints the WAL and closes the database.
func (d *DB) Close() error {
	if d.db == nil {
		return nil
	}
	if d.path != "" {
		_, _ = d.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	}
	err := d.db.Close()
	d.db = nil
	return err
}

// WithTx runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise. fn must use the Querier it is given:
// the pool has one connection and the transaction holds it.
func (d *DB) WithTx(ctx context.Context, fn func(Querier) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Savepoint runs fn inside a named savepoint of an open transaction.
// On error the work done by fn is rolled back and the transaction stays
// usable.
func Savepoint(ctx context.Context, q Querier, name string, fn func() error) error {
	if _, err := q.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("failed to open savepoint %s: %w", name, err)
	}

	if err := fn(); err != nil {
		_, _ = q.ExecContext(ctx, "ROLLBACK TO "+name)
		_, _ = q.ExecContext(ctx, "RELEASE "+name)
		return err
	}

	if _, err := q.ExecContext(ctx, "RELEASE "+name); err != nil {
		return fmt.Errorf("failed to release savepoint %s: %w", name, err)
	}
	return nil
}

// IsQuerySyntaxError reports whether err is an FTS5 query parse error.
func IsQuerySyntaxError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "fts5:") ||
		strings.Contains(msg, "syntax error") ||
		strings.Contains(msg, "unterminated string")
}

// placeholders returns "?,?,?" for n parameters.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
