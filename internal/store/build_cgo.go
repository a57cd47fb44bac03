//go:build cgo_sqlite

package store

// CGO build against the bundled SQLite amalgamation.
//
//	CGO_ENABLED=1 go build -tags "cgo_sqlite sqlite_fts5" ./...
//
// The sqlite_fts5 tag is required: mattn/go-sqlite3 compiles FTS5 only
// when it is set.

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the database/sql driver registered by this build.
	DriverName = "sqlite3"

	// BuildMode describes the current build configuration.
	BuildMode = "cgo"
)
