// Package store is the SQLite persistence layer for cantor.
//
// It owns three groups of tables:
//
//   - the song library: categories, songs, song_slides and app_settings
//   - the search indexes: songs_fts (unicode61, diacritics removed) and
//     songs_fts_trigram (trigram, normalized text) keyed by song id
//   - local telemetry aggregates
//
// The schema is versioned with semantic versions and applied on Open.
// All access goes through a single connection in WAL mode; callers that
// need several statements to commit together use DB.WithTx and the
// Querier it hands them.
package store
