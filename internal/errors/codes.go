// Package errors provides structured, coded errors for cantor.
//
// Codes read ERR_<number>_<NAME>. The first digit of the number is the
// category: 1 config, 2 storage, 4 validation, 5 internal.
package errors

import "strings"

// Category groups error codes by the first digit of their number.
type Category string

const (
	CategoryConfig     Category = "CONFIG"
	CategoryStorage    Category = "STORAGE"
	CategoryValidation Category = "VALIDATION"
	CategoryInternal   Category = "INTERNAL"
)

// Severity tells the caller whether it can go on after the error.
type Severity string

const (
	// SeverityFatal means the database can't be used until repaired.
	SeverityFatal Severity = "FATAL"
	// SeverityError means the operation failed.
	SeverityError Severity = "ERROR"
	// SeverityWarning means the operation ran with reduced results.
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

const (
	// Configuration and synonym settings
	ErrCodeConfigNotFound   = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    = "ERR_102_CONFIG_INVALID"
	ErrCodeConfigPermission = "ERR_103_CONFIG_PERMISSION"
	ErrCodeSynonymsInvalid  = "ERR_104_SYNONYMS_INVALID"

	// Database, song tables and FTS5 indexes
	ErrCodeDatabaseOpen      = "ERR_201_DATABASE_OPEN"
	ErrCodeDatabaseLocked    = "ERR_202_DATABASE_LOCKED"
	ErrCodeFuzzyIndexMissing = "ERR_203_FUZZY_INDEX_MISSING"
	ErrCodeSongNotFound      = "ERR_204_SONG_NOT_FOUND"
	ErrCodeCorruptIndex      = "ERR_205_CORRUPT_INDEX"
	ErrCodeCategoryNotFound  = "ERR_206_CATEGORY_NOT_FOUND"

	// Caller input and queries
	ErrCodeInvalidInput = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidQuery = "ERR_403_INVALID_QUERY"
	ErrCodeQueryEmpty   = "ERR_404_QUERY_EMPTY"

	// Search and indexing failures
	ErrCodeInternal      = "ERR_501_INTERNAL"
	ErrCodeSearchFailed  = "ERR_503_SEARCH_FAILED"
	ErrCodeIndexFailed   = "ERR_505_INDEX_FAILED"
	ErrCodeRebuildFailed = "ERR_506_REBUILD_FAILED"
)

var categoryByDigit = map[byte]Category{
	'1': CategoryConfig,
	'2': CategoryStorage,
	'4': CategoryValidation,
}

// categoryFromCode reads the category digit of code. Malformed codes are
// internal.
func categoryFromCode(code string) Category {
	if !strings.HasPrefix(code, "ERR_") || len(code) < 7 {
		return CategoryInternal
	}
	if c, ok := categoryByDigit[code[4]]; ok {
		return c
	}
	return CategoryInternal
}

func severityFromCode(code string) Severity {
	switch {
	case code == ErrCodeCorruptIndex:
		return SeverityFatal
	case code == ErrCodeSynonymsInvalid, code == ErrCodeFuzzyIndexMissing:
		// search still runs without synonyms or the trigram index
		return SeverityWarning
	case isRetryableCode(code):
		return SeverityWarning
	default:
		return SeverityError
	}
}

// isRetryableCode reports codes worth retrying after a backoff.
func isRetryableCode(code string) bool {
	return code == ErrCodeDatabaseLocked
}
