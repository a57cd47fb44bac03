package index

import (
	"context"
	"log/slog"
	"time"

	"github.com/Aman-CERP/cantor/internal/store"
)

// InconsistencyType categorizes detected issues.
type InconsistencyType int

const (
	// InconsistencyOrphanStandard is a standard index document without a song.
	InconsistencyOrphanStandard InconsistencyType = iota
	// InconsistencyOrphanFuzzy is a trigram index document without a song.
	InconsistencyOrphanFuzzy
	// InconsistencyMissingStandard is a song without a standard document.
	InconsistencyMissingStandard
	// InconsistencyMissingFuzzy is a song without a trigram document.
	InconsistencyMissingFuzzy
)

// String returns a short name for the inconsistency type.
func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyOrphanStandard:
		return "orphan_standard"
	case InconsistencyOrphanFuzzy:
		return "orphan_fuzzy"
	case InconsistencyMissingStandard:
		return "missing_standard"
	case InconsistencyMissingFuzzy:
		return "missing_fuzzy"
	default:
		return "unknown"
	}
}

// MarshalText lets the type print by name in JSON output.
func (t InconsistencyType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Inconsistency is one song whose index documents disagree with the
// song table.
type Inconsistency struct {
	Type   InconsistencyType `json:"type"`
	SongID int64             `json:"song_id"`
}

// CheckResult is the outcome of a consistency check.
type CheckResult struct {
	// Checked is the number of songs verified.
	Checked         int             `json:"checked"`
	Inconsistencies []Inconsistency `json:"inconsistencies"`
	Duration        time.Duration   `json:"duration"`
}

// Consistent reports whether no issue was found.
func (r *CheckResult) Consistent() bool {
	return len(r.Inconsistencies) == 0
}

// RepairStats summarizes a repair.
type RepairStats struct {
	OrphansRemoved int `json:"orphans_removed"`
	SongsIndexed   int `json:"songs_indexed"`
	SongsSkipped   int `json:"songs_skipped"`
}

// ConsistencyChecker compares the song table, which is the source of
// truth, with the documents of both indexes.
type ConsistencyChecker struct {
	db     *store.DB
	writer *Writer
}

// NewConsistencyChecker returns a checker that repairs through writer.
func NewConsistencyChecker(db *store.DB, writer *Writer) *ConsistencyChecker {
	return &ConsistencyChecker{db: db, writer: writer}
}

// Check lists orphaned and missing documents. Issues are ordered by type,
// then song id.
func (c *ConsistencyChecker) Check(ctx context.Context) (*CheckResult, error) {
	start := time.Now()

	songIDs, err := c.db.AllSongIDs(ctx)
	if err != nil {
		return nil, err
	}
	standardIDs, fuzzyIDs, err := c.db.IndexedSongIDs(ctx)
	if err != nil {
		return nil, err
	}

	songs := idSet(songIDs)
	var issues []Inconsistency

	issues = appendMissing(issues, InconsistencyOrphanStandard, standardIDs, songs)
	if c.db.FuzzyAvailable() {
		issues = appendMissing(issues, InconsistencyOrphanFuzzy, fuzzyIDs, songs)
	}
	issues = appendMissing(issues, InconsistencyMissingStandard, songIDs, idSet(standardIDs))
	if c.db.FuzzyAvailable() {
		issues = appendMissing(issues, InconsistencyMissingFuzzy, songIDs, idSet(fuzzyIDs))
	}

	result := &CheckResult{
		Checked:         len(songIDs),
		Inconsistencies: issues,
		Duration:        time.Since(start),
	}
	if !result.Consistent() {
		slog.Warn("index_inconsistent",
			slog.Int("songs", len(songIDs)),
			slog.Int("issues", len(issues)))
	}
	return result, nil
}

// Repair removes orphaned documents and reindexes songs with a missing
// document.
func (c *ConsistencyChecker) Repair(ctx context.Context, issues []Inconsistency) (RepairStats, error) {
	var stats RepairStats
	var orphans, missing []int64

	for _, issue := range issues {
		switch issue.Type {
		case InconsistencyOrphanStandard, InconsistencyOrphanFuzzy:
			orphans = append(orphans, issue.SongID)
		case InconsistencyMissingStandard, InconsistencyMissingFuzzy:
			missing = append(missing, issue.SongID)
		}
	}

	for _, id := range dedupe(orphans) {
		if err := c.writer.RemoveSong(ctx, id); err != nil {
			return stats, err
		}
		stats.OrphansRemoved++
	}

	if len(missing) > 0 {
		batch, err := c.writer.BatchIndex(ctx, missing)
		if err != nil {
			return stats, err
		}
		stats.SongsIndexed = batch.Indexed
		stats.SongsSkipped = batch.Skipped
	}

	slog.Info("index_repaired",
		slog.Int("orphans_removed", stats.OrphansRemoved),
		slog.Int("songs_indexed", stats.SongsIndexed))
	return stats, nil
}

// QuickCheck only compares document counts with the song count.
func (c *ConsistencyChecker) QuickCheck(ctx context.Context) (bool, error) {
	st, err := c.db.Status(ctx)
	if err != nil {
		return false, err
	}

	consistent := st.StandardDocs == st.Songs && (!st.FuzzyAvailable || st.FuzzyDocs == st.Songs)
	if !consistent {
		slog.Debug("index_counts_mismatch",
			slog.Int("songs", st.Songs),
			slog.Int("standard", st.StandardDocs),
			slog.Int("fuzzy", st.FuzzyDocs))
	}
	return consistent, nil
}

// appendMissing adds an issue of type t for every id absent from set.
func appendMissing(issues []Inconsistency, t InconsistencyType, ids []int64, set map[int64]struct{}) []Inconsistency {
	for _, id := range ids {
		if _, ok := set[id]; !ok {
			issues = append(issues, Inconsistency{Type: t, SongID: id})
		}
	}
	return issues
}

func idSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
