package store

import (
	"database/sql"
	"time"

	"github.com/Aman-CERP/cantor/internal/normalize"
)

// Category groups songs and carries the ranking priority used to boost
// them in search results.
type Category struct {
	ID        int64
	Name      string
	Priority  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Song is a song with its ordered slides.
type Song struct {
	ID                int64
	Title             string
	CategoryID        *int64
	PresentationCount int
	Slides            []Slide
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Slide is one unit of lyric text shown on screen.
type Slide struct {
	ID        int64
	SortOrder int
	Content   string
}

// NewCategory holds the fields for creating a category.
// A Priority below 1 is stored as 1.
type NewCategory struct {
	Name     string
	Priority int
}

// NewSong holds the fields for creating a song. Slides are stored in the
// given order.
type NewSong struct {
	Title      string
	CategoryID *int64
	Slides     []string
}

// SongPatch is a partial song update. Nil fields are left unchanged.
// ClearCategory removes the category and takes precedence over CategoryID.
type SongPatch struct {
	Title         *string
	CategoryID    *int64
	ClearCategory bool
	Slides        *[]string
}

// Empty reports whether the patch changes nothing.
func (p SongPatch) Empty() bool {
	return p.Title == nil && p.CategoryID == nil && !p.ClearCategory && p.Slides == nil
}

// CategoryPatch is a partial category update. Nil fields are left unchanged.
type CategoryPatch struct {
	Name     *string
	Priority *int
}

// Document is the searchable projection of a song. There is exactly one
// per song in the standard index.
type Document struct {
	SongID           int64
	Title            string
	CategoryName     sql.NullString
	CategoryPriority int
	// Content is the slides in sort order joined by "\n".
	Content string
}

// IndexedContent is the content written to the standard index: the slide
// text without tags or entities.
func (d Document) IndexedContent() string {
	return normalize.StripMarkup(d.Content)
}

// Fuzzy returns the trigram index shadow of d.
func (d Document) Fuzzy() FuzzyDocument {
	return FuzzyDocument{
		SongID:  d.SongID,
		Title:   normalize.Comparable(d.Title),
		Content: normalize.Comparable(d.Content),
	}
}

// FuzzyDocument is the trigram index row for a song. Title and Content
// hold normalized text.
type FuzzyDocument struct {
	SongID  int64
	Title   string
	Content string
}

// Match is one candidate returned by an index query, joined with the
// song and category rows.
type Match struct {
	SongID            int64
	Title             string
	HighlightedTitle  string
	CategoryID        sql.NullInt64
	CategoryName      sql.NullString
	CategoryPriority  int
	PresentationCount int
	Content           string
	Rank              float64
}

// MatchOptions restricts an index query.
type MatchOptions struct {
	CategoryID *int64
	Limit      int
}

// IndexStatus summarizes the index tables.
type IndexStatus struct {
	Songs           int
	StandardDocs    int
	FuzzyDocs       int
	FuzzyAvailable  bool
	SchemaVersion   string
	BuildMode       string
	DatabasePath    string
	StandardHealthy bool
}
