// Package telemetry records local search statistics: query shapes, top
// terms, zero-result queries, latency and repeats. Nothing leaves the
// machine; aggregates live in memory and are flushed to the song database.
package telemetry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/cantor/internal/normalize"
)

// =============================================================================
// Query Types
// =============================================================================

// QueryType classifies a search query by shape.
type QueryType string

const (
	QueryTypeSingleTerm QueryType = "single_term"
	QueryTypeMultiTerm  QueryType = "multi_term"
	QueryTypeFiltered   QueryType = "filtered"
)

// ClassifyQuery returns the type of a query with terms valid terms.
// A category filter takes precedence over the term count.
func ClassifyQuery(terms int, filtered bool) QueryType {
	switch {
	case filtered:
		return QueryTypeFiltered
	case terms > 1:
		return QueryTypeMultiTerm
	default:
		return QueryTypeSingleTerm
	}
}

// =============================================================================
// Latency Buckets
// =============================================================================

// LatencyBucket is a latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyBuckets lists the buckets in ascending order.
var LatencyBuckets = []LatencyBucket{BucketP10, BucketP50, BucketP100, BucketP500, BucketP1000}

// LatencyToBucket returns the histogram bucket of d.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// =============================================================================
// Query Event
// =============================================================================

// QueryEvent is one search as seen by telemetry.
type QueryEvent struct {
	Query       string
	QueryType   QueryType
	ResultCount int
	// FuzzyOnlyCount is how many results only the trigram index found.
	FuzzyOnlyCount int
	Latency        time.Duration
	Timestamp      time.Time
}

// IsZeroResult reports whether the query returned nothing.
func (e QueryEvent) IsZeroResult() bool {
	return e.ResultCount == 0
}

// =============================================================================
// Circular Buffer
// =============================================================================

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	items    []T
	head     int // next write position
	size     int
	capacity int
	mu       sync.RWMutex
}

// NewCircularBuffer creates a buffer holding at most capacity items.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add appends item, evicting the oldest when full.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Items returns the buffered items, oldest first.
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
		return result
	}
	copy(result, b.items[b.head:])
	copy(result[b.capacity-b.head:], b.items[:b.head])
	return result
}

// Size returns the number of buffered items.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Clear empties the buffer.
func (b *CircularBuffer[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head = 0
	b.size = 0
}

// =============================================================================
// Term Extraction
// =============================================================================

// minTermRunes is the shortest term worth counting.
const minTermRunes = 3

// ExtractTerms returns the normalized terms of query that are at least
// three runes long, so "Sfânt" and "sfant" count as the same term.
func ExtractTerms(query string) []string {
	var terms []string
	for _, t := range normalize.Terms(query) {
		if utf8.RuneCountInString(t) >= minTermRunes {
			terms = append(terms, t)
		}
	}
	return terms
}

// TermCount is a term and how often it was searched.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// =============================================================================
// Snapshot
// =============================================================================

// QueryMetricsSnapshot is a point-in-time copy of the in-memory metrics.
type QueryMetricsSnapshot struct {
	QueryTypeCounts     map[QueryType]int64     `json:"query_type_counts"`
	TopTerms            []TermCount             `json:"top_terms"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	TotalQueries        int64                   `json:"total_queries"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	FuzzyRescueCount    int64                   `json:"fuzzy_rescue_count"`
	ExactRepeatCount    int64                   `json:"exact_repeat_count"`
	ExactRepeatRate     float64                 `json:"exact_repeat_rate"`
	UniqueQueryCount    int64                   `json:"unique_query_count"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the share of zero-result queries, 0 to 100.
func (s *QueryMetricsSnapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries) * 100
}

// =============================================================================
// Store
// =============================================================================

// QueryMetricsStore persists flushed metrics.
type QueryMetricsStore interface {
	// SaveQueryTypeCounts adds counts to the given day.
	SaveQueryTypeCounts(ctx context.Context, date string, counts map[QueryType]int64) error

	// GetQueryTypeCounts sums counts over an inclusive date range.
	GetQueryTypeCounts(ctx context.Context, from, to string) (map[QueryType]int64, error)

	// UpsertTermCounts adds to the all-time term counts.
	UpsertTermCounts(ctx context.Context, terms map[string]int64) error

	// GetTopTerms returns the most searched terms.
	GetTopTerms(ctx context.Context, limit int) ([]TermCount, error)

	// AddZeroResultQuery appends to the bounded zero-result log.
	AddZeroResultQuery(ctx context.Context, query string, timestamp time.Time) error

	// GetZeroResultQueries returns the latest zero-result queries, newest first.
	GetZeroResultQueries(ctx context.Context, limit int) ([]string, error)

	// SaveLatencyCounts adds counts to the given day.
	SaveLatencyCounts(ctx context.Context, date string, counts map[LatencyBucket]int64) error

	// GetLatencyCounts sums counts over an inclusive date range.
	GetLatencyCounts(ctx context.Context, from, to string) (map[LatencyBucket]int64, error)
}

// =============================================================================
// Configuration
// =============================================================================

// QueryMetricsConfig configures a QueryMetrics collector.
type QueryMetricsConfig struct {
	TopTermsCapacity      int           // terms tracked in memory (default 100)
	ZeroResultsCapacity   int           // zero-result queries kept (default 100)
	RecentQueriesCapacity int           // queries remembered for repeat detection (default 500)
	FlushInterval         time.Duration // auto-flush period; 0 disables it
}

// DefaultQueryMetricsConfig returns the default configuration.
func DefaultQueryMetricsConfig() QueryMetricsConfig {
	return QueryMetricsConfig{
		TopTermsCapacity:      100,
		ZeroResultsCapacity:   100,
		RecentQueriesCapacity: 500,
		FlushInterval:         60 * time.Second,
	}
}

// =============================================================================
// Query Metrics
// =============================================================================

// pending holds what was recorded since the last flush.
type pending struct {
	queryTypes  map[QueryType]int64
	terms       map[string]int64
	latencies   map[LatencyBucket]int64
	zeroResults []QueryEvent
}

func newPending() pending {
	return pending{
		queryTypes: make(map[QueryType]int64),
		terms:      make(map[string]int64),
		latencies:  make(map[LatencyBucket]int64),
	}
}

func (p pending) empty() bool {
	return len(p.queryTypes) == 0 && len(p.terms) == 0 &&
		len(p.latencies) == 0 && len(p.zeroResults) == 0
}

// QueryMetrics collects search telemetry. It is safe for concurrent use
// and Record never blocks on storage.
type QueryMetrics struct {
	mu sync.Mutex

	queryTypes       map[QueryType]int64
	topTerms         *lru.Cache[string, int64]
	zeroResults      *CircularBuffer[string]
	latencies        map[LatencyBucket]int64
	totalQueries     int64
	zeroResultCount  int64
	fuzzyRescueCount int64
	startTime        time.Time

	recentQueries    *lru.Cache[string, struct{}]
	exactRepeatCount int64

	unflushed pending

	store  QueryMetricsStore
	config QueryMetricsConfig
	now    func() time.Time
	stopCh chan struct{}
	doneCh chan struct{}
	closed bool
}

// NewQueryMetrics creates a collector with the default configuration. A
// nil store keeps metrics in memory only.
func NewQueryMetrics(store QueryMetricsStore) *QueryMetrics {
	return NewQueryMetricsWithConfig(store, DefaultQueryMetricsConfig())
}

// NewQueryMetricsWithConfig creates a collector. When cfg.FlushInterval is
// positive and store is set, a goroutine flushes periodically until Close.
func NewQueryMetricsWithConfig(store QueryMetricsStore, cfg QueryMetricsConfig) *QueryMetrics {
	d := DefaultQueryMetricsConfig()
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = d.TopTermsCapacity
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = d.ZeroResultsCapacity
	}
	if cfg.RecentQueriesCapacity <= 0 {
		cfg.RecentQueriesCapacity = d.RecentQueriesCapacity
	}

	topTerms, _ := lru.New[string, int64](cfg.TopTermsCapacity)
	recentQueries, _ := lru.New[string, struct{}](cfg.RecentQueriesCapacity)

	m := &QueryMetrics{
		queryTypes:    make(map[QueryType]int64),
		topTerms:      topTerms,
		zeroResults:   NewCircularBuffer[string](cfg.ZeroResultsCapacity),
		latencies:     make(map[LatencyBucket]int64),
		startTime:     time.Now(),
		recentQueries: recentQueries,
		unflushed:     newPending(),
		store:         store,
		config:        cfg,
		now:           time.Now,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}

	if cfg.FlushInterval > 0 && store != nil {
		go m.flushLoop(cfg.FlushInterval)
	} else {
		close(m.doneCh)
	}
	return m
}

func (m *QueryMetrics) flushLoop(interval time.Duration) {
	defer close(m.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := m.Flush(context.Background()); err != nil {
				slog.Warn("telemetry_flush_failed", slog.String("error", err.Error()))
			}
		case <-m.stopCh:
			return
		}
	}
}

// Record adds one search to the aggregates.
func (m *QueryMetrics) Record(event QueryEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = m.now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	m.totalQueries++
	m.queryTypes[event.QueryType]++
	m.unflushed.queryTypes[event.QueryType]++

	for _, term := range ExtractTerms(event.Query) {
		count, _ := m.topTerms.Get(term)
		m.topTerms.Add(term, count+1)
		m.unflushed.terms[term]++
	}

	if event.IsZeroResult() {
		m.zeroResultCount++
		m.zeroResults.Add(event.Query)
		m.unflushed.zeroResults = append(m.unflushed.zeroResults, event)
	}
	if event.FuzzyOnlyCount > 0 {
		m.fuzzyRescueCount++
	}

	bucket := LatencyToBucket(event.Latency)
	m.latencies[bucket]++
	m.unflushed.latencies[bucket]++

	key := hashQuery(event.Query)
	if _, seen := m.recentQueries.Get(key); seen {
		m.exactRepeatCount++
	}
	m.recentQueries.Add(key, struct{}{})
}

// hashQuery keys a query for repeat detection, ignoring case, diacritics
// and spacing.
func hashQuery(query string) string {
	normalized := strings.Join(normalize.Terms(query), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:16])
}

// Snapshot returns a copy of the in-memory metrics.
func (m *QueryMetrics) Snapshot() *QueryMetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	typeCounts := make(map[QueryType]int64, len(m.queryTypes))
	for k, v := range m.queryTypes {
		typeCounts[k] = v
	}
	latencies := make(map[LatencyBucket]int64, len(m.latencies))
	for k, v := range m.latencies {
		latencies[k] = v
	}

	topTerms := make([]TermCount, 0, m.topTerms.Len())
	for _, key := range m.topTerms.Keys() {
		if count, ok := m.topTerms.Peek(key); ok {
			topTerms = append(topTerms, TermCount{Term: key, Count: count})
		}
	}
	sortTermCounts(topTerms)

	var repeatRate float64
	if m.totalQueries > 0 {
		repeatRate = float64(m.exactRepeatCount) / float64(m.totalQueries)
	}

	return &QueryMetricsSnapshot{
		QueryTypeCounts:     typeCounts,
		TopTerms:            topTerms,
		ZeroResultQueries:   m.zeroResults.Items(),
		LatencyDistribution: latencies,
		TotalQueries:        m.totalQueries,
		ZeroResultCount:     m.zeroResultCount,
		FuzzyRescueCount:    m.fuzzyRescueCount,
		ExactRepeatCount:    m.exactRepeatCount,
		ExactRepeatRate:     repeatRate,
		UniqueQueryCount:    int64(m.recentQueries.Len()),
		Since:               m.startTime,
	}
}

// sortTermCounts orders by count descending, then term ascending.
func sortTermCounts(terms []TermCount) {
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Count != terms[j].Count {
			return terms[i].Count > terms[j].Count
		}
		return terms[i].Term < terms[j].Term
	})
}

// Flush writes everything recorded since the last successful flush to the
// store. Without a store it does nothing. On failure the unflushed counts
// are kept for the next attempt.
func (m *QueryMetrics) Flush(ctx context.Context) error {
	if m.store == nil {
		return nil
	}

	m.mu.Lock()
	batch := m.unflushed
	m.unflushed = newPending()
	m.mu.Unlock()

	if batch.empty() {
		return nil
	}

	if rest, err := m.write(ctx, batch); err != nil {
		m.mu.Lock()
		m.unflushed = mergePending(rest, m.unflushed)
		m.mu.Unlock()
		return err
	}

	slog.Debug("telemetry_flushed",
		slog.Int("terms", len(batch.terms)),
		slog.Int("zero_results", len(batch.zeroResults)))
	return nil
}

// write stores batch and returns the part that was not stored.
func (m *QueryMetrics) write(ctx context.Context, batch pending) (pending, error) {
	today := m.now().Format("2006-01-02")

	if err := m.store.SaveQueryTypeCounts(ctx, today, batch.queryTypes); err != nil {
		return batch, err
	}
	batch.queryTypes = nil

	if err := m.store.UpsertTermCounts(ctx, batch.terms); err != nil {
		return batch, err
	}
	batch.terms = nil

	if err := m.store.SaveLatencyCounts(ctx, today, batch.latencies); err != nil {
		return batch, err
	}
	batch.latencies = nil

	for i, ev := range batch.zeroResults {
		if err := m.store.AddZeroResultQuery(ctx, ev.Query, ev.Timestamp); err != nil {
			batch.zeroResults = batch.zeroResults[i:]
			return batch, err
		}
	}
	return pending{}, nil
}

// mergePending adds a failed batch back in front of what arrived since.
func mergePending(failed, since pending) pending {
	out := newPending()
	for _, p := range []pending{failed, since} {
		for k, v := range p.queryTypes {
			out.queryTypes[k] += v
		}
		for k, v := range p.terms {
			out.terms[k] += v
		}
		for k, v := range p.latencies {
			out.latencies[k] += v
		}
		out.zeroResults = append(out.zeroResults, p.zeroResults...)
	}
	return out
}

// Close stops the flush loop and flushes once more.
func (m *QueryMetrics) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.stopCh)
	<-m.doneCh

	return m.Flush(ctx)
}
