package search

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	cerrors "github.com/Aman-CERP/cantor/internal/errors"
	"github.com/Aman-CERP/cantor/internal/normalize"
	"github.com/Aman-CERP/cantor/internal/store"
)

const (
	// DefaultSynonymKey is the settings key holding the synonym groups.
	DefaultSynonymKey = "search.synonym_groups"

	// DefaultSynonymTTL is how long a loaded synonym map is reused.
	DefaultSynonymTTL = 60 * time.Second
)

// SynonymGroup is a set of interchangeable terms.
type SynonymGroup struct {
	ID       string   `json:"id" yaml:"id"`
	Primary  string   `json:"primary" yaml:"primary"`
	Synonyms []string `json:"synonyms" yaml:"synonyms"`
}

// ParseSynonymGroups decodes the JSON stored under the synonym key.
// Blank input is an empty list.
func ParseSynonymGroups(data string) ([]SynonymGroup, error) {
	if strings.TrimSpace(data) == "" {
		return nil, nil
	}
	var groups []SynonymGroup
	if err := json.Unmarshal([]byte(data), &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// BuildSynonymMap turns groups into a bidirectional lookup: every member
// maps to every other member of every group it belongs to. Keys and values
// are normalized; related lists keep first-appearance order.
func BuildSynonymMap(groups []SynonymGroup) map[string][]string {
	related := make(map[string][]string)
	seen := make(map[string]map[string]struct{})

	for _, g := range groups {
		members := groupMembers(g)
		for _, a := range members {
			for _, b := range members {
				if a == b {
					continue
				}
				if seen[a] == nil {
					seen[a] = make(map[string]struct{})
				}
				if _, ok := seen[a][b]; ok {
					continue
				}
				seen[a][b] = struct{}{}
				related[a] = append(related[a], b)
			}
		}
	}
	return related
}

func groupMembers(g SynonymGroup) []string {
	raw := append([]string{g.Primary}, g.Synonyms...)
	members := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, m := range raw {
		key := synonymKey(m)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		members = append(members, key)
	}
	return members
}

// synonymKey is the lookup form of a term: folded, single-spaced.
func synonymKey(s string) string {
	return strings.Join(strings.Fields(normalize.Text(s)), " ")
}

// SynonymCache serves the synonym map from the settings store, re-reading
// it at most once per TTL. It is safe for concurrent use.
type SynonymCache struct {
	reader SettingsReader
	key    string
	ttl    time.Duration
	now    func() time.Time

	mu       sync.RWMutex
	synonyms map[string][]string
	loadedAt time.Time
	loaded   bool

	group singleflight.Group
}

// SynonymOption configures a SynonymCache.
type SynonymOption func(*SynonymCache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) SynonymOption {
	return func(c *SynonymCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithTTL sets how long a loaded map is reused.
func WithTTL(ttl time.Duration) SynonymOption {
	return func(c *SynonymCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithSettingsKey sets the settings key to read.
func WithSettingsKey(key string) SynonymOption {
	return func(c *SynonymCache) {
		if key != "" {
			c.key = key
		}
	}
}

// NewSynonymCache returns a cache over reader.
func NewSynonymCache(reader SettingsReader, opts ...SynonymOption) *SynonymCache {
	c := &SynonymCache{
		reader: reader,
		key:    DefaultSynonymKey,
		ttl:    DefaultSynonymTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load returns the current synonym map. It never fails: a missing key or
// malformed JSON yields an empty map, and a read error yields the last
// good map. Callers must not modify the result.
func (c *SynonymCache) Load(ctx context.Context) map[string][]string {
	c.mu.RLock()
	if c.loaded && c.now().Sub(c.loadedAt) < c.ttl {
		m := c.synonyms
		c.mu.RUnlock()
		return m
	}
	c.mu.RUnlock()

	v, _, _ := c.group.Do(c.key, func() (any, error) {
		return c.refresh(ctx), nil
	})
	return v.(map[string][]string)
}

// Invalidate drops the cached map so the next Load re-reads it.
func (c *SynonymCache) Invalidate() {
	c.mu.Lock()
	c.loaded = false
	c.mu.Unlock()
}

func (c *SynonymCache) refresh(ctx context.Context) map[string][]string {
	raw, err := c.reader.GetSetting(ctx, c.key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return c.store(map[string][]string{})
	case err != nil:
		slog.Warn("synonym_groups_unreadable",
			slog.String("key", c.key),
			slog.String("error", err.Error()))
		c.mu.RLock()
		prev := c.synonyms
		c.mu.RUnlock()
		if prev != nil {
			return prev
		}
		return map[string][]string{}
	}

	groups, err := ParseSynonymGroups(raw)
	if err != nil {
		slog.Warn("synonym_groups_invalid",
			slog.String("code", cerrors.ErrCodeSynonymsInvalid),
			slog.String("key", c.key),
			slog.String("error", err.Error()))
		return c.store(map[string][]string{})
	}

	m := BuildSynonymMap(groups)
	slog.Debug("synonym_groups_loaded",
		slog.Int("groups", len(groups)),
		slog.Int("terms", len(m)))
	return c.store(m)
}

func (c *SynonymCache) store(m map[string][]string) map[string][]string {
	c.mu.Lock()
	c.synonyms = m
	c.loadedAt = c.now()
	c.loaded = true
	c.mu.Unlock()
	return m
}
