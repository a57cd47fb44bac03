package search

import "context"

// Expand returns terms followed by their synonyms. The original terms keep
// their order and come first; related terms are appended in term order.
// Duplicates are dropped. Lookup is case- and diacritic-insensitive.
func Expand(terms []string, synonyms map[string][]string) []string {
	out := make([]string, 0, len(terms))
	seen := make(map[string]struct{}, len(terms))

	add := func(t string) {
		if _, ok := seen[t]; ok {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}

	for _, t := range terms {
		add(t)
	}
	for _, t := range terms {
		for _, related := range synonyms[synonymKey(t)] {
			add(related)
		}
	}
	return out
}

// alternatives returns, per term, the term itself followed by its synonyms.
// A term counts as found during scoring when any alternative is found.
func alternatives(terms []string, synonyms map[string][]string) [][]string {
	alts := make([][]string, len(terms))
	for i, t := range terms {
		alts[i] = append([]string{t}, synonyms[synonymKey(t)]...)
	}
	return alts
}

// Expander expands query terms with the synonyms from a cache.
type Expander struct {
	cache *SynonymCache
}

// NewExpander returns an Expander over cache. A nil cache expands nothing.
func NewExpander(cache *SynonymCache) *Expander {
	return &Expander{cache: cache}
}

// Synonyms returns the current synonym map.
func (e *Expander) Synonyms(ctx context.Context) map[string][]string {
	if e == nil || e.cache == nil {
		return map[string][]string{}
	}
	return e.cache.Load(ctx)
}

// Expand returns terms followed by their synonyms.
func (e *Expander) Expand(ctx context.Context, terms []string) []string {
	return Expand(terms, e.Synonyms(ctx))
}
