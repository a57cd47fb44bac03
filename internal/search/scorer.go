package search

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Aman-CERP/cantor/internal/normalize"
)

// Score components, out of 100.
const (
	scoreTitlePrefix   = 100.0
	scoreTitleContains = 95.0
	scoreTitleTerms    = 54.0
	scoreAllTerms      = 20.0
	scoreInOrder       = 20.0

	scorePhrase         = 100.0
	scoreContentTerms   = 50.0
	scoreProximity      = 30.0
	scoreContentInOrder = 20.0
)

// ScoringQuery is a query in the comparable form scoring works on.
type ScoringQuery struct {
	// Phrase is the valid terms joined by a single space.
	Phrase string
	// Terms holds, per valid term, the term and its synonyms.
	Terms [][]string
}

// NewScoringQuery prepares valid terms and their synonyms for scoring.
func NewScoringQuery(valid []string, synonyms map[string][]string) ScoringQuery {
	q := ScoringQuery{Phrase: normalize.Comparable(strings.Join(valid, " "))}

	for _, alts := range alternatives(valid, synonyms) {
		var forms []string
		seen := make(map[string]struct{}, len(alts))
		for _, a := range alts {
			c := normalize.Comparable(a)
			if c == "" {
				continue
			}
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			forms = append(forms, c)
		}
		if len(forms) > 0 {
			q.Terms = append(q.Terms, forms)
		}
	}
	return q
}

// Scorer computes relevance scores for candidates.
type Scorer struct {
	weights Weights
}

// NewScorer returns a Scorer using weights.
func NewScorer(weights Weights) *Scorer {
	return &Scorer{weights: weights.withDefaults()}
}

// Score computes every score of c.
func (s *Scorer) Score(c Candidate, q ScoringQuery) ScoredCandidate {
	sc := ScoredCandidate{Candidate: c}
	sc.TitleScore = s.TitleScore(c.Title, q)
	sc.ContentScore = s.ContentScore(c.Content, q)
	sc.TermScore = s.TermScore(sc.TitleScore, sc.ContentScore)
	sc.BoostedScore = s.Boost(sc.TermScore, c.CategoryPriority)
	return sc
}

// TitleScore rates how well title matches q, 0 to 100.
func (s *Scorer) TitleScore(title string, q ScoringQuery) float64 {
	if len(q.Terms) == 0 {
		return 0
	}

	t := normalize.Comparable(title)
	if q.Phrase != "" {
		if strings.HasPrefix(t, q.Phrase) {
			return scoreTitlePrefix
		}
		if strings.Contains(t, q.Phrase) {
			return scoreTitleContains
		}
	}

	positions := make([]int, len(q.Terms))
	found := 0
	for i, alts := range q.Terms {
		positions[i] = firstIndex(t, alts)
		if positions[i] >= 0 {
			found++
		}
	}

	score := scoreTitleTerms * float64(found) / float64(len(q.Terms))
	if found == len(q.Terms) {
		score += scoreAllTerms
	}
	if found >= 2 && inQueryOrder(positions) {
		score += scoreInOrder
	}
	return clamp(score)
}

// ContentScore rates the best cluster of query terms in content, 0 to 100.
// Every occurrence of every term is tried as an anchor; the anchor absorbs
// the nearest occurrence of each other term within ClusterRadius.
func (s *Scorer) ContentScore(content string, q ScoringQuery) float64 {
	if len(q.Terms) == 0 {
		return 0
	}

	c := normalize.Comparable(content)
	if c == "" {
		return 0
	}
	if q.Phrase != "" && strings.Contains(c, q.Phrase) {
		return scorePhrase
	}

	occ := make([][]int, len(q.Terms))
	hasAny := false
	for i, alts := range q.Terms {
		occ[i] = termOccurrences(c, alts)
		hasAny = hasAny || len(occ[i]) > 0
	}
	if !hasAny {
		return 0
	}

	best := 0.0
	window := make([]int, len(q.Terms))
	for i := range occ {
		for _, anchor := range occ[i] {
			for j := range occ {
				if j == i {
					window[j] = anchor
					continue
				}
				window[j] = nearest(occ[j], anchor, s.weights.ClusterRadius)
			}
			best = max(best, s.windowScore(window))
		}
	}
	return clamp(best)
}

// windowScore scores one cluster; positions of absent terms are -1.
func (s *Scorer) windowScore(positions []int) float64 {
	present := 0
	lo, hi := -1, -1
	for _, p := range positions {
		if p < 0 {
			continue
		}
		present++
		if lo < 0 || p < lo {
			lo = p
		}
		if p > hi {
			hi = p
		}
	}
	if present == 0 {
		return 0
	}

	score := scoreContentTerms * float64(present) / float64(len(positions))

	if present >= 2 {
		ideal := float64(s.weights.IdealSpanPerTerm * present)
		span := float64(hi - lo)
		if span <= ideal {
			score += scoreProximity
		} else {
			score += scoreProximity * ideal / span
		}
		if inQueryOrder(positions) {
			score += scoreContentInOrder
		}
	}
	return score
}

// TermScore combines title and content scores by their weights.
func (s *Scorer) TermScore(title, content float64) float64 {
	total := s.weights.TitleWeight + s.weights.ContentWeight
	if total <= 0 {
		return 0
	}
	return clamp((s.weights.TitleWeight*title + s.weights.ContentWeight*content) / total)
}

// Boost applies category priority. Priorities below 1 count as 1, so the
// boosted score is never below the term score.
func (s *Scorer) Boost(termScore float64, priority int) float64 {
	p := max(priority, 1)
	if s.weights.BoostMode == BoostAdditive {
		return termScore + float64(p-1)*AdditiveBoostStep
	}
	return termScore * float64(p)
}

// Rank orders candidates best first and keeps the top MaxResults:
// boosted score, term score and title score descending, then standard
// before fuzzy-only, native rank ascending, song id ascending.
func Rank(scored []ScoredCandidate) []ScoredCandidate {
	sort.Slice(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.BoostedScore != b.BoostedScore {
			return a.BoostedScore > b.BoostedScore
		}
		if a.TermScore != b.TermScore {
			return a.TermScore > b.TermScore
		}
		if a.TitleScore != b.TitleScore {
			return a.TitleScore > b.TitleScore
		}
		if a.FromFuzzyIndex != b.FromFuzzyIndex {
			return !a.FromFuzzyIndex
		}
		if a.Rank != b.Rank {
			return a.Rank < b.Rank
		}
		return a.SongID < b.SongID
	})

	if len(scored) > MaxResults {
		scored = scored[:MaxResults]
	}
	return scored
}

// firstIndex returns the rune offset of the earliest alternative in text,
// or -1.
func firstIndex(text string, alts []string) int {
	best := -1
	for _, a := range alts {
		i := strings.Index(text, a)
		if i < 0 {
			continue
		}
		pos := utf8.RuneCountInString(text[:i])
		if best < 0 || pos < best {
			best = pos
		}
	}
	return best
}

// termOccurrences returns the sorted rune offsets of every alternative in
// text.
func termOccurrences(text string, alts []string) []int {
	var out []int
	for _, a := range alts {
		out = append(out, occurrences(text, a)...)
	}
	sort.Ints(out)
	return out
}

// occurrences returns the rune offsets of the non-overlapping occurrences
// of sub in text.
func occurrences(text, sub string) []int {
	if sub == "" {
		return nil
	}

	var out []int
	runeOffset, counted, start := 0, 0, 0
	for start <= len(text) {
		i := strings.Index(text[start:], sub)
		if i < 0 {
			break
		}
		pos := start + i
		runeOffset += utf8.RuneCountInString(text[counted:pos])
		counted = pos
		out = append(out, runeOffset)
		start = pos + len(sub)
	}
	return out
}

// nearest returns the element of sorted closest to p within radius, or -1.
func nearest(sorted []int, p, radius int) int {
	if len(sorted) == 0 {
		return -1
	}

	i := sort.SearchInts(sorted, p)
	best, bestDist := -1, radius+1
	for _, k := range []int{i - 1, i} {
		if k < 0 || k >= len(sorted) {
			continue
		}
		d := sorted[k] - p
		if d < 0 {
			d = -d
		}
		if d < bestDist {
			best, bestDist = sorted[k], d
		}
	}
	return best
}

// inQueryOrder reports whether the present positions (>= 0) strictly
// increase in query order.
func inQueryOrder(positions []int) bool {
	prev := -1
	for _, p := range positions {
		if p < 0 {
			continue
		}
		if p <= prev {
			return false
		}
		prev = p
	}
	return true
}

func clamp(score float64) float64 {
	return min(max(score, 0), 100)
}
