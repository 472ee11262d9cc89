package knowledge

import (
	"fmt"
	"sort"
	"strings"
)

// minSimilarity is the floor under which a candidate does not count as a
// match. Queries whose best candidate scores below it produce ErrNoMatch with
// "did you mean" suggestions.
const minSimilarity = 0.45

// suggestionCount is how many candidates a NoMatchError carries.
const suggestionCount = 3

// NoMatchError is returned when no treatment clears the similarity floor.
// Suggestions holds the top candidates regardless of threshold so the caller
// can offer a "did you mean" fallback.
type NoMatchError struct {
	Query       string
	Suggestions []Treatment
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("knowledge: no treatment matches %q", e.Query)
}

// Search returns treatments ordered most relevant first. An exact
// case-insensitive name match always ranks highest. Otherwise candidates are
// scored by blended token-overlap and edit-distance similarity against the
// treatment name and category label. Scoring is a pure function of
// (query, catalog); equal scores keep catalog insertion order.
func (c *Catalog) Search(query string) ([]Treatment, error) {
	q := normalizeQuery(query)
	if q == "" {
		return nil, &NoMatchError{Query: query, Suggestions: c.topN(nil, suggestionCount)}
	}

	type scored struct {
		t     Treatment
		score float64
		index int
	}

	ranked := make([]scored, 0, len(c.treatments))
	for i, t := range c.treatments {
		s := similarity(q, t)
		ranked = append(ranked, scored{t: t, score: s, index: i})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].index < ranked[j].index
	})

	var results []Treatment
	for _, r := range ranked {
		if r.score >= minSimilarity {
			results = append(results, r.t)
		}
	}
	if len(results) == 0 {
		suggestions := make([]Treatment, 0, suggestionCount)
		for _, r := range ranked[:min(suggestionCount, len(ranked))] {
			suggestions = append(suggestions, r.t)
		}
		return nil, &NoMatchError{Query: query, Suggestions: suggestions}
	}
	return results, nil
}

// SearchBatch runs Search for each query and returns results in input order.
// Individual not-found entries do not fail the batch; their Results slice is
// empty and Err carries the NoMatchError.
func (c *Catalog) SearchBatch(queries []string) []BatchResult {
	out := make([]BatchResult, len(queries))
	for i, q := range queries {
		results, err := c.Search(q)
		out[i] = BatchResult{Query: q, Results: results, Err: err}
	}
	return out
}

// BatchResult pairs one batch query with its outcome.
type BatchResult struct {
	Query   string
	Results []Treatment
	Err     error
}

func (c *Catalog) topN(_ []Treatment, n int) []Treatment {
	if n > len(c.treatments) {
		n = len(c.treatments)
	}
	out := make([]Treatment, n)
	copy(out, c.treatments[:n])
	return out
}

// similarity scores a normalized query against one treatment. Exact name
// match is 1.0; otherwise the best of name and category similarity, where
// each blends token overlap with normalized Levenshtein distance.
func similarity(q string, t Treatment) float64 {
	name := strings.ToLower(t.Name)
	if q == name {
		return 1.0
	}

	s := textSimilarity(q, name)
	if cs := textSimilarity(q, string(t.Category)); cs > s {
		s = cs
	}
	// Exact-name queries with different casing were handled above; cap fuzzy
	// scores just under exact so the true name always wins.
	if s > 0.99 {
		s = 0.99
	}
	return s
}

func textSimilarity(a, b string) float64 {
	overlap := tokenOverlap(a, b)
	edit := 1.0 - normalizedLevenshtein(a, b)
	// Token overlap dominates: callers say "root canal please" and the noise
	// words should not drown the match.
	return 0.7*overlap + 0.3*edit
}

// tokenOverlap is the fraction of query tokens found in the candidate,
// counting close token spellings (edit distance <= 1 for short tokens,
// <= 2 otherwise) as present.
func tokenOverlap(query, candidate string) float64 {
	qTokens := tokenize(query)
	if len(qTokens) == 0 {
		return 0
	}
	cTokens := tokenize(candidate)

	matched := 0
	for _, qt := range qTokens {
		for _, ct := range cTokens {
			if tokensClose(qt, ct) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(qTokens))
}

func tokensClose(a, b string) bool {
	if a == b {
		return true
	}
	limit := 1
	if len(a) > 4 && len(b) > 4 {
		limit = 2
	}
	return levenshtein(a, b) <= limit
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "for": {}, "of": {}, "and": {},
	"please": {}, "do": {}, "you": {}, "i": {}, "need": {}, "want": {},
	"my": {}, "me": {}, "how": {}, "much": {}, "is": {}, "cost": {},
	"about": {}, "info": {}, "information": {},
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	out := fields[:0]
	for _, f := range fields {
		if _, skip := stopWords[f]; !skip {
			out = append(out, f)
		}
	}
	return out
}

func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(q))), " ")
}

// normalizedLevenshtein maps edit distance into [0,1], 0 meaning identical.
func normalizedLevenshtein(a, b string) float64 {
	longest := max(len(a), len(b))
	if longest == 0 {
		return 0
	}
	return float64(levenshtein(a, b)) / float64(longest)
}

// levenshtein computes the classic edit distance with a two-row table.
func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
