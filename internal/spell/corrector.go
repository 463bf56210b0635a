package spell

import (
	"strings"
	"unicode/utf8"
)

// Default corrector parameters. Tunable; these mirror the values the engine
// has always shipped with, not measured optima.
const (
	DefaultMaxEditDistance = 2
	DefaultPrefixLength    = 7
)

// CorrectorConfig holds fuzzy-lookup parameters.
type CorrectorConfig struct {
	// MaxEditDistance is the largest Damerau-Levenshtein distance at which
	// a dictionary term is still considered a correction candidate.
	MaxEditDistance int
	// PrefixLength bounds the portion of each term used to build the
	// delete index, trading index size for recall on very long terms.
	PrefixLength int
}

// Corrector performs token-level spelling correction against a Vocabulary
// using a SymSpell-style precomputed delete index. Correct is pure: the
// index is built once and never mutated afterwards.
type Corrector struct {
	vocab   *Vocabulary
	maxDist int
	prefix  int
	deletes map[string][]int // delete variant -> candidate entry positions
}

// NewCorrector builds the delete index over the vocabulary.
func NewCorrector(vocab *Vocabulary, cfg CorrectorConfig) *Corrector {
	if cfg.MaxEditDistance <= 0 {
		cfg.MaxEditDistance = DefaultMaxEditDistance
	}
	if cfg.PrefixLength <= 0 {
		cfg.PrefixLength = DefaultPrefixLength
	}

	c := &Corrector{
		vocab:   vocab,
		maxDist: cfg.MaxEditDistance,
		prefix:  cfg.PrefixLength,
		deletes: make(map[string][]int),
	}
	for i, e := range vocab.entries {
		for variant := range c.deleteVariants(e.term) {
			c.deletes[variant] = append(c.deletes[variant], i)
		}
	}
	return c
}

// Correct returns text with each whitespace-delimited token independently
// replaced by its closest dictionary term within the edit-distance bound.
// Tokens with no candidate pass through verbatim, so the output always has
// the same token count and order as the input.
func (c *Corrector) Correct(text string) string {
	tokens := strings.Fields(text)
	for i, tok := range tokens {
		if term, ok := c.Lookup(tok); ok {
			tokens[i] = term
		}
	}
	return strings.Join(tokens, " ")
}

// Lookup finds the closest dictionary term for a single token. Ties are
// broken by smallest edit distance, then highest corpus frequency, then
// first-seen order. The boolean is false when no term is within the bound.
func (c *Corrector) Lookup(token string) (string, bool) {
	lowered := strings.ToLower(token)
	if lowered == "" {
		return "", false
	}

	// Exact hits short-circuit: nothing beats distance zero.
	if i, ok := c.vocab.index[lowered]; ok {
		return c.vocab.entries[i].term, true
	}

	bestIdx := -1
	bestDist := c.maxDist + 1
	seen := make(map[int]struct{})

	for variant := range c.deleteVariants(lowered) {
		for _, idx := range c.deletes[variant] {
			if _, dup := seen[idx]; dup {
				continue
			}
			seen[idx] = struct{}{}

			cand := c.vocab.entries[idx]
			if abs(utf8.RuneCountInString(cand.term)-utf8.RuneCountInString(lowered)) > c.maxDist {
				continue
			}
			d := damerauDistance(lowered, cand.term, c.maxDist)
			if d < 0 {
				continue
			}
			if c.better(idx, d, bestIdx, bestDist) {
				bestIdx, bestDist = idx, d
			}
		}
	}

	if bestIdx < 0 {
		return "", false
	}
	return c.vocab.entries[bestIdx].term, true
}

func (c *Corrector) better(idx, dist, bestIdx, bestDist int) bool {
	if dist != bestDist {
		return dist < bestDist
	}
	if bestIdx < 0 {
		return true
	}
	a, b := c.vocab.entries[idx], c.vocab.entries[bestIdx]
	if a.count != b.count {
		return a.count > b.count
	}
	return a.order < b.order
}

// deleteVariants returns the bounded-prefix delete neighborhood of term:
// the prefix itself plus every string reachable by up to maxDist single
// character deletions from it. Prefixing and deletion operate on runes, so
// multi-byte characters count as one character each.
func (c *Corrector) deleteVariants(term string) map[string]struct{} {
	prefix := []rune(term)
	if len(prefix) > c.prefix {
		prefix = prefix[:c.prefix]
	}

	variants := map[string]struct{}{string(prefix): {}}
	frontier := []string{string(prefix)}
	for d := 0; d < c.maxDist; d++ {
		var next []string
		for _, s := range frontier {
			rs := []rune(s)
			for i := range rs {
				v := string(rs[:i]) + string(rs[i+1:])
				if _, ok := variants[v]; !ok {
					variants[v] = struct{}{}
					next = append(next, v)
				}
			}
		}
		frontier = next
	}
	return variants
}

// damerauDistance computes the optimal-string-alignment distance between a
// and b (insertions, deletions, substitutions, adjacent transpositions) over
// runes, so each character counts once regardless of its UTF-8 width.
// Returns -1 when the distance exceeds maxDist.
func damerauDistance(a, b string, maxDist int) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	if abs(len(ra)-len(rb)) > maxDist {
		return -1
	}

	prev2 := make([]int, len(rb)+1)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		rowMin := cur[0]
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			d := min3(cur[j-1]+1, prev[j]+1, prev[j-1]+cost)
			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				if t := prev2[j-2] + 1; t < d {
					d = t
				}
			}
			cur[j] = d
			if d < rowMin {
				rowMin = d
			}
		}
		if rowMin > maxDist {
			return -1
		}
		prev2, prev, cur = prev, cur, prev2
	}

	if prev[len(rb)] > maxDist {
		return -1
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
