// Package spell provides corpus-derived spelling correction for user
// queries. The dictionary is closed: it contains exactly the tokens that
// appear in the loaded rows, so correction can only pull a query toward
// vocabulary the knowledge base actually uses.
package spell

import (
	"strings"

	"github.com/spherical-ai/kpi-engine/internal/corpus"
)

// entry is one dictionary word with its corpus frequency and first-seen
// order. Order breaks frequency ties deterministically.
type entry struct {
	term  string
	count int
	order int
}

// Vocabulary is the frequency-weighted dictionary built from a corpus.
// Building is deterministic and idempotent for a given corpus.
type Vocabulary struct {
	entries []entry
	index   map[string]int // term -> position in entries
}

// BuildVocabulary tokenizes every cell of every row (whitespace split,
// casefolded) and counts occurrences.
func BuildVocabulary(c *corpus.Corpus) *Vocabulary {
	v := &Vocabulary{index: make(map[string]int)}
	for _, row := range c.Rows() {
		for _, col := range row.Columns() {
			for _, tok := range strings.Fields(row.Get(col)) {
				v.add(strings.ToLower(tok))
			}
		}
	}
	return v
}

func (v *Vocabulary) add(term string) {
	if i, ok := v.index[term]; ok {
		v.entries[i].count++
		return
	}
	v.index[term] = len(v.entries)
	v.entries = append(v.entries, entry{term: term, count: 1, order: len(v.entries)})
}

// Len returns the number of distinct terms.
func (v *Vocabulary) Len() int {
	return len(v.entries)
}

// Contains reports whether the casefolded term is in the dictionary.
func (v *Vocabulary) Contains(term string) bool {
	_, ok := v.index[strings.ToLower(term)]
	return ok
}

// Count returns the corpus frequency of the casefolded term, 0 if absent.
func (v *Vocabulary) Count(term string) int {
	if i, ok := v.index[strings.ToLower(term)]; ok {
		return v.entries[i].count
	}
	return 0
}
