// Package retrieval implements the core question-answering pipeline: spell
// correction, nearest-row matching over precomputed embeddings, confidence
// gating, and grounded answer synthesis.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spherical-ai/kpi-engine/internal/corpus"
	"github.com/spherical-ai/kpi-engine/internal/embedding"
	"github.com/spherical-ai/kpi-engine/internal/spell"
)

// ErrEmptyIndex indicates a matcher was constructed without any rows; the
// matcher refuses to operate rather than return meaningless matches later.
var ErrEmptyIndex = errors.New("matcher requires a non-empty corpus")

// Scored pairs a row index with its cosine similarity to a query.
type Scored struct {
	Index int
	Score float64
}

// Matcher finds the corpus rows most semantically similar to a query. Row
// embeddings are computed once at startup and are read-only afterwards, so a
// single matcher is safe for concurrent readers.
type Matcher struct {
	corpus    *corpus.Corpus
	vectors   [][]float32
	dim       int
	encoder   embedding.Encoder
	corrector *spell.Corrector
}

// BuildIndex flattens every row and embeds the batch in one startup call.
// vectors[i] corresponds to c.Row(i).
func BuildIndex(ctx context.Context, c *corpus.Corpus, enc embedding.Encoder) ([][]float32, error) {
	if c.Len() == 0 {
		return nil, ErrEmptyIndex
	}
	vectors, err := enc.EncodeBatch(ctx, c.Flatten())
	if err != nil {
		return nil, fmt.Errorf("embed corpus: %w", err)
	}
	if len(vectors) != c.Len() {
		return nil, fmt.Errorf("embed corpus: got %d vectors for %d rows", len(vectors), c.Len())
	}
	return vectors, nil
}

// NewMatcher constructs a matcher over precomputed row embeddings. It fails
// fast on an empty corpus, a vector/row count mismatch, or row vectors of
// uneven dimension, so a stale snapshot embedded under a different model
// surfaces at startup instead of degrading every query.
func NewMatcher(c *corpus.Corpus, vectors [][]float32, enc embedding.Encoder, corr *spell.Corrector) (*Matcher, error) {
	if c == nil || c.Len() == 0 {
		return nil, ErrEmptyIndex
	}
	if len(vectors) != c.Len() {
		return nil, fmt.Errorf("matcher: %d vectors for %d rows", len(vectors), c.Len())
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("matcher: row 0 vector is empty")
	}
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("matcher: row %d vector has %d dimensions, want %d", i, len(v), dim)
		}
	}
	return &Matcher{corpus: c, vectors: vectors, dim: dim, encoder: enc, corrector: corr}, nil
}

// Corpus returns the corpus the matcher was built over.
func (m *Matcher) Corpus() *corpus.Corpus {
	return m.corpus
}

// Match scores every row against queryVec and returns the full ranking in
// descending score order. Equal scores rank by ascending row index, keeping
// results deterministic. A linear scan is the accepted complexity ceiling
// for corpora of this size; an ANN index could replace it behind the same
// contract if that ever changes.
func (m *Matcher) Match(queryVec []float32) []Scored {
	ranked := make([]Scored, len(m.vectors))
	for i, v := range m.vectors {
		ranked[i] = Scored{Index: i, Score: embedding.Cosine(queryVec, v)}
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		if ranked[a].Score != ranked[b].Score {
			return ranked[a].Score > ranked[b].Score
		}
		return ranked[a].Index < ranked[b].Index
	})
	return ranked
}

// BestMatch corrects the query's spelling, embeds the corrected text, and
// returns the argmax row with its score and the corrected query. Ties go to
// the lowest row index.
func (m *Matcher) BestMatch(ctx context.Context, query string) (int, float64, string, error) {
	corrected := m.Correct(query)

	queryVec, err := m.Encode(ctx, corrected)
	if err != nil {
		return 0, 0, corrected, err
	}

	best := Scored{Index: 0, Score: embedding.Cosine(queryVec, m.vectors[0])}
	for i := 1; i < len(m.vectors); i++ {
		if s := embedding.Cosine(queryVec, m.vectors[i]); s > best.Score {
			best = Scored{Index: i, Score: s}
		}
	}
	return best.Index, best.Score, corrected, nil
}

// Shortlist returns up to limit rows scoring at least threshold, best first.
// It enforces both a quality floor and an output-size cap.
func (m *Matcher) Shortlist(queryVec []float32, threshold float64, limit int) []Scored {
	if limit <= 0 {
		limit = DefaultShortlistLimit
	}
	var shortlist []Scored
	for _, s := range m.Match(queryVec) {
		if s.Score < threshold {
			break
		}
		shortlist = append(shortlist, s)
		if len(shortlist) >= limit {
			break
		}
	}
	return shortlist
}

// Encode embeds text with the matcher's encoder and verifies the vector has
// the row embeddings' dimension. The gate uses this to reuse the corrected
// query's embedding for shortlist scoring.
func (m *Matcher) Encode(ctx context.Context, text string) ([]float32, error) {
	vec, err := m.encoder.Encode(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vec) != m.dim {
		return nil, fmt.Errorf("embed query: got %d dimensions, index has %d", len(vec), m.dim)
	}
	return vec, nil
}

// Correct applies spelling correction to query. BestMatch applies the same
// correction before embedding, so callers can derive cache keys from it
// without an embedding call.
func (m *Matcher) Correct(query string) string {
	if m.corrector == nil {
		return query
	}
	return m.corrector.Correct(query)
}
