package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/kpi-engine/internal/corpus"
)

// stubEncoder maps exact query strings to fixed vectors, so tests control
// similarity scores precisely. Unknown texts embed to defaultVec.
type stubEncoder struct {
	vectors    map[string][]float32
	defaultVec []float32
	err        error
	calls      int
}

func (s *stubEncoder) Encode(_ context.Context, text string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return s.defaultVec, nil
}

func (s *stubEncoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.Encode(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *stubEncoder) Model() string { return "stub" }

func kpiCorpus(t *testing.T) *corpus.Corpus {
	t.Helper()
	c, err := corpus.New([]string{"KPI Name", "Value"}, [][]string{
		{"Gross Production", "120"},
		{"Net Sales", "95"},
		{"Inventory Turnover", "8"},
	})
	require.NoError(t, err)
	return c
}

// Unit basis vectors in 4 dimensions, one per row, plus headroom for query
// vectors that need a fourth component to stay unit length.
func basisVectors() [][]float32 {
	return [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
	}
}

func TestNewMatcher_FailsFastOnEmptyCorpus(t *testing.T) {
	_, err := NewMatcher(nil, nil, &stubEncoder{}, nil)
	assert.ErrorIs(t, err, ErrEmptyIndex)
}

func TestNewMatcher_FailsFastOnVectorMismatch(t *testing.T) {
	c := kpiCorpus(t)
	_, err := NewMatcher(c, [][]float32{{1, 0}}, &stubEncoder{}, nil)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmptyIndex)
}

func TestNewMatcher_FailsFastOnUnevenDimensions(t *testing.T) {
	c := kpiCorpus(t)
	vectors := [][]float32{{1, 0, 0, 0}, {0, 1, 0}, {0, 0, 1, 0}}
	_, err := NewMatcher(c, vectors, &stubEncoder{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 1")
}

func TestNewMatcher_FailsFastOnEmptyVector(t *testing.T) {
	c := kpiCorpus(t)
	vectors := [][]float32{{}, {}, {}}
	_, err := NewMatcher(c, vectors, &stubEncoder{}, nil)
	assert.Error(t, err)
}

func TestMatcher_RejectsQueryVectorOfWrongDimension(t *testing.T) {
	c := kpiCorpus(t)
	// A snapshot embedded under a different model: rows are 4-dim, the
	// configured encoder now produces 6-dim vectors.
	enc := &stubEncoder{defaultVec: []float32{1, 0, 0, 0, 0, 0}}
	m, err := NewMatcher(c, basisVectors(), enc, nil)
	require.NoError(t, err)

	_, _, _, err = m.BestMatch(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimensions")

	_, err = m.Encode(context.Background(), "q")
	assert.Error(t, err)
}

func TestMatcher_IdentityQueryScoresOne(t *testing.T) {
	c := kpiCorpus(t)
	vectors := basisVectors()

	for i := range vectors {
		enc := &stubEncoder{vectors: map[string][]float32{"q": vectors[i]}}
		m, err := NewMatcher(c, vectors, enc, nil)
		require.NoError(t, err)

		idx, score, _, err := m.BestMatch(context.Background(), "q")
		require.NoError(t, err)
		assert.Equal(t, i, idx)
		assert.InDelta(t, 1.0, score, 1e-6)
	}
}

func TestMatcher_TieBreaksToLowestIndex(t *testing.T) {
	c := kpiCorpus(t)
	same := []float32{1, 0, 0, 0}
	vectors := [][]float32{same, same, same}

	enc := &stubEncoder{vectors: map[string][]float32{"q": same}}
	m, err := NewMatcher(c, vectors, enc, nil)
	require.NoError(t, err)

	idx, score, _, err := m.BestMatch(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.InDelta(t, 1.0, score, 1e-6)
}

func TestMatcher_MatchRanksAllRowsDescending(t *testing.T) {
	c := kpiCorpus(t)
	m, err := NewMatcher(c, basisVectors(), &stubEncoder{}, nil)
	require.NoError(t, err)

	// Scores: row0 = 3/|q|, row1 = 2/|q|, row2 = 1/|q|.
	ranked := m.Match([]float32{3, 2, 1, 0})
	require.Len(t, ranked, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{ranked[0].Index, ranked[1].Index, ranked[2].Index})
	assert.True(t, ranked[0].Score > ranked[1].Score)
	assert.True(t, ranked[1].Score > ranked[2].Score)
}

func TestMatcher_ShortlistEnforcesFloor(t *testing.T) {
	c := kpiCorpus(t)
	m, err := NewMatcher(c, basisVectors(), &stubEncoder{}, nil)
	require.NoError(t, err)

	// |q| = sqrt(14): scores ~0.802, ~0.535, ~0.267.
	shortlist := m.Shortlist([]float32{3, 2, 1, 0}, 0.45, 3)
	require.Len(t, shortlist, 2)
	assert.Equal(t, 0, shortlist[0].Index)
	assert.Equal(t, 1, shortlist[1].Index)
	for _, s := range shortlist {
		assert.GreaterOrEqual(t, s.Score, 0.45)
	}
}

func TestMatcher_ShortlistEnforcesCap(t *testing.T) {
	records := [][]string{{"a", "1"}, {"b", "2"}, {"c", "3"}, {"d", "4"}, {"e", "5"}}
	c, err := corpus.New([]string{"KPI Name", "Value"}, records)
	require.NoError(t, err)

	same := []float32{1, 0}
	vectors := [][]float32{same, same, same, same, same}
	m, err := NewMatcher(c, vectors, &stubEncoder{}, nil)
	require.NoError(t, err)

	shortlist := m.Shortlist(same, 0.45, 3)
	assert.Len(t, shortlist, 3)
	// Equal scores shortlist in ascending index order.
	assert.Equal(t, []int{0, 1, 2}, []int{shortlist[0].Index, shortlist[1].Index, shortlist[2].Index})
}

func TestMatcher_BestMatchPropagatesEncoderFailure(t *testing.T) {
	c := kpiCorpus(t)
	encErr := errors.New("model unavailable")
	m, err := NewMatcher(c, basisVectors(), &stubEncoder{err: encErr}, nil)
	require.NoError(t, err)

	_, _, _, err = m.BestMatch(context.Background(), "q")
	assert.ErrorIs(t, err, encErr)
}

func TestBuildIndex_AlignsVectorsWithRows(t *testing.T) {
	c := kpiCorpus(t)
	enc := &stubEncoder{
		vectors: map[string][]float32{
			"Gross Production 120": {1, 0, 0, 0},
			"Net Sales 95":         {0, 1, 0, 0},
			"Inventory Turnover 8": {0, 0, 1, 0},
		},
	}

	vectors, err := BuildIndex(context.Background(), c, enc)
	require.NoError(t, err)
	assert.Equal(t, basisVectors(), vectors)
}
