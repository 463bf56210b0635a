package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/kpi-engine/internal/cache"
	"github.com/spherical-ai/kpi-engine/internal/corpus"
	"github.com/spherical-ai/kpi-engine/internal/generation"
	"github.com/spherical-ai/kpi-engine/internal/observability"
	"github.com/spherical-ai/kpi-engine/internal/retrieval"
	"github.com/spherical-ai/kpi-engine/internal/spell"
)

// keywordEncoder embeds texts by keyword: any text mentioning a known phrase
// maps to that phrase's vector, everything else to a vector orthogonal to
// all rows. Deterministic stand-in for the semantic model.
type keywordEncoder struct {
	keywords []string
	vectors  [][]float32
	fallback []float32
	err      error
	calls    int
}

func (e *keywordEncoder) Encode(_ context.Context, text string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	lower := strings.ToLower(text)
	for i, kw := range e.keywords {
		if strings.Contains(lower, kw) {
			return e.vectors[i], nil
		}
	}
	return e.fallback, nil
}

func (e *keywordEncoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Encode(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *keywordEncoder) Model() string { return "keyword-stub" }

type fixture struct {
	engine  *Engine
	encoder *keywordEncoder
	gen     *generation.MockGenerator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	c, err := corpus.New([]string{"KPI Name", "Value"}, [][]string{
		{"Gross Production", "120"},
		{"Net Sales", "95"},
		{"Inventory Turnover", "8"},
	})
	require.NoError(t, err)

	enc := &keywordEncoder{
		keywords: []string{"gross production", "net sales", "inventory turnover", "compare"},
		vectors: [][]float32{
			{1, 0, 0, 0},
			{0, 1, 0, 0},
			{0, 0, 1, 0},
			// "compare" scores 0.50 / 0.47 / 0.30: between the thresholds.
			{0.50, 0.47, 0.30, 0.6626},
		},
		fallback: []float32{0, 0, 0, 1},
	}

	vectors, err := retrieval.BuildIndex(context.Background(), c, enc)
	require.NoError(t, err)
	enc.calls = 0

	corrector := spell.NewCorrector(spell.BuildVocabulary(c), spell.CorrectorConfig{})
	matcher, err := retrieval.NewMatcher(c, vectors, enc, corrector)
	require.NoError(t, err)

	gen := &generation.MockGenerator{Reply: "Answer: Gross production is 120."}
	synth := retrieval.NewSynthesizer(gen, retrieval.SynthesizerConfig{})
	ac := retrieval.NewAnswerCache(cache.NewMemoryClient(100), retrieval.DefaultAnswerCacheConfig())

	eng := New(retrieval.NewGate(matcher, retrieval.DefaultGateConfig()), synth, ac, observability.Nop())
	return &fixture{engine: eng, encoder: enc, gen: gen}
}

func TestEngine_AnswersMisspelledQueryGrounded(t *testing.T) {
	f := newFixture(t)

	answer, err := f.engine.Answer(context.Background(), "what is gross producton")
	require.NoError(t, err)
	assert.Equal(t, "Gross production is 120.", answer)

	require.Equal(t, 1, f.gen.Calls())
	prompt := f.gen.Prompts[0]
	assert.Contains(t, prompt, "KPI Name: Gross Production, Value: 120")
	// Original query verbatim, misspelling and all.
	assert.Contains(t, prompt, `"what is gross producton"`)
}

func TestEngine_CachesMatchedAnswers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.engine.Answer(ctx, "what is gross producton")
	require.NoError(t, err)
	require.Equal(t, 1, f.encoder.calls)

	second, err := f.engine.Answer(ctx, "what is gross producton")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.gen.Calls(), "second ask should hit the answer cache")
	assert.Equal(t, 1, f.encoder.calls, "a cache hit must not embed the query again")
}

func TestEngine_AmbiguousQueryListsCandidates(t *testing.T) {
	f := newFixture(t)

	answer, err := f.engine.Answer(context.Background(), "compare performance")
	require.NoError(t, err)

	assert.Equal(t, "I'm not sure what you meant. Did you mean:\n- Gross Production\n- Net Sales", answer)
	assert.Zero(t, f.gen.Calls(), "clarifications must not reach the generator")
}

func TestEngine_NotFoundReturnsApology(t *testing.T) {
	f := newFixture(t)

	answer, err := f.engine.Answer(context.Background(), "completely unrelated question")
	require.NoError(t, err)

	assert.Equal(t, ApologyMessage, answer)
	assert.Zero(t, f.gen.Calls(), "apologies must not reach the generator")
}

func TestEngine_EmptyQueryIsNotFound(t *testing.T) {
	f := newFixture(t)

	for _, q := range []string{"", "   "} {
		answer, err := f.engine.Answer(context.Background(), q)
		require.NoError(t, err)
		assert.Equal(t, ApologyMessage, answer, "query %q", q)
	}
	assert.Zero(t, f.encoder.calls, "empty queries must not reach the embedding model")
	assert.Zero(t, f.gen.Calls())
}

func TestEngine_SurfacesEmbeddingFailure(t *testing.T) {
	f := newFixture(t)
	f.encoder.err = errors.New("embedding model down")

	_, err := f.engine.Answer(context.Background(), "what is net sales")
	assert.Error(t, err)
}

func TestEngine_SurfacesGenerationFailure(t *testing.T) {
	f := newFixture(t)
	f.gen.Err = errors.New("generation model down")

	_, err := f.engine.Answer(context.Background(), "what is net sales")
	assert.Error(t, err)
}
