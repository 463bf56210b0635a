package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/kpi-engine/internal/corpus"
	"github.com/spherical-ai/kpi-engine/internal/generation"
)

func TestGroundingContext_JoinsNonEmptyCells(t *testing.T) {
	c, err := corpus.New([]string{"KPI Name", "Value", "Unit"}, [][]string{
		{"Gross Production", "120", ""},
	})
	require.NoError(t, err)

	got := GroundingContext(c.Row(0))
	assert.Equal(t, "KPI Name: Gross Production, Value: 120", got)
}

func TestSynthesizer_PromptQuotesOriginalQuery(t *testing.T) {
	c, err := corpus.New([]string{"KPI Name", "Value"}, [][]string{
		{"Gross Production", "120"},
	})
	require.NoError(t, err)

	s := NewSynthesizer(&generation.MockGenerator{}, SynthesizerConfig{})
	prompt := s.Prompt("what is gross producton", c.Row(0))

	// The prompt embeds the user's query verbatim, misspelling included;
	// the corrected form is only for retrieval.
	assert.Contains(t, prompt, `User asked: "what is gross producton"`)
	assert.Contains(t, prompt, "KPI Name: Gross Production, Value: 120")
	assert.Contains(t, prompt, "Answer:")
}

func TestSynthesizer_ExtractsTextAfterCue(t *testing.T) {
	c, err := corpus.New([]string{"KPI Name", "Value"}, [][]string{
		{"Gross Production", "120"},
	})
	require.NoError(t, err)

	gen := &generation.MockGenerator{Reply: "some preamble\nAnswer:  Gross production is 120 units.  "}
	s := NewSynthesizer(gen, SynthesizerConfig{})

	answer, err := s.Synthesize(context.Background(), "what is gross production", c.Row(0))
	require.NoError(t, err)
	assert.Equal(t, "Gross production is 120 units.", answer)
}

func TestSynthesizer_EmptyGenerationDegradesGracefully(t *testing.T) {
	c, err := corpus.New([]string{"KPI Name", "Value"}, [][]string{
		{"Gross Production", "120"},
	})
	require.NoError(t, err)

	// The mock echoes the prompt, which ends at the cue with nothing after
	// it: the synthesizer returns an empty answer, not an error.
	s := NewSynthesizer(&generation.MockGenerator{}, SynthesizerConfig{})
	answer, err := s.Synthesize(context.Background(), "q", c.Row(0))
	require.NoError(t, err)
	assert.Equal(t, "", answer)
}

func TestSynthesizer_PropagatesGenerationFailure(t *testing.T) {
	c, err := corpus.New([]string{"KPI Name", "Value"}, [][]string{
		{"Gross Production", "120"},
	})
	require.NoError(t, err)

	genErr := errors.New("upstream 503")
	s := NewSynthesizer(&generation.MockGenerator{Err: genErr}, SynthesizerConfig{})

	_, err = s.Synthesize(context.Background(), "q", c.Row(0))
	assert.ErrorIs(t, err, genErr)
}
