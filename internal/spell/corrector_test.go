package spell

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/kpi-engine/internal/corpus"
)

func buildCorpus(t *testing.T, records [][]string) *corpus.Corpus {
	t.Helper()
	c, err := corpus.New([]string{"KPI Name", "Value"}, records)
	require.NoError(t, err)
	return c
}

func newTestCorrector(t *testing.T) *Corrector {
	t.Helper()
	c := buildCorpus(t, [][]string{
		{"Gross Production", "120"},
		{"Net Sales", "95"},
		{"Production Efficiency", "0.87"},
	})
	return NewCorrector(BuildVocabulary(c), CorrectorConfig{})
}

func TestCorrector_FixesMisspelledToken(t *testing.T) {
	corr := newTestCorrector(t)

	got := corr.Correct("what the gross producton")
	assert.Equal(t, "what the gross production", got)
}

func TestCorrector_ShortTokensSnapToNearbyData(t *testing.T) {
	corr := newTestCorrector(t)

	// The dictionary is closed over the corpus, so a short stopword like
	// "is" sits within the edit bound of the data token "95" and gets
	// pulled toward it. Downstream matching tolerates this: the corrected
	// query only feeds the embedder.
	got := corr.Correct("what is gross producton")
	assert.Equal(t, "what 95 gross production", got)
}

func TestCorrector_HandlesTranspositions(t *testing.T) {
	corr := newTestCorrector(t)

	// "slaes" -> "sales" is one adjacent transposition.
	_, ok := corr.Lookup("slaes")
	require.True(t, ok)
	term, _ := corr.Lookup("slaes")
	assert.Equal(t, "sales", term)
}

func TestCorrector_CountsAccentedRunesAsSingleEdits(t *testing.T) {
	c := buildCorpus(t, [][]string{
		{"Coût Unitaire", "12"},
		{"Qualité Moyenne", "0.98"},
	})
	corr := NewCorrector(BuildVocabulary(c), CorrectorConfig{})

	// Two character edits against a term whose accent is multi-byte; byte
	// arithmetic would put this outside the bound.
	term, ok := corr.Lookup("cots")
	require.True(t, ok)
	assert.Equal(t, "coût", term)

	// The accented rune straddles the prefix boundary when counted in bytes.
	term, ok = corr.Lookup("qualite")
	require.True(t, ok)
	assert.Equal(t, "qualité", term)
}

func TestDamerauDistance_OperatesOnRunes(t *testing.T) {
	assert.Equal(t, 1, damerauDistance("café", "cafe", 2))
	assert.Equal(t, 2, damerauDistance("résumé", "resume", 2))
	// Three substitutions regardless of byte width.
	assert.Equal(t, -1, damerauDistance("ééé", "eee", 2))
}

func TestCorrector_UnknownTokensPassThrough(t *testing.T) {
	corr := newTestCorrector(t)

	// Nothing in the dictionary is within distance 2 of these.
	got := corr.Correct("zzzzzzz 12345 quarterly-report-xyz")
	assert.Equal(t, "zzzzzzz 12345 quarterly-report-xyz", got)
}

func TestCorrector_PreservesTokenCount(t *testing.T) {
	corr := newTestCorrector(t)

	inputs := []string{
		"what is gross producton",
		"  leading and   trailing   spaces  ",
		"one",
		"compleetly unknown wrds here",
	}
	for _, in := range inputs {
		out := corr.Correct(in)
		assert.Len(t, strings.Fields(out), len(strings.Fields(in)), "input %q", in)
	}
}

func TestCorrector_IsIdempotent(t *testing.T) {
	corr := newTestCorrector(t)

	inputs := []string{
		"what is gross producton",
		"net slaes efficency",
		"totally unrelated zebra",
		"",
	}
	for _, in := range inputs {
		once := corr.Correct(in)
		assert.Equal(t, once, corr.Correct(once), "input %q", in)
	}
}

func TestCorrector_ExactMatchWinsOverCloseNeighbors(t *testing.T) {
	corr := newTestCorrector(t)

	term, ok := corr.Lookup("production")
	require.True(t, ok)
	assert.Equal(t, "production", term)
}

func TestCorrector_TieBreaksByFrequency(t *testing.T) {
	// "cart" and "card" are both distance 1 from "carf"; "card" appears
	// more often, so it wins.
	c := buildCorpus(t, [][]string{
		{"cart", "1"},
		{"card", "2"},
		{"card", "3"},
	})
	corr := NewCorrector(BuildVocabulary(c), CorrectorConfig{})

	term, ok := corr.Lookup("carf")
	require.True(t, ok)
	assert.Equal(t, "card", term)
}

func TestCorrector_TieBreaksByFirstSeenOrder(t *testing.T) {
	// Same distance, same frequency: the word seen first in the corpus wins.
	c := buildCorpus(t, [][]string{
		{"mast", "1"},
		{"most", "2"},
	})
	corr := NewCorrector(BuildVocabulary(c), CorrectorConfig{})

	term, ok := corr.Lookup("mist")
	require.True(t, ok)
	assert.Equal(t, "mast", term)
}

func TestCorrector_RespectsEditDistanceBound(t *testing.T) {
	corr := newTestCorrector(t)

	// Three edits away from "sales"; outside the default bound of 2.
	_, ok := corr.Lookup("sxxxes")
	assert.False(t, ok)
}

func TestCorrector_LongWordsBeyondPrefix(t *testing.T) {
	// Words longer than the prefix length still correct; the prefix only
	// bounds the delete index.
	c := buildCorpus(t, [][]string{
		{"manufacturability", "1"},
	})
	corr := NewCorrector(BuildVocabulary(c), CorrectorConfig{})

	term, ok := corr.Lookup("manufcaturability")
	require.True(t, ok)
	assert.Equal(t, "manufacturability", term)
}

func TestDamerauDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "abc", 0},
		{"abc", "ab", 1},
		{"abc", "abcd", 1},
		{"abc", "axc", 1},
		{"abc", "acb", 1}, // adjacent transposition
		{"ab", "ba", 1},
		{"abcd", "badc", 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, damerauDistance(tt.a, tt.b, 2), "%q vs %q", tt.a, tt.b)
	}

	// Beyond the bound the function reports -1 instead of the true distance.
	assert.Equal(t, -1, damerauDistance("abc", "xyz", 2))
	assert.Equal(t, -1, damerauDistance("short", "muchlongerword", 2))
}
