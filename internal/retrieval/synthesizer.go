package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/spherical-ai/kpi-engine/internal/corpus"
	"github.com/spherical-ai/kpi-engine/internal/generation"
)

// Default sampling parameters for answer synthesis.
const (
	DefaultMaxTokens   = 300
	DefaultTemperature = 0.7

	// answerCue separates the grounding prompt from the model's answer.
	// Extraction takes whatever follows the last occurrence.
	answerCue = "Answer:"
)

// SynthesizerConfig holds generation parameters for answer synthesis.
type SynthesizerConfig struct {
	MaxTokens   int
	Temperature float64
}

// Synthesizer phrases a grounded natural-language answer for a matched row.
// It never invents data: the prompt pins the generator to the row's cells.
type Synthesizer struct {
	generator   generation.Generator
	maxTokens   int
	temperature float64
}

// NewSynthesizer creates a synthesizer over the generation model.
func NewSynthesizer(gen generation.Generator, cfg SynthesizerConfig) *Synthesizer {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	return &Synthesizer{generator: gen, maxTokens: cfg.MaxTokens, temperature: cfg.Temperature}
}

// GroundingContext joins every non-empty cell as "Column: value", comma
// separated, in column order.
func GroundingContext(row corpus.Row) string {
	var parts []string
	for _, col := range row.Columns() {
		if v := row.Get(col); v != "" {
			parts = append(parts, col+": "+v)
		}
	}
	return strings.Join(parts, ", ")
}

// Prompt builds the grounding prompt: the original user query verbatim, the
// matched row's data, and the answer cue.
func (s *Synthesizer) Prompt(query string, row corpus.Row) string {
	return fmt.Sprintf("User asked: %q\nRelevant data: %s\n%s", query, GroundingContext(row), answerCue)
}

// Synthesize generates an answer for the matched row. The returned text is
// whatever follows the answer cue, trimmed. A generation that produces no
// content after the cue yields an empty answer rather than an error, so a
// weak model degrades the answer, not the interaction loop.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, row corpus.Row) (string, error) {
	out, err := s.generator.Generate(ctx, s.Prompt(query, row), s.maxTokens, s.temperature)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}

	if i := strings.LastIndex(out, answerCue); i >= 0 {
		out = out[i+len(answerCue):]
	}
	return strings.TrimSpace(out), nil
}
