// Package engine exposes the single entry point callers use: Answer, which
// runs one query through correction, matching, gating, and synthesis.
package engine

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spherical-ai/kpi-engine/internal/observability"
	"github.com/spherical-ai/kpi-engine/internal/retrieval"
)

// ApologyMessage is the fixed NOT_FOUND reply.
const ApologyMessage = "Sorry, I couldn't find relevant data in your file."

// clarificationPrefix opens the AMBIGUOUS reply; candidate labels follow as
// a bulleted list.
const clarificationPrefix = "I'm not sure what you meant. Did you mean:"

// Engine wires the retrieval pipeline behind one Answer call. It holds no
// per-query state: everything it owns is built at startup and read-only, so
// one engine serves concurrent callers.
type Engine struct {
	gate   *retrieval.Gate
	synth  *retrieval.Synthesizer
	cache  *retrieval.AnswerCache
	logger *observability.Logger
}

// New creates an engine. cache may be nil to disable answer caching.
func New(gate *retrieval.Gate, synth *retrieval.Synthesizer, cache *retrieval.AnswerCache, logger *observability.Logger) *Engine {
	if logger == nil {
		logger = observability.DefaultLogger()
	}
	return &Engine{gate: gate, synth: synth, cache: cache, logger: logger}
}

// Answer resolves one query to a user-visible string: a grounded answer, a
// clarification list, or the fixed apology. Every expected flow returns a
// string; only external model failures surface as errors, and the caller
// owns translating those for the user.
func (e *Engine) Answer(ctx context.Context, query string) (string, error) {
	start := time.Now()
	log := e.logger.WithContext(observability.ContextWithQueryID(ctx, uuid.NewString()))

	// The cache key is the corrected query, which the corrector produces
	// without any model call, so a repeat question skips embedding and
	// generation entirely. Only matched answers are ever cached.
	if e.cache != nil {
		corrected := e.gate.Matcher().Correct(query)
		if answer, ok := e.cache.Get(ctx, corrected); ok {
			log.Info().
				Str("state", retrieval.StateMatched.String()).
				Str("corrected_query", corrected).
				Bool("cache_hit", true).
				Dur("latency", time.Since(start)).
				Msg("query answered")
			return answer, nil
		}
	}

	decision, err := e.gate.Decide(ctx, query)
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("retrieval failed")
		return "", err
	}

	var answer string
	switch decision.State {
	case retrieval.StateMatched:
		answer, err = e.answerMatched(ctx, query, decision)
		if err != nil {
			log.Error().Err(err).Str("query", query).Float64("score", decision.Score).Msg("synthesis failed")
			return "", err
		}
	case retrieval.StateAmbiguous:
		answer = formatClarification(decision.Suggestions)
	default:
		answer = ApologyMessage
	}

	log.Info().
		Str("state", decision.State.String()).
		Str("corrected_query", decision.CorrectedQuery).
		Float64("score", decision.Score).
		Bool("cache_hit", false).
		Dur("latency", time.Since(start)).
		Msg("query answered")
	return answer, nil
}

func (e *Engine) answerMatched(ctx context.Context, query string, decision *retrieval.Decision) (string, error) {
	row := e.gate.Matcher().Corpus().Row(decision.RowIndex)
	answer, err := e.synth.Synthesize(ctx, query, row)
	if err != nil {
		return "", err
	}

	if e.cache != nil && answer != "" {
		if err := e.cache.Set(ctx, decision.CorrectedQuery, answer); err != nil {
			e.logger.Warn().Err(err).Msg("cache answer")
		}
	}
	return answer, nil
}

func formatClarification(labels []string) string {
	var b strings.Builder
	b.WriteString(clarificationPrefix)
	for _, label := range labels {
		b.WriteString("\n- ")
		b.WriteString(label)
	}
	return b.String()
}
