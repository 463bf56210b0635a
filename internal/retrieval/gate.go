package retrieval

import (
	"context"
	"strings"
)

// Default gate parameters. Both thresholds are tunable configuration, not
// hardwired truths; they ship as the values the engine was originally tuned
// with and can be overridden per deployment.
const (
	// DefaultMatchThreshold is the similarity floor for answering directly.
	DefaultMatchThreshold = 0.55
	// DefaultSuggestThreshold is the similarity floor for offering a row as
	// a disambiguation candidate.
	DefaultSuggestThreshold = 0.45
	// DefaultShortlistLimit caps how many candidates a clarification lists.
	DefaultShortlistLimit = 3
	// DefaultNameColumn is the column used to label suggestion candidates
	// when the corpus has it; otherwise the first column labels the row.
	DefaultNameColumn = "KPI Name"
)

// State is the terminal outcome of gating one query.
type State int

const (
	// StateMatched means the best row cleared the direct-match threshold.
	StateMatched State = iota
	// StateAmbiguous means no row cleared the match threshold but at least
	// one cleared the suggestion threshold.
	StateAmbiguous
	// StateNotFound means no row cleared even the suggestion threshold.
	StateNotFound
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StateMatched:
		return "matched"
	case StateAmbiguous:
		return "ambiguous"
	default:
		return "not_found"
	}
}

// Decision is the gate's verdict on a single query.
type Decision struct {
	State          State
	RowIndex       int     // valid when State == StateMatched
	Score          float64 // best-match similarity
	CorrectedQuery string
	Suggestions    []string // row labels, valid when State == StateAmbiguous
}

// GateConfig holds the gate's tunable thresholds.
type GateConfig struct {
	MatchThreshold   float64
	SuggestThreshold float64
	ShortlistLimit   int
	NameColumn       string
}

// DefaultGateConfig returns the shipped gate parameters.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		MatchThreshold:   DefaultMatchThreshold,
		SuggestThreshold: DefaultSuggestThreshold,
		ShortlistLimit:   DefaultShortlistLimit,
		NameColumn:       DefaultNameColumn,
	}
}

// Gate applies confidence thresholds to a query's retrieval result and
// decides between answering directly, asking for clarification, and giving
// up. Generation is expensive and must never run ungrounded; the gate is
// what keeps low-confidence retrievals from reaching the generator.
type Gate struct {
	matcher *Matcher
	cfg     GateConfig
}

// NewGate creates a gate over the matcher.
func NewGate(matcher *Matcher, cfg GateConfig) *Gate {
	if cfg.MatchThreshold == 0 {
		cfg.MatchThreshold = DefaultMatchThreshold
	}
	if cfg.SuggestThreshold == 0 {
		cfg.SuggestThreshold = DefaultSuggestThreshold
	}
	if cfg.ShortlistLimit <= 0 {
		cfg.ShortlistLimit = DefaultShortlistLimit
	}
	if cfg.NameColumn == "" {
		cfg.NameColumn = DefaultNameColumn
	}
	return &Gate{matcher: matcher, cfg: cfg}
}

// Matcher returns the matcher the gate decides over.
func (g *Gate) Matcher() *Matcher {
	return g.matcher
}

// Decide runs one query through the state machine. Empty or whitespace-only
// queries resolve to StateNotFound without touching the embedding model.
func (g *Gate) Decide(ctx context.Context, query string) (*Decision, error) {
	if strings.TrimSpace(query) == "" {
		return &Decision{State: StateNotFound}, nil
	}

	idx, score, corrected, err := g.matcher.BestMatch(ctx, query)
	if err != nil {
		return nil, err
	}

	if score >= g.cfg.MatchThreshold {
		return &Decision{
			State:          StateMatched,
			RowIndex:       idx,
			Score:          score,
			CorrectedQuery: corrected,
		}, nil
	}

	queryVec, err := g.matcher.Encode(ctx, corrected)
	if err != nil {
		return nil, err
	}

	shortlist := g.matcher.Shortlist(queryVec, g.cfg.SuggestThreshold, g.cfg.ShortlistLimit)
	if len(shortlist) == 0 {
		return &Decision{
			State:          StateNotFound,
			Score:          score,
			CorrectedQuery: corrected,
		}, nil
	}

	suggestions := make([]string, len(shortlist))
	for i, s := range shortlist {
		suggestions[i] = g.matcher.Corpus().Row(s.Index).Label(g.cfg.NameColumn)
	}
	return &Decision{
		State:          StateAmbiguous,
		Score:          score,
		CorrectedQuery: corrected,
		Suggestions:    suggestions,
	}, nil
}
