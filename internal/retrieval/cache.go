package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/spherical-ai/kpi-engine/internal/cache"
)

// AnswerCacheConfig configures grounded-answer caching.
type AnswerCacheConfig struct {
	TTL       time.Duration
	KeyPrefix string
	Enabled   bool
}

// DefaultAnswerCacheConfig returns the default cache settings.
func DefaultAnswerCacheConfig() AnswerCacheConfig {
	return AnswerCacheConfig{
		TTL:       5 * time.Minute,
		KeyPrefix: "answer:",
		Enabled:   true,
	}
}

// AnswerCache stores synthesized answers keyed by the corrected query, so
// repeated (and misspelled-but-equivalent) questions skip the generation
// call. Only MATCHED outcomes are cached; clarifications and apologies are
// cheap to recompute.
type AnswerCache struct {
	client cache.Client
	cfg    AnswerCacheConfig
}

// NewAnswerCache creates an answer cache over any cache client.
func NewAnswerCache(client cache.Client, cfg AnswerCacheConfig) *AnswerCache {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "answer:"
	}
	return &AnswerCache{client: client, cfg: cfg}
}

type cachedAnswer struct {
	Answer   string    `json:"answer"`
	CachedAt time.Time `json:"cached_at"`
}

// Key derives a deterministic cache key from the corrected query.
func (c *AnswerCache) Key(correctedQuery string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(correctedQuery))))
	return c.cfg.KeyPrefix + hex.EncodeToString(sum[:16])
}

// Get returns a cached answer, or false on miss or when disabled. Cache
// errors degrade to a miss; the engine can always recompute.
func (c *AnswerCache) Get(ctx context.Context, correctedQuery string) (string, bool) {
	if !c.cfg.Enabled || c.client == nil {
		return "", false
	}
	data, err := c.client.Get(ctx, c.Key(correctedQuery))
	if err != nil {
		return "", false
	}
	var entry cachedAnswer
	if err := json.Unmarshal(data, &entry); err != nil {
		return "", false
	}
	return entry.Answer, true
}

// Set stores an answer. Failures are returned so callers can log them, but
// they never block answering.
func (c *AnswerCache) Set(ctx context.Context, correctedQuery, answer string) error {
	if !c.cfg.Enabled || c.client == nil {
		return nil
	}
	data, err := json.Marshal(cachedAnswer{Answer: answer, CachedAt: time.Now()})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.Key(correctedQuery), data, c.cfg.TTL)
}

// Purge drops all cached answers.
func (c *AnswerCache) Purge(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	err := c.client.DeleteByPrefix(ctx, c.cfg.KeyPrefix)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}
	return err
}
