package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spherical-ai/kpi-engine/internal/cache"
	"github.com/spherical-ai/kpi-engine/internal/config"
	"github.com/spherical-ai/kpi-engine/internal/corpus"
	"github.com/spherical-ai/kpi-engine/internal/embedding"
	"github.com/spherical-ai/kpi-engine/internal/engine"
	"github.com/spherical-ai/kpi-engine/internal/generation"
	"github.com/spherical-ai/kpi-engine/internal/retrieval"
	"github.com/spherical-ai/kpi-engine/internal/spell"
)

// buildEngine assembles the full answering pipeline from the persisted
// corpus snapshot. The returned closer releases the store and cache.
func buildEngine(ctx context.Context, cfg *config.Config) (*engine.Engine, func(), error) {
	store, err := corpus.OpenStore(cfg.Corpus.StorePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	c, model, vectors, err := store.LoadCorpus(ctx)
	if err != nil {
		store.Close()
		if errors.Is(err, corpus.ErrNotIngested) {
			return nil, nil, fmt.Errorf("no ingested corpus in %s; run `kpi-engine ingest` first", cfg.Corpus.StorePath)
		}
		return nil, nil, fmt.Errorf("load corpus: %w", err)
	}
	if model != "" && model != cfg.Embedding.Model {
		logger.Warn().Str("stored", model).Str("configured", cfg.Embedding.Model).
			Msg("embedding model changed since ingest; query and row vectors may not be comparable")
	}

	encoder, err := embedding.NewClient(embedding.Config{
		APIKey:    cfg.Embedding.APIKey,
		Model:     cfg.Embedding.Model,
		BaseURL:   cfg.Embedding.BaseURL,
		BatchSize: cfg.Embedding.BatchSize,
		Timeout:   cfg.Embedding.Timeout,
	})
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("create embedding client: %w", err)
	}

	generator, err := generation.NewClient(generation.Config{
		APIKey:  cfg.Generation.APIKey,
		Model:   cfg.Generation.Model,
		BaseURL: cfg.Generation.BaseURL,
		Timeout: cfg.Generation.Timeout,
	})
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("create generation client: %w", err)
	}

	vocab := spell.BuildVocabulary(c)
	corrector := spell.NewCorrector(vocab, spell.CorrectorConfig{
		MaxEditDistance: cfg.Spell.MaxEditDistance,
		PrefixLength:    cfg.Spell.PrefixLength,
	})

	matcher, err := retrieval.NewMatcher(c, vectors, encoder, corrector)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("build matcher: %w", err)
	}

	gate := retrieval.NewGate(matcher, retrieval.GateConfig{
		MatchThreshold:   cfg.Retrieval.MatchThreshold,
		SuggestThreshold: cfg.Retrieval.SuggestThreshold,
		ShortlistLimit:   cfg.Retrieval.ShortlistLimit,
		NameColumn:       cfg.Retrieval.NameColumn,
	})

	synth := retrieval.NewSynthesizer(generator, retrieval.SynthesizerConfig{
		MaxTokens:   cfg.Generation.MaxTokens,
		Temperature: cfg.Generation.Temperature,
	})

	cacheClient, err := newCacheClient(cfg)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	answerCache := retrieval.NewAnswerCache(cacheClient, retrieval.AnswerCacheConfig{
		TTL:     cfg.Cache.TTL,
		Enabled: true,
	})

	eng := engine.New(gate, synth, answerCache, logger)
	closer := func() {
		_ = cacheClient.Close()
		_ = store.Close()
	}

	logger.Info().
		Int("rows", c.Len()).
		Int("vocabulary", vocab.Len()).
		Str("embedding_model", cfg.Embedding.Model).
		Str("generation_model", cfg.Generation.Model).
		Msg("engine ready")
	return eng, closer, nil
}

func newCacheClient(cfg *config.Config) (cache.Client, error) {
	if cfg.Cache.Driver == "redis" {
		client, err := cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			PoolSize: cfg.Cache.Redis.PoolSize,
		})
		if err != nil {
			return nil, fmt.Errorf("connect redis cache: %w", err)
		}
		return client, nil
	}
	return cache.NewMemoryClient(cfg.Cache.MaxEntries), nil
}
