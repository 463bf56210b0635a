// Package config provides unified configuration loading for the KPI engine.
// Supports YAML files, environment variable overrides, and defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/spherical-ai/kpi-engine/internal/retrieval"
	"github.com/spherical-ai/kpi-engine/internal/spell"
)

// Config holds all configuration for the engine and its commands.
type Config struct {
	Corpus        CorpusConfig        `yaml:"corpus"`
	Spell         SpellConfig         `yaml:"spell"`
	Embedding     EmbeddingConfig     `yaml:"embedding"`
	Generation    GenerationConfig    `yaml:"generation"`
	Retrieval     RetrievalConfig     `yaml:"retrieval"`
	Cache         CacheConfig         `yaml:"cache"`
	Server        ServerConfig        `yaml:"server"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// CorpusConfig holds knowledge-base source and store settings.
type CorpusConfig struct {
	// CSVPath is the tabular source loaded at ingest time.
	CSVPath string `yaml:"csv_path"`
	// StorePath is the SQLite snapshot holding rows and embeddings.
	StorePath string `yaml:"store_path"`
}

// SpellConfig holds spelling-correction parameters.
type SpellConfig struct {
	MaxEditDistance int `yaml:"max_edit_distance"`
	PrefixLength    int `yaml:"prefix_length"`
}

// EmbeddingConfig holds embedding model settings.
type EmbeddingConfig struct {
	APIKey    string        `yaml:"api_key"`
	Model     string        `yaml:"model"`
	BaseURL   string        `yaml:"base_url"`
	BatchSize int           `yaml:"batch_size"`
	Timeout   time.Duration `yaml:"timeout"`
}

// GenerationConfig holds generation model settings.
type GenerationConfig struct {
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// RetrievalConfig holds the decision-gate thresholds. These are tunable
// operating points, not measured optima.
type RetrievalConfig struct {
	MatchThreshold   float64 `yaml:"match_threshold"`
	SuggestThreshold float64 `yaml:"suggest_threshold"`
	ShortlistLimit   int     `yaml:"shortlist_limit"`
	NameColumn       string  `yaml:"name_column"`
}

// CacheConfig holds answer-cache settings.
type CacheConfig struct {
	Driver     string        `yaml:"driver"` // memory or redis
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// ServerConfig holds HTTP server settings for the serve command.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads configuration from a YAML file (optional) and applies
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns the shipped defaults.
func DefaultConfig() *Config {
	return &Config{
		Corpus: CorpusConfig{
			CSVPath:   "kpi_data.csv",
			StorePath: "kpi-engine.db",
		},
		Spell: SpellConfig{
			MaxEditDistance: spell.DefaultMaxEditDistance,
			PrefixLength:    spell.DefaultPrefixLength,
		},
		Embedding: EmbeddingConfig{
			Model:     "qwen/qwen3-embedding-8b",
			BaseURL:   "https://openrouter.ai/api/v1",
			BatchSize: 100,
			Timeout:   30 * time.Second,
		},
		Generation: GenerationConfig{
			Model:       "meta-llama/llama-3-8b-instruct",
			BaseURL:     "https://openrouter.ai/api/v1",
			MaxTokens:   retrieval.DefaultMaxTokens,
			Temperature: retrieval.DefaultTemperature,
			Timeout:     60 * time.Second,
		},
		Retrieval: RetrievalConfig{
			MatchThreshold:   retrieval.DefaultMatchThreshold,
			SuggestThreshold: retrieval.DefaultSuggestThreshold,
			ShortlistLimit:   retrieval.DefaultShortlistLimit,
			NameColumn:       retrieval.DefaultNameColumn,
		},
		Cache: CacheConfig{
			Driver:     "memory",
			TTL:        5 * time.Minute,
			MaxEntries: 10000,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				DB:       0,
				PoolSize: 10,
			},
		},
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8086,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     120 * time.Second,
			GracefulShutdown: 10 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "console",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Retrieval.MatchThreshold < -1 || c.Retrieval.MatchThreshold > 1 {
		return fmt.Errorf("match_threshold %v outside [-1, 1]", c.Retrieval.MatchThreshold)
	}
	if c.Retrieval.SuggestThreshold < -1 || c.Retrieval.SuggestThreshold > 1 {
		return fmt.Errorf("suggest_threshold %v outside [-1, 1]", c.Retrieval.SuggestThreshold)
	}
	if c.Retrieval.SuggestThreshold > c.Retrieval.MatchThreshold {
		return fmt.Errorf("suggest_threshold %v above match_threshold %v", c.Retrieval.SuggestThreshold, c.Retrieval.MatchThreshold)
	}
	if c.Retrieval.ShortlistLimit < 1 {
		return fmt.Errorf("shortlist_limit must be at least 1")
	}
	if c.Spell.MaxEditDistance < 0 {
		return fmt.Errorf("max_edit_distance must not be negative")
	}
	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		if cfg.Embedding.APIKey == "" {
			cfg.Embedding.APIKey = v
		}
		if cfg.Generation.APIKey == "" {
			cfg.Generation.APIKey = v
		}
	}
	if v := os.Getenv("KPI_CORPUS_CSV"); v != "" {
		cfg.Corpus.CSVPath = v
	}
	if v := os.Getenv("KPI_STORE_PATH"); v != "" {
		cfg.Corpus.StorePath = v
	}
	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("GENERATION_MODEL"); v != "" {
		cfg.Generation.Model = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}
