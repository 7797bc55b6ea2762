// HomeScout - Property Scoring and Recommendation Engine
// Copyright 2026 ZeepSeek
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zeepseek/homescout

// Package config provides centralized configuration management for all
// application components: HTTP server, DuckDB database, the POI scoring
// pipeline, the ranking stage, and the hybrid recommendation engine.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all settings
//  2. Config File: Optional YAML config file (config.yaml)
//  3. Environment Variables: Override any setting (highest priority)
//
// Config is immutable after Load() and safe for concurrent read access
// from multiple goroutines.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all application configuration loaded from environment
// variables and config files.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Scoring   ScoringConfig   `koanf:"scoring"`
	Ranking   RankingConfig   `koanf:"ranking"`
	Recommend RecommendConfig `koanf:"recommend"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
//
// Environment Variables:
//   - HTTP_PORT: Listen port (default: 8085)
//   - HTTP_HOST: Bind address (default: 0.0.0.0)
//   - HTTP_TIMEOUT: Request timeout (default: 30s)
type ServerConfig struct {
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	Host            string        `koanf:"host" validate:"required"`
	Timeout         time.Duration `koanf:"timeout" validate:"min=1s"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"min=1s"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"min=1s"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// DatabaseConfig holds DuckDB settings.
//
// The path ":memory:" opens an in-memory database, which the test suite
// relies on. Threads=0 lets DuckDB size its pool from runtime.NumCPU().
type DatabaseConfig struct {
	Path      string `koanf:"path" validate:"required"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads" validate:"min=0"`
}

// ScoringConfig holds the POI scoring pipeline settings.
//
// RadiusKm bounds the circle a listing's POI counts are taken over.
// BatchSize is the number of listings fetched per keyset page; Workers is
// the errgroup pool size for batch mode. Failed score writes are retried
// RetryAttempts times with a fixed RetryDelay between attempts.
type ScoringConfig struct {
	RadiusKm      float64       `koanf:"radius_km" validate:"gt=0"`
	CellSizeKm    float64       `koanf:"cell_size_km" validate:"gt=0"`
	BatchSize     int           `koanf:"batch_size" validate:"min=1"`
	SubBatchSize  int           `koanf:"sub_batch_size" validate:"min=1"`
	Workers       int           `koanf:"workers" validate:"min=1"`
	RetryAttempts int           `koanf:"retry_attempts" validate:"min=0"`
	RetryDelay    time.Duration `koanf:"retry_delay" validate:"min=0"`
	POICacheTTL   time.Duration `koanf:"poi_cache_ttl" validate:"min=1s"`
}

// RankingConfig holds the content-based ranking settings.
//
// Normalization selects how candidate score columns are scaled before
// cosine similarity ("minmax" or "zscore"). TopK caps the candidate set
// handed to the MMR reranker; DiversityLambda trades relevance against
// diversity inside MMR (1.0 = pure relevance).
type RankingConfig struct {
	Normalization      string        `koanf:"normalization" validate:"oneof=minmax zscore"`
	TopK               int           `koanf:"top_k" validate:"min=1"`
	DefaultTopN        int           `koanf:"default_top_n" validate:"min=1"`
	DiversityLambda    float64       `koanf:"diversity_lambda" validate:"min=0,max=1"`
	PreferenceBonus    float64       `koanf:"preference_bonus" validate:"min=0"`
	OfficeDecayKm      float64       `koanf:"office_decay_km" validate:"gt=0"`
	VectorCacheTTL     time.Duration `koanf:"vector_cache_ttl" validate:"min=1s"`
	StatsCacheTTL      time.Duration `koanf:"stats_cache_ttl" validate:"min=1s"`
	PreferenceCacheTTL time.Duration `koanf:"preference_cache_ttl" validate:"min=1s"`
}

// RecommendConfig holds the hybrid recommendation engine settings.
//
// ActivityWindow and MinIntentEvents control geography-affinity detection:
// a user needs at least MinIntentEvents intent-signaling events inside the
// window for their dominant dong to be trusted. ALS holds the collaborative
// filtering hyperparameters.
type RecommendConfig struct {
	ActivityWindow  time.Duration `koanf:"activity_window" validate:"min=1h"`
	MinIntentEvents int           `koanf:"min_intent_events" validate:"min=1"`
	TrainOnStartup  bool          `koanf:"train_on_startup"`
	TrainInterval   time.Duration `koanf:"train_interval" validate:"min=1m"`
	BreakerMaxFails uint32        `koanf:"breaker_max_fails" validate:"min=1"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout" validate:"min=1s"`
	ALS             ALSConfig     `koanf:"als"`
}

// ALSConfig holds the alternating-least-squares hyperparameters for the
// implicit-feedback collaborative filter.
type ALSConfig struct {
	Factors        int     `koanf:"factors" validate:"min=1"`
	Iterations     int     `koanf:"iterations" validate:"min=1"`
	Regularization float64 `koanf:"regularization" validate:"gt=0"`
	Alpha          float64 `koanf:"alpha" validate:"gt=0"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error fatal disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Validate checks that the loaded configuration is internally consistent.
// Struct-tag constraints are enforced with go-playground/validator; the
// few cross-field rules that tags cannot express are checked by hand.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config field %s failed %q validation (value %v)",
				fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("config validation failed: %w", err)
	}

	if c.Scoring.SubBatchSize > c.Scoring.BatchSize {
		return fmt.Errorf("scoring.sub_batch_size (%d) must not exceed scoring.batch_size (%d)",
			c.Scoring.SubBatchSize, c.Scoring.BatchSize)
	}
	if c.Ranking.DefaultTopN > c.Ranking.TopK {
		return fmt.Errorf("ranking.default_top_n (%d) must not exceed ranking.top_k (%d)",
			c.Ranking.DefaultTopN, c.Ranking.TopK)
	}
	return nil
}

// Addr returns the host:port the HTTP server binds to.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
