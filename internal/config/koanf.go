// HomeScout - Property Scoring and Recommendation Engine
// Copyright 2026 ZeepSeek
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zeepseek/homescout

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/homescout/config.yaml",
	"/etc/homescout/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the
// config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values. These
// defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8085,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Database: DatabaseConfig{
			Path:      "/data/homescout.duckdb",
			MaxMemory: "2GB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		Scoring: ScoringConfig{
			RadiusKm:      1.0,
			CellSizeKm:    1.0,
			BatchSize:     1000,
			SubBatchSize:  250,
			Workers:       8,
			RetryAttempts: 3,
			RetryDelay:    time.Second,
			POICacheTTL:   time.Hour,
		},
		Ranking: RankingConfig{
			Normalization:      "minmax",
			TopK:               1000,
			DefaultTopN:        10,
			DiversityLambda:    0.5,
			PreferenceBonus:    1.0,
			OfficeDecayKm:      10.0,
			VectorCacheTTL:     5 * time.Minute,
			StatsCacheTTL:      time.Hour,
			PreferenceCacheTTL: 10 * time.Minute,
		},
		Recommend: RecommendConfig{
			ActivityWindow:  30 * 24 * time.Hour,
			MinIntentEvents: 5,
			TrainOnStartup:  false,
			TrainInterval:   24 * time.Hour,
			BreakerMaxFails: 5,
			BreakerTimeout:  30 * time.Second,
			ALS: ALSConfig{
				Factors:        50,
				Iterations:     15,
				Regularization: 0.1,
				Alpha:          40.0,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	// HTTP_PORT -> server.port, SCORING_BATCH_SIZE -> scoring.batch_size
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Env vars arrive as strings; split known slice fields on commas.
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the first file found, or empty string if none exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths defines which config paths should be parsed as
// comma-separated slices when sourced from environment variables.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped keys return empty string and are skipped, which prevents random
// environment variables from polluting the config.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server mappings
		"http_port":             "server.port",
		"http_host":             "server.host",
		"http_timeout":          "server.timeout",
		"http_shutdown_timeout": "server.shutdown_timeout",
		"rate_limit_requests":   "server.rate_limit_reqs",
		"rate_limit_window":     "server.rate_limit_window",
		"cors_origins":          "server.cors_origins",

		// Database mappings
		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",

		// Scoring mappings
		"scoring_radius_km":      "scoring.radius_km",
		"scoring_cell_size_km":   "scoring.cell_size_km",
		"scoring_batch_size":     "scoring.batch_size",
		"scoring_sub_batch_size": "scoring.sub_batch_size",
		"scoring_workers":        "scoring.workers",
		"scoring_retry_attempts": "scoring.retry_attempts",
		"scoring_retry_delay":    "scoring.retry_delay",
		"poi_cache_ttl":          "scoring.poi_cache_ttl",

		// Ranking mappings
		"ranking_normalization":    "ranking.normalization",
		"ranking_top_k":            "ranking.top_k",
		"ranking_default_top_n":    "ranking.default_top_n",
		"ranking_diversity_lambda": "ranking.diversity_lambda",
		"ranking_preference_bonus": "ranking.preference_bonus",
		"ranking_office_decay_km":  "ranking.office_decay_km",
		"vector_cache_ttl":         "ranking.vector_cache_ttl",
		"stats_cache_ttl":          "ranking.stats_cache_ttl",
		"preference_cache_ttl":     "ranking.preference_cache_ttl",

		// Recommend mappings
		"recommend_activity_window":   "recommend.activity_window",
		"recommend_min_intent_events": "recommend.min_intent_events",
		"recommend_train_on_startup":  "recommend.train_on_startup",
		"recommend_train_interval":    "recommend.train_interval",
		"recommend_breaker_max_fails": "recommend.breaker_max_fails",
		"recommend_breaker_timeout":   "recommend.breaker_timeout",
		// ALS hyperparameters
		"recommend_als_factors":        "recommend.als.factors",
		"recommend_als_iterations":     "recommend.als.iterations",
		"recommend_als_regularization": "recommend.als.regularization",
		"recommend_als_alpha":          "recommend.als.alpha",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
