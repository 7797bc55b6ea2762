// HomeScout - Property Scoring and Recommendation Engine
// Copyright 2026 ZeepSeek
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zeepseek/homescout

// Package main is the entry point for the HomeScout server.
//
// HomeScout scores real-estate listings against surrounding
// points-of-interest and serves personalized rankings that blend a
// collaborative signal, content similarity, and recent activity
// geography.
//
// The server initializes components in the following order:
//
//  1. Configuration: koanf v2 layered defaults, YAML file, environment
//  2. Store: DuckDB with the listing, POI, score, preference, and
//     activity tables
//  3. Scoring: POI spatial cache (warmed at start) and batch pipeline
//  4. Ranking: candidate/stats/preference caches and similarity ranker
//  5. Recommend: ALS model, geography detector, hybrid engine, and the
//     periodic training loop
//  6. HTTP server: chi routes with graceful shutdown on SIGINT/SIGTERM
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zeepseek/homescout/internal/api"
	"github.com/zeepseek/homescout/internal/config"
	"github.com/zeepseek/homescout/internal/logging"
	"github.com/zeepseek/homescout/internal/ranking"
	"github.com/zeepseek/homescout/internal/recommend"
	"github.com/zeepseek/homescout/internal/scoring"
	"github.com/zeepseek/homescout/internal/store"
)

// scoringStore adapts *store.DB to the pipeline's Store interface; the
// method set matches except for Session's concrete return type.
type scoringStore struct {
	*store.DB
}

func (s scoringStore) Session(ctx context.Context) (scoring.Session, error) {
	return s.DB.Session(ctx)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("addr", cfg.Server.Addr()).
		Msg("starting homescout")

	db, err := store.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open store")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing store")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Scoring subsystem.
	poiCache := scoring.NewPOICache(db, cfg.Scoring.POICacheTTL, cfg.Scoring.CellSizeKm)
	computer := scoring.NewComputer(poiCache, cfg.Scoring.RadiusKm)
	pipeline := scoring.NewPipeline(scoringStore{db}, computer, cfg.Scoring)

	if err := poiCache.Warm(ctx); err != nil {
		// Lazy per-category loads will retry; only startup latency
		// suffers.
		logging.Warn().Err(err).Msg("POI cache warmup failed")
	}

	// Ranking subsystem.
	vectors := ranking.NewVectorCache(db, cfg.Ranking.VectorCacheTTL)
	stats := ranking.NewStatsCache(db, cfg.Ranking.StatsCacheTTL)
	prefs := ranking.NewPreferenceCache(db, cfg.Ranking.PreferenceCacheTTL)
	ranker := ranking.NewRanker(vectors, stats, prefs, cfg.Ranking)

	// Hybrid recommendation subsystem.
	model := recommend.NewALS(cfg.Recommend.ALS)
	detector := recommend.NewDetector(db, cfg.Recommend)
	engine := recommend.NewEngine(model, ranker, detector, db, vectors, prefs, cfg.Recommend)

	if cfg.Recommend.TrainOnStartup {
		go func() {
			if err := engine.Train(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logging.Error().Err(err).Msg("startup training failed")
			}
		}()
	}
	go engine.TrainLoop(ctx)

	handler := api.NewHandler(pipeline, db, ranker, engine, vectors, stats)
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(handler, cfg.Server),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logging.Info().Msg("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("graceful shutdown failed")
		}
	}()

	logging.Info().Str("addr", server.Addr).Msg("http server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Fatal().Err(err).Msg("http server failed")
	}
	logging.Info().Msg("server stopped gracefully")
}
