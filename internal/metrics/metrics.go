// HomeScout - Property Scoring and Recommendation Engine
// Copyright 2026 ZeepSeek
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zeepseek/homescout

// Package metrics provides Prometheus instrumentation for the scoring
// pipeline, the in-memory caches, the recommendation engine, and the HTTP
// API. All collectors are registered on the default registry and exposed
// at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Batch scoring pipeline metrics
	BatchListingsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scoring_listings_processed_total",
			Help: "Total number of listings scored and persisted",
		},
	)

	BatchListingsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scoring_listings_failed_total",
			Help: "Total number of listings that failed scoring after all retries",
		},
	)

	BatchWriteRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scoring_write_retries_total",
			Help: "Total number of score write retries after transient conflicts",
		},
	)

	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scoring_batch_duration_seconds",
			Help:    "Duration of batch scoring runs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"mode"}, // "no_batch", "single", "batch", "incomplete"
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"}, // "poi", "vector", "stats", "preference"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses (TTL expiry or cold start)",
		},
		[]string{"cache_type"},
	)

	// Recommendation metrics
	RecommendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_requests_total",
			Help: "Total number of recommendation requests by serving strategy",
		},
		[]string{"strategy"}, // "geo_collaborative", "content", "collaborative"
	)

	RecommendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommend_duration_seconds",
			Help:    "Recommendation request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"strategy"},
	)

	TrainDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommend_train_duration_seconds",
			Help:    "Duration of collaborative model training in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
	)

	TrainLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recommend_train_last_success_timestamp",
			Help: "Unix timestamp of the last successful model training",
		},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

// RecordAPIRequest records a completed API request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordCacheHit records a hit on the named cache.
func RecordCacheHit(cacheType string) {
	CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a miss on the named cache.
func RecordCacheMiss(cacheType string) {
	CacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordRecommendation records a served recommendation request.
func RecordRecommendation(strategy string, duration time.Duration) {
	RecommendRequests.WithLabelValues(strategy).Inc()
	RecommendDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

// RecordTraining records a completed model training run.
func RecordTraining(duration time.Duration) {
	TrainDuration.Observe(duration.Seconds())
	TrainLastSuccess.SetToCurrentTime()
}
