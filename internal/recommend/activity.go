// HomeScout - Property Scoring and Recommendation Engine
// Copyright 2026 ZeepSeek
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zeepseek/homescout

package recommend

import (
	"context"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/zeepseek/homescout/internal/config"
	"github.com/zeepseek/homescout/internal/logging"
	"github.com/zeepseek/homescout/internal/metrics"
	"github.com/zeepseek/homescout/internal/models"
)

// ActivitySource reads the append-only activity event log.
type ActivitySource interface {
	ActivityEvents(ctx context.Context, userID int64, since time.Time, actions []models.Action) ([]models.ActivityEvent, error)
	AllActivity(ctx context.Context) ([]models.ActivityEvent, error)
	SeenListings(ctx context.Context, userID int64) (map[int64]struct{}, error)
}

// Detector infers the neighborhood a user is currently hunting in from
// their recent intent events. The event store sits behind a circuit
// breaker: when it misbehaves, the detector reports "no signal" and the
// hybrid chain degrades to content-based recommendations instead of
// failing requests.
type Detector struct {
	src       ActivitySource
	breaker   *gobreaker.CircuitBreaker[[]models.ActivityEvent]
	window    time.Duration
	minEvents int
	now       func() time.Time
}

// NewDetector creates a Detector with breaker thresholds from config.
func NewDetector(src ActivitySource, cfg config.RecommendConfig) *Detector {
	settings := gobreaker.Settings{
		Name:    "activity_store",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerMaxFails
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	}
	return &Detector{
		src:       src,
		breaker:   gobreaker.NewCircuitBreaker[[]models.ActivityEvent](settings),
		window:    cfg.ActivityWindow,
		minEvents: cfg.MinIntentEvents,
		now:       time.Now,
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 2
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 0
	}
}

// DominantDong returns the neighborhood that dominates the user's recent
// intent events, or false when there is not enough signal: fewer than the
// configured minimum of qualifying events, an open breaker, or a store
// failure. Insufficient signal is an expected outcome, never an error.
func (d *Detector) DominantDong(ctx context.Context, userID int64) (int32, bool) {
	since := d.now().Add(-d.window)
	events, err := d.breaker.Execute(func() ([]models.ActivityEvent, error) {
		return d.src.ActivityEvents(ctx, userID, since, models.IntentActions)
	})
	if err != nil {
		logging.Warn().
			Err(err).
			Int64("user_id", userID).
			Str("breaker_state", d.breaker.State().String()).
			Msg("activity query failed, skipping geography signal")
		return 0, false
	}

	if len(events) < d.minEvents {
		return 0, false
	}

	counts := make(map[int32]int)
	for _, e := range events {
		counts[e.DongID]++
	}

	var best int32
	bestCount := 0
	for dong, n := range counts {
		// Deterministic tie-break on the lower dong id.
		if n > bestCount || (n == bestCount && dong < best) {
			best = dong
			bestCount = n
		}
	}
	if best == 0 {
		return 0, false
	}
	return best, true
}
