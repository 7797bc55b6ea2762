// HomeScout - Property Scoring and Recommendation Engine
// Copyright 2026 ZeepSeek
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zeepseek/homescout

package ranking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zeepseek/homescout/internal/metrics"
	"github.com/zeepseek/homescout/internal/models"
	"github.com/zeepseek/homescout/internal/store"
)

// CandidateSource bulk-loads every scored listing.
type CandidateSource interface {
	Candidates(ctx context.Context) ([]models.Candidate, error)
}

// VectorCache holds the full candidate set, reloaded after a short TTL so
// freshly scored listings appear within minutes. The cached slice is an
// immutable snapshot swapped atomically on refresh; callers must not
// mutate it. A store with zero scored listings caches a nil slice, which
// callers treat as "no candidates", not an error.
type VectorCache struct {
	src CandidateSource
	ttl time.Duration
	now func() time.Time

	mu         sync.RWMutex
	candidates []models.Candidate
	loaded     bool
	expires    time.Time
}

// NewVectorCache creates a candidate cache with the given TTL.
func NewVectorCache(src CandidateSource, ttl time.Duration) *VectorCache {
	return &VectorCache{src: src, ttl: ttl, now: time.Now}
}

// Get returns the candidate snapshot, reloading it when expired.
func (c *VectorCache) Get(ctx context.Context) ([]models.Candidate, error) {
	c.mu.RLock()
	if c.loaded && c.now().Before(c.expires) {
		snap := c.candidates
		c.mu.RUnlock()
		metrics.RecordCacheHit("vector")
		return snap, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded && c.now().Before(c.expires) {
		metrics.RecordCacheHit("vector")
		return c.candidates, nil
	}
	metrics.RecordCacheMiss("vector")

	candidates, err := c.src.Candidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate vectors: %w", err)
	}
	c.candidates = candidates
	c.loaded = true
	c.expires = c.now().Add(c.ttl)
	return candidates, nil
}

// Invalidate drops the snapshot so the next Get reloads. Called after a
// batch recalculation finishes.
func (c *VectorCache) Invalidate() {
	c.mu.Lock()
	c.loaded = false
	c.mu.Unlock()
}

// StatsSource computes the per-category column statistics.
type StatsSource interface {
	ScoreStats(ctx context.Context) (models.ScoreStats, error)
}

// StatsCache holds the normalization statistics with a long TTL; the
// population aggregates drift slowly.
type StatsCache struct {
	src StatsSource
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	stats   models.ScoreStats
	loaded  bool
	expires time.Time
}

// NewStatsCache creates a stats cache with the given TTL.
func NewStatsCache(src StatsSource, ttl time.Duration) *StatsCache {
	return &StatsCache{src: src, ttl: ttl, now: time.Now}
}

// Get returns the cached statistics, recomputing when expired.
func (c *StatsCache) Get(ctx context.Context) (models.ScoreStats, error) {
	c.mu.RLock()
	if c.loaded && c.now().Before(c.expires) {
		stats := c.stats
		c.mu.RUnlock()
		metrics.RecordCacheHit("stats")
		return stats, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded && c.now().Before(c.expires) {
		metrics.RecordCacheHit("stats")
		return c.stats, nil
	}
	metrics.RecordCacheMiss("stats")

	stats, err := c.src.ScoreStats(ctx)
	if err != nil {
		return models.ScoreStats{}, fmt.Errorf("failed to load score stats: %w", err)
	}
	c.stats = stats
	c.loaded = true
	c.expires = c.now().Add(c.ttl)
	return stats, nil
}

// Invalidate drops the cached statistics.
func (c *StatsCache) Invalidate() {
	c.mu.Lock()
	c.loaded = false
	c.mu.Unlock()
}

// PreferenceSource loads one user's survey answers.
type PreferenceSource interface {
	Preference(ctx context.Context, userID int64) (models.UserPreference, error)
}

// PreferenceCache caches survey answers per user for a short TTL. A user
// without stored answers is not an error: the zero preference is returned
// and the absence is cached too, so repeated requests for survey-less
// users do not hammer the store.
type PreferenceCache struct {
	src PreferenceSource
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[int64]prefEntry
}

type prefEntry struct {
	pref    models.UserPreference
	expires time.Time
}

// NewPreferenceCache creates a per-user preference cache.
func NewPreferenceCache(src PreferenceSource, ttl time.Duration) *PreferenceCache {
	return &PreferenceCache{
		src:     src,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[int64]prefEntry),
	}
}

// Get returns a user's preference, loading through the cache.
func (c *PreferenceCache) Get(ctx context.Context, userID int64) (models.UserPreference, error) {
	c.mu.RLock()
	e, ok := c.entries[userID]
	c.mu.RUnlock()
	if ok && c.now().Before(e.expires) {
		metrics.RecordCacheHit("preference")
		return e.pref, nil
	}
	metrics.RecordCacheMiss("preference")

	pref, err := c.src.Preference(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return models.UserPreference{}, err
		}
		pref = models.UserPreference{UserID: userID}
	}

	now := c.now()
	c.mu.Lock()
	// Sweep expired users on refresh so the map tracks the active set
	// instead of every user ever seen.
	for id, entry := range c.entries {
		if !now.Before(entry.expires) {
			delete(c.entries, id)
		}
	}
	c.entries[userID] = prefEntry{pref: pref, expires: now.Add(c.ttl)}
	c.mu.Unlock()
	return pref, nil
}
