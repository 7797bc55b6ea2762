// HomeScout - Property Scoring and Recommendation Engine
// Copyright 2026 ZeepSeek
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zeepseek/homescout

// Package scoring computes per-category POI proximity scores for listings
// and runs the batch pipeline that persists them.
package scoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zeepseek/homescout/internal/geo"
	"github.com/zeepseek/homescout/internal/logging"
	"github.com/zeepseek/homescout/internal/metrics"
	"github.com/zeepseek/homescout/internal/models"
)

// POISource loads POI coordinates for one category.
type POISource interface {
	POIPoints(ctx context.Context, category models.Category) ([]geo.Point, error)
}

// POICache holds one spatial grid per category, rebuilt lazily after the
// TTL expires. Each category has its own lock, so a transport refresh never
// blocks cafe lookups. Grids are immutable once built; readers holding a
// snapshot keep a consistent view while a refresh swaps in a new one.
type POICache struct {
	src        POISource
	ttl        time.Duration
	cellSizeKm float64
	now        func() time.Time

	entries [models.NumCategories]poiEntry
}

type poiEntry struct {
	mu      sync.RWMutex
	grid    *geo.Grid
	expires time.Time
}

// NewPOICache creates a POI cache over src with the given TTL and grid
// cell size.
func NewPOICache(src POISource, ttl time.Duration, cellSizeKm float64) *POICache {
	return &POICache{
		src:        src,
		ttl:        ttl,
		cellSizeKm: cellSizeKm,
		now:        time.Now,
	}
}

// Grid returns the spatial grid for one category, rebuilding it when the
// cached copy has expired. Double-checked locking keeps concurrent callers
// from rebuilding the same grid twice. A category with no POIs caches an
// empty grid, not an error.
func (c *POICache) Grid(ctx context.Context, category models.Category) (*geo.Grid, error) {
	if category < 0 || int(category) >= models.NumCategories {
		return nil, fmt.Errorf("unknown category %d", category)
	}
	e := &c.entries[category]

	e.mu.RLock()
	if e.grid != nil && c.now().Before(e.expires) {
		grid := e.grid
		e.mu.RUnlock()
		metrics.RecordCacheHit("poi")
		return grid, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	// Another goroutine may have refreshed while we waited for the lock.
	if e.grid != nil && c.now().Before(e.expires) {
		metrics.RecordCacheHit("poi")
		return e.grid, nil
	}
	metrics.RecordCacheMiss("poi")

	points, err := c.src.POIPoints(ctx, category)
	if err != nil {
		if e.grid != nil {
			// Serve the stale grid rather than failing the caller.
			logging.Warn().Err(err).Stringer("category", category).
				Msg("POI refresh failed, serving stale grid")
			return e.grid, nil
		}
		return nil, fmt.Errorf("failed to load POIs for %s: %w", category, err)
	}

	e.grid = geo.NewGrid(points, c.cellSizeKm)
	e.expires = c.now().Add(c.ttl)
	logging.Debug().Stringer("category", category).Int("pois", e.grid.Size()).
		Msg("POI grid rebuilt")
	return e.grid, nil
}

// Warm eagerly builds every category grid. Called at startup so the first
// scoring request does not pay seven cold loads.
func (c *POICache) Warm(ctx context.Context) error {
	for _, category := range models.Categories {
		if _, err := c.Grid(ctx, category); err != nil {
			return err
		}
	}
	return nil
}
