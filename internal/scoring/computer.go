// HomeScout - Property Scoring and Recommendation Engine
// Copyright 2026 ZeepSeek
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zeepseek/homescout

package scoring

import (
	"context"
	"fmt"

	"github.com/zeepseek/homescout/internal/models"
)

// Policy holds the per-category blend weights: Alpha scales the POI count
// inside the radius, Beta scales the inverse-distance term 1/(1+minKm).
type Policy struct {
	Alpha float64
	Beta  float64
}

// DefaultPolicies returns the per-category weight table. Distance-sensitive
// categories (cafe, chicken) weight proximity higher; health weights count
// higher since hospital density matters more than the nearest clinic.
func DefaultPolicies() [models.NumCategories]Policy {
	var p [models.NumCategories]Policy
	for i := range p {
		p[i] = Policy{Alpha: 0.5, Beta: 0.5}
	}
	p[models.CategoryHealth] = Policy{Alpha: 0.6, Beta: 0.4}
	p[models.CategoryCafe] = Policy{Alpha: 0.4, Beta: 0.6}
	p[models.CategoryChicken] = Policy{Alpha: 0.4, Beta: 0.6}
	return p
}

// Computer derives a PropertyScore for a listing from the cached POI grids.
type Computer struct {
	cache    *POICache
	radiusKm float64
	policies [models.NumCategories]Policy
}

// NewComputer creates a Computer over the given POI cache.
func NewComputer(cache *POICache, radiusKm float64) *Computer {
	return &Computer{
		cache:    cache,
		radiusKm: radiusKm,
		policies: DefaultPolicies(),
	}
}

// Compute scores one listing across all categories. For each category the
// count is the number of POIs within the radius and the distance term uses
// the nearest POI overall, even when it lies outside the radius; only a
// category with no POIs at all falls back to the radius as the distance.
// Deterministic: identical POI data yields identical scores.
func (c *Computer) Compute(ctx context.Context, listing models.Listing) (models.PropertyScore, error) {
	score := models.PropertyScore{ListingID: listing.ID}

	for _, category := range models.Categories {
		grid, err := c.cache.Grid(ctx, category)
		if err != nil {
			return models.PropertyScore{}, fmt.Errorf("scoring listing %d: %w", listing.ID, err)
		}

		count := grid.CountWithin(listing.Lat, listing.Lon, c.radiusKm)

		minKm := c.radiusKm
		if _, dist, ok := grid.Nearest(listing.Lat, listing.Lon); ok {
			minKm = dist
		}

		p := c.policies[category]
		score.Scores[category] = models.CategoryScore{
			Count: count,
			Score: p.Alpha*float64(count) + p.Beta*(1/(1+minKm)),
		}
	}
	return score, nil
}
