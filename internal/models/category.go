// HomeScout - Property Scoring and Recommendation Engine
// Copyright 2026 ZeepSeek
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zeepseek/homescout

// Package models defines the typed domain entities shared by the scoring,
// ranking, and recommendation subsystems.
//
// The canonical POI category ordering defined here is load-bearing: property
// vectors, normalization statistics, weight tables, and similarity math all
// index into the same 7-element layout. Reordering Categories silently
// corrupts every vector computation downstream, so the order is fixed and
// every consumer goes through this package.
package models

// Category identifies a point-of-interest category used as a proximity signal.
type Category int

const (
	// CategoryTransport covers subway stations and bus stops.
	CategoryTransport Category = iota
	// CategoryRestaurant covers restaurants.
	CategoryRestaurant
	// CategoryHealth covers hospitals, clinics, and pharmacies.
	CategoryHealth
	// CategoryConvenience covers convenience stores.
	CategoryConvenience
	// CategoryCafe covers cafes.
	CategoryCafe
	// CategoryChicken covers late-night food (chicken/hof) venues.
	CategoryChicken
	// CategoryLeisure covers gyms, parks, and entertainment venues.
	CategoryLeisure

	// NumCategories is the fixed vector dimension.
	NumCategories = 7
)

// Categories lists all POI categories in canonical vector order.
var Categories = [NumCategories]Category{
	CategoryTransport,
	CategoryRestaurant,
	CategoryHealth,
	CategoryConvenience,
	CategoryCafe,
	CategoryChicken,
	CategoryLeisure,
}

// String returns the category name used in storage and API payloads.
func (c Category) String() string {
	switch c {
	case CategoryTransport:
		return "transport"
	case CategoryRestaurant:
		return "restaurant"
	case CategoryHealth:
		return "health"
	case CategoryConvenience:
		return "convenience"
	case CategoryCafe:
		return "cafe"
	case CategoryChicken:
		return "chicken"
	case CategoryLeisure:
		return "leisure"
	default:
		return "unknown"
	}
}

// ParseCategory maps a category name to its Category value.
// Returns false for names outside the known set.
func ParseCategory(name string) (Category, bool) {
	for _, c := range Categories {
		if c.String() == name {
			return c, true
		}
	}
	return 0, false
}

// Vector is an ordered tuple of per-category values for one listing or user.
// Index with Category constants.
type Vector [NumCategories]float64

// Add returns the elementwise sum of v and other.
func (v Vector) Add(other Vector) Vector {
	var out Vector
	for i := range v {
		out[i] = v[i] + other[i]
	}
	return out
}

// Mul returns the elementwise product of v and other.
func (v Vector) Mul(other Vector) Vector {
	var out Vector
	for i := range v {
		out[i] = v[i] * other[i]
	}
	return out
}

// Scale returns v with every component multiplied by f.
func (v Vector) Scale(f float64) Vector {
	var out Vector
	for i := range v {
		out[i] = v[i] * f
	}
	return out
}

// Slice returns the vector as a []float64 copy.
func (v Vector) Slice() []float64 {
	out := make([]float64, NumCategories)
	copy(out, v[:])
	return out
}

// Uniform returns a vector with every component set to val.
func Uniform(val float64) Vector {
	var out Vector
	for i := range out {
		out[i] = val
	}
	return out
}
