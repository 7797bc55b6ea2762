// HomeScout - Property Scoring and Recommendation Engine
// Copyright 2026 ZeepSeek
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zeepseek/homescout

package ranking

import (
	"strings"

	"github.com/zeepseek/homescout/internal/logging"
	"github.com/zeepseek/homescout/internal/models"
)

// AgeBucket is the demographic age band used by the weight tables.
type AgeBucket string

// Age buckets.
const (
	Age20s     AgeBucket = "20s"
	Age30s     AgeBucket = "30s"
	Age40s     AgeBucket = "40s"
	Age50sPlus AgeBucket = "50s_plus"
)

// BucketAge maps an age in years to its bucket. Ages under 20 are treated
// as 20s; a non-positive (unknown) age falls back to 30s, the population
// median, rather than erroring.
func BucketAge(age int) AgeBucket {
	switch {
	case age <= 0:
		logging.Debug().Int("age", age).Msg("invalid age, defaulting to 30s bucket")
		return Age30s
	case age < 30:
		return Age20s
	case age < 40:
		return Age30s
	case age < 50:
		return Age40s
	default:
		return Age50sPlus
	}
}

// NormalizeGender canonicalizes a gender string to "male" or "female".
// Anything unrecognized falls back to "male", matching the demographic
// table's documented default.
func NormalizeGender(gender string) string {
	switch strings.ToLower(gender) {
	case "female", "f":
		return "female"
	case "male", "m":
		return "male"
	default:
		if gender != "" {
			logging.Debug().Str("gender", gender).Msg("unknown gender, defaulting to male")
		}
		return "male"
	}
}

type demographicKey struct {
	gender string
	bucket AgeBucket
}

// demographicAdjustments holds the per-category weight deltas by gender
// and age bucket, in canonical category order (transport, restaurant,
// health, convenience, cafe, chicken, leisure). Values were fitted offline
// from survey data.
var demographicAdjustments = map[demographicKey]models.Vector{
	{"male", Age20s}:       {0.0, +0.2, -0.2, +0.1, -0.1, +0.3, +0.4},
	{"female", Age20s}:     {+0.1, +0.1, -0.1, 0.0, +0.5, 0.0, +0.2},
	{"male", Age30s}:       {-0.2, +0.1, 0.0, 0.0, 0.0, +0.1, +0.2},
	{"female", Age30s}:     {-0.1, 0.0, +0.1, +0.1, +0.3, -0.1, +0.1},
	{"male", Age40s}:       {-0.2, 0.0, +0.2, 0.0, -0.1, 0.0, +0.1},
	{"female", Age40s}:     {-0.1, 0.0, +0.3, +0.1, +0.1, -0.1, 0.0},
	{"male", Age50sPlus}:   {-0.1, -0.1, +0.5, +0.1, -0.2, -0.2, +0.2},
	{"female", Age50sPlus}: {0.0, -0.1, +0.5, +0.2, 0.0, -0.2, 0.0},
}

// DemographicAdjustment returns the weight delta vector for a gender and
// age. An unmapped combination returns the zero vector.
func DemographicAdjustment(gender string, age int) models.Vector {
	key := demographicKey{gender: NormalizeGender(gender), bucket: BucketAge(age)}
	return demographicAdjustments[key]
}

// defaultPriority is the category tie-break table used when no demographic
// is known. Higher value wins the tie.
var defaultPriority = [models.NumCategories]int{4, 5, 3, 2, 6, 1, 7}

// categoryPriorities holds per-demographic tie-break tables for the
// dominant-category annotation.
var categoryPriorities = map[demographicKey][models.NumCategories]int{
	{"male", Age20s}:       {3, 5, 1, 2, 4, 6, 7},
	{"female", Age20s}:     {3, 4, 1, 2, 7, 5, 6},
	{"male", Age30s}:       {2, 5, 3, 4, 6, 1, 7},
	{"female", Age30s}:     {2, 4, 5, 3, 7, 1, 6},
	{"male", Age40s}:       {2, 4, 7, 3, 1, 5, 6},
	{"female", Age40s}:     {2, 3, 7, 5, 6, 1, 4},
	{"male", Age50sPlus}:   {3, 2, 7, 5, 1, 4, 6},
	{"female", Age50sPlus}: {3, 2, 7, 6, 4, 1, 5},
}

// CategoryPriority returns the tie-break table for a gender and age.
func CategoryPriority(gender string, age int) [models.NumCategories]int {
	key := demographicKey{gender: NormalizeGender(gender), bucket: BucketAge(age)}
	if p, ok := categoryPriorities[key]; ok {
		return p
	}
	return defaultPriority
}

// DominantCategory returns the category with the largest component in a
// weighted candidate vector. Joint maxima are broken by the priority
// table: the tied category with the highest priority value wins.
func DominantCategory(v models.Vector, priority [models.NumCategories]int) models.Category {
	maxVal := v[0]
	for _, x := range v[1:] {
		if x > maxVal {
			maxVal = x
		}
	}

	best := models.Category(0)
	bestPriority := -1
	for i, x := range v {
		if x == maxVal && priority[i] > bestPriority {
			best = models.Category(i)
			bestPriority = priority[i]
		}
	}
	return best
}
