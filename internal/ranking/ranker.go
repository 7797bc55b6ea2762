// HomeScout - Property Scoring and Recommendation Engine
// Copyright 2026 ZeepSeek
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zeepseek/homescout

package ranking

import (
	"context"
	"math"
	"sort"

	"github.com/zeepseek/homescout/internal/config"
	"github.com/zeepseek/homescout/internal/geo"
	"github.com/zeepseek/homescout/internal/logging"
	"github.com/zeepseek/homescout/internal/models"
	"github.com/zeepseek/homescout/internal/ranking/reranking"
)

// Filter restricts the candidate set by listing attributes. Zero values
// mean "no restriction".
type Filter struct {
	DongIDs       []int32  `json:"dong_ids,omitempty"`
	PriceMin      int64    `json:"price_min,omitempty"`
	PriceMax      int64    `json:"price_max,omitempty"`
	RoomTypes     []string `json:"room_types,omitempty"`
	ContractTypes []string `json:"contract_types,omitempty"`
}

// Request is one ranking invocation: explicit category scores plus
// optional demographics, user identity, and filters.
type Request struct {
	// Scores is the user's raw category vector, in the same units as
	// stored listing scores.
	Scores models.Vector

	// Gender and Age select the demographic adjustment; zero values use
	// the documented fallbacks.
	Gender string
	Age    int

	// UserID, when non-zero, pulls the stored preference flags for the
	// binary category bonus and enables the office-distance component.
	UserID int64

	TopN   int
	Method Method

	// Lambda overrides the configured diversification trade-off when
	// set; 0 is a valid value (pure diversity), so absence is nil.
	Lambda *float64

	Filter        Filter
	DongScope     []int32 // restricts candidates to these neighborhoods
	AnnotateTypes bool    // attach the dominant category per result
}

// Recommendation is one ranked listing.
type Recommendation struct {
	ListingID        int64   `json:"listing_id"`
	Similarity       float64 `json:"similarity"`
	DominantCategory string  `json:"dominant_category,omitempty"`
}

// Ranker computes content-based recommendations over the cached candidate
// set.
type Ranker struct {
	vectors *VectorCache
	stats   *StatsCache
	prefs   *PreferenceCache
	cfg     config.RankingConfig
}

// NewRanker creates a Ranker over the three caches.
func NewRanker(vectors *VectorCache, stats *StatsCache, prefs *PreferenceCache, cfg config.RankingConfig) *Ranker {
	return &Ranker{vectors: vectors, stats: stats, prefs: prefs, cfg: cfg}
}

// Rank runs the full pipeline: load candidates, filter, normalize, weight,
// rank by cosine similarity, cap to the top K, and diversify with MMR.
// An empty candidate set (cold store or over-restrictive filters) returns
// an empty result, not an error.
func (r *Ranker) Rank(ctx context.Context, req Request) ([]Recommendation, error) {
	candidates, err := r.vectors.Get(ctx)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	var pref models.UserPreference
	if req.UserID != 0 {
		pref, err = r.prefs.Get(ctx, req.UserID)
		if err != nil {
			return nil, err
		}
	}

	candidates = applyFilters(candidates, req.Filter, req.DongScope, pref.DongID)
	if len(candidates) == 0 {
		logging.Debug().Int64("user_id", req.UserID).Msg("filters eliminated every candidate")
		return nil, nil
	}

	stats, err := r.stats.Get(ctx)
	if err != nil {
		return nil, err
	}

	weights := r.weightVector(req, pref)

	// User vector: same normalization transform, then the same weights.
	userVec := weighted(Normalize(req.Scores, stats, req.Method), weights)
	userFeat := userVec.Slice()
	if pref.HasOffice {
		// Office proximity target: a listing at the office scores 1.
		userFeat = append(userFeat, 1.0)
	}

	similarities := make([]float64, len(candidates))
	vectors := make([][]float64, len(candidates))
	for i, c := range candidates {
		feat := weighted(Normalize(c.Scores, stats, req.Method), weights).Slice()
		if pref.HasOffice {
			feat = append(feat, officeProximity(c, pref, r.cfg.OfficeDecayKm))
		}
		vectors[i] = feat
		similarities[i] = reranking.CosineSimilarity(feat, userFeat)
	}

	// Cap the MMR input to the top K by similarity.
	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return similarities[order[a]] > similarities[order[b]]
	})
	if len(order) > r.cfg.TopK {
		order = order[:r.cfg.TopK]
	}

	topSims := make([]float64, len(order))
	topVecs := make([][]float64, len(order))
	for i, idx := range order {
		topSims[i] = similarities[idx]
		topVecs[i] = vectors[idx]
	}

	topN := req.TopN
	if topN <= 0 {
		topN = r.cfg.DefaultTopN
	}
	lambda := r.cfg.DiversityLambda
	if req.Lambda != nil {
		lambda = *req.Lambda
	}

	picked := reranking.NewMMR(lambda).Select(topSims, topVecs, topN)

	priority := CategoryPriority(req.Gender, req.Age)
	results := make([]Recommendation, 0, len(picked))
	for _, p := range picked {
		idx := order[p]
		rec := Recommendation{
			ListingID:  candidates[idx].ListingID,
			Similarity: similarities[idx],
		}
		if req.AnnotateTypes {
			var weightedVec models.Vector
			copy(weightedVec[:], vectors[idx][:models.NumCategories])
			rec.DominantCategory = DominantCategory(weightedVec, priority).String()
		}
		results = append(results, rec)
	}
	return results, nil
}

// weightVector builds the final per-category weights: 1.0 base, plus the
// demographic adjustment, plus the stated-preference bonus per flagged
// category.
func (r *Ranker) weightVector(req Request, pref models.UserPreference) models.Vector {
	weights := models.Uniform(1.0)
	weights = weights.Add(DemographicAdjustment(req.Gender, req.Age))
	if req.UserID != 0 {
		weights = weights.Add(pref.FlagVector().Scale(r.cfg.PreferenceBonus))
	}
	return weights
}

// weighted multiplies two vectors elementwise.
func weighted(v, w models.Vector) models.Vector {
	var out models.Vector
	for i := range v {
		out[i] = v[i] * w[i]
	}
	return out
}

// officeProximity is the optional eighth feature: 1 at the office, fading
// linearly to 0 at decayKm.
func officeProximity(c models.Candidate, pref models.UserPreference, decayKm float64) float64 {
	km := geo.Haversine(c.Lat, c.Lon, pref.OfficeLat, pref.OfficeLon)
	return math.Max(0, 1-km/decayKm)
}

// applyFilters narrows candidates by neighborhood scope and listing
// attributes. An explicit dong scope takes precedence; otherwise the
// preference-stored neighborhood is used when present. A scope that
// eliminates everything falls back to the unscoped set so a stale
// neighborhood never blanks out results; attribute filters do not fall
// back.
func applyFilters(candidates []models.Candidate, f Filter, scope []int32, prefDong int32) []models.Candidate {
	dongs := scope
	if len(dongs) == 0 {
		dongs = f.DongIDs
	}
	if len(dongs) == 0 && prefDong != 0 {
		dongs = []int32{prefDong}
	}

	if len(dongs) > 0 {
		scoped := filterDongs(candidates, dongs)
		if len(scoped) > 0 {
			candidates = scoped
		}
	}

	var out []models.Candidate
	for _, c := range candidates {
		if f.PriceMin > 0 && c.Price < f.PriceMin {
			continue
		}
		if f.PriceMax > 0 && c.Price > f.PriceMax {
			continue
		}
		if len(f.RoomTypes) > 0 && !containsString(f.RoomTypes, c.RoomType) {
			continue
		}
		if len(f.ContractTypes) > 0 && !containsString(f.ContractTypes, c.ContractType) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func filterDongs(candidates []models.Candidate, dongs []int32) []models.Candidate {
	set := make(map[int32]struct{}, len(dongs))
	for _, d := range dongs {
		set[d] = struct{}{}
	}
	var out []models.Candidate
	for _, c := range candidates {
		if _, ok := set[c.DongID]; ok {
			out = append(out, c)
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
