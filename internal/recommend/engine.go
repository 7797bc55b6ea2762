// HomeScout - Property Scoring and Recommendation Engine
// Copyright 2026 ZeepSeek
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zeepseek/homescout

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/zeepseek/homescout/internal/config"
	"github.com/zeepseek/homescout/internal/logging"
	"github.com/zeepseek/homescout/internal/metrics"
	"github.com/zeepseek/homescout/internal/models"
	"github.com/zeepseek/homescout/internal/ranking"
)

// Strategy labels for the hybrid fallback stages, used in metrics and
// responses.
const (
	StrategyGeoCollaborative = "geo_collaborative"
	StrategyContent          = "content"
	StrategyCollaborative    = "collaborative"
	StrategyEmpty            = "empty"
)

// maxImplicitRating caps the summed per-pair implicit rating so a single
// obsessively revisited listing cannot dominate the confidence scale.
const maxImplicitRating = 20

const defaultHybridTopN = 10

// ContentRanker is the content-based stage of the fallback chain.
type ContentRanker interface {
	Rank(ctx context.Context, req ranking.Request) ([]ranking.Recommendation, error)
}

// CandidateLister supplies the scored listing snapshot.
type CandidateLister interface {
	Get(ctx context.Context) ([]models.Candidate, error)
}

// PreferenceGetter loads a user's stored survey answers.
type PreferenceGetter interface {
	Get(ctx context.Context, userID int64) (models.UserPreference, error)
}

// HybridResult is one hybrid recommendation response.
type HybridResult struct {
	DongID     int32   `json:"dong_id,omitempty"`
	ListingIDs []int64 `json:"listing_ids"`
	Strategy   string  `json:"strategy"`
}

// Engine chains the three recommendation signals per request:
//
//  1. geography + collaborative: when recent activity concentrates on one
//     neighborhood and the model is trained, rank that neighborhood's
//     listings by predicted affinity;
//  2. content: when stage 1 yields under half the requested results, fill
//     from the similarity ranker driven by the stored preference,
//     merging order-preserving with stage 1's picks;
//  3. collaborative: when both yield nothing, rank the user's unseen
//     listings by predicted affinity with no neighborhood restriction.
//
// Every stage degrading is still a valid response: an empty listing set,
// never an error.
type Engine struct {
	model      *ALS
	ranker     ContentRanker
	detector   *Detector
	activity   ActivitySource
	candidates CandidateLister
	prefs      PreferenceGetter
	cfg        config.RecommendConfig
	now        func() time.Time
}

// NewEngine wires the hybrid orchestrator.
func NewEngine(model *ALS, ranker ContentRanker, detector *Detector, activity ActivitySource,
	candidates CandidateLister, prefs PreferenceGetter, cfg config.RecommendConfig) *Engine {
	return &Engine{
		model:      model,
		ranker:     ranker,
		detector:   detector,
		activity:   activity,
		candidates: candidates,
		prefs:      prefs,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Model exposes the collaborative model, for training control.
func (e *Engine) Model() *ALS { return e.model }

// Recommend runs the fallback chain for one user.
func (e *Engine) Recommend(ctx context.Context, userID int64, topN int) (HybridResult, error) {
	start := e.now()
	if topN <= 0 {
		topN = defaultHybridTopN
	}

	candidates, err := e.candidates.Get(ctx)
	if err != nil {
		return HybridResult{}, err
	}

	dong, hasDong := e.detector.DominantDong(ctx, userID)

	result := HybridResult{Strategy: StrategyEmpty}
	if hasDong {
		result.DongID = dong
	}

	var picked []int64
	if hasDong && e.model.IsTrained() {
		picked = e.rankByModel(userID, listingsInDong(candidates, dong), topN)
		if len(picked) > 0 {
			result.Strategy = StrategyGeoCollaborative
		}
	}

	// Stage 2 fills in when stage 1 came up short.
	if len(picked) < (topN+1)/2 {
		content, err := e.contentStage(ctx, userID, dong, hasDong, topN)
		if err != nil {
			return HybridResult{}, err
		}
		if len(content) > 0 {
			if len(picked) == 0 {
				result.Strategy = StrategyContent
			}
			picked = mergeIDs(picked, content, topN)
		}
	}

	// Stage 3: plain collaborative over the user's unseen listings.
	if len(picked) == 0 && e.model.IsTrained() {
		picked = e.rankByModel(userID, e.unseenListings(ctx, userID, candidates), topN)
		if len(picked) > 0 {
			result.Strategy = StrategyCollaborative
		}
	}

	result.ListingIDs = picked
	metrics.RecordRecommendation(result.Strategy, e.now().Sub(start))
	logging.Debug().
		Int64("user_id", userID).
		Str("strategy", result.Strategy).
		Int("results", len(picked)).
		Msg("hybrid recommendation served")
	return result, nil
}

// rankByModel orders candidate ids by predicted affinity, descending,
// truncated to topN. An untrained model or cold user yields nothing.
func (e *Engine) rankByModel(userID int64, ids []int64, topN int) []int64 {
	scores, err := e.model.Scores(userID, ids)
	if err != nil || len(scores) == 0 {
		return nil
	}

	ranked := make([]int64, 0, len(scores))
	for id := range scores {
		ranked = append(ranked, id)
	}
	sort.Slice(ranked, func(a, b int) bool {
		sa, sb := scores[ranked[a]], scores[ranked[b]]
		if sa != sb {
			return sa > sb
		}
		return ranked[a] < ranked[b]
	})
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}

// contentStage runs the similarity ranker from the stored preference,
// scoped to the activity neighborhood when one was detected. The ranker
// itself falls back to the preference-stored neighborhood and then to
// the unscoped set.
func (e *Engine) contentStage(ctx context.Context, userID int64, dong int32, hasDong bool, topN int) ([]int64, error) {
	pref, err := e.prefs.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load preference for hybrid ranking: %w", err)
	}

	req := ranking.Request{
		Scores: pref.FlagVector(),
		Gender: pref.Gender,
		Age:    pref.Age,
		UserID: userID,
		TopN:   topN,
	}
	if hasDong {
		req.DongScope = []int32{dong}
	}

	recs, err := e.ranker.Rank(ctx, req)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(recs))
	for i, r := range recs {
		ids[i] = r.ListingID
	}
	return ids, nil
}

// unseenListings returns candidate ids absent from the user's own
// activity history. When every candidate has been seen (or the history
// query fails), the full set is used rather than returning nothing.
func (e *Engine) unseenListings(ctx context.Context, userID int64, candidates []models.Candidate) []int64 {
	seen, err := e.activity.SeenListings(ctx, userID)
	if err != nil {
		logging.Warn().Err(err).Int64("user_id", userID).Msg("seen-listing query failed, using full candidate set")
		seen = nil
	}

	all := make([]int64, 0, len(candidates))
	unseen := make([]int64, 0, len(candidates))
	for _, c := range candidates {
		all = append(all, c.ListingID)
		if _, ok := seen[c.ListingID]; !ok {
			unseen = append(unseen, c.ListingID)
		}
	}
	if len(unseen) == 0 {
		return all
	}
	return unseen
}

func listingsInDong(candidates []models.Candidate, dong int32) []int64 {
	var ids []int64
	for _, c := range candidates {
		if c.DongID == dong {
			ids = append(ids, c.ListingID)
		}
	}
	return ids
}

// mergeIDs concatenates two ranked id lists in priority order, dropping
// duplicates keeping the first occurrence, truncated to topN.
func mergeIDs(primary, secondary []int64, topN int) []int64 {
	seen := make(map[int64]struct{}, len(primary)+len(secondary))
	out := make([]int64, 0, topN)
	for _, list := range [][]int64{primary, secondary} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
			if len(out) == topN {
				return out
			}
		}
	}
	return out
}

// Train refits the collaborative model from the recent activity window.
// Events are folded into one implicit rating per (user, listing) pair:
// the sum of the per-action scores, capped so heavy repeat activity
// saturates instead of exploding the confidence scale.
func (e *Engine) Train(ctx context.Context) error {
	start := e.now()

	events, err := e.activity.AllActivity(ctx)
	if err != nil {
		return fmt.Errorf("failed to load activity for training: %w", err)
	}

	cutoff := e.now().Add(-e.cfg.ActivityWindow)
	type pair struct{ user, listing int64 }
	ratings := make(map[pair]float64)
	for _, ev := range events {
		if ev.OccurredAt.Before(cutoff) {
			continue
		}
		score := ev.Action.ImplicitScore()
		if score == 0 {
			continue
		}
		p := pair{ev.UserID, ev.ListingID}
		ratings[p] = min(ratings[p]+score, maxImplicitRating)
	}

	interactions := make([]Interaction, 0, len(ratings))
	for p, r := range ratings {
		interactions = append(interactions, Interaction{UserID: p.user, ListingID: p.listing, Rating: r})
	}

	if err := e.model.Train(ctx, interactions); err != nil {
		return fmt.Errorf("model training failed: %w", err)
	}

	elapsed := e.now().Sub(start)
	metrics.RecordTraining(elapsed)
	logging.Info().
		Int("events", len(events)).
		Int("interactions", len(interactions)).
		Dur("elapsed", elapsed).
		Msg("collaborative model trained")
	return nil
}

// TrainLoop retrains on a fixed interval until the context is canceled.
// Run in its own goroutine.
func (e *Engine) TrainLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.TrainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.Train(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logging.Error().Err(err).Msg("scheduled training failed")
			}
		}
	}
}
