// HomeScout - Property Scoring and Recommendation Engine
// Copyright 2026 ZeepSeek
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zeepseek/homescout

// Package api is the HTTP control surface: batch score recalculation,
// score read-back, content-based and hybrid recommendation, and model
// training, routed with chi.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/zeepseek/homescout/internal/models"
	"github.com/zeepseek/homescout/internal/ranking"
	"github.com/zeepseek/homescout/internal/recommend"
	"github.com/zeepseek/homescout/internal/scoring"
	"github.com/zeepseek/homescout/internal/store"
)

// recommendTimeout bounds a single ranking request.
const recommendTimeout = 10 * time.Second

// Recalculator runs the batch scoring pipeline and scores single
// listings on demand.
type Recalculator interface {
	Run(ctx context.Context, mode scoring.Mode, opts scoring.Options) (scoring.Result, error)
	ScoreOne(ctx context.Context, listingID int64) error
}

// ScoreReader reads persisted score rows and answers health probes.
type ScoreReader interface {
	Score(ctx context.Context, listingID int64) (models.PropertyScore, error)
	Ping(ctx context.Context) error
}

// Ranker is the content-based recommendation stage.
type Ranker interface {
	Rank(ctx context.Context, req ranking.Request) ([]ranking.Recommendation, error)
}

// Recommender is the hybrid orchestrator plus its training control.
type Recommender interface {
	Recommend(ctx context.Context, userID int64, topN int) (recommend.HybridResult, error)
	Train(ctx context.Context) error
}

// Invalidator drops a cache snapshot; called after batch recalculation
// so freshly written scores become visible immediately.
type Invalidator interface {
	Invalidate()
}

// Handler implements the HTTP endpoints.
type Handler struct {
	pipeline    Recalculator
	scores      ScoreReader
	ranker      Ranker
	recommender Recommender
	caches      []Invalidator
	validate    *validator.Validate
}

// NewHandler wires the endpoint dependencies. caches lists the cache
// snapshots invalidated after a recalculation run.
func NewHandler(pipeline Recalculator, scores ScoreReader, ranker Ranker, recommender Recommender, caches ...Invalidator) *Handler {
	return &Handler{
		pipeline:    pipeline,
		scores:      scores,
		ranker:      ranker,
		recommender: recommender,
		caches:      caches,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RecalculateRequest is the POST /api/v1/scores/recalculate body. Batch
// size, worker count, and the row limit are optional; zero values use the
// configured defaults (limit 0 means the whole population).
type RecalculateRequest struct {
	Mode        string `json:"mode" validate:"required"`
	BatchSize   int    `json:"batch_size" validate:"min=0"`
	WorkerCount int    `json:"worker_count" validate:"min=0"`
	Limit       int    `json:"limit" validate:"min=0"`
}

// RecalculateResponse summarizes a finished run.
type RecalculateResponse struct {
	Mode      string `json:"mode"`
	Total     int    `json:"total"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

// Recalculate handles POST /api/v1/scores/recalculate.
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	var req RecalculateRequest
	if !h.decode(w, r, &req) {
		return
	}

	mode, err := scoring.ParseMode(req.Mode)
	if err != nil {
		respondError(w, http.StatusBadRequest, "UNKNOWN_MODE", err.Error(), nil)
		return
	}

	result, err := h.pipeline.Run(r.Context(), mode, scoring.Options{
		BatchSize: req.BatchSize,
		Workers:   req.WorkerCount,
		Limit:     req.Limit,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "RECALCULATION_FAILED", "score recalculation failed", err)
		return
	}

	h.invalidateCaches()
	respondJSON(w, http.StatusOK, RecalculateResponse{
		Mode:      string(result.Mode),
		Total:     result.Total,
		Processed: result.Processed,
		Failed:    result.Failed,
		ElapsedMS: result.Elapsed.Milliseconds(),
	})
}

// Score handles GET /api/v1/scores/{listingID}: recompute the listing's
// vector from the current POI state, persist it, and return it.
func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	listingID, err := strconv.ParseInt(chi.URLParam(r, "listingID"), 10, 64)
	if err != nil || listingID <= 0 {
		respondError(w, http.StatusBadRequest, "INVALID_LISTING_ID", "listing id must be a positive integer", nil)
		return
	}

	if err := h.pipeline.ScoreOne(r.Context(), listingID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "LISTING_NOT_FOUND", "listing does not exist", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "SCORING_FAILED", "failed to score listing", err)
		return
	}
	h.invalidateCaches()

	score, err := h.scores.Score(r.Context(), listingID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "SCORE_READ_FAILED", "failed to read stored score", err)
		return
	}
	respondJSON(w, http.StatusOK, score)
}

// RecommendRequest is the POST /api/v1/recommend body. Scores maps
// category names to the caller's raw category values.
type RecommendRequest struct {
	Scores        map[string]float64 `json:"scores" validate:"required,min=1"`
	TopN          int                `json:"top_n" validate:"min=0,max=1000"`
	Normalization string             `json:"normalization"`
	Gender        string             `json:"gender"`
	Age           int                `json:"age" validate:"min=0,max=150"`
	UserID        int64              `json:"user_id" validate:"min=0"`
	Lambda        *float64           `json:"lambda" validate:"omitempty,min=0,max=1"`
	DongIDs       []int32            `json:"dong_ids,omitempty"`
	PriceMin      int64              `json:"price_min" validate:"min=0"`
	PriceMax      int64              `json:"price_max" validate:"min=0"`
	RoomTypes     []string           `json:"room_types,omitempty"`
	ContractTypes []string           `json:"contract_types,omitempty"`
	AnnotateTypes bool               `json:"annotate_types"`
}

// Recommend handles POST /api/v1/recommend.
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if !h.decode(w, r, &req) {
		return
	}

	method, err := ranking.ParseMethod(req.Normalization)
	if err != nil {
		respondError(w, http.StatusBadRequest, "UNKNOWN_NORMALIZATION", err.Error(), nil)
		return
	}

	var scores models.Vector
	for name, value := range req.Scores {
		cat, ok := models.ParseCategory(name)
		if !ok {
			respondError(w, http.StatusBadRequest, "UNKNOWN_CATEGORY", "unknown score category: "+name, nil)
			return
		}
		scores[cat] = value
	}

	ctx, cancel := context.WithTimeout(r.Context(), recommendTimeout)
	defer cancel()

	recs, err := h.ranker.Rank(ctx, ranking.Request{
		Scores: scores,
		Gender: req.Gender,
		Age:    req.Age,
		UserID: req.UserID,
		TopN:   req.TopN,
		Method: method,
		Lambda: req.Lambda,
		Filter: ranking.Filter{
			DongIDs:       req.DongIDs,
			PriceMin:      req.PriceMin,
			PriceMax:      req.PriceMax,
			RoomTypes:     req.RoomTypes,
			ContractTypes: req.ContractTypes,
		},
		AnnotateTypes: req.AnnotateTypes,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "RANKING_FAILED", "failed to rank candidates", err)
		return
	}
	if recs == nil {
		// No scored listings or everything filtered out: an empty
		// result, not an error.
		recs = []ranking.Recommendation{}
	}
	respondJSON(w, http.StatusOK, recs)
}

// RecommendHybrid handles GET /api/v1/recommend/hybrid.
func (h *Handler) RecommendHybrid(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		respondError(w, http.StatusBadRequest, "INVALID_USER_ID", "user_id must be a positive integer", nil)
		return
	}
	topN := 0
	if s := r.URL.Query().Get("top_n"); s != "" {
		topN, err = strconv.Atoi(s)
		if err != nil || topN < 0 {
			respondError(w, http.StatusBadRequest, "INVALID_TOP_N", "top_n must be a non-negative integer", nil)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), recommendTimeout)
	defer cancel()

	result, err := h.recommender.Recommend(ctx, userID, topN)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "RECOMMENDATION_FAILED", "failed to generate recommendations", err)
		return
	}
	if result.ListingIDs == nil {
		result.ListingIDs = []int64{}
	}
	respondJSON(w, http.StatusOK, result)
}

// Train handles POST /api/v1/recommend/train.
func (h *Handler) Train(w http.ResponseWriter, r *http.Request) {
	if err := h.recommender.Train(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, "TRAINING_FAILED", "model training failed", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "trained"})
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.scores.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "store ping failed", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode parses and validates a JSON request body, writing the error
// response itself on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON", nil)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			respondError(w, http.StatusBadRequest, "VALIDATION_FAILED",
				"invalid field "+verrs[0].Namespace(), nil)
			return false
		}
		respondError(w, http.StatusBadRequest, "VALIDATION_FAILED", "request validation failed", nil)
		return false
	}
	return true
}

func (h *Handler) invalidateCaches() {
	for _, c := range h.caches {
		c.Invalidate()
	}
}
