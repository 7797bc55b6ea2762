// HomeScout - Property Scoring and Recommendation Engine
// Copyright 2026 ZeepSeek
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zeepseek/homescout

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/zeepseek/homescout/internal/config"
	"github.com/zeepseek/homescout/internal/models"
	"github.com/zeepseek/homescout/internal/ranking"
	"github.com/zeepseek/homescout/internal/recommend"
	"github.com/zeepseek/homescout/internal/scoring"
	"github.com/zeepseek/homescout/internal/store"
)

type fakePipeline struct {
	result   scoring.Result
	err      error
	lastMode scoring.Mode
	lastOpts scoring.Options
	lastID   int64
}

func (f *fakePipeline) Run(_ context.Context, mode scoring.Mode, opts scoring.Options) (scoring.Result, error) {
	f.lastMode = mode
	f.lastOpts = opts
	return f.result, f.err
}

func (f *fakePipeline) ScoreOne(_ context.Context, listingID int64) error {
	f.lastID = listingID
	return f.err
}

type fakeScores struct {
	score   models.PropertyScore
	err     error
	pingErr error
}

func (f *fakeScores) Score(context.Context, int64) (models.PropertyScore, error) {
	return f.score, f.err
}

func (f *fakeScores) Ping(context.Context) error { return f.pingErr }

type fakeRanker struct {
	recs    []ranking.Recommendation
	err     error
	lastReq ranking.Request
}

func (f *fakeRanker) Rank(_ context.Context, req ranking.Request) ([]ranking.Recommendation, error) {
	f.lastReq = req
	return f.recs, f.err
}

type fakeRecommender struct {
	result   recommend.HybridResult
	err      error
	trainErr error
	trained  int
}

func (f *fakeRecommender) Recommend(context.Context, int64, int) (recommend.HybridResult, error) {
	return f.result, f.err
}

func (f *fakeRecommender) Train(context.Context) error {
	f.trained++
	return f.trainErr
}

type fakeInvalidator struct{ calls int }

func (f *fakeInvalidator) Invalidate() { f.calls++ }

type testServer struct {
	pipeline    *fakePipeline
	scores      *fakeScores
	ranker      *fakeRanker
	recommender *fakeRecommender
	cache       *fakeInvalidator
	srv         *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		pipeline:    &fakePipeline{},
		scores:      &fakeScores{},
		ranker:      &fakeRanker{},
		recommender: &fakeRecommender{},
		cache:       &fakeInvalidator{},
	}
	h := NewHandler(ts.pipeline, ts.scores, ts.ranker, ts.recommender, ts.cache)
	router := NewRouter(h, config.ServerConfig{
		RateLimitReqs:   1000,
		RateLimitWindow: time.Minute,
		CORSOrigins:     []string{"*"},
	})
	ts.srv = httptest.NewServer(router)
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var req *http.Request
	var err error
	if body != "" {
		req, err = http.NewRequest(method, ts.srv.URL+path, strings.NewReader(body))
	} else {
		req, err = http.NewRequest(method, ts.srv.URL+path, nil)
	}
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading response body: %v", err)
	}
	return resp, respBody
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil {
		t.Fatalf("error body %q is not valid JSON: %v", body, err)
	}
	return er.Error.Code
}

func TestRecalculate(t *testing.T) {
	ts := newTestServer(t)
	ts.pipeline.result = scoring.Result{
		Mode:      scoring.ModeBatch,
		Total:     100,
		Processed: 98,
		Failed:    2,
		Elapsed:   1500 * time.Millisecond,
	}

	resp, body := ts.do(t, http.MethodPost, "/api/v1/scores/recalculate", `{"mode":"batch"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", resp.StatusCode, body)
	}

	var got RecalculateResponse
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	want := RecalculateResponse{Mode: "batch", Total: 100, Processed: 98, Failed: 2, ElapsedMS: 1500}
	if got != want {
		t.Errorf("response = %+v, want %+v", got, want)
	}
	if ts.pipeline.lastMode != scoring.ModeBatch {
		t.Errorf("pipeline mode = %q, want batch", ts.pipeline.lastMode)
	}
	if ts.cache.calls != 1 {
		t.Errorf("cache invalidations = %d, want 1", ts.cache.calls)
	}
}

func TestRecalculateForwardsRunOptions(t *testing.T) {
	ts := newTestServer(t)
	ts.pipeline.result = scoring.Result{Mode: scoring.ModeSingle, Total: 3, Processed: 3}

	body := `{"mode":"single","batch_size":50,"worker_count":2,"limit":3}`
	resp, respBody := ts.do(t, http.MethodPost, "/api/v1/scores/recalculate", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", resp.StatusCode, respBody)
	}
	if ts.pipeline.lastMode != scoring.ModeSingle {
		t.Errorf("pipeline mode = %q, want single", ts.pipeline.lastMode)
	}
	want := scoring.Options{BatchSize: 50, Workers: 2, Limit: 3}
	if ts.pipeline.lastOpts != want {
		t.Errorf("pipeline options = %+v, want %+v", ts.pipeline.lastOpts, want)
	}
}

func TestRecalculateValidation(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"unknown mode", `{"mode":"turbo"}`, "UNKNOWN_MODE"},
		{"missing mode", `{}`, "VALIDATION_FAILED"},
		{"bad json", `{`, "INVALID_BODY"},
		{"negative limit", `{"mode":"batch","limit":-1}`, "VALIDATION_FAILED"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t)
			resp, body := ts.do(t, http.MethodPost, "/api/v1/scores/recalculate", tc.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
			if code := errorCode(t, body); code != tc.wantCode {
				t.Errorf("error code = %q, want %q", code, tc.wantCode)
			}
		})
	}
}

func TestScoreEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.scores.score = models.PropertyScore{ListingID: 42}
	ts.scores.score.Scores[models.CategoryCafe] = models.CategoryScore{Count: 3, Score: 1.7}

	resp, body := ts.do(t, http.MethodGet, "/api/v1/scores/42", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", resp.StatusCode, body)
	}
	if ts.pipeline.lastID != 42 {
		t.Errorf("pipeline scored listing %d, want 42", ts.pipeline.lastID)
	}

	var got models.PropertyScore
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.ListingID != 42 || got.Scores[models.CategoryCafe].Count != 3 {
		t.Errorf("score = %+v, want listing 42 with cafe count 3", got)
	}
}

func TestScoreNotFound(t *testing.T) {
	ts := newTestServer(t)
	ts.pipeline.err = store.ErrNotFound

	resp, body := ts.do(t, http.MethodGet, "/api/v1/scores/9999", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if code := errorCode(t, body); code != "LISTING_NOT_FOUND" {
		t.Errorf("error code = %q, want LISTING_NOT_FOUND", code)
	}
}

func TestScoreInvalidID(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := ts.do(t, http.MethodGet, "/api/v1/scores/abc", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestRecommend(t *testing.T) {
	ts := newTestServer(t)
	ts.ranker.recs = []ranking.Recommendation{
		{ListingID: 7, Similarity: 0.9, DominantCategory: "cafe"},
		{ListingID: 8, Similarity: 0.8},
	}

	reqBody := `{"scores":{"cafe":2.5,"transport":1.0},"top_n":2,"normalization":"zscore","gender":"female","age":28,"annotate_types":true}`
	resp, body := ts.do(t, http.MethodPost, "/api/v1/recommend", reqBody)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", resp.StatusCode, body)
	}

	var got []ranking.Recommendation
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(got) != 2 || got[0].ListingID != 7 {
		t.Errorf("recommendations = %+v", got)
	}

	// The score map must land in canonical vector positions.
	if ts.ranker.lastReq.Scores[models.CategoryCafe] != 2.5 {
		t.Errorf("cafe score = %v, want 2.5", ts.ranker.lastReq.Scores[models.CategoryCafe])
	}
	if ts.ranker.lastReq.Method != ranking.MethodZScore {
		t.Errorf("method = %q, want zscore", ts.ranker.lastReq.Method)
	}
	if !ts.ranker.lastReq.AnnotateTypes {
		t.Error("AnnotateTypes not propagated")
	}
	// An omitted lambda must stay unset so the ranker applies its
	// configured default; 0 is a meaningful value, not absence.
	if ts.ranker.lastReq.Lambda != nil {
		t.Errorf("lambda = %v, want nil when omitted", *ts.ranker.lastReq.Lambda)
	}
}

func TestRecommendZeroLambda(t *testing.T) {
	ts := newTestServer(t)

	reqBody := `{"scores":{"cafe":1},"lambda":0}`
	resp, body := ts.do(t, http.MethodPost, "/api/v1/recommend", reqBody)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", resp.StatusCode, body)
	}
	if ts.ranker.lastReq.Lambda == nil || *ts.ranker.lastReq.Lambda != 0 {
		t.Errorf("lambda = %v, want explicit 0", ts.ranker.lastReq.Lambda)
	}
}

func TestRecommendEmptyResultIsOK(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodPost, "/api/v1/recommend", `{"scores":{"cafe":1}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if strings.TrimSpace(string(body)) != "[]" {
		t.Errorf("body = %q, want empty JSON array", body)
	}
}

func TestRecommendValidation(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"unknown category", `{"scores":{"casino":1}}`, "UNKNOWN_CATEGORY"},
		{"unknown normalization", `{"scores":{"cafe":1},"normalization":"rank"}`, "UNKNOWN_NORMALIZATION"},
		{"empty scores", `{"scores":{}}`, "VALIDATION_FAILED"},
		{"lambda out of range", `{"scores":{"cafe":1},"lambda":1.5}`, "VALIDATION_FAILED"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t)
			resp, body := ts.do(t, http.MethodPost, "/api/v1/recommend", tc.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (%s)", resp.StatusCode, body)
			}
			if code := errorCode(t, body); code != tc.wantCode {
				t.Errorf("error code = %q, want %q", code, tc.wantCode)
			}
		})
	}
}

func TestRecommendHybrid(t *testing.T) {
	ts := newTestServer(t)
	ts.recommender.result = recommend.HybridResult{
		DongID:     2,
		ListingIDs: []int64{101, 102},
		Strategy:   recommend.StrategyGeoCollaborative,
	}

	resp, body := ts.do(t, http.MethodGet, "/api/v1/recommend/hybrid?user_id=1&top_n=2", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", resp.StatusCode, body)
	}

	var got recommend.HybridResult
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.DongID != 2 || len(got.ListingIDs) != 2 || got.Strategy != recommend.StrategyGeoCollaborative {
		t.Errorf("result = %+v", got)
	}
}

func TestRecommendHybridRequiresUserID(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := ts.do(t, http.MethodGet, "/api/v1/recommend/hybrid", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestTrain(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodPost, "/api/v1/recommend/train", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", resp.StatusCode, body)
	}
	if ts.recommender.trained != 1 {
		t.Errorf("train calls = %d, want 1", ts.recommender.trained)
	}

	ts.recommender.trainErr = errors.New("store down")
	resp, _ = ts.do(t, http.MethodPost, "/api/v1/recommend/train", "")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 on training failure", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, http.MethodGet, "/healthz", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	ts.scores.pingErr = errors.New("store down")
	resp, _ = ts.do(t, http.MethodGet, "/healthz", "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 when the store is down", resp.StatusCode)
	}
}

func TestRequestIDEcho(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, ts.srv.URL+"/healthz", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("X-Request-ID", "req-123")
	resp, err := ts.srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); got != "req-123" {
		t.Errorf("X-Request-ID = %q, want echo of req-123", got)
	}

	resp, err = ts.srv.Client().Get(ts.srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not generated for clients that omit it")
	}
}
