// HomeScout - Property Scoring and Recommendation Engine
// Copyright 2026 ZeepSeek
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zeepseek/homescout

package scoring

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/zeepseek/homescout/internal/config"
	"github.com/zeepseek/homescout/internal/models"
)

// fakeListingStore is an in-memory Store with a programmable failure plan:
// failures[listingID] transient write errors before an upsert succeeds.
type fakeListingStore struct {
	mu         sync.Mutex
	listings   []models.Listing
	incomplete []models.Listing
	failures   map[int64]int
	upserts    map[int64]int
	sessions   int
	pageSizes  []int
}

func newFakeListingStore(n int) *fakeListingStore {
	f := &fakeListingStore{
		failures: make(map[int64]int),
		upserts:  make(map[int64]int),
	}
	for i := 1; i <= n; i++ {
		f.listings = append(f.listings, models.Listing{ID: int64(i), Lat: testLat, Lon: testLon})
	}
	return f
}

func (f *fakeListingStore) CountListings(context.Context) (int, error) {
	return len(f.listings), nil
}

func (f *fakeListingStore) Listing(_ context.Context, listingID int64) (models.Listing, error) {
	for _, l := range f.listings {
		if l.ID == listingID {
			return l, nil
		}
	}
	return models.Listing{}, errors.New("not found")
}

func pageOf(src []models.Listing, afterID int64, limit int) []models.Listing {
	var page []models.Listing
	for _, l := range src {
		if l.ID > afterID {
			page = append(page, l)
		}
	}
	sort.Slice(page, func(i, j int) bool { return page[i].ID < page[j].ID })
	if len(page) > limit {
		page = page[:limit]
	}
	return page
}

func (f *fakeListingStore) ListingPage(_ context.Context, afterID int64, limit int) ([]models.Listing, error) {
	f.mu.Lock()
	f.pageSizes = append(f.pageSizes, limit)
	f.mu.Unlock()
	return pageOf(f.listings, afterID, limit), nil
}

func (f *fakeListingStore) IncompleteListings(_ context.Context, afterID int64, limit int) ([]models.Listing, error) {
	f.mu.Lock()
	// A listing leaves the incomplete set once it has been scored.
	var remaining []models.Listing
	for _, l := range f.incomplete {
		if f.upserts[l.ID] == 0 {
			remaining = append(remaining, l)
		}
	}
	f.mu.Unlock()
	return pageOf(remaining, afterID, limit), nil
}

func (f *fakeListingStore) Session(context.Context) (Session, error) {
	f.mu.Lock()
	f.sessions++
	f.mu.Unlock()
	return &fakeScoreSession{store: f}, nil
}

type fakeScoreSession struct {
	store *fakeListingStore
}

func (s *fakeScoreSession) UpsertScore(_ context.Context, score models.PropertyScore) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	if s.store.failures[score.ListingID] > 0 {
		s.store.failures[score.ListingID]--
		return errors.New("TransactionContext Error: write-write conflict")
	}
	s.store.upserts[score.ListingID]++
	return nil
}

func (s *fakeScoreSession) Close() error { return nil }

func testPipeline(db Store) *Pipeline {
	cache := NewPOICache(newFakePOISource(), time.Hour, 1.0)
	computer := NewComputer(cache, 1.0)
	return NewPipeline(db, computer, config.ScoringConfig{
		RadiusKm:      1.0,
		BatchSize:     4,
		SubBatchSize:  2,
		Workers:       3,
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
	})
}

func TestParseMode(t *testing.T) {
	for _, valid := range []string{"no_batch", "single", "batch", "incomplete"} {
		if _, err := ParseMode(valid); err != nil {
			t.Errorf("ParseMode(%q) error: %v", valid, err)
		}
	}
	if _, err := ParseMode("bulk"); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("ParseMode(bulk) error = %v, want ErrUnknownMode", err)
	}
}

func TestRunBatchScoresEverything(t *testing.T) {
	db := newFakeListingStore(10)
	p := testPipeline(db)

	res, err := p.Run(context.Background(), ModeBatch, Options{})
	if err != nil {
		t.Fatalf("Run(batch) error: %v", err)
	}
	if res.Total != 10 || res.Processed != 10 || res.Failed != 0 {
		t.Errorf("result = %+v, want total 10 processed 10 failed 0", res)
	}
	for id := int64(1); id <= 10; id++ {
		if db.upserts[id] != 1 {
			t.Errorf("listing %d upserted %d times, want 1", id, db.upserts[id])
		}
	}
	// 10 listings, pages of 4, sub-batches of 2: sessions per sub-batch.
	if db.sessions != 5 {
		t.Errorf("sessions = %d, want 5", db.sessions)
	}
}

func TestRunBatchRetriesTransientConflicts(t *testing.T) {
	db := newFakeListingStore(3)
	db.failures[2] = 2 // listing 2 fails twice, then succeeds
	p := testPipeline(db)

	res, err := p.Run(context.Background(), ModeBatch, Options{})
	if err != nil {
		t.Fatalf("Run(batch) error: %v", err)
	}
	if res.Processed != 3 || res.Failed != 0 {
		t.Errorf("result = %+v, want processed 3 failed 0", res)
	}
	if db.upserts[2] != 1 {
		t.Errorf("listing 2 upserted %d times, want 1", db.upserts[2])
	}
}

func TestRunBatchExhaustedRetriesIsolatesFailure(t *testing.T) {
	db := newFakeListingStore(3)
	db.failures[2] = 10 // more failures than retry budget
	p := testPipeline(db)

	res, err := p.Run(context.Background(), ModeBatch, Options{})
	if err != nil {
		t.Fatalf("Run(batch) error: %v", err)
	}
	if res.Processed != 2 || res.Failed != 1 {
		t.Errorf("result = %+v, want processed 2 failed 1", res)
	}
	if db.upserts[1] != 1 || db.upserts[3] != 1 {
		t.Error("other listings should still be scored when one fails")
	}
}

func TestRunSingleScoresWholePopulation(t *testing.T) {
	db := newFakeListingStore(10)
	p := testPipeline(db)

	res, err := p.Run(context.Background(), ModeSingle, Options{})
	if err != nil {
		t.Fatalf("Run(single) error: %v", err)
	}
	if res.Total != 10 || res.Processed != 10 || res.Failed != 0 {
		t.Errorf("result = %+v, want total 10 processed 10 failed 0", res)
	}
	for id := int64(1); id <= 10; id++ {
		if db.upserts[id] != 1 {
			t.Errorf("listing %d upserted %d times, want 1", id, db.upserts[id])
		}
	}
	// Sequential: one session for the whole run, paginated reads.
	if db.sessions != 1 {
		t.Errorf("sessions = %d, want 1 for single mode", db.sessions)
	}
	if len(db.pageSizes) != 3 {
		t.Errorf("page reads = %d, want 3 pages of at most 4", len(db.pageSizes))
	}
}

func TestRunLimitCapsRows(t *testing.T) {
	db := newFakeListingStore(10)
	p := testPipeline(db)

	res, err := p.Run(context.Background(), ModeSingle, Options{Limit: 3})
	if err != nil {
		t.Fatalf("Run(single) error: %v", err)
	}
	if res.Total != 3 || res.Processed != 3 {
		t.Errorf("result = %+v, want total 3 processed 3", res)
	}
	for id := int64(4); id <= 10; id++ {
		if db.upserts[id] != 0 {
			t.Errorf("listing %d scored beyond the limit", id)
		}
	}
}

func TestRunOptionsOverrideDefaults(t *testing.T) {
	db := newFakeListingStore(7)
	p := testPipeline(db)

	res, err := p.Run(context.Background(), ModeSingle, Options{BatchSize: 3})
	if err != nil {
		t.Fatalf("Run(single) error: %v", err)
	}
	if res.Processed != 7 {
		t.Errorf("processed = %d, want 7", res.Processed)
	}
	want := []int{3, 3, 1}
	if len(db.pageSizes) != len(want) {
		t.Fatalf("page reads = %v, want %v", db.pageSizes, want)
	}
	for i, size := range want {
		if db.pageSizes[i] != size {
			t.Errorf("page %d requested %d rows, want %d", i, db.pageSizes[i], size)
		}
	}
}

func TestRunBatchLimit(t *testing.T) {
	db := newFakeListingStore(10)
	p := testPipeline(db)

	res, err := p.Run(context.Background(), ModeBatch, Options{Limit: 5, Workers: 1})
	if err != nil {
		t.Fatalf("Run(batch) error: %v", err)
	}
	if res.Total != 5 || res.Processed != 5 {
		t.Errorf("result = %+v, want total 5 processed 5", res)
	}
}

func TestScoreOne(t *testing.T) {
	db := newFakeListingStore(5)
	p := testPipeline(db)

	if err := p.ScoreOne(context.Background(), 4); err != nil {
		t.Fatalf("ScoreOne() error: %v", err)
	}
	if db.upserts[4] != 1 {
		t.Errorf("listing 4 upserted %d times, want 1", db.upserts[4])
	}
	if db.upserts[1] != 0 {
		t.Error("ScoreOne must not touch other listings")
	}
}

func TestScoreOneUnknownListing(t *testing.T) {
	db := newFakeListingStore(2)
	p := testPipeline(db)

	if err := p.ScoreOne(context.Background(), 99); err == nil {
		t.Fatal("expected error for unknown listing")
	}
}

func TestRunNoBatchSequential(t *testing.T) {
	db := newFakeListingStore(6)
	p := testPipeline(db)

	res, err := p.Run(context.Background(), ModeNoBatch, Options{})
	if err != nil {
		t.Fatalf("Run(no_batch) error: %v", err)
	}
	if res.Processed != 6 {
		t.Errorf("processed = %d, want 6", res.Processed)
	}
	if db.sessions != 1 {
		t.Errorf("sessions = %d, want 1 for sequential mode", db.sessions)
	}
	// no_batch reads the whole population in a single page.
	if len(db.pageSizes) != 1 || db.pageSizes[0] != 6 {
		t.Errorf("page reads = %v, want one read of 6", db.pageSizes)
	}
}

func TestRunIncompleteOnlyTouchesIncomplete(t *testing.T) {
	db := newFakeListingStore(6)
	db.incomplete = []models.Listing{db.listings[1], db.listings[4]} // listings 2 and 5
	p := testPipeline(db)

	res, err := p.Run(context.Background(), ModeIncomplete, Options{})
	if err != nil {
		t.Fatalf("Run(incomplete) error: %v", err)
	}
	if res.Processed != 2 {
		t.Errorf("processed = %d, want 2", res.Processed)
	}
	if db.upserts[2] != 1 || db.upserts[5] != 1 {
		t.Errorf("upserts = %v, want listings 2 and 5 scored", db.upserts)
	}
	if db.upserts[1] != 0 || db.upserts[3] != 0 {
		t.Error("incomplete mode must not rescore complete listings")
	}
}

func TestRunCanceledContext(t *testing.T) {
	db := newFakeListingStore(100)
	p := testPipeline(db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Run(ctx, ModeBatch, Options{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Run on canceled context error = %v, want context.Canceled", err)
	}
}

func TestRunUnknownMode(t *testing.T) {
	db := newFakeListingStore(1)
	p := testPipeline(db)

	if _, err := p.Run(context.Background(), Mode("bogus"), Options{}); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("error = %v, want ErrUnknownMode", err)
	}
}
