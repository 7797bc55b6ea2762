// HomeScout - Property Scoring and Recommendation Engine
// Copyright 2026 ZeepSeek
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zeepseek/homescout

package recommend

import (
	"context"
	"errors"
	"testing"

	"github.com/zeepseek/homescout/internal/config"
)

func testALSConfig() config.ALSConfig {
	return config.ALSConfig{
		Factors:        8,
		Iterations:     10,
		Regularization: 0.1,
		Alpha:          40,
	}
}

func TestALSUntrained(t *testing.T) {
	m := NewALS(testALSConfig())

	if m.IsTrained() {
		t.Error("IsTrained() = true before training")
	}
	if _, err := m.Predict(1, 10); !errors.Is(err, ErrNotTrained) {
		t.Errorf("Predict() error = %v, want ErrNotTrained", err)
	}
	if _, err := m.Scores(1, []int64{10}); !errors.Is(err, ErrNotTrained) {
		t.Errorf("Scores() error = %v, want ErrNotTrained", err)
	}
}

func TestALSTrainEmpty(t *testing.T) {
	m := NewALS(testALSConfig())
	if err := m.Train(context.Background(), nil); err != nil {
		t.Fatalf("Train() error: %v", err)
	}
	if !m.IsTrained() {
		t.Error("IsTrained() = false after training on empty data")
	}
	scores, err := m.Scores(1, []int64{10})
	if err != nil {
		t.Fatalf("Scores() error: %v", err)
	}
	if scores != nil {
		t.Errorf("Scores() = %v, want nil for a model with no data", scores)
	}
}

func TestALSPredictsObservedOverUnrelated(t *testing.T) {
	m := NewALS(testALSConfig())

	// Users 1 and 2 share taste for listings 10 and 20; user 3 is alone
	// on listing 30.
	interactions := []Interaction{
		{UserID: 1, ListingID: 10, Rating: 5},
		{UserID: 1, ListingID: 20, Rating: 5},
		{UserID: 2, ListingID: 10, Rating: 5},
		{UserID: 2, ListingID: 20, Rating: 5},
		{UserID: 3, ListingID: 30, Rating: 5},
	}
	if err := m.Train(context.Background(), interactions); err != nil {
		t.Fatalf("Train() error: %v", err)
	}

	observed, err := m.Predict(1, 20)
	if err != nil {
		t.Fatalf("Predict() error: %v", err)
	}
	unrelated, err := m.Predict(1, 30)
	if err != nil {
		t.Fatalf("Predict() error: %v", err)
	}
	if observed <= unrelated {
		t.Errorf("observed listing predicted %v, unrelated %v; want observed higher", observed, unrelated)
	}
}

func TestALSColdUserAndListing(t *testing.T) {
	m := NewALS(testALSConfig())
	interactions := []Interaction{{UserID: 1, ListingID: 10, Rating: 3}}
	if err := m.Train(context.Background(), interactions); err != nil {
		t.Fatalf("Train() error: %v", err)
	}

	scores, err := m.Scores(99, []int64{10})
	if err != nil {
		t.Fatalf("Scores() error: %v", err)
	}
	if scores != nil {
		t.Errorf("Scores() for unknown user = %v, want nil", scores)
	}

	got, err := m.Predict(1, 99)
	if err != nil {
		t.Fatalf("Predict() error: %v", err)
	}
	if got != 0 {
		t.Errorf("Predict() for unknown listing = %v, want 0", got)
	}

	scores, err = m.Scores(1, []int64{10, 99})
	if err != nil {
		t.Fatalf("Scores() error: %v", err)
	}
	if len(scores) != 1 {
		t.Errorf("Scores() = %v, want the one known listing", scores)
	}
}

func TestALSDeterministic(t *testing.T) {
	interactions := []Interaction{
		{UserID: 1, ListingID: 10, Rating: 5},
		{UserID: 1, ListingID: 20, Rating: 2},
		{UserID: 2, ListingID: 20, Rating: 4},
	}

	a := NewALS(testALSConfig())
	b := NewALS(testALSConfig())
	if err := a.Train(context.Background(), interactions); err != nil {
		t.Fatalf("Train() error: %v", err)
	}
	if err := b.Train(context.Background(), interactions); err != nil {
		t.Fatalf("Train() error: %v", err)
	}

	for _, listing := range []int64{10, 20} {
		pa, err := a.Predict(1, listing)
		if err != nil {
			t.Fatalf("Predict() error: %v", err)
		}
		pb, err := b.Predict(1, listing)
		if err != nil {
			t.Fatalf("Predict() error: %v", err)
		}
		if pa != pb {
			t.Errorf("listing %d: predictions diverge across identical training runs: %v vs %v", listing, pa, pb)
		}
	}
}

func TestALSTrainCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewALS(testALSConfig())
	err := m.Train(ctx, []Interaction{{UserID: 1, ListingID: 10, Rating: 1}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Train() error = %v, want context.Canceled", err)
	}
	if m.IsTrained() {
		t.Error("IsTrained() = true after a canceled training run")
	}
}
