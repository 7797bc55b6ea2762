// HomeScout - Property Scoring and Recommendation Engine
// Copyright 2026 ZeepSeek
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zeepseek/homescout

// Package recommend implements the collaborative half of the hybrid
// recommender: an implicit-feedback ALS factorization trained from user
// activity, a geography-affinity detector over recent events, and the
// orchestrator that chains both with the content-based ranker.
package recommend

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"github.com/zeepseek/homescout/internal/config"
)

// ErrNotTrained is returned when Predict or Scores is called before a
// successful Train. Callers on collaborative-only paths surface it; the
// hybrid orchestrator treats it as "skip this stage".
var ErrNotTrained = errors.New("collaborative model is not trained")

// Interaction is one implicit-feedback observation: a user acted on a
// listing with the given aggregate rating.
type Interaction struct {
	UserID    int64
	ListingID int64
	Rating    float64
}

// alsWorkers bounds the goroutines used for the per-row factor solves.
const alsWorkers = 4

// ALS factorizes the user-listing interaction matrix for implicit
// feedback.
// Reference: "Collaborative Filtering for Implicit Feedback Datasets"
// (Hu, Koren, Volinsky, 2008).
//
// The objective minimizes
//
//	sum_{u,i} c_ui * (p_ui - x_u' * y_i)^2 + lambda * (||x_u||^2 + ||y_i||^2)
//
// where p_ui = 1 if user u interacted with listing i and the confidence
// is c_ui = 1 + alpha * r_ui. Each alternating half-step solves a small
// dense system per row via Cholesky.
type ALS struct {
	cfg config.ALSConfig

	mu      sync.RWMutex
	trained bool

	// x is the user factor matrix, y the listing factor matrix.
	x [][]float64
	y [][]float64

	userIndex map[int64]int
	itemIndex map[int64]int
}

// NewALS creates an untrained model with the given hyperparameters.
// Out-of-range values fall back to the defaults.
func NewALS(cfg config.ALSConfig) *ALS {
	if cfg.Factors <= 0 {
		cfg.Factors = 50
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = 15
	}
	if cfg.Regularization <= 0 {
		cfg.Regularization = 0.1
	}
	if cfg.Alpha <= 0 {
		cfg.Alpha = 40.0
	}
	return &ALS{
		cfg:       cfg,
		userIndex: make(map[int64]int),
		itemIndex: make(map[int64]int),
	}
}

// IsTrained reports whether a Train run has completed.
func (a *ALS) IsTrained() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.trained
}

// Train fits the factor matrices from scratch. An empty interaction set
// still marks the model trained (it will simply predict nothing).
// Training holds the write lock for its duration; Predict calls block
// until the new factors are in place.
func (a *ALS) Train(ctx context.Context, interactions []Interaction) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	a.userIndex = make(map[int64]int)
	a.itemIndex = make(map[int64]int)
	var numUsers, numItems int

	for _, in := range interactions {
		if in.Rating <= 0 {
			continue
		}
		if _, ok := a.userIndex[in.UserID]; !ok {
			a.userIndex[in.UserID] = numUsers
			numUsers++
		}
		if _, ok := a.itemIndex[in.ListingID]; !ok {
			a.itemIndex[in.ListingID] = numItems
			numItems++
		}
	}

	if numUsers == 0 || numItems == 0 {
		a.x, a.y = nil, nil
		a.trained = true
		return nil
	}

	// Sparse confidence matrix: c_ui = 1 + alpha * r_ui, keeping the
	// strongest observation for duplicate (user, listing) pairs.
	userItems := make(map[int]map[int]float64, numUsers)
	for _, in := range interactions {
		if in.Rating <= 0 {
			continue
		}
		ui := a.userIndex[in.UserID]
		ii := a.itemIndex[in.ListingID]
		if userItems[ui] == nil {
			userItems[ui] = make(map[int]float64)
		}
		conf := 1.0 + a.cfg.Alpha*in.Rating
		if conf > userItems[ui][ii] {
			userItems[ui][ii] = conf
		}
	}

	itemUsers := make(map[int]map[int]float64, numItems)
	for ui, items := range userItems {
		for ii, conf := range items {
			if itemUsers[ii] == nil {
				itemUsers[ii] = make(map[int]float64)
			}
			itemUsers[ii][ui] = conf
		}
	}

	numFactors := a.cfg.Factors
	a.x = initFactors(numUsers, numFactors)
	a.y = initFactors(numItems, numFactors)

	lambda := a.cfg.Regularization
	for iter := 0; iter < a.cfg.Iterations; iter++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		updateFactors(a.x, a.y, userItems, numFactors, lambda)
		if err := ctx.Err(); err != nil {
			return err
		}
		updateFactors(a.y, a.x, itemUsers, numFactors, lambda)
	}

	a.trained = true
	return nil
}

// initFactors seeds a factor matrix with small deterministic values, so
// repeated training runs on identical input produce identical factors.
func initFactors(rows, numFactors int) [][]float64 {
	m := make([][]float64, rows)
	for r := range m {
		m[r] = make([]float64, numFactors)
		for f := range m[r] {
			m[r][f] = 0.1 * (float64((r*numFactors+f)%1000)/1000.0 - 0.5)
		}
	}
	return m
}

// updateFactors solves one alternating half-step: fix `fixed`, solve each
// row of `target` independently. links maps a target row to its observed
// fixed-row confidences.
func updateFactors(target, fixed [][]float64, links map[int]map[int]float64, numFactors int, lambda float64) {
	// Precompute F'F over the fixed matrix once per half-step.
	ftf := make([][]float64, numFactors)
	for f := range ftf {
		ftf[f] = make([]float64, numFactors)
	}
	for _, row := range fixed {
		for f1 := 0; f1 < numFactors; f1++ {
			for f2 := f1; f2 < numFactors; f2++ {
				ftf[f1][f2] += row[f1] * row[f2]
				if f1 != f2 {
					ftf[f2][f1] = ftf[f1][f2]
				}
			}
		}
	}

	var wg sync.WaitGroup
	n := len(target)
	chunk := (n + alsWorkers - 1) / alsWorkers
	for w := 0; w < alsWorkers; w++ {
		start := w * chunk
		end := min(start+chunk, n)
		if start >= end {
			break
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for r := start; r < end; r++ {
				target[r] = solveRow(links[r], fixed, ftf, numFactors, lambda)
			}
		}(start, end)
	}
	wg.Wait()
}

// solveRow solves A*x = b for one row, where
//
//	A = F' * C^r * F + lambda * I
//	b = F' * C^r * p^r
//
// built incrementally from F'F using the (c - 1) rank-one updates of the
// observed entries.
func solveRow(observed map[int]float64, fixed, ftf [][]float64, numFactors int, lambda float64) []float64 {
	A := make([][]float64, numFactors)
	for f := range A {
		A[f] = make([]float64, numFactors)
		copy(A[f], ftf[f])
		A[f][f] += lambda
	}

	// Accumulate observed entries in index order so float rounding is
	// reproducible across training runs.
	keys := make([]int, 0, len(observed))
	for i := range observed {
		keys = append(keys, i)
	}
	sort.Ints(keys)

	b := make([]float64, numFactors)
	for _, i := range keys {
		conf := observed[i]
		row := fixed[i]
		cMinus1 := conf - 1.0
		for f1 := 0; f1 < numFactors; f1++ {
			for f2 := f1; f2 < numFactors; f2++ {
				delta := cMinus1 * row[f1] * row[f2]
				A[f1][f2] += delta
				if f1 != f2 {
					A[f2][f1] += delta
				}
			}
			b[f1] += conf * row[f1]
		}
	}

	return solveCholesky(A, b)
}

// solveCholesky solves A*x = b for symmetric positive-definite A.
func solveCholesky(A [][]float64, b []float64) []float64 {
	n := len(b)
	L := make([][]float64, n)
	for i := range L {
		L[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			sum := A[i][j]
			for k := 0; k < j; k++ {
				sum -= L[i][k] * L[j][k]
			}
			if i == j {
				if sum <= 0 {
					// Keep the factorization going when numerical
					// error makes the matrix indefinite.
					sum = 1e-10
				}
				L[i][j] = math.Sqrt(sum)
			} else if L[j][j] != 0 {
				L[i][j] = sum / L[j][j]
			}
		}
	}

	// Forward substitution L*z = b.
	z := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := b[i]
		for j := 0; j < i; j++ {
			sum -= L[i][j] * z[j]
		}
		if L[i][i] != 0 {
			z[i] = sum / L[i][i]
		}
	}

	// Back substitution L'*x = z.
	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := z[i]
		for j := i + 1; j < n; j++ {
			sum -= L[j][i] * x[j]
		}
		if L[i][i] != 0 {
			x[i] = sum / L[i][i]
		}
	}
	return x
}

// Predict returns the predicted affinity of one user for one listing.
// Returns ErrNotTrained before the first Train; a user or listing absent
// from the training data predicts zero.
func (a *ALS) Predict(userID, listingID int64) (float64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.trained {
		return 0, ErrNotTrained
	}
	ui, ok := a.userIndex[userID]
	if !ok {
		return 0, nil
	}
	ii, ok := a.itemIndex[listingID]
	if !ok {
		return 0, nil
	}
	return dot(a.x[ui], a.y[ii]), nil
}

// Scores predicts affinities for a candidate listing set in one pass.
// Returns ErrNotTrained before the first Train. An unknown user returns a
// nil map: the model has no signal for them. Unknown listings are
// skipped.
func (a *ALS) Scores(userID int64, candidates []int64) (map[int64]float64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.trained {
		return nil, ErrNotTrained
	}
	ui, ok := a.userIndex[userID]
	if !ok {
		return nil, nil
	}

	userVec := a.x[ui]
	scores := make(map[int64]float64, len(candidates))
	for _, id := range candidates {
		ii, ok := a.itemIndex[id]
		if !ok {
			continue
		}
		scores[id] = dot(userVec, a.y[ii])
	}
	return scores, nil
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
