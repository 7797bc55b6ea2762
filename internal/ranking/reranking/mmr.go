// HomeScout - Property Scoring and Recommendation Engine
// Copyright 2026 ZeepSeek
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zeepseek/homescout

// Package reranking implements post-processing algorithms for
// recommendation diversity.
package reranking

import "math"

// maxSelectSize bounds slice allocations; k is also bounded by the number
// of candidates.
const maxSelectSize = 10000

// MMR implements Maximal Marginal Relevance reranking. It balances
// relevance and diversity by iteratively selecting candidates that are
// both relevant and dissimilar to those already selected.
//
// The MMR criterion is:
//
//	argmax[lambda * score(i) - (1-lambda) * max(sim(i, s)) for s in selected]
//
// Where lambda balances relevance against diversity (1.0 = pure
// relevance, 0.0 = pure diversity) and sim is cosine similarity between
// candidate vectors.
//
// Reference:
// Carbonell, J., & Goldstein, J. (1998). "The Use of MMR, Diversity-Based
// Reranking for Reordering Documents and Producing Summaries." SIGIR 1998.
type MMR struct {
	lambda float64
}

// NewMMR creates an MMR reranker. Lambda is clamped to [0,1].
func NewMMR(lambda float64) *MMR {
	if lambda < 0 {
		lambda = 0
	}
	if lambda > 1 {
		lambda = 1
	}
	return &MMR{lambda: lambda}
}

// Lambda returns the configured relevance/diversity balance.
func (m *MMR) Lambda() float64 {
	return m.lambda
}

// Select greedily picks up to k candidate indices. similarities[i] is
// candidate i's relevance and vectors[i] its feature vector; the two
// slices are parallel. The first pick is always the plain-top-relevance
// candidate; subsequent picks maximize the MMR criterion against the
// already-selected set. Returns indices into the input slices, in
// selection order, never repeating an index.
func (m *MMR) Select(similarities []float64, vectors [][]float64, k int) []int {
	n := len(similarities)
	if n == 0 || k <= 0 {
		return nil
	}
	if k > maxSelectSize {
		k = maxSelectSize
	}
	if k > n {
		k = n
	}

	selected := make([]int, 0, k)
	chosen := make([]bool, n)

	// First pick: highest relevance, no diversity term.
	best := 0
	for i := 1; i < n; i++ {
		if similarities[i] > similarities[best] {
			best = i
		}
	}
	selected = append(selected, best)
	chosen[best] = true

	// maxSim[i] tracks the highest similarity between candidate i and any
	// already-selected candidate, updated incrementally per pick.
	maxSim := make([]float64, n)
	for i := range maxSim {
		maxSim[i] = math.Inf(-1)
	}

	for len(selected) < k {
		last := selected[len(selected)-1]

		bestIdx := -1
		bestScore := math.Inf(-1)
		for i := 0; i < n; i++ {
			if chosen[i] {
				continue
			}
			if sim := CosineSimilarity(vectors[i], vectors[last]); sim > maxSim[i] {
				maxSim[i] = sim
			}
			score := m.lambda*similarities[i] - (1-m.lambda)*maxSim[i]
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			break
		}
		selected = append(selected, bestIdx)
		chosen[bestIdx] = true
	}

	return selected
}

// CosineSimilarity returns the cosine of the angle between two equal
// length vectors, or 0 when either has zero norm.
func CosineSimilarity(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
