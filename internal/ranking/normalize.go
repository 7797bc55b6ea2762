// HomeScout - Property Scoring and Recommendation Engine
// Copyright 2026 ZeepSeek
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zeepseek/homescout

// Package ranking turns scored listings into ranked recommendations:
// candidate vectors are normalized per category, weighted by demographics
// and stated preferences, and ranked by cosine similarity against the
// user's vector. The reranking subpackage diversifies the top candidates.
package ranking

import (
	"errors"
	"fmt"

	"github.com/zeepseek/homescout/internal/models"
)

// Method selects how candidate score columns are rescaled before
// similarity computation.
type Method string

// Normalization methods.
const (
	// MethodMinMax rescales each category column into [0,1] by the
	// column's global min and max.
	MethodMinMax Method = "minmax"
	// MethodZScore standardizes each column by its global mean and
	// population standard deviation.
	MethodZScore Method = "zscore"
)

// ErrUnknownMethod is returned for a normalization string outside the
// known set.
var ErrUnknownMethod = errors.New("ranking: unknown normalization method")

// ParseMethod validates a normalization method string. Empty selects
// MethodMinMax.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodMinMax, MethodZScore:
		return Method(s), nil
	case "":
		return MethodMinMax, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMethod, s)
	}
}

// Normalize rescales one vector with the fitted column statistics. The
// same stats must be used for candidates and the user vector so both live
// in the same space. Degenerate columns guard the denominator to 1:
// min==max under minmax, zero std under zscore.
func Normalize(v models.Vector, stats models.ScoreStats, method Method) models.Vector {
	var out models.Vector
	switch method {
	case MethodZScore:
		for i := range v {
			std := stats.Std[i]
			if std == 0 {
				std = 1
			}
			out[i] = (v[i] - stats.Mean[i]) / std
		}
	default: // MethodMinMax
		for i := range v {
			span := stats.Max[i] - stats.Min[i]
			if span == 0 {
				span = 1
			}
			out[i] = (v[i] - stats.Min[i]) / span
		}
	}
	return out
}
