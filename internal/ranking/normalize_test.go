// HomeScout - Property Scoring and Recommendation Engine
// Copyright 2026 ZeepSeek
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zeepseek/homescout

package ranking

import (
	"errors"
	"math"
	"testing"

	"github.com/zeepseek/homescout/internal/models"
)

func TestParseMethod(t *testing.T) {
	tests := []struct {
		input   string
		want    Method
		wantErr bool
	}{
		{"minmax", MethodMinMax, false},
		{"zscore", MethodZScore, false},
		{"", MethodMinMax, false},
		{"sigmoid", "", true},
		{"MinMax", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMethod(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownMethod) {
					t.Errorf("ParseMethod(%q) error = %v, want ErrUnknownMethod", tt.input, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseMethod(%q) = %v, %v; want %v", tt.input, got, err, tt.want)
			}
		})
	}
}

func TestNormalizeMinMax(t *testing.T) {
	stats := models.ScoreStats{
		Min: models.Uniform(2),
		Max: models.Uniform(6),
	}

	got := Normalize(models.Uniform(4), stats, MethodMinMax)
	for i := range got {
		if got[i] != 0.5 {
			t.Errorf("component %d = %v, want 0.5", i, got[i])
		}
	}

	// Extremes map to the unit interval bounds.
	lo := Normalize(models.Uniform(2), stats, MethodMinMax)
	hi := Normalize(models.Uniform(6), stats, MethodMinMax)
	for i := range lo {
		if lo[i] != 0 || hi[i] != 1 {
			t.Errorf("component %d bounds = [%v, %v], want [0, 1]", i, lo[i], hi[i])
		}
	}
}

func TestNormalizeMinMaxDegenerateColumn(t *testing.T) {
	// min == max: the denominator is guarded to 1 instead of dividing
	// by zero.
	stats := models.ScoreStats{
		Min: models.Uniform(3),
		Max: models.Uniform(3),
	}
	got := Normalize(models.Uniform(3), stats, MethodMinMax)
	for i := range got {
		if got[i] != 0 {
			t.Errorf("component %d = %v, want 0", i, got[i])
		}
	}
}

func TestNormalizeZScore(t *testing.T) {
	stats := models.ScoreStats{
		Mean: models.Uniform(10),
		Std:  models.Uniform(2),
	}
	got := Normalize(models.Uniform(14), stats, MethodZScore)
	for i := range got {
		if got[i] != 2 {
			t.Errorf("component %d = %v, want 2", i, got[i])
		}
	}

	// Zero std guards to 1.
	stats.Std = models.Vector{}
	got = Normalize(models.Uniform(14), stats, MethodZScore)
	for i := range got {
		if got[i] != 4 {
			t.Errorf("degenerate component %d = %v, want 4", i, got[i])
		}
	}
}

func TestNormalizeZScoreCentersPopulation(t *testing.T) {
	// Normalizing a population by its own mean/std yields mean ~0.
	population := []models.Vector{
		models.Uniform(1), models.Uniform(2), models.Uniform(3),
		models.Uniform(4), models.Uniform(5),
	}
	stats := models.ScoreStats{
		Mean: models.Uniform(3),
		Std:  models.Uniform(math.Sqrt(2)),
	}

	var sum models.Vector
	for _, v := range population {
		sum = sum.Add(Normalize(v, stats, MethodZScore))
	}
	for i := range sum {
		if math.Abs(sum[i]/float64(len(population))) > 1e-9 {
			t.Errorf("component %d mean = %v, want ~0", i, sum[i]/float64(len(population)))
		}
	}
}
