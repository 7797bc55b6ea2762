// HomeScout - Property Scoring and Recommendation Engine
// Copyright 2026 ZeepSeek
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zeepseek/homescout

package geo

import (
	"math"
	"testing"
)

func TestHaversine(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		wantKm                 float64
		tolerance              float64
	}{
		{
			name: "same point",
			lat1: 37.5665, lon1: 126.9780,
			lat2: 37.5665, lon2: 126.9780,
			wantKm:    0,
			tolerance: 0.001,
		},
		{
			name: "seoul city hall to gangnam station",
			lat1: 37.5665, lon1: 126.9780,
			lat2: 37.4979, lon2: 127.0276,
			wantKm:    8.7,
			tolerance: 0.5,
		},
		{
			name: "seoul to busan",
			lat1: 37.5665, lon1: 126.9780,
			lat2: 35.1796, lon2: 129.0756,
			wantKm:    325,
			tolerance: 5,
		},
		{
			name: "one degree of latitude",
			lat1: 37.0, lon1: 127.0,
			lat2: 38.0, lon2: 127.0,
			wantKm:    111.2,
			tolerance: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("Haversine() = %.3f km, want %.3f ± %.3f", got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

func TestHaversineSymmetry(t *testing.T) {
	d1 := Haversine(37.5665, 126.9780, 35.1796, 129.0756)
	d2 := Haversine(35.1796, 129.0756, 37.5665, 126.9780)
	if math.Abs(d1-d2) > 1e-9 {
		t.Errorf("distance not symmetric: %.9f vs %.9f", d1, d2)
	}
}

func TestDistance(t *testing.T) {
	a := Point{Lat: 37.5665, Lon: 126.9780}
	b := Point{Lat: 37.4979, Lon: 127.0276}
	if got, want := Distance(a, b), Haversine(a.Lat, a.Lon, b.Lat, b.Lon); got != want {
		t.Errorf("Distance() = %f, want %f", got, want)
	}
}
