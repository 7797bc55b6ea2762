// HomeScout - Property Scoring and Recommendation Engine
// Copyright 2026 ZeepSeek
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zeepseek/homescout

package geo

import "math"

// degreesPerKm approximates one kilometer in latitude degrees
// (1 degree of latitude ≈ 111km everywhere on the globe).
const degreesPerKm = 1.0 / 111.0

// Grid divides geographic space into fixed-size cells for proximity queries.
// Instead of O(n) haversine comparisons per query, only the cells overlapping
// the query radius are scanned, reducing the cost to O(k) where k is the
// number of points in nearby cells.
//
// A Grid is immutable after NewGrid returns and therefore safe for concurrent
// readers without locking; the POI cache swaps whole Grid snapshots on
// refresh rather than mutating one in place.
type Grid struct {
	cells       map[cellKey][]Point
	cellSizeDeg float64
	cellSizeKm  float64
	size        int
}

type cellKey struct {
	x, y int
}

// NewGrid builds a spatial index over points with the given cell size in
// kilometers. Smaller cells mean more precise scans but more cells to visit;
// the POI cache uses cells matching the scoring radius.
func NewGrid(points []Point, cellSizeKm float64) *Grid {
	if cellSizeKm <= 0 {
		cellSizeKm = 1.0
	}

	g := &Grid{
		cells:       make(map[cellKey][]Point),
		cellSizeDeg: cellSizeKm * degreesPerKm,
		cellSizeKm:  cellSizeKm,
		size:        len(points),
	}

	for _, p := range points {
		k := g.keyFor(p.Lat, p.Lon)
		g.cells[k] = append(g.cells[k], p)
	}

	return g
}

// Size returns the number of indexed points.
func (g *Grid) Size() int {
	return g.size
}

func (g *Grid) keyFor(lat, lon float64) cellKey {
	// Normalize longitude to [-180, 180]
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}

	return cellKey{
		x: int(math.Floor(lon / g.cellSizeDeg)),
		y: int(math.Floor(lat / g.cellSizeDeg)),
	}
}

// CountWithin returns the number of indexed points within radiusKm of the
// query coordinate, measured by great-circle distance.
func (g *Grid) CountWithin(lat, lon, radiusKm float64) int {
	if g.size == 0 {
		return 0
	}

	// Longitude degrees shrink by cos(lat); widen the scanned column range
	// accordingly so edge cells are not missed.
	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01
	}

	center := g.keyFor(lat, lon)
	ringY := int(math.Ceil(radiusKm/g.cellSizeKm)) + 1
	ringX := int(math.Ceil(radiusKm/(g.cellSizeKm*cosLat))) + 1

	count := 0
	for dy := -ringY; dy <= ringY; dy++ {
		for dx := -ringX; dx <= ringX; dx++ {
			for _, p := range g.cells[cellKey{x: center.x + dx, y: center.y + dy}] {
				if Haversine(lat, lon, p.Lat, p.Lon) <= radiusKm {
					count++
				}
			}
		}
	}

	return count
}

// Nearest returns the indexed point closest to the query coordinate and its
// distance in kilometers. The second return is false when the index is empty.
//
// The search expands ring by ring from the query cell and stops once the next
// ring cannot contain a closer point than the best found so far.
func (g *Grid) Nearest(lat, lon float64) (Point, float64, bool) {
	if g.size == 0 {
		return Point{}, 0, false
	}

	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	// The narrowest cell dimension bounds how close a point in ring r can be.
	minCellKm := g.cellSizeKm * cosLat

	center := g.keyFor(lat, lon)

	best := Point{}
	bestDist := math.MaxFloat64
	found := false

	// maxRing bounds the expansion for sparse grids; beyond this every cell
	// has been visited at least once in either axis direction.
	maxRing := g.maxRingSpan(center)

	for ring := 0; ring <= maxRing; ring++ {
		// Points in ring r are at least (r-1) cell widths away.
		if found && float64(ring-1)*minCellKm > bestDist {
			break
		}

		for _, k := range ringKeys(center, ring) {
			for _, p := range g.cells[k] {
				d := Haversine(lat, lon, p.Lat, p.Lon)
				if d < bestDist {
					best = p
					bestDist = d
					found = true
				}
			}
		}
	}

	if !found {
		return Point{}, 0, false
	}
	return best, bestDist, true
}

// maxRingSpan returns the largest ring index that can still reach an occupied
// cell from the center.
func (g *Grid) maxRingSpan(center cellKey) int {
	maxSpan := 0
	for k := range g.cells {
		dx := k.x - center.x
		if dx < 0 {
			dx = -dx
		}
		dy := k.y - center.y
		if dy < 0 {
			dy = -dy
		}
		span := dx
		if dy > span {
			span = dy
		}
		if span > maxSpan {
			maxSpan = span
		}
	}
	return maxSpan
}

// ringKeys returns the cell keys forming the square ring at Chebyshev
// distance ring from center. ring 0 is the center cell itself.
func ringKeys(center cellKey, ring int) []cellKey {
	if ring == 0 {
		return []cellKey{center}
	}

	keys := make([]cellKey, 0, 8*ring)
	for dx := -ring; dx <= ring; dx++ {
		keys = append(keys, cellKey{x: center.x + dx, y: center.y - ring})
		keys = append(keys, cellKey{x: center.x + dx, y: center.y + ring})
	}
	for dy := -ring + 1; dy <= ring-1; dy++ {
		keys = append(keys, cellKey{x: center.x - ring, y: center.y + dy})
		keys = append(keys, cellKey{x: center.x + ring, y: center.y + dy})
	}
	return keys
}
