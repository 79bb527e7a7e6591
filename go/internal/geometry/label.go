package geometry

import "math"

// lcg is a linear-congruential generator seeded from a stable identifier.
// Label placement must be reproducible across restarts, so the seed is never
// derived from the wall clock.
type lcg struct {
	s uint32
}

func newLCG(seed string) *lcg {
	var s uint32
	for i := 0; i < len(seed); i++ {
		s = s*31 + uint32(seed[i])
	}
	return &lcg{s: s}
}

// next returns a float in [0, 1).
func (g *lcg) next() float64 {
	g.s = g.s*1664525 + 1013904223
	return float64(g.s) / 4294967296
}

// BestLabelPoint searches for the interior point of ring that maximizes the
// distance to the nearest edge, which is where a territory's marker reads
// best. The search runs the centroid, a coarse 15x15 grid over the bounding
// box, a 500-sample seeded random fallback for degenerate slivers the grid
// misses, and three passes of shrinking-neighborhood hill climbing. Identical
// ring and seed always produce an identical result. Returns false for rings
// with fewer than three vertices.
func BestLabelPoint(ring Ring, seed string) (Point, bool) {
	if len(ring) < 3 {
		return Point{}, false
	}

	// Score is -1 outside the ring, otherwise the squared distance to the
	// nearest edge. Higher is better.
	score := func(pt Point) float64 {
		if !PointInPolygon(pt, ring) {
			return -1
		}
		return MinDistToEdgesSq(pt, ring)
	}

	best := Centroid(ring)
	bestScore := score(best)

	minLat, minLng := math.Inf(1), math.Inf(1)
	maxLat, maxLng := math.Inf(-1), math.Inf(-1)
	for _, p := range ring {
		minLat = math.Min(minLat, p[0])
		minLng = math.Min(minLng, p[1])
		maxLat = math.Max(maxLat, p[0])
		maxLng = math.Max(maxLng, p[1])
	}
	if math.IsInf(minLat, 1) {
		return best, true
	}

	const steps = 15
	stepLat := (maxLat - minLat) / steps
	stepLng := (maxLng - minLng) / steps
	for i := 1; i < steps; i++ {
		for j := 1; j < steps; j++ {
			pt := Point{minLat + float64(i)*stepLat, minLng + float64(j)*stepLng}
			if s := score(pt); s > bestScore {
				bestScore = s
				best = pt
			}
		}
	}

	// Very thin diagonal polygons can slip between all grid points. Fall
	// back to deterministic random samples inside the bounding box.
	if bestScore <= 0 {
		rnd := newLCG(seed)
		for k := 0; k < 500; k++ {
			pt := Point{
				minLat + rnd.next()*(maxLat-minLat),
				minLng + rnd.next()*(maxLng-minLng),
			}
			if s := score(pt); s > bestScore {
				bestScore = s
				best = pt
			}
		}
	}

	if bestScore > 0 {
		curLat := (maxLat - minLat) / 10
		curLng := (maxLng - minLng) / 10
		for pass := 0; pass < 3; pass++ {
			startLat := best[0] - curLat
			startLng := best[1] - curLng
			subLat := curLat * 2 / 5
			subLng := curLng * 2 / 5
			for i := 0; i <= 5; i++ {
				for j := 0; j <= 5; j++ {
					pt := Point{startLat + float64(i)*subLat, startLng + float64(j)*subLng}
					if s := score(pt); s > bestScore {
						bestScore = s
						best = pt
					}
				}
			}
			curLat = subLat
			curLng = subLng
		}
	}

	return best, true
}
