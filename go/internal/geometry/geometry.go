package geometry

import "math"

// Point is a [lat, lng] coordinate pair. All computation happens in an
// (x=lng, y=lat) plane so results match the map projection the server uses.
type Point [2]float64

// Lat returns the latitude component.
func (p Point) Lat() float64 { return p[0] }

// Lng returns the longitude component.
func (p Point) Lng() float64 { return p[1] }

// Ring is an ordered polygon boundary of [lat, lng] vertices. It is not
// required to be convex or closed; the edge from the last vertex back to the
// first is implied.
type Ring []Point

// PointInPolygon reports whether p lies inside ring using a ray-casting
// parity test. The tiny epsilon in the denominator guards against division
// by zero on horizontal edges.
func PointInPolygon(p Point, ring Ring) bool {
	x := p[1]
	y := p[0]
	inside := false
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		xi := ring[i][1]
		yi := ring[i][0]
		xj := ring[j][1]
		yj := ring[j][0]
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi+1e-30)+xi {
			inside = !inside
		}
	}
	return inside
}

// Centroid returns the area-weighted polygon centroid via the shoelace
// formula. Degenerate rings (signed area ~0, e.g. collinear vertices) fall
// back to the arithmetic mean of the vertices.
func Centroid(ring Ring) Point {
	var area2, cx, cy float64
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		xi := ring[i][1]
		yi := ring[i][0]
		xj := ring[j][1]
		yj := ring[j][0]
		cross := xj*yi - xi*yj
		area2 += cross
		cx += (xj + xi) * cross
		cy += (yj + yi) * cross
	}
	if math.Abs(area2) < 1e-9 {
		var sx, sy float64
		for _, p := range ring {
			sy += p[0]
			sx += p[1]
		}
		n := float64(len(ring))
		if n < 1 {
			n = 1
		}
		return Point{sy / n, sx / n}
	}
	k := 1 / (3 * area2)
	return Point{cy * k, cx * k}
}

// segmentDistSq is the squared distance from (px,py) to the segment
// (ax,ay)-(bx,by), with the projection parameter clamped to [0,1].
func segmentDistSq(px, py, ax, ay, bx, by float64) float64 {
	abx := bx - ax
	aby := by - ay
	apx := px - ax
	apy := py - ay
	abLen2 := abx*abx + aby*aby
	t := 0.0
	if abLen2 > 1e-30 {
		t = (apx*abx + apy*aby) / abLen2
	}
	t = math.Max(0, math.Min(1, t))
	qx := ax + t*abx
	qy := ay + t*aby
	dx := px - qx
	dy := py - qy
	return dx*dx + dy*dy
}

// MinDistToEdgesSq returns the minimum squared distance from p to any edge
// of ring. Interior points with a larger value sit deeper inside the shape,
// which makes this usable as an inscribedness score.
func MinDistToEdgesSq(p Point, ring Ring) float64 {
	px := p[1]
	py := p[0]
	best := math.Inf(1)
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		d2 := segmentDistSq(px, py, ring[j][1], ring[j][0], ring[i][1], ring[i][0])
		if d2 < best {
			best = d2
		}
	}
	return best
}
