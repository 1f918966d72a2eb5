// Package polygon provides 2D operations on cross-section boundary
// polygons: simplicity testing, crossing detection between two boundaries,
// per-vertex interpolation and fan triangulation.
//
// Polygons are open vertex lists; the closing edge from the last vertex
// back to the first is implied.
package polygon

import (
	"fmt"
	"math"

	v2 "github.com/deadsy/sdfx/vec/v2"
)

// eps is the tolerance below which an orientation test is treated as
// collinear.
const eps = 1e-12

// orient returns twice the signed area of triangle (a, b, c): positive for
// a counter-clockwise turn, negative for clockwise.
func orient(a, b, c v2.Vec) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

// onSegment reports whether p lies within the bounding box of segment
// (a, b). Callers must have already established that p is collinear with
// the segment.
func onSegment(a, b, p v2.Vec) bool {
	return math.Min(a.X, b.X)-eps <= p.X && p.X <= math.Max(a.X, b.X)+eps &&
		math.Min(a.Y, b.Y)-eps <= p.Y && p.Y <= math.Max(a.Y, b.Y)+eps
}

// SegmentsIntersect reports whether the closed segments (a, b) and (c, d)
// share any point, including endpoint touches and collinear overlap.
func SegmentsIntersect(a, b, c, d v2.Vec) bool {
	if ProperCross(a, b, c, d) {
		return true
	}
	d1 := orient(c, d, a)
	d2 := orient(c, d, b)
	d3 := orient(a, b, c)
	d4 := orient(a, b, d)
	if math.Abs(d1) <= eps && onSegment(c, d, a) {
		return true
	}
	if math.Abs(d2) <= eps && onSegment(c, d, b) {
		return true
	}
	if math.Abs(d3) <= eps && onSegment(a, b, c) {
		return true
	}
	if math.Abs(d4) <= eps && onSegment(a, b, d) {
		return true
	}
	return false
}

// ProperCross reports whether segments (a, b) and (c, d) cross at a single
// point interior to both. Touches at endpoints and collinear overlaps are
// not proper crossings.
func ProperCross(a, b, c, d v2.Vec) bool {
	d1 := orient(c, d, a)
	d2 := orient(c, d, b)
	d3 := orient(a, b, c)
	d4 := orient(a, b, d)
	return ((d1 > eps && d2 < -eps) || (d1 < -eps && d2 > eps)) &&
		((d3 > eps && d4 < -eps) || (d3 < -eps && d4 > eps))
}

// Simple reports whether pts forms a simple polygon: at least three
// vertices, no coincident consecutive vertices, and no two non-adjacent
// edges sharing a point.
func Simple(pts []v2.Vec) bool {
	n := len(pts)
	if n < 3 {
		return false
	}
	for i := 0; i < n; i++ {
		if pts[i].Sub(pts[(i+1)%n]).Length() <= eps {
			return false
		}
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			// Adjacent edges share one endpoint legitimately.
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			if SegmentsIntersect(pts[i], pts[(i+1)%n], pts[j], pts[(j+1)%n]) {
				return false
			}
		}
	}
	return true
}

// CrossesBoundary reports whether any edge of polygon a properly crosses
// any edge of polygon b. Coincident or touching boundaries do not count,
// so identical polygons never cross.
func CrossesBoundary(a, b []v2.Vec) bool {
	na, nb := len(a), len(b)
	if na < 2 || nb < 2 {
		return false
	}
	for i := 0; i < na; i++ {
		for j := 0; j < nb; j++ {
			if ProperCross(a[i], a[(i+1)%na], b[j], b[(j+1)%nb]) {
				return true
			}
		}
	}
	return false
}

// Lerp returns the polygon whose vertices interpolate linearly between a
// and b at parameter t (0 yields a, 1 yields b). The polygons must have
// the same vertex count.
func Lerp(a, b []v2.Vec, t float64) []v2.Vec {
	if len(a) != len(b) {
		panic(fmt.Sprintf("polygon: cannot interpolate between %d and %d vertices", len(a), len(b)))
	}
	out := make([]v2.Vec, len(a))
	for i := range a {
		out[i] = a[i].Add(b[i].Sub(a[i]).MulScalar(t))
	}
	return out
}

// FanTriangles triangulates an n-gon as a fan anchored at vertex 0,
// producing n-2 triangles of vertex indices. The result is only a valid
// surface for convex polygons; cage templates are validated elsewhere.
func FanTriangles(n int) [][3]int {
	if n < 3 {
		return nil
	}
	tris := make([][3]int, 0, n-2)
	for i := 1; i < n-1; i++ {
		tris = append(tris, [3]int{0, i, i + 1})
	}
	return tris
}

// Centroid returns the vertex centroid (arithmetic mean) of the polygon.
func Centroid(pts []v2.Vec) v2.Vec {
	var c v2.Vec
	if len(pts) == 0 {
		return c
	}
	for _, p := range pts {
		c = c.Add(p)
	}
	return c.DivScalar(float64(len(pts)))
}

// SignedArea returns the polygon's signed area: positive for
// counter-clockwise winding.
func SignedArea(pts []v2.Vec) float64 {
	n := len(pts)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return sum / 2
}
