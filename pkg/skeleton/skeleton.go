// Package skeleton models the 1D curve a bounding cage is built around: an
// ordered polyline of vertices with a smoothed copy, per-vertex tangents
// and linear interpolation between vertices.
//
// Positions along the curve are addressed by index: integer values land on
// vertices, fractional values interpolate between them. The valid domain
// runs from 0 to MaxIndex() = vertex count - 1.
package skeleton

import (
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// degenerateTol is the minimum segment length accepted when building a
// skeleton.
const degenerateTol = 1e-12

// Smoother produces a smoothed copy of a polyline. Implementations must
// not modify the input slice and must preserve the vertex count.
type Smoother interface {
	Smooth(pts []v3.Vec, iterations int) []v3.Vec
}

// LaplacianSmoother smooths a polyline by repeatedly moving every interior
// vertex toward the midpoint of its neighbours. Endpoints stay pinned, so
// the curve's extent is preserved.
type LaplacianSmoother struct {
	// Lambda is the fraction of the way each vertex moves toward its
	// neighbour midpoint per iteration, in (0, 1]. Zero selects the
	// default of 0.5.
	Lambda float64
}

// Smooth implements Smoother.
func (s LaplacianSmoother) Smooth(pts []v3.Vec, iterations int) []v3.Vec {
	cur := append([]v3.Vec(nil), pts...)
	if len(cur) < 3 || iterations <= 0 {
		return cur
	}
	lambda := s.Lambda
	if lambda == 0 {
		lambda = 0.5
	}
	next := make([]v3.Vec, len(cur))
	for it := 0; it < iterations; it++ {
		copy(next, cur)
		for i := 1; i < len(cur)-1; i++ {
			mid := cur[i-1].Add(cur[i+1]).DivScalar(2)
			next[i] = cur[i].Add(mid.Sub(cur[i]).MulScalar(lambda))
		}
		cur, next = next, cur
	}
	return cur
}

// Skeleton is an immutable smoothed polyline with per-vertex tangents.
type Skeleton struct {
	raw      []v3.Vec
	smooth   []v3.Vec
	tangents []v3.Vec
}

// New builds a skeleton from at least two vertices. The curve is smoothed
// with s for the given number of iterations; a nil s selects the default
// LaplacianSmoother. New rejects polylines with coincident consecutive
// vertices or reversals sharp enough to cancel the tangent.
func New(pts []v3.Vec, iterations int, s Smoother) (*Skeleton, error) {
	if len(pts) < 2 {
		return nil, fmt.Errorf("skeleton needs at least 2 vertices, got %d", len(pts))
	}
	if s == nil {
		s = LaplacianSmoother{}
	}

	raw := append([]v3.Vec(nil), pts...)
	smooth := s.Smooth(raw, iterations)
	if len(smooth) != len(raw) {
		return nil, fmt.Errorf("smoother changed vertex count from %d to %d", len(raw), len(smooth))
	}

	tangents, err := vertexTangents(smooth)
	if err != nil {
		return nil, err
	}

	return &Skeleton{raw: raw, smooth: smooth, tangents: tangents}, nil
}

// vertexTangents computes a unit tangent per vertex: the direction of the
// single adjacent segment at the endpoints, the normalized average of the
// two adjacent segment directions elsewhere.
func vertexTangents(pts []v3.Vec) ([]v3.Vec, error) {
	n := len(pts)
	segs := make([]v3.Vec, n-1)
	for i := range segs {
		d := pts[i+1].Sub(pts[i])
		if d.Length() < degenerateTol {
			return nil, fmt.Errorf("degenerate segment between vertices %d and %d", i, i+1)
		}
		segs[i] = d.Normalize()
	}

	tangents := make([]v3.Vec, n)
	tangents[0] = segs[0]
	tangents[n-1] = segs[n-2]
	for i := 1; i < n-1; i++ {
		sum := segs[i-1].Add(segs[i])
		if sum.Length() < degenerateTol {
			return nil, fmt.Errorf("curve reverses direction at vertex %d", i)
		}
		tangents[i] = sum.Normalize()
	}
	return tangents, nil
}

// Count returns the number of vertices.
func (s *Skeleton) Count() int { return len(s.smooth) }

// MinIndex returns the first valid curve index.
func (s *Skeleton) MinIndex() float64 { return 0 }

// MaxIndex returns the last valid curve index.
func (s *Skeleton) MaxIndex() float64 { return float64(len(s.smooth) - 1) }

// Raw returns the vertices the skeleton was built from. The slice is
// shared; callers must not modify it.
func (s *Skeleton) Raw() []v3.Vec { return s.raw }

// Smoothed returns the smoothed vertices. The slice is shared; callers
// must not modify it.
func (s *Skeleton) Smoothed() []v3.Vec { return s.smooth }

// clampSegment resolves a curve index to a segment start and fractional
// offset, clamping to the valid domain.
func (s *Skeleton) clampSegment(idx float64) (int, float64) {
	if idx <= 0 {
		return 0, 0
	}
	max := s.MaxIndex()
	if idx >= max {
		return len(s.smooth) - 2, 1
	}
	i := int(idx)
	return i, idx - float64(i)
}

// PositionAt returns the point at the given curve index on the smoothed
// polyline, interpolating linearly within segments. Out-of-domain indexes
// clamp to the endpoints.
func (s *Skeleton) PositionAt(idx float64) v3.Vec {
	i, t := s.clampSegment(idx)
	a, b := s.smooth[i], s.smooth[i+1]
	return a.Add(b.Sub(a).MulScalar(t))
}

// TangentAt returns the unit tangent at the given curve index,
// interpolating linearly between the per-vertex tangents. Out-of-domain
// indexes clamp to the endpoints.
func (s *Skeleton) TangentAt(idx float64) v3.Vec {
	i, t := s.clampSegment(idx)
	a, b := s.tangents[i], s.tangents[i+1]
	return a.Add(b.Sub(a).MulScalar(t)).Normalize()
}
