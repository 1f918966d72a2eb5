// Package frame implements the orthonormal orientation frames carried by
// cage cross-sections. A frame spans the cross-section plane with its
// Right and Up axes; Normal points along the skeleton direction. Frames
// propagate along the skeleton by parallel transport: the minimal rotation
// taking the previous normal onto the next one, which keeps the boundary
// polygon from twisting about the curve.
package frame

import (
	"math"

	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// parallelTol is the sine-of-angle threshold below which two directions
// are treated as parallel during transport.
const parallelTol = 1e-9

// Frame is a right-handed orthonormal basis: Right × Up = Normal.
type Frame struct {
	Right  v3.Vec
	Up     v3.Vec
	Normal v3.Vec
}

// Explicit wraps caller-supplied axes as a frame. The axes are expected to
// be orthonormal and right-handed; use Renormalize to repair small drift.
func Explicit(right, up, normal v3.Vec) Frame {
	return Frame{Right: right, Up: up, Normal: normal}
}

// FromNormal completes a deterministic right-handed frame around the given
// direction. Used for the first cross-section of a cage, where there is no
// previous frame to transport.
func FromNormal(normal v3.Vec) Frame {
	n := normal.Normalize()
	ref := v3.Vec{Z: 1}
	if math.Abs(n.Z) > 0.9 {
		ref = v3.Vec{X: 1}
	}
	right := ref.Cross(n).Normalize()
	up := n.Cross(right)
	return Frame{Right: right, Up: up, Normal: n}
}

// Transport carries f onto a cross-section with the given normal using the
// minimal rotation from f.Normal to newNormal. When the two normals are
// antiparallel the minimal rotation is not unique; the frame flips 180°
// about its Up axis.
func Transport(f Frame, newNormal v3.Vec) Frame {
	n := newNormal.Normalize()
	axis := f.Normal.Cross(n)
	sin := axis.Length()
	cos := f.Normal.Dot(n)

	if sin < parallelTol {
		if cos > 0 {
			return Frame{Right: f.Right, Up: f.Up, Normal: n}
		}
		return Frame{Right: f.Right.Neg(), Up: f.Up, Normal: n}
	}

	m := sdf.Rotate3d(axis.DivScalar(sin), math.Atan2(sin, cos))
	g := Frame{
		Right:  m.MulPosition(f.Right),
		Up:     m.MulPosition(f.Up),
		Normal: n,
	}
	return g.Renormalize()
}

// Renormalize re-orthonormalizes the basis, keeping Normal fixed. Long
// transport chains accumulate floating point drift.
func (f Frame) Renormalize() Frame {
	n := f.Normal.Normalize()
	r := f.Right.Sub(n.MulScalar(f.Right.Dot(n))).Normalize()
	return Frame{Right: r, Up: n.Cross(r), Normal: n}
}

// To3D maps a point in the cross-section plane to world space relative to
// the given centre.
func (f Frame) To3D(center v3.Vec, p v2.Vec) v3.Vec {
	return center.Add(f.Right.MulScalar(p.X)).Add(f.Up.MulScalar(p.Y))
}

// To2D projects a world-space point into the cross-section plane at the
// given centre. The component along Normal is discarded.
func (f Frame) To2D(center v3.Vec, q v3.Vec) v2.Vec {
	d := q.Sub(center)
	return v2.Vec{X: d.Dot(f.Right), Y: d.Dot(f.Up)}
}

// Transform is the affine map from local cross-section coordinates into
// world space: rotation by the frame, translation by the centre.
type Transform struct {
	Frame  Frame
	Center v3.Vec
}

// Apply maps a local point to world space.
func (t Transform) Apply(p v2.Vec) v3.Vec {
	return t.Frame.To3D(t.Center, p)
}

// Invert projects a world-space point back to local coordinates.
func (t Transform) Invert(q v3.Vec) v2.Vec {
	return t.Frame.To2D(t.Center, q)
}
