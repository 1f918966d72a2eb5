package cage

import (
	"fmt"

	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/quellen/tubecage/pkg/frame"
	"github.com/quellen/tubecage/pkg/polygon"
)

// KeyFrame is one cross-section of the cage: a boundary polygon in a local
// 2D frame, centred on the skeleton at a fixed index. A keyframe is either
// installed (its ring of vertices lives in the shared mesh buffer and two
// cells bound it) or detached, a preview produced by KeyFrameForIndex that
// can be edited and installed later.
type KeyFrame struct {
	cage   *BoundingCage
	gen    uint64
	index  float64
	frame  frame.Frame
	center v3.Vec
	points []v2.Vec

	// ring holds the buffer indices of the boundary vertices. Empty while
	// detached.
	ring []int

	// cells are the leaf cells this keyframe bounds: cells[0] on its
	// lower-index side, cells[1] on its higher-index side. End keyframes
	// have one absent side.
	cells [2]cellRef
}

// Index returns the keyframe's skeleton index.
func (k *KeyFrame) Index() float64 { return k.index }

// Orientation returns the keyframe's local frame.
func (k *KeyFrame) Orientation() frame.Frame { return k.frame }

// Right returns the first in-plane axis of the local frame.
func (k *KeyFrame) Right() v3.Vec { return k.frame.Right }

// Up returns the second in-plane axis of the local frame.
func (k *KeyFrame) Up() v3.Vec { return k.frame.Up }

// Normal returns the cross-section plane normal.
func (k *KeyFrame) Normal() v3.Vec { return k.frame.Normal }

// Center returns the keyframe's centre on the skeleton.
func (k *KeyFrame) Center() v3.Vec { return k.center }

// Transform returns the affine map from the keyframe's local plane
// coordinates into world space.
func (k *KeyFrame) Transform() frame.Transform {
	return frame.Transform{Frame: k.frame, Center: k.center}
}

// Vertices2D returns the boundary polygon in local plane coordinates. The
// slice is shared; modify it only through MovePoint2D.
func (k *KeyFrame) Vertices2D() []v2.Vec { return k.points }

// Vertices3D returns the boundary polygon mapped into world space.
func (k *KeyFrame) Vertices3D() []v3.Vec {
	out := make([]v3.Vec, len(k.points))
	for i, p := range k.points {
		out[i] = k.frame.To3D(k.center, p)
	}
	return out
}

// Centroid3D returns the world-space centroid of the boundary polygon.
func (k *KeyFrame) Centroid3D() v3.Vec {
	return k.frame.To3D(k.center, polygon.Centroid(k.points))
}

// VertexIndices returns the keyframe's ring slots in the cage vertex
// buffer, or nil while detached. The slice is shared; callers must not
// modify it.
func (k *KeyFrame) VertexIndices() []int { return k.ring }

// InBoundingCage reports whether the keyframe is installed in the cage
// mesh, as opposed to a detached preview.
func (k *KeyFrame) InBoundingCage() bool { return len(k.ring) > 0 }

// MoveOption configures the validation run by MovePoint2D.
type MoveOption func(*moveConfig)

type moveConfig struct {
	check2D bool
	check3D bool
}

// Validate2D toggles the planar self-intersection check. On by default.
func Validate2D(on bool) MoveOption {
	return func(c *moveConfig) { c.check2D = on }
}

// Validate3D toggles checking the moved boundary against the neighbouring
// cross-sections. Off by default.
func Validate3D(on bool) MoveOption {
	return func(c *moveConfig) { c.check3D = on }
}

// MovePoint2D moves boundary vertex i to pos in the keyframe's local
// plane. The move is validated first and committed only if every enabled
// check passes; on error the keyframe, the shared mesh and the cached
// cell meshes are untouched.
//
// Errors: ErrIndexOutOfRange for a bad vertex index or a stale handle,
// ErrSelfIntersecting2D when the new boundary would not be simple,
// ErrSelfIntersecting3D when it would cross a neighbouring cross-section
// (only with Validate3D enabled).
func (k *KeyFrame) MovePoint2D(i int, pos v2.Vec, opts ...MoveOption) error {
	if k.gen != k.cage.gen {
		return fmt.Errorf("move point on keyframe %g: stale handle: %w", k.index, ErrIndexOutOfRange)
	}
	if i < 0 || i >= len(k.points) {
		return fmt.Errorf("move point %d: boundary has %d vertices: %w",
			i, len(k.points), ErrIndexOutOfRange)
	}

	cfg := moveConfig{check2D: true}
	for _, o := range opts {
		o(&cfg)
	}

	candidate := append([]v2.Vec(nil), k.points...)
	candidate[i] = pos

	if cfg.check2D && !polygon.Simple(candidate) {
		logger().Warn("move rejected", "keyframe", k.index, "point", i, "reason", "boundary not simple")
		return fmt.Errorf("move point %d on keyframe %g: %w", i, k.index, ErrSelfIntersecting2D)
	}
	if cfg.check3D {
		for _, n := range k.neighbours() {
			// Compare in this keyframe's plane: the neighbour's world
			// boundary projected alongside the candidate.
			proj := make([]v2.Vec, 0, len(n.points))
			for _, q := range n.Vertices3D() {
				proj = append(proj, k.frame.To2D(k.center, q))
			}
			if polygon.CrossesBoundary(candidate, proj) {
				logger().Warn("move rejected", "keyframe", k.index, "point", i,
					"reason", "crosses neighbour", "neighbour", n.index)
				return fmt.Errorf("move point %d on keyframe %g: crosses keyframe %g: %w",
					i, k.index, n.index, ErrSelfIntersecting3D)
			}
		}
	}

	k.points[i] = pos
	if k.InBoundingCage() {
		k.cage.buf.SetVertex(k.ring[i], k.frame.To3D(k.center, pos))
		for _, r := range k.cells {
			if cell := k.cage.deref(r); cell != nil {
				cell.rebuildMesh()
			}
		}
	}
	return nil
}

// neighbours returns the installed keyframes on either side of k, if any.
func (k *KeyFrame) neighbours() []*KeyFrame {
	var out []*KeyFrame
	if cell := k.cage.deref(k.cells[0]); cell != nil {
		out = append(out, cell.left)
	}
	if cell := k.cage.deref(k.cells[1]); cell != nil {
		out = append(out, cell.right)
	}
	return out
}
