// Package cage implements a deformable bounding cage: a closed prism mesh
// wrapped around a skeleton curve.
//
// The cage is a sequence of cross-section keyframes threaded onto the
// skeleton. Consecutive keyframes bound prism cells; splitting a cell at a
// fractional skeleton index inserts an interpolated keyframe, and single
// boundary vertices can be moved under self-intersection validation. Cells
// form a binary tree recording the split history, with the current leaves
// linked in skeleton order. Every ring vertex and wall triangle lives in
// one shared growable buffer, so the whole surface is always available as
// flat arrays with stable indices.
//
// A BoundingCage is not safe for concurrent use; callers coordinate
// access.
package cage

import (
	"fmt"

	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/quellen/tubecage/pkg/frame"
	"github.com/quellen/tubecage/pkg/mesh"
	"github.com/quellen/tubecage/pkg/polygon"
	"github.com/quellen/tubecage/pkg/skeleton"
)

// BoundingCage owns the skeleton, the cell tree, the keyframes and the
// shared mesh buffer. The zero value is not usable; call New.
type BoundingCage struct {
	skel     *skeleton.Skeleton
	smoother skeleton.Smoother
	buf      *mesh.Buffer
	template []v2.Vec

	// cells is the arena backing the cell tree. Cells are addressed by
	// cellRef handles carrying the generation they were allocated in;
	// clearing the cage bumps gen, invalidating every outstanding handle.
	cells []*Cell
	gen   uint64

	root cellRef
	head cellRef
	tail cellRef

	// capFaces are the buffer slots of the two end-cap fans. They are
	// written once per skeleton rebuild; splits never touch them.
	capFaces [2][]int

	nkf int // installed keyframe count
}

// New returns an empty bounding cage. Populate it with
// SetSkeletonVertices.
func New() *BoundingCage {
	return &BoundingCage{
		buf:  mesh.NewBuffer(),
		gen:  1,
		root: nilRef,
		head: nilRef,
		tail: nilRef,
	}
}

// SetSmoother replaces the smoothing strategy used by subsequent calls to
// SetSkeletonVertices. A nil smoother restores the default Laplacian.
func (c *BoundingCage) SetSmoother(s skeleton.Smoother) {
	c.smoother = s
}

// SetSkeletonVertices rebuilds the cage around a new skeleton curve. The
// curve is smoothed for smoothingIterations, one keyframe carrying the
// template cross-section is placed at each end, and a single root cell
// spans the whole curve. Any previous cage content is replaced and all
// outstanding iterators and keyframe handles become invalid.
//
// On error (ErrInvalidSkeleton, ErrInvalidTemplate) the cage keeps its
// previous state.
func (c *BoundingCage) SetSkeletonVertices(pts []v3.Vec, smoothingIterations int, template []v2.Vec) error {
	if len(template) < 3 {
		return fmt.Errorf("set skeleton: template has %d vertices, need at least 3: %w",
			len(template), ErrInvalidTemplate)
	}
	if !polygon.Simple(template) {
		return fmt.Errorf("set skeleton: template is not a simple polygon: %w", ErrInvalidTemplate)
	}

	skel, err := skeleton.New(pts, smoothingIterations, c.smoother)
	if err != nil {
		return fmt.Errorf("set skeleton: %w: %v", ErrInvalidSkeleton, err)
	}

	// Validation passed; replace the cage wholesale.
	c.gen++
	c.cells = nil
	c.buf.Reset()
	c.skel = skel
	c.template = append([]v2.Vec(nil), template...)
	c.nkf = 0

	// End keyframes: the first frame completes the starting tangent, the
	// last is the first transported along the whole curve so interior
	// splits inherit a twist-free frame field.
	f0 := frame.FromNormal(skel.TangentAt(0))
	fn := f0
	for i := 1; i < skel.Count(); i++ {
		fn = frame.Transport(fn, skel.TangentAt(float64(i)))
	}
	first := c.newKeyFrame(skel.MinIndex(), f0, skel.PositionAt(skel.MinIndex()),
		append([]v2.Vec(nil), template...))
	last := c.newKeyFrame(skel.MaxIndex(), fn, skel.PositionAt(skel.MaxIndex()),
		append([]v2.Vec(nil), template...))
	c.appendRing(first)
	c.appendRing(last)

	// End caps face outward, away from the tube.
	c.capFaces[0] = c.appendCap(first.ring, true)
	c.capFaces[1] = c.appendCap(last.ring, false)

	root, ref := c.alloc()
	root.left, root.right = first, last
	root.sideFaces = c.appendSideFaces(first, last)
	root.rebuildMesh()

	c.root, c.head, c.tail = ref, ref, ref
	first.cells[1] = ref
	last.cells[0] = ref
	c.nkf = 2

	logger().Debug("cage initialized",
		"skeletonVertices", skel.Count(),
		"templateVertices", len(template),
		"meshVertices", c.buf.VertexCount(),
		"meshFaces", c.buf.FaceCount())
	return nil
}

// Clear removes all cage state. Outstanding iterators and keyframe
// handles become invalid.
func (c *BoundingCage) Clear() {
	c.gen++
	c.cells = nil
	c.skel = nil
	c.template = nil
	c.buf.Reset()
	c.root, c.head, c.tail = nilRef, nilRef, nilRef
	c.capFaces[0], c.capFaces[1] = nil, nil
	c.nkf = 0
	logger().Debug("cage cleared")
}

// MinIndex returns the smallest valid skeleton index, or 0 for an
// uninitialized cage.
func (c *BoundingCage) MinIndex() float64 {
	if c.skel == nil {
		return 0
	}
	return c.skel.MinIndex()
}

// MaxIndex returns the largest valid skeleton index, or 0 for an
// uninitialized cage.
func (c *BoundingCage) MaxIndex() float64 {
	if c.skel == nil {
		return 0
	}
	return c.skel.MaxIndex()
}

// SkeletonVertices returns the raw skeleton polyline, or nil. The slice
// is shared; callers must not modify it.
func (c *BoundingCage) SkeletonVertices() []v3.Vec {
	if c.skel == nil {
		return nil
	}
	return c.skel.Raw()
}

// SmoothSkeletonVertices returns the smoothed skeleton polyline, or nil.
// The slice is shared; callers must not modify it.
func (c *BoundingCage) SmoothSkeletonVertices() []v3.Vec {
	if c.skel == nil {
		return nil
	}
	return c.skel.Smoothed()
}

// Vertices returns all mesh vertices written so far. The slice is shared
// with the cage; callers must not modify it or retain it across edits.
func (c *BoundingCage) Vertices() []v3.Vec {
	return c.buf.Vertices()
}

// Faces returns all mesh faces written so far, under the same sharing
// rules as Vertices.
func (c *BoundingCage) Faces() [][3]int {
	return c.buf.Faces()
}

// VertexCount returns the number of mesh vertices.
func (c *BoundingCage) VertexCount() int { return c.buf.VertexCount() }

// FaceCount returns the number of mesh faces.
func (c *BoundingCage) FaceCount() int { return c.buf.FaceCount() }

// KeyFrameCount returns the number of installed keyframes.
func (c *BoundingCage) KeyFrameCount() int { return c.nkf }

// CellCount returns the number of leaf cells: one fewer than the
// installed keyframes.
func (c *BoundingCage) CellCount() int {
	if c.nkf == 0 {
		return 0
	}
	return c.nkf - 1
}

// Split inserts an interpolated keyframe at the given skeleton index,
// splitting the leaf cell containing it. The index must lie strictly
// between MinIndex and MaxIndex and not on an existing keyframe. On
// success the returned iterator addresses the new keyframe; on error
// (ErrIndexOutOfRange) the cage is unchanged.
func (c *BoundingCage) Split(index float64) (KeyFrameIterator, error) {
	leaf, err := c.splitLeafFor(index)
	if err != nil {
		logger().Warn("split rejected", "index", index, "err", err)
		return KeyFrameIterator{}, err
	}
	kf := c.interpolate(leaf, index)
	c.splitCell(leaf, kf)
	logger().Debug("split",
		"index", index,
		"cells", c.CellCount(),
		"meshVertices", c.buf.VertexCount(),
		"meshFaces", c.buf.FaceCount())
	return KeyFrameIterator{cage: c, kf: kf}, nil
}

// SplitKeyFrame installs a detached keyframe, produced by
// KeyFrameForIndex and possibly edited since, at its stored index. The
// same containment rules as Split apply. On error the cage is unchanged
// and the keyframe stays detached.
func (c *BoundingCage) SplitKeyFrame(it KeyFrameIterator) (KeyFrameIterator, error) {
	kf := it.kf
	if kf == nil || kf.cage != c || kf.gen != c.gen {
		return KeyFrameIterator{}, fmt.Errorf("install keyframe: stale or foreign handle: %w", ErrIndexOutOfRange)
	}
	if kf.InBoundingCage() {
		return KeyFrameIterator{}, fmt.Errorf("install keyframe at %g: already installed: %w",
			kf.index, ErrIndexOutOfRange)
	}
	leaf, err := c.splitLeafFor(kf.index)
	if err != nil {
		logger().Warn("install rejected", "index", kf.index, "err", err)
		return KeyFrameIterator{}, err
	}
	c.splitCell(leaf, kf)
	logger().Debug("keyframe installed", "index", kf.index, "cells", c.CellCount())
	return KeyFrameIterator{cage: c, kf: kf}, nil
}

// KeyFrameForIndex returns an iterator for the given skeleton index
// without modifying the cage. An index on an installed keyframe yields
// that keyframe; any other index inside the cage range yields a detached
// interpolated keyframe that can be edited and later installed with
// SplitKeyFrame.
func (c *BoundingCage) KeyFrameForIndex(index float64) (KeyFrameIterator, error) {
	leaf, err := c.containingLeaf(index)
	if err != nil {
		return KeyFrameIterator{}, err
	}
	if index == leaf.left.index {
		return KeyFrameIterator{cage: c, kf: leaf.left}, nil
	}
	if index == leaf.right.index {
		return KeyFrameIterator{cage: c, kf: leaf.right}, nil
	}
	return KeyFrameIterator{cage: c, kf: c.interpolate(leaf, index)}, nil
}

// splitLeafFor descends from the root to the leaf to split for index,
// requiring the index to be strictly inside every cell on the path. An
// index on a cell boundary, including any existing keyframe, fails.
func (c *BoundingCage) splitLeafFor(index float64) (*Cell, error) {
	cell := c.deref(c.root)
	if cell == nil {
		return nil, fmt.Errorf("split at %g: cage is empty: %w", index, ErrIndexOutOfRange)
	}
	for {
		if !(index > cell.left.index && index < cell.right.index) {
			return nil, fmt.Errorf("split at %g: not strictly inside cell (%g, %g): %w",
				index, cell.left.index, cell.right.index, ErrIndexOutOfRange)
		}
		if cell.isLeaf() {
			return cell, nil
		}
		l, r := c.deref(cell.leftChild), c.deref(cell.rightChild)
		switch {
		case l != nil && index >= l.left.index && index <= l.right.index:
			cell = l
		case r != nil && index >= r.left.index && index <= r.right.index:
			cell = r
		default:
			return nil, fmt.Errorf("split at %g: no child covers the index: %w",
				index, ErrStructuralInvariant)
		}
	}
}

// containingLeaf descends to the leaf whose closed index range contains
// the given index.
func (c *BoundingCage) containingLeaf(index float64) (*Cell, error) {
	cell := c.deref(c.root)
	if cell == nil {
		return nil, fmt.Errorf("index %g: cage is empty: %w", index, ErrIndexOutOfRange)
	}
	if index < cell.left.index || index > cell.right.index {
		return nil, fmt.Errorf("index %g outside cage range [%g, %g]: %w",
			index, cell.left.index, cell.right.index, ErrIndexOutOfRange)
	}
	for !cell.isLeaf() {
		l, r := c.deref(cell.leftChild), c.deref(cell.rightChild)
		switch {
		case l != nil && index >= l.left.index && index <= l.right.index:
			cell = l
		case r != nil && index >= r.left.index && index <= r.right.index:
			cell = r
		default:
			return nil, fmt.Errorf("index %g: no child covers the index: %w",
				index, ErrStructuralInvariant)
		}
	}
	return cell, nil
}

// interpolate builds a detached keyframe at index inside the given leaf:
// centre from the skeleton, frame parallel-transported from the leaf's
// left keyframe, boundary interpolated per-vertex between the leaf's
// keyframes.
func (c *BoundingCage) interpolate(leaf *Cell, index float64) *KeyFrame {
	a, b := leaf.left, leaf.right
	t := (index - a.index) / (b.index - a.index)
	return c.newKeyFrame(index,
		frame.Transport(a.frame, c.skel.TangentAt(index)),
		c.skel.PositionAt(index),
		polygon.Lerp(a.points, b.points, t))
}

// newKeyFrame builds a detached keyframe. The points slice is taken over
// by the keyframe.
func (c *BoundingCage) newKeyFrame(index float64, f frame.Frame, center v3.Vec, points []v2.Vec) *KeyFrame {
	return &KeyFrame{
		cage:   c,
		gen:    c.gen,
		index:  index,
		frame:  f,
		center: center,
		points: points,
		cells:  [2]cellRef{nilRef, nilRef},
	}
}

// appendRing writes the keyframe's boundary vertices into the shared
// buffer, installing it.
func (c *BoundingCage) appendRing(kf *KeyFrame) {
	kf.ring = make([]int, len(kf.points))
	for i, p := range kf.points {
		kf.ring[i] = c.buf.AppendVertex(kf.frame.To3D(kf.center, p))
	}
}

// appendCap writes a fan over the ring. The fan of a counter-clockwise
// ring faces along the keyframe normal; flip reverses it for the cap at
// the minimum-index end.
func (c *BoundingCage) appendCap(ring []int, flip bool) []int {
	tris := polygon.FanTriangles(len(ring))
	faces := make([]int, 0, len(tris))
	for _, t := range tris {
		if flip {
			faces = append(faces, c.buf.AppendTriangle(ring[t[0]], ring[t[2]], ring[t[1]]))
		} else {
			faces = append(faces, c.buf.AppendTriangle(ring[t[0]], ring[t[1]], ring[t[2]]))
		}
	}
	return faces
}

// appendSideFaces writes the prism wall between two rings: two triangles
// per boundary edge, wound outward.
func (c *BoundingCage) appendSideFaces(a, b *KeyFrame) []int {
	k := len(a.ring)
	faces := make([]int, 0, 2*k)
	for i := 0; i < k; i++ {
		j := (i + 1) % k
		faces = append(faces, c.buf.AppendTriangle(a.ring[i], a.ring[j], b.ring[j]))
		faces = append(faces, c.buf.AppendTriangle(a.ring[i], b.ring[j], b.ring[i]))
	}
	return faces
}

// writeSideFaces rewrites existing wall slots for the prism between two
// rings, preserving the slot order used by appendSideFaces.
func (c *BoundingCage) writeSideFaces(faces []int, a, b *KeyFrame) {
	k := len(a.ring)
	for i := 0; i < k; i++ {
		j := (i + 1) % k
		c.buf.SetTriangle(faces[2*i], a.ring[i], a.ring[j], b.ring[j])
		c.buf.SetTriangle(faces[2*i+1], a.ring[i], b.ring[j], b.ring[i])
	}
}

// splitCell splits a leaf around an already validated keyframe. The left
// child takes over the parent's wall slots in the face buffer; the right
// child appends fresh ones, so existing face indices stay valid.
func (c *BoundingCage) splitCell(parent *Cell, mid *KeyFrame) {
	c.appendRing(mid)

	left, lref := c.alloc()
	right, rref := c.alloc()
	left.left, left.right = parent.left, mid
	right.left, right.right = mid, parent.right

	left.sideFaces = parent.sideFaces
	parent.sideFaces = nil
	c.writeSideFaces(left.sideFaces, left.left, left.right)
	right.sideFaces = c.appendSideFaces(right.left, right.right)

	parent.leftChild, parent.rightChild = lref, rref

	// Splice the children into the leaf list in the parent's place.
	left.prev, left.next = parent.prev, rref
	right.prev, right.next = lref, parent.next
	if p := c.deref(parent.prev); p != nil {
		p.next = lref
	} else {
		c.head = lref
	}
	if n := c.deref(parent.next); n != nil {
		n.prev = rref
	} else {
		c.tail = rref
	}
	parent.prev, parent.next = nilRef, nilRef
	parent.meshV, parent.meshF = nil, nil

	// The bounding keyframes of the old leaf now bound the children.
	left.left.cells[1] = lref
	right.right.cells[0] = rref
	mid.cells = [2]cellRef{lref, rref}

	left.rebuildMesh()
	right.rebuildMesh()
	c.nkf++
}

// alloc adds a cell to the arena and returns it with its handle.
func (c *BoundingCage) alloc() (*Cell, cellRef) {
	ref := cellRef{idx: len(c.cells), gen: c.gen}
	cell := &Cell{
		leftChild:  nilRef,
		rightChild: nilRef,
		prev:       nilRef,
		next:       nilRef,
	}
	c.cells = append(c.cells, cell)
	return cell, ref
}

// deref resolves a cell handle, returning nil for handles from a previous
// generation or out-of-range slots.
func (c *BoundingCage) deref(r cellRef) *Cell {
	if r.idx < 0 || r.idx >= len(c.cells) || r.gen != c.gen {
		return nil
	}
	return c.cells[r.idx]
}
