package cage

import (
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/quellen/tubecage/pkg/polygon"
)

// cellRef is a generationed handle into the cage's cell arena. Handles
// from before the last Clear or skeleton rebuild dereference to nil, so
// stale references are detectable instead of dangling. Keyframes hold
// cellRef back-references rather than pointers, which keeps the
// keyframe/cell graph cycle-free.
type cellRef struct {
	idx int
	gen uint64
}

// nilRef is the absent cell handle. Its generation of zero never matches
// a live cage.
var nilRef = cellRef{idx: -1}

// Cell is one node of the cage's split tree. A leaf cell is the prism
// between its two bounding keyframes; leaves are linked in skeleton order.
// An interior cell only records how it was split: its keyframes stay set,
// but its wall slots and list links pass to the children.
type Cell struct {
	left  *KeyFrame
	right *KeyFrame

	leftChild  cellRef
	rightChild cellRef
	prev       cellRef
	next       cellRef

	// sideFaces are this leaf's wall triangle slots in the shared face
	// buffer, two per boundary edge.
	sideFaces []int

	// Cached closed mesh for rendering this cell alone: both rings as
	// local vertices, wall and cap triangles as local indices.
	meshV []v3.Vec
	meshF [][3]int
}

// isLeaf reports whether the cell has not been split.
func (cl *Cell) isLeaf() bool {
	return cl.leftChild.idx < 0 && cl.rightChild.idx < 0
}

// LeftKeyFrame returns the keyframe bounding the cell at its lower index.
func (cl *Cell) LeftKeyFrame() *KeyFrame { return cl.left }

// RightKeyFrame returns the keyframe bounding the cell at its higher
// index.
func (cl *Cell) RightKeyFrame() *KeyFrame { return cl.right }

// MinIndex returns the skeleton index of the cell's left keyframe.
func (cl *Cell) MinIndex() float64 { return cl.left.index }

// MaxIndex returns the skeleton index of the cell's right keyframe.
func (cl *Cell) MaxIndex() float64 { return cl.right.index }

// SideFaceIndices returns the cell's wall slots in the cage face buffer.
// The slice is shared; callers must not modify it.
func (cl *Cell) SideFaceIndices() []int { return cl.sideFaces }

// Mesh returns the cell's cached closed prism: local vertices and local
// triangle indices covering the walls and both caps. The slices are
// shared and refreshed on edits; callers must not modify them.
func (cl *Cell) Mesh() ([]v3.Vec, [][3]int) {
	return cl.meshV, cl.meshF
}

// Centroid returns the midpoint of the bounding keyframe centroids, a
// cheap depth-sort key for renderers drawing cells individually.
func (cl *Cell) Centroid() v3.Vec {
	return cl.left.Centroid3D().Add(cl.right.Centroid3D()).DivScalar(2)
}

// rebuildMesh refreshes the cached prism from the current keyframe
// geometry. Local layout: left ring vertices first, then right ring; wall
// triangles then the two cap fans. The left cap faces against the frame
// normal, the right cap along it.
func (cl *Cell) rebuildMesh() {
	k := len(cl.left.points)
	verts := make([]v3.Vec, 0, 2*k)
	verts = append(verts, cl.left.Vertices3D()...)
	verts = append(verts, cl.right.Vertices3D()...)

	faces := make([][3]int, 0, 2*k+2*(k-2))
	for i := 0; i < k; i++ {
		j := (i + 1) % k
		faces = append(faces, [3]int{i, j, k + j})
		faces = append(faces, [3]int{i, k + j, k + i})
	}
	for _, t := range polygon.FanTriangles(k) {
		faces = append(faces, [3]int{t[0], t[2], t[1]})
		faces = append(faces, [3]int{k + t[0], k + t[1], k + t[2]})
	}

	cl.meshV, cl.meshF = verts, faces
}
