// Package mesh provides the shared vertex and face store backing a
// bounding cage. All cage entities write into one Buffer and hold plain
// integer indices, so the assembled surface can be handed to a renderer
// as two flat arrays.
package mesh

import (
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Buffer stores vertices and triangle faces in two append-only arrays.
// Indices returned by the append methods stay valid across any amount of
// later growth; existing entries may be rewritten in place but never move.
type Buffer struct {
	verts []v3.Vec
	faces [][3]int
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// AppendVertex adds a vertex and returns its stable index.
func (b *Buffer) AppendVertex(v v3.Vec) int {
	b.verts = append(b.verts, v)
	return len(b.verts) - 1
}

// AppendTriangle adds a face from three vertex indices and returns its
// stable index.
func (b *Buffer) AppendTriangle(v0, v1, v2 int) int {
	b.faces = append(b.faces, [3]int{v0, v1, v2})
	return len(b.faces) - 1
}

// SetVertex rewrites the vertex at index i in place.
func (b *Buffer) SetVertex(i int, v v3.Vec) {
	b.verts[i] = v
}

// SetTriangle rewrites the face at index i in place.
func (b *Buffer) SetTriangle(i int, v0, v1, v2 int) {
	b.faces[i] = [3]int{v0, v1, v2}
}

// Vertex returns the vertex at index i.
func (b *Buffer) Vertex(i int) v3.Vec {
	return b.verts[i]
}

// Triangle returns the face at index i.
func (b *Buffer) Triangle(i int) [3]int {
	return b.faces[i]
}

// Vertices returns a view of every vertex appended so far. The slice is
// shared with the buffer: callers must not modify it, and must not retain
// it across further appends.
func (b *Buffer) Vertices() []v3.Vec {
	return b.verts
}

// Faces returns a view of every face appended so far, under the same
// sharing rules as Vertices.
func (b *Buffer) Faces() [][3]int {
	return b.faces
}

// VertexCount returns the number of vertices.
func (b *Buffer) VertexCount() int { return len(b.verts) }

// FaceCount returns the number of faces.
func (b *Buffer) FaceCount() int { return len(b.faces) }

// Reset empties the buffer, retaining allocated capacity for reuse.
func (b *Buffer) Reset() {
	b.verts = b.verts[:0]
	b.faces = b.faces[:0]
}
