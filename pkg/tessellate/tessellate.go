// Package tessellate converts a bounding cage into render-ready triangle
// soups. One soup is produced per cell, or the whole cage can be flattened
// and written to an STL file.
package tessellate

import (
	"fmt"

	"github.com/deadsy/sdfx/render"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/quellen/tubecage/pkg/cage"
)

// CellMesh is the closed triangle soup of one prism cell, annotated with
// the cell's skeleton index range so callers can relate it back to the cage.
type CellMesh struct {
	MinIndex  float64
	MaxIndex  float64
	Center    v3.Vec
	Triangles []render.Triangle3
}

// TriangleCount returns the number of triangles.
func (m *CellMesh) TriangleCount() int {
	return len(m.Triangles)
}

// IsEmpty returns true if the mesh has no geometry.
func (m *CellMesh) IsEmpty() bool {
	return len(m.Triangles) == 0
}

// Cells walks the cage's cells in skeleton order and produces one closed
// triangle soup per cell. The tessellator is read-only and never mutates
// the cage.
func Cells(c *cage.BoundingCage) []*CellMesh {
	if c == nil {
		return nil
	}

	var meshes []*CellMesh
	for it := c.FirstCell(); it.Valid(); it = it.Next() {
		meshes = append(meshes, cellMesh(it.Cell()))
	}
	return meshes
}

// cellMesh flattens one cell's indexed mesh into a triangle soup.
func cellMesh(cl *cage.Cell) *CellMesh {
	verts, faces := cl.Mesh()

	tris := make([]render.Triangle3, 0, len(faces))
	for _, f := range faces {
		tris = append(tris, render.Triangle3{verts[f[0]], verts[f[1]], verts[f[2]]})
	}

	return &CellMesh{
		MinIndex:  cl.MinIndex(),
		MaxIndex:  cl.MaxIndex(),
		Center:    cl.Centroid(),
		Triangles: tris,
	}
}

// Soup flattens the cage's shared mesh buffer into a single triangle soup:
// the two end caps plus the wall triangles of every cell. Interior keyframe
// polygons contribute vertices but no faces, so the result is the closed
// boundary surface of the whole tube.
func Soup(c *cage.BoundingCage) []render.Triangle3 {
	if c == nil {
		return nil
	}

	verts := c.Vertices()
	faces := c.Faces()

	tris := make([]render.Triangle3, 0, len(faces))
	for _, f := range faces {
		tris = append(tris, render.Triangle3{verts[f[0]], verts[f[1]], verts[f[2]]})
	}
	return tris
}

// SaveSTL writes the cage's boundary surface to an STL file.
func SaveSTL(c *cage.BoundingCage, path string) error {
	tris := Soup(c)
	if len(tris) == 0 {
		return fmt.Errorf("tessellate: cage has no geometry")
	}
	if err := render.SaveSTL(path, tris); err != nil {
		return fmt.Errorf("tessellate: save %s: %w", path, err)
	}
	return nil
}
