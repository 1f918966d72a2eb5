package engine

import (
	"testing"

	v2 "github.com/deadsy/sdfx/vec/v2"
)

// ---------------------------------------------------------------------------
// Preprocessing tests
// ---------------------------------------------------------------------------

func TestPreprocessKeywords(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "simple keyword",
			input:  `(set-skeleton :points pts)`,
			expect: `(set_skeleton "__kw_points" pts)`,
		},
		{
			name:   "multiple keywords",
			input:  `(ngon :sides 6 :radius 40)`,
			expect: `(ngon "__kw_sides" 6 "__kw_radius" 40)`,
		},
		{
			name:   "keyword in string preserved",
			input:  `"thing with :keyword inside"`,
			expect: `"thing with :keyword inside"`,
		},
		{
			name:   "assignment operator preserved",
			input:  `(def x := 10)`,
			expect: `(def x := 10)`,
		},
		{
			name:   "kebab-case identifier",
			input:  `(move-point kf 0 p)`,
			expect: `(move_point kf 0 p)`,
		},
		{
			name:   "minus operator preserved",
			input:  `(- 10 5)`,
			expect: `(- 10 5)`,
		},
		{
			name:   "comment converted to // style",
			input:  `;; comment with :keyword`,
			expect: `// comment with :keyword`,
		},
		{
			name:   "single semicolon comment",
			input:  `; simple comment`,
			expect: `// simple comment`,
		},
		{
			name:   "hyphen in keyword preserved",
			input:  `:check-3d`,
			expect: `"__kw_check-3d"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := preprocessSource(tt.input)
			if got != tt.expect {
				t.Errorf("preprocessSource(%q) = %q, want %q", tt.input, got, tt.expect)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Skeleton and template tests
// ---------------------------------------------------------------------------

func TestSetSkeletonWithPolygonTemplate(t *testing.T) {
	eng := NewEngine()

	source := `
(set-skeleton :points (list (vec3 0 0 0) (vec3 0 0 1) (vec3 0 0 2) (vec3 0 0 3) (vec3 0 0 4))
              :template (polygon (vec2 0.5 -0.5) (vec2 0.5 0.5) (vec2 -0.5 0.5) (vec2 -0.5 -0.5)))
`
	c, evalErrs, err := eng.Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	if c == nil {
		t.Fatal("expected non-nil cage")
	}

	if c.KeyFrameCount() != 2 {
		t.Errorf("expected 2 keyframes, got %d", c.KeyFrameCount())
	}
	if c.CellCount() != 1 {
		t.Errorf("expected 1 cell, got %d", c.CellCount())
	}
	if c.VertexCount() != 8 {
		t.Errorf("expected 8 vertices, got %d", c.VertexCount())
	}
	if c.FaceCount() != 12 {
		t.Errorf("expected 12 faces, got %d", c.FaceCount())
	}
	if c.MaxIndex() != 4 {
		t.Errorf("expected max index 4, got %g", c.MaxIndex())
	}
}

func TestSetSkeletonWithNgonTemplate(t *testing.T) {
	eng := NewEngine()

	source := `
(set-skeleton :points (list (vec3 0 0 0) (vec3 0 0 10))
              :smoothing-iters 2
              :template (ngon :sides 6 :radius 2))
`
	c, evalErrs, err := eng.Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}

	// Two hexagonal rings, two 4-triangle fan caps, 12 wall triangles.
	if c.VertexCount() != 12 {
		t.Errorf("expected 12 vertices, got %d", c.VertexCount())
	}
	if c.FaceCount() != 20 {
		t.Errorf("expected 20 faces, got %d", c.FaceCount())
	}
}

func TestSetSkeletonRejectsShortSkeleton(t *testing.T) {
	eng := NewEngine()

	source := `
(set-skeleton :points (list (vec3 0 0 0))
              :template (ngon :sides 4 :radius 1))
`
	c, evalErrs, err := eng.Evaluate(source)
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if c != nil {
		t.Fatal("expected nil cage on eval error")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected at least one eval error for a one-point skeleton")
	}
}

// ---------------------------------------------------------------------------
// Split tests
// ---------------------------------------------------------------------------

func TestSplitBuiltin(t *testing.T) {
	eng := NewEngine()

	source := `
(set-skeleton :points (list (vec3 0 0 0) (vec3 0 0 1) (vec3 0 0 2) (vec3 0 0 3) (vec3 0 0 4))
              :template (ngon :sides 4 :radius 1))
(split 3)
(split 1)
(split 2)
`
	c, evalErrs, err := eng.Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}

	if c.KeyFrameCount() != 5 {
		t.Errorf("expected 5 keyframes, got %d", c.KeyFrameCount())
	}
	if c.CellCount() != 4 {
		t.Errorf("expected 4 cells, got %d", c.CellCount())
	}

	// Keyframes come back in index order no matter the split order.
	var indexes []float64
	for it := c.FirstKeyFrame(); it.Valid(); it = it.Next() {
		indexes = append(indexes, it.KeyFrame().Index())
	}
	want := []float64{0, 1, 2, 3, 4}
	if len(indexes) != len(want) {
		t.Fatalf("keyframe walk = %v, want %v", indexes, want)
	}
	for i := range want {
		if indexes[i] != want[i] {
			t.Errorf("keyframe %d index = %g, want %g", i, indexes[i], want[i])
		}
	}
}

func TestSplitBeforeSkeletonFails(t *testing.T) {
	eng := NewEngine()

	c, evalErrs, err := eng.Evaluate(`(split 1)`)
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if c != nil {
		t.Fatal("expected nil cage when splitting an empty cage")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected at least one eval error")
	}
}

func TestSplitAtOccupiedIndexFails(t *testing.T) {
	eng := NewEngine()

	source := `
(set-skeleton :points (list (vec3 0 0 0) (vec3 0 0 1) (vec3 0 0 2) (vec3 0 0 3))
              :template (ngon :sides 4 :radius 1))
(split 2)
(split 2)
`
	c, evalErrs, err := eng.Evaluate(source)
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if c != nil {
		t.Fatal("expected nil cage when splitting at an occupied index")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected at least one eval error")
	}
}

// ---------------------------------------------------------------------------
// Detached keyframe tests
// ---------------------------------------------------------------------------

func TestKeyframeAtAndInstall(t *testing.T) {
	eng := NewEngine()

	source := `
(set-skeleton :points (list (vec3 0 0 0) (vec3 0 0 1) (vec3 0 0 2) (vec3 0 0 3))
              :template (ngon :sides 4 :radius 1))
(def kf (keyframe-at 1.5))
(move-point kf 0 (vec2 0.2 -0.2))
(install kf)
`
	c, evalErrs, err := eng.Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}

	if c.KeyFrameCount() != 3 {
		t.Errorf("expected 3 keyframes, got %d", c.KeyFrameCount())
	}
	if c.CellCount() != 2 {
		t.Errorf("expected 2 cells, got %d", c.CellCount())
	}

	it, err := c.KeyFrameForIndex(1.5)
	if err != nil {
		t.Fatalf("KeyFrameForIndex: %v", err)
	}
	kf := it.KeyFrame()
	if !kf.InBoundingCage() {
		t.Fatal("keyframe at 1.5 should be installed")
	}
	if !kf.Vertices2D()[0].Equals(v2.Vec{X: 0.2, Y: -0.2}, 1e-9) {
		t.Errorf("edited vertex lost: %v", kf.Vertices2D()[0])
	}
}

// ---------------------------------------------------------------------------
// Move tests
// ---------------------------------------------------------------------------

func TestMovePointAppliesEdit(t *testing.T) {
	eng := NewEngine()

	source := `
(set-skeleton :points (list (vec3 0 0 0) (vec3 0 0 1) (vec3 0 0 2) (vec3 0 0 3) (vec3 0 0 4))
              :template (polygon (vec2 0.5 -0.5) (vec2 0.5 0.5) (vec2 -0.5 0.5) (vec2 -0.5 -0.5)))
(def kf (split 2))
(move-point kf 0 (vec2 0.8 -0.8))
`
	c, evalErrs, err := eng.Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}

	it, err := c.KeyFrameForIndex(2)
	if err != nil {
		t.Fatal(err)
	}
	if !it.KeyFrame().Vertices2D()[0].Equals(v2.Vec{X: 0.8, Y: -0.8}, 1e-9) {
		t.Errorf("vertex = %v, want (0.8,-0.8)", it.KeyFrame().Vertices2D()[0])
	}
}

func TestMovePointRejectionDoesNotAbort(t *testing.T) {
	eng := NewEngine()

	// The first move folds the square over itself and is rejected; the
	// script keeps running and the cage keeps its original boundary.
	source := `
(set-skeleton :points (list (vec3 0 0 0) (vec3 0 0 1) (vec3 0 0 2) (vec3 0 0 3) (vec3 0 0 4))
              :template (polygon (vec2 0.5 -0.5) (vec2 0.5 0.5) (vec2 -0.5 0.5) (vec2 -0.5 -0.5)))
(def kf (split 2))
(def ok (move-point kf 0 (vec2 -1 0)))
(split 1)
`
	c, evalErrs, err := eng.Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}

	// The trailing split ran, so evaluation continued past the rejection.
	if c.KeyFrameCount() != 4 {
		t.Errorf("expected 4 keyframes, got %d", c.KeyFrameCount())
	}

	it, err := c.KeyFrameForIndex(2)
	if err != nil {
		t.Fatal(err)
	}
	if !it.KeyFrame().Vertices2D()[0].Equals(v2.Vec{X: 0.5, Y: -0.5}, 1e-9) {
		t.Errorf("rejected move changed the boundary: %v", it.KeyFrame().Vertices2D()[0])
	}
}

func TestMovePointBadVertexIndexAborts(t *testing.T) {
	eng := NewEngine()

	source := `
(set-skeleton :points (list (vec3 0 0 0) (vec3 0 0 1) (vec3 0 0 2) (vec3 0 0 3))
              :template (ngon :sides 4 :radius 1))
(def kf (split 2))
(move-point kf 9 (vec2 0 0))
`
	c, evalErrs, err := eng.Evaluate(source)
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if c != nil {
		t.Fatal("expected nil cage on a bad vertex index")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected at least one eval error")
	}
}

func TestMovePointValidationFlags(t *testing.T) {
	eng := NewEngine()

	// With :check-2d false the folding move goes through.
	source := `
(set-skeleton :points (list (vec3 0 0 0) (vec3 0 0 1) (vec3 0 0 2) (vec3 0 0 3) (vec3 0 0 4))
              :template (polygon (vec2 0.5 -0.5) (vec2 0.5 0.5) (vec2 -0.5 0.5) (vec2 -0.5 -0.5)))
(def kf (split 2))
(move-point kf 0 (vec2 -1 0) :check-2d false)
`
	c, evalErrs, err := eng.Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}

	it, err := c.KeyFrameForIndex(2)
	if err != nil {
		t.Fatal(err)
	}
	if !it.KeyFrame().Vertices2D()[0].Equals(v2.Vec{X: -1, Y: 0}, 1e-9) {
		t.Errorf("unchecked move not applied: %v", it.KeyFrame().Vertices2D()[0])
	}
}

// ---------------------------------------------------------------------------
// Clear and query tests
// ---------------------------------------------------------------------------

func TestClearBuiltin(t *testing.T) {
	eng := NewEngine()

	source := `
(set-skeleton :points (list (vec3 0 0 0) (vec3 0 0 1) (vec3 0 0 2))
              :template (ngon :sides 4 :radius 1))
(split 1)
(clear)
`
	c, evalErrs, err := eng.Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}

	if c.KeyFrameCount() != 0 || c.CellCount() != 0 {
		t.Errorf("expected empty cage after clear, got %d keyframes, %d cells",
			c.KeyFrameCount(), c.CellCount())
	}
	if c.VertexCount() != 0 || c.FaceCount() != 0 {
		t.Errorf("expected empty mesh after clear, got %d vertices, %d faces",
			c.VertexCount(), c.FaceCount())
	}
}

func TestQueryBuiltins(t *testing.T) {
	eng := NewEngine()

	// The queries must evaluate inside ordinary arithmetic; the counts
	// themselves are asserted through the returned cage.
	source := `
(set-skeleton :points (list (vec3 0 0 0) (vec3 0 0 1) (vec3 0 0 2) (vec3 0 0 3))
              :template (ngon :sides 4 :radius 1))
(split 2)
(def counts (+ (keyframe-count) (cell-count) (vertex-count) (face-count)))
(def span (- (max-index) (min-index)))
`
	c, evalErrs, err := eng.Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	if c.KeyFrameCount() != 3 || c.CellCount() != 2 {
		t.Errorf("got %d keyframes, %d cells", c.KeyFrameCount(), c.CellCount())
	}
	if c.VertexCount() != 12 || c.FaceCount() != 20 {
		t.Errorf("got %d vertices, %d faces", c.VertexCount(), c.FaceCount())
	}
	if c.MaxIndex()-c.MinIndex() != 3 {
		t.Errorf("span = %g, want 3", c.MaxIndex()-c.MinIndex())
	}
}

func TestKeyframeIndexBuiltin(t *testing.T) {
	eng := NewEngine()

	source := `
(set-skeleton :points (list (vec3 0 0 0) (vec3 0 0 1) (vec3 0 0 2) (vec3 0 0 3))
              :template (ngon :sides 4 :radius 1))
(def kf (split 1.5))
(keyframe-index kf)
`
	c, evalErrs, err := eng.Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	if c.KeyFrameCount() != 3 {
		t.Errorf("expected 3 keyframes, got %d", c.KeyFrameCount())
	}
}
