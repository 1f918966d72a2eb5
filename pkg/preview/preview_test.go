package preview_test

import (
	"bytes"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/quellen/tubecage/pkg/cage"
	"github.com/quellen/tubecage/pkg/preview"
)

// testOptions keeps tests fast: small tiles, mild supersampling.
func testOptions() preview.Options {
	opts := preview.DefaultOptions()
	opts.TileSize = 64
	opts.Supersample = 2
	return opts
}

func makeCage(t *testing.T, n int) *cage.BoundingCage {
	t.Helper()
	pts := make([]v3.Vec, n)
	for i := range pts {
		pts[i] = v3.Vec{Z: float64(i)}
	}
	square := []v2.Vec{
		{X: 0.5, Y: -0.5},
		{X: 0.5, Y: 0.5},
		{X: -0.5, Y: 0.5},
		{X: -0.5, Y: -0.5},
	}
	c := cage.New()
	if err := c.SetSkeletonVertices(pts, 0, square); err != nil {
		t.Fatalf("SetSkeletonVertices: %v", err)
	}
	return c
}

func TestStripEmptyCage(t *testing.T) {
	if img := preview.Strip(nil, testOptions()); img != nil {
		t.Error("Strip(nil) should return nil")
	}
	if img := preview.Strip(cage.New(), testOptions()); img != nil {
		t.Error("Strip of an empty cage should return nil")
	}
}

func TestStripLayout(t *testing.T) {
	c := makeCage(t, 5)
	if _, err := c.Split(2); err != nil {
		t.Fatal(err)
	}

	opts := testOptions()
	img := preview.Strip(c, opts)
	if img == nil {
		t.Fatal("expected an image")
	}

	// Three keyframes, one tile each.
	b := img.Bounds()
	if b.Dx() != 3*opts.TileSize || b.Dy() != opts.TileSize {
		t.Errorf("strip is %dx%d, want %dx%d", b.Dx(), b.Dy(), 3*opts.TileSize, opts.TileSize)
	}
}

func TestStripDrawsBoundary(t *testing.T) {
	c := makeCage(t, 3)
	opts := testOptions()
	opts.Axes = false

	img := preview.Strip(c, opts)
	if img == nil {
		t.Fatal("expected an image")
	}

	// The outline must leave non-background pixels behind, while the tile
	// centre stays untouched (the section is an outline, not a fill).
	bg := opts.Background
	marked := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.NRGBAAt(x, y) != bg {
				marked++
			}
		}
	}
	if marked == 0 {
		t.Fatal("no stroke pixels in the strip")
	}

	center := img.NRGBAAt(opts.TileSize/2, opts.TileSize/2)
	if center != bg {
		t.Errorf("tile centre = %v, want background %v", center, bg)
	}
}

func TestTileSingleKeyFrame(t *testing.T) {
	c := makeCage(t, 3)
	kf := c.FirstKeyFrame().KeyFrame()

	opts := testOptions()
	img := preview.Tile(kf, opts)
	if img == nil {
		t.Fatal("expected an image")
	}
	b := img.Bounds()
	if b.Dx() != opts.TileSize || b.Dy() != opts.TileSize {
		t.Errorf("tile is %dx%d, want %dx%d", b.Dx(), b.Dy(), opts.TileSize, opts.TileSize)
	}

	if img := preview.Tile(nil, opts); img != nil {
		t.Error("Tile(nil) should return nil")
	}
}

func TestZeroOptionsNormalized(t *testing.T) {
	c := makeCage(t, 3)

	img := preview.Strip(c, preview.Options{TileSize: 16, Supersample: 1})
	if img == nil {
		t.Fatal("expected an image")
	}
	if img.Bounds().Dy() != 16 {
		t.Errorf("tile height = %d, want 16", img.Bounds().Dy())
	}
}

func TestEncodeWritesWebP(t *testing.T) {
	c := makeCage(t, 3)
	img := preview.Strip(c, testOptions())

	var buf bytes.Buffer
	if err := preview.Encode(&buf, img); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	data := buf.Bytes()
	if len(data) < 12 {
		t.Fatalf("encoded image is only %d bytes", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WEBP" {
		t.Errorf("missing WebP container magic: % x", data[:12])
	}

	if err := preview.Encode(&buf, nil); err == nil {
		t.Error("expected error encoding a nil image")
	}
}

func TestSave(t *testing.T) {
	c := makeCage(t, 3)
	path := filepath.Join(t.TempDir(), "sections.webp")

	if err := preview.Save(c, path, testOptions()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	st, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if st.Size() == 0 {
		t.Fatal("preview file is empty")
	}

	if err := preview.Save(cage.New(), filepath.Join(t.TempDir(), "x.webp"), testOptions()); err == nil {
		t.Error("expected error saving an empty cage")
	}
}

func TestCustomStroke(t *testing.T) {
	c := makeCage(t, 3)
	opts := testOptions()
	opts.Axes = false
	opts.Stroke = color.NRGBA{R: 255, A: 255}
	opts.Background = color.NRGBA{A: 255}

	img := preview.Strip(c, opts)
	found := false
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y && !found; y++ {
		for x := b.Min.X; x < b.Max.X && !found; x++ {
			px := img.NRGBAAt(x, y)
			if px.R > 128 && px.G < 64 && px.B < 64 {
				found = true
			}
		}
	}
	if !found {
		t.Error("custom stroke color not present in the render")
	}
}
