// Package preview renders 2D cross-section previews of a bounding cage.
// Each keyframe becomes one square tile in a horizontal strip, drawn with
// a shared scale so boundary edits are comparable across tiles. Strips are
// encoded as WebP.
package preview

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"os"

	"github.com/HugoSmits86/nativewebp"
	v2 "github.com/deadsy/sdfx/vec/v2"
	"golang.org/x/image/draw"

	"github.com/quellen/tubecage/pkg/cage"
)

// Options control tile size and styling.
type Options struct {
	TileSize    int // square tile edge in pixels
	Supersample int // oversampling factor for antialiasing
	Stroke      color.NRGBA
	Axis        color.NRGBA
	Background  color.NRGBA
	Axes        bool // draw the cross-section axes through the origin
}

// DefaultOptions returns the standard preview styling: 256px tiles rendered
// at 4x supersampling with a dark stroke on white.
func DefaultOptions() Options {
	return Options{
		TileSize:    256,
		Supersample: 4,
		Stroke:      color.NRGBA{R: 32, G: 32, B: 40, A: 255},
		Axis:        color.NRGBA{R: 200, G: 200, B: 208, A: 255},
		Background:  color.NRGBA{R: 255, G: 255, B: 255, A: 255},
		Axes:        true,
	}
}

// normalize fills in unset fields. A fully transparent background is a
// valid choice, so Background is kept as given.
func (o Options) normalize() Options {
	if o.TileSize <= 0 {
		o.TileSize = 256
	}
	if o.Supersample <= 0 {
		o.Supersample = 4
	}
	if o.Stroke.A == 0 {
		o.Stroke = color.NRGBA{R: 32, G: 32, B: 40, A: 255}
	}
	if o.Axes && o.Axis.A == 0 {
		o.Axis = color.NRGBA{R: 200, G: 200, B: 208, A: 255}
	}
	return o
}

// Strip renders every installed keyframe of the cage into a horizontal
// strip, one tile per keyframe in skeleton order. Returns nil when the
// cage is empty.
func Strip(c *cage.BoundingCage, opts Options) *image.NRGBA {
	if c == nil {
		return nil
	}

	var sections [][]v2.Vec
	for it := c.FirstKeyFrame(); it.Valid(); it = it.Next() {
		sections = append(sections, it.KeyFrame().Vertices2D())
	}
	if len(sections) == 0 {
		return nil
	}

	opts = opts.normalize()
	ss := opts.Supersample
	tileSS := opts.TileSize * ss

	// All tiles share one scale so cross-sections stay comparable. The
	// sections live in their own frames, so every tile is centred on the
	// skeleton point rather than on its own bounding box.
	span := 0.001
	for _, pts := range sections {
		for _, p := range pts {
			span = math.Max(span, 2*math.Max(math.Abs(p.X), math.Abs(p.Y)))
		}
	}
	margin := 16 * ss
	scale := float64(tileSS-2*margin) / span

	img := image.NewNRGBA(image.Rect(0, 0, tileSS*len(sections), tileSS))
	fill(img, opts.Background)

	for i, pts := range sections {
		renderTile(img, i*tileSS, tileSS, scale, pts, opts)
	}

	if ss > 1 {
		img = shrink(img, opts.TileSize*len(sections), opts.TileSize)
	}
	return img
}

// Tile renders a single keyframe cross-section, scaled to its own extent.
func Tile(kf *cage.KeyFrame, opts Options) *image.NRGBA {
	if kf == nil {
		return nil
	}
	pts := kf.Vertices2D()

	opts = opts.normalize()
	ss := opts.Supersample
	tileSS := opts.TileSize * ss

	span := 0.001
	for _, p := range pts {
		span = math.Max(span, 2*math.Max(math.Abs(p.X), math.Abs(p.Y)))
	}
	margin := 16 * ss
	scale := float64(tileSS-2*margin) / span

	img := image.NewNRGBA(image.Rect(0, 0, tileSS, tileSS))
	fill(img, opts.Background)
	renderTile(img, 0, tileSS, scale, pts, opts)

	if ss > 1 {
		img = shrink(img, opts.TileSize, opts.TileSize)
	}
	return img
}

// renderTile draws one cross-section into the square [x0,x0+size)x[0,size).
func renderTile(img *image.NRGBA, x0, size int, scale float64, pts []v2.Vec, opts Options) {
	// Project a section point into pixel coordinates. Image Y grows
	// downward, section Y grows upward.
	cx := float64(x0) + float64(size)/2
	cy := float64(size) / 2
	project := func(p v2.Vec) (float64, float64) {
		return cx + p.X*scale, cy - p.Y*scale
	}

	if opts.Axes {
		drawLine(img, float64(x0), cy, float64(x0+size-1), cy, opts.Axis)
		drawLine(img, cx, 0, cx, float64(size-1), opts.Axis)
	}

	for i := range pts {
		ax, ay := project(pts[i])
		bx, by := project(pts[(i+1)%len(pts)])
		drawLine(img, ax, ay, bx, by, opts.Stroke)
	}

	// Vertex markers; the first vertex gets a bigger one so boundary
	// orientation stays readable.
	half := opts.Supersample
	for i := range pts {
		px, py := project(pts[i])
		r := half
		if i == 0 {
			r = 2 * half
		}
		drawMarker(img, px, py, r, opts.Stroke)
	}
}

// drawLine rasterizes a straight segment with a simple DDA walk.
func drawLine(img *image.NRGBA, x0, y0, x1, y1 float64, col color.NRGBA) {
	dx := x1 - x0
	dy := y1 - y0
	steps := int(math.Max(math.Abs(dx), math.Abs(dy))) + 1
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		x := int(x0 + dx*t + 0.5)
		y := int(y0 + dy*t + 0.5)
		if image.Pt(x, y).In(img.Rect) {
			img.SetNRGBA(x, y, col)
		}
	}
}

// drawMarker fills a small square centred on (x, y).
func drawMarker(img *image.NRGBA, x, y float64, half int, col color.NRGBA) {
	cx := int(x + 0.5)
	cy := int(y + 0.5)
	for py := cy - half; py <= cy+half; py++ {
		for px := cx - half; px <= cx+half; px++ {
			if image.Pt(px, py).In(img.Rect) {
				img.SetNRGBA(px, py, col)
			}
		}
	}
}

// fill paints the whole image with one color.
func fill(img *image.NRGBA, col color.NRGBA) {
	if col.A == 0 && col.R == 0 && col.G == 0 && col.B == 0 {
		return
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.SetNRGBA(x, y, col)
		}
	}
}

// shrink reduces the image with premultiplied-alpha-aware CatmullRom
// filtering. This prevents dark halo artifacts at transparent edges.
func shrink(img *image.NRGBA, w, h int) *image.NRGBA {
	b := img.Bounds()

	// Premultiply alpha
	premul := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			si := img.PixOffset(x, y)
			di := premul.PixOffset(x, y)
			a := float64(img.Pix[si+3]) / 255.0
			premul.Pix[di] = uint8(float64(img.Pix[si])*a + 0.5)
			premul.Pix[di+1] = uint8(float64(img.Pix[si+1])*a + 0.5)
			premul.Pix[di+2] = uint8(float64(img.Pix[si+2])*a + 0.5)
			premul.Pix[di+3] = img.Pix[si+3]
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), premul, premul.Bounds(), draw.Src, nil)

	// Unpremultiply alpha
	result := image.NewNRGBA(dst.Bounds())
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			si := dst.PixOffset(x, y)
			di := result.PixOffset(x, y)
			a := float64(dst.Pix[si+3])
			if a > 1 {
				inv := 255.0 / a
				result.Pix[di] = clamp8(float64(dst.Pix[si]) * inv)
				result.Pix[di+1] = clamp8(float64(dst.Pix[si+1]) * inv)
				result.Pix[di+2] = clamp8(float64(dst.Pix[si+2]) * inv)
			}
			result.Pix[di+3] = dst.Pix[si+3]
		}
	}

	return result
}

func clamp8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// Encode writes an image as lossless WebP.
func Encode(w io.Writer, img image.Image) error {
	if img == nil {
		return fmt.Errorf("preview: nil image")
	}
	if err := nativewebp.Encode(w, img, nil); err != nil {
		return fmt.Errorf("preview: WebP encode: %w", err)
	}
	return nil
}

// Save renders the cage's cross-section strip and writes it to path.
func Save(c *cage.BoundingCage, path string, opts Options) error {
	img := Strip(c, opts)
	if img == nil {
		return fmt.Errorf("preview: cage has no keyframes")
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("preview: %w", err)
	}
	defer f.Close()

	return Encode(f, img)
}
