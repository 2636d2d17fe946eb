package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"slices"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot/vg"

	"github.com/Iwaschkin/maptoposter/pkg/geo"
)

// DefaultMaxSide caps the longer side of the density grid in pixels. Larger
// targets get an upscaled overlay.
const DefaultMaxSide = 2048

const (
	// densityStroke is the per-feature alpha used to count overlaps: after n
	// strokes a pixel holds 1-(1-densityStroke)^n.
	densityStroke = 0.2
	glowSigma     = 2.0
)

var errVectorTarget = errors.New("density backend needs a raster target")

// Density draws road layers as tone-mapped overlap grids, so busy junctions
// and parallel carriageways read brighter than isolated streets. Every other
// layer is drawn by the canvas backend.
type Density struct {
	canvas *Canvas
	// MaxSide bounds the grid resolution.
	MaxSide int
}

var _ Backend = (*Density)(nil)

// NewDensity returns a density backend delegating non-road layers to canvas.
func NewDensity(canvas *Canvas) *Density {
	if canvas == nil {
		canvas = NewCanvas()
	}
	return &Density{canvas: canvas, MaxSide: DefaultMaxSide}
}

func (*Density) Name() string { return BackendDensity }

func (*Density) Capabilities() Capabilities {
	return Capabilities{CanRenderRoads: true, CanApplyGlow: true, RasterOnly: true}
}

func (*Density) Available() bool { return true }

func (d *Density) RenderLayers(ctx context.Context, layers []Layer, t *Target) error {
	if !t.Raster() {
		return &BackendError{Backend: d.Name(), Err: errVectorTarget}
	}
	sorted := slices.Clone(layers)
	SortLayers(sorted)

	gw, gh := d.gridSize(t)
	for _, l := range sorted {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !l.Road() || l.Kind != KindLine {
			if err := d.canvas.drawLayer(l, t); err != nil {
				return err
			}
			continue
		}
		if err := d.drawRoads(l, t, gw, gh); err != nil {
			return err
		}
	}
	return nil
}

// gridSize returns the raster size of the density grid.
func (d *Density) gridSize(t *Target) (int, int) {
	w, h := t.PixelSize()
	maxSide := d.MaxSide
	if maxSide <= 0 {
		maxSide = DefaultMaxSide
	}
	if longest := max(w, h); longest > maxSide {
		scale := float64(maxSide) / float64(longest)
		w = max(1, int(float64(w)*scale))
		h = max(1, int(float64(h)*scale))
	}
	return max(1, w), max(1, h)
}

func (d *Density) drawRoads(l Layer, t *Target, gw, gh int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &BackendError{Backend: d.Name(), Layer: l.Name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if l.Features.Empty() || l.Style.Width <= 0 {
		return nil
	}

	pw, _ := t.Size()
	pxPerPoint := float64(gw) / float64(pw)

	mask := strokeMask(t, l.Features, gw, gh, l.Style.Width*pxPerPoint)
	counts := overlapCounts(mask)
	toneMap(counts)

	if l.Style.Glow > 0 {
		halo := imaging.Blur(mask, glowSigma*max(1, l.Style.Width*pxPerPoint))
		glow := alphaGrid(halo)
		floats.Scale(glowAlpha*l.Style.Glow, glow)
		for i, g := range glow {
			counts[i] = max(counts[i], g)
		}
	}

	overlay := colorize(counts, gw, gh, l.Style.Color, l.Style.opacity())
	w, h := t.Size()
	t.Canvas.DrawImage(vg.Rectangle{Min: vg.Point{}, Max: vg.Point{X: w, Y: h}}, overlay)
	return nil
}

// strokeMask strokes every feature separately in white at densityStroke
// alpha, so overlapping features accumulate.
func strokeMask(t *Target, fc *geo.FeatureCollection, gw, gh int, width float64) image.Image {
	pw, ph := t.Size()
	sx, sy := float64(gw)/float64(pw), float64(gh)/float64(ph)
	toPixel := func(c geo.Coord) (float64, float64) {
		p := t.Project(c)
		return float64(p.X) * sx, float64(gh) - float64(p.Y)*sy
	}

	dc := gg.NewContext(gw, gh)
	dc.SetLineWidth(max(width, 0.5))
	dc.SetLineCapRound()
	dc.SetLineJoinRound()
	dc.SetRGBA(1, 1, 1, densityStroke)

	for _, f := range fc.Features {
		drawn := false
		trace := func(pts []geo.Coord) {
			if len(pts) < 2 {
				return
			}
			dc.NewSubPath()
			dc.MoveTo(toPixel(pts[0]))
			for _, c := range pts[1:] {
				dc.LineTo(toPixel(c))
			}
			drawn = true
		}
		for _, line := range f.Geometry.Lines {
			trace(line)
		}
		for _, poly := range f.Geometry.Polygons {
			for _, ring := range poly {
				trace(ring)
			}
		}
		if drawn {
			dc.Stroke()
		}
	}
	return dc.Image()
}

// alphaGrid returns the alpha channel of img in [0, 1], row-major.
func alphaGrid(img image.Image) []float64 {
	b := img.Bounds()
	out := make([]float64, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			out[(y-b.Min.Y)*b.Dx()+(x-b.Min.X)] = float64(a) / 0xffff
		}
	}
	return out
}

// overlapCounts inverts the accumulated stroke alpha back to a count.
func overlapCounts(mask image.Image) []float64 {
	grid := alphaGrid(mask)
	denom := math.Log(1 - densityStroke)
	for i, a := range grid {
		if a <= 0 {
			continue
		}
		grid[i] = math.Log(1-min(a, 0.999)) / denom
	}
	return grid
}

// toneMap rescales counts in place to [0, 1] on a log scale.
func toneMap(grid []float64) {
	if len(grid) == 0 {
		return
	}
	peak := floats.Max(grid)
	if peak <= 0 {
		return
	}
	norm := math.Log1p(peak)
	for i, v := range grid {
		grid[i] = math.Log1p(v) / norm
	}
}

func colorize(grid []float64, w, h int, c color.Color, opacity float64) *image.NRGBA {
	if c == nil {
		c = color.White
	}
	base := color.NRGBAModel.Convert(c).(color.NRGBA)
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i, v := range grid {
		if v <= 0 {
			continue
		}
		a := min(1, v) * opacity * float64(base.A) / 255
		img.Pix[i*4+0] = base.R
		img.Pix[i*4+1] = base.G
		img.Pix[i*4+2] = base.B
		img.Pix[i*4+3] = uint8(a*255 + 0.5)
	}
	return img
}
