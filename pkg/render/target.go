package render

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	xfont "golang.org/x/image/font"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/vgimg"
	"gonum.org/v1/plot/vg/vgpdf"
	"gonum.org/v1/plot/vg/vgsvg"

	"github.com/Iwaschkin/maptoposter/pkg/fonts"
	"github.com/Iwaschkin/maptoposter/pkg/geo"
)

// Output formats.
const (
	FormatPNG = "png"
	FormatSVG = "svg"
	FormatPDF = "pdf"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatPNG: true,
	FormatSVG: true,
	FormatPDF: true,
}

// DefaultDPI is the raster resolution when none is given.
const DefaultDPI = 300

// Target is the canvas of one poster in one format.
type Target struct {
	Format string
	// Width and Height are the poster size in inches.
	Width, Height float64
	DPI           int
	Canvas        vg.Canvas

	// Viewport is the projected area mapped onto the page.
	Viewport geo.Bounds
	Fonts    *fonts.Set

	background color.Color
	img        *vgimg.Canvas
	svg        *vgsvg.Canvas
	pdf        *vgpdf.Canvas
	override   image.Image
}

// TargetOption configures a Target.
type TargetOption func(*Target)

// WithViewport sets the projected area shown on the page.
func WithViewport(b geo.Bounds) TargetOption {
	return func(t *Target) { t.Viewport = b }
}

// WithFonts sets the font set used for text layers.
func WithFonts(s *fonts.Set) TargetOption {
	return func(t *Target) {
		if s != nil {
			t.Fonts = s
		}
	}
}

// WithBackground fills the page with c before any layer is drawn.
func WithBackground(c color.Color) TargetOption {
	return func(t *Target) { t.background = c }
}

// NewTarget creates a canvas of w×h inches. dpi only affects PNG output;
// zero selects DefaultDPI.
func NewTarget(format string, w, h float64, dpi int, opts ...TargetOption) (*Target, error) {
	format = strings.ToLower(format)
	if !ValidFormats[format] {
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	if !(w > 0) || !(h > 0) {
		return nil, fmt.Errorf("invalid poster size %vx%v", w, h)
	}
	if dpi <= 0 {
		dpi = DefaultDPI
	}

	t := &Target{Format: format, Width: w, Height: h, DPI: dpi, Fonts: fonts.Default()}
	for _, opt := range opts {
		opt(t)
	}

	cw, ch := vg.Length(w)*vg.Inch, vg.Length(h)*vg.Inch
	switch format {
	case FormatPNG:
		bg := t.background
		if bg == nil {
			bg = color.White
		}
		t.img = vgimg.NewWith(vgimg.UseWH(cw, ch), vgimg.UseDPI(dpi), vgimg.UseBackgroundColor(bg))
		t.Canvas = t.img
	case FormatSVG:
		t.svg = vgsvg.New(cw, ch)
		t.Canvas = t.svg
	case FormatPDF:
		t.pdf = vgpdf.New(cw, ch)
		t.Canvas = t.pdf
	}
	if t.background != nil {
		t.Fill(t.background)
	}
	return t, nil
}

// face returns the sized face for w. PDF documents register every face
// under its name with no style, so bold faces are renamed to a regular
// weight of their own variant; the glyphs stay bold.
func (t *Target) face(set *fonts.Set, w fonts.Weight, size font.Length) font.Face {
	f := set.Face(w, size)
	if t.pdf != nil && f.Font.Weight == xfont.WeightBold {
		f.Font.Variant += "Bold"
		f.Font.Weight = xfont.WeightNormal
	}
	return f
}

// Raster reports whether the target produces pixels.
func (t *Target) Raster() bool { return t.Format == FormatPNG }

// Size returns the page size in points.
func (t *Target) Size() (vg.Length, vg.Length) {
	return vg.Length(t.Width) * vg.Inch, vg.Length(t.Height) * vg.Inch
}

// PixelSize returns the raster size in pixels.
func (t *Target) PixelSize() (int, int) {
	return int(t.Width*float64(t.DPI) + 0.5), int(t.Height*float64(t.DPI) + 0.5)
}

// Fill paints the whole page with c.
func (t *Target) Fill(c color.Color) {
	w, h := t.Size()
	t.Canvas.SetColor(c)
	t.Canvas.Fill(rectPath(0, 0, w, h))
}

// Project maps a projected coordinate to page points. A degenerate viewport
// maps everything to the page center.
func (t *Target) Project(c geo.Coord) vg.Point {
	w, h := t.Size()
	vw, vh := t.Viewport.Width(), t.Viewport.Height()
	if !(vw > 0) || !(vh > 0) {
		return vg.Point{X: w / 2, Y: h / 2}
	}
	return vg.Point{
		X: vg.Length((c.X-t.Viewport.MinX)/vw) * w,
		Y: vg.Length((c.Y-t.Viewport.MinY)/vh) * h,
	}
}

// At maps poster fractions to page points.
func (t *Target) At(fx, fy float64) vg.Point {
	w, h := t.Size()
	return vg.Point{X: vg.Length(fx) * w, Y: vg.Length(fy) * h}
}

// Image returns the current raster, or nil for vector targets.
func (t *Target) Image() image.Image {
	if t.override != nil {
		return t.override
	}
	if t.img == nil {
		return nil
	}
	return t.img.Image()
}

// SetImage replaces the raster that Encode writes, after post-processing.
func (t *Target) SetImage(img image.Image) error {
	if !t.Raster() {
		return fmt.Errorf("%s target has no raster", t.Format)
	}
	t.override = img
	return nil
}

// Encode writes the poster in the target's format.
func (t *Target) Encode(w io.Writer) error {
	switch {
	case t.Raster():
		return imaging.Encode(w, t.Image(), imaging.PNG)
	case t.svg != nil:
		_, err := t.svg.WriteTo(w)
		return err
	case t.pdf != nil:
		_, err := t.pdf.WriteTo(w)
		return err
	}
	return fmt.Errorf("target %s has no canvas", t.Format)
}

func rectPath(x0, y0, x1, y1 vg.Length) vg.Path {
	var p vg.Path
	p.Move(vg.Point{X: x0, Y: y0})
	p.Line(vg.Point{X: x1, Y: y0})
	p.Line(vg.Point{X: x1, Y: y1})
	p.Line(vg.Point{X: x0, Y: y1})
	p.Close()
	return p
}
