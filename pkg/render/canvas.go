package render

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/vg"

	"github.com/Iwaschkin/maptoposter/pkg/fonts"
	"github.com/Iwaschkin/maptoposter/pkg/geo"
)

const (
	gradientBands  = 96
	lineSpacing    = 1.15
	glowWidthScale = 3.0
	glowAlpha      = 0.35
)

var (
	errMissingGradient = errors.New("gradient layer has no gradient")
	errMissingText     = errors.New("text layer has no text block")
)

// Canvas draws every layer as vector paths on the target's vg canvas.
type Canvas struct{}

var _ Backend = (*Canvas)(nil)

// NewCanvas returns the canvas backend.
func NewCanvas() *Canvas { return &Canvas{} }

func (*Canvas) Name() string { return BackendCanvas }

func (*Canvas) Capabilities() Capabilities {
	return Capabilities{CanRenderRoads: true, CanApplyGlow: true}
}

func (*Canvas) Available() bool { return true }

// RenderLayers draws layers by ascending z-order. It stops at the first
// failing layer or when ctx is done.
func (c *Canvas) RenderLayers(ctx context.Context, layers []Layer, t *Target) error {
	sorted := slices.Clone(layers)
	SortLayers(sorted)
	for _, l := range sorted {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.drawLayer(l, t); err != nil {
			return err
		}
	}
	return nil
}

func (c *Canvas) drawLayer(l Layer, t *Target) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &BackendError{Backend: c.Name(), Layer: l.Name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	switch l.Kind {
	case KindPolygon:
		fillFeatures(t, l)
	case KindLine:
		strokeFeatures(t, l)
	case KindGradient:
		if l.Gradient == nil {
			return &BackendError{Backend: c.Name(), Layer: l.Name, Err: errMissingGradient}
		}
		drawGradient(t, *l.Gradient)
	case KindText:
		if l.Text == nil {
			return &BackendError{Backend: c.Name(), Layer: l.Name, Err: errMissingText}
		}
		drawText(t, l.Text)
	default:
		return &BackendError{Backend: c.Name(), Layer: l.Name, Err: fmt.Errorf("unsupported layer kind %v", l.Kind)}
	}
	return nil
}

// =============================================================================
// Features
// =============================================================================

func fillFeatures(t *Target, l Layer) {
	if l.Features.Empty() {
		return
	}
	t.Canvas.SetColor(withAlpha(l.Style.Color, l.Style.opacity()))
	for _, f := range l.Features.Features {
		for _, poly := range f.Geometry.Polygons {
			if p := polygonPath(t, poly); len(p) > 0 {
				t.Canvas.Fill(p)
			}
		}
	}
}

func strokeFeatures(t *Target, l Layer) {
	if l.Features.Empty() || l.Style.Width <= 0 {
		return
	}
	paths := make([]vg.Path, 0, len(l.Features.Features))
	for _, f := range l.Features.Features {
		if p := linePath(t, f.Geometry); len(p) > 0 {
			paths = append(paths, p)
		}
	}

	if l.Style.Glow > 0 {
		t.Canvas.SetLineWidth(vg.Points(l.Style.Width * (1 + glowWidthScale*l.Style.Glow)))
		t.Canvas.SetColor(withAlpha(l.Style.Color, glowAlpha*l.Style.Glow*l.Style.opacity()))
		for _, p := range paths {
			t.Canvas.Stroke(p)
		}
	}

	t.Canvas.SetLineWidth(vg.Points(l.Style.Width))
	t.Canvas.SetLineDash(nil, 0)
	t.Canvas.SetColor(withAlpha(l.Style.Color, l.Style.opacity()))
	for _, p := range paths {
		t.Canvas.Stroke(p)
	}
}

// linePath builds one path holding every line of g. Polygon rings are
// included as closed outlines.
func linePath(t *Target, g geo.Geometry) vg.Path {
	var p vg.Path
	add := func(pts []geo.Coord, closed bool) {
		if len(pts) < 2 {
			return
		}
		p.Move(t.Project(pts[0]))
		for _, c := range pts[1:] {
			p.Line(t.Project(c))
		}
		if closed {
			p.Close()
		}
	}
	for _, line := range g.Lines {
		add(line, false)
	}
	for _, poly := range g.Polygons {
		for _, ring := range poly {
			add(ring, true)
		}
	}
	return p
}

// polygonPath builds a fillable path: the outer ring counter-clockwise and
// the holes clockwise, so non-zero winding leaves the holes empty.
func polygonPath(t *Target, rings [][]geo.Coord) vg.Path {
	var p vg.Path
	for i, ring := range rings {
		if len(ring) < 3 {
			continue
		}
		ccw := signedArea(ring) > 0
		reverse := ccw != (i == 0)
		n := len(ring)
		at := func(j int) geo.Coord {
			if reverse {
				return ring[n-1-j]
			}
			return ring[j]
		}
		p.Move(t.Project(at(0)))
		for j := 1; j < n; j++ {
			p.Line(t.Project(at(j)))
		}
		p.Close()
	}
	return p
}

// signedArea is positive for counter-clockwise rings.
func signedArea(ring []geo.Coord) float64 {
	var a float64
	for i := range ring {
		j := (i + 1) % len(ring)
		a += ring[i].X*ring[j].Y - ring[j].X*ring[i].Y
	}
	return a / 2
}

// =============================================================================
// Gradient and Text
// =============================================================================

func drawGradient(t *Target, g Gradient) {
	w, _ := t.Size()
	step := (g.To - g.From) / gradientBands
	if step <= 0 {
		return
	}
	for i := 0; i < gradientBands; i++ {
		y0 := g.From + float64(i)*step
		a := g.alphaAt(y0 + step/2)
		if a <= 0 {
			continue
		}
		lo, hi := t.At(0, y0), t.At(0, y0+step)
		t.Canvas.SetColor(withAlpha(g.Color, a))
		// Bands overlap by a hair so antialiased edges do not show seams.
		t.Canvas.Fill(rectPath(0, lo.Y, w, hi.Y+0.25))
	}
}

func drawText(t *Target, block *TextBlock) {
	for _, r := range block.Rules {
		if r.Width <= 0 {
			continue
		}
		var p vg.Path
		p.Move(t.At(r.X1, r.Y))
		p.Line(t.At(r.X2, r.Y))
		t.Canvas.SetLineWidth(vg.Points(r.Width))
		t.Canvas.SetColor(withAlpha(r.Color, 1))
		t.Canvas.Stroke(p)
	}

	set := t.Fonts
	if set == nil {
		set = fonts.Default()
	}
	for _, item := range block.Items {
		if strings.TrimSpace(item.Text) == "" || item.Size <= 0 {
			continue
		}
		drawItem(t, set, item)
	}
}

func drawItem(t *Target, set *fonts.Set, item TextItem) {
	face := t.face(set, item.Weight, font.Length(item.Size))
	ext := face.Extents()
	anchor := t.At(item.X, item.Y)
	if item.Bottom {
		anchor.Y += ext.Descent
	}

	alpha := item.Alpha
	if alpha <= 0 {
		alpha = 1
	}
	t.Canvas.SetColor(withAlpha(item.Color, alpha))

	lines := strings.Split(item.Text, "\n")
	step := ext.Height * lineSpacing
	for i, line := range lines {
		y := anchor.Y + vg.Length(len(lines)-1-i)*step
		x := anchor.X
		switch item.Align {
		case AlignCenter:
			x -= face.Width(line) / 2
		case AlignRight:
			x -= face.Width(line)
		}
		t.Canvas.FillString(face, vg.Point{X: x, Y: y}, line)
	}
}
