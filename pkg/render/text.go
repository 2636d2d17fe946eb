package render

import (
	"image/color"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/Iwaschkin/maptoposter/pkg/fonts"
	"github.com/Iwaschkin/maptoposter/pkg/geo"
	"github.com/Iwaschkin/maptoposter/pkg/style"
	"github.com/Iwaschkin/maptoposter/pkg/typography"
)

// =============================================================================
// Gradients
// =============================================================================

// Gradient is a vertical fade of one color across a band of the poster.
// From and To are fractions of the poster height; the color is opaque at
// OpaqueAt and transparent at the other end.
type Gradient struct {
	Color    color.Color
	From, To float64
	OpaqueAt float64
}

// alphaAt returns the gradient opacity at height fraction y.
func (g Gradient) alphaAt(y float64) float64 {
	span := g.To - g.From
	if span <= 0 {
		return 0
	}
	t := (y - g.From) / span
	t = min(1, max(0, t))
	if g.OpaqueAt == g.To {
		return t
	}
	return 1 - t
}

// GradientLayers returns the bottom and top fades. strength is the height
// fraction each fade covers; zero disables them.
func GradientLayers(theme style.Theme, strength float64) []Layer {
	if strength <= 0 {
		return nil
	}
	strength = min(strength, 0.5)
	c := theme.Color(style.KeyGradient)
	return []Layer{
		{
			Name: "gradient_bottom", ZOrder: ZGradient, Kind: KindGradient,
			Gradient: &Gradient{Color: c, From: 0, To: strength, OpaqueAt: 0},
		},
		{
			Name: "gradient_top", ZOrder: ZGradient, Kind: KindGradient,
			Gradient: &Gradient{Color: c, From: 1 - strength, To: 1, OpaqueAt: 1},
		},
	}
}

// =============================================================================
// Text
// =============================================================================

// Align is the horizontal anchor of a text item.
type Align int

const (
	AlignCenter Align = iota
	AlignRight
	AlignLeft
)

// TextItem is one label. X and Y are fractions of the poster size; Y is the
// baseline of the last line, or the bottom of the descenders when Bottom is
// set. Multi-line text is separated by "\n" and stacks upward.
type TextItem struct {
	Text   string
	X, Y   float64
	Size   float64 // points
	Weight fonts.Weight
	Color  color.Color
	Alpha  float64
	Align  Align
	Bottom bool
}

// Rule is a horizontal line, in poster fractions.
type Rule struct {
	X1, X2, Y float64
	Width     float64 // points
	Color     color.Color
}

// TextBlock is the content of a text layer.
type TextBlock struct {
	Items []TextItem
	Rules []Rule
}

// Labels describes the text printed on a poster.
type Labels struct {
	Name    string
	Country string
	Center  geo.Point
	// Width and Height are the poster size in inches.
	Width, Height float64
	Typography    typography.Config
}

// TextLayer lays out labels and returns the text layer with the layout
// that produced it.
func TextLayer(l Labels, theme style.Theme) (Layer, typography.Result) {
	res := typography.Layout(l.Name, typography.Aspect{Width: l.Width, Height: l.Height}, l.Typography)
	sizes := typography.FontSizes(l.Width, res.LongestPlain())
	pos := res.Positions
	text := theme.Color(style.KeyText)

	block := &TextBlock{
		Items: []TextItem{
			{
				Text: strings.Join(res.Lines, "\n"), X: pos.CenterX, Y: pos.Name,
				Size: sizes.Main, Weight: fonts.Bold, Color: text,
			},
			{
				Text: strings.ToUpper(strings.TrimSpace(l.Country)), X: pos.CenterX, Y: pos.Country,
				Size: sizes.Sub, Weight: fonts.Light, Color: text,
			},
			{
				Text: typography.FormatCoords(l.Center.Lat, l.Center.Lon), X: pos.CenterX, Y: pos.Coords,
				Size: sizes.Coords, Weight: fonts.Regular, Color: text, Alpha: 0.7,
			},
			{
				Text: typography.Attribution, X: pos.AttributionX, Y: pos.AttributionY,
				Size: sizes.Attr, Weight: fonts.Light, Color: text, Alpha: 0.5,
				Align: AlignRight, Bottom: true,
			},
		},
		Rules: []Rule{{
			X1:    pos.CenterX - typography.DividerHalfWidth,
			X2:    pos.CenterX + typography.DividerHalfWidth,
			Y:     pos.Divider,
			Width: sizes.Scale,
			Color: text,
		}},
	}
	return Layer{Name: "text", ZOrder: ZText, Kind: KindText, Text: block}, res
}

// withAlpha returns c with its opacity multiplied by a.
func withAlpha(c color.Color, a float64) color.Color {
	if c == nil {
		c = color.Black
	}
	if a >= 1 {
		return c
	}
	cf, alpha := colorful.MakeColor(c)
	if !alpha {
		return color.Transparent
	}
	_, _, _, a0 := c.RGBA()
	r, g, b := cf.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: uint8(float64(a0>>8)*max(0, a) + 0.5)}
}
