package render

import (
	"cmp"
	"image/color"
	"slices"

	"github.com/Iwaschkin/maptoposter/pkg/classify"
	"github.com/Iwaschkin/maptoposter/pkg/geo"
	"github.com/Iwaschkin/maptoposter/pkg/style"
)

// Names of the prepared collections BuildLayers reads.
const (
	SourceRoads     = "roads"
	SourceWater     = "water"
	SourceWaterways = "waterways"
	SourceParks     = "parks"
	SourceRailways  = "railways"
)

// Base z-orders. Road classes add their classifier offset (0 to 0.6).
const (
	ZWater     = 1.0
	ZWaterways = 2.0
	ZParks     = 3.0
	ZPaths     = 4.0
	ZCasing    = 5.0
	ZCore      = 6.0
	ZRailways  = 8.0
	ZGradient  = 10.0
	ZText      = 100.0
)

// Stroke widths in points for the non-road line layers.
const (
	WaterwayWidth = 0.8
	RailwayWidth  = 0.5
)

// Kind is how a layer is drawn.
type Kind int

const (
	KindPolygon Kind = iota
	KindLine
	KindGradient
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindPolygon:
		return "polygon"
	case KindLine:
		return "line"
	case KindGradient:
		return "gradient"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// LayerStyle holds the paint of a layer.
type LayerStyle struct {
	Color color.Color
	// Width is the stroke width in points, for line layers.
	Width float64
	// Alpha multiplies the color's opacity. Zero means opaque.
	Alpha float64
	// Glow is the glow strength in [0, 1] applied around line strokes.
	Glow float64
	// Class is set on road layers.
	Class classify.ID
	// Casing marks the outline pass of a road class.
	Casing bool
}

// opacity returns the effective alpha multiplier.
func (s LayerStyle) opacity() float64 {
	if s.Alpha <= 0 || s.Alpha > 1 {
		return 1
	}
	return s.Alpha
}

// Layer is one drawable unit of a poster.
type Layer struct {
	Name     string
	ZOrder   float64
	Kind     Kind
	Features *geo.FeatureCollection
	Style    LayerStyle

	Gradient *Gradient
	Text     *TextBlock
}

// Road reports whether l is a road casing or core layer.
func (l Layer) Road() bool { return l.Style.Class != "" }

// SortLayers orders layers by z-order, keeping build order for ties.
func SortLayers(layers []Layer) {
	slices.SortStableFunc(layers, func(a, b Layer) int {
		return cmp.Compare(a.ZOrder, b.ZOrder)
	})
}

// Names returns the layer names in order.
func Names(layers []Layer) []string {
	out := make([]string, len(layers))
	for i, l := range layers {
		out[i] = l.Name
	}
	return out
}

// BuildLayers turns prepared collections into sorted data layers: water,
// waterways, parks, roads per class (casing then core) and railways. Missing
// or empty collections produce no layer. Roads are grouped by the class of
// their highway tag; classes without features produce no layer.
func BuildLayers(prepared map[string]*geo.FeatureCollection, cfg style.Config, theme style.Theme) []Layer {
	var layers []Layer

	if fc := areal(prepared[SourceWater], true); !fc.Empty() {
		layers = append(layers, Layer{
			Name: SourceWater, ZOrder: ZWater, Kind: KindPolygon, Features: fc,
			Style: LayerStyle{Color: theme.Color(style.KeyWater)},
		})
	}
	if fc := areal(prepared[SourceWaterways], false); !fc.Empty() {
		layers = append(layers, Layer{
			Name: SourceWaterways, ZOrder: ZWaterways, Kind: KindLine, Features: fc,
			Style: LayerStyle{Color: theme.Color(style.KeyWaterway), Width: WaterwayWidth},
		})
	}
	if fc := areal(prepared[SourceParks], true); !fc.Empty() {
		layers = append(layers, Layer{
			Name: SourceParks, ZOrder: ZParks, Kind: KindPolygon, Features: fc,
			Style: LayerStyle{Color: theme.Color(style.KeyParks)},
		})
	}

	layers = append(layers, roadLayers(prepared[SourceRoads], cfg, theme)...)

	if fc := areal(prepared[SourceRailways], false); !fc.Empty() {
		layers = append(layers, Layer{
			Name: SourceRailways, ZOrder: ZRailways, Kind: KindLine, Features: fc,
			Style: LayerStyle{Color: theme.Color(style.KeyRail), Width: RailwayWidth},
		})
	}

	SortLayers(layers)
	return layers
}

func roadLayers(roads *geo.FeatureCollection, cfg style.Config, theme style.Theme) []Layer {
	if roads.Empty() {
		return nil
	}

	values := make([]classify.TagValue, len(roads.Features))
	for i, f := range roads.Features {
		values[i] = classify.ParseTagValue(f.Tag(geo.HighwayTag))
	}
	cols := classify.ClassifyAll(values)

	groups := make(map[classify.ID][]geo.Feature)
	for i, f := range roads.Features {
		if f.Geometry.Areal() {
			continue
		}
		groups[cols.IDs[i]] = append(groups[cols.IDs[i]], f)
	}

	var layers []Layer
	for _, fc := range classify.Classes() {
		feats := groups[fc.ID]
		if len(feats) == 0 {
			continue
		}
		coll := &geo.FeatureCollection{Features: feats, Projected: roads.Projected}
		prefix := "roads_" + string(fc.ID)

		if w := cfg.CasingWidth(fc); w > 0 {
			layers = append(layers, Layer{
				Name: prefix + "_casing", ZOrder: ZCasing + fc.ZOrder, Kind: KindLine, Features: coll,
				Style: LayerStyle{
					Color: theme.Color(fc.CasingColorKey), Width: w, Class: fc.ID, Casing: true,
				},
			})
		}

		z := ZCore + fc.ZOrder
		if !fc.HasCasing() {
			z = ZPaths + fc.ZOrder
		}
		var glow float64
		if fc.GlowEligible {
			glow = cfg.RoadGlowStrength
		}
		layers = append(layers, Layer{
			Name: prefix + "_core", ZOrder: z, Kind: KindLine, Features: coll,
			Style: LayerStyle{
				Color: theme.Color(fc.CoreColorKey), Width: cfg.CoreWidth(fc), Glow: glow, Class: fc.ID,
			},
		})
	}
	return layers
}

// areal keeps the polygon features of fc when polygons is true and the line
// features otherwise.
func areal(fc *geo.FeatureCollection, polygons bool) *geo.FeatureCollection {
	if fc.Empty() {
		return nil
	}
	return fc.Filter(func(f geo.Feature) bool {
		return f.Geometry.Areal() == polygons
	})
}
