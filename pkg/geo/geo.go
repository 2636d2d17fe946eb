// Package geo holds the geographic data model shared by the providers, the
// layer cache and the renderers.
//
// Coordinates are carried as [Coord] values. Before projection X is the
// longitude and Y the latitude in degrees; after [Project] they are metres
// relative to the poster center.
package geo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
)

// Point is a WGS84 location.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether p is a finite coordinate within the WGS84 range.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

func (p Point) String() string {
	return fmt.Sprintf("%.4f,%.4f", p.Lat, p.Lon)
}

// Coord is a planar or geographic coordinate pair.
type Coord struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Bounds is an axis-aligned rectangle.
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// Empty reports whether b has no area and no extent.
func (b Bounds) Empty() bool {
	return b.MaxX < b.MinX || b.MaxY < b.MinY
}

// Width returns the horizontal extent.
func (b Bounds) Width() float64 { return b.MaxX - b.MinX }

// Height returns the vertical extent.
func (b Bounds) Height() float64 { return b.MaxY - b.MinY }

// Intersects reports whether b and o overlap (touching counts).
func (b Bounds) Intersects(o Bounds) bool {
	return b.MinX <= o.MaxX && o.MinX <= b.MaxX && b.MinY <= o.MaxY && o.MinY <= b.MaxY
}

func emptyBounds() Bounds {
	return Bounds{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
}

func (b *Bounds) extend(c Coord) {
	b.MinX = math.Min(b.MinX, c.X)
	b.MinY = math.Min(b.MinY, c.Y)
	b.MaxX = math.Max(b.MaxX, c.X)
	b.MaxY = math.Max(b.MaxY, c.Y)
}

// GeometryType names the shape of a [Geometry].
type GeometryType string

// Supported geometry types.
const (
	TypePoint           GeometryType = "Point"
	TypeLineString      GeometryType = "LineString"
	TypeMultiLineString GeometryType = "MultiLineString"
	TypePolygon         GeometryType = "Polygon"
	TypeMultiPolygon    GeometryType = "MultiPolygon"
)

// Geometry stores lines and polygons in a flat form. Lines holds the
// vertices of every line string; Polygons holds polygons as lists of rings,
// the first ring being the outer boundary.
type Geometry struct {
	Type     GeometryType `json:"type"`
	Lines    [][]Coord    `json:"lines,omitempty"`
	Polygons [][][]Coord  `json:"polygons,omitempty"`
}

// Areal reports whether the geometry encloses area.
func (g Geometry) Areal() bool {
	return g.Type == TypePolygon || g.Type == TypeMultiPolygon
}

// Bounds returns the bounding box of every vertex in g.
func (g Geometry) Bounds() Bounds {
	b := emptyBounds()
	g.each(func(c *Coord) { b.extend(*c) })
	return b
}

// each calls fn with a pointer to every vertex.
func (g *Geometry) each(fn func(*Coord)) {
	for _, line := range g.Lines {
		for i := range line {
			fn(&line[i])
		}
	}
	for _, poly := range g.Polygons {
		for _, ring := range poly {
			for i := range ring {
				fn(&ring[i])
			}
		}
	}
}

func (g Geometry) clone() Geometry {
	out := Geometry{Type: g.Type}
	if g.Lines != nil {
		out.Lines = make([][]Coord, len(g.Lines))
		for i, l := range g.Lines {
			out.Lines[i] = append([]Coord(nil), l...)
		}
	}
	if g.Polygons != nil {
		out.Polygons = make([][][]Coord, len(g.Polygons))
		for i, p := range g.Polygons {
			rings := make([][]Coord, len(p))
			for j, r := range p {
				rings[j] = append([]Coord(nil), r...)
			}
			out.Polygons[i] = rings
		}
	}
	return out
}

// Feature is one OSM element with its tags.
type Feature struct {
	ID       string         `json:"id,omitempty"`
	Tags     map[string]any `json:"tags,omitempty"`
	Geometry Geometry       `json:"geometry"`
}

// Tag returns the raw value of a tag, or nil when absent.
func (f Feature) Tag(key string) any {
	if f.Tags == nil {
		return nil
	}
	return f.Tags[key]
}

// FeatureCollection is an ordered set of features.
type FeatureCollection struct {
	Features  []Feature `json:"features"`
	Projected bool      `json:"projected,omitempty"`
}

// Len returns the number of features; a nil collection has none.
func (fc *FeatureCollection) Len() int {
	if fc == nil {
		return 0
	}
	return len(fc.Features)
}

// Empty reports whether the collection is nil or has no features.
func (fc *FeatureCollection) Empty() bool { return fc.Len() == 0 }

// Bounds returns the bounding box of all features.
func (fc *FeatureCollection) Bounds() Bounds {
	b := emptyBounds()
	if fc == nil {
		return b
	}
	for i := range fc.Features {
		fb := fc.Features[i].Geometry.Bounds()
		if fb.Empty() {
			continue
		}
		b.extend(Coord{fb.MinX, fb.MinY})
		b.extend(Coord{fb.MaxX, fb.MaxY})
	}
	return b
}

// Filter returns a new collection holding the features for which keep
// returns true. Geometry is shared with fc.
func (fc *FeatureCollection) Filter(keep func(Feature) bool) *FeatureCollection {
	out := &FeatureCollection{Projected: fc.Projected}
	for _, f := range fc.Features {
		if keep(f) {
			out.Features = append(out.Features, f)
		}
	}
	return out
}

// Clone returns a deep copy of fc.
func (fc *FeatureCollection) Clone() *FeatureCollection {
	if fc == nil {
		return nil
	}
	out := &FeatureCollection{
		Features:  make([]Feature, len(fc.Features)),
		Projected: fc.Projected,
	}
	for i, f := range fc.Features {
		out.Features[i] = Feature{
			ID:       f.ID,
			Tags:     cloneTags(f.Tags),
			Geometry: f.Geometry.clone(),
		}
	}
	return out
}

func cloneTags(tags map[string]any) map[string]any {
	if tags == nil {
		return nil
	}
	out := make(map[string]any, len(tags))
	for k, v := range tags {
		switch vv := v.(type) {
		case []any:
			out[k] = append([]any(nil), vv...)
		case []string:
			out[k] = append([]string(nil), vv...)
		default:
			out[k] = v
		}
	}
	return out
}

// Selector is an OSM tag query: a feature matches when any key matches one
// of its listed values, or any value when the list is empty.
type Selector map[string][]string

// Keys returns the selector keys in sorted order.
func (s Selector) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Matches reports whether the tags satisfy s.
func (s Selector) Matches(tags map[string]any) bool {
	for k, values := range s {
		v, ok := tags[k]
		if !ok {
			continue
		}
		if len(values) == 0 {
			return true
		}
		str, _ := v.(string)
		for _, want := range values {
			if str == want {
				return true
			}
		}
	}
	return false
}

// Standard selectors for the optional poster layers.
var (
	WaterSelector    = Selector{"natural": {"water"}, "waterway": {"riverbank"}}
	WaterwaySelector = Selector{"waterway": {"river", "stream", "canal"}}
	ParksSelector    = Selector{"leisure": {"park"}, "landuse": {"grass"}}
	RailwaySelector  = Selector{"railway": {"rail", "light_rail", "subway", "tram"}}
)

// HighwayTag is the OSM key that classifies street network edges.
const HighwayTag = "highway"

// ErrEmptySelector is returned by providers asked for an empty selector.
var ErrEmptySelector = errors.New("selector is empty")

// Provider supplies raw features for a location. A nil collection or
// network with a nil error means the data is absent.
type Provider interface {
	FetchFeatures(ctx context.Context, center Point, radius float64, sel Selector) (*FeatureCollection, error)
	FetchNetwork(ctx context.Context, center Point, radius float64) (*FeatureCollection, error)
}

// CompensatedDistance widens the requested radius for non-square posters so
// the cropped viewport still covers the requested area.
func CompensatedDistance(dist, width, height float64) float64 {
	if width <= 0 || height <= 0 {
		return dist
	}
	return dist * (math.Max(width, height) / math.Min(width, height)) / 4
}

// CropLimits returns the viewport around center that keeps the poster's
// aspect ratio: the shorter axis is reduced.
func CropLimits(center Coord, dist, aspect float64) Bounds {
	halfX, halfY := dist, dist
	if aspect > 1 {
		halfY = halfX / aspect
	} else if aspect > 0 {
		halfX = halfY * aspect
	}
	return Bounds{
		MinX: center.X - halfX,
		MaxX: center.X + halfX,
		MinY: center.Y - halfY,
		MaxY: center.Y + halfY,
	}
}
