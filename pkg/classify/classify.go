// Package classify maps raw OSM highway tag values to road style classes.
//
// Classification is total and pure: every input, including missing tags,
// empty lists and values never seen before, maps to exactly one class.
// Tags with several values (OSM "a;b", or a list after decoding) are
// classified by their first value.
package classify

import "fmt"

// ID names a road style class.
type ID string

const (
	Motorway     ID = "motorway"
	Primary      ID = "primary"
	Secondary    ID = "secondary"
	Tertiary     ID = "tertiary"
	Residential  ID = "residential"
	Unclassified ID = "unclassified"
	Path         ID = "path"
)

// FeatureClass describes how one road class is drawn. Color keys refer to
// theme entries; widths are in points at a 12 inch poster width.
type FeatureClass struct {
	ID             ID
	CoreColorKey   string
	CoreWidth      float64
	CasingColorKey string
	CasingWidth    float64 // 0 means no casing
	ZOrder         float64 // offset within the road layers; higher paints later
	GlowEligible   bool
}

// HasCasing reports whether the class is drawn with a casing pass.
func (c FeatureClass) HasCasing() bool { return c.CasingWidth > 0 }

// classes is in drawing order: minor roads first.
var classes = []FeatureClass{
	{ID: Path, CoreColorKey: "road_default", CoreWidth: 0.2, ZOrder: 0},
	{ID: Unclassified, CoreColorKey: "road_default", CoreWidth: 0.4, CasingColorKey: "bg", CasingWidth: 0.6, ZOrder: 0.1},
	{ID: Residential, CoreColorKey: "road_residential", CoreWidth: 0.4, CasingColorKey: "bg", CasingWidth: 0.6, ZOrder: 0.2},
	{ID: Tertiary, CoreColorKey: "road_tertiary", CoreWidth: 0.6, CasingColorKey: "bg", CasingWidth: 0.9, ZOrder: 0.3},
	{ID: Secondary, CoreColorKey: "road_secondary", CoreWidth: 0.8, CasingColorKey: "bg", CasingWidth: 1.2, ZOrder: 0.4, GlowEligible: true},
	{ID: Primary, CoreColorKey: "road_primary", CoreWidth: 1.0, CasingColorKey: "bg", CasingWidth: 1.5, ZOrder: 0.5, GlowEligible: true},
	{ID: Motorway, CoreColorKey: "road_motorway", CoreWidth: 1.2, CasingColorKey: "bg", CasingWidth: 1.8, ZOrder: 0.6, GlowEligible: true},
}

var byID = func() map[ID]FeatureClass {
	m := make(map[ID]FeatureClass, len(classes))
	for _, c := range classes {
		m[c.ID] = c
	}
	return m
}()

// buckets maps OSM highway values to class IDs. Values not listed are
// Unclassified.
var buckets = map[string]ID{
	"motorway":       Motorway,
	"motorway_link":  Motorway,
	"trunk":          Primary,
	"trunk_link":     Primary,
	"primary":        Primary,
	"primary_link":   Primary,
	"secondary":      Secondary,
	"secondary_link": Secondary,
	"tertiary":       Tertiary,
	"tertiary_link":  Tertiary,
	"residential":    Residential,
	"living_street":  Residential,
	"unclassified":   Unclassified,
	"footway":        Path,
	"path":           Path,
	"cycleway":       Path,
	"bridleway":      Path,
	"pedestrian":     Path,
	"steps":          Path,
	"track":          Path,
	"service":        Path,
}

// Classes returns the class table in drawing order. The slice is a copy.
func Classes() []FeatureClass {
	return append([]FeatureClass(nil), classes...)
}

// Lookup returns the class with the given ID.
func Lookup(id ID) (FeatureClass, bool) {
	c, ok := byID[id]
	return c, ok
}

// Classify returns the style class for a tag value.
func Classify(v TagValue) FeatureClass {
	raw, ok := v.First()
	if !ok {
		return byID[Unclassified]
	}
	id, ok := buckets[raw]
	if !ok {
		return byID[Unclassified]
	}
	return byID[id]
}

// Columns holds per-feature class attributes as parallel slices.
type Columns struct {
	IDs             []ID
	CoreWidths      []float64
	CasingWidths    []float64
	CoreColorKeys   []string
	CasingColorKeys []string
	ZOrders         []float64
	Glow            []bool
}

// Len returns the number of rows.
func (c Columns) Len() int { return len(c.IDs) }

// Row returns the class attributes of row i.
func (c Columns) Row(i int) FeatureClass {
	return FeatureClass{
		ID:             c.IDs[i],
		CoreColorKey:   c.CoreColorKeys[i],
		CoreWidth:      c.CoreWidths[i],
		CasingColorKey: c.CasingColorKeys[i],
		CasingWidth:    c.CasingWidths[i],
		ZOrder:         c.ZOrders[i],
		GlowEligible:   c.Glow[i],
	}
}

// ClassifyAll classifies many values at once. Each distinct value is looked
// up once; row i of the result equals Classify(values[i]).
func ClassifyAll(values []TagValue) Columns {
	n := len(values)
	cols := Columns{
		IDs:             make([]ID, n),
		CoreWidths:      make([]float64, n),
		CasingWidths:    make([]float64, n),
		CoreColorKeys:   make([]string, n),
		CasingColorKeys: make([]string, n),
		ZOrders:         make([]float64, n),
		Glow:            make([]bool, n),
	}
	memo := make(map[string]FeatureClass)
	for i, v := range values {
		k := v.memoKey()
		c, ok := memo[k]
		if !ok {
			c = Classify(v)
			memo[k] = c
		}
		cols.IDs[i] = c.ID
		cols.CoreWidths[i] = c.CoreWidth
		cols.CasingWidths[i] = c.CasingWidth
		cols.CoreColorKeys[i] = c.CoreColorKey
		cols.CasingColorKeys[i] = c.CasingColorKey
		cols.ZOrders[i] = c.ZOrder
		cols.Glow[i] = c.GlowEligible
	}
	return cols
}

func (id ID) String() string { return string(id) }

// ParseID validates a class name from configuration.
func ParseID(s string) (ID, error) {
	if _, ok := byID[ID(s)]; ok {
		return ID(s), nil
	}
	return "", fmt.Errorf("unknown road class %q", s)
}
