package osm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Iwaschkin/maptoposter/pkg/geo"
)

// overpassTimeout is the server-side query timeout in seconds.
const overpassTimeout = 180

// networkQuery selects every way carrying a highway tag around center.
func networkQuery(center geo.Point, radius float64) string {
	return fmt.Sprintf("[out:json][timeout:%d];(way[%q](%s););out geom;",
		overpassTimeout, geo.HighwayTag, around(center, radius))
}

// featuresQuery selects ways and relations matching sel around center.
func featuresQuery(center geo.Point, radius float64, sel geo.Selector) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[out:json][timeout:%d];(", overpassTimeout)
	area := around(center, radius)
	for _, key := range sel.Keys() {
		filter := tagFilter(key, sel[key])
		fmt.Fprintf(&b, "way%s(%s);relation%s(%s);", filter, area, filter, area)
	}
	b.WriteString(");out geom;")
	return b.String()
}

func around(center geo.Point, radius float64) string {
	return fmt.Sprintf("around:%.0f,%s,%s", radius,
		strconv.FormatFloat(center.Lat, 'f', -1, 64),
		strconv.FormatFloat(center.Lon, 'f', -1, 64))
}

func tagFilter(key string, values []string) string {
	if len(values) == 0 {
		return fmt.Sprintf("[%q]", key)
	}
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = regexp.QuoteMeta(v)
	}
	return fmt.Sprintf("[%q~%q]", key, "^("+strings.Join(quoted, "|")+")$")
}

type overpassResponse struct {
	Remark   string            `json:"remark"`
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	Type     string            `json:"type"`
	ID       int64             `json:"id"`
	Tags     map[string]string `json:"tags"`
	Geometry []latLon          `json:"geometry"`
	Members  []overpassMember  `json:"members"`
}

type overpassMember struct {
	Type     string   `json:"type"`
	Role     string   `json:"role"`
	Geometry []latLon `json:"geometry"`
}

type latLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// parseOverpass decodes an `out geom` response. When areal is true closed
// ways become polygons; otherwise every way is a line string. Relations are
// assembled from their outer and inner member ways.
func parseOverpass(data []byte, areal bool) (*geo.FeatureCollection, error) {
	var resp overpassResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode overpass response: %w", err)
	}
	if len(resp.Elements) == 0 && strings.HasPrefix(resp.Remark, "runtime error") {
		return nil, fmt.Errorf("overpass: %s", resp.Remark)
	}

	fc := &geo.FeatureCollection{}
	for _, el := range resp.Elements {
		var g geo.Geometry
		switch el.Type {
		case "way":
			ring := coords(el.Geometry)
			if len(ring) < 2 {
				continue
			}
			if areal && closed(ring) && len(ring) >= 4 {
				g = geo.Geometry{Type: geo.TypePolygon, Polygons: [][][]geo.Coord{{ring}}}
			} else {
				g = geo.Geometry{Type: geo.TypeLineString, Lines: [][]geo.Coord{ring}}
			}
		case "relation":
			var ok bool
			if g, ok = relationGeometry(el, areal); !ok {
				continue
			}
		default:
			continue
		}
		fc.Features = append(fc.Features, geo.Feature{
			ID:       fmt.Sprintf("%s/%d", el.Type, el.ID),
			Tags:     tags(el.Tags),
			Geometry: g,
		})
	}
	return fc, nil
}

func relationGeometry(el overpassElement, areal bool) (geo.Geometry, bool) {
	var outers, inners, lines [][]geo.Coord
	for _, m := range el.Members {
		if m.Type != "way" {
			continue
		}
		ring := coords(m.Geometry)
		if len(ring) < 2 {
			continue
		}
		switch {
		case areal && closed(ring) && m.Role == "inner":
			inners = append(inners, ring)
		case areal && closed(ring):
			outers = append(outers, ring)
		default:
			lines = append(lines, ring)
		}
	}
	if len(outers) > 0 {
		polys := make([][][]geo.Coord, len(outers))
		for i, o := range outers {
			polys[i] = [][]geo.Coord{o}
		}
		for _, in := range inners {
			for i, o := range outers {
				if contains(o, in[0]) {
					polys[i] = append(polys[i], in)
					break
				}
			}
		}
		typ := geo.TypePolygon
		if len(polys) > 1 {
			typ = geo.TypeMultiPolygon
		}
		return geo.Geometry{Type: typ, Polygons: polys}, true
	}
	if len(lines) > 0 {
		return geo.Geometry{Type: geo.TypeMultiLineString, Lines: lines}, true
	}
	return geo.Geometry{}, false
}

func coords(pts []latLon) []geo.Coord {
	out := make([]geo.Coord, len(pts))
	for i, p := range pts {
		out[i] = geo.Coord{X: p.Lon, Y: p.Lat}
	}
	return out
}

func closed(ring []geo.Coord) bool {
	return len(ring) > 2 && ring[0] == ring[len(ring)-1]
}

// contains is an even-odd ray cast.
func contains(ring []geo.Coord, p geo.Coord) bool {
	in := false
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		a, b := ring[i], ring[j]
		if (a.Y > p.Y) != (b.Y > p.Y) && p.X < (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y)+a.X {
			in = !in
		}
	}
	return in
}

func tags(in map[string]string) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		// OSM encodes multiple values as "a;b".
		if strings.Contains(v, ";") {
			parts := strings.Split(v, ";")
			vals := make([]any, 0, len(parts))
			for _, p := range parts {
				if p = strings.TrimSpace(p); p != "" {
					vals = append(vals, p)
				}
			}
			out[k] = vals
			continue
		}
		out[k] = v
	}
	return out
}
