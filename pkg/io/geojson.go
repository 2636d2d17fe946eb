package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/Iwaschkin/maptoposter/pkg/geo"
)

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Type       string         `json:"type"`
	ID         any            `json:"id,omitempty"`
	Properties map[string]any `json:"properties"`
	Geometry   *geometry      `json:"geometry"`
}

type geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// ReadGeoJSON decodes a FeatureCollection from r.
func ReadGeoJSON(r io.Reader) (*geo.FeatureCollection, error) {
	var in featureCollection
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if in.Type != "FeatureCollection" {
		return nil, fmt.Errorf("decode: type %q, want FeatureCollection", in.Type)
	}

	fc := &geo.FeatureCollection{Features: make([]geo.Feature, 0, len(in.Features))}
	for i, f := range in.Features {
		if f.Geometry == nil {
			continue
		}
		g, ok, err := decodeGeometry(f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		if !ok {
			continue
		}
		fc.Features = append(fc.Features, geo.Feature{
			ID:       featureID(f.ID),
			Tags:     f.Properties,
			Geometry: g,
		})
	}
	return fc, nil
}

// ImportGeoJSON reads a FeatureCollection from the file at path.
func ImportGeoJSON(path string) (*geo.FeatureCollection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	fc, err := ReadGeoJSON(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fc, nil
}

// WriteGeoJSON encodes fc as an indented FeatureCollection.
func WriteGeoJSON(fc *geo.FeatureCollection, w io.Writer) error {
	out := featureCollection{Type: "FeatureCollection", Features: make([]feature, 0, fc.Len())}
	if fc != nil {
		for _, f := range fc.Features {
			g, err := encodeGeometry(f.Geometry)
			if err != nil {
				return fmt.Errorf("feature %s: %w", f.ID, err)
			}
			var id any
			if f.ID != "" {
				id = f.ID
			}
			props := f.Tags
			if props == nil {
				props = map[string]any{}
			}
			out.Features = append(out.Features, feature{Type: "Feature", ID: id, Properties: props, Geometry: g})
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportGeoJSON writes fc to a file at path.
func ExportGeoJSON(fc *geo.FeatureCollection, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteGeoJSON(fc, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func featureID(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case float64:
		return fmt.Sprintf("%.0f", id)
	default:
		return fmt.Sprint(id)
	}
}

type position [2]float64

func toCoords(ps []position) []geo.Coord {
	out := make([]geo.Coord, len(ps))
	for i, p := range ps {
		out[i] = geo.Coord{X: p[0], Y: p[1]}
	}
	return out
}

func toPositions(cs []geo.Coord) []position {
	out := make([]position, len(cs))
	for i, c := range cs {
		out[i] = position{c.X, c.Y}
	}
	return out
}

func decodeGeometry(g *geometry) (geo.Geometry, bool, error) {
	switch geo.GeometryType(g.Type) {
	case geo.TypeLineString:
		var line []position
		if err := json.Unmarshal(g.Coordinates, &line); err != nil {
			return geo.Geometry{}, false, fmt.Errorf("LineString: %w", err)
		}
		return geo.Geometry{Type: geo.TypeLineString, Lines: [][]geo.Coord{toCoords(line)}}, true, nil
	case geo.TypeMultiLineString:
		var lines [][]position
		if err := json.Unmarshal(g.Coordinates, &lines); err != nil {
			return geo.Geometry{}, false, fmt.Errorf("MultiLineString: %w", err)
		}
		out := geo.Geometry{Type: geo.TypeMultiLineString}
		for _, l := range lines {
			out.Lines = append(out.Lines, toCoords(l))
		}
		return out, true, nil
	case geo.TypePolygon:
		var rings [][]position
		if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
			return geo.Geometry{}, false, fmt.Errorf("Polygon: %w", err)
		}
		return geo.Geometry{Type: geo.TypePolygon, Polygons: [][][]geo.Coord{ringsToCoords(rings)}}, true, nil
	case geo.TypeMultiPolygon:
		var polys [][][]position
		if err := json.Unmarshal(g.Coordinates, &polys); err != nil {
			return geo.Geometry{}, false, fmt.Errorf("MultiPolygon: %w", err)
		}
		out := geo.Geometry{Type: geo.TypeMultiPolygon}
		for _, p := range polys {
			out.Polygons = append(out.Polygons, ringsToCoords(p))
		}
		return out, true, nil
	default:
		return geo.Geometry{}, false, nil
	}
}

func ringsToCoords(rings [][]position) [][]geo.Coord {
	out := make([][]geo.Coord, len(rings))
	for i, r := range rings {
		out[i] = toCoords(r)
	}
	return out
}

func encodeGeometry(g geo.Geometry) (*geometry, error) {
	var coords any
	switch g.Type {
	case geo.TypeLineString:
		if len(g.Lines) != 1 {
			return nil, fmt.Errorf("LineString with %d parts", len(g.Lines))
		}
		coords = toPositions(g.Lines[0])
	case geo.TypeMultiLineString:
		lines := make([][]position, len(g.Lines))
		for i, l := range g.Lines {
			lines[i] = toPositions(l)
		}
		coords = lines
	case geo.TypePolygon, geo.TypeMultiPolygon:
		polys := make([][][]position, len(g.Polygons))
		for i, p := range g.Polygons {
			rings := make([][]position, len(p))
			for j, r := range p {
				rings[j] = toPositions(r)
			}
			polys[i] = rings
		}
		if g.Type == geo.TypePolygon {
			if len(polys) != 1 {
				return nil, fmt.Errorf("Polygon with %d parts", len(polys))
			}
			coords = polys[0]
		} else {
			coords = polys
		}
	default:
		return nil, fmt.Errorf("unsupported geometry type %q", g.Type)
	}
	raw, err := json.Marshal(coords)
	if err != nil {
		return nil, err
	}
	return &geometry{Type: string(g.Type), Coordinates: raw}, nil
}
