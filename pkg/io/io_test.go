package io

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Iwaschkin/maptoposter/pkg/geo"
)

const sample = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": "way/1", "properties": {"highway": "primary"},
     "geometry": {"type": "LineString", "coordinates": [[2.350, 48.856], [2.352, 48.857]]}},
    {"type": "Feature", "id": 42, "properties": {"natural": "water"},
     "geometry": {"type": "Polygon", "coordinates": [[[2.34, 48.85], [2.35, 48.85], [2.35, 48.86], [2.34, 48.85]]]}},
    {"type": "Feature", "properties": {"railway": "rail"},
     "geometry": {"type": "MultiLineString", "coordinates": [[[2.30, 48.80], [2.31, 48.81]], [[2.32, 48.82], [2.33, 48.83]]]}},
    {"type": "Feature", "properties": {"amenity": "cafe"},
     "geometry": {"type": "Point", "coordinates": [2.35, 48.85]}},
    {"type": "Feature", "properties": {"highway": "footway"}, "geometry": null},
    {"type": "Feature", "properties": {"highway": "residential"},
     "geometry": {"type": "LineString", "coordinates": [[139.76, 35.68], [139.77, 35.69]]}}
  ]
}`

func TestReadGeoJSON(t *testing.T) {
	fc, err := ReadGeoJSON(strings.NewReader(sample))
	if err != nil {
		t.Fatal(err)
	}
	if fc.Len() != 4 {
		t.Fatalf("Len() = %d, want 4 (point and null geometry skipped)", fc.Len())
	}
	if fc.Features[0].ID != "way/1" || fc.Features[1].ID != "42" {
		t.Errorf("ids = %q, %q", fc.Features[0].ID, fc.Features[1].ID)
	}
	want := [][]geo.Coord{{{X: 2.350, Y: 48.856}, {X: 2.352, Y: 48.857}}}
	if diff := cmp.Diff(want, fc.Features[0].Geometry.Lines); diff != "" {
		t.Errorf("LineString coords (-want +got):\n%s", diff)
	}
	if !fc.Features[1].Geometry.Areal() {
		t.Error("Polygon should be areal")
	}
	if n := len(fc.Features[2].Geometry.Lines); n != 2 {
		t.Errorf("MultiLineString parts = %d, want 2", n)
	}
}

func TestReadGeoJSONErrors(t *testing.T) {
	tests := map[string]string{
		"malformed":    `{"type":`,
		"wrong type":   `{"type": "Feature"}`,
		"bad coords":   `{"type": "FeatureCollection", "features": [{"type": "Feature", "geometry": {"type": "LineString", "coordinates": "x"}}]}`,
		"bad polygons": `{"type": "FeatureCollection", "features": [{"type": "Feature", "geometry": {"type": "Polygon", "coordinates": [1, 2]}}]}`,
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ReadGeoJSON(strings.NewReader(in)); err == nil {
				t.Error("ReadGeoJSON() should fail")
			}
		})
	}
}

func TestGeoJSONRoundTrip(t *testing.T) {
	fc, err := ReadGeoJSON(strings.NewReader(sample))
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "paris.geojson")
	if err := ExportGeoJSON(fc, path); err != nil {
		t.Fatal(err)
	}
	back, err := ImportGeoJSON(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(fc, back); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}
}

func TestWriteGeoJSONRejectsMalformedGeometry(t *testing.T) {
	fc := &geo.FeatureCollection{Features: []geo.Feature{{Geometry: geo.Geometry{Type: geo.TypeLineString}}}}
	var buf bytes.Buffer
	if err := WriteGeoJSON(fc, &buf); err == nil {
		t.Error("LineString without parts should fail to encode")
	}
}

func TestLocalProvider(t *testing.T) {
	fc, err := ReadGeoJSON(strings.NewReader(sample))
	if err != nil {
		t.Fatal(err)
	}
	p := NewLocalProvider(fc)
	ctx := context.Background()
	paris := geo.Point{Lat: 48.8566, Lon: 2.3522}

	network, err := p.FetchNetwork(ctx, paris, 2000)
	if err != nil {
		t.Fatal(err)
	}
	if network.Len() != 1 || network.Features[0].ID != "way/1" {
		t.Errorf("FetchNetwork() = %d features, want only the Paris road", network.Len())
	}

	water, _ := p.FetchFeatures(ctx, paris, 2000, geo.WaterSelector)
	if water.Len() != 1 {
		t.Errorf("FetchFeatures(water) = %d, want 1", water.Len())
	}

	// The railway is ~6km away.
	if rail, _ := p.FetchFeatures(ctx, paris, 2000, geo.RailwaySelector); rail != nil {
		t.Errorf("FetchFeatures(rail, 2km) = %d features, want absent", rail.Len())
	}
	if rail, _ := p.FetchFeatures(ctx, paris, 10000, geo.RailwaySelector); rail.Len() != 1 {
		t.Errorf("FetchFeatures(rail, 10km) = %d, want 1", rail.Len())
	}

	// Results are copies.
	network.Features[0].Tags["highway"] = "changed"
	again, _ := p.FetchNetwork(ctx, paris, 2000)
	if again.Features[0].Tag("highway") != "primary" {
		t.Error("FetchNetwork() should return a copy")
	}

	if _, err := p.FetchFeatures(ctx, paris, 100, geo.Selector{}); err != geo.ErrEmptySelector {
		t.Errorf("empty selector = %v", err)
	}
}

func TestLocalProviderCancelled(t *testing.T) {
	p := NewLocalProvider(&geo.FeatureCollection{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.FetchNetwork(ctx, geo.Point{}, 100); err != context.Canceled {
		t.Errorf("FetchNetwork() = %v, want context.Canceled", err)
	}
}
