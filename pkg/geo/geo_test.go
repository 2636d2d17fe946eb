package geo

import (
	"errors"
	"math"
	"testing"
)

func line(coords ...float64) Feature {
	var l []Coord
	for i := 0; i+1 < len(coords); i += 2 {
		l = append(l, Coord{coords[i], coords[i+1]})
	}
	return Feature{
		Tags:     map[string]any{"highway": "primary"},
		Geometry: Geometry{Type: TypeLineString, Lines: [][]Coord{l}},
	}
}

func TestCompensatedDistance(t *testing.T) {
	tests := []struct {
		dist, w, h float64
		want       float64
	}{
		{29000, 12, 16, 29000 * (16.0 / 12.0) / 4},
		{1000, 10, 10, 250},
		{1000, 0, 10, 1000},
	}
	for _, tt := range tests {
		got := CompensatedDistance(tt.dist, tt.w, tt.h)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("CompensatedDistance(%v, %v, %v) = %v, want %v", tt.dist, tt.w, tt.h, got, tt.want)
		}
	}
}

func TestCropLimits(t *testing.T) {
	portrait := CropLimits(Coord{}, 1000, 0.75)
	if portrait.Width() != 1500 || portrait.Height() != 2000 {
		t.Errorf("portrait crop = %vx%v, want 1500x2000", portrait.Width(), portrait.Height())
	}

	landscape := CropLimits(Coord{X: 10, Y: 10}, 1000, 2)
	if landscape.Width() != 2000 || landscape.Height() != 1000 {
		t.Errorf("landscape crop = %vx%v, want 2000x1000", landscape.Width(), landscape.Height())
	}
	if landscape.MinX != -990 {
		t.Errorf("landscape MinX = %v, want -990", landscape.MinX)
	}
}

func TestPointValid(t *testing.T) {
	tests := []struct {
		p    Point
		want bool
	}{
		{Point{48.8566, 2.3522}, true},
		{Point{-90, 180}, true},
		{Point{91, 0}, false},
		{Point{0, -181}, false},
		{Point{math.NaN(), 0}, false},
		{Point{0, math.Inf(1)}, false},
	}
	for _, tt := range tests {
		if got := tt.p.Valid(); got != tt.want {
			t.Errorf("Point%v.Valid() = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestProjectCenterIsOrigin(t *testing.T) {
	center := Point{Lat: 52.52, Lon: 13.405}
	fc := &FeatureCollection{Features: []Feature{line(13.405, 52.52, 13.415, 52.52)}}

	out, outcome, err := Project(fc, NewMercator(center), NewEquirectangular(center))
	if err != nil {
		t.Fatalf("Project() error: %v", err)
	}
	if outcome != OutcomePrimary {
		t.Errorf("outcome = %v, want primary", outcome)
	}
	if !out.Projected {
		t.Error("projected collection should be marked Projected")
	}
	origin := out.Features[0].Geometry.Lines[0][0]
	if math.Abs(origin.X) > 1e-6 || math.Abs(origin.Y) > 1e-6 {
		t.Errorf("center projects to %v, want origin", origin)
	}
	// 0.01° of longitude at 52.52° N is roughly 677 m.
	east := out.Features[0].Geometry.Lines[0][1]
	if east.X < 600 || east.X > 750 {
		t.Errorf("0.01° east projects to %v m, want ~677", east.X)
	}
	if fc.Features[0].Geometry.Lines[0][1].X != 13.415 {
		t.Error("Project must not modify its input")
	}
}

func TestProjectFallback(t *testing.T) {
	center := Point{Lat: 89, Lon: 0}
	fc := &FeatureCollection{Features: []Feature{line(0, 89, 1, 89.5)}}

	out, outcome, err := Project(fc, NewMercator(center), NewEquirectangular(center))
	if err != nil {
		t.Fatalf("Project() error: %v", err)
	}
	if outcome != OutcomeFallback {
		t.Errorf("outcome = %v, want fallback", outcome)
	}
	if !out.Projected {
		t.Error("fallback result should be projected")
	}
}

func TestProjectUnprojected(t *testing.T) {
	center := Point{Lat: 0, Lon: 0}
	fc := &FeatureCollection{Features: []Feature{line(math.NaN(), 0, 1, 1)}}

	out, outcome, err := Project(fc, NewMercator(center), NewEquirectangular(center))
	if !errors.Is(err, ErrProjection) {
		t.Fatalf("Project() error = %v, want ErrProjection", err)
	}
	if outcome != OutcomeUnprojected {
		t.Errorf("outcome = %v, want unprojected", outcome)
	}
	if out == nil || out.Projected || out.Len() != 1 {
		t.Errorf("unprojected result should be an unmarked copy, got %+v", out)
	}
}

func TestCloneIsDeep(t *testing.T) {
	fc := &FeatureCollection{Features: []Feature{line(0, 0, 1, 1)}}
	fc.Features[0].Tags["highway"] = []any{"primary", "secondary"}

	c := fc.Clone()
	c.Features[0].Geometry.Lines[0][0].X = 99
	c.Features[0].Tags["highway"].([]any)[0] = "changed"

	if fc.Features[0].Geometry.Lines[0][0].X != 0 {
		t.Error("Clone shares geometry with original")
	}
	if fc.Features[0].Tags["highway"].([]any)[0] != "primary" {
		t.Error("Clone shares tag slices with original")
	}
}

func TestSizeBytes(t *testing.T) {
	small := &FeatureCollection{Features: []Feature{line(0, 0, 1, 1)}}
	big := &FeatureCollection{Features: []Feature{line(0, 0, 1, 1, 2, 2, 3, 3, 4, 4)}}

	s1, err := small.SizeBytes()
	if err != nil {
		t.Fatalf("SizeBytes() error: %v", err)
	}
	s2, _ := big.SizeBytes()
	if s2 <= s1 {
		t.Errorf("SizeBytes grows with vertices: small=%d big=%d", s1, s2)
	}

	bad := &FeatureCollection{Features: []Feature{{Tags: map[string]any{"x": struct{}{}}}}}
	if _, err := bad.SizeBytes(); !errors.Is(err, ErrUnmeasurable) {
		t.Errorf("SizeBytes() on unknown tag type error = %v, want ErrUnmeasurable", err)
	}

	var nilFC *FeatureCollection
	if _, err := nilFC.SizeBytes(); err == nil {
		t.Error("SizeBytes() on nil collection should fail")
	}
}

func TestSelectorMatches(t *testing.T) {
	tests := []struct {
		tags map[string]any
		want bool
	}{
		{map[string]any{"natural": "water"}, true},
		{map[string]any{"waterway": "riverbank"}, true},
		{map[string]any{"natural": "wood"}, false},
		{map[string]any{"leisure": "park"}, false},
	}
	for _, tt := range tests {
		if got := WaterSelector.Matches(tt.tags); got != tt.want {
			t.Errorf("WaterSelector.Matches(%v) = %v, want %v", tt.tags, got, tt.want)
		}
	}
	if got := (Selector{"building": nil}).Matches(map[string]any{"building": "yes"}); !got {
		t.Error("empty value list should match any value")
	}
}

func TestClip(t *testing.T) {
	fc := &FeatureCollection{Features: []Feature{
		line(0, 0, 10, 10),
		line(100, 100, 110, 110),
		line(5, 0, 5, 0), // degenerate
	}}
	fc.Features[0].ID = "a"
	fc.Features[1].ID = "b"
	fc.Features[2].ID = "c"

	got := Clip(fc, Bounds{MinX: -1, MinY: -1, MaxX: 6, MaxY: 6})
	if got.Len() != 2 {
		t.Fatalf("Clip() returned %d features, want 2", got.Len())
	}
	if got.Features[0].ID != "a" || got.Features[1].ID != "c" {
		t.Errorf("Clip() order = %s,%s, want a,c", got.Features[0].ID, got.Features[1].ID)
	}
	if NewIndex(fc).Size() != 3 {
		t.Error("index should hold all features with vertices")
	}
}
