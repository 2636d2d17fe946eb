package io

import (
	"context"
	"math"

	"github.com/Iwaschkin/maptoposter/pkg/geo"
)

const metersPerDegree = 111_320.0

// LocalProvider serves geodata from an in-memory feature collection.
type LocalProvider struct {
	index *geo.Index
}

// NewLocalProvider indexes fc. Coordinates must be geographic.
func NewLocalProvider(fc *geo.FeatureCollection) *LocalProvider {
	return &LocalProvider{index: geo.NewIndex(fc)}
}

// OpenLocalProvider reads a GeoJSON file into a LocalProvider.
func OpenLocalProvider(path string) (*LocalProvider, error) {
	fc, err := ImportGeoJSON(path)
	if err != nil {
		return nil, err
	}
	return NewLocalProvider(fc), nil
}

// Size returns the number of indexed features.
func (p *LocalProvider) Size() int { return p.index.Size() }

// FetchNetwork returns the features with a highway tag near center.
func (p *LocalProvider) FetchNetwork(ctx context.Context, center geo.Point, radius float64) (*geo.FeatureCollection, error) {
	return p.query(ctx, center, radius, func(f geo.Feature) bool {
		return f.Tag(geo.HighwayTag) != nil && !f.Geometry.Areal()
	})
}

// FetchFeatures returns the features matching sel near center.
func (p *LocalProvider) FetchFeatures(ctx context.Context, center geo.Point, radius float64, sel geo.Selector) (*geo.FeatureCollection, error) {
	if len(sel) == 0 {
		return nil, geo.ErrEmptySelector
	}
	return p.query(ctx, center, radius, func(f geo.Feature) bool { return sel.Matches(f.Tags) })
}

func (p *LocalProvider) query(ctx context.Context, center geo.Point, radius float64, keep func(geo.Feature) bool) (*geo.FeatureCollection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := &geo.FeatureCollection{}
	for _, f := range p.index.Query(searchBounds(center, radius)) {
		if keep(f) {
			out.Features = append(out.Features, f)
		}
	}
	if out.Empty() {
		return nil, nil
	}
	// Callers own the result; the index keeps the original.
	return out.Clone(), nil
}

// searchBounds approximates a radius in metres as a lon/lat box.
func searchBounds(center geo.Point, radius float64) geo.Bounds {
	dLat := radius / metersPerDegree
	cos := math.Cos(center.Lat * math.Pi / 180)
	dLon := dLat
	if cos > 1e-9 {
		dLon = radius / (metersPerDegree * cos)
	}
	return geo.Bounds{
		MinX: center.Lon - dLon,
		MaxX: center.Lon + dLon,
		MinY: center.Lat - dLat,
		MaxY: center.Lat + dLat,
	}
}

var _ geo.Provider = (*LocalProvider)(nil)
