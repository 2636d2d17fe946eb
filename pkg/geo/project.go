package geo

import (
	"errors"
	"fmt"
	"math"
)

const earthRadius = 6378137.0

// maxMercatorLat is the latitude beyond which spherical Mercator diverges.
const maxMercatorLat = 85.05112878

// ErrProjection is returned when a coordinate cannot be projected.
var ErrProjection = errors.New("projection failed")

// Projection maps geographic coordinates (X=lon, Y=lat) to metres around a
// center point.
type Projection interface {
	Name() string
	Project(c Coord) (Coord, error)
}

// Mercator is a spherical Mercator projection scaled so distances are true
// at the center latitude.
type Mercator struct {
	center Point
	scale  float64
	cx, cy float64
}

// NewMercator returns a Mercator projection centered on p.
func NewMercator(p Point) *Mercator {
	m := &Mercator{center: p, scale: math.Cos(p.Lat * math.Pi / 180)}
	m.cx, m.cy = mercator(p.Lon, p.Lat)
	return m
}

func mercator(lon, lat float64) (float64, float64) {
	x := earthRadius * lon * math.Pi / 180
	y := earthRadius * math.Log(math.Tan(math.Pi/4+lat*math.Pi/360))
	return x, y
}

// Name implements Projection.
func (m *Mercator) Name() string { return "mercator" }

// Project implements Projection.
func (m *Mercator) Project(c Coord) (Coord, error) {
	if !finite(c) || math.Abs(c.Y) > maxMercatorLat || math.Abs(m.center.Lat) > maxMercatorLat {
		return Coord{}, fmt.Errorf("%w: mercator cannot represent %v", ErrProjection, c)
	}
	x, y := mercator(c.X, c.Y)
	return Coord{X: (x - m.cx) * m.scale, Y: (y - m.cy) * m.scale}, nil
}

// Equirectangular is the direct transform used when Mercator fails: a plate
// carrée scaled by the cosine of the center latitude.
type Equirectangular struct {
	center Point
	scale  float64
}

// NewEquirectangular returns an equirectangular projection centered on p.
func NewEquirectangular(p Point) *Equirectangular {
	return &Equirectangular{center: p, scale: math.Cos(p.Lat * math.Pi / 180)}
}

// Name implements Projection.
func (e *Equirectangular) Name() string { return "equirectangular" }

// Project implements Projection.
func (e *Equirectangular) Project(c Coord) (Coord, error) {
	if !finite(c) {
		return Coord{}, fmt.Errorf("%w: non-finite coordinate %v", ErrProjection, c)
	}
	const k = earthRadius * math.Pi / 180
	return Coord{
		X: (c.X - e.center.Lon) * k * e.scale,
		Y: (c.Y - e.center.Lat) * k,
	}, nil
}

func finite(c Coord) bool {
	return !math.IsNaN(c.X) && !math.IsNaN(c.Y) && !math.IsInf(c.X, 0) && !math.IsInf(c.Y, 0)
}

// Outcome records which projection a collection ended up in.
type Outcome int

const (
	OutcomePrimary     Outcome = iota // primary projection succeeded
	OutcomeFallback                   // primary failed, fallback succeeded
	OutcomeUnprojected                // both failed; coordinates left in degrees
)

func (o Outcome) String() string {
	switch o {
	case OutcomePrimary:
		return "primary"
	case OutcomeFallback:
		return "fallback"
	default:
		return "unprojected"
	}
}

// Project returns a projected copy of fc. It tries primary first and
// fallback second; if both fail the returned collection is an unprojected
// copy and err describes the last failure. An already projected collection
// is returned as a copy unchanged.
func Project(fc *FeatureCollection, primary, fallback Projection) (*FeatureCollection, Outcome, error) {
	if fc == nil {
		return nil, OutcomePrimary, nil
	}
	if fc.Projected {
		return fc.Clone(), OutcomePrimary, nil
	}
	out, err := projectWith(fc, primary)
	if err == nil {
		return out, OutcomePrimary, nil
	}
	if fallback != nil {
		var ferr error
		if out, ferr = projectWith(fc, fallback); ferr == nil {
			return out, OutcomeFallback, nil
		}
		err = errors.Join(err, ferr)
	}
	return fc.Clone(), OutcomeUnprojected, err
}

func projectWith(fc *FeatureCollection, p Projection) (*FeatureCollection, error) {
	out := fc.Clone()
	var perr error
	for i := range out.Features {
		out.Features[i].Geometry.each(func(c *Coord) {
			if perr != nil {
				return
			}
			pc, err := p.Project(*c)
			if err != nil {
				perr = err
				return
			}
			*c = pc
		})
		if perr != nil {
			return nil, fmt.Errorf("%s: %w", p.Name(), perr)
		}
	}
	out.Projected = true
	return out, nil
}
