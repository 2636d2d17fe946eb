package cache

import (
	"fmt"
	"strings"

	"github.com/Iwaschkin/maptoposter/pkg/geo"
)

// Keyer builds blob store keys. Keys are plain strings; backends hash or
// prefix them as they need.
type Keyer interface {
	// GeodataKey keys a provider response. kind is "network" or "features";
	// sel is nil for the street network.
	GeodataKey(kind string, center geo.Point, dist float64, sel geo.Selector) string
	// GeocodeKey keys a geocoding lookup.
	GeocodeKey(city, country string) string
}

// DefaultKeyer produces keys of the form kind_lat_lon_dist[_tags].
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default key scheme.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

func (DefaultKeyer) GeodataKey(kind string, center geo.Point, dist float64, sel geo.Selector) string {
	key := fmt.Sprintf("geodata:%s_%.6f_%.6f_%.0f", kind, center.Lat, center.Lon, dist)
	if len(sel) == 0 {
		return key
	}
	parts := make([]string, 0, len(sel))
	for _, k := range sel.Keys() {
		parts = append(parts, k+"="+strings.Join(sel[k], "|"))
	}
	return key + "_" + Hash([]byte(strings.Join(parts, ";")))[:12]
}

func (DefaultKeyer) GeocodeKey(city, country string) string {
	return hashKey("geocode", strings.ToLower(strings.TrimSpace(city)), strings.ToLower(strings.TrimSpace(country)))
}

var _ Keyer = DefaultKeyer{}
