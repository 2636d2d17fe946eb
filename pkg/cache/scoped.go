package cache

import "github.com/Iwaschkin/maptoposter/pkg/geo"

// ScopedKeyer wraps a Keyer with a prefix so that responses from different
// provider endpoints never share entries:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "overpass.kumi.systems:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix. A nil inner keyer means
// the default scheme.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

func (k *ScopedKeyer) GeodataKey(kind string, center geo.Point, dist float64, sel geo.Selector) string {
	return k.prefix + k.inner.GeodataKey(kind, center, dist, sel)
}

func (k *ScopedKeyer) GeocodeKey(city, country string) string {
	return k.prefix + k.inner.GeocodeKey(city, country)
}
