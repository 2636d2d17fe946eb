// Package osm fetches street networks and map features from OpenStreetMap.
//
// [Provider] implements geo.Provider on top of the Overpass API; [Geocoder]
// resolves place names through Nominatim. Both keep raw responses in a
// cache.Cache so repeated posters of the same area do not hit the network.
package osm

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Iwaschkin/maptoposter/pkg/cache"
	perrors "github.com/Iwaschkin/maptoposter/pkg/errors"
	"github.com/Iwaschkin/maptoposter/pkg/geo"
	"github.com/Iwaschkin/maptoposter/pkg/httputil"
)

// Public endpoints.
const (
	DefaultOverpassURL  = "https://overpass-api.de/api/interpreter"
	DefaultNominatimURL = "https://nominatim.openstreetmap.org/search"
)

// Request spacing per service usage policy.
const (
	overpassInterval  = 500 * time.Millisecond
	nominatimInterval = time.Second
)

// Config configures a Provider or Geocoder. Zero values select defaults.
type Config struct {
	OverpassURL  string
	NominatimURL string
	Cache        cache.Cache
	Keyer        cache.Keyer
	Client       *httputil.Client
	Logger       *log.Logger
	// Refresh bypasses cached responses (they are still written).
	Refresh bool
}

func (c *Config) setDefaults(interval time.Duration) {
	if c.OverpassURL == "" {
		c.OverpassURL = DefaultOverpassURL
	}
	if c.NominatimURL == "" {
		c.NominatimURL = DefaultNominatimURL
	}
	if c.Cache == nil {
		c.Cache = cache.NewNullCache()
	}
	if c.Keyer == nil {
		c.Keyer = cache.NewDefaultKeyer()
	}
	if c.Logger == nil {
		c.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if c.Client == nil {
		c.Client = httputil.NewClient(httputil.Options{MinInterval: interval, Logger: c.Logger})
	}
}

// Provider fetches features from Overpass.
type Provider struct {
	cfg Config
}

// NewProvider creates a Provider.
func NewProvider(cfg Config) *Provider {
	cfg.setDefaults(overpassInterval)
	return &Provider{cfg: cfg}
}

// FetchNetwork returns every highway way around center as line strings.
// An empty result is reported as a nil collection.
func (p *Provider) FetchNetwork(ctx context.Context, center geo.Point, radius float64) (*geo.FeatureCollection, error) {
	key := p.cfg.Keyer.GeodataKey("network", center, radius, nil)
	return p.fetch(ctx, key, networkQuery(center, radius), false)
}

// FetchFeatures returns ways and relations matching sel around center.
func (p *Provider) FetchFeatures(ctx context.Context, center geo.Point, radius float64, sel geo.Selector) (*geo.FeatureCollection, error) {
	if len(sel) == 0 {
		return nil, geo.ErrEmptySelector
	}
	key := p.cfg.Keyer.GeodataKey("features", center, radius, sel)
	fc, err := p.fetch(ctx, key, featuresQuery(center, radius, sel), true)
	if err != nil || fc == nil {
		return fc, err
	}
	// Overpass regex filters may return near misses for multi-valued tags.
	fc = fc.Filter(func(f geo.Feature) bool { return sel.Matches(f.Tags) })
	if fc.Empty() {
		return nil, nil
	}
	return fc, nil
}

func (p *Provider) fetch(ctx context.Context, key, query string, areal bool) (*geo.FeatureCollection, error) {
	logger := p.cfg.Logger.With("key", key)

	var data []byte
	if !p.cfg.Refresh {
		if cached, ok, err := p.cfg.Cache.Get(ctx, key); err != nil {
			logger.Warn("geodata cache read failed", "error", err)
		} else if ok {
			logger.Debug("geodata cache hit")
			data = cached
		}
	}

	if data == nil {
		body, err := p.cfg.Client.PostForm(ctx, p.cfg.OverpassURL, url.Values{"data": {query}})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, perrors.Wrap(transportCode(err), err, "overpass query")
		}
		data = body
		if err := p.cfg.Cache.Set(ctx, key, data, cache.TTLGeodata); err != nil {
			logger.Warn("geodata cache write failed", "error", err)
		}
	}

	fc, err := parseOverpass(data, areal)
	if err != nil {
		_ = p.cfg.Cache.Delete(ctx, key)
		return nil, perrors.Wrap(perrors.ErrCodeInvalidFormat, err, "overpass response")
	}
	if fc.Empty() {
		return nil, nil
	}
	logger.Debug("geodata loaded", "features", fc.Len())
	return fc, nil
}

var _ geo.Provider = (*Provider)(nil)

// Geocoder resolves city names to coordinates through Nominatim.
type Geocoder struct {
	cfg Config
}

// NewGeocoder creates a Geocoder.
func NewGeocoder(cfg Config) *Geocoder {
	cfg.setDefaults(nominatimInterval)
	return &Geocoder{cfg: cfg}
}

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode returns the coordinates of city in country.
func (g *Geocoder) Geocode(ctx context.Context, city, country string) (geo.Point, error) {
	key := g.cfg.Keyer.GeocodeKey(city, country)

	var pt geo.Point
	if !g.cfg.Refresh {
		if err := cache.GetJSON(ctx, g.cfg.Cache, key, &pt); err == nil {
			g.cfg.Logger.Debug("geocode cache hit", "city", city, "country", country)
			return pt, nil
		}
	}

	q := url.Values{
		"q":      {fmt.Sprintf("%s, %s", city, country)},
		"format": {"json"},
		"limit":  {"1"},
	}
	var results []nominatimResult
	if err := g.cfg.Client.GetJSON(ctx, g.cfg.NominatimURL+"?"+q.Encode(), &results); err != nil {
		if ctx.Err() != nil {
			return geo.Point{}, ctx.Err()
		}
		return geo.Point{}, perrors.Wrap(transportCode(err), err, "geocode %s, %s", city, country)
	}
	if len(results) == 0 {
		return geo.Point{}, perrors.New(perrors.ErrCodeLocationNotFound, "could not find coordinates for %s, %s", city, country)
	}

	var err error
	if pt, err = parsePoint(results[0].Lat, results[0].Lon); err != nil {
		return geo.Point{}, perrors.Wrap(perrors.ErrCodeInvalidFormat, err, "nominatim result for %s", city)
	}
	g.cfg.Logger.Info("geocoded", "city", city, "address", results[0].DisplayName, "point", pt)

	if err := cache.SetJSON(ctx, g.cfg.Cache, key, pt, cache.TTLGeocode); err != nil {
		g.cfg.Logger.Warn("geocode cache write failed", "error", err)
	}
	return pt, nil
}

func parsePoint(lat, lon string) (geo.Point, error) {
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return geo.Point{}, err
	}
	lo, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return geo.Point{}, err
	}
	pt := geo.Point{Lat: la, Lon: lo}
	if !pt.Valid() {
		return geo.Point{}, fmt.Errorf("coordinates out of range: %s", pt)
	}
	return pt, nil
}

// transportCode classifies a failed request.
func transportCode(err error) perrors.Code {
	if perrors.Has(err, perrors.ErrCodeRateLimited) {
		return perrors.ErrCodeRateLimited
	}
	return perrors.ErrCodeNetwork
}
