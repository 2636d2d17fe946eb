package osm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Iwaschkin/maptoposter/pkg/cache"
	perrors "github.com/Iwaschkin/maptoposter/pkg/errors"
	"github.com/Iwaschkin/maptoposter/pkg/geo"
	"github.com/Iwaschkin/maptoposter/pkg/httputil"
)

const networkJSON = `{"elements":[
 {"type":"way","id":1,"tags":{"highway":"primary","name":"Rue de Rivoli"},
  "geometry":[{"lat":48.856,"lon":2.350},{"lat":48.857,"lon":2.352}]},
 {"type":"way","id":2,"tags":{"highway":"footway;path"},
  "geometry":[{"lat":48.855,"lon":2.351},{"lat":48.855,"lon":2.353}]},
 {"type":"way","id":3,"tags":{"highway":"residential"},"geometry":[{"lat":48.855,"lon":2.351}]}
]}`

const waterJSON = `{"elements":[
 {"type":"way","id":10,"tags":{"natural":"water"},
  "geometry":[{"lat":0,"lon":0},{"lat":0,"lon":1},{"lat":1,"lon":1},{"lat":0,"lon":0}]},
 {"type":"relation","id":11,"tags":{"natural":"water","type":"multipolygon"},"members":[
  {"type":"way","role":"outer","geometry":[{"lat":0,"lon":0},{"lat":0,"lon":10},{"lat":10,"lon":10},{"lat":10,"lon":0},{"lat":0,"lon":0}]},
  {"type":"way","role":"inner","geometry":[{"lat":4,"lon":4},{"lat":4,"lon":6},{"lat":6,"lon":6},{"lat":4,"lon":4}]}
 ]},
 {"type":"way","id":12,"tags":{"natural":"wood"},
  "geometry":[{"lat":0,"lon":0},{"lat":0,"lon":1},{"lat":1,"lon":1},{"lat":0,"lon":0}]}
]}`

func overpassServer(t *testing.T, body string, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(r.PostForm.Get("data"), "[out:json]") {
			t.Errorf("unexpected query %q", r.PostForm.Get("data"))
		}
		w.Write([]byte(body))
	}))
}

func newTestProvider(srv *httptest.Server, c cache.Cache) *Provider {
	return NewProvider(Config{
		OverpassURL: srv.URL,
		Cache:       c,
		Client:      httputil.NewClient(httputil.Options{HTTPClient: srv.Client(), RetryDelay: time.Millisecond}),
	})
}

func TestFetchNetwork(t *testing.T) {
	var calls atomic.Int32
	srv := overpassServer(t, networkJSON, &calls)
	defer srv.Close()

	fc, err := newTestProvider(srv, nil).FetchNetwork(context.Background(), geo.Point{Lat: 48.8566, Lon: 2.3522}, 3000)
	if err != nil {
		t.Fatal(err)
	}
	if fc.Len() != 2 {
		t.Fatalf("features = %d, want 2 (degenerate way dropped)", fc.Len())
	}
	rivoli := fc.Features[0]
	if rivoli.ID != "way/1" || rivoli.Geometry.Type != geo.TypeLineString {
		t.Errorf("feature 0 = %+v", rivoli)
	}
	if got := rivoli.Geometry.Lines[0][0]; got != (geo.Coord{X: 2.350, Y: 48.856}) {
		t.Errorf("first vertex = %v, want lon/lat order", got)
	}
	multi, ok := fc.Features[1].Tag("highway").([]any)
	if !ok || len(multi) != 2 || multi[0] != "footway" {
		t.Errorf("multi-valued tag = %#v", fc.Features[1].Tag("highway"))
	}
	if fc.Projected {
		t.Error("provider output must be geographic")
	}
}

func TestFetchFeaturesPolygons(t *testing.T) {
	var calls atomic.Int32
	srv := overpassServer(t, waterJSON, &calls)
	defer srv.Close()

	fc, err := newTestProvider(srv, nil).FetchFeatures(context.Background(), geo.Point{}, 1000, geo.WaterSelector)
	if err != nil {
		t.Fatal(err)
	}
	if fc.Len() != 2 {
		t.Fatalf("features = %d, want 2 (wood filtered out)", fc.Len())
	}
	if fc.Features[0].Geometry.Type != geo.TypePolygon {
		t.Errorf("closed way should be a polygon, got %s", fc.Features[0].Geometry.Type)
	}
	rel := fc.Features[1].Geometry
	if rel.Type != geo.TypePolygon || len(rel.Polygons[0]) != 2 {
		t.Errorf("relation should be one polygon with a hole, got %s with %d rings", rel.Type, len(rel.Polygons[0]))
	}
}

func TestFetchFeaturesEmptySelector(t *testing.T) {
	p := NewProvider(Config{})
	if _, err := p.FetchFeatures(context.Background(), geo.Point{}, 100, nil); err != geo.ErrEmptySelector {
		t.Errorf("FetchFeatures(nil) = %v, want ErrEmptySelector", err)
	}
}

func TestFetchAbsentData(t *testing.T) {
	var calls atomic.Int32
	srv := overpassServer(t, `{"elements":[]}`, &calls)
	defer srv.Close()

	fc, err := newTestProvider(srv, nil).FetchFeatures(context.Background(), geo.Point{}, 1000, geo.RailwaySelector)
	if err != nil || fc != nil {
		t.Errorf("FetchFeatures() = %v, %v; want nil, nil", fc, err)
	}
}

func TestFetchUsesBlobStore(t *testing.T) {
	var calls atomic.Int32
	srv := overpassServer(t, networkJSON, &calls)
	defer srv.Close()

	store, _ := cache.NewFileCache(t.TempDir())
	p := newTestProvider(srv, store)
	ctx := context.Background()
	center := geo.Point{Lat: 48.8566, Lon: 2.3522}

	for range 3 {
		if _, err := p.FetchNetwork(ctx, center, 3000); err != nil {
			t.Fatal(err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("overpass calls = %d, want 1", calls.Load())
	}

	p.cfg.Refresh = true
	_, _ = p.FetchNetwork(ctx, center, 3000)
	if calls.Load() != 2 {
		t.Errorf("refresh should bypass the cache, calls = %d", calls.Load())
	}
}

func TestFetchNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestProvider(srv, nil).FetchNetwork(context.Background(), geo.Point{}, 100)
	if !perrors.Is(err, perrors.ErrCodeNetwork) {
		t.Errorf("FetchNetwork() = %v, want NETWORK_ERROR", err)
	}
}

func TestFetchNetworkRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestProvider(srv, nil).FetchNetwork(context.Background(), geo.Point{}, 100)
	if got := perrors.GetCode(err); got != perrors.ErrCodeRateLimited {
		t.Errorf("GetCode(FetchNetwork()) = %v, want RATE_LIMITED (err %v)", got, err)
	}
}

func TestQueries(t *testing.T) {
	q := networkQuery(geo.Point{Lat: 48.8566, Lon: 2.3522}, 2999.6)
	want := `[out:json][timeout:180];(way["highway"](around:3000,48.8566,2.3522););out geom;`
	if q != want {
		t.Errorf("networkQuery() =\n%s\nwant\n%s", q, want)
	}

	q = featuresQuery(geo.Point{Lat: 1, Lon: 2}, 100, geo.Selector{"waterway": {"river", "canal"}, "natural": nil})
	for _, part := range []string{
		`way["natural"](around:100,1,2);`,
		`relation["waterway"~"^(river|canal)$"](around:100,1,2);`,
	} {
		if !strings.Contains(q, part) {
			t.Errorf("featuresQuery() missing %s in %s", part, q)
		}
	}
}

func TestGeocode(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch r.URL.Query().Get("q") {
		case "Tokyo, Japan":
			w.Write([]byte(`[{"lat":"35.6768601","lon":"139.7638947","display_name":"Tokyo, Japan"}]`))
		default:
			w.Write([]byte(`[]`))
		}
	}))
	defer srv.Close()

	store, _ := cache.NewFileCache(t.TempDir())
	g := NewGeocoder(Config{
		NominatimURL: srv.URL,
		Cache:        store,
		Client:       httputil.NewClient(httputil.Options{HTTPClient: srv.Client()}),
	})
	ctx := context.Background()

	pt, err := g.Geocode(ctx, "Tokyo", "Japan")
	if err != nil {
		t.Fatal(err)
	}
	if pt.Lat != 35.6768601 || pt.Lon != 139.7638947 {
		t.Errorf("Geocode() = %v", pt)
	}
	if _, err := g.Geocode(ctx, "tokyo", "japan"); err != nil || calls.Load() != 1 {
		t.Errorf("second lookup should be cached: err=%v calls=%d", err, calls.Load())
	}

	_, err = g.Geocode(ctx, "Atlantis", "Nowhere")
	if !perrors.Is(err, perrors.ErrCodeLocationNotFound) {
		t.Errorf("Geocode(unknown) = %v, want LOCATION_NOT_FOUND", err)
	}
}

func TestParsePoint(t *testing.T) {
	if _, err := parsePoint("91", "0"); err == nil {
		t.Error("latitude 91 should fail")
	}
	if _, err := parsePoint("abc", "0"); err == nil {
		t.Error("non-numeric latitude should fail")
	}
	if pt, err := parsePoint("-33.8688", "151.2093"); err != nil || pt.Lat != -33.8688 {
		t.Errorf("parsePoint() = %v, %v", pt, err)
	}
}
