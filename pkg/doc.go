// Package pkg provides the core libraries for maptoposter city map posters.
//
// # Overview
//
// maptoposter fetches OpenStreetMap data around a location and renders the
// street network, water, parks and railways as a themed poster. The pkg
// directory is organized into four areas:
//
//  1. Data - [geo] types, the [osm] provider and geocoder, [io] GeoJSON files
//  2. Caching - the [cache] blob store and the in-memory [layercache]
//  3. Drawing - [style], [classify], [render], [typography], [postprocess]
//  4. Orchestration - [pipeline] runs and batches
//
// # Architecture
//
// The data flow of one poster:
//
//	Overpass / GeoJSON
//	         ↓
//	    [geo.Provider] (network + optional layers)
//	         ↓
//	    [layercache] (prepared, projected layers per location)
//	         ↓
//	    [render] backend (canvas or density) + [typography]
//	         ↓
//	    [postprocess] effects (grain, vignette, texture, color grading)
//	         ↓
//	    PNG/SVG/PDF artifact
//
// # Quick Start
//
//	provider := osm.NewProvider(osm.Config{})
//	runner := pipeline.NewRunner(provider, layercache.New(layercache.Config{}), nil)
//
//	res, err := runner.Execute(ctx, pipeline.Options{
//	    City:    "Lisbon",
//	    Country: "Portugal",
//	    Point:   geo.Point{Lat: 38.7223, Lon: -9.1393},
//	    Theme:   "noir",
//	    Format:  render.FormatSVG,
//	})
//	if err != nil {
//	    return err
//	}
//	os.WriteFile("lisbon.svg", res.Artifact, 0o644)
//
// Missing optional layers never fail a run; they are listed in
// Result.Degradations. A missing street network fails the run with
// errors.ErrCodePrimaryDataMissing.
//
// # Main Packages
//
// [geo] - Points, features, selectors, projections and the R-tree index used
// to clip features to the poster viewport.
//
// [osm] - Overpass and Nominatim clients behind the [geo.Provider] interface,
// with responses stored in a [cache.Cache].
//
// [cache] - Blob store with file, Redis and MongoDB backends.
//
// [layercache] - Bounded in-memory cache of prepared layers keyed by location,
// radius and layer flags. Concurrent misses for one key share a single fetch.
//
// [style] - Color themes, style configs, presets and style packs.
//
// [render] - Canvas (vector) and density (raster heat map) backends writing
// PNG, SVG and PDF.
//
// [pipeline] - The preparing, compositing and post-processing state machine,
// plus batch runs over many cities.
//
// # Testing
//
//	go test ./pkg/...                    # All tests
//	go test ./pkg/layercache/...         # Specific package
//	go test -run Example                 # Examples only
//
// [geo]: https://pkg.go.dev/github.com/Iwaschkin/maptoposter/pkg/geo
// [geo.Provider]: https://pkg.go.dev/github.com/Iwaschkin/maptoposter/pkg/geo#Provider
// [osm]: https://pkg.go.dev/github.com/Iwaschkin/maptoposter/pkg/osm
// [io]: https://pkg.go.dev/github.com/Iwaschkin/maptoposter/pkg/io
// [cache]: https://pkg.go.dev/github.com/Iwaschkin/maptoposter/pkg/cache
// [cache.Cache]: https://pkg.go.dev/github.com/Iwaschkin/maptoposter/pkg/cache#Cache
// [layercache]: https://pkg.go.dev/github.com/Iwaschkin/maptoposter/pkg/layercache
// [style]: https://pkg.go.dev/github.com/Iwaschkin/maptoposter/pkg/style
// [classify]: https://pkg.go.dev/github.com/Iwaschkin/maptoposter/pkg/classify
// [render]: https://pkg.go.dev/github.com/Iwaschkin/maptoposter/pkg/render
// [typography]: https://pkg.go.dev/github.com/Iwaschkin/maptoposter/pkg/typography
// [postprocess]: https://pkg.go.dev/github.com/Iwaschkin/maptoposter/pkg/postprocess
// [pipeline]: https://pkg.go.dev/github.com/Iwaschkin/maptoposter/pkg/pipeline
package pkg
