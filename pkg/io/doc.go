// Package io reads and writes geodata as GeoJSON and serves it as an
// offline geo.Provider.
//
// # Format
//
// Standard RFC 7946 feature collections. Coordinates are [lon, lat];
// properties become feature tags. Supported geometries are LineString,
// MultiLineString, Polygon and MultiPolygon; other types are skipped on
// import.
//
//	{
//	  "type": "FeatureCollection",
//	  "features": [
//	    {"type": "Feature", "id": "way/1",
//	     "properties": {"highway": "primary"},
//	     "geometry": {"type": "LineString", "coordinates": [[2.35, 48.85], [2.36, 48.86]]}}
//	  ]
//	}
//
// # Local provider
//
// [LocalProvider] answers FetchNetwork with features that carry a highway
// tag and FetchFeatures with features matching the selector, both limited to
// the requested radius. It lets posters render without network access:
//
//	p, err := io.OpenLocalProvider("paris.geojson")
//	runner := pipeline.NewRunner(p, nil, nil, logger)
//
// Use [ExportGeoJSON] to capture data fetched from OpenStreetMap for later
// offline use.
package io
