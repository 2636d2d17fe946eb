// Package buildinfo holds version information injected at link time:
//
//	go build -ldflags "-X github.com/Iwaschkin/maptoposter/pkg/buildinfo.Version=v0.3.0 \
//	    -X github.com/Iwaschkin/maptoposter/pkg/buildinfo.Commit=$(git rev-parse --short HEAD) \
//	    -X github.com/Iwaschkin/maptoposter/pkg/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package buildinfo

import "fmt"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String returns the formatted build information.
func String() string {
	return fmt.Sprintf("version: %s\ncommit: %s\nbuilt: %s", Version, Commit, Date)
}

// Template returns the version template string for cobra.
func Template() string {
	return fmt.Sprintf("{{.Name}} version %s (%s, %s)\n", Version, Commit, Date)
}

// UserAgent identifies the binary to OpenStreetMap services, whose usage
// policies require a descriptive agent string.
func UserAgent() string {
	return fmt.Sprintf("maptoposter/%s (+https://github.com/Iwaschkin/maptoposter)", Version)
}
