package errors

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

// MaxDistance caps the map radius in meters. Larger radii produce Overpass
// queries that the public endpoints reject.
const MaxDistance = 100_000

// ValidateCoordinates checks that lat/lon are finite and within range.
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return New(ErrCodeInvalidCoordinates, "coordinates must be finite")
	}
	if lat < -90 || lat > 90 {
		return New(ErrCodeInvalidCoordinates, "latitude %.6f out of range [-90, 90]", lat)
	}
	if lon < -180 || lon > 180 {
		return New(ErrCodeInvalidCoordinates, "longitude %.6f out of range [-180, 180]", lon)
	}
	return nil
}

// ValidateDistance checks a map radius in meters.
func ValidateDistance(dist float64) error {
	if math.IsNaN(dist) || math.IsInf(dist, 0) || dist <= 0 {
		return New(ErrCodeInvalidInput, "distance must be a positive number of meters")
	}
	if dist > MaxDistance {
		return New(ErrCodeInvalidInput, "distance %.0fm exceeds maximum of %dm", dist, MaxDistance)
	}
	return nil
}

// ValidateName validates a free-form display name (city, country, theme).
// Control characters are rejected; everything else is left to the renderer.
func ValidateName(kind, name string) error {
	if strings.TrimSpace(name) == "" {
		return New(ErrCodeInvalidInput, "%s cannot be empty", kind)
	}
	if len(name) > 256 {
		return New(ErrCodeInvalidInput, "%s too long (max 256 characters)", kind)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "%s contains invalid control characters", kind)
		}
	}
	return nil
}

// themeNameRegex matches theme and preset identifiers.
var themeNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// ValidateThemeName validates a theme or preset identifier. Identifiers
// double as file names under the themes directory, so traversal is rejected.
func ValidateThemeName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidTheme, "theme name cannot be empty")
	}
	if !themeNameRegex.MatchString(name) {
		return New(ErrCodeInvalidTheme, "invalid theme name: %q", name)
	}
	return nil
}

// ValidatePath validates a relative output path for the HTTP service.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "path must be relative (cannot start with /)")
	}
	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
	}
	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}
	return nil
}

// ValidateURL validates a provider endpoint URL.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}
	return nil
}
