package layercache

import (
	"fmt"
	"math"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// CoordDecimals is the number of decimal places latitude and longitude keep
// in a key (about 11 m at the equator).
const CoordDecimals = 4

const coordScale = 1e4

// Flags selects the optional layers a request asked for. Requests that
// differ only in flags prepare different payloads and get different keys.
type Flags uint8

// Feature selector flags.
const (
	FlagWater Flags = 1 << iota
	FlagWaterways
	FlagParks
	FlagRail

	FlagsAll = FlagWater | FlagWaterways | FlagParks | FlagRail
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagWater, "water"},
	{FlagWaterways, "waterways"},
	{FlagParks, "parks"},
	{FlagRail, "rail"},
}

// Has reports whether every bit of o is set in f.
func (f Flags) Has(o Flags) bool { return f&o == o }

func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	for _, fn := range flagNames {
		if f.Has(fn.flag) {
			parts = append(parts, fn.name)
		}
	}
	return strings.Join(parts, "+")
}

// ParseFlags parses a comma-separated list of layer names ("water",
// "waterways", "parks", "rail"). An empty string is no flags.
func ParseFlags(s string) (Flags, error) {
	var f Flags
	for _, part := range strings.Split(s, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		found := false
		for _, fn := range flagNames {
			if fn.name == name {
				f |= fn.flag
				found = true
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown layer %q (want water, waterways, parks or rail)", part)
		}
	}
	return f, nil
}

// Key identifies one prepared payload. Coordinates are held in units of
// 1e-4 degrees and the radius in whole metres, so equal keys compare equal
// with ==.
type Key struct {
	lat, lon int64
	radius   int64
	flags    Flags
	valid    bool
}

// InvalidKey is the key produced for malformed input. It never hits.
var InvalidKey = Key{}

// Normalize quantizes a request into a Key. Coordinates are rounded
// half-to-even to CoordDecimals places and the radius to whole metres, so
// jitter from reprojection or repeated geocoding maps to the same key. NaN,
// infinite or out-of-range input yields InvalidKey.
func Normalize(lat, lon, radius float64, flags Flags) Key {
	for _, v := range [...]float64{lat, lon, radius} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return InvalidKey
		}
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 || radius < 0 {
		return InvalidKey
	}
	return Key{
		lat:    int64(math.RoundToEven(lat * coordScale)),
		lon:    int64(math.RoundToEven(lon * coordScale)),
		radius: int64(math.RoundToEven(radius)),
		flags:  flags,
		valid:  true,
	}
}

// Valid reports whether k was built from well-formed input.
func (k Key) Valid() bool { return k.valid }

// Lat returns the quantized latitude.
func (k Key) Lat() float64 { return float64(k.lat) / coordScale }

// Lon returns the quantized longitude.
func (k Key) Lon() float64 { return float64(k.lon) / coordScale }

// Radius returns the quantized radius in metres.
func (k Key) Radius() int64 { return k.radius }

// Flags returns the feature selector flags.
func (k Key) Flags() Flags { return k.flags }

// String formats the key as lat:lon:radius:flags.
func (k Key) String() string {
	if !k.valid {
		return "invalid"
	}
	return fmt.Sprintf("%.4f:%.4f:%d:%s", k.Lat(), k.Lon(), k.radius, k.flags)
}

// Hash returns the 64-bit xxhash of the key's string form.
func (k Key) Hash() uint64 {
	return xxhash.Sum64String(k.String())
}
