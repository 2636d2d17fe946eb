// Package typography lays out the text block at the bottom of a poster: the
// city name with its letter-spacing and optional line break, the divider,
// the country label, the coordinates and the attribution.
//
// Positions are fractions of the poster height measured from the bottom
// edge. Wide posters push the block upward by the square root of the aspect
// ratio, capped per element so text stays inside the drawable area.
//
//	res := typography.Layout("San Francisco California",
//	    typography.Aspect{Width: 24, Height: 8}, typography.DefaultConfig())
//	// res.Lines    = ["SAN FRANCISCO", "CALIFORNIA"] with tracking applied
//	// res.Positions.Name = 0.14 * sqrt(3)
package typography

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// =============================================================================
// Defaults
// =============================================================================

const (
	// DefaultTracking is the letter-spacing, in spaces, for short names.
	DefaultTracking = 2
	// DefaultSplitBudget is the longest name, in runes, kept on one line.
	DefaultSplitBudget = 14
	// DefaultReduceAt is the name length from which tracking is capped at 1.
	DefaultReduceAt = 11
	// DefaultDropAt is the name length from which tracking is 0.
	DefaultDropAt = 18
)

// Base vertical positions.
const (
	NameY    = 0.14
	DividerY = 0.12
	CountryY = 0.09
	CoordsY  = 0.06

	CenterX      = 0.5
	AttributionX = 0.98
	AttributionY = 0.02
)

// Ceilings applied after aspect compensation.
const (
	NameCeiling    = 0.35
	DividerCeiling = 0.30
	CountryCeiling = 0.25
	CoordsCeiling  = 0.20
)

// DividerHalfWidth is half the divider length as a fraction of poster width.
const DividerHalfWidth = 0.1

// Attribution is printed in the bottom-right corner of every poster.
const Attribution = "© OpenStreetMap contributors"

// =============================================================================
// Config
// =============================================================================

// Config parameterizes a layout. Zero SplitBudget, ReduceAt and DropAt take
// their defaults; positions are used as given.
type Config struct {
	Tracking    int
	SplitBudget int
	ReduceAt    int
	DropAt      int

	NameY, DividerY, CountryY, CoordsY  float64
	CenterX, AttributionX, AttributionY float64
}

// DefaultConfig returns the standard layout.
func DefaultConfig() Config {
	return Config{
		Tracking:     DefaultTracking,
		SplitBudget:  DefaultSplitBudget,
		ReduceAt:     DefaultReduceAt,
		DropAt:       DefaultDropAt,
		NameY:        NameY,
		DividerY:     DividerY,
		CountryY:     CountryY,
		CoordsY:      CoordsY,
		CenterX:      CenterX,
		AttributionX: AttributionX,
		AttributionY: AttributionY,
	}
}

func (c Config) withDefaults() Config {
	if c.SplitBudget <= 0 {
		c.SplitBudget = DefaultSplitBudget
	}
	if c.ReduceAt <= 0 {
		c.ReduceAt = DefaultReduceAt
	}
	if c.DropAt <= 0 {
		c.DropAt = DefaultDropAt
	}
	if c.DropAt < c.ReduceAt {
		c.ReduceAt = c.DropAt
	}
	return c
}

// Aspect is the poster size. Units cancel, only the ratio matters.
type Aspect struct {
	Width, Height float64
}

// Compensation returns max(1, sqrt(width/height)). Degenerate sizes return 1.
func (a Aspect) Compensation() float64 {
	if !(a.Width > 0) || !(a.Height > 0) || math.IsInf(a.Width, 0) || math.IsInf(a.Height, 0) {
		return 1
	}
	return math.Max(1, math.Sqrt(a.Width/a.Height))
}

// Positions holds the vertical placement of each element and the horizontal
// anchors.
type Positions struct {
	Name, Divider, Country, Coords      float64
	CenterX, AttributionX, AttributionY float64
}

// Result is a computed layout.
type Result struct {
	// Lines are the uppercase name lines with tracking applied, top first.
	Lines []string
	// Tracking holds the spacing applied to each line.
	Tracking []int
	// Plain are the uppercase lines before tracking.
	Plain     []string
	Positions Positions
}

// Split reports whether the name was broken over two lines.
func (r Result) Split() bool { return len(r.Lines) > 1 }

// LongestPlain returns the rune length of the longest untracked line.
func (r Result) LongestPlain() int {
	n := 0
	for _, l := range r.Plain {
		n = max(n, utf8.RuneCountInString(l))
	}
	return n
}

// =============================================================================
// Layout
// =============================================================================

// Layout computes the name lines, their tracking and the element positions.
func Layout(name string, aspect Aspect, cfg Config) Result {
	cfg = cfg.withDefaults()
	plain := splitName(name, cfg)
	res := Result{
		Lines:     make([]string, len(plain)),
		Tracking:  make([]int, len(plain)),
		Plain:     plain,
		Positions: Place(aspect, cfg),
	}
	for i, l := range plain {
		res.Tracking[i] = cfg.trackingFor(l)
		res.Lines[i] = ApplyTracking(l, res.Tracking[i])
	}
	return res
}

// Place computes element positions for aspect.
func Place(aspect Aspect, cfg Config) Positions {
	k := aspect.Compensation()
	return Positions{
		Name:         clamp(cfg.NameY*k, NameCeiling),
		Divider:      clamp(cfg.DividerY*k, DividerCeiling),
		Country:      clamp(cfg.CountryY*k, CountryCeiling),
		Coords:       clamp(cfg.CoordsY*k, CoordsCeiling),
		CenterX:      cfg.CenterX,
		AttributionX: cfg.AttributionX,
		AttributionY: cfg.AttributionY,
	}
}

func clamp(v, ceiling float64) float64 {
	return math.Max(0, math.Min(v, ceiling))
}

// =============================================================================
// Tracking
// =============================================================================

// TrackingFor returns the letter-spacing for name given the base tracking:
// base up to 10 runes, at most 1 up to 17 runes, 0 from 18 runes.
func TrackingFor(name string, base int) int {
	return Config{Tracking: base}.withDefaults().trackingFor(name)
}

func (c Config) trackingFor(name string) int {
	n := utf8.RuneCountInString(name)
	switch {
	case n >= c.DropAt:
		return 0
	case n >= c.ReduceAt:
		return max(0, min(c.Tracking, 1))
	default:
		return max(0, c.Tracking)
	}
}

// ApplyTracking inserts n spaces between consecutive runes of every line of
// s. Spaces already in s are runes like any other.
func ApplyTracking(s string, n int) string {
	if n <= 0 {
		return s
	}
	gap := strings.Repeat(" ", n)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		var b strings.Builder
		for j, r := range []rune(line) {
			if j > 0 {
				b.WriteString(gap)
			}
			b.WriteRune(r)
		}
		lines[i] = b.String()
	}
	return strings.Join(lines, "\n")
}

// trackedLen is the rune length of ApplyTracking(s, n).
func trackedLen(s string, n int) int {
	runes := utf8.RuneCountInString(s)
	if runes == 0 {
		return 0
	}
	return runes + (runes-1)*max(0, n)
}

// =============================================================================
// Line Splitting
// =============================================================================

// SplitName breaks name into one or two uppercase lines using the default
// budget and thresholds.
func SplitName(name string, tracking int) []string {
	cfg := DefaultConfig()
	cfg.Tracking = tracking
	return splitName(name, cfg)
}

// splitName keeps names within the budget, and single words, on one line.
// Longer names are split at the word boundary that minimizes the difference
// in tracked length between the two lines; the earliest boundary wins ties.
func splitName(name string, cfg Config) []string {
	upper := strings.ToUpper(strings.TrimSpace(name))
	words := strings.Fields(upper)
	if len(words) < 2 || utf8.RuneCountInString(upper) <= cfg.SplitBudget {
		return []string{upper}
	}

	best, bestDiff := 0, math.MaxInt
	for i := 1; i < len(words); i++ {
		l1 := strings.Join(words[:i], " ")
		l2 := strings.Join(words[i:], " ")
		diff := trackedLen(l1, cfg.trackingFor(l1)) - trackedLen(l2, cfg.trackingFor(l2))
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			best, bestDiff = i, diff
		}
	}
	return []string{strings.Join(words[:best], " "), strings.Join(words[best:], " ")}
}

// =============================================================================
// Sizes and Labels
// =============================================================================

// Base font sizes in points for a 12 inch wide poster.
const (
	ReferenceWidth = 12.0

	BaseMain   = 60.0
	BaseSub    = 22.0
	BaseCoords = 14.0
	BaseAttr   = 8.0

	longNameRunes = 10
	minMain       = 10.0
)

// Sizes are font sizes in points.
type Sizes struct {
	Main, Sub, Coords, Attr float64
	// Scale is widthIn / ReferenceWidth.
	Scale float64
}

// FontSizes scales the base sizes to the poster width. Names longer than 10
// runes shrink the main size by 10/nameLen, never below 10 points scaled.
// The attribution keeps its base size.
func FontSizes(widthIn float64, nameLen int) Sizes {
	scale := 1.0
	if widthIn > 0 && !math.IsInf(widthIn, 0) {
		scale = widthIn / ReferenceWidth
	}
	main := BaseMain * scale
	if nameLen > longNameRunes {
		main = math.Max(main*longNameRunes/float64(nameLen), minMain*scale)
	}
	return Sizes{
		Main:   main,
		Sub:    BaseSub * scale,
		Coords: BaseCoords * scale,
		Attr:   BaseAttr,
		Scale:  scale,
	}
}

// FormatCoords renders a location as "48.8566° N / 2.3522° E".
func FormatCoords(lat, lon float64) string {
	ns, ew := "N", "E"
	if lat < 0 {
		ns = "S"
	}
	if lon < 0 {
		ew = "W"
	}
	return fmt.Sprintf("%.4f° %s / %.4f° %s", math.Abs(lat), ns, math.Abs(lon), ew)
}
