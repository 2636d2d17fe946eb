package typography

import (
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
)

func TestTrackingFor(t *testing.T) {
	tests := []struct {
		name string
		base int
		want int
	}{
		{"Paris", 2, 2},
		{"Tokyo", 2, 2},
		{"Copenhagen", 2, 2}, // 10 runes
		{"Philadelphia", 2, 1},
		{"San Francisco", 2, 1},
		{"San Francisco", 0, 0},
		{"Rio de Janeiro Brazil", 2, 0},
		{"Llanfairpwllgwyngyll", 4, 0},
		{"Rome", 4, 4},
	}
	for _, tt := range tests {
		if got := TrackingFor(tt.name, tt.base); got != tt.want {
			t.Errorf("TrackingFor(%q, %d) = %d, want %d", tt.name, tt.base, got, tt.want)
		}
	}
}

func TestTrackingIsNonIncreasing(t *testing.T) {
	prev := math.MaxInt
	for n := 1; n <= 40; n++ {
		got := TrackingFor(strings.Repeat("a", n), 3)
		if got > prev {
			t.Fatalf("tracking increased from %d to %d at length %d", prev, got, n)
		}
		prev = got
	}
	if TrackingFor("Oslo", 2) <= TrackingFor(strings.Repeat("x", 40), 2) {
		t.Error("4-rune name should track wider than a 40-rune name")
	}
}

func TestTrackingThresholdConfigurable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DropAt = 6
	if got := Layout("Berlin", Aspect{12, 16}, cfg).Tracking[0]; got != 0 {
		t.Errorf("tracking with DropAt=6 = %d, want 0", got)
	}
}

func TestApplyTracking(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"ABC", 2, "A  B  C"},
		{"AB\nCD", 1, "A B\nC D"},
		{"ABC", 0, "ABC"},
		{"A B", 1, "A   B"},
		{"", 3, ""},
		{"ÅS", 1, "Å S"},
	}
	for _, tt := range tests {
		if got := ApplyTracking(tt.in, tt.n); got != tt.want {
			t.Errorf("ApplyTracking(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		name string
		want []string
	}{
		{"Tokyo", []string{"TOKYO"}},
		{"New York", []string{"NEW YORK"}},
		{"paris", []string{"PARIS"}},
		{"Llanfairpwllgwyngyll", []string{"LLANFAIRPWLLGWYNGYLL"}},
		{"San Francisco California", []string{"SAN FRANCISCO", "CALIFORNIA"}},
		{"  los angeles  ", []string{"LOS ANGELES"}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, SplitName(tt.name, DefaultTracking)); diff != "" {
			t.Errorf("SplitName(%q) mismatch (-want +got):\n%s", tt.name, diff)
		}
	}
}

func TestSplitIsOptimal(t *testing.T) {
	names := []string{
		"San Francisco California",
		"Santa Cruz de la Sierra",
		"Rio de Janeiro Brazil",
		"Kuala Lumpur Federal Territory",
		"A Very Long Name With Many Short Words",
	}
	cfg := DefaultConfig()
	for _, name := range names {
		res := Layout(name, Aspect{12, 16}, cfg)
		if len(res.Lines) != 2 {
			t.Fatalf("Layout(%q) produced %d lines, want 2", name, len(res.Lines))
		}
		got := absDiff(lineLen(res.Lines[0]), lineLen(res.Lines[1]))

		words := strings.Fields(strings.ToUpper(name))
		for i := 1; i < len(words); i++ {
			l1, l2 := strings.Join(words[:i], " "), strings.Join(words[i:], " ")
			other := absDiff(
				lineLen(ApplyTracking(l1, cfg.trackingFor(l1))),
				lineLen(ApplyTracking(l2, cfg.trackingFor(l2))),
			)
			if got > other {
				t.Errorf("%q: chosen split diff %d > split at word %d diff %d", name, got, i, other)
			}
		}
	}
}

func TestSplitTiePrefersEarlierBoundary(t *testing.T) {
	// Both boundaries leave a difference of 6.
	got := SplitName("AAAAA BBBBB CCCCC", 0)
	want := []string{"AAAAA", "BBBBB CCCCC"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tie split mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitLinesTrackIndependently(t *testing.T) {
	res := Layout("San Francisco California", Aspect{12, 16}, DefaultConfig())
	want := []int{1, 2} // "SAN FRANCISCO" is 13 runes, "CALIFORNIA" 10
	if diff := cmp.Diff(want, res.Tracking); diff != "" {
		t.Errorf("tracking mismatch (-want +got):\n%s", diff)
	}
	if !res.Split() || res.LongestPlain() != 13 {
		t.Errorf("Split() = %v, LongestPlain() = %d, want true, 13", res.Split(), res.LongestPlain())
	}
}

func TestPlaceAspectCompensation(t *testing.T) {
	tests := []struct {
		name   string
		aspect Aspect
		want   float64
	}{
		{"portrait", Aspect{12, 16}, 0.14},
		{"square", Aspect{10, 10}, 0.14},
		{"5:1", Aspect{200, 40}, 0.14 * math.Sqrt(5)},
		{"10:1 clamped", Aspect{400, 40}, NameCeiling},
		{"degenerate", Aspect{0, 10}, 0.14},
	}
	for _, tt := range tests {
		got := Place(tt.aspect, DefaultConfig()).Name
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s: Name = %.4f, want %.4f", tt.name, got, tt.want)
		}
	}

	if got := Place(Aspect{200, 40}, DefaultConfig()).Name; math.Abs(got-0.313) > 0.001 {
		t.Errorf("200x40 Name = %.4f, want ~0.313", got)
	}
}

func TestPlaceCeilings(t *testing.T) {
	p := Place(Aspect{1000, 10}, DefaultConfig())
	want := Positions{
		Name: NameCeiling, Divider: DividerCeiling, Country: CountryCeiling, Coords: CoordsCeiling,
		CenterX: CenterX, AttributionX: AttributionX, AttributionY: AttributionY,
	}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("Place mismatch (-want +got):\n%s", diff)
	}
}

func TestFontSizes(t *testing.T) {
	s := FontSizes(12, 5)
	if s.Main != 60 || s.Sub != 22 || s.Coords != 14 || s.Attr != 8 {
		t.Errorf("FontSizes(12, 5) = %+v", s)
	}

	s = FontSizes(24, 20)
	if math.Abs(s.Main-60) > 1e-9 { // 120 * 10/20
		t.Errorf("FontSizes(24, 20).Main = %v, want 60", s.Main)
	}
	if s.Attr != BaseAttr {
		t.Errorf("attribution size scaled to %v, want %v", s.Attr, BaseAttr)
	}

	s = FontSizes(12, 100)
	if s.Main != 10 {
		t.Errorf("FontSizes(12, 100).Main = %v, want floor 10", s.Main)
	}
}

func TestFormatCoords(t *testing.T) {
	tests := []struct {
		lat, lon float64
		want     string
	}{
		{48.8566, 2.3522, "48.8566° N / 2.3522° E"},
		{-33.8688, 151.2093, "33.8688° S / 151.2093° E"},
		{40.7128, -74.0060, "40.7128° N / 74.0060° W"},
		{-22.9068, -43.1729, "22.9068° S / 43.1729° W"},
	}
	for _, tt := range tests {
		if got := FormatCoords(tt.lat, tt.lon); got != tt.want {
			t.Errorf("FormatCoords(%v, %v) = %q, want %q", tt.lat, tt.lon, got, tt.want)
		}
	}
}

func lineLen(s string) int { return utf8.RuneCountInString(s) }

func absDiff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
