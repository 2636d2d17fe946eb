// Package style holds the visual configuration of a poster: themes (the
// color palette), style configurations (stroke widths, effect strengths and
// typography overrides), named presets and style packs loaded from disk.
//
// A [Theme] decides what color something is; a [Config] decides how thick,
// how glowing and how grainy it is. The two are independent, except that a
// preset may pin a theme through [Config.ThemeName].
package style

import (
	"fmt"
	"math"

	"github.com/Iwaschkin/maptoposter/pkg/classify"
	perrors "github.com/Iwaschkin/maptoposter/pkg/errors"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	DefaultGlowStrength     = 0.0
	DefaultGradientStrength = 0.25
	DefaultTracking         = 2

	DefaultTextCenterX   = 0.5
	DefaultCityNameY     = 0.14
	DefaultCountryLabelY = 0.09
	DefaultCoordsY       = 0.06
	DefaultDividerY      = 0.12
	DefaultAttributionX  = 0.98
	DefaultAttributionY  = 0.02
)

const (
	defaultWidthKey       = "default"
	maxEffectStrength     = 1.0
	maxTypographyTracking = 16
)

// DefaultCoreWidths are the road core stroke widths in points, keyed by road
// class. Classes without their own key use "default".
func DefaultCoreWidths() map[string]float64 {
	return map[string]float64{
		"motorway":  1.2,
		"primary":   1.0,
		"secondary": 0.8,
		"tertiary":  0.6,
		"default":   0.4,
	}
}

// DefaultCasingWidths are the road casing stroke widths in points.
func DefaultCasingWidths() map[string]float64 {
	return map[string]float64{
		"motorway":  1.8,
		"primary":   1.5,
		"secondary": 1.2,
		"tertiary":  0.9,
		"default":   0.6,
	}
}

// =============================================================================
// Config
// =============================================================================

// Config is a style configuration. Field names on the wire match style pack
// files.
type Config struct {
	ThemeName string `json:"theme_name,omitempty" toml:"theme_name"`

	RoadCoreWidths   map[string]float64 `json:"road_core_widths" toml:"road_core_widths"`
	RoadCasingWidths map[string]float64 `json:"road_casing_widths" toml:"road_casing_widths"`

	RoadGlowStrength   float64 `json:"road_glow_strength" toml:"road_glow_strength"`
	GradientStrength   float64 `json:"gradient_strength" toml:"gradient_strength"`
	TypographyTracking int     `json:"typography_tracking" toml:"typography_tracking"`

	TextCenterX   float64 `json:"text_center_x" toml:"text_center_x"`
	CityNameY     float64 `json:"city_name_y_pos" toml:"city_name_y_pos"`
	CountryLabelY float64 `json:"country_label_y_pos" toml:"country_label_y_pos"`
	CoordsY       float64 `json:"coords_y_pos" toml:"coords_y_pos"`
	DividerY      float64 `json:"divider_y_pos" toml:"divider_y_pos"`
	AttributionX  float64 `json:"attribution_x_pos" toml:"attribution_x_pos"`
	AttributionY  float64 `json:"attribution_y_pos" toml:"attribution_y_pos"`

	TextureStrength      float64 `json:"texture_strength" toml:"texture_strength"`
	GrainStrength        float64 `json:"grain_strength" toml:"grain_strength"`
	VignetteStrength     float64 `json:"vignette_strength" toml:"vignette_strength"`
	ColorGradingStrength float64 `json:"color_grading_strength" toml:"color_grading_strength"`
	PaperTexturePath     string  `json:"paper_texture_path,omitempty" toml:"paper_texture_path"`

	// Seed makes grain reproducible. Nil draws a fresh seed per render.
	Seed *int64 `json:"seed,omitempty" toml:"seed"`

	// EnableLayerCache stores prepared layers in the in-memory layer cache.
	EnableLayerCache bool `json:"enable_layer_cache" toml:"enable_layer_cache"`
}

// Default returns the baseline style: classic widths, a light gradient and
// no raster effects.
func Default() Config {
	return Config{
		RoadCoreWidths:     DefaultCoreWidths(),
		RoadCasingWidths:   DefaultCasingWidths(),
		RoadGlowStrength:   DefaultGlowStrength,
		GradientStrength:   DefaultGradientStrength,
		TypographyTracking: DefaultTracking,
		TextCenterX:        DefaultTextCenterX,
		CityNameY:          DefaultCityNameY,
		CountryLabelY:      DefaultCountryLabelY,
		CoordsY:            DefaultCoordsY,
		DividerY:           DefaultDividerY,
		AttributionX:       DefaultAttributionX,
		AttributionY:       DefaultAttributionY,
		EnableLayerCache:   true,
	}
}

// Clone returns a copy of c that shares no maps or pointers with it.
func (c Config) Clone() Config {
	out := c
	out.RoadCoreWidths = cloneWidths(c.RoadCoreWidths)
	out.RoadCasingWidths = cloneWidths(c.RoadCasingWidths)
	if c.Seed != nil {
		seed := *c.Seed
		out.Seed = &seed
	}
	return out
}

func cloneWidths(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// WithSeed returns a copy of c with its grain seed set.
func (c Config) WithSeed(seed int64) Config {
	out := c.Clone()
	out.Seed = &seed
	return out
}

// Validate checks ranges: effect strengths in [0, 1], positions in [0, 1],
// non-negative widths and tracking.
func (c Config) Validate() error {
	strengths := []struct {
		name string
		v    float64
	}{
		{"road_glow_strength", c.RoadGlowStrength},
		{"gradient_strength", c.GradientStrength},
		{"texture_strength", c.TextureStrength},
		{"grain_strength", c.GrainStrength},
		{"vignette_strength", c.VignetteStrength},
		{"color_grading_strength", c.ColorGradingStrength},
		{"text_center_x", c.TextCenterX},
		{"city_name_y_pos", c.CityNameY},
		{"country_label_y_pos", c.CountryLabelY},
		{"coords_y_pos", c.CoordsY},
		{"divider_y_pos", c.DividerY},
		{"attribution_x_pos", c.AttributionX},
		{"attribution_y_pos", c.AttributionY},
	}
	for _, s := range strengths {
		if math.IsNaN(s.v) || s.v < 0 || s.v > maxEffectStrength {
			return perrors.New(perrors.ErrCodeInvalidStyle, "%s must be within [0, 1], got %v", s.name, s.v)
		}
	}
	if c.TypographyTracking < 0 || c.TypographyTracking > maxTypographyTracking {
		return perrors.New(perrors.ErrCodeInvalidStyle,
			"typography_tracking must be within [0, %d], got %d", maxTypographyTracking, c.TypographyTracking)
	}
	for _, widths := range []map[string]float64{c.RoadCoreWidths, c.RoadCasingWidths} {
		for k, v := range widths {
			if math.IsNaN(v) || v < 0 {
				return perrors.New(perrors.ErrCodeInvalidStyle, "road width %q must be non-negative, got %v", k, v)
			}
		}
	}
	if c.ThemeName != "" {
		if err := perrors.ValidateThemeName(c.ThemeName); err != nil {
			return err
		}
	}
	return nil
}

// CoreWidth returns the core stroke width for a road class. Motorway through
// tertiary use their own keys; residential and unclassified use "default";
// paths keep the classifier width unless the style names them.
func (c Config) CoreWidth(fc classify.FeatureClass) float64 {
	return width(c.RoadCoreWidths, fc, fc.CoreWidth)
}

// CasingWidth returns the casing stroke width for a road class. Classes the
// classifier draws without casing stay without casing.
func (c Config) CasingWidth(fc classify.FeatureClass) float64 {
	if !fc.HasCasing() {
		return 0
	}
	return width(c.RoadCasingWidths, fc, fc.CasingWidth)
}

func width(m map[string]float64, fc classify.FeatureClass, table float64) float64 {
	if v, ok := m[string(fc.ID)]; ok {
		return v
	}
	if fc.ID == classify.Path {
		return table
	}
	if v, ok := m[defaultWidthKey]; ok {
		return v
	}
	return table
}

// Effects lists the raster effects with a positive strength, in the order
// they are applied. Texture is listed only when a texture path is set.
func (c Config) Effects() []string {
	var out []string
	if c.GrainStrength > 0 {
		out = append(out, "grain")
	}
	if c.VignetteStrength > 0 {
		out = append(out, "vignette")
	}
	if c.TextureStrength > 0 && c.PaperTexturePath != "" {
		out = append(out, "texture")
	}
	if c.ColorGradingStrength > 0 {
		out = append(out, "color_grading")
	}
	return out
}

func (c Config) String() string {
	name := c.ThemeName
	if name == "" {
		name = "-"
	}
	return fmt.Sprintf("style(theme=%s glow=%.2f tracking=%d effects=%v)",
		name, c.RoadGlowStrength, c.TypographyTracking, c.Effects())
}
