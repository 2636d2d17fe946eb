package style

import (
	"slices"
	"strings"

	perrors "github.com/Iwaschkin/maptoposter/pkg/errors"
)

// Preset is a named, described style configuration.
type Preset struct {
	Name        string
	Description string
	Config      Config
}

var presets = map[string]Preset{
	"noir": {
		Description: "Classic film noir aesthetic with subtle grain and vignette",
		Config: with(func(c *Config) {
			c.ThemeName = "noir"
			c.RoadGlowStrength = 0.2
			c.TypographyTracking = 3
			c.GrainStrength = 0.08
			c.VignetteStrength = 0.15
		}),
	},
	"blueprint": {
		Description: "Technical drawing style with no casing or effects",
		Config: with(func(c *Config) {
			c.ThemeName = "blueprint"
			c.TypographyTracking = 1
			for k := range c.RoadCasingWidths {
				c.RoadCasingWidths[k] = 0
			}
		}),
	},
	"neon_cyberpunk": {
		Description: "Vibrant neon glow with enhanced color saturation",
		Config: with(func(c *Config) {
			c.ThemeName = "neon_cyberpunk"
			c.RoadGlowStrength = 0.6
			c.ColorGradingStrength = 0.2
		}),
	},
	"japanese_ink": {
		Description: "Calligraphic style with wide tracking and soft vignette",
		Config: with(func(c *Config) {
			c.ThemeName = "japanese_ink"
			c.TypographyTracking = 4
			c.VignetteStrength = 0.25
			c.GradientStrength = 0.3
		}),
	},
	"warm_beige": {
		Description: "Vintage warmth with film grain and subtle color grading",
		Config: with(func(c *Config) {
			c.ThemeName = "warm_beige"
			c.RoadGlowStrength = 0.1
			c.GrainStrength = 0.12
			c.VignetteStrength = 0.1
			c.ColorGradingStrength = 0.15
		}),
	},
	"vintage": {
		Description: "Classic vintage film look with grain and vignette",
		Config: with(func(c *Config) {
			c.ThemeName = "warm_beige"
			c.GrainStrength = 0.15
			c.VignetteStrength = 0.2
			c.ColorGradingStrength = 0.1
		}),
	},
	"film_noir": {
		Description: "Heavy film noir with pronounced grain and dark vignette",
		Config: with(func(c *Config) {
			c.ThemeName = "noir"
			c.GrainStrength = 0.2
			c.VignetteStrength = 0.3
			c.ColorGradingStrength = 0.05
		}),
	},
}

func with(fn func(*Config)) Config {
	c := Default()
	fn(&c)
	return c
}

// AvailablePresets returns the preset names, sorted.
func AvailablePresets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// LookupPreset returns the named preset. The returned Config is a copy the
// caller may modify.
func LookupPreset(name string) (Preset, error) {
	p, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Preset{}, perrors.New(perrors.ErrCodeInvalidStyle,
			"unknown preset %q (available: %s)", name, strings.Join(AvailablePresets(), ", "))
	}
	p.Name = strings.ToLower(strings.TrimSpace(name))
	p.Config = p.Config.Clone()
	return p, nil
}

// Presets returns every preset in name order.
func Presets() []Preset {
	out := make([]Preset, 0, len(presets))
	for _, name := range AvailablePresets() {
		p, _ := LookupPreset(name)
		out = append(out, p)
	}
	return out
}
