package style

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/lucasb-eyer/go-colorful"

	perrors "github.com/Iwaschkin/maptoposter/pkg/errors"
)

// DefaultThemeName is used when no theme is requested.
const DefaultThemeName = "feature_based"

// Theme color keys.
const (
	KeyBG              = "bg"
	KeyText            = "text"
	KeyGradient        = "gradient_color"
	KeyWater           = "water"
	KeyParks           = "parks"
	KeyRoadMotorway    = "road_motorway"
	KeyRoadPrimary     = "road_primary"
	KeyRoadSecondary   = "road_secondary"
	KeyRoadTertiary    = "road_tertiary"
	KeyRoadResidential = "road_residential"
	KeyRoadDefault     = "road_default"
	KeyWaterway        = "waterway"
	KeyRail            = "rail"
)

// RequiredKeys lists the keys every theme file must define.
var RequiredKeys = []string{
	"name", KeyBG, KeyText, KeyGradient, KeyWater, KeyParks,
	KeyRoadMotorway, KeyRoadPrimary, KeyRoadSecondary, KeyRoadTertiary,
	KeyRoadResidential, KeyRoadDefault,
}

// optional color keys and the key they default to.
var optionalKeys = map[string]string{
	KeyWaterway: KeyWater,
	KeyRail:     KeyRoadDefault,
}

// Theme is a named color palette.
type Theme struct {
	// ID is the theme's file stem, the name users select it by.
	ID          string
	Name        string
	Description string

	colors map[string]colorful.Color
	hex    map[string]string
}

// Color returns the color for key. Unknown keys resolve to road_default.
func (t Theme) Color(key string) colorful.Color {
	if c, ok := t.colors[key]; ok {
		return c
	}
	return t.colors[KeyRoadDefault]
}

// Hex returns the normalized "#rrggbb" form of key's color.
func (t Theme) Hex(key string) string {
	if h, ok := t.hex[key]; ok {
		return h
	}
	return t.hex[KeyRoadDefault]
}

// Keys returns the color keys the theme defines, sorted.
func (t Theme) Keys() []string {
	keys := make([]string, 0, len(t.colors))
	for k := range t.colors {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// MarshalJSON writes the theme in its file format.
func (t Theme) MarshalJSON() ([]byte, error) {
	out := make(map[string]string, len(t.hex)+3)
	for k, v := range t.hex {
		out[k] = v
	}
	out["name"] = t.Name
	if t.Description != "" {
		out["description"] = t.Description
	}
	return json.Marshal(out)
}

// NewTheme builds a theme from the key/value pairs of a theme file. Required
// keys must be present and every color must be a "#rrggbb" hex string.
func NewTheme(id string, values map[string]string) (Theme, error) {
	var missing []string
	for _, k := range RequiredKeys {
		if _, ok := values[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return Theme{}, perrors.New(perrors.ErrCodeInvalidTheme,
			"theme %q is missing required keys: %s", id, strings.Join(missing, ", "))
	}

	t := Theme{
		ID:          id,
		Name:        values["name"],
		Description: values["description"],
		colors:      make(map[string]colorful.Color, len(values)),
		hex:         make(map[string]string, len(values)),
	}
	for k, v := range values {
		if k == "name" || k == "description" {
			continue
		}
		c, err := colorful.Hex(strings.TrimSpace(v))
		if err != nil {
			return Theme{}, perrors.Wrap(perrors.ErrCodeInvalidTheme, err, "theme %q: %s", id, k)
		}
		t.colors[k] = c
		t.hex[k] = c.Hex()
	}
	for k, from := range optionalKeys {
		if _, ok := t.colors[k]; !ok {
			t.colors[k] = t.colors[from]
			t.hex[k] = t.hex[from]
		}
	}
	return t, nil
}

// ParseTheme decodes a theme file in JSON or TOML (by format "json"/"toml").
func ParseTheme(id string, data []byte, format string) (Theme, error) {
	raw := map[string]any{}
	switch format {
	case PackTOML:
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return Theme{}, perrors.Wrap(perrors.ErrCodeInvalidTheme, err, "theme %q", id)
		}
	default:
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			return Theme{}, perrors.New(perrors.ErrCodeInvalidTheme, "theme %q is not a JSON object", id)
		}
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return Theme{}, perrors.Wrap(perrors.ErrCodeInvalidTheme, err, "theme %q", id)
		}
	}
	values := make(map[string]string, len(raw))
	for k, v := range raw {
		s, ok := v.(string)
		if !ok {
			return Theme{}, perrors.New(perrors.ErrCodeInvalidTheme, "theme %q: %s must be a string", id, k)
		}
		values[k] = s
	}
	return NewTheme(id, values)
}

// =============================================================================
// Theme Store
// =============================================================================

//go:embed themes/*.json
var builtinThemes embed.FS

// Store resolves themes from user directories first and the built-in set
// second, so a file in a user directory overrides a built-in theme of the
// same name.
type Store struct {
	dirs []string
}

// NewStore returns a store searching dirs in order. Missing directories are
// skipped.
func NewStore(dirs ...string) *Store {
	var kept []string
	for _, d := range dirs {
		if d != "" {
			kept = append(kept, d)
		}
	}
	return &Store{dirs: kept}
}

// Load returns the named theme.
func (s *Store) Load(name string) (Theme, error) {
	if name == "" {
		name = DefaultThemeName
	}
	if err := perrors.ValidateThemeName(name); err != nil {
		return Theme{}, err
	}
	for _, dir := range s.dirs {
		for _, ext := range []string{PackJSON, PackTOML} {
			data, err := os.ReadFile(filepath.Join(dir, name+"."+ext))
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				return Theme{}, perrors.Wrap(perrors.ErrCodeInvalidTheme, err, "read theme %q", name)
			}
			return ParseTheme(name, data, ext)
		}
	}
	data, err := builtinThemes.ReadFile("themes/" + name + ".json")
	if err != nil {
		names, _ := s.Names()
		return Theme{}, perrors.New(perrors.ErrCodeInvalidTheme,
			"unknown theme %q (available: %s)", name, strings.Join(names, ", "))
	}
	return ParseTheme(name, data, PackJSON)
}

// Names lists every resolvable theme, sorted and deduplicated.
func (s *Store) Names() ([]string, error) {
	seen := map[string]bool{}
	entries, err := builtinThemes.ReadDir("themes")
	if err != nil {
		return nil, fmt.Errorf("list built-in themes: %w", err)
	}
	for _, e := range entries {
		seen[strings.TrimSuffix(e.Name(), ".json")] = true
	}
	for _, dir := range s.dirs {
		entries, err := os.ReadDir(dir)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("list themes in %s: %w", dir, err)
		}
		for _, e := range entries {
			ext := strings.TrimPrefix(filepath.Ext(e.Name()), ".")
			if e.IsDir() || (ext != PackJSON && ext != PackTOML) {
				continue
			}
			seen[strings.TrimSuffix(e.Name(), "."+ext)] = true
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	slices.Sort(names)
	return names, nil
}

// All loads every theme in name order. Themes that fail to load are
// returned in the error, the rest are still returned.
func (s *Store) All() ([]Theme, error) {
	names, err := s.Names()
	if err != nil {
		return nil, err
	}
	var (
		out  []Theme
		errs []error
	)
	for _, n := range names {
		t, err := s.Load(n)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, t)
	}
	return out, errors.Join(errs...)
}

// DefaultTheme returns the built-in feature_based theme.
func DefaultTheme() Theme {
	t, err := NewStore().Load(DefaultThemeName)
	if err != nil {
		panic(fmt.Sprintf("style: built-in default theme: %v", err))
	}
	return t
}
