package style

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	perrors "github.com/Iwaschkin/maptoposter/pkg/errors"
)

// Pack formats.
const (
	PackJSON = "json"
	PackTOML = "toml"
)

// LoadPack reads a style pack from path. Files ending in .toml are decoded as
// TOML, everything else as JSON. Keys the pack does not set keep their
// [Default] values; width maps are merged key by key.
func LoadPack(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, perrors.Wrap(perrors.ErrCodeInvalidStyle, err, "read style pack")
	}
	format := PackJSON
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		format = PackTOML
	}
	cfg, err := ParsePack(data, format)
	if err != nil {
		return Config{}, perrors.Wrap(perrors.ErrCodeInvalidStyle, err, "style pack %s", filepath.Base(path))
	}
	return cfg, nil
}

// ParsePack decodes a style pack. Unknown keys are rejected in both formats.
func ParsePack(data []byte, format string) (Config, error) {
	cfg := Default()
	switch format {
	case PackTOML:
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return Config{}, perrors.Wrap(perrors.ErrCodeInvalidStyle, err, "decode toml")
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return Config{}, perrors.New(perrors.ErrCodeInvalidStyle, "unknown style pack keys: %s", strings.Join(keys, ", "))
		}
	case PackJSON, "":
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			return Config{}, perrors.New(perrors.ErrCodeInvalidStyle, "style pack must be a JSON object")
		}
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, perrors.Wrap(perrors.ErrCodeInvalidStyle, err, "decode json")
		}
	default:
		return Config{}, perrors.New(perrors.ErrCodeInvalidFormat, "unsupported style pack format %q", format)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
