package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/Iwaschkin/maptoposter/pkg/cache"
)

// Config is the optional config file. Command-line flags override it.
type Config struct {
	Theme     string  `toml:"theme"`
	Preset    string  `toml:"preset"`
	StylePack string  `toml:"style_pack"`
	Backend   string  `toml:"backend"`
	Format    string  `toml:"format"`
	Distance  float64 `toml:"distance"`
	Width     float64 `toml:"width"`
	Height    float64 `toml:"height"`
	DPI       int     `toml:"dpi"`
	Workers   int     `toml:"workers"`
	OutputDir string  `toml:"output_dir"`
	ThemesDir string  `toml:"themes_dir"`
	FontsDir  string  `toml:"fonts_dir"`

	OverpassURL  string `toml:"overpass_url"`
	NominatimURL string `toml:"nominatim_url"`

	LayerCache LayerCacheConfig `toml:"layer_cache"`
	Cache      cache.Config     `toml:"cache"`
	Server     ServerConfig     `toml:"server"`
}

// LayerCacheConfig bounds the in-memory layer cache.
type LayerCacheConfig struct {
	MaxEntries int    `toml:"max_entries"`
	MaxBytes   int64  `toml:"max_bytes"`
	TTL        string `toml:"ttl"`
}

// TTLDuration parses TTL. Empty means the layer cache default.
func (c LayerCacheConfig) TTLDuration() (time.Duration, error) {
	if c.TTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 0, fmt.Errorf("layer_cache.ttl: %w", err)
	}
	return d, nil
}

// ServerConfig configures "maptoposter serve".
type ServerConfig struct {
	Addr        string `toml:"addr"`
	Timeout     string `toml:"timeout"`
	TexturesDir string `toml:"textures_dir"`
}

// TimeoutDuration parses Timeout. Empty means the server default.
func (c ServerConfig) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("server.timeout: %w", err)
	}
	return d, nil
}

// configPath returns $XDG_CONFIG_HOME/maptoposter/config.toml, falling back
// to ~/.config.
func configPath() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// loadConfig reads path. A missing file is only an error when the user named
// it explicitly. Unknown keys are rejected.
func loadConfig(path string, explicit bool) (Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if _, err := cfg.LayerCache.TTLDuration(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	if _, err := cfg.Server.TimeoutDuration(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}
