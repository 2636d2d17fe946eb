// Package cli implements the maptoposter command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/Iwaschkin/maptoposter/pkg/buildinfo"
	"github.com/Iwaschkin/maptoposter/pkg/cache"
	"github.com/Iwaschkin/maptoposter/pkg/fonts"
	"github.com/Iwaschkin/maptoposter/pkg/geo"
	mapio "github.com/Iwaschkin/maptoposter/pkg/io"
	"github.com/Iwaschkin/maptoposter/pkg/layercache"
	"github.com/Iwaschkin/maptoposter/pkg/osm"
	"github.com/Iwaschkin/maptoposter/pkg/pipeline"
	"github.com/Iwaschkin/maptoposter/pkg/style"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "maptoposter"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Verbose enables debug logging and detailed output.
	Verbose bool

	// Config is loaded before any subcommand runs.
	Config     Config
	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "maptoposter turns city street maps into posters",
		Long:         `maptoposter fetches OpenStreetMap data around a city and renders it as a themed, print-ready poster in PNG, SVG or PDF.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.Verbose {
				c.SetLogLevel(LogDebug)
				installLogHooks(c.Logger)
			}
			return c.loadConfig()
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&c.Verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/maptoposter/config.toml)")

	root.AddCommand(c.renderCommand())
	root.AddCommand(c.batchCommand())
	root.AddCommand(c.themesCommand())
	root.AddCommand(c.presetsCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

func (c *CLI) loadConfig() error {
	path, explicit := c.configPath, c.configPath != ""
	if !explicit {
		p, err := configPath()
		if err != nil {
			return nil
		}
		path = p
	}
	cfg, err := loadConfig(path, explicit)
	if err != nil {
		return err
	}
	c.Config = cfg
	c.Logger.Debug("config", "path", path, "explicit", explicit)
	return nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// sourceFlags choose where geodata comes from.
type sourceFlags struct {
	noCache bool
	refresh bool
	geojson string
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "do not read or write the geodata cache")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "refetch geodata even when cached")
	cmd.Flags().StringVar(&f.geojson, "geojson", "", "read geodata from a GeoJSON file instead of OpenStreetMap")
}

// env bundles what a command needs to render posters.
type env struct {
	runner   *pipeline.Runner
	provider geo.Provider
	geocoder *osm.Geocoder
	blobs    cache.Cache
}

func (e *env) Close() error { return e.blobs.Close() }

// geocode returns job coordinates, asking the geocoder when they are unset.
func (e *env) geocode(ctx context.Context, city, country string, point *geo.Point) (geo.Point, error) {
	if point != nil {
		return *point, nil
	}
	if e.geocoder == nil {
		return geo.Point{}, errors.New("coordinates are required with --geojson")
	}
	return e.geocoder.Geocode(ctx, city, country)
}

// newEnv opens the blob store and creates the provider, geocoder and runner.
func (c *CLI) newEnv(ctx context.Context, flags sourceFlags) (*env, error) {
	cacheCfg := c.Config.Cache
	if flags.noCache {
		cacheCfg = cache.Config{Backend: cache.BackendNone}
	}
	blobs, err := cache.Open(ctx, cacheCfg)
	if err != nil {
		return nil, fmt.Errorf("open geodata cache: %w", err)
	}
	blobs = cache.Observed(blobs, "geodata")

	ttl, err := c.Config.LayerCache.TTLDuration()
	if err != nil {
		blobs.Close()
		return nil, err
	}
	layers := layercache.New(layercache.Config{
		MaxEntries: c.Config.LayerCache.MaxEntries,
		MaxBytes:   c.Config.LayerCache.MaxBytes,
		TTL:        ttl,
		Logger:     c.Logger,
	})

	osmCfg := osm.Config{
		OverpassURL:  c.Config.OverpassURL,
		NominatimURL: c.Config.NominatimURL,
		Cache:        blobs,
		Logger:       c.Logger,
		Refresh:      flags.refresh,
	}

	var (
		provider geo.Provider
		geocoder *osm.Geocoder
	)
	if flags.geojson != "" {
		local, err := mapio.OpenLocalProvider(flags.geojson)
		if err != nil {
			blobs.Close()
			return nil, err
		}
		c.Logger.Debug("local geodata", "path", flags.geojson, "features", local.Size())
		provider = local
	} else {
		provider = osm.NewProvider(osmCfg)
		geocoder = osm.NewGeocoder(osmCfg)
	}

	runner := pipeline.NewRunner(provider, layers, c.Logger)
	if c.Config.ThemesDir != "" {
		runner.Themes = style.NewStore(c.Config.ThemesDir)
	}
	if c.Config.FontsDir != "" {
		runner.Fonts = fonts.Load(c.Config.FontsDir, c.Logger)
	}
	return &env{runner: runner, provider: provider, geocoder: geocoder, blobs: blobs}, nil
}

// cacheDir returns the geodata cache directory.
func (c *CLI) cacheDir() (string, error) {
	if c.Config.Cache.Dir != "" {
		return c.Config.Cache.Dir, nil
	}
	return cache.DefaultDir()
}
