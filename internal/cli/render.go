package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iwaschkin/maptoposter/pkg/errors"
	"github.com/Iwaschkin/maptoposter/pkg/geo"
	"github.com/Iwaschkin/maptoposter/pkg/layercache"
	"github.com/Iwaschkin/maptoposter/pkg/pipeline"
	"github.com/Iwaschkin/maptoposter/pkg/render"
	"github.com/Iwaschkin/maptoposter/pkg/style"
)

// posterFlags are the flags shared by render and batch.
type posterFlags struct {
	theme     string
	allThemes bool
	preset    string
	stylePack string
	seed      int64

	distance float64
	width    float64
	height   float64
	format   string
	dpi      int
	backend  string
	skip     string
	output   string
}

func (f *posterFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.theme, "theme", "t", "", "color theme (see 'maptoposter themes')")
	fs.BoolVar(&f.allThemes, "all-themes", false, "render one poster per available theme")
	fs.StringVar(&f.preset, "preset", "", "style preset (see 'maptoposter presets')")
	fs.StringVar(&f.stylePack, "style-pack", "", "style pack file (.json or .toml)")
	fs.Int64Var(&f.seed, "seed", 0, "grain seed for reproducible effects")
	fs.Float64VarP(&f.distance, "distance", "d", 0, fmt.Sprintf("map radius in metres (default %d)", int(pipeline.DefaultDistance)))
	fs.Float64VarP(&f.width, "width", "W", 0, fmt.Sprintf("poster width in inches (default %d)", int(pipeline.DefaultWidth)))
	fs.Float64VarP(&f.height, "height", "H", 0, fmt.Sprintf("poster height in inches (default %d)", int(pipeline.DefaultHeight)))
	fs.StringVarP(&f.format, "format", "f", "", "output format: png (default), svg, pdf")
	fs.IntVar(&f.dpi, "dpi", 0, "raster resolution (default 300)")
	fs.StringVar(&f.backend, "backend", "", "render backend: canvas (default), density")
	fs.StringVar(&f.skip, "skip", "", "optional layers to leave out: water,waterways,parks,rail")
	fs.StringVarP(&f.output, "output", "o", "", "output file, or directory for several posters")
}

// merge fills unset flags from the config file.
func (f *posterFlags) merge(cfg Config) {
	f.theme = firstNonEmpty(f.theme, cfg.Theme)
	f.preset = firstNonEmpty(f.preset, cfg.Preset)
	f.stylePack = firstNonEmpty(f.stylePack, cfg.StylePack)
	f.format = firstNonEmpty(f.format, cfg.Format)
	f.backend = firstNonEmpty(f.backend, cfg.Backend)
	f.output = firstNonEmpty(f.output, cfg.OutputDir)
	if f.distance == 0 {
		f.distance = cfg.Distance
	}
	if f.width == 0 {
		f.width = cfg.Width
	}
	if f.height == 0 {
		f.height = cfg.Height
	}
	if f.dpi == 0 {
		f.dpi = cfg.DPI
	}
}

// styleConfig resolves the style: a style pack wins over a preset, which
// wins over the defaults. seedSet pins the grain seed.
func (f *posterFlags) styleConfig(seedSet bool) (*style.Config, error) {
	cfg := style.Default()
	switch {
	case f.stylePack != "":
		pack, err := style.LoadPack(f.stylePack)
		if err != nil {
			return nil, err
		}
		cfg = pack
	case f.preset != "":
		p, err := style.LookupPreset(f.preset)
		if err != nil {
			return nil, err
		}
		cfg = p.Config
	}
	if seedSet {
		cfg = cfg.WithSeed(f.seed)
	}
	return &cfg, nil
}

// options builds the pipeline options for one poster, without coordinates.
func (f *posterFlags) options(cfg *style.Config) (pipeline.Options, error) {
	exclude, err := layercache.ParseFlags(f.skip)
	if err != nil {
		return pipeline.Options{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "--skip")
	}
	return pipeline.Options{
		Distance: f.distance,
		Width:    f.width,
		Height:   f.height,
		Format:   f.format,
		DPI:      f.dpi,
		Theme:    f.theme,
		Backend:  f.backend,
		Style:    cfg,
		Exclude:  exclude,
	}, nil
}

// themes returns the themes to render: every theme with --all-themes, else
// the chosen one (empty selects the style's or the default theme).
func (f *posterFlags) themes(store *style.Store) ([]string, error) {
	if !f.allThemes {
		return []string{f.theme}, nil
	}
	return store.Names()
}

// outputPath returns where a poster is written. A single poster may be
// written to an explicit file; otherwise -o names a directory.
func (f *posterFlags) outputPath(city, theme, format string, single bool) string {
	if single && f.output != "" && render.ValidFormats[strings.TrimPrefix(strings.ToLower(filepath.Ext(f.output)), ".")] {
		return f.output
	}
	dir := f.output
	if dir == "" {
		dir = "posters"
	}
	return filepath.Join(dir, pipeline.Filename(city, theme, format, time.Now()))
}

// =============================================================================
// render
// =============================================================================

type renderOpts struct {
	posterFlags
	source sourceFlags

	city         string
	country      string
	lat, lon     float64
	nameLabel    string
	countryLabel string
}

func (c *CLI) renderCommand() *cobra.Command {
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a poster of one city",
		Example: `  maptoposter render -c Paris -C France
  maptoposter render -c Tokyo -C Japan -t japanese_ink -d 15000 -f svg
  maptoposter render -c Venice -C Italy --all-themes -o posters/venice`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.merge(c.Config)
			coordsSet := cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon")
			if coordsSet && !(cmd.Flags().Changed("lat") && cmd.Flags().Changed("lon")) {
				return fmt.Errorf("--lat and --lon must be given together")
			}
			var point *geo.Point
			if coordsSet {
				point = &geo.Point{Lat: opts.lat, Lon: opts.lon}
			}
			return c.runRender(cmd.Context(), &opts, point, cmd.Flags().Changed("seed"))
		},
	}

	cmd.Flags().StringVarP(&opts.city, "city", "c", "", "city name (required)")
	cmd.Flags().StringVarP(&opts.country, "country", "C", "", "country name")
	cmd.Flags().Float64Var(&opts.lat, "lat", 0, "latitude, skips geocoding")
	cmd.Flags().Float64Var(&opts.lon, "lon", 0, "longitude, skips geocoding")
	cmd.Flags().StringVar(&opts.nameLabel, "name", "", "text printed instead of the city name")
	cmd.Flags().StringVar(&opts.countryLabel, "country-label", "", "text printed instead of the country name")
	_ = cmd.MarkFlagRequired("city")
	opts.posterFlags.register(cmd)
	c.completePosterFlags(cmd)
	opts.source.register(cmd)

	return cmd
}

func (c *CLI) runRender(ctx context.Context, opts *renderOpts, point *geo.Point, seedSet bool) error {
	cfg, err := opts.styleConfig(seedSet)
	if err != nil {
		return err
	}
	base, err := opts.options(cfg)
	if err != nil {
		return err
	}
	base.City, base.Country = opts.city, opts.country
	base.NameLabel, base.CountryLabel = opts.nameLabel, opts.countryLabel

	e, err := c.newEnv(ctx, opts.source)
	if err != nil {
		return err
	}
	defer e.Close()

	themes, err := opts.themes(e.runner.Themes)
	if err != nil {
		return err
	}

	spinner := newSpinnerWithContext(ctx, "Locating "+opts.city)
	spinner.Start()
	base.Point, err = e.geocode(ctx, opts.city, opts.country, point)
	if err != nil {
		spinner.StopWithError("Could not locate " + opts.city)
		return err
	}
	spinner.Stop()
	printInfo("%s at %s", opts.city, base.Point)

	var failed int
	for _, theme := range themes {
		job := opts.city
		if theme != "" {
			job += " [" + theme + "]"
		}
		run := base
		run.Theme = theme
		if err := c.renderPoster(ctx, e.runner, run, job, opts.posterFlags, len(themes) == 1); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failed++
			if len(themes) == 1 {
				return err
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d posters failed", failed, len(themes))
	}
	if !opts.allThemes {
		printNextStep("Try every theme", fmt.Sprintf("maptoposter render -c %q --all-themes", opts.city))
	}
	return nil
}

// renderPoster renders and writes one poster, reporting progress.
func (c *CLI) renderPoster(ctx context.Context, runner *pipeline.Runner, opts pipeline.Options, job string, flags posterFlags, single bool) error {
	prog := newProgress(c.Logger)
	spinner := newSpinnerWithContext(ctx, job)
	opts.OnStage = func(e pipeline.StageEvent) {
		spinner.OnStage(job)(e)
		stageLogger(c.Logger, job)(e)
	}
	spinner.Start()

	res, err := runner.Execute(ctx, opts)
	if err != nil && spinner.Cancelled() {
		spinner.Stop()
		return err
	}
	if err != nil {
		spinner.StopWithError(fmt.Sprintf("%s: %s", job, errors.UserMessage(err)))
		return err
	}

	path := flags.outputPath(opts.City, res.Theme, res.Format, single)
	if err := writeArtifact(path, res.Artifact); err != nil {
		spinner.StopWithError(fmt.Sprintf("%s: %v", job, err))
		return err
	}
	spinner.StopWithSuccess(job)
	printFile(path)
	printPosterStats(res)
	printDegradations(res, c.Verbose)
	c.Logger.Debug("rendered", "job", job, "bytes", len(res.Artifact), "took", prog.elapsed())
	return nil
}

func writeArtifact(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "create output directory")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", path)
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
