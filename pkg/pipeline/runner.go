package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/Iwaschkin/maptoposter/pkg/errors"
	"github.com/Iwaschkin/maptoposter/pkg/fonts"
	"github.com/Iwaschkin/maptoposter/pkg/geo"
	"github.com/Iwaschkin/maptoposter/pkg/layercache"
	"github.com/Iwaschkin/maptoposter/pkg/observability"
	"github.com/Iwaschkin/maptoposter/pkg/postprocess"
	"github.com/Iwaschkin/maptoposter/pkg/render"
	"github.com/Iwaschkin/maptoposter/pkg/style"
	"github.com/Iwaschkin/maptoposter/pkg/typography"
)

// Runner encapsulates pipeline execution with layer caching.
// The CLI, the batch pool and the HTTP service share one Runner.
//
// The Runner is stateless except for the layer cache and the in-flight
// fetch group - it doesn't store pipeline results. Multiple goroutines can
// safely use the same Runner with different options.
type Runner struct {
	Provider geo.Provider
	Layers   *layercache.Cache
	Registry *render.Registry
	Themes   *style.Store
	Fonts    *fonts.Set
	Logger   *log.Logger

	// Coalesce shares one fetch between concurrent runs for the same key.
	Coalesce bool

	group singleflight.Group
}

// NewRunner creates a runner with the given provider and layer cache.
// If layers is nil, a cache with default limits is created.
func NewRunner(provider geo.Provider, layers *layercache.Cache, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	if layers == nil {
		layers = layercache.New(layercache.Config{Logger: logger})
	}
	registry := render.DefaultRegistry()
	registry.SetLogger(logger)
	return &Runner{
		Provider: provider,
		Layers:   layers,
		Registry: registry,
		Themes:   style.NewStore(),
		Fonts:    fonts.Default(),
		Logger:   logger,
		Coalesce: true,
	}
}

// run carries the state of one Execute call.
type run struct {
	id     string
	opts   Options
	theme  style.Theme
	logger *log.Logger
	start  time.Time
	result *Result
}

// Execute runs the complete prepare → composite → post-process pipeline.
// A failed run returns a nil result and a classified error.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if r.Provider == nil {
		return nil, errors.New(errors.ErrCodeInternal, "runner has no geodata provider")
	}
	theme, err := r.Themes.Load(opts.Style.ThemeName)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	ru := &run{
		id:     id,
		opts:   opts,
		theme:  theme,
		logger: opts.Logger.With("run", id[:8]),
		start:  time.Now(),
		result: &Result{RunID: id, Format: opts.Format, Theme: theme.ID},
	}

	err = r.execute(ctx, ru)
	observability.Pipeline().OnRunComplete(ctx, id, ru.result.CacheHit, time.Since(ru.start), err)
	if err != nil {
		r.transition(ru, StageFailed, err)
		ru.logger.Error("poster failed", "city", opts.City, "err", err)
		return nil, err
	}
	r.transition(ru, StageDone, nil)
	ru.logger.Info("poster complete",
		"city", opts.City,
		"format", opts.Format,
		"bytes", len(ru.result.Artifact),
		"cache_hit", ru.result.CacheHit,
		"duration", time.Since(ru.start))
	return ru.result, nil
}

func (r *Runner) execute(ctx context.Context, ru *run) error {
	var prepared layercache.Payload
	err := r.stage(ctx, ru, StagePreparing, func() error {
		var err error
		prepared, err = r.prepare(ctx, ru)
		return err
	})
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}

	var target *render.Target
	err = r.stage(ctx, ru, StageCompositing, func() error {
		var err error
		target, err = r.composite(ctx, ru, prepared)
		return err
	})
	if err != nil {
		return fmt.Errorf("composite: %w", err)
	}

	if postprocess.NeedsPostprocessing(ru.opts.Format, *ru.opts.Style) {
		err = r.stage(ctx, ru, StagePostProcessing, func() error {
			return r.postProcess(ru, target)
		})
		if err != nil {
			return fmt.Errorf("post-process: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := target.Encode(&buf); err != nil {
		return errors.Wrap(errors.ErrCodeBackendDraw, err, "encode %s", ru.opts.Format)
	}
	ru.result.Artifact = buf.Bytes()
	return nil
}

// stage runs fn as stage, reporting the transition and timing.
func (r *Runner) stage(ctx context.Context, ru *run, stage Stage, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := ru.opts.City
	r.transition(ru, stage, nil)
	observability.Pipeline().OnStageStart(ctx, string(stage), key)
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	observability.Pipeline().OnStageComplete(ctx, string(stage), key, elapsed, err)

	switch stage {
	case StagePreparing:
		ru.result.Stats.PrepareTime = elapsed
	case StageCompositing:
		ru.result.Stats.CompositeTime = elapsed
	case StagePostProcessing:
		ru.result.Stats.PostProcessTime = elapsed
	}
	return err
}

func (r *Runner) transition(ru *run, stage Stage, err error) {
	ru.logger.Debug("stage", "stage", stage)
	if ru.opts.OnStage != nil {
		ru.opts.OnStage(StageEvent{RunID: ru.id, Stage: stage, Err: err, Elapsed: time.Since(ru.start)})
	}
}

func (ru *run) degrade(code errors.Code, layer, format string, args ...any) {
	d := Degradation{Code: code, Layer: layer, Message: fmt.Sprintf(format, args...)}
	ru.result.Degradations = append(ru.result.Degradations, d)
	if code == errors.ErrCodeBackendUnavailable || code == errors.ErrCodeDataAbsent {
		ru.logger.Debug("degraded", "code", code, "layer", layer, "detail", d.Message)
		return
	}
	ru.logger.Warn("degraded", "code", code, "layer", layer, "detail", d.Message)
}

// =============================================================================
// Compositing
// =============================================================================

func (r *Runner) composite(ctx context.Context, ru *run, prepared layercache.Payload) (*render.Target, error) {
	opts := ru.opts
	cfg := *opts.Style

	backend, fellBack := r.Registry.ResolveFor(opts.Backend, opts.Format)
	if fellBack {
		ru.degrade(errors.ErrCodeBackendUnavailable, "", "backend %q unavailable for %s, using %s",
			opts.Backend, opts.Format, backend.Name())
	}
	ru.result.Backend = backend.Name()

	dist := geo.CompensatedDistance(opts.Distance, opts.Width, opts.Height)
	viewport := geo.CropLimits(geo.Coord{}, dist, opts.Width/opts.Height)

	visible := make(map[string]*geo.FeatureCollection, len(prepared))
	for name, fc := range prepared {
		visible[name] = geo.Clip(fc, viewport)
		ru.result.Stats.Features += visible[name].Len()
	}

	layers := render.BuildLayers(visible, cfg, ru.theme)
	layers = append(layers, render.GradientLayers(ru.theme, cfg.GradientStrength)...)
	text, layout := render.TextLayer(render.Labels{
		Name:       opts.DisplayName(),
		Country:    opts.DisplayCountry(),
		Center:     opts.Point,
		Width:      opts.Width,
		Height:     opts.Height,
		Typography: typographyConfig(cfg),
	}, ru.theme)
	layers = append(layers, text)
	render.SortLayers(layers)
	ru.result.Layers = render.Names(layers)
	ru.logger.Debug("layout", "lines", layout.Lines, "split", layout.Split())

	target, err := render.NewTarget(opts.Format, opts.Width, opts.Height, opts.DPI,
		render.WithViewport(viewport),
		render.WithFonts(r.Fonts),
		render.WithBackground(ru.theme.Color(style.KeyBG)),
	)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "create %s target", opts.Format)
	}
	if err := backend.RenderLayers(ctx, layers, target); err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, errors.Wrap(errors.ErrCodeBackendDraw, err, "render with %s", backend.Name())
	}
	return target, nil
}

func typographyConfig(cfg style.Config) typography.Config {
	tc := typography.DefaultConfig()
	tc.Tracking = cfg.TypographyTracking
	tc.NameY = cfg.CityNameY
	tc.DividerY = cfg.DividerY
	tc.CountryY = cfg.CountryLabelY
	tc.CoordsY = cfg.CoordsY
	tc.CenterX = cfg.TextCenterX
	tc.AttributionX = cfg.AttributionX
	tc.AttributionY = cfg.AttributionY
	return tc
}

// =============================================================================
// Post-processing
// =============================================================================

func (r *Runner) postProcess(ru *run, target *render.Target) error {
	cfg := *ru.opts.Style
	seed := rand.Int64()
	if cfg.Seed != nil {
		seed = *cfg.Seed
	}
	ru.result.GrainSeed = seed

	img, applied, err := postprocess.Apply(target.Image(), postprocess.Options{
		Config: cfg,
		Seed:   seed,
		Logger: ru.logger,
	})
	if err != nil {
		return err
	}
	ru.result.EffectsApplied = applied
	return target.SetImage(img)
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
