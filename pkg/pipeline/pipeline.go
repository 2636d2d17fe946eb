// Package pipeline provides the poster pipeline for maptoposter.
//
// This package sequences the three stages that turn a location into a
// poster, so the CLI, the batch pool and the HTTP service share one
// behavior:
//
//  1. Preparing: fetch the street network and optional layers (or reuse them
//     from the layer cache), then project them around the poster center
//  2. Compositing: resolve a render backend and draw the layers, gradients
//     and text in z-order
//  3. PostProcessing: apply raster effects to PNG output
//
// Recoverable problems (missing optional layers, projection fallbacks,
// backend substitution, unmeasurable payloads) never fail a run; they are
// reported as [Degradation] values on the [Result]. Only a missing street
// network and a backend drawing error fail it.
//
// # Usage
//
//	runner := pipeline.NewRunner(provider, layers, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    City:    "Paris",
//	    Country: "France",
//	    Point:   geo.Point{Lat: 48.8566, Lon: 2.3522},
//	    Format:  "png",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile(pipeline.Filename("Paris", result.Theme, result.Format, time.Now()), result.Artifact, 0o644)
package pipeline

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Iwaschkin/maptoposter/pkg/errors"
	"github.com/Iwaschkin/maptoposter/pkg/geo"
	"github.com/Iwaschkin/maptoposter/pkg/layercache"
	"github.com/Iwaschkin/maptoposter/pkg/render"
	"github.com/Iwaschkin/maptoposter/pkg/style"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI, API, and Batch
// =============================================================================

const (
	// DefaultDistance is the map radius in metres.
	DefaultDistance = 29000.0

	// DefaultWidth is the poster width in inches.
	DefaultWidth = 12.0

	// DefaultHeight is the poster height in inches.
	DefaultHeight = 16.0

	// DefaultFormat is the default output format.
	DefaultFormat = render.FormatPNG

	// DefaultWorkers is the batch pool size.
	DefaultWorkers = 4

	// MaxPosterSide bounds either poster side in inches.
	MaxPosterSide = 100.0
)

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains the configuration of one poster run.
// This struct supports JSON serialization for API requests.
type Options struct {
	City    string    `json:"city"`
	Country string    `json:"country,omitempty"`
	Point   geo.Point `json:"point"`

	// NameLabel and CountryLabel override the text printed on the poster.
	NameLabel    string `json:"name_label,omitempty"`
	CountryLabel string `json:"country_label,omitempty"`

	Distance float64 `json:"distance,omitempty"` // metres
	Width    float64 `json:"width,omitempty"`    // inches
	Height   float64 `json:"height,omitempty"`   // inches
	Format   string  `json:"format,omitempty"`
	DPI      int     `json:"dpi,omitempty"`

	// Theme overrides Style.ThemeName.
	Theme   string        `json:"theme,omitempty"`
	Backend string        `json:"backend,omitempty"`
	Style   *style.Config `json:"style,omitempty"`

	// Exclude drops optional layers from the request.
	Exclude layercache.Flags `json:"exclude,omitempty"`

	// NoCoalesce disables sharing of concurrent identical fetches.
	NoCoalesce bool `json:"no_coalesce,omitempty"`

	// Runtime options (not serialized)
	Logger  *log.Logger      `json:"-"`
	OnStage func(StageEvent) `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// ValidateAndSetDefaults checks required fields and applies defaults.
// This method is idempotent - calling it multiple times has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if strings.TrimSpace(o.City) == "" && strings.TrimSpace(o.NameLabel) == "" {
		return errors.New(errors.ErrCodeInvalidInput, "city is required")
	}
	if err := errors.ValidateCoordinates(o.Point.Lat, o.Point.Lon); err != nil {
		return err
	}

	if o.Distance == 0 {
		o.Distance = DefaultDistance
	}
	if err := errors.ValidateDistance(o.Distance); err != nil {
		return err
	}
	if o.Width == 0 {
		o.Width = DefaultWidth
	}
	if o.Height == 0 {
		o.Height = DefaultHeight
	}
	if !(o.Width > 0 && o.Width <= MaxPosterSide) || !(o.Height > 0 && o.Height <= MaxPosterSide) {
		return errors.New(errors.ErrCodeInvalidInput, "poster size %vx%v out of range (0, %v] inches", o.Width, o.Height, MaxPosterSide)
	}

	o.Format = strings.ToLower(strings.TrimSpace(o.Format))
	if o.Format == "" {
		o.Format = DefaultFormat
	}
	if err := ValidateFormat(o.Format); err != nil {
		return err
	}
	if o.DPI == 0 {
		o.DPI = render.DefaultDPI
	}

	if o.Style == nil {
		cfg := style.Default()
		o.Style = &cfg
	} else {
		cfg := o.Style.Clone()
		o.Style = &cfg
	}
	if o.Theme != "" {
		o.Style.ThemeName = o.Theme
	}
	if err := o.Style.Validate(); err != nil {
		return err
	}

	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// Flags returns the layer selection requested by o.
func (o *Options) Flags() layercache.Flags {
	return layercache.FlagsAll &^ o.Exclude
}

// DisplayName returns the name printed on the poster.
func (o *Options) DisplayName() string {
	if s := strings.TrimSpace(o.NameLabel); s != "" {
		return s
	}
	return strings.TrimSpace(o.City)
}

// DisplayCountry returns the country label printed on the poster.
func (o *Options) DisplayCountry() string {
	if s := strings.TrimSpace(o.CountryLabel); s != "" {
		return s
	}
	return strings.TrimSpace(o.Country)
}

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !render.ValidFormats[format] {
		return errors.New(errors.ErrCodeInvalidFormat, "invalid format: %q (must be one of: png, svg, pdf)", format)
	}
	return nil
}

// =============================================================================
// Stages
// =============================================================================

// Stage is a pipeline state.
type Stage string

const (
	StagePreparing      Stage = "preparing"
	StageCompositing    Stage = "compositing"
	StagePostProcessing Stage = "post_processing"
	StageDone           Stage = "done"
	StageFailed         Stage = "failed"
)

// StageEvent reports a stage transition to Options.OnStage.
type StageEvent struct {
	RunID string
	Stage Stage
	// Err is set on StageFailed.
	Err error
	// Elapsed is the time since the run started.
	Elapsed time.Duration
}

// =============================================================================
// Results
// =============================================================================

// Degradation records a problem the run recovered from.
type Degradation struct {
	Code    errors.Code `json:"code"`
	Layer   string      `json:"layer,omitempty"`
	Message string      `json:"message"`
}

func (d Degradation) String() string {
	if d.Layer == "" {
		return fmt.Sprintf("%s: %s", d.Code, d.Message)
	}
	return fmt.Sprintf("%s (%s): %s", d.Code, d.Layer, d.Message)
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// RunID identifies the run in logs and hooks.
	RunID string `json:"run_id"`

	// Artifact is the encoded poster.
	Artifact []byte `json:"-"`
	Format   string `json:"format"`

	// EffectsApplied lists raster effects in application order.
	EffectsApplied []string `json:"effects_applied"`

	// CacheHit is true when the layers came from the layer cache.
	CacheHit bool `json:"cache_hit"`

	// Layers lists the drawn layers in z-order.
	Layers []string `json:"layers"`

	Degradations []Degradation `json:"degradations,omitempty"`

	Theme   string `json:"theme"`
	Backend string `json:"backend"`

	// GrainSeed is the seed used for grain, so a poster can be reproduced.
	GrainSeed int64 `json:"grain_seed"`

	// Stats contains timing and size information.
	Stats Stats `json:"stats"`
}

// Degraded reports whether any degradation with code occurred.
func (r *Result) Degraded(code errors.Code) bool {
	for _, d := range r.Degradations {
		if d.Code == code {
			return true
		}
	}
	return false
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Features        int           `json:"features"`
	PrepareTime     time.Duration `json:"prepare_time"`
	CompositeTime   time.Duration `json:"composite_time"`
	PostProcessTime time.Duration `json:"post_process_time"`
}
