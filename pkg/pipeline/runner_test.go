package pipeline

import (
	"bytes"
	"context"
	stderrors "errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Iwaschkin/maptoposter/pkg/errors"
	"github.com/Iwaschkin/maptoposter/pkg/geo"
	"github.com/Iwaschkin/maptoposter/pkg/layercache"
	"github.com/Iwaschkin/maptoposter/pkg/render"
	"github.com/Iwaschkin/maptoposter/pkg/style"
)

var paris = geo.Point{Lat: 48.8566, Lon: 2.3522}

// fakeProvider serves a small fixed street grid around its center.
type fakeProvider struct {
	network  *geo.FeatureCollection
	features map[string]*geo.FeatureCollection // keyed by first selector key
	fail     error
	release  chan struct{}

	networkCalls atomic.Int32
	featureCalls atomic.Int32
}

func newFakeProvider() *fakeProvider {
	line := func(id, highway string, dLon, dLat float64) geo.Feature {
		return geo.Feature{
			ID:   id,
			Tags: map[string]any{"highway": highway},
			Geometry: geo.Geometry{Type: geo.TypeLineString, Lines: [][]geo.Coord{{
				{X: paris.Lon - dLon, Y: paris.Lat - dLat},
				{X: paris.Lon + dLon, Y: paris.Lat + dLat},
			}}},
		}
	}
	pond := geo.Feature{
		ID:   "pond",
		Tags: map[string]any{"natural": "water"},
		Geometry: geo.Geometry{Type: geo.TypePolygon, Polygons: [][][]geo.Coord{{{
			{X: paris.Lon, Y: paris.Lat},
			{X: paris.Lon + .01, Y: paris.Lat},
			{X: paris.Lon + .01, Y: paris.Lat + .01},
			{X: paris.Lon, Y: paris.Lat},
		}}}},
	}
	return &fakeProvider{
		network: &geo.FeatureCollection{Features: []geo.Feature{
			line("a", "motorway", .02, 0),
			line("b", "residential", 0, .02),
			line("c", "footway", .01, .01),
		}},
		features: map[string]*geo.FeatureCollection{
			"natural": {Features: []geo.Feature{pond}},
		},
	}
}

func (p *fakeProvider) FetchNetwork(ctx context.Context, _ geo.Point, _ float64) (*geo.FeatureCollection, error) {
	p.networkCalls.Add(1)
	if p.release != nil {
		select {
		case <-p.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.fail != nil {
		return nil, p.fail
	}
	return p.network.Clone(), nil
}

func (p *fakeProvider) FetchFeatures(_ context.Context, _ geo.Point, _ float64, sel geo.Selector) (*geo.FeatureCollection, error) {
	p.featureCalls.Add(1)
	fc, ok := p.features[sel.Keys()[0]]
	if !ok {
		return nil, nil
	}
	return fc.Clone(), nil
}

func smallPoster(format string) Options {
	return Options{
		City:    "Paris",
		Country: "France",
		Point:   paris,
		Width:   2,
		Height:  3,
		DPI:     30,
		Format:  format,
	}
}

func newTestRunner(p geo.Provider) *Runner {
	return NewRunner(p, nil, nil)
}

func TestExecuteSVG(t *testing.T) {
	r := newTestRunner(newFakeProvider())
	res, err := r.Execute(context.Background(), smallPoster("svg"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !bytes.Contains(res.Artifact, []byte("<svg")) {
		t.Error("artifact is not an SVG document")
	}
	if res.Backend != render.BackendCanvas {
		t.Errorf("Backend = %q, want %q", res.Backend, render.BackendCanvas)
	}
	if res.Theme != style.DefaultThemeName {
		t.Errorf("Theme = %q, want %q", res.Theme, style.DefaultThemeName)
	}
	if res.RunID == "" {
		t.Error("RunID is empty")
	}
	if res.Stats.Features == 0 {
		t.Error("no features were drawn")
	}
	if !slices.Contains(res.Layers, "water") {
		t.Errorf("Layers = %v, want water among them", res.Layers)
	}
}

func TestExecutePNG(t *testing.T) {
	r := newTestRunner(newFakeProvider())
	res, err := r.Execute(context.Background(), smallPoster("png"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !bytes.HasPrefix(res.Artifact, []byte("\x89PNG")) {
		t.Error("artifact is not a PNG")
	}
	if len(res.EffectsApplied) != 0 {
		t.Errorf("EffectsApplied = %v, want none", res.EffectsApplied)
	}
}

func TestExecutePDF(t *testing.T) {
	r := newTestRunner(newFakeProvider())
	res, err := r.Execute(context.Background(), smallPoster("pdf"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !bytes.HasPrefix(res.Artifact, []byte("%PDF")) {
		t.Error("artifact is not a PDF document")
	}
	if res.Backend != render.BackendCanvas {
		t.Errorf("Backend = %q, want %q", res.Backend, render.BackendCanvas)
	}
}

// failingBackend draws nothing and fails on the named layer.
type failingBackend struct{ layer string }

func (failingBackend) Name() string { return "broken" }
func (failingBackend) Capabilities() render.Capabilities { return render.Capabilities{CanRenderRoads: true} }
func (failingBackend) Available() bool { return true }
func (b failingBackend) RenderLayers(_ context.Context, layers []render.Layer, _ *render.Target) error {
	for _, l := range layers {
		if l.Name == b.layer {
			return &render.BackendError{Backend: "broken", Layer: l.Name, Err: stderrors.New("stroke failed")}
		}
	}
	return nil
}

func TestExecuteBackendDrawError(t *testing.T) {
	r := newTestRunner(newFakeProvider())
	r.Registry.Register(failingBackend{layer: "water"})

	var stages []Stage
	opts := smallPoster("svg")
	opts.Backend = "broken"
	opts.OnStage = func(e StageEvent) { stages = append(stages, e.Stage) }

	res, err := r.Execute(context.Background(), opts)
	if res != nil {
		t.Error("failed run returned a result")
	}
	if !errors.Is(err, errors.ErrCodeBackendDraw) {
		t.Fatalf("error = %v, want %s", err, errors.ErrCodeBackendDraw)
	}
	var be *render.BackendError
	if !stderrors.As(err, &be) {
		t.Fatalf("error = %v, want a wrapped *render.BackendError", err)
	}
	if be.Layer != "water" {
		t.Errorf("BackendError.Layer = %q, want water", be.Layer)
	}
	if len(stages) == 0 || stages[len(stages)-1] != StageFailed {
		t.Errorf("stages = %v, want a final %s", stages, StageFailed)
	}
}

func TestExecuteLayerCacheHit(t *testing.T) {
	p := newFakeProvider()
	r := newTestRunner(p)
	opts := smallPoster("svg")

	first, err := r.Execute(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Execute(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if first.CacheHit {
		t.Error("first run should miss the cache")
	}
	if !second.CacheHit {
		t.Error("second run should hit the cache")
	}
	if got := p.networkCalls.Load(); got != 1 {
		t.Errorf("network fetched %d times, want 1", got)
	}
	if !slices.Equal(first.Layers, second.Layers) {
		t.Errorf("layers differ: %v vs %v", first.Layers, second.Layers)
	}
	if s := r.Layers.Stats(); s.Hits != 1 || s.Misses != 1 {
		t.Errorf("cache stats = %+v, want 1 hit and 1 miss", s)
	}
}

func TestExecuteLayerCacheDisabled(t *testing.T) {
	p := newFakeProvider()
	r := newTestRunner(p)
	cfg := style.Default()
	cfg.EnableLayerCache = false
	opts := smallPoster("svg")
	opts.Style = &cfg

	for range 2 {
		res, err := r.Execute(context.Background(), opts)
		if err != nil {
			t.Fatal(err)
		}
		if res.CacheHit {
			t.Error("cache hit with the layer cache disabled")
		}
	}
	if got := p.networkCalls.Load(); got != 2 {
		t.Errorf("network fetched %d times, want 2", got)
	}
}

func TestExecuteAbsentLayersDegrade(t *testing.T) {
	p := newFakeProvider()
	p.features = nil
	r := newTestRunner(p)

	res, err := r.Execute(context.Background(), smallPoster("svg"))
	if err != nil {
		t.Fatalf("absent optional layers should not fail the run: %v", err)
	}
	var absent []string
	for _, d := range res.Degradations {
		if d.Code == errors.ErrCodeDataAbsent {
			absent = append(absent, d.Layer)
		}
	}
	slices.Sort(absent)
	want := []string{render.SourceParks, render.SourceRailways, render.SourceWater, render.SourceWaterways}
	slices.Sort(want)
	if !slices.Equal(absent, want) {
		t.Errorf("absent layers = %v, want %v", absent, want)
	}
}

func TestExecuteExcludedLayersNotFetched(t *testing.T) {
	p := newFakeProvider()
	r := newTestRunner(p)
	opts := smallPoster("svg")
	opts.Exclude = layercache.FlagWater | layercache.FlagWaterways | layercache.FlagParks | layercache.FlagRail

	if _, err := r.Execute(context.Background(), opts); err != nil {
		t.Fatal(err)
	}
	if got := p.featureCalls.Load(); got != 0 {
		t.Errorf("optional layers fetched %d times, want 0", got)
	}
}

func TestExecuteMissingNetwork(t *testing.T) {
	p := newFakeProvider()
	p.network = nil
	r := newTestRunner(p)

	var stages []Stage
	opts := smallPoster("svg")
	opts.OnStage = func(e StageEvent) { stages = append(stages, e.Stage) }

	res, err := r.Execute(context.Background(), opts)
	if res != nil {
		t.Error("failed run returned a result")
	}
	if !errors.Is(err, errors.ErrCodePrimaryDataMissing) {
		t.Fatalf("error = %v, want %s", err, errors.ErrCodePrimaryDataMissing)
	}
	if len(stages) == 0 || stages[len(stages)-1] != StageFailed {
		t.Errorf("stages = %v, want a final %s", stages, StageFailed)
	}
}

func TestExecuteNetworkError(t *testing.T) {
	p := newFakeProvider()
	p.fail = stderrors.New("overpass timeout")
	r := newTestRunner(p)

	_, err := r.Execute(context.Background(), smallPoster("svg"))
	if !errors.Is(err, errors.ErrCodePrimaryDataMissing) {
		t.Fatalf("error = %v, want %s", err, errors.ErrCodePrimaryDataMissing)
	}
}

func TestExecuteUnknownTheme(t *testing.T) {
	r := newTestRunner(newFakeProvider())
	opts := smallPoster("svg")
	opts.Theme = "does_not_exist"

	var called bool
	opts.OnStage = func(StageEvent) { called = true }
	if _, err := r.Execute(context.Background(), opts); !errors.Is(err, errors.ErrCodeInvalidTheme) {
		t.Fatalf("error = %v, want %s", err, errors.ErrCodeInvalidTheme)
	}
	if called {
		t.Error("no stage should start for an unknown theme")
	}
}

func TestExecuteNoProvider(t *testing.T) {
	r := newTestRunner(nil)
	if _, err := r.Execute(context.Background(), smallPoster("svg")); !errors.Is(err, errors.ErrCodeInternal) {
		t.Fatalf("error = %v, want %s", err, errors.ErrCodeInternal)
	}
}

func TestExecuteStageSequence(t *testing.T) {
	seed := int64(7)
	effects := style.Default()
	effects.GrainStrength = .5
	effects.VignetteStrength = .3
	effects.Seed = &seed

	tests := []struct {
		name   string
		format string
		style  *style.Config
		want   []Stage
	}{
		{"png without effects", "png", nil,
			[]Stage{StagePreparing, StageCompositing, StageDone}},
		{"png with effects", "png", &effects,
			[]Stage{StagePreparing, StageCompositing, StagePostProcessing, StageDone}},
		{"svg skips effects", "svg", &effects,
			[]Stage{StagePreparing, StageCompositing, StageDone}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRunner(newFakeProvider())
			var stages []Stage
			opts := smallPoster(tt.format)
			opts.Style = tt.style
			opts.OnStage = func(e StageEvent) { stages = append(stages, e.Stage) }

			res, err := r.Execute(context.Background(), opts)
			if err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(stages, tt.want) {
				t.Errorf("stages = %v, want %v", stages, tt.want)
			}
			if tt.format == "png" && tt.style != nil {
				if !slices.Equal(res.EffectsApplied, []string{"grain", "vignette"}) {
					t.Errorf("EffectsApplied = %v", res.EffectsApplied)
				}
				if res.GrainSeed != seed {
					t.Errorf("GrainSeed = %d, want %d", res.GrainSeed, seed)
				}
			}
		})
	}
}

func TestExecuteDensityFallsBackForVector(t *testing.T) {
	r := newTestRunner(newFakeProvider())
	opts := smallPoster("svg")
	opts.Backend = "datashader"

	res, err := r.Execute(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if res.Backend != render.BackendCanvas {
		t.Errorf("Backend = %q, want %q", res.Backend, render.BackendCanvas)
	}
	if !res.Degraded(errors.ErrCodeBackendUnavailable) {
		t.Errorf("missing %s degradation: %v", errors.ErrCodeBackendUnavailable, res.Degradations)
	}
}

func TestExecuteDensityRaster(t *testing.T) {
	r := newTestRunner(newFakeProvider())
	opts := smallPoster("png")
	opts.Backend = render.BackendDensity

	res, err := r.Execute(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if res.Backend != render.BackendDensity {
		t.Errorf("Backend = %q, want %q", res.Backend, render.BackendDensity)
	}
	if res.Degraded(errors.ErrCodeBackendUnavailable) {
		t.Error("density should draw PNG without falling back")
	}
}

func TestExecuteCoalescesConcurrentFetches(t *testing.T) {
	p := newFakeProvider()
	p.release = make(chan struct{})
	r := newTestRunner(p)
	cfg := style.Default()
	cfg.EnableLayerCache = false
	opts := smallPoster("svg")
	opts.Style = &cfg

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = r.Execute(context.Background(), opts)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(p.release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("run %d: %v", i, err)
		}
	}
	if got := p.networkCalls.Load(); got != 1 {
		t.Errorf("network fetched %d times, want 1", got)
	}
}

func TestExecuteCoalescedFetchSurvivesCancelledCaller(t *testing.T) {
	p := newFakeProvider()
	p.release = make(chan struct{})
	r := newTestRunner(p)
	cfg := style.Default()
	cfg.EnableLayerCache = false
	opts := smallPoster("svg")
	opts.Style = &cfg

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := r.Execute(ctx, opts)
		first <- err
	}()
	for p.networkCalls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	second := make(chan error, 1)
	go func() {
		_, err := r.Execute(context.Background(), opts)
		second <- err
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	if err := <-first; !stderrors.Is(err, context.Canceled) {
		t.Errorf("cancelled run error = %v, want context.Canceled", err)
	}
	close(p.release)
	if err := <-second; err != nil {
		t.Errorf("waiting run failed: %v", err)
	}
	if got := p.networkCalls.Load(); got != 1 {
		t.Errorf("network fetched %d times, want 1", got)
	}
}

func TestExecuteCancelled(t *testing.T) {
	r := newTestRunner(newFakeProvider())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.Execute(ctx, smallPoster("svg")); !stderrors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}
