package render

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// Backend names.
const (
	BackendCanvas  = "canvas"
	BackendDensity = "density"
)

// Capabilities describes what a backend can draw.
type Capabilities struct {
	CanRenderRoads bool
	CanApplyGlow   bool
	// RasterOnly backends cannot draw vector targets.
	RasterOnly bool
}

// Backend draws layers onto a target. Layers may arrive in any order;
// backends draw them by ascending z-order.
type Backend interface {
	Name() string
	Capabilities() Capabilities
	Available() bool
	RenderLayers(ctx context.Context, layers []Layer, target *Target) error
}

// BackendError reports a drawing failure inside a backend.
type BackendError struct {
	Backend string
	Layer   string
	Err     error
}

func (e *BackendError) Error() string {
	if e.Layer == "" {
		return fmt.Sprintf("backend %s: %v", e.Backend, e.Err)
	}
	return fmt.Sprintf("backend %s: layer %s: %v", e.Backend, e.Layer, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// supports reports whether b can draw the given format.
func supports(b Backend, format string) bool {
	return !b.Capabilities().RasterOnly || format == FormatPNG
}

// =============================================================================
// Registry
// =============================================================================

// Registry resolves backend names. Lookups never fail: unknown or
// unavailable backends resolve to the default.
type Registry struct {
	mu       sync.RWMutex
	def      Backend
	backends map[string]Backend
	aliases  map[string]string
	logger   *log.Logger
}

// NewRegistry creates a registry with def as the fallback backend.
func NewRegistry(def Backend, others ...Backend) *Registry {
	r := &Registry{
		def:      def,
		backends: make(map[string]Backend),
		aliases:  make(map[string]string),
		logger:   log.NewWithOptions(io.Discard, log.Options{}),
	}
	r.Register(def)
	for _, b := range others {
		r.Register(b)
	}
	return r
}

// DefaultRegistry returns a registry with the canvas backend as default and
// the density backend, plus the "matplotlib" and "datashader" aliases.
func DefaultRegistry() *Registry {
	canvas := NewCanvas()
	r := NewRegistry(canvas, NewDensity(canvas))
	r.Alias("matplotlib", BackendCanvas)
	r.Alias("datashader", BackendDensity)
	return r
}

// SetLogger sets the logger used for fallback messages.
func (r *Registry) SetLogger(l *log.Logger) {
	if l == nil {
		return
	}
	r.mu.Lock()
	r.logger = l
	r.mu.Unlock()
}

// Register adds or replaces a backend under its name.
func (r *Registry) Register(b Backend) {
	if b == nil {
		return
	}
	r.mu.Lock()
	r.backends[strings.ToLower(b.Name())] = b
	r.mu.Unlock()
}

// Alias makes alias resolve to the backend registered as name.
func (r *Registry) Alias(alias, name string) {
	r.mu.Lock()
	r.aliases[strings.ToLower(alias)] = strings.ToLower(name)
	r.mu.Unlock()
}

// Names lists registered backend names, sorted. Aliases are not included.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.backends))
	for n := range r.backends {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Default returns the fallback backend.
func (r *Registry) Default() Backend { return r.def }

// Resolve returns the backend registered as name, or the default when the
// name is unknown or the backend is unavailable.
func (r *Registry) Resolve(name string) Backend {
	b, _ := r.lookup(name, "")
	return b
}

// ResolveFor is Resolve that also falls back when the backend cannot draw
// format. fellBack reports whether the default was substituted for a
// requested name.
func (r *Registry) ResolveFor(name, format string) (b Backend, fellBack bool) {
	return r.lookup(name, format)
}

func (r *Registry) lookup(name, format string) (Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return r.def, false
	}
	if target, ok := r.aliases[key]; ok {
		key = target
	}
	b, ok := r.backends[key]
	switch {
	case !ok:
		r.logger.Debug("unknown render backend, using default", "backend", name, "default", r.def.Name())
		return r.def, true
	case !b.Available():
		r.logger.Debug("render backend unavailable, using default", "backend", name, "default", r.def.Name())
		return r.def, true
	case format != "" && !supports(b, format):
		r.logger.Debug("render backend does not support format, using default",
			"backend", name, "format", format, "default", r.def.Name())
		return r.def, true
	}
	return b, false
}
