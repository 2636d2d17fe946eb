// Package server exposes the poster pipeline over HTTP.
//
// Routes:
//
//	GET    /healthz          liveness
//	GET    /v1/themes        available theme names
//	GET    /v1/presets       style presets
//	POST   /v1/posters       render a poster, the body is the artifact
//	GET    /v1/cache/stats   layer cache counters
//	DELETE /v1/cache         drop every cached layer payload
//
// Every request shares the server's [pipeline.Runner] and therefore one
// layer cache.
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Iwaschkin/maptoposter/pkg/errors"
	"github.com/Iwaschkin/maptoposter/pkg/geo"
	"github.com/Iwaschkin/maptoposter/pkg/layercache"
	"github.com/Iwaschkin/maptoposter/pkg/pipeline"
	"github.com/Iwaschkin/maptoposter/pkg/render"
	"github.com/Iwaschkin/maptoposter/pkg/style"
)

// Defaults for Config.
const (
	DefaultAddr         = "127.0.0.1:8080"
	DefaultMaxBodyBytes = 1 << 20
	DefaultTimeout      = 5 * time.Minute
	shutdownTimeout     = 10 * time.Second
)

// Geocoder resolves a city to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, city, country string) (geo.Point, error)
}

// Config configures a Server.
type Config struct {
	Addr string
	// Timeout bounds one poster request.
	Timeout      time.Duration
	MaxBodyBytes int64
	// Geocoder resolves requests without coordinates. Nil requires
	// coordinates on every request.
	Geocoder Geocoder
	// TexturesDir holds the paper textures a request may name, by path
	// relative to it. Empty rejects every texture path.
	TexturesDir string
	Logger      *log.Logger
}

// Server serves posters from a shared runner.
type Server struct {
	runner *pipeline.Runner
	cfg    Config
	router chi.Router
}

// New creates a server around runner.
func New(runner *pipeline.Runner, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	s := &Server{runner: runner, cfg: cfg}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/themes", s.handleThemes)
		r.Get("/presets", s.handlePresets)
		r.With(middleware.Timeout(s.cfg.Timeout)).Post("/posters", s.handlePoster)
		r.Get("/cache/stats", s.handleCacheStats)
		r.Delete("/cache", s.handleCacheClear)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.cfg.Logger.Info("listening", "addr", s.cfg.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.cfg.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close()
		return err
	}
	if err := <-errc; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.cfg.Logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"id", middleware.GetReqID(r.Context()))
	})
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleThemes(w http.ResponseWriter, _ *http.Request) {
	names, err := s.runner.Themes.Names()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"themes": names})
}

type presetInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Theme       string `json:"theme,omitempty"`
}

func (s *Server) handlePresets(w http.ResponseWriter, _ *http.Request) {
	var out []presetInfo
	for _, p := range style.Presets() {
		out = append(out, presetInfo{Name: p.Name, Description: p.Description, Theme: p.Config.ThemeName})
	}
	writeJSON(w, http.StatusOK, map[string][]presetInfo{"presets": out})
}

// posterRequest is the body of POST /v1/posters.
type posterRequest struct {
	pipeline.Options
	// Preset selects a named style when no explicit style is given.
	Preset string `json:"preset,omitempty"`
	// Skip lists optional layers to leave out, e.g. "parks,rail".
	Skip string `json:"skip,omitempty"`
}

func (s *Server) handlePoster(w http.ResponseWriter, r *http.Request) {
	var req posterRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode request"))
		return
	}

	opts, err := s.options(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.runner.Execute(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}

	h := w.Header()
	h.Set("Content-Type", contentType(res.Format))
	h.Set("Content-Disposition", `inline; filename="`+pipeline.Filename(opts.City, res.Theme, res.Format, time.Now())+`"`)
	h.Set("X-Run-Id", res.RunID)
	h.Set("X-Cache-Hit", strconv.FormatBool(res.CacheHit))
	h.Set("X-Backend", res.Backend)
	if len(res.EffectsApplied) > 0 {
		h.Set("X-Effects", strings.Join(res.EffectsApplied, ","))
	}
	for _, d := range res.Degradations {
		h.Add("X-Degradation", d.String())
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Artifact)
}

// options turns a request into pipeline options, resolving the preset and
// geocoding when the request has no coordinates.
func (s *Server) options(ctx context.Context, req posterRequest) (pipeline.Options, error) {
	opts := req.Options
	if req.Preset != "" && opts.Style == nil {
		p, err := style.LookupPreset(req.Preset)
		if err != nil {
			return opts, err
		}
		opts.Style = &p.Config
	}
	if opts.Style != nil && opts.Style.PaperTexturePath != "" {
		path, err := s.texturePath(opts.Style.PaperTexturePath)
		if err != nil {
			return opts, err
		}
		cfg := *opts.Style
		cfg.PaperTexturePath = path
		opts.Style = &cfg
	}
	if req.Skip != "" {
		f, err := layercache.ParseFlags(req.Skip)
		if err != nil {
			return opts, errors.Wrap(errors.ErrCodeInvalidInput, err, "skip")
		}
		opts.Exclude |= f
	}
	if opts.Point == (geo.Point{}) && opts.City != "" {
		if s.cfg.Geocoder == nil {
			return opts, errors.New(errors.ErrCodeInvalidCoordinates, "point is required: geocoding is disabled")
		}
		p, err := s.cfg.Geocoder.Geocode(ctx, opts.City, opts.Country)
		if err != nil {
			return opts, err
		}
		opts.Point = p
	}
	opts.OnStage = nil
	return opts, nil
}

// texturePath resolves a requested texture inside TexturesDir. Requests
// never reach other server files.
func (s *Server) texturePath(name string) (string, error) {
	if s.cfg.TexturesDir == "" {
		return "", errors.New(errors.ErrCodeInvalidPath, "paper textures are not enabled on this server")
	}
	if err := errors.ValidatePath(name); err != nil {
		return "", err
	}
	if filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", errors.New(errors.ErrCodeInvalidPath, "texture path must be relative")
	}
	return filepath.Join(s.cfg.TexturesDir, filepath.Clean(name)), nil
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.runner.Layers.Stats())
}

func (s *Server) handleCacheClear(w http.ResponseWriter, _ *http.Request) {
	n := s.runner.Layers.Clear()
	s.cfg.Logger.Info("layer cache cleared", "entries", n)
	writeJSON(w, http.StatusOK, map[string]int{"cleared": n})
}

// =============================================================================
// Responses
// =============================================================================

type errorBody struct {
	Error string      `json:"error"`
	Code  errors.Code `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorBody{Error: errors.UserMessage(err), Code: errors.GetCode(err)})
}

// statusFor maps an error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.IsInput(err):
		return http.StatusBadRequest
	case stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case stderrors.Is(err, context.Canceled):
		return 499
	}
	// Provider failures are wrapped as missing data; the transport cause
	// decides the status.
	switch {
	case errors.Has(err, errors.ErrCodeRateLimited):
		return http.StatusTooManyRequests
	case errors.Has(err, errors.ErrCodeTimeout):
		return http.StatusGatewayTimeout
	case errors.Has(err, errors.ErrCodeNetwork):
		return http.StatusBadGateway
	}
	switch errors.GetCode(err) {
	case errors.ErrCodePrimaryDataMissing, errors.ErrCodeNotFound, errors.ErrCodeLocationNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func contentType(format string) string {
	switch format {
	case render.FormatSVG:
		return "image/svg+xml"
	case render.FormatPDF:
		return "application/pdf"
	default:
		return "image/png"
	}
}
