package cli

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Iwaschkin/maptoposter/pkg/observability"
)

// logHooks logs pipeline stages, HTTP requests and cache traffic at debug
// level. Installed by --verbose.
type logHooks struct {
	logger *log.Logger
}

func installLogHooks(l *log.Logger) {
	h := logHooks{logger: l}
	observability.SetPipelineHooks(h)
	observability.SetHTTPHooks(h)
	observability.SetCacheHooks(h)
}

func (h logHooks) OnStageStart(_ context.Context, stage, key string) {}

func (h logHooks) OnStageComplete(_ context.Context, stage, key string, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("stage failed", "stage", stage, "key", key, "took", d.Round(time.Millisecond), "err", err)
		return
	}
	h.logger.Debug("stage complete", "stage", stage, "key", key, "took", d.Round(time.Millisecond))
}

func (h logHooks) OnRunComplete(_ context.Context, runID string, cacheHit bool, d time.Duration, err error) {
	h.logger.Debug("run complete", "run", runID, "cache_hit", cacheHit, "took", d.Round(time.Millisecond), "ok", err == nil)
}

func (h logHooks) OnRequest(_ context.Context, method, host, path string) {
	h.logger.Debug("http request", "method", method, "host", host, "path", path)
}

func (h logHooks) OnResponse(_ context.Context, method, host, path string, status int, d time.Duration) {
	h.logger.Debug("http response", "host", host, "path", path, "status", status, "took", d.Round(time.Millisecond))
}

func (h logHooks) OnError(_ context.Context, method, host, path string, err error) {
	h.logger.Debug("http error", "method", method, "host", host, "path", path, "err", err)
}

func (h logHooks) OnCacheHit(_ context.Context, keyType string) {
	h.logger.Debug("cache hit", "type", keyType)
}

func (h logHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.logger.Debug("cache miss", "type", keyType)
}

func (h logHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "type", keyType, "bytes", size)
}
