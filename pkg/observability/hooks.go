// Package observability provides hooks for metrics, tracing, and logging.
//
// Libraries call the registered hooks; main registers implementations at
// startup. Defaults are no-ops, so nothing is recorded unless a binary opts
// in.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetPipelineHooks(&myPipelineHooks{})
//	    observability.SetCacheHooks(&myCacheHooks{})
//	    // ... run application
//	}
//
// Libraries emit events:
//
//	observability.Pipeline().OnStageStart(ctx, "preparing", key)
//	// ... prepare layers ...
//	observability.Pipeline().OnStageComplete(ctx, "preparing", key, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Pipeline Hooks
// =============================================================================

// PipelineHooks receives events from the poster pipeline.
type PipelineHooks interface {
	// OnStageStart fires when a run enters a stage.
	OnStageStart(ctx context.Context, stage, key string)
	// OnStageComplete fires when a stage finishes, with its error if it failed.
	OnStageComplete(ctx context.Context, stage, key string, duration time.Duration, err error)
	// OnRunComplete fires once per run.
	OnRunComplete(ctx context.Context, runID string, cacheHit bool, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations. keyType names the cache
// ("layers" for the layer cache, "geodata" for the blob store).
type CacheHooks interface {
	OnCacheHit(ctx context.Context, keyType string)
	OnCacheMiss(ctx context.Context, keyType string)
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from outgoing HTTP requests to data providers.
type HTTPHooks interface {
	OnRequest(ctx context.Context, method, host, path string)
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)
	OnError(ctx context.Context, method, host, path string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopPipelineHooks is a no-op implementation of PipelineHooks.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnStageStart(context.Context, string, string) {}
func (NoopPipelineHooks) OnStageComplete(context.Context, string, string, time.Duration, error) {
}
func (NoopPipelineHooks) OnRunComplete(context.Context, string, bool, time.Duration, error) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	pipelineHooks PipelineHooks = NoopPipelineHooks{}
	cacheHooks    CacheHooks    = NoopCacheHooks{}
	httpHooks     HTTPHooks     = NoopHTTPHooks{}
	hooksMu       sync.RWMutex
)

// SetPipelineHooks registers custom pipeline hooks. Nil is ignored.
func SetPipelineHooks(h PipelineHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		pipelineHooks = h
	}
}

// SetCacheHooks registers custom cache hooks. Nil is ignored.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks. Nil is ignored.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Pipeline returns the registered pipeline hooks.
func Pipeline() PipelineHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return pipelineHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	pipelineHooks = NoopPipelineHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}

// =============================================================================
// Counting Hooks
// =============================================================================

// CacheCounter is a CacheHooks implementation that counts events per key
// type. The batch command registers one to report cache activity.
type CacheCounter struct {
	mu     sync.Mutex
	hits   map[string]int
	misses map[string]int
	bytes  map[string]int
}

// NewCacheCounter returns an empty counter.
func NewCacheCounter() *CacheCounter {
	return &CacheCounter{
		hits:   make(map[string]int),
		misses: make(map[string]int),
		bytes:  make(map[string]int),
	}
}

func (c *CacheCounter) OnCacheHit(_ context.Context, keyType string) {
	c.mu.Lock()
	c.hits[keyType]++
	c.mu.Unlock()
}

func (c *CacheCounter) OnCacheMiss(_ context.Context, keyType string) {
	c.mu.Lock()
	c.misses[keyType]++
	c.mu.Unlock()
}

func (c *CacheCounter) OnCacheSet(_ context.Context, keyType string, size int) {
	c.mu.Lock()
	c.bytes[keyType] += size
	c.mu.Unlock()
}

// Counts returns hits, misses and bytes written for keyType.
func (c *CacheCounter) Counts(keyType string) (hits, misses, bytes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits[keyType], c.misses[keyType], c.bytes[keyType]
}
