package cache

import (
	"context"
	"time"

	"github.com/Iwaschkin/maptoposter/pkg/observability"
)

// Observed reports hits, misses and writes of c through the registered
// observability cache hooks under keyType.
func Observed(c Cache, keyType string) Cache {
	return &observed{Cache: c, keyType: keyType}
}

type observed struct {
	Cache
	keyType string
}

func (o *observed) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, ok, err := o.Cache.Get(ctx, key)
	if err == nil {
		if ok {
			observability.Cache().OnCacheHit(ctx, o.keyType)
		} else {
			observability.Cache().OnCacheMiss(ctx, o.keyType)
		}
	}
	return data, ok, err
}

func (o *observed) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	err := o.Cache.Set(ctx, key, data, ttl)
	if err == nil {
		observability.Cache().OnCacheSet(ctx, o.keyType, len(data))
	}
	return err
}

// Clear forwards to the wrapped cache when it supports clearing.
func (o *observed) Clear(ctx context.Context) (int, error) {
	if cl, ok := o.Cache.(Clearer); ok {
		return cl.Clear(ctx)
	}
	return 0, nil
}
