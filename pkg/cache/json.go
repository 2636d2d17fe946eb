package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrCacheMiss is returned by [GetJSON] when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// GetJSON loads key and decodes it into v. An entry that no longer decodes
// is deleted and reported as a miss.
func GetJSON(ctx context.Context, c Cache, key string, v any) error {
	data, ok, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCacheMiss
	}
	if err := json.Unmarshal(data, v); err != nil {
		_ = c.Delete(ctx, key)
		return ErrCacheMiss
	}
	return nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, data, ttl)
}
