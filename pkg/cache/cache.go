// Package cache stores raw geodata responses (Overpass features, street
// networks, geocoding results) between runs.
//
// It is the persistent blob store in front of the providers. The prepared,
// projected layers live in the in-memory layercache package instead; this
// package only ever sees opaque bytes.
//
// Backends:
//   - [FileCache]: JSON entry files under a cache directory (CLI default)
//   - [RedisCache]: a Redis server, for the HTTP service
//   - [MongoCache]: a MongoDB collection with a TTL index
//   - [NullCache]: stores nothing (--no-cache)
//
// Use [Open] to build one from a [Config].
package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache is a key/value blob store with per-entry expiry.
type Cache interface {
	// Get returns the value for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A ttl of zero never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}

// Clearer is implemented by backends that can drop every entry at once.
type Clearer interface {
	Clear(ctx context.Context) (int, error)
}

// Default entry lifetimes.
const (
	TTLGeodata = 30 * 24 * time.Hour
	TTLGeocode = 180 * 24 * time.Hour
)

// Backend names accepted by [Open].
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendMongo = "mongo"
	BackendNone  = "none"
)

// Config selects and configures a backend.
type Config struct {
	Backend string `toml:"backend"`

	// File backend.
	Dir string `toml:"dir"`

	// Redis backend.
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`

	// Mongo backend.
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// Open builds the backend named by cfg.Backend. An empty backend means file.
func Open(ctx context.Context, cfg Config) (Cache, error) {
	switch cfg.Backend {
	case "", BackendFile:
		dir := cfg.Dir
		if dir == "" {
			d, err := DefaultDir()
			if err != nil {
				return nil, err
			}
			dir = d
		}
		fc, err := NewFileCache(dir)
		if err != nil {
			return nil, err
		}
		return fc, nil
	case BackendRedis:
		rc, err := NewRedisCache(ctx, RedisConfig{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
		if err != nil {
			return nil, err
		}
		return rc, nil
	case BackendMongo:
		mc, err := NewMongoCache(ctx, MongoConfig{URI: cfg.URI, Database: cfg.Database, Collection: cfg.Collection})
		if err != nil {
			return nil, err
		}
		return mc, nil
	case BackendNone:
		return NewNullCache(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q (want file, redis, mongo or none)", cfg.Backend)
	}
}
