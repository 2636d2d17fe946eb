// Package layercache keeps prepared map layers in memory between poster
// renders.
//
// A [Cache] is bounded by entry count and by estimated bytes, evicts the
// least recently used entry first, and expires entries by age on read. It
// is a pure performance optimization: every failure inside the cache
// degrades to a miss.
//
// # Usage
//
//	c := layercache.New(layercache.Config{MaxEntries: 16, TTL: time.Hour})
//	key := layercache.Normalize(lat, lon, radius, layercache.FlagsAll)
//	if layers, ok := c.Get(key); ok {
//	    // reuse layers
//	}
//	c.Set(key, layers)
package layercache

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/Iwaschkin/maptoposter/pkg/geo"
	"github.com/Iwaschkin/maptoposter/pkg/observability"
)

// Defaults applied by New for zero Config fields.
const (
	DefaultMaxEntries = 32
	DefaultMaxBytes   = int64(512 << 20)
	DefaultTTL        = time.Hour

	// FallbackSize is assumed for a layer whose size cannot be measured.
	FallbackSize = int64(10 << 20)
)

const hookKeyType = "layers"

// Payload maps layer names to their prepared features.
type Payload map[string]*geo.FeatureCollection

// Clone returns a deep copy of p.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for name, fc := range p {
		out[name] = fc.Clone()
	}
	return out
}

// Names returns the layer names present in p.
func (p Payload) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	return names
}

// Config configures a Cache.
type Config struct {
	// MaxEntries caps the number of entries. Negative disables the cap.
	MaxEntries int
	// MaxBytes caps the summed estimated size. Negative disables the cap.
	MaxBytes int64
	// TTL is the maximum entry age. Negative disables expiry.
	TTL time.Duration
	// Logger receives eviction and size-estimation messages.
	Logger *log.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

func (c *Config) setDefaults() {
	if c.MaxEntries == 0 {
		c.MaxEntries = DefaultMaxEntries
	}
	if c.MaxBytes == 0 {
		c.MaxBytes = DefaultMaxBytes
	}
	if c.TTL == 0 {
		c.TTL = DefaultTTL
	}
	if c.Logger == nil {
		c.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Entry is a read-only view of a cached payload's bookkeeping.
type Entry struct {
	Key            Key
	InsertedAt     time.Time
	LastAccessedAt time.Time
	SizeBytes      int64
}

type entry struct {
	Entry
	payload Payload
}

// Cache is a bounded, TTL-aware LRU cache of prepared layers. All methods
// are safe for concurrent use; one mutex guards the structure and is held
// only for bookkeeping.
type Cache struct {
	cfg Config

	mu    sync.Mutex
	lru   *simplelru.LRU[Key, *entry]
	bytes int64
	stats Stats

	// reason classifies removals reported to onEvict while c.mu is held.
	reason  evictReason
	evicted []eviction
}

type evictReason int

const (
	evictNone evictReason = iota
	evictEntries
	evictBytes
)

type eviction struct {
	key  Key
	size int64
	why  evictReason
}

// New creates a cache with cfg, applying defaults for zero fields.
func New(cfg Config) *Cache {
	cfg.setDefaults()
	c := &Cache{cfg: cfg}
	// Ceilings are enforced by Set before every Add, so the list itself is
	// never asked to drop entries.
	lru, err := simplelru.NewLRU[Key, *entry](math.MaxInt, c.onEvict)
	if err != nil {
		panic(fmt.Sprintf("layercache: %v", err))
	}
	c.lru = lru
	return c
}

// onEvict runs under c.mu for every entry leaving the list.
func (c *Cache) onEvict(key Key, e *entry) {
	c.bytes -= e.SizeBytes
	switch c.reason {
	case evictEntries:
		c.stats.Evictions++
	case evictBytes:
		c.stats.MemoryEvictions++
	default:
		return
	}
	c.evicted = append(c.evicted, eviction{key: key, size: e.SizeBytes, why: c.reason})
}

// Get returns a copy of the payload stored under key. Expired entries are
// removed and reported as misses. InvalidKey always misses and is not
// counted.
func (c *Cache) Get(key Key) (p Payload, ok bool) {
	if !key.Valid() {
		return nil, false
	}
	now := c.cfg.Now()

	c.mu.Lock()
	e, found := c.lru.Get(key)
	if !found {
		c.stats.Misses++
		c.mu.Unlock()
		observability.Cache().OnCacheMiss(context.Background(), hookKeyType)
		return nil, false
	}
	if c.cfg.TTL > 0 && now.Sub(e.InsertedAt) > c.cfg.TTL {
		c.lru.Remove(key)
		c.stats.Expired++
		c.stats.Misses++
		age := now.Sub(e.InsertedAt)
		c.mu.Unlock()
		c.cfg.Logger.Debug("layer cache entry expired", "key", key, "age", age)
		observability.Cache().OnCacheMiss(context.Background(), hookKeyType)
		return nil, false
	}
	e.LastAccessedAt = now
	c.stats.Hits++
	stored := e.payload
	c.mu.Unlock()

	observability.Cache().OnCacheHit(context.Background(), hookKeyType)

	// Stored payloads are never mutated, so copying outside the lock is safe.
	defer func() {
		if r := recover(); r != nil {
			c.cfg.Logger.Warn("layer cache copy failed, treating as miss", "key", key, "panic", r)
			p, ok = nil, false
		}
	}()
	return stored.Clone(), true
}

// SetInfo reports what Set did with a payload.
type SetInfo struct {
	// Stored is false when the key was invalid or the payload alone exceeds
	// MaxBytes.
	Stored bool
	// SizeBytes is the estimated size charged against MaxBytes.
	SizeBytes int64
	// Fallbacks lists layers whose size could not be measured and were
	// charged FallbackSize.
	Fallbacks []string
	// Evicted is the number of entries removed to make room.
	Evicted int
}

// Set stores a copy of payload under key, evicting least recently used
// entries until both the entry and byte ceilings hold. Size estimation and
// copying run before the lock is taken.
func (c *Cache) Set(key Key, payload Payload) SetInfo {
	if !key.Valid() || payload == nil {
		return SetInfo{}
	}
	size, fallbacks := c.estimate(payload)
	info := SetInfo{SizeBytes: size, Fallbacks: fallbacks}
	stored, err := safeClone(payload)
	if err != nil {
		c.cfg.Logger.Warn("layer cache copy failed, not caching", "key", key, "err", err)
		return info
	}
	now := c.cfg.Now()

	c.mu.Lock()
	if c.cfg.MaxBytes > 0 && size > c.cfg.MaxBytes {
		c.stats.Rejected++
		c.mu.Unlock()
		c.cfg.Logger.Warn("payload exceeds layer cache capacity, not caching",
			"key", key, "bytes", size, "max_bytes", c.cfg.MaxBytes)
		return info
	}
	c.lru.Remove(key)
	c.reason = evictEntries
	for c.cfg.MaxEntries > 0 && c.lru.Len() >= c.cfg.MaxEntries {
		c.lru.RemoveOldest()
	}
	c.reason = evictBytes
	for c.cfg.MaxBytes > 0 && c.bytes+size > c.cfg.MaxBytes && c.lru.Len() > 0 {
		c.lru.RemoveOldest()
	}
	c.reason = evictNone
	evicted := c.evicted
	c.evicted = nil

	c.lru.Add(key, &entry{
		Entry: Entry{
			Key:            key,
			InsertedAt:     now,
			LastAccessedAt: now,
			SizeBytes:      size,
		},
		payload: stored,
	})
	c.bytes += size
	c.stats.SizeFallbacks += uint64(len(fallbacks))
	c.mu.Unlock()

	info.Stored = true
	info.Evicted = len(evicted)
	for _, ev := range evicted {
		reason := "entries"
		if ev.why == evictBytes {
			reason = "bytes"
		}
		c.cfg.Logger.Debug("evicted layer cache entry",
			"key", ev.key, "hash", ev.key.Hash(), "bytes", ev.size, "reason", reason)
	}
	observability.Cache().OnCacheSet(context.Background(), hookKeyType, int(size))
	return info
}

// Clear removes every entry and returns how many were removed. Counters
// are kept; use ResetStats to zero them.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.lru.Len()
	c.lru.Purge()
	c.bytes = 0
	return n
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Entries returns the bookkeeping of every entry, most recently used first.
func (c *Cache) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := c.lru.Keys()
	out := make([]Entry, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		if e, ok := c.lru.Peek(keys[i]); ok {
			out = append(out, e.Entry)
		}
	}
	return out
}

// estimate walks each layer; unmeasurable layers are charged FallbackSize.
func (c *Cache) estimate(p Payload) (int64, []string) {
	var total int64
	var fallbacks []string
	for name, fc := range p {
		if fc == nil {
			continue
		}
		n, err := measure(fc)
		if err != nil {
			c.cfg.Logger.Warn("cannot measure layer size, assuming fallback",
				"layer", name, "fallback_bytes", FallbackSize, "err", err)
			n = FallbackSize
			fallbacks = append(fallbacks, name)
		}
		total += n
	}
	return total, fallbacks
}

func measure(fc *geo.FeatureCollection) (n int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("size estimation panicked: %v", r)
		}
	}()
	return fc.SizeBytes()
}

func safeClone(p Payload) (out Payload, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("clone panicked: %v", r)
		}
	}()
	return p.Clone(), nil
}
