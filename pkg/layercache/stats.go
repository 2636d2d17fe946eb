package layercache

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits            uint64 `json:"hits"`
	Misses          uint64 `json:"misses"`
	Evictions       uint64 `json:"evictions"`
	Expired         uint64 `json:"expired"`
	MemoryEvictions uint64 `json:"memory_evictions"`
	Rejected        uint64 `json:"rejected"`
	SizeFallbacks   uint64 `json:"size_fallbacks"`
	Entries         int    `json:"entries"`
	Bytes           int64  `json:"bytes"`
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = c.lru.Len()
	s.Bytes = c.bytes
	return s
}

// ResetStats zeroes the counters. Entries are kept.
func (c *Cache) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = Stats{}
}
