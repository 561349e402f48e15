package waf

import (
	"sort"
	"sync"
	"time"
)

const decisionCacheShards = 16

// evictFraction is the share of oldest entries dropped when a shard grows
// past its size bound. Eviction is best effort, not strict LRU.
const evictFraction = 0.2

type decisionCacheEntry struct {
	decision   Decision
	insertedAt time.Time
}

type decisionCacheShard struct {
	mu      sync.Mutex
	entries map[string]decisionCacheEntry
}

// decisionCache is a TTL-bounded, size-bounded fingerprint -> Decision map.
// Locking is striped across shards so the cache does not serialize concurrent
// requests.
type decisionCache struct {
	shards      [decisionCacheShards]decisionCacheShard
	ttl         time.Duration
	maxPerShard int
	now         func() time.Time
}

func newDecisionCache(ttl time.Duration, maxSize int) *decisionCache {
	c := &decisionCache{ttl: ttl, now: time.Now}
	if maxSize <= 0 {
		maxSize = 10000
	}
	c.maxPerShard = maxSize / decisionCacheShards
	if c.maxPerShard < 1 {
		c.maxPerShard = 1
	}
	for i := range c.shards {
		c.shards[i].entries = make(map[string]decisionCacheEntry)
	}
	return c
}

func (c *decisionCache) shard(fingerprint string) *decisionCacheShard {
	var sum uint32
	for i := 0; i < len(fingerprint); i++ {
		sum = sum*31 + uint32(fingerprint[i])
	}
	return &c.shards[sum%decisionCacheShards]
}

// get returns the cached decision for the fingerprint if present and fresh.
// Expired entries are removed on access.
func (c *decisionCache) get(fingerprint string) (Decision, bool) {
	s := c.shard(fingerprint)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[fingerprint]
	if !ok {
		return Decision{}, false
	}
	if c.now().Sub(e.insertedAt) >= c.ttl {
		delete(s.entries, fingerprint)
		return Decision{}, false
	}
	return e.decision, true
}

func (c *decisionCache) put(fingerprint string, d Decision) {
	s := c.shard(fingerprint)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[fingerprint] = decisionCacheEntry{decision: d, insertedAt: c.now()}
	if len(s.entries) > c.maxPerShard {
		s.evictOldest()
	}
}

// replaceIfHigher swaps the cached decision when the new one carries a higher
// score. Used only when RefreshCacheOnAsync is enabled.
func (c *decisionCache) replaceIfHigher(fingerprint string, d Decision) {
	s := c.shard(fingerprint)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[fingerprint]
	if !ok || d.Score > e.decision.Score {
		s.entries[fingerprint] = decisionCacheEntry{decision: d, insertedAt: c.now()}
	}
}

func (c *decisionCache) len() int {
	n := 0
	for i := range c.shards {
		c.shards[i].mu.Lock()
		n += len(c.shards[i].entries)
		c.shards[i].mu.Unlock()
	}
	return n
}

// evictOldest drops the oldest ~20% of entries. Caller holds the shard lock.
func (s *decisionCacheShard) evictOldest() {
	type aged struct {
		key string
		at  time.Time
	}
	all := make([]aged, 0, len(s.entries))
	for k, e := range s.entries {
		all = append(all, aged{k, e.insertedAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].at.Before(all[j].at) })

	drop := int(float64(len(all)) * evictFraction)
	if drop < 1 {
		drop = 1
	}
	for _, a := range all[:drop] {
		delete(s.entries, a.key)
	}
}
