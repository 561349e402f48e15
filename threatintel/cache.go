package threatintel

import (
	"context"
	"sync"
	"time"
)

const cacheShards = 16

// DefaultCacheTTL is how long a reputation record stays fresh.
const DefaultCacheTTL = time.Hour

type cacheShard struct {
	mu      sync.Mutex
	records map[string]Record
}

// ReputationCache fronts a Feed with a TTL-bounded cache. A record is created
// on first lookup miss and refreshed wholesale once its TTL elapses.
type ReputationCache struct {
	feed   Feed
	ttl    time.Duration
	shards [cacheShards]cacheShard
	now    func() time.Time
}

// NewReputationCache creates a cache in front of the given feed. ttl <= 0
// selects DefaultCacheTTL.
func NewReputationCache(feed Feed, ttl time.Duration) *ReputationCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c := &ReputationCache{feed: feed, ttl: ttl, now: time.Now}
	for i := range c.shards {
		c.shards[i].records = make(map[string]Record)
	}
	return c
}

// Lookup returns the reputation record for an indicator, consulting the feed
// only on a miss or an expired entry.
func (c *ReputationCache) Lookup(ctx context.Context, value string, kind IndicatorKind) (Record, error) {
	key := string(kind) + ":" + value
	s := c.shard(key)

	s.mu.Lock()
	if rec, ok := s.records[key]; ok && c.now().Sub(rec.CachedAt) < c.ttl {
		s.mu.Unlock()
		return rec, nil
	}
	s.mu.Unlock()

	rec, err := c.feed.LookupIndicator(ctx, value, kind)
	if err != nil {
		return Record{}, err
	}
	rec.Indicator = value
	rec.Kind = kind
	rec.CachedAt = c.now()

	s.mu.Lock()
	s.records[key] = rec
	s.mu.Unlock()
	return rec, nil
}

func (c *ReputationCache) shard(key string) *cacheShard {
	var sum uint32
	for i := 0; i < len(key); i++ {
		sum = sum*31 + uint32(key[i])
	}
	return &c.shards[sum%cacheShards]
}
