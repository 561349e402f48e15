package ratelimit

import (
	"context"
	"sync"
	"time"
)

const memStoreShards = 16

type memSet struct {
	members   []time.Time // sorted ascending
	expiresAt time.Time
}

type memShard struct {
	mu   sync.Mutex
	sets map[string]*memSet
}

// MemoryStore is an in-process CounterStore. It is safe for concurrent use
// within one process but cannot coordinate multiple service instances; use
// the Redis store for horizontally scaled deployments.
type MemoryStore struct {
	shards [memStoreShards]memShard
	now    func() time.Time
}

// NewMemoryStore creates an in-process counter store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{now: time.Now}
	for i := range s.shards {
		s.shards[i].sets = make(map[string]*memSet)
	}
	return s
}

func (s *MemoryStore) Prune(ctx context.Context, key string, cutoff time.Time) error {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	set, ok := s.live(sh, key)
	if !ok {
		return nil
	}
	i := 0
	for i < len(set.members) && !set.members[i].After(cutoff) {
		i++
	}
	set.members = set.members[i:]
	if len(set.members) == 0 {
		delete(sh.sets, key)
	}
	return nil
}

func (s *MemoryStore) Count(ctx context.Context, key string) (int, error) {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	set, ok := s.live(sh, key)
	if !ok {
		return 0, nil
	}
	return len(set.members), nil
}

func (s *MemoryStore) Add(ctx context.Context, key string, at time.Time, expiry time.Duration) error {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	set, ok := s.live(sh, key)
	if !ok {
		set = &memSet{}
		sh.sets[key] = set
	}
	// Appends are in practice monotonic; fall back to insertion for the rare
	// out-of-order timestamp.
	if n := len(set.members); n == 0 || !at.Before(set.members[n-1]) {
		set.members = append(set.members, at)
	} else {
		i := 0
		for i < len(set.members) && set.members[i].Before(at) {
			i++
		}
		set.members = append(set.members[:i], append([]time.Time{at}, set.members[i:]...)...)
	}
	set.expiresAt = s.now().Add(expiry)
	return nil
}

func (s *MemoryStore) Oldest(ctx context.Context, key string) (time.Time, bool, error) {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	set, ok := s.live(sh, key)
	if !ok || len(set.members) == 0 {
		return time.Time{}, false, nil
	}
	return set.members[0], true, nil
}

// live returns the set for key, dropping it first if its expiry passed.
// Caller holds the shard lock.
func (s *MemoryStore) live(sh *memShard, key string) (*memSet, bool) {
	set, ok := sh.sets[key]
	if !ok {
		return nil, false
	}
	if !set.expiresAt.IsZero() && s.now().After(set.expiresAt) {
		delete(sh.sets, key)
		return nil, false
	}
	return set, true
}

func (s *MemoryStore) shard(key string) *memShard {
	var sum uint32
	for i := 0; i < len(key); i++ {
		sum = sum*31 + uint32(key[i])
	}
	return &s.shards[sum%memStoreShards]
}

// MemoryOverrides is an in-process OverrideStore.
type MemoryOverrides struct {
	mu     sync.RWMutex
	limits map[string]Limits
}

// NewMemoryOverrides creates an empty override store.
func NewMemoryOverrides() *MemoryOverrides {
	return &MemoryOverrides{limits: make(map[string]Limits)}
}

// SetLimits installs custom limits for an identity.
func (o *MemoryOverrides) SetLimits(identity string, limits Limits) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.limits[identity] = limits
}

func (o *MemoryOverrides) GetLimits(ctx context.Context, identity string) (*Limits, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if l, ok := o.limits[identity]; ok {
		return &l, nil
	}
	return nil, nil
}
