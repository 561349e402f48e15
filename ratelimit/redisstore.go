package ratelimit

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore is a CounterStore backed by Redis sorted sets, scored by unix
// nanoseconds. Because Redis serializes commands, the prune/count/add
// sequence stays consistent across horizontally scaled service instances.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps a Redis client as a counter store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Prune(ctx context.Context, key string, cutoff time.Time) error {
	max := strconv.FormatInt(cutoff.UnixNano(), 10)
	return s.client.ZRemRangeByScore(ctx, key, "0", max).Err()
}

func (s *RedisStore) Count(ctx context.Context, key string) (int, error) {
	n, err := s.client.ZCard(ctx, key).Result()
	return int(n), err
}

func (s *RedisStore) Add(ctx context.Context, key string, at time.Time, expiry time.Duration) error {
	score := float64(at.UnixNano())
	member := strconv.FormatInt(at.UnixNano(), 10)
	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, &redis.Z{Score: score, Member: member})
	pipe.Expire(ctx, key, expiry)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Oldest(ctx context.Context, key string) (time.Time, bool, error) {
	members, err := s.client.ZRangeWithScores(ctx, key, 0, 0).Result()
	if err != nil {
		return time.Time{}, false, err
	}
	if len(members) == 0 {
		return time.Time{}, false, nil
	}
	return time.Unix(0, int64(members[0].Score)), true, nil
}

// RedisOverrides reads per-identity custom limits stored as JSON under
// custom_limits:<identity>.
type RedisOverrides struct {
	client *redis.Client
}

// NewRedisOverrides wraps a Redis client as an override store.
func NewRedisOverrides(client *redis.Client) *RedisOverrides {
	return &RedisOverrides{client: client}
}

func (o *RedisOverrides) GetLimits(ctx context.Context, identity string) (*Limits, error) {
	raw, err := o.client.Get(ctx, "custom_limits:"+identity).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var limits struct {
		MaxRequests   int `json:"max_requests"`
		WindowSeconds int `json:"window_seconds"`
	}
	if err := json.Unmarshal([]byte(raw), &limits); err != nil {
		// A malformed override should not take the identity offline.
		return nil, nil
	}
	return &Limits{MaxRequests: limits.MaxRequests, WindowSeconds: limits.WindowSeconds}, nil
}

// SetLimits stores custom limits for an identity.
func (o *RedisOverrides) SetLimits(ctx context.Context, identity string, limits Limits) error {
	payload, err := json.Marshal(map[string]int{
		"max_requests":   limits.MaxRequests,
		"window_seconds": limits.WindowSeconds,
	})
	if err != nil {
		return err
	}
	return o.client.Set(ctx, "custom_limits:"+identity, payload, 0).Err()
}
