package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Info describes the state of a caller's window after a check.
type Info struct {
	Limit         int
	Remaining     int
	Reset         int64 // unix seconds when the window frees up
	WindowSeconds int
}

// Limiter counts requests per (identity, endpoint) in a sliding window.
type Limiter struct {
	store     CounterStore
	overrides OverrideStore
	defaults  Limits
	now       func() time.Time
}

// NewLimiter creates a sliding-window limiter. overrides may be nil.
func NewLimiter(store CounterStore, overrides OverrideStore, defaults Limits) *Limiter {
	if defaults.MaxRequests <= 0 {
		defaults.MaxRequests = 60
	}
	if defaults.WindowSeconds <= 0 {
		defaults.WindowSeconds = 60
	}
	return &Limiter{store: store, overrides: overrides, defaults: defaults, now: time.Now}
}

// Check reports whether the identity is over its limit on the endpoint. When
// not limited, the current request is counted against the window; a limited
// request is not counted.
func (l *Limiter) Check(ctx context.Context, identity, endpoint string) (limited bool, info Info, err error) {
	limits := l.defaults
	if l.overrides != nil {
		custom, oerr := l.overrides.GetLimits(ctx, identity)
		if oerr != nil {
			return false, Info{}, fmt.Errorf("rate limit override lookup: %w", oerr)
		}
		if custom != nil {
			limits = *custom
		}
	}

	key := "rate_limit:" + identity + ":" + endpoint
	window := time.Duration(limits.WindowSeconds) * time.Second
	now := l.now()

	if err = l.store.Prune(ctx, key, now.Add(-window)); err != nil {
		return false, Info{}, fmt.Errorf("rate limit prune: %w", err)
	}

	count, err := l.store.Count(ctx, key)
	if err != nil {
		return false, Info{}, fmt.Errorf("rate limit count: %w", err)
	}

	limited = count >= limits.MaxRequests
	if !limited {
		if err = l.store.Add(ctx, key, now, window); err != nil {
			return false, Info{}, fmt.Errorf("rate limit add: %w", err)
		}
	}

	reset := now.Add(window)
	if oldest, ok, oerr := l.store.Oldest(ctx, key); oerr == nil && ok {
		reset = oldest.Add(window)
	}

	remaining := limits.MaxRequests - count
	if remaining < 0 {
		remaining = 0
	}
	info = Info{
		Limit:         limits.MaxRequests,
		Remaining:     remaining,
		Reset:         reset.Unix(),
		WindowSeconds: limits.WindowSeconds,
	}
	return limited, info, nil
}
