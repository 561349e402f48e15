// Package ratelimit implements a sliding-window request limiter over a shared
// atomic counter store, so multiple service instances see one consistent
// view of each caller's window.
package ratelimit

import (
	"context"
	"time"
)

// CounterStore is a sorted-set-like store of timestamped members per key.
// Implementations must make each operation atomic with respect to concurrent
// callers, including callers in other processes for shared backends.
type CounterStore interface {
	// Prune removes members older than the cutoff.
	Prune(ctx context.Context, key string, cutoff time.Time) error

	// Count returns the number of members currently in the set.
	Count(ctx context.Context, key string) (int, error)

	// Add inserts a timestamped member and refreshes the key's expiry.
	Add(ctx context.Context, key string, at time.Time, expiry time.Duration) error

	// Oldest returns the oldest member's timestamp. ok is false for an empty
	// set.
	Oldest(ctx context.Context, key string) (at time.Time, ok bool, err error)
}

// Limits is a max-requests/window pair.
type Limits struct {
	MaxRequests   int
	WindowSeconds int
}

// OverrideStore supplies per-identity limits that replace the defaults.
type OverrideStore interface {
	// GetLimits returns the custom limits for an identity, or nil when the
	// identity uses the defaults.
	GetLimits(ctx context.Context, identity string) (*Limits, error)
}
