// Package authlimit implements the strict limiter for authentication
// endpoints: three sliding attempt thresholds per identity with an escalating
// lockout. A locked-out identity is rejected before any content analysis.
package authlimit

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config carries the attempt thresholds and lockout duration.
type Config struct {
	MaxPerMinute    int
	MaxPerHour      int
	MaxPerDay       int
	LockoutDuration time.Duration
}

// DefaultConfig returns the default thresholds: 5/minute, 20/hour, 50/day,
// 15 minute lockout.
func DefaultConfig() Config {
	return Config{
		MaxPerMinute:    5,
		MaxPerHour:      20,
		MaxPerDay:       50,
		LockoutDuration: 15 * time.Minute,
	}
}

// Result reports the outcome of recording one attempt.
type Result struct {
	Locked bool
	// RetryAfter is the remaining lockout time when Locked.
	RetryAfter time.Duration
	// MinuteRemaining and HourRemaining feed the rate limit response headers.
	MinuteRemaining int
	HourRemaining   int
}

const lockoutShards = 16

const attemptRetention = 24 * time.Hour

type identityState struct {
	attempts    []time.Time // ascending
	lockedUntil time.Time
}

type lockoutShard struct {
	mu     sync.Mutex
	states map[string]*identityState
}

// Limiter is the per-identity attempt tracker and lockout table.
type Limiter struct {
	logger zerolog.Logger
	config Config
	shards [lockoutShards]lockoutShard
	now    func() time.Time
}

// NewLimiter creates an auth attempt limiter.
func NewLimiter(logger zerolog.Logger, config Config) *Limiter {
	if config.MaxPerMinute <= 0 {
		config = DefaultConfig()
	}
	l := &Limiter{logger: logger, config: config, now: time.Now}
	for i := range l.shards {
		l.shards[i].states = make(map[string]*identityState)
	}
	return l
}

// Attempt records one attempt against a protected endpoint and reports
// whether the identity is locked out. The lockout check, attempt append and
// threshold evaluation happen under one lock so two concurrent attempts
// cannot both slip past a threshold.
func (l *Limiter) Attempt(identity string) Result {
	sh := l.shard(identity)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	now := l.now()
	state, ok := sh.states[identity]
	if !ok {
		state = &identityState{}
		sh.states[identity] = state
	}

	if state.lockedUntil.After(now) {
		return Result{Locked: true, RetryAfter: state.lockedUntil.Sub(now)}
	}
	state.lockedUntil = time.Time{}

	// Prune beyond the longest window to bound memory.
	cutoff := now.Add(-attemptRetention)
	i := 0
	for i < len(state.attempts) && state.attempts[i].Before(cutoff) {
		i++
	}
	state.attempts = state.attempts[i:]

	state.attempts = append(state.attempts, now)

	minuteCount := countSince(state.attempts, now.Add(-time.Minute))
	hourCount := countSince(state.attempts, now.Add(-time.Hour))
	dayCount := len(state.attempts)

	if minuteCount >= l.config.MaxPerMinute || hourCount >= l.config.MaxPerHour || dayCount >= l.config.MaxPerDay {
		state.lockedUntil = now.Add(l.config.LockoutDuration)
		l.logger.Warn().
			Str("identity", identity).
			Int("minuteCount", minuteCount).
			Int("hourCount", hourCount).
			Int("dayCount", dayCount).
			Time("lockedUntil", state.lockedUntil).
			Msg("auth attempt threshold exceeded, identity locked out")
		return Result{Locked: true, RetryAfter: l.config.LockoutDuration}
	}

	return Result{
		Locked:          false,
		MinuteRemaining: l.config.MaxPerMinute - minuteCount,
		HourRemaining:   l.config.MaxPerHour - hourCount,
	}
}

// Success clears the lockout and the attempt history for an identity after a
// successful authentication.
func (l *Limiter) Success(identity string) {
	sh := l.shard(identity)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.states, identity)
}

// IsLockedOut reports whether the identity is currently locked out, without
// recording an attempt.
func (l *Limiter) IsLockedOut(identity string) (bool, time.Duration) {
	sh := l.shard(identity)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	state, ok := sh.states[identity]
	if !ok {
		return false, 0
	}
	now := l.now()
	if state.lockedUntil.After(now) {
		return true, state.lockedUntil.Sub(now)
	}
	return false, 0
}

func countSince(attempts []time.Time, cutoff time.Time) int {
	n := 0
	for i := len(attempts) - 1; i >= 0; i-- {
		if !attempts[i].After(cutoff) {
			break
		}
		n++
	}
	return n
}

func (l *Limiter) shard(identity string) *lockoutShard {
	var sum uint32
	for i := 0; i < len(identity); i++ {
		sum = sum*31 + uint32(identity[i])
	}
	return &l.shards[sum%lockoutShards]
}
