package waf

import (
	"fmt"
	"time"
)

// Mode controls how far the WAF goes when enforcing its verdicts.
type Mode string

// Enforcement modes.
const (
	// ModeBlock enforces block and challenge verdicts.
	ModeBlock Mode = "block"
	// ModeChallenge caps enforcement at challenge: block verdicts are
	// downgraded to challenge.
	ModeChallenge Mode = "challenge"
	// ModeLog records verdicts but never short-circuits a request.
	ModeLog Mode = "log"
	// ModeSimulate behaves like ModeLog; it exists so operators can express
	// intent to dry-run a stricter config.
	ModeSimulate Mode = "simulate"
)

// ParseMode parses an enforcement mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeBlock, ModeChallenge, ModeLog, ModeSimulate:
		return Mode(s), nil
	}
	return ModeBlock, fmt.Errorf("unknown enforcement mode %q", s)
}

// Thresholds maps normalized scores to actions. Must be monotonic:
// Log <= Challenge <= Block.
type Thresholds struct {
	Block     float64
	Challenge float64
	Log       float64
}

// Validate checks threshold monotonicity and range.
func (t Thresholds) Validate() error {
	for _, v := range []float64{t.Block, t.Challenge, t.Log} {
		if v < 0 || v > 1 {
			return fmt.Errorf("threshold %v out of range [0,1]", v)
		}
	}
	if t.Log > t.Challenge || t.Challenge > t.Block {
		return fmt.Errorf("thresholds not monotonic: log=%v challenge=%v block=%v", t.Log, t.Challenge, t.Block)
	}
	return nil
}

// Action maps a normalized score to the action the thresholds demand.
func (t Thresholds) Action(score float64) Action {
	switch {
	case score >= t.Block:
		return ActionBlock
	case score >= t.Challenge:
		return ActionChallenge
	case score >= t.Log:
		return ActionLog
	}
	return ActionAllow
}

// DefaultThresholds are the thresholds used when none are configured.
func DefaultThresholds() Thresholds {
	return Thresholds{Block: 0.75, Challenge: 0.5, Log: 0.25}
}

// Config carries the plain values the engine consumes. Loading and validation
// of the operator-facing file format happens elsewhere.
type Config struct {
	Mode       Mode
	Thresholds Thresholds

	// ExcludedPathPrefixes bypass the WAF entirely.
	ExcludedPathPrefixes []string

	// IPAllowlist and IPBlocklist are static per-IP verdicts checked before
	// any analysis.
	IPAllowlist []string
	IPBlocklist []string

	CacheEnabled bool
	CacheTTL     time.Duration
	CacheMaxSize int

	// RefreshCacheOnAsync rewrites a cached decision when background analysis
	// finds a higher score than the cached fast-path result. Off by default:
	// bounded staleness is accepted in exchange for not re-finalizing
	// decisions after the fact.
	RefreshCacheOnAsync bool

	// SyncSlowAnalysis runs the classifier and reputation analyzers on the
	// request path instead of in the background. More accurate per request,
	// slower.
	SyncSlowAnalysis bool

	// BackgroundWorkers and BackgroundQueueSize bound the pool that runs
	// deferred analysis.
	BackgroundWorkers   int
	BackgroundQueueSize int

	// BackgroundTimeout caps a single background analysis task.
	BackgroundTimeout time.Duration
}

// DefaultConfig returns the latency-optimized defaults.
func DefaultConfig() Config {
	return Config{
		Mode:                 ModeBlock,
		Thresholds:           DefaultThresholds(),
		ExcludedPathPrefixes: []string{"/health", "/metrics"},
		CacheEnabled:         true,
		CacheTTL:             5 * time.Minute,
		CacheMaxSize:         10000,
		BackgroundWorkers:    4,
		BackgroundQueueSize:  256,
		BackgroundTimeout:    10 * time.Second,
	}
}
