// Package config loads the firewall configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"rampart/authlimit"
	"rampart/ratelimit"
	"rampart/waf"
)

// Main is the top level configuration.
type Main struct {
	Server    Server    `yaml:"server"`
	Engine    Engine    `yaml:"engine"`
	RateLimit RateLimit `yaml:"rate_limit"`
	AuthLimit AuthLimit `yaml:"auth_limit"`
	Redis     Redis     `yaml:"redis"`
	Incidents Incidents `yaml:"incidents"`
}

// Server holds the HTTP listener settings.
type Server struct {
	ListenAddr    string   `yaml:"listen_addr"`
	BackendURL    string   `yaml:"backend_url"`
	MetricsAddr   string   `yaml:"metrics_addr"`
	MaxBodyBytes  int64    `yaml:"max_body_bytes"`
	AuthEndpoints []string `yaml:"auth_endpoints"`
	FailClosed    bool     `yaml:"fail_closed"`
	TrustProxies  bool     `yaml:"trust_proxies"`
}

// Engine holds the analysis engine settings.
type Engine struct {
	Mode                string   `yaml:"mode"`
	BlockThreshold      float64  `yaml:"block_threshold"`
	ChallengeThreshold  float64  `yaml:"challenge_threshold"`
	LogThreshold        float64  `yaml:"log_threshold"`
	ExcludedPaths       []string `yaml:"excluded_paths"`
	IPAllowlist         []string `yaml:"ip_allowlist"`
	IPBlocklist         []string `yaml:"ip_blocklist"`
	CacheEnabled        *bool    `yaml:"cache_enabled"`
	CacheTTLSeconds     int      `yaml:"cache_ttl_seconds"`
	CacheMaxSize        int      `yaml:"cache_max_size"`
	SyncSlowAnalysis    bool     `yaml:"sync_slow_analysis"`
	RefreshCacheOnAsync bool     `yaml:"refresh_cache_on_async"`
	BackgroundWorkers   int      `yaml:"background_workers"`
	BackgroundQueueSize int      `yaml:"background_queue_size"`
	SignatureRulesPath  string   `yaml:"signature_rules_path"`
	BlocklistFeedPath   string   `yaml:"blocklist_feed_path"`
	ClassifierURL       string   `yaml:"classifier_url"`
	ClassifierTimeoutMs int      `yaml:"classifier_timeout_ms"`
}

// RateLimit holds the sliding window rate limiter settings.
type RateLimit struct {
	Enabled       bool `yaml:"enabled"`
	MaxRequests   int  `yaml:"max_requests"`
	WindowSeconds int  `yaml:"window_seconds"`
}

// AuthLimit holds the authentication lockout settings.
type AuthLimit struct {
	Enabled        bool `yaml:"enabled"`
	MaxPerMinute   int  `yaml:"max_per_minute"`
	MaxPerHour     int  `yaml:"max_per_hour"`
	MaxPerDay      int  `yaml:"max_per_day"`
	LockoutMinutes int  `yaml:"lockout_minutes"`
}

// Redis holds the connection settings for the shared rate limit store.
// When Addr is empty the in-memory store is used instead.
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Incidents holds the incident store settings.
type Incidents struct {
	SQLitePath string `yaml:"sqlite_path"`
}

// Default returns the configuration used when no config file is given.
func Default() Main {
	return Main{
		Server: Server{
			ListenAddr:    ":8080",
			MetricsAddr:   ":9090",
			MaxBodyBytes:  1024 * 128,
			AuthEndpoints: []string{"/login", "/api/auth", "/api/token"},
		},
		Engine: Engine{
			Mode:                "block",
			BlockThreshold:      0.75,
			ChallengeThreshold:  0.5,
			LogThreshold:        0.25,
			CacheTTLSeconds:     300,
			CacheMaxSize:        10000,
			BackgroundWorkers:   4,
			BackgroundQueueSize: 1000,
		},
		RateLimit: RateLimit{Enabled: true, MaxRequests: 60, WindowSeconds: 60},
		AuthLimit: AuthLimit{Enabled: true, MaxPerMinute: 5, MaxPerHour: 20, MaxPerDay: 50, LockoutMinutes: 15},
	}
}

// Load reads and validates the config file at the given path.
func Load(path string) (Main, error) {
	m := Default()
	bb, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("reading config file: %w", err)
	}
	if err = yaml.Unmarshal(bb, &m); err != nil {
		return m, fmt.Errorf("parsing config file %v: %w", path, err)
	}
	if err = m.Validate(); err != nil {
		return m, fmt.Errorf("invalid config file %v: %w", path, err)
	}
	return m, nil
}

// Validate checks invariants that the schema alone cannot express.
func (m Main) Validate() error {
	if _, err := waf.ParseMode(m.Engine.Mode); err != nil {
		return err
	}
	t := waf.Thresholds{Block: m.Engine.BlockThreshold, Challenge: m.Engine.ChallengeThreshold, Log: m.Engine.LogThreshold}
	if err := t.Validate(); err != nil {
		return err
	}
	if m.RateLimit.Enabled && (m.RateLimit.MaxRequests <= 0 || m.RateLimit.WindowSeconds <= 0) {
		return fmt.Errorf("rate_limit requires positive max_requests and window_seconds")
	}
	if m.AuthLimit.Enabled && m.AuthLimit.MaxPerMinute <= 0 {
		return fmt.Errorf("auth_limit requires a positive max_per_minute")
	}
	return nil
}

// WAFConfig converts the engine section to the engine's own config type.
func (m Main) WAFConfig() waf.Config {
	c := waf.DefaultConfig()
	mode, _ := waf.ParseMode(m.Engine.Mode)
	c.Mode = mode
	c.Thresholds = waf.Thresholds{Block: m.Engine.BlockThreshold, Challenge: m.Engine.ChallengeThreshold, Log: m.Engine.LogThreshold}
	c.ExcludedPathPrefixes = m.Engine.ExcludedPaths
	c.IPAllowlist = m.Engine.IPAllowlist
	c.IPBlocklist = m.Engine.IPBlocklist
	if m.Engine.CacheEnabled != nil {
		c.CacheEnabled = *m.Engine.CacheEnabled
	}
	if m.Engine.CacheTTLSeconds > 0 {
		c.CacheTTL = time.Duration(m.Engine.CacheTTLSeconds) * time.Second
	}
	if m.Engine.CacheMaxSize > 0 {
		c.CacheMaxSize = m.Engine.CacheMaxSize
	}
	c.SyncSlowAnalysis = m.Engine.SyncSlowAnalysis
	c.RefreshCacheOnAsync = m.Engine.RefreshCacheOnAsync
	if m.Engine.BackgroundWorkers > 0 {
		c.BackgroundWorkers = m.Engine.BackgroundWorkers
	}
	if m.Engine.BackgroundQueueSize > 0 {
		c.BackgroundQueueSize = m.Engine.BackgroundQueueSize
	}
	return c
}

// RateLimits converts the rate limit section to the limiter's default limits.
func (m Main) RateLimits() ratelimit.Limits {
	return ratelimit.Limits{MaxRequests: m.RateLimit.MaxRequests, WindowSeconds: m.RateLimit.WindowSeconds}
}

// AuthLimits converts the auth limit section to the lockout limiter's config.
func (m Main) AuthLimits() authlimit.Config {
	c := authlimit.DefaultConfig()
	if m.AuthLimit.MaxPerMinute > 0 {
		c.MaxPerMinute = m.AuthLimit.MaxPerMinute
	}
	if m.AuthLimit.MaxPerHour > 0 {
		c.MaxPerHour = m.AuthLimit.MaxPerHour
	}
	if m.AuthLimit.MaxPerDay > 0 {
		c.MaxPerDay = m.AuthLimit.MaxPerDay
	}
	if m.AuthLimit.LockoutMinutes > 0 {
		c.LockoutDuration = time.Duration(m.AuthLimit.LockoutMinutes) * time.Minute
	}
	return c
}
