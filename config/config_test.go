package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"rampart/waf"
)

func writeConfigFile(t *testing.T, content string) string {
	p := filepath.Join(t.TempDir(), "rampart.yaml")
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return p
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config does not validate: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	assert := assert.New(t)
	p := writeConfigFile(t, `
server:
  listen_addr: ":9999"
  backend_url: "http://127.0.0.1:3000"
  trust_proxies: true
engine:
  mode: simulate
  block_threshold: 0.8
  excluded_paths:
    - /health
    - /static/
  cache_enabled: false
rate_limit:
  enabled: true
  max_requests: 100
  window_seconds: 30
redis:
  addr: "127.0.0.1:6379"
`)

	m, err := Load(p)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	assert.Equal(":9999", m.Server.ListenAddr)
	assert.Equal("http://127.0.0.1:3000", m.Server.BackendURL)
	assert.True(m.Server.TrustProxies)
	assert.Equal("simulate", m.Engine.Mode)
	assert.Equal(0.8, m.Engine.BlockThreshold)
	assert.Equal([]string{"/health", "/static/"}, m.Engine.ExcludedPaths)
	assert.Equal(100, m.RateLimit.MaxRequests)
	assert.Equal("127.0.0.1:6379", m.Redis.Addr)

	// Untouched sections keep their defaults.
	assert.Equal(":9090", m.Server.MetricsAddr)
	assert.Equal(0.5, m.Engine.ChallengeThreshold)
	assert.Equal(5, m.AuthLimit.MaxPerMinute)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.NotNil(t, err)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	p := writeConfigFile(t, "server: [not a mapping")
	_, err := Load(p)
	assert.NotNil(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Main)
	}{
		{"unknown mode", func(m *Main) { m.Engine.Mode = "aggressive" }},
		{"inverted thresholds", func(m *Main) { m.Engine.BlockThreshold = 0.2 }},
		{"threshold above one", func(m *Main) { m.Engine.BlockThreshold = 1.5 }},
		{"zero rate limit window", func(m *Main) { m.RateLimit.WindowSeconds = 0 }},
		{"zero auth attempts", func(m *Main) { m.AuthLimit.MaxPerMinute = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Default()
			tt.mutate(&m)
			assert.NotNil(t, m.Validate())
		})
	}
}

func TestValidateAllowsZeroesWhenDisabled(t *testing.T) {
	m := Default()
	m.RateLimit = RateLimit{Enabled: false}
	m.AuthLimit = AuthLimit{Enabled: false}
	assert.Nil(t, m.Validate())
}

func TestWAFConfigMapping(t *testing.T) {
	assert := assert.New(t)
	m := Default()
	m.Engine.Mode = "challenge"
	m.Engine.ExcludedPaths = []string{"/health"}
	m.Engine.IPBlocklist = []string{"203.0.113.0/24"}
	m.Engine.CacheTTLSeconds = 60
	m.Engine.SyncSlowAnalysis = true
	disabled := false
	m.Engine.CacheEnabled = &disabled

	c := m.WAFConfig()

	assert.Equal(waf.ModeChallenge, c.Mode)
	assert.Equal(waf.Thresholds{Block: 0.75, Challenge: 0.5, Log: 0.25}, c.Thresholds)
	assert.Equal([]string{"/health"}, c.ExcludedPathPrefixes)
	assert.Equal([]string{"203.0.113.0/24"}, c.IPBlocklist)
	assert.False(c.CacheEnabled)
	assert.Equal(time.Minute, c.CacheTTL)
	assert.True(c.SyncSlowAnalysis)
}

func TestWAFConfigDefaultsCacheOn(t *testing.T) {
	c := Default().WAFConfig()
	assert.True(t, c.CacheEnabled)
}

func TestAuthLimitsMapping(t *testing.T) {
	assert := assert.New(t)
	m := Default()
	m.AuthLimit.LockoutMinutes = 30

	c := m.AuthLimits()

	assert.Equal(5, c.MaxPerMinute)
	assert.Equal(30*time.Minute, c.LockoutDuration)
}

func TestRateLimitsMapping(t *testing.T) {
	l := Default().RateLimits()
	assert.Equal(t, 60, l.MaxRequests)
	assert.Equal(t, 60, l.WindowSeconds)
}
