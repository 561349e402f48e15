// Package metrics exposes the WAF's operational counters via Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"rampart/waf"
)

// Metrics implements waf.MetricsSink on Prometheus collectors.
type Metrics struct {
	decisions    *prometheus.CounterVec
	cacheHits    prometheus.Counter
	analysisTime prometheus.Histogram
	rateLimited  prometheus.Counter
	lockouts     prometheus.Counter
}

// New creates and registers the WAF collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "waf_decisions_total",
			Help: "WAF decisions by action.",
		}, []string{"action"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "waf_decision_cache_hits_total",
			Help: "Decisions served from the decision cache.",
		}),
		analysisTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "waf_analysis_duration_seconds",
			Help:    "Synchronous analysis path duration.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "waf_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}),
		lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "waf_auth_lockouts_total",
			Help: "Requests rejected by the auth lockout.",
		}),
	}
	reg.MustRegister(m.decisions, m.cacheHits, m.analysisTime, m.rateLimited, m.lockouts)
	return m
}

// ObserveDecision records one finalized decision.
func (m *Metrics) ObserveDecision(action waf.Action, cacheHit bool, elapsed time.Duration) {
	m.decisions.WithLabelValues(action.String()).Inc()
	if cacheHit {
		m.cacheHits.Inc()
	}
	m.analysisTime.Observe(elapsed.Seconds())
}

// ObserveRateLimited counts one rate-limited request.
func (m *Metrics) ObserveRateLimited() {
	m.rateLimited.Inc()
}

// ObserveLockout counts one lockout rejection.
func (m *Metrics) ObserveLockout() {
	m.lockouts.Inc()
}
