// Package server is the HTTP boundary: it adapts inbound requests for the
// engine and enforces its decisions in front of the protected backend.
package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"rampart/authlimit"
	"rampart/blocking"
	"rampart/ratelimit"
	"rampart/waf"
)

// Config carries the boundary settings.
type Config struct {
	// MaxBodyBytes caps how much of a request body is analyzed. Bodies past
	// the cap are still forwarded.
	MaxBodyBytes int64

	// AuthEndpoints are the path prefixes guarded by the lockout limiter.
	AuthEndpoints []string

	// ExcludedPathPrefixes bypass the middleware entirely.
	ExcludedPathPrefixes []string

	// FailClosed rejects requests with 503 when the rate limit store is
	// unreachable. Off by default: a broken store must not take the site down.
	FailClosed bool

	// TrustProxies enables client IP extraction from X-Forwarded-For and
	// X-Real-IP.
	TrustProxies bool
}

// TrafficMetrics observes middleware-level rejections.
type TrafficMetrics interface {
	ObserveRateLimited()
	ObserveLockout()
}

type middleware struct {
	logger      zerolog.Logger
	config      Config
	engine      waf.Engine
	rateLimiter *ratelimit.Limiter
	authLimiter *authlimit.Limiter
	metrics     TrafficMetrics
	next        http.Handler
}

// NewHandler wraps next with the full decision pipeline: lockout gate, rate
// limiter, then the analysis engine. rateLimiter, authLimiter and metrics may
// each be nil to disable that stage.
func NewHandler(logger zerolog.Logger, config Config, engine waf.Engine, rateLimiter *ratelimit.Limiter, authLimiter *authlimit.Limiter, metrics TrafficMetrics, next http.Handler) http.Handler {
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = 1024 * 128
	}
	return &middleware{
		logger:      logger,
		config:      config,
		engine:      engine,
		rateLimiter: rateLimiter,
		authLimiter: authLimiter,
		metrics:     metrics,
		next:        next,
	}
}

func (m *middleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if m.isExcluded(r.URL.Path) {
		m.next.ServeHTTP(w, r)
		return
	}

	req, err := newWafHTTPRequest(r, m.config.MaxBodyBytes, m.config.TrustProxies)
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to read request body")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	logger := m.logger.With().Str("txid", req.TransactionID()).Logger()
	identity := req.APIKey()
	if identity == "" {
		identity = req.RemoteAddr()
	}
	isAuth := m.isAuthEndpoint(r.URL.Path)

	if isAuth && m.authLimiter != nil {
		if locked, retryAfter := m.authLimiter.IsLockedOut(identity); locked {
			logger.Info().Str("identity", identity).Dur("retryAfter", retryAfter).Msg("Rejecting locked out caller")
			if m.metrics != nil {
				m.metrics.ObserveLockout()
			}
			writeResponse(w, blocking.LockoutResponse(retryAfter))
			return
		}
	}

	if m.rateLimiter != nil {
		limited, info, lerr := m.rateLimiter.Check(r.Context(), identity, r.URL.Path)
		switch {
		case lerr != nil:
			logger.Error().Err(lerr).Msg("Rate limit store unavailable")
			if m.config.FailClosed {
				http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
				return
			}
		case limited:
			logger.Info().Str("identity", identity).Msg("Rate limit exceeded")
			if m.metrics != nil {
				m.metrics.ObserveRateLimited()
			}
			retryAfter := time.Until(time.Unix(info.Reset, 0))
			writeResponse(w, blocking.RateLimitResponse(info, retryAfter))
			return
		default:
			setRateLimitHeaders(w, info)
		}
	}

	decision, err := m.engine.EvalRequest(r.Context(), req)
	if err != nil {
		// Fail open: analysis trouble must not take the backend down.
		logger.Error().Err(err).Msg("Request analysis failed, passing request through")
		m.next.ServeHTTP(w, r)
		return
	}

	if decision.Action == waf.ActionBlock || decision.Action == waf.ActionChallenge {
		writeResponse(w, decision.Response)
		return
	}

	for k, v := range decision.Response.Headers {
		w.Header().Set(k, v)
	}

	if isAuth && m.authLimiter != nil {
		sw := &statusWriter{ResponseWriter: w}
		m.next.ServeHTTP(sw, r)
		m.observeAuthOutcome(logger, identity, sw.status())
		return
	}

	m.next.ServeHTTP(w, r)
}

// observeAuthOutcome feeds the lockout limiter from the backend's verdict:
// rejected credentials count as attempts, accepted ones clear the history.
func (m *middleware) observeAuthOutcome(logger zerolog.Logger, identity string, status int) {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		res := m.authLimiter.Attempt(identity)
		if res.Locked {
			logger.Info().Str("identity", identity).Dur("retryAfter", res.RetryAfter).Msg("Caller locked out after repeated failed authentication")
		}
	case status >= 200 && status < 300:
		m.authLimiter.Success(identity)
	}
}

func (m *middleware) isExcluded(path string) bool {
	for _, prefix := range m.config.ExcludedPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (m *middleware) isAuthEndpoint(path string) bool {
	for _, prefix := range m.config.AuthEndpoints {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
	w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
	w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.Reset))
}

func writeResponse(w http.ResponseWriter, resp waf.Response) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	w.Write(resp.Body)
}

// statusWriter remembers the status code the backend wrote.
type statusWriter struct {
	http.ResponseWriter
	wroteStatus int
}

func (w *statusWriter) WriteHeader(statusCode int) {
	if w.wroteStatus == 0 {
		w.wroteStatus = statusCode
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.wroteStatus == 0 {
		w.wroteStatus = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) status() int {
	if w.wroteStatus == 0 {
		return http.StatusOK
	}
	return w.wroteStatus
}
