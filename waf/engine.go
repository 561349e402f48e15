package waf

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"rampart/ipaddresses"
)

// Engine is the top level interface to the WAF decision pipeline.
type Engine interface {
	// EvalRequest analyzes a request and returns the action to take on it.
	EvalRequest(ctx context.Context, req HTTPRequest) (Decision, error)

	// Close drains background analysis and stops the workers.
	Close()
}

type engineImpl struct {
	logger   zerolog.Logger
	config   Config
	static   Analyzer
	slow     []Analyzer
	renderer ResponseRenderer
	sink     IncidentSink
	metrics  MetricsSink

	cache  *decisionCache
	flight singleflight.Group
	pool   *backgroundPool

	allowedIPs *ipaddresses.Matcher
	blockedIPs *ipaddresses.Matcher
}

// NewEngine creates a WAF engine. static is the synchronous fast-path
// analyzer; slow analyzers (classifier, reputation) run on the request path
// only when cfg.SyncSlowAnalysis is set, otherwise in the background. sink
// and metrics may be nil.
func NewEngine(logger zerolog.Logger, cfg Config, static Analyzer, slow []Analyzer, renderer ResponseRenderer, sink IncidentSink, metrics MetricsSink) (Engine, error) {
	if static == nil {
		return nil, fmt.Errorf("engine requires a static analyzer")
	}
	if renderer == nil {
		return nil, fmt.Errorf("engine requires a response renderer")
	}
	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid thresholds: %v", err)
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeBlock
	}

	allowedIPs, err := ipaddresses.NewMatcher(cfg.IPAllowlist)
	if err != nil {
		return nil, fmt.Errorf("invalid IP allowlist: %v", err)
	}
	blockedIPs, err := ipaddresses.NewMatcher(cfg.IPBlocklist)
	if err != nil {
		return nil, fmt.Errorf("invalid IP blocklist: %v", err)
	}

	e := &engineImpl{
		logger:     logger,
		config:     cfg,
		static:     static,
		slow:       slow,
		renderer:   renderer,
		sink:       sink,
		metrics:    metrics,
		allowedIPs: allowedIPs,
		blockedIPs: blockedIPs,
	}
	if cfg.CacheEnabled {
		e.cache = newDecisionCache(cfg.CacheTTL, cfg.CacheMaxSize)
	}
	e.pool = newBackgroundPool(logger, cfg.BackgroundWorkers, cfg.BackgroundQueueSize, cfg.BackgroundTimeout)
	return e, nil
}

func (e *engineImpl) EvalRequest(ctx context.Context, req HTTPRequest) (decision Decision, err error) {
	logger := e.logger.With().Str("txid", req.TransactionID()).Logger()
	startTime := time.Now()
	defer func() {
		logger.Info().
			Dur("timeTaken", time.Since(startTime)).
			Str("path", req.Path()).
			Str("action", decision.Action.String()).
			Bool("cacheHit", decision.CacheHit).
			Msg("WAF completed request")
		if e.metrics != nil {
			e.metrics.ObserveDecision(decision.Action, decision.CacheHit, time.Since(startTime))
		}
	}()

	if e.isPathExcluded(req.Path()) {
		decision = e.finalize(logger, req, AnalysisResult{Category: CategorySafe, Analyzer: "static"}, startTime)
		return
	}

	if ip := req.RemoteAddr(); ip != "" {
		if e.blockedIPs.Match(ip) {
			result := AnalysisResult{
				Score:    1.0,
				Category: CategoryBlacklistedIP,
				Analyzer: "static",
				Findings: []Finding{{
					Category:    CategoryBlacklistedIP,
					Severity:    SeverityHigh,
					Description: fmt.Sprintf("IP %v is on the static blocklist", ip),
				}},
			}
			decision = e.finalize(logger, req, result, startTime)
			e.scheduleIncident(req, decision, nil)
			return
		}
		if e.allowedIPs.Match(ip) {
			decision = e.finalize(logger, req, AnalysisResult{Category: CategorySafe, Analyzer: "static"}, startTime)
			return
		}
	}

	fingerprint := Fingerprint(req)
	if e.cache != nil {
		if cached, ok := e.cache.get(fingerprint); ok {
			cached.CacheHit = true
			decision = cached
			return
		}
	}

	// Concurrent misses for the same fingerprint share one analysis run.
	v, err, _ := e.flight.Do(fingerprint, func() (interface{}, error) {
		return e.analyze(ctx, logger, req, fingerprint, startTime), nil
	})
	if err != nil {
		// The analysis func never returns an error; fail open regardless.
		logger.Error().Err(err).Msg("analysis failed, failing open")
		decision = e.finalize(logger, req, AnalysisResult{Category: CategorySafe, Analyzer: "static"}, startTime)
		return decision, nil
	}
	decision = v.(Decision)
	return
}

func (e *engineImpl) analyze(ctx context.Context, logger zerolog.Logger, req HTTPRequest, fingerprint string, startTime time.Time) Decision {
	staticResult, err := e.static.Analyze(ctx, req)
	if err != nil {
		// The static analyzer is pure and should not fail; degrade to a
		// no-signal result if it somehow does.
		logger.Error().Err(err).Msg("static analysis failed")
		staticResult = AnalysisResult{Category: CategorySafe, Analyzer: "static"}
	}
	if req.BodyOversized() {
		staticResult.Findings = append(staticResult.Findings, Finding{
			Category:    CategorySuspicious,
			Severity:    SeverityLow,
			Description: "request body exceeded the analysis size limit and was truncated",
			Location:    LocationBody,
		})
	}

	// Fast-path exit: a static verdict already at the block threshold makes
	// the slower signals irrelevant to the response.
	if staticResult.Score >= e.config.Thresholds.Block {
		decision := e.finalize(logger, req, staticResult, startTime)
		e.cachePut(fingerprint, decision)
		e.scheduleSlowAnalysis(logger, req, staticResult, decision, fingerprint)
		return decision
	}

	if e.config.SyncSlowAnalysis && len(e.slow) > 0 {
		results := append([]AnalysisResult{staticResult}, e.runSlowAnalyzers(ctx, logger, req)...)
		combined := Combine(results)
		decision := e.finalize(logger, req, combined, startTime)
		e.cachePut(fingerprint, decision)
		if decision.Score >= e.config.Thresholds.Log {
			e.scheduleIncident(req, decision, results[1:])
		}
		return decision
	}

	decision := e.finalize(logger, req, staticResult, startTime)
	e.cachePut(fingerprint, decision)
	e.scheduleSlowAnalysis(logger, req, staticResult, decision, fingerprint)
	return decision
}

// runSlowAnalyzers runs the classifier and reputation analyzers, dropping any
// that fail. An unreachable collaborator costs a signal, never the request.
func (e *engineImpl) runSlowAnalyzers(ctx context.Context, logger zerolog.Logger, req HTTPRequest) (results []AnalysisResult) {
	for _, a := range e.slow {
		r, err := a.Analyze(ctx, req)
		if err != nil {
			logger.Warn().Err(err).Str("analyzer", a.Name()).Msg("analyzer failed, continuing without its signal")
			continue
		}
		results = append(results, r)
	}
	return
}

// scheduleSlowAnalysis defers the classifier/reputation pass to the worker
// pool. Its only effect is incident reporting (and, when configured, a cache
// refresh); the decision already returned to the caller never changes.
func (e *engineImpl) scheduleSlowAnalysis(logger zerolog.Logger, req HTTPRequest, staticResult AnalysisResult, decision Decision, fingerprint string) {
	if len(e.slow) == 0 && e.sink == nil {
		return
	}
	e.pool.submit(req.TransactionID(), func(ctx context.Context) {
		background := e.runSlowAnalyzers(ctx, logger, req)
		combined := Combine(append([]AnalysisResult{staticResult}, background...))

		if e.config.RefreshCacheOnAsync && e.cache != nil && combined.Score > decision.Score {
			refreshed := e.finalizeQuiet(combined, decision.AnalysisTime)
			e.cache.replaceIfHigher(fingerprint, refreshed)
			logger.Info().Str("fingerprint", fingerprint).Float64("score", combined.Score).Msg("cached decision refreshed after background analysis")
		}

		if combined.Score >= e.config.Thresholds.Log {
			e.recordIncident(req, e.finalizeQuiet(combined, decision.AnalysisTime), background)
		}
	})
}

func (e *engineImpl) scheduleIncident(req HTTPRequest, decision Decision, backgroundSignals []AnalysisResult) {
	if e.sink == nil {
		return
	}
	e.pool.submit(req.TransactionID(), func(ctx context.Context) {
		e.recordIncident(req, decision, backgroundSignals)
	})
}

func (e *engineImpl) recordIncident(req HTTPRequest, decision Decision, backgroundSignals []AnalysisResult) {
	if e.sink == nil {
		return
	}
	e.sink.Record(req, decision, backgroundSignals)
}

// finalize maps an analysis result to a decision under the configured
// thresholds and mode, and renders its response.
func (e *engineImpl) finalize(logger zerolog.Logger, req HTTPRequest, result AnalysisResult, startTime time.Time) Decision {
	d := e.finalizeQuiet(result, time.Since(startTime))
	if d.Score >= e.config.Thresholds.Log {
		logger.Info().
			Float64("score", d.Score).
			Str("category", d.Category.String()).
			Str("action", d.Action.String()).
			Int("findings", len(d.Findings)).
			Msg("threat detected")
	}
	return d
}

func (e *engineImpl) finalizeQuiet(result AnalysisResult, elapsed time.Duration) Decision {
	d := Decision{
		Action:       e.enforcedAction(e.config.Thresholds.Action(result.Score)),
		Score:        result.Score,
		Category:     result.Category,
		Findings:     result.Findings,
		AnalysisTime: elapsed,
	}
	d.Response = e.renderer.Render(d)
	return d
}

// enforcedAction downgrades the threshold-derived action per the configured
// mode. Log and simulate modes never short-circuit a request.
func (e *engineImpl) enforcedAction(a Action) Action {
	switch e.config.Mode {
	case ModeLog, ModeSimulate:
		if a == ActionBlock || a == ActionChallenge {
			return ActionLog
		}
	case ModeChallenge:
		if a == ActionBlock {
			return ActionChallenge
		}
	}
	return a
}

func (e *engineImpl) cachePut(fingerprint string, d Decision) {
	if e.cache == nil {
		return
	}
	e.cache.put(fingerprint, d)
}

func (e *engineImpl) isPathExcluded(path string) bool {
	for _, prefix := range e.config.ExcludedPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (e *engineImpl) Close() {
	e.pool.close()
}
