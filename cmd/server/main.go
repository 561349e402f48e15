package main

import (
	"context"
	"flag"
	"net/http"
	"net/http/httputil"
	_ "net/http/pprof"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"rampart/authlimit"
	"rampart/blocking"
	"rampart/classifier"
	"rampart/config"
	"rampart/incident"
	"rampart/logging"
	"rampart/metrics"
	"rampart/ratelimit"
	"rampart/server"
	"rampart/staticanalysis"
	"rampart/threatintel"
	"rampart/waf"
)

// Dependency injection composition root
func main() {
	logLevel := flag.String("loglevel", "info", "sets log level. Can be one of: debug, info, warn, error, fatal, panic.")
	configPath := flag.String("config", "", "if set, load the config file at this path instead of using defaults")
	listenAddr := flag.String("listenaddr", "", "if set, overrides the listen address from the config file")
	profiling := flag.Bool("profiling", false, "whether to enable the :6060/debug/pprof/ endpoint")
	flag.Parse()

	loglevel, _ := zerolog.ParseLevel(*logLevel)
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339, NoColor: true}).Level(loglevel).With().Timestamp().Caller().Logger()

	if *profiling {
		go func() {
			http.ListenAndServe(":6060", nil)
		}()
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to load config")
		}
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	sinks := waf.MultiSink{}
	auditSink, err := logging.NewFileAuditSink(&logging.LogFileSystemImpl{}, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("Audit log unavailable, continuing without it")
	} else {
		sinks = append(sinks, auditSink)
	}

	if cfg.Incidents.SQLitePath != "" {
		store, err := incident.Open(cfg.Incidents.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.Incidents.SQLitePath).Msg("Failed to open incident store")
		}
		defer store.Close()
		sinks = append(sinks, incident.NewSink(logger, store))
	} else {
		sinks = append(sinks, incident.NewSink(logger, nil))
	}

	var slow []waf.Analyzer
	if cfg.Engine.ClassifierURL != "" {
		timeout := time.Duration(cfg.Engine.ClassifierTimeoutMs) * time.Millisecond
		slow = append(slow, classifier.NewAnalyzer(classifier.NewHTTPClient(cfg.Engine.ClassifierURL, timeout)))
	}

	var feed threatintel.Feed
	if cfg.Engine.BlocklistFeedPath != "" {
		localFeed := threatintel.NewLocalFeed("local", 80)
		if err := localFeed.LoadFile(threatintel.KindIP, cfg.Engine.BlocklistFeedPath); err != nil {
			logger.Fatal().Err(err).Str("path", cfg.Engine.BlocklistFeedPath).Msg("Failed to load blocklist feed")
		}
		feed = localFeed
	}

	var signatures threatintel.SignatureMatcher
	if cfg.Engine.SignatureRulesPath != "" {
		matcher, err := threatintel.LoadSignatureRules(cfg.Engine.SignatureRulesPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.Engine.SignatureRulesPath).Msg("Failed to load signature rules")
		}
		signatures = matcher
	}

	if feed != nil || signatures != nil {
		var reputation *threatintel.ReputationCache
		if feed != nil {
			reputation = threatintel.NewReputationCache(feed, threatintel.DefaultCacheTTL)
		}
		slow = append(slow, threatintel.NewAnalyzer(logger, reputation, signatures))
	}

	engine, err := waf.NewEngine(logger, cfg.WAFConfig(), staticanalysis.NewAnalyzer(), slow, blocking.NewRenderer(), sinks, m)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create WAF engine")
	}
	defer engine.Close()

	var rateLimiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		var store ratelimit.CounterStore
		var overrides ratelimit.OverrideStore
		if cfg.Redis.Addr != "" {
			client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
			defer client.Close()
			store = ratelimit.NewRedisStore(client)
			overrides = ratelimit.NewRedisOverrides(client)
		} else {
			store = ratelimit.NewMemoryStore()
			overrides = ratelimit.NewMemoryOverrides()
		}
		rateLimiter = ratelimit.NewLimiter(store, overrides, cfg.RateLimits())
	}

	var authLimiter *authlimit.Limiter
	if cfg.AuthLimit.Enabled {
		authLimiter = authlimit.NewLimiter(logger, cfg.AuthLimits())
	}

	backendURL, err := url.Parse(cfg.Server.BackendURL)
	if err != nil || cfg.Server.BackendURL == "" {
		logger.Fatal().Err(err).Str("backendURL", cfg.Server.BackendURL).Msg("A valid backend_url is required")
	}
	backend := httputil.NewSingleHostReverseProxy(backendURL)

	handler := server.NewHandler(logger, server.Config{
		MaxBodyBytes:         cfg.Server.MaxBodyBytes,
		AuthEndpoints:        cfg.Server.AuthEndpoints,
		ExcludedPathPrefixes: cfg.Engine.ExcludedPaths,
		FailClosed:           cfg.Server.FailClosed,
		TrustProxies:         cfg.Server.TrustProxies,
	}, engine, rateLimiter, authLimiter, m, backend)

	if cfg.Server.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(cfg.Server.MetricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("Metrics listener failed")
			}
		}()
	}

	srv := &http.Server{Addr: cfg.Server.ListenAddr, Handler: handler}
	go func() {
		logger.Info().Str("addr", cfg.Server.ListenAddr).Msg("Starting WAF server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	logger.Info().Msg("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
