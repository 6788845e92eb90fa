package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"sjsage522/scoutmcp/config"
	"sjsage522/scoutmcp/internal"
	"sjsage522/scoutmcp/internal/browser"
	"sjsage522/scoutmcp/internal/extract"
	"sjsage522/scoutmcp/internal/learning"
	"sjsage522/scoutmcp/internal/marketplace"
	"sjsage522/scoutmcp/internal/tools"
	"sjsage522/scoutmcp/logger"
	"sjsage522/scoutmcp/services/cache"
	"sjsage522/scoutmcp/services/metrics"
	"sjsage522/scoutmcp/services/proxy"
	"sjsage522/scoutmcp/services/publisher"
	"sjsage522/scoutmcp/services/worker"
)

func main() {
	// Load environment variables
	_ = godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("transport", cfg.Transport).
		Str("engine", cfg.BrowserEngine).
		Msg("Starting MCP server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := initializeServices(ctx, &cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer deps.Close()

	store, err := newErrorStore(&cfg, deps)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open error store")
	}
	learner, err := learning.NewManager(ctx, store,
		learning.WithPublisher(deps.Publisher),
		learning.WithMetrics(deps.Metrics),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load error patterns")
	}
	defer learner.Close()

	profile, err := marketplace.LoadProfile(cfg.ProfilePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load marketplace profile")
	}
	if err := profile.SetHomeURL(cfg.BaseURL); err != nil {
		log.Fatal().Err(err).Msg("Invalid marketplace base URL")
	}

	sessionOpts := []browser.SessionOption{
		browser.WithCache(deps.Cache),
		browser.WithMetrics(deps.Metrics),
	}
	if deps.Proxy != nil {
		sessionOpts = append(sessionOpts, browser.WithProxies(deps.Proxy))
	}
	session := browser.NewSession(browser.Config{
		Engine:      cfg.BrowserEngine,
		Headless:    cfg.Headless,
		Timeout:     cfg.BrowserTimeout,
		MaxRetries:  cfg.MaxRetries,
		RetryDelay:  cfg.RetryDelay,
		HumanDelays: cfg.HumanDelays,
		BlockTime:   cfg.BlockTime,
	}, profile, sessionOpts...)
	defer session.Close()

	srv := tools.NewServer(session, learner, extract.NewExtractor(profile, learner),
		tools.WithMetrics(deps.Metrics),
		tools.WithScreenshotDir(cfg.ScreenshotDir),
	)

	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr, deps.Metrics)
	}

	w := worker.NewWorker(learner, deps.Publisher, deps.Proxy, cfg.ErrorRetentionDays, cfg.MaintenanceInterval)
	go func() {
		if err := w.Start(ctx); err != nil {
			log.Error().Err(err).Msg("Maintenance worker exited with error")
		}
	}()

	switch cfg.Transport {
	case "http":
		err = srv.ServeHTTP(ctx, cfg.HTTPAddr)
	default:
		err = srv.ServeStdio(ctx, os.Stdin, os.Stdout)
	}
	if err != nil {
		log.Error().Err(err).Msg("MCP server exited with error")
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down gracefully...")
}

// initializeServices initializes the cache, publisher, proxies and metrics
func initializeServices(ctx context.Context, cfg *config.Config) (*internal.Dependencies, error) {
	deps := &internal.Dependencies{
		Metrics:   metrics.NewMetrics(),
		Publisher: publisher.NopPublisher{},
	}

	cacheService, err := newCache(cfg)
	if err != nil {
		return nil, err
	}
	deps.Cache = cacheService

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		deps.Redis = client
		deps.Publisher = publisher.NewRedisPublisher(ctx, client,
			cfg.RedisStream, cfg.RedisStreamCount, cfg.RedisStreamMaxLength)

		logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
			cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
	}

	if len(cfg.ProxyServers) > 0 {
		manager, err := proxy.NewManager(cfg.ProxyServers, cfg.ProxyUsername, cfg.ProxyPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to configure proxies: %w", err)
		}
		if err := manager.UpdateProxies(ctx); err != nil {
			logger.Default.Warn().Err(err).Msg("Initial proxy check failed")
		}
		logger.Default.Info().Interface("proxy_stats", manager.Stats()).Msg("Proxy stats")
		deps.Proxy = manager
	}

	return deps, nil
}

// newCache prefers memcache when it answers and falls back to an in-process
// LRU
func newCache(cfg *config.Config) (cache.CacheService, error) {
	if cfg.MemcacheAddr != "" {
		mc := cache.NewMemcacheService(cfg.MemcacheAddr)
		err := mc.Ping()
		if err == nil {
			logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
			return mc, nil
		}
		logger.Default.Warn().Err(err).Str("addr", cfg.MemcacheAddr).Msg("Memcache unavailable, using in-memory cache")
	}
	lru, err := cache.NewLRUService(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	return lru, nil
}

func newErrorStore(cfg *config.Config, deps *internal.Dependencies) (learning.Store, error) {
	switch cfg.ErrorStore {
	case "redis":
		if deps.Redis == nil {
			return nil, errors.New("redis error store requires a redis connection")
		}
		return learning.NewRedisStore(deps.Redis, "scout"), nil
	default:
		return learning.NewFileStore(cfg.ErrorStorePath)
	}
}

func serveMetrics(ctx context.Context, addr string, m *metrics.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("Serving metrics on %s/metrics", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Metrics server failed: %v", err)
	}
}
