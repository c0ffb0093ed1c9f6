// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nexusforge/user-service/internal/admin"
	"github.com/nexusforge/user-service/internal/auth"
	"github.com/nexusforge/user-service/internal/cache"
	"github.com/nexusforge/user-service/internal/config"
	"github.com/nexusforge/user-service/internal/core"
	"github.com/nexusforge/user-service/internal/health"
	"github.com/nexusforge/user-service/internal/middleware"
	"github.com/nexusforge/user-service/internal/server"
	"github.com/nexusforge/user-service/internal/user"
)

const (
	drainDelay      = 5 * time.Second
	userCachePrefix = "user"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var cleanup cleanupStack
	defer cleanup.run(logger)

	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			cleanup.push("telemetry", func() error {
				return tel.Shutdown(context.Background())
			})
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	cleanup.push("database", db.Close)
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	cleanup.push("redis", redis.Close)
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	tokens, err := auth.NewTokenService(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("token service initialized",
		"algorithm", cfg.JWT.Algorithm,
		"ttl", tokens.DefaultTTL(),
	)

	store := cache.NewStore(redis.Client, cache.Options{
		Enabled:    cfg.Cache.Enabled,
		DefaultTTL: cfg.Cache.DefaultTTL,
	}, logger)
	userCache := cache.NewNamespace[user.User](store, userCachePrefix, cfg.Cache.UserTTL)
	logger.Info("cache store initialized",
		"enabled", store.Enabled(),
		"user_ttl", cfg.Cache.UserTTL,
	)

	userRepo := user.NewRepository(db.DB)
	userSvc := user.NewService(userRepo, userCache, core.NewPasswordHasher(), logger)
	userHandler := user.NewHandler(userSvc)

	resolver := auth.NewResolver(tokens, userSvc)
	authSvc := auth.NewService(tokens, userSvc, logger)
	authHandler := auth.NewHandler(authSvc)

	healthHandler := health.NewHandler(health.Info{
		Service:     cfg.App.Name,
		Version:     cfg.App.Version,
		Environment: cfg.App.Environment,
	}, db, redis)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DBStats:    db.Stats,
		RedisStats: redis.PoolStats,
		DBPing:     db.Ping,
		RedisPing:  redis.Ping,
		UserCache:  userCache,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer(logger))
	router.Use(middleware.Logger(logger))

	var (
		observer       middleware.RateLimitObserver
		metricsHandler http.Handler
	)
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		metrics := middleware.NewMetrics(reg, cfg.Metrics.Path)
		observer = metrics

		router.Use(metrics.Handler)
		metricsHandler = metrics.Exposition()
	}

	if cfg.RateLimit.Enabled {
		router.Use(middleware.NewRateLimiter(middleware.RateLimitConfig{
			Limiter:           newLimiter(cfg.RateLimit, store, redis),
			BypassFunc:        middleware.ProbePaths(cfg.Metrics.Path),
			Observer:          observer,
			Logger:            logger,
			TrustProxyHeaders: cfg.RateLimit.TrustProxyHeaders,
		}).Handler)
		logger.Info("rate limiting enabled",
			"strategy", cfg.RateLimit.Strategy,
			"requests", cfg.RateLimit.Requests,
			"window", cfg.RateLimit.Window,
			"trust_proxy_headers", cfg.RateLimit.TrustProxyHeaders,
		)
	}

	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	if metricsHandler != nil {
		router.Handle(cfg.Metrics.Path, metricsHandler)
	}

	authenticator := middleware.Authenticator(resolver)

	router.Route("/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator)
		userHandler.RegisterRoutes(r, authenticator)
		adminHandler.RegisterRoutes(r, authenticator)
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

func newLimiter(
	cfg config.RateLimitConfig,
	store *cache.Store,
	redis *core.Redis,
) middleware.Limiter {
	if cfg.Strategy == config.RateLimitGCRA {
		return middleware.NewGCRALimiter(redis.Client, cfg.Requests, cfg.Burst, cfg.Window)
	}
	return middleware.NewFixedWindowLimiter(store, cfg.Requests, cfg.Window)
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
