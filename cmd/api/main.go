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
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/templates/portal-gateway/internal/admin"
	"github.com/carterperez-dev/templates/portal-gateway/internal/backend"
	"github.com/carterperez-dev/templates/portal-gateway/internal/cache"
	"github.com/carterperez-dev/templates/portal-gateway/internal/catalog"
	"github.com/carterperez-dev/templates/portal-gateway/internal/config"
	"github.com/carterperez-dev/templates/portal-gateway/internal/core"
	"github.com/carterperez-dev/templates/portal-gateway/internal/gate"
	"github.com/carterperez-dev/templates/portal-gateway/internal/health"
	"github.com/carterperez-dev/templates/portal-gateway/internal/metrics"
	"github.com/carterperez-dev/templates/portal-gateway/internal/middleware"
	"github.com/carterperez-dev/templates/portal-gateway/internal/portal"
	"github.com/carterperez-dev/templates/portal-gateway/internal/server"
	"github.com/carterperez-dev/templates/portal-gateway/internal/web"
)

const (
	drainDelay = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "", "path to config file")
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

	logger.Info("starting gateway",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
		"backend", cfg.Backend.URL,
		"frontend", cfg.Frontend.URL,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	promMetrics := metrics.New()

	client := backend.NewClient(cfg.Backend, backend.WithObserver(promMetrics))

	pageGate := gate.New(cfg.Routes, client, client,
		gate.WithObserver(promMetrics),
		gate.WithLogger(logger),
	)

	proxy, err := web.NewProxy(cfg.Frontend, logger)
	if err != nil {
		return err
	}

	catalogSvc := catalog.NewService(
		client,
		cache.New(redis.Client),
		promMetrics,
		cfg.Cache,
		logger,
	)
	catalogHandler := catalog.NewHandler(catalogSvc, client.CredentialsFromRequest)

	portalHandler := portal.NewHandler(client, cfg.Routes, logger)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		RedisStats:  redis.PoolStats,
		RedisPing:   redis.Ping,
		BackendPing: client.Ping,
		Routes:      cfg.Routes,
		BackendURL:  cfg.Backend.URL,
	})

	healthHandler := health.NewHandler(
		health.Dependency{Name: "backend", Checker: client},
		health.Dependency{Name: "redis", Checker: redis},
	)

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	apiLimit := middleware.PerWindow(
		cfg.RateLimit.Requests,
		cfg.RateLimit.Burst,
		cfg.RateLimit.Window,
	)
	limiter := middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
		Limit:         apiLimit,
		SessionCookie: cfg.Backend.SessionCookie,
		FailOpen:      true,
		BypassFunc:    rateLimitBypass(pageGate),
	})

	router.Use(middleware.RequestID)
	if telemetry != nil {
		router.Use(telemetry.Middleware)
	}
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recoverer(logger))
	router.Use(limiter.Handler)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	if cfg.Metrics.Enabled {
		router.Handle(cfg.Metrics.Path, promMetrics.Handler())
	}

	roleLimited := limiter.RoleRateLimiter(middleware.DefaultRoleLimits(apiLimit))
	authenticator := func(next http.Handler) http.Handler {
		return middleware.Authenticator(client, client.CredentialsFromRequest)(roleLimited(next))
	}
	inquiryGuard := func(next http.Handler) http.Handler {
		return middleware.OptionalAuth(client, client.CredentialsFromRequest)(roleLimited(next))
	}

	router.Route("/v1", func(r chi.Router) {
		r.Use(middleware.APIHeaders)

		catalogHandler.RegisterRoutes(r, inquiryGuard)
		portalHandler.RegisterRoutes(r, authenticator, middleware.RequireOwner)
		adminHandler.RegisterRoutes(r, authenticator, middleware.RequireAdmin)
	})

	router.Handle("/*", pageGate.Middleware(client.CredentialsFromRequest)(proxy))

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

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	logger.Info("gateway stopped")
	return nil
}

// rateLimitBypass exempts ungated page and asset loads. Only the JSON API
// and protected navigations, which cost backend calls, draw from the
// shared budget.
func rateLimitBypass(g *gate.Gate) func(*http.Request) bool {
	return func(r *http.Request) bool {
		p := gate.CanonicalPath(r.URL.Path)
		if p == "/v1" || strings.HasPrefix(p, "/v1/") {
			return false
		}
		return !g.Protected(p)
	}
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
