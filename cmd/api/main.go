package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/coaching-platform/internal/api/router"
	"github.com/wolfman30/coaching-platform/internal/app/bootstrap"
	"github.com/wolfman30/coaching-platform/internal/availability"
	appconfig "github.com/wolfman30/coaching-platform/internal/config"
	httpmiddleware "github.com/wolfman30/coaching-platform/internal/http/middleware"
	"github.com/wolfman30/coaching-platform/internal/sessions"
	"github.com/wolfman30/coaching-platform/internal/slots"
	"github.com/wolfman30/coaching-platform/pkg/logging"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting coaching-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()
	pool, err := bootstrap.ConnectPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	metricsHandler, registry := setupMetrics()
	rt := bootstrap.BuildSlotRuntime(cfg, bootstrap.Sources{
		Profiles: availability.NewStore(pool),
		Sessions: sessions.NewRepository(pool),
		Redis:    redisClient,
	}, registry, logger, time.Now)

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	stopEviction := make(chan struct{})
	go limiter.Run(5*time.Minute, 10*time.Minute, stopEviction)

	if cfg.CoachJWTSecret == "" {
		logger.Warn("COACH_JWT_SECRET is empty; availability edits will be rejected")
	}

	r := router.New(&router.Config{
		Logger:              logger,
		SlotsHandler:        slots.NewHandler(rt.Engine, logger),
		AvailabilityHandler: availability.NewHandler(rt.Availability, logger),
		MetricsHandler:      metricsHandler,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		CoachAuthSecret:     cfg.CoachJWTSecret,
		RateLimiter:         limiter,
		RequestTimeout:      cfg.RequestTimeout,
		Ready:               pool.Ping,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	close(stopEviction)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// setupMetrics builds a dedicated registry with Go runtime collectors and
// returns its /metrics handler.
func setupMetrics() (http.Handler, *prometheus.Registry) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), registry
}
