package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/clinicops/booking-console/internal/api/router"
	"github.com/clinicops/booking-console/internal/availability"
	appconfig "github.com/clinicops/booking-console/internal/config"
	"github.com/clinicops/booking-console/internal/http/handlers"
	"github.com/clinicops/booking-console/internal/observability/metrics"
	"github.com/clinicops/booking-console/internal/providers"
	"github.com/clinicops/booking-console/internal/redislock"
	"github.com/clinicops/booking-console/pkg/logging"
)

func main() {
	// .env is a development convenience; production config comes from the
	// real environment.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel, cfg.Env)
	logger.Info("starting booking-console API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	availabilityMetrics := metrics.NewAvailabilityMetrics(nil)

	// Storage: postgres when configured, in-memory otherwise (demo mode).
	var (
		directory availability.ProviderDirectory
		schedules availability.ScheduleStore
		bookings  availability.BookingStore
	)
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to create pgx pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		repo := providers.NewRepository(pool)
		directory, schedules, bookings = repo, repo, repo
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		mem := providers.NewMemoryStore()
		directory, schedules, bookings = mem, mem, mem
	}

	var locker availability.ProviderLocker
	if cfg.UseRedisLock && cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		client := redis.NewClient(opts)
		defer func() { _ = client.Close() }()
		locker = redislock.New(client, cfg.ReserveLockTTL, cfg.ReserveLockRetry)
		logger.Info("reservation guard using redis lock", "addr", cfg.RedisAddr)
	} else {
		locker = availability.NewMemoryLocker()
	}

	engine := availability.NewEngine(directory, schedules, bookings, locker, logger, availabilityMetrics, availability.Options{
		MergeTolerance: cfg.SlotMergeTolerance,
		Granularity:    cfg.SlotGranularity,
		SuggestWorkers: cfg.SuggestWorkers,
	})

	availabilityHandler := handlers.NewAvailabilityHandler(engine, logger)

	r := router.New(&router.Config{
		Logger:             logger,
		Availability:       availabilityHandler,
		StaffJWTSecret:     cfg.StaffJWTSecret,
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
