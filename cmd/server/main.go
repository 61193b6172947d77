package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/seidrlabs/demandcast/internal/api"
	"github.com/seidrlabs/demandcast/internal/api/handlers"
	"github.com/seidrlabs/demandcast/internal/cache"
	"github.com/seidrlabs/demandcast/internal/config"
	"github.com/seidrlabs/demandcast/internal/database"
	"github.com/seidrlabs/demandcast/internal/logging"
	"github.com/seidrlabs/demandcast/internal/monitor"
	"github.com/seidrlabs/demandcast/internal/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.Environment)

	// Initialize tracing
	provider, err := telemetry.Init(cfg.Environment, 1.0)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize telemetry")
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Warn("telemetry shutdown failed")
		}
	}()

	// Optional backing stores
	var db *database.PostgresDB
	if cfg.Database.Enabled {
		db, err = database.NewPostgresConnection(context.Background(), cfg.Database, logger)
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to database")
		}
		defer db.Close()
	}

	var redisClient *database.RedisClient
	if cfg.Redis.Enabled {
		redisClient, err = database.NewRedisConnection(context.Background(), cfg.Redis, logger)
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to Redis")
		}
		defer redisClient.Close()
	}

	var repo *database.ForecastRepository
	if db != nil {
		repo = database.NewForecastRepository(db.Pool)
	}
	var resultCache *cache.RedisForecastCache
	if redisClient != nil {
		resultCache = cache.NewRedisForecastCache(redisClient.Client, cfg.CacheTTLDuration(), logger)
	}

	perf := monitor.NewPerformanceMonitor(100, logger)

	// Setup Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	healthHandler := handlers.NewHealthHandler(db, redisClient)
	forecastHandler := handlers.NewForecastHandler(cfg, repo, resultCache, perf, logger)
	api.SetupRoutes(router, healthHandler, forecastHandler)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.WithField("port", cfg.Server.Port).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("server forced to shutdown")
	}

	logger.Info("server exited")
}
