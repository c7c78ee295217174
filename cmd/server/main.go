package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/OpenNSW/duty/internal/api"
	"github.com/OpenNSW/duty/internal/app"
	"github.com/OpenNSW/duty/internal/config"
	"github.com/OpenNSW/duty/internal/logging"
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logging.Init(cfg.Log.Level, cfg.Log.Format)
	cfg.LogSummary()

	slog.Info("CORS configuration",
		"allowed_origins", cfg.CORS.AllowedOrigins,
		"allowed_methods", cfg.CORS.AllowedMethods,
		"allowed_headers", cfg.CORS.AllowedHeaders,
		"allow_credentials", cfg.CORS.AllowCredentials,
		"max_age", cfg.CORS.MaxAge,
	)

	slog.Info("server configuration",
		"port", cfg.Server.Port,
		"rate_limit_per_second", cfg.Server.RateLimitPerSecond,
		"rate_limit_burst", cfg.Server.RateLimitBurst,
	)

	ctx := context.Background()

	// Initialize database, tariff store, resolver and calculator
	engine, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize duty engine: %v", err)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}()

	if cfg.Duty.ImportOnStart {
		report, err := engine.ImportSchedule(ctx, "")
		if err != nil {
			slog.Error("tariff schedule import on start failed", "key", cfg.Storage.ScheduleKey, "imported", report.Imported, "error", err)
		}
	}

	gin.SetMode(gin.ReleaseMode)
	handler := api.NewHandler(engine.Resolver, engine.Calculator, engine.Store, engine.HealthCheck).
		WithSchedules(engine)
	router := api.NewRouter(handler, cfg)

	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for interrupt signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Start server in a goroutine
	go func() {
		slog.Info("starting server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			quit <- syscall.SIGTERM
		}
	}()

	// Wait for interrupt signal
	<-quit
	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	} else {
		slog.Info("server gracefully stopped")
	}

	slog.Info("server stopped")
}
