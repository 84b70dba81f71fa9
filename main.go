package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	appLogger "github.com/FACorreiaa/go-trip-planner-ai/app/logger"
	appMiddleware "github.com/FACorreiaa/go-trip-planner-ai/app/middleware"
	"github.com/FACorreiaa/go-trip-planner-ai/app/observability/metrics"
	"github.com/FACorreiaa/go-trip-planner-ai/app/tracer"
	"github.com/FACorreiaa/go-trip-planner-ai/config"
	"github.com/FACorreiaa/go-trip-planner-ai/internal/api/auth"
	"github.com/FACorreiaa/go-trip-planner-ai/internal/container"
	api "github.com/FACorreiaa/go-trip-planner-ai/internal/router"
)

// @title        Trip Planner AI API
// @version      1.0
// @description  Conversational trip planning over SSE and WhatsApp.
// @BasePath     /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Use standard log until slog is configured, in case godotenv fails
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found or error loading:", err)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("FATAL: Error initializing config: %v", err)
	}

	logger := setupLogger()
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTelemetry, err := tracer.InitTracingAndMetrics("go-trip-planner-ai", cfg.Handlers.Prometheus.Port, logger)
	if err != nil {
		logger.Error("Failed to initialize telemetry", slog.Any("error", err))
		os.Exit(1)
	}
	metrics.InitAppMetrics()

	c, err := container.NewContainer(ctx, &cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize application", slog.Any("error", err))
		os.Exit(1)
	}

	perMinute := cfg.WhatsApp.RateLimitPerMinute
	mainRouter := api.SetupRouter(&api.Config{
		ChatHandler:            c.ChatHandler,
		BucketListHandler:      c.BucketListHandler,
		WhatsAppHandler:        c.WhatsAppHandler,
		AuthenticateMiddleware: auth.Authenticate(logger, cfg.JWT),
		OptionalAuthMiddleware: auth.OptionalAuthenticate(logger, cfg.JWT),
		WebhookRateLimiter:     appMiddleware.NewRateLimiter(perMinute, 0, appMiddleware.ByFormValue("From"), logger),
		OTPRateLimiter:         appMiddleware.NewRateLimiter(5, 2, appMiddleware.ByClientIP, logger),
	})

	requestTimeout := cfg.Server.Timeout
	if requestTimeout == 0 {
		requestTimeout = 2 * time.Minute
	}

	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(appLogger.StructuredLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.StripSlashes)
	router.Use(middleware.Timeout(requestTimeout))
	router.Use(middleware.Compress(5, "application/json"))
	router.Mount("/", mainRouter)

	serverAddress := fmt.Sprintf(":%s", cfg.Server.HTTPPort)
	srv := &http.Server{
		Addr:        serverAddress,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// Streams are bounded by the relay safety timeout, so writes get the full request budget.
		WriteTimeout: requestTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	go func() {
		logger.Info("Starting HTTP server", slog.String("address", serverAddress))
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server ListenAndServe error", slog.Any("error", err))
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", slog.Any("error", err))
	} else {
		logger.Info("HTTP server gracefully stopped")
	}
	c.Close()
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Warn("Telemetry shutdown failed", slog.Any("error", err))
	}
	logger.Info("Application shut down complete.")
}

// setupLogger configures and returns the application logger.
func setupLogger() *slog.Logger {
	env := os.Getenv("APP_ENV")
	if env == "development" || env == "" {
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
