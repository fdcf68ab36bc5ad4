package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	database "github.com/wanderhk/tourism-ai/app/db"
	appLogger "github.com/wanderhk/tourism-ai/app/logger"
	"github.com/wanderhk/tourism-ai/app/tracer"
	"github.com/wanderhk/tourism-ai/config"
	"github.com/wanderhk/tourism-ai/internal/container"
	api "github.com/wanderhk/tourism-ai/internal/router"
)

const serviceName = "tourism-ai"

func main() {
	// Use standard log until slog is configured, in case godotenv fails.
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

	if err := tracer.InitTracingAndMetrics(serviceName, cfg.Handlers.Prometheus.Port, logger); err != nil {
		logger.Error("Failed to initialize tracing and metrics", slog.Any("error", err))
		os.Exit(1)
	}

	// Migrations run before the pool so the schema is in place when the
	// first query lands.
	dbConfig, err := database.NewDatabaseConfig(&cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		os.Exit(1)
	}
	if err := database.RunMigrations(dbConfig.ConnectionURL, logger); err != nil {
		logger.Error("Failed to run database migrations", slog.Any("error", err))
		os.Exit(1)
	}

	c, err := container.NewContainer(ctx, &cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize dependencies", slog.Any("error", err))
		os.Exit(1)
	}
	defer c.Close()

	if !database.WaitForDB(ctx, c.Pool, logger) {
		logger.Error("Database not ready after waiting, exiting.")
		os.Exit(1)
	}

	mainRouter := api.SetupRouter(&api.Config{
		ChatHandler:           c.ChatHandler,
		ItineraryHandler:      c.ItineraryHandler,
		TranslationHandler:    c.TranslationHandler,
		RecommendationHandler: c.RecommendationHandler,
		SessionHandler:        c.SessionHandler,
		HealthCheck:           healthCheck(c),
	})

	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(appLogger.StructuredLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.StripSlashes)
	router.Use(middleware.Timeout(cfg.Server.Timeout))
	router.Use(middleware.Compress(5, "application/json"))
	router.Mount("/", mainRouter)

	if cfg.Handlers.Pprof.Port != "" {
		go servePprof(cfg.Handlers.Pprof.Port, logger)
	}

	serverAddress := fmt.Sprintf(":%s", cfg.Server.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddress,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.Server.Timeout,
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
	logger.Info("Application shut down complete.")
}

// healthCheck reports liveness plus knowledge-base reachability.
func healthCheck(c *container.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		dbState := "up"
		if err := c.Pool.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			dbState = "down"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"status":%q,"knowledge_base":%q,"cached_responses":%d}`,
			map[bool]string{true: "ok", false: "degraded"}[status == http.StatusOK],
			dbState, c.ResponseCache.Len())
	}
}

func servePprof(port string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	addr := ":" + port
	logger.Info("Serving pprof", slog.String("address", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("pprof server stopped", slog.Any("error", err))
	}
}

// setupLogger returns tinted logs in development and JSON elsewhere.
func setupLogger() *slog.Logger {
	env := os.Getenv("APP_ENV")
	if env == "development" || env == "" {
		tintOpts := &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		}
		return slog.New(tint.NewHandler(os.Stdout, tintOpts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
