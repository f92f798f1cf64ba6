package main

import (
	"context"
	"fmt"
	"invoice_router/internal/api"
	"invoice_router/internal/assignment"
	"invoice_router/internal/compiler"
	"invoice_router/internal/config"
	"invoice_router/internal/processor"
	"invoice_router/internal/repository"
	"invoice_router/internal/repository/memory"
	"invoice_router/internal/repository/postgres"
	"invoice_router/internal/repository/redis"
	"invoice_router/internal/service"
	"invoice_router/pkg/crypto"
	"invoice_router/pkg/metrics"
	"invoice_router/pkg/tracing"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const (
	appName    = "invoice_router"
	appVersion = "1.0.0"
)

func main() {
	cfg, err := config.Load(os.Getenv("ROUTER_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg)
	logger.Info("Starting application",
		slog.String("name", appName),
		slog.String("dispatch_backend", cfg.Dispatch.Backend))

	if cfg.Tracing.Enabled {
		if err := tracing.Init(appName, appVersion, cfg.Tracing.OutputFile); err != nil {
			logger.Error("Tracing setup failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	directory, err := memory.LoadDirectory(cfg.Directory.Path)
	if err != nil {
		logger.Error("Failed to load organisation directory",
			slog.String("path", cfg.Directory.Path),
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	cursors, closer, err := setupCursorStore(cfg, logger)
	if err != nil {
		logger.Error("Failed to set up cursor store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	metricsCollector := metrics.NewMetricsCollector(logger)
	signer := crypto.NewSigner(cfg.Signing.Secret, logger)
	engine := assignment.NewEngine(directory, cursors, cfg.Assignment, metricsCollector, logger)
	notificationService := setupNotificationService(cfg, metricsCollector, logger)
	simulator := processor.NewSimulator(engine, notificationService, metricsCollector, logger)
	ruleCompiler := compiler.NewCompiler(metricsCollector, logger)

	apiHandler := api.NewAPIHandler(
		ruleCompiler,
		memory.NewGraphRepository(),
		simulator,
		engine,
		metricsCollector,
		signer,
		logger,
	)

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = metricsCollector.StartMetricsServer(cfg.Metrics.Addr)
	}
	httpServer := startHTTPServer(cfg, apiHandler, logger)

	waitForShutdown(cfg, logger, httpServer, metricsServer, notificationService, closer)
	logger.Info("Application shutdown complete")
}

func setupLogger(cfg *config.Config) *slog.Logger {
	level, _ := cfg.LogLevel()
	opts := &slog.HandlerOptions{
		Level: level,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}

// setupCursorStore picks the round-robin cursor backend. The returned
// closer releases its connection, if it holds one.
func setupCursorStore(cfg *config.Config, logger *slog.Logger) (repository.CursorStore, io.Closer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch cfg.Dispatch.Backend {
	case config.BackendRedis:
		store := redis.Dial(cfg.Dispatch.RedisAddr, os.Getenv("REDIS_PASSWORD"), cfg.Dispatch.RedisDB)
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.Dispatch.RedisAddr, err)
		}
		logger.Info("Using redis cursor store", slog.String("addr", cfg.Dispatch.RedisAddr))
		return store, store, nil
	case config.BackendPostgres:
		store, err := postgres.Open(cfg.Dispatch.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		logger.Info("Using postgres cursor store")
		return store, store, nil
	default:
		logger.Info("Using in-memory cursor store")
		return memory.NewCursorStore(), nil, nil
	}
}

func setupNotificationService(cfg *config.Config, recorder service.NotificationRecorder, logger *slog.Logger) *service.NotificationService {
	return service.NewNotificationService(
		&service.LogEmailService{Logger: logger},
		&service.LogSlackService{Logger: logger},
		cfg.Notification.Workers,
		cfg.Notification.QueueSize,
		recorder,
		logger,
	)
}

func startHTTPServer(cfg *config.Config, apiHandler *api.APIHandler, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()

	apiHandler.RegisterRoutes(mux)

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"name": "%s", "status": "ok"}`, appName)
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("Starting HTTP server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	return server
}

func waitForShutdown(
	cfg *config.Config,
	logger *slog.Logger,
	httpServer *http.Server,
	metricsServer *http.Server,
	notificationService *service.NotificationService,
	cursorCloser io.Closer,
) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown failed", slog.String("error", err.Error()))
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			logger.Error("Metrics server shutdown failed", slog.String("error", err.Error()))
		}
	}

	if err := notificationService.Shutdown(ctx); err != nil {
		logger.Error("Notification service shutdown failed", slog.String("error", err.Error()))
	}

	if cursorCloser != nil {
		if err := cursorCloser.Close(); err != nil {
			logger.Error("Cursor store close failed", slog.String("error", err.Error()))
		}
	}

	if err := tracing.Shutdown(ctx); err != nil {
		logger.Error("Tracing shutdown failed", slog.String("error", err.Error()))
	}
}
