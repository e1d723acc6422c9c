package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/therealutkarshpriyadarshi/sourcing/internal/cache"
	"github.com/therealutkarshpriyadarshi/sourcing/internal/config"
	"github.com/therealutkarshpriyadarshi/sourcing/internal/database"
	"github.com/therealutkarshpriyadarshi/sourcing/internal/logging"
	"github.com/therealutkarshpriyadarshi/sourcing/internal/middleware"
	"github.com/therealutkarshpriyadarshi/sourcing/internal/queue"
	"github.com/therealutkarshpriyadarshi/sourcing/internal/storage"
	"github.com/therealutkarshpriyadarshi/sourcing/internal/tracing"
	"github.com/therealutkarshpriyadarshi/sourcing/internal/webhook"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		TimeFormat: time.RFC3339,
		Service:    "sourcing-api",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatalf("API server failed: %v", err)
	}
	logger.Close()
}

func run(cfg *config.Config, logger *logging.Logger) error {
	middleware.SetJWTSecret(cfg.Auth.JWTSecret)

	closer, err := tracing.Init(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer closer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	repo := database.NewRepository(db, logger)

	stor, err := storage.New(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	c, err := cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.CacheTTL)
	if err != nil {
		return fmt.Errorf("failed to connect to cache: %w", err)
	}
	defer c.Close()

	q, err := queue.New(cfg.Queue)
	if err != nil {
		return fmt.Errorf("failed to connect to queue: %w", err)
	}
	defer q.Close()

	hooks := webhook.NewService(repo, logger)

	bg, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	go limiter.Cleanup(bg, 10*time.Minute)
	go hooks.RetryWorker(bg, time.Minute)

	api := &API{
		store:     repo,
		blobs:     stor,
		cache:     c,
		publisher: q,
		notifier:  hooks,
		logger:    logger,
		checks: map[string]func(context.Context) error{
			"database": db.Health,
			"cache":    c.Ping,
		},
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      setupRouter(api, limiter),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Starting API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-quit:
	}

	logger.Info("Shutting down server...")
	stopBackground()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	hooks.Wait()

	logger.Info("Server stopped")
	return nil
}
