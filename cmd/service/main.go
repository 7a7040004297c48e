// cmd/service/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/m-mizutani/masq"

	"portfolio-sync/internal/api"
	"portfolio-sync/internal/config"
	"portfolio-sync/internal/database"
	"portfolio-sync/internal/github"
	"portfolio-sync/internal/syncer"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Application startup error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Initialize structured logger
	logLevel := new(slog.LevelVar)
	setLogLevel(cfg.LogLevel, logLevel)
	logger := newLogger(os.Stdout, cfg.LogFormat, logLevel)
	slog.SetDefault(logger)
	logger.Info("Configuration loaded successfully", "config", cfg)

	// 3. Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 4. Initialize database connection and run migrations
	dbpool, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbpool.Close()
	logger.Info("Database connection established")

	if err := database.Migrate(cfg.DBURL); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	logger.Info("Database migrations applied successfully")

	// 5. Initialize application components
	ghOpts := []github.Option{github.WithTimeout(cfg.GithubRequestTimeout)}
	if cfg.GithubAPIURL != "" {
		u, err := url.Parse(cfg.GithubAPIURL)
		if err != nil {
			return fmt.Errorf("invalid GITHUB_API_URL: %w", err)
		}
		ghOpts = append(ghOpts, github.WithBaseURL(u))
	}
	ghClient := github.NewClient(cfg.GithubToken, logger, ghOpts...)

	configs := database.NewConfigStore(dbpool, cfg.SyncDefaultIntervalMinutes)
	if err := configs.EnsureExists(ctx); err != nil {
		return fmt.Errorf("failed to create sync config: %w", err)
	}

	importer := syncer.NewImporter(ghClient, database.NewProjectStore(dbpool), logger)
	scheduler := syncer.NewScheduler(configs, importer, database.NewLocker(dbpool, logger), logger, syncer.SchedulerOptions{
		LockKey:      cfg.SyncLockKey,
		TickInterval: cfg.SyncTickInterval,
		RunTimeout:   cfg.SyncRunTimeout,
		Defaults: syncer.Defaults{
			Username:      cfg.SyncDefaultUsername,
			IncludeTopics: cfg.SyncDefaultIncludeTopics,
		},
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(configs, scheduler, cfg.AdminSecret, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 6. Start the scheduler and the admin API
	scheduler.Start(ctx)
	defer scheduler.Stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Admin API listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// 7. Wait for shutdown signal
	logger.Info("Application started. Waiting for shutdown signal...")
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received. Exiting.")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("admin API failed: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Admin API shutdown did not complete", "error", err)
	}

	return nil
}

// newLogger builds a JSON or text slog logger that masks fields tagged `masq:"secret"`.
func newLogger(w io.Writer, format string, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: masq.New(masq.WithTag("secret")),
	}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

func setLogLevel(level string, v *slog.LevelVar) {
	switch level {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}
