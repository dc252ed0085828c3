// cmd/ingester/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"commit-ingester/internal/api"
	"commit-ingester/internal/config"
	"commit-ingester/internal/github"
	"commit-ingester/internal/ingest"
	"commit-ingester/internal/metrics"
	"commit-ingester/internal/quota"
	"commit-ingester/internal/store"
)

// Process exit codes.
const (
	exitDone    = 0
	exitFatal   = 1
	exitAborted = 2
)

const shutdownTimeout = 5 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	// 1. Initialize structured logger
	logLevel := new(slog.LevelVar)
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// 2. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		return exitFatal
	}
	setLogLevel(cfg.LogLevel, logLevel)
	logger.Info("Configuration loaded successfully", "repository", cfg.Repository, "project_id", cfg.ProjectID)

	// 3. Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	res, err := ingestRepository(ctx, cfg, logger)
	return exitCode(res, err)
}

// ingestRepository wires the components for one run and executes it.
func ingestRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ingest.Result, error) {
	// Initialize database connection and run migrations
	dbpool, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		return ingest.Result{State: ingest.StateFailed}, fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbpool.Close()

	if err := dbpool.Ping(ctx); err != nil {
		logger.Error("Database is unreachable", "error", err)
		return ingest.Result{State: ingest.StateFailed}, fmt.Errorf("failed to reach database: %w", err)
	}
	logger.Info("Database connection established")

	if err := store.Migrate(cfg.DBURL); err != nil {
		logger.Error("Failed to run database migrations", "error", err)
		return ingest.Result{State: ingest.StateFailed}, fmt.Errorf("failed to run database migrations: %w", err)
	}
	logger.Info("Database migrations applied successfully")

	db := store.NewPostgres(dbpool)
	if err := db.EnsureUniqueSHA(ctx); err != nil {
		logger.Error("Commit store is not safe for ingestion", "error", err)
		return ingest.Result{State: ingest.StateFailed}, err
	}

	// Initialize application components
	ghClient, err := github.NewClient(github.Options{
		Token:             cfg.GithubToken,
		BaseURL:           cfg.GithubAPIURL,
		Owner:             cfg.Owner,
		Repo:              cfg.Repo,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}, logger)
	if err != nil {
		logger.Error("Failed to create GitHub client", "error", err)
		return ingest.Result{State: ingest.StateFailed}, err
	}

	collector := metrics.NewCollector(nil)
	guard := quota.NewGuard(ghClient, cfg.QuotaSafetyMargin, logger).WithObserver(collector)

	if cfg.HTTPAddr != "" {
		stop := serveAPI(cfg.HTTPAddr, api.NewRouter(db, collector.Handler(), logger), logger)
		defer stop()
	}

	pipeline := ingest.NewPipeline(ingest.Config{
		ProjectID:         cfg.ProjectID,
		Since:             cfg.SinceTime,
		PageSize:          cfg.PageSize,
		DetailConcurrency: cfg.DetailConcurrency,
	}, guard, ghClient, ghClient, db, logger).WithObserver(collector)

	res, err := pipeline.Run(ctx)
	if github.IsUnauthorized(res.Err) {
		logger.Error("GitHub rejected the token, check GITHUB_TOKEN", "error", res.Err)
	}
	if err != nil {
		logger.Error("Ingestion run stopped", "result", res)
		return res, err
	}

	if total, cerr := db.CountCommits(context.WithoutCancel(ctx), cfg.ProjectID); cerr == nil {
		logger.Info("Ingestion run complete", "result", res, "stored_total", total)
	} else {
		logger.Warn("Ingestion run complete, failed to count stored commits", "result", res, "error", cerr)
	}
	return res, nil
}

// serveAPI starts the read-only HTTP surface and returns a function that shuts it down.
func serveAPI(addr string, h http.Handler, logger *slog.Logger) func() {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("HTTP server shutdown", "error", err)
		}
	}
}

func exitCode(res ingest.Result, err error) int {
	switch {
	case err != nil:
		return exitFatal
	case res.State == ingest.StateAborted:
		return exitAborted
	case res.State == ingest.StateDone:
		return exitDone
	default:
		return exitFatal
	}
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
