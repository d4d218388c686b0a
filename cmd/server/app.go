package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/docsmith/docex-api/internal/config"
	"github.com/docsmith/docex-api/internal/extraction"
	"github.com/docsmith/docex-api/internal/store"
	"github.com/docsmith/docex-api/internal/task"
	"github.com/docsmith/docex-api/internal/upload"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	taskStore store.TaskStore
	uploads   *upload.Store
	extractor extraction.Extractor
	runner    *task.Runner
}

// newApplication creates a new application instance with all dependencies
// initialized: the task store backend, the upload sandbox, the extraction
// client, and the started worker runner.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}

	taskStore, err := setupTaskStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize task store: %w", err)
	}
	app.taskStore = taskStore
	logger.Info("Task store initialized",
		"backend", cfg.Store.Backend,
		"retention", cfg.Store.Retention)

	app.uploads, err = upload.NewStore(cfg.Upload.Dir, logger.With("component", "upload_store"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize upload sandbox: %w", err)
	}

	app.extractor, err = extraction.NewGeminiExtractor(
		ctx,
		logger.With("component", "extractor"),
		cfg.Gemini,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize extractor: %w", err)
	}
	logger.Info("Extraction client initialized", "model", cfg.Gemini.Model)

	app.runner = task.NewRunner(app.taskStore, app.extractor, app.uploads, task.RunnerConfig{
		WorkerCount:    cfg.Worker.Count,
		QueueSize:      cfg.Worker.QueueSize,
		ExtractTimeout: cfg.Worker.ExtractTimeout,
	}, logger.With("component", "runner"))
	app.runner.Start()

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts the application server, handling lifecycle and cleanup.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// setupTaskStore selects and wires the configured store backend.
func setupTaskStore(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
) (store.TaskStore, error) {
	switch cfg.Store.Backend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
		redisStore := store.NewRedisStore(rdb, cfg.Store.Retention,
			logger.With("component", "redis_store"))
		if err := redisStore.Ping(ctx); err != nil {
			return nil, fmt.Errorf("redis unreachable at %s: %w", cfg.Store.RedisAddr, err)
		}
		return redisStore, nil

	case "memory":
		return store.NewMemoryStore(cfg.Store.Retention, cfg.Store.SweepInterval,
			logger.With("component", "memory_store")), nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.runner != nil {
		app.runner.Stop()
	}

	if app.taskStore != nil {
		if err := app.taskStore.Close(); err != nil {
			app.logger.Error("Error closing task store", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
