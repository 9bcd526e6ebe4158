// cmd/service/main.go
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

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"repo-snapshot-sync/internal/api"
	"repo-snapshot-sync/internal/config"
	apperrors "repo-snapshot-sync/internal/errors"
	"repo-snapshot-sync/internal/github"
	"repo-snapshot-sync/internal/schedule"
	"repo-snapshot-sync/internal/store"
	"repo-snapshot-sync/internal/syncer"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Application startup error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Initialize structured logger
	logLevel := new(slog.LevelVar)
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// 2. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setLogLevel(cfg.LogLevel, logLevel)
	logger.Info("Configuration loaded successfully", "sink_strategy", cfg.SinkStrategy)

	// 3. Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 4. Initialize the persistence sink for the configured strategy
	var (
		sink   store.Sink
		reader store.Reader
	)
	switch cfg.SinkStrategy {
	case config.SinkBatch, config.SinkUpsert:
		dbpool, err := pgxpool.New(ctx, cfg.DBURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer dbpool.Close()
		logger.Info("Database connection established")

		if err := runMigrations(cfg.DBURL); err != nil {
			return fmt.Errorf("failed to run database migrations: %w", err)
		}
		logger.Info("Database migrations applied successfully")

		pgStore := store.NewPGStore(dbpool, logger)
		reader = pgStore
		if cfg.SinkStrategy == config.SinkBatch {
			sink = store.NewPGBatchSink(pgStore, store.ReconcilePolicy(cfg.BatchReconcile))
		} else {
			sink = store.NewPGUpsertSink(pgStore)
		}
	case config.SinkRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		err := client.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer client.Close()
		logger.Info("Redis connection established")

		redisSink := store.NewRedisSink(client, logger)
		sink, reader = redisSink, redisSink
	default:
		return &apperrors.ErrUnknownSinkStrategy{Strategy: cfg.SinkStrategy}
	}

	// 5. Initialize application components
	ghClient := github.NewClient(cfg.GithubToken, logger)
	appSyncer, err := syncer.NewSyncer(ghClient, sink, logger, cfg.GithubUsername)
	if err != nil {
		return fmt.Errorf("failed to create syncer: %w", err)
	}

	// 6. Schedule sync runs
	scheduler := schedule.NewScheduler(logger)
	runSync := func() {
		if _, err := appSyncer.Run(ctx); err != nil {
			logger.Error("Scheduled sync run failed", "error", err)
		}
	}
	if _, err := scheduler.AddFunc(cfg.SyncSchedule, runSync); err != nil {
		return fmt.Errorf("invalid sync schedule %q: %w", cfg.SyncSchedule, err)
	}
	scheduler.Start()
	defer scheduler.Shutdown()
	logger.Info("Sync schedule registered", "schedule", cfg.SyncSchedule, "username", cfg.GithubUsername)

	// 7. Serve the HTTP API and run an initial sync
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.NewRouter(appSyncer, reader, logger),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		runSync()
		return nil
	})
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received. Exiting.")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func runMigrations(dbURL string) error {
	m, err := migrate.New("file://migrations", dbURL)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
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
