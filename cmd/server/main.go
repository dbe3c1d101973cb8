// Package main is the entrypoint for the jobsync agent.
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

	"github.com/joho/godotenv"
	"github.com/kiranshivaraju/jobsync/internal/api"
	"github.com/kiranshivaraju/jobsync/internal/api/handler"
	mw "github.com/kiranshivaraju/jobsync/internal/api/middleware"
	"github.com/kiranshivaraju/jobsync/internal/attachment"
	"github.com/kiranshivaraju/jobsync/internal/backend"
	"github.com/kiranshivaraju/jobsync/internal/board"
	"github.com/kiranshivaraju/jobsync/internal/cache"
	"github.com/kiranshivaraju/jobsync/internal/config"
	"github.com/kiranshivaraju/jobsync/internal/session"
	"github.com/kiranshivaraju/jobsync/internal/store"
	"github.com/kiranshivaraju/jobsync/internal/tracker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not read .env", "error", err)
	}

	if err := run(); err != nil {
		slog.Error("agent failed", "error", err)
		os.Exit(1)
	}
}

// infra holds the optional stateful dependencies the agent may run with.
type infra struct {
	snapshots session.SnapshotStore
	redis     *cache.RedisCache
	health    map[string]handler.Pinger
	closers   []func()
}

func (i *infra) close() {
	for j := len(i.closers) - 1; j >= 0; j-- {
		i.closers[j]()
	}
}

// openInfra connects the snapshot store selected by SNAPSHOT_BACKEND and, when REDIS_URL is
// set, the Redis cache used for rate limiting.
func openInfra(ctx context.Context, cfg *config.Config) (*infra, error) {
	in := &infra{health: map[string]handler.Pinger{"cache": nil, "database": nil}}

	if cfg.Redis.URL != "" {
		redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("create redis cache: %w", err)
		}
		in.closers = append(in.closers, func() { redisCache.Close() })

		if err := redisCache.Ping(ctx); err != nil {
			in.close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		in.redis = redisCache
		in.health["cache"] = redisCache
		slog.Info("redis connected")
	}

	switch cfg.Snapshot.Backend {
	case config.SnapshotRedis:
		in.snapshots = cache.NewSnapshotStore(in.redis, cfg.Snapshot.TTL)

	case config.SnapshotPostgres:
		pool, err := store.Connect(ctx, cfg.Database)
		if err != nil {
			in.close()
			return nil, fmt.Errorf("connect database: %w", err)
		}
		in.closers = append(in.closers, pool.Close)
		slog.Info("database connected")

		if err := store.RunMigrations(pool); err != nil {
			in.close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		slog.Info("database migrations applied")

		pgStore := store.NewPostgresStore(pool)
		purged, err := pgStore.PurgeSnapshots(ctx, time.Now().Add(-cfg.Snapshot.TTL))
		if err != nil {
			slog.Warn("purging expired snapshots failed", "error", err)
		} else if purged > 0 {
			slog.Info("expired snapshots purged", "count", purged)
		}

		in.snapshots = pgStore
		in.health["database"] = pgStore
	}

	slog.Info("snapshot store selected", "backend", cfg.Snapshot.Backend)
	return in, nil
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "backend_url", cfg.Backend.BaseURL)

	confirmer, err := board.NewHashConfirmer(cfg.Tracker.DeleteConfirmationHash)
	if err != nil {
		return fmt.Errorf("load delete confirmation hash: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect optional infrastructure
	in, err := openInfra(ctx, cfg)
	if err != nil {
		return err
	}
	defer in.close()

	// 3. Object storage for artifacts
	var uploader attachment.Uploader
	if cu, err := attachment.NewCloudinaryUploader(cfg.Cloudinary); err == nil {
		uploader = cu
		slog.Info("artifact uploads enabled", "cloud", cfg.Cloudinary.CloudName)
	} else {
		slog.Info("artifact uploads disabled", "reason", err)
	}

	// 4. Engine
	engine := tracker.New(tracker.Options{
		Backend: backend.Options{
			BaseURL: cfg.Backend.BaseURL,
			Timeout: cfg.Backend.Timeout,
		},
		RefreshURL:        cfg.Backend.RefreshURL,
		CacheMaxAge:       cfg.Tracker.CacheMaxAge,
		OptimisticDelay:   cfg.Tracker.OptimisticDelay,
		UploadConcurrency: cfg.Tracker.UploadConcurrency,
		Confirmer:         confirmer,
		Uploader:          uploader,
		Snapshots:         in.snapshots,
		Logger:            slog.Default(),
	})

	// 5. Build router with dependencies
	var limiterCache cache.Cache
	if in.redis != nil {
		limiterCache = in.redis
	}

	deps := api.Dependencies{
		Sessions:  engine,
		RateLimit: mw.NewRateLimit(limiterCache, cfg.Server.RateLimitPerMin),

		HealthHandler: handler.NewHealthHandler(in.health),

		LoginHandler:          handler.NewLoginHandler(engine),
		CurrentSessionHandler: handler.NewCurrentSessionHandler(engine),
		LogoutHandler:         handler.NewLogoutHandler(engine),

		ListJobsHandler:  handler.NewListJobsHandler(),
		GetJobHandler:    handler.NewGetJobHandler(),
		CreateJobHandler: handler.NewCreateJobHandler(),
		EditJobHandler:   handler.NewEditJobHandler(),
		DropHandler:      handler.NewDropHandler(),
		DeleteJobHandler: handler.NewDeleteJobHandler(),
		BoardHandler:     handler.NewBoardHandler(),

		PendingHandler:        handler.NewPendingHandler(),
		ArtifactFoundHandler:  handler.NewArtifactFoundHandler(),
		UploadHandler:         handler.NewUploadHandler(uploader, handler.DefaultMaxUploadBytes),
		DismissPendingHandler: handler.NewDismissPendingHandler(),
	}

	router := api.NewRouter(deps)

	// 6. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("agent listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	// Let in-flight creates and attachment uploads settle before the snapshot store closes.
	drained := make(chan struct{})
	go func() {
		engine.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-shutdownCtx.Done():
		slog.Warn("background work still running at shutdown")
	}

	slog.Info("agent stopped gracefully")
	return nil
}
