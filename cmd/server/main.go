// Package main is the entrypoint for the OpenScribe API server.
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

	"github.com/kiranshivaraju/openscribe/internal/ai"
	"github.com/kiranshivaraju/openscribe/internal/api"
	"github.com/kiranshivaraju/openscribe/internal/api/handler"
	mw "github.com/kiranshivaraju/openscribe/internal/api/middleware"
	"github.com/kiranshivaraju/openscribe/internal/cache"
	"github.com/kiranshivaraju/openscribe/internal/config"
	"github.com/kiranshivaraju/openscribe/internal/credentials"
	"github.com/kiranshivaraju/openscribe/internal/insights"
	"github.com/kiranshivaraju/openscribe/internal/jobs"
	"github.com/kiranshivaraju/openscribe/internal/prompt"
	"github.com/kiranshivaraju/openscribe/internal/store"
	"github.com/kiranshivaraju/openscribe/pkg/models"
)

const shutdownTimeout = 30 * time.Second

// staleJobMessage is recorded on jobs that were pending or processing when the last
// process exited.
const staleJobMessage = "interrupted by restart"

func main() {
	slog.SetDefault(newLogger(slog.LevelInfo))

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// parseLevel maps a LOG_LEVEL value to a slog level. Unknown values mean info.
func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func run() error {
	// 1. Load config, failing fast on invalid values
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(newLogger(parseLevel(cfg.Server.LogLevel)))
	slog.Info("config loaded", "env", cfg.Server.Env, "log_level", cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsDir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Cache: Redis behind an in-process tier, or in-process only
	c, err := newCache(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer c.Close()

	// 5. Credentials and providers
	masterKey, err := cfg.Security.MasterKey()
	if err != nil {
		return fmt.Errorf("decode master key: %w", err)
	}
	cipher, err := credentials.NewCipher(masterKey)
	if err != nil {
		return fmt.Errorf("create credential cipher: %w", err)
	}
	pgStore := store.NewPostgresStore(pool)
	creds := credentials.NewResolver(pgStore, cipher)
	providers := ai.NewFactory(cfg.AI, creds)

	// 6. Prompt templates
	templates := prompt.Embedded()
	if cfg.Prompts.Dir != "" {
		templates = prompt.FromDir(cfg.Prompts.Dir)
		slog.Info("using prompt templates from disk", "dir", cfg.Prompts.Dir)
	}
	prompts := prompt.NewResolver(templates, prompt.NewTemplateCache())

	// 7. Job runtime
	analytics := insights.NewService(pgStore, c, insights.DefaultTTL)
	stale, err := pgStore.FailStaleJobs(ctx, staleJobMessage)
	if err != nil {
		return fmt.Errorf("fail stale jobs: %w", err)
	}
	if stale > 0 {
		slog.Warn("failed jobs left unfinished by a previous run", "count", stale)
	}
	workers := jobs.NewPool(cfg.Jobs.Workers, cfg.Jobs.QueueSize)
	svc := jobs.NewService(pgStore, providers, prompts, c, analytics, workers, cfg.Jobs)
	slog.Info("job pool started", "workers", cfg.Jobs.Workers, "queue_size", cfg.Jobs.QueueSize)

	// 8. Build router with dependencies
	deps := api.Dependencies{
		Auth:      mw.NewAuth(pgStore),
		RateLimit: mw.NewRateLimit(c, cfg.Server.RateLimitPerMinute),

		HealthHandler: handler.NewHealthHandler(pgStore, c),

		AnalyzeStyleHandler:     handler.NewStartJobHandler(svc, models.JobKindAnalyzeStyle),
		ExtractTopicsHandler:    handler.NewStartJobHandler(svc, models.JobKindExtractTopics),
		GenerateStrategyHandler: handler.NewStartJobHandler(svc, models.JobKindGenerateStrategy),
		GenerateContentHandler:  handler.NewStartJobHandler(svc, models.JobKindGenerateContent),
		GetJobHandler:           handler.NewGetJobHandler(svc),
		JobStatusHandler:        handler.NewJobStatusHandler(svc),

		EngagementHandler:       handler.NewEngagementHandler(analytics),
		TopicPerformanceHandler: handler.NewTopicPerformanceHandler(analytics),
		CurrentStrategyHandler:  handler.NewCurrentStrategyHandler(pgStore),
		ListStrategiesHandler:   handler.NewListStrategiesHandler(pgStore),

		CreateCredentialHandler: handler.NewCreateCredentialHandler(creds, func(cred models.Credential) (models.AIProvider, error) {
			return ai.NewProvider(cfg.AI, cred)
		}),

		CreateKeyHandler: handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:  handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server
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
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections")
	}

	// Stop taking requests first, then let queued jobs finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	srvErr := srv.Shutdown(shutdownCtx)

	poolCtx, poolCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer poolCancel()
	if err := workers.Shutdown(poolCtx); err != nil {
		return fmt.Errorf("job pool shutdown: %w", err)
	}
	if srvErr != nil {
		return fmt.Errorf("server shutdown: %w", srvErr)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// newCache returns a Redis-backed tiered cache when a URL is configured and an
// in-process cache otherwise.
func newCache(ctx context.Context, cfg config.RedisConfig) (cache.Cache, error) {
	if cfg.URL == "" {
		slog.Info("REDIS_URL not set, using in-process cache")
		return cache.NewMemoryCache(), nil
	}
	redisCache, err := cache.NewRedisCache(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("create redis cache: %w", err)
	}
	if err := redisCache.Ping(ctx); err != nil {
		redisCache.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")
	return cache.NewTiered(redisCache), nil
}
