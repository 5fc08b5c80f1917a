// Package main is the entrypoint for the FabSight API server.
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

	"github.com/jaeyoon-song/fabsight/internal/ai"
	"github.com/jaeyoon-song/fabsight/internal/api"
	"github.com/jaeyoon-song/fabsight/internal/api/handler"
	mw "github.com/jaeyoon-song/fabsight/internal/api/middleware"
	"github.com/jaeyoon-song/fabsight/internal/api/response"
	"github.com/jaeyoon-song/fabsight/internal/cache"
	"github.com/jaeyoon-song/fabsight/internal/config"
	"github.com/jaeyoon-song/fabsight/internal/reportstore"
	"github.com/jaeyoon-song/fabsight/internal/store"
	"github.com/jaeyoon-song/fabsight/internal/workflow"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env)

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
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create report store client
	reports := reportstore.NewChromaClient(cfg.Chroma.BaseURL, cfg.Chroma.Collection, cfg.Chroma.Timeout)
	if err := reports.Ping(ctx); err != nil {
		return fmt.Errorf("ping report store: %w", err)
	}
	slog.Info("report store connected", "collection", cfg.Chroma.Collection)

	// 6. Create AI provider
	aiProvider, err := ai.NewProvider(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI provider: %w", err)
	}
	slog.Info("AI provider initialized", "provider", aiProvider.Name())

	// 7. Create store and workflow engine
	pgStore := store.NewPostgresStore(pool)
	engine := workflow.NewEngine(pgStore, reports, aiProvider, redisCache,
		cfg.Workflow, cfg.AI.InferenceTimeout, logger)

	// 8. Build router with dependencies
	deps := api.Dependencies{
		RateLimit: mw.NewRateLimit(redisCache, 60),

		HealthHandler: healthHandler(pgStore, redisCache, reports),

		AlarmAnalyzeHandler: handler.NewAlarmAnalyzeHandler(engine),
		AlarmPhase1Handler:  handler.NewAlarmPhase1Handler(engine),
		AlarmSelectHandler:  handler.NewAlarmSelectHandler(engine),
		LatestAlarmHandler:  handler.NewLatestAlarmHandler(engine),

		QuestionHandler: handler.NewQuestionHandler(engine),

		ListReportsHandler:  handler.NewListReportsHandler(reports),
		GetReportHandler:    handler.NewGetReportHandler(reports),
		DeleteReportHandler: handler.NewDeleteReportHandler(reports),
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database, cache, and report store connectivity.
func healthHandler(s store.Store, c cache.Cache, reports reportstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database":     "ok",
			"cache":        "ok",
			"report_store": "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}
		if err := reports.Ping(r.Context()); err != nil {
			checks["report_store"] = "degraded"
		}

		for _, status := range checks {
			if status != "ok" {
				response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
					"One or more services degraded", checks)
				return
			}
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
