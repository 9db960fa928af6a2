package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dsviz/dsviz/internal/api"
	"github.com/dsviz/dsviz/internal/config"
	"github.com/dsviz/dsviz/internal/dataset"
	"github.com/dsviz/dsviz/internal/observability"
	"github.com/dsviz/dsviz/internal/query"
	duckdbengine "github.com/dsviz/dsviz/internal/query/duckdb"
)

func main() {
	cfg, err := config.LoadFromEnv("dsviz-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	limits := query.Limits{Default: cfg.Query.DefaultLimit, Max: cfg.Query.MaxLimit}
	if err := limits.Validate(); err != nil {
		logger.Error("invalid query limits", slog.Any("error", err))
		os.Exit(1)
	}

	resolver := dataset.NewResolver(cfg.Datasets.DetectCacheTTL)
	engine := duckdbengine.NewEngine(limits)

	handler := api.NewHandler(cfg, api.Dependencies{
		Logger:   logger,
		Resolver: resolver,
		Engine:   engine,
	})
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("datasets_dir", cfg.Datasets.Root),
			slog.Bool("offline", config.OfflineMode),
			slog.Int("default_limit", limits.Default),
			slog.Int("max_limit", limits.Max),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
