package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/firewatch-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/firewatch-etl/internal/adapter/kafka"
	"github.com/couchcryptid/firewatch-etl/internal/adapter/postgres"
	"github.com/couchcryptid/firewatch-etl/internal/config"
	"github.com/couchcryptid/firewatch-etl/internal/notifier"
	"github.com/couchcryptid/firewatch-etl/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := postgres.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	feed := postgres.NewChangeFeed(store, logger)
	publisher := kafkaadapter.NewAlertWriter(cfg, logger)

	n := notifier.New(feed, publisher, logger, metrics, cfg.ChangeBatchSize, cfg.ChangePollInterval)

	srv := httpadapter.NewServer(cfg.HTTPAddr, "notifier", n, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := n.Run(ctx); err != nil {
			logger.Error("notifier error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := publisher.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
