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
	"github.com/couchcryptid/firewatch-etl/internal/config"
	"github.com/couchcryptid/firewatch-etl/internal/fetcher"
	"github.com/couchcryptid/firewatch-etl/internal/firms"
	"github.com/couchcryptid/firewatch-etl/internal/observability"
	"github.com/couchcryptid/firewatch-etl/internal/secrets"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	creds := credentialSource(cfg)

	feed := firms.NewClient(cfg.FIRMSBaseURL, cfg.FIRMSTimeout, creds, logger, metrics)
	queue := kafkaadapter.NewChunkWriter(cfg, logger)

	f := fetcher.New(feed, queue, logger, metrics, cfg.FIRMSWindowDays, cfg.FIRMSSource, cfg.FIRMSArea, cfg.ChunkSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, "fetcher", f, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := f.Run(ctx, cfg.FetchInterval); err != nil {
			logger.Error("fetcher error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := queue.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}

// credentialSource picks the secrets backend: a JSON secrets file when
// configured, otherwise the keys injected through the environment.
func credentialSource(cfg *config.Config) secrets.Source {
	if cfg.SecretsFile != "" {
		return secrets.File{Path: cfg.SecretsFile}
	}
	return secrets.Static{
		secrets.MapKey: cfg.FIRMSMapKey,
		secrets.APIKey: cfg.GeocodeAPIKey,
	}
}
