package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/firewatch-etl/internal/adapter/bigdatacloud"
	httpadapter "github.com/couchcryptid/firewatch-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/firewatch-etl/internal/adapter/kafka"
	"github.com/couchcryptid/firewatch-etl/internal/adapter/postgres"
	"github.com/couchcryptid/firewatch-etl/internal/config"
	"github.com/couchcryptid/firewatch-etl/internal/domain"
	"github.com/couchcryptid/firewatch-etl/internal/observability"
	"github.com/couchcryptid/firewatch-etl/internal/processor"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := postgres.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Geocoding is feature-flagged; a nil geocoder leaves every location
	// field Unknown.
	var geocoder domain.Geocoder
	if cfg.GeocodeEnabled {
		client := bigdatacloud.NewClient(cfg.GeocodeBaseURL, cfg.GeocodeTimeout, creds, logger, metrics)
		geocoder = bigdatacloud.NewCachedGeocoder(client, cfg.GeocodeCacheSize, metrics)
		logger.Info("reverse geocoding enabled", "cache_size", cfg.GeocodeCacheSize, "timeout", cfg.GeocodeTimeout)
	} else {
		logger.Info("reverse geocoding disabled")
	}

	reader := kafkaadapter.NewReader(cfg, logger)

	p := processor.New(reader, geocoder, store, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, "processor", p, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("processor error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}

	logger.Info("shutdown complete")
}

func credentialSource(cfg *config.Config) secrets.Source {
	if cfg.SecretsFile != "" {
		return secrets.File{Path: cfg.SecretsFile}
	}
	return secrets.Static{
		secrets.MapKey: cfg.FIRMSMapKey,
		secrets.APIKey: cfg.GeocodeAPIKey,
	}
}
