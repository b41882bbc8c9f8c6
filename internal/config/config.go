package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment
// variables (optionally seeded from a .env file). All three binaries
// share one config shape; each only reads its own slice of it.
type Config struct {
	// FIRMS feed.
	FIRMSBaseURL    string
	FIRMSSource     string
	FIRMSArea       string
	FIRMSWindowDays int
	FIRMSTimeout    time.Duration
	FetchInterval   time.Duration
	ChunkSize       int

	// Credentials. When SecretsFile is set it wins; otherwise the keys
	// come straight from the environment.
	SecretsFile   string
	FIRMSMapKey   string
	GeocodeAPIKey string

	// Kafka.
	KafkaBrokers    []string
	KafkaQueueTopic string
	KafkaAlertTopic string
	KafkaGroupID    string

	// Store.
	DatabaseURL string

	// Reverse geocoding.
	GeocodeEnabled   bool
	GeocodeBaseURL   string
	GeocodeTimeout   time.Duration
	GeocodeCacheSize int

	// Processor.
	BatchSize int

	// Notifier.
	ChangePollInterval time.Duration
	ChangeBatchSize    int

	// Service surface.
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying
// defaults where unset.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		FIRMSBaseURL: envOrDefault("FIRMS_BASE_URL", "https://firms.modaps.eosdis.nasa.gov/api/area/csv"),
		FIRMSSource:  envOrDefault("FIRMS_SOURCE", "VIIRS_SNPP_NRT"),
		FIRMSArea:    envOrDefault("FIRMS_AREA", "world"),

		SecretsFile:   os.Getenv("SECRETS_FILE"),
		FIRMSMapKey:   os.Getenv("FIRMS_MAP_KEY"),
		GeocodeAPIKey: os.Getenv("GEOCODE_API_KEY"),

		KafkaBrokers:    parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaQueueTopic: envOrDefault("KAFKA_QUEUE_TOPIC", "fire-detections"),
		KafkaAlertTopic: envOrDefault("KAFKA_ALERT_TOPIC", "fire-alerts"),
		KafkaGroupID:    envOrDefault("KAFKA_GROUP_ID", "firewatch-processor"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		GeocodeBaseURL: envOrDefault("GEOCODE_BASE_URL", "https://api.bigdatacloud.net/data/reverse-geocode-client"),

		HTTPAddr:  envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "json"),
	}

	var err error
	if cfg.FIRMSWindowDays, err = envInt("FIRMS_WINDOW_DAYS", 1); err != nil {
		return nil, err
	}
	if cfg.FIRMSTimeout, err = envDuration("FIRMS_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.FetchInterval, err = envDuration("FETCH_INTERVAL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ChunkSize, err = envInt("CHUNK_SIZE", 10); err != nil {
		return nil, err
	}
	if cfg.GeocodeTimeout, err = envDuration("GEOCODE_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.GeocodeCacheSize, err = envInt("GEOCODE_CACHE_SIZE", 1000); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = envInt("BATCH_SIZE", 10); err != nil {
		return nil, err
	}
	if cfg.ChangePollInterval, err = envDuration("CHANGE_POLL_INTERVAL", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.ChangeBatchSize, err = envInt("CHANGE_BATCH_SIZE", 100); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = envDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	cfg.GeocodeEnabled = true
	if v := os.Getenv("GEOCODE_ENABLED"); v != "" {
		cfg.GeocodeEnabled = v == "true"
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaQueueTopic == "" {
		return nil, errors.New("KAFKA_QUEUE_TOPIC is required")
	}
	if cfg.KafkaAlertTopic == "" {
		return nil, errors.New("KAFKA_ALERT_TOPIC is required")
	}
	if cfg.ChunkSize < 1 || cfg.ChunkSize > 10 {
		return nil, errors.New("CHUNK_SIZE must be between 1 and 10")
	}
	if cfg.FIRMSWindowDays < 1 {
		return nil, errors.New("FIRMS_WINDOW_DAYS must be at least 1")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}

func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
