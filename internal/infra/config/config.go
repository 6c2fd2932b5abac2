package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageMemory = "memory"
	StorageMongo  = "mongo"
)

// Config aggregates application configuration loaded from environment variables.
type Config struct {
	Env                string
	HTTPAddr           string
	LogLevel           slog.Level
	StorageMode        string
	MongoURI           string
	MongoDB            string
	KafkaBrokers       []string
	KafkaTopicPrefix   string
	KafkaConsumerGroup string
	CatalogTopic       string
	IdempotencyTTL     time.Duration
	OutboxPollInterval time.Duration
	RetryBackoff       []time.Duration
	JWTSecret          string
	JWTIssuer          string
	S3Endpoint         string
	S3PublicEndpoint   string
	S3AccessKey        string
	S3SecretKey        string
	S3Bucket           string
	S3UseSSL           bool
	FixturesPath       string
	ShutdownTimeout    time.Duration
}

// Load parses configuration from the environment. A .env file in the working
// directory is read first when present; real environment variables win.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Env:                getEnv("APP_ENV", "dev"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		StorageMode:        strings.ToLower(getEnv("STORAGE_MODE", StorageMemory)),
		MongoURI:           os.Getenv("MONGO_URI"),
		MongoDB:            getEnv("MONGO_DB", "storefront"),
		KafkaTopicPrefix:   getEnv("KAFKA_TOPIC_PREFIX", ""),
		KafkaConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "storefront-chat"),
		CatalogTopic:       getEnv("CATALOG_TOPIC", "catalog.events.v1"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		JWTIssuer:          getEnv("JWT_ISSUER", ""),
		S3Endpoint:         getEnv("S3_ENDPOINT", ""),
		S3PublicEndpoint:   getEnv("S3_PUBLIC_ENDPOINT", ""),
		S3AccessKey:        getEnv("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:        getEnv("S3_SECRET_KEY", "minioadmin"),
		S3Bucket:           getEnv("S3_BUCKET", "storefront-chat"),
		FixturesPath:       getEnv("FIXTURES_PATH", "data/fixtures.json"),
	}
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	level, err := parseLevelEnv("LOG_LEVEL", slog.LevelInfo)
	if err != nil {
		return Config{}, err
	}
	cfg.LogLevel = level

	if cfg.IdempotencyTTL, err = parseDurationEnv("IDEMP_TTL", 168*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.OutboxPollInterval, err = parseDurationEnv("OUTBOX_POLL_INTERVAL", 500*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownTimeout, err = parseDurationEnv("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}

	for _, raw := range strings.Split(getEnv("RETRY_BACKOFF", "1s,5s,30s"), ",") {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RETRY_BACKOFF component %q: %w", raw, err)
		}
		cfg.RetryBackoff = append(cfg.RetryBackoff, d)
	}

	if cfg.S3UseSSL, err = parseBoolEnv("S3_USE_SSL", false); err != nil {
		return Config{}, err
	}
	if cfg.S3PublicEndpoint == "" {
		cfg.S3PublicEndpoint = cfg.S3Endpoint
	}

	switch cfg.StorageMode {
	case StorageMemory:
	case StorageMongo:
		if cfg.MongoURI == "" {
			return Config{}, fmt.Errorf("MONGO_URI is required when STORAGE_MODE=mongo")
		}
	default:
		return Config{}, fmt.Errorf("invalid STORAGE_MODE %q", cfg.StorageMode)
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s boolean: %q", key, raw)
	}
}

func parseLevelEnv(key string, def slog.Level) (slog.Level, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return def, fmt.Errorf("invalid %s level: %w", key, err)
	}
	return level, nil
}
