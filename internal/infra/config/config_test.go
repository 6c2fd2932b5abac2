package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORAGE_MODE", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, cfg.StorageMode)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}, cfg.RetryBackoff)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORAGE_MODE", "mongo")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("OUTBOX_POLL_INTERVAL", "2s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 2*time.Second, cfg.OutboxPollInterval)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	t.Setenv("STORAGE_MODE", "mongo")
	t.Setenv("MONGO_URI", "")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("STORAGE_MODE", "memory")
	t.Setenv("IDEMP_TTL", "soon")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("IDEMP_TTL", "")
	t.Setenv("S3_USE_SSL", "maybe")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	assert.Error(t, err)
}
