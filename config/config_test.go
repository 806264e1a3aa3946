package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()

	for k, v := range map[string]string{
		"HTTP_PORT":            "8080",
		"LOG_LEVEL":            "debug",
		"PG_POOL_MAX":          "4",
		"PG_URL":               "postgres://u:p@localhost:5432/catalog",
		"S3_ENDPOINT":          "http://localhost:9000",
		"S3_ACCESS_KEY":        "minio",
		"S3_SECRET_KEY":        "minio123",
		"S3_BUCKET":            "catalog",
		"KAFKA_BROKERS":        "localhost:9092,localhost:9093",
		"KAFKA_GROUP_ID":       "catalog-ingest",
		"KAFKA_EVENTS_TOPIC":   "catalog.events",
		"KAFKA_COMMANDS_TOPIC": "catalog.commands",
	} {
		t.Setenv(k, v)
	}
}

func TestNewDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, []string{"localhost:9092", "localhost:9093"}, cfg.Kafka.Brokers)
	assert.Equal(t, 24*time.Hour, cfg.S3.SignedURLTTL)
	assert.True(t, cfg.S3.PublicRead)
	assert.True(t, cfg.Ingestion.RequirePrimary)
	assert.Equal(t, 2*time.Minute, cfg.Ingestion.ItemTimeout)
	assert.Equal(t, int64(100<<20), cfg.Ingestion.MaxFileSize)
	assert.Equal(t, int64(1<<30), cfg.Ingestion.MaxBatchBytes)
	assert.Equal(t, "@every 1m", cfg.Scheduler.Spec)
	assert.Equal(t, 500, cfg.Scheduler.BatchSize)
	assert.True(t, cfg.PG.Migrate)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 5, cfg.KafkaController.Retries)
	assert.Equal(t, 200*time.Millisecond, cfg.KafkaController.RetryBackoff)

	loc, err := cfg.Scheduler.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestNewMissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("KAFKA_EVENTS_TOPIC", "")
	require.NoError(t, os.Unsetenv("KAFKA_EVENTS_TOPIC"))

	_, err := New()
	assert.Error(t, err)
}

func TestSchedulerLocation(t *testing.T) {
	loc, err := Scheduler{Timezone: "Europe/Berlin"}.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())

	_, err = Scheduler{Timezone: "Mars/Olympus"}.Location()
	assert.Error(t, err)
}
