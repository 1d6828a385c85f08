package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alert-router/internal/models"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.API.Port)
	assert.Equal(t, "/api/v0", cfg.API.BasePath)
	assert.Equal(t, 500, cfg.Notification.QueueSize)
	assert.Equal(t, 10, cfg.Notification.MaxWorkers)
	assert.Equal(t, 30*time.Second, cfg.Notification.InitialFailureDelay)
	assert.Equal(t, 60*time.Second, cfg.Notification.RepeatFailureDelay)
	assert.Equal(t, 4*time.Hour, cfg.Notification.AckDuration)
	assert.Equal(t, "sms_notifications", cfg.QueueFor(models.MediumSMS))
	assert.Equal(t, models.Media, cfg.Gateway.Media)
	assert.Equal(t, "https://www.messagenet.com.au", cfg.Messagenet.BaseURL)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoad_MissingRedis(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")

	_, err := LoadFile("")
	assert.ErrorContains(t, err, "REDIS_ADDR")
}

func TestLoad_EnvFileAndOverrides(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("REDIS_ADDR=redis:6379\nQUEUE_SMS=pager\nKAFKA_BROKERS=k1:9092, k2:9092\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("REDIS_ADDR")
		os.Unsetenv("QUEUE_SMS")
		os.Unsetenv("KAFKA_BROKERS")
	})
	t.Setenv("REPEAT_FAILURE_DELAY", "5m")
	t.Setenv("GATEWAY_MEDIA", "sms")

	cfg, err := LoadFile(envFile)
	require.NoError(t, err)

	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "pager", cfg.QueueFor(models.MediumSMS))
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 5*time.Minute, cfg.Notification.RepeatFailureDelay)
	assert.Equal(t, []models.Medium{models.MediumSMS}, cfg.Gateway.Media)
}

func TestLoad_RejectsUnknownMedium(t *testing.T) {
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("GATEWAY_MEDIA", "pigeon")

	_, err := LoadFile("")
	assert.ErrorContains(t, err, "pigeon")
}

func TestMissing(t *testing.T) {
	var cfg Config
	cfg.Redis.Addr = "x"
	assert.Equal(t, []string{"DB_DSN"}, cfg.Missing("REDIS_ADDR", "DB_DSN"))
}
