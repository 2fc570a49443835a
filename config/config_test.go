package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
database:
  host: "localhost"
  port: 5432
  username: "u"
  password: "p"
  name: "db"
kafka:
  host: "localhost"
  port: 9092
  status_changed_topic_name: "orders.changed"
redis:
  host: "localhost"
  port: 6379
logitrack:
  http_addr: ":9090"
  track_cache_ttl_seconds: 600
  jwt_secret: "s3cret"
  log_level: "debug"
`), 0o600))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, "postgres://u:p@localhost:5432/db?sslmode=disable", cfg.Database.ConnString())
	require.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers())
	require.Equal(t, "localhost:6379", cfg.Redis.Addr())
	require.Equal(t, "orders.changed", cfg.Kafka.StatusChangedTopicName)
	require.Equal(t, ":9090", cfg.LogiTrack.HTTPAddr)
	require.Equal(t, 10*time.Minute, cfg.LogiTrack.TrackCacheTTL())
	require.Equal(t, "s3cret", cfg.LogiTrack.JWTSecret)
	require.Equal(t, slog.LevelDebug, cfg.LogiTrack.SlogLevel())

	// дефолты
	require.Equal(t, "tracking.scans", cfg.Kafka.ScansTopicName)
	require.Equal(t, ":50051", cfg.LogiTrack.GRPCAddr)
	require.Equal(t, ":8082", cfg.LogiTrack.WorkerHTTPAddr)
	require.Equal(t, "logitrack-worker", cfg.LogiTrack.KafkaConsumerGroup)
	require.Equal(t, 100, cfg.LogiTrack.RateLimitPerHour)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	p := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(p, []byte("database: ["), 0o600))
	_, err = LoadConfig(p)
	require.Error(t, err)
}

func TestDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	require.Equal(t, 3600, cfg.LogiTrack.TrackCacheTTLSeconds)
	require.Equal(t, "order.status_changed", cfg.Kafka.StatusChangedTopicName)
	require.Equal(t, slog.LevelInfo, cfg.LogiTrack.SlogLevel())

	cfg.Database.SSLMode = "require"
	require.Contains(t, cfg.Database.ConnString(), "sslmode=require")
}
