package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	LogiTrack LogiTrackConfig `yaml:"logitrack"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) ConnString() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.DBName, sslMode)
}

type KafkaConfig struct {
	Host                   string `yaml:"host"`
	Port                   int    `yaml:"port"`
	StatusChangedTopicName string `yaml:"status_changed_topic_name"`
	ScansTopicName         string `yaml:"scans_topic_name"`
}

func (k KafkaConfig) Brokers() []string {
	return []string{fmt.Sprintf("%s:%d", k.Host, k.Port)}
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type LogiTrackConfig struct {
	GRPCAddr           string `yaml:"grpc_addr"`
	HTTPAddr           string `yaml:"http_addr"`
	WorkerHTTPAddr     string `yaml:"worker_http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`

	TrackCacheTTLSeconds int `yaml:"track_cache_ttl_seconds"`
	RateLimitPerHour     int `yaml:"rate_limit_per_hour"`

	JWTSecret string `yaml:"jwt_secret"`
	LogLevel  string `yaml:"log_level"` // debug | info | warn | error
}

func (c LogiTrackConfig) TrackCacheTTL() time.Duration {
	return time.Duration(c.TrackCacheTTLSeconds) * time.Second
}

func (c LogiTrackConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ApplyDefaults fills every zero setting that has a sensible default.
func (c *Config) ApplyDefaults() {
	setDefault(&c.LogiTrack.GRPCAddr, ":50051")
	setDefault(&c.LogiTrack.HTTPAddr, ":8080")
	setDefault(&c.LogiTrack.WorkerHTTPAddr, ":8082")
	setDefault(&c.LogiTrack.KafkaConsumerGroup, "logitrack-worker")
	setDefault(&c.Kafka.StatusChangedTopicName, "order.status_changed")
	setDefault(&c.Kafka.ScansTopicName, "tracking.scans")
	if c.LogiTrack.TrackCacheTTLSeconds <= 0 {
		c.LogiTrack.TrackCacheTTLSeconds = 3600
	}
	if c.LogiTrack.RateLimitPerHour <= 0 {
		c.LogiTrack.RateLimitPerHour = 100
	}
}

func setDefault(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	config.ApplyDefaults()
	return &config, nil
}
