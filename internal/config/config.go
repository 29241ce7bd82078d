package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig holds the HTTP server settings.
type AppConfig struct {
	Port      string
	JWTSecret string
}

// DBConfig holds the Postgres connection settings.
type DBConfig struct {
	URL         string
	MaxOpenConn int
	ConnMaxIdle time.Duration
}

// KafkaConfig holds the change-topic settings. Every row-level change is
// published to ChangeTopic; live feed subscriptions consume it with a fresh
// consumer group per session, prefixed with GroupPrefix.
type KafkaConfig struct {
	Brokers     []string
	ChangeTopic string
	GroupPrefix string
}

// SMTPConfig holds the mail provider settings for the email channel.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// DispatchConfig holds the email dispatch worker settings.
type DispatchConfig struct {
	WorkerLimit int
	Interval    time.Duration
	BatchSize   int
}

// Config is the full service configuration.
type Config struct {
	App      AppConfig
	DB       DBConfig
	Kafka    KafkaConfig
	SMTP     SMTPConfig
	Dispatch DispatchConfig
	// DirectoryURL is the base URL of the identity service used to resolve
	// recipient contact info.
	DirectoryURL string
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Port:      envOr("NOTIF_PORT", "8083"),
			JWTSecret: os.Getenv("NOTIF_JWT_SECRET"),
		},
		DB: DBConfig{
			URL:         os.Getenv("NOTIF_DB_URL"),
			MaxOpenConn: envInt("NOTIF_DB_MAX_OPEN", 10),
			ConnMaxIdle: envDuration("NOTIF_DB_CONN_IDLE", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:     strings.Split(envOr("KAFKA_BROKERS", "localhost:9092"), ","),
			ChangeTopic: envOr("KAFKA_CHANGE_TOPIC", "notification-changes"),
			GroupPrefix: envOr("KAFKA_GROUP_PREFIX", "notif-feed"),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     envInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     envOr("SMTP_FROM", "no-reply@careerlink.example"),
		},
		Dispatch: DispatchConfig{
			WorkerLimit: envInt("DISPATCH_WORKERS", 5),
			Interval:    envDuration("DISPATCH_INTERVAL", 15*time.Second),
			BatchSize:   envInt("DISPATCH_BATCH", 100),
		},
		DirectoryURL: os.Getenv("DIRECTORY_URL"),
	}

	if cfg.DB.URL == "" {
		return nil, fmt.Errorf("NOTIF_DB_URL not set in environment")
	}
	if cfg.App.JWTSecret == "" {
		return nil, fmt.Errorf("NOTIF_JWT_SECRET not set in environment")
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
