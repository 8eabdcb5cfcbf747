package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/authright-test/iga-test-sub000/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	GitHub        GitHubConfig
	Webhook       WebhookConfig
	Sync          SyncConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

// RedisConfig holds permission cache configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// GitHubConfig holds GitHub App credentials
type GitHubConfig struct {
	AppID          int64
	PrivateKeyPath string
	BaseURL        string
	RequestTimeout time.Duration
}

// WebhookConfig holds webhook receiver settings
type WebhookConfig struct {
	Secret string
}

// SyncConfig holds the periodic organization sync settings
type SyncConfig struct {
	Enabled  bool
	Schedule string
}

// ObservabilityConfig holds logging and metrics settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("AUTHRIGHT_HOST", "0.0.0.0"),
			Port:            getEnv("AUTHRIGHT_PORT", "8080"),
			ReadTimeout:     getEnvDuration("AUTHRIGHT_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("AUTHRIGHT_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("AUTHRIGHT_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("AUTHRIGHT_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("AUTHRIGHT_HEALTH_PORT", "9090"),
		},
		Database: DatabaseConfig{
			URL:          getEnv("AUTHRIGHT_POSTGRES_URL", ""),
			MaxOpenConns: getEnvInt("AUTHRIGHT_POSTGRES_MAX_CONNS", 25),
			MaxIdleConns: getEnvInt("AUTHRIGHT_POSTGRES_IDLE_CONNS", 5),
			ConnLifetime: getEnvDuration("AUTHRIGHT_POSTGRES_CONN_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("AUTHRIGHT_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("AUTHRIGHT_REDIS_PASSWORD", ""),
			DB:       getEnvInt("AUTHRIGHT_REDIS_DB", 0),
			PoolSize: getEnvInt("AUTHRIGHT_REDIS_POOL_SIZE", 10),
		},
		GitHub: GitHubConfig{
			AppID:          getEnvInt64("AUTHRIGHT_GITHUB_APP_ID", 0),
			PrivateKeyPath: getEnv("AUTHRIGHT_GITHUB_PRIVATE_KEY_PATH", ""),
			BaseURL:        getEnv("AUTHRIGHT_GITHUB_BASE_URL", "https://api.github.com"),
			RequestTimeout: getEnvDuration("AUTHRIGHT_GITHUB_TIMEOUT", 10*time.Second),
		},
		Webhook: WebhookConfig{
			Secret: getEnv("AUTHRIGHT_WEBHOOK_SECRET", ""),
		},
		Sync: SyncConfig{
			Enabled:  getEnvBool("AUTHRIGHT_SYNC_ENABLED", true),
			Schedule: getEnv("AUTHRIGHT_SYNC_SCHEDULE", "@every 1h"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       parseLogLevel(getEnv("AUTHRIGHT_LOG_LEVEL", "info")),
			MetricsEnabled: getEnvBool("AUTHRIGHT_METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	if c.GitHub.AppID == 0 {
		return fmt.Errorf("github app id is required")
	}
	if c.GitHub.PrivateKeyPath == "" {
		return fmt.Errorf("github app private key path is required")
	}

	if c.Webhook.Secret == "" {
		return fmt.Errorf("webhook secret is required")
	}

	if c.Sync.Enabled && c.Sync.Schedule == "" {
		return fmt.Errorf("sync schedule is required when sync is enabled")
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvInt64 returns a 64-bit integer environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
