package config

import (
	"testing"
	"time"

	"github.com/authright-test/iga-test-sub000/pkg/observability"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("AUTHRIGHT_POSTGRES_URL", "postgres://localhost/authright")
	t.Setenv("AUTHRIGHT_GITHUB_APP_ID", "12345")
	t.Setenv("AUTHRIGHT_GITHUB_PRIVATE_KEY_PATH", "/etc/authright/app.pem")
	t.Setenv("AUTHRIGHT_WEBHOOK_SECRET", "s3cret")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %v, want 8080", cfg.Server.Port)
	}
	if cfg.Server.HealthPort != "9090" {
		t.Errorf("Server.HealthPort = %v, want 9090", cfg.Server.HealthPort)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Redis.Addr = %v, want localhost:6379", cfg.Redis.Addr)
	}
	if cfg.GitHub.AppID != 12345 {
		t.Errorf("GitHub.AppID = %v, want 12345", cfg.GitHub.AppID)
	}
	if cfg.GitHub.RequestTimeout != 10*time.Second {
		t.Errorf("GitHub.RequestTimeout = %v, want 10s", cfg.GitHub.RequestTimeout)
	}
	if !cfg.Sync.Enabled {
		t.Error("Sync.Enabled = false, want true")
	}
	if cfg.Sync.Schedule != "@every 1h" {
		t.Errorf("Sync.Schedule = %v, want @every 1h", cfg.Sync.Schedule)
	}
	if cfg.Observability.LogLevel != observability.InfoLevel {
		t.Errorf("Observability.LogLevel = %v, want info", cfg.Observability.LogLevel)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("AUTHRIGHT_PORT", "3000")
	t.Setenv("AUTHRIGHT_LOG_LEVEL", "debug")
	t.Setenv("AUTHRIGHT_GITHUB_TIMEOUT", "30s")
	t.Setenv("AUTHRIGHT_SYNC_ENABLED", "false")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "3000" {
		t.Errorf("Server.Port = %v, want 3000", cfg.Server.Port)
	}
	if cfg.Observability.LogLevel != observability.DebugLevel {
		t.Errorf("Observability.LogLevel = %v, want debug", cfg.Observability.LogLevel)
	}
	if cfg.GitHub.RequestTimeout != 30*time.Second {
		t.Errorf("GitHub.RequestTimeout = %v, want 30s", cfg.GitHub.RequestTimeout)
	}
	if cfg.Sync.Enabled {
		t.Error("Sync.Enabled = true, want false")
	}
}

func TestLoadConfig_MissingRequiredValues(t *testing.T) {
	tests := []struct {
		name  string
		unset string
	}{
		{"missing postgres url", "AUTHRIGHT_POSTGRES_URL"},
		{"missing app id", "AUTHRIGHT_GITHUB_APP_ID"},
		{"missing private key path", "AUTHRIGHT_GITHUB_PRIVATE_KEY_PATH"},
		{"missing webhook secret", "AUTHRIGHT_WEBHOOK_SECRET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.unset, "")

			if _, err := LoadConfig(); err == nil {
				t.Error("LoadConfig() succeeded, want validation error")
			}
		})
	}
}

func TestValidate_PortCollision(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("AUTHRIGHT_PORT", "9090")

	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() succeeded with colliding ports, want error")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  observability.LogLevel
	}{
		{"debug", observability.DebugLevel},
		{"info", observability.InfoLevel},
		{"warn", observability.WarnLevel},
		{"warning", observability.WarnLevel},
		{"error", observability.ErrorLevel},
		{"verbose", observability.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLogLevel(tt.input); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
