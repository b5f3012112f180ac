package config

import (
	"testing"
	"time"
)

func TestGetEnvAsDuration(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", time.Minute},
		{"90s", 90 * time.Second},
		{"2m", 2 * time.Minute},
		{"45", 45 * time.Second},
		{"soon", time.Minute},
		{"-5s", time.Minute},
	}
	for _, tt := range tests {
		t.Setenv("TEST_DURATION", tt.value)
		if got := GetEnvAsDuration("TEST_DURATION", time.Minute); got != tt.want {
			t.Errorf("GetEnvAsDuration(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("STORE_PROVIDER", "MongoDB")
	t.Setenv("ALLOWED_ORIGINS", "https://chat.example.com, ,https://admin.example.com")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/chat")
	t.Setenv("DB_DRIVER", "pgx")
	t.Setenv("LOG_DEV", "true")

	cfg := LoadConfig()

	if cfg.StoreProvider != "mongodb" {
		t.Errorf("StoreProvider = %q", cfg.StoreProvider)
	}
	if len(cfg.AllowedOrigins) != 3 {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.DatabaseURL != "postgres://u:p@localhost:5432/chat?default_query_exec_mode=simple_protocol" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if !cfg.LogDev || cfg.PresenceInterval != time.Minute || cfg.TickTimeout != 50*time.Second {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestLoadConfig_LibPQKeepsURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/chat?sslmode=disable")
	t.Setenv("DB_DRIVER", "postgres")

	if got := LoadConfig().DatabaseURL; got != "postgres://localhost/chat?sslmode=disable" {
		t.Errorf("DatabaseURL = %q", got)
	}
}
