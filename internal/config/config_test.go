package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should validate: %v", err)
	}

	if cfg.HTTP.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.HTTP.Port)
	}
	if cfg.Room.MaxUsers != 50 {
		t.Errorf("Expected default room max users 50, got %d", cfg.Room.MaxUsers)
	}
	if cfg.Room.SweepInterval != time.Hour {
		t.Errorf("Expected hourly sweep interval, got %v", cfg.Room.SweepInterval)
	}
	if cfg.Auth.TokenTTL != 5*time.Minute {
		t.Errorf("Expected 5-minute token TTL, got %v", cfg.Auth.TokenTTL)
	}
}

func TestValidateRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.HTTP.Port = 0 }},
		{"port too large", func(c *Config) { c.HTTP.Port = 70000 }},
		{"empty host", func(c *Config) { c.HTTP.Host = "" }},
		{"zero buffer", func(c *Config) { c.WebSocket.BufferSize = 0 }},
		{"negative ping", func(c *Config) { c.WebSocket.PingInterval = -time.Second }},
		{"zero max users", func(c *Config) { c.Room.MaxUsers = 0 }},
		{"zero inactivity", func(c *Config) { c.Room.InactivityTimeout = 0 }},
		{"zero sweep", func(c *Config) { c.Room.SweepInterval = 0 }},
		{"zero token ttl", func(c *Config) { c.Auth.TokenTTL = 0 }},
		{"nil room", func(c *Config) { c.Room = nil }},
		{"nil auth", func(c *Config) { c.Auth = nil }},
	}

	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("Expected validation error for %s", tc.name)
		}
	}
}

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("STAGELINK_HTTP_PORT", "9090")
	os.Setenv("STAGELINK_ROOM_MAX_USERS", "25")
	os.Setenv("STAGELINK_ROOM_SWEEP_INTERVAL", "15m")
	os.Setenv("STAGELINK_AUTH_TOKEN_TTL", "2m")
	defer func() {
		os.Unsetenv("STAGELINK_HTTP_PORT")
		os.Unsetenv("STAGELINK_ROOM_MAX_USERS")
		os.Unsetenv("STAGELINK_ROOM_SWEEP_INTERVAL")
		os.Unsetenv("STAGELINK_AUTH_TOKEN_TTL")
	}()

	cfg := LoadFromEnv()

	if cfg.HTTP.Port != 9090 {
		t.Errorf("Expected port 9090 from env, got %d", cfg.HTTP.Port)
	}
	if cfg.Room.MaxUsers != 25 {
		t.Errorf("Expected max users 25 from env, got %d", cfg.Room.MaxUsers)
	}
	if cfg.Room.SweepInterval != 15*time.Minute {
		t.Errorf("Expected 15m sweep interval from env, got %v", cfg.Room.SweepInterval)
	}
	if cfg.Auth.TokenTTL != 2*time.Minute {
		t.Errorf("Expected 2m token TTL from env, got %v", cfg.Auth.TokenTTL)
	}
}

func TestLoadFromEnvIgnoresGarbage(t *testing.T) {
	os.Setenv("STAGELINK_HTTP_PORT", "not-a-number")
	os.Setenv("STAGELINK_ROOM_INACTIVITY_TIMEOUT", "soon")
	defer func() {
		os.Unsetenv("STAGELINK_HTTP_PORT")
		os.Unsetenv("STAGELINK_ROOM_INACTIVITY_TIMEOUT")
	}()

	cfg := LoadFromEnv()

	if cfg.HTTP.Port != 8080 {
		t.Errorf("Expected default port when env is invalid, got %d", cfg.HTTP.Port)
	}
	if cfg.Room.InactivityTimeout != time.Hour {
		t.Errorf("Expected default inactivity timeout when env is invalid, got %v", cfg.Room.InactivityTimeout)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	content := `{
		"http": {"port": 3000, "host": "127.0.0.1"},
		"room": {"max_users": 10, "inactivity_timeout": "30m", "sweep_interval": "5m"},
		"auth": {"token_ttl": "1m"}
	}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.HTTP.Port != 3000 {
		t.Errorf("Expected port 3000, got %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.Host != "127.0.0.1" {
		t.Errorf("Expected host 127.0.0.1, got %s", cfg.HTTP.Host)
	}
	if cfg.Room.MaxUsers != 10 {
		t.Errorf("Expected max users 10, got %d", cfg.Room.MaxUsers)
	}
	if cfg.Room.InactivityTimeout != 30*time.Minute {
		t.Errorf("Expected 30m inactivity timeout, got %v", cfg.Room.InactivityTimeout)
	}
	// Unset sections keep defaults
	if cfg.WebSocket.BufferSize != 100 {
		t.Errorf("Expected default buffer size, got %d", cfg.WebSocket.BufferSize)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if _, err := LoadFromFile("/nonexistent/config.json"); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestLoadConfigWithPrecedence(t *testing.T) {
	// Missing file falls back to env/defaults without error
	cfg := LoadConfigWithPrecedence("/nonexistent/config.json")
	if cfg == nil {
		t.Fatal("Expected config even when file is missing")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Fallback config should validate: %v", err)
	}
}
