package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arborcms/arbor/pkg/observability"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("ARBOR_POSTGRES_URL", "postgres://localhost/arbor")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.HealthPort != "9090" {
		t.Errorf("Expected default health port 9090, got %s", cfg.Server.HealthPort)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("Expected default read timeout 15s, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Observability.LogLevel != observability.InfoLevel {
		t.Errorf("Expected default info level, got %v", cfg.Observability.LogLevel)
	}
	if !cfg.Observability.MetricsEnabled {
		t.Error("Expected metrics enabled by default")
	}
	if cfg.Authz.GroupRefreshInterval != time.Minute {
		t.Errorf("Expected default group refresh interval 1m, got %v", cfg.Authz.GroupRefreshInterval)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ARBOR_POSTGRES_URL", "postgres://localhost/arbor")
	t.Setenv("ARBOR_PORT", "3000")
	t.Setenv("ARBOR_READ_TIMEOUT", "45s")
	t.Setenv("ARBOR_POSTGRES_REPLICA_URLS", " postgres://r1/arbor , postgres://r2/arbor ")
	t.Setenv("ARBOR_LOG_LEVEL", "debug")
	t.Setenv("ARBOR_RENDER_PRINCIPAL", "render")
	t.Setenv("ARBOR_METRICS_ENABLED", "false")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != "3000" {
		t.Errorf("Expected port 3000, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 45*time.Second {
		t.Errorf("Expected read timeout 45s, got %v", cfg.Server.ReadTimeout)
	}
	if len(cfg.Database.ReplicaURLs) != 2 || cfg.Database.ReplicaURLs[1] != "postgres://r2/arbor" {
		t.Errorf("Expected trimmed replica URLs, got %v", cfg.Database.ReplicaURLs)
	}
	if cfg.Observability.LogLevel != observability.DebugLevel {
		t.Errorf("Expected debug level, got %v", cfg.Observability.LogLevel)
	}
	if cfg.Authz.RenderPrincipal != "render" {
		t.Errorf("Expected render principal, got %s", cfg.Authz.RenderPrincipal)
	}
	if cfg.Observability.MetricsEnabled {
		t.Error("Expected metrics disabled")
	}
}

func TestLoadConfig_YAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arbor.yaml")
	yamlContent := `
server:
  port: "4000"
  read_timeout: 20s
database:
  url: postgres://fromfile/arbor
  max_conns: 50
redis:
  url: redis://localhost:6379/0
  ttl: 10m
authz:
  render_principal: render-file
observability:
  log_level: warn
`
	if err := os.WriteFile(path, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	t.Setenv("ARBOR_CONFIG_FILE", path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != "4000" {
		t.Errorf("Expected port from file, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 20*time.Second {
		t.Errorf("Expected read timeout from file, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Database.URL != "postgres://fromfile/arbor" {
		t.Errorf("Expected database URL from file, got %s", cfg.Database.URL)
	}
	if cfg.Database.MaxConns != 50 {
		t.Errorf("Expected 50 max conns, got %d", cfg.Database.MaxConns)
	}
	if cfg.Redis.TTL != 10*time.Minute {
		t.Errorf("Expected redis TTL from file, got %v", cfg.Redis.TTL)
	}
	if cfg.Observability.LogLevel != observability.WarnLevel {
		t.Errorf("Expected warn level from file, got %v", cfg.Observability.LogLevel)
	}
}

func TestLoadConfig_EnvWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arbor.yaml")
	yamlContent := `
server:
  port: "4000"
database:
  url: postgres://fromfile/arbor
`
	if err := os.WriteFile(path, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	t.Setenv("ARBOR_CONFIG_FILE", path)
	t.Setenv("ARBOR_PORT", "5000")
	t.Setenv("ARBOR_POSTGRES_URL", "postgres://fromenv/arbor")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != "5000" {
		t.Errorf("Expected env port to win, got %s", cfg.Server.Port)
	}
	if cfg.Database.URL != "postgres://fromenv/arbor" {
		t.Errorf("Expected env database URL to win, got %s", cfg.Database.URL)
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arbor.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	t.Setenv("ARBOR_CONFIG_FILE", path)
	t.Setenv("ARBOR_POSTGRES_URL", "postgres://localhost/arbor")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("Expected error for invalid YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing port", func(c *Config) { c.Server.Port = "" }, true},
		{"port collision", func(c *Config) { c.Server.HealthPort = c.Server.Port }, true},
		{"missing database URL", func(c *Config) { c.Database.URL = "" }, true},
		{"max below min conns", func(c *Config) { c.Database.MaxConns = 1; c.Database.MinConns = 5 }, true},
		{"zero refresh interval", func(c *Config) { c.Authz.GroupRefreshInterval = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			cfg.Database.URL = "postgres://localhost/arbor"
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want observability.LogLevel
	}{
		{"debug", observability.DebugLevel},
		{"INFO", observability.InfoLevel},
		{"warning", observability.WarnLevel},
		{"error", observability.ErrorLevel},
		{"bogus", observability.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
