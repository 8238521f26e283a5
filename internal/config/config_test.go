package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Default()
	if cfg.ListenAddr != def.ListenAddr {
		t.Errorf("listen addr = %q, want %q", cfg.ListenAddr, def.ListenAddr)
	}
	if cfg.TokenTTL != def.TokenTTL {
		t.Errorf("token ttl = %v, want %v", cfg.TokenTTL, def.TokenTTL)
	}
	if cfg.Idle.Threshold != def.Idle.Threshold {
		t.Errorf("idle threshold = %v, want %v", cfg.Idle.Threshold, def.Idle.Threshold)
	}
	if cfg.RateLimit.Burst != def.RateLimit.Burst {
		t.Errorf("rate limit burst = %d, want %d", cfg.RateLimit.Burst, def.RateLimit.Burst)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roost.yaml")
	content := `
server:
  listen_addr: ":9999"
  max_message_size: 1024
idle:
  threshold: 5m
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9999" {
		t.Errorf("listen addr = %q", cfg.ListenAddr)
	}
	if cfg.MaxMessageSize != 1024 {
		t.Errorf("max message size = %d", cfg.MaxMessageSize)
	}
	if cfg.Idle.Threshold != 5*time.Minute {
		t.Errorf("idle threshold = %v", cfg.Idle.Threshold)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q", cfg.LogLevel)
	}
	// Unset keys keep their defaults.
	if cfg.TokenTTL != 24*time.Hour {
		t.Errorf("token ttl = %v, want default", cfg.TokenTTL)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("ROOST_SERVER_LISTEN_ADDR", ":7070")
	t.Setenv("ROOST_AUTH_TOKEN_TTL", "1h")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":7070" {
		t.Errorf("listen addr = %q, want env override", cfg.ListenAddr)
	}
	if cfg.TokenTTL != time.Hour {
		t.Errorf("token ttl = %v, want env override", cfg.TokenTTL)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("explicitly named missing file should fail loudly")
	}
}

func TestSanitizeRepairsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roost.yaml")
	content := `
server:
  listen_addr: ""
  max_message_size: -1
  allowed_origins: ["  ", "http://ok.example"]
rate_limit:
  burst: 0
idle:
  sweep_interval: 0s
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Default()
	if cfg.ListenAddr != def.ListenAddr {
		t.Errorf("empty listen addr not repaired: %q", cfg.ListenAddr)
	}
	if cfg.MaxMessageSize != def.MaxMessageSize {
		t.Errorf("negative message size not repaired: %d", cfg.MaxMessageSize)
	}
	if cfg.RateLimit.Burst != def.RateLimit.Burst {
		t.Errorf("zero burst not repaired: %d", cfg.RateLimit.Burst)
	}
	if cfg.Idle.SweepInterval != def.Idle.SweepInterval {
		t.Errorf("zero sweep interval not repaired: %v", cfg.Idle.SweepInterval)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "http://ok.example" {
		t.Errorf("origins not cleaned: %v", cfg.AllowedOrigins)
	}
}
