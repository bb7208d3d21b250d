package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TASKBOARD_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg := Load()
	if cfg.Addr != ":8080" {
		t.Fatalf("Addr = %q, want :8080", cfg.Addr)
	}
	if cfg.AccessTTL().Seconds() != 900 {
		t.Fatalf("AccessTTL = %v, want 15m", cfg.AccessTTL())
	}
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := "addr: \":9000\"\njwt_secret: from-yaml\nredis_url: redis://localhost:6379/0\n"
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TASKBOARD_CONFIG", path)
	t.Setenv("TASKBOARD_JWT_SECRET", "from-env")

	cfg := Load()
	if cfg.Addr != ":9000" {
		t.Fatalf("Addr = %q, want the yaml value", cfg.Addr)
	}
	if cfg.RedisURL != "redis://localhost:6379/0" {
		t.Fatalf("RedisURL = %q, want the yaml value", cfg.RedisURL)
	}
	// environment wins over the file
	if cfg.JWTSecret != "from-env" {
		t.Fatalf("JWTSecret = %q, want from-env", cfg.JWTSecret)
	}
}
