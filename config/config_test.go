package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Database.Path != "baseapp.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "baseapp.db")
	}
	if cfg.Leaderboard.Limit != 50 {
		t.Errorf("Leaderboard.Limit = %d, want %d", cfg.Leaderboard.Limit, 50)
	}
	if cfg.Engine.LegacyOneShot {
		t.Error("Engine.LegacyOneShot should be false by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}

	ttl, err := cfg.CacheTTL()
	if err != nil {
		t.Fatalf("CacheTTL() error: %v", err)
	}
	if ttl != 30*time.Second {
		t.Errorf("CacheTTL() = %v, want %v", ttl, 30*time.Second)
	}
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baseapp.toml")
	content := `
[server]
port = 9000

[leaderboard]
cache_ttl = "2m"

[engine]
legacy_one_shot = true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9000)
	}
	// Unset keys keep their defaults.
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want default", cfg.Server.Host)
	}
	if cfg.Database.Path != "baseapp.db" {
		t.Errorf("Database.Path = %q, want default", cfg.Database.Path)
	}
	if !cfg.Engine.LegacyOneShot {
		t.Error("Engine.LegacyOneShot should be true")
	}

	ttl, err := cfg.CacheTTL()
	if err != nil {
		t.Fatalf("CacheTTL() error: %v", err)
	}
	if ttl != 2*time.Minute {
		t.Errorf("CacheTTL() = %v, want %v", ttl, 2*time.Minute)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"zero leaderboard limit", func(c *Config) { c.Leaderboard.Limit = 0 }},
		{"bad cache ttl", func(c *Config) { c.Leaderboard.CacheTTL = "soon" }},
		{"negative cache ttl", func(c *Config) { c.Leaderboard.CacheTTL = "-5s" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestAddr(t *testing.T) {
	cfg := Default()
	if got := cfg.Addr(); got != "0.0.0.0:8080" {
		t.Errorf("Addr() = %q, want %q", got, "0.0.0.0:8080")
	}
}
