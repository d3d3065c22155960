// Package config loads service configuration from a TOML file.
//
// PURPOSE:
// Bundles every tunable the server needs: HTTP bind address, CORS origins,
// SQLite database path, leaderboard sizing and cache staleness, and the
// engine's claim-window mode. Defaults are always valid; a config file only
// overrides what it sets.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level service configuration.
type Config struct {
	Server      ServerConfig      `toml:"server"`
	Database    DatabaseConfig    `toml:"database"`
	Leaderboard LeaderboardConfig `toml:"leaderboard"`
	Engine      EngineConfig      `toml:"engine"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// DatabaseConfig controls the SQLite store.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// LeaderboardConfig controls ranking behavior.
type LeaderboardConfig struct {
	Limit int `toml:"limit"`
	// CacheTTL bounds leaderboard staleness, as a Go duration string ("30s").
	CacheTTL string `toml:"cache_ttl"`
}

// EngineConfig controls claim eligibility behavior.
type EngineConfig struct {
	// LegacyOneShot makes every activity claimable exactly once per account,
	// ignoring daily/weekly windows. Matches the pre-windowing behavior.
	LegacyOneShot bool `toml:"legacy_one_shot"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			AllowedOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			Path: "baseapp.db",
		},
		Leaderboard: LeaderboardConfig{
			Limit:    50,
			CacheTTL: "30s",
		},
		Engine: EngineConfig{
			LegacyOneShot: false,
		},
	}
}

// Load reads a TOML config file and overlays it on the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); err != nil {
		return cfg, fmt.Errorf("config file %s: %w", path, err)
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks invariants a config file could break.
func (c Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Leaderboard.Limit < 1 {
		return fmt.Errorf("leaderboard.limit must be positive, got %d", c.Leaderboard.Limit)
	}
	if _, err := c.CacheTTL(); err != nil {
		return err
	}
	return nil
}

// CacheTTL parses the leaderboard cache TTL.
func (c Config) CacheTTL() (time.Duration, error) {
	d, err := time.ParseDuration(c.Leaderboard.CacheTTL)
	if err != nil {
		return 0, fmt.Errorf("leaderboard.cache_ttl: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("leaderboard.cache_ttl must not be negative")
	}
	return d, nil
}

// Addr returns the host:port bind address for the HTTP listener.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
