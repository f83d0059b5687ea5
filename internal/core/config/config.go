package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the top-level configuration for the analytics service.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Tracking TrackingConfig `koanf:"tracking"`
	Realtime RealtimeConfig `koanf:"realtime"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port          int    `koanf:"port"`
	Host          string `koanf:"host"`
	MaxBodySizeKB int    `koanf:"max_body_size_kb"`
	Mode          string `koanf:"mode"` // "debug" or "release"
}

func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds the database connection settings. An empty DSN runs
// the service on in-memory stores, which is useful for local development.
type DatabaseConfig struct {
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

// TrackingConfig tunes the visit ingestion endpoint.
type TrackingConfig struct {
	DedupTTL           string `koanf:"dedup_ttl"`
	RateLimitPerMinute int    `koanf:"rate_limit_per_minute"`
	SweepInterval      string `koanf:"sweep_interval"`
}

// RealtimeConfig tunes the live-traffic window.
type RealtimeConfig struct {
	Window string `koanf:"window"`
}

// Load reads defaults, then the optional YAML file, then SITEPULSE_
// environment variables. SITEPULSE_SERVER__PORT=9090 overrides server.port.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":                    8080,
		"server.host":                    "0.0.0.0",
		"server.max_body_size_kb":        64,
		"server.mode":                    "release",
		"database.dsn":                   "",
		"database.max_open_conns":        25,
		"database.max_idle_conns":        25,
		"database.auto_migrate":          true,
		"tracking.dedup_ttl":             "24h",
		"tracking.rate_limit_per_minute": 0,
		"tracking.sweep_interval":        "1m",
		"realtime.window":                "5m",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("SITEPULSE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "SITEPULSE_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("server.mode must be debug or release, got %q", c.Server.Mode)
	}
	if c.Server.MaxBodySizeKB <= 0 {
		return fmt.Errorf("server.max_body_size_kb must be positive, got %d", c.Server.MaxBodySizeKB)
	}
	if _, err := c.Tracking.DedupDuration(); err != nil {
		return err
	}
	if _, err := c.Tracking.SweepDuration(); err != nil {
		return err
	}
	if _, err := c.Realtime.WindowDuration(); err != nil {
		return err
	}
	if c.Tracking.RateLimitPerMinute < 0 {
		return fmt.Errorf("tracking.rate_limit_per_minute must not be negative, got %d", c.Tracking.RateLimitPerMinute)
	}
	return nil
}

func (c TrackingConfig) DedupDuration() (time.Duration, error) {
	return parsePositiveDuration("tracking.dedup_ttl", c.DedupTTL)
}

func (c TrackingConfig) SweepDuration() (time.Duration, error) {
	return parsePositiveDuration("tracking.sweep_interval", c.SweepInterval)
}

func (c RealtimeConfig) WindowDuration() (time.Duration, error) {
	return parsePositiveDuration("realtime.window", c.Window)
}

func parsePositiveDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, d)
	}
	return d, nil
}
