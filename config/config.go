// Package config loads the relay daemon configuration. Sources, in
// precedence order: defaults, an optional relay.toml, RELAY_* environment
// variables.
package config

import (
	"fmt"
	"time"
)

// Config is the full relay configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Buffer   BufferConfig   `mapstructure:"buffer"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Registry RegistryConfig `mapstructure:"registry"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port int `mapstructure:"port"` // listen port (default: 7411)
}

// BufferConfig bounds the in-memory event buffer.
type BufferConfig struct {
	MaxEvents int `mapstructure:"max_events"` // capacity before oldest-first trimming (default: 10000)
}

// SyncConfig configures the push/pull protocol and retention.
type SyncConfig struct {
	MaxBatchSize    int           `mapstructure:"max_batch_size"`    // hard cap per push batch and pull page (default: 100)
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`  // janitor period (default: 5m)
	Retention       time.Duration `mapstructure:"retention"`         // event age ceiling (default: 24h)
	PushRatePerSec  float64       `mapstructure:"push_rate_per_sec"` // per-device push rate limit, 0 disables
}

// RegistryConfig configures the soft device registry.
type RegistryConfig struct {
	TTL time.Duration `mapstructure:"ttl"` // idle expiry for device entries (default: 24h)
}

// LogConfig configures logging output.
type LogConfig struct {
	JSON bool `mapstructure:"json"` // structured JSON instead of console output
}

// Validate checks ranges. Called after every load and reload; a reload
// producing an invalid config is rejected and the previous one stays live.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Buffer.MaxEvents < 1 {
		return fmt.Errorf("buffer.max_events must be positive, got %d", c.Buffer.MaxEvents)
	}
	if c.Sync.MaxBatchSize < 1 {
		return fmt.Errorf("sync.max_batch_size must be positive, got %d", c.Sync.MaxBatchSize)
	}
	if c.Sync.CleanupInterval <= 0 {
		return fmt.Errorf("sync.cleanup_interval must be positive, got %s", c.Sync.CleanupInterval)
	}
	if c.Sync.Retention <= 0 {
		return fmt.Errorf("sync.retention must be positive, got %s", c.Sync.Retention)
	}
	if c.Sync.PushRatePerSec < 0 {
		return fmt.Errorf("sync.push_rate_per_sec must not be negative, got %f", c.Sync.PushRatePerSec)
	}
	if c.Registry.TTL <= 0 {
		return fmt.Errorf("registry.ttl must be positive, got %s", c.Registry.TTL)
	}
	return nil
}

// String returns a compact representation for startup logging. No secrets
// live in this config, so the whole thing is printable.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Port: %d, MaxEvents: %d, MaxBatch: %d, Cleanup: %s, Retention: %s}",
		c.Server.Port, c.Buffer.MaxEvents, c.Sync.MaxBatchSize, c.Sync.CleanupInterval, c.Sync.Retention)
}
