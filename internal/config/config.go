// Package config loads and watches the sessionkit configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the root configuration.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging" json:"logging"`
	Cache     CacheConfig     `mapstructure:"cache" json:"cache"`
	Totals    TotalsConfig    `mapstructure:"totals" json:"totals"`
	Dedup     DedupConfig     `mapstructure:"dedup" json:"dedup"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" json:"telemetry"`
	Database  DatabaseConfig  `mapstructure:"database" json:"database"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" json:"level" jsonschema:"enum=trace,enum=debug,enum=info,enum=warn,enum=error"`
	Format string `mapstructure:"format" json:"format" jsonschema:"enum=json,enum=console"`
}

// CacheConfig configures the namespaced cache store.
type CacheConfig struct {
	DefaultTTL             time.Duration `mapstructure:"default_ttl" json:"default_ttl"`
	MaxEntriesPerNamespace int           `mapstructure:"max_entries_per_namespace" json:"max_entries_per_namespace"`
	MaxNamespaces          int           `mapstructure:"max_namespaces" json:"max_namespaces"`
	SweepInterval          time.Duration `mapstructure:"sweep_interval" json:"sweep_interval"`
}

// TotalsConfig configures the cart totals cache.
type TotalsConfig struct {
	TTL           time.Duration `mapstructure:"ttl" json:"ttl"`
	MaxEntries    int           `mapstructure:"max_entries" json:"max_entries"`
	EvictionBatch int           `mapstructure:"eviction_batch" json:"eviction_batch"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" json:"sweep_interval"`
}

// DedupConfig configures the request deduplicator.
type DedupConfig struct {
	DefaultTimeout time.Duration `mapstructure:"default_timeout" json:"default_timeout"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval" json:"sweep_interval"`
}

// TelemetryConfig configures the event batcher and ingestion client.
type TelemetryConfig struct {
	Endpoint       string        `mapstructure:"endpoint" json:"endpoint"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" json:"request_timeout"`
	FlushInterval  time.Duration `mapstructure:"flush_interval" json:"flush_interval"`
	CooldownWindow time.Duration `mapstructure:"cooldown_window" json:"cooldown_window"`
	MaxBufferSize  int           `mapstructure:"max_buffer_size" json:"max_buffer_size"`
	MaxAttempts    int           `mapstructure:"max_attempts" json:"max_attempts"`
	RetryDelay     time.Duration `mapstructure:"retry_delay" json:"retry_delay"`
	SpillMaxAge    time.Duration `mapstructure:"spill_max_age" json:"spill_max_age"`
}

// DatabaseConfig locates the durable spill database.
type DatabaseConfig struct {
	Path string `mapstructure:"path" json:"path"`
}

// GetConfigDir returns the sessionkit config directory.
func GetConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("determine user config dir: %w", err)
	}
	return filepath.Join(base, "sessionkit"), nil
}

// DefaultDatabasePath returns the spill database location under the user
// data directory.
func DefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "sessionkit.db"
	}
	return filepath.Join(home, ".local", "share", "sessionkit", "sessionkit.db")
}
