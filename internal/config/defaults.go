package config

import (
	"time"

	"github.com/spf13/viper"
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Cache: CacheConfig{
			DefaultTTL:             10 * time.Minute,
			MaxEntriesPerNamespace: 100,
			MaxNamespaces:          20,
			SweepInterval:          5 * time.Minute,
		},
		Totals: TotalsConfig{
			TTL:           10 * time.Minute,
			MaxEntries:    50,
			EvictionBatch: 10,
			SweepInterval: 5 * time.Minute,
		},
		Dedup: DedupConfig{
			DefaultTimeout: 30 * time.Second,
			SweepInterval:  60 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Endpoint:       "http://localhost:8787/v1/metrics/batch",
			RequestTimeout: 10 * time.Second,
			FlushInterval:  30 * time.Second,
			CooldownWindow: 1 * time.Second,
			MaxBufferSize:  100,
			MaxAttempts:    3,
			RetryDelay:     10 * time.Second,
			SpillMaxAge:    24 * time.Hour,
		},
		Database: DatabaseConfig{
			Path: DefaultDatabasePath(),
		},
	}
}

// setDefaults registers every default with viper so partial config files
// inherit the rest.
func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()

	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)

	v.SetDefault("cache.default_ttl", defaults.Cache.DefaultTTL)
	v.SetDefault("cache.max_entries_per_namespace", defaults.Cache.MaxEntriesPerNamespace)
	v.SetDefault("cache.max_namespaces", defaults.Cache.MaxNamespaces)
	v.SetDefault("cache.sweep_interval", defaults.Cache.SweepInterval)

	v.SetDefault("totals.ttl", defaults.Totals.TTL)
	v.SetDefault("totals.max_entries", defaults.Totals.MaxEntries)
	v.SetDefault("totals.eviction_batch", defaults.Totals.EvictionBatch)
	v.SetDefault("totals.sweep_interval", defaults.Totals.SweepInterval)

	v.SetDefault("dedup.default_timeout", defaults.Dedup.DefaultTimeout)
	v.SetDefault("dedup.sweep_interval", defaults.Dedup.SweepInterval)

	v.SetDefault("telemetry.endpoint", defaults.Telemetry.Endpoint)
	v.SetDefault("telemetry.request_timeout", defaults.Telemetry.RequestTimeout)
	v.SetDefault("telemetry.flush_interval", defaults.Telemetry.FlushInterval)
	v.SetDefault("telemetry.cooldown_window", defaults.Telemetry.CooldownWindow)
	v.SetDefault("telemetry.max_buffer_size", defaults.Telemetry.MaxBufferSize)
	v.SetDefault("telemetry.max_attempts", defaults.Telemetry.MaxAttempts)
	v.SetDefault("telemetry.retry_delay", defaults.Telemetry.RetryDelay)
	v.SetDefault("telemetry.spill_max_age", defaults.Telemetry.SpillMaxAge)

	v.SetDefault("database.path", defaults.Database.Path)
}
