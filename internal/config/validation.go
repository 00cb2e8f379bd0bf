package config

import (
	"fmt"
	"net/url"
)

// validateConfig rejects configurations the components would refuse at
// construction time, so misconfiguration fails at load instead of deep
// inside wiring.
func validateConfig(cfg *Config) error {
	switch cfg.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format: must be json or console, got %q", cfg.Logging.Format)
	}

	if cfg.Cache.DefaultTTL <= 0 {
		return fmt.Errorf("cache.default_ttl: must be positive")
	}
	if cfg.Cache.MaxEntriesPerNamespace <= 0 {
		return fmt.Errorf("cache.max_entries_per_namespace: must be positive")
	}
	if cfg.Cache.MaxNamespaces <= 0 {
		return fmt.Errorf("cache.max_namespaces: must be positive")
	}
	if cfg.Cache.SweepInterval <= 0 {
		return fmt.Errorf("cache.sweep_interval: must be positive")
	}

	if cfg.Totals.TTL <= 0 {
		return fmt.Errorf("totals.ttl: must be positive")
	}
	if cfg.Totals.MaxEntries <= 0 {
		return fmt.Errorf("totals.max_entries: must be positive")
	}
	if cfg.Totals.EvictionBatch <= 0 || cfg.Totals.EvictionBatch > cfg.Totals.MaxEntries {
		return fmt.Errorf("totals.eviction_batch: must be in 1..%d", cfg.Totals.MaxEntries)
	}
	if cfg.Totals.SweepInterval <= 0 {
		return fmt.Errorf("totals.sweep_interval: must be positive")
	}

	if cfg.Dedup.DefaultTimeout <= 0 {
		return fmt.Errorf("dedup.default_timeout: must be positive")
	}
	if cfg.Dedup.SweepInterval <= 0 {
		return fmt.Errorf("dedup.sweep_interval: must be positive")
	}

	if _, err := url.ParseRequestURI(cfg.Telemetry.Endpoint); err != nil {
		return fmt.Errorf("telemetry.endpoint: %w", err)
	}
	if cfg.Telemetry.RequestTimeout <= 0 {
		return fmt.Errorf("telemetry.request_timeout: must be positive")
	}
	if cfg.Telemetry.FlushInterval <= 0 {
		return fmt.Errorf("telemetry.flush_interval: must be positive")
	}
	if cfg.Telemetry.CooldownWindow <= 0 {
		return fmt.Errorf("telemetry.cooldown_window: must be positive")
	}
	if cfg.Telemetry.MaxBufferSize <= 0 {
		return fmt.Errorf("telemetry.max_buffer_size: must be positive")
	}
	if cfg.Telemetry.MaxAttempts <= 0 {
		return fmt.Errorf("telemetry.max_attempts: must be positive")
	}
	if cfg.Telemetry.RetryDelay <= 0 {
		return fmt.Errorf("telemetry.retry_delay: must be positive")
	}
	if cfg.Telemetry.SpillMaxAge <= 0 {
		return fmt.Errorf("telemetry.spill_max_age: must be positive")
	}

	if cfg.Database.Path == "" {
		return fmt.Errorf("database.path: cannot be empty")
	}

	return nil
}
