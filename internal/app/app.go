// Package app is the composition root: it constructs the coordination
// primitives as explicitly owned, dependency-injected instances with a
// single shutdown path.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/avolkhov/sessionkit/internal/cache"
	"github.com/avolkhov/sessionkit/internal/cache/totals"
	"github.com/avolkhov/sessionkit/internal/clock"
	"github.com/avolkhov/sessionkit/internal/config"
	"github.com/avolkhov/sessionkit/internal/debounce"
	"github.com/avolkhov/sessionkit/internal/dedup"
	"github.com/avolkhov/sessionkit/internal/infrastructure/persistence/sqlite"
	"github.com/avolkhov/sessionkit/internal/ingest"
	"github.com/avolkhov/sessionkit/internal/logging"
	"github.com/avolkhov/sessionkit/internal/telemetry"
)

// App owns one session's coordination primitives. All fields are
// constructed in New and released in Close; nothing is lazily created.
type App struct {
	Config   *config.Manager
	Identity *Identity
	Cache    *cache.Store
	Totals   *totals.Cache
	Dedup    *dedup.Deduplicator
	Debounce *debounce.Scheduler
	Batcher  *telemetry.Batcher

	log        zerolog.Logger
	db         *sql.DB
	instanceID string
}

// New wires the full coordination layer from configuration. The caller
// owns the returned App and must Close it.
func New(ctx context.Context) (*App, error) {
	manager, err := config.NewManager()
	if err != nil {
		return nil, fmt.Errorf("app: config manager: %w", err)
	}
	if err := manager.Load(); err != nil {
		return nil, fmt.Errorf("app: load config: %w", err)
	}
	cfg := manager.Config()

	log := logging.New(logging.Config{
		Level:      logging.ParseLevel(cfg.Logging.Level),
		Format:     cfg.Logging.Format,
		TimeFormat: "15:04:05",
	})
	instanceID := uuid.NewString()
	log = log.With().Str("instance_id", instanceID).Logger()
	ctx = logging.WithContext(ctx, log)

	db, err := sqlite.NewConnection(ctx, cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("app: open database: %w", err)
	}

	clk := clock.System()

	store, err := cache.New(cache.Config{
		DefaultTTL:      cfg.Cache.DefaultTTL,
		MaxEntriesPerNS: cfg.Cache.MaxEntriesPerNamespace,
		MaxNamespaces:   cfg.Cache.MaxNamespaces,
		SweepInterval:   cfg.Cache.SweepInterval,
	}, clk, log)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("app: cache store: %w", err)
	}

	totalsCache, err := totals.New(totals.Config{
		TTL:           cfg.Totals.TTL,
		MaxEntries:    cfg.Totals.MaxEntries,
		EvictionBatch: cfg.Totals.EvictionBatch,
		SweepInterval: cfg.Totals.SweepInterval,
	}, clk, log)
	if err != nil {
		store.Close()
		_ = db.Close()
		return nil, fmt.Errorf("app: totals cache: %w", err)
	}

	deduper, err := dedup.New(dedup.Config{
		DefaultTimeout: cfg.Dedup.DefaultTimeout,
		SweepInterval:  cfg.Dedup.SweepInterval,
	}, clk, log)
	if err != nil {
		totalsCache.Close()
		store.Close()
		_ = db.Close()
		return nil, fmt.Errorf("app: deduplicator: %w", err)
	}

	scheduler := debounce.New(clk, log)
	identity := NewIdentity()

	sender, err := ingest.New(cfg.Telemetry.Endpoint, cfg.Telemetry.RequestTimeout, log)
	if err != nil {
		deduper.Close()
		totalsCache.Close()
		store.Close()
		_ = db.Close()
		return nil, fmt.Errorf("app: ingest client: %w", err)
	}

	batcher, err := telemetry.New(telemetry.Config{
		FlushInterval:  cfg.Telemetry.FlushInterval,
		CooldownWindow: cfg.Telemetry.CooldownWindow,
		MaxBufferSize:  cfg.Telemetry.MaxBufferSize,
		MaxAttempts:    cfg.Telemetry.MaxAttempts,
		RetryDelay:     cfg.Telemetry.RetryDelay,
		SpillMaxAge:    cfg.Telemetry.SpillMaxAge,
	}, sender, sqlite.NewSpillRepository(db), identity, clk, log)
	if err != nil {
		deduper.Close()
		totalsCache.Close()
		store.Close()
		_ = db.Close()
		return nil, fmt.Errorf("app: batcher: %w", err)
	}

	if err := batcher.Start(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to restore event spill")
	}

	manager.OnConfigChange(func(next *config.Config) {
		zerolog.SetGlobalLevel(logging.ParseLevel(next.Logging.Level))
	})
	manager.Watch()

	log.Info().Msg("coordination layer ready")

	return &App{
		Config:     manager,
		Identity:   identity,
		Cache:      store,
		Totals:     totalsCache,
		Dedup:      deduper,
		Debounce:   scheduler,
		Batcher:    batcher,
		log:        log,
		db:         db,
		instanceID: instanceID,
	}, nil
}

// InstanceID returns this session's unique id.
func (a *App) InstanceID() string { return a.instanceID }

// Log returns the application logger.
func (a *App) Log() zerolog.Logger { return a.log }

// DB exposes the spill database for CLI inspection.
func (a *App) DB() *sql.DB { return a.db }

// Login attributes subsequent events to userID.
func (a *App) Login(userID string) {
	a.Identity.SetUser(userID)
}

// Logout clears the identity, aborts in-flight deduplicated operations
// and drops the user's cached totals.
func (a *App) Logout() {
	prev := a.Identity.Clear()
	a.Dedup.CancelAll()
	if prev != "" {
		a.Totals.InvalidateForUser(prev)
	}
}

// OnHidden is the page-hide hook: persist anything undelivered.
func (a *App) OnHidden(ctx context.Context) {
	a.Batcher.SpillNow(ctx)
}

// OnVisible is the visibility-regained hook: sweep expired entries.
func (a *App) OnVisible() {
	a.Cache.Sweep()
}

// Close releases everything in reverse construction order.
func (a *App) Close(ctx context.Context) {
	a.Batcher.Close(ctx)
	a.Debounce.CancelAll()
	a.Dedup.Close()
	a.Totals.Close()
	a.Cache.Close()
	if err := a.db.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close database")
	}
}
