package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/avolkhov/sessionkit/internal/clock"
)

// Defaults.
const (
	DefaultFlushInterval  = 30 * time.Second
	DefaultCooldownWindow = 1 * time.Second
	DefaultMaxBufferSize  = 100
	DefaultMaxAttempts    = 3
	DefaultRetryDelay     = 10 * time.Second
	DefaultSpillMaxAge    = 24 * time.Hour
)

// Sender transmits one batch. The whole batch succeeds or fails
// atomically; there are no partial-batch semantics.
type Sender interface {
	Send(ctx context.Context, batch Batch) error
}

// IdentityProvider reports the authenticated user, or "" when there is
// none. Events are always attributed to a user; without one they are
// dropped.
type IdentityProvider interface {
	CurrentUserID() string
}

// State is the batcher's explicit lifecycle state.
type State int

const (
	StateIdle State = iota
	StateArmed
	StateFlushing
	StateRetryScheduled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateFlushing:
		return "flushing"
	case StateRetryScheduled:
		return "retry-scheduled"
	default:
		return "unknown"
	}
}

// Config holds construction-time settings.
type Config struct {
	FlushInterval  time.Duration // trailing flush delay after the last Record
	CooldownWindow time.Duration // duplicate suppression per (type, productId)
	MaxBufferSize  int           // buffer size that triggers an immediate flush
	MaxAttempts    int           // send attempts before spilling
	RetryDelay     time.Duration // base delay; attempt n retries after n * RetryDelay
	SpillMaxAge    time.Duration // spills older than this are discarded at startup
}

// DefaultConfig returns the batcher defaults.
func DefaultConfig() Config {
	return Config{
		FlushInterval:  DefaultFlushInterval,
		CooldownWindow: DefaultCooldownWindow,
		MaxBufferSize:  DefaultMaxBufferSize,
		MaxAttempts:    DefaultMaxAttempts,
		RetryDelay:     DefaultRetryDelay,
		SpillMaxAge:    DefaultSpillMaxAge,
	}
}

func (c Config) validate() error {
	if c.FlushInterval <= 0 {
		return fmt.Errorf("telemetry: flush interval must be positive, got %v", c.FlushInterval)
	}
	if c.CooldownWindow <= 0 {
		return fmt.Errorf("telemetry: cooldown window must be positive, got %v", c.CooldownWindow)
	}
	if c.MaxBufferSize <= 0 {
		return fmt.Errorf("telemetry: max buffer size must be positive, got %d", c.MaxBufferSize)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("telemetry: max attempts must be positive, got %d", c.MaxAttempts)
	}
	if c.RetryDelay <= 0 {
		return fmt.Errorf("telemetry: retry delay must be positive, got %v", c.RetryDelay)
	}
	if c.SpillMaxAge <= 0 {
		return fmt.Errorf("telemetry: spill max age must be positive, got %v", c.SpillMaxAge)
	}
	return nil
}

// Status is an introspection snapshot.
type Status struct {
	State     State
	BufferLen int
	Attempts  int
}

// Batcher accumulates events and flushes them as idempotent batches on a
// trailing timer or a size threshold, with bounded linear-backoff retries
// and a durable spill as the terminal fallback. Recording never blocks
// the caller.
type Batcher struct {
	mu       sync.Mutex
	cfg      Config
	clk      clock.Clock
	log      zerolog.Logger
	sender   Sender
	store    DurableEventStore
	identity IdentityProvider

	buffer   []Event
	cooldown *cooldownTable
	state    State
	flushing bool
	attempts int
	closed   bool

	flushTimer clock.Timer
	retryTimer clock.Timer
}

// New creates a Batcher. Call Start to restore any persisted spill.
func New(cfg Config, sender Sender, store DurableEventStore, identity IdentityProvider, clk clock.Clock, log zerolog.Logger) (*Batcher, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if sender == nil {
		return nil, fmt.Errorf("telemetry: sender is required")
	}
	if store == nil {
		return nil, fmt.Errorf("telemetry: durable event store is required")
	}
	if identity == nil {
		return nil, fmt.Errorf("telemetry: identity provider is required")
	}
	if clk == nil {
		clk = clock.System()
	}

	return &Batcher{
		cfg:      cfg,
		clk:      clk,
		log:      log.With().Str("component", "telemetry").Logger(),
		sender:   sender,
		store:    store,
		identity: identity,
		cooldown: newCooldownTable(clk, cfg.CooldownWindow),
		state:    StateIdle,
	}, nil
}

// Start loads a previously persisted spill, discarding it if older than
// the retention window, and arms a flush for whatever it restored.
// At-least-once across reloads; the deterministic batch id absorbs the
// duplicate-delivery cost.
func (b *Batcher) Start(ctx context.Context) error {
	spill, err := b.store.Load(ctx)
	if err == ErrNoSpill {
		return nil
	}
	if err != nil {
		// In-memory stays the source of truth; never fail construction
		// over a bad spill.
		b.log.Warn().Err(err).Msg("failed to load event spill")
		return nil
	}

	if b.clk.Now().Sub(spill.Timestamp) > b.cfg.SpillMaxAge {
		b.log.Info().Time("captured_at", spill.Timestamp).Msg("discarding expired event spill")
		if err := b.store.Clear(ctx); err != nil {
			b.log.Warn().Err(err).Msg("failed to clear expired spill")
		}
		return nil
	}

	events := spill.Events
	if len(events) > b.cfg.MaxBufferSize {
		events = events[:b.cfg.MaxBufferSize]
	}

	b.mu.Lock()
	b.buffer = append(b.buffer, events...)
	b.armFlushTimerLocked()
	b.mu.Unlock()

	if err := b.store.Clear(ctx); err != nil {
		b.log.Warn().Err(err).Msg("failed to clear restored spill")
	}
	b.log.Info().Int("events", len(events)).Msg("restored event spill")
	return nil
}

// Record buffers one event. Calls without an authenticated identity are
// dropped (logged, never an error: telemetry must not crash UI code), as
// are duplicates inside the cooldown window.
func (b *Batcher) Record(eventType EventType, productID, shopID string) {
	userID := b.identity.CurrentUserID()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	if userID == "" {
		b.mu.Unlock()
		b.log.Debug().Str("type", string(eventType)).Str("product_id", productID).
			Msg("dropping event without authenticated user")
		return
	}
	if !b.cooldown.accept(eventType, productID) {
		b.mu.Unlock()
		return
	}

	b.buffer = append(b.buffer, Event{Type: eventType, ProductID: productID, ShopID: shopID})

	if len(b.buffer) >= b.cfg.MaxBufferSize {
		b.stopFlushTimerLocked()
		b.mu.Unlock()
		// Off the caller's goroutine: Record must never block on the network.
		go func() {
			if err := b.Flush(context.Background()); err != nil {
				b.log.Warn().Err(err).Msg("size-triggered flush failed")
			}
		}()
		return
	}

	b.armFlushTimerLocked()
	b.mu.Unlock()
}

// Flush transmits the buffered events as one batch. Re-entrant calls
// collapse into the in-flight flush (idempotent no-op). The buffer is
// snapshotted and cleared before the network call, so events recorded
// during the round-trip accumulate in a fresh buffer.
func (b *Batcher) Flush(ctx context.Context) error {
	b.mu.Lock()
	if b.flushing || len(b.buffer) == 0 {
		b.mu.Unlock()
		return nil
	}
	b.flushing = true
	b.state = StateFlushing
	b.stopFlushTimerLocked()
	b.stopRetryTimerLocked()
	snapshot := b.buffer
	b.buffer = nil
	b.mu.Unlock()

	batch := Batch{
		BatchID: batchID(b.identity.CurrentUserID(), b.clk.Now()),
		Events:  snapshot,
	}
	err := b.sender.Send(ctx, batch)

	b.mu.Lock()
	b.flushing = false
	if err == nil {
		b.attempts = 0
		b.settleAfterSuccessLocked()
		b.mu.Unlock()

		if cerr := b.store.Clear(ctx); cerr != nil {
			b.log.Warn().Err(cerr).Msg("failed to clear spill after flush")
		}
		b.log.Debug().Str("batch_id", batch.BatchID).Int("events", len(snapshot)).Msg("flush complete")
		return nil
	}

	// Failed: the snapshot goes back to the front of the (possibly
	// repopulated) buffer.
	b.buffer = append(snapshot, b.buffer...)
	b.attempts++
	if b.attempts < b.cfg.MaxAttempts {
		attempt := b.attempts
		delay := time.Duration(attempt) * b.cfg.RetryDelay
		b.state = StateRetryScheduled
		b.retryTimer = b.clk.AfterFunc(delay, b.retryFlush)
		b.mu.Unlock()
		b.log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("flush failed, retry scheduled")
		return err
	}

	// Attempts exhausted: durability, not retry. A later explicit
	// trigger (next Start) resumes delivery.
	spill := Spill{Events: b.buffer, Timestamp: b.clk.Now()}
	b.attempts = 0
	b.state = StateIdle
	if serr := b.store.Save(ctx, spill); serr != nil {
		// Keep the buffer; memory remains the source of truth.
		b.state = b.recomputeStateLocked()
		b.mu.Unlock()
		b.log.Error().Err(serr).Msg("failed to persist event spill")
		return err
	}
	b.buffer = nil
	b.mu.Unlock()
	b.log.Warn().Err(err).Int("events", len(spill.Events)).Msg("flush retries exhausted, events spilled")
	return err
}

// SpillNow persists the current buffer without clearing it. Called on
// page-hide and shutdown as a safety net, regardless of retry state.
func (b *Batcher) SpillNow(ctx context.Context) {
	b.mu.Lock()
	if len(b.buffer) == 0 {
		b.mu.Unlock()
		return
	}
	spill := Spill{Events: append([]Event(nil), b.buffer...), Timestamp: b.clk.Now()}
	b.mu.Unlock()

	if err := b.store.Save(ctx, spill); err != nil {
		b.log.Warn().Err(err).Msg("failed to spill events")
		return
	}
	b.log.Debug().Int("events", len(spill.Events)).Msg("events spilled")
}

// Close stops the timers and spills anything still buffered.
func (b *Batcher) Close(ctx context.Context) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.stopFlushTimerLocked()
	b.stopRetryTimerLocked()
	b.state = StateIdle
	b.mu.Unlock()

	b.SpillNow(ctx)
}

// Status returns an introspection snapshot.
func (b *Batcher) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Status{State: b.state, BufferLen: len(b.buffer), Attempts: b.attempts}
}

func (b *Batcher) retryFlush() {
	if err := b.Flush(context.Background()); err != nil {
		b.log.Warn().Err(err).Msg("retry flush failed")
	}
}

func (b *Batcher) timedFlush() {
	if err := b.Flush(context.Background()); err != nil {
		b.log.Warn().Err(err).Msg("timed flush failed")
	}
}

func (b *Batcher) armFlushTimerLocked() {
	b.stopFlushTimerLocked()
	b.flushTimer = b.clk.AfterFunc(b.cfg.FlushInterval, b.timedFlush)
	if !b.flushing {
		b.state = StateArmed
	}
}

func (b *Batcher) stopFlushTimerLocked() {
	if b.flushTimer != nil {
		b.flushTimer.Stop()
		b.flushTimer = nil
	}
}

func (b *Batcher) stopRetryTimerLocked() {
	if b.retryTimer != nil {
		b.retryTimer.Stop()
		b.retryTimer = nil
	}
}

// settleAfterSuccessLocked decides the post-flush state: events recorded
// during the round-trip keep their own timer running.
func (b *Batcher) settleAfterSuccessLocked() {
	b.state = b.recomputeStateLocked()
}

func (b *Batcher) recomputeStateLocked() State {
	if len(b.buffer) == 0 {
		return StateIdle
	}
	if b.flushTimer == nil {
		b.armFlushTimerLocked()
	}
	return StateArmed
}
