// Package dedup tracks in-flight asynchronous operations by key so that
// concurrent callers share one underlying execution instead of issuing
// duplicate remote calls. The surface mirrors golang.org/x/sync's
// singleflight, extended with per-operation staleness timeouts and
// explicit cancellation.
package dedup

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
	DefaultTimeout       = 30 * time.Second
	DefaultSweepInterval = 60 * time.Second
)

// Operation is the caller-supplied unit of work. It runs under a context
// owned by the deduplicator, detached from any single caller, so one
// caller going away does not abort the operation for the others.
type Operation func(ctx context.Context) (any, error)

// Options tune a single Do call.
type Options struct {
	// Timeout bounds the registered operation's staleness. Zero selects
	// the deduplicator default.
	Timeout time.Duration
	// ForceRefresh bypasses deduplication and executes unconditionally.
	ForceRefresh bool
}

// Config holds construction-time settings.
type Config struct {
	DefaultTimeout time.Duration
	SweepInterval  time.Duration
}

// DefaultConfig returns deduplicator defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout: DefaultTimeout,
		SweepInterval:  DefaultSweepInterval,
	}
}

func (c Config) validate() error {
	if c.DefaultTimeout <= 0 {
		return fmt.Errorf("dedup: default timeout must be positive, got %v", c.DefaultTimeout)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("dedup: sweep interval must be positive, got %v", c.SweepInterval)
	}
	return nil
}

// pendingOp is one registered in-flight operation. settle is idempotent;
// whoever decides the outcome first (completion, timeout, cancel) wins.
type pendingOp struct {
	key       string
	startedAt time.Time
	cancel    context.CancelFunc
	timer     clock.Timer

	once sync.Once
	done chan struct{}
	val  any
	err  error
}

func (p *pendingOp) settle(val any, err error) {
	p.once.Do(func() {
		p.val = val
		p.err = err
		close(p.done)
	})
}

// Deduplicator is the in-flight operation registry. At most one operation
// is registered per key at any instant.
type Deduplicator struct {
	mu      sync.Mutex
	cfg     Config
	clk     clock.Clock
	log     zerolog.Logger
	pending map[string]*pendingOp

	ticker    clock.Ticker
	stop      chan struct{}
	closeOnce sync.Once
	doneWG    sync.WaitGroup
}

// New creates a Deduplicator and starts its staleness sweep.
func New(cfg Config, clk clock.Clock, log zerolog.Logger) (*Deduplicator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.System()
	}

	d := &Deduplicator{
		cfg:     cfg,
		clk:     clk,
		log:     log.With().Str("component", "dedup").Logger(),
		pending: make(map[string]*pendingOp),
		stop:    make(chan struct{}),
	}

	d.ticker = clk.NewTicker(cfg.SweepInterval)
	d.doneWG.Add(1)
	go d.run()
	return d, nil
}

func (d *Deduplicator) run() {
	defer d.doneWG.Done()
	for {
		select {
		case <-d.stop:
			return
		case <-d.ticker.C():
			d.sweep()
		}
	}
}

// Close cancels everything in flight and stops the sweep.
func (d *Deduplicator) Close() {
	d.closeOnce.Do(func() {
		d.CancelAll()
		close(d.stop)
		d.ticker.Stop()
		d.doneWG.Wait()
	})
}

// Do executes op under single-flight semantics for key. Concurrent
// callers for the same key await the same underlying execution and
// receive its value or its error unmodified. A registered operation older
// than its timeout is cancelled and replaced. The caller's own ctx only
// controls how long this caller waits, not the shared operation.
func (d *Deduplicator) Do(ctx context.Context, key string, op Operation, opts Options) (any, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = d.cfg.DefaultTimeout
	}

	if opts.ForceRefresh {
		return op(ctx)
	}

	d.mu.Lock()
	if p, ok := d.pending[key]; ok {
		if d.clk.Now().Sub(p.startedAt) <= timeout {
			d.mu.Unlock()
			return d.wait(ctx, p)
		}
		// Stale: cancel in place and start fresh below.
		d.expireLocked(key, p)
	}
	p := d.startLocked(key, op, timeout)
	d.mu.Unlock()

	return d.wait(ctx, p)
}

// startLocked registers and launches a new operation for key.
func (d *Deduplicator) startLocked(key string, op Operation, timeout time.Duration) *pendingOp {
	opCtx, cancel := context.WithCancel(context.Background())
	p := &pendingOp{
		key:       key,
		startedAt: d.clk.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	// Own staleness bound, independent of any new caller arriving.
	p.timer = d.clk.AfterFunc(timeout, func() {
		d.mu.Lock()
		if d.pending[key] == p {
			d.expireLocked(key, p)
		}
		d.mu.Unlock()
	})
	d.pending[key] = p

	go func() {
		val, err := op(opCtx)
		p.settle(val, err)
		cancel()
		d.mu.Lock()
		if d.pending[key] == p {
			p.timer.Stop()
			delete(d.pending, key)
		}
		d.mu.Unlock()
	}()

	return p
}

// expireLocked removes p as the registered operation for key and signals
// its cancellation. Work already done is not undone; waiters observe
// context.DeadlineExceeded.
func (d *Deduplicator) expireLocked(key string, p *pendingOp) {
	p.timer.Stop()
	p.cancel()
	p.settle(nil, context.DeadlineExceeded)
	delete(d.pending, key)
	d.log.Debug().Str("key", key).Msg("expired stale operation")
}

func (d *Deduplicator) wait(ctx context.Context, p *pendingOp) (any, error) {
	select {
	case <-p.done:
		return p.val, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel aborts the registered operation for key, if any. Used on
// navigation-away or logout.
func (d *Deduplicator) Cancel(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.pending[key]
	if !ok {
		return false
	}
	p.timer.Stop()
	p.cancel()
	p.settle(nil, context.Canceled)
	delete(d.pending, key)
	return true
}

// CancelAll aborts every registered operation.
func (d *Deduplicator) CancelAll() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key, p := range d.pending {
		p.timer.Stop()
		p.cancel()
		p.settle(nil, context.Canceled)
		delete(d.pending, key)
	}
}

// IsPending reports whether an operation is registered for key.
func (d *Deduplicator) IsPending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}

// PendingCount returns the number of registered operations.
func (d *Deduplicator) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// sweep cancels anything older than the default timeout, independent of
// caller activity.
func (d *Deduplicator) sweep() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clk.Now()
	for key, p := range d.pending {
		if now.Sub(p.startedAt) > d.cfg.DefaultTimeout {
			d.expireLocked(key, p)
		}
	}
}

// Do is the typed convenience wrapper over Deduplicator.Do.
func Do[T any](ctx context.Context, d *Deduplicator, key string, op func(ctx context.Context) (T, error), opts Options) (T, error) {
	raw, err := d.Do(ctx, key, func(ctx context.Context) (any, error) {
		return op(ctx)
	}, opts)
	if err != nil {
		var zero T
		return zero, err
	}
	val, ok := raw.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("dedup: operation for %q returned %T", key, raw)
	}
	return val, nil
}
