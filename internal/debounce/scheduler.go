// Package debounce provides per-key trailing-edge coalescing: bursts of
// calls collapse into one execution of the most recent call once input
// pauses for the configured delay. Intermediate calls are discarded,
// never queued.
package debounce

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/avolkhov/sessionkit/internal/clock"
)

// pendingCall is the latest captured call for one key, plus its armed
// timer. At most one exists per key.
type pendingCall struct {
	fn    func()
	timer clock.Timer
}

// Scheduler owns the per-key timer table.
type Scheduler struct {
	mu      sync.Mutex
	clk     clock.Clock
	log     zerolog.Logger
	pending map[string]*pendingCall
}

// New creates a Scheduler.
func New(clk clock.Clock, log zerolog.Logger) *Scheduler {
	if clk == nil {
		clk = clock.System()
	}
	return &Scheduler{
		clk:     clk,
		log:     log.With().Str("component", "debounce").Logger(),
		pending: make(map[string]*pendingCall),
	}
}

// Call schedules fn to run after delay, replacing any pending call for
// key and restarting its timer. When the timer fires uninterrupted, the
// most recently captured fn runs exactly once.
func (s *Scheduler) Call(key string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.pending[key]; ok {
		prev.timer.Stop()
	}

	p := &pendingCall{fn: fn}
	p.timer = s.clk.AfterFunc(delay, func() {
		s.fire(key, p)
	})
	s.pending[key] = p
}

// Wrap returns a callable that debounces fn under key. Callers needing
// per-invocation arguments capture them in the closure they pass to Call
// instead.
func (s *Scheduler) Wrap(key string, delay time.Duration, fn func()) func() {
	return func() {
		s.Call(key, delay, fn)
	}
}

// fire runs p.fn if p is still the registered pending call for key.
func (s *Scheduler) fire(key string, p *pendingCall) {
	s.mu.Lock()
	if s.pending[key] != p {
		// Replaced or cancelled between timer fire and lock acquisition.
		s.mu.Unlock()
		return
	}
	delete(s.pending, key)
	fn := p.fn
	s.mu.Unlock()

	fn()
}

// Cancel discards the pending call for key without executing it.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[key]
	if !ok {
		return false
	}
	p.timer.Stop()
	delete(s.pending, key)
	return true
}

// Flush executes the pending call for key immediately, if any.
func (s *Scheduler) Flush(key string) bool {
	s.mu.Lock()
	p, ok := s.pending[key]
	if !ok {
		s.mu.Unlock()
		return false
	}
	p.timer.Stop()
	delete(s.pending, key)
	fn := p.fn
	s.mu.Unlock()

	fn()
	return true
}

// Pending reports whether a timer is currently armed for key.
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[key]
	return ok
}

// Len returns the number of armed keys.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// CancelAll discards every pending call. Used at teardown.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, p := range s.pending {
		p.timer.Stop()
		delete(s.pending, key)
	}
}
