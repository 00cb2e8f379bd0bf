package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually advanced Clock for tests. Timers and tickers fire
// synchronously inside Advance, in deadline order, with Now frozen at each
// timer's deadline while its callback runs. Callbacks may arm new timers;
// those fire too if they fall inside the advanced window.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*fakeTimer
}

// NewFake creates a fake clock starting at now.
func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	t := &fakeTimer{
		clk:  f,
		when: f.now.Add(d),
		seq:  f.seq,
		fn:   fn,
	}
	f.timers = append(f.timers, t)
	return t
}

func (f *Fake) NewTicker(d time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	t := &fakeTimer{
		clk:    f,
		when:   f.now.Add(d),
		seq:    f.seq,
		period: d,
		ch:     make(chan time.Time, 64),
	}
	f.timers = append(f.timers, t)
	return fakeTicker{t: t}
}

// Advance moves the clock forward by d, firing every timer and ticker whose
// deadline falls within the window, in order.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	for {
		t := f.nextDueLocked(target)
		if t == nil {
			break
		}
		f.now = t.when
		if t.period > 0 {
			t.when = t.when.Add(t.period)
			select {
			case t.ch <- f.now:
			default:
			}
			continue
		}
		t.stopped = true
		f.removeLocked(t)
		fn := t.fn
		f.mu.Unlock()
		fn()
		f.mu.Lock()
	}
	f.now = target
	f.mu.Unlock()
}

// nextDueLocked returns the earliest live timer due at or before target.
func (f *Fake) nextDueLocked(target time.Time) *fakeTimer {
	sort.SliceStable(f.timers, func(i, j int) bool {
		if f.timers[i].when.Equal(f.timers[j].when) {
			return f.timers[i].seq < f.timers[j].seq
		}
		return f.timers[i].when.Before(f.timers[j].when)
	})
	for _, t := range f.timers {
		if !t.stopped && !t.when.After(target) {
			return t
		}
	}
	return nil
}

func (f *Fake) removeLocked(t *fakeTimer) {
	for i, cand := range f.timers {
		if cand == t {
			f.timers = append(f.timers[:i], f.timers[i+1:]...)
			return
		}
	}
}

type fakeTimer struct {
	clk     *Fake
	when    time.Time
	seq     int
	fn      func()
	period  time.Duration // 0 for one-shot timers
	ch      chan time.Time
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.clk.mu.Lock()
	defer t.clk.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	t.clk.removeLocked(t)
	return true
}

// fakeTicker adapts a periodic fakeTimer to the Ticker surface.
type fakeTicker struct {
	t *fakeTimer
}

func (ft fakeTicker) C() <-chan time.Time { return ft.t.ch }
func (ft fakeTicker) Stop()               { ft.t.Stop() }
