package schedule

import (
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// Dispatcher hands a callback to the goroutine that must run it.
type Dispatcher func(fn func()) bool

// direct runs the callback on the timer goroutine.
func direct(fn func()) bool {
	fn()
	return true
}

// Debouncer groups rapid successive calls into a single call after a quiet
// period. Each Call cancels the pending timer and starts a new one, so at
// most one timer is live at any instant.
//
// The callback is delivered through the dispatcher. A sequence number
// discards a delivery whose timer was superseded or cancelled after it had
// already fired, so a stale timer can never run the callback.
type Debouncer struct {
	mu       sync.Mutex
	clock    clock.WithDelayedExecution
	delay    time.Duration
	timer    clock.Timer
	pending  bool
	seq      uint64
	callback func()
	dispatch Dispatcher
}

// DebouncerOption configures a Debouncer.
type DebouncerOption func(*Debouncer)

// WithClock sets the clock used for timers.
func WithClock(c clock.WithDelayedExecution) DebouncerOption {
	return func(d *Debouncer) {
		if c != nil {
			d.clock = c
		}
	}
}

// WithDispatcher sets where callbacks run, typically Loop.Post.
func WithDispatcher(fn Dispatcher) DebouncerOption {
	return func(d *Debouncer) {
		if fn != nil {
			d.dispatch = fn
		}
	}
}

// NewDebouncer creates a debouncer that invokes callback after delay of quiet.
func NewDebouncer(delay time.Duration, callback func(), opts ...DebouncerOption) *Debouncer {
	d := &Debouncer{
		clock:    clock.RealClock{},
		delay:    delay,
		callback: callback,
		dispatch: direct,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Call (re)arms the timer.
func (d *Debouncer) Call() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = true
	d.seq++
	currentSeq := d.seq

	if d.timer != nil {
		d.timer.Stop()
	}

	// The timer callback must not take d.mu: fake clocks fire it while
	// holding their own lock, which Call also acquires through AfterFunc.
	d.timer = d.clock.AfterFunc(d.delay, func() {
		d.dispatch(func() { d.fire(currentSeq) })
	})
}

func (d *Debouncer) fire(seq uint64) {
	d.mu.Lock()
	if !d.pending || d.seq != seq || d.callback == nil {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.timer = nil
	cb := d.callback
	d.mu.Unlock()
	cb()
}

// Cancel cancels any pending call.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	// Increment seq to invalidate a delivery already queued
	d.seq++
	d.pending = false
}

// IsPending returns true if a call is armed and has not fired yet.
func (d *Debouncer) IsPending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// SetDelay changes the quiet period. It applies from the next Call.
func (d *Debouncer) SetDelay(delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if delay > 0 {
		d.delay = delay
	}
}

// Delay returns the current quiet period.
func (d *Debouncer) Delay() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.delay
}
