package schedule

import (
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// Ticker invokes a callback at a fixed interval until stopped.
//
// Each tick re-arms the next one from the dispatched callback, so a slow
// consumer delays the schedule instead of piling up ticks.
type Ticker struct {
	mu       sync.Mutex
	clock    clock.WithDelayedExecution
	interval time.Duration
	timer    clock.Timer
	seq      uint64
	running  bool
	fn       func()
	dispatch Dispatcher
}

// NewTicker creates a stopped ticker.
func NewTicker(c clock.WithDelayedExecution, interval time.Duration, fn func(), dispatch Dispatcher) *Ticker {
	if c == nil {
		c = clock.RealClock{}
	}
	if dispatch == nil {
		dispatch = direct
	}
	return &Ticker{
		clock:    c,
		interval: interval,
		fn:       fn,
		dispatch: dispatch,
	}
}

// Start begins ticking. Starting a running ticker is a no-op.
func (t *Ticker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return
	}
	t.running = true
	t.armLocked()
}

// Stop stops the ticker. A tick already dispatched is discarded.
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.running = false
	t.seq++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// Running reports whether the ticker is active.
func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *Ticker) armLocked() {
	t.seq++
	currentSeq := t.seq
	t.timer = t.clock.AfterFunc(t.interval, func() {
		t.dispatch(func() { t.tick(currentSeq) })
	})
}

func (t *Ticker) tick(seq uint64) {
	t.mu.Lock()
	if !t.running || t.seq != seq {
		t.mu.Unlock()
		return
	}
	t.armLocked()
	fn := t.fn
	t.mu.Unlock()

	if fn != nil {
		fn()
	}
}
