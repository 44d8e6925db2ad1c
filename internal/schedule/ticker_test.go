package schedule

import (
	"sync/atomic"
	"testing"
	"time"

	clocktesting "k8s.io/utils/clock/testing"
)

func TestTicker_FixedInterval(t *testing.T) {
	fc := clocktesting.NewFakeClock(time.Now())
	l := NewLoop()
	defer l.Close()

	var ticks atomic.Int32
	tk := NewTicker(fc, 800*time.Millisecond, func() { ticks.Add(1) }, l.Post)
	tk.Start()
	tk.Start() // no-op

	for i := 0; i < 3; i++ {
		fc.Step(800 * time.Millisecond)
		waitIdle(t, l)
	}
	if ticks.Load() != 3 {
		t.Errorf("ticks = %d, want 3", ticks.Load())
	}

	tk.Stop()
	fc.Step(800 * time.Millisecond)
	waitIdle(t, l)
	if ticks.Load() != 3 {
		t.Errorf("ticks after Stop = %d, want 3", ticks.Load())
	}
	if tk.Running() {
		t.Error("ticker should not be running after Stop")
	}
	if fc.HasWaiters() {
		t.Error("stopped ticker left a timer armed")
	}
}
