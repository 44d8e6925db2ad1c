package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func waitIdle(t *testing.T, l *Loop) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.WaitIdle(ctx); err != nil {
		t.Fatalf("WaitIdle() failed: %v", err)
	}
}

func TestLoop_RunsInOrder(t *testing.T) {
	l := NewLoop()
	defer l.Close()

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}
	waitIdle(t, l)

	if len(got) != 100 {
		t.Fatalf("ran %d tasks, want 100", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("task %d ran at position %d", v, i)
		}
	}
}

func TestLoop_GoResumesOnLoop(t *testing.T) {
	l := NewLoop()
	defer l.Close()

	release := make(chan struct{})
	var resumed atomic.Bool
	l.Go(func() func() {
		<-release
		return func() { resumed.Store(true) }
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := l.WaitIdle(ctx); err == nil {
		t.Fatal("loop should not be idle while an operation is in flight")
	}

	close(release)
	waitIdle(t, l)
	if !resumed.Load() {
		t.Error("continuation did not run")
	}
}

func TestLoop_RecoversPanics(t *testing.T) {
	var recovered atomic.Value
	l := NewLoop(WithPanicHandler(func(r any) { recovered.Store(r) }))
	defer l.Close()

	var after atomic.Bool
	l.Post(func() { panic("boom") })
	l.Post(func() { after.Store(true) })
	waitIdle(t, l)

	if recovered.Load() != "boom" {
		t.Errorf("recovered = %v, want boom", recovered.Load())
	}
	if !after.Load() {
		t.Error("loop stopped after a panicking task")
	}
}

func TestLoop_PostAfterClose(t *testing.T) {
	l := NewLoop()
	l.Close()

	if l.Post(func() {}) {
		t.Error("Post should fail on a closed loop")
	}
	if l.Go(func() func() { return nil }) {
		t.Error("Go should fail on a closed loop")
	}
	// Closing twice is safe.
	l.Close()
}

func TestLoop_CloseDrainsQueue(t *testing.T) {
	l := NewLoop()
	var count atomic.Int32
	for i := 0; i < 10; i++ {
		l.Post(func() { count.Add(1) })
	}
	l.Close()

	if count.Load() != 10 {
		t.Errorf("ran %d tasks before exit, want 10", count.Load())
	}
}
