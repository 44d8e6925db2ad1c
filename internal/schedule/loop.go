package schedule

import (
	"context"
	"errors"
	"sync"
)

// ErrLoopClosed is returned when waiting on a loop that has been closed.
var ErrLoopClosed = errors.New("loop closed")

// Loop runs tasks sequentially on a dedicated goroutine.
//
// Thread-safety: Post, Go, WaitIdle and Close are safe for concurrent use.
// Tasks never run concurrently with each other.
type Loop struct {
	mu       sync.Mutex
	queue    []func()
	inflight int
	running  bool // a task is executing
	closed   bool
	idle     []chan struct{}

	signal chan struct{}
	done   chan struct{}

	onPanic func(any)
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithPanicHandler sets a handler for panics raised by tasks.
// Without one, a panicking task is recovered silently and the loop continues.
func WithPanicHandler(fn func(any)) LoopOption {
	return func(l *Loop) {
		l.onPanic = fn
	}
}

// NewLoop creates a loop and starts its goroutine.
func NewLoop(opts ...LoopOption) *Loop {
	l := &Loop{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	go l.run()
	return l
}

// Post queues fn for execution on the loop. It never blocks.
// Returns false if the loop is closed and fn was dropped.
func (l *Loop) Post(fn func()) bool {
	if fn == nil {
		return false
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	l.wake()
	return true
}

// Go runs op on its own goroutine. The continuation op returns, if any,
// is queued on the loop. The loop is not idle while op is in flight.
func (l *Loop) Go(op func() func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.inflight++
	l.mu.Unlock()

	go func() {
		var cont func()
		defer func() {
			if r := recover(); r != nil {
				l.handlePanic(r)
				cont = nil
			}
			l.mu.Lock()
			l.inflight--
			if cont != nil && !l.closed {
				l.queue = append(l.queue, cont)
			}
			l.mu.Unlock()
			l.wake()
		}()
		cont = op()
	}()
	return true
}

// WaitIdle blocks until the queue is empty, no task is running and no
// operation started with Go is in flight.
func (l *Loop) WaitIdle(ctx context.Context) error {
	l.mu.Lock()
	if l.isIdleLocked() {
		l.mu.Unlock()
		return nil
	}
	if l.closed && !l.isAliveLocked() {
		l.mu.Unlock()
		return ErrLoopClosed
	}
	ch := make(chan struct{})
	l.idle = append(l.idle, ch)
	l.mu.Unlock()
	l.wake()

	select {
	case <-ch:
		return nil
	case <-l.done:
		return ErrLoopClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks. Already queued tasks still run.
// Close blocks until the loop goroutine exits. Calling Close from a loop
// task would deadlock and must not be done.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		<-l.done
		return
	}
	l.closed = true
	l.mu.Unlock()
	l.wake()
	<-l.done
}

// Done is closed when the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) wake() {
	select {
	case l.signal <- struct{}{}:
	default:
	}
}

func (l *Loop) run() {
	defer close(l.done)

	for {
		l.mu.Lock()
		for len(l.queue) == 0 {
			if l.isIdleLocked() {
				l.releaseIdleLocked()
			}
			if l.closed {
				l.releaseIdleLocked()
				l.mu.Unlock()
				return
			}
			l.mu.Unlock()
			<-l.signal
			l.mu.Lock()
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.running = true
		l.mu.Unlock()

		l.call(fn)

		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}
}

func (l *Loop) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.handlePanic(r)
		}
	}()
	fn()
}

func (l *Loop) handlePanic(r any) {
	if l.onPanic != nil {
		l.onPanic(r)
	}
}

func (l *Loop) isIdleLocked() bool {
	return len(l.queue) == 0 && l.inflight == 0 && !l.running
}

func (l *Loop) isAliveLocked() bool {
	select {
	case <-l.done:
		return false
	default:
		return true
	}
}

func (l *Loop) releaseIdleLocked() {
	for _, ch := range l.idle {
		close(ch)
	}
	l.idle = nil
}
