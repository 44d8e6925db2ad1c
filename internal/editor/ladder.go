package editor

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"k8s.io/utils/clock"

	"github.com/dshills/molsync/internal/schedule"
)

// DefaultPollInterval is the polling period used when the editor offers no
// notification API.
const DefaultPollInterval = 800 * time.Millisecond

// Connection is a live change-notification link to an editor.
type Connection interface {
	// Close stops notifications. It is safe to call more than once.
	Close() error
}

// Strategy is one rung of the connection ladder.
type Strategy interface {
	// Name identifies the strategy in logs and snapshots.
	Name() string
	// Connect starts delivering change signals to notify. It returns
	// ErrSubscriptionUnsupported when the editor lacks the capability.
	Connect(a Adapter, notify Handler) (Connection, error)
}

// Ladder is an ordered list of strategies; the first that connects wins.
type Ladder []Strategy

// DefaultLadder returns subscribe, events, poll in that order. Poll ticks
// are delivered through dispatch, normally the synchronization loop.
func DefaultLadder(c clock.WithDelayedExecution, pollInterval time.Duration, dispatch schedule.Dispatcher) Ladder {
	return Ladder{
		SubscribeStrategy{},
		EventStrategy{},
		&PollStrategy{Clock: c, Interval: pollInterval, Dispatch: dispatch},
	}
}

// Connect tries each strategy in order and returns the first connection
// together with the strategy name. Errors from skipped rungs are returned
// joined only if every rung failed.
func (l Ladder) Connect(a Adapter, notify Handler) (Connection, string, error) {
	if a == nil {
		return nil, "", ErrEditorUnavailable
	}
	var errs error
	for _, s := range l {
		conn, err := s.Connect(a, notify)
		if err == nil {
			return conn, s.Name(), nil
		}
		errs = multierr.Append(errs, &OpError{Op: "subscribe", Detail: s.Name(), Err: err})
	}
	if errs == nil {
		errs = ErrSubscriptionUnsupported
	}
	return nil, "", errs
}

// SubscribeStrategy uses the Subscriber capability.
type SubscribeStrategy struct{}

// Name implements Strategy.
func (SubscribeStrategy) Name() string { return "subscribe" }

// Connect implements Strategy.
func (SubscribeStrategy) Connect(a Adapter, notify Handler) (Connection, error) {
	sub, ok := a.(Subscriber)
	if !ok {
		return nil, ErrSubscriptionUnsupported
	}
	id, err := sub.Subscribe(ChangeEvent, notify)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSubscriptionUnsupported, err)
	}
	return &funcConnection{close: func() error {
		return sub.Unsubscribe(ChangeEvent, id)
	}}, nil
}

// EventStrategy uses the Emitter capability.
type EventStrategy struct{}

// Name implements Strategy.
func (EventStrategy) Name() string { return "events" }

// Connect implements Strategy.
func (EventStrategy) Connect(a Adapter, notify Handler) (Connection, error) {
	em, ok := a.(Emitter)
	if !ok {
		return nil, ErrSubscriptionUnsupported
	}
	id, err := em.On(ChangeEvent, notify)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSubscriptionUnsupported, err)
	}
	return &funcConnection{close: func() error {
		return em.Off(ChangeEvent, id)
	}}, nil
}

// PollStrategy signals a change at a fixed interval. It always connects.
type PollStrategy struct {
	Clock    clock.WithDelayedExecution
	Interval time.Duration
	Dispatch schedule.Dispatcher
}

// Name implements Strategy.
func (*PollStrategy) Name() string { return "poll" }

// Connect implements Strategy.
func (p *PollStrategy) Connect(_ Adapter, notify Handler) (Connection, error) {
	if notify == nil {
		return nil, errors.New("poll strategy requires a handler")
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	t := schedule.NewTicker(p.Clock, interval, func() { notify() }, p.Dispatch)
	t.Start()
	return &funcConnection{close: func() error {
		t.Stop()
		return nil
	}}, nil
}

type funcConnection struct {
	close  func() error
	closed bool
}

func (c *funcConnection) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.close()
}
