package syncer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/utils/clock"

	"github.com/dshills/molsync/internal/editor"
	"github.com/dshills/molsync/internal/logging"
	"github.com/dshills/molsync/internal/molecule"
	"github.com/dshills/molsync/internal/schedule"
)

// Default timings.
const (
	DefaultOutboundDelay = 400 * time.Millisecond
	DefaultInboundDelay  = 500 * time.Millisecond
	DefaultPollInterval  = editor.DefaultPollInterval
	DefaultCallTimeout   = 10 * time.Second
)

// LadderFunc builds the connection ladder for a new editor instance.
// dispatch delivers callbacks onto the controller's loop.
type LadderFunc func(c clock.WithDelayedExecution, pollInterval time.Duration, dispatch schedule.Dispatcher) editor.Ladder

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the clock driving debounce and poll timers.
func WithClock(c clock.WithDelayedExecution) Option {
	return func(ctl *Controller) {
		if c != nil {
			ctl.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(ctl *Controller) {
		if l != nil {
			ctl.log = l
		}
	}
}

// WithDelays sets the outbound and inbound quiet periods.
// Non-positive values keep the defaults.
func WithDelays(outbound, inbound time.Duration) Option {
	return func(ctl *Controller) {
		if outbound > 0 {
			ctl.outboundDelay = outbound
		}
		if inbound > 0 {
			ctl.inboundDelay = inbound
		}
	}
}

// WithPollInterval sets the interval used by the polling strategy.
func WithPollInterval(d time.Duration) Option {
	return func(ctl *Controller) {
		if d > 0 {
			ctl.pollInterval = d
		}
	}
}

// WithCallTimeout bounds each editor call.
func WithCallTimeout(d time.Duration) Option {
	return func(ctl *Controller) {
		if d > 0 {
			ctl.callTimeout = d
		}
	}
}

// WithRegisterer registers the controller's metrics.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(ctl *Controller) {
		ctl.registerer = reg
	}
}

// WithLadder replaces the default subscribe, events, poll ladder.
func WithLadder(fn LadderFunc) Option {
	return func(ctl *Controller) {
		if fn != nil {
			ctl.ladderFunc = fn
		}
	}
}

// WithRules adds validation rules to the input field's guard.
func WithRules(rules ...molecule.Validator) Option {
	return func(ctl *Controller) {
		ctl.rules = append(ctl.rules, rules...)
	}
}

// WithLoop runs the controller on an existing loop. The controller does
// not close a loop it did not create.
func WithLoop(l *schedule.Loop) Option {
	return func(ctl *Controller) {
		ctl.loop = l
	}
}
