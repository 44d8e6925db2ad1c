package syncer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"k8s.io/utils/clock"

	"github.com/dshills/molsync/internal/editor"
	"github.com/dshills/molsync/internal/field"
	"github.com/dshills/molsync/internal/logging"
	"github.com/dshills/molsync/internal/molecule"
	"github.com/dshills/molsync/internal/schedule"
)

// ErrClosed is returned by operations on a closed controller.
var ErrClosed = errors.New("controller closed")

// Controller synchronizes the input field with a structure editor.
//
// Methods are safe to call from any goroutine except loop tasks and
// OnChange observers, which must not call the blocking methods (Attach,
// Detach, Close, Snapshot, ReadStructure).
type Controller struct {
	loop     *schedule.Loop
	ownsLoop bool

	clock      clock.WithDelayedExecution
	log        *logging.Logger
	registerer prometheus.Registerer
	metrics    *Metrics
	ladderFunc LadderFunc
	rules      []molecule.Validator

	outboundDelay time.Duration
	inboundDelay  time.Duration
	pollInterval  time.Duration
	callTimeout   time.Duration

	buffer   *field.Buffer
	outbound *schedule.Debouncer
	inbound  *schedule.Debouncer

	// Loop-owned.
	state     ConnState
	sess      *session
	observers []func(State)
	closed    bool
}

// New creates a controller in the Uninitialized state.
func New(opts ...Option) *Controller {
	c := &Controller{
		clock:         clock.RealClock{},
		log:           logging.Null(),
		ladderFunc:    editor.DefaultLadder,
		outboundDelay: DefaultOutboundDelay,
		inboundDelay:  DefaultInboundDelay,
		pollInterval:  DefaultPollInterval,
		callTimeout:   DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.loop == nil {
		log := c.log
		c.loop = schedule.NewLoop(schedule.WithPanicHandler(func(r any) {
			log.Error("sync task panicked: %v", r)
		}))
		c.ownsLoop = true
	}
	c.log = c.log.WithComponent("syncer")
	c.metrics = NewMetrics(c.registerer)
	c.metrics.connection(StateUninitialized)

	c.buffer = field.New(c.rules...)
	c.buffer.OnTextChange(c.textChanged)
	c.buffer.OnFocusChange(c.focusChanged)

	c.outbound = schedule.NewDebouncer(c.outboundDelay, c.flushOutbound,
		schedule.WithClock(c.clock), schedule.WithDispatcher(c.loop.Post))
	c.inbound = schedule.NewDebouncer(c.inboundDelay, c.pull,
		schedule.WithClock(c.clock), schedule.WithDispatcher(c.loop.Post))

	return c
}

// Buffer exposes the input field for reading. Mutate it only through the
// controller.
func (c *Controller) Buffer() *field.Buffer {
	return c.buffer
}

// Attach connects an editor instance and moves to Ready. Attaching while
// another instance is connected replaces it: the old instance is torn down
// first and a fresh synchronization state is created.
func (c *Controller) Attach(a editor.Adapter) error {
	var err error
	if perr := c.do(func() { err = c.attach(a) }); perr != nil {
		return perr
	}
	return err
}

// Detach tears down the current editor instance, cancelling both pending
// timers. Calls already issued to the editor are not cancelled; their
// results are discarded.
func (c *Controller) Detach() error {
	var err error
	if perr := c.do(func() { err = c.teardown("detached") }); perr != nil {
		return perr
	}
	return err
}

// Close detaches the editor and stops the controller. It is idempotent.
func (c *Controller) Close() error {
	var err error
	perr := c.do(func() {
		err = c.teardown("closed")
		c.closed = true
	})
	if perr != nil && !errors.Is(perr, ErrClosed) {
		err = multierr.Append(err, perr)
	}
	if c.ownsLoop {
		c.loop.Close()
	}
	return err
}

// OnTextChange records a keystroke-level change of the field text.
func (c *Controller) OnTextChange(text string) {
	c.post(func() { c.buffer.SetText(text) })
}

// OnFocusChange records the field gaining or losing focus.
func (c *Controller) OnFocusChange(focused bool) {
	c.post(func() { c.buffer.SetFocused(focused) })
}

// OnApplyImmediate pushes a representation without waiting for the
// debounce, for explicit actions such as picking a preset. With no
// argument the current field text is applied.
func (c *Controller) OnApplyImmediate(text ...string) {
	c.post(func() {
		t := c.buffer.Text()
		if len(text) > 0 {
			t = text[0]
		}
		c.applyNow(molecule.Normalize(t), "immediate")
	})
}

// SelectPreset replaces the field text with a preset and applies it
// immediately.
func (c *Controller) SelectPreset(p molecule.Preset) {
	c.post(func() {
		c.buffer.SetText(p.Text)
		c.applyNow(molecule.Normalize(p.Text), "preset")
	})
}

// ApplyStructure applies a structure file immediately. The field is left
// alone; the editor's change signal brings the line notation back.
func (c *Controller) ApplyStructure(text string) {
	c.post(func() { c.applyNow(molecule.Normalize(text), "structure") })
}

// Clear empties the field and clears the editor immediately.
func (c *Controller) Clear() {
	c.post(func() {
		c.buffer.SetText("")
		c.applyNow("", "clear")
	})
}

// ReadStructure reads the editor's structure as a structure file.
func (c *Controller) ReadStructure(ctx context.Context, version molecule.MolfileVersion) (string, error) {
	var a editor.Adapter
	if err := c.do(func() {
		if c.sess != nil {
			a = c.sess.adapter
		}
	}); err != nil {
		return "", err
	}
	if a == nil {
		return "", editor.ErrEditorUnavailable
	}
	text, err := a.ReadStructureFile(ctx, version)
	if err != nil {
		return "", &editor.OpError{Op: "read", Detail: version.String(), Err: err}
	}
	if molecule.Normalize(text) == "" {
		return "", &editor.OpError{Op: "read", Detail: version.String(), Err: editor.ErrReadFailed}
	}
	return text, nil
}

// SetDelays changes the quiet periods. They apply from the next trigger.
func (c *Controller) SetDelays(outbound, inbound time.Duration) {
	c.outbound.SetDelay(outbound)
	c.inbound.SetDelay(inbound)
}

// OnChange registers an observer called on the loop after every change of
// field text, focus or connection.
func (c *Controller) OnChange(fn func(State)) {
	if fn == nil {
		return
	}
	c.post(func() { c.observers = append(c.observers, fn) })
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	var st State
	if err := c.do(func() { st = c.snapshot() }); err != nil {
		return State{
			Connection:  StateTornDown,
			BufferText:  c.buffer.Text(),
			Focused:     c.buffer.Focused(),
			Validity:    c.buffer.Validity(),
			Affordances: c.buffer.Affordances(),
		}
	}
	return st
}

// WaitIdle blocks until no task is queued or running and no editor call is
// in flight. Pending debounce timers do not count as work.
func (c *Controller) WaitIdle(ctx context.Context) error {
	return c.loop.WaitIdle(ctx)
}

func (c *Controller) post(fn func()) {
	c.loop.Post(func() {
		if c.closed {
			return
		}
		fn()
	})
}

// do runs fn on the loop and waits for it.
func (c *Controller) do(fn func()) error {
	done := make(chan struct{})
	closed := false
	ok := c.loop.Post(func() {
		defer close(done)
		if c.closed {
			closed = true
			return
		}
		fn()
	})
	if !ok {
		return ErrClosed
	}
	select {
	case <-done:
	case <-c.loop.Done():
		return ErrClosed
	}
	if closed {
		return ErrClosed
	}
	return nil
}

func (c *Controller) attach(a editor.Adapter) error {
	if a == nil {
		return editor.ErrEditorUnavailable
	}
	var errs error
	if c.sess != nil {
		errs = multierr.Append(errs, c.teardown("replaced"))
	}

	s := &session{id: uuid.New(), adapter: a}
	notify := func() {
		c.loop.Post(func() { c.editorChanged(s) })
	}

	ladder := c.ladderFunc(c.clock, c.pollInterval, c.loop.Post)
	conn, strategy, err := ladder.Connect(a, notify)
	if err != nil {
		c.log.Warn("no change notification strategy: %v", err)
		return multierr.Append(errs, err)
	}
	s.conn = conn
	s.strategy = strategy
	s.log = c.log.WithFields(map[string]any{
		"session":  s.id.String(),
		"strategy": strategy,
	})

	c.sess = s
	c.setState(StateReady)
	s.log.Info("editor attached")

	// Text typed before the editor was available is pushed once it is.
	if c.buffer.Normalized() != "" {
		c.outbound.Call()
	}
	c.emit()
	return errs
}

func (c *Controller) teardown(reason string) error {
	c.outbound.Cancel()
	c.inbound.Cancel()

	s := c.sess
	if s == nil {
		return nil
	}
	s.torn = true
	c.sess = nil

	var err error
	if s.conn != nil {
		err = s.conn.Close()
	}
	c.setState(StateTornDown)
	s.log.Info("editor torn down (%s)", reason)
	c.emit()
	return err
}

func (c *Controller) setState(st ConnState) {
	c.state = st
	c.metrics.connection(st)
}

// textChanged observes every field change; it runs on the loop.
func (c *Controller) textChanged(field.Change) {
	defer c.emit()

	s := c.sess
	if s == nil {
		return
	}
	if s.syncingFromEditor {
		// The change came from the editor; pushing it back would loop.
		return
	}
	c.outbound.Call()
}

func (c *Controller) focusChanged(bool) {
	c.emit()
}

func (c *Controller) flushOutbound() {
	s := c.sess
	if s == nil {
		c.metrics.outboundSkip(reasonUnavailable)
		return
	}
	if !c.buffer.Focused() {
		c.metrics.outboundSkip(reasonUnfocused)
		return
	}
	if s.syncingFromEditor {
		c.metrics.outboundSkip(reasonReentry)
		return
	}

	text := c.buffer.Normalized()
	if text == s.lastApplied {
		c.metrics.outboundSkip(reasonUnchanged)
		return
	}
	if s.inflight && text == s.inflightText {
		c.metrics.outboundSkip(reasonInflight)
		return
	}

	if text == "" {
		s.lastApplied = ""
	}
	c.push(s, text, "debounce")
}

// applyNow pushes text without debouncing. An explicit action reaches the
// editor even when text equals lastApplied.
func (c *Controller) applyNow(text, origin string) {
	s := c.sess
	if s == nil {
		c.metrics.outboundSkip(reasonUnavailable)
		return
	}
	if text == "" {
		s.lastApplied = ""
	}
	c.push(s, text, origin)
}

func (c *Controller) push(s *session, text, origin string) {
	format := molecule.DetectFormat(text)
	s.inflight = true
	s.inflightText = text

	a := s.adapter
	timeout := c.callTimeout
	c.loop.Go(func() func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err := a.Apply(ctx, text, format)
		return func() { c.applied(s, text, format, origin, err) }
	})
}

func (c *Controller) applied(s *session, text string, format molecule.Format, origin string, err error) {
	if s.inflightText == text {
		s.inflight = false
	}
	if s.torn || c.sess != s {
		c.metrics.outboundSkip(reasonStale)
		return
	}

	if err != nil {
		c.metrics.applied(resultRejected)
		s.log.Debug("apply %s (%s): %v: %v", format, origin, editor.ErrApplyRejected, err)
		return
	}

	if text == "" {
		s.lastApplied = ""
		c.metrics.applied(resultCleared)
		s.log.Debug("editor cleared (%s)", origin)
		return
	}
	s.lastApplied = text
	c.metrics.applied(resultApplied)
	s.log.Debug("applied %s %q (%s)", format, text, origin)
}

// editorChanged receives change signals from the connection strategy.
func (c *Controller) editorChanged(s *session) {
	if s.torn || c.sess != s {
		return
	}
	c.inbound.Call()
}

func (c *Controller) pull() {
	s := c.sess
	if s == nil {
		c.metrics.inboundSkip(reasonUnavailable)
		return
	}

	a := s.adapter
	timeout := c.callTimeout
	c.loop.Go(func() func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		text, err := a.ReadLineNotation(ctx)
		return func() { c.pulled(s, text, err) }
	})
}

func (c *Controller) pulled(s *session, text string, err error) {
	if s.torn || c.sess != s {
		c.metrics.inboundSkip(reasonStale)
		return
	}
	if err != nil {
		c.metrics.inboundSkip(reasonReadFailed)
		s.log.Debug("%v: %v", editor.ErrReadFailed, err)
		return
	}
	text = molecule.Normalize(text)
	if text == "" {
		c.metrics.inboundSkip(reasonEmpty)
		return
	}

	if text == s.lastApplied {
		c.metrics.inboundSkip(reasonEcho)
		return
	}

	if text == c.buffer.Normalized() {
		c.metrics.inboundSkip(reasonUnchanged)
		return
	}
	if c.buffer.Focused() {
		c.metrics.inboundSkip(reasonFocused)
		return
	}

	c.commit(s, text)
}

// commit writes an editor-originated text into the field. The guard stays
// set while the field's observers run and is cleared by the next loop
// task, after every effect of the commit has been observed.
func (c *Controller) commit(s *session, text string) {
	s.syncingFromEditor = true
	c.outbound.Cancel()
	c.buffer.SetText(text)
	c.metrics.committed()
	s.log.Debug("field updated from editor %q", text)

	c.loop.Post(func() { s.syncingFromEditor = false })
}

func (c *Controller) snapshot() State {
	st := State{
		Connection:      c.state,
		BufferText:      c.buffer.Text(),
		Focused:         c.buffer.Focused(),
		OutboundPending: c.outbound.IsPending(),
		InboundPending:  c.inbound.IsPending(),
		Validity:        c.buffer.Validity(),
		Affordances:     c.buffer.Affordances(),
	}
	if s := c.sess; s != nil {
		st.Session = s.id
		st.Strategy = s.strategy
		st.LastAppliedText = s.lastApplied
		st.SyncingFromEditor = s.syncingFromEditor
	}
	return st
}

func (c *Controller) emit() {
	if len(c.observers) == 0 {
		return
	}
	st := c.snapshot()
	for _, fn := range c.observers {
		fn(st)
	}
}
