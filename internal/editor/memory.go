package editor

import (
	"context"
	"fmt"
	"sync"

	"github.com/dshills/molsync/internal/molecule"
)

// AcceptFunc decides whether the editor accepts a representation and may
// return it in the editor's own canonical spelling.
type AcceptFunc func(text string, format molecule.Format) (string, error)

// AcceptValid accepts anything that passes the superficial guard,
// unchanged.
func AcceptValid(text string, format molecule.Format) (string, error) {
	v := molecule.Check(text, format)
	if !v.Valid {
		return "", fmt.Errorf("%w: %s", ErrApplyRejected, v.Reason)
	}
	return text, nil
}

// Memory is an in-process structure editor. It holds the last applied or
// edited structure and reports changes to registered handlers, the way an
// embedded widget fires its change event after both programmatic and user
// edits.
//
// Memory itself offers no notification API, so connecting it selects the
// polling strategy. Use Subscribing or Emitting to expose one.
type Memory struct {
	mu        sync.Mutex
	line      string
	structure string
	accept    AcceptFunc
	readErr   error
	applies   int
	reads     int
	handlers  map[HandlerID]Handler
	nextID    HandlerID
}

// MemoryOption configures a Memory editor.
type MemoryOption func(*Memory)

// WithAccept sets the acceptance rule for Apply.
func WithAccept(fn AcceptFunc) MemoryOption {
	return func(m *Memory) {
		if fn != nil {
			m.accept = fn
		}
	}
}

// NewMemory creates an empty editor.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		accept:   AcceptValid,
		handlers: make(map[HandlerID]Handler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Apply implements Adapter.
func (m *Memory) Apply(ctx context.Context, text string, format molecule.Format) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.applies++
	text = molecule.Normalize(text)
	if text == "" {
		m.line, m.structure = "", ""
	} else {
		canonical, err := m.accept(text, format)
		if err != nil {
			m.mu.Unlock()
			return &OpError{Op: "apply", Detail: format.String(), Err: err}
		}
		switch format {
		case molecule.FormatStructureFile:
			// No chemistry engine here: a structure file cannot be
			// rendered back as line notation.
			m.line, m.structure = "", canonical
		default:
			m.line, m.structure = canonical, ""
		}
	}
	handlers := m.handlersLocked()
	m.mu.Unlock()

	emit(handlers)
	return nil
}

// ReadLineNotation implements Adapter.
func (m *Memory) ReadLineNotation(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.readErr != nil {
		return "", &OpError{Op: "read", Detail: "smiles", Err: m.readErr}
	}
	return m.line, nil
}

// ReadStructureFile implements Adapter. Only structures applied as
// structure files can be read back in that form.
func (m *Memory) ReadStructureFile(ctx context.Context, version molecule.MolfileVersion) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.readErr != nil {
		return "", &OpError{Op: "read", Detail: version.String(), Err: m.readErr}
	}
	return m.structure, nil
}

// Edit simulates a user edit made inside the editor and fires the change
// event.
func (m *Memory) Edit(text string) {
	m.mu.Lock()
	m.line, m.structure = molecule.Normalize(text), ""
	handlers := m.handlersLocked()
	m.mu.Unlock()

	emit(handlers)
}

// FailReads makes subsequent reads fail with err. Pass nil to recover.
func (m *Memory) FailReads(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

// Current returns the line notation held by the editor.
func (m *Memory) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.line
}

// ApplyCount returns how many Apply calls were made.
func (m *Memory) ApplyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applies
}

// ReadCount returns how many read calls were made.
func (m *Memory) ReadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// HandlerCount returns the number of registered change handlers.
func (m *Memory) HandlerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handlers)
}

// Subscribing exposes the Subscriber capability.
func (m *Memory) Subscribing() *SubscribingMemory {
	return &SubscribingMemory{Memory: m}
}

// Emitting exposes the Emitter capability.
func (m *Memory) Emitting() *EmittingMemory {
	return &EmittingMemory{Memory: m}
}

func (m *Memory) addHandler(event string, h Handler) (HandlerID, error) {
	if event != ChangeEvent {
		return 0, fmt.Errorf("unknown event %q", event)
	}
	if h == nil {
		return 0, fmt.Errorf("nil handler")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.handlers[m.nextID] = h
	return m.nextID, nil
}

func (m *Memory) removeHandler(event string, id HandlerID) error {
	if event != ChangeEvent {
		return fmt.Errorf("unknown event %q", event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, id)
	return nil
}

func (m *Memory) handlersLocked() []Handler {
	out := make([]Handler, 0, len(m.handlers))
	for _, h := range m.handlers {
		out = append(out, h)
	}
	return out
}

func emit(handlers []Handler) {
	for _, h := range handlers {
		h()
	}
}

// SubscribingMemory is a Memory editor offering native subscriptions.
type SubscribingMemory struct {
	*Memory
}

// Subscribe implements Subscriber.
func (m *SubscribingMemory) Subscribe(event string, h Handler) (HandlerID, error) {
	return m.addHandler(event, h)
}

// Unsubscribe implements Subscriber.
func (m *SubscribingMemory) Unsubscribe(event string, id HandlerID) error {
	return m.removeHandler(event, id)
}

// EmittingMemory is a Memory editor offering generic event registration.
type EmittingMemory struct {
	*Memory
}

// On implements Emitter.
func (m *EmittingMemory) On(event string, h Handler) (HandlerID, error) {
	return m.addHandler(event, h)
}

// Off implements Emitter.
func (m *EmittingMemory) Off(event string, id HandlerID) error {
	return m.removeHandler(event, id)
}
