// Package tui is the terminal front end: a line-notation field, an editor
// pane standing in for the structure editor, and a status area showing the
// validation result and the actions it enables.
package tui

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/molsync/internal/editor"
	"github.com/dshills/molsync/internal/logging"
	"github.com/dshills/molsync/internal/molecule"
	"github.com/dshills/molsync/internal/syncer"
)

// DefaultLookupTimeout bounds one lookup started from the keyboard.
const DefaultLookupTimeout = 15 * time.Second

// Pane identifies which part of the screen receives typed text.
type Pane int

const (
	// PaneField is the line-notation input field.
	PaneField Pane = iota
	// PaneEditor is the structure editor.
	PaneEditor
)

// LookupFunc resolves a line notation to a displayable answer.
type LookupFunc func(ctx context.Context, smiles string) (string, error)

// UI drives a tcell screen.
type UI struct {
	screen  tcell.Screen
	ctl     *syncer.Controller
	mem     *editor.Memory
	presets []molecule.Preset
	lookup  LookupFunc
	log     *logging.Logger
	timeout time.Duration

	mu      sync.Mutex
	pane    Pane
	draft   string
	state   syncer.State
	status  string
	running bool

	lookups sync.WaitGroup
}

// Option configures a UI.
type Option func(*UI)

// WithPresets sets the presets bound to F1 and up.
func WithPresets(presets []molecule.Preset) Option {
	return func(u *UI) {
		u.presets = presets
	}
}

// WithLookup enables Ctrl+G.
func WithLookup(fn LookupFunc, timeout time.Duration) Option {
	return func(u *UI) {
		u.lookup = fn
		if timeout > 0 {
			u.timeout = timeout
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(u *UI) {
		if l != nil {
			u.log = l
		}
	}
}

// New creates a UI. The controller must already be attached to mem, or be
// attached later; the UI only reads and edits them.
func New(screen tcell.Screen, ctl *syncer.Controller, mem *editor.Memory, opts ...Option) *UI {
	u := &UI{
		screen:  screen,
		ctl:     ctl,
		mem:     mem,
		log:     logging.Null(),
		timeout: DefaultLookupTimeout,
	}
	for _, opt := range opts {
		opt(u)
	}
	u.log = u.log.WithComponent("tui")
	return u
}

// Run initializes the screen and processes events until the user quits or
// ctx is cancelled. The screen is finalized on return.
func (u *UI) Run(ctx context.Context) error {
	if err := u.screen.Init(); err != nil {
		return fmt.Errorf("initializing screen: %w", err)
	}
	u.screen.EnablePaste()

	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		u.lookups.Wait()
		u.mu.Lock()
		u.running = false
		u.mu.Unlock()
		u.screen.Fini()
	}()

	id, err := u.mem.Subscribing().Subscribe(editor.ChangeEvent, u.wake)
	if err != nil {
		return fmt.Errorf("watching editor: %w", err)
	}
	defer func() { _ = u.mem.Subscribing().Unsubscribe(editor.ChangeEvent, id) }()

	st := u.ctl.Snapshot()
	u.mu.Lock()
	u.running = true
	u.state = st
	u.draft = st.BufferText
	u.mu.Unlock()

	u.ctl.OnChange(u.stateChanged)
	u.ctl.OnFocusChange(true)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			u.wake()
		case <-stop:
		}
	}()

	for {
		u.draw()

		ev := u.screen.PollEvent()
		if ev == nil {
			return nil
		}
		switch ev := ev.(type) {
		case *tcell.EventKey:
			if u.handleKey(ctx, ev) {
				u.log.Debug("quit requested")
				return nil
			}
		case *tcell.EventResize:
			u.screen.Sync()
		case *tcell.EventInterrupt:
			if ctx.Err() != nil {
				return nil
			}
		}
	}
}

// Pane returns the pane that has keyboard focus.
func (u *UI) Pane() Pane {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.pane
}

// Status returns the status message.
func (u *UI) Status() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.status
}

// stateChanged runs on the controller's loop.
func (u *UI) stateChanged(st syncer.State) {
	u.mu.Lock()
	u.state = st
	// The user owns the draft while the field has focus.
	if !st.Focused {
		u.draft = st.BufferText
	}
	u.mu.Unlock()
	u.wake()
}

func (u *UI) wake() {
	u.mu.Lock()
	running := u.running
	u.mu.Unlock()
	if running {
		_ = u.screen.PostEvent(tcell.NewEventInterrupt(nil)) // best-effort; a full queue redraws anyway
	}
}

func (u *UI) setStatus(format string, args ...any) {
	u.mu.Lock()
	u.status = fmt.Sprintf(format, args...)
	u.mu.Unlock()
}

// handleKey applies one key press and reports whether to quit.
func (u *UI) handleKey(ctx context.Context, ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyTab, tcell.KeyBacktab:
		u.toggleFocus()
	case tcell.KeyCtrlL:
		u.setDraft("")
		u.ctl.Clear()
		u.setStatus("cleared")
	case tcell.KeyCtrlG:
		u.startLookup(ctx)
	case tcell.KeyEnter:
		u.applyField()
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		u.edit(func(s string) string {
			r := []rune(s)
			if len(r) == 0 {
				return s
			}
			return string(r[:len(r)-1])
		})
	case tcell.KeyCtrlU:
		u.edit(func(string) string { return "" })
	case tcell.KeyRune:
		r := ev.Rune()
		u.edit(func(s string) string { return s + string(r) })
	default:
		if n := int(ev.Key() - tcell.KeyF1); n >= 0 && n < len(u.presets) && ev.Key() <= tcell.KeyF12 {
			u.selectPreset(u.presets[n])
		}
	}
	return false
}

func (u *UI) toggleFocus() {
	u.mu.Lock()
	if u.pane == PaneField {
		u.pane = PaneEditor
	} else {
		u.pane = PaneField
		u.draft = u.state.BufferText
	}
	focused := u.pane == PaneField
	u.mu.Unlock()

	u.ctl.OnFocusChange(focused)
}

func (u *UI) setDraft(s string) {
	u.mu.Lock()
	u.draft = s
	u.mu.Unlock()
}

// edit changes the text of the focused pane.
func (u *UI) edit(fn func(string) string) {
	u.mu.Lock()
	pane := u.pane
	var next string
	if pane == PaneField {
		next = fn(u.draft)
		u.draft = next
	}
	u.mu.Unlock()

	if pane == PaneField {
		u.ctl.OnTextChange(next)
		return
	}
	u.mem.Edit(fn(u.mem.Current()))
}

func (u *UI) applyField() {
	u.mu.Lock()
	pane, aff, reason := u.pane, u.state.Affordances, u.state.Validity.Reason
	u.mu.Unlock()

	if pane != PaneField {
		return
	}
	if !aff.Apply {
		u.setStatus("cannot apply: %s", reason)
		return
	}
	u.ctl.OnApplyImmediate()
}

func (u *UI) selectPreset(p molecule.Preset) {
	u.setDraft(p.Text)
	u.ctl.SelectPreset(p)
	u.setStatus("preset %s", p.Name)
}

func (u *UI) startLookup(ctx context.Context) {
	if u.lookup == nil {
		u.setStatus("lookup is not configured")
		return
	}
	u.mu.Lock()
	text, enabled := u.draft, u.state.Affordances.Lookup
	u.mu.Unlock()
	if !enabled {
		u.setStatus("lookup needs a valid SMILES")
		return
	}

	u.setStatus("looking up %s", molecule.Normalize(text))
	u.lookups.Add(1)
	go func() {
		defer u.lookups.Done()
		ctx, cancel := context.WithTimeout(ctx, u.timeout)
		defer cancel()

		answer, err := u.lookup(ctx, molecule.Normalize(text))
		switch {
		case errors.Is(err, context.Canceled):
			return
		case err != nil:
			u.log.Warn("lookup %q: %v", text, err)
			u.setStatus("lookup failed: %v", err)
		default:
			u.setStatus("%s", answer)
		}
		u.wake()
	}()
}
