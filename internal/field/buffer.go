// Package field models the free-text molecule input: its raw text, whether
// it holds keyboard focus, and the affordances the validation guard enables.
package field

import (
	"sync"

	"github.com/dshills/molsync/internal/molecule"
)

// Affordances are the dependent UI actions toggled by the validation guard.
// They never gate synchronization.
type Affordances struct {
	// Copy is enabled whenever the field holds any text.
	Copy bool
	// Lookup is enabled for a valid line notation.
	Lookup bool
	// Apply is enabled for any valid representation.
	Apply bool
}

// Change describes a text change delivered to observers.
type Change struct {
	Text     string
	Previous string
	Validity molecule.Validity
}

// Buffer holds the raw user text and the focus flag.
//
// Thread-safety: all methods are safe for concurrent use. Observers run
// synchronously on the goroutine that made the change, after the buffer's
// lock is released.
type Buffer struct {
	mu       sync.RWMutex
	text     string
	focused  bool
	validity molecule.Validity
	rules    []molecule.Validator

	textObservers  []func(Change)
	focusObservers []func(bool)
}

// New creates an empty, unfocused buffer. Rules are consulted by the
// validation guard after its built-in checks.
func New(rules ...molecule.Validator) *Buffer {
	b := &Buffer{rules: rules}
	b.validity = b.check("")
	return b
}

// OnTextChange registers an observer for text changes.
func (b *Buffer) OnTextChange(fn func(Change)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.textObservers = append(b.textObservers, fn)
}

// OnFocusChange registers an observer for focus changes.
func (b *Buffer) OnFocusChange(fn func(bool)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.focusObservers = append(b.focusObservers, fn)
}

// AddRule appends a validation rule and re-runs the guard.
func (b *Buffer) AddRule(rule molecule.Validator) {
	if rule == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rules = append(b.rules, rule)
	b.validity = b.checkLocked(b.text)
}

// SetText replaces the raw text. Observers are notified only when the text
// actually changed. Returns whether it changed.
func (b *Buffer) SetText(s string) bool {
	b.mu.Lock()
	if s == b.text {
		b.mu.Unlock()
		return false
	}
	prev := b.text
	b.text = s
	b.validity = b.checkLocked(s)
	change := Change{Text: s, Previous: prev, Validity: b.validity}
	observers := append([]func(Change){}, b.textObservers...)
	b.mu.Unlock()

	for _, fn := range observers {
		fn(change)
	}
	return true
}

// SetFocused records whether the field holds focus. A focused field is
// never overwritten by the editor.
func (b *Buffer) SetFocused(focused bool) bool {
	b.mu.Lock()
	if b.focused == focused {
		b.mu.Unlock()
		return false
	}
	b.focused = focused
	observers := append([]func(bool){}, b.focusObservers...)
	b.mu.Unlock()

	for _, fn := range observers {
		fn(focused)
	}
	return true
}

// Text returns the raw text.
func (b *Buffer) Text() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.text
}

// Normalized returns the canonical form of the text.
func (b *Buffer) Normalized() string {
	return molecule.Normalize(b.Text())
}

// Focused reports whether the field holds focus.
func (b *Buffer) Focused() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.focused
}

// Validity returns the last validation guard result.
func (b *Buffer) Validity() molecule.Validity {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.validity
}

// Affordances derives the enabled actions from the current text.
func (b *Buffer) Affordances() Affordances {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return affordancesFor(b.text, b.validity)
}

func affordancesFor(text string, v molecule.Validity) Affordances {
	return Affordances{
		Copy:   molecule.Normalize(text) != "",
		Lookup: v.Valid && v.Format == molecule.FormatLineNotation,
		Apply:  v.Valid,
	}
}

func (b *Buffer) check(s string) molecule.Validity {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.checkLocked(s)
}

func (b *Buffer) checkLocked(s string) molecule.Validity {
	n := molecule.Normalize(s)
	return molecule.Check(n, molecule.DetectFormat(n), b.rules...)
}
