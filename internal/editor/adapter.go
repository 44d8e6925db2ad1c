package editor

import (
	"context"

	"github.com/dshills/molsync/internal/molecule"
)

// ChangeEvent is the event name editors use for structure changes.
const ChangeEvent = "change"

// Adapter is the minimal capability every editor offers.
// All methods may block; callers run them off the synchronization loop.
type Adapter interface {
	// Apply replaces the editor's structure. An empty text clears it.
	Apply(ctx context.Context, text string, format molecule.Format) error

	// ReadLineNotation returns the current structure as line notation.
	// An empty result means there is nothing to report.
	ReadLineNotation(ctx context.Context) (string, error)

	// ReadStructureFile returns the current structure as a structure file.
	ReadStructureFile(ctx context.Context, version molecule.MolfileVersion) (string, error)
}

// Handler is called when the editor reports a change. It may be called
// from any goroutine.
type Handler func()

// HandlerID identifies a registered handler.
type HandlerID uint64

// Subscriber is the native change-subscription capability.
type Subscriber interface {
	Subscribe(event string, h Handler) (HandlerID, error)
	Unsubscribe(event string, id HandlerID) error
}

// Emitter is the generic event-registration capability.
type Emitter interface {
	On(event string, h Handler) (HandlerID, error)
	Off(event string, id HandlerID) error
}

// Clear empties the editor.
func Clear(ctx context.Context, a Adapter) error {
	if a == nil {
		return ErrEditorUnavailable
	}
	return a.Apply(ctx, "", molecule.FormatLineNotation)
}
