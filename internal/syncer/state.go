package syncer

import (
	"github.com/google/uuid"

	"github.com/dshills/molsync/internal/editor"
	"github.com/dshills/molsync/internal/field"
	"github.com/dshills/molsync/internal/logging"
	"github.com/dshills/molsync/internal/molecule"
)

// ConnState is the connection state of the controller.
type ConnState int

const (
	// StateUninitialized means no editor instance has been supplied yet.
	StateUninitialized ConnState = iota
	// StateReady means an editor instance is connected.
	StateReady
	// StateTornDown means the instance was removed or replaced.
	StateTornDown
)

// String returns the state name.
func (s ConnState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateTornDown:
		return "torn-down"
	default:
		return "unknown"
	}
}

// State is a point-in-time copy of the synchronization state.
type State struct {
	Session    uuid.UUID
	Connection ConnState
	Strategy   string

	BufferText        string
	LastAppliedText   string
	Focused           bool
	SyncingFromEditor bool
	OutboundPending   bool
	InboundPending    bool

	Validity    molecule.Validity
	Affordances field.Affordances
}

// session is the per-instance part of the synchronization state. It is
// created when an editor instance is attached and discarded when the
// instance is replaced or torn down. Only loop tasks touch it.
type session struct {
	id       uuid.UUID
	adapter  editor.Adapter
	conn     editor.Connection
	strategy string
	log      *logging.Logger

	lastApplied       string
	syncingFromEditor bool

	inflight     bool
	inflightText string

	torn bool
}
