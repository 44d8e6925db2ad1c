package editor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/dshills/molsync/internal/molecule"
)

func TestMemory_ApplyAndRead(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if err := m.Apply(ctx, " CCO ", molecule.FormatLineNotation); err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}
	got, err := m.ReadLineNotation(ctx)
	if err != nil {
		t.Fatalf("ReadLineNotation() failed: %v", err)
	}
	if got != "CCO" {
		t.Errorf("ReadLineNotation() = %q, want CCO", got)
	}
}

func TestMemory_ApplyRejected(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Apply(ctx, "CCO", molecule.FormatLineNotation)

	err := m.Apply(ctx, "CC(", molecule.FormatLineNotation)
	if !errors.Is(err, ErrApplyRejected) {
		t.Fatalf("Apply() error = %v, want ErrApplyRejected", err)
	}
	var opErr *OpError
	if !errors.As(err, &opErr) || opErr.Op != "apply" {
		t.Errorf("expected *OpError for apply, got %T", err)
	}
	if m.Current() != "CCO" {
		t.Errorf("rejected apply changed the structure to %q", m.Current())
	}
}

func TestMemory_Clear(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Apply(ctx, "CCO", molecule.FormatLineNotation)

	if err := Clear(ctx, m); err != nil {
		t.Fatalf("Clear() failed: %v", err)
	}
	if m.Current() != "" {
		t.Errorf("Current() = %q after clear", m.Current())
	}
	if err := Clear(ctx, nil); !errors.Is(err, ErrEditorUnavailable) {
		t.Errorf("Clear(nil) = %v, want ErrEditorUnavailable", err)
	}
}

func TestMemory_StructureFile(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	mol := "ethanol\n  Ketcher\n\n  3  2  0  0  0  0  0  0  0  0999 V2000\nM  END"

	if err := m.Apply(ctx, mol, molecule.FormatStructureFile); err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}
	got, err := m.ReadStructureFile(ctx, molecule.VersionLegacy)
	if err != nil || got != mol {
		t.Errorf("ReadStructureFile() = %q, %v", got, err)
	}
	line, _ := m.ReadLineNotation(ctx)
	if line != "" {
		t.Errorf("ReadLineNotation() = %q, want empty for a structure file", line)
	}
}

func TestMemory_ReadFailure(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.FailReads(errors.New("widget not ready"))

	if _, err := m.ReadLineNotation(ctx); err == nil {
		t.Fatal("expected read error")
	}
	m.FailReads(nil)
	if _, err := m.ReadLineNotation(ctx); err != nil {
		t.Errorf("read after recovery failed: %v", err)
	}
}

func TestMemory_ChangeEvents(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	sub := m.Subscribing()

	var fired atomic.Int32
	id, err := sub.Subscribe(ChangeEvent, func() { fired.Add(1) })
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}

	_ = m.Apply(ctx, "CCO", molecule.FormatLineNotation)
	m.Edit("CCN")
	if fired.Load() != 2 {
		t.Errorf("fired = %d, want 2 (apply echo and user edit)", fired.Load())
	}

	if err := sub.Unsubscribe(ChangeEvent, id); err != nil {
		t.Fatalf("Unsubscribe() failed: %v", err)
	}
	m.Edit("CCC")
	if fired.Load() != 2 {
		t.Errorf("handler fired after Unsubscribe")
	}

	if _, err := m.Emitting().On("selectionChange", func() {}); err == nil {
		t.Error("expected error for unknown event")
	}
}
