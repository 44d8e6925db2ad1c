package tui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/molsync/internal/syncer"
)

// Screen rows.
const (
	rowTitle = iota
	rowField
	rowValidity
	rowEditor
	rowActions
	rowStatus
	rowPresets
)

const (
	fieldLabel  = "SMILES > "
	editorLabel = "Editor > "
)

var (
	styleDefault  = tcell.StyleDefault
	styleTitle    = tcell.StyleDefault.Bold(true)
	styleFocused  = tcell.StyleDefault.Reverse(true)
	styleValid    = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	styleInvalid  = tcell.StyleDefault.Foreground(tcell.ColorRed)
	styleEnabled  = tcell.StyleDefault.Bold(true)
	styleDisabled = tcell.StyleDefault.Dim(true)
	styleHelp     = tcell.StyleDefault.Foreground(tcell.ColorGray)
)

const helpLine = "Tab switch  Enter apply  Ctrl+L clear  Ctrl+G lookup  Esc quit"

// draw repaints the whole screen. Only the Run goroutine calls it.
func (u *UI) draw() {
	u.mu.Lock()
	st, draft, pane, status := u.state, u.draft, u.pane, u.status
	u.mu.Unlock()
	structure := u.mem.Current()

	s := u.screen
	s.Clear()
	width, height := s.Size()

	title := fmt.Sprintf("molsync  %s", st.Connection)
	if st.Strategy != "" {
		title += " via " + st.Strategy
	}
	if st.OutboundPending {
		title += "  [push pending]"
	}
	if st.InboundPending {
		title += "  [pull pending]"
	}
	u.text(0, rowTitle, width, styleTitle, title)

	u.line(rowField, width, fieldLabel, draft, pane == PaneField)
	u.line(rowEditor, width, editorLabel, structure, pane == PaneEditor)

	switch {
	case st.Validity.Valid:
		u.text(len(fieldLabel), rowValidity, width, styleValid, "valid "+st.Validity.Format.String())
	case st.Validity.Reason != "":
		u.text(len(fieldLabel), rowValidity, width, styleInvalid, st.Validity.Reason)
	}

	u.actions(st, width)
	u.text(0, rowStatus, width, styleDefault, status)

	for i, p := range u.presets {
		row := rowPresets + i
		if i >= 12 || row >= height-1 {
			break
		}
		u.text(0, row, width, styleDefault, fmt.Sprintf("F%-2d %s", i+1, p.Name))
	}
	if height > rowPresets {
		u.text(0, height-1, width, styleHelp, helpLine)
	}

	// Cursor at the end of the focused line.
	if pane == PaneField {
		s.ShowCursor(len(fieldLabel)+len([]rune(draft)), rowField)
	} else {
		s.ShowCursor(len(editorLabel)+len([]rune(structure)), rowEditor)
	}
	s.Show()
}

func (u *UI) line(row, width int, label, value string, focused bool) {
	u.text(0, row, width, styleDefault, label)
	style := styleDefault
	if focused {
		style = styleFocused
	}
	u.text(len(label), row, width, style, value)
}

func (u *UI) actions(st syncer.State, width int) {
	x := 0
	for _, a := range []struct {
		name    string
		enabled bool
	}{
		{"[copy]", st.Affordances.Copy},
		{"[lookup]", st.Affordances.Lookup},
		{"[apply]", st.Affordances.Apply},
	} {
		style := styleDisabled
		if a.enabled {
			style = styleEnabled
		}
		x = u.text(x, rowActions, width, style, a.name) + 1
	}
}

// text writes s at (x, y), clipped to width, and returns the column after
// the last rune written.
func (u *UI) text(x, y, width int, style tcell.Style, s string) int {
	for _, r := range s {
		if x >= width {
			break
		}
		u.screen.SetContent(x, y, r, nil, style)
		x++
	}
	return x
}
