// Package syncer keeps the molecule input field and the structure editor
// consistent.
//
// The Controller pushes field edits to the editor (outbound) and pulls
// editor edits into the field (inbound). Each direction has its own
// debounce timer, so bursts collapse into one action and a new trigger
// always supersedes the pending one:
//
//	keystroke ─▶ field ─▶ outbound debounce (400ms) ─▶ editor.Apply
//	editor change ─▶ inbound debounce (500ms) ─▶ editor.Read ─▶ field
//
// Three pieces of state keep the two directions from fighting:
//
//   - focus: outbound fires only while the field is focused, inbound
//     never overwrites a focused field.
//   - last applied text: suppresses redundant pushes and recognizes the
//     editor echoing back what was just pushed.
//   - the reentry guard: set while an inbound update is committed so the
//     field's own change notification does not re-arm the outbound path.
//     It is cleared by a follow-up loop task, after every observer of the
//     commit has run.
//
// All state lives on a schedule.Loop. Editor calls run off the loop and
// resume on it; a response arriving after the editor instance was replaced
// or torn down is discarded. No editor failure escapes the controller: a
// rejected apply or failed read leaves both sides unchanged until the next
// successful cycle.
package syncer
