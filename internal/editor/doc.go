// Package editor defines the capability contract of the embedded structure
// editor and the ranked strategies used to learn about its changes.
//
// The editor is opaque: it can apply a representation, read its current
// structure back as line notation or as a structure file, and may offer one
// of two change-notification APIs. Which notification strategy is used is
// decided once, when an editor instance is connected:
//
//  1. Subscriber: a native change-subscription API
//  2. Emitter: a generic event-registration API
//  3. polling at a fixed interval
//
// Memory is an in-process editor implementing the contract. The terminal UI
// uses it as its structure pane and tests use it as a collaborator.
package editor
