// Package lookup queries PubChem for facts about the structure in the
// input field and builds links to related chemistry resources.
//
// Lookups run outside the synchronization core. They take the current
// line notation as input and never modify the field or the editor.
package lookup
