// Package molecule defines the textual molecule representations exchanged
// between the input field and the structure editor.
//
// Two formats are recognized: line notation (SMILES) and structure files
// (MDL molfile, V2000 or V3000). The package also provides the lightweight
// validation guard used to toggle UI affordances. The guard is superficial
// by intent; the structure editor stays the authority on whether a
// representation is accepted.
package molecule
