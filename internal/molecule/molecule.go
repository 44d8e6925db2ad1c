package molecule

import (
	"fmt"
	"strings"
)

// Format tags a representation so the editor never has to guess.
type Format int

const (
	// FormatLineNotation is a single-line SMILES string.
	FormatLineNotation Format = iota
	// FormatStructureFile is a multi-line MDL molfile.
	FormatStructureFile
)

// String returns the format name used on the editor wire.
func (f Format) String() string {
	switch f {
	case FormatLineNotation:
		return "smiles"
	case FormatStructureFile:
		return "mol"
	default:
		return "unknown"
	}
}

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "smiles", "line", "line-notation":
		return FormatLineNotation, nil
	case "mol", "molfile", "structure", "structure-file":
		return FormatStructureFile, nil
	default:
		return 0, fmt.Errorf("unknown molecule format %q", s)
	}
}

// MolfileVersion selects the structure-file dialect to read.
type MolfileVersion int

const (
	// VersionLegacy is the V2000 connection table.
	VersionLegacy MolfileVersion = iota
	// VersionExtended is the V3000 connection table.
	VersionExtended
)

// String returns the canonical dialect name.
func (v MolfileVersion) String() string {
	switch v {
	case VersionLegacy:
		return "v2000"
	case VersionExtended:
		return "v3000"
	default:
		return "unknown"
	}
}

// ParseMolfileVersion parses "v2000"/"legacy" or "v3000"/"extended".
func ParseMolfileVersion(s string) (MolfileVersion, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "v2000", "legacy", "":
		return VersionLegacy, nil
	case "v3000", "extended":
		return VersionExtended, nil
	default:
		return 0, fmt.Errorf("unknown molfile version %q", s)
	}
}

// Text is a molecule representation with its format tag and the result of
// the superficial validity check.
type Text struct {
	Value  string
	Format Format
	Valid  bool
}

// NewText normalizes value, detects its format and runs the guard.
func NewText(value string) Text {
	v := Normalize(value)
	f := DetectFormat(v)
	return Text{
		Value:  v,
		Format: f,
		Valid:  Check(v, f).Valid,
	}
}

// IsEmpty reports whether the text carries no representation.
func (t Text) IsEmpty() bool {
	return t.Value == ""
}

// Normalize returns the canonical form used for equality comparisons.
func Normalize(s string) string {
	return strings.TrimSpace(s)
}

// Equal compares two representations in canonical form.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// DetectFormat guesses the format of a normalized representation.
// Anything spanning several lines with an end marker is a structure file.
func DetectFormat(s string) Format {
	if strings.Contains(s, "\n") && strings.Contains(s, molfileEnd) {
		return FormatStructureFile
	}
	return FormatLineNotation
}
