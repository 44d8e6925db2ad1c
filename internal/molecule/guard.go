package molecule

import (
	"strings"
)

const molfileEnd = "M  END"

// Validity is the outcome of the validation guard.
type Validity struct {
	Valid  bool
	Format Format
	Reason string
}

// Validator is an additional rule consulted after the built-in checks.
// It returns a reason when the text should be treated as invalid.
type Validator func(text string, format Format) (reason string, ok bool)

// Check runs the superficial structural check for the given format.
// It never looks at chemistry: valence, aromaticity and stereo are left to
// the structure editor.
func Check(text string, format Format, extra ...Validator) Validity {
	text = Normalize(text)
	v := Validity{Format: format}
	if text == "" {
		v.Reason = "empty"
		return v
	}

	switch format {
	case FormatLineNotation:
		v.Reason = checkLineNotation(text)
	case FormatStructureFile:
		v.Reason = checkStructureFile(text)
	default:
		v.Reason = "unknown format"
	}
	if v.Reason != "" {
		return v
	}

	for _, fn := range extra {
		if fn == nil {
			continue
		}
		if reason, ok := fn(text, format); !ok {
			v.Reason = reason
			if v.Reason == "" {
				v.Reason = "rejected by rule"
			}
			return v
		}
	}

	v.Valid = true
	return v
}

// lineNotationChars is the SMILES alphabet: atoms, bonds, branches,
// ring closures, charges, stereo marks and reaction separators.
const lineNotationChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789" +
	"[]()=#$:/\\.@+-%*~>"

func checkLineNotation(s string) string {
	if strings.ContainsAny(s, " \t\r\n") {
		return "whitespace inside line notation"
	}

	var parens, brackets int
	for _, r := range s {
		if !strings.ContainsRune(lineNotationChars, r) {
			return "unexpected character " + string(r)
		}
		switch r {
		case '(':
			parens++
		case ')':
			parens--
			if parens < 0 {
				return "unbalanced parentheses"
			}
		case '[':
			if brackets > 0 {
				return "nested brackets"
			}
			brackets++
		case ']':
			brackets--
			if brackets < 0 {
				return "unbalanced brackets"
			}
		}
	}
	if parens != 0 {
		return "unbalanced parentheses"
	}
	if brackets != 0 {
		return "unbalanced brackets"
	}

	switch s[0] {
	case ')', '=', '#', '$', '/', '\\', ':', '.', '>':
		return "starts with a bond or branch close"
	}
	return ""
}

func checkStructureFile(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	// header block is three lines, the counts line is the fourth
	if len(lines) < 4 {
		return "structure file too short"
	}
	hasEnd := false
	for _, l := range lines {
		if strings.TrimRight(l, " ") == molfileEnd {
			hasEnd = true
			break
		}
	}
	if !hasEnd {
		return "missing M  END"
	}
	// Normalization strips the blank title line some writers emit, so the
	// counts line is searched for rather than indexed.
	for _, l := range lines[:min(len(lines), 4)] {
		if strings.Contains(l, "V2000") || strings.Contains(l, "V3000") {
			return ""
		}
	}
	return "missing counts line version"
}
