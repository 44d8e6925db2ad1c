package molecule

// Preset is a named example representation offered by the UI.
type Preset struct {
	Name string `toml:"name" yaml:"name"`
	Text string `toml:"text" yaml:"text"`
}

// DefaultPresets returns the built-in examples.
func DefaultPresets() []Preset {
	return []Preset{
		{Name: "Benzyl titanium", Text: "C(C1=CC=CC=C1)[Ti](CC1=CC=CC=C1)(CC1=CC=CC=C1)CC1=CC=CC=C1"},
		{Name: "Pregabalin", Text: "O=C(O)C[C@H](CC(C)C)CN"},
		{Name: "Fluoxetine", Text: "CNCCC(C1=CC=CC=C1)OC2=CC=C(C=C2)C(F)(F)F"},
	}
}

// MergePresets appends extra presets, dropping duplicates by name.
// Earlier entries win.
func MergePresets(base []Preset, extra ...[]Preset) []Preset {
	seen := make(map[string]bool, len(base))
	out := make([]Preset, 0, len(base))
	add := func(p Preset) {
		if p.Name == "" || Normalize(p.Text) == "" || seen[p.Name] {
			return
		}
		seen[p.Name] = true
		out = append(out, Preset{Name: p.Name, Text: Normalize(p.Text)})
	}
	for _, p := range base {
		add(p)
	}
	for _, list := range extra {
		for _, p := range list {
			add(p)
		}
	}
	return out
}
