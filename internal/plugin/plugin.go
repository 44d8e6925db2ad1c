// Package plugin runs an optional Lua script that extends molsync.
//
// A script may define a global presets table, each entry a table with name
// and text fields, and a global function validate(text, format). validate
// returns nothing or true to accept the text, or false and a reason to
// mark it invalid. The molsync table offers normalize, detect_format and
// log helpers. The script runs in a sandbox without io, os, package or
// code loading.
package plugin

import (
	"fmt"
	"os"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/molsync/internal/logging"
	"github.com/dshills/molsync/internal/molecule"
)

// Plugin is a loaded script.
type Plugin struct {
	name    string
	st      *state
	log     *logging.Logger
	presets []molecule.Preset
}

// Option configures a Plugin.
type Option func(*settings)

type settings struct {
	timeout time.Duration
	log     *logging.Logger
}

// WithTimeout bounds each script call.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger backing molsync.log.
func WithLogger(l *logging.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.log = l
		}
	}
}

// Load reads and runs the script at path.
func Load(path string, opts ...Option) (*Plugin, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plugin: %w", err)
	}
	return LoadString(path, string(code), opts...)
}

// LoadString runs a script given as source.
func LoadString(name, code string, opts ...Option) (*Plugin, error) {
	s := settings{
		timeout: DefaultExecutionTimeout,
		log:     logging.Null(),
	}
	for _, opt := range opts {
		opt(&s)
	}

	p := &Plugin{
		name: name,
		st:   newState(s.timeout),
		log:  s.log.WithComponent("plugin").WithField("script", name),
	}
	p.installAPI()

	if err := p.st.do(func(L *lua.LState) error { return L.DoString(code) }); err != nil {
		p.Close()
		return nil, &Error{Script: name, Op: "load", Err: err}
	}

	presets, err := p.readPresets()
	if err != nil {
		p.Close()
		return nil, err
	}
	p.presets = presets
	p.log.Debug("loaded with %d presets", len(presets))
	return p, nil
}

// Name returns the script name.
func (p *Plugin) Name() string {
	return p.name
}

// Presets returns the presets the script declared.
func (p *Plugin) Presets() []molecule.Preset {
	return append([]molecule.Preset(nil), p.presets...)
}

// HasValidator reports whether the script defines validate.
func (p *Plugin) HasValidator() bool {
	has := false
	_ = p.st.do(func(L *lua.LState) error {
		_, has = L.GetGlobal("validate").(*lua.LFunction)
		return nil
	})
	return has
}

// Validate runs the script's validate function. A script without one, or
// one that fails, accepts the text.
func (p *Plugin) Validate(text string, format molecule.Format) (string, bool) {
	ret, found, err := p.st.call("validate", 2, lua.LString(text), lua.LString(format.String()))
	if !found {
		return "", true
	}
	if err != nil {
		p.log.Warn("validate: %v", err)
		return "", true
	}

	switch {
	case len(ret) == 0 || ret[0] == lua.LNil || ret[0] == lua.LTrue:
		return "", true
	case ret[0] == lua.LFalse:
		reason := "rejected by " + p.name
		if len(ret) > 1 && ret[1] != lua.LNil {
			reason = lua.LVAsString(ret[1])
		}
		return reason, false
	default:
		// A returned string is a reason.
		if s, ok := ret[0].(lua.LString); ok {
			return string(s), false
		}
		return "", true
	}
}

// Validator returns Validate as a validation rule.
func (p *Plugin) Validator() molecule.Validator {
	return p.Validate
}

// Close releases the Lua state.
func (p *Plugin) Close() {
	p.st.close()
}

func (p *Plugin) readPresets() ([]molecule.Preset, error) {
	var out []molecule.Preset
	err := p.st.do(func(L *lua.LState) error {
		v := L.GetGlobal("presets")
		if v == lua.LNil {
			return nil
		}
		tbl, ok := v.(*lua.LTable)
		if !ok {
			return fmt.Errorf("presets must be a table, got %s", v.Type())
		}

		var bad error
		tbl.ForEach(func(k, entry lua.LValue) {
			if bad != nil {
				return
			}
			et, ok := entry.(*lua.LTable)
			if !ok {
				bad = fmt.Errorf("preset %s must be a table", lua.LVAsString(k))
				return
			}
			out = append(out, molecule.Preset{
				Name: lua.LVAsString(et.RawGetString("name")),
				Text: lua.LVAsString(et.RawGetString("text")),
			})
		})
		return bad
	})
	if err != nil {
		return nil, &Error{Script: p.name, Op: "presets", Err: err}
	}
	return out, nil
}

// installAPI exposes the molsync table to the script.
func (p *Plugin) installAPI() {
	_ = p.st.do(func(L *lua.LState) error {
		api := L.NewTable()
		L.SetFuncs(api, map[string]lua.LGFunction{
			"normalize": func(L *lua.LState) int {
				L.Push(lua.LString(molecule.Normalize(L.CheckString(1))))
				return 1
			},
			"detect_format": func(L *lua.LState) int {
				L.Push(lua.LString(molecule.DetectFormat(L.CheckString(1)).String()))
				return 1
			},
			"log": func(L *lua.LState) int {
				p.log.Info("%s", L.CheckString(1))
				return 0
			},
		})
		L.SetGlobal("molsync", api)
		return nil
	})
}

// Error reports a script failure.
type Error struct {
	Script string
	Op     string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("plugin %s: %s: %v", e.Script, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
