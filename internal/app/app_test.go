package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/google/go-cmp/cmp"

	"github.com/dshills/molsync/internal/config"
	"github.com/dshills/molsync/internal/logging"
	"github.com/dshills/molsync/internal/lookup"
	"github.com/dshills/molsync/internal/molecule"
)

const pluginScript = `
presets = { { name = "Benzene", text = "c1ccccc1" } }

function validate(text, format)
  if text == "CCCC" then
    return false, "no butane"
  end
end
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestApp(t *testing.T, opts Options) *Application {
	t.Helper()
	if opts.Config.Environ == nil {
		opts.Config.Environ = []string{}
	}
	if opts.Screen == nil {
		opts.Screen = tcell.NewSimulationScreen("UTF-8")
	}
	a, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown() })
	return a
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestNew_PresetsAndPlugin(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "rules.lua", pluginScript)
	cfgPath := writeFile(t, dir, "molsync.toml", `
[plugin]
script = "`+script+`"

[[presets]]
name = "Ethanol"
text = "CCO"

[[presets]]
name = "Fluoxetine"
text = "CCC"
`)

	a := newTestApp(t, Options{Config: config.Options{Path: cfgPath}})

	var names []string
	for _, p := range a.Presets() {
		names = append(names, p.Name)
	}
	want := []string{"Benzyl titanium", "Pregabalin", "Fluoxetine", "Ethanol", "Benzene"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("preset names mismatch (-want +got):\n%s", diff)
	}

	ctl := a.Controller()
	ctl.OnTextChange("CCCC")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := ctl.WaitIdle(ctx); err != nil {
		t.Fatal(err)
	}
	v := ctl.Buffer().Validity()
	if v.Valid || v.Reason != "no butane" {
		t.Errorf("Validity() = %+v, want the plugin's rejection", v)
	}

	if st := ctl.Snapshot(); st.Strategy != "subscribe" {
		t.Errorf("Strategy = %q, want subscribe", st.Strategy)
	}
}

func TestNew_Errors(t *testing.T) {
	dir := t.TempDir()
	badScript := writeFile(t, dir, "bad.lua", `this is not lua`)

	tests := []struct {
		name      string
		opts      Options
		component string
		is        error
	}{
		{
			name:      "missing config file",
			opts:      Options{Config: config.Options{Path: filepath.Join(dir, "absent.toml")}},
			component: "config",
			is:        config.ErrFileNotFound,
		},
		{
			name:      "invalid setting",
			opts:      Options{Config: config.Options{Overrides: map[string]any{"sync.outboundDelay": "-1s"}}},
			component: "config",
			is:        config.ErrInvalid,
		},
		{
			name:      "broken plugin",
			opts:      Options{Config: config.Options{Overrides: map[string]any{"plugin.script": badScript}}},
			component: "plugin",
		},
		{
			name:      "unknown lookup field",
			opts:      Options{LookupField: lookup.Field("boiling-point")},
			component: "lookup",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Config.Environ = []string{}
			tt.opts.Screen = tcell.NewSimulationScreen("UTF-8")
			_, err := New(tt.opts)
			var ie *InitError
			if !errors.As(err, &ie) || ie.Component != tt.component {
				t.Fatalf("New() error = %v, want an InitError for %s", err, tt.component)
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("New() error = %v, want %v", err, tt.is)
			}
		})
	}
}

func TestApplication_RunServesMetrics(t *testing.T) {
	a := newTestApp(t, Options{Config: config.Options{
		Overrides: map[string]any{"metrics.addr": "127.0.0.1:0"},
	}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	eventually(t, "metrics server", func() bool { return a.MetricsAddr() != "" })
	base := "http://" + a.MetricsAddr()

	body := get(t, base+"/metrics")
	if !strings.Contains(body, "molsync_connection_state") {
		t.Errorf("/metrics does not expose the connection gauge:\n%s", body)
	}
	if got := get(t, base+"/healthz"); got != "ok" {
		t.Errorf("/healthz = %q", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if err := a.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run() error = %v, want ErrAlreadyRunning", err)
	}
	if err := a.Shutdown(); err != nil {
		t.Errorf("Shutdown() after Run = %v", err)
	}
}

func get(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestApplication_ReloadsConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "molsync.yaml", "logging:\n  level: info\n")

	a := newTestApp(t, Options{Config: config.Options{Path: cfgPath}, Watch: true})
	if a.log.Level() != logging.LevelInfo {
		t.Fatalf("Level() = %v, want info", a.log.Level())
	}

	writeFile(t, dir, "molsync.yaml", "logging:\n  level: debug\nsync:\n  outboundDelay: 50ms\n")
	eventually(t, "reload", func() bool { return a.log.Level() == logging.LevelDebug })
}

func TestApplication_LookupAnswer(t *testing.T) {
	a := newTestApp(t, Options{LookupField: lookup.FieldSearch})

	got, err := a.lookupAnswer(context.Background(), "CCO")
	if err != nil {
		t.Fatalf("lookupAnswer() error = %v", err)
	}
	if want := "search: " + lookup.SearchURL("CCO"); got != want {
		t.Errorf("lookupAnswer() = %q, want %q", got, want)
	}
}

func TestNewLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "molsync.log")
	log, closer, err := NewLogger(config.LoggingConfig{Level: "warn", File: path}, nil)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	log.Info("hidden")
	log.Warn("shown")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(b), "hidden") || !strings.Contains(string(b), "shown") {
		t.Errorf("log file = %q", b)
	}

	if _, closer, err := NewLogger(config.LoggingConfig{Level: "info"}, nil); err != nil || closer != nil {
		t.Errorf("NewLogger() without file = %v, %v", closer, err)
	}
}

func TestPresets_WithoutPlugin(t *testing.T) {
	cfg := config.Default()
	cfg.Presets = []molecule.Preset{{Name: "Pregabalin", Text: "C"}, {Name: "Water", Text: " O "}}

	got := Presets(cfg, nil)
	if len(got) != 4 {
		t.Fatalf("Presets() = %v", got)
	}
	if got[1].Text != molecule.DefaultPresets()[1].Text {
		t.Errorf("built-in preset was overridden: %+v", got[1])
	}
	if got[3] != (molecule.Preset{Name: "Water", Text: "O"}) {
		t.Errorf("Presets()[3] = %+v", got[3])
	}
	if Rules(nil) != nil {
		t.Error("Rules(nil) should be empty")
	}
}

func TestErrors(t *testing.T) {
	base := errors.New("boom")

	ie := &InitError{Component: "plugin", Err: base}
	if ie.Error() != "initializing plugin: boom" || !errors.Is(ie, base) {
		t.Errorf("InitError = %q", ie.Error())
	}

	tests := []struct {
		err  *ComponentError
		want string
	}{
		{&ComponentError{Component: "metrics", Action: "start", Err: base}, "metrics: start: boom"},
		{&ComponentError{Component: "metrics", Action: "start"}, "metrics: start"},
		{&ComponentError{Component: "ui", Err: base}, "ui: boom"},
		{&ComponentError{Component: "ui"}, "ui"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
	var nilErr *ComponentError
	if nilErr.Error() != "" || nilErr.Unwrap() != nil {
		t.Error("nil ComponentError should be empty")
	}
}
