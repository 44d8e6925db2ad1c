package app

import (
	"fmt"
	"io"
	"os"

	"github.com/gdamore/tcell/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/dshills/molsync/internal/config"
	"github.com/dshills/molsync/internal/editor"
	"github.com/dshills/molsync/internal/logging"
	"github.com/dshills/molsync/internal/lookup"
	"github.com/dshills/molsync/internal/molecule"
	"github.com/dshills/molsync/internal/plugin"
	"github.com/dshills/molsync/internal/syncer"
	"github.com/dshills/molsync/internal/tui"
)

// NewLogger builds the logger described by cfg. With no log file it writes
// to fallback, or discards everything when fallback is nil. The returned
// closer is nil unless a file was opened.
func NewLogger(cfg config.LoggingConfig, fallback io.Writer) (*logging.Logger, io.Closer, error) {
	level := logging.ParseLevel(cfg.Level)
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		return logging.New(logging.Config{Level: level, Output: f, Prefix: "molsync"}), f, nil
	}
	if fallback == nil {
		return logging.Null(), nil, nil
	}
	return logging.New(logging.Config{Level: level, Output: fallback, Prefix: "molsync"}), nil, nil
}

// LoadPlugin loads the configured script. It returns nil when none is set.
func LoadPlugin(cfg *config.Config, log *logging.Logger) (*plugin.Plugin, error) {
	if cfg.Plugin.Script == "" {
		return nil, nil
	}
	return plugin.Load(cfg.Plugin.Script, plugin.WithLogger(log))
}

// Presets merges the built-in presets with those from the configuration
// and the plugin. Earlier sources win on name clashes.
func Presets(cfg *config.Config, p *plugin.Plugin) []molecule.Preset {
	var fromPlugin []molecule.Preset
	if p != nil {
		fromPlugin = p.Presets()
	}
	return molecule.MergePresets(molecule.DefaultPresets(), cfg.Presets, fromPlugin)
}

// Rules returns the extra validation rules contributed by the plugin.
func Rules(p *plugin.Plugin) []molecule.Validator {
	if p == nil || !p.HasValidator() {
		return nil
	}
	return []molecule.Validator{p.Validator()}
}

// NewLookupClient builds a PubChem client from cfg.
func NewLookupClient(cfg config.LookupConfig, log *logging.Logger) *lookup.Client {
	return lookup.NewClient(
		lookup.WithBaseURL(cfg.BaseURL),
		lookup.WithViewURL(cfg.ViewURL),
		lookup.WithUserAgent(cfg.UserAgent),
		lookup.WithTimeout(cfg.Timeout),
		lookup.WithCache(cfg.CacheTTL, cfg.CacheSize),
		lookup.WithLogger(log),
	)
}

// NewController builds a controller from the sync settings.
func NewController(cfg config.SyncConfig, log *logging.Logger, reg prometheus.Registerer, rules []molecule.Validator) *syncer.Controller {
	return syncer.New(
		syncer.WithLogger(log),
		syncer.WithDelays(cfg.OutboundDelay, cfg.InboundDelay),
		syncer.WithPollInterval(cfg.PollInterval),
		syncer.WithCallTimeout(cfg.CallTimeout),
		syncer.WithRegisterer(reg),
		syncer.WithRules(rules...),
	)
}

// bootstrapper initializes components in dependency order and unwinds the
// ones already started when a later step fails.
type bootstrapper struct {
	app       *Application
	opts      Options
	initOrder []string
}

func newBootstrapper(app *Application, opts Options) *bootstrapper {
	return &bootstrapper{
		app:       app,
		opts:      opts,
		initOrder: make([]string, 0, 8),
	}
}

func (b *bootstrapper) bootstrap() error {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"logger", b.initLogger},
		{"plugin", b.initPlugin},
		{"controller", b.initController},
		{"editor", b.initEditor},
		{"lookup", b.initLookup},
		{"ui", b.initUI},
		{"watcher", b.initWatcher},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			b.cleanup()
			return &InitError{Component: step.name, Err: err}
		}
		b.initOrder = append(b.initOrder, step.name)
	}
	return nil
}

func (b *bootstrapper) initLogger() error {
	log, closer, err := NewLogger(b.app.cfg.Logging, b.opts.LogOutput)
	if err != nil {
		return err
	}
	b.app.log = log
	b.app.logFile = closer
	return nil
}

func (b *bootstrapper) initPlugin() error {
	p, err := LoadPlugin(b.app.cfg, b.app.log)
	if err != nil {
		return err
	}
	b.app.plugin = p
	b.app.presets = Presets(b.app.cfg, p)
	if p != nil {
		b.app.log.Info("plugin %s loaded", p.Name())
	}
	return nil
}

func (b *bootstrapper) initController() error {
	b.app.registry = newRegistry()
	b.app.ctl = NewController(b.app.cfg.Sync, b.app.log, b.app.registry, Rules(b.app.plugin))
	return nil
}

func (b *bootstrapper) initEditor() error {
	b.app.mem = editor.NewMemory()
	return b.app.ctl.Attach(b.app.mem.Subscribing())
}

func (b *bootstrapper) initLookup() error {
	field := b.opts.LookupField
	if field == "" {
		field = lookup.FieldIUPAC
	}
	if _, err := lookup.ParseField(string(field)); err != nil {
		return err
	}
	b.app.lookupField = field
	b.app.lookup = NewLookupClient(b.app.cfg.Lookup, b.app.log)
	return nil
}

func (b *bootstrapper) initUI() error {
	screen := b.opts.Screen
	if screen == nil {
		s, err := tcell.NewScreen()
		if err != nil {
			return err
		}
		screen = s
	}
	b.app.ui = tui.New(screen, b.app.ctl, b.app.mem,
		tui.WithPresets(b.app.presets),
		tui.WithLookup(b.app.lookupAnswer, b.app.cfg.Lookup.Timeout),
		tui.WithLogger(b.app.log),
	)
	return nil
}

func (b *bootstrapper) initWatcher() error {
	if !b.opts.Watch || b.opts.Config.Path == "" {
		return nil
	}
	w, err := config.Watch(b.opts.Config, b.app.reload,
		config.WithWatchLogger(b.app.log),
		config.WithErrorHandler(func(err error) {
			b.app.log.Warn("config reload: %v", err)
		}),
	)
	if err != nil {
		return err
	}
	b.app.watcher = w
	return nil
}

// cleanup releases initialized components in reverse order.
func (b *bootstrapper) cleanup() {
	var err error
	for i := len(b.initOrder) - 1; i >= 0; i-- {
		err = multierr.Append(err, b.cleanupComponent(b.initOrder[i]))
	}
	if err != nil && b.app.log != nil {
		b.app.log.Warn("cleanup after failed start: %v", err)
	}
}

func (b *bootstrapper) cleanupComponent(name string) error {
	switch name {
	case "watcher":
		if b.app.watcher != nil {
			return b.app.watcher.Close()
		}
	case "controller":
		return b.app.ctl.Close()
	case "plugin":
		if b.app.plugin != nil {
			b.app.plugin.Close()
		}
	case "logger":
		if b.app.logFile != nil {
			return b.app.logFile.Close()
		}
	}
	return nil
}
