// Package app wires molsync's components together: configuration, logging,
// the Lua plugin, the synchronization controller with its editor, the
// lookup client, the terminal UI and the metrics endpoint.
package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

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

// ShutdownTimeout bounds the graceful part of Shutdown.
const ShutdownTimeout = 5 * time.Second

// Options configures the application.
type Options struct {
	// Config selects the configuration sources.
	Config config.Options

	// Screen replaces the terminal.
	Screen tcell.Screen

	// LookupField is answered by the lookup key. Empty means IUPAC name.
	LookupField lookup.Field

	// Watch reloads the configuration file when it changes.
	Watch bool

	// LogOutput receives logs when no log file is configured. Nil
	// discards them, which keeps the terminal clean.
	LogOutput io.Writer
}

// Application owns every running component.
type Application struct {
	cfg     *config.Config
	log     *logging.Logger
	logFile io.Closer

	plugin  *plugin.Plugin
	presets []molecule.Preset

	registry *prometheus.Registry
	ctl      *syncer.Controller
	mem      *editor.Memory

	lookup      *lookup.Client
	lookupField lookup.Field

	ui      *tui.UI
	watcher *config.Watcher

	mu      sync.Mutex
	metrics *metricsServer

	running      atomic.Bool
	shutdownOnce sync.Once
	shutdownErr  error
}

// New loads the configuration and starts every component except the
// terminal UI and the metrics endpoint, which Run starts.
func New(opts Options) (*Application, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, &InitError{Component: "config", Err: err}
	}

	app := &Application{cfg: cfg}
	if err := newBootstrapper(app, opts).bootstrap(); err != nil {
		return nil, err
	}
	app.log.Debug("started with outbound %s, inbound %s", cfg.Sync.OutboundDelay, cfg.Sync.InboundDelay)
	return app, nil
}

// Config returns the configuration the application started with.
func (app *Application) Config() *config.Config {
	return app.cfg
}

// Controller returns the synchronization controller.
func (app *Application) Controller() *syncer.Controller {
	return app.ctl
}

// Editor returns the structure editor shown in the editor pane.
func (app *Application) Editor() *editor.Memory {
	return app.mem
}

// Presets returns the merged preset list.
func (app *Application) Presets() []molecule.Preset {
	return append([]molecule.Preset(nil), app.presets...)
}

// Registry returns the metrics registry.
func (app *Application) Registry() *prometheus.Registry {
	return app.registry
}

// MetricsAddr returns the bound metrics address, or "" when disabled.
func (app *Application) MetricsAddr() string {
	app.mu.Lock()
	defer app.mu.Unlock()
	if app.metrics == nil {
		return ""
	}
	return app.metrics.Addr()
}

// Run serves the terminal UI until the user quits or ctx is cancelled,
// then shuts everything down.
func (app *Application) Run(ctx context.Context) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	if addr := app.cfg.Metrics.Addr; addr != "" {
		m, err := startMetrics(addr, app.registry, app.log)
		if err != nil {
			return multierr.Append(&ComponentError{Component: "metrics", Action: "start", Err: err}, app.Shutdown())
		}
		app.mu.Lock()
		app.metrics = m
		app.mu.Unlock()
	}

	err := app.ui.Run(ctx)
	if err != nil {
		err = &ComponentError{Component: "ui", Err: err}
	}
	return multierr.Append(err, app.Shutdown())
}

// Shutdown stops every component in reverse start order. It is safe to
// call more than once; later calls return the first result.
func (app *Application) Shutdown() error {
	app.shutdownOnce.Do(func() {
		app.shutdownErr = app.shutdown()
	})
	return app.shutdownErr
}

func (app *Application) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	var err error
	if app.watcher != nil {
		err = multierr.Append(err, app.watcher.Close())
	}

	app.mu.Lock()
	m := app.metrics
	app.mu.Unlock()
	if m != nil {
		err = multierr.Append(err, m.Shutdown(ctx))
	}

	if cerr := app.ctl.Close(); cerr != nil {
		err = multierr.Append(err, &ComponentError{Component: "controller", Action: "close", Err: cerr})
	}
	if app.plugin != nil {
		app.plugin.Close()
	}

	if err != nil {
		app.log.Warn("shutdown: %v", err)
	} else {
		app.log.Debug("shutdown complete")
	}
	if app.logFile != nil {
		err = multierr.Append(err, app.logFile.Close())
	}
	if ctx.Err() != nil {
		err = multierr.Append(err, ErrShutdownTimeout)
	}
	return err
}

// reload applies a changed configuration file. Delays take effect from the
// next armed timer; the log level changes immediately.
func (app *Application) reload(cfg *config.Config) {
	app.ctl.SetDelays(cfg.Sync.OutboundDelay, cfg.Sync.InboundDelay)
	app.log.SetLevel(logging.ParseLevel(cfg.Logging.Level))
	app.log.Info("config reloaded: outbound %s, inbound %s, level %s",
		cfg.Sync.OutboundDelay, cfg.Sync.InboundDelay, cfg.Logging.Level)
}

// lookupAnswer serves the UI's lookup key.
func (app *Application) lookupAnswer(ctx context.Context, smiles string) (string, error) {
	res, err := app.lookup.Lookup(ctx, smiles, app.lookupField)
	if err != nil {
		return "", err
	}
	value := res.Value
	if len(res.Values) > 0 {
		value = strings.Join(res.Values, ", ")
	}
	return fmt.Sprintf("%s: %s", res.Field, value), nil
}
