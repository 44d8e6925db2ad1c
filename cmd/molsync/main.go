// Package main is the entry point for molsync.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dshills/molsync/internal/app"
	"github.com/dshills/molsync/internal/config"
	"github.com/dshills/molsync/internal/lookup"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// errInvalidInput makes check exit non-zero without printing twice.
var errInvalidInput = errors.New("invalid input")

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errInvalidInput) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// globalFlags are shared by every command. Only flags set on the command
// line override the configuration.
type globalFlags struct {
	configPath    string
	logLevel      string
	outboundDelay time.Duration
	inboundDelay  time.Duration
	pubchemURL    string
	metricsAddr   string
	pluginScript  string

	// environ replaces the process environment when non-nil.
	environ []string
}

func (g *globalFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&g.configPath, "config", "c", "", "Path to a .toml or .yaml configuration file")
	fs.StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.DurationVar(&g.outboundDelay, "outbound-delay", 0, "Quiet period before the field is pushed to the editor")
	fs.DurationVar(&g.inboundDelay, "inbound-delay", 0, "Quiet period before the editor is read back")
	fs.StringVar(&g.pubchemURL, "pubchem-url", "", "PubChem PUG REST base URL")
	fs.StringVar(&g.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	fs.StringVar(&g.pluginScript, "plugin", "", "Lua script adding presets and validation rules")
}

// configOptions turns the changed flags into configuration overrides.
func (g *globalFlags) configOptions(fs *pflag.FlagSet) config.Options {
	overrides := make(map[string]any)
	set := func(flag, path string, value any) {
		if fs.Changed(flag) {
			overrides[path] = value
		}
	}
	set("log-level", "logging.level", g.logLevel)
	set("outbound-delay", "sync.outboundDelay", g.outboundDelay.String())
	set("inbound-delay", "sync.inboundDelay", g.inboundDelay.String())
	set("pubchem-url", "lookup.baseURL", g.pubchemURL)
	set("metrics-addr", "metrics.addr", g.metricsAddr)
	set("plugin", "plugin.script", g.pluginScript)

	return config.Options{
		Path:      g.configPath,
		Environ:   g.environ,
		Overrides: overrides,
	}
}

func (g *globalFlags) load(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(g.configOptions(cmd.Flags()))
}

func newRootCommand() *cobra.Command {
	return buildRootCommand(&globalFlags{})
}

func buildRootCommand(g *globalFlags) *cobra.Command {
	var (
		lookupField string
		watch       bool
		logToStderr bool
	)

	cmd := &cobra.Command{
		Use:   "molsync",
		Short: "Keep a SMILES field and a structure editor in sync",
		Long: `molsync shows a SMILES input field next to a structure editor and keeps
the two synchronized in both directions. Typing in the field pushes the
molecule to the editor after a short pause; edits made in the editor flow
back into the field whenever the field is not being typed in.

Keys: Tab switches between field and editor, Enter applies the field now,
F1-F12 pick a preset, Ctrl+L clears both, Ctrl+G looks the molecule up on
PubChem, Esc quits.`,
		Version:       fmt.Sprintf("%s (%s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			field, err := lookup.ParseField(lookupField)
			if err != nil {
				return err
			}
			opts := app.Options{
				Config:      g.configOptions(cmd.Flags()),
				LookupField: field,
				Watch:       watch,
			}
			if logToStderr {
				opts.LogOutput = cmd.ErrOrStderr()
			}

			application, err := app.New(opts)
			if err != nil {
				return err
			}
			return application.Run(cmd.Context())
		},
	}

	g.register(cmd.PersistentFlags())
	cmd.Flags().StringVar(&lookupField, "lookup-field", string(lookup.FieldIUPAC), "Answer shown by Ctrl+G")
	cmd.Flags().BoolVar(&watch, "watch", true, "Reload the configuration file when it changes")
	cmd.Flags().BoolVar(&logToStderr, "log-stderr", false, "Log to stderr when no log file is configured")

	cmd.AddCommand(
		newCheckCommand(g),
		newLookupCommand(g),
		newPresetsCommand(g),
		newVersionCommand(),
	)
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "molsync %s\n", version)
	fmt.Fprintf(w, "Commit: %s\n", commit)
	fmt.Fprintf(w, "Built: %s\n", date)
}
