package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tidwall/sjson"
	"gopkg.in/yaml.v3"

	"github.com/dshills/molsync/internal/app"
)

func newPresetsCommand(g *globalFlags) *cobra.Command {
	var (
		asJSON bool
		asYAML bool
	)

	cmd := &cobra.Command{
		Use:   "presets",
		Short: "List the example molecules bound to F1 and up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if asJSON && asYAML {
				return fmt.Errorf("--json and --yaml are mutually exclusive")
			}
			cfg, err := g.load(cmd)
			if err != nil {
				return err
			}
			log, closer, err := app.NewLogger(cfg.Logging, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if closer != nil {
				defer closer.Close()
			}
			p, err := app.LoadPlugin(cfg, log)
			if err != nil {
				return err
			}
			if p != nil {
				defer p.Close()
			}
			presets := app.Presets(cfg, p)
			out := cmd.OutOrStdout()

			switch {
			case asJSON:
				doc := "[]"
				for _, preset := range presets {
					entry := map[string]string{"name": preset.Name, "text": preset.Text}
					if doc, err = sjson.Set(doc, "-1", entry); err != nil {
						return err
					}
				}
				fmt.Fprintln(out, doc)
			case asYAML:
				// The same shape as the presets section of a config file.
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(map[string]any{"presets": presets}); err != nil {
					return err
				}
				return enc.Close()
			default:
				for i, preset := range presets {
					key := "  "
					if i < 12 {
						key = fmt.Sprintf("F%d", i+1)
					}
					fmt.Fprintf(out, "%-4s %-18s %s\n", key, preset.Name, preset.Text)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print a JSON array")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print a config file presets section")
	return cmd
}
