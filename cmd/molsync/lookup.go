package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/sjson"

	"github.com/dshills/molsync/internal/app"
	"github.com/dshills/molsync/internal/lookup"
	"github.com/dshills/molsync/internal/molecule"
)

func newLookupCommand(g *globalFlags) *cobra.Command {
	var (
		fields []string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "lookup SMILES",
		Short: "Look a molecule up on PubChem and related databases",
		Long: fmt.Sprintf(`lookup resolves a SMILES string to PubChem data and reference links.

Fields: %s`, joinFields(lookup.Fields)),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			smiles := molecule.Normalize(args[0])
			if v := molecule.Check(smiles, molecule.FormatLineNotation); !v.Valid {
				return fmt.Errorf("%q is not a valid SMILES: %s", smiles, v.Reason)
			}

			wanted := make([]lookup.Field, 0, len(fields))
			for _, name := range fields {
				f, err := lookup.ParseField(name)
				if err != nil {
					return err
				}
				wanted = append(wanted, f)
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
			client := app.NewLookupClient(cfg.Lookup, log)

			out := cmd.OutOrStdout()
			doc := "{}"
			if doc, err = sjson.Set(doc, "query", smiles); err != nil {
				return err
			}

			failed := 0
			for _, f := range wanted {
				res, lerr := client.Lookup(cmd.Context(), smiles, f)
				if lerr != nil && !errors.Is(lerr, lookup.ErrNotFound) {
					// Transport failures abort; a miss is an answer.
					return fmt.Errorf("looking up %s: %w", f, lerr)
				}
				if lerr != nil {
					failed++
				}

				if !asJSON {
					value := res.Value
					switch {
					case lerr != nil:
						value = "not found"
					case len(res.Values) > 0:
						value = strings.Join(res.Values, "; ")
					}
					fmt.Fprintf(out, "%-15s %s\n", f+":", value)
					continue
				}

				if res.CID != 0 {
					if doc, err = sjson.Set(doc, "cid", res.CID); err != nil {
						return err
					}
				}
				path := "results." + string(f)
				var value any = res.Value
				switch {
				case lerr != nil:
					value = nil
				case len(res.Values) > 0:
					value = res.Values
				}
				if doc, err = sjson.Set(doc, path, value); err != nil {
					return err
				}
			}

			if asJSON {
				fmt.Fprintln(out, doc)
			}
			if len(wanted) > 0 && failed == len(wanted) {
				return fmt.Errorf("%s: %w", smiles, lookup.ErrNotFound)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&fields, "field", "f", []string{string(lookup.FieldCID), string(lookup.FieldIUPAC)},
		"Fields to look up, comma separated")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print a JSON object")
	return cmd
}

func joinFields(fields []lookup.Field) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
