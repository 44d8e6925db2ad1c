package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/sjson"

	"github.com/dshills/molsync/internal/app"
	"github.com/dshills/molsync/internal/molecule"
)

func newCheckCommand(g *globalFlags) *cobra.Command {
	var (
		asJSON bool
		format string
	)

	cmd := &cobra.Command{
		Use:   "check [TEXT...]",
		Short: "Run the validation guard on SMILES strings or a molfile",
		Long: `check runs the same superficial validation the input field uses, including
rules from a configured plugin. Without arguments it reads standard input:
a molfile is checked as a whole, anything else line by line.`,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			texts := args
			if len(texts) == 0 {
				if texts, err = readTexts(cmd.InOrStdin()); err != nil {
					return err
				}
			}

			var forced *molecule.Format
			if format != "" {
				f, err := molecule.ParseFormat(format)
				if err != nil {
					return err
				}
				forced = &f
			}

			rules := app.Rules(p)
			invalid := 0
			for _, text := range texts {
				f := molecule.DetectFormat(text)
				if forced != nil {
					f = *forced
				}
				v := molecule.Check(text, f, rules...)
				if !v.Valid {
					invalid++
				}
				if err := printValidity(cmd.OutOrStdout(), text, v, asJSON); err != nil {
					return err
				}
			}
			if invalid > 0 {
				return errInvalidInput
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print one JSON object per input")
	cmd.Flags().StringVar(&format, "format", "", "Force the format (smiles or mol) instead of detecting it")
	return cmd
}

// readTexts splits standard input into the texts to check.
func readTexts(r io.Reader) ([]string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	all := string(b)
	if molecule.DetectFormat(all) == molecule.FormatStructureFile {
		return []string{all}, nil
	}

	var texts []string
	sc := bufio.NewScanner(strings.NewReader(all))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			texts = append(texts, line)
		}
	}
	return texts, sc.Err()
}

func printValidity(w io.Writer, text string, v molecule.Validity, asJSON bool) error {
	if !asJSON {
		label := molecule.Normalize(text)
		if v.Format == molecule.FormatStructureFile {
			label = "molfile"
		}
		if v.Valid {
			_, err := fmt.Fprintf(w, "valid %s\t%s\n", v.Format, label)
			return err
		}
		_, err := fmt.Fprintf(w, "invalid %s\t%s\t%s\n", v.Format, label, v.Reason)
		return err
	}

	out := "{}"
	var err error
	for _, kv := range []struct {
		path  string
		value any
	}{
		{"text", molecule.Normalize(text)},
		{"format", v.Format.String()},
		{"valid", v.Valid},
	} {
		if out, err = sjson.Set(out, kv.path, kv.value); err != nil {
			return err
		}
	}
	if !v.Valid {
		if out, err = sjson.Set(out, "reason", v.Reason); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintln(w, out)
	return err
}
