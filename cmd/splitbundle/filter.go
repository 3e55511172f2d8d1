package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/splitbundle/splitbundle"
	"github.com/arthur-debert/splitbundle/types"
)

func (cli *CLI) filterCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filter [paths...]",
		Short: "Print the modules a feature bundle must ship",
		Long: `Reads module paths or module records and prints those the feature bundle
keeps: infrastructure modules always, other modules only when the base build
did not number them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			input, _ := cmd.Flags().GetString("input")
			kind, _ := cmd.Flags().GetString("output-kind")
			explain, _ := cmd.Flags().GetBool("explain")

			recs, err := collectRecords(args, input, cmd.InOrStdin(), types.OutputKind(kind))
			if err != nil {
				return err
			}
			f, err := splitbundle.NewFilter(cmd.Context(), cli.cfg, cli.logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if explain {
				_, _ = fmt.Fprintf(out, "# infrastructure policy: %s\n", f.Policy())
			}
			for _, rec := range recs {
				d := f.Decide(rec)
				switch {
				case explain:
					verdict := "exclude"
					if d.Include {
						verdict = "include"
					}
					_, _ = fmt.Fprintf(out, "%s\t%s\t%s\n", verdict, rec.Path, d.Reason)
				case d.Include:
					_, _ = fmt.Fprintln(out, rec.Path)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringP("input", "i", "", "file listing module paths or records (- for stdin)")
	cmd.Flags().String("output-kind", string(types.OutputModule), "output kind for paths given without records")
	cmd.Flags().Bool("explain", false, "print every decision with its reason")
	cmd.Flags().Bool("exclude-vendor", false, "drop vendor modules")
	cmd.Flags().String("policy", "", "infrastructure policy (include|exclude)")
	bindFlags(cli.viperInst, cmd.Flags(), map[string]string{
		"exclude-vendor": "filter.exclude_vendor",
		"policy":         "filter.policy",
	})
	return cmd
}
