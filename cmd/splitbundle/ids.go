package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/splitbundle/splitbundle"
	"github.com/arthur-debert/splitbundle/splitbundle/ids"
	"github.com/arthur-debert/splitbundle/types"
)

func (cli *CLI) idsCommand() *cobra.Command {
	idsCmd := &cobra.Command{
		Use:   "ids",
		Short: "Assign module ids",
	}
	idsCmd.PersistentFlags().StringP("input", "i", "", "file listing module paths, one per line or a YAML list (- for stdin)")

	baseCmd := &cobra.Command{
		Use:   "base [paths...]",
		Short: "Number base bundle modules and record them in the id cache",
		Long: `Numbers every module path in order, starting from 0, and writes each new
id to the id cache before printing it. The cache is cleared first unless
base.reset_on_start is false.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			alloc, err := splitbundle.NewBaseAllocator(cmd.Context(), cli.cfg, cli.logger)
			if err != nil {
				return err
			}
			return cli.runIDs(cmd, args, func(p string) (int, error) {
				return alloc.ModuleIDContext(cmd.Context(), p)
			})
		},
	}
	baseCmd.Flags().Bool("keep", false, "keep the existing cache instead of resetting it")
	baseCmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if keep, _ := cmd.Flags().GetBool("keep"); keep {
			cli.cfg.Base.ResetOnStart = false
		}
		return nil
	}

	featureCmd := &cobra.Command{
		Use:   "feature [paths...]",
		Short: "Number feature bundle modules against the id cache",
		Long: `Shared modules get the id the base build recorded; every other module gets
an id at or above the offset. The id cache is never written. Fails when the
base build has not produced a usable cache.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			alloc, err := splitbundle.NewFeatureAllocator(cmd.Context(), cli.cfg, cli.logger)
			if err != nil {
				return err
			}
			return cli.runIDs(cmd, args, alloc.ModuleID)
		},
	}
	featureCmd.Flags().String("entry-module", "", "feature entry module adopting the id under --entry-key")
	featureCmd.Flags().String("entry-key", "", "id cache key holding the entry module's id")
	bindFlags(cli.viperInst, featureCmd.Flags(), map[string]string{
		"entry-module": "feature.entry_module",
		"entry-key":    "feature.entry_key",
	})

	idsCmd.AddCommand(baseCmd, featureCmd)
	return idsCmd
}

func (cli *CLI) runIDs(cmd *cobra.Command, args []string, fn ids.IDFunc) error {
	input, _ := cmd.Flags().GetString("input")
	recs, err := collectRecords(args, input, cmd.InOrStdin(), types.OutputModule)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return fmt.Errorf("no module paths given")
	}

	out := cmd.OutOrStdout()
	for _, rec := range recs {
		id, err := fn(rec.Path)
		if err != nil {
			return err
		}
		printIdentity(out, types.Identity{Path: rec.Path, ID: id})
	}
	return nil
}

func printIdentity(w io.Writer, ident types.Identity) {
	_, _ = fmt.Fprintf(w, "%s\t%d\n", ident.Path, ident.ID)
}
