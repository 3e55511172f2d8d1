package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/arthur-debert/splitbundle/splitbundle"
	"github.com/arthur-debert/splitbundle/splitbundle/idcache"
)

func (cli *CLI) cacheCommand() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the id cache",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the cached module ids ordered by id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache := splitbundle.OpenCache(cli.cfg, cli.logger)
			if err := cache.Load(cmd.Context()); err != nil {
				return err
			}

			format, _ := cmd.Flags().GetString("format")
			out := cmd.OutOrStdout()
			switch format {
			case "table":
				for _, ident := range cache.Identities() {
					printIdentity(out, ident)
				}
				return nil
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(cache.Identities())
			case "yaml":
				enc := yaml.NewEncoder(out)
				defer func() { _ = enc.Close() }()
				return enc.Encode(cache.Identities())
			default:
				return fmt.Errorf("unknown format %q (table|json|yaml)", format)
			}
		},
	}
	showCmd.Flags().StringP("format", "f", "table", "output format (table|json|yaml)")

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear the id cache",
		Long:  "Writes an empty mapping, as a base build does when it starts.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache := splitbundle.OpenCache(cli.cfg, cli.logger)
			if err := cache.Reset(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "reset %s\n", cache.Path())
			return nil
		},
	}

	diffCmd := &cobra.Command{
		Use:   "diff <old> <new>",
		Short: "Show how module ids changed between two cache files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := loadCacheFile(cmd, args[0], cli)
			if err != nil {
				return err
			}
			to, err := loadCacheFile(cmd, args[1], cli)
			if err != nil {
				return err
			}

			diff, err := idcache.Diff(from, to, args[0], args[1])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if diff == "" {
				_, _ = fmt.Fprintln(out, "no changes")
				return nil
			}
			_, _ = fmt.Fprint(out, diff)
			if moved := idcache.Renumbered(from, to); len(moved) > 0 {
				_, _ = fmt.Fprintf(out, "\n%d module(s) renumbered:\n", len(moved))
				for _, p := range moved {
					_, _ = fmt.Fprintf(out, "  %s: %d -> %d\n", p, from[p], to[p])
				}
			}
			return nil
		},
	}

	cacheCmd.AddCommand(showCmd, resetCmd, diffCmd)
	return cacheCmd
}

func loadCacheFile(cmd *cobra.Command, path string, cli *CLI) (map[string]int, error) {
	cache := idcache.Open(path, idcache.WithLogger(cli.logger))
	if err := cache.Load(cmd.Context()); err != nil {
		return nil, err
	}
	return cache.Snapshot(), nil
}
