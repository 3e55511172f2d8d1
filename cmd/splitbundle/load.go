package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/arthur-debert/splitbundle/splitbundle"
	"github.com/arthur-debert/splitbundle/splitbundle/loader"
)

func (cli *CLI) loadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load [bundles...]",
		Short: "Load bundles from the configured source, root first",
		Long: `Fetches the named bundles from the dev server or the packaged artifacts,
loading the root bundle before any feature bundle. Without arguments the
root and every configured feature bundle are loaded. Prints the final state
of every bundle touched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if mode, _ := cmd.Flags().GetString("mode"); mode != "" {
				cli.cfg.Runtime.Mode = mode
				if err := splitbundle.ValidateConfig(cli.cfg); err != nil {
					return err
				}
			}
			timeout, _ := cmd.Flags().GetDuration("timeout")

			o, err := splitbundle.NewOrchestrator(cli.cfg, func(ctx context.Context, name string, code []byte) error {
				cli.logger.Info("bundle evaluated", "bundle", name, "bytes", len(code))
				return nil
			}, cli.logger)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			loadErr := loadBundles(ctx, o, args)
			printSnapshot(cmd, o)
			return loadErr
		},
	}
	cmd.Flags().String("mode", "", "runtime mode override (dev|release)")
	cmd.Flags().Duration("timeout", 30*time.Second, "give up waiting after this long (0 waits forever)")
	cmd.Flags().String("dev-server", "", "development server URL")
	cmd.Flags().String("artifacts-dir", "", "directory holding packaged bundles")
	bindFlags(cli.viperInst, cmd.Flags(), map[string]string{
		"dev-server":    "runtime.dev_server",
		"artifacts-dir": "runtime.artifacts_dir",
	})
	return cmd
}

// loadBundles loads the named bundles concurrently, or everything when no
// names are given. All failures are reported.
func loadBundles(ctx context.Context, o *loader.Orchestrator, names []string) error {
	if len(names) == 0 {
		return o.PreloadAll(ctx)
	}

	errs := make([]error, len(names))
	var g errgroup.Group
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			errs[i] = o.Load(ctx, name)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func printSnapshot(cmd *cobra.Command, o *loader.Orchestrator) {
	roles := map[string]string{o.Root(): "root"}
	for _, name := range o.Features() {
		roles[name] = "feature"
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "BUNDLE\tROLE\tSTATUS\tATTEMPTS\tERROR")
	for _, info := range o.Snapshot() {
		role, ok := roles[info.Name]
		if !ok {
			role = "other"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", info.Name, role, info.Status, info.Attempts, info.LastError)
	}
	_ = w.Flush()
}
