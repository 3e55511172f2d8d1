package main

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func (cli *CLI) configCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the resolved configuration",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the configuration after merging flags, environment and files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			out := cmd.OutOrStdout()

			var (
				data []byte
				err  error
			)
			switch format {
			case "yaml":
				data, err = yaml.Marshal(cli.cfg)
			case "toml":
				data, err = toml.Marshal(cli.cfg)
			default:
				return fmt.Errorf("unknown format %q (yaml|toml)", format)
			}
			if err != nil {
				return fmt.Errorf("failed to render config: %w", err)
			}

			if used := cli.viperInst.ConfigFileUsed(); used != "" {
				_, _ = fmt.Fprintf(out, "# config file: %s\n", used)
			}
			_, err = out.Write(data)
			return err
		},
	}
	showCmd.Flags().StringP("format", "f", "yaml", "output format (yaml|toml)")

	configCmd.AddCommand(showCmd)
	return configCmd
}
