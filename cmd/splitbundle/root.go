package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/arthur-debert/splitbundle/internal/logging"
	"github.com/arthur-debert/splitbundle/splitbundle"
)

// CLI holds the command tree and its configuration source
type CLI struct {
	rootCmd   *cobra.Command
	viperInst *viper.Viper

	cfg       splitbundle.Config
	logger    *slog.Logger
	logCloser io.Closer
}

// NewCLI creates the command tree with configuration discovery set up
func NewCLI() *CLI {
	cli := &CLI{
		viperInst: viper.New(),
		logger:    logging.Discard(),
	}

	cli.setupViperConfig()
	cli.createRootCommand()
	cli.addCommands()
	return cli
}

// setupViperConfig registers defaults, environment variables and config files
func (cli *CLI) setupViperConfig() {
	v := cli.viperInst
	setDefaults(v, splitbundle.DefaultConfig())

	if configFile := os.Getenv("SPLITBUNDLE_CONFIG"); configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("splitbundle")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.splitbundle")
		v.AddConfigPath("/etc/splitbundle")
	}

	// SPLITBUNDLE_LOG_LEVEL, SPLITBUNDLE_BASE_RESET_ON_START, ...
	v.SetEnvPrefix("SPLITBUNDLE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
}

func setDefaults(v *viper.Viper, cfg splitbundle.Config) {
	v.SetDefault("cache", cfg.Cache)
	v.SetDefault("offset", cfg.Offset)
	v.SetDefault("log-level", cfg.LogLevel)
	v.SetDefault("project-root", cfg.ProjectRoot)
	v.SetDefault("base.reset_on_start", cfg.Base.ResetOnStart)
	v.SetDefault("feature.entry_module", cfg.Feature.EntryModule)
	v.SetDefault("feature.entry_key", cfg.Feature.EntryKey)
	v.SetDefault("filter.infrastructure", cfg.Filter.Infrastructure)
	v.SetDefault("filter.policy", cfg.Filter.Policy)
	v.SetDefault("filter.exclude_vendor", cfg.Filter.ExcludeVendor)
	v.SetDefault("bundles.root", cfg.Bundles.Root)
	v.SetDefault("bundles.features", cfg.Bundles.Features)
	v.SetDefault("runtime.mode", cfg.Runtime.Mode)
	v.SetDefault("runtime.dev_server", cfg.Runtime.DevServer)
	v.SetDefault("runtime.artifacts_dir", cfg.Runtime.ArtifactsDir)
	v.SetDefault("runtime.platform", cfg.Runtime.Platform)
}

func (cli *CLI) createRootCommand() {
	cli.rootCmd = &cobra.Command{
		Use:   "splitbundle",
		Short: "Stable module ids and ordered loading for split bundles",
		Long: `splitbundle keeps a base bundle and its feature bundles in agreement.

Build side:
  splitbundle ids base       number base bundle modules and record them
  splitbundle ids feature    number feature modules against the recorded ids
  splitbundle filter         list the modules a feature bundle must ship

Runtime side:
  splitbundle load           load bundles root first, features after

Configuration Sources (in order of precedence):
1. Command line flags
2. Environment variables (SPLITBUNDLE_*)
3. Configuration file (SPLITBUNDLE_CONFIG, ./splitbundle.yaml,
   ~/.splitbundle/splitbundle.yaml, /etc/splitbundle/splitbundle.yaml)
4. Built-in defaults`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cli.prepare(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if cli.logCloser != nil {
				_ = cli.logCloser.Close()
				cli.logCloser = nil
			}
		},
	}

	flags := cli.rootCmd.PersistentFlags()
	flags.String("config", "", "config file (overrides SPLITBUNDLE_CONFIG)")
	flags.StringP("cache", "c", "", "id cache file")
	flags.Int("offset", 0, "first feature-local module id")
	flags.String("log-level", "", "log level (debug|info|warn|error)")
	flags.String("project-root", "", "build root module paths are made relative to")
	flags.BoolP("verbose", "v", false, "also log to stderr")

	bindFlags(cli.viperInst, flags, map[string]string{
		"cache":        "cache",
		"offset":       "offset",
		"log-level":    "log-level",
		"project-root": "project-root",
	})
}

// bindFlags binds flags to config keys. Only flags the user set override
// the lower precedence sources.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for flagName, key := range keys {
		if f := flags.Lookup(flagName); f != nil {
			_ = v.BindPFlag(key, f)
		}
	}
}

// prepare reads the config file, resolves the configuration and sets up
// logging before any subcommand runs.
func (cli *CLI) prepare(cmd *cobra.Command) error {
	v := cli.viperInst
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := splitbundle.DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	if err := splitbundle.ValidateConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cli.cfg = cfg

	var stderr io.Writer
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		stderr = cmd.ErrOrStderr()
	}
	logger, closer, err := logging.Init(cfg.LogLevel, stderr)
	if err != nil {
		// Logging is best effort; commands still run without a log file
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
		return nil
	}
	cli.logger = logger
	cli.logCloser = closer
	logger.Debug("command started", "command", cmd.CommandPath(), "config_file", v.ConfigFileUsed())
	return nil
}

func (cli *CLI) addCommands() {
	cli.rootCmd.AddCommand(cli.idsCommand())
	cli.rootCmd.AddCommand(cli.filterCommand())
	cli.rootCmd.AddCommand(cli.cacheCommand())
	cli.rootCmd.AddCommand(cli.loadCommand())
	cli.rootCmd.AddCommand(cli.configCommand())
}

// Execute runs the command tree with args
func (cli *CLI) Execute(ctx context.Context, args []string) error {
	cli.rootCmd.SetArgs(args)
	return cli.rootCmd.ExecuteContext(ctx)
}
