package splitbundle

import (
	"fmt"
	"strings"

	"github.com/arthur-debert/splitbundle/internal/logging"
	"github.com/arthur-debert/splitbundle/internal/validation"
	"github.com/arthur-debert/splitbundle/splitbundle/filter"
	"github.com/arthur-debert/splitbundle/splitbundle/ids"
	"github.com/arthur-debert/splitbundle/splitbundle/source"
)

// Defaults shared by the CLI and library callers
const (
	DefaultFeatureOffset = ids.DefaultOffset
	DefaultCachePath     = "config/bundleInfo.json"
	DefaultRootBundle    = "basic"
	DefaultLogLevel      = "warn"
)

// Config is the full configuration of a split bundle setup. Field tags follow
// the configuration keys, so it can be filled from viper and written back as
// YAML or TOML.
type Config struct {
	Cache       string `mapstructure:"cache" yaml:"cache" toml:"cache"`
	Offset      int    `mapstructure:"offset" yaml:"offset" toml:"offset"`
	LogLevel    string `mapstructure:"log-level" yaml:"log-level" toml:"log-level"`
	ProjectRoot string `mapstructure:"project-root" yaml:"project-root" toml:"project-root"`

	Base    BaseConfig    `mapstructure:"base" yaml:"base" toml:"base"`
	Feature FeatureConfig `mapstructure:"feature" yaml:"feature" toml:"feature"`
	Filter  FilterConfig  `mapstructure:"filter" yaml:"filter" toml:"filter"`
	Bundles BundlesConfig `mapstructure:"bundles" yaml:"bundles" toml:"bundles"`
	Runtime RuntimeConfig `mapstructure:"runtime" yaml:"runtime" toml:"runtime"`
}

// BaseConfig configures the base build
type BaseConfig struct {
	ResetOnStart bool `mapstructure:"reset_on_start" yaml:"reset_on_start" toml:"reset_on_start"`
}

// FeatureConfig configures feature builds
type FeatureConfig struct {
	EntryModule string `mapstructure:"entry_module" yaml:"entry_module,omitempty" toml:"entry_module,omitempty"`
	EntryKey    string `mapstructure:"entry_key" yaml:"entry_key,omitempty" toml:"entry_key,omitempty"`
}

// FilterConfig configures the feature-build module filter
type FilterConfig struct {
	Infrastructure []string `mapstructure:"infrastructure" yaml:"infrastructure" toml:"infrastructure"`
	Policy         string   `mapstructure:"policy" yaml:"policy" toml:"policy"`
	ExcludeVendor  bool     `mapstructure:"exclude_vendor" yaml:"exclude_vendor" toml:"exclude_vendor"`
}

// BundlesConfig names the runtime bundles
type BundlesConfig struct {
	Root     string   `mapstructure:"root" yaml:"root" toml:"root"`
	Features []string `mapstructure:"features" yaml:"features" toml:"features"`
}

// RuntimeConfig selects where bundles are loaded from at runtime
type RuntimeConfig struct {
	Mode         string `mapstructure:"mode" yaml:"mode" toml:"mode"`
	DevServer    string `mapstructure:"dev_server" yaml:"dev_server" toml:"dev_server"`
	ArtifactsDir string `mapstructure:"artifacts_dir" yaml:"artifacts_dir" toml:"artifacts_dir"`
	Platform     string `mapstructure:"platform" yaml:"platform" toml:"platform"`
}

// DefaultConfig returns the configuration used when nothing is set
func DefaultConfig() Config {
	return Config{
		Cache:    DefaultCachePath,
		Offset:   DefaultFeatureOffset,
		LogLevel: DefaultLogLevel,
		Base:     BaseConfig{ResetOnStart: true},
		Filter: FilterConfig{
			Infrastructure: append([]string(nil), filter.DefaultInfrastructure...),
			Policy:         string(filter.PolicyInclude),
		},
		Bundles: BundlesConfig{
			Root:     DefaultRootBundle,
			Features: []string{"main"},
		},
		Runtime: RuntimeConfig{
			Mode:         string(source.ModeRelease),
			DevServer:    source.DefaultDevServer,
			ArtifactsDir: "bundles",
			Platform:     source.DefaultPlatform,
		},
	}
}

// ValidateConfig checks the configuration for consistency
func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Cache) == "" {
		return fmt.Errorf("cache path cannot be empty")
	}
	if err := validation.ValidateOffset(cfg.Offset); err != nil {
		return err
	}
	if _, ok := logging.ParseLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("invalid log level %q (debug|info|warn|error)", cfg.LogLevel)
	}

	if cfg.Feature.EntryKey != "" && cfg.Feature.EntryModule == "" {
		return fmt.Errorf("feature.entry_key requires feature.entry_module")
	}
	if cfg.Feature.EntryModule != "" && cfg.Feature.EntryKey == "" {
		return fmt.Errorf("feature.entry_module requires feature.entry_key")
	}

	switch filter.Policy(cfg.Filter.Policy) {
	case filter.PolicyInclude, filter.PolicyExclude:
	default:
		return fmt.Errorf("invalid filter policy %q (include|exclude)", cfg.Filter.Policy)
	}
	if err := validation.ValidatePatterns(cfg.Filter.Infrastructure); err != nil {
		return fmt.Errorf("filter.infrastructure: %w", err)
	}

	if err := validation.ValidateBundleSet(cfg.Bundles.Root, cfg.Bundles.Features); err != nil {
		return fmt.Errorf("bundles: %w", err)
	}

	switch source.Mode(cfg.Runtime.Mode) {
	case source.ModeRelease:
		if cfg.Runtime.ArtifactsDir == "" {
			return fmt.Errorf("runtime.artifacts_dir is required in release mode")
		}
	case source.ModeDev:
		if _, err := cfg.Locator().URL(cfg.Bundles.Root); err != nil {
			return fmt.Errorf("runtime.dev_server: %w", err)
		}
	default:
		return fmt.Errorf("invalid runtime mode %q (dev|release)", cfg.Runtime.Mode)
	}
	return nil
}

// Normalizer returns the path normalizer for the project root
func (c Config) Normalizer() *ids.Normalizer {
	return ids.NewNormalizer(c.ProjectRoot)
}

// Locator returns the runtime bundle locator
func (c Config) Locator() source.Locator {
	return source.Locator{
		Mode:         source.Mode(c.Runtime.Mode),
		DevServer:    c.Runtime.DevServer,
		ArtifactsDir: c.Runtime.ArtifactsDir,
		Platform:     c.Runtime.Platform,
	}
}
