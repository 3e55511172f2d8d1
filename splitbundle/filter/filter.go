// Package filter decides which modules a feature bundle ships.
//
// A feature bundle must not carry modules the base bundle already provides,
// or the runtime would register them twice. The one exception is
// infrastructure: runtime bootstrap and polyfill modules cannot be shared
// across bundles at runtime, so they are kept even when the base build
// cached them. Infrastructure is classified first, cache membership second.
package filter

import (
	"fmt"
	"log/slog"

	"github.com/arthur-debert/splitbundle/internal/matching"
	"github.com/arthur-debert/splitbundle/splitbundle/ids"
	"github.com/arthur-debert/splitbundle/types"
)

// Policy controls what happens to infrastructure modules.
type Policy string

const (
	// PolicyInclude ships infrastructure modules with every feature bundle.
	PolicyInclude Policy = "include"

	// PolicyExclude leaves infrastructure to the base bundle.
	PolicyExclude Policy = "exclude"
)

// DefaultInfrastructure lists the path patterns treated as infrastructure.
var DefaultInfrastructure = []string{"__prelude__", "polyfills"}

// DefaultVendorDir is the directory ExcludeVendor treats as base-provided.
const DefaultVendorDir = "node_modules"

// Predicate is the hook registered with the bundler as its module filter.
type Predicate func(rec types.ModuleRecord) bool

// Membership reports whether the base build numbered a path.
// *idcache.Cache satisfies it.
type Membership interface {
	Has(path string) bool
}

// Options configures a Filter
type Options struct {
	// Infrastructure patterns; nil means DefaultInfrastructure
	Infrastructure []string

	// Policy for infrastructure modules; empty means PolicyInclude
	Policy Policy

	// ExcludeVendor drops every module under VendorDir, cached or not
	ExcludeVendor bool
	VendorDir     string

	// Normalizer maps bundler paths to cache keys. It must match the one the
	// allocators use or cache lookups will miss.
	Normalizer *ids.Normalizer

	Logger *slog.Logger
}

// Decision explains why a module was kept or dropped.
type Decision struct {
	Include bool
	Reason  string
}

// Filter is the feature-build module predicate.
type Filter struct {
	cache     Membership
	infra     *matching.PathMatcher
	policy    Policy
	vendor    string
	excludeVd bool
	norm      *ids.Normalizer
	logger    *slog.Logger
}

// New creates a Filter reading cache membership from cache.
func New(cache Membership, opts Options) (*Filter, error) {
	f := &Filter{
		cache:     cache,
		policy:    opts.Policy,
		vendor:    opts.VendorDir,
		excludeVd: opts.ExcludeVendor,
		norm:      opts.Normalizer,
		logger:    opts.Logger,
	}

	patterns := opts.Infrastructure
	if patterns == nil {
		patterns = DefaultInfrastructure
	}
	f.infra = matching.NewPathMatcher(patterns...)

	switch f.policy {
	case "":
		f.policy = PolicyInclude
	case PolicyInclude, PolicyExclude:
	default:
		return nil, fmt.Errorf("unknown infrastructure policy %q", opts.Policy)
	}
	if f.vendor == "" {
		f.vendor = DefaultVendorDir
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f, nil
}

// Include reports whether rec ships in the feature bundle.
func (f *Filter) Include(rec types.ModuleRecord) bool {
	return f.Decide(rec).Include
}

// Decide is Include with the reason attached.
func (f *Filter) Decide(rec types.ModuleRecord) Decision {
	key := f.norm.Normalize(rec.Path)
	d := f.decide(key, rec.Kind())
	f.logger.Debug("module filtered", "path", key, "include", d.Include, "reason", d.Reason)
	return d
}

func (f *Filter) decide(key string, kind types.OutputKind) Decision {
	if kind == types.OutputVirtualScript {
		return f.infrastructure("runtime bootstrap")
	}
	if pattern, ok := f.infra.Match(key); ok {
		return f.infrastructure("matches " + pattern)
	}

	if f.cache != nil && f.cache.Has(key) {
		return Decision{Include: false, Reason: "provided by base bundle"}
	}
	if f.excludeVd && matching.HasSegment(key, f.vendor) {
		return Decision{Include: false, Reason: "vendor module"}
	}
	return Decision{Include: true, Reason: "feature module"}
}

func (f *Filter) infrastructure(why string) Decision {
	return Decision{
		Include: f.policy == PolicyInclude,
		Reason:  "infrastructure: " + why,
	}
}

// Predicate returns the filter as a bundler hook.
func (f *Filter) Predicate() Predicate {
	return f.Include
}

// Policy returns the active infrastructure policy.
func (f *Filter) Policy() Policy {
	return f.policy
}
