// Package splitbundle wires the split bundle components from one Config.
//
// Build side: a base build numbers every module it sees with a BaseAllocator
// and records the ids in the id cache. A feature build then numbers its
// modules with a FeatureAllocator, reusing the cached ids for shared modules,
// and drops those shared modules with a Filter.
//
// Runtime side: an Orchestrator loads the root bundle before any feature
// bundle and coalesces concurrent requests for the same bundle.
//
// Example:
//
//	cfg := splitbundle.DefaultConfig()
//	alloc, err := splitbundle.NewBaseAllocator(ctx, cfg, logger)
//	if err != nil {
//		return err
//	}
//	id, err := alloc.ModuleID("src/index.js")
package splitbundle

import (
	"context"
	"log/slog"

	"github.com/arthur-debert/splitbundle/splitbundle/filter"
	"github.com/arthur-debert/splitbundle/splitbundle/idcache"
	"github.com/arthur-debert/splitbundle/splitbundle/ids"
	"github.com/arthur-debert/splitbundle/splitbundle/loader"
	"github.com/arthur-debert/splitbundle/splitbundle/source"
)

// OpenCache returns the id cache configured by cfg, not yet loaded.
func OpenCache(cfg Config, logger *slog.Logger) *idcache.Cache {
	return idcache.Open(cfg.Cache, idcache.WithLogger(orDefault(logger)))
}

// NewBaseAllocator prepares the id cache and returns a base build allocator.
func NewBaseAllocator(ctx context.Context, cfg Config, logger *slog.Logger) (*ids.BaseAllocator, error) {
	return ids.NewBaseAllocator(ctx, OpenCache(cfg, logger), ids.BaseOptions{
		Offset:       cfg.Offset,
		ResetOnStart: cfg.Base.ResetOnStart,
		Normalizer:   cfg.Normalizer(),
		Logger:       orDefault(logger),
	})
}

// NewFeatureAllocator loads the id cache and returns a feature build
// allocator. It fails when the base build has not produced a usable cache.
func NewFeatureAllocator(ctx context.Context, cfg Config, logger *slog.Logger) (*ids.FeatureAllocator, error) {
	return ids.NewFeatureAllocator(ctx, OpenCache(cfg, logger), ids.FeatureOptions{
		Offset:      cfg.Offset,
		EntryModule: cfg.Feature.EntryModule,
		EntryKey:    cfg.Feature.EntryKey,
		Normalizer:  cfg.Normalizer(),
		Logger:      orDefault(logger),
	})
}

// NewFilter loads the id cache and returns the feature-build module filter.
func NewFilter(ctx context.Context, cfg Config, logger *slog.Logger) (*filter.Filter, error) {
	cache := OpenCache(cfg, logger)
	if err := cache.Load(ctx); err != nil {
		return nil, err
	}
	return filter.New(cache, filter.Options{
		Infrastructure: cfg.Filter.Infrastructure,
		Policy:         filter.Policy(cfg.Filter.Policy),
		ExcludeVendor:  cfg.Filter.ExcludeVendor,
		Normalizer:     cfg.Normalizer(),
		Logger:         orDefault(logger),
	})
}

// NewOrchestrator returns a runtime orchestrator loading bundles from the
// configured source and handing their code to eval.
func NewOrchestrator(cfg Config, eval source.Evaluator, logger *slog.Logger) (*loader.Orchestrator, error) {
	src, err := source.New(cfg.Locator(), eval, orDefault(logger))
	if err != nil {
		return nil, err
	}
	return loader.New(cfg.Bundles.Root, src,
		loader.WithFeatures(cfg.Bundles.Features...),
		loader.WithLogger(orDefault(logger)),
	), nil
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
