package ids

import (
	"context"
	"log/slog"
	"sync"

	"github.com/arthur-debert/splitbundle/splitbundle/idcache"
)

// DefaultOffset is the first feature-local id. Base builds must stay below it.
const DefaultOffset = 10_000_000

// IDFunc is the hook registered with the bundler as its module id source.
type IDFunc func(path string) (int, error)

// BaseOptions configures a BaseAllocator
type BaseOptions struct {
	// Offset bounds base ids; zero means DefaultOffset
	Offset int

	// ResetOnStart clears the cache before the build. When false, ids from
	// the previous build are reused and new ids continue past them.
	ResetOnStart bool

	// Normalizer maps bundler paths to cache keys; nil keeps paths as given
	Normalizer *Normalizer

	Logger *slog.Logger
}

// BaseAllocator numbers the base bundle and records every id in the cache.
type BaseAllocator struct {
	mu     sync.Mutex
	cache  *idcache.Cache
	seen   map[string]int
	nextID int
	offset int
	norm   *Normalizer
	logger *slog.Logger
}

// NewBaseAllocator prepares the cache for a base build. With ResetOnStart the
// cache file is cleared; otherwise it is loaded, and a missing or malformed
// file counts as empty.
func NewBaseAllocator(ctx context.Context, cache *idcache.Cache, opts BaseOptions) (*BaseAllocator, error) {
	a := &BaseAllocator{
		cache:  cache,
		seen:   make(map[string]int),
		offset: opts.Offset,
		norm:   opts.Normalizer,
		logger: opts.Logger,
	}
	if a.offset <= 0 {
		a.offset = DefaultOffset
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}

	if opts.ResetOnStart {
		if err := cache.Reset(ctx); err != nil {
			return nil, err
		}
	} else if err := cache.LoadOrEmpty(ctx); err != nil {
		return nil, err
	}

	a.nextID = cache.MaxID() + 1
	if a.nextID > a.offset {
		return nil, &RangeCollisionError{Offset: a.offset, ID: a.nextID - 1}
	}

	a.logger.Debug("base allocator ready", "cache", cache.Path(), "next_id", a.nextID, "offset", a.offset)
	return a, nil
}

// ModuleID returns the id for path, allocating and persisting it on first
// sight. It is safe for concurrent use.
func (a *BaseAllocator) ModuleID(path string) (int, error) {
	return a.ModuleIDContext(context.Background(), path)
}

// ModuleIDContext is ModuleID with a context bounding the cache write.
func (a *BaseAllocator) ModuleIDContext(ctx context.Context, path string) (int, error) {
	key := a.norm.Normalize(path)
	if key == "" {
		return 0, ErrEmptyPath
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if id, ok := a.seen[key]; ok {
		return id, nil
	}

	id, cached := a.cache.Get(key)
	if !cached {
		if a.nextID >= a.offset {
			return 0, &RangeCollisionError{Offset: a.offset, ID: a.nextID, Path: key}
		}
		id = a.nextID
		if err := a.cache.Put(key, id); err != nil {
			return 0, &AllocationError{Path: key, WrappedError: err}
		}
		a.nextID++
	}

	// A previous flush may have failed after Put, so a cached entry can still
	// be pending on disk.
	if a.cache.Dirty() {
		if err := a.cache.Flush(ctx); err != nil {
			return 0, &AllocationError{Path: key, WrappedError: err}
		}
	}

	a.seen[key] = id
	a.logger.Debug("module id assigned", "path", key, "id", id, "cached", cached)
	return id, nil
}

// Func returns the allocator as a bundler hook.
func (a *BaseAllocator) Func() IDFunc {
	return a.ModuleID
}

// Assigned returns how many distinct paths this build has numbered.
func (a *BaseAllocator) Assigned() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.seen)
}
