package ids

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/arthur-debert/splitbundle/splitbundle/idcache"
)

// FeatureOptions configures a FeatureAllocator
type FeatureOptions struct {
	// Offset is the first feature-local id; zero means DefaultOffset
	Offset int

	// EntryModule is the build's own entry path. When set, the first request
	// for it adopts the id registered under EntryKey.
	EntryModule string

	// EntryKey is the cache key holding the entry module's shared id.
	// Required when EntryModule is set.
	EntryKey string

	Normalizer *Normalizer
	Logger     *slog.Logger
}

// FeatureAllocator numbers a feature bundle against a base build's cache.
// It never writes the cache.
type FeatureAllocator struct {
	mu       sync.Mutex
	cache    *idcache.Cache
	seen     map[string]int
	used     map[int]bool
	nextID   int
	offset   int
	entry    string
	entryKey string
	adopted  bool
	norm     *Normalizer
	logger   *slog.Logger
}

// NewFeatureAllocator loads the cache and prepares a feature build. It fails
// with an *idcache.CacheUnavailableError when the cache is missing or
// malformed, and with a *RangeCollisionError when cached ids already reach
// the offset; in both cases no id could be guaranteed collision-free.
func NewFeatureAllocator(ctx context.Context, cache *idcache.Cache, opts FeatureOptions) (*FeatureAllocator, error) {
	if err := cache.Load(ctx); err != nil {
		return nil, fmt.Errorf("feature build needs the base id cache: %w", err)
	}

	a := &FeatureAllocator{
		cache:  cache,
		seen:   make(map[string]int),
		used:   make(map[int]bool),
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
	if opts.EntryModule != "" && opts.EntryKey == "" {
		return nil, fmt.Errorf("%w: %s", ErrEntryKeyRequired, opts.EntryModule)
	}
	if maxID := cache.MaxID(); maxID >= a.offset {
		return nil, &RangeCollisionError{Offset: a.offset, ID: maxID}
	}
	a.entryKey = opts.EntryKey
	if opts.EntryModule != "" {
		a.entry = a.norm.Normalize(opts.EntryModule)
	}
	a.nextID = a.offset

	a.logger.Debug("feature allocator ready",
		"cache", cache.Path(), "cached_entries", cache.Len(), "offset", a.offset, "entry", a.entry)
	return a, nil
}

// ModuleID returns the cached id for shared paths and a feature-local id for
// everything else. It is safe for concurrent use.
func (a *FeatureAllocator) ModuleID(path string) (int, error) {
	key := a.norm.Normalize(path)
	if key == "" {
		return 0, ErrEmptyPath
	}
	if id, ok := a.cache.Get(key); ok {
		return id, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if id, ok := a.seen[key]; ok {
		return id, nil
	}
	if key == a.entry && !a.adopted {
		return a.adoptLocked(key)
	}
	return a.mintLocked(key), nil
}

// AdoptEntry re-bases the counter to the id registered under the entry key
// and assigns it to path. It may run once per allocator.
func (a *FeatureAllocator) AdoptEntry(path string) (int, error) {
	key := a.norm.Normalize(path)
	if key == "" {
		return 0, ErrEmptyPath
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.adoptLocked(key)
}

func (a *FeatureAllocator) adoptLocked(key string) (int, error) {
	if a.adopted {
		return 0, ErrEntryAlreadyAdopted
	}
	entryKey := a.entryKey
	if entryKey == "" {
		return 0, fmt.Errorf("%w: %s", ErrEntryKeyRequired, key)
	}
	base, ok := a.cache.Get(entryKey)
	if !ok {
		return 0, &idcache.CacheUnavailableError{
			Path:   a.cache.Path(),
			Reason: fmt.Sprintf("entry key %q not registered", entryKey),
		}
	}

	a.adopted = true
	a.nextID = base
	if id, ok := a.seen[key]; ok {
		return id, nil
	}

	// The entry takes the registered id itself even though the key owns it.
	id := a.nextID
	a.nextID++
	a.seen[key] = id
	a.used[id] = true
	a.logger.Info("entry module adopted", "path", key, "entry_key", entryKey, "id", id)
	return id, nil
}

func (a *FeatureAllocator) mintLocked(key string) int {
	for {
		if _, owned := a.cache.Owner(a.nextID); !owned && !a.used[a.nextID] {
			break
		}
		a.nextID++
	}
	id := a.nextID
	a.nextID++
	a.seen[key] = id
	a.used[id] = true
	a.logger.Debug("feature module id assigned", "path", key, "id", id)
	return id
}

// Func returns the allocator as a bundler hook.
func (a *FeatureAllocator) Func() IDFunc {
	return a.ModuleID
}

// Local returns the feature-local assignments made so far.
func (a *FeatureAllocator) Local() map[string]int {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]int, len(a.seen))
	for k, v := range a.seen {
		out[k] = v
	}
	return out
}
