// Package idcache implements the persisted path → id mapping shared between
// the base build and feature builds.
//
// The base build owns the file: it resets it at the start of a build and
// writes every newly allocated id before handing it out. Feature builds only
// read it. The file is rewritten wholesale on each flush, guarded by a
// sidecar flock so a feature build running in another process never reads a
// half-written mapping.
//
// A Cache holds an in-memory copy. Nothing is re-read behind the caller's
// back: a process running several feature builds must call Load before each
// build to observe the base build's latest output.
package idcache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/arthur-debert/splitbundle/splitbundle/storage"
	"github.com/arthur-debert/splitbundle/types"
)

// Cache is the in-memory view of one cache file.
type Cache struct {
	path   string
	fs     storage.FileSystem
	lock   storage.FileLock
	lm     *storage.LockManager
	logger *slog.Logger

	entries map[string]int
	owners  map[int]string
	dirty   bool
}

// Option configures a Cache
type Option func(*Cache)

// WithFileSystem sets a custom FileSystem implementation
func WithFileSystem(fsys storage.FileSystem) Option {
	return func(c *Cache) {
		c.fs = fsys
	}
}

// WithFileLockFactory sets a custom FileLockFactory implementation
func WithFileLockFactory(factory storage.FileLockFactory) Option {
	return func(c *Cache) {
		c.lock = factory.New(storage.LockPath(c.path))
	}
}

// WithLogger sets the logger used for cache events
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// Open returns an empty Cache bound to path. It does not touch the file;
// call Load or LoadOrEmpty to read it.
func Open(path string, opts ...Option) *Cache {
	c := &Cache{
		path:    path,
		fs:      storage.OSFileSystem{},
		lm:      storage.NewLockManager(),
		logger:  slog.Default(),
		entries: map[string]int{},
		owners:  map[int]string{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.lock == nil {
		c.lock = storage.FlockFactory{}.New(storage.LockPath(path))
	}
	return c
}

// Path returns the cache file location.
func (c *Cache) Path() string {
	return c.path
}

// Load replaces the in-memory mapping with the file content. A missing,
// empty or malformed file yields a *CacheUnavailableError and leaves the
// in-memory mapping untouched.
func (c *Cache) Load(ctx context.Context) error {
	entries, err := c.read(ctx)
	if err != nil {
		return err
	}
	return c.replace(entries)
}

// LoadOrEmpty is Load for callers that can start from scratch: a missing or
// malformed file yields an empty mapping. Lock failures are still returned.
func (c *Cache) LoadOrEmpty(ctx context.Context) error {
	entries, err := c.read(ctx)
	if err != nil {
		var unavailable *CacheUnavailableError
		if !errors.As(err, &unavailable) {
			return err
		}
		c.logger.Warn("id cache unusable, starting empty", "path", c.path, "reason", unavailable.Reason)
		entries = map[string]int{}
	}
	return c.replace(entries)
}

func (c *Cache) read(ctx context.Context) (map[string]int, error) {
	// The sidecar lock lives next to the file, so a missing file is reported
	// before trying to lock in a directory that may not exist either.
	if _, err := c.fs.Stat(c.path); errors.Is(err, fs.ErrNotExist) {
		return nil, &CacheUnavailableError{Path: c.path, Reason: "file does not exist", Err: err}
	}

	var entries map[string]int
	err := storage.WithFileLock(ctx, c.lock, func() error {
		data, err := c.fs.ReadFile(c.path)
		if errors.Is(err, fs.ErrNotExist) {
			return &CacheUnavailableError{Path: c.path, Reason: "file does not exist", Err: err}
		}
		if err != nil {
			return &CacheUnavailableError{Path: c.path, Reason: "read failed", Err: err}
		}

		entries, err = Decode(data)
		if err != nil {
			return &CacheUnavailableError{Path: c.path, Reason: "malformed content", Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Debug("id cache loaded", "path", c.path, "entries", len(entries))
	return entries, nil
}

func (c *Cache) replace(entries map[string]int) error {
	return c.lm.Execute(storage.WriteOperation, func() error {
		c.entries = entries
		c.owners = make(map[int]string, len(entries))
		for p, id := range entries {
			c.owners[id] = p
		}
		c.dirty = false
		return nil
	})
}

// Get returns the cached id for path.
func (c *Cache) Get(path string) (int, bool) {
	var (
		id int
		ok bool
	)
	_ = c.lm.Execute(storage.ReadOperation, func() error {
		id, ok = c.entries[path]
		return nil
	})
	return id, ok
}

// Owner returns the path holding id.
func (c *Cache) Owner(id int) (string, bool) {
	var (
		path string
		ok   bool
	)
	_ = c.lm.Execute(storage.ReadOperation, func() error {
		path, ok = c.owners[id]
		return nil
	})
	return path, ok
}

// Has reports whether path is cached.
func (c *Cache) Has(path string) bool {
	_, ok := c.Get(path)
	return ok
}

// Put records path → id in memory. Re-putting an identical entry is a no-op.
// A path that already maps to another id, or an id already owned by another
// path, yields a *ConflictError.
func (c *Cache) Put(path string, id int) error {
	if id < 0 {
		return fmt.Errorf("negative id %d for %q", id, path)
	}
	return c.lm.Execute(storage.WriteOperation, func() error {
		if existing, ok := c.entries[path]; ok {
			if existing == id {
				return nil
			}
			return &ConflictError{Path: path, ID: id, ExistingID: existing}
		}
		if owner, ok := c.owners[id]; ok {
			return &ConflictError{Path: path, ID: id, ExistingID: -1, Owner: owner}
		}
		c.entries[path] = id
		c.owners[id] = path
		c.dirty = true
		return nil
	})
}

// Flush writes the whole mapping to disk under the file lock.
func (c *Cache) Flush(ctx context.Context) error {
	var data []byte
	err := c.lm.Execute(storage.ReadOperation, func() error {
		var err error
		data, err = Encode(c.entries)
		return err
	})
	if err != nil {
		return err
	}

	if err := c.write(ctx, data); err != nil {
		return err
	}

	return c.lm.Execute(storage.WriteOperation, func() error {
		c.dirty = false
		return nil
	})
}

// Reset clears the mapping and writes an empty object to disk. The base build
// calls it once at the start of every build.
func (c *Cache) Reset(ctx context.Context) error {
	if err := c.replace(map[string]int{}); err != nil {
		return err
	}
	data, err := Encode(nil)
	if err != nil {
		return err
	}
	if err := c.write(ctx, data); err != nil {
		return err
	}
	c.logger.Info("id cache reset", "path", c.path)
	return nil
}

func (c *Cache) write(ctx context.Context, data []byte) error {
	if dir := filepath.Dir(c.path); dir != "." {
		if err := c.fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create cache directory: %w", err)
		}
	}
	return storage.WithFileLock(ctx, c.lock, func() error {
		if err := storage.WriteFileAtomic(c.fs, c.path, data, 0644); err != nil {
			return fmt.Errorf("failed to write id cache: %w", err)
		}
		return nil
	})
}

// Dirty reports whether Put recorded entries not yet flushed.
func (c *Cache) Dirty() bool {
	var dirty bool
	_ = c.lm.Execute(storage.ReadOperation, func() error {
		dirty = c.dirty
		return nil
	})
	return dirty
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	var n int
	_ = c.lm.Execute(storage.ReadOperation, func() error {
		n = len(c.entries)
		return nil
	})
	return n
}

// MaxID returns the largest cached id, or -1 when the cache is empty.
func (c *Cache) MaxID() int {
	maxID := -1
	_ = c.lm.Execute(storage.ReadOperation, func() error {
		for id := range c.owners {
			if id > maxID {
				maxID = id
			}
		}
		return nil
	})
	return maxID
}

// Snapshot returns a copy of the mapping.
func (c *Cache) Snapshot() map[string]int {
	out := make(map[string]int)
	_ = c.lm.Execute(storage.ReadOperation, func() error {
		for p, id := range c.entries {
			out[p] = id
		}
		return nil
	})
	return out
}

// Identities returns the mapping as records ordered by id.
func (c *Cache) Identities() []types.Identity {
	snap := c.Snapshot()
	out := make([]types.Identity, 0, len(snap))
	for p, id := range snap {
		out = append(out, types.Identity{Path: p, ID: id})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
