// Package testutil holds fixtures shared by the splitbundle package tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/arthur-debert/splitbundle/splitbundle/idcache"
)

// CacheFileName mirrors the location the base build writes to by default.
const CacheFileName = "config/bundleInfo.json"

// WriteCache writes entries as a cache file inside a fresh temp dir and
// returns its path.
func WriteCache(t *testing.T, entries map[string]int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), CacheFileName)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create cache dir: %v", err)
	}
	data, err := idcache.Encode(entries)
	if err != nil {
		t.Fatalf("failed to encode cache: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write cache: %v", err)
	}
	return path
}

// WriteRawCache writes content verbatim, for malformed-input tests.
func WriteRawCache(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), CacheFileName)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create cache dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write cache: %v", err)
	}
	return path
}

// CachePath returns an unused cache path inside a fresh temp dir.
func CachePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), CacheFileName)
}

// ReadCache decodes the cache file at path.
func ReadCache(t *testing.T, path string) map[string]int {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read cache: %v", err)
	}
	entries, err := idcache.Decode(data)
	if err != nil {
		t.Fatalf("failed to decode cache %s: %v", path, err)
	}
	return entries
}

// AllocateAll runs fn over paths in order and fails the test on any error.
func AllocateAll(t *testing.T, fn func(string) (int, error), paths ...string) []int {
	t.Helper()

	out := make([]int, 0, len(paths))
	for _, p := range paths {
		id, err := fn(p)
		if err != nil {
			t.Fatalf("allocating %q: %v", p, err)
		}
		out = append(out, id)
	}
	return out
}
