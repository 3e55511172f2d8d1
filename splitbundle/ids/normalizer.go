package ids

import (
	"path/filepath"
	"strings"
)

// Normalizer turns the absolute paths a bundler reports into build-root
// relative, slash-separated keys. Absolute paths carry machine specific
// prefixes, so two machines building the same tree would otherwise produce
// different cache keys.
type Normalizer struct {
	Root string
}

// NewNormalizer returns a Normalizer for the given project root.
// An empty root keeps paths as they are apart from separator conversion.
func NewNormalizer(root string) *Normalizer {
	if root != "" {
		root = filepath.Clean(root)
	}
	return &Normalizer{Root: root}
}

// Normalize returns the cache key for path. Paths outside the root are kept
// whole, since trimming them could make two distinct modules collide.
func (n *Normalizer) Normalize(path string) string {
	if n == nil || n.Root == "" || !filepath.IsAbs(path) {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(n.Root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
