package validation

import (
	"fmt"
	"path"
	"strings"
)

// maxBundleNameLength keeps names usable as file names on every platform
const maxBundleNameLength = 64

// ValidateBundleName checks that name can be used both as an artifact file
// name and as a URL path segment.
func ValidateBundleName(name string) error {
	if name == "" {
		return fmt.Errorf("bundle name cannot be empty")
	}
	if len(name) > maxBundleNameLength {
		return fmt.Errorf("bundle name %q too long: %d (maximum %d)", name, len(name), maxBundleNameLength)
	}
	if name == "." || name == ".." {
		return fmt.Errorf("bundle name %q is reserved", name)
	}
	for _, r := range name {
		if !isNameChar(r) {
			return fmt.Errorf("bundle name %q contains invalid character %q", name, r)
		}
	}
	return nil
}

// ValidateBundleSet checks the root and feature names together: every name
// must be valid, and no name may repeat or shadow the root.
func ValidateBundleSet(root string, features []string) error {
	if err := ValidateBundleName(root); err != nil {
		return fmt.Errorf("root: %w", err)
	}
	seen := map[string]bool{root: true}
	for _, f := range features {
		if err := ValidateBundleName(f); err != nil {
			return fmt.Errorf("feature: %w", err)
		}
		if seen[f] {
			if f == root {
				return fmt.Errorf("feature %q is the root bundle", f)
			}
			return fmt.Errorf("duplicate feature bundle: %s", f)
		}
		seen[f] = true
	}
	return nil
}

// ValidatePatterns checks module path patterns. Glob patterns must parse.
func ValidatePatterns(patterns []string) error {
	for i, p := range patterns {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("pattern %d is empty", i)
		}
		if _, err := path.Match(p, ""); err != nil {
			return fmt.Errorf("pattern %q: %w", p, err)
		}
	}
	return nil
}

// ValidateOffset checks a feature id offset
func ValidateOffset(offset int) error {
	if offset <= 0 {
		return fmt.Errorf("offset must be positive, got %d", offset)
	}
	return nil
}

func isNameChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
		r == '-' || r == '_' || r == '.'
}
