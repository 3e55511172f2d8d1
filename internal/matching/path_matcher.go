package matching

import (
	"path"
	"strings"
)

// PathMatcher matches module paths against a list of patterns. A pattern with
// glob metacharacters is matched against every path segment suffix using
// path.Match; any other pattern matches when it occurs as a substring.
type PathMatcher struct {
	patterns []string
}

// NewPathMatcher creates a matcher for the given patterns. Empty patterns are
// dropped.
func NewPathMatcher(patterns ...string) *PathMatcher {
	m := &PathMatcher{}
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			m.patterns = append(m.patterns, p)
		}
	}
	return m
}

// Matches reports whether any pattern matches p
func (m *PathMatcher) Matches(p string) bool {
	_, ok := m.Match(p)
	return ok
}

// Match returns the first pattern matching p
func (m *PathMatcher) Match(p string) (string, bool) {
	if m == nil {
		return "", false
	}
	for _, pattern := range m.patterns {
		if !isGlob(pattern) {
			if strings.Contains(p, pattern) {
				return pattern, true
			}
			continue
		}
		if globMatches(pattern, p) {
			return pattern, true
		}
	}
	return "", false
}

// Patterns returns the active patterns
func (m *PathMatcher) Patterns() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.patterns...)
}

// HasSegment reports whether dir appears as a whole segment of p.
func HasSegment(p, dir string) bool {
	if dir == "" {
		return false
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == dir {
			return true
		}
	}
	return false
}

func isGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}

// globMatches tries pattern against p and each of its trailing segment runs,
// so "polyfills/*.js" matches "node_modules/core/polyfills/array.js".
func globMatches(pattern, p string) bool {
	for {
		if ok, err := path.Match(pattern, p); err == nil && ok {
			return true
		}
		i := strings.IndexByte(p, '/')
		if i < 0 {
			return false
		}
		p = p[i+1:]
	}
}
