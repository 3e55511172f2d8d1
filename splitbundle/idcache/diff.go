package idcache

import (
	"fmt"
	"sort"

	"github.com/pmezard/go-difflib/difflib"
)

// Diff renders a unified diff between two mappings in their on-disk form.
// It returns "" when both encode to the same bytes. Because Encode sorts
// keys, a renumbered module shows up as a single changed line.
func Diff(from, to map[string]int, fromName, toName string) (string, error) {
	a, err := Encode(from)
	if err != nil {
		return "", err
	}
	b, err := Encode(to)
	if err != nil {
		return "", err
	}
	if string(a) == string(b) {
		return "", nil
	}

	out, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(a)),
		B:        difflib.SplitLines(string(b)),
		FromFile: fromName,
		ToFile:   toName,
		Context:  1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to diff caches: %w", err)
	}
	return out, nil
}

// Renumbered lists paths present in both mappings whose id changed.
// A non-empty result between two base builds without a reset means a feature
// bundle built against the older mapping would reference the wrong modules.
func Renumbered(from, to map[string]int) []string {
	var out []string
	for p, id := range from {
		if other, ok := to[p]; ok && other != id {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}
