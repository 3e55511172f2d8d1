package ids

import (
	"path/filepath"
	"runtime"
	"testing"
)

func TestNormalizer(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("paths below are POSIX")
	}

	n := NewNormalizer("/work/app/")
	cases := []struct {
		in, want string
	}{
		{"/work/app/index.js", "index.js"},
		{"/work/app/node_modules/react/index.js", "node_modules/react/index.js"},
		{"src/index.js", "src/index.js"},
		{"/work/other/index.js", "/work/other/index.js"},
		{"/work/app", "."},
		{"", ""},
	}
	for _, tc := range cases {
		if got := n.Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	var none *Normalizer
	if got := none.Normalize(filepath.Join("a", "b.js")); got != "a/b.js" {
		t.Errorf("nil normalizer: got %q", got)
	}
}
