package validation

import (
	"strings"
	"testing"
)

func TestValidateBundleName(t *testing.T) {
	valid := []string{"basic", "main", "profile-v2", "feature_settings", "a.b"}
	for _, name := range valid {
		if err := ValidateBundleName(name); err != nil {
			t.Errorf("ValidateBundleName(%q) unexpected error: %v", name, err)
		}
	}

	invalid := []string{"", ".", "..", "feature/main", "main bundle", "main?dev=true", strings.Repeat("x", 65)}
	for _, name := range invalid {
		if err := ValidateBundleName(name); err == nil {
			t.Errorf("ValidateBundleName(%q) expected error", name)
		}
	}
}

func TestValidateBundleSet(t *testing.T) {
	tests := []struct {
		name     string
		root     string
		features []string
		wantErr  string
	}{
		{"valid", "basic", []string{"main", "profile"}, ""},
		{"no features", "basic", nil, ""},
		{"empty root", "", []string{"main"}, "root"},
		{"duplicate", "basic", []string{"main", "main"}, "duplicate"},
		{"root as feature", "basic", []string{"basic"}, "root bundle"},
		{"bad feature", "basic", []string{"a/b"}, "feature"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBundleSet(tt.root, tt.features)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidatePatterns(t *testing.T) {
	if err := ValidatePatterns([]string{"__prelude__", "polyfills/*.js"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidatePatterns([]string{"polyfills/[.js"}); err == nil {
		t.Error("expected error for malformed glob")
	}
	if err := ValidatePatterns([]string{" "}); err == nil {
		t.Error("expected error for blank pattern")
	}
}

func TestValidateOffset(t *testing.T) {
	if err := ValidateOffset(10_000_000); err != nil {
		t.Error(err)
	}
	if err := ValidateOffset(0); err == nil {
		t.Error("expected error for zero offset")
	}
}
