package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{" INFO ", slog.LevelInfo, true},
		{"error", slog.LevelError, true},
		{"verbose", slog.LevelWarn, false},
		{"", slog.LevelWarn, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseLevel(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCacheDirHonoursXDG(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg")
	if got, want := CacheDir(), filepath.Join("/tmp/xdg", AppName); got != want {
		t.Errorf("CacheDir() = %q, want %q", got, want)
	}
}

func TestInitWritesFileAndStderr(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	dir := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", dir)

	var stderr bytes.Buffer
	logger, closer, err := Init("info", &stderr)
	if err != nil {
		t.Fatal(err)
	}
	logger.Debug("hidden")
	logger.Info("cache reset", "path", "config/bundleInfo.json")
	_ = closer.Close()

	if !strings.Contains(stderr.String(), "cache reset") || strings.Contains(stderr.String(), "hidden") {
		t.Errorf("unexpected stderr output: %q", stderr.String())
	}

	data, err := os.ReadFile(filepath.Join(dir, AppName, AppName+".log"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if rec["msg"] != "cache reset" || rec["path"] != "config/bundleInfo.json" {
		t.Errorf("unexpected log record: %v", rec)
	}
}
