// Package source provides loaders that fetch bundle code for the
// orchestrator: from a development server during development, or from
// packaged artifacts in release builds.
package source

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/splitbundle/internal/validation"
)

// Mode selects where bundles are fetched from.
type Mode string

const (
	// ModeDev fetches bundles from the development server
	ModeDev Mode = "dev"

	// ModeRelease reads packaged bundle artifacts
	ModeRelease Mode = "release"
)

// Default locations
const (
	DefaultDevServer = "http://localhost:8081"
	DefaultPlatform  = "ios"
	ArtifactExt      = ".jsbundle"
)

// Locator resolves a bundle name to where its code lives.
type Locator struct {
	Mode         Mode
	DevServer    string
	ArtifactsDir string
	Platform     string
}

// URL returns the development server URL serving name.
func (l Locator) URL(name string) (string, error) {
	if err := validation.ValidateBundleName(name); err != nil {
		return "", err
	}
	server := l.DevServer
	if server == "" {
		server = DefaultDevServer
	}
	u, err := url.Parse(strings.TrimRight(server, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid dev server %q: %w", server, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid dev server %q: scheme and host required", server)
	}

	platform := l.Platform
	if platform == "" {
		platform = DefaultPlatform
	}
	u = u.JoinPath(name + ".bundle")
	q := url.Values{}
	q.Set("platform", platform)
	q.Set("dev", "true")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Path returns the packaged artifact path for name. Names that are not
// valid bundle names are rejected so the path stays inside ArtifactsDir.
func (l Locator) Path(name string) (string, error) {
	if err := validation.ValidateBundleName(name); err != nil {
		return "", err
	}
	return filepath.Join(l.ArtifactsDir, name+ArtifactExt), nil
}

// Locate returns the URL or path for name depending on the mode.
func (l Locator) Locate(name string) (string, error) {
	switch l.Mode {
	case ModeDev:
		return l.URL(name)
	case ModeRelease, "":
		return l.Path(name)
	default:
		return "", fmt.Errorf("unknown runtime mode %q", l.Mode)
	}
}
