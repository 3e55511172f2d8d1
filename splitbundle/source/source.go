package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arthur-debert/splitbundle/splitbundle/loader"
)

// Fallback tries primary and, when it fails, secondary. The development
// setup uses it to fall back to packaged artifacts when no server answers.
func Fallback(primary, secondary loader.Loader, log *slog.Logger) loader.Loader {
	return loader.LoaderFunc(func(ctx context.Context, name string) error {
		err := primary.LoadBundle(ctx, name)
		if err == nil {
			return nil
		}
		logger(log).Warn("primary bundle source failed, falling back", "bundle", name, "error", err)
		if fbErr := secondary.LoadBundle(ctx, name); fbErr != nil {
			return errors.Join(err, fbErr)
		}
		return nil
	})
}

// New returns the loader matching loc.Mode. In dev mode with an artifacts
// directory configured, packaged artifacts back up the server.
func New(loc Locator, eval Evaluator, log *slog.Logger) (loader.Loader, error) {
	file := &FileLoader{Locator: loc, Evaluate: eval, Logger: log}

	switch loc.Mode {
	case ModeRelease, "":
		return file, nil
	case ModeDev:
		if _, err := loc.URL("index"); err != nil {
			return nil, err
		}
		dev := &HTTPLoader{Locator: loc, Evaluate: eval, Logger: log}
		if loc.ArtifactsDir == "" {
			return dev, nil
		}
		return Fallback(dev, file, log), nil
	default:
		return nil, fmt.Errorf("unknown runtime mode %q", loc.Mode)
	}
}
