package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/arthur-debert/splitbundle/splitbundle/storage"
)

// ErrEmptyBundle is returned for a bundle whose code is empty.
var ErrEmptyBundle = errors.New("bundle is empty")

// Evaluator runs fetched bundle code. A nil Evaluator discards the code.
type Evaluator func(ctx context.Context, name string, code []byte) error

// FileLoader reads packaged bundle artifacts.
type FileLoader struct {
	Locator  Locator
	Evaluate Evaluator
	FS       storage.FileSystem
	Logger   *slog.Logger
}

// LoadBundle implements loader.Loader
func (l *FileLoader) LoadBundle(ctx context.Context, name string) error {
	fsys := l.FS
	if fsys == nil {
		fsys = storage.OSFileSystem{}
	}
	path, err := l.Locator.Path(name)
	if err != nil {
		return err
	}

	info, err := fsys.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("bundle artifact %s not found: %w", path, err)
	}
	if err != nil {
		return fmt.Errorf("failed to stat bundle artifact: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("bundle artifact %s is a directory", path)
	}

	code, err := fsys.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read bundle artifact: %w", err)
	}
	if len(code) == 0 {
		return fmt.Errorf("%s: %w", path, ErrEmptyBundle)
	}

	logger(l.Logger).Debug("bundle artifact read", "bundle", name, "path", path, "bytes", len(code))
	return evaluate(ctx, l.Evaluate, name, code)
}

func evaluate(ctx context.Context, eval Evaluator, name string, code []byte) error {
	if eval == nil {
		return nil
	}
	if err := eval(ctx, name, code); err != nil {
		return fmt.Errorf("failed to evaluate bundle %s: %w", name, err)
	}
	return nil
}

func logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
