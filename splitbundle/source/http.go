package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// maxErrorBody caps how much of a failed response ends up in the error
const maxErrorBody = 512

// HTTPLoader fetches bundles from the development server.
type HTTPLoader struct {
	Locator  Locator
	Evaluate Evaluator
	Client   *http.Client
	Logger   *slog.Logger
}

// LoadBundle implements loader.Loader
func (l *HTTPLoader) LoadBundle(ctx context.Context, name string) error {
	target, err := l.Locator.URL(name)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{URL: target, StatusCode: resp.StatusCode, Body: string(body)}
	}

	code, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", target, err)
	}
	if len(code) == 0 {
		return fmt.Errorf("%s: %w", target, ErrEmptyBundle)
	}

	logger(l.Logger).Debug("bundle fetched", "bundle", name, "url", target, "bytes", len(code))
	return evaluate(ctx, l.Evaluate, name, code)
}

// StatusError reports a non-2xx response from the development server.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("GET %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("GET %s: %d %s: %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}
