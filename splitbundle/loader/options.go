package loader

import (
	"log/slog"
	"time"
)

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithLogger sets the logger used for load events
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithClock sets the time source for state transition timestamps
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithFeatures registers the feature bundles PreloadAll loads after the root.
func WithFeatures(names ...string) Option {
	return func(o *Orchestrator) {
		o.features = append(o.features, names...)
	}
}
