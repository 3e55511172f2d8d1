// Package loader coordinates runtime loading of split bundles.
//
// Every feature bundle depends on exactly one root bundle. A request for a
// feature first makes sure the root is loaded, then runs the external loader
// for the feature. Concurrent requests for a bundle that is already loading
// are queued behind the in-flight load instead of starting another one, and
// every queued caller is notified exactly once when it settles.
//
// A load, once started, always runs to completion. Callers can stop waiting
// for it by cancelling their context but cannot abort it.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/arthur-debert/splitbundle/types"
)

// Loader fetches and evaluates one bundle. It is called at most once at a
// time per bundle name.
type Loader interface {
	LoadBundle(ctx context.Context, name string) error
}

// LoaderFunc adapts a function to the Loader interface
type LoaderFunc func(ctx context.Context, name string) error

// LoadBundle implements Loader
func (f LoaderFunc) LoadBundle(ctx context.Context, name string) error {
	return f(ctx, name)
}

// Outcome is delivered to a Callback when a requested bundle settles.
type Outcome struct {
	Bundle string
	Err    error

	// Attempt identifies the load attempt that produced the outcome
	Attempt string
}

// Callback receives the outcome of a load request. It runs on the goroutine
// that settled the load and must not block.
type Callback func(Outcome)

// Info is a point-in-time view of one bundle's state.
type Info struct {
	Name      string             `json:"name" yaml:"name"`
	Status    types.BundleStatus `json:"status" yaml:"status"`
	Attempts  int                `json:"attempts" yaml:"attempts"`
	AttemptID string             `json:"attempt_id,omitempty" yaml:"attempt_id,omitempty"`
	LastError string             `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	Waiters   int                `json:"waiters" yaml:"waiters"`
	UpdatedAt time.Time          `json:"updated_at" yaml:"updated_at"`
}

type bundleState struct {
	status    types.BundleStatus
	waiters   []Callback
	attempts  int
	attemptID string
	lastErr   error
	updatedAt time.Time
}

// Orchestrator owns the per-bundle state table.
type Orchestrator struct {
	mu     sync.Mutex
	states map[string]*bundleState

	root     string
	features []string
	loader   Loader
	logger   *slog.Logger
	now      func() time.Time
}

// New creates an Orchestrator for the given root bundle. Every other bundle
// name is treated as a feature depending on root.
func New(root string, loader Loader, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		states: make(map[string]*bundleState),
		root:   root,
		loader: loader,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Root returns the root bundle name
func (o *Orchestrator) Root() string {
	return o.root
}

// Features returns the bundles PreloadAll loads after the root
func (o *Orchestrator) Features() []string {
	return append([]string(nil), o.features...)
}

// Go requests name and calls cb once it settles. A bundle that is already
// loaded is reported synchronously.
func (o *Orchestrator) Go(ctx context.Context, name string, cb Callback) {
	if cb == nil {
		cb = func(Outcome) {}
	}
	if name == "" {
		cb(Outcome{Bundle: name, Err: ErrEmptyBundleName})
		return
	}

	o.mu.Lock()
	st := o.stateLocked(name)
	switch st.status {
	case types.Loaded:
		attempt := st.attemptID
		o.mu.Unlock()
		cb(Outcome{Bundle: name, Attempt: attempt})
		return
	case types.Loading:
		st.waiters = append(st.waiters, cb)
		attempt, queued := st.attemptID, len(st.waiters)
		o.mu.Unlock()
		o.logger.Debug("bundle load coalesced", "bundle", name, "attempt", attempt, "waiters", queued)
		return
	}

	st.status = types.Loading
	st.attempts++
	st.attemptID = uuid.NewString()
	st.waiters = append(st.waiters, cb)
	st.updatedAt = o.now()
	attempt := st.attemptID
	o.mu.Unlock()

	o.logger.Info("bundle load started", "bundle", name, "attempt", attempt)
	go o.run(context.WithoutCancel(ctx), name, attempt)
}

// Load requests name and blocks until it settles or ctx ends. When ctx ends
// first the load keeps running and ctx.Err() is returned.
func (o *Orchestrator) Load(ctx context.Context, name string) error {
	done := make(chan Outcome, 1)
	o.Go(ctx, name, func(out Outcome) {
		done <- out
	})

	select {
	case out := <-done:
		return out.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) run(ctx context.Context, name, attempt string) {
	started := o.now()
	var err error
	if name != o.root {
		if depErr := o.awaitRoot(ctx); depErr != nil {
			err = &DependencyLoadFailedError{Bundle: name, Dependency: o.root, Err: depErr}
		}
	}
	if err == nil {
		if loadErr := o.invoke(ctx, name); loadErr != nil {
			err = &LoaderFailedError{Bundle: name, Err: loadErr}
		}
	}
	o.settle(name, attempt, err, o.now().Sub(started))
}

func (o *Orchestrator) awaitRoot(ctx context.Context) error {
	done := make(chan error, 1)
	o.Go(ctx, o.root, func(out Outcome) {
		done <- out.Err
	})
	return <-done
}

func (o *Orchestrator) invoke(ctx context.Context, name string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("loader panicked: %v", r)
		}
	}()
	return o.loader.LoadBundle(ctx, name)
}

func (o *Orchestrator) settle(name, attempt string, err error, took time.Duration) {
	o.mu.Lock()
	st, ok := o.states[name]
	if !ok || st.attemptID != attempt || st.status != types.Loading {
		o.mu.Unlock()
		o.logger.Warn("discarding result of reset load", "bundle", name, "attempt", attempt, "error", err)
		return
	}

	waiters := st.waiters
	st.waiters = nil
	st.updatedAt = o.now()
	if err != nil {
		st.status = types.Failed
		st.lastErr = err
	} else {
		st.status = types.Loaded
		st.lastErr = nil
	}
	o.mu.Unlock()

	if err != nil {
		o.logger.Error("bundle load failed", "bundle", name, "attempt", attempt, "waiters", len(waiters), "duration", took, "error", err)
	} else {
		o.logger.Info("bundle loaded", "bundle", name, "attempt", attempt, "waiters", len(waiters), "duration", took)
	}

	out := Outcome{Bundle: name, Err: err, Attempt: attempt}
	for _, cb := range waiters {
		cb(out)
	}
}

func (o *Orchestrator) stateLocked(name string) *bundleState {
	st, ok := o.states[name]
	if !ok {
		st = &bundleState{status: types.NotLoaded}
		o.states[name] = st
	}
	return st
}

// IsLoaded reports whether name finished loading successfully.
func (o *Orchestrator) IsLoaded(name string) bool {
	return o.Status(name) == types.Loaded
}

// Status returns the current status of name. Unknown bundles are NotLoaded.
func (o *Orchestrator) Status(name string) types.BundleStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	if st, ok := o.states[name]; ok {
		return st.status
	}
	return types.NotLoaded
}

// Info returns a view of name's state.
func (o *Orchestrator) Info(name string) Info {
	o.mu.Lock()
	defer o.mu.Unlock()
	st, ok := o.states[name]
	if !ok {
		return Info{Name: name, Status: types.NotLoaded}
	}
	return infoOf(name, st)
}

// Snapshot returns every known bundle's state ordered by name.
func (o *Orchestrator) Snapshot() []Info {
	o.mu.Lock()
	out := make([]Info, 0, len(o.states))
	for name, st := range o.states {
		out = append(out, infoOf(name, st))
	}
	o.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func infoOf(name string, st *bundleState) Info {
	info := Info{
		Name:      name,
		Status:    st.status,
		Attempts:  st.attempts,
		AttemptID: st.attemptID,
		Waiters:   len(st.waiters),
		UpdatedAt: st.updatedAt,
	}
	if st.lastErr != nil {
		info.LastError = st.lastErr.Error()
	}
	return info
}

// PreloadAll loads the root, then every registered feature concurrently.
// It returns the first failure.
func (o *Orchestrator) PreloadAll(ctx context.Context) error {
	if err := o.Load(ctx, o.root); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range o.features {
		name := name
		g.Go(func() error {
			return o.Load(gctx, name)
		})
	}
	return g.Wait()
}

// Reset forgets every bundle state. It refuses with ErrResetWhileLoading while
// any bundle is loading, since dropping the state would strand its waiters.
func (o *Orchestrator) Reset() error {
	o.mu.Lock()
	for name, st := range o.states {
		if st.status == types.Loading {
			waiters := len(st.waiters)
			o.mu.Unlock()
			o.logger.Warn("reset refused", "bundle", name, "waiters", waiters)
			return fmt.Errorf("%w: %s", ErrResetWhileLoading, name)
		}
	}
	n := len(o.states)
	o.states = make(map[string]*bundleState)
	o.mu.Unlock()

	o.logger.Info("bundle states reset", "bundles", n)
	return nil
}

// ForceReset forgets every bundle state, failing the waiters of in-flight
// loads with ErrResetWhileLoading. Loads already running complete in the
// background and their results are discarded.
func (o *Orchestrator) ForceReset() {
	type dropped struct {
		name    string
		attempt string
		waiters []Callback
	}

	o.mu.Lock()
	var pending []dropped
	for name, st := range o.states {
		if st.status == types.Loading {
			pending = append(pending, dropped{name: name, attempt: st.attemptID, waiters: st.waiters})
		}
	}
	o.states = make(map[string]*bundleState)
	o.mu.Unlock()

	o.logger.Warn("bundle states force reset", "in_flight", len(pending))
	for _, d := range pending {
		out := Outcome{Bundle: d.name, Err: ErrResetWhileLoading, Attempt: d.attempt}
		for _, cb := range d.waiters {
			cb(out)
		}
	}
}
