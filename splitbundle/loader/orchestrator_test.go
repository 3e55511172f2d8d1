package loader_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/arthur-debert/splitbundle/splitbundle/loader"
	"github.com/arthur-debert/splitbundle/testutil"
	"github.com/arthur-debert/splitbundle/types"
)

const (
	root    = "basic"
	feature = "main"
)

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for loader call")
	}
}

func TestLoadRootBeforeDependent(t *testing.T) {
	rec := testutil.NewRecordingLoader()
	o := loader.New(root, rec)

	if err := o.Load(context.Background(), feature); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{root, feature}, rec.Calls()); diff != "" {
		t.Errorf("load order mismatch (-want +got):\n%s", diff)
	}
	if !o.IsLoaded(root) || !o.IsLoaded(feature) {
		t.Errorf("expected both bundles loaded, got %v / %v", o.Status(root), o.Status(feature))
	}
}

func TestLoadedIsIdempotent(t *testing.T) {
	rec := testutil.NewRecordingLoader()
	o := loader.New(root, rec)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := o.Load(ctx, feature); err != nil {
			t.Fatalf("load %d: %v", i, err)
		}
	}
	if rec.CallCount(root) != 1 || rec.CallCount(feature) != 1 {
		t.Errorf("expected one call per bundle, got %v", rec.Calls())
	}

	// An already loaded bundle reports synchronously
	called := false
	o.Go(ctx, feature, func(out loader.Outcome) {
		called = out.Err == nil
	})
	if !called {
		t.Error("expected synchronous success for loaded bundle")
	}
}

func TestConcurrentRequestsCoalesce(t *testing.T) {
	rec := testutil.NewRecordingLoader()
	started := rec.Gate(feature)
	o := loader.New(root, rec)
	ctx := context.Background()

	const callers = 8
	var (
		wg       sync.WaitGroup
		notified atomic.Int32
		attempts sync.Map
	)
	wg.Add(callers)
	o.Go(ctx, feature, func(out loader.Outcome) {
		defer wg.Done()
		notified.Add(1)
		attempts.Store(out.Attempt, true)
	})
	waitFor(t, started)

	for i := 1; i < callers; i++ {
		o.Go(ctx, feature, func(out loader.Outcome) {
			defer wg.Done()
			if out.Err != nil {
				t.Errorf("waiter got error: %v", out.Err)
			}
			notified.Add(1)
			attempts.Store(out.Attempt, true)
		})
	}
	if info := o.Info(feature); info.Status != types.Loading || info.Waiters != callers {
		t.Errorf("expected %d waiters on a loading bundle, got %+v", callers, info)
	}

	rec.Release(feature)
	wg.Wait()

	if got := notified.Load(); got != callers {
		t.Errorf("expected %d notifications, got %d", callers, got)
	}
	if rec.CallCount(feature) != 1 {
		t.Errorf("expected a single loader call, got %d", rec.CallCount(feature))
	}
	n := 0
	attempts.Range(func(_, _ any) bool { n++; return true })
	if n != 1 {
		t.Errorf("waiters should share one attempt, saw %d", n)
	}
	if info := o.Info(feature); info.Waiters != 0 {
		t.Errorf("waiter queue not cleared: %+v", info)
	}
}

func TestDependencyFailure(t *testing.T) {
	rec := testutil.NewRecordingLoader().FailAlways(root)
	o := loader.New(root, rec)

	err := o.Load(context.Background(), feature)
	var depErr *loader.DependencyLoadFailedError
	if !errors.As(err, &depErr) {
		t.Fatalf("expected DependencyLoadFailedError, got %v", err)
	}
	if depErr.Bundle != feature || depErr.Dependency != root {
		t.Errorf("unexpected error details: %+v", depErr)
	}
	var rootErr *loader.LoaderFailedError
	if !errors.As(err, &rootErr) || rootErr.Bundle != root {
		t.Errorf("expected wrapped root LoaderFailedError, got %v", err)
	}

	if rec.CallCount(feature) != 0 {
		t.Error("dependent loader must not run when the root failed")
	}
	if o.Status(feature) != types.Failed || o.Status(root) != types.Failed {
		t.Errorf("expected both failed, got %v / %v", o.Status(root), o.Status(feature))
	}
}

func TestDependencyFailureNotifiesEveryWaiter(t *testing.T) {
	rec := testutil.NewRecordingLoader().Script(root, errors.New("network down"))
	started := rec.Gate(root)
	o := loader.New(root, rec)
	ctx := context.Background()

	results := make(chan error, 3)
	for i := 0; i < 3; i++ {
		o.Go(ctx, feature, func(out loader.Outcome) { results <- out.Err })
		if i == 0 {
			waitFor(t, started)
		}
	}
	rec.Release(root)

	for i := 0; i < 3; i++ {
		var depErr *loader.DependencyLoadFailedError
		if err := <-results; !errors.As(err, &depErr) {
			t.Errorf("waiter %d: expected DependencyLoadFailedError, got %v", i, err)
		}
	}
}

func TestFailedThenRetrySucceeds(t *testing.T) {
	rec := testutil.NewRecordingLoader().Script(feature, errors.New("bundle corrupted"))
	o := loader.New(root, rec)
	ctx := context.Background()

	err := o.Load(ctx, feature)
	var loadErr *loader.LoaderFailedError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected LoaderFailedError, got %v", err)
	}
	if o.Status(feature) != types.Failed {
		t.Errorf("expected failed, got %v", o.Status(feature))
	}
	if o.Info(feature).LastError == "" {
		t.Error("expected last error to be recorded")
	}

	if err := o.Load(ctx, feature); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if o.Status(feature) != types.Loaded {
		t.Errorf("expected loaded, got %v", o.Status(feature))
	}
	if rec.CallCount(root) != 1 {
		t.Errorf("root should be trusted on retry, loaded %d times", rec.CallCount(root))
	}
	info := o.Info(feature)
	if info.Attempts != 2 || info.LastError != "" {
		t.Errorf("unexpected info after retry: %+v", info)
	}
}

func TestFailedRootIsRetried(t *testing.T) {
	rec := testutil.NewRecordingLoader().Script(root, errors.New("timeout"))
	o := loader.New(root, rec)
	ctx := context.Background()

	if err := o.Load(ctx, feature); err == nil {
		t.Fatal("expected first load to fail")
	}
	if err := o.Load(ctx, feature); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if diff := cmp.Diff([]string{root, root, feature}, rec.Calls()); diff != "" {
		t.Errorf("call order mismatch (-want +got):\n%s", diff)
	}
}

func TestResetRefusedWhileLoading(t *testing.T) {
	rec := testutil.NewRecordingLoader()
	started := rec.Gate(feature)
	o := loader.New(root, rec)
	ctx := context.Background()

	done := make(chan error, 1)
	o.Go(ctx, feature, func(out loader.Outcome) { done <- out.Err })
	waitFor(t, started)

	if err := o.Reset(); !errors.Is(err, loader.ErrResetWhileLoading) {
		t.Errorf("expected ErrResetWhileLoading, got %v", err)
	}

	rec.Release(feature)
	if err := <-done; err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if err := o.Reset(); err != nil {
		t.Fatalf("reset after settle failed: %v", err)
	}
	if o.Status(feature) != types.NotLoaded || len(o.Snapshot()) != 0 {
		t.Errorf("expected empty state table, got %+v", o.Snapshot())
	}

	if err := o.Load(ctx, feature); err != nil {
		t.Fatal(err)
	}
	if rec.CallCount(feature) != 2 {
		t.Errorf("expected reload after reset, got %d calls", rec.CallCount(feature))
	}
}

func TestResetConcurrentWithWaiters(t *testing.T) {
	rec := testutil.NewRecordingLoader()
	started := rec.Gate(feature)
	o := loader.New(root, rec)
	ctx := context.Background()

	const rounds = 2000
	var settled atomic.Int32
	o.Go(ctx, feature, func(loader.Outcome) { settled.Add(1) })
	waitFor(t, started)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for r := 0; r < rounds; r++ {
			o.Go(ctx, feature, func(loader.Outcome) { settled.Add(1) })
		}
	}()
	go func() {
		defer wg.Done()
		for r := 0; r < rounds; r++ {
			if err := o.Reset(); !errors.Is(err, loader.ErrResetWhileLoading) {
				t.Errorf("expected ErrResetWhileLoading, got %v", err)
				return
			}
		}
	}()
	wg.Wait()

	rec.Release(feature)
	if err := o.Load(ctx, feature); err != nil {
		t.Fatal(err)
	}
	if got := settled.Load(); got != rounds+1 {
		t.Errorf("expected %d callbacks, got %d", rounds+1, got)
	}
	if rec.CallCount(feature) != 1 {
		t.Errorf("expected a single load, got %d", rec.CallCount(feature))
	}
}

func TestForceResetFailsWaiters(t *testing.T) {
	rec := testutil.NewRecordingLoader()
	started := rec.Gate(feature)
	o := loader.New(root, rec)
	ctx := context.Background()

	done := make(chan error, 2)
	o.Go(ctx, feature, func(out loader.Outcome) { done <- out.Err })
	waitFor(t, started)
	o.Go(ctx, feature, func(out loader.Outcome) { done <- out.Err })

	o.ForceReset()
	for i := 0; i < 2; i++ {
		if err := <-done; !errors.Is(err, loader.ErrResetWhileLoading) {
			t.Errorf("waiter %d: expected ErrResetWhileLoading, got %v", i, err)
		}
	}
	rec.Release(feature)

	if err := o.Load(ctx, feature); err != nil {
		t.Fatalf("load after force reset failed: %v", err)
	}
	if info := o.Info(feature); info.Status != types.Loaded || info.Attempts != 1 {
		t.Errorf("stale attempt leaked into new state: %+v", info)
	}
}

func TestCallerCancellationDoesNotAbortLoad(t *testing.T) {
	rec := testutil.NewRecordingLoader()
	started := rec.Gate(feature)
	o := loader.New(root, rec)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- o.Load(ctx, feature) }()
	waitFor(t, started)
	cancel()

	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	rec.Release(feature)

	if err := o.Load(context.Background(), feature); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if rec.CallCount(feature) != 1 {
		t.Errorf("cancelled caller should not restart the load, got %d calls", rec.CallCount(feature))
	}
}

func TestLoaderPanicFailsBundle(t *testing.T) {
	o := loader.New(root, loader.LoaderFunc(func(ctx context.Context, name string) error {
		if name == feature {
			panic("evaluator crashed")
		}
		return nil
	}))

	var loadErr *loader.LoaderFailedError
	if err := o.Load(context.Background(), feature); !errors.As(err, &loadErr) {
		t.Fatalf("expected LoaderFailedError, got %v", err)
	}
	if o.Status(feature) != types.Failed {
		t.Errorf("expected failed, got %v", o.Status(feature))
	}
}

func TestEmptyBundleName(t *testing.T) {
	o := loader.New(root, testutil.NewRecordingLoader())
	if err := o.Load(context.Background(), ""); !errors.Is(err, loader.ErrEmptyBundleName) {
		t.Errorf("expected ErrEmptyBundleName, got %v", err)
	}
}

func TestPreloadAll(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		rec := testutil.NewRecordingLoader()
		o := loader.New(root, rec, loader.WithFeatures("main", "profile", "settings"))
		if o.Root() != root {
			t.Errorf("expected root %q, got %q", root, o.Root())
		}
		features := o.Features()
		if diff := cmp.Diff([]string{"main", "profile", "settings"}, features); diff != "" {
			t.Errorf("features mismatch (-want +got):\n%s", diff)
		}
		features[0] = "mutated"
		if o.Features()[0] != "main" {
			t.Error("Features must return a copy")
		}

		if err := o.PreloadAll(context.Background()); err != nil {
			t.Fatal(err)
		}
		calls := rec.Calls()
		if len(calls) != 4 || calls[0] != root {
			t.Errorf("expected root first then three features, got %v", calls)
		}
		for _, info := range o.Snapshot() {
			if info.Status != types.Loaded {
				t.Errorf("%s not loaded: %v", info.Name, info.Status)
			}
		}
	})

	t.Run("FeatureFailure", func(t *testing.T) {
		rec := testutil.NewRecordingLoader().FailAlways("profile")
		o := loader.New(root, rec, loader.WithFeatures("main", "profile"))

		var loadErr *loader.LoaderFailedError
		if err := o.PreloadAll(context.Background()); !errors.As(err, &loadErr) || loadErr.Bundle != "profile" {
			t.Errorf("expected profile LoaderFailedError, got %v", err)
		}
	})

	t.Run("RootFailure", func(t *testing.T) {
		rec := testutil.NewRecordingLoader().FailAlways(root)
		o := loader.New(root, rec, loader.WithFeatures("main"))

		if err := o.PreloadAll(context.Background()); err == nil {
			t.Error("expected root failure")
		}
		if rec.CallCount("main") != 0 {
			t.Error("features must not load after root failure")
		}
	})
}

func TestInfoUsesClock(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	o := loader.New(root, testutil.NewRecordingLoader(), loader.WithClock(func() time.Time { return fixed }))

	if err := o.Load(context.Background(), root); err != nil {
		t.Fatal(err)
	}
	info := o.Info(root)
	if !info.UpdatedAt.Equal(fixed) {
		t.Errorf("expected timestamp %v, got %v", fixed, info.UpdatedAt)
	}
	if info.AttemptID == "" || info.Attempts != 1 {
		t.Errorf("expected attempt bookkeeping, got %+v", info)
	}
	if got := o.Info("unknown"); got.Status != types.NotLoaded || got.Attempts != 0 {
		t.Errorf("unknown bundle should be not loaded, got %+v", got)
	}
}

func TestConcurrentLoadsCallEachLoaderOnce(t *testing.T) {
	rec := testutil.NewRecordingLoader()
	bundles := []string{"main", "profile", "settings", root}
	o := loader.New(root, rec)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := o.Load(context.Background(), bundles[i%len(bundles)]); err != nil {
				t.Errorf("load failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	for _, b := range bundles {
		if n := rec.CallCount(b); n != 1 {
			t.Errorf("%s loaded %d times", b, n)
		}
	}
}
