package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestLockManager(t *testing.T) {
	lm := NewLockManager()

	t.Run("ConcurrentReads", func(t *testing.T) {
		var wg sync.WaitGroup
		var mu sync.Mutex
		active, peak := 0, 0

		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = lm.Execute(ReadOperation, func() error {
					mu.Lock()
					active++
					if active > peak {
						peak = active
					}
					mu.Unlock()
					time.Sleep(20 * time.Millisecond)
					mu.Lock()
					active--
					mu.Unlock()
					return nil
				})
			}()
		}
		wg.Wait()

		if peak < 2 {
			t.Errorf("expected overlapping reads, peak concurrency was %d", peak)
		}
	})

	t.Run("WritesAreExclusive", func(t *testing.T) {
		var wg sync.WaitGroup
		counter := 0
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = lm.Execute(WriteOperation, func() error {
					v := counter
					time.Sleep(time.Microsecond)
					counter = v + 1
					return nil
				})
			}()
		}
		wg.Wait()
		if counter != 50 {
			t.Errorf("lost updates: counter=%d", counter)
		}
	})

	t.Run("ErrorPropagates", func(t *testing.T) {
		want := errors.New("boom")
		if err := lm.Execute(WriteOperation, func() error { return want }); !errors.Is(err, want) {
			t.Errorf("expected %v, got %v", want, err)
		}
	})
}

func TestWithFileLock(t *testing.T) {
	ctx := context.Background()

	t.Run("ReleasesAfterRun", func(t *testing.T) {
		lock := &MockFileLock{}
		ran := false
		if err := WithFileLock(ctx, lock, func() error { ran = true; return nil }); err != nil {
			t.Fatal(err)
		}
		if !ran || lock.IsLocked() {
			t.Errorf("ran=%v locked=%v", ran, lock.IsLocked())
		}
	})

	t.Run("HeldLockTimesOut", func(t *testing.T) {
		lock := &MockFileLock{}
		lock.Hold()
		err := WithFileLock(ctx, lock, func() error {
			t.Error("fn must not run without the lock")
			return nil
		})
		if !errors.Is(err, ErrLockTimeout) {
			t.Errorf("expected ErrLockTimeout, got %v", err)
		}
		if lock.LockAttempts != lockMaxRetries {
			t.Errorf("expected %d attempts, got %d", lockMaxRetries, lock.LockAttempts)
		}
	})

	t.Run("RealFlock", func(t *testing.T) {
		path := LockPath(filepath.Join(t.TempDir(), "bundleInfo.json"))
		lock := FlockFactory{}.New(path)
		if err := WithFileLock(ctx, lock, func() error { return nil }); err != nil {
			t.Fatalf("flock: %v", err)
		}
	})
}

func TestWriteFileAtomic(t *testing.T) {
	fsys := NewMockFileSystem()
	if err := WriteFileAtomic(fsys, "cache.json", []byte("{}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if got, _ := fsys.GetFileContent("cache.json"); string(got) != "{}\n" {
		t.Errorf("unexpected content %q", got)
	}
	if fsys.FileExists("cache.json.tmp") {
		t.Error("temp file left behind")
	}
}
