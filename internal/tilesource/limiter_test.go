package tilesource

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestHostLimiter_SpacesCalls(t *testing.T) {
	l := NewHostLimiter(20) // 50ms 間隔
	defer l.Close()

	var calls int32
	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Do(context.Background(), "tile.example.com", func() error {
				atomic.AddInt32(&calls, 1)
				return nil
			}); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("3 calls finished after %v, want at least 100ms", elapsed)
	}
}

func TestHostLimiter_ErrorAndCancel(t *testing.T) {
	l := NewHostLimiter(100)
	defer l.Close()

	boom := errors.New("boom")
	if err := l.Do(context.Background(), "a", func() error { return boom }); !errors.Is(err, boom) {
		t.Errorf("Do error = %v, want %v", err, boom)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := l.Do(ctx, "a", func() error { called = true; return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled Do error = %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if called {
		t.Error("fn ran for a cancelled context")
	}
}
