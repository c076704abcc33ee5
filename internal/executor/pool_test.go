package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newStartedPool(t *testing.T, workers, queueSize int) *Pool {
	t.Helper()

	pool, err := NewPool(workers, queueSize, nil)
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	pool.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = pool.Stop(ctx)
	})
	return pool
}

func TestPoolRunsTaskToCompletion(t *testing.T) {
	t.Parallel()

	pool := newStartedPool(t, 2, 4)

	f, err := pool.Submit(context.Background(), func(ctx context.Context) (int, error) {
		return 3, nil
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	units, err := f.Result()
	if err != nil || units != 3 {
		t.Fatalf("Result() = %d, %v; want 3, nil", units, err)
	}
	if f.State() != StateCompleted {
		t.Fatalf("State() = %s, want completed", f.State())
	}
}

func TestPoolTaskFailure(t *testing.T) {
	t.Parallel()

	pool := newStartedPool(t, 1, 1)
	boom := errors.New("boom")

	f, err := pool.Submit(context.Background(), func(ctx context.Context) (int, error) {
		return 1, boom
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	units, err := f.Result()
	if !errors.Is(err, boom) || units != 1 {
		t.Fatalf("Result() = %d, %v; want 1, boom", units, err)
	}
	if f.State() != StateFailed {
		t.Fatalf("State() = %s, want failed", f.State())
	}
}

func TestPoolRecoversPanics(t *testing.T) {
	t.Parallel()

	pool := newStartedPool(t, 1, 1)

	f, err := pool.Submit(context.Background(), func(ctx context.Context) (int, error) {
		panic("kaboom")
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	_, err = f.Result()
	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("expected PanicError, got %v", err)
	}

	// The worker survives the panic.
	next, err := pool.Submit(context.Background(), func(ctx context.Context) (int, error) { return 1, nil })
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if units, err := next.Result(); err != nil || units != 1 {
		t.Fatalf("Result() = %d, %v", units, err)
	}
}

func TestPoolSkipsUnitAbandonedWhileQueued(t *testing.T) {
	t.Parallel()

	pool := newStartedPool(t, 1, 2)

	release := make(chan struct{})
	blocker, err := pool.Submit(context.Background(), func(ctx context.Context) (int, error) {
		<-release
		return 0, nil
	})
	if err != nil {
		t.Fatalf("Submit(blocker) error = %v", err)
	}

	ran := false
	queued, err := pool.Submit(context.Background(), func(ctx context.Context) (int, error) {
		ran = true
		return 1, nil
	})
	if err != nil {
		t.Fatalf("Submit(queued) error = %v", err)
	}

	if !queued.Abandon(StateTimedOut) {
		t.Fatal("Abandon() on queued unit returned false")
	}
	close(release)

	if _, err := blocker.Result(); err != nil {
		t.Fatalf("blocker Result() error = %v", err)
	}
	if _, err := queued.Result(); !errors.Is(err, ErrUnitSkipped) {
		t.Fatalf("queued Result() error = %v, want ErrUnitSkipped", err)
	}
	if ran {
		t.Fatal("abandoned unit was executed")
	}
	if queued.State() != StateTimedOut {
		t.Fatalf("State() = %s, want timed_out", queued.State())
	}
}

func TestFutureAbandonIsStickyWhileRunning(t *testing.T) {
	t.Parallel()

	pool := newStartedPool(t, 1, 1)

	started := make(chan struct{})
	f, err := pool.Submit(context.Background(), func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		return 2, nil
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	<-started
	if !f.Abandon(StateTimedOut) {
		t.Fatal("Abandon() on running unit returned false")
	}
	if f.Abandon(StateCanceled) {
		t.Fatal("second Abandon() should not change state")
	}

	units, _ := f.Result()
	if units != 2 {
		t.Fatalf("units = %d, want 2", units)
	}
	if f.State() != StateTimedOut {
		t.Fatalf("State() = %s, want timed_out", f.State())
	}
}

func TestFutureAbandonAfterCompletion(t *testing.T) {
	t.Parallel()

	pool := newStartedPool(t, 1, 1)

	f, err := pool.Submit(context.Background(), func(ctx context.Context) (int, error) { return 1, nil })
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	<-f.Done()

	if f.Abandon(StateTimedOut) {
		t.Fatal("Abandon() after completion returned true")
	}
	if f.State() != StateCompleted {
		t.Fatalf("State() = %s, want completed", f.State())
	}
}

func TestPoolStopFailsQueuedAndRejectsNew(t *testing.T) {
	t.Parallel()

	pool, err := NewPool(1, 4, nil)
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}

	// Not started: units stay queued until Stop fails them.
	queued, err := pool.Submit(context.Background(), func(ctx context.Context) (int, error) { return 1, nil })
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if err := pool.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if _, err := queued.Result(); !errors.Is(err, ErrPoolStopped) {
		t.Fatalf("queued Result() error = %v, want ErrPoolStopped", err)
	}
	if _, err := pool.Submit(context.Background(), func(ctx context.Context) (int, error) { return 0, nil }); !errors.Is(err, ErrPoolStopped) {
		t.Fatalf("Submit() after Stop error = %v, want ErrPoolStopped", err)
	}
	if err := pool.Stop(context.Background()); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
}

func TestPoolStopUnblocksFullQueueSubmit(t *testing.T) {
	t.Parallel()

	pool, err := NewPool(1, 1, nil)
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}

	noop := func(ctx context.Context) (int, error) { return 0, nil }
	if _, err := pool.Submit(context.Background(), noop); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	var submitErr error
	go func() {
		defer wg.Done()
		_, submitErr = pool.Submit(context.Background(), noop)
	}()

	time.Sleep(20 * time.Millisecond)
	if err := pool.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	wg.Wait()

	if !errors.Is(submitErr, ErrPoolStopped) {
		t.Fatalf("blocked Submit() error = %v, want ErrPoolStopped", submitErr)
	}
}

func TestPoolSubmitHonoursContext(t *testing.T) {
	t.Parallel()

	pool, err := NewPool(1, 1, nil)
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	t.Cleanup(func() { _ = pool.Stop(context.Background()) })

	noop := func(ctx context.Context) (int, error) { return 0, nil }
	if _, err := pool.Submit(context.Background(), noop); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := pool.Submit(ctx, noop); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Submit() error = %v, want deadline exceeded", err)
	}
}

func TestPoolSubmitRefusesEndedContext(t *testing.T) {
	t.Parallel()

	pool, err := NewPool(1, 4, nil)
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	t.Cleanup(func() { _ = pool.Stop(context.Background()) })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	_, err = pool.Submit(ctx, func(context.Context) (int, error) {
		ran = true
		return 0, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Submit() error = %v, want context.Canceled", err)
	}

	pool.Start()
	_ = pool.Stop(context.Background())
	if ran {
		t.Fatal("unit submitted with an ended context was executed")
	}
}

func TestPoolStopCancelsRunningUnitsOnDeadline(t *testing.T) {
	t.Parallel()

	pool, err := NewPool(1, 1, nil)
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	pool.Start()

	started := make(chan struct{})
	f, err := pool.Submit(context.Background(), func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := pool.Stop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Stop() error = %v, want deadline exceeded", err)
	}
	if _, err := f.Result(); !errors.Is(err, context.Canceled) {
		t.Fatalf("Result() error = %v, want context.Canceled", err)
	}
}
