package async

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arborcms/arbor/pkg/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func TestSafeGo_Executes(t *testing.T) {
	var executed atomic.Bool

	SafeGo(context.Background(), testLogger(), time.Second, "test task", func(ctx context.Context) error {
		executed.Store(true)
		return nil
	})

	deadline := time.After(time.Second)
	for !executed.Load() {
		select {
		case <-deadline:
			t.Fatal("SafeGo did not execute the function")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSafeGo_RecoversPanic(t *testing.T) {
	done := make(chan struct{})

	SafeGo(context.Background(), testLogger(), time.Second, "panicking task", func(ctx context.Context) error {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Task did not run")
	}
	// Reaching this point without crashing is the assertion.
}

func TestSafeGo_ErrorDoesNotPropagate(t *testing.T) {
	done := make(chan struct{})

	SafeGo(context.Background(), testLogger(), time.Second, "failing task", func(ctx context.Context) error {
		defer close(done)
		return errors.New("expected failure")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Task did not run")
	}
}

func TestSafeGo_TimeoutCancelsContext(t *testing.T) {
	cancelled := make(chan struct{})

	SafeGo(context.Background(), testLogger(), 10*time.Millisecond, "slow task", func(ctx context.Context) error {
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	})

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("Context was not cancelled by the timeout")
	}
}

func TestPeriodic_RunsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	Periodic(ctx, testLogger(), 10*time.Millisecond, "ticker task", func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	deadline := time.After(time.Second)
	for runs.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("Expected at least 3 runs, got %d", runs.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	time.Sleep(30 * time.Millisecond)
	settled := runs.Load()
	time.Sleep(50 * time.Millisecond)
	if runs.Load() > settled+1 {
		t.Errorf("Loop kept running after cancel: %d then %d", settled, runs.Load())
	}
}

func TestPeriodic_PanicDoesNotStopTheLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	Periodic(ctx, testLogger(), 10*time.Millisecond, "flaky task", func(ctx context.Context) error {
		if runs.Add(1) == 1 {
			panic("first run explodes")
		}
		return nil
	})

	deadline := time.After(time.Second)
	for runs.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("Loop stopped after the panic, got %d runs", runs.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
}
