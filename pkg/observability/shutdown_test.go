package observability

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

// trigger sends SIGTERM to the test process after a short delay so
// WaitForShutdown unblocks.
func trigger(t *testing.T) {
	t.Helper()
	go func() {
		time.Sleep(50 * time.Millisecond)
		syscall.Kill(syscall.Getpid(), syscall.SIGTERM)
	}()
}

func quietLogger() *Logger {
	return NewLogger(ErrorLevel, io.Discard)
}

func TestShutdownManager_RunsHooks(t *testing.T) {
	sm := NewShutdownManager(quietLogger(), nil, time.Second)

	var ran atomic.Int32
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		ran.Add(1)
		return nil
	})
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		ran.Add(1)
		return nil
	})

	trigger(t)
	if err := sm.WaitForShutdown(); err != nil {
		t.Fatalf("WaitForShutdown failed: %v", err)
	}
	if ran.Load() != 2 {
		t.Errorf("Expected 2 hooks to run, got %d", ran.Load())
	}
}

func TestShutdownManager_ReportsHookErrors(t *testing.T) {
	sm := NewShutdownManager(quietLogger(), nil, time.Second)

	hookErr := errors.New("redis close failed")
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		return hookErr
	})
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		return nil
	})

	trigger(t)
	err := sm.WaitForShutdown()
	if err == nil {
		t.Fatal("Expected an error from the failing hook")
	}
	if !errors.Is(err, hookErr) {
		t.Errorf("Expected the hook error to be wrapped, got %v", err)
	}
}

func TestShutdownManager_TimesOutOnStuckHook(t *testing.T) {
	sm := NewShutdownManager(quietLogger(), nil, 100*time.Millisecond)

	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(time.Second)
		return nil
	})

	trigger(t)
	start := time.Now()
	err := sm.WaitForShutdown()
	if err == nil {
		t.Fatal("Expected a timeout error")
	}
	if time.Since(start) > 800*time.Millisecond {
		t.Error("WaitForShutdown did not respect the timeout")
	}
}

func TestShutdownManager_DefaultTimeout(t *testing.T) {
	sm := NewShutdownManager(quietLogger(), nil, 0)
	if sm.timeout != 30*time.Second {
		t.Errorf("Expected 30s default timeout, got %v", sm.timeout)
	}
}
