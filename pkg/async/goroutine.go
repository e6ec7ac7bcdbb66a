package async

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/arborcms/arbor/pkg/observability"
)

// SafeGo runs fn in a goroutine with a bounded lifetime. Panics are
// recovered and logged instead of crashing the process, and errors are
// logged rather than returned; use it for background work whose failure the
// caller cannot act on anyway.
func SafeGo(parentCtx context.Context, log *observability.Logger, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				log.WithField("panic", r).
					WithField("stack", string(debug.Stack())).
					WithField("task", taskName).
					Error("PANIC recovered in background task")
			}
		}()

		if err := fn(ctx); err != nil {
			log.WithError(err).WithField("task", taskName).Error("background task failed")
		}
	}()
}

// Periodic runs fn every interval until the context is cancelled. Each run
// gets the interval as its own timeout so a stuck run cannot block the
// schedule. Panics in one run are recovered and do not stop the loop.
func Periodic(ctx context.Context, log *observability.Logger, interval time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runOnce(ctx, log, interval, taskName, fn)
			}
		}
	}()
}

func runOnce(parentCtx context.Context, log *observability.Logger, timeout time.Duration, taskName string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(parentCtx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).
				WithField("stack", string(debug.Stack())).
				WithField("task", taskName).
				Error("PANIC recovered in periodic task")
		}
	}()

	if err := fn(ctx); err != nil {
		log.WithError(err).WithField("task", taskName).Error("periodic task failed")
	}
}
