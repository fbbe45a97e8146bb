// Package safego launches background work that must never take the process down with it.
package safego

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Go launches fn in a new goroutine, recovering and logging any panic.
// Use it for every fire-and-forget goroutine (audit writes, file watchers).
func Go(fn func()) {
	go func() {
		defer recoverPanic()
		fn()
	}()
}

// Tracker runs background tasks with a per-task deadline and lets shutdown wait for them.
// The zero value is ready to use.
type Tracker struct {
	wg sync.WaitGroup
}

// Go runs fn in a goroutine with a context that expires after timeout.
// The context is detached from any request so the task outlives the response.
func (t *Tracker) Go(timeout time.Duration, fn func(ctx context.Context)) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer recoverPanic()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		fn(ctx)
	}()
}

// Wait blocks until every task started with Go has finished or ctx is done
func (t *Tracker) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func recoverPanic() {
	if r := recover(); r != nil {
		slog.Error("recovered panic in background goroutine", "panic", r)
	}
}
