package utils

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Worker runs a fixed-delay loop on its own goroutine: cycle, then wait
// period(), repeat. There is no drift compensation; a slow cycle pushes
// every later cycle back by the same amount.
//
// Stop cancels the wait in progress and blocks until the loop goroutine
// has returned, so no cycle is in flight once Stop returns.
type Worker struct {
	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Start launches the loop. It returns false, and does nothing, when the
// worker is already running.
func (w *Worker) Start(clock Clock, period func() time.Duration, cycle func()) bool {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	w.cancel, w.done = cancel, done
	w.running.Store(true)
	w.mu.Unlock()

	go func() {
		defer close(done)
		for ctx.Err() == nil {
			cycle()
			if !clock.Sleep(ctx, period()) {
				return
			}
		}
	}()
	return true
}

// Stop halts the loop and waits for it to exit. It returns false when the
// worker was not running.
func (w *Worker) Stop() bool {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.running.Store(false)
	w.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	<-done
	return true
}

// Running reports whether Start has been called without a matching Stop.
func (w *Worker) Running() bool { return w.running.Load() }
