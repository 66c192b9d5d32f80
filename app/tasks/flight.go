package tasks

import (
	"sync"
	"sync/atomic"
)

// Flight allows at most one run at a time. Calls made while a run is in
// progress are rejected, never queued.
type Flight struct {
	mu      sync.Mutex
	running atomic.Bool
}

// TryRun runs fn unless another run is in progress and reports whether fn ran.
func (f *Flight) TryRun(fn func()) bool {
	if !f.acquire() {
		return false
	}
	defer f.release()

	fn()
	return true
}

// TryGo is TryRun on a new goroutine. It reports whether the run was started.
func (f *Flight) TryGo(fn func()) bool {
	if !f.acquire() {
		return false
	}

	go func() {
		defer f.release()
		fn()
	}()
	return true
}

func (f *Flight) Running() bool {
	return f.running.Load()
}

func (f *Flight) acquire() bool {
	if !f.mu.TryLock() {
		return false
	}
	f.running.Store(true)
	return true
}

func (f *Flight) release() {
	f.running.Store(false)
	f.mu.Unlock()
}
