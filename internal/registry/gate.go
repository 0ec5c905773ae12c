package registry

import (
	"sync"
	"time"
)

// Gate serializes all access to a Registry. At most one action runs at a time,
// so an action always sees an internally consistent registry.
type Gate struct {
	mu  sync.Mutex
	reg *Registry

	// wg tracks actions dispatched by WithReadWriteAsync.
	wg sync.WaitGroup
}

// NewGate creates a Gate owning an empty Registry.
func NewGate() *Gate {
	return &Gate{reg: newRegistry()}
}

// WithReadWrite runs action with exclusive access to the registry and returns
// once it completes. Actions must not call back into the same Gate.
func (g *Gate) WithReadWrite(action func(r *Registry)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	action(g.reg)
}

// WithReadWriteAsync dispatches action to a background goroutine and returns
// immediately. The action later runs under the same exclusive lock.
func (g *Gate) WithReadWriteAsync(action func(r *Registry)) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		g.WithReadWrite(action)
	}()
}

// RunAndAwait starts work and blocks until work calls done or timeout elapses.
// It returns true when done was called in time. On timeout the caller proceeds
// with whatever state existed; work keeps running and may call done later,
// which is then a no-op. done is safe to call more than once and from any
// goroutine. A non-positive timeout waits without bound.
//
// RunAndAwait does not take the gate's lock, so it may be used from inside a
// WithReadWrite action as long as work itself never waits on the gate.
func (g *Gate) RunAndAwait(timeout time.Duration, work func(done func())) bool {
	return runAndAwait(timeout, nil, work)
}

// RunAndAwaitCancel is RunAndAwait that also stops waiting when cancel is closed.
func (g *Gate) RunAndAwaitCancel(timeout time.Duration, cancel <-chan struct{}, work func(done func())) bool {
	return runAndAwait(timeout, cancel, work)
}

func runAndAwait(timeout time.Duration, cancel <-chan struct{}, work func(done func())) bool {
	doneCh := make(chan struct{})
	var once sync.Once
	done := func() { once.Do(func() { close(doneCh) }) }

	work(done)

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case <-doneCh:
		return true
	case <-timeoutCh:
	case <-cancel:
	}
	// Prefer completion if it raced with the timeout.
	select {
	case <-doneCh:
		return true
	default:
		return false
	}
}

// Wait blocks until every action dispatched by WithReadWriteAsync has finished.
func (g *Gate) Wait() {
	g.wg.Wait()
}
