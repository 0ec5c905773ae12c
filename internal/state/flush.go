package state

import (
	"log"
	"sync"
	"time"
)

// FlushWorker periodically flushes a DisplayStore. It flushes when:
//   - DirtyCount() >= threshold, OR
//   - time.Since(lastFlush) >= interval (and dirty count > 0)
//
// On Stop(), a final flush is performed before returning.
type FlushWorker struct {
	store     *DisplayStore
	threshold int
	interval  time.Duration
	checkTick time.Duration

	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewFlushWorker creates a flush worker. checkTick controls how often flush
// conditions are evaluated.
func NewFlushWorker(store *DisplayStore, threshold int, interval, checkTick time.Duration) *FlushWorker {
	if store == nil {
		panic("state: NewFlushWorker requires non-nil store")
	}
	if checkTick <= 0 {
		panic("state: NewFlushWorker requires positive checkTick")
	}
	if threshold <= 0 {
		threshold = 1
	}

	return &FlushWorker{
		store:     store,
		threshold: threshold,
		interval:  interval,
		checkTick: checkTick,
		stopCh:    make(chan struct{}),
	}
}

// Start launches the background flush goroutine.
func (w *FlushWorker) Start() {
	w.wg.Add(1)
	go w.run()
}

// Stop signals the worker to stop and performs a final flush.
// Blocks until the goroutine exits.
func (w *FlushWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

func (w *FlushWorker) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.checkTick)
	defer ticker.Stop()

	lastFlush := time.Now()

	for {
		select {
		case <-w.stopCh:
			w.doFlush()
			return
		case <-ticker.C:
			dirty := w.store.DirtyCount()
			if dirty == 0 {
				continue
			}
			if dirty >= w.threshold || time.Since(lastFlush) >= w.interval {
				w.doFlush()
				lastFlush = time.Now()
			}
		}
	}
}

func (w *FlushWorker) doFlush() {
	if err := w.store.Flush(); err != nil {
		log.Printf("[state] flush error (entries re-merged): %v", err)
	}
}
