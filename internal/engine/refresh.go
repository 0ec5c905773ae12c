package engine

import (
	"context"
	"log"
	"time"

	"github.com/Resinat/Inlay/internal/block"
	"github.com/Resinat/Inlay/internal/customer"
	"github.com/Resinat/Inlay/internal/registry"
)

type fetchResult struct {
	payloads []block.Payload
	err      error
	loadedAt time.Time
}

// startFetch issues one batched personalization fetch for the stale subset of
// candidates and returns the channel its result is delivered on, or nil when
// nothing is stale. Must be called inside the gate.
func (e *Engine) startFetch(candidates []*block.Block, onDone func()) (<-chan fetchResult, customer.IDs) {
	stale := e.fresh.NeedsRefresh(candidates)
	if len(stale) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(stale))
	for _, b := range stale {
		ids = append(ids, b.ID)
	}
	owner, _ := e.session.identity()

	resultCh := make(chan fetchResult, 1)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		started := time.Now()
		payloads, err := e.gateway.FetchPersonalized(e.lifeCtx, owner, ids)
		e.metrics.OnPersonalizationFetch(len(ids), time.Since(started), err)
		resultCh <- fetchResult{payloads: payloads, err: err, loadedAt: e.now()}
		if onDone != nil {
			onDone()
		}
	}()
	return resultCh, owner
}

// ensureFreshSync refreshes stale candidates and waits for the result up to
// the await timeout. Must be called inside the gate with r. A fetch that
// outlives the wait is applied later under the gate.
func (e *Engine) ensureFreshSync(ctx context.Context, r *registry.Registry, candidates []*block.Block) {
	var (
		resultCh <-chan fetchResult
		owner    customer.IDs
	)
	work := func(done func()) {
		resultCh, owner = e.startFetch(candidates, done)
		if resultCh == nil {
			done()
		}
	}

	var completed bool
	if e.awaitMode == AwaitContext && ctx != nil {
		completed = e.gate.RunAndAwaitCancel(e.awaitTimeout, ctx.Done(), work)
	} else {
		completed = e.gate.RunAndAwait(e.awaitTimeout, work)
	}
	if resultCh == nil {
		return
	}
	if completed {
		e.applyResult(r, <-resultCh, owner)
		return
	}

	log.Printf("[engine] personalization fetch did not finish within %s; using cached content", e.awaitTimeout)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		res := <-resultCh
		e.gate.WithReadWrite(func(r *registry.Registry) {
			e.applyResult(r, res, owner)
		})
	}()
}

// ensureFreshAsync refreshes stale candidates without waiting. Must be called
// inside the gate.
func (e *Engine) ensureFreshAsync(candidates []*block.Block) {
	resultCh, owner := e.startFetch(candidates, nil)
	if resultCh == nil {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		res := <-resultCh
		e.gate.WithReadWrite(func(r *registry.Registry) {
			e.applyResult(r, res, owner)
		})
	}()
}

// applyResult attaches fetched payloads to the live blocks by id. Ids missing
// from the response and blocks no longer registered are left alone. A failed
// fetch leaves every block as it was.
func (e *Engine) applyResult(r *registry.Registry, res fetchResult, owner customer.IDs) {
	if res.err != nil {
		log.Printf("[engine] personalization fetch failed, keeping cached content: %v", res.err)
		return
	}
	if current, _ := e.session.identity(); !current.Equal(owner) {
		// In-flight fetches are not cancelled by identity changes.
		log.Printf("[engine] applying personalization fetched for identity %s while %s is active",
			owner.Fingerprint(), current.Fingerprint())
	}
	applied := 0
	for _, p := range res.payloads {
		b, ok := r.Find(p.BlockID)
		if !ok {
			continue
		}
		payload := p.Clone()
		payload.LoadedAt = res.loadedAt
		b.Personalized = payload
		applied++
	}
	log.Printf("[engine] personalization applied: %d/%d payloads", applied, len(res.payloads))
}
