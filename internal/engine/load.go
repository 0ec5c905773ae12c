package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/Resinat/Inlay/internal/block"
	"github.com/Resinat/Inlay/internal/registry"
)

// LoadAllPlaceholders reloads the registry in the background.
func (e *Engine) LoadAllPlaceholders() {
	if e.closed.Load() {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.Reload(e.lifeCtx); err != nil {
			log.Printf("[engine] background reload failed: %v", err)
		}
	}()
}

// Reload fetches every static block definition and replaces the registry.
// Only definitions that can become renderable are kept. On failure the
// current registry is left untouched.
func (e *Engine) Reload(ctx context.Context) error {
	fetched, err := e.gateway.FetchStaticBlocks(ctx)
	if err != nil {
		e.metrics.OnReload(0, err)
		return fmt.Errorf("reload placeholders: %w", err)
	}

	kept := make([]*block.Block, 0, len(fetched))
	for _, b := range fetched {
		if !e.downloadable(b) {
			log.Printf("[engine] dropping block %s: static content type %s is not supported", b.ID, b.StaticContentType)
			continue
		}
		kept = append(kept, b)
	}

	owner, _ := e.session.identity()
	e.gate.WithReadWrite(func(r *registry.Registry) {
		for _, b := range kept {
			b.Owner = owner.Clone()
		}
		r.Replace(kept)
	})
	log.Printf("[engine] registry reloaded: %d blocks (%d dropped)", len(kept), len(fetched)-len(kept))
	e.metrics.OnReload(len(kept), nil)

	e.PrefetchAutoLoad()
	return nil
}

// PrefetchAutoLoad refreshes, in the background, the stale blocks of the
// auto-load placeholders that currently pass their filters.
func (e *Engine) PrefetchAutoLoad() {
	if len(e.autoLoad) == 0 || e.closed.Load() {
		return
	}
	if _, known := e.session.identity(); !known {
		return
	}
	e.gate.WithReadWriteAsync(func(r *registry.Registry) {
		seen := make(map[string]struct{})
		var candidates []*block.Block
		for _, ph := range e.autoLoad {
			for _, b := range e.passingFilters(ph, r.ForPlaceholder(ph)) {
				if _, dup := seen[b.ID]; dup {
					continue
				}
				seen[b.ID] = struct{}{}
				candidates = append(candidates, b)
			}
		}
		e.ensureFreshAsync(candidates)
	})
}
