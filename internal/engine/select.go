package engine

import (
	"cmp"
	"context"
	"slices"

	"github.com/Resinat/Inlay/internal/block"
	"github.com/Resinat/Inlay/internal/filter"
	"github.com/Resinat/Inlay/internal/registry"
)

// PickForPlaceholder returns an independent copy of the block that should be
// shown in placeholderID right now, or nil when nothing is eligible.
//
// The whole selection runs inside the registry gate. Stale personalization is
// refreshed synchronously, bounded by the await timeout; on timeout or fetch
// failure the cached state is used. Selection never records display state.
func (e *Engine) PickForPlaceholder(ctx context.Context, placeholderID string) *block.Block {
	if e.closed.Load() {
		return nil
	}
	if _, known := e.session.identity(); !known {
		e.reportMissingIdentity("PickForPlaceholder")
		return nil
	}

	var picked *block.Block
	e.gate.WithReadWrite(func(r *registry.Registry) {
		candidates := e.passingFilters(placeholderID, r.ForPlaceholder(placeholderID))
		if len(candidates) == 0 {
			return
		}
		e.ensureFreshSync(ctx, r, candidates)

		showable := e.showable(placeholderID, candidates)
		if len(showable) == 0 {
			return
		}
		slices.SortStableFunc(showable, byPriorityDesc)
		picked = showable[0].Clone()
	})
	e.metrics.OnSelection(placeholderID, picked != nil)
	return picked
}

// passingFilters keeps blocks that pass both the date and frequency rules.
func (e *Engine) passingFilters(placeholderID string, blocks []*block.Block) []*block.Block {
	if len(blocks) == 0 {
		return nil
	}
	now := e.now()
	sessionStart := e.session.sessionStart()
	out := make([]*block.Block, 0, len(blocks))
	for _, b := range blocks {
		res := filter.Evaluate(b, now, e.store.Get(b.ID), sessionStart)
		if !res.DatePassed {
			e.notices.Printf(placeholderID+"|"+b.ID+"|date",
				"[engine] block %s skipped for %s: outside date window", b.ID, placeholderID)
		}
		if !res.FrequencyPassed {
			e.notices.Printf(placeholderID+"|"+b.ID+"|frequency",
				"[engine] block %s skipped for %s: frequency %s exhausted", b.ID, placeholderID, b.FrequencyPolicy)
		}
		if res.Passed() {
			out = append(out, b)
		}
	}
	return out
}

// showable keeps blocks with an OK status and a renderable content type.
func (e *Engine) showable(placeholderID string, blocks []*block.Block) []*block.Block {
	out := make([]*block.Block, 0, len(blocks))
	for _, b := range blocks {
		if st := b.Status(); st != block.StatusOK {
			e.notices.Printf(placeholderID+"|"+b.ID+"|status",
				"[engine] block %s skipped for %s: status %s", b.ID, placeholderID, st)
			continue
		}
		if ct := b.ContentType(); !e.supports(ct) {
			e.notices.Printf(placeholderID+"|"+b.ID+"|type",
				"[engine] block %s skipped for %s: unsupported content type %s", b.ID, placeholderID, ct)
			continue
		}
		out = append(out, b)
	}
	return out
}

// byPriorityDesc orders higher priority first; a missing priority is lowest.
func byPriorityDesc(a, b *block.Block) int {
	pa, okA := a.PriorityValue()
	pb, okB := b.PriorityValue()
	switch {
	case okA && okB:
		return cmp.Compare(pb, pa)
	case okA:
		return -1
	case okB:
		return 1
	default:
		return 0
	}
}
