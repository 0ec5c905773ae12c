// Package freshness decides whether a block's personalized payload has to be
// fetched again before the block can be shown.
package freshness

import (
	"time"

	"github.com/Resinat/Inlay/internal/block"
)

// Policy evaluates payload staleness against a clock.
type Policy struct {
	// Now defaults to time.Now; injectable for testing.
	Now func() time.Time
}

// New creates a Policy using now, or time.Now when now is nil.
func New(now func() time.Time) Policy {
	if now == nil {
		now = time.Now
	}
	return Policy{Now: now}
}

// IsFresh reports whether b can be shown without a personalization fetch.
// Blocks with a known static type have no personalization dimension and are
// always fresh. Comparison is at millisecond resolution and the expiry
// millisecond itself still counts as fresh.
func (p Policy) IsFresh(b *block.Block) bool {
	if !b.NeedsPersonalization() {
		return true
	}
	if b.Personalized == nil {
		return false
	}
	return b.Personalized.ExpiresAt().UnixMilli() >= p.now().UnixMilli()
}

// NeedsRefresh returns the subset of blocks failing IsFresh, in input order.
func (p Policy) NeedsRefresh(blocks []*block.Block) []*block.Block {
	var stale []*block.Block
	for _, b := range blocks {
		if !p.IsFresh(b) {
			stale = append(stale, b)
		}
	}
	return stale
}

func (p Policy) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}
