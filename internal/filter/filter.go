// Package filter evaluates the date-range and frequency rules of content blocks.
// All functions are pure: they read the block, the display state and the
// session boundary, and never mutate anything.
package filter

import (
	"time"

	"github.com/Resinat/Inlay/internal/block"
	"github.com/Resinat/Inlay/internal/model"
)

// Result records both predicate outcomes so callers can report each failure.
type Result struct {
	DatePassed      bool
	FrequencyPassed bool
}

// Passed reports whether the block is eligible.
func (r Result) Passed() bool {
	return r.DatePassed && r.FrequencyPassed
}

// Evaluate runs both predicates. The frequency predicate is evaluated even
// when the date predicate fails.
func Evaluate(b *block.Block, now time.Time, state model.DisplayState, sessionStart time.Time) Result {
	return Result{
		DatePassed:      PassesDate(b, now.Unix()),
		FrequencyPassed: PassesFrequency(b, state, sessionStart),
	}
}

// PassesDate checks the block's date window against now (epoch seconds).
// A missing or disabled filter always passes.
func PassesDate(b *block.Block, now int64) bool {
	df := b.DateFilter
	if df == nil || !df.Enabled {
		return true
	}
	if df.From != nil && now < *df.From {
		return false
	}
	if df.To != nil && now > *df.To {
		return false
	}
	return true
}

// PassesFrequency checks the block's frequency rule against its display state.
// An unrecognized rule passes.
func PassesFrequency(b *block.Block, state model.DisplayState, sessionStart time.Time) bool {
	switch b.FrequencyPolicy {
	case block.FrequencyAlways:
		return true
	case block.FrequencyOnlyOnce:
		return state.LastDisplayed == nil
	case block.FrequencyOncePerVisit:
		return state.LastDisplayed == nil || state.LastDisplayed.Before(sessionStart)
	case block.FrequencyUntilVisitorInteracts:
		return state.InteractCount == 0
	default:
		return true
	}
}
