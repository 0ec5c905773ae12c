// Package model defines domain structs shared across the persistence layer.
package model

import "time"

// DisplayState holds the per-block display and interaction counters used by
// frequency rules. The zero value means "never displayed, never interacted".
type DisplayState struct {
	BlockID        string     `json:"block_id"`
	LastDisplayed  *time.Time `json:"last_displayed,omitempty"`
	DisplayCount   int        `json:"display_count"`
	LastInteracted *time.Time `json:"last_interacted,omitempty"`
	InteractCount  int        `json:"interact_count"`
}

// DisplayStateRow is the persisted form of DisplayState. Timestamps are unix
// nanoseconds; 0 means unset.
type DisplayStateRow struct {
	BlockID          string
	LastDisplayedNs  int64
	DisplayCount     int
	LastInteractedNs int64
	InteractCount    int
}

// ToRow converts a DisplayState into its persisted form.
func (s DisplayState) ToRow() DisplayStateRow {
	return DisplayStateRow{
		BlockID:          s.BlockID,
		LastDisplayedNs:  timeToNs(s.LastDisplayed),
		DisplayCount:     s.DisplayCount,
		LastInteractedNs: timeToNs(s.LastInteracted),
		InteractCount:    s.InteractCount,
	}
}

// ToState converts a persisted row back into a DisplayState.
func (r DisplayStateRow) ToState() DisplayState {
	return DisplayState{
		BlockID:        r.BlockID,
		LastDisplayed:  nsToTime(r.LastDisplayedNs),
		DisplayCount:   r.DisplayCount,
		LastInteracted: nsToTime(r.LastInteractedNs),
		InteractCount:  r.InteractCount,
	}
}

func timeToNs(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.UnixNano()
}

func nsToTime(ns int64) *time.Time {
	if ns == 0 {
		return nil
	}
	t := time.Unix(0, ns)
	return &t
}
