package engine

import (
	"log"

	"github.com/Resinat/Inlay/internal/event"
	"github.com/Resinat/Inlay/internal/registry"
)

// OnEventCreated consumes a tracked event. Session starts move the visit
// boundary used by once-per-visit blocks. Identity changes discard all
// personalization and display history and re-stamp block ownership; nothing is
// fetched eagerly. Other events are ignored.
func (e *Engine) OnEventCreated(ev event.Event) {
	switch {
	case ev.IsSessionStart():
		ts := ev.Timestamp
		if ts.IsZero() {
			ts = e.now()
		}
		id := e.session.begin(ts)
		log.Printf("[engine] session %s started at %s", id, ts.Format("2006-01-02T15:04:05.000Z07:00"))
	case ev.ChangesIdentity():
		e.changeIdentity(ev)
	}
}

func (e *Engine) changeIdentity(ev event.Event) {
	e.gate.WithReadWrite(func(r *registry.Registry) {
		if !e.session.setIdentity(ev.CustomerIDs) {
			log.Printf("[engine] %s for active identity %s; nothing to invalidate",
				ev.Type, ev.CustomerIDs.Fingerprint())
			return
		}
		for _, b := range r.Blocks() {
			b.Personalized = nil
			b.Owner = ev.CustomerIDs.Clone()
		}
		e.store.Clear()
		log.Printf("[engine] identity changed to %s: invalidated %d blocks",
			ev.CustomerIDs.Fingerprint(), r.Len())
	})
}

// Session returns the current visit and identity.
func (e *Engine) Session() SessionInfo {
	return e.session.info()
}
