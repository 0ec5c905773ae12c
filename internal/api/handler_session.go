package api

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/Resinat/Inlay/internal/customer"
	"github.com/Resinat/Inlay/internal/event"
)

type trackEventRequest struct {
	Type        string            `json:"type"`
	Name        string            `json:"name"`
	Timestamp   *time.Time        `json:"timestamp"`
	CustomerIDs map[string]string `json:"customer_ids"`
}

// HandleGetSession returns a handler for GET /api/v1/session.
func HandleGetSession(e Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, e.Session())
	}
}

// HandleTrackEvent returns a handler for POST /api/v1/events.
// The response is the session after the event was applied.
func HandleTrackEvent(e Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req trackEventRequest
		if err := DecodeBody(r, &req); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		if strings.TrimSpace(req.Type) == "" {
			writeInvalidArgument(w, "type: must be non-empty")
			return
		}
		ev := event.Event{
			Type:        event.ParseType(req.Type),
			Name:        strings.TrimSpace(req.Name),
			CustomerIDs: customer.IDs(req.CustomerIDs),
		}
		if req.Timestamp != nil {
			ev.Timestamp = *req.Timestamp
		}
		if ev.ChangesIdentity() && ev.CustomerIDs.IsEmpty() {
			writeInvalidArgument(w, "customer_ids: required for "+string(ev.Type))
			return
		}
		e.OnEventCreated(ev)
		WriteJSON(w, http.StatusOK, e.Session())
	}
}

// HandleReload returns a handler for POST /api/v1/reload.
func HandleReload(reload func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := reload(r.Context()); err != nil {
			log.Printf("[api] reload failed: %v", err)
			WriteError(w, http.StatusBadGateway, "UPSTREAM_ERROR", err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleGetDisplayState returns a handler for GET /api/v1/display-states/{block}.
// Unknown blocks report zero counters.
func HandleGetDisplayState(states DisplayStates) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(PathParam(r, "block"))
		if id == "" {
			writeInvalidArgument(w, "block: must be non-empty")
			return
		}
		st := states.Get(id)
		st.BlockID = id
		WriteJSON(w, http.StatusOK, st)
	}
}
