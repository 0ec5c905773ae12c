package api

import (
	"net/http"
	"strings"

	"github.com/Resinat/Inlay/internal/block"
	"github.com/Resinat/Inlay/internal/engine"
)

type pickResponse struct {
	Placeholder string     `json:"placeholder"`
	Block       *blockView `json:"block"`
}

// HandlePickBlock returns a handler for GET /api/v1/placeholders/{placeholder}/block.
// The request context bounds the wait for personalization in CONTEXT await mode.
func HandlePickBlock(e Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		placeholder := strings.TrimSpace(PathParam(r, "placeholder"))
		if placeholder == "" {
			writeInvalidArgument(w, "placeholder: must be non-empty")
			return
		}
		resp := pickResponse{Placeholder: placeholder}
		if b := e.PickForPlaceholder(r.Context(), placeholder); b != nil {
			v := newBlockView(b)
			resp.Block = &v
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// resolveFeedbackTarget looks up the block named in the path. It writes the
// error response and returns false when the block is unknown.
func resolveFeedbackTarget(w http.ResponseWriter, r *http.Request, e Engine) (string, *block.Block, bool) {
	placeholder := PathParam(r, "placeholder")
	b, ok := e.BlockSnapshot(PathParam(r, "block"))
	if !ok {
		writeNotFound(w, "block not found")
		return "", nil, false
	}
	return placeholder, b, true
}

// HandleShown returns a handler for POST .../blocks/{block}/shown.
func HandleShown(e Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		placeholder, b, ok := resolveFeedbackTarget(w, r, e)
		if !ok {
			return
		}
		e.OnShown(placeholder, b)
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleNoContent returns a handler for POST .../blocks/{block}/no-content.
func HandleNoContent(e Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		placeholder, b, ok := resolveFeedbackTarget(w, r, e)
		if !ok {
			return
		}
		e.OnNoContent(placeholder, b)
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleClosed returns a handler for POST .../blocks/{block}/closed.
func HandleClosed(e Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		placeholder, b, ok := resolveFeedbackTarget(w, r, e)
		if !ok {
			return
		}
		e.OnClose(placeholder, b)
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleAction returns a handler for POST .../blocks/{block}/action.
// Body: {"name": "...", "url": "..."}.
func HandleAction(e Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var action engine.Action
		if err := DecodeBody(r, &action); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		action.Name = strings.TrimSpace(action.Name)
		if action.Name == "" {
			writeInvalidArgument(w, "name: must be non-empty")
			return
		}
		placeholder, b, ok := resolveFeedbackTarget(w, r, e)
		if !ok {
			return
		}
		e.OnAction(placeholder, b, action)
		w.WriteHeader(http.StatusNoContent)
	}
}

type renderErrorRequest struct {
	Message string `json:"message"`
}

// HandleRenderError returns a handler for POST .../blocks/{block}/error.
// Body: {"message": "..."}.
func HandleRenderError(e Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req renderErrorRequest
		if err := DecodeBody(r, &req); err != nil {
			writeDecodeBodyError(w, err)
			return
		}
		placeholder, b, ok := resolveFeedbackTarget(w, r, e)
		if !ok {
			return
		}
		e.OnError(placeholder, b, req.Message)
		w.WriteHeader(http.StatusNoContent)
	}
}
