package engine

import (
	"log"

	"github.com/Resinat/Inlay/internal/block"
)

// Action is a user interaction with a rendered block.
type Action struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// OnShown records that b was rendered in placeholderID.
func (e *Engine) OnShown(placeholderID string, b *block.Block) {
	if b == nil {
		return
	}
	e.store.SetDisplayed(b.ID, e.now())
	log.Printf("[engine] block %s shown in %s", b.ID, placeholderID)
}

// OnNoContent records that b was selected for placeholderID but had nothing to
// render. It counts as a display for frequency purposes.
func (e *Engine) OnNoContent(placeholderID string, b *block.Block) {
	if b == nil {
		return
	}
	e.store.SetDisplayed(b.ID, e.now())
	log.Printf("[engine] block %s had no content for %s", b.ID, placeholderID)
}

// OnClose records that the user dismissed b.
func (e *Engine) OnClose(placeholderID string, b *block.Block) {
	if b == nil {
		return
	}
	e.store.SetInteracted(b.ID, e.now())
	log.Printf("[engine] block %s closed in %s", b.ID, placeholderID)
}

// OnAction records that the user acted on b.
func (e *Engine) OnAction(placeholderID string, b *block.Block, action Action) {
	if b == nil {
		return
	}
	e.store.SetInteracted(b.ID, e.now())
	log.Printf("[engine] block %s action %q in %s", b.ID, action.Name, placeholderID)
}

// OnError reports a rendering failure. Display state is not touched.
func (e *Engine) OnError(placeholderID string, b *block.Block, message string) {
	id := ""
	if b != nil {
		id = b.ID
	}
	log.Printf("[engine] block %q failed to render in %s: %s", id, placeholderID, message)
}
