package api

import (
	"net/http"
	"time"

	"github.com/Resinat/Inlay/internal/block"
)

// payloadView is the JSON view of a personalized payload.
type payloadView struct {
	Status          block.Status      `json:"status"`
	ContentType     block.ContentType `json:"content_type"`
	TTLSeconds      int64             `json:"ttl_seconds"`
	LoadedAt        time.Time         `json:"loaded_at"`
	ExpiresAt       time.Time         `json:"expires_at"`
	TrackingConsent bool              `json:"tracking_consent"`
}

// blockView is the JSON view of a block with its resolved fields.
type blockView struct {
	ID                string              `json:"id"`
	Name              string              `json:"name"`
	Placeholders      []string            `json:"placeholders"`
	Priority          *int                `json:"priority"`
	Frequency         block.FrequencyRule `json:"frequency"`
	StaticContentType block.ContentType   `json:"static_content_type"`
	ContentType       block.ContentType   `json:"content_type"`
	Status            block.Status        `json:"status"`
	TrackingConsent   bool                `json:"tracking_consent"`
	Content           map[string]string   `json:"content,omitempty"`
	Personalized      *payloadView        `json:"personalized,omitempty"`
	Owner             string              `json:"owner_fingerprint,omitempty"`
}

func newBlockView(b *block.Block) blockView {
	v := blockView{
		ID:                b.ID,
		Name:              b.Name,
		Placeholders:      b.Placeholders,
		Priority:          b.Priority,
		Frequency:         b.FrequencyPolicy,
		StaticContentType: b.StaticContentType,
		ContentType:       b.ContentType(),
		Status:            b.Status(),
		TrackingConsent:   b.TrackingConsent(),
		Content:           b.Content(),
	}
	if v.Placeholders == nil {
		v.Placeholders = []string{}
	}
	if p := b.Personalized; p != nil {
		v.Personalized = &payloadView{
			Status:          p.Status,
			ContentType:     p.ContentType,
			TTLSeconds:      p.TTLSeconds,
			LoadedAt:        p.LoadedAt,
			ExpiresAt:       p.ExpiresAt(),
			TrackingConsent: p.TrackingConsent,
		}
	}
	if b.Owner != nil {
		v.Owner = b.Owner.Fingerprint().Hex()
	}
	return v
}

// HandleListBlocks returns a handler for GET /api/v1/blocks.
// Optional query: placeholder.
func HandleListBlocks(e Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pg, ok := parsePaginationOrWriteInvalid(w, r)
		if !ok {
			return
		}
		placeholder := r.URL.Query().Get("placeholder")

		blocks := e.Snapshot()
		views := make([]blockView, 0, len(blocks))
		for _, b := range blocks {
			if placeholder != "" && !b.InPlaceholder(placeholder) {
				continue
			}
			views = append(views, newBlockView(b))
		}
		WritePage(w, http.StatusOK, views, pg)
	}
}

// HandleGetBlock returns a handler for GET /api/v1/blocks/{id}.
func HandleGetBlock(e Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, ok := e.BlockSnapshot(PathParam(r, "id"))
		if !ok {
			writeNotFound(w, "block not found")
			return
		}
		WriteJSON(w, http.StatusOK, newBlockView(b))
	}
}
