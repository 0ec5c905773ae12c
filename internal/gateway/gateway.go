// Package gateway is the network boundary of the personalization engine: it
// fetches static block definitions and per-customer personalized payloads.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/Resinat/Inlay/internal/block"
	"github.com/Resinat/Inlay/internal/customer"
)

// Gateway fetches block definitions and personalization.
type Gateway interface {
	// FetchStaticBlocks returns every block of the project in server order.
	FetchStaticBlocks(ctx context.Context) ([]*block.Block, error)
	// FetchPersonalized returns payloads for blockIDs as seen by ids. The
	// result may not cover every requested id. An empty blockIDs returns an
	// empty result without any I/O.
	FetchPersonalized(ctx context.Context, ids customer.IDs, blockIDs []string) ([]block.Payload, error)
}

// Kind classifies a fetch failure.
type Kind string

const (
	KindTransport Kind = "transport"
	KindDecode    Kind = "decode"
	KindServer    Kind = "server"
)

// FetchError is returned by every Gateway implementation on failure. All
// kinds are recoverable: callers keep what they had cached.
type FetchError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("gateway: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a FetchError of the given kind.
func IsKind(err error, kind Kind) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == kind
}

const (
	opStaticBlocks = "fetch static blocks"
	opPersonalized = "fetch personalized data"
)

type wireDateFilter struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	FromDate *int64 `json:"from_date" yaml:"from_date"`
	ToDate   *int64 `json:"to_date" yaml:"to_date"`
}

type wireBlock struct {
	ID           string            `json:"id" yaml:"id"`
	Name         string            `json:"name" yaml:"name"`
	Placeholders []string          `json:"placeholders" yaml:"placeholders"`
	LoadPriority *int              `json:"load_priority" yaml:"load_priority"`
	DateFilter   *wireDateFilter   `json:"date_filter" yaml:"date_filter"`
	Frequency    string            `json:"frequency" yaml:"frequency"`
	ContentType  string            `json:"content_type" yaml:"content_type"`
	Content      map[string]string `json:"content" yaml:"content"`
}

type wirePayload struct {
	ID                 string            `json:"id" yaml:"id"`
	Status             string            `json:"status" yaml:"status"`
	TTLSeconds         int64             `json:"ttl_seconds" yaml:"ttl_seconds"`
	ContentType        string            `json:"content_type" yaml:"content_type"`
	HasTrackingConsent *bool             `json:"has_tracking_consent" yaml:"has_tracking_consent"`
	Content            map[string]string `json:"content" yaml:"content"`
}

func (w wireBlock) toBlock() *block.Block {
	b := &block.Block{
		ID:                w.ID,
		Name:              w.Name,
		Placeholders:      w.Placeholders,
		Priority:          w.LoadPriority,
		FrequencyPolicy:   block.ParseFrequencyRule(w.Frequency),
		StaticContentType: block.ParseContentType(w.ContentType),
		StaticContent:     w.Content,
	}
	if w.DateFilter != nil {
		b.DateFilter = &block.DateFilter{
			Enabled: w.DateFilter.Enabled,
			From:    w.DateFilter.FromDate,
			To:      w.DateFilter.ToDate,
		}
	}
	return b
}

func (w wirePayload) toPayload(blockID string) block.Payload {
	consent := true
	if w.HasTrackingConsent != nil {
		consent = *w.HasTrackingConsent
	}
	ttl := w.TTLSeconds
	if ttl < 0 {
		ttl = 0
	}
	return block.Payload{
		BlockID:         blockID,
		Status:          block.ParseStatus(w.Status),
		TTLSeconds:      ttl,
		ContentType:     block.ParseContentType(w.ContentType),
		TrackingConsent: consent,
		Content:         w.Content,
	}
}

// convertBlocks drops definitions without an id; the rest keep server order.
func convertBlocks(src []wireBlock) []*block.Block {
	out := make([]*block.Block, 0, len(src))
	for _, w := range src {
		if w.ID == "" {
			log.Printf("[gateway] skipping block definition without id (name=%q)", w.Name)
			continue
		}
		out = append(out, w.toBlock())
	}
	return out
}
