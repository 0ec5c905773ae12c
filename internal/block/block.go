package block

import (
	"slices"
	"time"

	"github.com/Resinat/Inlay/internal/customer"
)

// HTMLContentKey is the content key holding rendered HTML.
const HTMLContentKey = "html"

// DateFilter restricts a block to a window of epoch seconds. Either bound may be nil.
type DateFilter struct {
	Enabled bool
	From    *int64
	To      *int64
}

// Payload is the result of a personalization fetch for one block and one customer.
type Payload struct {
	BlockID         string
	Status          Status
	TTLSeconds      int64
	LoadedAt        time.Time
	ContentType     ContentType
	TrackingConsent bool
	Content         map[string]string
}

// ExpiresAt returns LoadedAt + TTL.
func (p *Payload) ExpiresAt() time.Time {
	return p.LoadedAt.Add(time.Duration(p.TTLSeconds) * time.Second)
}

// Clone returns a deep copy. A nil receiver yields nil.
func (p *Payload) Clone() *Payload {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Content = cloneContent(p.Content)
	return &cp
}

// Block is a server-defined unit of content shown in one or more placeholders.
//
// Static fields come from the block definition and are replaced wholesale on
// every registry reload. Personalized and Owner are attached at runtime.
type Block struct {
	ID                string
	Name              string
	Placeholders      []string
	Priority          *int
	DateFilter        *DateFilter
	FrequencyPolicy   FrequencyRule
	StaticContentType ContentType
	StaticContent     map[string]string

	Personalized *Payload
	Owner        customer.IDs
}

// InPlaceholder reports whether the block may appear in placeholderID.
func (b *Block) InPlaceholder(placeholderID string) bool {
	return slices.Contains(b.Placeholders, placeholderID)
}

// PriorityValue returns the priority, treating nil as the lowest possible value.
func (b *Block) PriorityValue() (int, bool) {
	if b.Priority == nil {
		return 0, false
	}
	return *b.Priority, true
}

// NeedsPersonalization reports whether the block's type is only known after a fetch.
func (b *Block) NeedsPersonalization() bool {
	return b.StaticContentType == ContentTypeNotDefined
}

// ContentType resolves the effective type: personalized when present, static otherwise.
func (b *Block) ContentType() ContentType {
	if b.Personalized != nil {
		return b.Personalized.ContentType
	}
	return b.StaticContentType
}

// Status resolves the effective status. Blocks with a known static type are
// servable as-is; NOT_DEFINED blocks without a payload have no verdict yet.
func (b *Block) Status() Status {
	if b.Personalized != nil {
		return b.Personalized.Status
	}
	if b.StaticContentType == ContentTypeNotDefined {
		return StatusUnknown
	}
	return StatusOK
}

// Content resolves the effective content map. The returned map must not be mutated.
func (b *Block) Content() map[string]string {
	if b.Personalized != nil {
		return b.Personalized.Content
	}
	return b.StaticContent
}

// HTML returns the rendered HTML, or "" when the block carries none.
func (b *Block) HTML() string {
	return b.Content()[HTMLContentKey]
}

// TrackingConsent reports whether interactions may be tracked. Static blocks
// without a payload default to true.
func (b *Block) TrackingConsent() bool {
	if b.Personalized != nil {
		return b.Personalized.TrackingConsent
	}
	return true
}

// Clone returns a deep, independent copy including the personalized payload.
func (b *Block) Clone() *Block {
	if b == nil {
		return nil
	}
	cp := *b
	cp.Placeholders = slices.Clone(b.Placeholders)
	if b.Priority != nil {
		p := *b.Priority
		cp.Priority = &p
	}
	if b.DateFilter != nil {
		df := *b.DateFilter
		df.From = cloneInt64(b.DateFilter.From)
		df.To = cloneInt64(b.DateFilter.To)
		cp.DateFilter = &df
	}
	cp.StaticContent = cloneContent(b.StaticContent)
	cp.Personalized = b.Personalized.Clone()
	cp.Owner = b.Owner.Clone()
	return &cp
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneContent(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
