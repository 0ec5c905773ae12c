// Package event carries the tracking signals the engine reacts to.
package event

import (
	"strings"
	"time"

	"github.com/Resinat/Inlay/internal/customer"
)

// Type is the tracked event type.
type Type string

const (
	TypeSessionStart     Type = "session_start"
	TypeSessionEnd       Type = "session_end"
	TypeIdentifyCustomer Type = "identify_customer"
	TypeAnonymize        Type = "anonymize"
	TypeCustom           Type = "custom"
)

// Event is one tracked event as produced by the outer tracking pipeline.
type Event struct {
	Type      Type
	Name      string
	Timestamp time.Time
	// CustomerIDs is the identity the event was tracked under.
	CustomerIDs customer.IDs
}

// ParseType maps a wire value to a Type. Unknown values are custom events.
func ParseType(raw string) Type {
	switch t := Type(strings.ToLower(strings.TrimSpace(raw))); t {
	case TypeSessionStart, TypeSessionEnd, TypeIdentifyCustomer, TypeAnonymize:
		return t
	default:
		return TypeCustom
	}
}

// IsSessionStart reports whether the event opens a new visit.
func (e Event) IsSessionStart() bool {
	return e.Type == TypeSessionStart
}

// ChangesIdentity reports whether the event switches the active customer.
func (e Event) ChangesIdentity() bool {
	return e.Type == TypeIdentifyCustomer || e.Type == TypeAnonymize
}
