package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Resinat/Inlay/internal/customer"
)

// sessionContext is the visit boundary and the active customer identity.
type sessionContext struct {
	mu          sync.RWMutex
	id          string
	start       time.Time
	customerIDs customer.IDs
	known       bool
}

func newSessionContext(ids customer.IDs) *sessionContext {
	return &sessionContext{
		customerIDs: ids.Clone(),
		known:       ids != nil,
	}
}

func (s *sessionContext) begin(at time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = uuid.NewString()
	s.start = at
	return s.id
}

func (s *sessionContext) sessionStart() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.start
}

// identity returns a copy of the active ids and whether any identity is known.
func (s *sessionContext) identity() (customer.IDs, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.customerIDs.Clone(), s.known
}

// setIdentity switches the active identity and reports whether it changed.
func (s *sessionContext) setIdentity(ids customer.IDs) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := !s.known || !s.customerIDs.Equal(ids)
	s.customerIDs = ids.Clone()
	s.known = true
	return changed
}

// SessionInfo describes the current visit.
type SessionInfo struct {
	ID          string       `json:"id"`
	Start       time.Time    `json:"start"`
	CustomerIDs customer.IDs `json:"customer_ids"`
	Fingerprint string       `json:"fingerprint"`
}

func (s *sessionContext) info() SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SessionInfo{
		ID:          s.id,
		Start:       s.start,
		CustomerIDs: s.customerIDs.Clone(),
		Fingerprint: s.customerIDs.Fingerprint().Hex(),
	}
}
