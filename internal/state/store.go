package state

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Resinat/Inlay/internal/model"
	"github.com/puzpuzpuz/xsync/v4"
)

// DisplayStore is the authoritative in-memory display state, keyed by block id.
// Mutations mark the id dirty; a FlushWorker persists dirty ids to the repo.
// A nil repo makes the store memory-only.
type DisplayStore struct {
	states *xsync.Map[string, model.DisplayState]
	dirty  *DirtySet
	repo   *DisplayStateRepo

	// persistMu serializes Flush and Clear so a flush drained before Clear
	// cannot write rows back after Clear deleted them.
	persistMu sync.Mutex
}

// NewDisplayStore creates a store persisting through repo (may be nil).
func NewDisplayStore(repo *DisplayStateRepo) *DisplayStore {
	return &DisplayStore{
		states: xsync.NewMap[string, model.DisplayState](),
		dirty:  NewDirtySet(),
		repo:   repo,
	}
}

// Get returns the state for blockID. Absent entries yield a zero state.
func (s *DisplayStore) Get(blockID string) model.DisplayState {
	st, ok := s.states.Load(blockID)
	if !ok {
		return model.DisplayState{BlockID: blockID}
	}
	return st
}

// SetDisplayed records one display of blockID at t.
func (s *DisplayStore) SetDisplayed(blockID string, t time.Time) {
	s.states.Compute(blockID, func(old model.DisplayState, loaded bool) (model.DisplayState, xsync.ComputeOp) {
		old.BlockID = blockID
		ts := t
		old.LastDisplayed = &ts
		old.DisplayCount++
		return old, xsync.UpdateOp
	})
	s.dirty.MarkUpsert(blockID)
}

// SetInteracted records one interaction with blockID at t.
func (s *DisplayStore) SetInteracted(blockID string, t time.Time) {
	s.states.Compute(blockID, func(old model.DisplayState, loaded bool) (model.DisplayState, xsync.ComputeOp) {
		old.BlockID = blockID
		ts := t
		old.LastInteracted = &ts
		old.InteractCount++
		return old, xsync.UpdateOp
	})
	s.dirty.MarkUpsert(blockID)
}

// Clear forgets every display state in memory and on disk.
func (s *DisplayStore) Clear() {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.states.Clear()
	s.dirty.Drain()
	if s.repo == nil {
		return
	}
	if err := s.repo.DeleteAll(); err != nil {
		log.Printf("[state] clear display states: %v", err)
	}
}

// Len returns the number of in-memory display states.
func (s *DisplayStore) Len() int {
	return s.states.Size()
}

// DirtyCount returns the number of block ids waiting to be flushed.
func (s *DisplayStore) DirtyCount() int {
	return s.dirty.Len()
}

// Load seeds the store from persisted rows without marking them dirty.
func (s *DisplayStore) Load(rows []model.DisplayStateRow) {
	for _, row := range rows {
		s.states.Store(row.BlockID, row.ToState())
	}
}

// Flush drains the dirty set and writes current values in one transaction.
// An id that is dirty but no longer in memory is deleted. On failure the
// drained ids are merged back.
func (s *DisplayStore) Flush() error {
	if s.repo == nil {
		s.dirty.Drain()
		return nil
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	drained := s.dirty.Drain()
	if len(drained) == 0 {
		return nil
	}

	var (
		upserts []model.DisplayStateRow
		deletes []string
	)
	for id, op := range drained {
		if op == OpDelete {
			deletes = append(deletes, id)
			continue
		}
		st, ok := s.states.Load(id)
		if !ok {
			deletes = append(deletes, id)
			continue
		}
		upserts = append(upserts, st.ToRow())
	}

	if err := s.repo.FlushTx(upserts, deletes); err != nil {
		s.dirty.Merge(drained)
		return fmt.Errorf("flush: %w", err)
	}

	log.Printf("[state] flushed display states: upserts=%d, deletes=%d", len(upserts), len(deletes))
	return nil
}
