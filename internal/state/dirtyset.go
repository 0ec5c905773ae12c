package state

import "sync"

// DirtyOp is the pending persistence operation for one block id.
type DirtyOp int

const (
	// OpUpsert writes the in-memory value read at flush time.
	OpUpsert DirtyOp = iota
	// OpDelete removes the row.
	OpDelete
)

// DirtySet records which block ids changed since the last flush. Only ids are
// kept; values are read from the DisplayStore when the flush runs.
type DirtySet struct {
	mu sync.Mutex
	m  map[string]DirtyOp
}

// NewDirtySet creates an empty DirtySet.
func NewDirtySet() *DirtySet {
	return &DirtySet{m: make(map[string]DirtyOp)}
}

// MarkUpsert marks blockID for upsert.
func (d *DirtySet) MarkUpsert(blockID string) {
	d.mu.Lock()
	d.m[blockID] = OpUpsert
	d.mu.Unlock()
}

// MarkDelete marks blockID for deletion.
func (d *DirtySet) MarkDelete(blockID string) {
	d.mu.Lock()
	d.m[blockID] = OpDelete
	d.mu.Unlock()
}

// Drain swaps in a fresh map and returns the old one as a stable snapshot.
// Marks made after Drain land in the new map.
func (d *DirtySet) Drain() map[string]DirtyOp {
	d.mu.Lock()
	old := d.m
	d.m = make(map[string]DirtyOp, len(old)/2)
	d.mu.Unlock()
	return old
}

// Merge puts a drained snapshot back after a failed flush. Ids re-marked
// since the drain keep their newer op.
func (d *DirtySet) Merge(old map[string]DirtyOp) {
	d.mu.Lock()
	for k, v := range old {
		if _, exists := d.m[k]; !exists {
			d.m[k] = v
		}
	}
	d.mu.Unlock()
}

// Len returns the number of pending ids.
func (d *DirtySet) Len() int {
	d.mu.Lock()
	n := len(d.m)
	d.mu.Unlock()
	return n
}
