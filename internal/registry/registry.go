// Package registry holds the in-memory set of known content blocks and the
// single gate that serializes every read and write of it.
package registry

import "github.com/Resinat/Inlay/internal/block"

// Registry owns the block list and an index from placeholder id to block
// positions. It is not safe for concurrent use on its own; every access goes
// through Gate.
type Registry struct {
	blocks []*block.Block
	byID   map[string]int
	index  map[string][]int
}

func newRegistry() *Registry {
	return &Registry{
		byID:  make(map[string]int),
		index: make(map[string][]int),
	}
}

// Replace swaps the whole block list and rebuilds the indexes. Server order is
// kept as the positional order. A later duplicate id shadows an earlier one in
// Find but both remain in the list.
func (r *Registry) Replace(blocks []*block.Block) {
	r.blocks = blocks
	r.byID = make(map[string]int, len(blocks))
	r.index = make(map[string][]int)
	for i, b := range blocks {
		r.byID[b.ID] = i
		for _, ph := range b.Placeholders {
			r.index[ph] = append(r.index[ph], i)
		}
	}
}

// Blocks returns the live block list. Callers must not retain it outside the gate.
func (r *Registry) Blocks() []*block.Block {
	return r.blocks
}

// ForPlaceholder returns the live blocks targeting placeholderID, in server order.
func (r *Registry) ForPlaceholder(placeholderID string) []*block.Block {
	positions := r.index[placeholderID]
	if len(positions) == 0 {
		return nil
	}
	out := make([]*block.Block, 0, len(positions))
	for _, i := range positions {
		out = append(out, r.blocks[i])
	}
	return out
}

// Find returns the live block with the given id.
func (r *Registry) Find(id string) (*block.Block, bool) {
	i, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return r.blocks[i], true
}

// Len returns the number of blocks.
func (r *Registry) Len() int {
	return len(r.blocks)
}

// Clear drops every block.
func (r *Registry) Clear() {
	r.Replace(nil)
}
