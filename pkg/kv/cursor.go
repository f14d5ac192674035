package kv

import "github.com/kvperc/percolator/pkg/btree"

// Cursor walks a column's tree in key order. It takes the tree's read
// lock once, for its entire traversal, rather than hopping latches leaf
// to leaf: every mutation a column sees already runs under the table's
// own coarse serialization (see pkg/storage), so a cursor never actually
// races a concurrent writer within its own lifetime.
type Cursor[V any] struct {
	tree  *btree.Tree[V]
	node  *btree.Node[V]
	index int
	held  bool
}

func newCursor[V any](tree *btree.Tree[V]) *Cursor[V] {
	return &Cursor[V]{tree: tree}
}

// Seek positions the cursor at the first entry with key >= seekKey (nil
// seeks to the first entry overall). Returns false if no such entry
// exists.
func (c *Cursor[V]) Seek(seekKey *btree.Key) bool {
	if !c.held {
		c.tree.RLock()
		c.held = true
	}

	leaf, idx := c.tree.FindLeafLowerBound(seekKey)
	c.node, c.index = leaf, idx
	c.skipEmptyLeaves()
	return c.Valid()
}

// skipEmptyLeaves advances across leaves exhausted by the lower-bound
// search (index == len(leaf.Keys)), following the leaf chain.
func (c *Cursor[V]) skipEmptyLeaves() {
	for c.node != nil && c.index >= len(c.node.Keys) {
		c.node = c.node.Next
		c.index = 0
	}
}

// Valid reports whether the cursor currently references an entry.
func (c *Cursor[V]) Valid() bool {
	return c.node != nil && c.index < len(c.node.Keys)
}

// Key returns the entry's key. Only valid when Valid() is true.
func (c *Cursor[V]) Key() btree.Key {
	return c.node.Keys[c.index]
}

// Value returns the entry's value. Only valid when Valid() is true.
func (c *Cursor[V]) Value() V {
	return c.node.Values[c.index]
}

// Next advances the cursor, returning whether it lands on another entry.
func (c *Cursor[V]) Next() bool {
	if c.node == nil {
		return false
	}
	c.index++
	c.skipEmptyLeaves()
	return c.Valid()
}

// Close releases the cursor's read lock. Safe to call more than once.
func (c *Cursor[V]) Close() {
	if c.held {
		c.tree.RUnlock()
		c.held = false
	}
	c.node = nil
}
