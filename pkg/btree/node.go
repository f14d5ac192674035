package btree

import "sort"

// Node is either a leaf -- Keys/Values hold entries in sorted order and
// Next chains to the leaf's right neighbor for cursor scans -- or a
// branch -- Keys holds len(Children)-1 separators, and Children[i]
// holds every key strictly less than Keys[i] (Children[len(Keys)] holds
// the rest).
type Node[V any] struct {
	Leaf     bool
	Keys     []Key
	Values   []V        // leaves only
	Children []*Node[V] // branches only, len(Children) == len(Keys)+1
	Next     *Node[V]   // leaves only
}

// lowerBound returns the index of the first key >= target within n.
func (n *Node[V]) lowerBound(key Key) int {
	return sort.Search(len(n.Keys), func(i int) bool { return !less(n.Keys[i], key) })
}

// childIndex returns which child of a branch node to descend into for
// key: the number of separators not greater than key, since a leaf's
// minimum key is duplicated as the separator promoted for it (so an
// exact separator match belongs to the child on its right).
func (n *Node[V]) childIndex(key Key) int {
	return sort.Search(len(n.Keys), func(i int) bool { return less(key, n.Keys[i]) })
}

// findLeaf descends to the leaf whose key range covers key (or the
// leftmost leaf if key is nil), returning it with the index of the first
// key >= key within it; that index is len(Keys) when key is past the
// leaf's last key.
func (n *Node[V]) findLeaf(key *Key) (*Node[V], int) {
	if n.Leaf {
		if key == nil {
			return n, 0
		}
		return n, n.lowerBound(*key)
	}
	idx := 0
	if key != nil {
		idx = n.childIndex(*key)
	}
	return n.Children[idx].findLeaf(key)
}

// insert inserts key->value into the subtree rooted at n. If n splits
// under the insertion, it reports the key promoted to n's parent and
// the new right sibling; order bounds how many keys a leaf, or children
// a branch, may hold before splitting.
func (n *Node[V]) insert(key Key, value V, order int) (promoted Key, right *Node[V], split bool) {
	if n.Leaf {
		i := n.lowerBound(key)
		if i < len(n.Keys) && equal(n.Keys[i], key) {
			n.Values[i] = value
			return Key{}, nil, false
		}
		n.Keys = insertAt(n.Keys, i, key)
		n.Values = insertAt(n.Values, i, value)
		if len(n.Keys) <= order {
			return Key{}, nil, false
		}
		return n.splitLeaf()
	}

	i := n.childIndex(key)
	promotedChild, rightChild, childSplit := n.Children[i].insert(key, value, order)
	if !childSplit {
		return Key{}, nil, false
	}

	n.Keys = insertAt(n.Keys, i, promotedChild)
	n.Children = insertAt(n.Children, i+1, rightChild)
	if len(n.Children) <= order {
		return Key{}, nil, false
	}
	return n.splitBranch()
}

// splitLeaf moves the upper half of n's entries into a new right
// sibling, wiring it into the leaf chain, and promotes the right
// sibling's first (smallest) key as the separator.
func (n *Node[V]) splitLeaf() (Key, *Node[V], bool) {
	mid := len(n.Keys) / 2
	right := &Node[V]{
		Leaf:   true,
		Keys:   append([]Key(nil), n.Keys[mid:]...),
		Values: append([]V(nil), n.Values[mid:]...),
		Next:   n.Next,
	}
	n.Keys = append([]Key(nil), n.Keys[:mid]...)
	n.Values = append([]V(nil), n.Values[:mid]...)
	n.Next = right
	return right.Keys[0], right, true
}

// splitBranch moves the upper half of n's separators and children into
// a new right sibling and promotes the middle separator, which belongs
// to neither side once split.
func (n *Node[V]) splitBranch() (Key, *Node[V], bool) {
	mid := len(n.Keys) / 2
	promoted := n.Keys[mid]
	right := &Node[V]{
		Keys:     append([]Key(nil), n.Keys[mid+1:]...),
		Children: append([]*Node[V](nil), n.Children[mid+1:]...),
	}
	n.Keys = append([]Key(nil), n.Keys[:mid]...)
	n.Children = append([]*Node[V](nil), n.Children[:mid+1]...)
	return promoted, right, true
}

// remove deletes key from the subtree rooted at n, reporting whether it
// was found and whether n now holds fewer than order/2 keys (a leaf) or
// fewer than order/2+1 children (a branch) and needs its parent to
// rebalance it.
func (n *Node[V]) remove(key Key, order int) (removed, underflow bool) {
	minFill := order / 2

	if n.Leaf {
		i := n.lowerBound(key)
		if i >= len(n.Keys) || !equal(n.Keys[i], key) {
			return false, false
		}
		n.Keys = append(n.Keys[:i], n.Keys[i+1:]...)
		n.Values = append(n.Values[:i], n.Values[i+1:]...)
		return true, len(n.Keys) < minFill
	}

	i := n.childIndex(key)
	removed, childUnderflow := n.Children[i].remove(key, order)
	if !removed {
		return false, false
	}
	if childUnderflow {
		n.rebalanceChild(i)
	}
	return true, len(n.Children) < minFill+1
}

// rebalanceChild merges the underflowed child at index i with a
// sibling -- its right neighbor if it has one, else its left. Unlike a
// classic B-tree's borrow-then-merge pair, this always merges: simpler,
// and the tree never holds enough entries in this system for the
// resulting extra merges to matter.
func (n *Node[V]) rebalanceChild(i int) {
	if i < len(n.Children)-1 {
		n.mergeChildren(i, i+1)
		return
	}
	n.mergeChildren(i-1, i)
}

// mergeChildren folds Children[right] into Children[left] and removes
// the separator between them.
func (n *Node[V]) mergeChildren(left, right int) {
	l, r := n.Children[left], n.Children[right]
	if l.Leaf {
		l.Keys = append(l.Keys, r.Keys...)
		l.Values = append(l.Values, r.Values...)
		l.Next = r.Next
	} else {
		l.Keys = append(append(l.Keys, n.Keys[left]), r.Keys...)
		l.Children = append(l.Children, r.Children...)
	}
	n.Keys = append(n.Keys[:left], n.Keys[left+1:]...)
	n.Children = append(n.Children[:right], n.Children[right+1:]...)
}
