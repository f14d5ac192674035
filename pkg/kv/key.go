// Package kv implements the versioned key/value table: three ordered
// columns (Data, Lock, Write) keyed by (user-key, timestamp), each backed
// by its own btree.Tree instance.
package kv

import "github.com/kvperc/percolator/pkg/btree"

// VersionKey is the table key: a user-supplied byte key paired with a
// timestamp. Ordering is lexicographic on UserKey, then numeric on TS, as
// required so a column's range read can walk a single key's versions in
// timestamp order via the tree's leaf chain. It is the same type the
// tree itself orders by, so no conversion is needed at the tree boundary.
type VersionKey = btree.Key
