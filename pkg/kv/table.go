package kv

import (
	"bytes"
	"math"

	"github.com/kvperc/percolator/pkg/btree"
)

// branchingFactor is the order passed to every column's B+Tree: the most
// keys a leaf, or children a branch, holds before it splits. Chosen for
// reasonably shallow trees at the key counts these tests exercise; the
// protocol has no opinion on it.
const branchingFactor = 32

// NoLowerBound and NoUpperBound spell out the "None" bounds from the read
// contract: read(key, column, t_start_inclusive?, t_end_inclusive?).
const (
	NoLowerBound uint64 = 0
	NoUpperBound uint64 = math.MaxUint64
)

// Table is the versioned KV store: three independently-typed columns over
// the same (user-key, ts) keyspace. Data and Lock store raw bytes; Write
// stores the start_ts of the version it makes visible.
type Table struct {
	Data  *btree.Tree[[]byte]
	Lock  *btree.Tree[[]byte] // value is the transaction's primary user-key
	Write *btree.Tree[uint64] // value is the start_ts being made visible
}

// NewTable builds an empty table with fresh columns.
func NewTable() *Table {
	return &Table{
		Data:  btree.NewTree[[]byte](branchingFactor),
		Lock:  btree.NewTree[[]byte](branchingFactor),
		Write: btree.NewTree[uint64](branchingFactor),
	}
}

// ReadData returns the Data entry for userKey with the largest ts in
// [tStart, tEnd], if any.
func (t *Table) ReadData(userKey []byte, tStart, tEnd uint64) (value []byte, ts uint64, ok bool) {
	return readLatest(t.Data, userKey, tStart, tEnd)
}

// ReadLock returns the Lock entry (its stored primary key) for userKey with
// the largest ts in [tStart, tEnd], if any.
func (t *Table) ReadLock(userKey []byte, tStart, tEnd uint64) (primary []byte, ts uint64, ok bool) {
	return readLatest(t.Lock, userKey, tStart, tEnd)
}

// ReadWrite returns the Write entry (its recorded start_ts) for userKey
// with the largest ts in [tStart, tEnd], if any.
func (t *Table) ReadWrite(userKey []byte, tStart, tEnd uint64) (startTS uint64, ts uint64, ok bool) {
	return readLatest(t.Write, userKey, tStart, tEnd)
}

// WriteData inserts or overwrites Data[(userKey, ts)] = value.
func (t *Table) WriteData(userKey []byte, ts uint64, value []byte) {
	t.Data.Replace(VersionKey{UserKey: userKey, TS: ts}, value)
}

// WriteLock inserts or overwrites Lock[(userKey, ts)] = primary.
func (t *Table) WriteLock(userKey []byte, ts uint64, primary []byte) {
	t.Lock.Replace(VersionKey{UserKey: userKey, TS: ts}, primary)
}

// WriteWrite inserts or overwrites Write[(userKey, commitTS)] = startTS.
func (t *Table) WriteWrite(userKey []byte, commitTS uint64, startTS uint64) {
	t.Write.Replace(VersionKey{UserKey: userKey, TS: commitTS}, startTS)
}

// EraseData removes every Data entry for userKey with ts <= uptoTS.
func (t *Table) EraseData(userKey []byte, uptoTS uint64) {
	eraseRange(t.Data, userKey, uptoTS)
}

// EraseLock removes every Lock entry for userKey with ts <= uptoTS.
func (t *Table) EraseLock(userKey []byte, uptoTS uint64) {
	eraseRange(t.Lock, userKey, uptoTS)
}

// UncommittedKeys returns every Lock entry whose ts equals lockTS and whose
// stored primary equals primary: a linear scan, since Locks are not
// otherwise indexed by transaction.
func (t *Table) UncommittedKeys(lockTS uint64, primary []byte) []VersionKey {
	var out []VersionKey
	cur := newCursor(t.Lock)
	if cur.Seek(nil) {
		for cur.Valid() {
			k := cur.Key()
			if k.TS == lockTS && bytes.Equal(cur.Value(), primary) {
				out = append(out, k)
			}
			if !cur.Next() {
				break
			}
		}
	}
	cur.Close()
	return out
}

// CommitTSOf returns the commit_ts c such that Write[(primary, c)] ==
// startTS, if any -- a linear scan over the Write column.
func (t *Table) CommitTSOf(startTS uint64, primary []byte) (uint64, bool) {
	cur := newCursor(t.Write)
	defer cur.Close()
	if !cur.Seek(nil) {
		return 0, false
	}
	for cur.Valid() {
		k := cur.Key()
		if bytes.Equal(k.UserKey, primary) && cur.Value() == startTS {
			return k.TS, true
		}
		if !cur.Next() {
			break
		}
	}
	return 0, false
}

// readLatest walks the column's cursor across the [tStart, tEnd] window
// for userKey and keeps the entry with the largest ts seen, matching the
// "largest ts in range" contract of read().
func readLatest[V any](tree *btree.Tree[V], userKey []byte, tStart, tEnd uint64) (value V, ts uint64, ok bool) {
	cur := newCursor(tree)
	defer cur.Close()

	if !cur.Seek(&VersionKey{UserKey: userKey, TS: tStart}) {
		return value, 0, false
	}

	for cur.Valid() {
		k := cur.Key()
		if !bytes.Equal(k.UserKey, userKey) || k.TS > tEnd {
			break
		}
		value, ts, ok = cur.Value(), k.TS, true
		if !cur.Next() {
			break
		}
	}
	return value, ts, ok
}

// eraseRange removes every entry for userKey with ts <= uptoTS. Keys are
// collected first and then removed, since the cursor holds the tree's
// read lock and Remove needs the write lock.
func eraseRange[V any](tree *btree.Tree[V], userKey []byte, uptoTS uint64) {
	var toRemove []VersionKey
	cur := newCursor(tree)
	if cur.Seek(&VersionKey{UserKey: userKey, TS: NoLowerBound}) {
		for cur.Valid() {
			k := cur.Key()
			if !bytes.Equal(k.UserKey, userKey) || k.TS > uptoTS {
				break
			}
			toRemove = append(toRemove, k)
			if !cur.Next() {
				break
			}
		}
	}
	cur.Close()

	for _, k := range toRemove {
		tree.Remove(k)
	}
}
