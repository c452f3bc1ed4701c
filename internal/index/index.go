// Package index implements the in-memory ordered map from keys to the byte
// span of their latest entry in the log, along with a running count of the
// log bytes no longer referenced by any key.
package index

import (
	"github.com/emirpasic/gods/trees/btree"
)

// Entry locates the latest set entry for a key.
type Entry struct {
	Key   string
	Start int64
	End   int64
}

// Len returns the number of bytes the entry occupies in the log.
func (e Entry) Len() int64 {
	return e.End - e.Start
}

// Index is an ordered key index backed by a B-tree.
// It is not safe for concurrent use.
type Index struct {
	tree     *btree.Tree
	order    int
	outdated int64
}

// New creates an empty index. order is the B-tree order and must be at least 3.
func New(order int) *Index {
	return &Index{
		tree:  btree.NewWithStringComparator(order),
		order: order,
	}
}

// Get returns the location of the latest entry for key
func (idx *Index) Get(key string) (Entry, bool) {
	v, found := idx.tree.Get(key)
	if !found {
		return Entry{}, false
	}
	return v.(Entry), true
}

// Put records e as the latest entry for its key. When it replaces an earlier
// entry, the earlier span is counted as outdated and returned.
func (idx *Index) Put(e Entry) (prev Entry, replaced bool) {
	prev, replaced = idx.Get(e.Key)
	if replaced {
		idx.outdated += prev.Len()
	}
	idx.tree.Put(e.Key, e)
	return prev, replaced
}

// Remove deletes key and counts its span as outdated.
func (idx *Index) Remove(key string) (Entry, bool) {
	prev, found := idx.Get(key)
	if !found {
		return Entry{}, false
	}
	idx.tree.Remove(key)
	idx.outdated += prev.Len()
	return prev, true
}

// AddOutdated counts n more log bytes as unreferenced, such as a tombstone.
func (idx *Index) AddOutdated(n int64) {
	idx.outdated += n
}

// Outdated returns the number of unreferenced log bytes.
func (idx *Index) Outdated() int64 {
	return idx.outdated
}

// Len returns the number of live keys.
func (idx *Index) Len() int {
	return idx.tree.Size()
}

// Each calls fn for every entry in ascending key order, stopping at the first error.
func (idx *Index) Each(fn func(Entry) error) error {
	it := idx.tree.Iterator()
	for it.Next() {
		if err := fn(it.Value().(Entry)); err != nil {
			return err
		}
	}
	return nil
}

// Keys returns all live keys in ascending order.
func (idx *Index) Keys() []string {
	keys := make([]string, 0, idx.tree.Size())
	for _, k := range idx.tree.Keys() {
		keys = append(keys, k.(string))
	}
	return keys
}

// Clear removes every key and resets the outdated count.
func (idx *Index) Clear() {
	idx.tree = btree.NewWithStringComparator(idx.order)
	idx.outdated = 0
}
