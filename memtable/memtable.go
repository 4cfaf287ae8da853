// Package memtable provides the tree's in-memory, ordered write buffer: a
// sorted map from encoded key bytes to encoded value bytes, kept in ascending
// key order by binary-search insertion into a slice, with a live byte-size
// estimate used to trigger flushes.
package memtable

import "sort"

// Pair is one (key, value) entry, as encoded bytes, as produced by ToList.
type Pair struct {
	Key   []byte
	Value []byte
}

// entry is one live (key, value) pair held by a Table, always in the slot
// dictated by ascending key order.
type entry struct {
	key   string
	value []byte
}

// Table is the tree's memtable: a sorted slice of entries, ordered by the key
// bytes (string's natural order is byte-lexicographic, which is exactly the
// order the tree's encoded keys need). A memtable only ever holds the handful
// of thousand entries accumulated between flushes, so the O(n) cost of
// shifting a slice on insert is cheaper in practice than a skip list's
// pointer-chasing and per-node allocation at this scale, and it makes
// ascending enumeration (ToList) free: the slice is already in order.
type Table struct {
	entries  []entry
	byteSize uint64
}

// New returns a fresh, empty Table. Its ByteSize is 0.
func New() *Table {
	return &Table{}
}

// find returns the index of key's entry and true if key is present, or the
// index key would be inserted at (to keep entries sorted) and false.
func (t *Table) find(key string) (int, bool) {
	i := sort.Search(len(t.entries), func(i int) bool { return t.entries[i].key >= key })
	if i < len(t.entries) && t.entries[i].key == key {
		return i, true
	}
	return i, false
}

// Put inserts key with value, replacing any prior value for key (I1).
func (t *Table) Put(key, value []byte) {
	v := append([]byte(nil), value...)
	i, found := t.find(string(key))
	if found {
		t.byteSize += uint64(len(v)) - uint64(len(t.entries[i].value))
		t.entries[i].value = v
		return
	}
	t.entries = append(t.entries, entry{})
	copy(t.entries[i+1:], t.entries[i:])
	t.entries[i] = entry{key: string(key), value: v}
	t.byteSize += uint64(len(key)) + uint64(len(value))
}

// Get looks up key, returning its value and true if present.
func (t *Table) Get(key []byte) ([]byte, bool) {
	i, found := t.find(string(key))
	if !found {
		return nil, false
	}
	return t.entries[i].value, true
}

// ToList enumerates every (key, value) pair in ascending key order.
func (t *Table) ToList() []Pair {
	pairs := make([]Pair, len(t.entries))
	for i, e := range t.entries {
		pairs[i] = Pair{Key: []byte(e.key), Value: e.value}
	}
	return pairs
}

// Len returns the number of distinct keys currently stored.
func (t *Table) Len() int { return len(t.entries) }

// ByteSize returns a best-effort estimate of the table's footprint, excluding
// the fixed overhead of an empty table: the running sum of key and value
// lengths across all currently-stored entries. It is monotone in table
// contents and 0 for an empty table; it is used only to decide when to flush,
// not to predict on-disk size exactly.
func (t *Table) ByteSize() uint64 { return t.byteSize }
