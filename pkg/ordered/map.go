// Package ordered provides a key-ordered map backed by a B-tree.
//
// Insert refuses existing keys, lookups and deletes are O(log n), and
// iteration visits keys in ascending order. The chunk table and the symbol
// table are both built on it.
package ordered

import (
	"cmp"
	"errors"

	"github.com/google/btree"
)

// ErrKeyExists is returned by Insert when the key is already present.
var ErrKeyExists = errors.New("key already present")

const degree = 8

type entry[K cmp.Ordered, V any] struct {
	key K
	val V
}

// Map is an ordered map from K to V.
type Map[K cmp.Ordered, V any] struct {
	tree *btree.BTreeG[entry[K, V]]
}

// New creates an empty map.
func New[K cmp.Ordered, V any]() *Map[K, V] {
	return &Map[K, V]{
		tree: btree.NewG(degree, func(a, b entry[K, V]) bool {
			return a.key < b.key
		}),
	}
}

// Insert adds key with val. It fails with ErrKeyExists if key is present;
// the existing value is left untouched.
func (m *Map[K, V]) Insert(key K, val V) error {
	if m.tree.Has(entry[K, V]{key: key}) {
		return ErrKeyExists
	}
	m.tree.ReplaceOrInsert(entry[K, V]{key: key, val: val})
	return nil
}

// Set adds or replaces the value stored under key.
func (m *Map[K, V]) Set(key K, val V) {
	m.tree.ReplaceOrInsert(entry[K, V]{key: key, val: val})
}

// Get returns the value stored under key.
func (m *Map[K, V]) Get(key K) (V, bool) {
	e, ok := m.tree.Get(entry[K, V]{key: key})
	return e.val, ok
}

// Has reports whether key is present.
func (m *Map[K, V]) Has(key K) bool {
	return m.tree.Has(entry[K, V]{key: key})
}

// Delete removes key and returns the value it held.
func (m *Map[K, V]) Delete(key K) (V, bool) {
	e, ok := m.tree.Delete(entry[K, V]{key: key})
	return e.val, ok
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int {
	return m.tree.Len()
}

// Ascend calls fn for every entry in key order until fn returns false.
func (m *Map[K, V]) Ascend(fn func(key K, val V) bool) {
	m.tree.Ascend(func(e entry[K, V]) bool {
		return fn(e.key, e.val)
	})
}

// AscendRange calls fn for every entry with lo <= key <= hi, in key order,
// until fn returns false.
func (m *Map[K, V]) AscendRange(lo, hi K, fn func(key K, val V) bool) {
	m.tree.AscendGreaterOrEqual(entry[K, V]{key: lo}, func(e entry[K, V]) bool {
		if e.key > hi {
			return false
		}
		return fn(e.key, e.val)
	})
}

// Keys returns all keys in ascending order.
func (m *Map[K, V]) Keys() []K {
	keys := make([]K, 0, m.tree.Len())
	m.tree.Ascend(func(e entry[K, V]) bool {
		keys = append(keys, e.key)
		return true
	})
	return keys
}
