// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package syncmap provides a generic version of [sync.Map].
package syncmap

import "sync"

// Map is a generic concurrent map. The zero value is ready to use.
type Map[K comparable, V any] struct {
	m sync.Map
}

// Load returns the value stored for key. The ok result reports whether the
// key was present.
func (m *Map[K, V]) Load(key K) (value V, ok bool) {
	v, ok := m.m.Load(key)
	if !ok {
		return value, false
	}
	return v.(V), true
}

// Store sets the value for a key.
func (m *Map[K, V]) Store(key K, value V) { m.m.Store(key, value) }

// CompareAndSwap swaps the old and new values for key if the value stored in
// the map is equal to old. V must be comparable at run time.
func (m *Map[K, V]) CompareAndSwap(key K, old, new V) (swapped bool) {
	return m.m.CompareAndSwap(key, old, new)
}

// CompareAndDelete deletes the entry for key if its value is equal to old.
// V must be comparable at run time.
func (m *Map[K, V]) CompareAndDelete(key K, old V) (deleted bool) {
	return m.m.CompareAndDelete(key, old)
}

// Delete deletes the value for a key.
func (m *Map[K, V]) Delete(key K) { m.m.Delete(key) }

// Range calls f sequentially for each key and value present in the map.
// If f returns false, range stops the iteration. It has the same consistency
// guarantees as [sync.Map.Range].
func (m *Map[K, V]) Range(f func(key K, value V) bool) {
	m.m.Range(func(k, v any) bool { return f(k.(K), v.(V)) })
}
