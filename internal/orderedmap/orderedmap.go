// Package orderedmap implements a map that remembers the insertion order of
// its keys. The NVM3 encoder relies on this ordering to decide page
// placement, so the container is made explicit rather than depending on any
// ambient map iteration behavior.
package orderedmap

// Map is a map[uint32]V that preserves first-insertion order of its keys.
// Overwriting an existing key updates its value without moving its position.
// Deleting a key removes it from the order; a later Set of the same key
// re-appends it at the end, matching NVM3's delete-then-rewrite semantics.
type Map[V any] struct {
	values map[uint32]V
	order  []uint32
	index  map[uint32]int
}

// New returns an empty Map.
func New[V any]() *Map[V] {
	return &Map[V]{
		values: make(map[uint32]V),
		order:  make([]uint32, 0),
		index:  make(map[uint32]int),
	}
}

// Set inserts or overwrites key. A new key is appended to the end of the
// iteration order; an existing key keeps its position.
func (m *Map[V]) Set(key uint32, value V) {
	if _, ok := m.values[key]; !ok {
		m.index[key] = len(m.order)
		m.order = append(m.order, key)
	}
	m.values[key] = value
}

// Delete removes key from the map and its iteration order, if present.
func (m *Map[V]) Delete(key uint32) {
	pos, ok := m.index[key]
	if !ok {
		return
	}
	delete(m.values, key)
	delete(m.index, key)
	m.order = append(m.order[:pos], m.order[pos+1:]...)
	for i := pos; i < len(m.order); i++ {
		m.index[m.order[i]] = i
	}
}

// Get returns the value for key and whether it was present.
func (m *Map[V]) Get(key uint32) (V, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key is present.
func (m *Map[V]) Has(key uint32) bool {
	_, ok := m.values[key]
	return ok
}

// Len returns the number of keys currently present.
func (m *Map[V]) Len() int {
	return len(m.order)
}

// Keys returns the keys in insertion order. The returned slice must not be
// mutated by the caller.
func (m *Map[V]) Keys() []uint32 {
	return m.order
}

// Range calls fn for each key/value pair in insertion order, stopping early
// if fn returns false.
func (m *Map[V]) Range(fn func(key uint32, value V) bool) {
	for _, k := range m.order {
		if !fn(k, m.values[k]) {
			return
		}
	}
}

// ToMap materializes a plain map[uint32]V snapshot, discarding order.
func (m *Map[V]) ToMap() map[uint32]V {
	out := make(map[uint32]V, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}
