package calls

import "sync"

// Table is a concurrency-safe map of records keyed by UUID.
// Removing an absent key is a no-op.
type Table[T any] struct {
	mu    sync.RWMutex
	items map[string]T
}

// NewTable creates an empty table.
func NewTable[T any]() *Table[T] {
	return &Table[T]{items: make(map[string]T)}
}

// Put stores v under uuid, replacing any previous record.
func (t *Table[T]) Put(uuid string, v T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items[uuid] = v
}

// PutIfAbsent stores v unless uuid is already present. Reports whether it stored.
func (t *Table[T]) PutIfAbsent(uuid string, v T) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.items[uuid]; ok {
		return false
	}
	t.items[uuid] = v
	return true
}

// Get returns the record for uuid.
func (t *Table[T]) Get(uuid string) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.items[uuid]
	return v, ok
}

// Remove deletes uuid and reports whether it was present.
func (t *Table[T]) Remove(uuid string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.items[uuid]; !ok {
		return false
	}
	delete(t.items, uuid)
	return true
}

// Len returns the number of records.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}
