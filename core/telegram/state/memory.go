package state

import "sync"

// Memory is a concurrent in-memory map from Telegram user id to a value.
// Values are copied in and out, so callers never share mutable state through it.
type Memory[T any] struct {
	mu    sync.RWMutex
	items map[int64]T
}

// NewMemory constructs an empty Memory.
func NewMemory[T any]() *Memory[T] {
	return &Memory[T]{items: make(map[int64]T)}
}

// Get returns the value stored for a user.
func (m *Memory[T]) Get(userID int64) (T, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[userID]
	return v, ok
}

// Set stores or overwrites the value for a user.
func (m *Memory[T]) Set(userID int64, v T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[userID] = v
}

// Update applies fn to the current value atomically. fn receives the value and
// whether it existed; it returns the new value and whether to keep it.
func (m *Memory[T]) Update(userID int64, fn func(cur T, ok bool) (T, bool)) (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.items[userID]
	next, keep := fn(cur, ok)
	if keep {
		m.items[userID] = next
	} else {
		delete(m.items, userID)
	}
	return next, keep
}

// Delete removes the value for a user and returns what was stored.
func (m *Memory[T]) Delete(userID int64) (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[userID]
	delete(m.items, userID)
	return v, ok
}

// Has reports whether a value is stored for the user.
func (m *Memory[T]) Has(userID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.items[userID]
	return ok
}

// Len returns the number of stored values.
func (m *Memory[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
