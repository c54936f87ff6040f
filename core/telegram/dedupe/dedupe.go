// Package dedupe drops webhook updates Telegram delivers more than once.
// Telegram resends an update when the first delivery was not acknowledged in
// time, which would otherwise advance a form twice.
package dedupe

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL bounds how long an update id is remembered.
const DefaultTTL = 10 * time.Minute

// Guard reports whether an update id is seen for the first time.
type Guard interface {
	FirstSeen(ctx context.Context, updateID int) (bool, error)
}

// Memory is a process-local Guard.
type Memory struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.Mutex
	seen   map[int]time.Time
	lastGC time.Time
}

// NewMemory creates a Memory guard; ttl <= 0 means DefaultTTL.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{ttl: ttl, now: time.Now, seen: make(map[int]time.Time)}
}

// FirstSeen records updateID and reports whether it was new.
func (m *Memory) FirstSeen(_ context.Context, updateID int) (bool, error) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	if now.Sub(m.lastGC) >= m.ttl {
		for id, exp := range m.seen {
			if !now.Before(exp) {
				delete(m.seen, id)
			}
		}
		m.lastGC = now
	}
	if exp, ok := m.seen[updateID]; ok && now.Before(exp) {
		return false, nil
	}
	m.seen[updateID] = now.Add(m.ttl)
	return true, nil
}

// Len returns the number of remembered ids.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}
