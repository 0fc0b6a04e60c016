package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	start time.Time
	count int
}

// MemoryCounter keeps windows in process memory. A window opens on the
// first hit for a key and lasts exactly the requested duration.
type MemoryCounter struct {
	mu      sync.Mutex
	windows map[string]window
	now     func() time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		windows: make(map[string]window),
		now:     time.Now,
	}
}

func (m *MemoryCounter) Hit(_ context.Context, key string, d time.Duration) (int, time.Time, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok || now.Sub(w.start) > d {
		w = window{start: now}
	}
	w.count++
	m.windows[key] = w

	return w.count, w.start.Add(d), nil
}

// Prune drops windows that opened more than maxAge ago. maxAge should be
// at least the longest window in use.
func (m *MemoryCounter) Prune(maxAge time.Duration) int {
	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for k, w := range m.windows {
		if w.start.Before(cutoff) {
			delete(m.windows, k)
			removed++
		}
	}
	return removed
}

func (m *MemoryCounter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}
