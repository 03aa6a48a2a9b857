// Package ttlmap provides a small concurrency-safe map whose entries expire
// after a fixed TTL. It backs the outage summary cache, notification dedup,
// pinned-message throttling, mode write debouncing, the wizard session store
// and the subscriber read cache.
package ttlmap

import (
	"sync"
	"time"
)

type entry[V any] struct {
	val V
	at  time.Time
}

// Map is a time-boxed map keyed by K. The zero value is not usable; use New.
type Map[K comparable, V any] struct {
	ttl   time.Duration
	mu    sync.Mutex
	items map[K]entry[V]

	// now is swappable for tests.
	now func() time.Time
}

func New[K comparable, V any](ttl time.Duration) *Map[K, V] {
	return &Map[K, V]{
		ttl:   ttl,
		items: make(map[K]entry[V]),
		now:   time.Now,
	}
}

// Get returns the value for key if it exists and has not expired.
func (m *Map[K, V]) Get(key K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	if m.now().Sub(e.at) >= m.ttl {
		var zero V
		return zero, false
	}
	return e.val, true
}

// GetStale returns the value for key even if it has expired.
// The second return reports presence, the third freshness.
func (m *Map[K, V]) GetStale(key K) (V, bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.items[key]
	if !ok {
		var zero V
		return zero, false, false
	}
	return e.val, true, m.now().Sub(e.at) < m.ttl
}

// Set stores the value with the current timestamp.
func (m *Map[K, V]) Set(key K, val V) {
	m.mu.Lock()
	m.items[key] = entry[V]{val: val, at: m.now()}
	m.mu.Unlock()
}

// Allow reports whether the key is currently outside its TTL window and, if
// so, marks it. Used as a debounce/rate-limit primitive: the first call within
// a window returns true, subsequent calls return false until the TTL elapses.
func (m *Map[K, V]) Allow(key K) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.items[key]; ok && now.Sub(e.at) < m.ttl {
		return false
	}
	var zero V
	m.items[key] = entry[V]{val: zero, at: now}
	return true
}

// Delete removes the key.
func (m *Map[K, V]) Delete(key K) {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
}

// Clear removes all entries.
func (m *Map[K, V]) Clear() {
	m.mu.Lock()
	m.items = make(map[K]entry[V])
	m.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included.
func (m *Map[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Sweep drops expired entries. Long-lived owners should call it periodically
// so abandoned keys don't accumulate.
func (m *Map[K, V]) Sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, e := range m.items {
		if now.Sub(e.at) >= m.ttl {
			delete(m.items, k)
		}
	}
}

// StartSweeper runs Sweep every interval until ctx is done. Call as a goroutine.
func (m *Map[K, V]) StartSweeper(done <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// SetClock replaces the time source. Tests only.
func (m *Map[K, V]) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}
