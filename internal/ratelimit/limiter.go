// Package ratelimit tracks per-provider request quotas in fixed windows.
// A window opens with the first request for a key and lasts for the
// configured duration; the counter restarts once it has passed.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// Option configures a Memory limiter.
type Option func(*Memory)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) { m.now = now }
}

// Memory is an in-process fixed-window limiter.
type Memory struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// NewMemory constructs an empty limiter.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{windows: make(map[string]*window), now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Allow counts a request against key and reports whether it fits in the
// current window. A denied request is not counted.
func (m *Memory) Allow(_ context.Context, key string, maxRequests int, period time.Duration) bool {
	if maxRequests <= 0 {
		return false
	}
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok || now.After(w.resetAt) {
		m.windows[key] = &window{count: 1, resetAt: now.Add(period)}
		return true
	}
	if w.count >= maxRequests {
		return false
	}
	w.count++
	return true
}

// Remaining returns how many requests key has left in its window. A key with
// no window, or whose window has passed, has the full quota.
func (m *Memory) Remaining(_ context.Context, key string, maxRequests int) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok || m.now().After(w.resetAt) {
		return maxRequests
	}
	return max(0, maxRequests-w.count)
}

// ResetTime returns when key's current window ends. ok is false when key has
// no open window.
func (m *Memory) ResetTime(_ context.Context, key string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok || m.now().After(w.resetAt) {
		return time.Time{}, false
	}
	return w.resetAt, true
}
