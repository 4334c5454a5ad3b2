package cache

import (
	"context"
	"sort"
	"sync"
	"time"
)

const defaultTTL = time.Hour

// Stats describes the live entries of a cache after expired ones are swept.
type Stats struct {
	Size int
	Keys []string
}

type entry[V any] struct {
	value     V
	createdAt time.Time
	expiresAt time.Time
}

// expired reports whether the entry is past its deadline. An entry whose TTL
// was zero or negative never becomes readable.
func (e entry[V]) expired(now time.Time) bool {
	return now.After(e.expiresAt) || !e.expiresAt.After(e.createdAt)
}

// Option configures a Memory cache.
type Option func(*config)

type config struct {
	ttl time.Duration
	now func() time.Time
}

// WithDefaultTTL sets the TTL used by SetDefault.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *config) { c.ttl = ttl }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// Memory is an in-process TTL cache. Expired entries are evicted lazily, when
// a read touches them or when Size or Stats sweep the whole map.
type Memory[V any] struct {
	mu      sync.Mutex
	entries map[string]entry[V]
	ttl     time.Duration
	now     func() time.Time
}

// NewMemory constructs an empty cache with a one-hour default TTL.
func NewMemory[V any](opts ...Option) *Memory[V] {
	cfg := config{ttl: defaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Memory[V]{entries: make(map[string]entry[V]), ttl: cfg.ttl, now: cfg.now}
}

// Set stores value under key, replacing any previous entry.
func (m *Memory[V]) Set(_ context.Context, key string, value V, ttl time.Duration) {
	now := m.now()
	m.mu.Lock()
	m.entries[key] = entry[V]{value: value, createdAt: now, expiresAt: now.Add(ttl)}
	m.mu.Unlock()
}

// SetDefault stores value with the default TTL.
func (m *Memory[V]) SetDefault(ctx context.Context, key string, value V) {
	m.Set(ctx, key, value, m.ttl)
}

// Get returns the live value under key. An expired entry is removed and
// reported as a miss.
func (m *Memory[V]) Get(_ context.Context, key string) (V, bool) {
	var zero V
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return zero, false
	}
	if e.expired(m.now()) {
		delete(m.entries, key)
		return zero, false
	}
	return e.value, true
}

// Has reports whether key holds a live value.
func (m *Memory[V]) Has(ctx context.Context, key string) bool {
	_, ok := m.Get(ctx, key)
	return ok
}

// Delete removes key and reports whether an entry existed.
func (m *Memory[V]) Delete(_ context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key]
	delete(m.entries, key)
	return ok
}

// Clear drops every entry.
func (m *Memory[V]) Clear(_ context.Context) {
	m.mu.Lock()
	m.entries = make(map[string]entry[V])
	m.mu.Unlock()
}

// Size sweeps expired entries and returns the number left.
func (m *Memory[V]) Size(_ context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked()
	return len(m.entries)
}

// Stats sweeps expired entries and returns the survivors' keys, sorted.
func (m *Memory[V]) Stats(_ context.Context) Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked()

	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return Stats{Size: len(keys), Keys: keys}
}

func (m *Memory[V]) sweepLocked() {
	now := m.now()
	for k, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, k)
		}
	}
}
