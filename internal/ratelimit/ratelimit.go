package ratelimit

import (
	"sync"
	"time"
)

// Config is one rate-limit window.
type Config struct {
	Window time.Duration
	Max    int
}

// Window presets per endpoint class.
var (
	Auth      = Config{Window: 15 * time.Minute, Max: 5}
	API       = Config{Window: time.Minute, Max: 60}
	Sensitive = Config{Window: time.Minute, Max: 10}
)

// Result describes the outcome of one rate-limit check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Store is the counter backend. The in-memory implementation below is the
// default; the interface allows swapping in a shared backend without touching
// the middleware.
type Store interface {
	Check(key string, config Config) Result
}

type entry struct {
	count       int
	windowStart time.Time
}

// MemoryStore is a fixed-window in-memory counter with a periodic sweep of
// stale entries.
type MemoryStore struct {
	mu       sync.Mutex
	entries  map[string]*entry
	stop     chan struct{}
	stopOnce sync.Once
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]*entry),
		stop:    make(chan struct{}),
	}
	go s.sweep()
	return s
}

func (s *MemoryStore) Check(key string, config Config) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	e, ok := s.entries[key]
	if !ok || now.Sub(e.windowStart) >= config.Window {
		e = &entry{windowStart: now}
		s.entries[key] = e
	}

	e.count++
	remaining := config.Max - e.count
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   e.count <= config.Max,
		Remaining: remaining,
		ResetAt:   e.windowStart.Add(config.Window),
	}
}

// ActiveKeys returns the number of tracked keys.
func (s *MemoryStore) ActiveKeys() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stop shuts down the sweep goroutine.
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

func (s *MemoryStore) sweep() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.removeStale()
		case <-s.stop:
			return
		}
	}
}

// removeStale drops entries whose window ended more than 30 minutes ago,
// comfortably past the longest configured window.
func (s *MemoryStore) removeStale() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-30 * time.Minute)
	for key, e := range s.entries {
		if e.windowStart.Before(cutoff) {
			delete(s.entries, key)
		}
	}
}
