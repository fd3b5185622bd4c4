package storage

import (
	"context"
	"sync"
	"time"
)

const memoryCleanupInterval = time.Minute

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore keeps values in process. A positive capacity bounds the key
// plus value length of each entry, the same way a browser profile bounds its
// own local storage. With a TTL, entries expire after their last write.
type MemoryStore struct {
	mu       sync.RWMutex
	values   map[string]memoryEntry
	used     int
	capacity int
	ttl      time.Duration
	now      func() time.Time

	stopCleanup chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

type MemoryOption func(*MemoryStore)

// WithMemoryTTL expires entries ttl after they were last set and starts a
// background sweep. Call Close to stop it.
func WithMemoryTTL(ttl time.Duration) MemoryOption {
	return func(s *MemoryStore) { s.ttl = ttl }
}

func NewMemoryStore(capacity int, opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		values:      make(map[string]memoryEntry),
		capacity:    capacity,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.ttl > 0 {
		s.wg.Add(1)
		go s.cleanupLoop()
	}
	return s
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.values[key]
	if !ok || s.expired(e) {
		return "", ErrNotFound
	}
	return e.value, nil
}

func (s *MemoryStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.capacity > 0 && len(key)+len(value) > s.capacity {
		return ErrQuotaExceeded
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	used := s.used + len(key) + len(value)
	if old, ok := s.values[key]; ok {
		used -= len(key) + len(old.value)
	}
	e := memoryEntry{value: value}
	if s.ttl > 0 {
		e.expiresAt = s.now().Add(s.ttl)
	}
	s.values[key] = e
	s.used = used
	return nil
}

func (s *MemoryStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(key)
	return nil
}

// Used returns the number of bytes currently held across all keys.
func (s *MemoryStore) Used() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.used
}

func (s *MemoryStore) Close() {
	s.stopOnce.Do(func() { close(s.stopCleanup) })
	s.wg.Wait()
}

func (s *MemoryStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(memoryCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.expireEntries()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *MemoryStore) expireEntries() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.values {
		if s.expired(e) {
			s.removeLocked(key)
		}
	}
}

func (s *MemoryStore) expired(e memoryEntry) bool {
	return !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)
}

func (s *MemoryStore) removeLocked(key string) {
	if old, ok := s.values[key]; ok {
		s.used -= len(key) + len(old.value)
		delete(s.values, key)
	}
}
