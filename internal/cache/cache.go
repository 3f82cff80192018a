// Package cache keeps rendered responses so upstream civic sites are only
// scraped once per revalidation window, however many clients ask.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pfrederiksen/civic-events/internal/clock"
)

// ErrMiss is returned by stores when a key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Entry is one cached response body.
type Entry struct {
	Body        []byte    `json:"body"`
	ContentType string    `json:"contentType"`
	StoredAt    time.Time `json:"storedAt"`
}

// Store persists entries with a time-to-live.
type Store interface {
	Get(ctx context.Context, key string) (Entry, error)
	Set(ctx context.Context, key string, e Entry, ttl time.Duration) error
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	clock   clock.Clock
}

type memoryEntry struct {
	entry     Entry
	expiresAt time.Time
}

// NewMemory creates an empty MemoryStore. A nil clock reads the system time.
func NewMemory(c clock.Clock) *MemoryStore {
	if c == nil {
		c = clock.Real{}
	}
	return &MemoryStore{entries: make(map[string]memoryEntry), clock: c}
}

// Get returns the entry for key or ErrMiss.
func (s *MemoryStore) Get(_ context.Context, key string) (Entry, error) {
	s.mu.RLock()
	me, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok || !s.clock.Now().Before(me.expiresAt) {
		return Entry{}, ErrMiss
	}
	return me.entry, nil
}

// Set stores e under key for ttl.
func (s *MemoryStore) Set(_ context.Context, key string, e Entry, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	for k, me := range s.entries {
		if !now.Before(me.expiresAt) {
			delete(s.entries, k)
		}
	}
	s.entries[key] = memoryEntry{entry: e, expiresAt: now.Add(ttl)}
	return nil
}
